package resource

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// ErrUnknownResource is returned when a resource identifier is not in the registry.
var ErrUnknownResource = errors.New("unknown resource")

// MaxIDLength is the longest accepted resource identifier.
const MaxIDLength = 64

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Resource is a protected target.
type Resource struct {
	// ID is the path segment clients request, e.g. "chat" for GET /chat.
	ID string `json:"id"`

	// DisplayName is shown on the bootstrap page and in link previews.
	DisplayName string `json:"displayName"`

	// Secret is the value embedded in the resolved URI. It is only ever
	// returned to clients that completed the capability exchange.
	Secret string `json:"secret"`
}

// ValidID reports whether id is a well-formed resource identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Registry is an immutable set of resources keyed by ID.
type Registry struct {
	byID map[string]Resource
}

// NewRegistry builds a registry. Duplicate IDs, malformed IDs and empty
// secrets are rejected.
func NewRegistry(resources ...Resource) (*Registry, error) {
	byID := make(map[string]Resource, len(resources))
	for _, r := range resources {
		if !ValidID(r.ID) {
			return nil, fmt.Errorf("invalid resource id %q", r.ID)
		}
		if r.Secret == "" {
			return nil, fmt.Errorf("resource %q has no secret", r.ID)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate resource id %q", r.ID)
		}
		if r.DisplayName == "" {
			r.DisplayName = r.ID
		}
		byID[r.ID] = r
	}
	return &Registry{byID: byID}, nil
}

// Lookup returns the resource with the given id.
func (r *Registry) Lookup(id string) (Resource, error) {
	res, ok := r.byID[id]
	if !ok {
		return Resource{}, ErrUnknownResource
	}
	return res, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	return len(r.byID)
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
