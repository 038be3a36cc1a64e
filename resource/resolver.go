package resource

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/giantswarm/invite-gate/security"
)

const (
	// DefaultMobileTemplate opens the native app on android and ios.
	DefaultMobileTemplate = "tg://join?invite=%s"

	// DefaultWebTemplate is used for every other device class.
	DefaultWebTemplate = "https://t.me/+%s"
)

// Templates are fmt patterns with exactly one %s verb that receives the
// resource secret.
type Templates struct {
	Mobile string
	Web    string
}

// DefaultTemplates returns the built-in URI templates.
func DefaultTemplates() Templates {
	return Templates{Mobile: DefaultMobileTemplate, Web: DefaultWebTemplate}
}

// Validate checks that both templates contain a single %s verb.
func (t Templates) Validate() error {
	for name, tmpl := range map[string]string{"mobile": t.Mobile, "web": t.Web} {
		if strings.Count(tmpl, "%") != 1 || !strings.Contains(tmpl, "%s") {
			return fmt.Errorf("%s link template %q must contain exactly one %%s", name, tmpl)
		}
	}
	return nil
}

// Resolver maps a resource and device class to a target URI.
type Resolver struct {
	registry  *Registry
	templates Templates
}

// NewResolver creates a resolver. Empty templates fall back to the defaults.
func NewResolver(registry *Registry, templates Templates) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("resource registry is required")
	}
	if templates.Mobile == "" {
		templates.Mobile = DefaultMobileTemplate
	}
	if templates.Web == "" {
		templates.Web = DefaultWebTemplate
	}
	if err := templates.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{registry: registry, templates: templates}, nil
}

// Registry returns the registry the resolver reads from.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve returns the target URI for id on the given device class.
func (r *Resolver) Resolve(id string, device security.DeviceClass) (string, error) {
	res, err := r.registry.Lookup(id)
	if err != nil {
		return "", err
	}
	tmpl := r.templates.Web
	if device.IsMobile() {
		tmpl = r.templates.Mobile
	}
	return fmt.Sprintf(tmpl, url.QueryEscape(res.Secret)), nil
}
