package gate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/giantswarm/invite-gate/probe"
)

// IssueRequest is the body of POST /api/get-signature.
type IssueRequest struct {
	ResourceID string `json:"resourceId"`
	// Timestamp is seconds since the unix epoch. Numbers and numeric strings
	// are both accepted.
	Timestamp Timestamp `json:"timestamp"`
	// Probe is the optional self-reported integrity probe result.
	Probe *probe.Report `json:"probe,omitempty"`
}

// RedeemRequest is the body of POST /api/get-link.
type RedeemRequest struct {
	ResourceID string    `json:"resourceId"`
	Timestamp  Timestamp `json:"timestamp"`
	Signature  string    `json:"signature"`
}

// SignatureResponse is the success body of POST /api/get-signature.
type SignatureResponse struct {
	Signature string `json:"signature"`
}

// LinkResponse is the success body of POST /api/get-link.
type LinkResponse struct {
	Link string `json:"link"`
}

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// Timestamp is a client-supplied unix time in whole seconds.
// The zero value means the field was absent.
type Timestamp struct {
	Value int64
	Set   bool
}

// UnmarshalJSON accepts 1700000000 and "1700000000". null leaves the
// timestamp unset. Fractions, exponents and other types are rejected.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*t = Timestamp{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be an integer number of seconds")
	}
	*t = Timestamp{Value: v, Set: true}
	return nil
}

// MarshalJSON encodes the timestamp as a number, or null when unset.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.Value, 10)), nil
}
