package capability

import (
	"errors"
	"time"

	"github.com/giantswarm/invite-gate/security"
)

const (
	// DefaultIssuanceSkew is how far a client's timestamp may be from server
	// time when a capability is issued.
	DefaultIssuanceSkew = 10 * time.Second

	// DefaultRedemptionSkew is how old (or new) a timestamp may be when the
	// capability is redeemed. It covers the issuance round trip.
	DefaultRedemptionSkew = 30 * time.Second
)

var (
	// ErrTimestampInvalid is returned by Issue when the claimed timestamp is
	// outside the issuance tolerance.
	ErrTimestampInvalid = errors.New("timestamp outside issuance tolerance")

	// ErrInvalidSignature is returned by Redeem when the signature does not
	// match the claim recomputed from the redeeming request.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrExpired is returned by Redeem when the signature matches but the
	// timestamp is outside the redemption tolerance.
	ErrExpired = errors.New("capability expired")
)

// Protocol runs the issuance and redemption checks. It keeps no state
// between calls.
type Protocol struct {
	signer         *Signer
	issuanceSkew   time.Duration
	redemptionSkew time.Duration
}

// NewProtocol creates a protocol over signer. Non-positive tolerances fall
// back to DefaultIssuanceSkew and DefaultRedemptionSkew.
func NewProtocol(signer *Signer, issuanceSkew, redemptionSkew time.Duration) *Protocol {
	if issuanceSkew <= 0 {
		issuanceSkew = DefaultIssuanceSkew
	}
	if redemptionSkew <= 0 {
		redemptionSkew = DefaultRedemptionSkew
	}
	return &Protocol{
		signer:         signer,
		issuanceSkew:   issuanceSkew,
		redemptionSkew: redemptionSkew,
	}
}

// IssuanceSkew returns the issuance tolerance.
func (p *Protocol) IssuanceSkew() time.Duration { return p.issuanceSkew }

// RedemptionSkew returns the redemption tolerance.
func (p *Protocol) RedemptionSkew() time.Duration { return p.redemptionSkew }

// Issue signs the claim if its timestamp is within the issuance tolerance of now.
// Callers must have already classified the client and charged its rate limit.
func (p *Protocol) Issue(c Claim, now time.Time) (string, error) {
	if !security.WithinSkew(now, c.Timestamp, p.issuanceSkew) {
		return "", ErrTimestampInvalid
	}
	return p.signer.Sign(c), nil
}

// Redeem checks sig against the claim built from the redeeming request.
//
// The MAC is checked first, so ErrExpired is only ever returned for a genuine
// capability that arrived too late; every other failure is ErrInvalidSignature.
func (p *Protocol) Redeem(c Claim, sig string, now time.Time) error {
	if !p.signer.Verify(c, sig) {
		return ErrInvalidSignature
	}
	if !security.WithinSkew(now, c.Timestamp, p.redemptionSkew) {
		return ErrExpired
	}
	return nil
}
