package capability

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

// Algorithm names a MAC construction.
type Algorithm string

const (
	AlgorithmHMACSHA256 Algorithm = "hmac-sha256"
	AlgorithmBLAKE2b256 Algorithm = "blake2b-256"
)

const (
	// KeySize is the size of generated and derived keys.
	KeySize = 32

	// MinKeySize is the shortest key NewSigner accepts.
	MinKeySize = 32

	// MaxKeySize is the longest key NewSigner accepts (BLAKE2b key limit).
	MaxKeySize = 64

	// DefaultKeyInfo is the HKDF info string used by KeyFromSecret callers
	// that have no reason to pick another.
	DefaultKeyInfo = "invite-gate capability mac v1"
)

var (
	// ErrKeySize is returned for keys outside [MinKeySize, MaxKeySize].
	ErrKeySize = fmt.Errorf("capability key must be %d to %d bytes", MinKeySize, MaxKeySize)

	// ErrUnknownAlgorithm is returned for unsupported algorithm names.
	ErrUnknownAlgorithm = errors.New("unknown capability algorithm")
)

// Claim is the tuple a capability is bound to.
type Claim struct {
	ResourceID           string
	Timestamp            int64 // seconds since the unix epoch, as sent by the client
	NetworkAddress       string
	IdentificationString string
}

// Message returns the canonical byte string that gets signed.
func (c Claim) Message() []byte {
	var b strings.Builder
	b.Grow(len(c.ResourceID) + len(c.NetworkAddress) + len(c.IdentificationString) + 24)
	b.WriteString(c.ResourceID)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(c.Timestamp, 10))
	b.WriteByte(':')
	b.WriteString(c.NetworkAddress)
	b.WriteByte(':')
	b.WriteString(c.IdentificationString)
	return []byte(b.String())
}

// Signer computes and verifies capability MACs. The key never leaves it.
// A Signer is safe for concurrent use.
type Signer struct {
	key       []byte
	algorithm Algorithm
	newMAC    func() hash.Hash
}

// ParseAlgorithm maps a configuration string to an Algorithm.
// The empty string selects AlgorithmHMACSHA256.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmHMACSHA256:
		return AlgorithmHMACSHA256, nil
	case AlgorithmBLAKE2b256:
		return AlgorithmBLAKE2b256, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// NewSigner creates a signer. The key is copied.
func NewSigner(key []byte, algorithm Algorithm) (*Signer, error) {
	if len(key) < MinKeySize || len(key) > MaxKeySize {
		return nil, ErrKeySize
	}
	k := make([]byte, len(key))
	copy(k, key)

	s := &Signer{key: k, algorithm: algorithm}
	switch algorithm {
	case AlgorithmHMACSHA256, "":
		s.algorithm = AlgorithmHMACSHA256
		s.newMAC = func() hash.Hash { return hmac.New(sha256.New, k) }
	case AlgorithmBLAKE2b256:
		// Validate once so newMAC can't fail later.
		if _, err := blake2b.New256(k); err != nil {
			return nil, fmt.Errorf("blake2b key: %w", err)
		}
		s.newMAC = func() hash.Hash {
			h, _ := blake2b.New256(k)
			return h
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	return s, nil
}

// Algorithm returns the MAC algorithm in use.
func (s *Signer) Algorithm() Algorithm {
	return s.algorithm
}

// Sign returns the lowercase hex MAC of the claim.
func (s *Signer) Sign(c Claim) string {
	m := s.newMAC()
	m.Write(c.Message())
	return hex.EncodeToString(m.Sum(nil))
}

// Verify reports whether sig is the MAC of the claim. The comparison runs in
// constant time with respect to the signature contents.
func (s *Signer) Verify(c Claim, sig string) bool {
	expected := s.Sign(c)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1
}

// GenerateKey returns KeySize random bytes.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate capability key: %w", err)
	}
	return key, nil
}

// KeyFromSecret derives a KeySize key from a passphrase with HKDF-SHA256.
// The same secret and info always yield the same key, so replicas configured
// with one passphrase accept each other's capabilities.
func KeyFromSecret(secret, info string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("capability secret is empty")
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive capability key: %w", err)
	}
	return key, nil
}

// DecodeKey decodes a base64 key (standard or URL alphabet, padded or not).
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(s); err == nil {
			return key, nil
		}
	}
	return nil, errors.New("capability key is not valid base64")
}
