// Package capability implements the stateless two-phase capability exchange
// that gates a protected link.
//
// A capability is never stored. It is a MAC, computed with a server-only key,
// over the claim
//
//	resourceID ":" timestamp ":" networkAddress ":" identificationString
//
// Issuance signs the claim for a client whose timestamp is close to server
// time. Redemption recomputes the MAC from the redeeming request's own network
// address and identification string, compares it in constant time, and checks
// the timestamp against a looser tolerance. A capability therefore cannot be
// forged without the key, replayed after its window, or moved to another
// network address or browser.
//
// Two MAC algorithms are supported: HMAC-SHA256 (default) and keyed
// BLAKE2b-256. Keys are 32 to 64 bytes and may be derived from a passphrase
// with HKDF-SHA256.
package capability
