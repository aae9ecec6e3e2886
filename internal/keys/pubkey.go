package keys

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKey is a 32-byte ed25519 public key.
type PublicKey [ed25519.PublicKeySize]byte

// String returns the base58 encoding used by the ledger tooling.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether the key is unset.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid base58 public key %q: %w", s, err)
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("public key %q has %d bytes, want %d", s, len(raw), len(pk))
	}
	copy(pk[:], raw)
	return pk, nil
}
