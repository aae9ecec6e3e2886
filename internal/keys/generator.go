package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/secret"
)

// KeyPair is a generated role key pair.
type KeyPair struct {
	Role      Role
	PublicKey PublicKey
	// Private is the 64-byte ed25519 private key (seed followed by public key).
	Private secret.Value
}

// Generator produces role key pairs from a randomness source.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator reading from r. A nil r uses crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// Generate creates a fresh key pair for role. Every call draws a new seed;
// no role's key is derived from another's.
func (g *Generator) Generate(role Role) (KeyPair, error) {
	if !role.Valid() {
		return KeyPair{}, &provisioning.GenerationError{Role: string(role), Err: fmt.Errorf("unknown role")}
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(g.rand, seed); err != nil {
		return KeyPair{}, &provisioning.GenerationError{Role: string(role), Err: err}
	}
	priv := ed25519.NewKeyFromSeed(seed)
	zeroBytes(seed)

	kp, err := FromPrivate(role, secret.New(priv))
	zeroBytes(priv)
	return kp, err
}

// FromPrivate rebuilds a key pair from stored private material.
func FromPrivate(role Role, private secret.Value) (KeyPair, error) {
	raw := private.Reveal()
	defer zeroBytes(raw)
	if len(raw) != ed25519.PrivateKeySize {
		return KeyPair{}, fmt.Errorf("%s key: private key has %d bytes, want %d", role, len(raw), ed25519.PrivateKeySize)
	}

	var pk PublicKey
	copy(pk[:], ed25519.PrivateKey(raw).Public().(ed25519.PublicKey))
	return KeyPair{Role: role, PublicKey: pk, Private: private}, nil
}

// KeypairJSON encodes the private key as the ledger tooling's keypair file:
// a JSON array of the 64 private key bytes.
func (k KeyPair) KeypairJSON() (secret.Value, error) {
	raw := k.Private.Reveal()
	defer zeroBytes(raw)

	ints := make([]int, len(raw))
	for i, b := range raw {
		ints[i] = int(b)
	}
	out, err := json.Marshal(ints)
	if err != nil {
		return secret.Value{}, fmt.Errorf("failed to encode %s keypair: %w", k.Role, err)
	}
	v := secret.New(out)
	zeroBytes(out)
	return v, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
