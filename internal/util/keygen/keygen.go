package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/svmzner/internal/secret"
)

// KeyPair holds an SSH key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the ed25519 private key in OpenSSH PEM format.
	PrivateKey secret.Value
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateED25519KeyPair generates a new ed25519 SSH key pair. A nil r
// uses crypto/rand.
func GenerateED25519KeyPair(r io.Reader, comment string) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 private key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode SSH private key: %w", err)
	}
	privateKeyPEM := pem.EncodeToMemory(block)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	kp := &KeyPair{
		PrivateKey: secret.New(privateKeyPEM),
		PublicKey:  ssh.MarshalAuthorizedKey(sshPub),
	}
	for i := range privateKeyPEM {
		privateKeyPEM[i] = 0
	}
	return kp, nil
}

// PublicKeyFromPrivate derives the authorized_keys line of a stored private key.
func PublicKeyFromPrivate(private secret.Value) ([]byte, error) {
	raw := private.Reveal()
	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH private key: %w", err)
	}
	return ssh.MarshalAuthorizedKey(signer.PublicKey()), nil
}
