package keygen

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/svmzner/internal/secret"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerateED25519KeyPair(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateED25519KeyPair(nil, "svmzner")
	if err != nil {
		t.Fatalf("GenerateED25519KeyPair failed: %v", err)
	}

	if !strings.HasPrefix(string(keyPair.PublicKey), "ssh-ed25519 ") {
		t.Errorf("expected ssh-ed25519 public key, got %q", keyPair.PublicKey)
	}

	signer, err := ssh.ParsePrivateKey(keyPair.PrivateKey.Reveal())
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}
	if !bytes.Equal(ssh.MarshalAuthorizedKey(signer.PublicKey()), keyPair.PublicKey) {
		t.Error("public key does not match private key")
	}
}

func TestGenerateED25519KeyPair_Unique(t *testing.T) {
	t.Parallel()
	a, err := GenerateED25519KeyPair(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateED25519KeyPair(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.PublicKey, b.PublicKey) {
		t.Error("expected distinct key pairs")
	}
}

func TestGenerateED25519KeyPair_RandomFailure(t *testing.T) {
	t.Parallel()
	if _, err := GenerateED25519KeyPair(failingReader{}, ""); err == nil {
		t.Error("expected error from failing randomness source")
	}
}

func TestGenerateED25519KeyPair_PrivateKeyRedacted(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateED25519KeyPair(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := keyPair.PrivateKey.String(); got != secret.Redacted {
		t.Errorf("expected redacted private key, got %q", got)
	}
}

func TestPublicKeyFromPrivate(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateED25519KeyPair(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	pub, err := PublicKeyFromPrivate(keyPair.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pub, keyPair.PublicKey) {
		t.Error("derived public key mismatch")
	}

	if _, err := PublicKeyFromPrivate(secret.NewString("not a key")); err == nil {
		t.Error("expected parse error")
	}
}
