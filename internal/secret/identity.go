package secret

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// LoadOrCreateIdentity reads the age identity at path, generating and
// writing a new one (mode 0600) if the file does not exist.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, bool, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err == nil {
		identity, err := ParseIdentity(data)
		if err != nil {
			return nil, false, fmt.Errorf("failed to parse identity %s: %w", path, err)
		}
		return identity, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to read identity %s: %w", path, err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate age identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, false, fmt.Errorf("failed to create identity directory: %w", err)
	}
	content := fmt.Sprintf("# svmzner state identity\n# public key: %s\n%s\n", identity.Recipient(), identity)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, false, fmt.Errorf("failed to write identity %s: %w", path, err)
	}
	return identity, true, nil
}

// ParseIdentity parses the first AGE-SECRET-KEY line in data, skipping comments.
func ParseIdentity(data []byte) (*age.X25519Identity, error) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return age.ParseX25519Identity(line)
	}
	return nil, fmt.Errorf("no identity found")
}
