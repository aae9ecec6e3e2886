package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/svmzner/internal/secret"
)

// Ref identifies a role key pair held in the secret store. It carries no
// private material and is safe to persist.
type Ref struct {
	Role      Role
	ID        string
	PublicKey PublicKey
}

// Keyring enforces generate-once semantics for a deployment's role keys.
type Keyring struct {
	deployment string
	store      secret.Store
	gen        *Generator
}

// NewKeyring creates a keyring scoped to one deployment.
func NewKeyring(deployment string, store secret.Store, gen *Generator) *Keyring {
	if gen == nil {
		gen = NewGenerator(nil)
	}
	return &Keyring{deployment: deployment, store: store, gen: gen}
}

// SecretID returns the secret store ID of role's key pair.
func (k *Keyring) SecretID(role Role) string {
	return fmt.Sprintf("%s/keys/%s", k.deployment, role)
}

// Ensure returns a reference to role's key pair, generating and sealing it
// on first use. An existing key is never regenerated.
func (k *Keyring) Ensure(ctx context.Context, role Role) (Ref, bool, error) {
	id := k.SecretID(role)

	stored, err := k.store.Get(ctx, id)
	switch {
	case err == nil:
		kp, err := FromPrivate(role, stored)
		if err != nil {
			return Ref{}, false, err
		}
		return Ref{Role: role, ID: id, PublicKey: kp.PublicKey}, false, nil
	case !errors.Is(err, secret.ErrNotFound):
		return Ref{}, false, err
	}

	kp, err := k.gen.Generate(role)
	if err != nil {
		return Ref{}, false, err
	}
	if err := k.store.Put(ctx, id, kp.Private); err != nil {
		return Ref{}, false, err
	}
	return Ref{Role: role, ID: id, PublicKey: kp.PublicKey}, true, nil
}

// EnsureAll ensures every role and returns the references keyed by role.
func (k *Keyring) EnsureAll(ctx context.Context) (map[Role]Ref, int, error) {
	refs := make(map[Role]Ref, len(Roles))
	created := 0
	for _, role := range Roles {
		ref, isNew, err := k.Ensure(ctx, role)
		if err != nil {
			return nil, created, err
		}
		if isNew {
			created++
		}
		refs[role] = ref
	}
	return refs, created, nil
}

// Resolve loads the key pair behind ref. The public key must match the
// reference, otherwise the reference is stale.
func (k *Keyring) Resolve(ctx context.Context, ref Ref) (KeyPair, error) {
	if ref.ID == "" {
		return KeyPair{}, fmt.Errorf("%s key reference is empty", ref.Role)
	}
	stored, err := k.store.Get(ctx, ref.ID)
	if err != nil {
		return KeyPair{}, err
	}
	kp, err := FromPrivate(ref.Role, stored)
	if err != nil {
		return KeyPair{}, err
	}
	if kp.PublicKey != ref.PublicKey {
		return KeyPair{}, fmt.Errorf("%s key %s does not match its reference", ref.Role, ref.ID)
	}
	return kp, nil
}

// Destroy removes every role key of the deployment. Used only on teardown.
func (k *Keyring) Destroy(ctx context.Context) error {
	for _, role := range Roles {
		if err := k.store.Delete(ctx, k.SecretID(role)); err != nil {
			return err
		}
	}
	return nil
}
