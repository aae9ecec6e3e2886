package keys

import "fmt"

// Role names the function a key pair serves in the network.
type Role string

const (
	RoleIdentity Role = "identity"
	RoleVote     Role = "vote"
	RoleStake    Role = "stake"
	RoleFaucet   Role = "faucet"
	RoleTreasury Role = "treasury"
)

// Roles lists every role a deployment generates a key pair for, in a stable order.
var Roles = []Role{RoleIdentity, RoleVote, RoleStake, RoleFaucet, RoleTreasury}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts a config string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown key role %q", s)
	}
	return r, nil
}
