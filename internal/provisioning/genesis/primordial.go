package genesis

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// systemProgram owns plain lamport accounts.
const systemProgram = "11111111111111111111111111111111"

type primordialAccount struct {
	Balance    uint64 `yaml:"balance"`
	Owner      string `yaml:"owner"`
	Data       string `yaml:"data"`
	Executable bool   `yaml:"executable"`
}

// PrimordialYAML renders the allocations in the genesis tool's
// --primordial-accounts-file format. Map keys are emitted sorted.
func PrimordialYAML(allocs []Allocation) (string, error) {
	accounts := make(map[string]primordialAccount, len(allocs))
	for _, a := range allocs {
		accounts[a.Pubkey.String()] = primordialAccount{Balance: a.Lamports, Owner: systemProgram}
	}
	out, err := yaml.Marshal(accounts)
	if err != nil {
		return "", fmt.Errorf("failed to render primordial accounts: %w", err)
	}
	return string(out), nil
}
