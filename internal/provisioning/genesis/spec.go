package genesis

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"

	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
)

// Allocation is a starting balance for one public key.
type Allocation struct {
	Pubkey   keys.PublicKey
	Lamports uint64
}

// Params are the ledger parameters handed to the genesis tool.
type Params struct {
	// ClusterType is development, devnet, testnet or mainnet-beta.
	ClusterType string
	// HashesPerTick is "auto", "sleep" or a number; empty keeps the tool default.
	HashesPerTick          string
	SlotsPerEpoch          uint64
	BootstrapStakeLamports uint64
	ExtraFlags             []string
}

// Spec describes the genesis of one ledger.
type Spec struct {
	LedgerPath     string
	IdentityPubkey keys.PublicKey
	VotePubkey     keys.PublicKey
	StakePubkey    keys.PublicKey
	FaucetPubkey   keys.PublicKey
	TreasuryPubkey keys.PublicKey
	Primordial     []Allocation
	Params         Params
}

// Fingerprint is the base58 genesis hash reported by the ledger tool.
type Fingerprint string

// Validate checks that f is a base58 encoded 32-byte hash.
func (f Fingerprint) Validate() error {
	raw, err := base58.Decode(string(f))
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%q is not a genesis hash", string(f))
	}
	return nil
}

func (f Fingerprint) String() string { return string(f) }

var clusterTypes = map[string]bool{
	"development": true, "devnet": true, "testnet": true, "mainnet-beta": true,
}

// managedFlags are set from the spec and may not be overridden.
var managedFlags = []string{
	"--ledger", "--bootstrap-validator", "--faucet-pubkey", "--primordial-accounts-file",
	"--cluster-type", "--hashes-per-tick", "--slots-per-epoch", "--bootstrap-validator-stake-lamports",
}

// Validate reports every violation at once as *provisioning.InvalidGenesisSpecError.
func (s Spec) Validate() error {
	var errs *multierror.Error

	if !path.IsAbs(s.LedgerPath) || path.Clean(s.LedgerPath) != s.LedgerPath || s.LedgerPath == "/" {
		errs = multierror.Append(errs, fmt.Errorf("ledger path %q must be a clean absolute path", s.LedgerPath))
	}

	roles := s.roleKeys()
	owner := make(map[keys.PublicKey]keys.Role, len(roles))
	for _, role := range keys.Roles {
		pk := roles[role]
		if pk.IsZero() {
			errs = multierror.Append(errs, fmt.Errorf("%s pubkey is missing", role))
			continue
		}
		if other, dup := owner[pk]; dup {
			errs = multierror.Append(errs, fmt.Errorf("%s and %s share pubkey %s", other, role, pk))
			continue
		}
		owner[pk] = role
	}

	seen := map[keys.PublicKey]bool{}
	var total uint64
	overflow := false
	for i, a := range s.Primordial {
		if _, ok := owner[a.Pubkey]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("allocation %d: pubkey %s does not belong to a generated role key", i, a.Pubkey))
		}
		if seen[a.Pubkey] {
			errs = multierror.Append(errs, fmt.Errorf("allocation %d: pubkey %s allocated twice", i, a.Pubkey))
		}
		seen[a.Pubkey] = true
		if a.Lamports == 0 {
			errs = multierror.Append(errs, fmt.Errorf("allocation %d: zero lamports for %s", i, a.Pubkey))
		}
		var carry uint64
		total, carry = bits.Add64(total, a.Lamports, 0)
		if carry != 0 {
			overflow = true
		}
	}
	if overflow {
		errs = multierror.Append(errs, fmt.Errorf("total primordial allocation overflows 64 bits"))
	}

	errs = multierror.Append(errs, s.Params.validate()...)

	if err := errs.ErrorOrNil(); err != nil {
		return &provisioning.InvalidGenesisSpecError{Err: err}
	}
	return nil
}

func (p Params) validate() []error {
	var errs []error
	if p.ClusterType != "" && !clusterTypes[p.ClusterType] {
		errs = append(errs, fmt.Errorf("cluster type %q is not one of development, devnet, testnet, mainnet-beta", p.ClusterType))
	}
	switch p.HashesPerTick {
	case "", "auto", "sleep":
	default:
		if _, err := strconv.ParseUint(p.HashesPerTick, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("hashes per tick %q must be auto, sleep or a number", p.HashesPerTick))
		}
	}
	for _, f := range p.ExtraFlags {
		if !strings.HasPrefix(f, "--") {
			errs = append(errs, fmt.Errorf("extra flag %q must start with --", f))
			continue
		}
		name, _, _ := strings.Cut(f, "=")
		for _, m := range managedFlags {
			if name == m {
				errs = append(errs, fmt.Errorf("extra flag %s is managed by svmzner", name))
			}
		}
	}
	return errs
}

func (s Spec) roleKeys() map[keys.Role]keys.PublicKey {
	return map[keys.Role]keys.PublicKey{
		keys.RoleIdentity: s.IdentityPubkey,
		keys.RoleVote:     s.VotePubkey,
		keys.RoleStake:    s.StakePubkey,
		keys.RoleFaucet:   s.FaucetPubkey,
		keys.RoleTreasury: s.TreasuryPubkey,
	}
}

// digestInput is the canonical form of a Spec. Allocations are sorted, so
// their order does not change the digest.
type digestInput struct {
	LedgerPath string
	Roles      map[string]string
	Primordial []digestAllocation
	Params     Params
}

type digestAllocation struct {
	Pubkey   string
	Lamports uint64
}

var digestEncMode cbor.EncMode

func init() {
	var err error
	if digestEncMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// Digest identifies the genesis a spec produces. Two specs with the same
// digest build the same ledger.
func (s Spec) Digest() (string, error) {
	in := digestInput{
		LedgerPath: s.LedgerPath,
		Roles:      map[string]string{},
		Params:     s.Params,
	}
	for role, pk := range s.roleKeys() {
		in.Roles[string(role)] = pk.String()
	}
	for _, a := range s.Primordial {
		in.Primordial = append(in.Primordial, digestAllocation{Pubkey: a.Pubkey.String(), Lamports: a.Lamports})
	}
	sort.Slice(in.Primordial, func(i, j int) bool { return in.Primordial[i].Pubkey < in.Primordial[j].Pubkey })

	data, err := digestEncMode.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode genesis spec: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
