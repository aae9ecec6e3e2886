package validator

import (
	"fmt"
	"net"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/provisioning/genesis"
)

// Ports are the network ports the validator binds.
type Ports struct {
	Gossip int
	RPC    int
	// DynamicRange is "start-end".
	DynamicRange string
}

// RPCPolicy controls how the RPC service is exposed.
type RPCPolicy struct {
	// Public exposes RPC in gossip; a private RPC is only reachable directly.
	Public           bool
	FullAPI          bool
	BindAddress      string
	OnlyKnown        bool
	AllowPrivateAddr bool
}

// Config is the validator runtime configuration.
type Config struct {
	LedgerPath   string
	AccountsPath string

	IdentityKey keys.Ref
	VoteKey     keys.Ref

	ExpectedGenesisFingerprint genesis.Fingerprint

	// GossipHost is the address advertised in gossip; empty lets the
	// validator discover it.
	GossipHost string
	Ports      Ports
	RPC        RPCPolicy

	WALRecoveryMode              string
	LimitLedgerSize              uint64
	UseSnapshotArchivesAtStartup string
	FullSnapshotIntervalSlots    uint64
	BlockProductionMethod        string
	NoWaitForVoteToStartLeader   bool
	NoVoting                     bool
	EnableExtendedTxMetadata     bool
	EnableRPCTransactionHistory  bool
	CommissionBPS                *int
	MerkleRootUploadAuthority    string

	// ExtraPrograms maps a flag name to a program ID.
	ExtraPrograms map[string]string
	ExtraFlags    []string
}

// minDynamicPorts is the smallest dynamic range the validator accepts.
const minDynamicPorts = 14

// reservedPortsEnd is the top of the privileged port range.
const reservedPortsEnd = 1023

var walRecoveryModes = map[string]bool{
	"absolute_consistency": true, "point_in_time": true,
	"tolerate_corrupted_tail_records": true, "skip_any_corrupted_record": true,
}

var snapshotStartupModes = map[string]bool{"always": true, "never": true, "when-newest": true}

// managedFlags are derived from Config and may not appear in ExtraFlags.
var managedFlags = map[string]bool{
	"--identity": true, "--vote-account": true, "--ledger": true, "--accounts": true,
	"--expected-genesis-hash": true, "--gossip-port": true, "--rpc-port": true,
	"--dynamic-port-range": true, "--gossip-host": true, "--log": true,
}

// Validate reports every violation at once as *provisioning.ConfigValidationError.
func (c Config) Validate() error {
	var errs *multierror.Error

	for name, p := range map[string]string{"ledger": c.LedgerPath, "accounts": c.AccountsPath} {
		if !path.IsAbs(p) || path.Clean(p) != p || p == "/" {
			errs = multierror.Append(errs, fmt.Errorf("%s path %q must be a clean absolute path", name, p))
		}
	}
	if c.LedgerPath == c.AccountsPath {
		errs = multierror.Append(errs, fmt.Errorf("ledger and accounts paths must differ"))
	}

	if c.ExpectedGenesisFingerprint == "" {
		errs = multierror.Append(errs, fmt.Errorf("expected genesis fingerprint is empty"))
	} else if err := c.ExpectedGenesisFingerprint.Validate(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("expected genesis fingerprint: %w", err))
	}

	for role, ref := range map[keys.Role]keys.Ref{keys.RoleIdentity: c.IdentityKey, keys.RoleVote: c.VoteKey} {
		if ref.ID == "" || ref.PublicKey.IsZero() {
			errs = multierror.Append(errs, fmt.Errorf("%s key reference is unresolved", role))
		} else if ref.Role != role {
			errs = multierror.Append(errs, fmt.Errorf("%s key reference points at the %s key", role, ref.Role))
		}
	}

	errs = multierror.Append(errs, c.Ports.validate()...)
	errs = multierror.Append(errs, c.validateRuntime()...)

	if err := errs.ErrorOrNil(); err != nil {
		return &provisioning.ConfigValidationError{Err: err}
	}
	return nil
}

func (p Ports) validate() []error {
	var errs []error
	start, end, err := config.ParsePortRange(p.DynamicRange)
	if err != nil {
		errs = append(errs, fmt.Errorf("dynamic port range: %w", err))
	} else {
		if start <= reservedPortsEnd {
			errs = append(errs, fmt.Errorf("dynamic port range %s overlaps the reserved ports 1-%d", p.DynamicRange, reservedPortsEnd))
		}
		if end-start+1 < minDynamicPorts {
			errs = append(errs, fmt.Errorf("dynamic port range %s has %d ports, need at least %d", p.DynamicRange, end-start+1, minDynamicPorts))
		}
	}

	for name, port := range map[string]int{"gossip": p.Gossip, "rpc": p.RPC} {
		switch {
		case port < 1 || port > 65535:
			errs = append(errs, fmt.Errorf("%s port %d out of range", name, port))
		case port <= reservedPortsEnd:
			errs = append(errs, fmt.Errorf("%s port %d is in the reserved range 1-%d", name, port, reservedPortsEnd))
		case err == nil && port >= start && port <= end:
			errs = append(errs, fmt.Errorf("%s port %d overlaps dynamic port range %s", name, port, p.DynamicRange))
		}
	}
	if p.Gossip == p.RPC {
		errs = append(errs, fmt.Errorf("gossip and rpc share port %d", p.Gossip))
	}
	return errs
}

func (c Config) validateRuntime() []error {
	var errs []error
	if c.GossipHost != "" && net.ParseIP(c.GossipHost) == nil {
		errs = append(errs, fmt.Errorf("gossip host %q is not an IP address", c.GossipHost))
	}
	if c.RPC.BindAddress != "" && net.ParseIP(c.RPC.BindAddress) == nil {
		errs = append(errs, fmt.Errorf("rpc bind address %q is not an IP address", c.RPC.BindAddress))
	}
	if c.WALRecoveryMode != "" && !walRecoveryModes[c.WALRecoveryMode] {
		errs = append(errs, fmt.Errorf("unknown wal recovery mode %q", c.WALRecoveryMode))
	}
	if c.UseSnapshotArchivesAtStartup != "" && !snapshotStartupModes[c.UseSnapshotArchivesAtStartup] {
		errs = append(errs, fmt.Errorf("use-snapshot-archives-at-startup %q must be always, never or when-newest", c.UseSnapshotArchivesAtStartup))
	}
	if c.CommissionBPS != nil && (*c.CommissionBPS < 0 || *c.CommissionBPS > 10000) {
		errs = append(errs, fmt.Errorf("commission %d bps must be between 0 and 10000", *c.CommissionBPS))
	}
	if c.MerkleRootUploadAuthority != "" {
		if _, err := keys.ParsePublicKey(c.MerkleRootUploadAuthority); err != nil {
			errs = append(errs, fmt.Errorf("merkle root upload authority: %w", err))
		}
	}
	for flag, program := range c.ExtraPrograms {
		if flag == "" || strings.HasPrefix(flag, "-") || strings.ContainsAny(flag, " =") {
			errs = append(errs, fmt.Errorf("extra program flag %q must be a bare flag name", flag))
		}
		if _, err := keys.ParsePublicKey(program); err != nil {
			errs = append(errs, fmt.Errorf("extra program %s: %w", flag, err))
		}
	}
	for _, f := range c.ExtraFlags {
		name, _, _ := strings.Cut(f, "=")
		switch {
		case !strings.HasPrefix(f, "--"):
			errs = append(errs, fmt.Errorf("extra flag %q must start with --", f))
		case managedFlags[name]:
			errs = append(errs, fmt.Errorf("extra flag %s is managed by svmzner", name))
		}
	}
	return errs
}
