package validator

import (
	"path"
	"sort"
	"strconv"
)

// Layout places the validator's files on the host.
type Layout struct {
	KeyDir      string
	StartScript string
	Unit        string
	StateFile   string
}

// DefaultLayout is used when a Launcher is created without one.
var DefaultLayout = Layout{
	KeyDir:      "/etc/svmzner/keys",
	StartScript: "/usr/local/bin/svmzner-validator",
	Unit:        "svmzner-validator",
	StateFile:   "/var/lib/svmzner/validator.digest",
}

// IdentityKeyFile is where the identity keypair is written.
func (l Layout) IdentityKeyFile() string { return path.Join(l.KeyDir, "identity.json") }

// VoteKeyFile is where the vote account keypair is written.
func (l Layout) VoteKeyFile() string { return path.Join(l.KeyDir, "vote.json") }

// Args returns the validator command line, excluding the binary.
func (c Config) Args(l Layout) []string {
	args := []string{
		"--identity", l.IdentityKeyFile(),
		"--vote-account", l.VoteKeyFile(),
		"--ledger", c.LedgerPath,
		"--accounts", c.AccountsPath,
		"--expected-genesis-hash", string(c.ExpectedGenesisFingerprint),
		"--gossip-port", strconv.Itoa(c.Ports.Gossip),
		"--rpc-port", strconv.Itoa(c.Ports.RPC),
		"--dynamic-port-range", c.Ports.DynamicRange,
	}
	if c.GossipHost != "" {
		args = append(args, "--gossip-host", c.GossipHost)
	}

	if c.RPC.BindAddress != "" {
		args = append(args, "--rpc-bind-address", c.RPC.BindAddress)
	}
	if c.RPC.FullAPI {
		args = append(args, "--full-rpc-api")
	}
	if !c.RPC.Public {
		args = append(args, "--private-rpc")
	}
	if c.RPC.OnlyKnown {
		args = append(args, "--only-known-rpc")
	}
	if c.RPC.AllowPrivateAddr {
		args = append(args, "--allow-private-addr")
	}

	if c.WALRecoveryMode != "" {
		args = append(args, "--wal-recovery-mode", c.WALRecoveryMode)
	}
	if c.LimitLedgerSize > 0 {
		args = append(args, "--limit-ledger-size", strconv.FormatUint(c.LimitLedgerSize, 10))
	}
	if c.UseSnapshotArchivesAtStartup != "" {
		args = append(args, "--use-snapshot-archives-at-startup", c.UseSnapshotArchivesAtStartup)
	}
	if c.FullSnapshotIntervalSlots > 0 {
		args = append(args, "--full-snapshot-interval-slots", strconv.FormatUint(c.FullSnapshotIntervalSlots, 10))
	}
	if c.BlockProductionMethod != "" {
		args = append(args, "--block-production-method", c.BlockProductionMethod)
	}
	if c.NoWaitForVoteToStartLeader {
		args = append(args, "--no-wait-for-vote-to-start-leader")
	}
	if c.NoVoting {
		args = append(args, "--no-voting")
	}
	if c.EnableExtendedTxMetadata {
		args = append(args, "--enable-extended-tx-metadata-storage")
	}
	if c.EnableRPCTransactionHistory {
		args = append(args, "--enable-rpc-transaction-history")
	}
	if c.MerkleRootUploadAuthority != "" {
		args = append(args, "--merkle-root-upload-authority", c.MerkleRootUploadAuthority)
	}
	if c.CommissionBPS != nil {
		args = append(args, "--commission-bps", strconv.Itoa(*c.CommissionBPS))
	}

	flags := make([]string, 0, len(c.ExtraPrograms))
	for flag := range c.ExtraPrograms {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	for _, flag := range flags {
		args = append(args, "--"+flag, c.ExtraPrograms[flag])
	}

	args = append(args, c.ExtraFlags...)
	return append(args, "--log", "-")
}
