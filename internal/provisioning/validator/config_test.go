package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
)

const testFingerprint = "4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZAMdL4VZHirAn"

func ref(t *testing.T, role keys.Role) keys.Ref {
	t.Helper()
	kp, err := keys.NewGenerator(nil).Generate(role)
	require.NoError(t, err)
	return keys.Ref{Role: role, ID: "test/keys/" + string(role), PublicKey: kp.PublicKey}
}

func referenceConfig(t *testing.T) Config {
	t.Helper()
	commission := 0
	identity := ref(t, keys.RoleIdentity)
	return Config{
		LedgerPath:                 "/home/sol/ledger",
		AccountsPath:               "/home/sol/accounts",
		IdentityKey:                identity,
		VoteKey:                    ref(t, keys.RoleVote),
		ExpectedGenesisFingerprint: testFingerprint,
		GossipHost:                 "10.0.0.2",
		Ports:                      Ports{Gossip: 8001, RPC: 8899, DynamicRange: "8002-8020"},
		RPC: RPCPolicy{
			Public:           true,
			FullAPI:          true,
			BindAddress:      "0.0.0.0",
			AllowPrivateAddr: true,
		},
		WALRecoveryMode:              "skip_any_corrupted_record",
		LimitLedgerSize:              50_000_000,
		UseSnapshotArchivesAtStartup: "when-newest",
		FullSnapshotIntervalSlots:    1000,
		BlockProductionMethod:        "central-scheduler",
		NoWaitForVoteToStartLeader:   true,
		EnableExtendedTxMetadata:     true,
		EnableRPCTransactionHistory:  true,
		CommissionBPS:                &commission,
		MerkleRootUploadAuthority:    identity.PublicKey.String(),
		ExtraPrograms: map[string]string{
			"tip-payment-program-pubkey":      config.TipPaymentProgramID,
			"tip-distribution-program-pubkey": config.TipDistributionProgramID,
		},
	}
}

func TestConfigValidate_Accepts(t *testing.T) {
	t.Parallel()
	require.NoError(t, referenceConfig(t).Validate())
}

func TestConfigValidate_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"empty fingerprint", func(c *Config) { c.ExpectedGenesisFingerprint = "" }, "fingerprint is empty"},
		{"bad fingerprint", func(c *Config) { c.ExpectedGenesisFingerprint = "xyz" }, "not a genesis hash"},
		{"unresolved identity", func(c *Config) { c.IdentityKey = keys.Ref{} }, "identity key reference is unresolved"},
		{"swapped keys", func(c *Config) { c.VoteKey, c.IdentityKey = c.IdentityKey, c.VoteKey }, "points at the"},
		{"gossip in dynamic range", func(c *Config) { c.Ports.Gossip = 8010 }, "gossip port 8010 overlaps dynamic port range"},
		{"rpc reserved", func(c *Config) { c.Ports.RPC = 443 }, "rpc port 443 is in the reserved range"},
		{"dynamic range reserved", func(c *Config) { c.Ports.DynamicRange = "1000-1100" }, "overlaps the reserved ports"},
		{"dynamic range too small", func(c *Config) { c.Ports.DynamicRange = "8002-8005" }, "need at least"},
		{"dynamic range malformed", func(c *Config) { c.Ports.DynamicRange = "8020-8002" }, "end before start"},
		{"shared port", func(c *Config) { c.Ports.RPC = c.Ports.Gossip }, "share port"},
		{"same paths", func(c *Config) { c.AccountsPath = c.LedgerPath }, "must differ"},
		{"relative ledger", func(c *Config) { c.LedgerPath = "ledger" }, "clean absolute path"},
		{"gossip host", func(c *Config) { c.GossipHost = "validator.local" }, "not an IP address"},
		{"wal mode", func(c *Config) { c.WALRecoveryMode = "yolo" }, "wal recovery mode"},
		{"snapshot mode", func(c *Config) { c.UseSnapshotArchivesAtStartup = "sometimes" }, "use-snapshot-archives-at-startup"},
		{"commission", func(c *Config) { v := 10001; c.CommissionBPS = &v }, "commission"},
		{"program id", func(c *Config) { c.ExtraPrograms["tip-payment-program-pubkey"] = "nope" }, "extra program"},
		{"program flag", func(c *Config) { c.ExtraPrograms["--x"] = config.TipPaymentProgramID }, "bare flag name"},
		{"managed extra flag", func(c *Config) { c.ExtraFlags = []string{"--ledger=/tmp"} }, "managed by svmzner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := referenceConfig(t)
			tt.mutate(&c)

			err := c.Validate()
			require.Error(t, err)
			var invalid *provisioning.ConfigValidationError
			require.True(t, errors.As(err, &invalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestArgs_ReferenceFlags(t *testing.T) {
	t.Parallel()
	c := referenceConfig(t)
	args := strings.Join(c.Args(DefaultLayout), " ")

	for _, want := range []string{
		"--identity /etc/svmzner/keys/identity.json",
		"--vote-account /etc/svmzner/keys/vote.json",
		"--ledger /home/sol/ledger",
		"--accounts /home/sol/accounts",
		"--expected-genesis-hash " + testFingerprint,
		"--gossip-port 8001",
		"--rpc-port 8899",
		"--dynamic-port-range 8002-8020",
		"--gossip-host 10.0.0.2",
		"--rpc-bind-address 0.0.0.0",
		"--full-rpc-api",
		"--allow-private-addr",
		"--wal-recovery-mode skip_any_corrupted_record",
		"--limit-ledger-size 50000000",
		"--use-snapshot-archives-at-startup when-newest",
		"--full-snapshot-interval-slots 1000",
		"--block-production-method central-scheduler",
		"--no-wait-for-vote-to-start-leader",
		"--enable-extended-tx-metadata-storage",
		"--enable-rpc-transaction-history",
		"--merkle-root-upload-authority " + c.IdentityKey.PublicKey.String(),
		"--commission-bps 0",
		"--tip-distribution-program-pubkey " + config.TipDistributionProgramID + " --tip-payment-program-pubkey " + config.TipPaymentProgramID,
	} {
		assert.Contains(t, args, want)
	}
	assert.NotContains(t, args, "--private-rpc")
	assert.NotContains(t, args, "--no-voting")
	assert.True(t, strings.HasSuffix(args, "--log -"))
}

func TestArgs_PrivateRPC(t *testing.T) {
	t.Parallel()
	c := referenceConfig(t)
	c.RPC = RPCPolicy{OnlyKnown: true}
	c.NoVoting = true
	args := strings.Join(c.Args(DefaultLayout), " ")

	assert.Contains(t, args, "--private-rpc")
	assert.Contains(t, args, "--only-known-rpc")
	assert.Contains(t, args, "--no-voting")
	assert.NotContains(t, args, "--full-rpc-api")
	assert.NotContains(t, args, "--rpc-bind-address")
}
