package orchestration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/state"
)

func testRefs() map[keys.Role]keys.Ref {
	refs := map[keys.Role]keys.Ref{}
	for i, role := range keys.Roles {
		var pk keys.PublicKey
		pk[0] = byte(i + 1)
		refs[role] = keys.Ref{Role: role, ID: "devnet/keys/" + string(role), PublicKey: pk}
	}
	return refs
}

func TestFirewallRules(t *testing.T) {
	t.Parallel()

	t.Run("reference rules already cover ssh", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		rules := firewallRules(cfg)
		require.Len(t, rules, 3)
		for _, r := range rules {
			assert.Equal(t, "in", r.Direction)
		}
	})

	t.Run("ssh is added when missing", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.SSH.Port = 2222
		cfg.Firewall.Rules = []config.FirewallRule{
			{Protocol: "udp", Port: "2000-3000", SourceIPs: []string{"10.0.0.0/8"}},
		}
		rules := firewallRules(cfg)
		require.Len(t, rules, 2)
		assert.Equal(t, provisioning.NetworkRule{
			Description: "ssh",
			Direction:   "in",
			Protocol:    "tcp",
			PortRange:   "2222",
			SourceIPs:   []string{"0.0.0.0/0", "::/0"},
		}, rules[1])
	})

	t.Run("a tcp range covering the port counts", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.SSH.Port = 2222
		cfg.Firewall.Rules = []config.FirewallRule{
			{Protocol: "tcp", Port: "2000-3000", SourceIPs: []string{"10.0.0.0/8"}},
		}
		assert.Len(t, firewallRules(cfg), 1)
	})
}

func TestCoversPort(t *testing.T) {
	t.Parallel()
	tests := []struct {
		portRange string
		port      int
		want      bool
	}{
		{"22", 22, true},
		{"8000-8020", 8010, true},
		{"8000-8020", 8021, false},
		{"", 22, false},
		{"garbage", 22, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coversPort(tt.portRange, tt.port), tt.portRange)
	}
}

func TestGenesisSpec(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	refs := testRefs()

	spec, err := genesisSpec(cfg, refs)
	require.NoError(t, err)
	assert.Equal(t, cfg.LedgerPath(), spec.LedgerPath)
	assert.Equal(t, refs[keys.RoleIdentity].PublicKey, spec.IdentityPubkey)
	assert.Equal(t, refs[keys.RoleVote].PublicKey, spec.VotePubkey)
	assert.Equal(t, refs[keys.RoleStake].PublicKey, spec.StakePubkey)
	assert.Equal(t, refs[keys.RoleFaucet].PublicKey, spec.FaucetPubkey)
	assert.Equal(t, refs[keys.RoleTreasury].PublicKey, spec.TreasuryPubkey)

	require.Len(t, spec.Primordial, len(cfg.Genesis.Primordial))
	assert.Equal(t, refs[keys.RoleIdentity].PublicKey, spec.Primordial[0].Pubkey)
	assert.Equal(t, uint64(config.DefaultIdentityLamports), spec.Primordial[0].Lamports)
	assert.Equal(t, cfg.Genesis.ClusterType, spec.Params.ClusterType)
}

func TestGenesisSpec_MissingRole(t *testing.T) {
	t.Parallel()
	refs := testRefs()
	delete(refs, keys.RoleStake)

	_, err := genesisSpec(config.Default(), refs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stake key")
}

func TestValidatorConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	refs := testRefs()
	rec := state.NewRecord("devnet")
	rec.Keys = refs
	rec.GenesisFingerprint = "fp"
	rec.Instance = &provisioning.ComputeInstance{Name: "devnet", PublicAddress: "203.0.113.10"}

	vc, err := validatorConfig(cfg, rec)
	require.NoError(t, err)
	assert.Equal(t, refs[keys.RoleIdentity].PublicKey.String(), vc.MerkleRootUploadAuthority)
	assert.Equal(t, "203.0.113.10", vc.GossipHost, "public address when there is no private one")
	assert.Equal(t, "fp", string(vc.ExpectedGenesisFingerprint))
	assert.Equal(t, cfg.Validator.ExtraPrograms, vc.ExtraPrograms)

	vc.ExtraPrograms["extra"] = "x"
	assert.NotContains(t, cfg.Validator.ExtraPrograms, "extra", "config maps are copied")

	rec.Instance.PrivateAddress = "10.0.0.2"
	cfg.Validator.MerkleRootUploadAuthority = "Auth1111"
	vc, err = validatorConfig(cfg, rec)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", vc.GossipHost)
	assert.Equal(t, "Auth1111", vc.MerkleRootUploadAuthority)
}

func TestValidatorConfig_NeedsKeys(t *testing.T) {
	t.Parallel()
	_, err := validatorConfig(config.Default(), state.NewRecord("devnet"))
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	m := NewMetrics(nil)
	require.NotNil(t, m.Registry())

	m.recordNode("devnet", nodeGenesis, 2*time.Second, nil)
	m.recordNode("devnet", nodeGenesis, time.Second, assert.AnError)
	m.recordRetry("devnet", nodeGenesis)
	m.recordStage("devnet", "GenesisApplying")
	m.recordStage("devnet", "GenesisReady")

	assert.InDelta(t, 1, promtest.ToFloat64(m.nodeTotal.WithLabelValues("devnet", nodeGenesis, resultSuccess)), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.nodeTotal.WithLabelValues("devnet", nodeGenesis, resultFailure)), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.retries.WithLabelValues("devnet", nodeGenesis)), 0)
	assert.Equal(t, 1, promtest.CollectAndCount(m.stage), "only the active stage is set")

	path := filepath.Join(t.TempDir(), "svmzner.prom")
	require.NoError(t, m.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `svmzner_orchestrator_stage{deployment="devnet",stage="GenesisReady"} 1`)
	assert.Contains(t, string(data), "svmzner_orchestrator_remote_retries_total")
}

func TestReadyPollInterval(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10*time.Second, readyPollInterval(time.Hour))
	assert.Equal(t, time.Millisecond, readyPollInterval(time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, readyPollInterval(100*time.Millisecond))
}
