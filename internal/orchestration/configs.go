package orchestration

import (
	"fmt"
	"maps"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning/genesis"
	"github.com/imamik/svmzner/internal/provisioning/validator"
	"github.com/imamik/svmzner/internal/state"
)

// genesisSpec binds the configured allocations to the generated role keys.
func genesisSpec(cfg *config.Config, refs map[keys.Role]keys.Ref) (genesis.Spec, error) {
	spec := genesis.Spec{
		LedgerPath: cfg.LedgerPath(),
		Params: genesis.Params{
			ClusterType:            cfg.Genesis.ClusterType,
			HashesPerTick:          cfg.Genesis.HashesPerTick,
			SlotsPerEpoch:          cfg.Genesis.SlotsPerEpoch,
			BootstrapStakeLamports: cfg.Genesis.BootstrapStakeLamports,
			ExtraFlags:             append([]string(nil), cfg.Genesis.ExtraFlags...),
		},
	}

	targets := []struct {
		role keys.Role
		dst  *keys.PublicKey
	}{
		{keys.RoleIdentity, &spec.IdentityPubkey},
		{keys.RoleVote, &spec.VotePubkey},
		{keys.RoleStake, &spec.StakePubkey},
		{keys.RoleFaucet, &spec.FaucetPubkey},
		{keys.RoleTreasury, &spec.TreasuryPubkey},
	}
	for _, t := range targets {
		ref, ok := refs[t.role]
		if !ok {
			return genesis.Spec{}, fmt.Errorf("%s key has not been generated", t.role)
		}
		*t.dst = ref.PublicKey
	}

	for _, a := range cfg.Genesis.Primordial {
		role, err := keys.ParseRole(a.Role)
		if err != nil {
			return genesis.Spec{}, fmt.Errorf("primordial allocation: %w", err)
		}
		spec.Primordial = append(spec.Primordial, genesis.Allocation{
			Pubkey:   refs[role].PublicKey,
			Lamports: a.Lamports,
		})
	}
	return spec, nil
}

// validatorConfig derives the launch configuration from the config and
// what earlier steps recorded. Gossip advertises the private address when
// the server has one.
func validatorConfig(cfg *config.Config, rec *state.Record) (validator.Config, error) {
	identity, ok := rec.Keys[keys.RoleIdentity]
	if !ok {
		return validator.Config{}, fmt.Errorf("identity key has not been generated")
	}
	vote, ok := rec.Keys[keys.RoleVote]
	if !ok {
		return validator.Config{}, fmt.Errorf("vote key has not been generated")
	}

	v := cfg.Validator
	authority := v.MerkleRootUploadAuthority
	if authority == config.MerkleRootAuthorityIdentity {
		authority = identity.PublicKey.String()
	}

	var gossipHost string
	if rec.Instance != nil {
		gossipHost = rec.Instance.PrivateAddress
		if gossipHost == "" {
			gossipHost = rec.Instance.PublicAddress
		}
	}

	return validator.Config{
		LedgerPath:                 cfg.LedgerPath(),
		AccountsPath:               cfg.AccountsPath(),
		IdentityKey:                identity,
		VoteKey:                    vote,
		ExpectedGenesisFingerprint: genesis.Fingerprint(rec.GenesisFingerprint),
		GossipHost:                 gossipHost,
		Ports: validator.Ports{
			Gossip:       v.GossipPort,
			RPC:          v.RPCPort,
			DynamicRange: v.DynamicPortRange,
		},
		RPC: validator.RPCPolicy{
			Public:           v.RPC.Public,
			FullAPI:          v.RPC.FullAPI,
			BindAddress:      v.RPC.BindAddress,
			OnlyKnown:        v.RPC.OnlyKnown,
			AllowPrivateAddr: v.RPC.AllowPrivateAddr,
		},
		WALRecoveryMode:              v.WALRecoveryMode,
		LimitLedgerSize:              v.LimitLedgerSize,
		UseSnapshotArchivesAtStartup: v.UseSnapshotArchivesAtStartup,
		FullSnapshotIntervalSlots:    v.FullSnapshotIntervalSlots,
		BlockProductionMethod:        v.BlockProductionMethod,
		NoWaitForVoteToStartLeader:   v.NoWaitForVoteToStartLeader,
		NoVoting:                     v.NoVoting,
		EnableExtendedTxMetadata:     v.EnableExtendedTxMetadata,
		EnableRPCTransactionHistory:  v.EnableRPCTransactionHistory,
		CommissionBPS:                v.CommissionBPS,
		MerkleRootUploadAuthority:    authority,
		ExtraPrograms:                maps.Clone(v.ExtraPrograms),
		ExtraFlags:                   append([]string(nil), v.ExtraFlags...),
	}, nil
}
