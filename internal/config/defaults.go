package config

// Default returns the configuration of the reference deployment: one
// validator with a 250 GiB accounts volume and a 512 GiB ledger volume,
// the reference firewall and the reference validator flags.
func Default() *Config {
	commission := 0
	return &Config{
		Location:   DefaultLocation,
		ServerType: DefaultServerType,
		Image: ImageConfig{
			Name:         DefaultImageName,
			Architecture: DefaultArchitecture,
			Owner:        ImageOwnerSystem,
		},
		SSH: SSHConfig{User: DefaultSSHUser, Port: DefaultSSHPort},
		Firewall: FirewallConfig{Rules: []FirewallRule{
			{Description: "ssh", Protocol: "tcp", Port: "22", SourceIPs: anywhere()},
			{Description: "validator tcp", Protocol: "tcp", Port: DefaultValidatorRange, SourceIPs: anywhere()},
			{Description: "validator udp", Protocol: "udp", Port: DefaultValidatorRange, SourceIPs: anywhere()},
		}},
		Volumes: []VolumeConfig{
			{Role: VolumeRoleAccounts, SizeGiB: DefaultAccountsSizeGiB, IOPSClass: DefaultIOPSClass, MountPath: DefaultAccountsPath},
			{Role: VolumeRoleLedger, SizeGiB: DefaultLedgerSizeGiB, IOPSClass: DefaultIOPSClass, MountPath: DefaultLedgerPath},
		},
		Genesis: GenesisConfig{
			Primordial: []AllocationConfig{
				{Role: "identity", Lamports: DefaultIdentityLamports},
				{Role: "treasury", Lamports: DefaultTreasuryLamports},
				{Role: "faucet", Lamports: DefaultFaucetLamports},
			},
			ClusterType: DefaultClusterType,
		},
		Validator: ValidatorConfig{
			GossipPort:       DefaultGossipPort,
			RPCPort:          DefaultRPCPort,
			DynamicPortRange: DefaultDynamicPortRange,
			RPC: RPCConfig{
				Public:           true,
				FullAPI:          true,
				BindAddress:      "0.0.0.0",
				AllowPrivateAddr: true,
			},
			WALRecoveryMode:              DefaultWALRecoveryMode,
			LimitLedgerSize:              DefaultLimitLedgerSize,
			UseSnapshotArchivesAtStartup: DefaultSnapshotArchivesAtStartup,
			FullSnapshotIntervalSlots:    DefaultFullSnapshotInterval,
			BlockProductionMethod:        DefaultBlockProductionMethod,
			NoWaitForVoteToStartLeader:   true,
			EnableExtendedTxMetadata:     true,
			EnableRPCTransactionHistory:  true,
			MerkleRootUploadAuthority:    MerkleRootAuthorityIdentity,
			CommissionBPS:                &commission,
			ExtraPrograms: map[string]string{
				"tip-payment-program-pubkey":      TipPaymentProgramID,
				"tip-distribution-program-pubkey": TipDistributionProgramID,
			},
		},
		Tools: ToolsConfig{
			Genesis:     DefaultGenesisTool,
			LedgerTool:  DefaultLedgerTool,
			Validator:   DefaultValidator,
			ServiceUser: DefaultServiceUser,
		},
		State:       StateConfig{Backend: StateBackendLocal, Path: DefaultStatePath},
		Secrets:     SecretsConfig{IdentityFile: DefaultIdentityFile},
		Parallelism: DefaultParallelism,
	}
}

// ApplyDefaults fills unset scalar fields with their defaults. Lists and
// booleans are left alone: an empty list is a deliberate choice once the
// config was loaded on top of Default.
func (c *Config) ApplyDefaults() {
	d := Default()

	setString(&c.Location, d.Location)
	setString(&c.ServerType, d.ServerType)
	setString(&c.Image.Name, d.Image.Name)
	setString(&c.Image.Architecture, d.Image.Architecture)
	setString(&c.Image.Owner, d.Image.Owner)
	setString(&c.SSH.User, d.SSH.User)
	setInt(&c.SSH.Port, d.SSH.Port)

	for i := range c.Volumes {
		setString(&c.Volumes[i].IOPSClass, DefaultIOPSClass)
	}
	for i := range c.Firewall.Rules {
		if len(c.Firewall.Rules[i].SourceIPs) == 0 {
			c.Firewall.Rules[i].SourceIPs = anywhere()
		}
	}

	setString(&c.Genesis.ClusterType, d.Genesis.ClusterType)

	v := &c.Validator
	setInt(&v.GossipPort, d.Validator.GossipPort)
	setInt(&v.RPCPort, d.Validator.RPCPort)
	setString(&v.DynamicPortRange, d.Validator.DynamicPortRange)
	setString(&v.RPC.BindAddress, d.Validator.RPC.BindAddress)
	setString(&v.WALRecoveryMode, d.Validator.WALRecoveryMode)
	setString(&v.UseSnapshotArchivesAtStartup, d.Validator.UseSnapshotArchivesAtStartup)
	setString(&v.BlockProductionMethod, d.Validator.BlockProductionMethod)

	setString(&c.Tools.Genesis, d.Tools.Genesis)
	setString(&c.Tools.LedgerTool, d.Tools.LedgerTool)
	setString(&c.Tools.Validator, d.Tools.Validator)
	setString(&c.Tools.ServiceUser, d.Tools.ServiceUser)

	setString(&c.State.Backend, d.State.Backend)
	if c.State.Backend == StateBackendLocal {
		setString(&c.State.Path, d.State.Path)
	}
	setString(&c.Secrets.IdentityFile, d.Secrets.IdentityFile)
	setInt(&c.Parallelism, d.Parallelism)
}

func anywhere() []string {
	return []string{"0.0.0.0/0", "::/0"}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
