package config

// Config is the top-level deployment configuration.
type Config struct {
	// Deployment names every resource and scopes the stored state and secrets.
	Deployment string `yaml:"deployment"`

	// HCloudToken is the Hetzner Cloud API token. Prefer HCLOUD_TOKEN.
	HCloudToken string `yaml:"hcloud_token,omitempty"`

	Location   string `yaml:"location"`
	ServerType string `yaml:"server_type"`

	Image     ImageConfig       `yaml:"image"`
	SSH       SSHConfig         `yaml:"ssh"`
	Firewall  FirewallConfig    `yaml:"firewall"`
	Volumes   []VolumeConfig    `yaml:"volumes"`
	Genesis   GenesisConfig     `yaml:"genesis"`
	Validator ValidatorConfig   `yaml:"validator"`
	Tools     ToolsConfig       `yaml:"tools"`
	State     StateConfig       `yaml:"state"`
	Secrets   SecretsConfig     `yaml:"secrets"`
	Labels    map[string]string `yaml:"labels,omitempty"`

	// ReverseDNS is a PTR template for the public IPv4 address, e.g.
	// "{{ deployment }}.validators.example.com". Empty leaves the
	// provider's default.
	ReverseDNS string `yaml:"reverse_dns,omitempty"`

	// Parallelism bounds how many provisioning steps run at once.
	Parallelism int `yaml:"parallelism"`
}

// ImageConfig selects the machine image.
type ImageConfig struct {
	// Name is a glob matched against the image name (system images) or
	// description (snapshots).
	Name         string `yaml:"name"`
	Architecture string `yaml:"architecture"`
	// Owner is "system" for provider images or "self" for own snapshots.
	Owner string `yaml:"owner"`
}

// SSHConfig describes how the orchestrator reaches the server.
type SSHConfig struct {
	User string `yaml:"user"`
	Port int    `yaml:"port"`
}

// FirewallConfig holds the inbound rule set. Outbound traffic is unrestricted.
type FirewallConfig struct {
	Rules []FirewallRule `yaml:"rules"`
}

// FirewallRule is one inbound rule.
type FirewallRule struct {
	Description string `yaml:"description,omitempty"`
	Protocol    string `yaml:"protocol"`
	// Port is a single port ("22") or a range ("8000-8020").
	Port      string   `yaml:"port"`
	SourceIPs []string `yaml:"source_ips"`
}

// VolumeConfig declares one block volume and where it is mounted.
type VolumeConfig struct {
	// Role is the logical store, "accounts" or "ledger".
	Role      string `yaml:"role"`
	SizeGiB   int    `yaml:"size_gib"`
	IOPSClass string `yaml:"iops_class,omitempty"`
	MountPath string `yaml:"mount_path"`
}

// GenesisConfig holds the genesis allocations and tool parameters.
type GenesisConfig struct {
	Primordial []AllocationConfig `yaml:"primordial"`
	// ClusterType is passed to solana-genesis --cluster-type.
	ClusterType string `yaml:"cluster_type,omitempty"`
	// HashesPerTick is "auto", "sleep" or a number.
	HashesPerTick string `yaml:"hashes_per_tick,omitempty"`
	SlotsPerEpoch uint64 `yaml:"slots_per_epoch,omitempty"`
	// BootstrapStakeLamports funds the bootstrap validator's stake account.
	BootstrapStakeLamports uint64   `yaml:"bootstrap_stake_lamports,omitempty"`
	ExtraFlags             []string `yaml:"extra_flags,omitempty"`
}

// AllocationConfig funds a role key at genesis.
type AllocationConfig struct {
	Role     string `yaml:"role"`
	Lamports uint64 `yaml:"lamports"`
}

// ValidatorConfig holds validator runtime settings.
type ValidatorConfig struct {
	GossipPort       int    `yaml:"gossip_port"`
	RPCPort          int    `yaml:"rpc_port"`
	DynamicPortRange string `yaml:"dynamic_port_range"`

	RPC RPCConfig `yaml:"rpc"`

	WALRecoveryMode                string `yaml:"wal_recovery_mode"`
	LimitLedgerSize                uint64 `yaml:"limit_ledger_size"`
	UseSnapshotArchivesAtStartup   string `yaml:"use_snapshot_archives_at_startup"`
	FullSnapshotIntervalSlots      uint64 `yaml:"full_snapshot_interval_slots"`
	BlockProductionMethod          string `yaml:"block_production_method"`
	NoWaitForVoteToStartLeader     bool   `yaml:"no_wait_for_vote_to_start_leader"`
	NoVoting                       bool   `yaml:"no_voting"`
	EnableExtendedTxMetadata       bool   `yaml:"enable_extended_tx_metadata_storage"`
	EnableRPCTransactionHistory    bool   `yaml:"enable_rpc_transaction_history"`
	CommissionBPS                  *int   `yaml:"commission_bps,omitempty"`

	// MerkleRootUploadAuthority is a public key, or "identity" for the
	// validator identity key.
	MerkleRootUploadAuthority string `yaml:"merkle_root_upload_authority,omitempty"`

	// ExtraPrograms maps a program flag name to a program ID.
	ExtraPrograms map[string]string `yaml:"extra_programs,omitempty"`
	ExtraFlags    []string          `yaml:"extra_flags,omitempty"`
}

// RPCConfig is the RPC exposure policy.
type RPCConfig struct {
	Public           bool   `yaml:"public"`
	FullAPI          bool   `yaml:"full_api"`
	BindAddress      string `yaml:"bind_address"`
	OnlyKnown        bool   `yaml:"only_known"`
	AllowPrivateAddr bool   `yaml:"allow_private_addr"`
}

// ToolsConfig names the ledger binaries on the server.
type ToolsConfig struct {
	Genesis    string `yaml:"genesis"`
	LedgerTool string `yaml:"ledger_tool"`
	Validator  string `yaml:"validator"`
	// ServiceUser owns the ledger and runs the validator.
	ServiceUser string `yaml:"service_user"`
}

// StateConfig selects where the deployment record and sealed secrets live.
type StateConfig struct {
	// Backend is "local" (bbolt file) or "s3".
	Backend string   `yaml:"backend"`
	Path    string   `yaml:"path,omitempty"`
	S3      S3Config `yaml:"s3,omitempty"`
}

// S3Config configures the S3-compatible state backend.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	// UsePathStyle addresses the bucket as a path segment (MinIO and similar).
	UsePathStyle bool `yaml:"use_path_style,omitempty"`
}

// SecretsConfig locates the age identity that seals key material.
type SecretsConfig struct {
	IdentityFile string `yaml:"identity_file"`
}

// VolumeByRole returns the volume declared for role.
func (c *Config) VolumeByRole(role string) (VolumeConfig, bool) {
	for _, v := range c.Volumes {
		if v.Role == role {
			return v, true
		}
	}
	return VolumeConfig{}, false
}

// LedgerPath is the mount path of the ledger volume.
func (c *Config) LedgerPath() string {
	v, _ := c.VolumeByRole(VolumeRoleLedger)
	return v.MountPath
}

// AccountsPath is the mount path of the accounts volume.
func (c *Config) AccountsPath() string {
	v, _ := c.VolumeByRole(VolumeRoleAccounts)
	return v.MountPath
}
