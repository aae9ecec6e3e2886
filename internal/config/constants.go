package config

// Volume roles. Each maps to exactly one volume and mount path.
const (
	VolumeRoleAccounts = "accounts"
	VolumeRoleLedger   = "ledger"
)

// State backends.
const (
	StateBackendLocal = "local"
	StateBackendS3    = "s3"
)

// Image owners.
const (
	ImageOwnerSystem = "system"
	ImageOwnerSelf   = "self"
)

// MerkleRootAuthorityIdentity selects the validator identity key as the
// merkle root upload authority.
const MerkleRootAuthorityIdentity = "identity"

// Defaults reproducing the reference single-node deployment.
const (
	DefaultLocation     = "fsn1"
	DefaultServerType   = "ccx33"
	DefaultImageName    = "debian-12*"
	DefaultArchitecture = "x86"
	DefaultSSHUser      = "root"
	DefaultSSHPort      = 22
	DefaultIOPSClass    = "io2-16000"

	DefaultAccountsSizeGiB = 250
	DefaultLedgerSizeGiB   = 512
	DefaultAccountsPath    = "/home/sol/accounts"
	DefaultLedgerPath      = "/home/sol/ledger"

	DefaultGossipPort       = 8001
	DefaultRPCPort          = 8899
	DefaultDynamicPortRange = "8002-8020"
	DefaultValidatorRange   = "8000-8020"

	DefaultWALRecoveryMode           = "skip_any_corrupted_record"
	DefaultLimitLedgerSize           = 50_000_000
	DefaultSnapshotArchivesAtStartup = "when-newest"
	DefaultFullSnapshotInterval      = 1000
	DefaultBlockProductionMethod     = "central-scheduler"

	DefaultIdentityLamports = 10_000_000_000
	DefaultTreasuryLamports = 100_000_000_000_000
	DefaultFaucetLamports   = 1_000_000_000_000

	DefaultClusterType = "development"

	DefaultGenesisTool = "solana-genesis"
	DefaultLedgerTool  = "agave-ledger-tool"
	DefaultValidator   = "agave-validator"
	DefaultServiceUser = "sol"

	DefaultStatePath    = ".svmzner/state.db"
	DefaultIdentityFile = ".svmzner/age.key"
	DefaultParallelism  = 4
)

// Program IDs the reference deployment passes to the validator.
const (
	TipPaymentProgramID      = "DThZmRNNXh7kvTQW9hXeGoWGPKktK8pgVAyoTLjH7UrT"
	TipDistributionProgramID = "FjrdANjvo76aCYQ4kf9FM1R8aESUcEE6F8V7qyoVUQcM"
)
