package orchestration_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/orchestration"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/provisioning/bootstrap"
	"github.com/imamik/svmzner/internal/provisioning/genesis"
	"github.com/imamik/svmzner/internal/provisioning/validator"
	"github.com/imamik/svmzner/internal/remote"
	"github.com/imamik/svmzner/internal/secret"
	"github.com/imamik/svmzner/internal/state"
	testutil "github.com/imamik/svmzner/internal/testing"
)

// firstAddr is the address FakeProvider gives the first server.
const firstAddr = "203.0.113.10:22"

type harness struct {
	t        *testing.T
	cfg      *config.Config
	provider *testutil.FakeProvider
	host     *testutil.FakeHost
	store    *state.MemoryStore
	secrets  *secret.SealedStore
	locks    *remote.HostLocks
	observer *recordingObserver
	registry *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Deployment = "devnet"

	store := state.NewMemoryStore()
	return &harness{
		t:        t,
		cfg:      cfg,
		provider: testutil.NewFakeProvider(),
		host:     testutil.NewFakeHost(),
		store:    store,
		secrets:  secret.NewSealedStore(store, identity),
		locks:    remote.NewHostLocks(),
		observer: &recordingObserver{},
	}
}

// reconciler builds a fresh reconciler, as a new CLI invocation would.
func (h *harness) reconciler() *orchestration.Reconciler {
	return h.reconcilerWith(h.provider)
}

func (h *harness) reconcilerWith(provider provisioning.ResourceProvider) *orchestration.Reconciler {
	h.registry = prometheus.NewRegistry()
	return orchestration.NewReconciler(h.cfg, orchestration.Deps{
		Provider: provider,
		Executor: h.host,
		Store:    h.store,
		Secrets:  h.secrets,
		Observer: h.observer,
		Timeouts: config.TestTimeouts(),
		Registry: h.registry,
		Locks:    h.locks,
		WaitForPort: func(context.Context, string, int, time.Duration) error {
			return nil
		},
	})
}

func (h *harness) apply() (*orchestration.Result, error) {
	return h.reconciler().Reconcile(testutil.TestContext(h.t))
}

func (h *harness) record() *state.Record {
	h.t.Helper()
	rec, err := h.store.Load(context.Background(), h.cfg.Deployment)
	require.NoError(h.t, err)
	return rec
}

func TestReconcile_ReferenceDeployment(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	res, err := h.apply()
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, state.StageRunning, rec.Stage)
	assert.Nil(t, rec.Failure)
	assert.Equal(t, state.StageInit, res.Resumed)

	// Resources
	assert.Equal(t, 1, h.provider.Creates("ssh_key"))
	assert.Equal(t, 1, h.provider.Creates("firewall"))
	assert.Equal(t, 2, h.provider.Creates("volume"))
	assert.Equal(t, 1, h.provider.Creates("server"))
	assert.Equal(t, int64(114), rec.Image.ID, "newest matching image")

	spec, ok := h.provider.Server("devnet")
	require.True(t, ok)
	assert.Equal(t, "ccx33", spec.ServerType)
	assert.Len(t, spec.Volumes, 2)
	assert.Contains(t, spec.FirstBootScript, "/home/sol/ledger")
	assert.Contains(t, spec.FirstBootScript, "/home/sol/accounts")
	assert.Equal(t, rec.Instance.FirstBootScript, spec.FirstBootScript)

	accounts := rec.Volumes[config.VolumeRoleAccounts]
	ledger := rec.Volumes[config.VolumeRoleLedger]
	assert.Equal(t, 250, accounts.SizeGiB)
	assert.Equal(t, 512, ledger.SizeGiB)
	assert.Equal(t, "io2-16000", ledger.IOPSClass)

	// Keys
	require.Len(t, rec.Keys, len(keys.Roles))
	seen := map[keys.PublicKey]bool{}
	for _, role := range keys.Roles {
		ref := rec.Keys[role]
		assert.False(t, ref.PublicKey.IsZero(), role)
		assert.False(t, seen[ref.PublicKey], "roles must not share keys")
		seen[ref.PublicKey] = true
	}
	assert.Equal(t, "devnet/ssh/private", rec.SSHPrivateKeyID)

	// Genesis and validator
	marker := h.host.Marker(firstAddr, "/home/sol/ledger")
	require.NotNil(t, marker)
	assert.Equal(t, rec.GenesisDigest, marker.SpecDigest)
	assert.Equal(t, string(marker.Fingerprint), rec.GenesisFingerprint)

	running, digest := h.host.Running(firstAddr)
	assert.True(t, running)
	assert.Equal(t, rec.ValidatorDigest, digest)
	assert.Equal(t, string(validator.StatusStarted), rec.LaunchStatus)

	files := h.host.KeyFiles(firstAddr)
	require.Contains(t, files, "identity")
	require.Contains(t, files, "vote")
	assert.Equal(t, "0600", files["identity"].Mode)
}

func TestReconcile_StepOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.apply()
	require.NoError(t, err)

	assert.Equal(t, []string{
		bootstrap.OperationHostReady,
		genesis.OperationProbe,
		genesis.OperationCreate,
		validator.OperationLaunch,
	}, h.host.Operations())

	assert.Equal(t, []string{
		string(state.StageResourcesProvisioning),
		string(state.StageKeysGenerated),
		string(state.StageGenesisApplying),
		string(state.StageGenesisReady),
		string(state.StageValidatorLaunching),
		string(state.StageRunning),
	}, h.observer.stages())

	// genesis starts only after both of its inputs completed
	phases := h.observer.phases()
	assert.Less(t, indexOf(phases, "completed:host-ready"), indexOf(phases, "started:genesis"))
	assert.Less(t, indexOf(phases, "completed:role-keys"), indexOf(phases, "started:genesis"))
	assert.Less(t, indexOf(phases, "completed:genesis"), indexOf(phases, "started:validator"))
	assert.Less(t, indexOf(phases, "completed:volumes"), indexOf(phases, "started:instance"))
}

func TestReconcile_RerunConverges(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	first, err := h.apply()
	require.NoError(t, err)
	creates := h.provider.TotalCreates()

	second, err := h.apply()
	require.NoError(t, err)

	assert.Equal(t, state.StageRunning, second.Record.Stage)
	assert.Equal(t, state.StageRunning, second.Resumed)
	assert.Equal(t, creates, h.provider.TotalCreates(), "no resource may be created twice")
	assert.Equal(t, 1, h.host.CallCount(genesis.OperationCreate), "genesis is never rebuilt")
	assert.Equal(t, 2, h.host.CallCount(genesis.OperationProbe))
	assert.Equal(t, string(validator.StatusAlreadyRunning), second.Record.LaunchStatus)

	assert.Equal(t, first.Record.Keys, second.Record.Keys, "keys are never regenerated")
	assert.Equal(t, first.Record.GenesisFingerprint, second.Record.GenesisFingerprint)
	assert.Equal(t, first.Record.ValidatorDigest, second.Record.ValidatorDigest)
	assert.Equal(t, first.Record.Image, second.Record.Image)
}

func TestReconcile_FailureKeepsResourcesAndResumes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.FailNext("EnsureComputeInstance", errors.New("server limit reached"))

	_, err := h.apply()
	require.Error(t, err)

	var stageErr *provisioning.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "instance", stageErr.Node)
	assert.Equal(t, string(state.StageResourcesProvisioning), stageErr.Stage)
	assert.Contains(t, err.Error(), "server limit reached")
	assert.Contains(t, err.Error(), "left intact")

	rec := h.record()
	assert.Equal(t, state.StageFailed, rec.Stage)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, "instance", rec.Failure.Node)
	assert.Equal(t, state.StageResourcesProvisioning, rec.Failure.Stage)
	assert.Len(t, rec.Volumes, 2, "created volumes stay referenced")
	assert.Equal(t, 4, h.provider.ResourceCount(), "ssh key, firewall and volumes are kept")
	assert.Empty(t, h.host.Operations())

	res, err := h.apply()
	require.NoError(t, err)
	assert.Equal(t, state.StageRunning, res.Record.Stage)
	assert.Equal(t, state.StageFailed, res.Resumed)
	assert.Nil(t, res.Record.Failure)
	assert.Equal(t, 2, h.provider.Creates("volume"))
	assert.Equal(t, 1, h.provider.Creates("ssh_key"))
	assert.Equal(t, 1, h.provider.Creates("server"))
}

func TestReconcile_RetriesTransientRemoteFaults(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.host.FailNext(validator.OperationLaunch, &testutil.TransientError{Msg: "connection reset by peer"})
	h.host.InterruptCreate(1)

	res, err := h.apply()
	require.NoError(t, err)
	assert.Equal(t, state.StageRunning, res.Record.Stage)

	// The interrupted create is re-probed before it is run again.
	assert.Equal(t, 2, h.host.CallCount(genesis.OperationProbe))
	assert.Equal(t, 2, h.host.CallCount(genesis.OperationCreate))
	assert.Equal(t, 2, h.host.CallCount(validator.OperationLaunch))
	assert.NotNil(t, h.host.Marker(firstAddr, "/home/sol/ledger"))

	assert.Equal(t, 2, promtest.CollectAndCount(h.registry, "svmzner_orchestrator_remote_retries_total"))
}

func TestReconcile_WaitsForFirstBoot(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.host.SetBooting(3)

	_, err := h.apply()
	require.NoError(t, err)
	assert.Equal(t, 4, h.host.CallCount(bootstrap.OperationHostReady))
}

func TestReconcile_ServerWithoutAddress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.provider.SetAddressless(true)

	_, err := h.apply()
	require.Error(t, err)
	var stageErr *provisioning.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "connection", stageErr.Node)
	var incomplete *provisioning.IncompleteInstanceError
	assert.ErrorAs(t, err, &incomplete)

	h.provider.AssignAddress("devnet", "198.51.100.7")
	res, err := h.apply()
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", res.Record.Instance.PublicAddress)
	assert.Equal(t, 1, h.provider.Creates("server"))

	running, _ := h.host.Running("198.51.100.7:22")
	assert.True(t, running)
}

func TestReconcile_ReverseDNS(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.cfg.ReverseDNS = "{{ deployment }}.{{ ip-labels }}.example.com"

	_, err := h.apply()
	require.NoError(t, err)
	assert.Equal(t, "devnet.10.113.0.203.example.com", h.provider.ReverseDNS("203.0.113.10"))
	assert.Contains(t, h.observer.phases(), "completed:reverse-dns")
}

func TestReconcile_ReverseDNSFailureIsAWarning(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.cfg.ReverseDNS = "{{ hostname }}.example.com"
	h.provider.FailNext("SetReverseDNS", errors.New("rdns quota exceeded"))

	res, err := h.apply()
	require.NoError(t, err)
	assert.Equal(t, state.StageRunning, res.Record.Stage)
	assert.Equal(t, 1, h.host.CallCount(genesis.OperationCreate))
	require.Len(t, res.Record.Warnings, 1)
	assert.Contains(t, res.Record.Warnings[0], "rdns quota exceeded")
	assert.Equal(t, res.Record.Warnings, h.record().Warnings)
	assert.Empty(t, h.provider.ReverseDNS("203.0.113.10"))

	again, err := h.apply()
	require.NoError(t, err)
	assert.Empty(t, again.Record.Warnings, "a successful retry clears the warning")
	assert.Equal(t, "devnet.example.com", h.provider.ReverseDNS("203.0.113.10"))
}

func TestReconcile_RetiredImageKeepsPin(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	first, err := h.apply()
	require.NoError(t, err)
	pinned := first.Record.Image

	h.provider.ReleaseImage(pinned.ID, provisioning.ImageRef{
		ID: 120, Name: pinned.Name, Created: pinned.Created.Add(24 * time.Hour),
	})

	second, err := h.apply()
	require.NoError(t, err)
	assert.Equal(t, state.StageRunning, second.Record.Stage)
	assert.Equal(t, pinned, second.Record.Image)
	assert.Equal(t, 1, h.provider.Creates("server"))
}

func TestReconcile_UnmanagedGenesisIsNotTouched(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.host.SetUnmanagedGenesis(firstAddr, "/home/sol/ledger")

	_, err := h.apply()
	require.Error(t, err)

	var stageErr *provisioning.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "genesis", stageErr.Node)
	assert.Equal(t, string(state.StageGenesisApplying), stageErr.Stage)
	var conflict *provisioning.GenesisConflictError
	assert.ErrorAs(t, err, &conflict)

	assert.Zero(t, h.host.CallCount(genesis.OperationCreate))
	assert.Zero(t, h.host.CallCount(validator.OperationLaunch))
	assert.Nil(t, h.host.Marker(firstAddr, "/home/sol/ledger"))
}

func TestReconcile_ChangedGenesisSpecConflicts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	first, err := h.apply()
	require.NoError(t, err)

	h.cfg.Genesis.Primordial[0].Lamports++
	_, err = h.apply()
	require.Error(t, err)

	var conflict *provisioning.GenesisConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.Record.GenesisDigest, conflict.ExistingDigest)
	assert.NotEqual(t, conflict.ExistingDigest, conflict.RequestedDigest)

	assert.Equal(t, 1, h.host.CallCount(genesis.OperationCreate))
	running, digest := h.host.Running(firstAddr)
	assert.True(t, running, "the running validator is left alone")
	assert.Equal(t, first.Record.ValidatorDigest, digest)
}

func TestReconcile_GenesisMismatchDoesNotStartValidator(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.host.SetLedgerHash(firstAddr, "/home/sol/ledger", "SomeOtherGenesisHash")

	_, err := h.apply()
	require.Error(t, err)

	var stageErr *provisioning.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "validator", stageErr.Node)
	assert.Equal(t, string(state.StageValidatorLaunching), stageErr.Stage)
	var mismatch *provisioning.GenesisMismatchError
	assert.ErrorAs(t, err, &mismatch)

	running, _ := h.host.Running(firstAddr)
	assert.False(t, running)
	assert.Empty(t, h.host.KeyFiles(firstAddr), "nothing is written before the genesis check")
}

func TestReconcile_ValidatorConfigChangeRestarts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	first, err := h.apply()
	require.NoError(t, err)

	h.cfg.Validator.LimitLedgerSize = 60_000_000
	second, err := h.apply()
	require.NoError(t, err)

	assert.Equal(t, string(validator.StatusRestarted), second.Record.LaunchStatus)
	assert.NotEqual(t, first.Record.ValidatorDigest, second.Record.ValidatorDigest)
	assert.Equal(t, 1, h.host.CallCount(genesis.OperationCreate))
}

func TestReconcile_LostKeyIsNotSilentlyReplaced(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.apply()
	require.NoError(t, err)

	require.NoError(t, h.secrets.Delete(context.Background(), "devnet/keys/vote"))

	_, err = h.apply()
	require.Error(t, err)
	var stageErr *provisioning.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "role-keys", stageErr.Node)
	assert.Contains(t, err.Error(), "vote")
	assert.Equal(t, 1, h.host.CallCount(validator.OperationLaunch))
}

func TestReconcile_InvalidConfigStopsBeforeAnyCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.cfg.Location = "mars1"

	_, err := h.apply()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid location")
	assert.Empty(t, h.provider.Calls())
	assert.Zero(t, h.store.Saves())
}

func TestReconcile_CancelledRunIsRecorded(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.reconciler().Reconcile(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	rec := h.record()
	assert.Equal(t, state.StageFailed, rec.Stage)
	assert.Zero(t, h.provider.ResourceCount())
}

func TestReconcile_NoSecretsOutsideSecretStore(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	res, err := h.apply()
	require.NoError(t, err)
	ctx := context.Background()

	var secrets [][]byte
	sshKey, err := h.secrets.Get(ctx, res.Record.SSHPrivateKeyID)
	require.NoError(t, err)
	secrets = append(secrets, sshKey.Reveal())

	keyring := keys.NewKeyring(h.cfg.Deployment, h.secrets, nil)
	for _, ref := range res.Record.Keys {
		kp, err := keyring.Resolve(ctx, ref)
		require.NoError(t, err)
		secrets = append(secrets, kp.Private.Reveal())
		kpJSON, err := kp.KeypairJSON()
		require.NoError(t, err)
		secrets = append(secrets, kpJSON.Reveal())
	}

	raw := h.store.RawRecord(h.cfg.Deployment)
	logs := h.observer.text()
	for _, s := range secrets {
		assert.False(t, bytes.Contains(raw, s), "record holds private material")
		assert.NotContains(t, logs, string(s))
		for _, call := range h.host.Calls() {
			for name, v := range call.Vars {
				assert.NotContains(t, v, string(s), "variable %s of %s", name, call.Operation)
			}
		}
	}

	for _, call := range h.host.Calls() {
		assert.Equal(t, call.Operation == validator.OperationLaunch, call.HadStdin, call.Operation)
	}
}

func TestReconcile_Metrics(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	r := h.reconciler()

	_, err := r.Reconcile(testutil.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, 10, promtest.CollectAndCount(h.registry, "svmzner_orchestrator_node_runs_total"))
	assert.Equal(t, 10, promtest.CollectAndCount(h.registry, "svmzner_orchestrator_node_duration_seconds"))

	gauge := `
# HELP svmzner_orchestrator_stage Current deployment stage (1 for the active stage)
# TYPE svmzner_orchestrator_stage gauge
svmzner_orchestrator_stage{deployment="devnet",stage="Running"} 1
`
	assert.NoError(t, promtest.GatherAndCompare(h.registry, strings.NewReader(gauge), "svmzner_orchestrator_stage"))
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.apply()
	require.NoError(t, err)
	ctx := testutil.TestContext(t)

	require.NoError(t, h.reconciler().Destroy(ctx, orchestration.DestroyOptions{}))

	assert.Zero(t, h.provider.ResourceCount())
	assert.Equal(t, 1, h.provider.Deletes("server"))
	assert.Equal(t, 2, h.provider.Deletes("volume"))
	assert.Empty(t, h.store.BlobKeys(), "sealed keys are removed")
	_, err = h.store.Load(ctx, "devnet")
	assert.ErrorIs(t, err, state.ErrNotFound)

	// Destroy converges too.
	require.NoError(t, h.reconciler().Destroy(ctx, orchestration.DestroyOptions{}))
}

func TestDestroy_KeepSecretsAndSweep(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	sweeper := &sweepingProvider{FakeProvider: h.provider}
	_, err := h.reconcilerWith(sweeper).Reconcile(testutil.TestContext(t))
	require.NoError(t, err)

	err = h.reconcilerWith(sweeper).Destroy(testutil.TestContext(t), orchestration.DestroyOptions{Sweep: true, KeepSecrets: true})
	require.NoError(t, err)

	require.Len(t, sweeper.selectors, 1)
	assert.Equal(t, map[string]string{"svmzner.io/deployment": "devnet"}, sweeper.selectors[0])
	assert.Len(t, h.store.BlobKeys(), len(keys.Roles)+1)
}

func TestDestroy_SweepNeedsSupport(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	err := h.reconciler().Destroy(testutil.TestContext(t), orchestration.DestroyOptions{Sweep: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot sweep")
}

func TestStatusAndOutputs(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	res, err := h.apply()
	require.NoError(t, err)
	ctx := testutil.TestContext(t)
	r := h.reconciler()

	st, err := r.Status(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, state.StageRunning, st.Stage)
	assert.Equal(t, "203.0.113.10", st.PublicAddress)
	assert.Nil(t, st.Service)

	st, err = r.Status(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, st.Service)
	assert.Equal(t, "active", st.Service.Active)
	assert.False(t, st.Drifted)

	h.host.StopService(firstAddr)
	st, err = r.Status(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "inactive", st.Service.Active)

	out, err := r.Outputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", out.PublicAddress)
	assert.Equal(t, "root", out.SSHUser)
	assert.Equal(t, secret.Redacted, out.SSHPrivateKey.String())
	assert.Contains(t, string(out.SSHPrivateKey.Reveal()), "OPENSSH PRIVATE KEY")
	assert.Equal(t, res.Record.Instance.PublicAddress, out.PublicAddress)
}

func TestStatus_UnknownDeployment(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.reconciler().Status(testutil.TestContext(t), false)
	assert.ErrorIs(t, err, state.ErrNotFound)
	_, err = h.reconciler().Outputs(testutil.TestContext(t))
	assert.ErrorIs(t, err, state.ErrNotFound)
}

type sweepingProvider struct {
	*testutil.FakeProvider
	mu        sync.Mutex
	selectors []map[string]string
}

func (s *sweepingProvider) CleanupByLabel(_ context.Context, labels map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectors = append(s.selectors, labels)
	return nil
}

// recordingObserver keeps every event and log line.
type recordingObserver struct {
	mu     sync.Mutex
	events []provisioning.Event
	lines  []string
}

func (o *recordingObserver) Printf(format string, v ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, fmt.Sprintf(format, v...))
}

func (o *recordingObserver) Event(e provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
	o.lines = append(o.lines, e.Message)
}

func (o *recordingObserver) Progress(string, int, int) {}

func (o *recordingObserver) WithFields(map[string]string) provisioning.Observer { return o }

func (o *recordingObserver) stages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, e := range o.events {
		if e.Type == provisioning.EventStageChanged {
			out = append(out, e.Fields["to"])
		}
	}
	return out
}

func (o *recordingObserver) phases() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, e := range o.events {
		switch e.Type {
		case provisioning.EventPhaseStarted:
			out = append(out, "started:"+e.Phase)
		case provisioning.EventPhaseCompleted:
			out = append(out, "completed:"+e.Phase)
		}
	}
	return out
}

func (o *recordingObserver) text() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.lines, "\n")
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
