package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/provisioning/genesis"
	"github.com/imamik/svmzner/internal/provisioning/validator"
	"github.com/imamik/svmzner/internal/remote"
	"github.com/imamik/svmzner/internal/secret"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/async"
	"github.com/imamik/svmzner/internal/util/netutil"
)

// Deps are the collaborators a Reconciler drives. Provider, Executor, Store
// and Secrets are required.
type Deps struct {
	Provider provisioning.ResourceProvider
	Executor remote.Executor
	Store    state.Store
	Secrets  secret.Store

	Observer provisioning.Observer
	Timeouts *config.Timeouts
	// Registry receives the orchestration metrics; nil creates a private one.
	Registry *prometheus.Registry
	// Random seeds key generation; nil uses crypto/rand.
	Random io.Reader
	// Locks serializes remote steps per host; share it between reconcilers
	// that may target the same host.
	Locks *remote.HostLocks
	// WaitForPort defaults to netutil.WaitForPort.
	WaitForPort netutil.PortWaiter
}

// Result summarizes a successful run.
type Result struct {
	Record *state.Record
	// Resumed is the stage the previous run stopped in.
	Resumed state.Stage
}

// Reconciler drives one deployment to Running. Runs are re-entrant: every
// step is idempotent, so running again after success or failure converges
// without duplicating resources or regenerating keys.
type Reconciler struct {
	cfg         *config.Config
	provider    provisioning.ResourceProvider
	exec        remote.Executor
	store       state.Store
	secrets     secret.Store
	keyring     *keys.Keyring
	constructor *genesis.Constructor
	launcher    *validator.Launcher
	locks       *remote.HostLocks
	observer    provisioning.Observer
	metrics     *Metrics
	timeouts    *config.Timeouts
	random      io.Reader
	waitForPort netutil.PortWaiter

	// mu guards rec and done while graph nodes run concurrently.
	mu   sync.Mutex
	rec  *state.Record
	done map[string]bool
	run  *runState
}

// NewReconciler creates a reconciler for cfg.
func NewReconciler(cfg *config.Config, deps Deps) *Reconciler {
	r := &Reconciler{
		cfg:         cfg,
		provider:    deps.Provider,
		exec:        deps.Executor,
		store:       deps.Store,
		secrets:     deps.Secrets,
		locks:       deps.Locks,
		observer:    deps.Observer,
		timeouts:    deps.Timeouts,
		random:      deps.Random,
		waitForPort: deps.WaitForPort,
	}
	if r.observer == nil {
		r.observer = provisioning.NopObserver{}
	}
	if r.timeouts == nil {
		r.timeouts = config.LoadTimeouts()
	}
	if r.locks == nil {
		r.locks = remote.NewHostLocks()
	}
	if r.waitForPort == nil {
		r.waitForPort = netutil.WaitForPort
	}
	r.metrics = NewMetrics(deps.Registry)

	r.keyring = keys.NewKeyring(cfg.Deployment, deps.Secrets, keys.NewGenerator(deps.Random))
	r.constructor = genesis.NewConstructor(deps.Executor,
		genesis.Tools{Genesis: cfg.Tools.Genesis, LedgerTool: cfg.Tools.LedgerTool},
		cfg.Tools.ServiceUser, r.observer)
	r.launcher = validator.NewLauncher(deps.Executor, r.keyring,
		validator.Tools{Validator: cfg.Tools.Validator, LedgerTool: cfg.Tools.LedgerTool},
		cfg.Tools.ServiceUser, validator.WithObserver(r.observer))
	return r
}

// Metrics returns the metrics of this reconciler's runs.
func (r *Reconciler) Metrics() *Metrics {
	return r.metrics
}

// Reconcile evaluates the provisioning graph to completion. On failure the
// record is saved as Failed and a *provisioning.StageError is returned;
// cloud resources and keys are kept so the next run resumes.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	rec, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	resumed := rec.Stage
	if rec.Failure != nil {
		r.observer.Printf("Resuming %s after failure in stage %s at %s: %s",
			r.cfg.Deployment, rec.Failure.Stage, rec.Failure.Node, rec.Failure.Cause)
	}

	r.mu.Lock()
	r.rec = rec
	r.rec.Failure = nil
	r.rec.Warnings = nil
	r.done = map[string]bool{}
	r.run = &runState{}
	r.mu.Unlock()

	// A run revalidates every step, so it starts from the bottom stage.
	r.setStage(state.StageResourcesProvisioning)
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := r.buildGraph().Run(ctx); err != nil {
		return nil, r.fail(ctx, err)
	}

	provisioning.LogPhaseComplete(r.observer, "apply", time.Since(start))
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Result{Record: r.rec.Clone(), Resumed: resumed}, nil
}

func (r *Reconciler) load(ctx context.Context) (*state.Record, error) {
	rec, err := r.store.Load(ctx, r.cfg.Deployment)
	switch {
	case errors.Is(err, state.ErrNotFound):
		return state.NewRecord(r.cfg.Deployment), nil
	case err != nil:
		return nil, fmt.Errorf("failed to load state of %s: %w", r.cfg.Deployment, err)
	}
	return rec, nil
}

// fail records the failed node and returns the terminal error.
func (r *Reconciler) fail(ctx context.Context, err error) error {
	node := ""
	cause := err
	var nodeErr *async.NodeError
	if errors.As(err, &nodeErr) {
		node, cause = nodeErr.Node, nodeErr.Err
	}

	r.mu.Lock()
	stage := r.rec.Stage
	r.rec.Failure = &state.Failure{
		Stage: stage,
		Node:  node,
		Cause: cause.Error(),
		At:    time.Now().UTC(),
	}
	r.mu.Unlock()
	r.setStage(state.StageFailed)

	// The record must land even when ctx was what stopped the run.
	if saveErr := r.checkpoint(context.WithoutCancel(ctx)); saveErr != nil {
		r.observer.Printf("Failed to save state after failure: %v", saveErr)
	}
	return &provisioning.StageError{Stage: string(stage), Node: node, Err: cause}
}

// advance moves the record forward to stage. Stages never move backwards
// within a run.
func (r *Reconciler) advance(stage state.Stage) {
	r.mu.Lock()
	from := r.rec.Stage
	if stage.Rank() <= from.Rank() {
		r.mu.Unlock()
		return
	}
	r.rec.Stage = stage
	r.mu.Unlock()

	provisioning.LogStageChanged(r.observer, string(from), string(stage))
	r.metrics.recordStage(r.cfg.Deployment, string(stage))
}

// setStage moves the record to stage unconditionally.
func (r *Reconciler) setStage(stage state.Stage) {
	r.mu.Lock()
	from := r.rec.Stage
	r.rec.Stage = stage
	r.mu.Unlock()

	if from != stage {
		provisioning.LogStageChanged(r.observer, string(from), string(stage))
	}
	r.metrics.recordStage(r.cfg.Deployment, string(stage))
}

// checkpoint persists a snapshot of the record.
func (r *Reconciler) checkpoint(ctx context.Context) error {
	r.mu.Lock()
	r.rec.UpdatedAt = time.Now().UTC()
	snapshot := r.rec.Clone()
	r.mu.Unlock()

	if err := r.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save state of %s: %w", r.cfg.Deployment, err)
	}
	return nil
}

func (r *Reconciler) update(fn func(rec *state.Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.rec)
}

func (r *Reconciler) view(fn func(rec *state.Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.rec)
}

// runState holds values that live for one run only and are never persisted.
type runState struct {
	mu   sync.Mutex
	cred secret.Value
	desc remote.Descriptor
}

func (s *runState) setCredential(v secret.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = v
}

func (s *runState) credential() secret.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

func (s *runState) setConn(d remote.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desc = d
}

func (s *runState) conn() remote.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}
