package orchestration

import (
	"context"
	"time"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/provisioning/genesis"
	"github.com/imamik/svmzner/internal/provisioning/validator"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/async"
	"github.com/imamik/svmzner/internal/util/retry"
)

// Graph node names.
const (
	nodeImage      = "image"
	nodeSSHKey     = "ssh-key"
	nodeFirewall   = "firewall"
	nodeRoleKeys   = "role-keys"
	nodeVolumes    = "volumes"
	nodeInstance   = "instance"
	nodeConnection = "connection"
	nodeReverseDNS = "reverse-dns"
	nodeHostReady  = "host-ready"
	nodeGenesis    = "genesis"
	nodeValidator  = "validator"
)

// entryStages are entered when a node starts.
var entryStages = map[string]state.Stage{
	nodeGenesis:   state.StageGenesisApplying,
	nodeValidator: state.StageValidatorLaunching,
}

// stageGates are reached once every listed node succeeded. host-ready
// transitively covers every cloud resource.
var stageGates = []struct {
	stage state.Stage
	after []string
}{
	{state.StageKeysGenerated, []string{nodeHostReady, nodeRoleKeys}},
	{state.StageGenesisReady, []string{nodeGenesis}},
	{state.StageRunning, []string{nodeValidator}},
}

// buildGraph declares the provisioning graph. Data only flows along edges:
// a node reads what its dependencies recorded.
func (r *Reconciler) buildGraph() *async.Graph {
	g := async.NewGraph(r.cfg.Parallelism, async.Hooks{
		OnStart: func(node string) {
			provisioning.LogPhaseStart(r.observer, node)
		},
		OnDone: func(node string, elapsed time.Duration, err error) {
			r.metrics.recordNode(r.cfg.Deployment, node, elapsed, err)
			if err != nil {
				provisioning.LogPhaseFailed(r.observer, node, err)
				return
			}
			provisioning.LogPhaseComplete(r.observer, node, elapsed)
		},
	})

	g.MustAdd(r.node(nodeImage, nil, r.ensureImage))
	g.MustAdd(r.node(nodeSSHKey, nil, r.ensureSSHKey))
	g.MustAdd(r.node(nodeFirewall, nil, r.ensureFirewall))
	g.MustAdd(r.node(nodeRoleKeys, nil, r.ensureRoleKeys))
	g.MustAdd(r.node(nodeVolumes, nil, r.ensureVolumes))
	g.MustAdd(r.node(nodeInstance, []string{nodeImage, nodeSSHKey, nodeFirewall, nodeVolumes}, r.ensureInstance))
	g.MustAdd(r.node(nodeConnection, []string{nodeInstance}, r.connect))
	g.MustAdd(r.node(nodeHostReady, []string{nodeConnection}, r.waitForHost))
	if r.cfg.ReverseDNS != "" {
		g.MustAdd(r.node(nodeReverseDNS, []string{nodeConnection}, r.setReverseDNS))
	}
	g.MustAdd(r.node(nodeGenesis, []string{nodeHostReady, nodeRoleKeys}, r.applyGenesis))
	g.MustAdd(r.node(nodeValidator, []string{nodeGenesis}, r.launchValidator))
	return g
}

// node wraps run with stage bookkeeping and a checkpoint of the record.
func (r *Reconciler) node(name string, deps []string, run func(context.Context) error) async.Node {
	return async.Node{
		Name: name,
		Deps: deps,
		Run: func(ctx context.Context) error {
			if stage, ok := entryStages[name]; ok {
				r.advance(stage)
				if err := r.checkpoint(ctx); err != nil {
					return err
				}
			}
			if err := run(ctx); err != nil {
				return err
			}
			r.completed(name)
			return r.checkpoint(ctx)
		},
	}
}

// completed marks name done and advances through every gate it opened.
func (r *Reconciler) completed(name string) {
	r.mu.Lock()
	r.done[name] = true
	var reached []state.Stage
	for _, gate := range stageGates {
		open := true
		for _, n := range gate.after {
			open = open && r.done[n]
		}
		if open {
			reached = append(reached, gate.stage)
		}
	}
	r.mu.Unlock()

	for _, stage := range reached {
		r.advance(stage)
	}
}

func (r *Reconciler) applyGenesis(ctx context.Context) error {
	var (
		spec genesis.Spec
		err  error
	)
	r.view(func(rec *state.Record) { spec, err = genesisSpec(r.cfg, rec.Keys) })
	if err != nil {
		return err
	}
	digest, err := spec.Digest()
	if err != nil {
		return err
	}

	conn := r.run.conn()
	unlock := r.locks.Lock(conn.Addr())
	defer unlock()

	var fingerprint genesis.Fingerprint
	err = r.retryRemote(ctx, nodeGenesis, func(ctx context.Context) error {
		fp, err := r.constructor.Apply(ctx, conn, spec)
		fingerprint = fp
		return err
	})
	if err != nil {
		return err
	}

	r.observer.Printf("[%s] Genesis %s ready at %s", nodeGenesis, fingerprint, spec.LedgerPath)
	r.update(func(rec *state.Record) {
		rec.GenesisDigest = digest
		rec.GenesisFingerprint = fingerprint.String()
	})
	return nil
}

func (r *Reconciler) launchValidator(ctx context.Context) error {
	var (
		cfg validator.Config
		err error
	)
	r.view(func(rec *state.Record) { cfg, err = validatorConfig(r.cfg, rec) })
	if err != nil {
		return err
	}

	conn := r.run.conn()
	unlock := r.locks.Lock(conn.Addr())
	defer unlock()

	var result validator.LaunchResult
	err = r.retryRemote(ctx, nodeValidator, func(ctx context.Context) error {
		res, err := r.launcher.Launch(ctx, conn, cfg)
		result = res
		return err
	})
	if err != nil {
		return err
	}

	r.observer.Printf("[%s] Validator %s (config %s)", nodeValidator, result.Status, result.ConfigDigest)
	r.update(func(rec *state.Record) {
		rec.ValidatorDigest = result.ConfigDigest
		rec.LaunchStatus = string(result.Status)
	})
	return nil
}

// retryRemote retries transient remote failures with bounded backoff. Each
// attempt gets its own deadline. Genesis and launch re-probe the host on
// every attempt, so a retry never repeats a committed step.
func (r *Reconciler) retryRemote(ctx context.Context, node string, op func(context.Context) error) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeouts.RemoteApply)
		defer cancel()
		return op(attemptCtx)
	},
		retry.WithMaxRetries(r.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(r.timeouts.RetryInitialDelay),
		retry.WithRetryIf(provisioning.IsTransient),
		retry.WithOnRetry(func(attempt int, err error) {
			r.metrics.recordRetry(r.cfg.Deployment, node)
			r.observer.Printf("[%s] Attempt %d failed, retrying: %v", node, attempt, err)
		}),
	)
}
