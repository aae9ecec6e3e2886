// Package orchestration drives a validator deployment from nothing to a
// running service.
//
// The Reconciler evaluates an explicit dependency graph with bounded
// parallelism:
//
//	image ─────┐
//	ssh-key ───┤
//	firewall ──┼─> instance -> connection -> host-ready ─┐
//	volumes ───┘                                        ├─> genesis -> validator
//	role-keys ──────────────────────────────────────────┘
//
// Each node is idempotent and the deployment record is saved after every
// node, so a run can stop anywhere and the next run resumes. The record
// moves through the stages ResourcesProvisioning, KeysGenerated,
// GenesisApplying, GenesisReady, ValidatorLaunching and Running; a failure
// records the stage and node and leaves every resource in place.
//
// # Usage
//
//	r := orchestration.NewReconciler(cfg, orchestration.Deps{
//	    Provider: provider,
//	    Executor: &remote.SSHExecutor{},
//	    Store:    store,
//	    Secrets:  secrets,
//	})
//	result, err := r.Reconcile(ctx)
//
// Destroy is the only path that deletes cloud resources or key material.
package orchestration
