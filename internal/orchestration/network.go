package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/provisioning/bootstrap"
	"github.com/imamik/svmzner/internal/remote"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/naming"
	"github.com/imamik/svmzner/internal/util/rdns"
	"github.com/imamik/svmzner/internal/util/retry"
)

// connect builds the connection descriptor. A server without an address
// yet is polled until the provider reports one.
func (r *Reconciler) connect(ctx context.Context) error {
	var instance *provisioning.ComputeInstance
	r.view(func(rec *state.Record) {
		if rec.Instance != nil {
			c := *rec.Instance
			instance = &c
		}
	})
	credential := r.run.credential()

	ctx, cancel := context.WithTimeout(ctx, r.timeouts.ServerIP)
	defer cancel()

	var (
		conn    remote.Descriptor
		pending error
	)
	err := retry.WithExponentialBackoff(ctx, func() error {
		d, err := remote.Build(instance, credential, r.cfg.SSH.User, r.cfg.SSH.Port)
		if err == nil {
			conn = d
			return nil
		}
		var incomplete *provisioning.IncompleteInstanceError
		if !errors.As(err, &incomplete) || instance == nil {
			return retry.Fatal(err)
		}
		pending = err

		current, getErr := r.provider.GetComputeInstance(ctx, naming.Server(r.cfg.Deployment))
		switch {
		case getErr != nil:
			return getErr
		case current == nil:
			return retry.Fatal(fmt.Errorf("server %s disappeared", instance.Name))
		}
		instance.PublicAddress = current.PublicAddress
		instance.PrivateAddress = current.PrivateAddress
		return err
	},
		retry.WithMaxRetries(-1),
		retry.WithInitialDelay(r.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(r.timeouts.ServerIP),
	)
	if err != nil && pending != nil && ctx.Err() != nil {
		return fmt.Errorf("gave up after %v: %w", r.timeouts.ServerIP, pending)
	}
	if err != nil {
		return err
	}

	r.run.setConn(conn)
	r.update(func(rec *state.Record) {
		if rec.Instance != nil {
			rec.Instance.PublicAddress = instance.PublicAddress
			rec.Instance.PrivateAddress = instance.PrivateAddress
		}
	})
	r.observer.Printf("[%s] Host reachable as %s", nodeConnection, conn)
	return nil
}

// setReverseDNS points the PTR record of the public address at the
// configured name.
func (r *Reconciler) setReverseDNS(ctx context.Context) error {
	var instance provisioning.ComputeInstance
	r.view(func(rec *state.Record) {
		if rec.Instance != nil {
			instance = *rec.Instance
		}
	})

	ptr, err := rdns.Render(r.cfg.ReverseDNS, rdns.TemplateVars{
		Deployment: r.cfg.Deployment,
		Hostname:   instance.Name,
		ID:         instance.ID,
		Location:   r.cfg.Location,
		IPAddress:  instance.PublicAddress,
	})
	if err == nil {
		err = r.provider.SetReverseDNS(ctx, instance.ID, instance.PublicAddress, ptr)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		warning := fmt.Sprintf("reverse DNS of %s not set: %v", instance.PublicAddress, err)
		r.observer.Printf("[%s] Warning: %s", nodeReverseDNS, warning)
		r.update(func(rec *state.Record) { rec.Warnings = append(rec.Warnings, warning) })
		return nil
	}
	r.observer.Printf("[%s] %s -> %s", nodeReverseDNS, instance.PublicAddress, ptr)
	return nil
}

// waitForHost blocks until SSH answers and the first boot finished with
// every volume mounted and every tool installed.
func (r *Reconciler) waitForHost(ctx context.Context) error {
	conn := r.run.conn()

	ctx, cancel := context.WithTimeout(ctx, r.timeouts.HostReady)
	defer cancel()

	if err := r.waitForPort(ctx, conn.Host, conn.Port, r.timeouts.HostReady); err != nil {
		return fmt.Errorf("ssh on %s did not open: %w", conn.Addr(), err)
	}

	mounts := make([]string, 0, len(r.cfg.Volumes))
	for _, v := range r.cfg.Volumes {
		mounts = append(mounts, v.MountPath)
	}
	tools := []string{r.cfg.Tools.Genesis, r.cfg.Tools.LedgerTool, r.cfg.Tools.Validator}

	return retry.WithExponentialBackoff(ctx, func() error {
		return bootstrap.CheckReady(ctx, r.exec, conn, mounts, tools)
	},
		retry.WithMaxRetries(-1),
		retry.WithInitialDelay(r.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(readyPollInterval(r.timeouts.HostReady)),
		retry.WithRetryIf(provisioning.IsTransient),
		retry.WithOnRetry(func(attempt int, err error) {
			r.metrics.recordRetry(r.cfg.Deployment, nodeHostReady)
			if attempt%10 == 1 {
				r.observer.Printf("[%s] Waiting for %s: %v", nodeHostReady, conn.Addr(), errors.Unwrap(err))
			}
		}),
	)
}

// readyPollInterval caps the wait between readiness probes.
func readyPollInterval(budget time.Duration) time.Duration {
	d := budget / 20
	switch {
	case d > 10*time.Second:
		return 10 * time.Second
	case d < time.Millisecond:
		return time.Millisecond
	}
	return d
}
