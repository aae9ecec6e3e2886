// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/orchestration"
	"github.com/imamik/svmzner/internal/platform/hcloud"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/remote"
	"github.com/imamik/svmzner/internal/secret"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/netutil"
)

// Reconciler interface for testing - matches orchestration.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context) (*orchestration.Result, error)
	Status(ctx context.Context, live bool) (*orchestration.Status, error)
	Outputs(ctx context.Context) (*orchestration.Outputs, error)
	Destroy(ctx context.Context, opts orchestration.DestroyOptions) error
	Metrics() *orchestration.Metrics
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// findConfigFile locates svmzner.yaml when --config is not given.
	findConfigFile = config.FindConfigFile

	// loadConfigFile loads and validates a config file.
	loadConfigFile = config.Load

	// loadTimeouts reads the timeout overrides from the environment.
	loadTimeouts = config.LoadTimeouts

	// openStore opens the configured state backend.
	openStore = state.Open

	// loadIdentity loads or creates the age identity sealing the secrets.
	loadIdentity = secret.LoadOrCreateIdentity

	// newProvider creates the Hetzner Cloud adapter.
	newProvider = func(token string, timeouts *config.Timeouts, observer provisioning.Observer) provisioning.ResourceProvider {
		return hcloud.NewRealClient(token, hcloud.WithTimeouts(timeouts), hcloud.WithObserver(observer))
	}

	// newExecutor creates the SSH executor for remote steps.
	newExecutor = func(timeouts *config.Timeouts) remote.Executor {
		return &remote.SSHExecutor{
			DialTimeout: timeouts.DialTimeout,
			MaxRetries:  timeouts.RetryMaxAttempts,
			RetryDelay:  timeouts.RetryInitialDelay,
		}
	}

	// newReconciler creates the deployment reconciler.
	newReconciler = func(cfg *config.Config, deps orchestration.Deps) Reconciler {
		return orchestration.NewReconciler(cfg, deps)
	}

	// waitForPort blocks until the host's SSH port accepts connections.
	waitForPort netutil.PortWaiter = netutil.WaitForPort

	logOutput io.Writer = os.Stderr
	stdout    io.Writer = os.Stdout
	stdin     io.Reader = os.Stdin

	// isTerminal reports whether stdin is interactive.
	isTerminal = func() bool {
		f, ok := stdin.(*os.File)
		return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}
)

// GlobalOptions are the flags every command shares.
type GlobalOptions struct {
	ConfigPath string
	LogFormat  string
}

// session is what one command invocation opens.
type session struct {
	cfg        *config.Config
	store      state.Store
	observer   provisioning.Observer
	reconciler Reconciler
}

func (s *session) Close() error {
	return s.store.Close()
}

// openSession loads the config and wires the reconciler. Commands that
// touch the cloud API pass needsToken.
func openSession(ctx context.Context, opts GlobalOptions, needsToken bool) (*session, error) {
	format, err := parseLogFormat(opts.LogFormat)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if needsToken && cfg.HCloudToken == "" {
		return nil, errors.New("HCLOUD_TOKEN is not set")
	}

	observer := provisioning.NewObserver(logOutput, format).
		WithFields(map[string]string{"deployment": cfg.Deployment})

	identity, created, err := loadIdentity(cfg.Secrets.IdentityFile)
	if err != nil {
		return nil, err
	}
	if created {
		observer.Printf("Created state identity %s; back it up, sealed keys cannot be opened without it", cfg.Secrets.IdentityFile)
	}

	store, err := openStore(ctx, cfg.State)
	if err != nil {
		return nil, fmt.Errorf("failed to open state backend: %w", err)
	}

	timeouts := loadTimeouts()
	r := newReconciler(cfg, orchestration.Deps{
		Provider:    newProvider(cfg.HCloudToken, timeouts, observer),
		Executor:    newExecutor(timeouts),
		Store:       store,
		Secrets:     secret.NewSealedStore(store, identity),
		Observer:    observer,
		Timeouts:    timeouts,
		WaitForPort: waitForPort,
	})

	return &session{cfg: cfg, store: store, observer: observer, reconciler: r}, nil
}

// loadConfig loads the config at path, or svmzner.yaml found from the
// working directory upwards.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, fmt.Errorf("%w; pass --config or run from a directory containing it", err)
		}
		path = found
	}
	return loadConfigFile(path)
}

func parseLogFormat(s string) (provisioning.LogFormat, error) {
	switch f := provisioning.LogFormat(s); f {
	case "", provisioning.LogFormatAuto:
		return provisioning.LogFormatAuto, nil
	case provisioning.LogFormatConsole, provisioning.LogFormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid log format %q: must be auto, console or json", s)
	}
}
