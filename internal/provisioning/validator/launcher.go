package validator

import (
	"bytes"
	"context"
	"embed"
	"encoding/hex"
	"fmt"
	"strings"
	"text/template"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/remote"
	"github.com/imamik/svmzner/internal/secret"
)

//go:embed templates
var templatesFS embed.FS

// Remote operation names.
const (
	OperationLaunch = "validator.launch"
	OperationStatus = "validator.status"
)

// ExitGenesisMismatch is the launch script's exit status when the ledger
// genesis differs from the expected one. The script prints the actual hash.
const ExitGenesisMismatch = 3

// Status is the outcome of a launch.
type Status string

const (
	StatusStarted        Status = "started"
	StatusRestarted      Status = "restarted"
	StatusAlreadyRunning Status = "already-running"
)

// LaunchResult reports what Launch did.
type LaunchResult struct {
	Status       Status
	ConfigDigest string
}

// ServiceState is what Status observed on the host.
type ServiceState struct {
	// Active is systemd's view of the unit ("active", "inactive", "failed", ...).
	Active       string
	ConfigDigest string
}

// KeyResolver loads role key pairs from the secret store.
type KeyResolver interface {
	Resolve(ctx context.Context, ref keys.Ref) (keys.KeyPair, error)
}

// Tools names the binaries on the host.
type Tools struct {
	Validator  string
	LedgerTool string
}

// Launcher starts the validator over a remote executor.
type Launcher struct {
	exec        remote.Executor
	resolver    KeyResolver
	tools       Tools
	serviceUser string
	layout      Layout
	observer    provisioning.Observer
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLayout overrides DefaultLayout.
func WithLayout(l Layout) Option {
	return func(ln *Launcher) { ln.layout = l }
}

// WithObserver sets the observer for progress messages.
func WithObserver(o provisioning.Observer) Option {
	return func(ln *Launcher) { ln.observer = o }
}

// NewLauncher creates a launcher. serviceUser runs the validator and owns
// the key files; empty means root.
func NewLauncher(exec remote.Executor, resolver KeyResolver, tools Tools, serviceUser string, opts ...Option) *Launcher {
	l := &Launcher{
		exec:        exec,
		resolver:    resolver,
		tools:       tools,
		serviceUser: serviceUser,
		layout:      DefaultLayout,
		observer:    provisioning.NopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch writes the validator configuration and makes sure the service runs
// with it. It fails with *provisioning.ConfigValidationError before any
// remote call, and with *provisioning.GenesisMismatchError, without starting
// anything, when the ledger was built from another genesis.
func (l *Launcher) Launch(ctx context.Context, conn remote.Descriptor, cfg Config) (LaunchResult, error) {
	if err := cfg.Validate(); err != nil {
		return LaunchResult{}, err
	}

	stdin, err := l.keypairs(ctx, cfg)
	if err != nil {
		return LaunchResult{}, err
	}
	defer stdin.Wipe()

	rendered, err := l.render(cfg)
	if err != nil {
		return LaunchResult{}, err
	}

	payload, err := templatesFS.ReadFile("templates/launch.sh")
	if err != nil {
		return LaunchResult{}, err
	}

	l.observer.Printf("[validator] Launching %s on %s", l.layout.Unit, conn)
	out, err := l.exec.Execute(ctx, conn, remote.Payload{
		Operation: OperationLaunch,
		Script:    string(payload),
		Vars: map[string]string{
			"LEDGER":            cfg.LedgerPath,
			"EXPECTED_GENESIS":  string(cfg.ExpectedGenesisFingerprint),
			"CONFIG_DIGEST":     rendered.digest,
			"LEDGER_TOOL":       l.tools.LedgerTool,
			"SERVICE_USER":      l.serviceUser,
			"KEY_DIR":           l.layout.KeyDir,
			"START_SCRIPT_PATH": l.layout.StartScript,
			"START_SCRIPT":      rendered.startScript,
			"UNIT":              l.layout.Unit,
			"UNIT_FILE":         rendered.unit,
			"STATE_FILE":        l.layout.StateFile,
		},
		Stdin: stdin,
	})
	if err != nil {
		return LaunchResult{}, &provisioning.RemoteApplyError{Operation: OperationLaunch, Cause: err}
	}

	switch out.ExitCode {
	case 0:
	case ExitGenesisMismatch:
		return LaunchResult{}, &provisioning.GenesisMismatchError{
			Expected: string(cfg.ExpectedGenesisFingerprint),
			Actual:   out.LastLine(),
		}
	default:
		return LaunchResult{}, &provisioning.RemoteApplyError{
			Operation: OperationLaunch,
			Output:    out.Output(),
			Cause:     fmt.Errorf("exited with status %d", out.ExitCode),
		}
	}

	status := Status(out.LastLine())
	switch status {
	case StatusStarted, StatusRestarted, StatusAlreadyRunning:
	default:
		return LaunchResult{}, &provisioning.RemoteApplyError{
			Operation: OperationLaunch,
			Output:    out.Output(),
			Cause:     fmt.Errorf("unexpected launch result %q", status),
		}
	}
	return LaunchResult{Status: status, ConfigDigest: rendered.digest}, nil
}

// Status reports the unit state and the config digest it was started with.
func (l *Launcher) Status(ctx context.Context, conn remote.Descriptor) (ServiceState, error) {
	script, err := templatesFS.ReadFile("templates/status.sh")
	if err != nil {
		return ServiceState{}, err
	}
	out, err := l.exec.Execute(ctx, conn, remote.Payload{
		Operation: OperationStatus,
		Script:    string(script),
		Vars:      map[string]string{"UNIT": l.layout.Unit, "STATE_FILE": l.layout.StateFile},
	})
	if err != nil {
		return ServiceState{}, &provisioning.RemoteApplyError{Operation: OperationStatus, Cause: err}
	}
	if out.ExitCode != 0 {
		return ServiceState{}, &provisioning.RemoteApplyError{
			Operation: OperationStatus,
			Output:    out.Output(),
			Cause:     fmt.Errorf("exited with status %d", out.ExitCode),
		}
	}
	active, digest, _ := strings.Cut(out.LastLine(), " ")
	if digest == "none" {
		digest = ""
	}
	return ServiceState{Active: active, ConfigDigest: digest}, nil
}

// keypairs resolves the identity and vote keys into the launch script's
// stdin: one "<name> <keypair json>" line per key.
func (l *Launcher) keypairs(ctx context.Context, cfg Config) (secret.Value, error) {
	var buf bytes.Buffer
	defer func() {
		b := buf.Bytes()
		for i := range b {
			b[i] = 0
		}
	}()

	for _, item := range []struct {
		name string
		ref  keys.Ref
	}{{"identity", cfg.IdentityKey}, {"vote", cfg.VoteKey}} {
		kp, err := l.resolver.Resolve(ctx, item.ref)
		if err != nil {
			return secret.Value{}, &provisioning.ConfigValidationError{
				Err: fmt.Errorf("%s key does not resolve: %w", item.name, err),
			}
		}
		encoded, err := kp.KeypairJSON()
		if err != nil {
			return secret.Value{}, err
		}
		raw := encoded.Reveal()
		buf.WriteString(item.name + " ")
		buf.Write(raw)
		buf.WriteByte('\n')
		for i := range raw {
			raw[i] = 0
		}
		encoded.Wipe()
	}
	return secret.New(buf.Bytes()), nil
}

type rendered struct {
	startScript string
	unit        string
	digest      string
}

// digestInput covers everything that changes what the running service does.
type digestInput struct {
	StartScript string
	Unit        string
	Identity    string
	Vote        string
}

var digestEncMode cbor.EncMode

func init() {
	var err error
	if digestEncMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

func (l *Launcher) render(cfg Config) (rendered, error) {
	start, err := renderTemplate("templates/start.sh.tmpl", struct {
		Binary string
		Args   []string
	}{l.tools.Validator, cfg.Args(l.layout)})
	if err != nil {
		return rendered{}, err
	}
	unit, err := renderTemplate("templates/validator.service.tmpl", struct {
		User, StartScript, LedgerPath, AccountsPath string
	}{l.serviceUser, l.layout.StartScript, cfg.LedgerPath, cfg.AccountsPath})
	if err != nil {
		return rendered{}, err
	}

	data, err := digestEncMode.Marshal(digestInput{
		StartScript: start,
		Unit:        unit,
		Identity:    cfg.IdentityKey.PublicKey.String(),
		Vote:        cfg.VoteKey.PublicKey.String(),
	})
	if err != nil {
		return rendered{}, fmt.Errorf("failed to encode validator config: %w", err)
	}
	sum := blake3.Sum256(data)
	return rendered{startScript: start, unit: unit, digest: hex.EncodeToString(sum[:16])}, nil
}

func renderTemplate(name string, data any) (string, error) {
	content, err := templatesFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Funcs(template.FuncMap{"quote": remote.Quote}).Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
