package genesis

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/remote"
)

//go:embed templates
var templatesFS embed.FS

// Remote operation names.
const (
	OperationProbe  = "genesis.probe"
	OperationCreate = "genesis.create"
)

// Probe and create exit codes.
const (
	ExitAbsent    = 10
	ExitUnmanaged = 11
)

// MarkerDir is the marker directory relative to the ledger path.
const MarkerDir = ".svmzner"

// Marker is the commit record of a genesis.
type Marker struct {
	SpecDigest  string      `json:"spec_digest"`
	Fingerprint Fingerprint `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ParseMarker decodes the marker printed by the probe and create scripts.
func ParseMarker(out string) (*Marker, error) {
	var m Marker
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &m); err != nil {
		return nil, fmt.Errorf("failed to parse genesis marker: %w", err)
	}
	if m.SpecDigest == "" {
		return nil, fmt.Errorf("genesis marker has no spec digest")
	}
	if err := m.Fingerprint.Validate(); err != nil {
		return nil, fmt.Errorf("genesis marker: %w", err)
	}
	return &m, nil
}

// Tools names the binaries on the host.
type Tools struct {
	Genesis    string
	LedgerTool string
}

// Constructor applies genesis specs over a remote executor.
type Constructor struct {
	exec        remote.Executor
	tools       Tools
	serviceUser string
	observer    provisioning.Observer
}

// NewConstructor creates a constructor. serviceUser, when set, owns the ledger.
func NewConstructor(exec remote.Executor, tools Tools, serviceUser string, observer provisioning.Observer) *Constructor {
	if observer == nil {
		observer = provisioning.NopObserver{}
	}
	return &Constructor{exec: exec, tools: tools, serviceUser: serviceUser, observer: observer}
}

// Apply makes sure spec's genesis exists at spec.LedgerPath and returns its
// fingerprint. It validates spec before contacting the host and always
// probes the host before writing, so calling it again after any failure is
// safe.
func (c *Constructor) Apply(ctx context.Context, conn remote.Descriptor, spec Spec) (Fingerprint, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	digest, err := spec.Digest()
	if err != nil {
		return "", err
	}

	existing, err := c.Probe(ctx, conn, spec.LedgerPath)
	if err != nil {
		return "", withRequested(err, digest)
	}
	if existing != nil {
		c.observer.Printf("[genesis] Found genesis %s at %s", existing.Fingerprint, spec.LedgerPath)
		return matchDigest(spec.LedgerPath, existing, digest)
	}

	payload, err := c.createPayload(spec, digest)
	if err != nil {
		return "", err
	}
	c.observer.Printf("[genesis] Creating genesis at %s on %s", spec.LedgerPath, conn)
	out, err := c.exec.Execute(ctx, conn, payload)
	if err != nil {
		return "", &provisioning.RemoteApplyError{Operation: OperationCreate, Cause: err}
	}
	marker, err := c.interpret(OperationCreate, spec.LedgerPath, out)
	if err != nil {
		return "", withRequested(err, digest)
	}
	if marker == nil {
		return "", &provisioning.RemoteApplyError{
			Operation: OperationCreate,
			Output:    out.Output(),
			Cause:     fmt.Errorf("genesis was not committed"),
		}
	}
	return matchDigest(spec.LedgerPath, marker, digest)
}

// Probe reads the committed genesis at ledgerPath. It returns nil when none
// has been committed yet.
func (c *Constructor) Probe(ctx context.Context, conn remote.Descriptor, ledgerPath string) (*Marker, error) {
	script, err := templatesFS.ReadFile("templates/probe.sh")
	if err != nil {
		return nil, err
	}
	out, err := c.exec.Execute(ctx, conn, remote.Payload{
		Operation: OperationProbe,
		Script:    string(script),
		Vars:      map[string]string{"LEDGER": ledgerPath},
	})
	if err != nil {
		return nil, &provisioning.RemoteApplyError{Operation: OperationProbe, Cause: err}
	}
	return c.interpret(OperationProbe, ledgerPath, out)
}

func (c *Constructor) interpret(op, ledgerPath string, out remote.Outcome) (*Marker, error) {
	switch out.ExitCode {
	case 0:
		marker, err := ParseMarker(out.Stdout)
		if err != nil {
			return nil, &provisioning.RemoteApplyError{Operation: op, Output: out.Output(), Cause: err}
		}
		return marker, nil
	case ExitAbsent:
		return nil, nil
	case ExitUnmanaged:
		return nil, &provisioning.GenesisConflictError{
			LedgerPath:     ledgerPath,
			ExistingDigest: "unknown",
			Fingerprint:    "unmanaged",
		}
	default:
		return nil, &provisioning.RemoteApplyError{
			Operation: op,
			Output:    out.Output(),
			Cause:     fmt.Errorf("exited with status %d", out.ExitCode),
		}
	}
}

func withRequested(err error, digest string) error {
	var conflict *provisioning.GenesisConflictError
	if errors.As(err, &conflict) && conflict.RequestedDigest == "" {
		conflict.RequestedDigest = digest
	}
	return err
}

func matchDigest(ledgerPath string, m *Marker, digest string) (Fingerprint, error) {
	if m.SpecDigest != digest {
		return "", &provisioning.GenesisConflictError{
			LedgerPath:      ledgerPath,
			ExistingDigest:  m.SpecDigest,
			RequestedDigest: digest,
			Fingerprint:     string(m.Fingerprint),
		}
	}
	return m.Fingerprint, nil
}

type createData struct {
	GenesisTool string
	LedgerTool  string
	ServiceUser string
	Identity    string
	Vote        string
	Stake       string
	Faucet      string
	Args        []string
}

func (c *Constructor) createPayload(spec Spec, digest string) (remote.Payload, error) {
	primordial, err := PrimordialYAML(spec.Primordial)
	if err != nil {
		return remote.Payload{}, err
	}

	data := createData{
		GenesisTool: c.tools.Genesis,
		LedgerTool:  c.tools.LedgerTool,
		ServiceUser: c.serviceUser,
		Identity:    spec.IdentityPubkey.String(),
		Vote:        spec.VotePubkey.String(),
		Stake:       spec.StakePubkey.String(),
		Faucet:      spec.FaucetPubkey.String(),
		Args:        toolArgs(spec.Params),
	}
	script, err := renderTemplate("templates/create.sh.tmpl", data)
	if err != nil {
		return remote.Payload{}, err
	}

	return remote.Payload{
		Operation: OperationCreate,
		Script:    script,
		Vars: map[string]string{
			"LEDGER":      spec.LedgerPath,
			"SPEC_DIGEST": digest,
			"PRIMORDIAL":  primordial,
		},
	}, nil
}

func toolArgs(p Params) []string {
	var args []string
	if p.ClusterType != "" {
		args = append(args, "--cluster-type", p.ClusterType)
	}
	if p.HashesPerTick != "" {
		args = append(args, "--hashes-per-tick", p.HashesPerTick)
	}
	if p.SlotsPerEpoch > 0 {
		args = append(args, "--slots-per-epoch", strconv.FormatUint(p.SlotsPerEpoch, 10))
	}
	if p.BootstrapStakeLamports > 0 {
		args = append(args, "--bootstrap-validator-stake-lamports", strconv.FormatUint(p.BootstrapStakeLamports, 10))
	}
	return append(args, p.ExtraFlags...)
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
