package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

// GenerationError reports that key material could not be produced,
// typically because the randomness source failed.
type GenerationError struct {
	Role string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate %s key pair: %v", e.Role, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NoMatchingImageError reports that no machine image satisfied the filter.
type NoMatchingImageError struct {
	Filter ImageFilter
}

func (e *NoMatchingImageError) Error() string {
	return fmt.Sprintf("no machine image matches name=%q architecture=%q owner=%q",
		e.Filter.NamePattern, e.Filter.Architecture, e.Filter.Owner)
}

// DriftError reports that an existing resource conflicts with the requested spec.
type DriftError struct {
	ResourceType string
	Name         string
	Diffs        []string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("%s %q exists with a conflicting spec: %s",
		e.ResourceType, e.Name, strings.Join(e.Diffs, "; "))
}

// IncompleteInstanceError reports that an instance has no reachable address yet.
type IncompleteInstanceError struct {
	InstanceID string
	Reason     string
}

func (e *IncompleteInstanceError) Error() string {
	return fmt.Sprintf("instance %s is not ready for connections: %s", e.InstanceID, e.Reason)
}

// InvalidGenesisSpecError reports local genesis spec violations. It is
// raised before any remote call.
type InvalidGenesisSpecError struct {
	Err error
}

func (e *InvalidGenesisSpecError) Error() string {
	return fmt.Sprintf("invalid genesis spec: %v", e.Err)
}

func (e *InvalidGenesisSpecError) Unwrap() error { return e.Err }

// GenesisConflictError reports that the ledger path already holds a genesis
// built from a different spec. The existing genesis is left untouched.
type GenesisConflictError struct {
	LedgerPath      string
	ExistingDigest  string
	RequestedDigest string
	Fingerprint     string
}

func (e *GenesisConflictError) Error() string {
	return fmt.Sprintf("ledger %s already holds genesis %s (spec %s); requested spec %s differs, refusing to overwrite",
		e.LedgerPath, e.Fingerprint, short(e.ExistingDigest), short(e.RequestedDigest))
}

// RemoteApplyError wraps a failure of a remote operation.
type RemoteApplyError struct {
	Operation string
	Output    string
	Cause     error
}

func (e *RemoteApplyError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("remote %s failed: %v\nOutput: %s", e.Operation, e.Cause, e.Output)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Operation, e.Cause)
}

func (e *RemoteApplyError) Unwrap() error { return e.Cause }

// Transient reports whether the failure came from the connection itself
// rather than from the remote command.
func (e *RemoteApplyError) Transient() bool {
	var te interface{ Transient() bool }
	return errors.As(e.Cause, &te) && te.Transient()
}

// ConfigValidationError reports local validator config violations. It is
// raised before any remote call.
type ConfigValidationError struct {
	Err error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid validator config: %v", e.Err)
}

func (e *ConfigValidationError) Unwrap() error { return e.Err }

// GenesisMismatchError reports that the remote ledger's genesis differs from
// the fingerprint the validator was configured with. The service is not started.
type GenesisMismatchError struct {
	Expected string
	Actual   string
}

func (e *GenesisMismatchError) Error() string {
	return fmt.Sprintf("remote ledger genesis %q does not match expected %q; validator not started", e.Actual, e.Expected)
}

// StageError is the terminal failure of a provisioning run. Resources
// created before the failure are kept so a re-run can resume.
type StageError struct {
	Stage string
	Node  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("provisioning failed in stage %s at step %s: %v (already-created resources were left intact; re-run to resume)",
		e.Stage, e.Node, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a remote failure worth retrying.
func IsTransient(err error) bool {
	var rae *RemoteApplyError
	return errors.As(err, &rae) && rae.Transient()
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
