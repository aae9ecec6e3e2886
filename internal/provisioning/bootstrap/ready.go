package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/remote"
)

// OperationHostReady names the readiness probe in errors and logs.
const OperationHostReady = "host.ready"

// Readiness probe exit codes.
const (
	exitCloudInitFailed = 20
	exitFirstBootOpen   = 21
	exitNotMounted      = 22
	exitToolMissing     = 23
)

// NotReadyError reports a host that is still booting. It is transient.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string { return "host not ready: " + e.Reason }

// Transient marks the condition as worth waiting for.
func (e *NotReadyError) Transient() bool { return true }

// ReadyPayload builds the probe that checks the first boot finished, every
// mount path is mounted and every tool is on PATH.
func ReadyPayload(mountPaths, tools []string) remote.Payload {
	script, err := templatesFS.ReadFile("templates/host-ready.sh")
	if err != nil {
		panic(err) // embedded at build time
	}
	return remote.Payload{
		Operation: OperationHostReady,
		Script:    string(script),
		Vars: map[string]string{
			"MARKER": MarkerPath,
			"MOUNTS": strings.Join(mountPaths, " "),
			"TOOLS":  strings.Join(tools, " "),
		},
	}
}

// CheckReady runs the readiness probe once. A host that is still booting
// yields a transient *provisioning.RemoteApplyError wrapping *NotReadyError;
// a failed first boot or a missing tool is permanent.
func CheckReady(ctx context.Context, exec remote.Executor, conn remote.Descriptor, mountPaths, tools []string) error {
	out, err := exec.Execute(ctx, conn, ReadyPayload(mountPaths, tools))
	if err != nil {
		return &provisioning.RemoteApplyError{Operation: OperationHostReady, Cause: err}
	}

	switch out.ExitCode {
	case 0:
		return nil
	case exitFirstBootOpen, exitNotMounted:
		return &provisioning.RemoteApplyError{
			Operation: OperationHostReady,
			Cause:     &NotReadyError{Reason: out.LastLine()},
		}
	case exitCloudInitFailed, exitToolMissing:
		return &provisioning.RemoteApplyError{
			Operation: OperationHostReady,
			Output:    out.Output(),
			Cause:     fmt.Errorf("%s", out.LastLine()),
		}
	default:
		return &provisioning.RemoteApplyError{
			Operation: OperationHostReady,
			Output:    out.Output(),
			Cause:     fmt.Errorf("probe exited with status %d", out.ExitCode),
		}
	}
}
