package remote

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/imamik/svmzner/internal/platform/ssh"
)

// Executor runs payloads on a host.
type Executor interface {
	Execute(ctx context.Context, conn Descriptor, payload Payload) (Outcome, error)
}

// SSHExecutor runs payloads over SSH, one connection per payload.
type SSHExecutor struct {
	DialTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// Execute runs the rendered payload through bash. Non-root users go
// through sudo; the script itself is never written to disk.
func (e *SSHExecutor) Execute(ctx context.Context, conn Descriptor, payload Payload) (Outcome, error) {
	client, err := ssh.NewClient(&ssh.Config{
		Host:        conn.Host,
		Port:        conn.Port,
		User:        conn.User,
		PrivateKey:  conn.Credential,
		DialTimeout: e.DialTimeout,
		MaxRetries:  e.MaxRetries,
		RetryDelay:  e.RetryDelay,
	})
	if err != nil {
		return Outcome{}, err
	}

	var stdin io.Reader
	if !payload.Stdin.IsZero() {
		b := payload.Stdin.Reveal()
		defer func() {
			for i := range b {
				b[i] = 0
			}
		}()
		stdin = bytes.NewReader(b)
	}

	res, err := client.Run(ctx, Command(conn.User, payload.Render()), stdin)
	return Outcome{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}, err
}

// Command wraps script into the command line sent to the host.
func Command(user, script string) string {
	cmd := "bash -euo pipefail -c " + Quote(script)
	if user != "root" {
		cmd = "sudo -n " + cmd
	}
	return cmd
}
