package remote_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/svmzner/internal/remote"
)

func errorsAs(err error, target any) bool {
	return errors.As(err, target)
}

func TestQuote(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `'plain'`, remote.Quote("plain"))
	assert.Equal(t, `'it'\''s'`, remote.Quote("it's"))
	assert.Equal(t, `''`, remote.Quote(""))
}

func TestCommand(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `bash -euo pipefail -c 'echo hi'`, remote.Command("root", "echo hi"))
	assert.Equal(t, `sudo -n bash -euo pipefail -c 'echo hi'`, remote.Command("admin", "echo hi"))
}

func TestPayload_RenderExportsVarsInOrder(t *testing.T) {
	t.Parallel()
	p := remote.Payload{
		Script: "echo \"$B$A\"\n",
		Vars:   map[string]string{"B": "x y", "A": "it's"},
	}

	assert.Equal(t, "export A='it'\\''s'\nexport B='x y'\necho \"$B$A\"\n", p.Render())
}

func TestOutcome(t *testing.T) {
	t.Parallel()
	o := remote.Outcome{Stdout: "step one\nstarted\n\n", Stderr: "warning\n"}

	assert.Equal(t, "started", o.LastLine())
	assert.Equal(t, "step one\nstarted\nwarning", o.Output())
	assert.Equal(t, "", remote.Outcome{}.LastLine())
}
