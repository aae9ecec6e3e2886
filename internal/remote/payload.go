package remote

import (
	"sort"
	"strings"

	"github.com/imamik/svmzner/internal/secret"
)

// Payload is one unit of remote work. Script runs under bash as root with
// Vars exported; Stdin is the only way secret material reaches it.
type Payload struct {
	// Operation names the step in errors and logs (e.g. "genesis.create").
	Operation string
	Script    string
	Vars      map[string]string
	Stdin     secret.Value
}

// Render returns the script with Vars exported in front of it.
func (p Payload) Render() string {
	names := make([]string, 0, len(p.Vars))
	for k := range p.Vars {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString("export " + k + "=" + Quote(p.Vars[k]) + "\n")
	}
	b.WriteString(p.Script)
	return b.String()
}

// Outcome is what a script reported. A non-zero ExitCode is not a transport
// failure; callers interpret it.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout and stderr joined, trimmed for error messages.
func (o Outcome) Output() string {
	return strings.TrimSpace(strings.TrimSpace(o.Stdout) + "\n" + strings.TrimSpace(o.Stderr))
}

// LastLine returns the last non-empty stdout line, where scripts report
// their result.
func (o Outcome) LastLine() string {
	lines := strings.Split(strings.TrimSpace(o.Stdout), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Quote single-quotes s for safe interpolation into a shell script.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
