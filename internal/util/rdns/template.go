package rdns

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// maxNameLength is the longest DNS name allowed by RFC 1035.
const maxNameLength = 253

var placeholder = regexp.MustCompile(`\{\{\s*([a-z-]*)\s*\}\}`)

// TemplateVars are the values a template can reference.
type TemplateVars struct {
	Deployment string // {{ deployment }}
	Hostname   string // {{ hostname }}
	ID         int64  // {{ id }}
	Location   string // {{ location }}
	// IPAddress yields {{ ip-labels }} and {{ ip-type }}.
	IPAddress string
}

// Render substitutes every placeholder in template. An empty template
// renders to an empty name.
func Render(template string, vars TemplateVars) (string, error) {
	if template == "" {
		return "", nil
	}
	if len(template) > maxNameLength {
		return "", fmt.Errorf("template exceeds maximum DNS name length of %d", maxNameLength)
	}

	values := map[string]string{
		"deployment": vars.Deployment,
		"hostname":   vars.Hostname,
		"id":         strconv.FormatInt(vars.ID, 10),
		"location":   vars.Location,
	}
	if vars.IPAddress != "" {
		addr, err := netip.ParseAddr(vars.IPAddress)
		if err != nil {
			return "", fmt.Errorf("invalid IP address %q: %w", vars.IPAddress, err)
		}
		values["ip-labels"] = ReverseLabels(addr)
		values["ip-type"] = "ipv6"
		if addr.Unmap().Is4() {
			values["ip-type"] = "ipv4"
		}
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := values[name]
		if !ok {
			missing = append(missing, m)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved template variables %v in %q", missing, template)
	}
	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved template variables in %q", out)
	}
	if len(out) > maxNameLength {
		return "", fmt.Errorf("rendered name exceeds maximum length of %d: %s", maxNameLength, out)
	}
	return out, nil
}

// ReverseLabels returns addr in PTR label order: octets reversed for IPv4,
// nibbles reversed for IPv6.
func ReverseLabels(addr netip.Addr) string {
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.%d", b[3], b[2], b[1], b[0])
	}
	b := addr.As16()
	nibbles := strings.Split(hex.EncodeToString(b[:]), "")
	slices.Reverse(nibbles)
	return strings.Join(nibbles, ".")
}
