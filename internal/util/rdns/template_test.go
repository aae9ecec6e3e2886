package rdns

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		template string
		vars     TemplateVars
		want     string
		wantErr  string
	}{
		{
			name: "empty template",
		},
		{
			name:     "hostname",
			template: "{{ hostname }}.validators.example.com",
			vars:     TemplateVars{Hostname: "devnet"},
			want:     "devnet.validators.example.com",
		},
		{
			name:     "deployment, location and id",
			template: "{{ deployment }}-{{ id }}.{{ location }}.example.com",
			vars:     TemplateVars{Deployment: "devnet", ID: 4711, Location: "fsn1"},
			want:     "devnet-4711.fsn1.example.com",
		},
		{
			name:     "ipv4 labels",
			template: "{{ ip-labels }}.{{ ip-type }}.example.com",
			vars:     TemplateVars{IPAddress: "203.0.113.10"},
			want:     "10.113.0.203.ipv4.example.com",
		},
		{
			name:     "ipv6 labels",
			template: "{{ ip-labels }}.ip6.arpa",
			vars:     TemplateVars{IPAddress: "2001:db8::1"},
			want:     "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa",
		},
		{
			name:     "spacing inside braces is ignored",
			template: "{{hostname}}.example.com",
			vars:     TemplateVars{Hostname: "devnet"},
			want:     "devnet.example.com",
		},
		{
			name:     "unknown variable",
			template: "{{ hostname }}.{{ pool }}.com",
			vars:     TemplateVars{Hostname: "devnet"},
			wantErr:  "unresolved template variables",
		},
		{
			name:     "ip labels without an address",
			template: "{{ ip-labels }}.example.com",
			wantErr:  "unresolved template variables",
		},
		{
			name:     "empty braces",
			template: "server.{{ }}.com",
			wantErr:  "unresolved template variables",
		},
		{
			name:     "stray braces",
			template: "server.{{{ hostname }}}.com",
			vars:     TemplateVars{Hostname: "devnet"},
			wantErr:  "unresolved template variables",
		},
		{
			name:     "invalid address",
			template: "{{ ip-labels }}.example.com",
			vars:     TemplateVars{IPAddress: "not-an-ip"},
			wantErr:  "invalid IP address",
		},
		{
			name:     "template too long",
			template: strings.Repeat("a", 254),
			wantErr:  "exceeds maximum DNS name length",
		},
		{
			name:     "rendered name too long",
			template: "{{ hostname }}." + strings.Repeat("a", 230),
			vars:     TemplateVars{Hostname: strings.Repeat("h", 30)},
			wantErr:  "exceeds maximum length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Render(tt.template, tt.vars)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReverseLabels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want string
	}{
		{"1.2.3.4", "4.3.2.1"},
		{"192.168.255.254", "254.255.168.192"},
		{"::ffff:10.0.0.1", "1.0.0.10"},
		{"::1", "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0"},
		{"fe80::dead:beef", "f.e.e.b.d.a.e.d.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.e.f"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReverseLabels(netip.MustParseAddr(tt.addr)), tt.addr)
	}
}
