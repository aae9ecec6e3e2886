package remote_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/remote"
	"github.com/imamik/svmzner/internal/secret"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	key := secret.NewString("pem")

	tests := []struct {
		name       string
		instance   *provisioning.ComputeInstance
		credential secret.Value
		user       string
		port       int
		want       remote.Descriptor
		wantErr    string
		incomplete bool
	}{
		{
			name:       "defaults",
			instance:   &provisioning.ComputeInstance{ID: 7, PublicAddress: "203.0.113.10"},
			credential: key,
			want:       remote.Descriptor{Host: "203.0.113.10", Port: 22, User: "root", Credential: key},
		},
		{
			name:       "explicit user and port",
			instance:   &provisioning.ComputeInstance{ID: 7, PublicAddress: "203.0.113.10"},
			credential: key,
			user:       "admin",
			port:       2222,
			want:       remote.Descriptor{Host: "203.0.113.10", Port: 2222, User: "admin", Credential: key},
		},
		{
			name:       "no instance",
			credential: key,
			wantErr:    "instance does not exist",
			incomplete: true,
		},
		{
			name:       "no address",
			instance:   &provisioning.ComputeInstance{ID: 7},
			credential: key,
			wantErr:    "instance 7 is not ready",
			incomplete: true,
		},
		{
			name:     "no credential",
			instance: &provisioning.ComputeInstance{ID: 7, PublicAddress: "203.0.113.10"},
			wantErr:  "ssh credential is empty",
		},
		{
			name:       "bad port",
			instance:   &provisioning.ComputeInstance{ID: 7, PublicAddress: "203.0.113.10"},
			credential: key,
			port:       70000,
			wantErr:    "invalid ssh port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := remote.Build(tt.instance, tt.credential, tt.user, tt.port)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var incomplete *provisioning.IncompleteInstanceError
				assert.Equal(t, tt.incomplete, errorsAs(err, &incomplete))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Host, got.Host)
			assert.Equal(t, tt.want.Port, got.Port)
			assert.Equal(t, tt.want.User, got.User)
			assert.True(t, tt.want.Credential.Equal(got.Credential))
		})
	}
}

func TestDescriptor_StringOmitsCredential(t *testing.T) {
	t.Parallel()
	d := remote.Descriptor{Host: "2001:db8::1", Port: 22, User: "root", Credential: secret.NewString("top-secret")}

	assert.Equal(t, "root@[2001:db8::1]:22", d.String())
	assert.NotContains(t, d.String(), "top-secret")
}
