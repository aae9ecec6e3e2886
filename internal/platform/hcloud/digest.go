package hcloud

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/imamik/svmzner/internal/provisioning"

	"github.com/zeebo/blake3"
)

// InstanceDigest fingerprints every input that cannot change on an existing
// server without recreating it. It is short enough to be a label value.
//
// The image is not part of it: an existing server is never compared against
// the image it was created from, which the provider may deprecate or delete.
func InstanceDigest(spec provisioning.InstanceSpec) string {
	h := blake3.New()
	field := func(name string, v any) {
		_, _ = fmt.Fprintf(h, "%s=%v\n", name, v)
	}

	field("server_type", spec.ServerType)
	field("location", spec.Location)
	field("ssh_key", spec.SSHKey.ID)
	field("firewall", spec.Firewall.ID)

	volumes := make([]int64, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		volumes = append(volumes, v.ID)
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i] < volumes[j] })
	field("volumes", volumes)

	field("user_data_len", len(spec.FirstBootScript))
	_, _ = io.WriteString(h, spec.FirstBootScript)

	return hex.EncodeToString(h.Sum(nil)[:16])
}
