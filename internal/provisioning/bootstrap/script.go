package bootstrap

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"
	"text/template"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/remote"
)

//go:embed templates
var templatesFS embed.FS

// MarkerPath is written by the first-boot script once every volume is mounted.
const MarkerPath = "/var/lib/svmzner/first-boot.done"

// Mount binds one block device to a directory.
type Mount struct {
	Role      string
	Device    string
	MountPath string
}

// Options is the input of Script.
type Options struct {
	// ServiceUser is created if missing and owns every mount point.
	ServiceUser string
	Mounts      []Mount
}

// MountsFor maps attached volumes to mounts.
func MountsFor(volumes []provisioning.VolumeRef) []Mount {
	mounts := make([]Mount, 0, len(volumes))
	for _, v := range volumes {
		mounts = append(mounts, Mount{Role: v.Role, Device: v.DevicePath, MountPath: v.MountPath})
	}
	return mounts
}

type mountData struct {
	Mount
	Label      string
	FstabEntry string
}

type scriptData struct {
	ServiceUser string
	Mounts      []mountData
	Marker      string
	MarkerDir   string
}

// Script renders the first-boot script. The output depends only on opts, so
// the same volumes always yield the same user data.
func Script(opts Options) (string, error) {
	mounts, err := normalize(opts.Mounts)
	if err != nil {
		return "", err
	}

	data := scriptData{
		ServiceUser: opts.ServiceUser,
		Marker:      MarkerPath,
		MarkerDir:   path.Dir(MarkerPath),
	}
	for _, m := range mounts {
		data.Mounts = append(data.Mounts, mountData{
			Mount:      m,
			Label:      fsLabel(m.Role),
			FstabEntry: fmt.Sprintf("%s %s ext4 defaults,nofail,discard 0 2", m.Device, m.MountPath),
		})
	}

	return render("templates/first-boot.sh.tmpl", data)
}

// normalize validates mounts and orders them by mount path, so parents are
// mounted before anything nested in them.
func normalize(in []Mount) ([]Mount, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("at least one mount is required")
	}
	mounts := append([]Mount(nil), in...)
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].MountPath < mounts[j].MountPath })

	devices := map[string]bool{}
	for i, m := range mounts {
		if m.Device == "" {
			return nil, fmt.Errorf("mount %s has no device", m.MountPath)
		}
		if !path.IsAbs(m.MountPath) || path.Clean(m.MountPath) != m.MountPath || m.MountPath == "/" {
			return nil, fmt.Errorf("mount path %q must be a clean absolute path", m.MountPath)
		}
		if i > 0 && mounts[i-1].MountPath == m.MountPath {
			return nil, fmt.Errorf("mount path %s used twice", m.MountPath)
		}
		if devices[m.Device] {
			return nil, fmt.Errorf("device %s mounted twice", m.Device)
		}
		devices[m.Device] = true
	}
	return mounts, nil
}

// fsLabel derives the ext4 label, which is limited to 16 bytes.
func fsLabel(role string) string {
	label := "svm-" + role
	if len(label) > 16 {
		label = label[:16]
	}
	return label
}

func render(name string, data any) (string, error) {
	content, err := templatesFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	tmpl, err := template.New(path.Base(name)).
		Funcs(template.FuncMap{"quote": remote.Quote}).
		Option("missingkey=error").
		Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
