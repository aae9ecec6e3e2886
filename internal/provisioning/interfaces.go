package provisioning

import (
	"context"
	"time"
)

// ImageOwner selects where machine images come from.
type ImageOwner string

const (
	// ImageOwnerSystem selects provider-published operating system images.
	ImageOwnerSystem ImageOwner = "system"
	// ImageOwnerSelf selects snapshots owned by this project.
	ImageOwnerSelf ImageOwner = "self"
)

// ImageFilter narrows the machine images a deployment may boot from.
type ImageFilter struct {
	// NamePattern is a shell glob matched against the image name (e.g. "debian-12*").
	NamePattern  string
	Architecture string
	Owner        ImageOwner
	// PinnedID keeps an earlier selection stable across runs while it still matches.
	PinnedID int64
}

// ImageRef references a resolved machine image.
type ImageRef struct {
	ID      int64
	Name    string
	Created time.Time
}

// SSHKeyRef references a registered SSH public key.
type SSHKeyRef struct {
	ID          int64
	Name        string
	Fingerprint string
}

// NetworkRule is one entry of the declared network exposure policy.
type NetworkRule struct {
	Description string
	Direction   string // "in" or "out"
	Protocol    string // "tcp", "udp", "icmp"
	// PortRange is "22" or "8000-8020"; empty for icmp.
	PortRange string
	SourceIPs []string
}

// NetworkRuleSetRef references an applied rule set.
type NetworkRuleSetRef struct {
	ID   int64
	Name string
}

// VolumeSpec declares one block device and the logical role it serves.
type VolumeSpec struct {
	Name      string
	Role      string // "accounts" or "ledger"
	SizeGiB   int
	IOPSClass string
	MountPath string
	Location  string
	Labels    map[string]string
}

// VolumeRef references an existing block device.
type VolumeRef struct {
	ID         int64
	Name       string
	Role       string
	SizeGiB    int
	IOPSClass  string
	MountPath  string
	DevicePath string
}

// InstanceSpec is everything needed to create the validator host.
type InstanceSpec struct {
	Name       string
	ServerType string
	Location   string
	Image      ImageRef
	SSHKey     SSHKeyRef
	Firewall   NetworkRuleSetRef
	Volumes    []VolumeRef
	// FirstBootScript is passed through verbatim as user data.
	FirstBootScript string
	Labels          map[string]string
}

// AttachedVolume is a volume as seen from the instance.
type AttachedVolume struct {
	ID         int64
	Role       string
	DevicePath string
	SizeGiB    int
	IOPSClass  string
	MountPath  string
}

// ComputeInstance is a provisioned host.
type ComputeInstance struct {
	ID              int64
	Name            string
	Status          string
	PublicAddress   string
	PrivateAddress  string
	Volumes         []AttachedVolume
	FirstBootScript string
}

// VolumeByRole returns the attached volume serving role.
func (c *ComputeInstance) VolumeByRole(role string) (AttachedVolume, bool) {
	for _, v := range c.Volumes {
		if v.Role == role {
			return v, true
		}
	}
	return AttachedVolume{}, false
}

// ResourceProvider is the cloud capability the orchestrator consumes. Every
// Ensure method is idempotent by logical name and returns a *DriftError when
// an existing resource conflicts with the request.
type ResourceProvider interface {
	EnsureMachineImage(ctx context.Context, filter ImageFilter) (ImageRef, error)
	EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (SSHKeyRef, error)
	EnsureNetworkRules(ctx context.Context, name string, rules []NetworkRule, labels map[string]string) (NetworkRuleSetRef, error)
	EnsureVolume(ctx context.Context, spec VolumeSpec) (VolumeRef, error)
	EnsureComputeInstance(ctx context.Context, spec InstanceSpec) (*ComputeInstance, error)

	// GetComputeInstance returns nil when the instance does not exist.
	GetComputeInstance(ctx context.Context, name string) (*ComputeInstance, error)

	// SetReverseDNS sets the PTR record of one of the instance's addresses.
	SetReverseDNS(ctx context.Context, instanceID int64, address, ptr string) error

	// Teardown. Deleting a missing resource is not an error.
	DeleteComputeInstance(ctx context.Context, name string) error
	DeleteVolume(ctx context.Context, name string) error
	DeleteNetworkRules(ctx context.Context, name string) error
	DeleteSSHKey(ctx context.Context, name string) error
}
