package testing

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/imamik/svmzner/internal/provisioning"
)

// FakeProvider is an in-memory provisioning.ResourceProvider. Ensure calls
// follow the real adapter's contract: existing resources are reused,
// conflicting ones yield *provisioning.DriftError.
type FakeProvider struct {
	mu sync.Mutex

	Images []provisioning.ImageRef

	sshKeys   map[string]fakeSSHKey
	firewalls map[string]fakeFirewall
	volumes   map[string]provisioning.VolumeRef
	servers   map[string]*provisioning.ComputeInstance
	specs     map[string]provisioning.InstanceSpec
	dnsPtrs   map[string]string

	// deprecated images stay retrievable by a pin but are never picked afresh.
	deprecated map[int64]bool

	nextID  int64
	creates map[string]int
	deletes map[string]int
	faults  map[string][]error
	// addressless makes new servers come up without a public address.
	addressless bool
	calls       []string
}

type fakeSSHKey struct {
	ref       provisioning.SSHKeyRef
	publicKey string
}

type fakeFirewall struct {
	ref   provisioning.NetworkRuleSetRef
	rules []provisioning.NetworkRule
}

// NewFakeProvider creates a provider offering one Debian system image.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Images: []provisioning.ImageRef{
			{ID: 101, Name: "debian-11", Created: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 114, Name: "debian-12", Created: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
		sshKeys:    map[string]fakeSSHKey{},
		firewalls:  map[string]fakeFirewall{},
		volumes:    map[string]provisioning.VolumeRef{},
		servers:    map[string]*provisioning.ComputeInstance{},
		specs:      map[string]provisioning.InstanceSpec{},
		dnsPtrs:    map[string]string{},
		nextID:     1000,
		deprecated: map[int64]bool{},
		creates:    map[string]int{},
		deletes:    map[string]int{},
		faults:     map[string][]error{},
	}
}

// FailNext makes the next call of method (e.g. "EnsureVolume") return err.
func (p *FakeProvider) FailNext(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults[method] = append(p.faults[method], err)
}

// SetAddressless controls whether new servers get a public address.
func (p *FakeProvider) SetAddressless(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addressless = v
}

// AssignAddress gives an existing server a public address.
func (p *FakeProvider) AssignAddress(name, addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.servers[name]; s != nil {
		s.PublicAddress = addr
	}
}

// Creates returns how many resources of kind were created.
func (p *FakeProvider) Creates(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates[kind]
}

// TotalCreates returns the number of resources created of any kind.
func (p *FakeProvider) TotalCreates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.creates {
		n += c
	}
	return n
}

// Deletes returns how many resources of kind were deleted.
func (p *FakeProvider) Deletes(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deletes[kind]
}

// Calls lists the provider methods invoked, in order.
func (p *FakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// ResourceCount returns the number of live resources.
func (p *FakeProvider) ResourceCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sshKeys) + len(p.firewalls) + len(p.volumes) + len(p.servers)
}

// Server returns the spec a server was created with.
func (p *FakeProvider) Server(name string) (provisioning.InstanceSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.specs[name]
	return s, ok
}

func (p *FakeProvider) enter(method string) error {
	p.calls = append(p.calls, method)
	if queued := p.faults[method]; len(queued) > 0 {
		p.faults[method] = queued[1:]
		return queued[0]
	}
	return nil
}

func (p *FakeProvider) id() int64 {
	p.nextID++
	return p.nextID
}

// EnsureMachineImage implements provisioning.ResourceProvider.
func (p *FakeProvider) EnsureMachineImage(_ context.Context, filter provisioning.ImageFilter) (provisioning.ImageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("EnsureMachineImage"); err != nil {
		return provisioning.ImageRef{}, err
	}

	for _, img := range p.Images {
		if filter.PinnedID != 0 && img.ID == filter.PinnedID {
			if ok, _ := path.Match(filter.NamePattern, img.Name); ok {
				return img, nil
			}
		}
	}

	var matches []provisioning.ImageRef
	for _, img := range p.Images {
		if p.deprecated[img.ID] {
			continue
		}
		if ok, _ := path.Match(filter.NamePattern, img.Name); ok {
			matches = append(matches, img)
		}
	}
	if len(matches) == 0 {
		return provisioning.ImageRef{}, &provisioning.NoMatchingImageError{Filter: filter}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Created.After(matches[j].Created) })
	return matches[0], nil
}

// ReleaseImage deprecates the image with id oldID and publishes next in its place.
func (p *FakeProvider) ReleaseImage(oldID int64, next provisioning.ImageRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deprecated[oldID] = true
	p.Images = append(p.Images, next)
}

// EnsureSSHKey implements provisioning.ResourceProvider.
func (p *FakeProvider) EnsureSSHKey(_ context.Context, name, publicKey string, _ map[string]string) (provisioning.SSHKeyRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("EnsureSSHKey"); err != nil {
		return provisioning.SSHKeyRef{}, err
	}

	if k, ok := p.sshKeys[name]; ok {
		if k.publicKey != publicKey {
			return provisioning.SSHKeyRef{}, &provisioning.DriftError{ResourceType: "ssh_key", Name: name, Diffs: []string{"public key differs from the deployment key"}}
		}
		return k.ref, nil
	}
	ref := provisioning.SSHKeyRef{ID: p.id(), Name: name, Fingerprint: fmt.Sprintf("fp-%s", name)}
	p.sshKeys[name] = fakeSSHKey{ref: ref, publicKey: publicKey}
	p.creates["ssh_key"]++
	return ref, nil
}

// EnsureNetworkRules implements provisioning.ResourceProvider.
func (p *FakeProvider) EnsureNetworkRules(_ context.Context, name string, rules []provisioning.NetworkRule, _ map[string]string) (provisioning.NetworkRuleSetRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("EnsureNetworkRules"); err != nil {
		return provisioning.NetworkRuleSetRef{}, err
	}

	if fw, ok := p.firewalls[name]; ok {
		if fmt.Sprint(ruleKeys(fw.rules)) != fmt.Sprint(ruleKeys(rules)) {
			return provisioning.NetworkRuleSetRef{}, &provisioning.DriftError{ResourceType: "firewall", Name: name, Diffs: []string{"rules differ"}}
		}
		return fw.ref, nil
	}
	ref := provisioning.NetworkRuleSetRef{ID: p.id(), Name: name}
	p.firewalls[name] = fakeFirewall{ref: ref, rules: append([]provisioning.NetworkRule(nil), rules...)}
	p.creates["firewall"]++
	return ref, nil
}

func ruleKeys(rules []provisioning.NetworkRule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		src := append([]string(nil), r.SourceIPs...)
		sort.Strings(src)
		out = append(out, fmt.Sprintf("%s/%s/%s%v", r.Direction, r.Protocol, r.PortRange, src))
	}
	sort.Strings(out)
	return out
}

// EnsureVolume implements provisioning.ResourceProvider.
func (p *FakeProvider) EnsureVolume(_ context.Context, spec provisioning.VolumeSpec) (provisioning.VolumeRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("EnsureVolume"); err != nil {
		return provisioning.VolumeRef{}, err
	}

	if v, ok := p.volumes[spec.Name]; ok {
		var diffs []string
		if v.SizeGiB != spec.SizeGiB {
			diffs = append(diffs, fmt.Sprintf("size %dGiB, want %dGiB", v.SizeGiB, spec.SizeGiB))
		}
		if v.IOPSClass != spec.IOPSClass {
			diffs = append(diffs, fmt.Sprintf("iops class %q, want %q", v.IOPSClass, spec.IOPSClass))
		}
		if len(diffs) > 0 {
			return provisioning.VolumeRef{}, &provisioning.DriftError{ResourceType: "volume", Name: spec.Name, Diffs: diffs}
		}
		v.MountPath = spec.MountPath
		return v, nil
	}
	id := p.id()
	v := provisioning.VolumeRef{
		ID:         id,
		Name:       spec.Name,
		Role:       spec.Role,
		SizeGiB:    spec.SizeGiB,
		IOPSClass:  spec.IOPSClass,
		MountPath:  spec.MountPath,
		DevicePath: fmt.Sprintf("/dev/disk/by-id/scsi-0HC_Volume_%d", id),
	}
	p.volumes[spec.Name] = v
	p.creates["volume"]++
	return v, nil
}

// EnsureComputeInstance implements provisioning.ResourceProvider.
func (p *FakeProvider) EnsureComputeInstance(_ context.Context, spec provisioning.InstanceSpec) (*provisioning.ComputeInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("EnsureComputeInstance"); err != nil {
		return nil, err
	}

	if s, ok := p.servers[spec.Name]; ok {
		if p.specs[spec.Name].FirstBootScript != spec.FirstBootScript || p.specs[spec.Name].ServerType != spec.ServerType {
			return nil, &provisioning.DriftError{ResourceType: "server", Name: spec.Name, Diffs: []string{"spec digest differs"}}
		}
		return cloneInstance(s), nil
	}

	s := &provisioning.ComputeInstance{
		ID:              p.id(),
		Name:            spec.Name,
		Status:          "running",
		FirstBootScript: spec.FirstBootScript,
	}
	if !p.addressless {
		s.PublicAddress = fmt.Sprintf("203.0.113.%d", len(p.servers)+10)
	}
	for _, v := range spec.Volumes {
		s.Volumes = append(s.Volumes, provisioning.AttachedVolume{
			ID: v.ID, Role: v.Role, DevicePath: v.DevicePath, SizeGiB: v.SizeGiB, IOPSClass: v.IOPSClass, MountPath: v.MountPath,
		})
	}
	p.servers[spec.Name] = s
	p.specs[spec.Name] = spec
	p.creates["server"]++
	return cloneInstance(s), nil
}

// GetComputeInstance implements provisioning.ResourceProvider.
func (p *FakeProvider) GetComputeInstance(_ context.Context, name string) (*provisioning.ComputeInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetComputeInstance"); err != nil {
		return nil, err
	}
	if s, ok := p.servers[name]; ok {
		return cloneInstance(s), nil
	}
	return nil, nil
}

// SetReverseDNS implements provisioning.ResourceProvider.
func (p *FakeProvider) SetReverseDNS(_ context.Context, instanceID int64, address, ptr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SetReverseDNS"); err != nil {
		return err
	}
	for _, s := range p.servers {
		if s.ID == instanceID {
			p.dnsPtrs[address] = ptr
			return nil
		}
	}
	return fmt.Errorf("server %d not found", instanceID)
}

// ReverseDNS returns the PTR record set for address.
func (p *FakeProvider) ReverseDNS(address string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dnsPtrs[address]
}

// DeleteComputeInstance implements provisioning.ResourceProvider.
func (p *FakeProvider) DeleteComputeInstance(_ context.Context, name string) error {
	return p.remove("DeleteComputeInstance", "server", name, func() bool {
		_, ok := p.servers[name]
		delete(p.servers, name)
		delete(p.specs, name)
		return ok
	})
}

// DeleteVolume implements provisioning.ResourceProvider.
func (p *FakeProvider) DeleteVolume(_ context.Context, name string) error {
	return p.remove("DeleteVolume", "volume", name, func() bool {
		_, ok := p.volumes[name]
		delete(p.volumes, name)
		return ok
	})
}

// DeleteNetworkRules implements provisioning.ResourceProvider.
func (p *FakeProvider) DeleteNetworkRules(_ context.Context, name string) error {
	return p.remove("DeleteNetworkRules", "firewall", name, func() bool {
		_, ok := p.firewalls[name]
		delete(p.firewalls, name)
		return ok
	})
}

// DeleteSSHKey implements provisioning.ResourceProvider.
func (p *FakeProvider) DeleteSSHKey(_ context.Context, name string) error {
	return p.remove("DeleteSSHKey", "ssh_key", name, func() bool {
		_, ok := p.sshKeys[name]
		delete(p.sshKeys, name)
		return ok
	})
}

func (p *FakeProvider) remove(method, kind, _ string, del func() bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(method); err != nil {
		return err
	}
	if del() {
		p.deletes[kind]++
	}
	return nil
}

func cloneInstance(s *provisioning.ComputeInstance) *provisioning.ComputeInstance {
	c := *s
	c.Volumes = append([]provisioning.AttachedVolume(nil), s.Volumes...)
	return &c
}

var _ provisioning.ResourceProvider = (*FakeProvider)(nil)
