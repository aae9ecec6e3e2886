package config

import (
	"fmt"
	"net"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/imamik/svmzner/internal/util/rdns"
)

// ValidLocations contains all valid Hetzner Cloud datacenter locations.
// https://docs.hetzner.com/cloud/general/locations/
var ValidLocations = map[string]bool{
	"nbg1": true, // Nuremberg, Germany
	"fsn1": true, // Falkenstein, Germany
	"hel1": true, // Helsinki, Finland
	"ash":  true, // Ashburn, USA
	"hil":  true, // Hillsboro, USA
	"sin":  true, // Singapore
}

var validRoles = map[string]bool{
	"identity": true, "vote": true, "stake": true, "faucet": true, "treasury": true,
}

var deploymentName = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,30}[a-z0-9])?$`)

// Validate checks the configuration and reports every violation at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if !deploymentName.MatchString(c.Deployment) {
		errs = multierror.Append(errs, fmt.Errorf("deployment %q must be 1-32 lowercase letters, digits or dashes", c.Deployment))
	}
	if !ValidLocations[c.Location] {
		errs = multierror.Append(errs, fmt.Errorf("invalid location %q: must be one of %v", c.Location, getMapKeys(ValidLocations)))
	}
	if c.ServerType == "" {
		errs = multierror.Append(errs, fmt.Errorf("server_type is required"))
	}
	if c.ReverseDNS != "" {
		if _, err := rdns.Render(c.ReverseDNS, rdns.TemplateVars{Deployment: c.Deployment, IPAddress: "192.0.2.1"}); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("reverse_dns: %w", err))
		}
	}
	if c.Parallelism < 1 {
		errs = multierror.Append(errs, fmt.Errorf("parallelism must be at least 1"))
	}

	errs = multierror.Append(errs, c.validateImage()...)
	errs = multierror.Append(errs, c.validateSSH()...)
	errs = multierror.Append(errs, c.validateFirewall()...)
	errs = multierror.Append(errs, c.validateVolumes()...)
	errs = multierror.Append(errs, c.validateGenesis()...)
	errs = multierror.Append(errs, c.validateValidator()...)
	errs = multierror.Append(errs, c.validateState()...)

	return errs.ErrorOrNil()
}

func (c *Config) validateImage() []error {
	var errs []error
	if c.Image.Name == "" {
		errs = append(errs, fmt.Errorf("image.name is required"))
	} else if _, err := path.Match(c.Image.Name, ""); err != nil {
		errs = append(errs, fmt.Errorf("image.name %q is not a valid pattern: %w", c.Image.Name, err))
	}
	switch c.Image.Architecture {
	case "x86", "arm":
	default:
		errs = append(errs, fmt.Errorf("image.architecture %q must be x86 or arm", c.Image.Architecture))
	}
	switch c.Image.Owner {
	case ImageOwnerSystem, ImageOwnerSelf:
	default:
		errs = append(errs, fmt.Errorf("image.owner %q must be %s or %s", c.Image.Owner, ImageOwnerSystem, ImageOwnerSelf))
	}
	return errs
}

func (c *Config) validateSSH() []error {
	var errs []error
	if c.SSH.User == "" {
		errs = append(errs, fmt.Errorf("ssh.user is required"))
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("ssh.port %d out of range", c.SSH.Port))
	}
	return errs
}

func (c *Config) validateFirewall() []error {
	var errs []error
	for i, r := range c.Firewall.Rules {
		switch r.Protocol {
		case "tcp", "udp":
			if _, _, err := ParsePortRange(r.Port); err != nil {
				errs = append(errs, fmt.Errorf("firewall rule %d: %w", i, err))
			}
		case "icmp":
			if r.Port != "" {
				errs = append(errs, fmt.Errorf("firewall rule %d: icmp rules take no port", i))
			}
		default:
			errs = append(errs, fmt.Errorf("firewall rule %d: protocol %q must be tcp, udp or icmp", i, r.Protocol))
		}
		for _, cidr := range r.SourceIPs {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				errs = append(errs, fmt.Errorf("firewall rule %d: invalid source %q", i, cidr))
			}
		}
	}
	return errs
}

func (c *Config) validateVolumes() []error {
	var errs []error
	roles := map[string]bool{}
	paths := map[string]string{}
	for _, v := range c.Volumes {
		if v.Role != VolumeRoleAccounts && v.Role != VolumeRoleLedger {
			errs = append(errs, fmt.Errorf("volume role %q must be %s or %s", v.Role, VolumeRoleAccounts, VolumeRoleLedger))
			continue
		}
		if roles[v.Role] {
			errs = append(errs, fmt.Errorf("volume role %s declared twice", v.Role))
		}
		roles[v.Role] = true
		if v.SizeGiB < 10 || v.SizeGiB > 10240 {
			errs = append(errs, fmt.Errorf("volume %s: size_gib %d must be between 10 and 10240", v.Role, v.SizeGiB))
		}
		if !path.IsAbs(v.MountPath) || path.Clean(v.MountPath) != v.MountPath || v.MountPath == "/" {
			errs = append(errs, fmt.Errorf("volume %s: mount_path %q must be a clean absolute path", v.Role, v.MountPath))
		}
		if other, dup := paths[v.MountPath]; dup {
			errs = append(errs, fmt.Errorf("volumes %s and %s share mount_path %s", other, v.Role, v.MountPath))
		}
		paths[v.MountPath] = v.Role
	}
	for _, required := range []string{VolumeRoleAccounts, VolumeRoleLedger} {
		if !roles[required] {
			errs = append(errs, fmt.Errorf("volume with role %s is required", required))
		}
	}
	return errs
}

func (c *Config) validateGenesis() []error {
	var errs []error
	seen := map[string]bool{}
	for _, a := range c.Genesis.Primordial {
		if !validRoles[a.Role] {
			errs = append(errs, fmt.Errorf("genesis allocation role %q is not a key role", a.Role))
			continue
		}
		if seen[a.Role] {
			errs = append(errs, fmt.Errorf("genesis allocation for %s declared twice", a.Role))
		}
		seen[a.Role] = true
		if a.Lamports == 0 {
			errs = append(errs, fmt.Errorf("genesis allocation for %s has zero lamports", a.Role))
		}
	}
	return errs
}

func (c *Config) validateValidator() []error {
	var errs []error
	v := c.Validator
	if _, _, err := ParsePortRange(v.DynamicPortRange); err != nil {
		errs = append(errs, fmt.Errorf("validator.dynamic_port_range: %w", err))
	}
	for name, p := range map[string]int{"gossip_port": v.GossipPort, "rpc_port": v.RPCPort} {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("validator.%s %d out of range", name, p))
		}
	}
	if v.RPC.BindAddress != "" && net.ParseIP(v.RPC.BindAddress) == nil {
		errs = append(errs, fmt.Errorf("validator.rpc.bind_address %q is not an IP address", v.RPC.BindAddress))
	}
	if v.CommissionBPS != nil && (*v.CommissionBPS < 0 || *v.CommissionBPS > 10000) {
		errs = append(errs, fmt.Errorf("validator.commission_bps %d must be between 0 and 10000", *v.CommissionBPS))
	}
	for flag := range v.ExtraPrograms {
		if flag == "" || strings.HasPrefix(flag, "-") {
			errs = append(errs, fmt.Errorf("validator.extra_programs key %q must be a bare flag name", flag))
		}
	}
	return errs
}

func (c *Config) validateState() []error {
	var errs []error
	switch c.State.Backend {
	case StateBackendLocal:
		if c.State.Path == "" {
			errs = append(errs, fmt.Errorf("state.path is required for the local backend"))
		}
	case StateBackendS3:
		if c.State.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("state.s3.bucket is required for the s3 backend"))
		}
		if c.State.S3.Region == "" {
			errs = append(errs, fmt.Errorf("state.s3.region is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("state.backend %q must be %s or %s", c.State.Backend, StateBackendLocal, StateBackendS3))
	}
	if c.Secrets.IdentityFile == "" {
		errs = append(errs, fmt.Errorf("secrets.identity_file is required"))
	}
	return errs
}

func getMapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
