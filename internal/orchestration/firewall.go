package orchestration

import (
	"context"
	"strconv"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/naming"
)

// firewallRules converts the configured inbound rules. The SSH port is
// always opened so the orchestrator can reach the host, even when the
// config leaves it out. Outbound traffic stays unrestricted.
func firewallRules(cfg *config.Config) []provisioning.NetworkRule {
	sshPort := strconv.Itoa(cfg.SSH.Port)
	rules := make([]provisioning.NetworkRule, 0, len(cfg.Firewall.Rules)+1)
	hasSSH := false
	for _, fr := range cfg.Firewall.Rules {
		if fr.Protocol == "tcp" && coversPort(fr.Port, cfg.SSH.Port) {
			hasSSH = true
		}
		rules = append(rules, provisioning.NetworkRule{
			Description: fr.Description,
			Direction:   "in",
			Protocol:    fr.Protocol,
			PortRange:   fr.Port,
			SourceIPs:   append([]string(nil), fr.SourceIPs...),
		})
	}
	if !hasSSH {
		rules = append(rules, provisioning.NetworkRule{
			Description: "ssh",
			Direction:   "in",
			Protocol:    "tcp",
			PortRange:   sshPort,
			SourceIPs:   []string{"0.0.0.0/0", "::/0"},
		})
	}
	return rules
}

func coversPort(portRange string, port int) bool {
	if portRange == "" {
		return false
	}
	start, end, err := config.ParsePortRange(portRange)
	if err != nil {
		return false
	}
	return port >= start && port <= end
}

func (r *Reconciler) ensureFirewall(ctx context.Context) error {
	name := naming.Firewall(r.cfg.Deployment)
	provisioning.LogResourceCreating(r.observer, nodeFirewall, "firewall", name)
	ref, err := r.provider.EnsureNetworkRules(ctx, name, firewallRules(r.cfg), r.deploymentLabels())
	if err != nil {
		return err
	}
	provisioning.LogResourceCreated(r.observer, nodeFirewall, "firewall", name, strconv.FormatInt(ref.ID, 10))
	r.update(func(rec *state.Record) { rec.Firewall = ref })
	return nil
}
