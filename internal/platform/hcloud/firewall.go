package hcloud

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/imamik/svmzner/internal/provisioning"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureNetworkRules ensures a firewall named name exists with exactly the
// given rules. An existing firewall with different rules is reported as
// drift rather than rewritten.
func (c *RealClient) EnsureNetworkRules(ctx context.Context, name string, rules []provisioning.NetworkRule, labels map[string]string) (provisioning.NetworkRuleSetRef, error) {
	desired, err := toFirewallRules(rules)
	if err != nil {
		return provisioning.NetworkRuleSetRef{}, err
	}

	fw, _, err := (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Create:       c.createFirewall,
		Validate: func(existing *hcloud.Firewall) error {
			if diffs := diffRules(existing.Rules, desired); len(diffs) > 0 {
				return &provisioning.DriftError{ResourceType: "firewall", Name: name, Diffs: diffs}
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{
				Name:   name,
				Rules:  desired,
				Labels: labels,
			}
		},
	}).Execute(ctx, c)
	if err != nil {
		return provisioning.NetworkRuleSetRef{}, err
	}
	return provisioning.NetworkRuleSetRef{ID: fw.ID, Name: fw.Name}, nil
}

func (c *RealClient) createFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*CreateResult[*hcloud.Firewall], *hcloud.Response, error) {
	res, resp, err := c.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Firewall]{
		Resource: res.Firewall,
		Actions:  res.Actions,
	}, resp, nil
}

// DeleteNetworkRules deletes the firewall with the given name.
func (c *RealClient) DeleteNetworkRules(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Delete:       c.client.Firewall.Delete,
	}).Execute(ctx, c)
}

func toFirewallRules(rules []provisioning.NetworkRule) ([]hcloud.FirewallRule, error) {
	out := make([]hcloud.FirewallRule, 0, len(rules))
	for _, r := range rules {
		direction := hcloud.FirewallRuleDirectionIn
		if r.Direction == "out" {
			direction = hcloud.FirewallRuleDirectionOut
		}

		nets := make([]net.IPNet, 0, len(r.SourceIPs))
		for _, cidr := range r.SourceIPs {
			_, n, err := net.ParseCIDR(cidr)
			if err != nil {
				return nil, fmt.Errorf("invalid source CIDR %q in rule %q: %w", cidr, r.Description, err)
			}
			nets = append(nets, *n)
		}

		rule := hcloud.FirewallRule{
			Direction: direction,
			Protocol:  hcloud.FirewallRuleProtocol(r.Protocol),
		}
		if direction == hcloud.FirewallRuleDirectionIn {
			rule.SourceIPs = nets
		} else {
			rule.DestinationIPs = nets
		}
		if r.PortRange != "" {
			rule.Port = hcloud.Ptr(r.PortRange)
		}
		if r.Description != "" {
			rule.Description = hcloud.Ptr(r.Description)
		}
		out = append(out, rule)
	}
	return out, nil
}

// diffRules compares rules as sets, ignoring order and descriptions.
func diffRules(actual, desired []hcloud.FirewallRule) []string {
	have := ruleKeys(actual)
	want := ruleKeys(desired)

	var diffs []string
	for k := range want {
		if !have[k] {
			diffs = append(diffs, "missing rule "+k)
		}
	}
	for k := range have {
		if !want[k] {
			diffs = append(diffs, "unexpected rule "+k)
		}
	}
	sort.Strings(diffs)
	return diffs
}

func ruleKeys(rules []hcloud.FirewallRule) map[string]bool {
	keys := make(map[string]bool, len(rules))
	for _, r := range rules {
		port := ""
		if r.Port != nil {
			port = *r.Port
		}
		nets := r.SourceIPs
		if r.Direction == hcloud.FirewallRuleDirectionOut {
			nets = r.DestinationIPs
		}
		cidrs := make([]string, 0, len(nets))
		for _, n := range nets {
			cidrs = append(cidrs, n.String())
		}
		sort.Strings(cidrs)
		keys[fmt.Sprintf("%s/%s/%s[%s]", r.Direction, r.Protocol, port, strings.Join(cidrs, ","))] = true
	}
	return keys
}
