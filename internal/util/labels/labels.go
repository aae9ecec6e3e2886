// Package labels provides consistent labeling utilities for Hetzner Cloud resources.
//
// This package enforces uniform labeling patterns across all infrastructure resources,
// enabling easy identification, grouping, and teardown of resources belonging to
// the same deployment.
//
// Standard label keys use the svmzner.io domain prefix for namespacing.
package labels

import "maps"

// Standard label keys for Hetzner Cloud resources.
const (
	// KeyDeployment identifies which deployment a resource belongs to
	KeyDeployment = "svmzner.io/deployment"

	// KeyRole identifies the logical role of a volume (accounts, ledger)
	KeyRole = "svmzner.io/role"

	// KeyIOPSClass carries the requested volume performance class
	KeyIOPSClass = "svmzner.io/iops-class"

	// KeySpecDigest fingerprints the spec a server was created from
	KeySpecDigest = "svmzner.io/spec-digest"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "svmzner.io/managed-by"
)

// ManagedBy values
const (
	ManagedBySvmzner = "svmzner"
)

// LabelBuilder provides a fluent interface for building Hetzner Cloud resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the deployment name pre-set.
func NewLabelBuilder(deployment string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyDeployment: deployment,
			KeyManagedBy:  ManagedBySvmzner,
		},
	}
}

// WithRole adds a role label (e.g., "accounts", "ledger").
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithIOPSClass adds the volume performance class label.
func (lb *LabelBuilder) WithIOPSClass(class string) *LabelBuilder {
	if class != "" {
		lb.labels[KeyIOPSClass] = class
	}
	return lb
}

// WithSpecDigest adds the creation spec digest.
func (lb *LabelBuilder) WithSpecDigest(digest string) *LabelBuilder {
	lb.labels[KeySpecDigest] = digest
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	maps.Copy(lb.labels, extra)
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// SelectorForDeployment returns a label selector string for all resources in a deployment.
func SelectorForDeployment(deployment string) string {
	return KeyDeployment + "=" + deployment
}
