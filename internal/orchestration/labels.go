package orchestration

import (
	"github.com/imamik/svmzner/internal/util/labels"
)

// deploymentLabels are attached to every cloud resource of the deployment.
func (r *Reconciler) deploymentLabels() map[string]string {
	return labels.NewLabelBuilder(r.cfg.Deployment).Merge(r.cfg.Labels).Build()
}

// volumeLabels adds the role and performance class to the deployment labels.
func (r *Reconciler) volumeLabels(role, iopsClass string) map[string]string {
	return labels.NewLabelBuilder(r.cfg.Deployment).
		Merge(r.cfg.Labels).
		WithRole(role).
		WithIOPSClass(iopsClass).
		Build()
}

// sweepSelector matches everything the deployment owns, including resources
// a lost record no longer references.
func (r *Reconciler) sweepSelector() map[string]string {
	return map[string]string{labels.KeyDeployment: r.cfg.Deployment}
}
