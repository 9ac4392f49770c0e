package status

import (
	appsv1 "k8s.io/api/apps/v1"

	"github.com/kscale-dev/kscale/internal/models"
)

// Classify derives a deployment's condition from its replica counts and
// generation observations. The precedence is evaluated top to bottom and the
// first match wins, so every input maps to exactly one condition.
func Classify(dep *appsv1.Deployment) models.Condition {
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	observed := dep.Status

	switch {
	case observed.ObservedGeneration < dep.Generation:
		return models.ConditionUpdating
	case desired == 0:
		return models.ConditionScaledToZero
	case observed.AvailableReplicas == 0:
		return models.ConditionUnavailable
	case observed.AvailableReplicas < desired:
		return models.ConditionDegraded
	case observed.ReadyReplicas < desired:
		return models.ConditionNotReady
	case observed.UpdatedReplicas < desired:
		return models.ConditionUpdating
	default:
		return models.ConditionHealthy
	}
}
