package manifest

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/kscale-dev/kscale/internal/models"
)

// ScaledObject mirrors the keda.sh/v1alpha1 resource for the fields this
// tool writes and reads back. KEDA is addressed through kubectl, never as a
// compiled-in API dependency, so the wire shape lives here.
type ScaledObject struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ScaledObjectSpec `json:"spec"`
}

// ScaledObjectSpec is the subset of the KEDA spec in play: target, replica
// bounds, triggers.
type ScaledObjectSpec struct {
	ScaleTargetRef  ScaleTarget      `json:"scaleTargetRef"`
	MinReplicaCount *int32           `json:"minReplicaCount,omitempty"`
	MaxReplicaCount *int32           `json:"maxReplicaCount,omitempty"`
	Triggers        []models.Trigger `json:"triggers"`
}

// ScaleTarget names the workload a ScaledObject drives.
type ScaleTarget struct {
	APIVersion string `json:"apiVersion,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Name       string `json:"name"`
}

// NewScaledObject builds the event-driven scaler manifest. It shares the
// deployment's name, which is also how status lookups find it.
func NewScaledObject(req *models.DeploymentRequest, id string, triggers []models.Trigger) *ScaledObject {
	cfg := req.Event
	return &ScaledObject{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "keda.sh/v1alpha1",
			Kind:       "ScaledObject",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Name,
			Namespace: req.Namespace,
			Labels:    Labels(req, id),
		},
		Spec: ScaledObjectSpec{
			ScaleTargetRef: ScaleTarget{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       req.Name,
			},
			MinReplicaCount: ptr.To(cfg.MinReplicas),
			MaxReplicaCount: ptr.To(cfg.MaxReplicas),
			Triggers:        triggers,
		},
	}
}
