package models

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeploymentID(t *testing.T) {
	idPattern := regexp.MustCompile(`^web-[0-9a-f]{8}$`)

	id := NewDeploymentID("web")
	assert.Regexp(t, idPattern, id)

	// IDs are unique per call; correlation comes from storing one ID, not
	// from regenerating it.
	other := NewDeploymentID("web")
	assert.NotEqual(t, id, other)
}

func TestDeploymentRequestValidate(t *testing.T) {
	base := func() *DeploymentRequest {
		return &DeploymentRequest{
			Name:     "web",
			Image:    "nginx:latest",
			Replicas: 2,
			Ports:    []int32{80},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		req := base()
		req.Name = ""
		assert.Error(t, req.Validate())
	})

	t.Run("invalid name", func(t *testing.T) {
		req := base()
		req.Name = "Web_App"
		assert.Error(t, req.Validate())
	})

	t.Run("empty image", func(t *testing.T) {
		req := base()
		req.Image = ""
		assert.Error(t, req.Validate())
	})

	t.Run("negative replicas", func(t *testing.T) {
		req := base()
		req.Replicas = -1
		assert.Error(t, req.Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		req := base()
		req.Ports = []int32{80, 70000}
		assert.Error(t, req.Validate())
	})

	t.Run("bad quantity", func(t *testing.T) {
		req := base()
		req.Resources.CPULimit = "half-a-core"
		assert.Error(t, req.Validate())
	})

	t.Run("threshold without config", func(t *testing.T) {
		req := base()
		req.Mode = ScalingThreshold
		assert.Error(t, req.Validate())
	})

	t.Run("threshold without targets", func(t *testing.T) {
		req := base()
		req.Mode = ScalingThreshold
		req.Threshold = &ThresholdConfig{MinReplicas: 1, MaxReplicas: 5}
		assert.Error(t, req.Validate())
	})

	t.Run("threshold valid", func(t *testing.T) {
		req := base()
		req.Mode = ScalingThreshold
		req.Threshold = &ThresholdConfig{MinReplicas: 2, MaxReplicas: 8, CPUPercent: 75}
		assert.NoError(t, req.Validate())
	})

	t.Run("event inverted bounds", func(t *testing.T) {
		req := base()
		req.Mode = ScalingEvent
		req.Event = &EventConfig{MinReplicas: 5, MaxReplicas: 1}
		assert.Error(t, req.Validate())
	})

	t.Run("unknown mode", func(t *testing.T) {
		req := base()
		req.Mode = ScalingMode("vertical")
		assert.Error(t, req.Validate())
	})
}
