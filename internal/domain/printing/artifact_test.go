package printing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifact_MeetsFloor(t *testing.T) {
	small := NewArtifact(make([]byte, MinArtifactBytes-1), "a.pdf", 1, RenderStrategyTemplate)
	exact := NewArtifact(make([]byte, MinArtifactBytes), "a.pdf", 1, RenderStrategyTemplate)

	assert.False(t, small.MeetsFloor(MinArtifactBytes))
	assert.True(t, exact.MeetsFloor(MinArtifactBytes))
	assert.True(t, exact.MeetsFloor(0), "non-positive floor falls back to the default")

	var nilArtifact *Artifact
	assert.Equal(t, 0, nilArtifact.Size())
	assert.False(t, nilArtifact.MeetsFloor(1))
}

func TestRenderResult_ValidFor(t *testing.T) {
	t.Run("artifact above floor", func(t *testing.T) {
		r := Succeeded(NewArtifact(make([]byte, 4096), "a.pdf", 1, RenderStrategyTemplate), 0)
		assert.True(t, r.ValidFor(MinArtifactBytes))
		assert.True(t, r.ValidFor(0))
		assert.NoError(t, r.Failure())
	})

	t.Run("undersized artifact without error is invalid", func(t *testing.T) {
		r := Succeeded(NewArtifact(make([]byte, 100), "a.pdf", 1, RenderStrategyTemplate), 0)
		assert.False(t, r.ValidFor(MinArtifactBytes))
		assert.True(t, r.ValidFor(100))
	})

	t.Run("failure", func(t *testing.T) {
		r := Failed(errors.New("boom"), 0)
		assert.False(t, r.ValidFor(1))
		assert.ErrorIs(t, r.Failure(), ErrRenderingFailed)
	})
}
