package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Run("lowercases and trims", func(t *testing.T) {
		assert.Equal(t, StatusProcessing, Normalize("  Processing "))
		assert.Equal(t, StatusQA, Normalize("QA"))
	})

	t.Run("empty input stays zero", func(t *testing.T) {
		assert.True(t, Normalize("   ").IsZero())
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusIntake.Terminal())
	assert.False(t, StatusOutForDelivery.Terminal())
}
