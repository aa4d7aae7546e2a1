package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.42, Clamp01(0.42))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.2, Clamp(0.1, 0.2, 0.6))
	assert.Equal(t, 0.6, Clamp(0.9, 0.2, 0.6))
	assert.Equal(t, 0.35, Clamp(0.35, 0.2, 0.6))
}

func TestRound6(t *testing.T) {
	assert.Equal(t, 0.123457, Round6(0.1234567))
	assert.Equal(t, 0.123456, Round6(0.1234564))
	assert.Equal(t, 1.0, Round6(0.9999999))
	// Idempotent
	assert.Equal(t, Round6(0.55), Round6(Round6(0.55)))
}

func TestAbsFloat64(t *testing.T) {
	assert.Equal(t, 0.3, AbsFloat64(-0.3))
	assert.Equal(t, 0.3, AbsFloat64(0.3))
}
