package imu

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent(t *testing.T) {
	v := r3.Vector{X: 1, Y: -2, Z: 3.5}
	assert.Equal(t, 1.0, Component(v, X))
	assert.Equal(t, -2.0, Component(v, Y))
	assert.Equal(t, 3.5, Component(v, Z))
}

func TestParseAxis(t *testing.T) {
	for in, want := range map[string]Axis{"x": X, "Y": Y, "2": Z} {
		got, err := ParseAxis(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseAxis("w")
	assert.Error(t, err)
	assert.False(t, Axis(3).Valid())
	assert.Equal(t, "z", Z.String())
}
