package exercise

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/segment"
)

func TestResolveBuiltins(t *testing.T) {
	c, err := NewCatalog(nil)
	require.NoError(t, err)

	rows, err := c.Resolve("seated cable rows")
	require.NoError(t, err)
	assert.Equal(t, Rows, rows.Exercise)
	assert.Equal(t, imu.Z, rows.Counter.MagAxis)
	assert.Equal(t, -40.0, rows.Counter.MagThreshold)
	assert.Equal(t, 1250*time.Millisecond, rows.Counter.Debounce)

	pull, err := c.Resolve("Lat Pulldowns")
	require.NoError(t, err)
	assert.Equal(t, LatPulldown, pull.Exercise)
	assert.Equal(t, 0.75, pull.Counter.VelocityThreshold)
	assert.Equal(t, 0.125, pull.Segment.MinPeakHeight)

	_, err = c.Resolve("Deadlift")
	assert.True(t, errors.Is(err, ErrUnknownExercise))
}

func TestCatalogFromConfig(t *testing.T) {
	c, err := NewCatalog([]config.ExerciseConfig{
		{Name: "Bicep Curl", Aliases: []string{"curls"}, VelocityAxis: "z", VelocityThreshold: -0.4},
		{Name: "Rows", VelocityAxis: "x", MagAxis: "z", VelocityThreshold: 0.3, MagThreshold: -35, Debounce: time.Second},
	})
	require.NoError(t, err)

	curl, err := c.Resolve("CURLS")
	require.NoError(t, err)
	assert.Equal(t, Custom, curl.Exercise)
	assert.Equal(t, imu.Z, curl.Counter.VelocityAxis)
	assert.Equal(t, imu.Z, curl.Counter.MagAxis)
	assert.Equal(t, time.Second, curl.Counter.Debounce)
	assert.Equal(t, 50, curl.Segment.SmoothWindow)

	rows, err := c.Resolve("rows")
	require.NoError(t, err)
	assert.Equal(t, Rows, rows.Exercise)
	assert.Equal(t, -35.0, rows.Counter.MagThreshold)

	assert.Equal(t, []string{"Bicep Curl", "Lat Pulldowns", "Rows", "Triceps Extension"}, c.Names())
}

func TestSegmentOverlayKeepsExplicitZero(t *testing.T) {
	noCap, k := 0.0, 2.0
	c, err := NewCatalog([]config.ExerciseConfig{{
		Name:              "Shrugs",
		VelocityAxis:      "z",
		VelocityThreshold: 0.2,
		Segment:           config.SegmentConfig{CeilingRatio: &noCap, PositiveK: &k},
	}})
	require.NoError(t, err)

	shrugs, err := c.Resolve("shrugs")
	require.NoError(t, err)
	def := segment.DefaultConfig()
	assert.Zero(t, shrugs.Segment.CeilingRatio)
	assert.Equal(t, 2.0, shrugs.Segment.PositiveK)
	assert.Equal(t, def.NegativeK, shrugs.Segment.NegativeK)
	assert.Equal(t, def.SmoothWindow, shrugs.Segment.SmoothWindow)
	assert.Equal(t, def.DedupWindow, shrugs.Segment.DedupWindow)
}

func TestCatalogRejectsBadEntries(t *testing.T) {
	_, err := NewCatalog([]config.ExerciseConfig{{Name: "Plank", VelocityAxis: "q", VelocityThreshold: 1}})
	assert.Error(t, err)

	_, err = NewCatalog([]config.ExerciseConfig{{Name: "Plank"}})
	assert.Error(t, err)
}
