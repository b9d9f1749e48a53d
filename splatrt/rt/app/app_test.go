package app

import (
	"testing"
	"time"

	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppDefaults(t *testing.T) {
	a := NewApp(nil, Config{})
	assert.Equal(t, float32(1), a.Multiplier)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Camera)
	assert.NotNil(t, a.Profiler)

	a = NewApp(nil, Config{Multiplier: 2, Logger: core.NewNopLogger()})
	assert.Equal(t, float32(2), a.Multiplier)

	cfg := DefaultConfig()
	assert.Equal(t, float32(1), cfg.Multiplier)
	assert.Positive(t, cfg.Points)
}

func TestLoadSceneProcedural(t *testing.T) {
	a := NewApp(nil, Config{Points: 500, Logger: core.NewNopLogger()})
	assert.NoError(t, a.loadScene())
	assert.Equal(t, uint32(500), a.Cloud.NumPoints())

	a = NewApp(nil, Config{PLYPath: "does-not-exist.ply", Logger: core.NewNopLogger()})
	assert.Error(t, a.loadScene())
}

func TestFrameCloud(t *testing.T) {
	a := NewApp(nil, Config{Logger: core.NewNopLogger()})
	a.Cloud = core.NewColoredCloud([][3]float32{{10, 0, 0}, {14, 0, 0}}, nil, 0.1, 1)
	a.frameCloud()

	assert.InDeltaSlice(t, []float32{12, 0, 5}, a.Camera.Position[:], 1e-5)
	assert.GreaterOrEqual(t, a.Camera.Speed, float32(1))

	a.Cloud = &core.PointCloud{}
	before := a.Camera.Position
	a.frameCloud()
	assert.Equal(t, before, a.Camera.Position)
}

func TestLookClampsPitch(t *testing.T) {
	a := NewApp(nil, Config{Logger: core.NewNopLogger()})
	a.Look(0, -1e6)
	assert.Equal(t, float32(1.55), a.Camera.Pitch)
	a.Look(100, 1e6)
	assert.Equal(t, float32(-1.55), a.Camera.Pitch)
	assert.InDelta(t, 100*a.Camera.Sensitivity, a.Camera.Yaw, 1e-6)
}

func TestBeginFrameResetsTimings(t *testing.T) {
	a := NewApp(nil, Config{Logger: core.NewNopLogger()})
	a.Profiler.Measure("record", func() { time.Sleep(time.Millisecond) })
	require.NotZero(t, a.Profiler.Scopes["record"])

	assert.Zero(t, a.beginFrame(10))
	assert.Zero(t, a.Profiler.Scopes["record"], "last frame's timing is cleared")
	assert.NotZero(t, a.Profiler.Averages["record"])

	assert.InDelta(t, 0.5, a.beginFrame(10.5), 1e-6)
	assert.Equal(t, 10.5, a.LastTime)
}
