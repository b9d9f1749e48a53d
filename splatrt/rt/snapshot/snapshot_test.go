package snapshot

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	pc := core.NewColoredCloud([][3]float32{{0, 0, 0}}, [][3]float32{{1, 0, 0}}, 0.3, 1)
	opts := DefaultOptions()
	opts.Width, opts.Height = 32, 24

	res, err := Render(pc, opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.Visible)
	assert.Equal(t, uint32(1), res.Points)
	require.Equal(t, 32, res.Image.Bounds().Dx())
	require.Equal(t, 24, res.Image.Bounds().Dy())

	center := res.Image.NRGBAAt(16, 12)
	assert.Greater(t, center.R, uint8(128))
	assert.Less(t, center.B, uint8(32))
	corner := res.Image.NRGBAAt(0, 0)
	assert.Equal(t, uint8(255), corner.A)
	assert.Less(t, corner.R, uint8(8))
}

func TestRenderInvalidSize(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 0
	_, err := Render(core.NewGridCloud(2, 1), opts)
	assert.Error(t, err)
}

func TestRenderEmpty(t *testing.T) {
	opts := DefaultOptions()
	opts.Width, opts.Height, opts.Supersample = 8, 8, 1
	opts.Background = [4]float32{0, 0, 1, 1}

	res, err := Render(&core.PointCloud{}, opts)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), res.Visible)
	px := res.Image.NRGBAAt(4, 4)
	assert.Equal(t, [4]uint8{0, 0, 255, 255}, [4]uint8{px.R, px.G, px.B, px.A})
}

func TestRenderFittedCamera(t *testing.T) {
	pc := core.NewColoredCloud([][3]float32{{-1, 0, 0}, {3, 0, 0}}, nil, 0.1, 1)
	cam := core.FitCamera(pc)
	assert.InDeltaSlice(t, []float32{1, 0, 5}, cam.Position[:], 1e-5)

	res, err := Render(pc, Options{Width: 16, Height: 16, Camera: cam})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), res.Visible)

	assert.Equal(t, core.NewCameraState().Position, core.FitCamera(&core.PointCloud{}).Position)
}

func TestWrite(t *testing.T) {
	img := imaging.New(4, 4, color.NRGBA{R: 255, A: 255})
	dir := t.TempDir()

	path := filepath.Join(dir, "out.png")
	require.NoError(t, Write(img, path, nil, true))
	back, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, back.Bounds().Dx())

	require.NoError(t, Write(img, filepath.Join(dir, "out.jpg"), nil, true))
	assert.Error(t, Write(img, filepath.Join(dir, "out.xyz"), nil, true))

	var buf bytes.Buffer
	assert.ErrorIs(t, Write(img, PipeName, &buf, true), ErrTerminalOutput)
	require.NoError(t, Write(img, PipeName, &buf, false))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)
}

func TestParseVec3(t *testing.T) {
	v, err := ParseVec3("1, -2.5,3e1")
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{1, -2.5, 30}, v)

	_, err = ParseVec3("1,2")
	assert.Error(t, err)
	_, err = ParseVec3("1,b,3")
	assert.Error(t, err)
}
