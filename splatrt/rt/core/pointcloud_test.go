package core

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(buf []byte, word int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[word*4:]))
}

func TestPackGaussians(t *testing.T) {
	pc := &PointCloud{Gaussians: []Gaussian{
		{Position: [3]float32{1, 2, 3}, Opacity: 0.5, Rotation: mgl32.Quat{W: 2}, Scale: [3]float32{4, 5, 6}},
		isotropic([3]float32{7, 8, 9}, 0.1),
	}}
	buf := pc.PackGaussians()
	require.Len(t, buf, 2*GaussianStride)

	want := []float32{1, 2, 3, 0.5, 1, 0, 0, 0, 4, 5, 6, 0}
	for i, v := range want {
		assert.Equal(t, v, f32At(buf, i), "word %d", i)
	}
	assert.Equal(t, float32(7), f32At(buf, GaussianStride/4))
}

func TestPackSH(t *testing.T) {
	pc := &PointCloud{
		Gaussians: make([]Gaussian, 3),
		SH:        [][]float32{{1, 2, 3}, make([]float32, SHStride+6)},
	}
	pc.SH[1][SHStride-1] = 9
	pc.SH[1][SHStride] = 99

	buf := pc.PackSH()
	require.Len(t, buf, 3*SHStride*4)
	assert.Equal(t, float32(3), f32At(buf, 2))
	assert.Equal(t, float32(0), f32At(buf, 3), "unused coefficients stay zero")
	assert.Equal(t, float32(9), f32At(buf, 2*SHStride-1))
	assert.Equal(t, float32(0), f32At(buf, 2*SHStride), "extra coefficients are dropped")
}

func TestPointCloudCounts(t *testing.T) {
	var nilCloud *PointCloud
	assert.Equal(t, uint32(0), nilCloud.NumPoints())
	assert.Equal(t, 1, SHCoeffCount(0))
	assert.Equal(t, 16, SHCoeffCount(3))
	assert.Equal(t, 48, SHStride)
}

func TestCovariance3D(t *testing.T) {
	g := Gaussian{Rotation: mgl32.QuatIdent(), Scale: [3]float32{1, 2, 3}}
	cov := g.Covariance3D(2)
	assert.Equal(t, mgl32.Diag3(mgl32.Vec3{4, 16, 36}), cov)

	// 90 degrees about Z swaps the x and y variances.
	g.Rotation = mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})
	cov = g.Covariance3D(1)
	assert.InDelta(t, 4, cov.At(0, 0), 1e-5)
	assert.InDelta(t, 1, cov.At(1, 1), 1e-5)
	assert.InDelta(t, 9, cov.At(2, 2), 1e-5)
}

func TestRotationMatrixMatchesMathgl(t *testing.T) {
	q := mgl32.QuatRotate(0.7, mgl32.Vec3{1, 2, 3}.Normalize())
	assert.True(t, RotationMatrix(q).ApproxEqualThreshold(q.Mat4().Mat3(), 1e-5))
	assert.True(t, RotationMatrix(q.Scale(3)).ApproxEqualThreshold(q.Mat4().Mat3(), 1e-5), "scale is normalized away")
}

func TestProceduralClouds(t *testing.T) {
	grid := NewGridCloud(3, 1)
	require.Equal(t, uint32(27), grid.NumPoints())
	var sum mgl32.Vec3
	for _, g := range grid.Gaussians {
		sum = sum.Add(mgl32.Vec3(g.Position))
	}
	assertVec3(t, mgl32.Vec3{}, sum)

	sphere := NewSphereCloud(100, 2)
	require.Equal(t, uint32(100), sphere.NumPoints())
	for _, g := range sphere.Gaussians {
		assert.InDelta(t, 2, mgl32.Vec3(g.Position).Len(), 1e-4)
	}

	assert.Equal(t, uint32(0), NewGridCloud(0, 1).NumPoints())
	assert.Equal(t, uint32(0), NewSphereCloud(-1, 1).NumPoints())

	white := NewColoredCloud([][3]float32{{0, 0, 0}}, nil, 0.1, 0.5)
	assert.InDeltaSlice(t, []float32{1, 1, 1}, toSlice(EvalSH(white.SH[0], 0, mgl32.Vec3{0, 0, 1})), 1e-5)
}

func toSlice(v [3]float32) []float32 { return v[:] }
