package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxSHDegree is the highest spherical-harmonic degree the GPU layout has room for.
	MaxSHDegree = 3
	// SHStride is the number of floats reserved per point in the SH buffer (16 coeffs * RGB).
	SHStride = (MaxSHDegree + 1) * (MaxSHDegree + 1) * 3
	// GaussianStride is the byte size of one packed Gaussian record.
	GaussianStride = 48
)

// Gaussian holds activated parameters: opacity in [0,1] and linear scale.
type Gaussian struct {
	Position [3]float32
	Opacity  float32
	Rotation mgl32.Quat
	Scale    [3]float32
}

// PointCloud is the host copy of a splat scene.
// SH[i] holds (SHDeg+1)^2 coefficients for point i, RGB interleaved per coefficient.
type PointCloud struct {
	Gaussians []Gaussian
	SH        [][]float32
	SHDeg     uint32
}

func (pc *PointCloud) NumPoints() uint32 {
	if pc == nil {
		return 0
	}
	return uint32(len(pc.Gaussians))
}

// SHCoeffCount returns the number of RGB coefficients used at a given degree.
func SHCoeffCount(deg uint32) int {
	return int((deg + 1) * (deg + 1))
}

// PackGaussians serializes the WGSL array<Gaussian> layout:
//
//	struct Gaussian {
//	  pos_opacity: vec4<f32>, // xyz, opacity
//	  rot: vec4<f32>,         // w, x, y, z
//	  scale: vec4<f32>,       // xyz, pad
//	}
func (pc *PointCloud) PackGaussians() []byte {
	buf := make([]byte, len(pc.Gaussians)*GaussianStride)
	for i, g := range pc.Gaussians {
		o := i * GaussianStride
		putF32s(buf[o:], g.Position[0], g.Position[1], g.Position[2], g.Opacity)
		q := g.Rotation.Normalize()
		putF32s(buf[o+16:], q.W, q.V[0], q.V[1], q.V[2])
		putF32s(buf[o+32:], g.Scale[0], g.Scale[1], g.Scale[2], 0)
	}
	return buf
}

// PackSH serializes SH coefficients with a fixed stride of SHStride floats per point.
// Coefficients beyond SHDeg stay zero.
func (pc *PointCloud) PackSH() []byte {
	buf := make([]byte, len(pc.Gaussians)*SHStride*4)
	for i := range pc.Gaussians {
		if i >= len(pc.SH) {
			break
		}
		coeffs := pc.SH[i]
		if len(coeffs) > SHStride {
			coeffs = coeffs[:SHStride]
		}
		o := i * SHStride * 4
		for j, c := range coeffs {
			binary.LittleEndian.PutUint32(buf[o+j*4:], math.Float32bits(c))
		}
	}
	return buf
}

// RotationMatrix returns the column-major rotation of a (not necessarily unit) quaternion.
func RotationMatrix(q mgl32.Quat) mgl32.Mat3 {
	q = q.Normalize()
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	return mgl32.Mat3{
		1 - 2*(y*y+z*z), 2 * (x*y + w*z), 2 * (x*z - w*y),
		2 * (x*y - w*z), 1 - 2*(x*x+z*z), 2 * (y*z + w*x),
		2 * (x*z + w*y), 2 * (y*z - w*x), 1 - 2*(x*x+y*y),
	}
}

// Covariance3D returns R*S*S^T*R^T with the scale multiplied by modifier.
func (g Gaussian) Covariance3D(modifier float32) mgl32.Mat3 {
	s := mgl32.Diag3(mgl32.Vec3{g.Scale[0] * modifier, g.Scale[1] * modifier, g.Scale[2] * modifier})
	m := RotationMatrix(g.Rotation).Mul3(s)
	return m.Mul3(m.Transpose())
}

func putF32s(buf []byte, vals ...float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}
