package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

const (
	// SplatStride is the byte size of one projected splat record (6 packed words).
	SplatStride = 6 * 4

	// NearCull is the minimum view-space depth a Gaussian may have and still be drawn.
	NearCull float32 = 0.2
	// ClipCull bounds the NDC centre; splats whose centre lies outside are dropped.
	ClipCull float32 = 1.2
)

// RenderSettings mirrors struct RenderSettings { gaussian_multiplier: f32, sh_deg: f32 }.
type RenderSettings struct {
	GaussianMultiplier float32
	SHDeg              float32
}

func (s RenderSettings) Bytes() []byte {
	buf := make([]byte, 8)
	putF32s(buf, s.GaussianMultiplier, s.SHDeg)
	return buf
}

func ParseRenderSettings(buf []byte) RenderSettings {
	if len(buf) < 8 {
		return RenderSettings{}
	}
	return RenderSettings{
		GaussianMultiplier: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])),
		SHDeg:              math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])),
	}
}

// Splat is the screen-space ellipse produced by preprocessing. Center and Size
// are in NDC, Conic is the inverse 2D covariance in pixels.
type Splat struct {
	Center  [2]float32
	Size    [2]float32
	Conic   [3]float32
	Opacity float32
	Color   [3]float32
}

// Pack encodes the record the way WGSL pack2x16float does: first component in the low half.
func (s Splat) Pack() [6]uint32 {
	return [6]uint32{
		pack2x16(s.Center[0], s.Center[1]),
		pack2x16(s.Size[0], s.Size[1]),
		pack2x16(s.Conic[0], s.Conic[1]),
		pack2x16(s.Conic[2], s.Opacity),
		pack2x16(s.Color[0], s.Color[1]),
		pack2x16(s.Color[2], 1),
	}
}

// PutSplat writes the packed record at buf[0:SplatStride].
func PutSplat(buf []byte, s Splat) {
	for i, w := range s.Pack() {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
}

// ReadSplat decodes a packed record; values carry half-float precision.
func ReadSplat(buf []byte) Splat {
	var w [6]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	var s Splat
	s.Center[0], s.Center[1] = unpack2x16(w[0])
	s.Size[0], s.Size[1] = unpack2x16(w[1])
	s.Conic[0], s.Conic[1] = unpack2x16(w[2])
	s.Conic[2], s.Opacity = unpack2x16(w[3])
	s.Color[0], s.Color[1] = unpack2x16(w[4])
	s.Color[2], _ = unpack2x16(w[5])
	return s
}

func pack2x16(a, b float32) uint32 {
	return uint32(float16.Fromfloat32(a).Bits()) | uint32(float16.Fromfloat32(b).Bits())<<16
}

func unpack2x16(w uint32) (float32, float32) {
	return float16.Frombits(uint16(w)).Float32(), float16.Frombits(uint16(w >> 16)).Float32()
}

// DepthKey maps a positive view depth to a sort key whose ascending order is
// far-to-near. Positive IEEE floats order like their bit patterns.
func DepthKey(depth float32) uint32 {
	return math.MaxUint32 - math.Float32bits(depth)
}

// ProjectGaussian is the host version of the preprocess kernel. It returns the
// splat, its view depth and whether the Gaussian survives culling.
func ProjectGaussian(g Gaussian, sh []float32, cam CameraUniform, settings RenderSettings) (Splat, float32, bool) {
	pos := mgl32.Vec3{g.Position[0], g.Position[1], g.Position[2]}
	pView := cam.View.Mul4x1(pos.Vec4(1))
	depth := -pView.Z()
	if depth < NearCull {
		return Splat{}, 0, false
	}

	pClip := cam.Proj.Mul4x1(pView)
	if pClip.W() == 0 {
		return Splat{}, 0, false
	}
	ndcX, ndcY := pClip.X()/pClip.W(), pClip.Y()/pClip.W()
	if abs32(ndcX) > ClipCull || abs32(ndcY) > ClipCull {
		return Splat{}, 0, false
	}

	cov3 := g.Covariance3D(settings.GaussianMultiplier)

	// Jacobian of the pixel projection (u = fx*x/d, v = fy*y/d, d = -z).
	fx, fy := cam.Focal[0], cam.Focal[1]
	tx, ty := pView.X(), pView.Y()
	j := mgl32.Mat3{
		fx / depth, 0, 0,
		0, fy / depth, 0,
		fx * tx / (depth * depth), fy * ty / (depth * depth), 0,
	}
	w := cam.View.Mat3()
	t := j.Mul3(w)
	cov2 := t.Mul3(cov3).Mul3(t.Transpose())

	a := cov2.At(0, 0) + 0.3
	b := cov2.At(0, 1)
	c := cov2.At(1, 1) + 0.3
	det := a*c - b*b
	if det <= 0 {
		return Splat{}, 0, false
	}
	conic := [3]float32{c / det, -b / det, a / det}

	mid := 0.5 * (a + c)
	lambda := mid + float32(math.Sqrt(float64(max(0.1, mid*mid-det))))
	radius := float32(math.Ceil(3 * math.Sqrt(float64(lambda))))

	dir := pos.Sub(cam.Position())
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	color := EvalSH(sh, uint32(settings.SHDeg), dir)

	return Splat{
		Center:  [2]float32{ndcX, ndcY},
		Size:    [2]float32{2 * radius / cam.Viewport[0], 2 * radius / cam.Viewport[1]},
		Conic:   conic,
		Opacity: g.Opacity,
		Color:   color,
	}, depth, true
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
