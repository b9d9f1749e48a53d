package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraUniformSize is the byte size of the WGSL CameraUniforms struct.
const CameraUniformSize = 4*64 + 16

type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	FovY        float32
	Near        float32
	Far         float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 0, 5},
		Yaw:         0,
		Pitch:       0,
		Speed:       2.0,
		Sensitivity: 0.003,
		FovY:        mgl32.DegToRad(60),
		Near:        0.1,
		Far:         1000.0,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Y-up: yaw 0 looks down -Z
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.GetForward()), mgl32.Vec3{0, 1, 0})
}

func (c *CameraState) GetProjMatrix(width, height uint32) mgl32.Mat4 {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// FitCamera places a camera on +Z looking at the center of pc's bounds, far
// enough back for the whole cloud to fit the default field of view. Speed
// scales with the cloud.
func FitCamera(pc *PointCloud) *CameraState {
	cam := NewCameraState()
	if pc.NumPoints() == 0 {
		return cam
	}
	lo := mgl32.Vec3(pc.Gaussians[0].Position)
	hi := lo
	for _, g := range pc.Gaussians {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], g.Position[i])
			hi[i] = max(hi[i], g.Position[i])
		}
	}
	center := lo.Add(hi).Mul(0.5)
	radius := max(hi.Sub(lo).Len()*0.5, 0.5)
	cam.Position = center.Add(mgl32.Vec3{0, 0, radius * 2.5})
	cam.Speed = max(radius*0.5, cam.Speed)
	return cam
}

// Uniform builds the per-frame camera record for a viewport.
func (c *CameraState) Uniform(width, height uint32) CameraUniform {
	return NewCameraUniform(c.GetViewMatrix(), c.GetProjMatrix(width, height), width, height)
}

// CameraUniform mirrors:
//
//	struct CameraUniforms {
//	  view: mat4x4<f32>,
//	  view_inv: mat4x4<f32>,
//	  proj: mat4x4<f32>,
//	  proj_inv: mat4x4<f32>,
//	  viewport: vec2<f32>,
//	  focal: vec2<f32>,
//	}
type CameraUniform struct {
	View     mgl32.Mat4
	ViewInv  mgl32.Mat4
	Proj     mgl32.Mat4
	ProjInv  mgl32.Mat4
	Viewport [2]float32
	Focal    [2]float32
}

// NewCameraUniform derives the inverses and the focal lengths in pixels from the projection.
func NewCameraUniform(view, proj mgl32.Mat4, width, height uint32) CameraUniform {
	w, h := float32(width), float32(height)
	return CameraUniform{
		View:     view,
		ViewInv:  view.Inv(),
		Proj:     proj,
		ProjInv:  proj.Inv(),
		Viewport: [2]float32{w, h},
		Focal:    [2]float32{proj[0] * w * 0.5, proj[5] * h * 0.5},
	}
}

// Position is the camera origin in world space.
func (u CameraUniform) Position() mgl32.Vec3 {
	return u.ViewInv.Col(3).Vec3()
}

func (u CameraUniform) Bytes() []byte {
	buf := make([]byte, CameraUniformSize)
	writeMat := func(offset int, m mgl32.Mat4) {
		for i, v := range m {
			binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(v))
		}
	}
	writeMat(0, u.View)
	writeMat(64, u.ViewInv)
	writeMat(128, u.Proj)
	writeMat(192, u.ProjInv)
	putF32s(buf[256:], u.Viewport[0], u.Viewport[1], u.Focal[0], u.Focal[1])
	return buf
}

// ParseCameraUniform is the inverse of Bytes.
func ParseCameraUniform(buf []byte) CameraUniform {
	var u CameraUniform
	if len(buf) < CameraUniformSize {
		return u
	}
	readMat := func(offset int) mgl32.Mat4 {
		var m mgl32.Mat4
		for i := range m {
			m[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[offset+i*4:]))
		}
		return m
	}
	u.View = readMat(0)
	u.ViewInv = readMat(64)
	u.Proj = readMat(128)
	u.ProjInv = readMat(192)
	f := func(o int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[o:])) }
	u.Viewport = [2]float32{f(256), f(260)}
	u.Focal = [2]float32{f(264), f(268)}
	return u
}
