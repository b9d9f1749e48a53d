package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
)

// NewCameraBuffer creates the uniform buffer the renderer reads the camera from.
func NewCameraBuffer(device *wgpu.Device, label string) (*wgpu.Buffer, error) {
	return createBuffer(device, label+" camera", core.CameraUniformSize, wgpu.BufferUsageUniform, nil)
}

// WriteCamera queues the camera uniforms for the next submission.
func WriteCamera(queue *wgpu.Queue, buf *wgpu.Buffer, u core.CameraUniform) error {
	return queue.WriteBuffer(buf, 0, u.Bytes())
}
