package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
)

// PointCloudBuffers is a point cloud resident on the device.
type PointCloudBuffers struct {
	Gaussians *wgpu.Buffer
	SH        *wgpu.Buffer
	numPoints uint32
	shDeg     uint32
}

func (p *PointCloudBuffers) NumPoints() uint32 { return p.numPoints }
func (p *PointCloudBuffers) SHDeg() uint32     { return p.shDeg }

func (p *PointCloudBuffers) Release() {
	if p.Gaussians != nil {
		p.Gaussians.Release()
		p.Gaussians = nil
	}
	if p.SH != nil {
		p.SH.Release()
		p.SH = nil
	}
}

// UploadPointCloud creates the Gaussian and SH storage buffers for pc.
// An empty cloud still gets one zeroed record per buffer.
func UploadPointCloud(device *wgpu.Device, pc *core.PointCloud) (*PointCloudBuffers, error) {
	if pc == nil {
		pc = &core.PointCloud{}
	}
	n := pc.NumPoints()
	if pc.SHDeg > core.MaxSHDegree {
		return nil, fmt.Errorf("sh degree %d exceeds %d", pc.SHDeg, core.MaxSHDegree)
	}

	gaussians, err := createBuffer(device, "Gaussians", uint64(max(n, 1))*core.GaussianStride, wgpu.BufferUsageStorage, pc.PackGaussians())
	if err != nil {
		return nil, err
	}
	sh, err := createBuffer(device, "SH Coefficients", uint64(max(n, 1))*core.SHStride*4, wgpu.BufferUsageStorage, pc.PackSH())
	if err != nil {
		gaussians.Release()
		return nil, err
	}
	return &PointCloudBuffers{
		Gaussians: gaussians,
		SH:        sh,
		numPoints: n,
		shDeg:     pc.SHDeg,
	}, nil
}
