package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/frame"
)

// wgpuRecorder encodes frame steps into a command encoder.
type wgpuRecorder struct {
	r       *Renderer
	encoder *wgpu.CommandEncoder
	view    *wgpu.TextureView
}

func (w *wgpuRecorder) buffer(id frame.BufferID) (*wgpu.Buffer, error) {
	buf := w.r.Buffer(id)
	if buf == nil {
		return nil, fmt.Errorf("no buffer for %s", id)
	}
	return buf, nil
}

func (w *wgpuRecorder) CopyBuffer(src frame.BufferID, srcOffset uint64, dst frame.BufferID, dstOffset uint64, size uint64) error {
	s, err := w.buffer(src)
	if err != nil {
		return err
	}
	d, err := w.buffer(dst)
	if err != nil {
		return err
	}
	return w.encoder.CopyBufferToBuffer(s, srcOffset, d, dstOffset, size)
}

func (w *wgpuRecorder) Preprocess(workgroups uint32) error {
	pass := w.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "preprocess"})
	pass.SetPipeline(w.r.preprocessPipeline)
	pass.SetBindGroup(0, w.r.preprocessCameraBG, nil)
	pass.SetBindGroup(1, w.r.preprocessGaussianBG, nil)
	pass.SetBindGroup(2, w.r.sortBG, nil)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	return pass.End()
}

func (w *wgpuRecorder) Sort() error {
	return w.r.sorter.Sort(w.encoder)
}

func (w *wgpuRecorder) DrawIndirect(args frame.BufferID, offset uint64) error {
	buf, err := w.buffer(args)
	if err != nil {
		return err
	}
	pass := w.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "gaussian_render",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       w.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: w.r.clear,
		}},
	})
	pass.SetPipeline(w.r.renderPipeline)
	pass.SetBindGroup(0, w.r.renderCameraBG, nil)
	pass.SetBindGroup(1, w.r.renderSplatBG, nil)
	pass.DrawIndirect(buf, offset)
	return pass.End()
}
