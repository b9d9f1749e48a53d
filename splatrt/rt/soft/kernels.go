package soft

import (
	"math"
	"sync"

	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/frame"
)

const splatWords = frame.SplatStride / 4

// preprocess runs workgroups concurrently. Every invocation that survives
// culling reserves a slot with an atomic add on sort_info, exactly like the
// compute shader, so slot order is unspecified.
func (r *Renderer) preprocess(workgroups uint32) {
	cam := core.ParseCameraUniform(mustRead(r.camera, 0, core.CameraUniformSize))
	settings := core.ParseRenderSettings(mustRead(r.renderSettings, 0, frame.RenderSettingsSize))
	keysPerDispatch := r.sorter.WorkgroupSize() * r.sorter.KeysPerThread()
	sorted := r.sorter.PingPong(0)

	var wg sync.WaitGroup
	for w := uint32(0); w < workgroups; w++ {
		wg.Add(1)
		go func(group uint32) {
			defer wg.Done()
			for lid := uint32(0); lid < frame.WorkgroupSize; lid++ {
				idx := group*frame.WorkgroupSize + lid
				if idx >= r.numPoints {
					return
				}
				var sh []float32
				if int(idx) < len(r.pc.SH) {
					sh = r.pc.SH[idx]
				}
				splat, depth, ok := core.ProjectGaussian(r.pc.Gaussians[idx], sh, cam, settings)
				if !ok {
					continue
				}

				slot := r.sorter.SortInfo.atomicAdd(0, 1)
				if slot%keysPerDispatch == 0 {
					r.sorter.Dispatch.atomicAdd(0, 1)
				}
				for i, word := range splat.Pack() {
					r.splats.storeWord(int(slot)*splatWords+i, word)
				}
				sorted.Keys.storeWord(int(slot), core.DepthKey(depth))
				sorted.Values.storeWord(int(slot), slot)
				r.slotSource[slot] = idx
			}
		}(w)
	}
	wg.Wait()
}

// DrawCall is what one indirect draw saw when it executed.
type DrawCall struct {
	VertexCount   uint32
	InstanceCount uint32
	// Order holds the splat slots in draw order.
	Order    []uint32
	Settings core.RenderSettings
}

func (r *Renderer) executeDrawIndirect(args *Buffer, offset uint64, target *Target) (DrawCall, error) {
	if err := args.checkRange(offset, frame.DrawIndirectSize); err != nil {
		return DrawCall{}, err
	}
	w := args.Words(int(offset/4), 4)
	call := DrawCall{
		VertexCount:   w[0],
		InstanceCount: w[1],
		Settings:      core.ParseRenderSettings(mustRead(r.renderSettings, 0, frame.RenderSettingsSize)),
	}
	capacity := max(r.numPoints, 1)
	first := min(w[3], capacity)
	call.Order = r.sorter.PingPong(0).Values.Words(int(first), int(min(call.InstanceCount, capacity-first)))

	if target == nil {
		return call, nil
	}
	target.Clear(r.clear)
	if call.VertexCount < frame.VerticesPerSplat {
		return call, nil
	}
	for _, slot := range call.Order {
		rasterize(target, core.ReadSplat(mustRead(r.splats, uint64(slot)*frame.SplatStride, frame.SplatStride)))
	}
	return call, nil
}

// rasterize evaluates the splat's quad the way the fragment shader does.
func rasterize(t *Target, s core.Splat) {
	if t.Width == 0 || t.Height == 0 {
		return
	}
	w, h := float32(t.Width), float32(t.Height)
	cx := (s.Center[0] + 1) * 0.5 * w
	cy := (1 - s.Center[1]) * 0.5 * h
	rx := s.Size[0] * 0.5 * w
	ry := s.Size[1] * 0.5 * h

	x0 := max(int(math.Floor(float64(cx-rx))), 0)
	x1 := min(int(math.Ceil(float64(cx+rx))), t.Width)
	y0 := max(int(math.Floor(float64(cy-ry))), 0)
	y1 := min(int(math.Ceil(float64(cy+ry))), t.Height)

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			dx := float32(x) + 0.5 - cx
			dy := cy - (float32(y) + 0.5)
			power := -0.5*(s.Conic[0]*dx*dx+s.Conic[2]*dy*dy) - s.Conic[1]*dx*dy
			if power > 0 {
				continue
			}
			alpha := min(0.99, s.Opacity*float32(math.Exp(float64(power))))
			if alpha < 1.0/255.0 {
				continue
			}
			t.blend(x, y, [4]float32{s.Color[0] * alpha, s.Color[1] * alpha, s.Color[2] * alpha, alpha})
		}
	}
}

func mustRead(b *Buffer, offset, size uint64) []byte {
	data, err := b.Read(offset, size)
	if err != nil {
		panic(err)
	}
	return data
}
