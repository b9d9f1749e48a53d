package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/frame"
	"github.com/gekko3d/splat/splatrt/rt/shaders"
)

const (
	radixBits   = 8
	radixSize   = 1 << radixBits
	sortPasses  = 32 / radixBits
	sortBlock   = 256
	paramStride = 256 // minUniformBufferOffsetAlignment
)

// SortBuffers is one side of the sorter's ping-pong pair.
type SortBuffers struct {
	Keys   *wgpu.Buffer
	Values *wgpu.Buffer
}

// Sorter sorts (key, value) pairs on the device. Preprocessing appends into
// PingPong(0) and bumps SortInfoBuffer / DispatchIndirectBuffer; after Sort the
// ascending result is back in PingPong(0).
type Sorter interface {
	SortInfoBuffer() *wgpu.Buffer
	DispatchIndirectBuffer() *wgpu.Buffer
	PingPong(i int) SortBuffers
	WorkgroupSize() uint32
	KeysPerThread() uint32
	Sort(encoder *wgpu.CommandEncoder) error
	Release()
}

// SorterFactory builds a sorter able to hold capacity keys.
type SorterFactory func(device *wgpu.Device, capacity uint32, label string) (Sorter, error)

// RadixSorter is a 4-pass LSD radix sort over 32-bit keys. Each pass runs a
// per-block digit histogram, a single-workgroup digit-major scan and a stable
// scatter into the other ping-pong side. Histogram and scatter are dispatched
// indirectly from the dispatch buffer filled during preprocessing.
type RadixSorter struct {
	device    *wgpu.Device
	capacity  uint32
	maxBlocks uint32

	sortInfo  *wgpu.Buffer
	dispatch  *wgpu.Buffer
	pingPong  [2]SortBuffers
	blockHist *wgpu.Buffer
	params    *wgpu.Buffer

	module         *wgpu.ShaderModule
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	histogram      *wgpu.ComputePipeline
	scan           *wgpu.ComputePipeline
	scatter        *wgpu.ComputePipeline
	bindGroups     [sortPasses]*wgpu.BindGroup
}

// NewRadixSorter matches SorterFactory.
func NewRadixSorter(device *wgpu.Device, capacity uint32, label string) (Sorter, error) {
	s := &RadixSorter{
		device:    device,
		capacity:  capacity,
		maxBlocks: max(frame.Workgroups(capacity), 1),
	}
	if err := s.createBuffers(label); err != nil {
		s.Release()
		return nil, err
	}
	if err := s.createPipelines(label); err != nil {
		s.Release()
		return nil, err
	}
	if err := s.createBindGroups(label); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *RadixSorter) createBuffers(label string) error {
	var err error
	s.sortInfo, err = createBuffer(s.device, label+" sort_info", frame.SortInfoSize,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, u32sToBytes(0))
	if err != nil {
		return err
	}
	s.dispatch, err = createBuffer(s.device, label+" sort_dispatch", frame.DispatchIndirectSize,
		wgpu.BufferUsageStorage|wgpu.BufferUsageIndirect|wgpu.BufferUsageCopySrc, frame.InitialSortDispatch())
	if err != nil {
		return err
	}

	keysSize := uint64(max(s.capacity, 1)) * 4
	for i := range s.pingPong {
		s.pingPong[i].Keys, err = createBuffer(s.device, fmt.Sprintf("%s sort_depths %d", label, i), keysSize,
			wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, nil)
		if err != nil {
			return err
		}
		s.pingPong[i].Values, err = createBuffer(s.device, fmt.Sprintf("%s sort_indices %d", label, i), keysSize,
			wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, nil)
		if err != nil {
			return err
		}
	}

	s.blockHist, err = createBuffer(s.device, label+" block_hist", uint64(radixSize)*uint64(s.maxBlocks)*4,
		wgpu.BufferUsageStorage, nil)
	if err != nil {
		return err
	}

	params := make([]byte, sortPasses*paramStride)
	for p := 0; p < sortPasses; p++ {
		copy(params[p*paramStride:], u32sToBytes(uint32(p*radixBits), s.maxBlocks, 0, 0))
	}
	s.params, err = createBuffer(s.device, label+" sort_params", uint64(len(params)), wgpu.BufferUsageUniform, params)
	return err
}

func (s *RadixSorter) createPipelines(label string) error {
	var err error
	s.module, err = s.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + " Radix Sort",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RadixSortWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create radix sort shader module: %w", err)
	}

	s.layout, err = s.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: label + " Radix Sort BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			storageEntry(0, wgpu.ShaderStageCompute, true),
			storageEntry(1, wgpu.ShaderStageCompute, true),
			storageEntry(2, wgpu.ShaderStageCompute, true),
			storageEntry(3, wgpu.ShaderStageCompute, false),
			storageEntry(4, wgpu.ShaderStageCompute, false),
			storageEntry(5, wgpu.ShaderStageCompute, false),
			uniformEntry(6, wgpu.ShaderStageCompute, 16),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create radix sort bind group layout: %w", err)
	}

	s.pipelineLayout, err = s.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + " Radix Sort Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{s.layout},
	})
	if err != nil {
		return fmt.Errorf("failed to create radix sort pipeline layout: %w", err)
	}

	create := func(entry string) (*wgpu.ComputePipeline, error) {
		p, err := s.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  fmt.Sprintf("%s Radix Sort %s", label, entry),
			Layout: s.pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     s.module,
				EntryPoint: entry,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create radix sort %s pipeline: %w", entry, err)
		}
		return p, nil
	}
	if s.histogram, err = create("histogram"); err != nil {
		return err
	}
	if s.scan, err = create("scan"); err != nil {
		return err
	}
	s.scatter, err = create("scatter")
	return err
}

// createBindGroups builds one bind group per pass. Even passes read side 0 and
// write side 1, odd passes the reverse.
func (s *RadixSorter) createBindGroups(label string) error {
	for p := 0; p < sortPasses; p++ {
		src, dst := s.pingPong[p%2], s.pingPong[(p+1)%2]
		bg, err := s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("%s Radix Sort Pass %d", label, p),
			Layout: s.layout,
			Entries: []wgpu.BindGroupEntry{
				bufferEntry(0, s.sortInfo),
				bufferEntry(1, src.Keys),
				bufferEntry(2, src.Values),
				bufferEntry(3, dst.Keys),
				bufferEntry(4, dst.Values),
				bufferEntry(5, s.blockHist),
				{Binding: 6, Buffer: s.params, Offset: uint64(p * paramStride), Size: 16},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create radix sort bind group %d: %w", p, err)
		}
		s.bindGroups[p] = bg
	}
	return nil
}

func (s *RadixSorter) SortInfoBuffer() *wgpu.Buffer         { return s.sortInfo }
func (s *RadixSorter) DispatchIndirectBuffer() *wgpu.Buffer { return s.dispatch }
func (s *RadixSorter) PingPong(i int) SortBuffers           { return s.pingPong[i&1] }
func (s *RadixSorter) WorkgroupSize() uint32                { return frame.WorkgroupSize }
func (s *RadixSorter) KeysPerThread() uint32                { return sortBlock / frame.WorkgroupSize }

func (s *RadixSorter) Sort(encoder *wgpu.CommandEncoder) error {
	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "radix sort"})
	for p := 0; p < sortPasses; p++ {
		pass.SetBindGroup(0, s.bindGroups[p], nil)

		pass.SetPipeline(s.histogram)
		pass.DispatchWorkgroupsIndirect(s.dispatch, 0)

		pass.SetPipeline(s.scan)
		pass.DispatchWorkgroups(1, 1, 1)

		pass.SetPipeline(s.scatter)
		pass.DispatchWorkgroupsIndirect(s.dispatch, 0)
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("radix sort pass: %w", err)
	}
	return nil
}

func (s *RadixSorter) Release() {
	for i, bg := range s.bindGroups {
		if bg != nil {
			bg.Release()
			s.bindGroups[i] = nil
		}
	}
	for _, p := range []**wgpu.ComputePipeline{&s.histogram, &s.scan, &s.scatter} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}
	if s.pipelineLayout != nil {
		s.pipelineLayout.Release()
		s.pipelineLayout = nil
	}
	if s.layout != nil {
		s.layout.Release()
		s.layout = nil
	}
	if s.module != nil {
		s.module.Release()
		s.module = nil
	}
	bufs := []**wgpu.Buffer{&s.sortInfo, &s.dispatch, &s.blockHist, &s.params,
		&s.pingPong[0].Keys, &s.pingPong[0].Values, &s.pingPong[1].Keys, &s.pingPong[1].Values}
	for _, b := range bufs {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
}
