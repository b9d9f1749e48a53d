package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/frame"
	"github.com/gekko3d/splat/splatrt/rt/shaders"
	"github.com/google/uuid"
)

type options struct {
	logger     core.Logger
	newSorter  SorterFactory
	label      string
	clearColor wgpu.Color
}

type Option func(*options)

func WithLogger(l core.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSorter replaces the built-in radix sorter.
func WithSorter(f SorterFactory) Option {
	return func(o *options) {
		if f != nil {
			o.newSorter = f
		}
	}
}

func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

func WithClearColor(c wgpu.Color) Option {
	return func(o *options) { o.clearColor = c }
}

func defaultOptions() options {
	return options{
		logger:     core.NewNopLogger(),
		newSorter:  NewRadixSorter,
		label:      "gaussian",
		clearColor: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
	}
}

// Renderer owns the per-frame buffers and pipelines of the splat renderer.
// Frame records the whole frame into a caller-owned encoder; submission is the
// caller's.
type Renderer struct {
	ID uuid.UUID

	device *wgpu.Device
	queue  *wgpu.Queue
	logger core.Logger
	label  string
	clear  wgpu.Color

	pc           *PointCloudBuffers
	cameraBuffer *wgpu.Buffer
	sorter       Sorter
	numPoints    uint32
	shDeg        uint32

	nullBuffer           *wgpu.Buffer
	splatBuffer          *wgpu.Buffer
	renderSettingsBuffer *wgpu.Buffer
	drawIndirectBuffer   *wgpu.Buffer

	preprocessModule   *wgpu.ShaderModule
	preprocessBGLs     [3]*wgpu.BindGroupLayout
	preprocessLayout   *wgpu.PipelineLayout
	preprocessPipeline *wgpu.ComputePipeline

	renderModule   *wgpu.ShaderModule
	renderBGLs     [2]*wgpu.BindGroupLayout
	renderLayout   *wgpu.PipelineLayout
	renderPipeline *wgpu.RenderPipeline

	preprocessCameraBG   *wgpu.BindGroup
	preprocessGaussianBG *wgpu.BindGroup
	sortBG               *wgpu.BindGroup
	renderCameraBG       *wgpu.BindGroup
	renderSplatBG        *wgpu.BindGroup
}

// NewRenderer builds buffers, pipelines and bind groups for pc. cameraBuffer
// must be a uniform buffer of core.CameraUniformSize bytes that the caller
// updates each frame.
func NewRenderer(pc *PointCloudBuffers, device *wgpu.Device, format wgpu.TextureFormat, cameraBuffer *wgpu.Buffer, opts ...Option) (*Renderer, error) {
	if pc == nil || device == nil || cameraBuffer == nil {
		return nil, fmt.Errorf("renderer needs a point cloud, a device and a camera buffer")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		ID:           uuid.New(),
		device:       device,
		queue:        device.GetQueue(),
		logger:       o.logger,
		clear:        o.clearColor,
		pc:           pc,
		cameraBuffer: cameraBuffer,
		numPoints:    pc.NumPoints(),
		shDeg:        pc.SHDeg(),
	}
	r.label = fmt.Sprintf("%s[%s]", o.label, r.ID.String()[:8])

	sorter, err := o.newSorter(device, r.numPoints, r.label)
	if err != nil {
		return nil, fmt.Errorf("failed to create sorter: %w", err)
	}
	r.sorter = sorter

	if err := r.createBuffers(); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.createPreprocessPipeline(); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.createRenderPipeline(format); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.createBindGroups(); err != nil {
		r.Release()
		return nil, err
	}

	r.logger.Debugf("%s: %d points, sh degree %d, splat buffer %d bytes", r.label, r.numPoints, r.shDeg, r.splatBuffer.GetSize())
	r.logger.Infof("renderer %s ready", r.ID)
	return r, nil
}

func (r *Renderer) createBuffers() error {
	var err error
	r.nullBuffer, err = createBuffer(r.device, r.label+" null", frame.BufferSize(frame.BufferNull, r.numPoints),
		wgpu.BufferUsageCopySrc, u32sToBytes(0))
	if err != nil {
		return err
	}
	r.splatBuffer, err = createBuffer(r.device, r.label+" splat_data", frame.BufferSize(frame.BufferSplats, r.numPoints),
		wgpu.BufferUsageStorage, nil)
	if err != nil {
		return err
	}
	r.renderSettingsBuffer, err = createBuffer(r.device, r.label+" render_settings", frame.RenderSettingsSize,
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopySrc, frame.InitialRenderSettings(r.shDeg))
	if err != nil {
		return err
	}
	r.drawIndirectBuffer, err = createBuffer(r.device, r.label+" draw_indirect", frame.DrawIndirectSize,
		wgpu.BufferUsageStorage|wgpu.BufferUsageIndirect|wgpu.BufferUsageCopySrc, frame.InitialDrawIndirect())
	return err
}

func (r *Renderer) createPreprocessPipeline() error {
	src, err := shaders.Preprocess(shaders.PreprocessParams{
		WorkgroupSize:   r.sorter.WorkgroupSize(),
		KeysPerDispatch: r.sorter.WorkgroupSize() * r.sorter.KeysPerThread(),
	})
	if err != nil {
		return err
	}
	r.preprocessModule, err = r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          r.label + " Preprocess CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return fmt.Errorf("failed to create preprocess shader module: %w", err)
	}

	// Grouped by update frequency: per frame, per scene, sorter.
	groups := [3][]wgpu.BindGroupLayoutEntry{
		{
			uniformEntry(0, wgpu.ShaderStageCompute, core.CameraUniformSize),
			uniformEntry(1, wgpu.ShaderStageCompute, frame.RenderSettingsSize),
		},
		{
			storageEntry(0, wgpu.ShaderStageCompute, true),
			storageEntry(1, wgpu.ShaderStageCompute, true),
			storageEntry(2, wgpu.ShaderStageCompute, false),
		},
		{
			storageEntry(0, wgpu.ShaderStageCompute, false),
			storageEntry(1, wgpu.ShaderStageCompute, false),
			storageEntry(2, wgpu.ShaderStageCompute, false),
			storageEntry(3, wgpu.ShaderStageCompute, false),
		},
	}
	for i, entries := range groups {
		r.preprocessBGLs[i], err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s Preprocess BGL %d", r.label, i),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("failed to create preprocess bind group layout %d: %w", i, err)
		}
	}

	r.preprocessLayout, err = r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            r.label + " Preprocess Layout",
		BindGroupLayouts: r.preprocessBGLs[:],
	})
	if err != nil {
		return fmt.Errorf("failed to create preprocess pipeline layout: %w", err)
	}

	r.preprocessPipeline, err = r.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  r.label + " Preprocess Pipeline",
		Layout: r.preprocessLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     r.preprocessModule,
			EntryPoint: "preprocess",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create preprocess pipeline: %w", err)
	}
	return nil
}

func (r *Renderer) createRenderPipeline(format wgpu.TextureFormat) error {
	var err error
	r.renderModule, err = r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          r.label + " Gaussian VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.GaussianWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create gaussian shader module: %w", err)
	}

	groups := [2][]wgpu.BindGroupLayoutEntry{
		{uniformEntry(0, wgpu.ShaderStageVertex, core.CameraUniformSize)},
		{
			storageEntry(0, wgpu.ShaderStageVertex, true),
			storageEntry(1, wgpu.ShaderStageVertex, true),
		},
	}
	for i, entries := range groups {
		r.renderBGLs[i], err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s Render BGL %d", r.label, i),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("failed to create render bind group layout %d: %w", i, err)
		}
	}

	r.renderLayout, err = r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            r.label + " Render Layout",
		BindGroupLayouts: r.renderBGLs[:],
	})
	if err != nil {
		return fmt.Errorf("failed to create render pipeline layout: %w", err)
	}

	premultiplied := wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	}
	r.renderPipeline, err = r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  r.label + " Gaussian Render Pipeline",
		Layout: r.renderLayout,
		Vertex: wgpu.VertexState{
			Module:     r.renderModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     r.renderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: format,
				Blend: &wgpu.BlendState{
					Color: premultiplied,
					Alpha: premultiplied,
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create gaussian render pipeline: %w", err)
	}
	return nil
}

func (r *Renderer) createBindGroups() error {
	sorted := r.sorter.PingPong(0)
	groups := []struct {
		dst     **wgpu.BindGroup
		name    string
		layout  *wgpu.BindGroupLayout
		entries []wgpu.BindGroupEntry
	}{
		{&r.preprocessCameraBG, "preprocess_camera", r.preprocessBGLs[0], []wgpu.BindGroupEntry{
			bufferEntry(0, r.cameraBuffer),
			bufferEntry(1, r.renderSettingsBuffer),
		}},
		{&r.preprocessGaussianBG, "preprocess_gaussian", r.preprocessBGLs[1], []wgpu.BindGroupEntry{
			bufferEntry(0, r.pc.Gaussians),
			bufferEntry(1, r.pc.SH),
			bufferEntry(2, r.splatBuffer),
		}},
		{&r.sortBG, "sort", r.preprocessBGLs[2], []wgpu.BindGroupEntry{
			bufferEntry(0, r.sorter.SortInfoBuffer()),
			bufferEntry(1, sorted.Keys),
			bufferEntry(2, sorted.Values),
			bufferEntry(3, r.sorter.DispatchIndirectBuffer()),
		}},
		{&r.renderCameraBG, "render_camera", r.renderBGLs[0], []wgpu.BindGroupEntry{
			bufferEntry(0, r.cameraBuffer),
		}},
		{&r.renderSplatBG, "render_splat", r.renderBGLs[1], []wgpu.BindGroupEntry{
			bufferEntry(0, r.splatBuffer),
			bufferEntry(1, sorted.Values),
		}},
	}
	for _, g := range groups {
		bg, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   r.label + " " + g.name,
			Layout:  g.layout,
			Entries: g.entries,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s bind group: %w", g.name, err)
		}
		*g.dst = bg
	}
	return nil
}

// Frame records reset, preprocess, sort, count propagation and the indirect
// draw into encoder, rendering into view.
func (r *Renderer) Frame(encoder *wgpu.CommandEncoder, view *wgpu.TextureView) error {
	if encoder == nil || view == nil {
		return fmt.Errorf("%s: frame needs an encoder and a target view", r.label)
	}
	return frame.Record(frame.Plan(r.numPoints), &wgpuRecorder{r: r, encoder: encoder, view: view})
}

// SetGaussianMultiplier queues a write of [v, shDeg] to the render settings.
// It is visible to the next submitted frame.
func (r *Renderer) SetGaussianMultiplier(v float32) error {
	settings := core.RenderSettings{GaussianMultiplier: v, SHDeg: float32(r.shDeg)}
	if err := r.queue.WriteBuffer(r.renderSettingsBuffer, 0, settings.Bytes()); err != nil {
		return fmt.Errorf("failed to write render settings: %w", err)
	}
	return nil
}

func (r *Renderer) CameraBuffer() *wgpu.Buffer { return r.cameraBuffer }
func (r *Renderer) NumPoints() uint32          { return r.numPoints }
func (r *Renderer) Sorter() Sorter             { return r.sorter }
func (r *Renderer) Label() string              { return r.label }

// Buffer resolves one of the orchestrator buffers, including the sorter's
// sort info and dispatch buffers.
func (r *Renderer) Buffer(id frame.BufferID) *wgpu.Buffer {
	switch id {
	case frame.BufferNull:
		return r.nullBuffer
	case frame.BufferSplats:
		return r.splatBuffer
	case frame.BufferRenderSettings:
		return r.renderSettingsBuffer
	case frame.BufferDrawIndirect:
		return r.drawIndirectBuffer
	case frame.BufferSortInfo:
		if r.sorter != nil {
			return r.sorter.SortInfoBuffer()
		}
	case frame.BufferSortDispatch:
		if r.sorter != nil {
			return r.sorter.DispatchIndirectBuffer()
		}
	}
	return nil
}

// Release frees everything the renderer created. The point cloud and the
// camera buffer belong to the caller.
func (r *Renderer) Release() {
	for _, bg := range []**wgpu.BindGroup{&r.preprocessCameraBG, &r.preprocessGaussianBG, &r.sortBG, &r.renderCameraBG, &r.renderSplatBG} {
		if *bg != nil {
			(*bg).Release()
			*bg = nil
		}
	}
	if r.preprocessPipeline != nil {
		r.preprocessPipeline.Release()
		r.preprocessPipeline = nil
	}
	if r.renderPipeline != nil {
		r.renderPipeline.Release()
		r.renderPipeline = nil
	}
	for _, l := range []**wgpu.PipelineLayout{&r.preprocessLayout, &r.renderLayout} {
		if *l != nil {
			(*l).Release()
			*l = nil
		}
	}
	for i := range r.preprocessBGLs {
		if r.preprocessBGLs[i] != nil {
			r.preprocessBGLs[i].Release()
			r.preprocessBGLs[i] = nil
		}
	}
	for i := range r.renderBGLs {
		if r.renderBGLs[i] != nil {
			r.renderBGLs[i].Release()
			r.renderBGLs[i] = nil
		}
	}
	for _, m := range []**wgpu.ShaderModule{&r.preprocessModule, &r.renderModule} {
		if *m != nil {
			(*m).Release()
			*m = nil
		}
	}
	for _, b := range []**wgpu.Buffer{&r.nullBuffer, &r.splatBuffer, &r.renderSettingsBuffer, &r.drawIndirectBuffer} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	if r.sorter != nil {
		r.sorter.Release()
		r.sorter = nil
	}
}
