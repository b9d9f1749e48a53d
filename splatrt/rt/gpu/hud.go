package gpu

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/shaders"
)

// HUD draws text over the finished splat image.
type HUD struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	text   *core.TextRenderer

	atlas        *wgpu.Texture
	atlasView    *wgpu.TextureView
	sampler      *wgpu.Sampler
	module       *wgpu.ShaderModule
	pipeline     *wgpu.RenderPipeline
	bindGroup    *wgpu.BindGroup
	vertexBuffer *wgpu.Buffer
	vertexCount  uint32

	items []core.TextItem
}

func NewHUD(device *wgpu.Device, format wgpu.TextureFormat, text *core.TextRenderer) (*HUD, error) {
	if text == nil {
		text = core.NewDefaultTextRenderer()
	}
	h := &HUD{device: device, queue: device.GetQueue(), text: text}
	if err := h.setupAtlas(); err != nil {
		h.Release()
		return nil, err
	}
	if err := h.setupPipeline(format); err != nil {
		h.Release()
		return nil, err
	}
	return h, nil
}

func (h *HUD) setupAtlas() error {
	w, ht := h.text.AtlasImage.Bounds().Dx(), h.text.AtlasImage.Bounds().Dy()
	var err error
	h.atlas, err = h.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "HUD Atlas",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(ht), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to create HUD atlas: %w", err)
	}
	h.queue.WriteTexture(h.atlas.AsImageCopy(), h.text.AtlasImage.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(h.text.AtlasImage.Stride),
		RowsPerImage: uint32(ht),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(ht), DepthOrArrayLayers: 1})
	h.atlasView, err = h.atlas.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create HUD atlas view: %w", err)
	}
	h.sampler, err = h.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "HUD Sampler",
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create HUD sampler: %w", err)
	}
	return nil
}

func (h *HUD) setupPipeline(format wgpu.TextureFormat) error {
	var err error
	h.module, err = h.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "HUD Text Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.TextWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create HUD shader module: %w", err)
	}

	h.pipeline, err = h.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "HUD Text Pipeline",
		Vertex: wgpu.VertexState{
			Module:     h.module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(core.TextVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     h.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
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
		return fmt.Errorf("failed to create HUD pipeline: %w", err)
	}

	h.bindGroup, err = h.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "HUD Bind Group",
		Layout: h.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: h.atlasView},
			{Binding: 1, Sampler: h.sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create HUD bind group: %w", err)
	}
	return nil
}

func (h *HUD) Clear() {
	h.items = h.items[:0]
	h.vertexCount = 0
}

func (h *HUD) DrawText(text string, x, y, scale float32, color [4]float32) {
	h.items = append(h.items, core.TextItem{
		Text:     text,
		Position: [2]float32{x, y},
		Scale:    scale,
		Color:    color,
	})
}

// Upload rebuilds the vertex buffer for the queued text.
func (h *HUD) Upload(screenW, screenH int) error {
	vertices := h.text.BuildVertices(h.items, screenW, screenH)
	h.vertexCount = uint32(len(vertices))
	if len(vertices) == 0 {
		return nil
	}
	size := uint64(len(vertices)) * uint64(unsafe.Sizeof(core.TextVertex{}))
	if h.vertexBuffer == nil || h.vertexBuffer.GetSize() < size {
		if h.vertexBuffer != nil {
			h.vertexBuffer.Release()
		}
		var err error
		h.vertexBuffer, err = createBuffer(h.device, "HUD VB", size, wgpu.BufferUsageVertex, nil)
		if err != nil {
			h.vertexCount = 0
			return err
		}
	}
	return h.queue.WriteBuffer(h.vertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size))
}

// Record draws the uploaded text on top of view.
func (h *HUD) Record(encoder *wgpu.CommandEncoder, view *wgpu.TextureView) error {
	if h.vertexCount == 0 || h.vertexBuffer == nil {
		return nil
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "hud",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(h.pipeline)
	pass.SetBindGroup(0, h.bindGroup, nil)
	pass.SetVertexBuffer(0, h.vertexBuffer, 0, h.vertexBuffer.GetSize())
	pass.Draw(h.vertexCount, 1, 0, 0)
	return pass.End()
}

func (h *HUD) Release() {
	if h.vertexBuffer != nil {
		h.vertexBuffer.Release()
		h.vertexBuffer = nil
	}
	if h.bindGroup != nil {
		h.bindGroup.Release()
		h.bindGroup = nil
	}
	if h.pipeline != nil {
		h.pipeline.Release()
		h.pipeline = nil
	}
	if h.module != nil {
		h.module.Release()
		h.module = nil
	}
	if h.sampler != nil {
		h.sampler.Release()
		h.sampler = nil
	}
	if h.atlasView != nil {
		h.atlasView.Release()
		h.atlasView = nil
	}
	if h.atlas != nil {
		h.atlas.Release()
		h.atlas = nil
	}
}
