package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/frame"
	"github.com/stretchr/testify/assert"
)

func TestAlignedSize(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 4},
		{1, 4},
		{4, 4},
		{6, 8},
		{24, 24},
		{270, 272},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, alignedSize(tt.in), "alignedSize(%d)", tt.in)
	}
}

func TestWordConversion(t *testing.T) {
	data := u32sToBytes(6, 0, 0xdeadbeef)
	assert.Equal(t, []byte{6, 0, 0, 0, 0, 0, 0, 0, 0xef, 0xbe, 0xad, 0xde}, data)
	assert.Equal(t, []uint32{6, 0, 0xdeadbeef}, bytesToU32s(data))
	assert.Empty(t, bytesToU32s([]byte{1, 2}))
}

func TestParseStats(t *testing.T) {
	data := append(u32sToBytes(42), frame.InitialDrawIndirect()...)
	copy(data[frame.SortInfoSize+frame.InstanceCountOffset:], u32sToBytes(42))

	assert.Equal(t, Stats{Visible: 42, VertexCount: frame.VerticesPerSplat, InstanceCount: 42}, parseStats(data))
	assert.Equal(t, Stats{}, parseStats(nil))
	assert.Len(t, data, statsSize)
}

func TestLayoutEntries(t *testing.T) {
	ro := storageEntry(2, wgpu.ShaderStageCompute, true)
	assert.Equal(t, uint32(2), ro.Binding)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, ro.Buffer.Type)

	rw := storageEntry(3, wgpu.ShaderStageCompute, false)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, rw.Buffer.Type)

	u := uniformEntry(0, wgpu.ShaderStageVertex|wgpu.ShaderStageCompute, 16)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, u.Buffer.Type)
	assert.Equal(t, uint64(16), u.Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageCompute, u.Visibility)

	e := bufferEntry(5, nil)
	assert.Equal(t, uint32(5), e.Binding)
	assert.Equal(t, uint64(wgpu.WholeSize), e.Size)
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	assert.Equal(t, "gaussian", o.label)
	assert.Equal(t, wgpu.Color{A: 1}, o.clearColor)
	assert.NotNil(t, o.newSorter)

	WithLabel("scene")(&o)
	WithClearColor(wgpu.Color{R: 1})(&o)
	WithLogger(nil)(&o)
	WithSorter(nil)(&o)
	assert.Equal(t, "scene", o.label)
	assert.Equal(t, wgpu.Color{R: 1}, o.clearColor)
	assert.NotNil(t, o.logger, "nil logger is ignored")
	assert.NotNil(t, o.newSorter, "nil factory is ignored")
}

func TestRendererBufferUnknown(t *testing.T) {
	r := &Renderer{}
	assert.Nil(t, r.Buffer(frame.BufferSortInfo), "no sorter yet")
	assert.Nil(t, r.Buffer(frame.BufferID(99)))
}
