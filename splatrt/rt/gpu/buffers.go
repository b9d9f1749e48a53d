package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// alignedSize rounds n up to a non-zero multiple of 4.
func alignedSize(n uint64) uint64 {
	if n == 0 {
		return 4
	}
	if n%4 != 0 {
		n += 4 - (n % 4)
	}
	return n
}

// createBuffer allocates a buffer with COPY_DST added to usage and uploads data
// at offset 0 when given. Size is max(size, len(data)) rounded up to 4 bytes.
func createBuffer(device *wgpu.Device, label string, size uint64, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error) {
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             alignedSize(max(size, uint64(len(data)))),
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", label, err)
	}
	if len(data) > 0 {
		if err := device.GetQueue().WriteBuffer(buf, 0, data); err != nil {
			buf.Release()
			return nil, fmt.Errorf("failed to upload buffer %s: %w", label, err)
		}
	}
	return buf, nil
}

func u32sToBytes(vals ...uint32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func bytesToU32s(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

func storageEntry(binding uint32, visibility wgpu.ShaderStage, readOnly bool) wgpu.BindGroupLayoutEntry {
	typ := wgpu.BufferBindingTypeStorage
	if readOnly {
		typ = wgpu.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
		Buffer:     wgpu.BufferBindingLayout{Type: typ},
	}
}

func uniformEntry(binding uint32, visibility wgpu.ShaderStage, minSize uint64) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
		Buffer: wgpu.BufferBindingLayout{
			Type:           wgpu.BufferBindingTypeUniform,
			MinBindingSize: minSize,
		},
	}
}

func bufferEntry(binding uint32, buf *wgpu.Buffer) wgpu.BindGroupEntry {
	return wgpu.BindGroupEntry{Binding: binding, Buffer: buf, Offset: 0, Size: wgpu.WholeSize}
}
