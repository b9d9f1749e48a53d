// Package soft executes the splat frame plan on host memory. Buffers, sizes,
// the command order and the kernels' observable effects match the wgpu
// backend, so frame properties can be checked without a GPU.
package soft

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// Buffer is a host stand-in for a device buffer, stored as 32-bit words so
// kernels can use atomics on it like WGSL atomic<u32>.
type Buffer struct {
	Label string
	words []uint32
}

// NewBuffer allocates size bytes rounded up to a non-zero multiple of 4.
func NewBuffer(label string, size uint64) *Buffer {
	n := (size + 3) / 4
	if n == 0 {
		n = 1
	}
	return &Buffer{Label: label, words: make([]uint32, n)}
}

func (b *Buffer) Size() uint64 { return uint64(len(b.words)) * 4 }

func (b *Buffer) checkRange(offset, size uint64) error {
	if offset%4 != 0 || size%4 != 0 {
		return fmt.Errorf("%s: offset %d and size %d must be multiples of 4", b.Label, offset, size)
	}
	if offset+size > b.Size() {
		return fmt.Errorf("%s: range [%d, %d) exceeds size %d", b.Label, offset, offset+size, b.Size())
	}
	return nil
}

// Write copies data into the buffer at offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if err := b.checkRange(offset, uint64(len(data))); err != nil {
		return err
	}
	base := offset / 4
	for i := 0; i < len(data)/4; i++ {
		atomic.StoreUint32(&b.words[base+uint64(i)], binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

// Read returns a copy of size bytes starting at offset.
func (b *Buffer) Read(offset, size uint64) ([]byte, error) {
	if err := b.checkRange(offset, size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	base := offset / 4
	for i := uint64(0); i < size/4; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], atomic.LoadUint32(&b.words[base+i]))
	}
	return out, nil
}

// Word returns the i-th 32-bit word.
func (b *Buffer) Word(i int) uint32 {
	return atomic.LoadUint32(&b.words[i])
}

// Words returns a copy of n words starting at word index start.
func (b *Buffer) Words(start, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = atomic.LoadUint32(&b.words[start+i])
	}
	return out
}

func (b *Buffer) storeWord(i int, v uint32) {
	atomic.StoreUint32(&b.words[i], v)
}

// atomicAdd behaves like WGSL atomicAdd: it returns the previous value.
func (b *Buffer) atomicAdd(i int, delta uint32) uint32 {
	return atomic.AddUint32(&b.words[i], delta) - delta
}

// CopyBuffer is the host form of CommandEncoder.CopyBufferToBuffer.
func CopyBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64) error {
	if src == dst {
		return fmt.Errorf("copy within %s is not allowed", src.Label)
	}
	data, err := src.Read(srcOffset, size)
	if err != nil {
		return err
	}
	return dst.Write(dstOffset, data)
}
