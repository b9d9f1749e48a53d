package soft

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferSize(t *testing.T) {
	tests := []struct {
		size uint64
		want uint64
	}{
		{0, 4},
		{1, 4},
		{4, 4},
		{5, 8},
		{24, 24},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewBuffer("b", tt.size).Size(), "size %d", tt.size)
	}
}

func TestBufferWriteRead(t *testing.T) {
	b := NewBuffer("b", 16)
	require.NoError(t, b.Write(4, []byte{1, 0, 0, 0, 2, 0, 0, 0}))

	data, err := b.Read(0, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}, data)
	assert.Equal(t, uint32(2), b.Word(2))
	assert.Equal(t, []uint32{1, 2}, b.Words(1, 2))
}

func TestBufferRangeErrors(t *testing.T) {
	b := NewBuffer("b", 8)

	assert.Error(t, b.Write(2, []byte{0, 0, 0, 0}), "misaligned offset")
	assert.Error(t, b.Write(0, []byte{0, 0}), "misaligned size")
	assert.Error(t, b.Write(8, []byte{0, 0, 0, 0}), "past the end")

	_, err := b.Read(4, 8)
	assert.Error(t, err)
}

func TestBufferAtomicAdd(t *testing.T) {
	b := NewBuffer("counter", 4)

	var wg sync.WaitGroup
	seen := make([]uint32, 1000)
	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = b.atomicAdd(0, 1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint32(1000), b.Word(0))
	unique := make(map[uint32]bool)
	for _, v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, 1000, "every caller gets a distinct previous value")
}

func TestCopyBuffer(t *testing.T) {
	src := NewBuffer("src", 8)
	dst := NewBuffer("dst", 16)
	require.NoError(t, src.Write(0, []byte{7, 0, 0, 0, 9, 0, 0, 0}))

	require.NoError(t, CopyBuffer(src, 4, dst, 12, 4))
	assert.Equal(t, []uint32{0, 0, 0, 9}, dst.Words(0, 4))

	assert.Error(t, CopyBuffer(src, 0, src, 4, 4), "copy within one buffer")
	assert.Error(t, CopyBuffer(src, 0, dst, 16, 4), "destination out of range")
}
