package soft

import (
	"fmt"
	"sync"

	"github.com/gekko3d/splat/splatrt/rt/frame"
)

const (
	radixBits  = 8
	radixSize  = 1 << radixBits
	sortPasses = 32 / radixBits
	sortBlock  = frame.WorkgroupSize
)

type SortBuffers struct {
	Keys   *Buffer
	Values *Buffer
}

// RadixSorter runs the same histogram / scan / scatter passes as the device
// radix sort. Only dispatch_x blocks are processed, so keys beyond the
// dispatched range stay untouched.
type RadixSorter struct {
	capacity uint32

	SortInfo *Buffer
	Dispatch *Buffer
	pingPong [2]SortBuffers

	blockHist []uint32
	maxBlocks uint32
}

func NewRadixSorter(capacity uint32, label string) *RadixSorter {
	s := &RadixSorter{
		capacity:  capacity,
		SortInfo:  NewBuffer(label+" sort_info", frame.SortInfoSize),
		Dispatch:  NewBuffer(label+" sort_dispatch", frame.DispatchIndirectSize),
		maxBlocks: max(frame.Workgroups(capacity), 1),
	}
	_ = s.Dispatch.Write(0, frame.InitialSortDispatch())
	keysSize := uint64(max(capacity, 1)) * 4
	for i := range s.pingPong {
		s.pingPong[i] = SortBuffers{
			Keys:   NewBuffer(fmt.Sprintf("%s sort_depths %d", label, i), keysSize),
			Values: NewBuffer(fmt.Sprintf("%s sort_indices %d", label, i), keysSize),
		}
	}
	s.blockHist = make([]uint32, radixSize*int(s.maxBlocks))
	return s
}

func (s *RadixSorter) PingPong(i int) SortBuffers { return s.pingPong[i&1] }
func (s *RadixSorter) WorkgroupSize() uint32      { return frame.WorkgroupSize }
func (s *RadixSorter) KeysPerThread() uint32      { return sortBlock / frame.WorkgroupSize }

// Sort leaves the ascending result in PingPong(0).
func (s *RadixSorter) Sort() error {
	n := s.SortInfo.Word(0)
	blocks := s.Dispatch.Word(0)
	if n > s.capacity {
		return fmt.Errorf("sort info reports %d keys, capacity is %d", n, s.capacity)
	}
	if blocks > s.maxBlocks {
		return fmt.Errorf("dispatch of %d blocks exceeds %d", blocks, s.maxBlocks)
	}
	n = min(n, blocks*sortBlock)
	if n == 0 {
		return nil
	}

	for p := 0; p < sortPasses; p++ {
		src, dst := s.pingPong[p%2], s.pingPong[(p+1)%2]
		shift := uint32(p * radixBits)
		s.histogram(src.Keys, n, blocks, shift)
		s.scan(n)
		s.scatter(src, dst, n, blocks, shift)
	}
	return nil
}

func digitOf(key, shift uint32) uint32 {
	return (key >> shift) & (radixSize - 1)
}

func (s *RadixSorter) histogram(keys *Buffer, n, blocks, shift uint32) {
	var wg sync.WaitGroup
	for b := uint32(0); b < blocks; b++ {
		wg.Add(1)
		go func(block uint32) {
			defer wg.Done()
			var local [radixSize]uint32
			for lid := uint32(0); lid < sortBlock; lid++ {
				if i := block*sortBlock + lid; i < n {
					local[digitOf(keys.Word(int(i)), shift)]++
				}
			}
			for d := 0; d < radixSize; d++ {
				s.blockHist[uint32(d)*s.maxBlocks+block] = local[d]
			}
		}(b)
	}
	wg.Wait()
}

// scan turns digit-major block counts into global exclusive offsets.
func (s *RadixSorter) scan(n uint32) {
	numBlocks := frame.Workgroups(n)
	offset := uint32(0)
	for d := uint32(0); d < radixSize; d++ {
		base := d * s.maxBlocks
		for b := uint32(0); b < numBlocks; b++ {
			count := s.blockHist[base+b]
			s.blockHist[base+b] = offset
			offset += count
		}
	}
}

func (s *RadixSorter) scatter(src, dst SortBuffers, n, blocks, shift uint32) {
	var wg sync.WaitGroup
	for b := uint32(0); b < blocks; b++ {
		wg.Add(1)
		go func(block uint32) {
			defer wg.Done()
			var rank [radixSize]uint32
			for lid := uint32(0); lid < sortBlock; lid++ {
				i := block*sortBlock + lid
				if i >= n {
					return
				}
				key := src.Keys.Word(int(i))
				d := digitOf(key, shift)
				pos := s.blockHist[d*s.maxBlocks+block] + rank[d]
				rank[d]++
				dst.Keys.storeWord(int(pos), key)
				dst.Values.storeWord(int(pos), src.Values.Word(int(i)))
			}
		}(b)
	}
	wg.Wait()
}
