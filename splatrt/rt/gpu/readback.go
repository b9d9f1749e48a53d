package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/frame"
)

const (
	readbackIdle    = 0
	readbackCopied  = 1
	readbackMapping = 2
	readbackMapped  = 3
)

// statsSize covers sort_info (4 B) followed by draw_indirect (16 B).
const statsSize = frame.SortInfoSize + frame.DrawIndirectSize

// Stats is what the device reported for a past frame.
type Stats struct {
	Visible       uint32
	VertexCount   uint32
	InstanceCount uint32
}

// FrameStats copies the visible count and draw arguments of a frame into a
// mappable buffer and reads them back a few frames later without stalling.
type FrameStats struct {
	device *wgpu.Device
	buffer *wgpu.Buffer

	mu    sync.Mutex
	state int
	last  Stats
	valid bool
}

func NewFrameStats(device *wgpu.Device, label string) (*FrameStats, error) {
	buf, err := createBuffer(device, label+" stats readback", statsSize, wgpu.BufferUsageMapRead, nil)
	if err != nil {
		return nil, err
	}
	return &FrameStats{device: device, buffer: buf}, nil
}

// Record appends the copies to encoder when no readback is in flight. It must
// be called after Renderer.Frame on the same encoder.
func (s *FrameStats) Record(encoder *wgpu.CommandEncoder, r *Renderer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != readbackIdle {
		return nil
	}
	if err := copyStats(encoder, r, s.buffer); err != nil {
		return err
	}
	s.state = readbackCopied
	return nil
}

// Poll advances the readback state machine and returns the latest stats.
// Call it once per frame after submission.
func (s *FrameStats) Poll() (Stats, bool) {
	s.mu.Lock()
	startMap := s.state == readbackCopied
	if startMap {
		s.state = readbackMapping
	}
	s.mu.Unlock()

	// The callback may run inside MapAsync, so the lock is not held here.
	if startMap {
		s.buffer.MapAsync(wgpu.MapModeRead, 0, statsSize, func(status wgpu.BufferMapAsyncStatus) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if status == wgpu.BufferMapAsyncStatusSuccess {
				s.state = readbackMapped
			} else {
				s.state = readbackIdle
			}
		})
	}

	s.device.Poll(false, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == readbackMapped {
		s.last = parseStats(s.buffer.GetMappedRange(0, statsSize))
		s.valid = true
		s.buffer.Unmap()
		s.state = readbackIdle
	}
	return s.last, s.valid
}

func (s *FrameStats) Release() {
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
}

func copyStats(encoder *wgpu.CommandEncoder, r *Renderer, dst *wgpu.Buffer) error {
	if err := encoder.CopyBufferToBuffer(r.Buffer(frame.BufferSortInfo), 0, dst, 0, frame.SortInfoSize); err != nil {
		return fmt.Errorf("copy sort info: %w", err)
	}
	if err := encoder.CopyBufferToBuffer(r.Buffer(frame.BufferDrawIndirect), 0, dst, frame.SortInfoSize, frame.DrawIndirectSize); err != nil {
		return fmt.Errorf("copy draw indirect: %w", err)
	}
	return nil
}

func parseStats(data []byte) Stats {
	w := bytesToU32s(data)
	if len(w) < 3 {
		return Stats{}
	}
	return Stats{Visible: w[0], VertexCount: w[1], InstanceCount: w[2]}
}

// ReadBufferSync copies size bytes of src into a staging buffer, submits and
// blocks until they are mapped. Meant for tests and tools, not the frame loop.
func ReadBufferSync(device *wgpu.Device, src *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	staging, err := createBuffer(device, "readback staging", size, wgpu.BufferUsageMapRead, nil)
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	if err := encoder.CopyBufferToBuffer(src, offset, staging, 0, size); err != nil {
		return nil, err
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish encoder: %w", err)
	}
	device.GetQueue().Submit(cmd)

	var status wgpu.BufferMapAsyncStatus
	done := false
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	for !done {
		device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("map readback buffer: status %d", status)
	}
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}
