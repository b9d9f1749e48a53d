// Package frame describes the per-frame command stream of the splat renderer
// as data: a fixed, linear list of steps that every backend records in order.
//
// The list is
//
//	Reset          null -> sort_info[0:4], null -> sort_dispatch[0:4]
//	Preprocess     ceil(N / WorkgroupSize) workgroups
//	Sort           sorter commands, dispatch size read from sort_dispatch
//	CountPropagate sort_info[0:4] -> draw_indirect[4:8]
//	Render         drawIndirect(draw_indirect, 0)
//
// Every dependency between stages is a device-side copy or a buffer read on
// the same command stream. Nothing in the list is read back to the host.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Buffer contract sizes in bytes unless noted.
const (
	// SplatStride is one projected splat: six pack2x16float words.
	SplatStride = 24
	// RenderSettingsSize holds {gaussian_multiplier, sh_deg} as f32.
	RenderSettingsSize = 8
	// DrawIndirectSize holds {vertexCount, instanceCount, firstVertex, firstInstance}.
	DrawIndirectSize = 16
	// VerticesPerSplat is the vertex count of one splat quad (two triangles).
	VerticesPerSplat = 6
	// InstanceCountOffset locates instanceCount inside the draw arguments.
	InstanceCountOffset = 4
	// SortInfoSize holds the visible key count.
	SortInfoSize = 4
	// DispatchIndirectSize holds the sorter's {x, y, z} workgroup counts.
	DispatchIndirectSize = 12
	// NullSize is the zero word copied over counters at frame start.
	NullSize = 4
	// WorkgroupSize is the preprocess invocation count per workgroup.
	WorkgroupSize = 256
)

// ErrNilRecorder is returned by Record when no backend is given.
var ErrNilRecorder = errors.New("frame: nil recorder")

// BufferID names a buffer the frame plan reads or writes.
type BufferID int

const (
	BufferNull BufferID = iota
	BufferSplats
	BufferRenderSettings
	BufferDrawIndirect
	BufferSortInfo
	BufferSortDispatch
)

func (b BufferID) String() string {
	switch b {
	case BufferNull:
		return "null"
	case BufferSplats:
		return "splat_data"
	case BufferRenderSettings:
		return "render_settings"
	case BufferDrawIndirect:
		return "draw_indirect"
	case BufferSortInfo:
		return "sort_info"
	case BufferSortDispatch:
		return "sort_dispatch"
	}
	return fmt.Sprintf("buffer(%d)", int(b))
}

// Stage is the phase of the frame a step belongs to.
type Stage int

const (
	StageReset Stage = iota
	StagePreprocess
	StageSort
	StageCountPropagate
	StageRender
	StageSubmit
)

func (s Stage) String() string {
	switch s {
	case StageReset:
		return "reset"
	case StagePreprocess:
		return "preprocess"
	case StageSort:
		return "sort"
	case StageCountPropagate:
		return "count_propagate"
	case StageRender:
		return "render"
	case StageSubmit:
		return "submit"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StepKind selects which Recorder method replays a step.
type StepKind int

const (
	StepCopy StepKind = iota
	StepDispatch
	StepSort
	StepDrawIndirect
)

// Step is one command of the frame. Only the fields relevant to Kind are set.
type Step struct {
	Stage Stage
	Kind  StepKind

	Src       BufferID
	SrcOffset uint64
	Dst       BufferID
	DstOffset uint64
	Size      uint64

	Workgroups uint32

	Indirect       BufferID
	IndirectOffset uint64
}

// Recorder is implemented by each backend that can execute a frame.
type Recorder interface {
	CopyBuffer(src BufferID, srcOffset uint64, dst BufferID, dstOffset uint64, size uint64) error
	Preprocess(workgroups uint32) error
	Sort() error
	DrawIndirect(args BufferID, offset uint64) error
}

// Workgroups returns ceil(n / WorkgroupSize).
func Workgroups(n uint32) uint32 {
	return uint32((uint64(n) + WorkgroupSize - 1) / WorkgroupSize)
}

// Plan returns the command list for one frame over numPoints points.
func Plan(numPoints uint32) []Step {
	return []Step{
		{Stage: StageReset, Kind: StepCopy, Src: BufferNull, Dst: BufferSortInfo, Size: NullSize},
		{Stage: StageReset, Kind: StepCopy, Src: BufferNull, Dst: BufferSortDispatch, Size: NullSize},
		{Stage: StagePreprocess, Kind: StepDispatch, Workgroups: Workgroups(numPoints)},
		{Stage: StageSort, Kind: StepSort},
		{Stage: StageCountPropagate, Kind: StepCopy, Src: BufferSortInfo, Dst: BufferDrawIndirect, DstOffset: InstanceCountOffset, Size: SortInfoSize},
		{Stage: StageRender, Kind: StepDrawIndirect, Indirect: BufferDrawIndirect},
	}
}

// Record replays steps on r in order and stops at the first failure.
func Record(steps []Step, r Recorder) error {
	if r == nil {
		return ErrNilRecorder
	}
	for i, s := range steps {
		var err error
		switch s.Kind {
		case StepCopy:
			err = r.CopyBuffer(s.Src, s.SrcOffset, s.Dst, s.DstOffset, s.Size)
		case StepDispatch:
			err = r.Preprocess(s.Workgroups)
		case StepSort:
			err = r.Sort()
		case StepDrawIndirect:
			err = r.DrawIndirect(s.Indirect, s.IndirectOffset)
		default:
			err = fmt.Errorf("unknown step kind %d", s.Kind)
		}
		if err != nil {
			return fmt.Errorf("frame step %d (%s): %w", i, s.Stage, err)
		}
	}
	return nil
}

// InitialRenderSettings is the render settings buffer at construction: multiplier 1.
func InitialRenderSettings(shDeg uint32) []byte {
	buf := make([]byte, RenderSettingsSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(1.0))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(shDeg)))
	return buf
}

// InitialDrawIndirect is {vertexCount: 6, instanceCount: 0, firstVertex: 0, firstInstance: 0}.
func InitialDrawIndirect() []byte {
	buf := make([]byte, DrawIndirectSize)
	binary.LittleEndian.PutUint32(buf[0:], VerticesPerSplat)
	return buf
}

// InitialSortDispatch is {x: 0, y: 1, z: 1}; preprocessing grows x.
func InitialSortDispatch() []byte {
	buf := make([]byte, DispatchIndirectSize)
	binary.LittleEndian.PutUint32(buf[4:], 1)
	binary.LittleEndian.PutUint32(buf[8:], 1)
	return buf
}

// BufferSize returns the allocation size of an orchestrator-owned buffer.
// Zero-point clouds still get one record so bindings stay valid.
func BufferSize(id BufferID, numPoints uint32) uint64 {
	switch id {
	case BufferNull:
		return NullSize
	case BufferSplats:
		return uint64(max(numPoints, 1)) * SplatStride
	case BufferRenderSettings:
		return RenderSettingsSize
	case BufferDrawIndirect:
		return DrawIndirectSize
	case BufferSortInfo:
		return SortInfoSize
	case BufferSortDispatch:
		return DispatchIndirectSize
	}
	return 0
}
