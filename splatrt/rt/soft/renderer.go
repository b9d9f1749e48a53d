package soft

import (
	"fmt"
	"sync"

	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/frame"
	"github.com/google/uuid"
)

type options struct {
	logger core.Logger
	label  string
	clear  [4]float32
}

type Option func(*options)

func WithLogger(l core.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

func WithClearColor(c [4]float32) Option {
	return func(o *options) { o.clear = c }
}

type queuedWrite struct {
	buf    *Buffer
	offset uint64
	data   []byte
}

// Renderer is the host counterpart of gpu.Renderer. Queue writes are held
// until the next Frame, which applies them before recording, like a queue
// submission would.
type Renderer struct {
	ID uuid.UUID

	logger core.Logger
	label  string
	clear  [4]float32

	pc        *core.PointCloud
	numPoints uint32
	shDeg     uint32
	camera    *Buffer
	sorter    *RadixSorter

	null           *Buffer
	splats         *Buffer
	renderSettings *Buffer
	drawIndirect   *Buffer

	// slotSource[slot] is the point index that claimed slot in the last frame.
	slotSource []uint32

	queueMu sync.Mutex
	queued  []queuedWrite

	lastDraw  DrawCall
	drawCount int
}

// NewCameraBuffer allocates a camera uniform buffer of the expected size.
func NewCameraBuffer(label string) *Buffer {
	return NewBuffer(label+" camera", core.CameraUniformSize)
}

func NewRenderer(pc *core.PointCloud, camera *Buffer, opts ...Option) (*Renderer, error) {
	if camera == nil || camera.Size() < core.CameraUniformSize {
		return nil, fmt.Errorf("camera buffer must hold %d bytes", core.CameraUniformSize)
	}
	if pc == nil {
		pc = &core.PointCloud{}
	}
	if pc.SHDeg > core.MaxSHDegree {
		return nil, fmt.Errorf("sh degree %d exceeds %d", pc.SHDeg, core.MaxSHDegree)
	}
	o := options{logger: core.NewNopLogger(), label: "soft", clear: [4]float32{0, 0, 0, 1}}
	for _, opt := range opts {
		opt(&o)
	}

	n := pc.NumPoints()
	r := &Renderer{
		ID:         uuid.New(),
		logger:     o.logger,
		clear:      o.clear,
		pc:         pc,
		numPoints:  n,
		shDeg:      pc.SHDeg,
		camera:     camera,
		slotSource: make([]uint32, max(n, 1)),
	}
	r.label = fmt.Sprintf("%s[%s]", o.label, r.ID.String()[:8])
	r.sorter = NewRadixSorter(n, r.label)

	r.null = NewBuffer(r.label+" null", frame.BufferSize(frame.BufferNull, n))
	r.splats = NewBuffer(r.label+" splat_data", frame.BufferSize(frame.BufferSplats, n))
	r.renderSettings = NewBuffer(r.label+" render_settings", frame.RenderSettingsSize)
	r.drawIndirect = NewBuffer(r.label+" draw_indirect", frame.DrawIndirectSize)
	if err := r.renderSettings.Write(0, frame.InitialRenderSettings(r.shDeg)); err != nil {
		return nil, err
	}
	if err := r.drawIndirect.Write(0, frame.InitialDrawIndirect()); err != nil {
		return nil, err
	}

	r.logger.Debugf("%s: %d points, sh degree %d", r.label, n, r.shDeg)
	return r, nil
}

// WriteBuffer queues a write that lands at the start of the next Frame.
func (r *Renderer) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	if err := buf.checkRange(offset, uint64(len(data))); err != nil {
		return err
	}
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	r.queued = append(r.queued, queuedWrite{buf: buf, offset: offset, data: append([]byte(nil), data...)})
	return nil
}

func (r *Renderer) SetGaussianMultiplier(v float32) error {
	return r.WriteBuffer(r.renderSettings, 0, core.RenderSettings{GaussianMultiplier: v, SHDeg: float32(r.shDeg)}.Bytes())
}

// SetCamera queues the camera uniforms for the next frame.
func (r *Renderer) SetCamera(u core.CameraUniform) error {
	return r.WriteBuffer(r.camera, 0, u.Bytes())
}

func (r *Renderer) flushQueue() error {
	r.queueMu.Lock()
	queued := r.queued
	r.queued = nil
	r.queueMu.Unlock()
	for _, w := range queued {
		if err := w.buf.Write(w.offset, w.data); err != nil {
			return err
		}
	}
	return nil
}

// Frame applies queued writes and runs the frame plan. target may be nil when
// only the buffers are of interest.
func (r *Renderer) Frame(target *Target) error {
	if err := r.flushQueue(); err != nil {
		return fmt.Errorf("%s: queue: %w", r.label, err)
	}
	if err := frame.Record(frame.Plan(r.numPoints), &hostRecorder{r: r, target: target}); err != nil {
		return fmt.Errorf("%s: %w", r.label, err)
	}
	return nil
}

func (r *Renderer) CameraBuffer() *Buffer { return r.camera }
func (r *Renderer) NumPoints() uint32     { return r.numPoints }
func (r *Renderer) Sorter() *RadixSorter  { return r.sorter }
func (r *Renderer) LastDraw() DrawCall    { return r.lastDraw }
func (r *Renderer) DrawCount() int        { return r.drawCount }

func (r *Renderer) Buffer(id frame.BufferID) *Buffer {
	switch id {
	case frame.BufferNull:
		return r.null
	case frame.BufferSplats:
		return r.splats
	case frame.BufferRenderSettings:
		return r.renderSettings
	case frame.BufferDrawIndirect:
		return r.drawIndirect
	case frame.BufferSortInfo:
		return r.sorter.SortInfo
	case frame.BufferSortDispatch:
		return r.sorter.Dispatch
	}
	return nil
}

// Visible is the count preprocessing appended in the last frame.
func (r *Renderer) Visible() uint32 { return r.sorter.SortInfo.Word(0) }

// SlotSources maps each visible slot of the last frame to its point index.
func (r *Renderer) SlotSources() []uint32 {
	n := min(r.Visible(), uint32(len(r.slotSource)))
	return append([]uint32(nil), r.slotSource[:n]...)
}

// SortedKeys returns the visible prefix of the sorted depth keys.
func (r *Renderer) SortedKeys() []uint32 {
	return r.sorter.PingPong(0).Keys.Words(0, int(min(r.Visible(), max(r.numPoints, 1))))
}

// Splat decodes the record stored at slot.
func (r *Renderer) Splat(slot uint32) core.Splat {
	return core.ReadSplat(mustRead(r.splats, uint64(slot)*frame.SplatStride, frame.SplatStride))
}

type hostRecorder struct {
	r      *Renderer
	target *Target
}

func (h *hostRecorder) CopyBuffer(src frame.BufferID, srcOffset uint64, dst frame.BufferID, dstOffset uint64, size uint64) error {
	s, d := h.r.Buffer(src), h.r.Buffer(dst)
	if s == nil || d == nil {
		return fmt.Errorf("copy %s -> %s: unknown buffer", src, dst)
	}
	return CopyBuffer(s, srcOffset, d, dstOffset, size)
}

func (h *hostRecorder) Preprocess(workgroups uint32) error {
	h.r.preprocess(workgroups)
	return nil
}

func (h *hostRecorder) Sort() error {
	return h.r.sorter.Sort()
}

func (h *hostRecorder) DrawIndirect(args frame.BufferID, offset uint64) error {
	buf := h.r.Buffer(args)
	if buf == nil {
		return fmt.Errorf("draw indirect: unknown buffer %s", args)
	}
	call, err := h.r.executeDrawIndirect(buf, offset, h.target)
	if err != nil {
		return err
	}
	h.r.lastDraw = call
	h.r.drawCount++
	return nil
}
