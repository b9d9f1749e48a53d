package frame

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	op         string
	src, dst   BufferID
	srcOff     uint64
	dstOff     uint64
	size       uint64
	workgroups uint32
}

type fakeRecorder struct {
	calls  []recordedCall
	failOn string
}

func (f *fakeRecorder) fail(op string) error {
	if f.failOn == op {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeRecorder) CopyBuffer(src BufferID, srcOffset uint64, dst BufferID, dstOffset uint64, size uint64) error {
	f.calls = append(f.calls, recordedCall{op: "copy", src: src, srcOff: srcOffset, dst: dst, dstOff: dstOffset, size: size})
	return f.fail("copy")
}

func (f *fakeRecorder) Preprocess(workgroups uint32) error {
	f.calls = append(f.calls, recordedCall{op: "preprocess", workgroups: workgroups})
	return f.fail("preprocess")
}

func (f *fakeRecorder) Sort() error {
	f.calls = append(f.calls, recordedCall{op: "sort"})
	return f.fail("sort")
}

func (f *fakeRecorder) DrawIndirect(args BufferID, offset uint64) error {
	f.calls = append(f.calls, recordedCall{op: "draw", src: args, srcOff: offset})
	return f.fail("draw")
}

func TestWorkgroups(t *testing.T) {
	tests := []struct {
		n    uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{255, 1},
		{256, 1},
		{257, 2},
		{1000, 4},
		{math.MaxUint32, 16777216},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Workgroups(tt.n), "n=%d", tt.n)
	}
}

func TestRecordOrder(t *testing.T) {
	rec := &fakeRecorder{}
	require.NoError(t, Record(Plan(1000), rec))

	want := []recordedCall{
		{op: "copy", src: BufferNull, dst: BufferSortInfo, size: 4},
		{op: "copy", src: BufferNull, dst: BufferSortDispatch, size: 4},
		{op: "preprocess", workgroups: 4},
		{op: "sort"},
		{op: "copy", src: BufferSortInfo, dst: BufferDrawIndirect, dstOff: 4, size: 4},
		{op: "draw", src: BufferDrawIndirect},
	}
	assert.Equal(t, want, rec.calls)
}

func TestRecordZeroPoints(t *testing.T) {
	rec := &fakeRecorder{}
	require.NoError(t, Record(Plan(0), rec))
	require.Len(t, rec.calls, 6)
	assert.Equal(t, uint32(0), rec.calls[2].workgroups)
}

func TestRecordStopsOnError(t *testing.T) {
	rec := &fakeRecorder{failOn: "sort"}
	err := Record(Plan(10), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sort")
	assert.Len(t, rec.calls, 4)
}

func TestRecordNilRecorder(t *testing.T) {
	assert.ErrorIs(t, Record(Plan(1), nil), ErrNilRecorder)
}

func TestPlanStages(t *testing.T) {
	steps := Plan(1)
	prev := StageReset
	for _, s := range steps {
		assert.GreaterOrEqual(t, s.Stage, prev)
		prev = s.Stage
	}
	// The count copy must come after sorting and before the draw.
	assert.Equal(t, StageCountPropagate, steps[4].Stage)
	assert.Equal(t, StageRender, steps[5].Stage)
}

func TestInitialBuffers(t *testing.T) {
	rs := InitialRenderSettings(3)
	require.Len(t, rs, RenderSettingsSize)
	assert.Equal(t, float32(1.0), math.Float32frombits(binary.LittleEndian.Uint32(rs[0:])))
	assert.Equal(t, float32(3.0), math.Float32frombits(binary.LittleEndian.Uint32(rs[4:])))

	di := InitialDrawIndirect()
	require.Len(t, di, DrawIndirectSize)
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(di[0:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(di[4:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(di[8:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(di[12:]))

	sd := InitialSortDispatch()
	assert.Equal(t, []uint32{0, 1, 1}, []uint32{
		binary.LittleEndian.Uint32(sd[0:]),
		binary.LittleEndian.Uint32(sd[4:]),
		binary.LittleEndian.Uint32(sd[8:]),
	})
}

func TestBufferSize(t *testing.T) {
	assert.Equal(t, uint64(24), BufferSize(BufferSplats, 0))
	assert.Equal(t, uint64(24*100), BufferSize(BufferSplats, 100))
	assert.Equal(t, uint64(4), BufferSize(BufferNull, 100))
	assert.Equal(t, uint64(16), BufferSize(BufferDrawIndirect, 100))
	assert.Equal(t, uint64(8), BufferSize(BufferRenderSettings, 100))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "draw_indirect", BufferDrawIndirect.String())
	assert.Equal(t, "count_propagate", StageCountPropagate.String())
	assert.Equal(t, "buffer(42)", BufferID(42).String())
	for b := BufferNull; b <= BufferSortDispatch; b++ {
		assert.NotContains(t, b.String(), "buffer(", "buffer %d", int(b))
	}
	for s := StageReset; s <= StageSubmit; s++ {
		assert.NotContains(t, s.String(), "stage(", "stage %d", int(s))
	}
}

func TestContractSizes(t *testing.T) {
	assert.Equal(t, 6*4, SplatStride)
	assert.Equal(t, 2*4, RenderSettingsSize)
	assert.Equal(t, 4*4, DrawIndirectSize)
	assert.Equal(t, 3*4, DispatchIndirectSize)
	assert.Equal(t, 4, InstanceCountOffset, "instanceCount is the second draw argument")
	assert.Less(t, InstanceCountOffset+SortInfoSize, DrawIndirectSize+1)
	assert.Equal(t, SortInfoSize, NullSize)
}
