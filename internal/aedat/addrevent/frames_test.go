package addrevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/aedat/bitfield"
	"github.com/banshee-data/aedat/internal/testutil"
)

func samplesOf(events []testutil.AddressEvent) ([]bitfield.FrameSample, []int64) {
	s := make([]bitfield.FrameSample, len(events))
	ts := make([]int64, len(events))
	for i, e := range events {
		s[i] = davis240.DecodeFrameSample(e.Addr)
		ts[i] = int64(e.Ts)
	}
	return s, ts
}

func TestReconstructFrames_DetectsEachRaster(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		var events []testutil.AddressEvent
		for f := 0; f < n; f++ {
			events = append(events, raster(0, 0, 4, 4, f%2 == 1, func(x, y uint16) uint16 { return x + 4*y }, uint32(100*f))...)
		}
		s, ts := samplesOf(events)
		b := ReconstructFrames(s, ts)

		require.Equal(t, n, b.Len(), "frames for %d rasters", n)
		for f := 0; f < n; f++ {
			assert.Equal(t, f%2 == 0, b.Reset[f])
			assert.Equal(t, uint16(4), b.XLength[f])
			assert.Equal(t, uint16(4), b.YLength[f])
			assert.Equal(t, int64(100*f), b.TimestampStart[f])
			assert.Equal(t, uint16(13), b.Samples[f].At(1, 3, 0))
		}
	}
}

func TestReconstructFrames_BoundingBoxAndSpan(t *testing.T) {
	var events []testutil.AddressEvent
	for i, e := range raster(10, 20, 3, 2, true, func(x, y uint16) uint16 { return 7 * x }, 0) {
		e.Ts = uint32(50 + i)
		events = append(events, e)
	}
	s, ts := samplesOf(events)
	b := ReconstructFrames(s, ts)

	require.Equal(t, 1, b.Len())
	assert.Equal(t, uint16(10), b.XPosition[0])
	assert.Equal(t, uint16(20), b.YPosition[0])
	assert.Equal(t, int64(50), b.TimestampStart[0])
	assert.Equal(t, int64(55), b.TimestampEnd[0])
	img := b.Samples[0]
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, uint16(7*12), img.At(2, 1, 0))
}

func TestReconstructFrames_Empty(t *testing.T) {
	assert.Equal(t, 0, ReconstructFrames(nil, nil).Len())
}

func framesFor(t *testing.T, events ...[]testutil.AddressEvent) *aedat.FrameBatch {
	t.Helper()
	var all []testutil.AddressEvent
	for _, e := range events {
		all = append(all, e...)
	}
	s, ts := samplesOf(all)
	return ReconstructFrames(s, ts)
}

func TestSubtractResetFrames(t *testing.T) {
	signal := func(x, y uint16) uint16 { return 10*y + x }

	t.Run("reset minus signal", func(t *testing.T) {
		b := framesFor(t, raster(0, 0, 4, 4, false, constant(500), 0), raster(0, 0, 4, 4, true, signal, 1))
		SubtractResetFrames(b)

		require.Equal(t, 1, b.Len())
		assert.Nil(t, b.Reset)
		assert.Equal(t, uint16(500-32), b.Samples[0].At(2, 3, 0))
		assert.Equal(t, int64(1), b.TimestampStart[0])
	})

	t.Run("wrapped differences are zeroed", func(t *testing.T) {
		b := framesFor(t, raster(0, 0, 4, 4, false, constant(5), 0), raster(0, 0, 4, 4, true, signal, 1))
		SubtractResetFrames(b)

		require.Equal(t, 1, b.Len())
		assert.Equal(t, uint16(5), b.Samples[0].At(0, 0, 0))
		assert.Equal(t, uint16(4), b.Samples[0].At(1, 0, 0))
		assert.Equal(t, uint16(0), b.Samples[0].At(3, 3, 0))
	})

	t.Run("all-zero reset leaves signal unchanged", func(t *testing.T) {
		b := framesFor(t, raster(0, 0, 4, 4, false, constant(0), 0), raster(0, 0, 4, 4, true, signal, 1))
		want := b.Samples[1]
		SubtractResetFrames(b)

		require.Equal(t, 1, b.Len())
		assert.Equal(t, want.Pix, b.Samples[0].Pix)
	})

	t.Run("signal before any reset passes through", func(t *testing.T) {
		b := framesFor(t, raster(0, 0, 4, 4, true, signal, 0), raster(0, 0, 4, 4, false, constant(100), 1), raster(0, 0, 4, 4, true, signal, 2))
		SubtractResetFrames(b)

		require.Equal(t, 2, b.Len())
		assert.Equal(t, uint16(33), b.Samples[0].At(3, 3, 0))
		assert.Equal(t, uint16(100-33), b.Samples[1].At(3, 3, 0))
		assert.Equal(t, []int64{0, 2}, b.TimestampStart)
	})

	t.Run("mismatched bounding box passes through", func(t *testing.T) {
		b := framesFor(t, raster(0, 0, 4, 4, false, constant(100), 0), raster(8, 8, 4, 4, true, signal, 1))
		SubtractResetFrames(b)

		require.Equal(t, 1, b.Len())
		assert.Equal(t, uint16(8), b.XPosition[0])
		assert.Equal(t, uint16(10*11+11), b.Samples[0].At(3, 3, 0))
	})

	t.Run("disabled keeps reset frames", func(t *testing.T) {
		events := append(raster(0, 0, 4, 4, false, constant(100), 0), raster(0, 0, 4, 4, true, signal, 1)...)
		p := all()
		p.SubtractResetFrames = false
		store, _ := decode(t, testutil.V2File(testutil.V2Header("DAVIS240C"), events...), p)

		require.NotNil(t, store.Frame)
		assert.Equal(t, []bool{true, false}, store.Frame.Reset)
	})
}
