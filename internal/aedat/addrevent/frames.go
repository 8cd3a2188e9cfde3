package addrevent

import (
	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/aedat/bitfield"
	"github.com/banshee-data/aedat/internal/monitoring"
)

// subtractionFloor marks a wrapped (negative) difference after unsigned
// subtraction; such samples are zeroed.
const subtractionFloor = 32767

// frameStarts returns the index of the first sample of every frame. A new
// frame starts where x and y both jump by more than one between
// consecutive samples. The scan order within a frame may run in either
// direction on either axis.
func frameStarts(samples []bitfield.FrameSample) []int {
	if len(samples) == 0 {
		return nil
	}
	starts := []int{0}
	for i := 1; i < len(samples); i++ {
		dx := absDiff(samples[i].X, samples[i-1].X)
		dy := absDiff(samples[i].Y, samples[i-1].Y)
		if dx > 1 && dy > 1 {
			starts = append(starts, i)
		}
	}
	return starts
}

func absDiff(a, b uint16) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

// ReconstructFrames groups a sequential APS sample stream into frames.
// ts holds one timestamp per sample. Each frame records whether it is a
// reset read, judged by its first sample only.
func ReconstructFrames(samples []bitfield.FrameSample, ts []int64) *aedat.FrameBatch {
	starts := frameStarts(samples)
	n := len(starts)
	b := &aedat.FrameBatch{
		TimestampStart: make([]int64, n),
		TimestampEnd:   make([]int64, n),
		XPosition:      make([]uint16, n),
		YPosition:      make([]uint16, n),
		XLength:        make([]uint16, n),
		YLength:        make([]uint16, n),
		Samples:        make([]aedat.Image, n),
		Reset:          make([]bool, n),
	}

	for f := 0; f < n; f++ {
		lo := starts[f]
		hi := len(samples)
		if f+1 < n {
			hi = starts[f+1]
		}
		span := samples[lo:hi]

		minX, maxX := span[0].X, span[0].X
		minY, maxY := span[0].Y, span[0].Y
		minT, maxT := ts[lo], ts[lo]
		for k, s := range span {
			minX, maxX = min(minX, s.X), max(maxX, s.X)
			minY, maxY = min(minY, s.Y), max(maxY, s.Y)
			t := ts[lo+k]
			minT, maxT = min(minT, t), max(maxT, t)
		}

		img := aedat.NewImage(int(maxX-minX)+1, int(maxY-minY)+1, 1)
		for _, s := range span {
			img.Set(int(s.X-minX), int(s.Y-minY), 0, s.Value)
		}

		b.Reset[f] = !span[0].Signal
		b.TimestampStart[f], b.TimestampEnd[f] = minT, maxT
		b.XPosition[f], b.YPosition[f] = minX, minY
		b.XLength[f], b.YLength[f] = uint16(img.Width), uint16(img.Height)
		b.Samples[f] = img
		if f%10 == 9 {
			monitoring.Debugf("processed frame %d of %d", f+1, n)
		}
	}
	return b
}

// SubtractResetFrames pairs each signal frame with the most recent reset
// frame and replaces its samples with reset minus signal. Differences that
// wrap below zero become zero. Signal frames pass through unchanged when no
// reset has been seen, when the reset's bounding box differs, or when the
// reset read carries no data (all samples zero). Reset frames and the
// Reset column are removed afterwards.
func SubtractResetFrames(b *aedat.FrameBatch) {
	if b.Reset == nil {
		return
	}
	keep := make([]bool, b.Len())
	var (
		reset    aedat.Image
		haveRst  bool
		rstEmpty bool
		rx, ry   uint16
	)
	for i := range b.Samples {
		if b.Reset[i] {
			reset, haveRst = b.Samples[i], true
			rstEmpty = allZero(reset.Pix)
			rx, ry = b.XPosition[i], b.YPosition[i]
			continue
		}
		keep[i] = true
		sig := b.Samples[i]
		if !haveRst || rstEmpty || rx != b.XPosition[i] || ry != b.YPosition[i] || !reset.SameGeometry(sig) {
			continue
		}
		out := aedat.NewImage(sig.Width, sig.Height, sig.Channels)
		for p := range out.Pix {
			d := reset.Pix[p] - sig.Pix[p]
			if d > subtractionFloor {
				d = 0
			}
			out.Pix[p] = d
		}
		b.Samples[i] = out
	}
	b.Filter(keep)
	b.Reset = nil
}

func allZero(pix []uint16) bool {
	for _, v := range pix {
		if v != 0 {
			return false
		}
	}
	return true
}
