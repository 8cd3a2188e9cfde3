// Package eventplot renders decoded recordings with gonum/plot: event rate
// over time per kind, and the per-pixel polarity event count.
package eventplot

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/security"
)

// ErrNoEvents is returned when there is nothing to plot.
var ErrNoEvents = errors.New("eventplot: no events")

const (
	defaultWidth  = 14 * vg.Inch
	defaultHeight = 6 * vg.Inch
)

// EventRate plots events per second for every kind in s, binned by bin.
func EventRate(s *aedat.EventStore, bin time.Duration) (*plot.Plot, error) {
	if s.Empty() {
		return nil, ErrNoEvents
	}
	if bin <= 0 {
		return nil, fmt.Errorf("eventplot: bin width must be positive, got %v", bin)
	}
	binUs := bin.Microseconds()
	if binUs == 0 {
		binUs = 1
	}
	nbins := int((s.LastTimestamp-s.FirstTimestamp)/binUs) + 1

	p := plot.New()
	p.Title.Text = "Event rate"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Events/s"

	kinds := s.Kinds()
	colors := generateColors(len(kinds))
	for i, k := range kinds {
		counts := make([]float64, nbins)
		for _, ts := range s.Timestamps(k) {
			counts[(ts-s.FirstTimestamp)/binUs]++
		}
		pts := make(plotter.XYs, nbins)
		for b, c := range counts {
			pts[b].X = float64(s.FirstTimestamp+int64(b)*binUs) / 1e6
			pts[b].Y = c / float64(binUs) * 1e6
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(k.String(), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// PolarityCounts plots how many polarity events each pixel produced on a
// width x height sensor. Events outside the sensor are ignored.
func PolarityCounts(b *aedat.PolarityBatch, width, height int) (*plot.Plot, error) {
	if b == nil || b.Len() == 0 {
		return nil, ErrNoEvents
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("eventplot: invalid sensor size %dx%d", width, height)
	}
	g := &countGrid{w: width, h: height, z: make([]float64, width*height)}
	for i := range b.X {
		x, y := int(b.X[i]), int(b.Y[i])
		if x < width && y < height {
			g.z[y*width+x]++
		}
	}

	p := plot.New()
	p.Title.Text = "Polarity events per pixel"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewHeatMap(g, palette.Heat(12, 1)))
	return p, nil
}

// Save writes p to path; the format follows the extension (.png, .svg, .pdf).
func Save(p *plot.Plot, path string) error {
	if err := p.Save(defaultWidth, defaultHeight, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}

// SaveReport writes the event rate plot of s, plus the polarity count
// plot when src has a pixel grid, into dir. Files are named after the
// recording at recordingPath. It returns the paths written.
func SaveReport(s *aedat.EventStore, src aedat.Source, recordingPath, dir string, bin time.Duration) ([]string, error) {
	stem := security.RecordingStem(recordingPath)

	rate, err := EventRate(s, bin)
	if err != nil {
		return nil, err
	}
	ratePath, err := security.OutputPath(dir, stem, "_rate.png")
	if err != nil {
		return nil, err
	}
	if err := Save(rate, ratePath); err != nil {
		return nil, err
	}
	written := []string{ratePath}

	w, h, ok := src.Dimensions()
	if !ok || s.Polarity == nil || s.Polarity.Len() == 0 {
		return written, nil
	}
	counts, err := PolarityCounts(s.Polarity, w, h)
	if err != nil {
		return written, err
	}
	countsPath, err := security.OutputPath(dir, stem, "_polarity.png")
	if err != nil {
		return written, err
	}
	if err := Save(counts, countsPath); err != nil {
		return written, err
	}
	return append(written, countsPath), nil
}

// countGrid implements plotter.GridXYZ. Row 0 of the sensor is the top row,
// so rows are flipped for display.
type countGrid struct {
	w, h int
	z    []float64
}

func (g *countGrid) Dims() (c, r int)   { return g.w, g.h }
func (g *countGrid) Z(c, r int) float64 { return g.z[(g.h-1-r)*g.w+c] }
func (g *countGrid) X(c int) float64    { return float64(c) }
func (g *countGrid) Y(r int) float64    { return float64(r) }

// generateColors creates a palette of distinct line colours.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
