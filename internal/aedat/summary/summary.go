// Package summary derives descriptive statistics from a decoded
// EventStore.
package summary

import (
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/units"
)

// KindStats describes the events of one kind. Intervals are between
// consecutive events in stored order, in microseconds.
type KindStats struct {
	Kind         aedat.Kind
	Count        int
	First        int64
	Last         int64
	Duration     time.Duration
	Rate         float64 // events per second over Duration
	MeanInterval float64
	StdInterval  float64
}

// ImuStats holds the mean of every IMU6 channel. Compute reports
// acceleration in g and angular rate in deg/s.
type ImuStats struct {
	AccelX, AccelY, AccelZ float64
	GyroX, GyroY, GyroZ    float64
	Temperature            float64 // °C
	AccelUnits, RateUnits  string
}

// Convert returns m expressed in the given units (see package units).
// Values already in the target units are unchanged.
func (m ImuStats) Convert(accel, rate string) ImuStats {
	if m.AccelUnits == units.G && accel != units.G {
		m.AccelX = units.ConvertAccel(m.AccelX, accel)
		m.AccelY = units.ConvertAccel(m.AccelY, accel)
		m.AccelZ = units.ConvertAccel(m.AccelZ, accel)
		m.AccelUnits = accel
	}
	if m.RateUnits == units.DPS && rate != units.DPS {
		m.GyroX = units.ConvertRate(m.GyroX, rate)
		m.GyroY = units.ConvertRate(m.GyroY, rate)
		m.GyroZ = units.ConvertRate(m.GyroZ, rate)
		m.RateUnits = rate
	}
	return m
}

// Summary is the result of Compute.
type Summary struct {
	Kinds []KindStats
	// OnFraction is the share of polarity events with positive polarity.
	OnFraction float64
	// Imu is nil when the store holds no IMU6 samples.
	Imu *ImuStats
	// Span covers every kind.
	Span time.Duration
}

// Compute summarises s. Kinds are listed in store order.
func Compute(s *aedat.EventStore) Summary {
	var out Summary
	for _, k := range s.Kinds() {
		out.Kinds = append(out.Kinds, kindStats(k, s.Timestamps(k)))
	}
	if !s.Empty() {
		out.Span = micros(s.LastTimestamp - s.FirstTimestamp)
	}
	if p := s.Polarity; p != nil && p.Len() > 0 {
		on := 0
		for _, v := range p.Polarity {
			if v {
				on++
			}
		}
		out.OnFraction = float64(on) / float64(p.Len())
	}
	if m := s.Imu6; m != nil && m.Len() > 0 {
		out.Imu = &ImuStats{
			AccelX:      mean32(m.AccelX),
			AccelY:      mean32(m.AccelY),
			AccelZ:      mean32(m.AccelZ),
			GyroX:       mean32(m.GyroX),
			GyroY:       mean32(m.GyroY),
			GyroZ:       mean32(m.GyroZ),
			Temperature: mean32(m.Temperature),
			AccelUnits:  units.G,
			RateUnits:   units.DPS,
		}
	}
	return out
}

// Find returns the stats for k.
func (s Summary) Find(k aedat.Kind) (KindStats, bool) {
	for _, ks := range s.Kinds {
		if ks.Kind == k {
			return ks, true
		}
	}
	return KindStats{}, false
}

// WriteTo prints a plain-text table of s.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var n int64
	printf := func(format string, args ...any) error {
		m, err := fmt.Fprintf(w, format, args...)
		n += int64(m)
		return err
	}
	if err := printf("%-10s %10s %14s %14s %12s %12s\n", "kind", "count", "first_us", "last_us", "rate_hz", "mean_iei_us"); err != nil {
		return n, err
	}
	for _, k := range s.Kinds {
		if err := printf("%-10s %10d %14d %14d %12.1f %12.1f\n", k.Kind, k.Count, k.First, k.Last, k.Rate, k.MeanInterval); err != nil {
			return n, err
		}
	}
	if _, ok := s.Find(aedat.KindPolarity); ok {
		if err := printf("polarity on fraction: %.3f\n", s.OnFraction); err != nil {
			return n, err
		}
	}
	if m := s.Imu; m != nil {
		if err := printf("imu mean accel (%s): %.3f %.3f %.3f  gyro (%s): %.3f %.3f %.3f  temperature (C): %.1f\n",
			units.Label(m.AccelUnits), m.AccelX, m.AccelY, m.AccelZ,
			units.Label(m.RateUnits), m.GyroX, m.GyroY, m.GyroZ, m.Temperature); err != nil {
			return n, err
		}
	}
	return n, nil
}

func kindStats(k aedat.Kind, ts []int64) KindStats {
	ks := KindStats{Kind: k, Count: len(ts)}
	if len(ts) == 0 {
		return ks
	}
	ks.First, ks.Last = ts[0], ts[0]
	for _, t := range ts {
		ks.First = min(ks.First, t)
		ks.Last = max(ks.Last, t)
	}
	ks.Duration = micros(ks.Last - ks.First)
	if secs := ks.Duration.Seconds(); secs > 0 {
		ks.Rate = float64(len(ts)) / secs
	}

	if len(ts) < 2 {
		return ks
	}
	iei := make([]float64, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		iei[i-1] = float64(ts[i] - ts[i-1])
	}
	if len(iei) == 1 {
		ks.MeanInterval = iei[0]
		return ks
	}
	ks.MeanInterval, ks.StdInterval = stat.MeanStdDev(iei, nil)
	return ks
}

func micros(us int64) time.Duration { return time.Duration(us) * time.Microsecond }

func mean32(v []float32) float64 {
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return stat.Mean(f, nil)
}
