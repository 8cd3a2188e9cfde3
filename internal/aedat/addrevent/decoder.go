// Package addrevent decodes the fixed-size address-event tables of AEDAT
// v1 and v2 files.
//
// Each record is a big-endian address word followed by a big-endian
// 32-bit microsecond timestamp. Version 1 addresses are 16 bits wide
// (6-byte records), version 2 addresses 32 bits (8-byte records). The
// address word is classified with the sensor's bitfield.Layout and
// demultiplexed into special, polarity, frame and IMU6 batches.
package addrevent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/aedat/bitfield"
	"github.com/banshee-data/aedat/internal/monitoring"
)

const (
	V1RecordSize = 6
	V2RecordSize = 8
)

// RecordSize returns the record width for a v1/v2 format version.
func RecordSize(formatVersion int) int64 {
	if formatVersion == 1 {
		return V1RecordSize
	}
	return V2RecordSize
}

// NumEvents returns how many whole records follow the header.
func NumEvents(h *aedat.FileHeader, fileSize int64) int64 {
	n := (fileSize - h.DataStartOffset) / RecordSize(h.FormatVersion)
	if n < 0 {
		return 0
	}
	return n
}

// Params selects what a Decoder reads.
type Params struct {
	// StartEvent and EndEvent bound a half-open range of record indices.
	// A negative EndEvent reads through the last record.
	StartEvent int64
	EndEvent   int64
	// Window is applied after the bulk read; timestamps are not assumed
	// to be ordered.
	Window *aedat.TimeWindow
	Kinds  aedat.KindSet
	// SubtractResetFrames removes reset reads from the frame output and
	// subtracts them from the following signal reads.
	SubtractResetFrames bool
}

// Decoder decodes one v1/v2 file. It is not safe for concurrent use.
type Decoder struct {
	header   *aedat.FileHeader
	layout   bitfield.Layout
	params   Params
	warnings []error
}

// NewDecoder returns a decoder for h. It fails with UnsupportedSourceError
// for sources whose address layout is not known.
func NewDecoder(h *aedat.FileHeader, p Params) (*Decoder, error) {
	if h.FormatVersion > 2 {
		return nil, fmt.Errorf("addrevent: format version %d is packetized", h.FormatVersion)
	}
	layout, err := bitfield.LayoutFor(h.Source)
	if err != nil {
		return nil, err
	}
	return &Decoder{header: h, layout: layout, params: p}, nil
}

// Warnings returns the recoverable problems met by the last Decode.
func (d *Decoder) Warnings() []error { return d.warnings }

func (d *Decoder) warn(err error) {
	monitoring.Logf("aedat: %v", err)
	d.warnings = append(d.warnings, err)
}

// Decode reads the selected records from r and demultiplexes them.
// fileSize is the total size of the file r reads.
func (d *Decoder) Decode(r io.ReadSeeker, fileSize int64) (*aedat.EventStore, error) {
	d.warnings = nil

	addrs, ts, err := d.readTable(r, fileSize)
	if err != nil {
		return nil, err
	}
	if d.params.Window != nil {
		addrs, ts = filterWindow(addrs, ts, d.params.Window)
	}

	var special, polarity, frame, imu []int
	for i, a := range addrs {
		switch d.layout.Classify(a) {
		case bitfield.ClassSpecial:
			special = append(special, i)
		case bitfield.ClassPolarity:
			polarity = append(polarity, i)
		case bitfield.ClassFrame:
			frame = append(frame, i)
		case bitfield.ClassImu:
			imu = append(imu, i)
		}
	}

	store := &aedat.EventStore{}
	kinds := d.params.Kinds

	if kinds.Has(aedat.KindSpecial) && len(special) > 0 {
		monitoring.Debugf("processing %d special events", len(special))
		b := &aedat.SpecialBatch{Timestamp: make([]int64, len(special))}
		for j, i := range special {
			b.Timestamp[j] = ts[i]
		}
		store.Special = b
	}

	if kinds.Has(aedat.KindPolarity) && len(polarity) > 0 {
		monitoring.Debugf("processing %d polarity events", len(polarity))
		store.Polarity = d.decodePolarity(addrs, ts, polarity)
	}

	if kinds.Has(aedat.KindFrame) && len(frame) > 0 {
		samples := make([]bitfield.FrameSample, len(frame))
		frameTs := make([]int64, len(frame))
		for j, i := range frame {
			samples[j] = d.layout.DecodeFrameSample(addrs[i])
			frameTs[j] = ts[i]
		}
		fb := ReconstructFrames(samples, frameTs)
		monitoring.Debugf("reconstructed %d frames from %d samples", fb.Len(), len(samples))
		if d.params.SubtractResetFrames {
			SubtractResetFrames(fb)
		}
		store.Frame = fb
	}

	if kinds.Has(aedat.KindImu6) && len(imu) > 0 {
		if b, err := decodeImu(addrs, ts, imu); err != nil {
			d.warn(err)
		} else {
			store.Imu6 = b
		}
	}

	store.Finalize()
	return store, nil
}

// readTable bulk-reads the selected records.
func (d *Decoder) readTable(r io.ReadSeeker, fileSize int64) ([]uint32, []int64, error) {
	rs := RecordSize(d.header.FormatVersion)
	total := NumEvents(d.header, fileSize)

	start, end := d.params.StartEvent, d.params.EndEvent
	if end < 0 || end > total {
		end = total
	}
	if start < 0 || start > total {
		return nil, nil, aedat.RangeError{Param: "event range", Start: start, End: total}
	}
	if start > end {
		return nil, nil, aedat.RangeError{Param: "event range", Start: start, End: end}
	}

	if _, err := r.Seek(d.header.DataStartOffset+start*rs, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("seek to event %d: %w", start, err)
	}
	buf := make([]byte, (end-start)*rs)
	got, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read event table: %w", err)
	}
	if got < len(buf) {
		monitoring.Logf("aedat: event table shrank during read, %d of %d bytes", got, len(buf))
	}
	n := int64(got) / rs

	addrs := make([]uint32, n)
	ts := make([]int64, n)
	for i := int64(0); i < n; i++ {
		rec := buf[i*rs : (i+1)*rs]
		if rs == V1RecordSize {
			addrs[i] = uint32(binary.BigEndian.Uint16(rec[0:2]))
			ts[i] = int64(binary.BigEndian.Uint32(rec[2:6]))
		} else {
			addrs[i] = binary.BigEndian.Uint32(rec[0:4])
			ts[i] = int64(binary.BigEndian.Uint32(rec[4:8]))
		}
	}
	return addrs, ts, nil
}

func filterWindow(addrs []uint32, ts []int64, w *aedat.TimeWindow) ([]uint32, []int64) {
	keep := make([]bool, len(ts))
	for i, t := range ts {
		keep[i] = w.Contains(t)
	}
	return aedat.Compact(addrs, keep), aedat.Compact(ts, keep)
}

func (d *Decoder) decodePolarity(addrs []uint32, ts []int64, idx []int) *aedat.PolarityBatch {
	b := &aedat.PolarityBatch{
		Timestamp: make([]int64, len(idx)),
		X:         make([]uint16, len(idx)),
		Y:         make([]uint16, len(idx)),
		Polarity:  make([]bool, len(idx)),
	}
	w, h, bounded := d.header.Source.Dimensions()
	outside := 0
	for j, i := range idx {
		x, y, on := d.layout.DecodePolarity(addrs[i])
		b.Timestamp[j] = ts[i]
		b.X[j], b.Y[j], b.Polarity[j] = x, y, on
		if bounded && (int(x) >= w || int(y) >= h) {
			outside++
		}
	}
	if outside > 0 {
		monitoring.Logf("aedat: %d polarity events outside the %dx%d address space of %s", outside, w, h, d.header.Source)
	}
	return b
}

// decodeImu groups IMU words into samples of seven. Each sample takes the
// timestamp of its first word.
func decodeImu(addrs []uint32, ts []int64, idx []int) (*aedat.Imu6Batch, error) {
	if len(idx)%aedat.Imu6WordsPerSample != 0 {
		return nil, aedat.MalformedImuGroupError{Words: len(idx)}
	}
	n := len(idx) / aedat.Imu6WordsPerSample
	b := &aedat.Imu6Batch{}
	b.Timestamp = make([]int64, 0, n)
	b.AccelX = make([]float32, 0, n)
	b.AccelY = make([]float32, 0, n)
	b.AccelZ = make([]float32, 0, n)
	b.GyroX = make([]float32, 0, n)
	b.GyroY = make([]float32, 0, n)
	b.GyroZ = make([]float32, 0, n)
	b.Temperature = make([]float32, 0, n)

	var raw [aedat.Imu6WordsPerSample]int16
	for g := 0; g < n; g++ {
		group := idx[g*aedat.Imu6WordsPerSample : (g+1)*aedat.Imu6WordsPerSample]
		for k, i := range group {
			raw[k] = bitfield.DecodeImuWord(addrs[i])
		}
		s := bitfield.ScaleImu(raw)
		b.Timestamp = append(b.Timestamp, ts[group[0]])
		b.AccelX = append(b.AccelX, s.AccelX)
		b.AccelY = append(b.AccelY, s.AccelY)
		b.AccelZ = append(b.AccelZ, s.AccelZ)
		b.GyroX = append(b.GyroX, s.GyroX)
		b.GyroY = append(b.GyroY, s.GyroY)
		b.GyroZ = append(b.GyroZ, s.GyroZ)
		b.Temperature = append(b.Temperature, s.Temperature)
	}
	return b, nil
}
