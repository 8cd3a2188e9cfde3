package importer

import (
	"time"

	"github.com/banshee-data/aedat/internal/aedat"
)

// Options selects what an import reads. Unset pointer fields mean "no
// bound". Use DefaultOptions for the documented defaults; the zero value
// disables every boolean behaviour.
type Options struct {
	// StartEvent and EndEvent bound a half-open range of record indices in
	// v1/v2 files. An EndEvent beyond the last record is clamped.
	StartEvent *int64
	EndEvent   *int64

	// StartTime and EndTime bound an inclusive timestamp range. Timestamps
	// are measured from the sensor's zero, not from the first event.
	StartTime *time.Duration
	EndTime   *time.Duration

	// StartPacket and EndPacket bound a half-open range of 0-based packet
	// numbers in v3 files.
	StartPacket *int64
	EndPacket   *int64

	// DataTypes restricts decoding to the given kinds. Nil selects all.
	DataTypes aedat.KindSet

	// SuppressPayload builds the v3 packet index without decoding events.
	SuppressPayload bool

	// Source overrides the sensor declared in the header.
	Source aedat.Source

	// SimplifyFrameTimestamps drops the v3 frame start/end columns and
	// keeps only the exposure window.
	SimplifyFrameTimestamps bool

	// ValidOnly removes v3 events whose valid flag is clear.
	ValidOnly bool

	// SubtractResetFrames subtracts v1/v2 reset reads from signal reads.
	SubtractResetFrames bool

	// SkipEveryNPackets decodes every n-th v3 packet counting from 1, so
	// with 10 the 10th, 20th and later multiples are kept. Counting is by
	// position in the file, not from StartPacket. Values below 1 are
	// treated as 1.
	SkipEveryNPackets int64

	// Index is a prior v3 pass over the same file. It is read, never
	// modified, and lets the decoder seek straight to the first packet of
	// interest.
	Index *aedat.PacketIndex
}

// DefaultOptions returns options that read the whole file.
func DefaultOptions() Options {
	return Options{
		SimplifyFrameTimestamps: true,
		ValidOnly:               true,
		SubtractResetFrames:     true,
		SkipEveryNPackets:       1,
	}
}

// Int64 returns a pointer to v, for the optional bounds.
func Int64(v int64) *int64 { return &v }

// Duration returns a pointer to d, for the optional time bounds.
func Duration(d time.Duration) *time.Duration { return &d }

// validate checks bounds that do not depend on the file.
func (o Options) validate() error {
	if o.StartEvent != nil && *o.StartEvent < 0 {
		return aedat.RangeError{Param: "event range", Start: *o.StartEvent, End: 0}
	}
	if o.StartEvent != nil && o.EndEvent != nil && *o.EndEvent >= 0 && *o.StartEvent > *o.EndEvent {
		return aedat.RangeError{Param: "event range", Start: *o.StartEvent, End: *o.EndEvent}
	}
	if o.StartTime != nil && o.EndTime != nil && *o.StartTime > *o.EndTime {
		return aedat.RangeError{Param: "time range", Start: o.StartTime.Microseconds(), End: o.EndTime.Microseconds()}
	}
	if o.StartPacket != nil && *o.StartPacket < 0 {
		return aedat.RangeError{Param: "packet range", Start: *o.StartPacket, End: 0}
	}
	if o.StartPacket != nil && o.EndPacket != nil && *o.EndPacket >= 0 && *o.StartPacket > *o.EndPacket {
		return aedat.RangeError{Param: "packet range", Start: *o.StartPacket, End: *o.EndPacket}
	}
	return nil
}

// checkVersion rejects options that have no meaning for the format.
func (o Options) checkVersion(version int) error {
	unsupported := func(name string) error {
		return aedat.UnsupportedParameterError{Param: name, FormatVersion: version}
	}
	if version >= 3 {
		switch {
		case o.StartEvent != nil:
			return unsupported("StartEvent")
		case o.EndEvent != nil:
			return unsupported("EndEvent")
		}
		return nil
	}
	switch {
	case o.StartPacket != nil:
		return unsupported("StartPacket")
	case o.EndPacket != nil:
		return unsupported("EndPacket")
	case o.SkipEveryNPackets > 1:
		return unsupported("SkipEveryNPackets")
	case o.SuppressPayload:
		return unsupported("SuppressPayload")
	}
	return nil
}

// window converts the time bounds to microseconds.
func (o Options) window() *aedat.TimeWindow {
	var start, end *int64
	if o.StartTime != nil {
		start = Int64(o.StartTime.Microseconds())
	}
	if o.EndTime != nil {
		end = Int64(o.EndTime.Microseconds())
	}
	return aedat.OpenWindow(start, end)
}

// visitsEveryPacket reports whether a v3 pass reads the leading timestamp
// of every packet, which is what makes its index worth keeping.
func (o Options) visitsEveryPacket() bool {
	return valueOr(o.StartPacket, 0) == 0 && o.SkipEveryNPackets <= 1 && o.DataTypes == nil
}

func valueOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}
