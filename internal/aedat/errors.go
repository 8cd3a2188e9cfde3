package aedat

import (
	"fmt"
)

// TruncatedHeaderError is returned when the file ends before the first
// non-comment line, so no data start offset exists.
type TruncatedHeaderError struct {
	Offset int64 // bytes consumed before end of file
}

func (e TruncatedHeaderError) Error() string {
	return fmt.Sprintf("header truncated: end of file at offset %d before data start", e.Offset)
}

// UnknownSourceError is returned when a declared sensor name does not
// resolve to any known Source.
type UnknownSourceError struct {
	Name string
}

func (e UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown recording source %q", e.Name)
}

// UnsupportedSourceError is returned for a recognised source whose address
// layout is not decoded (DAS1, DVS128).
type UnsupportedSourceError struct {
	Source Source
}

func (e UnsupportedSourceError) Error() string {
	return fmt.Sprintf("address layout for source %s is not supported", e.Source)
}

// RangeError reports inconsistent selection bounds.
type RangeError struct {
	Param string
	Start int64
	End   int64
}

func (e RangeError) Error() string {
	return fmt.Sprintf("invalid %s: start %d is greater than end %d", e.Param, e.Start, e.End)
}

// UnsupportedParameterError reports a selection option that has no meaning
// for the file's format version.
type UnsupportedParameterError struct {
	Param         string
	FormatVersion int
}

func (e UnsupportedParameterError) Error() string {
	return fmt.Sprintf("option %s is not available for aedat version %d files", e.Param, e.FormatVersion)
}

// UnknownPacketTypeError reports a v3 packet whose type tag is outside the
// known set. Packet iteration stops at this packet.
type UnknownPacketTypeError struct {
	Type   int16
	Offset int64 // file offset of the packet header
}

func (e UnknownPacketTypeError) Error() string {
	return fmt.Sprintf("unknown packet type %d at offset %d", e.Type, e.Offset)
}

// MalformedImuGroupError reports IMU words that cannot be grouped into
// samples of seven. IMU decoding is skipped; other kinds are unaffected.
type MalformedImuGroupError struct {
	Words int
}

func (e MalformedImuGroupError) Error() string {
	return fmt.Sprintf("%d IMU words is not divisible by %d, IMU samples are not interpretable", e.Words, Imu6WordsPerSample)
}

// TruncatedPayloadError reports fewer bytes than a record or frame declares.
// The missing bytes are zero-filled.
type TruncatedPayloadError struct {
	Kind   Kind
	Offset int64 // file offset where the short read started
	Want   int64
	Have   int64
}

func (e TruncatedPayloadError) Error() string {
	return fmt.Sprintf("truncated %s payload at offset %d: want %d bytes, have %d", e.Kind, e.Offset, e.Want, e.Have)
}
