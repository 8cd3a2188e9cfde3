// Package bitfield holds the address-word layouts of the v1/v2 AEDAT
// formats. Everything here is pure: no I/O and no state.
package bitfield

import (
	"github.com/banshee-data/aedat/internal/aedat"
)

// Class is the coarse category of a v1/v2 address word.
type Class uint8

const (
	ClassPolarity Class = iota
	ClassSpecial
	ClassFrame
	ClassImu
)

func (c Class) String() string {
	switch c {
	case ClassPolarity:
		return "polarity"
	case ClassSpecial:
		return "special"
	case ClassFrame:
		return "frame"
	case ClassImu:
		return "imu"
	}
	return "unknown"
}

// DAVIS address word bits.
const (
	ApsOrImuMask        uint32 = 0x80000000 // frame sample or IMU word
	SignalOrSpecialMask uint32 = 0x00000400 // special event, or signal read for a frame sample
	ImuOrPolarityMask   uint32 = 0x00000800 // IMU word within ApsOrImu; polarity bit otherwise
	FrameSampleMask     uint32 = 0x000003FF
	ImuDataMask         uint32 = 0x0FFFF000
	ImuDataShift               = 12
)

// IMU scale factors assume the jAER defaults of 8 g and 1000 deg/s full
// scale on a 16-bit converter.
const (
	AccelScale        = 1.0 / 8192   // g per LSB
	GyroScale         = 1.0 / 65.535 // deg/s per LSB
	TemperatureScale  = 1.0 / 340
	TemperatureOffset = 35.0 // degrees Celsius
)

// Layout is the pixel address layout of one sensor family.
type Layout struct {
	Source aedat.Source

	YMask  uint32
	YShift uint
	XMask  uint32
	XShift uint
	// PolarityMask is the ON/OFF bit of a polarity word.
	PolarityMask uint32
}

var davis = Layout{
	YMask:        0x7FC00000,
	YShift:       22,
	XMask:        0x003FF000,
	XShift:       12,
	PolarityMask: 0x00000800,
}

// LayoutFor returns the address layout for src. DAS1 and DVS128 use
// different address schemes that are not decoded here.
func LayoutFor(src aedat.Source) (Layout, error) {
	if !src.IsDavis() {
		return Layout{}, aedat.UnsupportedSourceError{Source: src}
	}
	l := davis
	l.Source = src
	return l, nil
}

// Classify sorts an address word into its event class.
func (l Layout) Classify(addr uint32) Class {
	if addr&ApsOrImuMask != 0 {
		if addr&ImuOrPolarityMask != 0 {
			return ClassImu
		}
		return ClassFrame
	}
	if addr&SignalOrSpecialMask != 0 {
		return ClassSpecial
	}
	return ClassPolarity
}

func (l Layout) x(addr uint32) uint16 { return uint16((addr & l.XMask) >> l.XShift) }
func (l Layout) y(addr uint32) uint16 { return uint16((addr & l.YMask) >> l.YShift) }

func (l Layout) xy(x, y uint16) uint32 {
	return (uint32(x)<<l.XShift)&l.XMask | (uint32(y)<<l.YShift)&l.YMask
}

// DecodePolarity extracts the pixel address and polarity of a polarity word.
func (l Layout) DecodePolarity(addr uint32) (x, y uint16, on bool) {
	return l.x(addr), l.y(addr), addr&l.PolarityMask != 0
}

// EncodePolarity builds a polarity word. Coordinates wider than the field
// are truncated.
func (l Layout) EncodePolarity(x, y uint16, on bool) uint32 {
	w := l.xy(x, y)
	if on {
		w |= l.PolarityMask
	}
	return w
}

// FrameSample is one decoded APS pixel read.
type FrameSample struct {
	X, Y   uint16
	Signal bool // false for a reset read
	Value  uint16
}

// DecodeFrameSample extracts an APS sample word.
func (l Layout) DecodeFrameSample(addr uint32) FrameSample {
	return FrameSample{
		X:      l.x(addr),
		Y:      l.y(addr),
		Signal: addr&SignalOrSpecialMask != 0,
		Value:  uint16(addr & FrameSampleMask),
	}
}

// EncodeFrameSample builds an APS sample word.
func (l Layout) EncodeFrameSample(s FrameSample) uint32 {
	w := ApsOrImuMask | l.xy(s.X, s.Y) | uint32(s.Value)&FrameSampleMask
	if s.Signal {
		w |= SignalOrSpecialMask
	}
	return w
}

// DecodeImuWord returns the signed 16-bit reading carried by an IMU word.
func DecodeImuWord(addr uint32) int16 {
	return int16(uint16((addr & ImuDataMask) >> ImuDataShift))
}

// EncodeImuWord builds an IMU word carrying v.
func EncodeImuWord(v int16) uint32 {
	return ApsOrImuMask | ImuOrPolarityMask | uint32(uint16(v))<<ImuDataShift
}

// EncodeSpecial builds a special-event word.
func EncodeSpecial() uint32 { return SignalOrSpecialMask }

// ScaleImu converts one group of raw readings, ordered accel X/Y/Z,
// temperature, gyro X/Y/Z, into physical units.
func ScaleImu(raw [aedat.Imu6WordsPerSample]int16) aedat.Imu6Sample {
	return aedat.Imu6Sample{
		AccelX:      float32(raw[0]) * AccelScale,
		AccelY:      float32(raw[1]) * AccelScale,
		AccelZ:      float32(raw[2]) * AccelScale,
		Temperature: float32(raw[3])*TemperatureScale + TemperatureOffset,
		GyroX:       float32(raw[4]) * GyroScale,
		GyroY:       float32(raw[5]) * GyroScale,
		GyroZ:       float32(raw[6]) * GyroScale,
	}
}
