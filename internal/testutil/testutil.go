// Package testutil provides shared test utilities and fixtures.
//
// It builds synthetic AEDAT recordings in memory so decoder tests can
// exercise exact byte layouts without fixture files on disk.
package testutil

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/banshee-data/aedat/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// WriteFile stores data in fsys under name and returns name.
func WriteFile(t *testing.T, fsys *fsutil.MemoryFileSystem, name string, data []byte) string {
	t.Helper()
	if err := fsys.WriteFile(name, data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return name
}

// V2Header returns a jAER-style header declaring format 2.0 and chip.
func V2Header(chip string) string {
	return "#!AER-DAT2.0\r\n" +
		"# This is a raw AE data file - do not edit\r\n" +
		"# Data format is int32 address, int32 timestamp (8 bytes total), repeated for each event\r\n" +
		"# AEChip: eu.seebetter.ini.chips.davis." + chip + "\r\n" +
		"# created Thu Dec 03 14:47:00 CET 2015\r\n"
}

// V3Header returns a cAER-style header declaring format 3.1 and source.
func V3Header(source string) string {
	return "#!AER-DAT3.1\r\n" +
		"#Format: RAW\r\n" +
		"#Source 1: " + source + "\r\n" +
		"#Start-Time: 2017-08-20 11:02:09 (TZ+0200)\r\n" +
		"#!END-HEADER\r\n"
}

// AddressEvent is one v1/v2 record.
type AddressEvent struct {
	Addr uint32
	Ts   uint32
}

// V2File concatenates header and big-endian 8-byte records.
func V2File(header string, events ...AddressEvent) []byte {
	out := []byte(header)
	var rec [8]byte
	for _, e := range events {
		binary.BigEndian.PutUint32(rec[0:4], e.Addr)
		binary.BigEndian.PutUint32(rec[4:8], e.Ts)
		out = append(out, rec[:]...)
	}
	return out
}

// V1File concatenates header and big-endian 6-byte records. Addresses are
// truncated to 16 bits.
func V1File(header string, events ...AddressEvent) []byte {
	out := []byte(header)
	var rec [6]byte
	for _, e := range events {
		binary.BigEndian.PutUint16(rec[0:2], uint16(e.Addr))
		binary.BigEndian.PutUint32(rec[2:6], e.Ts)
		out = append(out, rec[:]...)
	}
	return out
}

// Packet is a v3 packet under construction.
type Packet struct {
	Type       int16
	Source     int16
	EventSize  uint32
	TsOffset   uint32
	TsOverflow uint32
	Records    [][]byte
}

// Bytes encodes the 28-byte little-endian header followed by the records.
// Capacity, number and valid are all set to the record count.
func (p Packet) Bytes() []byte {
	out := make([]byte, 28)
	n := uint32(len(p.Records))
	binary.LittleEndian.PutUint16(out[0:2], uint16(p.Type))
	binary.LittleEndian.PutUint16(out[2:4], uint16(p.Source))
	binary.LittleEndian.PutUint32(out[4:8], p.EventSize)
	binary.LittleEndian.PutUint32(out[8:12], p.TsOffset)
	binary.LittleEndian.PutUint32(out[12:16], p.TsOverflow)
	binary.LittleEndian.PutUint32(out[16:20], n)
	binary.LittleEndian.PutUint32(out[20:24], n)
	binary.LittleEndian.PutUint32(out[24:28], n)
	for _, r := range p.Records {
		out = append(out, r...)
	}
	return out
}

// V3File concatenates header and packets.
func V3File(header string, packets ...Packet) []byte {
	out := []byte(header)
	for _, p := range packets {
		out = append(out, p.Bytes()...)
	}
	return out
}

func info(valid bool, typ uint8) uint32 {
	v := uint32(typ&0x7F) << 1
	if valid {
		v |= 1
	}
	return v
}

func putTs(b []byte, ts int32) { binary.LittleEndian.PutUint32(b, uint32(ts)) }

func putFloat(b []byte, f float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(f)) }

// SpecialRecord encodes a v3 special event.
func SpecialRecord(typ uint8, valid bool, ts int32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], info(valid, typ))
	putTs(b[4:8], ts)
	return b
}

// SpecialPacket wraps records in a type 0 packet.
func SpecialPacket(overflow uint32, records ...[]byte) Packet {
	return Packet{Type: 0, EventSize: 8, TsOffset: 4, TsOverflow: overflow, Records: records}
}

// PolarityRecord encodes a v3 polarity event.
func PolarityRecord(x, y uint16, on, valid bool, ts int32) []byte {
	addr := uint32(x)<<17 | (uint32(y)<<2)&0x1FFFC
	if on {
		addr |= 2
	}
	if valid {
		addr |= 1
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], addr)
	putTs(b[4:8], ts)
	return b
}

// PolarityPacket wraps records in a type 1 packet.
func PolarityPacket(overflow uint32, records ...[]byte) Packet {
	return Packet{Type: 1, EventSize: 8, TsOffset: 4, TsOverflow: overflow, Records: records}
}

// Frame describes a v3 frame record. Pix holds 10-bit samples in
// row-major, channel-interleaved order.
type Frame struct {
	Valid                      bool
	Channels                   uint8
	Filter                     uint8
	RoiID                      uint8
	FrameStart, FrameEnd       int32
	ExposureStart, ExposureEnd int32
	Width, Height              int32
	X, Y                       int32
	Pix                        []uint16
}

// FrameRecordSize is the encoded size of a frame with the given geometry.
func FrameRecordSize(width, height, channels int) uint32 {
	return uint32(36 + width*height*channels*2)
}

// Bytes encodes the frame. Samples are left-justified to 16 bits.
func (f Frame) Bytes() []byte {
	ch := f.Channels
	if ch == 0 {
		ch = 1
	}
	b := make([]byte, FrameRecordSize(int(f.Width), int(f.Height), int(ch)))
	inf := uint32(ch&0x7)<<1 | uint32(f.Filter&0x7)<<4 | uint32(f.RoiID&0x7F)<<7
	if f.Valid {
		inf |= 1
	}
	binary.LittleEndian.PutUint32(b[0:4], inf)
	putTs(b[4:8], f.FrameStart)
	putTs(b[8:12], f.FrameEnd)
	putTs(b[12:16], f.ExposureStart)
	putTs(b[16:20], f.ExposureEnd)
	binary.LittleEndian.PutUint32(b[20:24], uint32(f.Width))
	binary.LittleEndian.PutUint32(b[24:28], uint32(f.Height))
	binary.LittleEndian.PutUint32(b[28:32], uint32(f.X))
	binary.LittleEndian.PutUint32(b[32:36], uint32(f.Y))
	for i, v := range f.Pix {
		binary.LittleEndian.PutUint16(b[36+2*i:], v<<6)
	}
	return b
}

// FramePacket wraps frames of identical geometry in a type 2 packet.
func FramePacket(overflow uint32, frames ...Frame) Packet {
	p := Packet{Type: 2, TsOffset: 12, TsOverflow: overflow}
	for _, f := range frames {
		r := f.Bytes()
		if uint32(len(r)) > p.EventSize {
			p.EventSize = uint32(len(r))
		}
		p.Records = append(p.Records, r)
	}
	return p
}

// Imu6 describes a v3 IMU6 record in physical units.
type Imu6 struct {
	Valid                  bool
	Ts                     int32
	AccelX, AccelY, AccelZ float32
	Temperature            float32
	GyroX, GyroY, GyroZ    float32
}

// Bytes encodes the 36-byte record: info, timestamp, accel X/Y/Z,
// temperature, gyro X/Y/Z.
func (m Imu6) Bytes() []byte {
	b := make([]byte, 36)
	binary.LittleEndian.PutUint32(b[0:4], info(m.Valid, 0))
	putTs(b[4:8], m.Ts)
	for i, f := range []float32{m.AccelX, m.AccelY, m.AccelZ, m.Temperature, m.GyroX, m.GyroY, m.GyroZ} {
		putFloat(b[8+4*i:], f)
	}
	return b
}

// Imu6Packet wraps samples in a type 3 packet.
func Imu6Packet(overflow uint32, samples ...Imu6) Packet {
	p := Packet{Type: 3, EventSize: 36, TsOffset: 4, TsOverflow: overflow}
	for _, s := range samples {
		p.Records = append(p.Records, s.Bytes())
	}
	return p
}

// PointRecord encodes a point1D/2D/3D record holding len(coords) floats.
func PointRecord(typ uint8, valid bool, ts int32, coords ...float32) []byte {
	b := make([]byte, 8+4*len(coords))
	binary.LittleEndian.PutUint32(b[0:4], info(valid, typ))
	for i, c := range coords {
		putFloat(b[4+4*i:], c)
	}
	putTs(b[4+4*len(coords):], ts)
	return b
}

// PointPacket wraps point records of dims coordinates (1 to 3).
func PointPacket(dims int, overflow uint32, records ...[]byte) Packet {
	return Packet{
		Type:       int16(7 + dims),
		EventSize:  uint32(8 + 4*dims),
		TsOffset:   uint32(4 + 4*dims),
		TsOverflow: overflow,
		Records:    records,
	}
}

// RawPacket builds a packet of an arbitrary type with opaque records.
func RawPacket(typ int16, eventSize uint32, records ...[]byte) Packet {
	return Packet{Type: typ, EventSize: eventSize, Records: records}
}
