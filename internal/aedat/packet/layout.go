package packet

import (
	"encoding/binary"
	"math"
)

/*
AEDAT 3.x Packet Layout

A v3 data section is a sequence of self-describing packets. Every packet
carries events of exactly one type.

PACKET STRUCTURE:
├── Header (28 bytes, little-endian)
│   ├── 0  int16   eventType
│   ├── 2  int16   eventSource     [ignored: single source only]
│   ├── 4  uint32  eventSize       bytes per record, used as the stride
│   ├── 8  uint32  eventTSOffset   offset of the int32 timestamp in a record
│   ├── 12 uint32  eventTSOverflow count of 2^31 µs timestamp wraps
│   ├── 16 uint32  eventCapacity   [ignored]
│   ├── 20 uint32  eventNumber     records in this packet
│   └── 24 uint32  eventValid      [ignored: validity is read per record]
└── Payload (eventNumber × eventSize bytes)

RECORD LAYOUTS (offsets within one record):
- special  (0):  0 info, 4 ts. valid = info bit 0, type = info bits 1-7
- polarity (1):  0 addr, 4 ts. valid = bit 0, polarity = bit 1,
                 y = bits 2-16, x = bits 17-31
- frame    (2):  0 info, 4 frame start, 8 frame end, 12 exposure start,
                 16 exposure end, 20 lengthX, 24 lengthY, 28 positionX,
                 32 positionY (all int32), 36 uint16 samples. Samples are
                 left-justified 10-bit values, row-major with interleaved
                 channels. info: channels bits 1-3, filter bits 4-6,
                 ROI bits 7-13
- imu6     (3):  0 info, 4 ts, then float32 accel X/Y/Z, temperature (20),
                 gyro X/Y/Z. libcaer orders gyro at 20-28, temperature 32
- point1D  (8):  0 info, 4 x, 8 ts
- point2D  (9):  0 info, 4 x, 8 y, 12 ts
- point3D  (10): 0 info, 4 x, 8 y, 12 z, 16 ts

Types 5 (sample) and 6 (ear) are known but have no decoder; their payload
is skipped by size. Any other type ends the pass.

TIMESTAMPS:
The embedded timestamp is a signed 32-bit value and wraps at 2^31, so the
widened microsecond value is int64(ts) + eventTSOverflow << 31.
*/

const (
	HEADER_SIZE           = 28
	TIMESTAMP_RESET       = 0x7FFFFFFF // written by devices on timestamp reset; never ends a pass
	OVERFLOW_SHIFT        = 31
	SPECIAL_RECORD_SIZE   = 8
	POLARITY_RECORD_SIZE  = 8
	FRAME_HEADER_SIZE     = 36
	IMU6_RECORD_SIZE      = 36
	POINT1D_RECORD_SIZE   = 12
	POINT2D_RECORD_SIZE   = 16
	POINT3D_RECORD_SIZE   = 20
	FRAME_SAMPLE_SHIFT    = 6       // left-justified 16-bit samples back to 10 bits
	MAX_FRAME_PIXELS      = 1 << 24 // guards allocation against corrupt frame geometry
	DEBUG_PACKET_INTERVAL = 100     // packets between debug progress lines
)

// Type tags without a decoder.
const (
	typeSample int16 = 5
	typeEar    int16 = 6
)

// Info word fields shared by special, IMU and point records.
const (
	infoValidMask = 0x1
	infoTypeMask  = 0xFE
	infoTypeShift = 1
)

// Frame info word fields.
const (
	frameChannelsMask  = 0xE
	frameChannelsShift = 1
	frameFilterMask    = 0x70
	frameFilterShift   = 4
	frameRoiMask       = 0x3F80
	frameRoiShift      = 7
)

// Polarity address fields.
const (
	polarityValidMask = 0x1
	polarityOnMask    = 0x2
	polarityYMask     = 0x1FFFC
	polarityYShift    = 2
	polarityXShift    = 17
)

// Header is a decoded packet header.
type Header struct {
	Type       int16
	Source     int16
	EventSize  uint32
	TsOffset   uint32
	TsOverflow uint32
	Capacity   uint32
	Number     uint32
	Valid      uint32
}

// ParseHeader decodes a 28-byte packet header.
func ParseHeader(b []byte) Header {
	_ = b[HEADER_SIZE-1]
	return Header{
		Type:       int16(binary.LittleEndian.Uint16(b[0:2])),
		Source:     int16(binary.LittleEndian.Uint16(b[2:4])),
		EventSize:  binary.LittleEndian.Uint32(b[4:8]),
		TsOffset:   binary.LittleEndian.Uint32(b[8:12]),
		TsOverflow: binary.LittleEndian.Uint32(b[12:16]),
		Capacity:   binary.LittleEndian.Uint32(b[16:20]),
		Number:     binary.LittleEndian.Uint32(b[20:24]),
		Valid:      binary.LittleEndian.Uint32(b[24:28]),
	}
}

// PayloadSize is the number of bytes following the header. The product of
// two uint32 fields always fits in a uint64.
func (h Header) PayloadSize() uint64 { return uint64(h.EventSize) * uint64(h.Number) }

// TimestampOffset is the value added to every embedded timestamp.
func (h Header) TimestampOffset() int64 { return int64(h.TsOverflow) << OVERFLOW_SHIFT }

// Widen converts an embedded timestamp to absolute microseconds.
func (h Header) Widen(raw int32) int64 { return int64(raw) + h.TimestampOffset() }

// recordSize is the fixed layout size of the decodable record types.
func recordSize(t int16) int {
	switch t {
	case 0:
		return SPECIAL_RECORD_SIZE
	case 1:
		return POLARITY_RECORD_SIZE
	case 2:
		return FRAME_HEADER_SIZE
	case 3:
		return IMU6_RECORD_SIZE
	case 8:
		return POINT1D_RECORD_SIZE
	case 9:
		return POINT2D_RECORD_SIZE
	case 10:
		return POINT3D_RECORD_SIZE
	}
	return 0
}

func u32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
func i32(b []byte, off int) int32  { return int32(binary.LittleEndian.Uint32(b[off:])) }
func f32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func infoValid(info uint32) bool { return info&infoValidMask != 0 }
func infoType(info uint32) uint8 { return uint8((info & infoTypeMask) >> infoTypeShift) }
