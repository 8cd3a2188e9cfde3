package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/aedat/internal/aedat"
)

// records slices a payload into eventSize strides. Records shorter than
// the type's layout are zero-filled.
type records struct {
	data []byte
	size int
	need int
	n    int
}

func newRecords(h Header, data []byte) records {
	size := int(h.EventSize)
	r := records{data: data, size: size, need: recordSize(h.Type)}
	if size <= 0 {
		return r
	}
	r.n = (len(data) + size - 1) / size
	if r.n > int(h.Number) {
		r.n = int(h.Number)
	}
	return r
}

func (r records) at(i int) []byte {
	lo := i * r.size
	hi := min(lo+r.size, len(r.data))
	rec := r.data[lo:hi]
	if len(rec) < r.need {
		padded := make([]byte, r.need)
		copy(padded, rec)
		return padded
	}
	return rec
}

// decode appends the packet's records to the store. It returns the raw
// timestamp of the first record when there is one.
func (d *Decoder) decode(kind aedat.Kind, h Header, data []byte, base int64) (int32, bool) {
	recs := newRecords(h, data)
	if recs.n == 0 {
		return 0, false
	}
	if recs.size < recs.need {
		d.warn(aedat.TruncatedPayloadError{Kind: kind, Offset: base, Want: int64(recs.need), Have: int64(recs.size)})
	}

	s := d.store
	switch kind {
	case aedat.KindSpecial:
		if s.Special == nil {
			s.Special = &aedat.SpecialBatch{}
		}
		s.Special.Reserve(recs.n)
		for i := 0; i < recs.n; i++ {
			r := recs.at(i)
			info := u32(r, 0)
			s.Special.Append(h.Widen(i32(r, 4)), infoType(info), infoValid(info))
		}

	case aedat.KindPolarity:
		if s.Polarity == nil {
			s.Polarity = &aedat.PolarityBatch{}
		}
		s.Polarity.Reserve(recs.n)
		for i := 0; i < recs.n; i++ {
			r := recs.at(i)
			addr := u32(r, 0)
			s.Polarity.Append(
				h.Widen(i32(r, 4)),
				uint16(addr>>polarityXShift),
				uint16((addr&polarityYMask)>>polarityYShift),
				addr&polarityOnMask != 0,
				addr&polarityValidMask != 0,
			)
		}

	case aedat.KindFrame:
		if s.Frame == nil {
			s.Frame = aedat.NewFrameBatch(!d.params.SimplifyFrameTimestamps)
		}
		s.Frame.Reserve(recs.n)
		for i := 0; i < recs.n; i++ {
			s.Frame.Append(d.decodeFrame(h, recs.at(i), base+int64(i*recs.size)))
		}

	case aedat.KindImu6:
		if s.Imu6 == nil {
			s.Imu6 = &aedat.Imu6Batch{}
		}
		s.Imu6.Reserve(recs.n)
		// Floats are read in the order accel X/Y/Z, temperature, gyro
		// X/Y/Z, the same order v1/v2 IMU groups use. libcaer's own
		// struct puts gyro at 20-28 and temperature at 32; recordings
		// written that way decode with temperature and gyro rotated.
		for i := 0; i < recs.n; i++ {
			r := recs.at(i)
			s.Imu6.Append(h.Widen(i32(r, 4)), infoValid(u32(r, 0)), aedat.Imu6Sample{
				AccelX:      f32(r, 8),
				AccelY:      f32(r, 12),
				AccelZ:      f32(r, 16),
				Temperature: f32(r, 20),
				GyroX:       f32(r, 24),
				GyroY:       f32(r, 28),
				GyroZ:       f32(r, 32),
			})
		}

	case aedat.KindPoint1D:
		if s.Point1D == nil {
			s.Point1D = &aedat.Point1DBatch{}
		}
		s.Point1D.Reserve(recs.n)
		for i := 0; i < recs.n; i++ {
			r := recs.at(i)
			info := u32(r, 0)
			s.Point1D.Append(h.Widen(i32(r, 8)), infoValid(info), infoType(info), f32(r, 4))
		}

	case aedat.KindPoint2D:
		if s.Point2D == nil {
			s.Point2D = &aedat.Point2DBatch{}
		}
		s.Point2D.Reserve(recs.n)
		for i := 0; i < recs.n; i++ {
			r := recs.at(i)
			info := u32(r, 0)
			s.Point2D.Append(h.Widen(i32(r, 12)), infoValid(info), infoType(info), f32(r, 4), f32(r, 8))
		}

	case aedat.KindPoint3D:
		if s.Point3D == nil {
			s.Point3D = &aedat.Point3DBatch{}
		}
		s.Point3D.Reserve(recs.n)
		for i := 0; i < recs.n; i++ {
			r := recs.at(i)
			info := u32(r, 0)
			s.Point3D.Append(h.Widen(i32(r, 16)), infoValid(info), infoType(info), f32(r, 4), f32(r, 8), f32(r, 12))
		}

	default:
		return 0, false
	}

	first := recs.at(0)
	at := int(h.TsOffset)
	if at+4 > len(first) {
		return 0, false
	}
	return i32(first, at), true
}

// decodeFrame decodes one frame record starting at file offset off.
//
// Frames follow the cAER frame layout in layout.go, which has not been
// checked byte for byte against a recording. A geometry above
// MAX_FRAME_PIXELS yields an empty image and a warning. Samples missing
// past the record end are zero-filled with a TruncatedPayloadError.
func (d *Decoder) decodeFrame(h Header, r []byte, off int64) aedat.FrameRecord {
	info := u32(r, 0)
	channels := int((info & frameChannelsMask) >> frameChannelsShift)
	if channels == 0 {
		channels = 1
	}
	width, height := int(i32(r, 20)), int(i32(r, 24))
	if width < 0 || height < 0 || int64(width)*int64(height)*int64(channels) > MAX_FRAME_PIXELS {
		d.warn(fmt.Errorf("frame at offset %d declares implausible geometry %dx%dx%d", off, width, height, channels))
		width, height = 0, 0
	}

	img := aedat.NewImage(width, height, channels)
	pix := r[FRAME_HEADER_SIZE:]
	want := int64(2 * len(img.Pix))
	if have := int64(len(pix)); have < want {
		d.warn(aedat.TruncatedPayloadError{Kind: aedat.KindFrame, Offset: off + FRAME_HEADER_SIZE, Want: want, Have: have})
	}
	for i := range img.Pix {
		if 2*i+1 >= len(pix) {
			break
		}
		img.Pix[i] = binary.LittleEndian.Uint16(pix[2*i:]) >> FRAME_SAMPLE_SHIFT
	}

	return aedat.FrameRecord{
		Valid:         infoValid(info),
		ColorChannels: uint8(channels),
		ColorFilter:   uint8((info & frameFilterMask) >> frameFilterShift),
		RoiID:         uint8((info & frameRoiMask) >> frameRoiShift),
		FrameStart:    h.Widen(i32(r, 4)),
		FrameEnd:      h.Widen(i32(r, 8)),
		ExposureStart: h.Widen(i32(r, 12)),
		ExposureEnd:   h.Widen(i32(r, 16)),
		XPosition:     uint16(i32(r, 28)),
		YPosition:     uint16(i32(r, 32)),
		Image:         img,
	}
}
