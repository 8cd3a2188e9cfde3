package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/aedat/header"
	"github.com/banshee-data/aedat/internal/testutil"
)

type result struct {
	store    *aedat.EventStore
	index    *aedat.PacketIndex
	warnings []error
	header   *aedat.FileHeader
}

func run(t *testing.T, data []byte, p Params) result {
	t.Helper()
	r := bytes.NewReader(data)
	h, err := header.Parse(r, aedat.SourceUnspecified)
	require.NoError(t, err)
	d, err := NewDecoder(h, p)
	require.NoError(t, err)
	store, index, err := d.Decode(r, int64(len(data)))
	require.NoError(t, err)
	return result{store: store, index: index, warnings: d.Warnings(), header: h}
}

func defaults() Params {
	return Params{EndPacket: -1, SkipEvery: 1, SimplifyFrameTimestamps: true, ValidOnly: true}
}

var hdr = testutil.V3Header("DAVIS346B")

func TestHeader_Widen(t *testing.T) {
	h := Header{TsOverflow: 1}
	assert.Equal(t, int64(100)+int64(1)<<31, h.Widen(100))
	assert.Equal(t, int64(-1), Header{}.Widen(-1))
}

func TestParseHeader(t *testing.T) {
	p := testutil.PolarityPacket(7, testutil.PolarityRecord(1, 1, true, true, 5))
	p.Source = 2
	h := ParseHeader(p.Bytes())
	assert.Equal(t, Header{Type: 1, Source: 2, EventSize: 8, TsOffset: 4, TsOverflow: 7, Capacity: 1, Number: 1, Valid: 1}, h)
	assert.Equal(t, uint64(8), h.PayloadSize())
	assert.Equal(t, uint64(0xFFFFFFFE00000001), Header{EventSize: 0xFFFFFFFF, Number: 0xFFFFFFFF}.PayloadSize())
}

func TestDecode_TimestampOverflow(t *testing.T) {
	data := testutil.V3File(hdr, testutil.PolarityPacket(1, testutil.PolarityRecord(3, 4, true, true, 100)))
	res := run(t, data, defaults())

	require.NotNil(t, res.store.Polarity)
	assert.Equal(t, []int64{100 + 1<<31}, res.store.Polarity.Timestamp)
	assert.Equal(t, int64(100+1<<31), res.store.FirstTimestamp)
	require.Equal(t, 1, res.index.Len())
	assert.Equal(t, int64(100+1<<31), res.index.Entries[0].Timestamp)
}

func TestDecode_AllKinds(t *testing.T) {
	frame := testutil.Frame{
		Valid: true, Channels: 1, Filter: 2, RoiID: 3,
		FrameStart: 10, FrameEnd: 40, ExposureStart: 15, ExposureEnd: 35,
		Width: 3, Height: 2, X: 4, Y: 5,
		Pix: []uint16{1, 2, 3, 4, 5, 1023},
	}
	data := testutil.V3File(hdr,
		testutil.SpecialPacket(0, testutil.SpecialRecord(2, true, 1)),
		testutil.PolarityPacket(0,
			testutil.PolarityRecord(345, 259, true, true, 5),
			testutil.PolarityRecord(0, 0, false, true, 6)),
		testutil.FramePacket(0, frame),
		testutil.Imu6Packet(0, testutil.Imu6{Valid: true, Ts: 20, AccelX: 0.5, AccelY: -1, AccelZ: 9, Temperature: 31, GyroX: 1, GyroY: 2, GyroZ: 3}),
		testutil.PointPacket(1, 0, testutil.PointRecord(1, true, 50, 1.5)),
		testutil.PointPacket(2, 0, testutil.PointRecord(2, true, 51, 1, 2)),
		testutil.PointPacket(3, 0, testutil.PointRecord(3, true, 52, 1, 2, 3)),
	)
	res := run(t, data, defaults())
	s := res.store

	assert.Empty(t, res.warnings)
	assert.True(t, res.index.Complete)
	assert.Equal(t, 7, res.index.Len())
	assert.Equal(t, []aedat.Kind{
		aedat.KindSpecial, aedat.KindPolarity, aedat.KindFrame, aedat.KindImu6,
		aedat.KindPoint1D, aedat.KindPoint2D, aedat.KindPoint3D,
	}, s.Kinds())

	assert.Equal(t, []uint8{2}, s.Special.Address)
	assert.Nil(t, s.Special.Valid)

	assert.Equal(t, []uint16{345, 0}, s.Polarity.X)
	assert.Equal(t, []uint16{259, 0}, s.Polarity.Y)
	assert.Equal(t, []bool{true, false}, s.Polarity.Polarity)

	require.Equal(t, 1, s.Frame.Len())
	assert.Equal(t, []int64{15}, s.Frame.TimestampStart)
	assert.Equal(t, []int64{35}, s.Frame.TimestampEnd)
	assert.Nil(t, s.Frame.FrameStart)
	assert.Equal(t, []uint8{2}, s.Frame.ColorFilter)
	assert.Equal(t, []uint8{3}, s.Frame.RoiID)
	assert.Equal(t, []uint16{4}, s.Frame.XPosition)
	assert.Equal(t, []uint16{3}, s.Frame.XLength)
	assert.Equal(t, []uint16{2}, s.Frame.YLength)
	assert.Equal(t, uint16(1023), s.Frame.Samples[0].At(2, 1, 0))
	assert.Equal(t, uint16(2), s.Frame.Samples[0].At(1, 0, 0))

	assert.Equal(t, []float32{0.5}, s.Imu6.AccelX)
	assert.Equal(t, []float32{9}, s.Imu6.AccelZ)
	assert.Equal(t, []float32{31}, s.Imu6.Temperature)
	assert.Equal(t, []float32{1}, s.Imu6.GyroX)
	assert.Equal(t, []float32{3}, s.Imu6.GyroZ)

	assert.Equal(t, []float32{1.5}, s.Point1D.X)
	assert.Equal(t, []uint8{1}, s.Point1D.Type)
	assert.Equal(t, []float32{2}, s.Point2D.Y)
	assert.Equal(t, []float32{3}, s.Point3D.Z)
	assert.Equal(t, []int64{52}, s.Point3D.Timestamp)

	assert.Equal(t, int64(1), s.FirstTimestamp)
	assert.Equal(t, int64(52), s.LastTimestamp)
}

func TestDecode_FullFrameTimestamps(t *testing.T) {
	frame := testutil.Frame{Valid: true, FrameStart: 10, FrameEnd: 40, ExposureStart: 15, ExposureEnd: 35, Width: 1, Height: 1, Pix: []uint16{7}}
	p := defaults()
	p.SimplifyFrameTimestamps = false
	res := run(t, testutil.V3File(hdr, testutil.FramePacket(2, frame)), p)

	f := res.store.Frame
	require.NotNil(t, f)
	off := int64(2) << 31
	assert.Equal(t, []int64{10 + off}, f.FrameStart)
	assert.Equal(t, []int64{40 + off}, f.FrameEnd)
	assert.Equal(t, []int64{15 + off}, f.TimestampStart)
}

func TestDecode_KindFilterSkipsByOffset(t *testing.T) {
	special := testutil.SpecialPacket(0, testutil.SpecialRecord(1, true, 1), testutil.SpecialRecord(1, true, 2))
	imu := testutil.Imu6Packet(0, testutil.Imu6{Valid: true, Ts: 3})
	pol := testutil.PolarityPacket(0, testutil.PolarityRecord(9, 8, true, true, 4))
	data := testutil.V3File(hdr, special, imu, pol, special)

	p := defaults()
	p.Kinds = aedat.NewKindSet(aedat.KindPolarity)
	res := run(t, data, p)

	assert.Equal(t, []aedat.Kind{aedat.KindPolarity}, res.store.Kinds())
	assert.Equal(t, []uint16{9}, res.store.Polarity.X)

	start := res.header.DataStartOffset
	sizes := []int64{int64(len(special.Bytes())), int64(len(imu.Bytes())), int64(len(pol.Bytes()))}
	want := []int64{start, start + sizes[0], start + sizes[0] + sizes[1], start + sizes[0] + sizes[1] + sizes[2]}
	require.Equal(t, 4, res.index.Len())
	for i, e := range res.index.Entries {
		assert.Equal(t, want[i], e.Offset, "packet %d offset", i)
	}
	assert.Equal(t, int16(1), res.index.Entries[2].Type)
	assert.True(t, res.index.Entries[2].HasTimestamp)
	assert.False(t, res.index.Entries[0].HasTimestamp)
}

func TestDecode_UnknownPacketTypeHalts(t *testing.T) {
	data := testutil.V3File(hdr,
		testutil.PolarityPacket(0, testutil.PolarityRecord(1, 1, true, true, 1)),
		testutil.RawPacket(42, 8, make([]byte, 8)),
		testutil.PolarityPacket(0, testutil.PolarityRecord(2, 2, true, true, 2)),
	)
	res := run(t, data, defaults())

	require.Len(t, res.warnings, 1)
	var ue aedat.UnknownPacketTypeError
	require.True(t, errors.As(res.warnings[0], &ue))
	assert.Equal(t, int16(42), ue.Type)
	assert.Equal(t, res.index.Entries[1].Offset, ue.Offset)

	assert.False(t, res.index.Complete)
	assert.Equal(t, []uint16{1}, res.store.Polarity.X)
}

func TestDecode_SampleAndEarSkipped(t *testing.T) {
	data := testutil.V3File(hdr,
		testutil.RawPacket(5, 8, make([]byte, 8), make([]byte, 8)),
		testutil.RawPacket(5, 8, make([]byte, 8)),
		testutil.RawPacket(6, 12, make([]byte, 12)),
		testutil.PolarityPacket(0, testutil.PolarityRecord(7, 7, true, true, 9)),
	)
	res := run(t, data, defaults())

	assert.Len(t, res.warnings, 2, "one warning per skipped type")
	assert.Equal(t, []uint16{7}, res.store.Polarity.X)
	assert.True(t, res.index.Complete)
}

func TestDecode_TruncatedFrame(t *testing.T) {
	frame := testutil.Frame{Valid: true, Width: 4, Height: 4, Pix: make([]uint16, 16)}
	for i := range frame.Pix {
		frame.Pix[i] = uint16(i + 1)
	}
	full := testutil.V3File(hdr, testutil.FramePacket(0, frame))
	// Cut the file after 5 of the 16 samples.
	data := full[:len(full)-2*11]
	res := run(t, data, defaults())

	require.NotNil(t, res.store.Frame)
	img := res.store.Frame.Samples[0]
	assert.Equal(t, uint16(5), img.At(0, 1, 0))
	assert.Equal(t, uint16(0), img.At(1, 1, 0))
	assert.Equal(t, uint16(0), img.At(3, 3, 0))

	var te aedat.TruncatedPayloadError
	found := false
	for _, w := range res.warnings {
		if errors.As(w, &te) && te.Kind == aedat.KindFrame {
			found = true
		}
	}
	assert.True(t, found, "expected a frame truncation warning, got %v", res.warnings)
}

func TestDecode_ValidOnly(t *testing.T) {
	data := testutil.V3File(hdr, testutil.PolarityPacket(0,
		testutil.PolarityRecord(1, 0, true, true, 1),
		testutil.PolarityRecord(2, 0, true, false, 2),
		testutil.PolarityRecord(3, 0, true, true, 3)))

	res := run(t, data, defaults())
	assert.Equal(t, []uint16{1, 3}, res.store.Polarity.X)
	assert.Nil(t, res.store.Polarity.Valid)

	p := defaults()
	p.ValidOnly = false
	res = run(t, data, p)
	assert.Equal(t, []uint16{1, 2, 3}, res.store.Polarity.X)
	assert.Equal(t, []bool{true, false, true}, res.store.Polarity.Valid)
}

func TestDecode_WindowEarlyExit(t *testing.T) {
	data := testutil.V3File(hdr,
		testutil.PolarityPacket(0, testutil.PolarityRecord(1, 0, true, true, 10), testutil.PolarityRecord(2, 0, true, true, 20)),
		testutil.PolarityPacket(0, testutil.PolarityRecord(3, 0, true, true, TIMESTAMP_RESET)),
		testutil.PolarityPacket(0, testutil.PolarityRecord(4, 0, true, true, 30), testutil.PolarityRecord(5, 0, true, true, 35)),
		testutil.PolarityPacket(0, testutil.PolarityRecord(6, 0, true, true, 40)),
	)
	p := defaults()
	p.Window = &aedat.TimeWindow{Start: 15, End: 25}
	res := run(t, data, p)

	// The reset sentinel does not stop the pass; the packet starting at 30 does.
	assert.Equal(t, 3, res.index.Len())
	assert.False(t, res.index.Complete)
	assert.Equal(t, []uint16{2}, res.store.Polarity.X)
}

func TestDecode_PacketRangeAndSkipEvery(t *testing.T) {
	var packets []testutil.Packet
	for i := 0; i < 6; i++ {
		packets = append(packets, testutil.PolarityPacket(0, testutil.PolarityRecord(uint16(i), 0, true, true, int32(i))))
	}
	data := testutil.V3File(hdr, packets...)

	p := defaults()
	p.StartPacket, p.EndPacket = 1, 4
	res := run(t, data, p)
	assert.Equal(t, []uint16{1, 2, 3}, res.store.Polarity.X)
	assert.Equal(t, 4, res.index.Len())

	p = defaults()
	p.SkipEvery = 2
	res = run(t, data, p)
	assert.Equal(t, []uint16{1, 3, 5}, res.store.Polarity.X, "every second packet counting from 1")
	assert.Equal(t, 6, res.index.Len())

	p = defaults()
	p.SkipEvery = 3
	res = run(t, data, p)
	assert.Equal(t, []uint16{2, 5}, res.store.Polarity.X)

	p = defaults()
	p.StartPacket, p.SkipEvery = 3, 2
	res = run(t, data, p)
	assert.Equal(t, []uint16{3, 5}, res.store.Polarity.X)
}

func TestDecode_SuppressPayload(t *testing.T) {
	data := testutil.V3File(hdr,
		testutil.SpecialPacket(0, testutil.SpecialRecord(1, true, 11)),
		testutil.PolarityPacket(3, testutil.PolarityRecord(1, 0, true, true, 22), testutil.PolarityRecord(1, 0, true, true, 23)),
		testutil.FramePacket(0, testutil.Frame{ExposureStart: 33, Width: 1, Height: 1, Pix: []uint16{1}}),
	)
	p := defaults()
	p.SuppressPayload = true
	res := run(t, data, p)

	assert.True(t, res.store.Empty())
	require.Equal(t, 3, res.index.Len())
	assert.True(t, res.index.Complete)
	var ts []int64
	for _, e := range res.index.Entries {
		require.True(t, e.HasTimestamp)
		ts = append(ts, e.Timestamp)
	}
	assert.Equal(t, []int64{11, 22 + 3<<31, 33}, ts)
}

func TestDecode_PriorIndexSeek(t *testing.T) {
	var packets []testutil.Packet
	for i := 0; i < 5; i++ {
		packets = append(packets, testutil.PolarityPacket(0, testutil.PolarityRecord(uint16(i), 0, true, true, int32(100*i))))
	}
	data := testutil.V3File(hdr, packets...)

	idx := defaults()
	idx.SuppressPayload = true
	prior := run(t, data, idx).index

	t.Run("start packet", func(t *testing.T) {
		p := defaults()
		p.StartPacket = 3
		plain := run(t, data, p)
		p.Index = prior
		seeked := run(t, data, p)

		assert.Equal(t, []uint16{3, 4}, seeked.store.Polarity.X)
		if diff := cmp.Diff(plain.store, seeked.store, cmp.AllowUnexported(aedat.FrameBatch{})); diff != "" {
			t.Errorf("seeked decode differs (-plain +seeked):\n%s", diff)
		}
		assert.Equal(t, plain.index.Entries[3:], seeked.index.Entries[3:])
		assert.Equal(t, prior.Entries[:3], seeked.index.Entries[:3])
	})

	t.Run("start time", func(t *testing.T) {
		p := defaults()
		p.Window = &aedat.TimeWindow{Start: 250, End: 1000}
		p.Index = prior
		res := run(t, data, p)

		assert.Equal(t, []uint16{3, 4}, res.store.Polarity.X)
		assert.Equal(t, 5, res.index.Len())
	})

	t.Run("prior index is not modified", func(t *testing.T) {
		before := append([]aedat.PacketEntry(nil), prior.Entries...)
		p := defaults()
		p.StartPacket = 2
		p.Index = prior
		_ = run(t, data, p)
		assert.Equal(t, before, prior.Entries)
	})
}

func TestNewDecoder_RejectsOldVersions(t *testing.T) {
	_, err := NewDecoder(&aedat.FileHeader{FormatVersion: 2}, defaults())
	assert.Error(t, err)
}

// oversized returns a polarity packet header declaring number records of
// eventSize bytes, followed by tail.
func oversized(eventSize, number uint32, tail []byte) []byte {
	b := testutil.PolarityPacket(0).Bytes()
	binary.LittleEndian.PutUint32(b[4:8], eventSize)
	binary.LittleEndian.PutUint32(b[20:24], number)
	return append(b, tail...)
}

func TestDecode_OversizedPayloadStopsPass(t *testing.T) {
	good := testutil.PolarityPacket(0, testutil.PolarityRecord(1, 1, true, true, 5))
	// The only bytes left after the bad header: one polarity record.
	tail := testutil.PolarityRecord(2, 2, true, true, 6)

	tests := []struct {
		name      string
		eventSize uint32
		number    uint32
		params    func(*Params)
		wantX     []uint16
		wantWant  int64
	}{
		{"product overflows int64", 0xFFFFFFFF, 0xFFFFFFFF, nil, []uint16{1, 2}, math.MaxInt64},
		{"product overflows int64, kind skipped", 0xFFFFFFFF, 0xFFFFFFFF, func(p *Params) {
			p.Kinds = aedat.NewKindSet(aedat.KindSpecial)
		}, nil, math.MaxInt64},
		{"payload past end of file", 8, 1 << 20, nil, []uint16{1, 2}, 8 << 20},
		{"payload past end of file, packet not selected", 8, 1 << 20, func(p *Params) {
			p.SkipEvery = 3
		}, nil, 8 << 20},
		{"payload past end of file, index only", 8, 1 << 20, func(p *Params) {
			p.SuppressPayload = true
		}, nil, 8 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append(testutil.V3File(hdr, good), oversized(tt.eventSize, tt.number, tail)...)
			p := defaults()
			if tt.params != nil {
				tt.params(&p)
			}
			res := run(t, data, p)

			require.Equal(t, 2, res.index.Len())
			assert.False(t, res.index.Complete)

			var te aedat.TruncatedPayloadError
			require.Len(t, res.warnings, 1)
			require.True(t, errors.As(res.warnings[0], &te), "got %v", res.warnings)
			assert.Equal(t, aedat.KindPolarity, te.Kind)
			assert.Equal(t, tt.wantWant, te.Want)
			assert.Equal(t, int64(len(tail)), te.Have)

			if tt.wantX == nil {
				assert.Zero(t, res.store.NumEvents(aedat.KindPolarity))
				return
			}
			require.NotNil(t, res.store.Polarity)
			assert.Equal(t, tt.wantX, res.store.Polarity.X)
		})
	}
}
