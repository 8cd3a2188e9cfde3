// Package packet decodes the packetized data section of AEDAT 3.x files.
// See layout.go for the byte layout.
package packet

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/monitoring"
)

// Params selects which packets and events a Decoder reads. Packet numbers
// are 0-based positions in the file.
type Params struct {
	// StartPacket and EndPacket bound a half-open packet range. A negative
	// EndPacket reads to the end of the file.
	StartPacket int64
	EndPacket   int64
	// SkipEvery keeps every n-th packet counting from 1: with SkipEvery 3
	// the packets numbered 2, 5, 8 and so on are decoded, the others
	// skipped by size. Values below 1 behave as 1.
	SkipEvery int64
	// Window filters events by timestamp. Its End also stops the pass at
	// the first packet that starts after it.
	Window *aedat.TimeWindow
	Kinds  aedat.KindSet
	// SuppressPayload builds the packet index without decoding events.
	SuppressPayload bool
	// SimplifyFrameTimestamps keeps only the exposure window of frames.
	SimplifyFrameTimestamps bool
	// ValidOnly drops invalid events and the Valid columns.
	ValidOnly bool
	// Index is a prior pass over the same file, used read-only to seek
	// directly to StartPacket or to Window.Start.
	Index *aedat.PacketIndex
}

// Decoder decodes one v3 file. It is not safe for concurrent use.
type Decoder struct {
	header *aedat.FileHeader
	params Params

	store    *aedat.EventStore
	index    *aedat.PacketIndex
	warnings []error
	skipped  map[int16]bool
}

// NewDecoder returns a decoder for h, which must declare version 3 or later.
func NewDecoder(h *aedat.FileHeader, p Params) (*Decoder, error) {
	if h.FormatVersion < 3 {
		return nil, fmt.Errorf("packet: format version %d is not packetized", h.FormatVersion)
	}
	if p.SkipEvery < 1 {
		p.SkipEvery = 1
	}
	return &Decoder{header: h, params: p}, nil
}

// Warnings returns the recoverable problems met by the last Decode.
func (d *Decoder) Warnings() []error { return d.warnings }

func (d *Decoder) warn(err error) {
	monitoring.Logf("aedat: %v", err)
	d.warnings = append(d.warnings, err)
}

// Decode iterates the packets of r, whose total size is fileSize, and
// returns the decoded events together with the index of every packet
// header it passed.
func (d *Decoder) Decode(r io.ReadSeeker, fileSize int64) (*aedat.EventStore, *aedat.PacketIndex, error) {
	d.store = &aedat.EventStore{}
	d.index = &aedat.PacketIndex{}
	d.warnings = nil
	d.skipped = make(map[int16]bool)

	start, pkt := d.startPosition()
	cur, err := newCursor(r, fileSize, start)
	if err != nil {
		return nil, nil, err
	}

	for {
		if d.params.EndPacket >= 0 && pkt >= d.params.EndPacket {
			break
		}
		offset := cur.pos
		raw, err := cur.read(HEADER_SIZE)
		if err != nil {
			return nil, nil, err
		}
		if len(raw) < HEADER_SIZE {
			if len(raw) > 0 {
				monitoring.Logf("aedat: ignoring %d trailing bytes at offset %d", len(raw), offset)
			}
			d.index.Complete = true
			break
		}

		h := ParseHeader(raw)
		if pkt%DEBUG_PACKET_INTERVAL == 0 {
			monitoring.Debugf("packet %d: type %d, %d events, file position %d MB", pkt, h.Type, h.Number, offset/1000000)
		}
		entry := aedat.PacketEntry{
			Offset:      offset,
			Type:        h.Type,
			EventSize:   h.EventSize,
			EventNumber: h.Number,
			TsOverflow:  h.TsOverflow,
		}
		stop, err := d.handle(cur, h, pkt, &entry)
		if err != nil {
			return nil, nil, err
		}
		d.index.Entries = append(d.index.Entries, entry)
		pkt++
		if stop {
			break
		}
	}

	if d.params.ValidOnly {
		d.store.DropInvalid()
	}
	if w := d.params.Window; w != nil {
		d.store.FilterTime(w.Start, w.End)
	}
	d.store.Finalize()
	monitoring.Debugf("decoded %d packets, %d warnings", d.index.Len(), len(d.warnings))
	return d.store, d.index, nil
}

// startPosition uses a prior index to jump ahead. Entries before the jump
// are carried over, so entry i always describes packet i.
func (d *Decoder) startPosition() (int64, int64) {
	ix := d.params.Index
	target := -1
	if d.params.StartPacket > 0 && d.params.StartPacket < int64(ix.Len()) {
		target = int(d.params.StartPacket)
	} else if w := d.params.Window; w != nil && w.Start > 0 && d.params.StartPacket == 0 {
		if i, ok := ix.PacketBefore(w.Start); ok {
			target = i
		}
	}
	if target <= 0 {
		return d.header.DataStartOffset, 0
	}
	d.index.Entries = append(d.index.Entries, ix.Entries[:target]...)
	monitoring.Debugf("seeking to packet %d at offset %d from prior index", target, ix.Entries[target].Offset)
	return ix.Entries[target].Offset, int64(target)
}

// handle consumes the payload of one packet. It reports whether the pass
// must stop after this packet.
func (d *Decoder) handle(cur *cursor, h Header, pkt int64, e *aedat.PacketEntry) (bool, error) {
	p := d.params
	known := recordSize(h.Type) != 0 || h.Type == typeSample || h.Type == typeEar
	if !known {
		d.warn(aedat.UnknownPacketTypeError{Type: h.Type, Offset: e.Offset})
		return true, nil
	}
	if size := h.PayloadSize(); size > math.MaxInt64 || int64(size) > cur.remaining() {
		return d.truncated(cur, h, size, d.selected(pkt), e)
	}
	payload := int64(h.PayloadSize())

	if !d.selected(pkt) {
		return false, cur.skip(payload)
	}

	if h.Type == typeSample || h.Type == typeEar {
		if !d.skipped[h.Type] {
			d.skipped[h.Type] = true
			d.warn(fmt.Errorf("%s packets are not decoded, payload skipped (first at offset %d)", aedat.Kind(h.Type), e.Offset))
		}
		return false, cur.skip(payload)
	}

	kind := aedat.Kind(h.Type)
	if !p.Kinds.Has(kind) {
		return false, cur.skip(payload)
	}

	if p.SuppressPayload {
		raw, ok, err := leadingTimestamp(cur, h)
		if err != nil || !ok {
			return false, err
		}
		e.Timestamp, e.HasTimestamp = h.Widen(raw), true
		return d.pastEnd(raw, e.Timestamp), nil
	}

	base := cur.pos
	data, err := cur.read(payload)
	if err != nil {
		return false, err
	}

	raw, ok := d.decode(kind, h, data, base)
	if !ok {
		return false, nil
	}
	e.Timestamp, e.HasTimestamp = h.Widen(raw), true
	return d.pastEnd(raw, e.Timestamp), nil
}

// selected reports whether packet pkt falls in the packet range and on the
// SkipEvery stride.
func (d *Decoder) selected(pkt int64) bool {
	return pkt >= d.params.StartPacket && (pkt+1)%d.params.SkipEvery == 0
}

// truncated handles a packet whose declared payload runs past the end of
// the file, without seeking or allocating by the declared size. A selected
// packet of a decodable kind is read as far as the file goes and its last
// record zero-filled. The pass always ends here.
func (d *Decoder) truncated(cur *cursor, h Header, size uint64, selected bool, e *aedat.PacketEntry) (bool, error) {
	kind := aedat.Kind(h.Type)
	want := int64(math.MaxInt64)
	if size <= math.MaxInt64 {
		want = int64(size)
	}
	base := cur.pos
	have := cur.remaining()
	d.warn(aedat.TruncatedPayloadError{Kind: kind, Offset: base, Want: want, Have: have})

	if !selected || recordSize(h.Type) == 0 || !d.params.Kinds.Has(kind) || d.params.SuppressPayload {
		return true, nil
	}
	data, err := cur.read(have)
	if err != nil {
		return true, err
	}
	if raw, ok := d.decode(kind, h, data, base); ok {
		e.Timestamp, e.HasTimestamp = h.Widen(raw), true
	}
	return true, nil
}

func (d *Decoder) pastEnd(raw int32, ts int64) bool {
	w := d.params.Window
	return w != nil && raw != TIMESTAMP_RESET && ts > w.End
}

// leadingTimestamp reads only the first record's timestamp and skips the
// rest of the payload.
func leadingTimestamp(cur *cursor, h Header) (int32, bool, error) {
	payload := int64(h.PayloadSize())
	tsAt := int64(h.TsOffset)
	if h.Number == 0 || tsAt+4 > int64(h.EventSize) {
		return 0, false, cur.skip(payload)
	}
	if err := cur.skip(tsAt); err != nil {
		return 0, false, err
	}
	b, err := cur.read(4)
	if err != nil {
		return 0, false, err
	}
	if len(b) < 4 {
		return 0, false, nil
	}
	return int32(binary.LittleEndian.Uint32(b)), true, cur.skip(payload - tsAt - 4)
}
