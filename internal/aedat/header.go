package aedat

// FileHeader is the parsed textual header of an AEDAT file. It is produced
// once by the header parser and is read-only afterwards.
type FileHeader struct {
	// FormatVersion is the major version from "#!AER-DATx.y"; 1 when absent.
	FormatVersion int
	// Source is the resolved sensor, or the caller's override.
	Source Source
	// SourceName is the trailing identifier as declared in the file.
	SourceName string
	// DataStartOffset points exactly past the last header line.
	DataStartOffset int64
	// RecordedAt is the verbatim creation / start time text, empty if absent.
	RecordedAt string
}

// PacketEntry locates one v3 packet in the file.
type PacketEntry struct {
	Offset      int64 // file offset of the 28-byte packet header
	Type        int16
	EventSize   uint32
	EventNumber uint32
	TsOverflow  uint32
	// Timestamp is the widened timestamp of the packet's first event.
	// It is only meaningful when HasTimestamp is set; packets skipped
	// without reading their payload have no leading timestamp.
	Timestamp    int64
	HasTimestamp bool
}

// PacketIndex is the list of packets encountered during a v3 pass.
// An index shared between imports must be treated as read-only.
type PacketIndex struct {
	Entries []PacketEntry
	// Complete is set when the pass reached the end of the file.
	Complete bool
}

// Len returns the number of indexed packets.
func (ix *PacketIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.Entries)
}

// PacketBefore returns the position of the last indexed packet whose
// leading timestamp is strictly before ts (microseconds).
func (ix *PacketIndex) PacketBefore(ts int64) (int, bool) {
	found := -1
	for i := 0; i < ix.Len(); i++ {
		e := ix.Entries[i]
		if e.HasTimestamp && e.Timestamp < ts {
			found = i
		}
	}
	return found, found >= 0
}
