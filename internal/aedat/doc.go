// Package aedat owns the data model shared by the AEDAT decoders.
//
// Responsibilities: the recording source table, the file header, the
// closed set of event kinds, their columnar batches, the finalized
// EventStore, the v3 packet index and the decode error taxonomy.
// Key types: Source, FileHeader, Kind, EventStore, PacketIndex.
//
// Dependency rule: this package imports nothing from its sub-packages.
// header, bitfield, addrevent and packet depend on it; importer wires
// them together.
package aedat
