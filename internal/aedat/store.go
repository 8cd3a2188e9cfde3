package aedat

type columnar interface {
	Batch
	Filter(keep []bool)
	trim()
	valid() []bool
	dropValid()
	starts() []int64
}

// EventStore is the per-file result: one optional batch per event kind.
// Absent kinds are nil; Finalize guarantees no present batch is empty.
type EventStore struct {
	Special  *SpecialBatch
	Polarity *PolarityBatch
	Frame    *FrameBatch
	Imu6     *Imu6Batch
	Point1D  *Point1DBatch
	Point2D  *Point2DBatch
	Point3D  *Point3DBatch

	// FirstTimestamp and LastTimestamp span every present batch, in
	// microseconds. Both are zero when the store is empty.
	FirstTimestamp int64
	LastTimestamp  int64
}

func (s *EventStore) batches() []columnar {
	var out []columnar
	if s.Special != nil {
		out = append(out, s.Special)
	}
	if s.Polarity != nil {
		out = append(out, s.Polarity)
	}
	if s.Frame != nil {
		out = append(out, s.Frame)
	}
	if s.Imu6 != nil {
		out = append(out, s.Imu6)
	}
	if s.Point1D != nil {
		out = append(out, s.Point1D)
	}
	if s.Point2D != nil {
		out = append(out, s.Point2D)
	}
	if s.Point3D != nil {
		out = append(out, s.Point3D)
	}
	return out
}

// Batch returns the batch for k, or nil when the kind is absent.
func (s *EventStore) Batch(k Kind) Batch {
	for _, b := range s.batches() {
		if b.Kind() == k {
			return b
		}
	}
	return nil
}

// Kinds lists the kinds with at least one event, in type-code order.
func (s *EventStore) Kinds() []Kind {
	var out []Kind
	for _, b := range s.batches() {
		if b.Len() > 0 {
			out = append(out, b.Kind())
		}
	}
	return out
}

// Timestamps returns the primary timestamp column of kind k, or nil when
// the kind is absent. Frames report their exposure start.
func (s *EventStore) Timestamps(k Kind) []int64 {
	for _, b := range s.batches() {
		if b.Kind() == k {
			return b.starts()
		}
	}
	return nil
}

// NumEvents returns the number of events of kind k.
func (s *EventStore) NumEvents(k Kind) int {
	if b := s.Batch(k); b != nil {
		return b.Len()
	}
	return 0
}

// Counts returns NumEvents for every present kind.
func (s *EventStore) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, b := range s.batches() {
		if b.Len() > 0 {
			out[b.Kind()] = b.Len()
		}
	}
	return out
}

// Empty reports whether no kind holds any event.
func (s *EventStore) Empty() bool { return len(s.Kinds()) == 0 }

// FilterTime keeps events whose timestamp lies in [start, end]. Frames are
// matched on their exposure start.
func (s *EventStore) FilterTime(start, end int64) {
	for _, b := range s.batches() {
		ts := b.starts()
		keep := make([]bool, len(ts))
		for i, t := range ts {
			keep[i] = t >= start && t <= end
		}
		b.Filter(keep)
	}
}

// DropInvalid removes events whose valid flag is clear and then drops the
// Valid column from every batch.
func (s *EventStore) DropInvalid() {
	for _, b := range s.batches() {
		if v := b.valid(); v != nil {
			// Filter compacts Valid in place, so it cannot double as the mask.
			b.Filter(append([]bool(nil), v...))
		}
		b.dropValid()
	}
}

// Finalize trims every batch to its exact length, removes empty batches
// and recomputes the overall timestamp span.
func (s *EventStore) Finalize() {
	if s.Special != nil && s.Special.Len() == 0 {
		s.Special = nil
	}
	if s.Polarity != nil && s.Polarity.Len() == 0 {
		s.Polarity = nil
	}
	if s.Frame != nil && s.Frame.Len() == 0 {
		s.Frame = nil
	}
	if s.Imu6 != nil && s.Imu6.Len() == 0 {
		s.Imu6 = nil
	}
	if s.Point1D != nil && s.Point1D.Len() == 0 {
		s.Point1D = nil
	}
	if s.Point2D != nil && s.Point2D.Len() == 0 {
		s.Point2D = nil
	}
	if s.Point3D != nil && s.Point3D.Len() == 0 {
		s.Point3D = nil
	}

	s.FirstTimestamp, s.LastTimestamp = 0, 0
	seen := false
	for _, b := range s.batches() {
		b.trim()
		first, last, ok := b.TimeBounds()
		if !ok {
			continue
		}
		if !seen || first < s.FirstTimestamp {
			s.FirstTimestamp = first
		}
		if !seen || last > s.LastTimestamp {
			s.LastTimestamp = last
		}
		seen = true
	}
}
