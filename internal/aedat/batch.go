package aedat

// Batch is the common view over the typed columnar batches.
type Batch interface {
	Kind() Kind
	Len() int
	// TimeBounds returns the earliest and latest timestamp in the batch.
	TimeBounds() (first, last int64, ok bool)
}

// Reserve returns s with room for at least n more elements. Capacity
// doubles until it fits, so repeated appends stay amortised.
func Reserve[T any](s []T, n int) []T {
	need := len(s) + n
	if need <= cap(s) {
		return s
	}
	c := cap(s)
	if c == 0 {
		c = need
	}
	for c < need {
		c *= 2
	}
	out := make([]T, len(s), c)
	copy(out, s)
	return out
}

// Trim returns an exact-length copy of s, releasing spare capacity.
func Trim[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Compact keeps s[i] where keep[i] is set. It reuses the backing array.
func Compact[T any](s []T, keep []bool) []T {
	if s == nil {
		return nil
	}
	out := s[:0]
	for i, v := range s {
		if keep[i] {
			out = append(out, v)
		}
	}
	return out
}

func bounds(ts []int64) (first, last int64, ok bool) {
	if len(ts) == 0 {
		return 0, 0, false
	}
	first, last = ts[0], ts[0]
	for _, t := range ts[1:] {
		if t < first {
			first = t
		}
		if t > last {
			last = t
		}
	}
	return first, last, true
}

// SpecialBatch holds special (trigger, sync) events.
type SpecialBatch struct {
	Timestamp []int64
	Address   []uint8
	// Valid is nil once invalid events have been dropped, or for formats
	// that carry no validity bit.
	Valid []bool
}

func (b *SpecialBatch) Kind() Kind { return KindSpecial }
func (b *SpecialBatch) Len() int   { return len(b.Timestamp) }
func (b *SpecialBatch) TimeBounds() (int64, int64, bool) {
	return bounds(b.Timestamp)
}

func (b *SpecialBatch) Reserve(n int) {
	b.Timestamp = Reserve(b.Timestamp, n)
	b.Address = Reserve(b.Address, n)
	b.Valid = Reserve(b.Valid, n)
}

func (b *SpecialBatch) Append(ts int64, addr uint8, valid bool) {
	b.Timestamp = append(b.Timestamp, ts)
	b.Address = append(b.Address, addr)
	b.Valid = append(b.Valid, valid)
}

func (b *SpecialBatch) Filter(keep []bool) {
	b.Timestamp = Compact(b.Timestamp, keep)
	b.Address = Compact(b.Address, keep)
	b.Valid = Compact(b.Valid, keep)
}

func (b *SpecialBatch) trim() {
	b.Timestamp = Trim(b.Timestamp)
	b.Address = Trim(b.Address)
	b.Valid = Trim(b.Valid)
}

func (b *SpecialBatch) valid() []bool   { return b.Valid }
func (b *SpecialBatch) dropValid()      { b.Valid = nil }
func (b *SpecialBatch) starts() []int64 { return b.Timestamp }

// PolarityBatch holds DVS change events.
type PolarityBatch struct {
	Timestamp []int64
	X         []uint16
	Y         []uint16
	Polarity  []bool
	Valid     []bool
}

func (b *PolarityBatch) Kind() Kind { return KindPolarity }
func (b *PolarityBatch) Len() int   { return len(b.Timestamp) }
func (b *PolarityBatch) TimeBounds() (int64, int64, bool) {
	return bounds(b.Timestamp)
}

func (b *PolarityBatch) Reserve(n int) {
	b.Timestamp = Reserve(b.Timestamp, n)
	b.X = Reserve(b.X, n)
	b.Y = Reserve(b.Y, n)
	b.Polarity = Reserve(b.Polarity, n)
	b.Valid = Reserve(b.Valid, n)
}

func (b *PolarityBatch) Append(ts int64, x, y uint16, pol, valid bool) {
	b.Timestamp = append(b.Timestamp, ts)
	b.X = append(b.X, x)
	b.Y = append(b.Y, y)
	b.Polarity = append(b.Polarity, pol)
	b.Valid = append(b.Valid, valid)
}

func (b *PolarityBatch) Filter(keep []bool) {
	b.Timestamp = Compact(b.Timestamp, keep)
	b.X = Compact(b.X, keep)
	b.Y = Compact(b.Y, keep)
	b.Polarity = Compact(b.Polarity, keep)
	b.Valid = Compact(b.Valid, keep)
}

func (b *PolarityBatch) trim() {
	b.Timestamp = Trim(b.Timestamp)
	b.X = Trim(b.X)
	b.Y = Trim(b.Y)
	b.Polarity = Trim(b.Polarity)
	b.Valid = Trim(b.Valid)
}

func (b *PolarityBatch) valid() []bool   { return b.Valid }
func (b *PolarityBatch) dropValid()      { b.Valid = nil }
func (b *PolarityBatch) starts() []int64 { return b.Timestamp }

// Image is a dense row-major sample grid with interleaved channels.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint16
}

// NewImage allocates a zeroed image. Channels below 1 are treated as 1.
func NewImage(width, height, channels int) Image {
	if channels < 1 {
		channels = 1
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint16, width*height*channels),
	}
}

func (m Image) offset(x, y, c int) int { return (y*m.Width+x)*m.Channels + c }

func (m Image) At(x, y, c int) uint16 { return m.Pix[m.offset(x, y, c)] }

func (m Image) Set(x, y, c int, v uint16) { m.Pix[m.offset(x, y, c)] = v }

// SameGeometry reports whether two images cover the same grid.
func (m Image) SameGeometry(o Image) bool {
	return m.Width == o.Width && m.Height == o.Height && m.Channels == o.Channels
}

// FrameRecord is one decoded frame prior to being appended to a batch.
type FrameRecord struct {
	Valid         bool
	ColorChannels uint8
	ColorFilter   uint8
	RoiID         uint8
	FrameStart    int64
	FrameEnd      int64
	ExposureStart int64
	ExposureEnd   int64
	XPosition     uint16
	YPosition     uint16
	Image         Image
}

// FrameBatch holds APS frames. TimestampStart and TimestampEnd carry the
// exposure window; FrameStart and FrameEnd are only populated when full
// frame timestamps were requested.
type FrameBatch struct {
	Valid          []bool
	ColorChannels  []uint8
	ColorFilter    []uint8
	RoiID          []uint8
	TimestampStart []int64
	TimestampEnd   []int64
	FrameStart     []int64
	FrameEnd       []int64
	XPosition      []uint16
	YPosition      []uint16
	XLength        []uint16
	YLength        []uint16
	Samples        []Image
	// Reset marks reset reads in v1/v2 files; nil after reset subtraction.
	Reset []bool

	full bool
}

// NewFrameBatch returns an empty batch. With fullTimestamps the frame
// start/end columns are filled alongside the exposure window.
func NewFrameBatch(fullTimestamps bool) *FrameBatch {
	return &FrameBatch{full: fullTimestamps}
}

func (b *FrameBatch) Kind() Kind { return KindFrame }
func (b *FrameBatch) Len() int   { return len(b.Samples) }

func (b *FrameBatch) TimeBounds() (int64, int64, bool) {
	first, _, ok := bounds(b.TimestampStart)
	if !ok {
		return 0, 0, false
	}
	_, last, _ := bounds(b.TimestampEnd)
	if last < first {
		last = first
	}
	return first, last, true
}

func (b *FrameBatch) Reserve(n int) {
	b.Valid = Reserve(b.Valid, n)
	b.ColorChannels = Reserve(b.ColorChannels, n)
	b.ColorFilter = Reserve(b.ColorFilter, n)
	b.RoiID = Reserve(b.RoiID, n)
	b.TimestampStart = Reserve(b.TimestampStart, n)
	b.TimestampEnd = Reserve(b.TimestampEnd, n)
	if b.full {
		b.FrameStart = Reserve(b.FrameStart, n)
		b.FrameEnd = Reserve(b.FrameEnd, n)
	}
	b.XPosition = Reserve(b.XPosition, n)
	b.YPosition = Reserve(b.YPosition, n)
	b.XLength = Reserve(b.XLength, n)
	b.YLength = Reserve(b.YLength, n)
	b.Samples = Reserve(b.Samples, n)
}

func (b *FrameBatch) Append(r FrameRecord) {
	b.Valid = append(b.Valid, r.Valid)
	b.ColorChannels = append(b.ColorChannels, r.ColorChannels)
	b.ColorFilter = append(b.ColorFilter, r.ColorFilter)
	b.RoiID = append(b.RoiID, r.RoiID)
	b.TimestampStart = append(b.TimestampStart, r.ExposureStart)
	b.TimestampEnd = append(b.TimestampEnd, r.ExposureEnd)
	if b.full {
		b.FrameStart = append(b.FrameStart, r.FrameStart)
		b.FrameEnd = append(b.FrameEnd, r.FrameEnd)
	}
	b.XPosition = append(b.XPosition, r.XPosition)
	b.YPosition = append(b.YPosition, r.YPosition)
	b.XLength = append(b.XLength, uint16(r.Image.Width))
	b.YLength = append(b.YLength, uint16(r.Image.Height))
	b.Samples = append(b.Samples, r.Image)
}

func (b *FrameBatch) Filter(keep []bool) {
	b.Valid = Compact(b.Valid, keep)
	b.ColorChannels = Compact(b.ColorChannels, keep)
	b.ColorFilter = Compact(b.ColorFilter, keep)
	b.RoiID = Compact(b.RoiID, keep)
	b.TimestampStart = Compact(b.TimestampStart, keep)
	b.TimestampEnd = Compact(b.TimestampEnd, keep)
	b.FrameStart = Compact(b.FrameStart, keep)
	b.FrameEnd = Compact(b.FrameEnd, keep)
	b.XPosition = Compact(b.XPosition, keep)
	b.YPosition = Compact(b.YPosition, keep)
	b.XLength = Compact(b.XLength, keep)
	b.YLength = Compact(b.YLength, keep)
	b.Samples = Compact(b.Samples, keep)
	b.Reset = Compact(b.Reset, keep)
}

func (b *FrameBatch) trim() {
	b.Valid = Trim(b.Valid)
	b.ColorChannels = Trim(b.ColorChannels)
	b.ColorFilter = Trim(b.ColorFilter)
	b.RoiID = Trim(b.RoiID)
	b.TimestampStart = Trim(b.TimestampStart)
	b.TimestampEnd = Trim(b.TimestampEnd)
	b.FrameStart = Trim(b.FrameStart)
	b.FrameEnd = Trim(b.FrameEnd)
	b.XPosition = Trim(b.XPosition)
	b.YPosition = Trim(b.YPosition)
	b.XLength = Trim(b.XLength)
	b.YLength = Trim(b.YLength)
	b.Samples = Trim(b.Samples)
	b.Reset = Trim(b.Reset)
}

func (b *FrameBatch) valid() []bool   { return b.Valid }
func (b *FrameBatch) dropValid()      { b.Valid = nil }
func (b *FrameBatch) starts() []int64 { return b.TimestampStart }

// Imu6Sample is one six-axis reading in physical units.
type Imu6Sample struct {
	AccelX, AccelY, AccelZ float32 // g
	GyroX, GyroY, GyroZ    float32 // deg/s
	Temperature            float32 // degrees Celsius
}

// Imu6Batch holds six-axis IMU samples.
type Imu6Batch struct {
	Timestamp   []int64
	Valid       []bool
	AccelX      []float32
	AccelY      []float32
	AccelZ      []float32
	GyroX       []float32
	GyroY       []float32
	GyroZ       []float32
	Temperature []float32
}

func (b *Imu6Batch) Kind() Kind { return KindImu6 }
func (b *Imu6Batch) Len() int   { return len(b.Timestamp) }
func (b *Imu6Batch) TimeBounds() (int64, int64, bool) {
	return bounds(b.Timestamp)
}

func (b *Imu6Batch) Reserve(n int) {
	b.Timestamp = Reserve(b.Timestamp, n)
	b.Valid = Reserve(b.Valid, n)
	b.AccelX = Reserve(b.AccelX, n)
	b.AccelY = Reserve(b.AccelY, n)
	b.AccelZ = Reserve(b.AccelZ, n)
	b.GyroX = Reserve(b.GyroX, n)
	b.GyroY = Reserve(b.GyroY, n)
	b.GyroZ = Reserve(b.GyroZ, n)
	b.Temperature = Reserve(b.Temperature, n)
}

func (b *Imu6Batch) Append(ts int64, valid bool, s Imu6Sample) {
	b.Timestamp = append(b.Timestamp, ts)
	b.Valid = append(b.Valid, valid)
	b.AccelX = append(b.AccelX, s.AccelX)
	b.AccelY = append(b.AccelY, s.AccelY)
	b.AccelZ = append(b.AccelZ, s.AccelZ)
	b.GyroX = append(b.GyroX, s.GyroX)
	b.GyroY = append(b.GyroY, s.GyroY)
	b.GyroZ = append(b.GyroZ, s.GyroZ)
	b.Temperature = append(b.Temperature, s.Temperature)
}

func (b *Imu6Batch) Filter(keep []bool) {
	b.Timestamp = Compact(b.Timestamp, keep)
	b.Valid = Compact(b.Valid, keep)
	b.AccelX = Compact(b.AccelX, keep)
	b.AccelY = Compact(b.AccelY, keep)
	b.AccelZ = Compact(b.AccelZ, keep)
	b.GyroX = Compact(b.GyroX, keep)
	b.GyroY = Compact(b.GyroY, keep)
	b.GyroZ = Compact(b.GyroZ, keep)
	b.Temperature = Compact(b.Temperature, keep)
}

func (b *Imu6Batch) trim() {
	b.Timestamp = Trim(b.Timestamp)
	b.Valid = Trim(b.Valid)
	b.AccelX = Trim(b.AccelX)
	b.AccelY = Trim(b.AccelY)
	b.AccelZ = Trim(b.AccelZ)
	b.GyroX = Trim(b.GyroX)
	b.GyroY = Trim(b.GyroY)
	b.GyroZ = Trim(b.GyroZ)
	b.Temperature = Trim(b.Temperature)
}

func (b *Imu6Batch) valid() []bool   { return b.Valid }
func (b *Imu6Batch) dropValid()      { b.Valid = nil }
func (b *Imu6Batch) starts() []int64 { return b.Timestamp }

// Point1DBatch holds single-value measurements.
type Point1DBatch struct {
	Timestamp []int64
	Valid     []bool
	Type      []uint8
	X         []float32
}

func (b *Point1DBatch) Kind() Kind { return KindPoint1D }
func (b *Point1DBatch) Len() int   { return len(b.Timestamp) }
func (b *Point1DBatch) TimeBounds() (int64, int64, bool) {
	return bounds(b.Timestamp)
}

func (b *Point1DBatch) Reserve(n int) {
	b.Timestamp = Reserve(b.Timestamp, n)
	b.Valid = Reserve(b.Valid, n)
	b.Type = Reserve(b.Type, n)
	b.X = Reserve(b.X, n)
}

func (b *Point1DBatch) Append(ts int64, valid bool, typ uint8, x float32) {
	b.Timestamp = append(b.Timestamp, ts)
	b.Valid = append(b.Valid, valid)
	b.Type = append(b.Type, typ)
	b.X = append(b.X, x)
}

func (b *Point1DBatch) Filter(keep []bool) {
	b.Timestamp = Compact(b.Timestamp, keep)
	b.Valid = Compact(b.Valid, keep)
	b.Type = Compact(b.Type, keep)
	b.X = Compact(b.X, keep)
}

func (b *Point1DBatch) trim() {
	b.Timestamp = Trim(b.Timestamp)
	b.Valid = Trim(b.Valid)
	b.Type = Trim(b.Type)
	b.X = Trim(b.X)
}

func (b *Point1DBatch) valid() []bool   { return b.Valid }
func (b *Point1DBatch) dropValid()      { b.Valid = nil }
func (b *Point1DBatch) starts() []int64 { return b.Timestamp }

// Point2DBatch holds two-value measurements.
type Point2DBatch struct {
	Timestamp []int64
	Valid     []bool
	Type      []uint8
	X         []float32
	Y         []float32
}

func (b *Point2DBatch) Kind() Kind { return KindPoint2D }
func (b *Point2DBatch) Len() int   { return len(b.Timestamp) }
func (b *Point2DBatch) TimeBounds() (int64, int64, bool) {
	return bounds(b.Timestamp)
}

func (b *Point2DBatch) Reserve(n int) {
	b.Timestamp = Reserve(b.Timestamp, n)
	b.Valid = Reserve(b.Valid, n)
	b.Type = Reserve(b.Type, n)
	b.X = Reserve(b.X, n)
	b.Y = Reserve(b.Y, n)
}

func (b *Point2DBatch) Append(ts int64, valid bool, typ uint8, x, y float32) {
	b.Timestamp = append(b.Timestamp, ts)
	b.Valid = append(b.Valid, valid)
	b.Type = append(b.Type, typ)
	b.X = append(b.X, x)
	b.Y = append(b.Y, y)
}

func (b *Point2DBatch) Filter(keep []bool) {
	b.Timestamp = Compact(b.Timestamp, keep)
	b.Valid = Compact(b.Valid, keep)
	b.Type = Compact(b.Type, keep)
	b.X = Compact(b.X, keep)
	b.Y = Compact(b.Y, keep)
}

func (b *Point2DBatch) trim() {
	b.Timestamp = Trim(b.Timestamp)
	b.Valid = Trim(b.Valid)
	b.Type = Trim(b.Type)
	b.X = Trim(b.X)
	b.Y = Trim(b.Y)
}

func (b *Point2DBatch) valid() []bool   { return b.Valid }
func (b *Point2DBatch) dropValid()      { b.Valid = nil }
func (b *Point2DBatch) starts() []int64 { return b.Timestamp }

// Point3DBatch holds three-value measurements.
type Point3DBatch struct {
	Timestamp []int64
	Valid     []bool
	Type      []uint8
	X         []float32
	Y         []float32
	Z         []float32
}

func (b *Point3DBatch) Kind() Kind { return KindPoint3D }
func (b *Point3DBatch) Len() int   { return len(b.Timestamp) }
func (b *Point3DBatch) TimeBounds() (int64, int64, bool) {
	return bounds(b.Timestamp)
}

func (b *Point3DBatch) Reserve(n int) {
	b.Timestamp = Reserve(b.Timestamp, n)
	b.Valid = Reserve(b.Valid, n)
	b.Type = Reserve(b.Type, n)
	b.X = Reserve(b.X, n)
	b.Y = Reserve(b.Y, n)
	b.Z = Reserve(b.Z, n)
}

func (b *Point3DBatch) Append(ts int64, valid bool, typ uint8, x, y, z float32) {
	b.Timestamp = append(b.Timestamp, ts)
	b.Valid = append(b.Valid, valid)
	b.Type = append(b.Type, typ)
	b.X = append(b.X, x)
	b.Y = append(b.Y, y)
	b.Z = append(b.Z, z)
}

func (b *Point3DBatch) Filter(keep []bool) {
	b.Timestamp = Compact(b.Timestamp, keep)
	b.Valid = Compact(b.Valid, keep)
	b.Type = Compact(b.Type, keep)
	b.X = Compact(b.X, keep)
	b.Y = Compact(b.Y, keep)
	b.Z = Compact(b.Z, keep)
}

func (b *Point3DBatch) trim() {
	b.Timestamp = Trim(b.Timestamp)
	b.Valid = Trim(b.Valid)
	b.Type = Trim(b.Type)
	b.X = Trim(b.X)
	b.Y = Trim(b.Y)
	b.Z = Trim(b.Z)
}

func (b *Point3DBatch) valid() []bool   { return b.Valid }
func (b *Point3DBatch) dropValid()      { b.Valid = nil }
func (b *Point3DBatch) starts() []int64 { return b.Timestamp }
