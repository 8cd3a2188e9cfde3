// Package importer opens an AEDAT recording, parses its header and runs
// the version-specific decoder over the selected part of the file.
package importer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/aedat/addrevent"
	"github.com/banshee-data/aedat/internal/aedat/header"
	"github.com/banshee-data/aedat/internal/aedat/packet"
	"github.com/banshee-data/aedat/internal/fsutil"
	"github.com/banshee-data/aedat/internal/monitoring"
	"github.com/banshee-data/aedat/internal/timeutil"
)

// IndexCache persists v3 packet indexes between imports of the same file.
// A cache miss is reported as a nil index with a nil error.
type IndexCache interface {
	LoadIndex(path string, size int64) (*aedat.PacketIndex, error)
	SaveIndex(path string, size int64, index *aedat.PacketIndex) error
}

// Result is the outcome of one import.
type Result struct {
	Header *aedat.FileHeader
	Store  *aedat.EventStore
	// Index lists the packet headers passed by a v3 import; nil for v1/v2.
	Index *aedat.PacketIndex
	// Warnings holds recoverable decode problems. The store is still
	// usable when it is non-empty.
	Warnings []error
}

// Warning joins Warnings into one error, or returns nil.
func (r *Result) Warning() error { return errors.Join(r.Warnings...) }

// Importer reads recordings through a FileSystem.
type Importer struct {
	fs      fsutil.FileSystem
	cache   IndexCache
	clock   timeutil.Clock
	metrics *monitoring.ImportMetrics
}

// New returns an importer reading from fsys. cache may be nil.
func New(fsys fsutil.FileSystem, cache IndexCache) *Importer {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Importer{fs: fsys, cache: cache, clock: timeutil.RealClock{}}
}

// Import reads path from the local filesystem.
func Import(path string, opts Options) (*Result, error) {
	return New(nil, nil).Import(path, opts)
}

// SetMetrics makes the importer record counts on m. A nil m disables
// recording.
func (im *Importer) SetMetrics(m *monitoring.ImportMetrics) { im.metrics = m }

// Import decodes the file at path. Header and option errors are returned
// before any event data is read.
func (im *Importer) Import(path string, opts Options) (*Result, error) {
	start := im.clock.Now()
	h, res, err := im.importFile(path, opts)
	took := im.clock.Since(start)

	version := "unknown"
	if h != nil {
		version = strconv.Itoa(h.FormatVersion)
	}
	im.metrics.ObserveImport(version, err, took)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for k, n := range res.Store.Counts() {
		counts[k.String()] = n
	}
	im.metrics.AddEvents(counts)
	im.metrics.AddPackets(res.Index.Len())
	im.metrics.AddWarnings(len(res.Warnings))

	monitoring.Logf("aedat: imported %s (v%d, %s) in %v: %v", path, h.FormatVersion, h.Source, took, res.Store.Counts())
	return res, nil
}

// importFile returns the parsed header whenever parsing got that far, so
// failures can still be attributed to a format version.
func (im *Importer) importFile(path string, opts Options) (*aedat.FileHeader, *Result, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	f, err := im.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	h, err := header.Parse(f, opts.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("parse header of %s: %w", path, err)
	}
	if err := opts.checkVersion(h.FormatVersion); err != nil {
		return h, nil, err
	}

	var res *Result
	if h.FormatVersion < 3 {
		res, err = im.importAddressEvents(f, size, h, opts)
	} else {
		res, err = im.importPackets(path, f, size, h, opts)
	}
	if err != nil {
		return h, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return h, res, nil
}

func (im *Importer) importAddressEvents(f fsutil.File, size int64, h *aedat.FileHeader, opts Options) (*Result, error) {
	d, err := addrevent.NewDecoder(h, addrevent.Params{
		StartEvent:          valueOr(opts.StartEvent, 0),
		EndEvent:            valueOr(opts.EndEvent, -1),
		Window:              opts.window(),
		Kinds:               opts.DataTypes,
		SubtractResetFrames: opts.SubtractResetFrames,
	})
	if err != nil {
		return nil, err
	}
	store, err := d.Decode(f, size)
	if err != nil {
		return nil, err
	}
	return &Result{Header: h, Store: store, Warnings: d.Warnings()}, nil
}

func (im *Importer) importPackets(path string, f fsutil.File, size int64, h *aedat.FileHeader, opts Options) (*Result, error) {
	prior := opts.Index
	if prior == nil && im.cache != nil {
		ix, err := im.cache.LoadIndex(path, size)
		switch {
		case err != nil:
			im.metrics.IndexCache("error")
			monitoring.Logf("aedat: ignoring cached index for %s: %v", path, err)
		case ix == nil:
			im.metrics.IndexCache("miss")
		default:
			im.metrics.IndexCache("hit")
		}
		prior = ix
	}

	d, err := packet.NewDecoder(h, packet.Params{
		StartPacket:             valueOr(opts.StartPacket, 0),
		EndPacket:               valueOr(opts.EndPacket, -1),
		SkipEvery:               opts.SkipEveryNPackets,
		Window:                  opts.window(),
		Kinds:                   opts.DataTypes,
		SuppressPayload:         opts.SuppressPayload,
		SimplifyFrameTimestamps: opts.SimplifyFrameTimestamps,
		ValidOnly:               opts.ValidOnly,
		Index:                   prior,
	})
	if err != nil {
		return nil, err
	}
	store, index, err := d.Decode(f, size)
	if err != nil {
		return nil, err
	}

	if im.cache != nil && index.Complete && opts.visitsEveryPacket() && (prior == nil || !prior.Complete) {
		if err := im.cache.SaveIndex(path, size, index); err != nil {
			im.metrics.IndexCache("error")
			monitoring.Logf("aedat: failed to cache index for %s: %v", path, err)
		} else {
			im.metrics.IndexCache("save")
		}
	}
	return &Result{Header: h, Store: store, Index: index, Warnings: d.Warnings()}, nil
}
