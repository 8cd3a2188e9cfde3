package aedat

import (
	"strings"
)

// Source identifies the sensor a recording was made with.
// It is resolved once from the file header and never changes afterwards.
type Source int

const (
	SourceUnspecified Source = iota // no source declared or requested
	SourceDvs128
	SourceDavis240A
	SourceDavis240B
	SourceDavis240C
	SourceDavis128Mono
	SourceDavis128Rgb
	SourceDavis208Mono
	SourceDavis208Rgbw
	SourceDavis346AMono
	SourceDavis346ARgb
	SourceDavis346BMono
	SourceDavis346BRgb
	SourceDavis346CBsi
	SourceDavis640Mono
	SourceDavis640Rgb
	SourceDavisHet640Mono
	SourceDavisHet640Rgbw
	SourceDas1
)

// sourceInfo holds the canonical name and pixel address space of a source.
// Width and Height are zero where the address space is not a pixel grid.
type sourceInfo struct {
	name   string
	width  int
	height int
	davis  bool
}

var sourceTable = map[Source]sourceInfo{
	SourceDvs128:          {"Dvs128", 128, 128, false},
	SourceDavis240A:       {"Davis240A", 240, 180, true},
	SourceDavis240B:       {"Davis240B", 240, 180, true},
	SourceDavis240C:       {"Davis240C", 240, 180, true},
	SourceDavis128Mono:    {"Davis128Mono", 128, 128, true},
	SourceDavis128Rgb:     {"Davis128Rgb", 128, 128, true},
	SourceDavis208Mono:    {"Davis208Mono", 208, 192, true},
	SourceDavis208Rgbw:    {"Davis208Rgbw", 208, 192, true},
	SourceDavis346AMono:   {"Davis346AMono", 346, 260, true},
	SourceDavis346ARgb:    {"Davis346ARgb", 346, 260, true},
	SourceDavis346BMono:   {"Davis346BMono", 346, 260, true},
	SourceDavis346BRgb:    {"Davis346BRgb", 346, 260, true},
	SourceDavis346CBsi:    {"Davis346CBsi", 346, 260, true},
	SourceDavis640Mono:    {"Davis640Mono", 640, 480, true},
	SourceDavis640Rgb:     {"Davis640Rgb", 640, 480, true},
	SourceDavisHet640Mono: {"DavisHet640Mono", 0, 0, true},
	SourceDavisHet640Rgbw: {"DavisHet640Rgbw", 0, 0, true},
	SourceDas1:            {"Das1", 0, 0, false},
}

// sourceAliases maps lower-cased names seen in jAER and cAER headers to
// their canonical source. Canonical names are added in init.
var sourceAliases = map[string]Source{
	"dvs128":       SourceDvs128,
	"tmpdiff128":   SourceDvs128,
	"sbret10":      SourceDavis240A,
	"davis240":     SourceDavis240C,
	"davis128":     SourceDavis128Mono,
	"davis208":     SourceDavis208Mono,
	"davis346":     SourceDavis346BMono,
	"davis346a":    SourceDavis346AMono,
	"davis346b":    SourceDavis346BMono,
	"davis346c":    SourceDavis346CBsi,
	"davis640":     SourceDavis640Mono,
	"davishet640":  SourceDavisHet640Mono,
	"das1":         SourceDas1,
	"cochleaams1c": SourceDas1,
}

func init() {
	for src, info := range sourceTable {
		sourceAliases[strings.ToLower(info.name)] = src
	}
}

// String returns the canonical source name.
func (s Source) String() string {
	if info, ok := sourceTable[s]; ok {
		return info.name
	}
	return "Unspecified"
}

// Dimensions returns the pixel address space (width, height).
// ok is false for sources that are not addressed as a pixel grid.
func (s Source) Dimensions() (width, height int, ok bool) {
	info, found := sourceTable[s]
	if !found || info.width == 0 {
		return 0, 0, false
	}
	return info.width, info.height, true
}

// IsDavis reports whether the source uses the DAVIS 32-bit address layout.
func (s Source) IsDavis() bool {
	return sourceTable[s].davis
}

// ResolveSource maps a declared sensor name to a Source. Matching is
// case-insensitive and ignores surrounding whitespace.
func ResolveSource(name string) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if src, ok := sourceAliases[key]; ok {
		return src, nil
	}
	return SourceUnspecified, UnknownSourceError{Name: name}
}
