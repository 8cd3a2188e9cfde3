package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/aedat/importer"
	"github.com/banshee-data/aedat/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical import defaults file.
const DefaultConfigPath = "config/import.defaults.json"

// ImportConfig is the JSON form of importer.Options. Every field is
// optional; the Get* methods supply the defaults for omitted fields.
type ImportConfig struct {
	// Event range (v1/v2 only). A negative end_event reads to the end.
	StartEvent *int64 `json:"start_event,omitempty"`
	EndEvent   *int64 `json:"end_event,omitempty"`

	// Time range, as duration strings like "48s" or "48.1s".
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`

	// Packet range (v3 only).
	StartPacket *int64 `json:"start_packet,omitempty"`
	EndPacket   *int64 `json:"end_packet,omitempty"`

	DataTypes       []string `json:"data_types,omitempty"` // e.g. ["polarity", "imu6"]
	SuppressPayload *bool    `json:"suppress_payload,omitempty"`
	Source          *string  `json:"source,omitempty"` // e.g. "Davis240C"

	SimplifyFrameTimestamps *bool  `json:"simplify_frame_timestamps,omitempty"`
	ValidOnly               *bool  `json:"valid_only,omitempty"`
	SubtractResetFrames     *bool  `json:"subtract_reset_frames,omitempty"`
	SkipEveryNPackets       *int64 `json:"skip_every_n_packets,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt64(v int64) *int64    { return &v }

// EmptyImportConfig returns an ImportConfig with all fields unset.
func EmptyImportConfig() *ImportConfig {
	return &ImportConfig{}
}

// LoadImportConfig loads an ImportConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON file keep their defaults, so
// partial configs are safe.
func LoadImportConfig(path string) (*ImportConfig, error) {
	return LoadImportConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadImportConfigFS is LoadImportConfig reading through fsys.
func LoadImportConfigFS(fsys fsutil.FileSystem, path string) (*ImportConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyImportConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ImportConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/aedat/importer/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	fsys := fsutil.OSFileSystem{}
	for _, path := range candidates {
		if !fsys.Exists(path) {
			continue
		}
		cfg, err := LoadImportConfigFS(fsys, path)
		if err != nil {
			panic(fmt.Sprintf("load %s: %v", path, err))
		}
		return cfg
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *ImportConfig) Validate() error {
	if c.StartEvent != nil && *c.StartEvent < 0 {
		return fmt.Errorf("start_event must be non-negative, got %d", *c.StartEvent)
	}
	if c.StartEvent != nil && c.EndEvent != nil && *c.EndEvent >= 0 && *c.StartEvent > *c.EndEvent {
		return fmt.Errorf("start_event %d is after end_event %d", *c.StartEvent, *c.EndEvent)
	}

	start, err := parseOptionalDuration("start_time", c.StartTime)
	if err != nil {
		return err
	}
	end, err := parseOptionalDuration("end_time", c.EndTime)
	if err != nil {
		return err
	}
	if start != nil && end != nil && *start > *end {
		return fmt.Errorf("start_time %v is after end_time %v", *start, *end)
	}

	if c.StartPacket != nil && *c.StartPacket < 0 {
		return fmt.Errorf("start_packet must be non-negative, got %d", *c.StartPacket)
	}
	if c.StartPacket != nil && c.EndPacket != nil && *c.EndPacket >= 0 && *c.StartPacket > *c.EndPacket {
		return fmt.Errorf("start_packet %d is after end_packet %d", *c.StartPacket, *c.EndPacket)
	}

	if c.SkipEveryNPackets != nil && *c.SkipEveryNPackets < 1 {
		return fmt.Errorf("skip_every_n_packets must be at least 1, got %d", *c.SkipEveryNPackets)
	}

	for _, name := range c.DataTypes {
		if _, err := aedat.ParseKind(name); err != nil {
			return fmt.Errorf("invalid data_types entry: %w", err)
		}
	}

	if c.Source != nil && *c.Source != "" {
		if _, err := aedat.ResolveSource(*c.Source); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
	}

	return nil
}

func parseOptionalDuration(key string, s *string) (*time.Duration, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s '%s': %w", key, *s, err)
	}
	if d < 0 {
		return nil, fmt.Errorf("%s must be non-negative, got %v", key, d)
	}
	return &d, nil
}

// GetStartTime returns start_time, or nil when unset or unparseable.
func (c *ImportConfig) GetStartTime() *time.Duration {
	d, _ := parseOptionalDuration("start_time", c.StartTime)
	return d
}

// GetEndTime returns end_time, or nil when unset or unparseable.
func (c *ImportConfig) GetEndTime() *time.Duration {
	d, _ := parseOptionalDuration("end_time", c.EndTime)
	return d
}

// GetDataTypes returns the selected kinds, or nil for all kinds.
// Unknown names are skipped.
func (c *ImportConfig) GetDataTypes() aedat.KindSet {
	if c.DataTypes == nil {
		return nil
	}
	set := aedat.NewKindSet()
	for _, name := range c.DataTypes {
		if k, err := aedat.ParseKind(name); err == nil {
			set[k] = struct{}{}
		}
	}
	return set
}

// GetSource returns the override source, or SourceUnspecified.
func (c *ImportConfig) GetSource() aedat.Source {
	if c.Source == nil || *c.Source == "" {
		return aedat.SourceUnspecified
	}
	src, err := aedat.ResolveSource(*c.Source)
	if err != nil {
		return aedat.SourceUnspecified
	}
	return src
}

// GetSuppressPayload returns the suppress_payload value or the default.
func (c *ImportConfig) GetSuppressPayload() bool {
	if c.SuppressPayload == nil {
		return false
	}
	return *c.SuppressPayload
}

// GetSimplifyFrameTimestamps returns the simplify_frame_timestamps value or the default.
func (c *ImportConfig) GetSimplifyFrameTimestamps() bool {
	if c.SimplifyFrameTimestamps == nil {
		return true
	}
	return *c.SimplifyFrameTimestamps
}

// GetValidOnly returns the valid_only value or the default.
func (c *ImportConfig) GetValidOnly() bool {
	if c.ValidOnly == nil {
		return true
	}
	return *c.ValidOnly
}

// GetSubtractResetFrames returns the subtract_reset_frames value or the default.
func (c *ImportConfig) GetSubtractResetFrames() bool {
	if c.SubtractResetFrames == nil {
		return true
	}
	return *c.SubtractResetFrames
}

// GetSkipEveryNPackets returns the skip_every_n_packets value or the default.
func (c *ImportConfig) GetSkipEveryNPackets() int64 {
	if c.SkipEveryNPackets == nil {
		return 1
	}
	return *c.SkipEveryNPackets
}

// Options converts the configuration to importer options.
func (c *ImportConfig) Options() importer.Options {
	return importer.Options{
		StartEvent:              c.StartEvent,
		EndEvent:                c.EndEvent,
		StartTime:               c.GetStartTime(),
		EndTime:                 c.GetEndTime(),
		StartPacket:             c.StartPacket,
		EndPacket:               c.EndPacket,
		DataTypes:               c.GetDataTypes(),
		SuppressPayload:         c.GetSuppressPayload(),
		Source:                  c.GetSource(),
		SimplifyFrameTimestamps: c.GetSimplifyFrameTimestamps(),
		ValidOnly:               c.GetValidOnly(),
		SubtractResetFrames:     c.GetSubtractResetFrames(),
		SkipEveryNPackets:       c.GetSkipEveryNPackets(),
	}
}
