// Package header parses the line-oriented ASCII header that precedes the
// binary event data of every AEDAT file.
package header

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/monitoring"
)

// Header line markers. Each is matched against the line text that follows
// the leading '#'.
const (
	versionPrefix   = "!AER-DAT"
	endOfHeader     = "!END-HEADER"
	chipPrefix      = "AEChip:"
	sourcePrefix    = "Source "
	createdPrefix   = "created "
	startTimePrefix = "Start-Time:"
)

// maxLine bounds a single header line. Headers embed XML preference dumps
// whose lines are long but nowhere near this.
const maxLine = 1 << 20

// Parse reads header lines from r, starting at offset 0, and leaves r
// positioned at the first byte of event data.
//
// A non-zero override supersedes the declared source, including one that
// would otherwise fail to resolve. With no declaration and no override the
// source defaults to DVS128.
func Parse(r io.ReadSeeker, override aedat.Source) (*aedat.FileHeader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to header start: %w", err)
	}

	h := &aedat.FileHeader{FormatVersion: 1}
	br := bufio.NewReader(r)
	var offset int64

	for {
		b, err := br.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, aedat.TruncatedHeaderError{Offset: offset}
			}
			return nil, fmt.Errorf("read header at offset %d: %w", offset, err)
		}
		if b[0] != '#' {
			break
		}

		line, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, aedat.TruncatedHeaderError{Offset: offset + int64(len(line))}
			}
			return nil, fmt.Errorf("read header at offset %d: %w", offset, err)
		}
		offset += int64(len(line))

		text := strings.TrimRight(line[1:], "\r\n")
		if text == endOfHeader {
			break
		}
		if err := apply(h, text); err != nil {
			return nil, err
		}
	}

	h.DataStartOffset = offset
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to data start %d: %w", offset, err)
	}

	switch {
	case override != aedat.SourceUnspecified:
		h.Source = override
	case h.SourceName == "":
		h.Source = aedat.SourceDvs128
	default:
		src, err := aedat.ResolveSource(h.SourceName)
		if err != nil {
			return nil, err
		}
		h.Source = src
	}

	monitoring.Debugf("header: version %d, source %s, data at %d", h.FormatVersion, h.Source, h.DataStartOffset)
	return h, nil
}

// readLine returns one line including its terminator. The partial line is
// returned with io.EOF when the file ends mid-line.
func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := br.ReadSlice('\n')
		sb.Write(chunk)
		if sb.Len() > maxLine {
			return sb.String(), fmt.Errorf("header line exceeds %d bytes", maxLine)
		}
		if err == nil {
			return sb.String(), nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return sb.String(), err
		}
	}
}

// apply folds one comment line into h.
func apply(h *aedat.FileHeader, text string) error {
	if rest, ok := strings.CutPrefix(text, versionPrefix); ok {
		v, err := parseVersion(rest)
		if err != nil {
			return err
		}
		h.FormatVersion = v
		return nil
	}

	body := strings.TrimLeft(text, " ")
	switch {
	case strings.HasPrefix(body, chipPrefix):
		name := strings.TrimSpace(body[len(chipPrefix):])
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		if name != "" {
			h.SourceName = name
		}
	case strings.HasPrefix(body, sourcePrefix):
		if name, ok := parseSourceLine(body[len(sourcePrefix):]); ok {
			h.SourceName = name
		}
	case strings.HasPrefix(body, createdPrefix):
		h.RecordedAt = body[len(createdPrefix):]
	case strings.HasPrefix(body, startTimePrefix):
		h.RecordedAt = strings.TrimSpace(body[len(startTimePrefix):])
	}
	return nil
}

// parseVersion reads the major version from the text after "!AER-DAT",
// e.g. "3.1" or "2.0".
func parseVersion(rest string) (int, error) {
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("malformed format declaration %q", versionPrefix+rest)
	}
	v, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, fmt.Errorf("malformed format declaration %q: %w", versionPrefix+rest, err)
	}
	return v, nil
}

// parseSourceLine handles "<n>: <name>". Negative ids mark sources that
// were replaced during recording and are ignored.
func parseSourceLine(s string) (string, bool) {
	id, name, found := strings.Cut(s, ":")
	if !found {
		return "", false
	}
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n < 0 {
		return "", false
	}
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name, name != ""
}
