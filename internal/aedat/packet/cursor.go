package packet

import (
	"errors"
	"fmt"
	"io"
)

// cursor tracks the file position through one decode pass. Every read and
// skip goes through it, so the offset recorded for each packet is exact.
type cursor struct {
	r    io.ReadSeeker
	pos  int64
	size int64
}

func newCursor(r io.ReadSeeker, size, pos int64) (*cursor, error) {
	c := &cursor{r: r, size: size}
	if err := c.seek(pos); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cursor) seek(pos int64) error {
	if _, err := c.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", pos, err)
	}
	c.pos = pos
	return nil
}

// skip advances n bytes without reading. Skipping past the end of the file
// is not an error; the next read reports it.
func (c *cursor) skip(n int64) error {
	if n == 0 {
		return nil
	}
	if _, err := c.r.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("skip %d bytes at %d: %w", n, c.pos, err)
	}
	c.pos += n
	return nil
}

// remaining is the number of bytes between the cursor and the end of file.
func (c *cursor) remaining() int64 {
	if c.pos >= c.size {
		return 0
	}
	return c.size - c.pos
}

// read returns up to n bytes. A short slice means the file ended; only
// other failures are returned as errors.
func (c *cursor) read(n int64) ([]byte, error) {
	if rem := c.remaining(); n > rem {
		n = rem
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(c.r, buf)
	c.pos += int64(got)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, c.pos, err)
	}
	return buf[:got], nil
}
