package spanreq

import (
	"errors"
	"io"
)

// DefaultCapacity is the buffer size used when none is configured.
const DefaultCapacity = 32 << 10

// Cursor reads bytes from a source into a fixed-capacity buffer and hands
// them out one at a time. Bytes already handed out can be rewound with
// PushBack. The buffer only grows at the tail, so offsets into it stay valid
// for the lifetime of the Cursor.
//
// A Cursor is owned by a single parse and is not safe for concurrent use.
type Cursor struct {
	src  io.Reader
	buf  []byte
	pos  int // consumed by scanners
	fill int // received from src
	err  error
}

// NewCursor returns a Cursor reading from src. A capacity <= 0 selects
// DefaultCapacity.
func NewCursor(src io.Reader, capacity int) *Cursor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cursor{src: src, buf: make([]byte, capacity)}
}

// Next returns the next unconsumed byte. It reads from the source only when
// every buffered byte has been consumed, and then performs a single Read.
// io.EOF is returned when the source is done or the buffer is full; any
// other error is a *ParseError of kind KindSource.
func (c *Cursor) Next() (byte, error) {
	if c.pos >= c.fill {
		if err := c.fillOnce(); err != nil {
			return 0, err
		}
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// fillOnce performs one read into the unfilled tail.
func (c *Cursor) fillOnce() error {
	if c.fill >= len(c.buf) {
		return io.EOF
	}
	if c.err != nil {
		return c.sourceErr(c.err)
	}
	n, err := c.src.Read(c.buf[c.fill:])
	if n > 0 {
		c.fill += n
		// Data first; a trailing error is reported on the next fill.
		c.err = err
		return nil
	}
	if err == nil {
		return io.EOF
	}
	c.err = err
	return c.sourceErr(err)
}

func (c *Cursor) sourceErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return newParseError(KindSource, c.pos, "", err)
}

// PushBack rewinds the cursor by n bytes. Rewinding further than the bytes
// already consumed fails and leaves the cursor unchanged.
func (c *Cursor) PushBack(n int) error {
	if n < 0 || n > c.pos {
		return newParseError(KindInternal, c.pos, "", ErrInvalidPushback)
	}
	c.pos -= n
	return nil
}

// Require reads from the source until at least end bytes are buffered.
func (c *Cursor) Require(end int) error {
	if end > len(c.buf) {
		return dataError(c.pos, "", ErrTooLarge)
	}
	for c.fill < end {
		if err := c.fillOnce(); err != nil {
			if err == io.EOF {
				return newParseError(KindTruncated, c.fill, "body incomplete", nil)
			}
			return err
		}
	}
	return nil
}

// Advance moves the cursor forward over n buffered bytes.
func (c *Cursor) Advance(n int) error {
	if n < 0 || c.pos+n > c.fill {
		return newParseError(KindInternal, c.pos, "advance past fill pointer", nil)
	}
	c.pos += n
	return nil
}

// Content returns the filled part of the buffer. The slice aliases the
// Cursor's buffer.
func (c *Cursor) Content() []byte { return c.buf[:c.fill] }

func (c *Cursor) Pos() int { return c.pos }

func (c *Cursor) Filled() int { return c.fill }

func (c *Cursor) Cap() int { return len(c.buf) }

// Exhausted reports whether every byte of capacity has been received and
// consumed.
func (c *Cursor) Exhausted() bool {
	return c.fill == len(c.buf) && c.pos == c.fill
}

// endErr converts an end-of-stream seen while looking for what into the
// matching parse error.
func (c *Cursor) endErr(err error, what string) error {
	if err != io.EOF {
		return err
	}
	if c.Exhausted() {
		return dataError(c.pos, "while looking for "+what, ErrTooLarge)
	}
	return newParseError(KindTruncated, c.pos, "while looking for "+what, nil)
}
