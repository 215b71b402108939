package spanreq

import (
	"bytes"
	"strconv"
)

// bodyStrategy extracts the message body that starts at headerEnd.
type bodyStrategy interface {
	extract(c *Cursor, headerEnd int) (Span, bool, error)
}

type noBody struct{}

func (noBody) extract(*Cursor, int) (Span, bool, error) { return Span{}, false, nil }

// lengthBody reads exactly n bytes.
type lengthBody struct{ n int }

func (l lengthBody) extract(c *Cursor, headerEnd int) (Span, bool, error) {
	end := headerEnd + l.n
	if err := c.Require(end); err != nil {
		return Span{}, false, err
	}
	if err := c.Advance(end - c.Pos()); err != nil {
		return Span{}, false, err
	}
	return Span{Start: headerEnd, End: end}, true, nil
}

// selectBody picks the body strategy from the header fields.
//
// A Content-Length of zero is rejected like any other invalid value, so a
// request announcing an empty body is indistinguishable from a malformed one.
func selectBody(buf []byte, headers []HeaderField, headerEnd, capacity int) (bodyStrategy, error) {
	var (
		found bool
		value []byte
		at    int
	)
	for _, h := range headers {
		name := h.Name.Bytes(buf)
		if asciiEqualFold(name, "Transfer-Encoding") {
			return nil, newParseError(KindUnsupported, h.Name.Start, "", ErrUnsupportedTransferEncoding)
		}
		if !asciiEqualFold(name, "Content-Length") {
			continue
		}
		v := bytes.TrimRight(h.Value.Bytes(buf), " \t")
		if found && !bytes.Equal(v, value) {
			return nil, dataError(h.Value.Start, "conflicting values", ErrInvalidContentLength)
		}
		found, value, at = true, v, h.Value.Start
	}
	if !found {
		return noBody{}, nil
	}
	n, err := strconv.ParseUint(string(value), 10, 63)
	if err != nil {
		return nil, dataError(at, strconv.Quote(string(value)), ErrInvalidContentLength)
	}
	if n < 1 || n > uint64(capacity-headerEnd) {
		return nil, dataError(at, strconv.Quote(string(value))+" out of range", ErrInvalidContentLength)
	}
	return lengthBody{n: int(n)}, nil
}

func asciiEqualFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		x, y := b[i], s[i]
		if 'A' <= x && x <= 'Z' {
			x += 'a' - 'A'
		}
		if 'A' <= y && y <= 'Z' {
			y += 'a' - 'A'
		}
		if x != y {
			return false
		}
	}
	return true
}
