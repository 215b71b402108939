package spanreq

import "io"

// maxHeaderChomp bounds the whitespace read between header lines. A run
// longer than one line ending (CRLF) is the blank line.
const maxHeaderChomp = 4

// parseHeaders reads header fields until the blank line. It returns the
// fields in arrival order and the offset just past the blank line.
func parseHeaders(c *Cursor) ([]HeaderField, int, error) {
	headers := make([]HeaderField, 0, 8)
	for {
		n, err := chompWhitespace(c, maxHeaderChomp)
		if err != nil {
			return nil, 0, err
		}
		if n > 2 {
			return headers, c.Pos(), nil
		}
		h, err := parseHeader(c)
		if err != nil {
			return nil, 0, err
		}
		headers = append(headers, h)
	}
}

// parseHeader reads one "name: value" field. The colon and the whitespace
// following it belong to neither span.
func parseHeader(c *Cursor) (HeaderField, error) {
	name, err := readHeaderName(c)
	if err != nil {
		return HeaderField{}, err
	}
	if _, err := c.Next(); err != nil { // colon
		return HeaderField{}, c.endErr(err, "header colon")
	}
	if err := skipOWS(c); err != nil {
		return HeaderField{}, err
	}
	value, err := readHeaderValue(c)
	if err != nil {
		return HeaderField{}, err
	}
	return HeaderField{Name: name, Value: value}, nil
}

func readHeaderName(c *Cursor) (Span, error) {
	start := c.Pos()
	for i := 0; ; i++ {
		b, err := c.Next()
		if err != nil {
			return Span{}, c.endErr(err, "header name")
		}
		switch b {
		case colon:
			if i == 0 {
				return Span{}, dataError(start, "empty header name", ErrEmptyToken)
			}
			if err := c.PushBack(1); err != nil {
				return Span{}, err
			}
			return Span{Start: start, End: start + i}, nil
		case cr, lf:
			return Span{}, dataError(c.Pos()-1, "", ErrMissingColon)
		}
	}
}

func skipOWS(c *Cursor) error {
	for {
		b, err := c.Next()
		if err != nil {
			return c.endErr(err, "header value")
		}
		if b != sp && b != ht {
			return c.PushBack(1)
		}
	}
}

// readHeaderValue reads up to the CR ending the field. The CR is left for
// the caller.
func readHeaderValue(c *Cursor) (Span, error) {
	start := c.Pos()
	for i := 0; ; i++ {
		b, err := c.Next()
		if err != nil {
			return Span{}, c.endErr(err, "header value")
		}
		switch b {
		case cr:
			if err := c.PushBack(1); err != nil {
				return Span{}, err
			}
			n, folded, err := tryChompLWS(c)
			if err != nil {
				return Span{}, err
			}
			if folded {
				return Span{}, newParseError(KindUnsupported, c.Pos()-n, "", ErrLineFolding)
			}
			return Span{Start: start, End: start + i}, nil
		case lf:
			return Span{}, dataError(c.Pos()-1, "bare LF in header value", nil)
		}
	}
}

// tryChompLWS looks for CR LF followed by SP or HT. Without a match every
// byte it consumed is pushed back. With a match it also consumes the rest
// of the SP/HT run and returns the total count.
func tryChompLWS(c *Cursor) (int, bool, error) {
	want := [...]func(byte) bool{
		func(b byte) bool { return b == cr },
		func(b byte) bool { return b == lf },
		func(b byte) bool { return b == sp || b == ht },
	}
	for i, match := range want {
		b, err := c.Next()
		if err != nil {
			if err != io.EOF {
				return 0, false, err
			}
			return 0, false, c.PushBack(i)
		}
		if !match(b) {
			return 0, false, c.PushBack(i + 1)
		}
	}
	n := len(want)
	for {
		b, err := c.Next()
		if err == io.EOF {
			return n, true, nil
		}
		if err != nil {
			return 0, false, err
		}
		if b != sp && b != ht {
			return n, true, c.PushBack(1)
		}
		n++
	}
}
