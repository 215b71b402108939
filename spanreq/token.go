package spanreq

// readToken scans from the cursor position to the next SP or CR. The
// delimiter is pushed back so the caller sees it again.
func readToken(c *Cursor) (Span, error) {
	start := c.Pos()
	for i := 0; ; i++ {
		b, err := c.Next()
		if err != nil {
			return Span{}, c.endErr(err, "token")
		}
		if b == sp || b == cr {
			if err := c.PushBack(1); err != nil {
				return Span{}, err
			}
			return Span{Start: start, End: start + i}, nil
		}
	}
}

func isChompable(b byte) bool {
	return b == sp || b == cr || b == lf
}

// chompWhitespace consumes SP, CR and LF bytes and returns how many it
// consumed. The first other byte is pushed back. When max > 0 it stops after
// max bytes without looking further.
func chompWhitespace(c *Cursor, max int) (int, error) {
	n := 0
	for {
		b, err := c.Next()
		if err != nil {
			return n, c.endErr(err, "whitespace")
		}
		if !isChompable(b) {
			return n, c.PushBack(1)
		}
		n++
		if max > 0 && n == max {
			return n, nil
		}
	}
}

// parseRequestLine reads method, URI and version. Only emptiness is checked.
func parseRequestLine(c *Cursor) (RequestLine, error) {
	var line RequestLine
	fields := [...]struct {
		span *Span
		name string
	}{
		{&line.Method, "method"},
		{&line.URI, "uri"},
		{&line.Version, "version"},
	}
	for i, f := range fields {
		if i > 0 {
			if _, err := chompWhitespace(c, 0); err != nil {
				return RequestLine{}, err
			}
		}
		s, err := readToken(c)
		if err != nil {
			return RequestLine{}, err
		}
		if s.Empty() {
			return RequestLine{}, dataError(s.Start, "empty "+f.name, ErrEmptyToken)
		}
		*f.span = s
	}
	return line, nil
}
