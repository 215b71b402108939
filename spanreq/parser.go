package spanreq

import (
	"io"
	"unicode/utf8"
)

// Parse reads one request from src into a buffer of DefaultCapacity.
func Parse(src io.Reader) (*Request, error) {
	return ParseCursor(NewCursor(src, DefaultCapacity))
}

// ParseCursor reads one request through c. On failure no Request is
// returned and c should be discarded; there is no resynchronization.
func ParseCursor(c *Cursor) (*Request, error) {
	st := &parseState{c: c}
	for _, step := range [...]func() error{
		st.requestLine,
		st.headers,
		st.validate,
		st.body,
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return &Request{
		Line:    st.line,
		Headers: st.fields,
		Body:    st.bodySpan,
		HasBody: st.hasBody,
		buf:     c.Content(),
	}, nil
}

// parseState carries what one step hands to the next.
type parseState struct {
	c         *Cursor
	line      RequestLine
	fields    []HeaderField
	headerEnd int
	bodySpan  Span
	hasBody   bool
}

func (st *parseState) requestLine() (err error) {
	st.line, err = parseRequestLine(st.c)
	return err
}

func (st *parseState) headers() (err error) {
	st.fields, st.headerEnd, err = parseHeaders(st.c)
	return err
}

// validate rejects tokens that are not UTF-8 so rendering never has to.
func (st *parseState) validate() error {
	buf := st.c.Content()
	spans := []Span{st.line.Method, st.line.URI, st.line.Version}
	for _, h := range st.fields {
		spans = append(spans, h.Name, h.Value)
	}
	for _, s := range spans {
		if !utf8.Valid(s.Bytes(buf)) {
			return dataError(s.Start, "", ErrInvalidEncoding)
		}
	}
	return nil
}

func (st *parseState) body() error {
	strategy, err := selectBody(st.c.Content(), st.fields, st.headerEnd, st.c.Cap())
	if err != nil {
		return err
	}
	st.bodySpan, st.hasBody, err = strategy.extract(st.c, st.headerEnd)
	return err
}
