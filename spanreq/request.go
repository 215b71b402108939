package spanreq

import (
	"strconv"

	"github.com/shapestone/shape-core/pkg/ast"
	"github.com/valyala/bytebufferpool"
)

// Span is a half-open byte range [Start, End) into the buffer a Request was
// parsed from. It holds no bytes itself.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) Empty() bool { return s.End <= s.Start }

// Bytes resolves s against buf. It returns nil if s does not fit in buf.
func (s Span) Bytes(buf []byte) []byte {
	if s.Start < 0 || s.End < s.Start || s.End > len(buf) {
		return nil
	}
	return buf[s.Start:s.End]
}

// Text resolves s against buf and copies the bytes into a string.
func (s Span) Text(buf []byte) string { return string(s.Bytes(buf)) }

type RequestLine struct {
	Method  Span
	URI     Span
	Version Span
}

type HeaderField struct {
	Name  Span
	Value Span
}

// Request is a parsed HTTP/1.x request. Every Span in it refers to the
// buffer of the Cursor it was parsed from, which the Request keeps. The
// Cursor must not be reused while the Request is in use, and the Request
// must not be modified.
type Request struct {
	Line    RequestLine
	Headers []HeaderField // arrival order, duplicates kept
	Body    Span
	HasBody bool

	buf []byte
}

// Buffer returns the bytes the spans refer to.
func (r *Request) Buffer() []byte { return r.buf }

func (r *Request) Text(s Span) string { return s.Text(r.buf) }

func (r *Request) Method() string { return r.Text(r.Line.Method) }

func (r *Request) URI() string { return r.Text(r.Line.URI) }

func (r *Request) Version() string { return r.Text(r.Line.Version) }

// Header returns the value of the first field named name, compared ASCII
// case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if asciiEqualFold(h.Name.Bytes(r.buf), name) {
			return r.Text(h.Value), true
		}
	}
	return "", false
}

// Values returns the values of every field named name, in arrival order.
func (r *Request) Values(name string) []string {
	var vals []string
	for _, h := range r.Headers {
		if asciiEqualFold(h.Name.Bytes(r.buf), name) {
			vals = append(vals, r.Text(h.Value))
		}
	}
	return vals
}

// BodyBytes returns the body, or nil when the request has none. The slice
// aliases the parse buffer.
func (r *Request) BodyBytes() []byte {
	if !r.HasBody {
		return nil
	}
	return r.Body.Bytes(r.buf)
}

// String renders the request as a diagnostic dump:
//
//	Method: GET
//	URI: /a
//	Version: HTTP/1.1
//	Headers:
//	Host: x
//	No body
func (r *Request) String() string {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	line := func(label string, s Span) {
		b.WriteString(label)
		b.WriteString(": ")
		b.Write(s.Bytes(r.buf))
		b.WriteByte('\n')
	}
	line("Method", r.Line.Method)
	line("URI", r.Line.URI)
	line("Version", r.Line.Version)
	if len(r.Headers) == 0 {
		b.WriteString("No headers\n")
	} else {
		b.WriteString("Headers:\n")
		for _, h := range r.Headers {
			b.Write(h.Name.Bytes(r.buf))
			b.WriteString(": ")
			b.Write(h.Value.Bytes(r.buf))
			b.WriteByte('\n')
		}
	}
	if r.HasBody {
		b.WriteString("Body: ")
		b.WriteString(strconv.Itoa(r.Body.Len()))
		b.WriteString(" bytes\n")
	} else {
		b.WriteString("No body\n")
	}
	return b.String()
}

var zeroPos = ast.Position{}

// Node converts the request into a shape-core AST object:
//
//	{ "type": "request", "method": "GET", "path": "/a",
//	  "version": "HTTP/1.1",
//	  "headers": [{"key": "Host", "value": "x"}],
//	  "body": "..." }
//
// Unlike the spans, the node owns copies of the strings.
func (r *Request) Node() ast.SchemaNode {
	headers := make([]ast.SchemaNode, len(r.Headers))
	for i, h := range r.Headers {
		headers[i] = ast.NewObjectNode(map[string]ast.SchemaNode{
			"key":   ast.NewLiteralNode(r.Text(h.Name), zeroPos),
			"value": ast.NewLiteralNode(r.Text(h.Value), zeroPos),
		}, zeroPos)
	}
	props := map[string]ast.SchemaNode{
		"type":    ast.NewLiteralNode("request", zeroPos),
		"method":  ast.NewLiteralNode(r.Method(), zeroPos),
		"path":    ast.NewLiteralNode(r.URI(), zeroPos),
		"version": ast.NewLiteralNode(r.Version(), zeroPos),
		"headers": ast.NewArrayDataNode(headers, zeroPos),
	}
	if r.HasBody {
		props["body"] = ast.NewLiteralNode(r.Text(r.Body), zeroPos)
	}
	return ast.NewObjectNode(props, zeroPos)
}
