package spanreq

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shapestone/shape-core/pkg/ast"
	"github.com/valyala/bytebufferpool"
)

// DumpFormat selects how the default handler prints parsed requests.
type DumpFormat uint8

const (
	DumpText DumpFormat = iota // Request.String
	DumpAST                    // Request.Node, one property per line
)

// ParseDumpFormat accepts "text" and "ast".
func ParseDumpFormat(s string) (DumpFormat, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return DumpText, nil
	case "ast":
		return DumpAST, nil
	}
	return 0, fmt.Errorf("unknown dump format %q", s)
}

// Dump writes r to w in format f.
func Dump(w io.Writer, r *Request, f DumpFormat) error {
	if f == DumpAST {
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		writeNode(buf, r.Node(), "")
		_, err := w.Write(buf.B)
		return err
	}
	_, err := io.WriteString(w, r.String())
	return err
}

// writeNode prints object properties in key order so the output is stable.
func writeNode(buf *bytebufferpool.ByteBuffer, n ast.SchemaNode, indent string) {
	switch n := n.(type) {
	case *ast.ObjectNode:
		props := n.Properties()
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteString(indent)
			buf.WriteString(k)
			buf.WriteByte(':')
			v := props[k]
			if _, ok := v.(*ast.LiteralNode); ok {
				buf.WriteByte(' ')
				writeNode(buf, v, "")
				continue
			}
			buf.WriteByte('\n')
			writeNode(buf, v, indent+"  ")
		}
	case *ast.ArrayDataNode:
		for i, el := range n.Elements() {
			buf.WriteString(indent)
			buf.WriteString("- [")
			buf.WriteString(strconv.Itoa(i))
			buf.WriteString("]\n")
			writeNode(buf, el, indent+"  ")
		}
	case *ast.LiteralNode:
		fmt.Fprintf(buf, "%q\n", fmt.Sprint(n.Value()))
	}
}
