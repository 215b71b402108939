package spanreq

import (
	"io"
	"net/http"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// writeResponse sends the bodiless status reply that ends every exchange.
func writeResponse(w io.Writer, status int) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	appendResponse(buf, status)
	_, err := w.Write(buf.B)
	return err
}

func appendResponse(buf *bytebufferpool.ByteBuffer, status int) {
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(status))
	buf.WriteByte(' ')
	buf.WriteString(http.StatusText(status))
	buf.WriteString(crlf)
	buf.WriteString("Connection: close")
	buf.WriteString(crlf)
	buf.WriteString(crlf)
}

// statusFor maps a parse outcome to the reply status.
func statusFor(err error) int {
	if err != nil {
		return http.StatusBadRequest
	}
	return http.StatusAccepted
}
