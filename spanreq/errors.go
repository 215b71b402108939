package spanreq

import (
	"errors"
	"fmt"
)

const (
	cr    = '\r'
	lf    = '\n'
	sp    = ' '
	ht    = '\t'
	colon = ':'

	crlf = "\r\n"
)

// ErrorKind classifies a parse failure.
type ErrorKind uint8

const (
	// KindTruncated means the source ended before a token, header or body completed.
	KindTruncated ErrorKind = iota + 1
	// KindData means the bytes received are not an acceptable request.
	KindData
	// KindUnsupported means the request uses a feature this parser does not implement.
	KindUnsupported
	// KindSource means the underlying reader failed.
	KindSource
	// KindInternal means a scanner misused the cursor.
	KindInternal
)

var (
	ErrTruncated   = errors.New("unexpected end of stream")
	ErrData        = errors.New("malformed request")
	ErrUnsupported = errors.New("unsupported feature")
	ErrSource      = errors.New("source read failed")
	ErrInternal    = errors.New("internal parser error")
)

var (
	ErrTooLarge                    = errors.New("message exceeds buffer capacity")
	ErrEmptyToken                  = errors.New("empty token")
	ErrMissingColon                = errors.New("header line without colon")
	ErrInvalidContentLength        = errors.New("invalid content length")
	ErrInvalidEncoding             = errors.New("invalid utf-8 in token")
	ErrLineFolding                 = errors.New("header line folding")
	ErrUnsupportedTransferEncoding = errors.New("transfer-encoding not supported")
	ErrInvalidPushback             = errors.New("pushback past start of buffer")
)

func (k ErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindData:
		return "data"
	case KindUnsupported:
		return "unsupported"
	case KindSource:
		return "source"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTruncated:
		return ErrTruncated
	case KindData:
		return ErrData
	case KindUnsupported:
		return ErrUnsupported
	case KindSource:
		return ErrSource
	case KindInternal:
		return ErrInternal
	}
	return nil
}

// ParseError is returned by every failing parse step. Offset is the cursor
// position at which the failure was detected.
type ParseError struct {
	Kind   ErrorKind
	Offset int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("spanreq: %s error at offset %d", e.Kind, e.Offset)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the sentinel for e's kind.
func (e *ParseError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(kind ErrorKind, off int, reason string, err error) *ParseError {
	return &ParseError{Kind: kind, Offset: off, Reason: reason, Err: err}
}

func dataError(off int, reason string, err error) *ParseError {
	return newParseError(KindData, off, reason, err)
}

// ErrorKindOf returns the kind of a parse failure, or 0 if err is not one.
func ErrorKindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
