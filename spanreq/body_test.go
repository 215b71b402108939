package spanreq

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBodyContentLength(t *testing.T) {
	head := "POST /data HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\n"
	req, err := Parse(iotest.OneByteReader(strings.NewReader(head + "hello")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.HasBody {
		t.Fatalf("expected a body")
	}
	if req.Body.Len() != 5 || req.Body.Start != len(head) {
		t.Fatalf("unexpected body span %v", req.Body)
	}
	if string(req.BodyBytes()) != "hello" {
		t.Fatalf("unexpected body %q", req.BodyBytes())
	}
}

func TestBodyIgnoresTrailingBytes(t *testing.T) {
	raw := "POST / HTTP/1.1\r\ncontent-length: 2 \r\n\r\nokextra"
	req, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(req.BodyBytes()) != "ok" {
		t.Fatalf("unexpected body %q", req.BodyBytes())
	}
}

func TestBodyFitsRemainingCapacity(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc"
	req, err := ParseCursor(NewCursor(strings.NewReader(raw), len(raw)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(req.BodyBytes()) != "abc" {
		t.Fatalf("unexpected body %q", req.BodyBytes())
	}
}

func TestBodyRejected(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		capacity int
		kind     ErrorKind
		err      error
	}{
		{"zero", "POST / HTTP/1.1\r\nContent-Length: 0\r\n\r\n", 0, KindData, ErrInvalidContentLength},
		{"not a number", "POST / HTTP/1.1\r\nContent-Length: abc\r\n\r\n", 0, KindData, ErrInvalidContentLength},
		{"signed", "POST / HTTP/1.1\r\nContent-Length: +3\r\n\r\nabc", 0, KindData, ErrInvalidContentLength},
		{"negative", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", 0, KindData, ErrInvalidContentLength},
		{"over capacity", "POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n", 64, KindData, ErrInvalidContentLength},
		{"conflicting", "POST / HTTP/1.1\r\nContent-Length: 3\r\nContent-Length: 4\r\n\r\nabcd", 0, KindData, ErrInvalidContentLength},
		{"chunked", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n", 0, KindUnsupported, ErrUnsupportedTransferEncoding},
		{"short body", "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nab", 0, KindTruncated, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseCursor(NewCursor(strings.NewReader(tt.raw), tt.capacity))
			if req != nil {
				t.Fatalf("expected no request")
			}
			if ErrorKindOf(err) != tt.kind {
				t.Fatalf("kind %v want %v (%v)", ErrorKindOf(err), tt.kind, err)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestBodyDuplicateEqualLengths(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 3\r\nContent-Length: 3\r\n\r\nabc"
	req, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(req.BodyBytes()) != "abc" {
		t.Fatalf("unexpected body %q", req.BodyBytes())
	}
}
