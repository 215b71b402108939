package spanreq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

const (
	acceptedReply   = "HTTP/1.1 202 Accepted\r\nConnection: close\r\n\r\n"
	badRequestReply = "HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\n"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testServer struct {
	addr string
	stop func(testing.TB)
}

func startServer(tb testing.TB, opts ...Option) (*Engine, testServer) {
	tb.Helper()
	return startServerWith(tb, func(*Engine) {}, opts...)
}

// startServerWith lets setup install handlers before serving starts.
func startServerWith(tb testing.TB, setup func(*Engine), opts ...Option) (*Engine, testServer) {
	tb.Helper()
	e := NewEngine(opts...)
	setup(e)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Serve(ctx, ln) }()

	return e, testServer{
		addr: ln.Addr().String(),
		stop: func(tb testing.TB) {
			tb.Helper()
			cancel()
			select {
			case err := <-errCh:
				if err != nil {
					tb.Fatalf("serve: %v", err)
				}
			case <-time.After(5 * time.Second):
				tb.Fatalf("server did not stop")
			}
		},
	}
}

// sendRaw sends raw in separate writes, half-closes, and returns everything
// the server sent back.
func sendRaw(addr string, raw ...string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	for i, part := range raw {
		if i > 0 {
			time.Sleep(20 * time.Millisecond)
		}
		if _, err := io.WriteString(conn, part); err != nil {
			return "", err
		}
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	out, err := io.ReadAll(conn)
	return string(out), err
}

func roundTrip(tb testing.TB, addr string, raw ...string) string {
	tb.Helper()
	out, err := sendRaw(addr, raw...)
	if err != nil {
		tb.Fatalf("round trip: %v", err)
	}
	return out
}

func TestServeAcceptsRequest(t *testing.T) {
	dump := &lockedBuffer{}
	_, srv := startServer(t, WithDump(dump, DumpText))
	defer srv.stop(t)

	got := roundTrip(t, srv.addr, "GET /a HTTP/1.1\r\nHost: x\r\n\r\n")
	if got != acceptedReply {
		t.Fatalf("unexpected reply %q", got)
	}
	want := "Method: GET\nURI: /a\nVersion: HTTP/1.1\nHeaders:\nHost: x\nNo body\n"
	if dump.String() != want {
		t.Fatalf("unexpected dump:\n%s", dump.String())
	}
}

func TestServeRejectsBadRequest(t *testing.T) {
	dump := &lockedBuffer{}
	_, srv := startServer(t, WithDump(dump, DumpText))
	defer srv.stop(t)

	for _, raw := range []string{
		"BAD\r\n\r\n",
		"POST / HTTP/1.1\r\nContent-Length: 0\r\n\r\n",
		"GET / HTTP/1.1\r\nX: a\r\n b\r\n\r\n",
	} {
		if got := roundTrip(t, srv.addr, raw); got != badRequestReply {
			t.Fatalf("%q: unexpected reply %q", raw, got)
		}
	}
	if dump.String() != "" {
		t.Fatalf("rejected requests must not be dumped, got:\n%s", dump.String())
	}
}

func TestServeSplitWrites(t *testing.T) {
	_, srv := startServer(t)
	defer srv.stop(t)

	got := roundTrip(t, srv.addr, "POST /up HTTP/1.1\r\nContent-Le", "ngth: 4\r\n\r\nda", "ta")
	if got != acceptedReply {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestServeCustomHandlerAndMiddleware(t *testing.T) {
	var (
		mu    sync.Mutex
		seen  []string
		order []string
	)
	trace := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ex *Exchange) {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				next(ex)
			}
		}
	}
	_, srv := startServerWith(t, func(e *Engine) {
		e.Use(trace("outer"), trace("inner"))
		e.Handle(func(ex *Exchange) {
			mu.Lock()
			defer mu.Unlock()
			if ex.Err == nil {
				seen = append(seen, ex.Request.URI())
			}
		})
	})
	defer srv.stop(t)

	if got := roundTrip(t, srv.addr, "GET /one HTTP/1.1\r\n\r\n"); got != acceptedReply {
		t.Fatalf("unexpected reply %q", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(seen, ",") != "/one" {
		t.Fatalf("handler saw %v", seen)
	}
	if strings.Join(order, ",") != "outer,inner" {
		t.Fatalf("middleware order %v", order)
	}
}

func TestServeRecoveredPanicRepliesBadRequest(t *testing.T) {
	_, srv := startServerWith(t, func(e *Engine) {
		e.Use(Recover(zap.NewNop()))
		e.Handle(func(*Exchange) { panic("boom") })
	})
	defer srv.stop(t)

	if got := roundTrip(t, srv.addr, "GET /a HTTP/1.1\r\nHost: x\r\n\r\n"); got != badRequestReply {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestServeStatusFollowsErr(t *testing.T) {
	_, srv := startServerWith(t, func(e *Engine) {
		e.Handle(func(ex *Exchange) {
			switch {
			case ex.Err != nil:
				ex.Status = http.StatusTeapot
			case ex.Request.URI() == "/deny":
				ex.Err = errors.New("denied")
			default:
				ex.Status = 299
			}
		})
	})
	defer srv.stop(t)

	tests := []struct {
		raw  string
		want string
	}{
		{"GET /ok HTTP/1.1\r\n\r\n", acceptedReply},
		{"GET /deny HTTP/1.1\r\n\r\n", badRequestReply},
		{"BAD\r\n\r\n", badRequestReply},
	}
	for _, tt := range tests {
		if got := roundTrip(t, srv.addr, tt.raw); got != tt.want {
			t.Fatalf("%q: unexpected reply %q", tt.raw, got)
		}
	}
}

// overlapWriter records whether two Writes ever ran at the same time.
type overlapWriter struct {
	active  atomic.Int32
	overlap atomic.Bool
	writes  atomic.Int32
}

func (w *overlapWriter) Write(p []byte) (int, error) {
	if w.active.Add(1) > 1 {
		w.overlap.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	w.active.Add(-1)
	w.writes.Add(1)
	return len(p), nil
}

func TestServeSerializesDumps(t *testing.T) {
	w := &overlapWriter{}
	_, srv := startServer(t, WithWorkers(4), WithDump(w, DumpAST))
	defer srv.stop(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = sendRaw(srv.addr, fmt.Sprintf("GET /%d HTTP/1.1\r\nHost: x\r\n\r\n", i))
		}(i)
	}
	wg.Wait()
	if w.writes.Load() == 0 {
		t.Fatalf("expected dumps to be written")
	}
	if w.overlap.Load() {
		t.Fatalf("dump writes overlapped")
	}
}

func TestServeWorkers(t *testing.T) {
	_, srv := startServer(t, WithWorkers(4))
	defer srv.stop(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := sendRaw(srv.addr, fmt.Sprintf("GET /%d HTTP/1.1\r\n\r\n", i))
			if err != nil {
				errs <- fmt.Errorf("request %d: %w", i, err)
				return
			}
			if got != acceptedReply {
				errs <- fmt.Errorf("request %d: unexpected reply %q", i, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestServeReadTimeout(t *testing.T) {
	_, srv := startServer(t, WithReadTimeout(100*time.Millisecond))
	defer srv.stop(t)

	conn, err := net.Dial("tcp", srv.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.WriteString(conn, "GET / HTTP/1.1\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if string(out) != badRequestReply {
		t.Fatalf("unexpected reply %q", out)
	}
}

// collectSums flattens counter data points into name or name/kind keys.
func collectSums(tb testing.TB, reader *sdkmetric.ManualReader) map[string]int64 {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				key := m.Name
				if kind, ok := dp.Attributes.Value("kind"); ok {
					key += "/" + kind.AsString()
				}
				sums[key] += dp.Value
			}
		}
	}
	return sums
}

func TestServeMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	_, srv := startServer(t, WithMeterProvider(mp))
	defer srv.stop(t)

	roundTrip(t, srv.addr, "GET / HTTP/1.1\r\n\r\n")
	roundTrip(t, srv.addr, "GET / HTTP/1.1\r\nContent-Length: x\r\n\r\n")
	roundTrip(t, srv.addr, "GET / HTTP/1.1\r\n")

	sums := collectSums(t, reader)
	want := map[string]int64{
		"spanreq.requests.accepted":           1,
		"spanreq.requests.rejected/data":      1,
		"spanreq.requests.rejected/truncated": 1,
	}
	for k, v := range want {
		if sums[k] != v {
			t.Fatalf("%s = %d, want %d (all: %v)", k, sums[k], v, sums)
		}
	}
}

func TestEngineShutdown(t *testing.T) {
	e := NewEngine(WithShutdownSignals())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- e.Serve(context.Background(), ln) }()

	if got := roundTrip(t, ln.Addr().String(), "GET / HTTP/1.1\r\n\r\n"); got != acceptedReply {
		t.Fatalf("unexpected reply %q", got)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after shutdown")
	}
}
