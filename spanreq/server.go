package spanreq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var errShutdownTimeout = errors.New("spanreq: connections still open after shutdown timeout")

// Listen binds addr for Serve. On unix systems an IPv6 wildcard address
// also accepts IPv4 clients.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: listenControl}
	return lc.Listen(ctx, "tcp", addr)
}

// Run listens on addr and serves until a shutdown signal arrives or
// Shutdown is called.
func (e *Engine) Run(addr string) error {
	if addr == "" {
		return fmt.Errorf("missing address")
	}
	ctx := context.Background()
	if len(e.cfg.shutdownSignals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, e.cfg.shutdownSignals...)
		defer stop()
	}
	ln, err := Listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	return e.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done. Each connection
// gets its own Cursor, a single parse and a single reply. Without
// WithWorkers the next connection is accepted only after the previous one
// is closed. Serve closes ln.
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.stopServe = cancel
	e.mu.Unlock()

	var pool *ants.Pool
	if e.cfg.workers > 0 {
		var err error
		if pool, err = ants.NewPool(e.cfg.workers); err != nil {
			_ = ln.Close()
			return fmt.Errorf("worker pool: %w", err)
		}
		defer pool.Release()
	}

	stopAccept := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stopAccept()

	h := e.pipeline()
	e.logger.Info("listening", zap.Stringer("addr", ln.Addr()), zap.Int("workers", e.cfg.workers))

	var inflight sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return e.drain(&inflight)
			}
			e.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		if pool == nil {
			e.serveConn(ctx, conn, h)
			continue
		}
		inflight.Add(1)
		if err := pool.Submit(func() {
			defer inflight.Done()
			e.serveConn(ctx, conn, h)
		}); err != nil {
			inflight.Done()
			e.logger.Warn("connection dropped", zap.Error(err))
			_ = conn.Close()
		}
	}
}

func (e *Engine) drain(inflight *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("server stopped")
		return nil
	case <-time.After(e.cfg.shutdownTimeout):
		return errShutdownTimeout
	}
}

func (e *Engine) serveConn(ctx context.Context, conn net.Conn, h Handler) {
	ex := &Exchange{
		ID:         uuid.NewString(),
		RemoteAddr: conn.RemoteAddr().String(),
		Started:    time.Now(),
	}
	log := e.logger.With(zap.String("conn", ex.ID))
	log.Debug("new client", zap.String("remote", ex.RemoteAddr))

	if d := e.cfg.readTimeout; d > 0 {
		if err := conn.SetReadDeadline(ex.Started.Add(d)); err != nil {
			log.Warn("set read deadline", zap.Error(err))
		}
	}
	ex.Request, ex.Err = ParseCursor(NewCursor(conn, e.cfg.capacity))
	e.complete(ctx, ex, h)

	if err := multierr.Append(writeResponse(conn, ex.Status), closeConn(conn)); err != nil {
		log.Warn("reply failed", zap.Error(err))
	}
}

const (
	lingerTimeout = 500 * time.Millisecond
	lingerMax     = 256 << 10
)

// closeConn half-closes and discards what the peer still sends before the
// final close. Closing with unread input makes the kernel send a reset,
// which can destroy the reply before the peer reads it.
func closeConn(conn net.Conn) error {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
		_ = tcp.SetReadDeadline(time.Now().Add(lingerTimeout))
		_, _ = io.Copy(io.Discard, io.LimitReader(tcp, lingerMax))
	}
	return conn.Close()
}
