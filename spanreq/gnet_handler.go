package spanreq

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	gnet "github.com/panjf2000/gnet/v2"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
)

type gnetHandler struct {
	gnet.BuiltinEventEngine

	e      *Engine
	h      Handler
	booted chan struct{}
	engine gnet.Engine
}

func newGNetHandler(e *Engine) *gnetHandler {
	return &gnetHandler{
		e:      e,
		h:      e.pipeline(),
		booted: make(chan struct{}),
	}
}

func (g *gnetHandler) OnBoot(engine gnet.Engine) (action gnet.Action) {
	g.engine = engine
	close(g.booted)
	if len(g.e.cfg.shutdownSignals) > 0 {
		go g.handleSignals()
	}
	return gnet.None
}

func (g *gnetHandler) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, g.e.cfg.shutdownSignals...)
	defer signal.Stop(sigCh)
	sig := <-sigCh
	g.e.logger.Info("gnet shutting down", zap.Stringer("signal", sig))
	ctx, cancel := context.WithTimeout(context.Background(), g.e.cfg.shutdownTimeout)
	defer cancel()
	if err := g.stop(ctx); err != nil {
		g.e.logger.Error("gnet stop", zap.Error(err))
	}
}

// stop waits for the engine to boot, then stops it.
func (g *gnetHandler) stop(ctx context.Context) error {
	select {
	case <-g.booted:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.engine.Stop(ctx)
}

func (g *gnetHandler) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	c.SetContext(g.newConnContext(c))
	return nil, gnet.None
}

func (g *gnetHandler) newConnContext(c gnet.Conn) *gnetConnContext {
	ctx := &gnetConnContext{id: uuid.NewString(), started: time.Now()}
	if addr := c.RemoteAddr(); addr != nil {
		ctx.remote = addr.String()
	}
	g.e.logger.Debug("new client", zap.String("conn", ctx.id), zap.String("remote", ctx.remote))
	return ctx
}

// OnClose settles a request the peer abandoned mid-way as a rejected
// exchange. gnet has already closed the socket by now, so unlike the
// blocking front end no 400 reaches the peer.
func (g *gnetHandler) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	ctx, ok := c.Context().(*gnetConnContext)
	if !ok || len(ctx.buf) == 0 {
		return gnet.None
	}
	_, perr := ParseCursor(NewCursor(bytes.NewReader(ctx.buf), g.e.cfg.capacity))
	g.e.logger.Debug("client left mid-request",
		zap.String("conn", ctx.id), zap.Int("buffered", len(ctx.buf)), zap.Error(err))
	if perr != nil {
		g.e.complete(context.Background(), g.exchange(ctx, nil, perr), g.h)
	}
	ctx.reset()
	return gnet.None
}

func (g *gnetHandler) exchange(ctx *gnetConnContext, req *Request, err error) *Exchange {
	return &Exchange{
		ID:         ctx.id,
		RemoteAddr: ctx.remote,
		Started:    ctx.started,
		Request:    req,
		Err:        err,
	}
}

// OnTraffic reparses everything buffered so far. A truncated parse waits for
// more traffic; any other outcome is answered and the connection closed.
func (g *gnetHandler) OnTraffic(c gnet.Conn) gnet.Action {
	ctx, _ := c.Context().(*gnetConnContext)
	if ctx == nil {
		ctx = g.newConnContext(c)
		c.SetContext(ctx)
	}

	if n := c.InboundBuffered(); n > 0 {
		data, err := c.Next(n)
		if err != nil {
			g.e.logger.Warn("read error", zap.String("conn", ctx.id), zap.Error(err))
			return gnet.Close
		}
		ctx.append(data, g.e.cfg.capacity)
	}

	req, err := ParseCursor(NewCursor(bytes.NewReader(ctx.buf), g.e.cfg.capacity))
	if errors.Is(err, ErrTruncated) {
		return gnet.None
	}

	ex := g.exchange(ctx, req, err)
	g.e.complete(context.Background(), ex, g.h)

	out := bytebufferpool.Get()
	appendResponse(out, ex.Status)
	if _, err := c.Write(out.B); err != nil {
		g.e.logger.Warn("reply failed", zap.String("conn", ctx.id), zap.Error(err))
	}
	bytebufferpool.Put(out)
	ctx.reset()
	return gnet.Close
}
