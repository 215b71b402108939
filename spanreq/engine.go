package spanreq

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Exchange is one connection's request/response cycle as seen by handlers.
type Exchange struct {
	ID         string
	RemoteAddr string
	Started    time.Time

	// Exactly one of Request and Err is set when the handler runs.
	Request *Request
	Err     error

	// Status is the reply status: 202 when Err is nil, 400 otherwise. It is
	// recomputed from Err after the handler chain runs, so handlers reject a
	// request by setting Err.
	Status int
}

type Handler func(*Exchange)

// Engine accepts connections, parses one request from each, runs the
// handler chain and replies with a fixed status line before closing.
type Engine struct {
	cfg     config
	logger  *zap.Logger
	metrics *metrics

	mws     []Middleware
	handler Handler

	dumpMu sync.Mutex

	mu        sync.Mutex
	stopServe context.CancelFunc
	gnet      *gnetHandler
}

func NewEngine(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{cfg: cfg, logger: cfg.logger}
	m, err := newMetrics(cfg.meterProvider)
	if err != nil {
		e.logger.Warn("metrics disabled", zap.Error(err))
		m, _ = newMetrics(noop.NewMeterProvider())
	}
	e.metrics = m
	e.handler = e.dumpHandler
	return e
}

// Use appends middleware. It must be called before serving starts.
func (e *Engine) Use(mw ...Middleware) { e.mws = append(e.mws, mw...) }

// Handle replaces the default handler, which dumps each parsed request to
// the writer set with WithDump.
func (e *Engine) Handle(h Handler) {
	if h != nil {
		e.handler = h
	}
}

func (e *Engine) pipeline() Handler { return chain(e.mws...)(e.handler) }

func (e *Engine) dumpHandler(ex *Exchange) {
	if ex.Err != nil || e.cfg.dump == nil {
		return
	}
	e.dumpMu.Lock()
	err := Dump(e.cfg.dump, ex.Request, e.cfg.dumpFormat)
	e.dumpMu.Unlock()
	if err != nil {
		e.logger.Warn("dump failed", zap.String("conn", ex.ID), zap.Error(err))
	}
}

// complete runs the handler chain and settles the reply status.
func (e *Engine) complete(ctx context.Context, ex *Exchange, h Handler) {
	ex.Status = statusFor(ex.Err)
	h(ex)
	ex.Status = statusFor(ex.Err)
	e.metrics.record(ctx, ex)
}

// Shutdown stops whichever front ends are running.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	stop, gh := e.stopServe, e.gnet
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
	var err error
	if gh != nil {
		err = multierr.Append(err, gh.stop(ctx))
	}
	return err
}
