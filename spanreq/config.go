package spanreq

import (
	"io"
	"os"
	"syscall"
	"time"

	gnet "github.com/panjf2000/gnet/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	defaultShutdownTimeout = 5 * time.Second
)

type config struct {
	capacity        int
	workers         int
	readTimeout     time.Duration
	shutdownSignals []os.Signal
	shutdownTimeout time.Duration
	logger          *zap.Logger
	meterProvider   metric.MeterProvider
	dump            io.Writer
	dumpFormat      DumpFormat
	multicore       bool
	gnetOpts        []gnet.Option
}

func defaultConfig() config {
	return config{
		capacity:        DefaultCapacity,
		shutdownSignals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		shutdownTimeout: defaultShutdownTimeout,
		logger:          zap.NewNop(),
		meterProvider:   otel.GetMeterProvider(),
		dumpFormat:      DumpText,
	}
}

// Option configures an Engine.
type Option func(*config)

// WithCapacity sets the per-connection parse buffer size. A request that
// does not fit is rejected.
func WithCapacity(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.capacity = n
		}
	}
}

// WithWorkers serves up to n connections at once on a goroutine pool. The
// default of 0 serves one connection at a time.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		if n >= 0 {
			cfg.workers = n
		}
	}
}

// WithReadTimeout bounds how long one connection may take to deliver its
// request. Zero, the default, waits forever, so a silent peer blocks a
// sequential server.
func WithReadTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d >= 0 {
			cfg.readTimeout = d
		}
	}
}

// WithShutdownSignals overrides the OS signals that trigger graceful shutdown.
// Passing none disables signal handling.
func WithShutdownSignals(signals ...os.Signal) Option {
	return func(cfg *config) {
		cfg.shutdownSignals = signals
	}
}

// WithShutdownTimeout overrides the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.shutdownTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		if mp != nil {
			cfg.meterProvider = mp
		}
	}
}

// WithDump makes the default handler write each parsed request to w in the
// given format. A nil writer disables the dump. Writes to w are serialized
// by the Engine, also when WithWorkers serves connections concurrently.
func WithDump(w io.Writer, format DumpFormat) Option {
	return func(cfg *config) {
		cfg.dump = w
		cfg.dumpFormat = format
	}
}

// WithMulticore runs one gnet event loop per CPU.
func WithMulticore(on bool) Option {
	return func(cfg *config) {
		cfg.multicore = on
	}
}

// WithGNetOption forwards a gnet.Option to the underlying event engine.
func WithGNetOption(opt gnet.Option) Option {
	return func(cfg *config) {
		cfg.gnetOpts = append(cfg.gnetOpts, opt)
	}
}
