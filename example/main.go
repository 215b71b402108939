package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/J1407B-K/spanreq/spanreq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		addr        = flag.String("addr", "[::]:8338", "listen address")
		gnetAddr    = flag.String("gnet-addr", "[::]:8339", "gnet listen address in -mode both")
		mode        = flag.String("mode", "blocking", "front end: blocking, gnet or both")
		capacity    = flag.Int("capacity", spanreq.DefaultCapacity, "per-connection buffer size in bytes")
		workers     = flag.Int("workers", 0, "connections served at once; 0 serves one at a time")
		readTimeout = flag.Duration("read-timeout", 0, "per-connection read timeout; 0 waits forever")
		multicore   = flag.Bool("multicore", false, "one gnet event loop per CPU")
		dump        = flag.String("dump", "text", "request dump on stdout: text, ast or none")
		logFile     = flag.String("log-file", "", "log to this file with rotation instead of stderr")
		logJSON     = flag.Bool("log-json", false, "JSON log lines")
		debug       = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger, syncLog := spanreq.NewLogger(spanreq.LogConfig{
		Debug:      *debug,
		JSON:       *logJSON,
		File:       *logFile,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})
	defer func() { _ = syncLog() }()

	var dumpTo io.Writer = os.Stdout
	format := spanreq.DumpText
	if *dump == "none" {
		dumpTo = nil
	} else {
		f, err := spanreq.ParseDumpFormat(*dump)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		format = f
	}

	e := spanreq.NewEngine(
		spanreq.WithLogger(logger),
		spanreq.WithCapacity(*capacity),
		spanreq.WithWorkers(*workers),
		spanreq.WithReadTimeout(*readTimeout),
		spanreq.WithMulticore(*multicore),
		spanreq.WithShutdownTimeout(5*time.Second),
		spanreq.WithDump(dumpTo, format),
	)
	e.Use(spanreq.Logger(logger), spanreq.Recover(logger))

	var g errgroup.Group
	switch *mode {
	case "blocking":
		g.Go(func() error { return e.Run(*addr) })
	case "gnet":
		g.Go(func() error { return e.RunGNet(*addr) })
	case "both":
		g.Go(func() error { return e.Run(*addr) })
		g.Go(func() error { return e.RunGNet(*gnetAddr) })
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		return 2
	}
	if err := g.Wait(); err != nil {
		logger.Error("server failed", zap.Error(err))
		return 1
	}
	return 0
}
