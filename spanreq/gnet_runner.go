package spanreq

import (
	"fmt"
	"strings"

	gnet "github.com/panjf2000/gnet/v2"
	"go.uber.org/zap"
)

// RunGNet serves on addr with gnet's event loops instead of one goroutine
// per accepted connection, and blocks until shutdown.
func (e *Engine) RunGNet(addr string) error {
	if addr == "" {
		return fmt.Errorf("missing address")
	}
	h := newGNetHandler(e)
	e.mu.Lock()
	e.gnet = h
	e.mu.Unlock()

	opts := append([]gnet.Option{
		gnet.WithMulticore(e.cfg.multicore),
		gnet.WithLogger(e.logger.Named("gnet").Sugar()),
	}, e.cfg.gnetOpts...)

	protoAddr := ensureProtoAddr(addr)
	e.logger.Info("gnet listening", zap.String("addr", protoAddr))
	return gnet.Run(h, protoAddr, opts...)
}

func ensureProtoAddr(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}
