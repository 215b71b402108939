package spanreq

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Middleware func(Handler) Handler

func chain(mws ...Middleware) func(Handler) Handler {
	return func(h Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// Recover turns a panicking handler into a rejected exchange answered with
// 400, keeping the accept loop alive.
func Recover(l *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ex *Exchange) {
			defer func() {
				if r := recover(); r != nil {
					l.Error("handler panic", zap.String("conn", ex.ID), zap.Any("panic", r))
					if ex.Err == nil {
						ex.Err = fmt.Errorf("handler panic: %v", r)
					}
					ex.Status = http.StatusBadRequest
				}
			}()
			next(ex)
		}
	}
}

// Logger logs one line per exchange.
func Logger(l *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ex *Exchange) {
			next(ex)
			fields := []zap.Field{
				zap.String("conn", ex.ID),
				zap.String("remote", ex.RemoteAddr),
				zap.Int("status", ex.Status),
				zap.Duration("dur", time.Since(ex.Started)),
			}
			if ex.Err != nil {
				l.Info("request rejected", append(fields, zap.Error(ex.Err))...)
				return
			}
			l.Info("request accepted", append(fields,
				zap.String("method", ex.Request.Method()),
				zap.String("uri", ex.Request.URI()),
				zap.Int("headers", len(ex.Request.Headers)),
			)...)
		}
	}
}
