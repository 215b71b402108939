package spanreq

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
)

const meterName = "github.com/J1407B-K/spanreq"

type metrics struct {
	accepted metric.Int64Counter
	rejected metric.Int64Counter
	size     metric.Int64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)
	accepted, err1 := meter.Int64Counter("spanreq.requests.accepted",
		metric.WithDescription("Requests parsed successfully."))
	rejected, err2 := meter.Int64Counter("spanreq.requests.rejected",
		metric.WithDescription("Requests that failed to parse, by error kind."))
	size, err3 := meter.Int64Histogram("spanreq.request.bytes",
		metric.WithDescription("Bytes buffered per parsed request."),
		metric.WithUnit("By"))
	if err := multierr.Combine(err1, err2, err3); err != nil {
		return nil, err
	}
	return &metrics{accepted: accepted, rejected: rejected, size: size}, nil
}

func (m *metrics) record(ctx context.Context, ex *Exchange) {
	if ex.Err != nil {
		kind := ErrorKindOf(ex.Err).String()
		m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		return
	}
	m.accepted.Add(ctx, 1)
	m.size.Record(ctx, int64(len(ex.Request.Buffer())))
}
