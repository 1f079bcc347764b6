// Package notify fans committed supply request status changes out to the
// SSE hub, Kafka and Feishu.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"go.uber.org/zap"
)

// Sink one notification target
type Sink interface {
	Name() string
	Send(ctx context.Context, ev entity.StatusChangeEvent) error
}

// Dispatcher delivers each event to every sink in its own goroutine, bounded
// by a timeout. Failures are logged and counted, never returned.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, m *metrics.Metrics, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, timeout: timeout, metrics: m, logger: logger}
}

// Notify sends ev asynchronously. The caller's context only contributes
// values; cancellation of the request does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, ev entity.StatusChangeEvent) {
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink Sink) {
			defer d.wg.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
			defer cancel()
			if err := sink.Send(sctx, ev); err != nil {
				d.metrics.NotificationFailed(sink.Name())
				d.logger.Warn("status change notification failed",
					zap.String("sink", sink.Name()),
					zap.Uint("request_id", ev.RequestID),
					zap.String("event_id", ev.EventID),
					zap.Error(err))
			}
		}(sink)
	}
}

// Wait blocks until in-flight deliveries finish. Used at shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
