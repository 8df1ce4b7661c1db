package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MetricReceived        = "sqs.pump.messages.received"
	MetricProcessed       = "sqs.pump.messages.processed"
	MetricDuration        = "sqs.pump.message.duration"
	MetricVisibilityReset = "sqs.pump.visibility.resets"
	MetricWorkerRestart   = "sqs.pump.worker.restarts"
	MetricCleanupFailure  = "sqs.pump.cleanup.failures"
	MetricActiveWorkers   = "sqs.pump.workers.active"
)

// PumpMetrics records pump activity as OTel instruments. It satisfies
// pump.MetricsHook.
type PumpMetrics struct {
	queue           attribute.KeyValue
	received        metric.Int64Counter
	processed       metric.Int64Counter
	duration        metric.Float64Histogram
	visibilityReset metric.Int64Counter
	workerRestart   metric.Int64Counter
	cleanupFailure  metric.Int64Counter
}

// NewPumpMetrics creates the instruments on meter. When activeWorkers is not
// nil it is observed as a gauge on every collection.
func NewPumpMetrics(meter metric.Meter, queueName string, activeWorkers func() int64) (*PumpMetrics, error) {
	m := &PumpMetrics{queue: attribute.String("queue", queueName)}

	var err error
	if m.received, err = meter.Int64Counter(MetricReceived,
		metric.WithDescription("Messages received from the queue"),
		metric.WithUnit("{message}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.processed, err = meter.Int64Counter(MetricProcessed,
		metric.WithDescription("Messages settled, by outcome"),
		metric.WithUnit("{message}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Time from receive to settlement"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	if m.visibilityReset, err = meter.Int64Counter(MetricVisibilityReset,
		metric.WithDescription("Failed messages made visible again for retry"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.workerRestart, err = meter.Int64Counter(MetricWorkerRestart,
		metric.WithDescription("Pollers replaced after a fault"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.cleanupFailure, err = meter.Int64Counter(MetricCleanupFailure,
		metric.WithDescription("External message bodies that could not be deleted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	if activeWorkers != nil {
		gauge, err := meter.Int64ObservableGauge(MetricActiveWorkers,
			metric.WithDescription("Pollers currently running"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gauge: %w", err)
		}
		_, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
			observer.ObserveInt64(gauge, activeWorkers(), metric.WithAttributes(m.queue))
			return nil
		}, gauge)
		if err != nil {
			return nil, fmt.Errorf("failed to register gauge callback: %w", err)
		}
	}

	return m, nil
}

func (m *PumpMetrics) OnMessageReceived() {
	m.received.Add(context.Background(), 1, metric.WithAttributes(m.queue))
}

func (m *PumpMetrics) OnMessageProcessed(outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(m.queue, attribute.String("outcome", outcome))
	m.processed.Add(context.Background(), 1, attrs)
	m.duration.Record(context.Background(), duration.Seconds(), attrs)
}

func (m *PumpMetrics) OnVisibilityReset() {
	m.visibilityReset.Add(context.Background(), 1, metric.WithAttributes(m.queue))
}

func (m *PumpMetrics) OnWorkerRestart() {
	m.workerRestart.Add(context.Background(), 1, metric.WithAttributes(m.queue))
}

func (m *PumpMetrics) OnCleanupFailed() {
	m.cleanupFailure.Add(context.Background(), 1, metric.WithAttributes(m.queue))
}
