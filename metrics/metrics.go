package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics сборщик метрик сервиса счетов
type Metrics struct {
	meter           metric.Meter
	commandsTotal   metric.Int64Counter
	queriesTotal    metric.Int64Counter
	eventsTotal     metric.Int64Counter
	conflictsTotal  metric.Int64Counter
	commandDuration metric.Float64Histogram
	queryDuration   metric.Float64Histogram
	publishedTotal  metric.Int64Counter
	publishFailures metric.Int64Counter
}

// NewMetrics создает новый сборщик метрик
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("vaultstream.account")

	commandsTotal, err := meter.Int64Counter(
		"account_commands_total",
		metric.WithDescription("Total number of account commands processed"),
	)
	if err != nil {
		return nil, err
	}

	queriesTotal, err := meter.Int64Counter(
		"account_queries_total",
		metric.WithDescription("Total number of account queries processed"),
	)
	if err != nil {
		return nil, err
	}

	eventsTotal, err := meter.Int64Counter(
		"account_events_appended_total",
		metric.WithDescription("Total number of events appended to the event store"),
	)
	if err != nil {
		return nil, err
	}

	conflictsTotal, err := meter.Int64Counter(
		"account_concurrency_conflicts_total",
		metric.WithDescription("Total number of optimistic concurrency conflicts"),
	)
	if err != nil {
		return nil, err
	}

	commandDuration, err := meter.Float64Histogram(
		"account_command_duration_seconds",
		metric.WithDescription("Command processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"account_query_duration_seconds",
		metric.WithDescription("Query processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	publishedTotal, err := meter.Int64Counter(
		"account_integration_events_published_total",
		metric.WithDescription("Total number of integration events published"),
	)
	if err != nil {
		return nil, err
	}

	publishFailures, err := meter.Int64Counter(
		"account_integration_events_failed_total",
		metric.WithDescription("Total number of integration events that failed to publish"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:           meter,
		commandsTotal:   commandsTotal,
		queriesTotal:    queriesTotal,
		eventsTotal:     eventsTotal,
		conflictsTotal:  conflictsTotal,
		commandDuration: commandDuration,
		queryDuration:   queryDuration,
		publishedTotal:  publishedTotal,
		publishFailures: publishFailures,
	}, nil
}

// RecordCommand записывает метрику команды
func (m *Metrics) RecordCommand(ctx context.Context, commandName string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("command", commandName),
		attribute.Bool("success", success),
	)
	m.commandsTotal.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordQuery записывает метрику запроса
func (m *Metrics) RecordQuery(ctx context.Context, queryName string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("query", queryName),
		attribute.Bool("success", success),
	)
	m.queriesTotal.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordEventsAppended записывает число добавленных событий
func (m *Metrics) RecordEventsAppended(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.eventsTotal.Add(ctx, int64(count))
}

// RecordConflict записывает конфликт оптимистичной конкурентности
func (m *Metrics) RecordConflict(ctx context.Context, commandName string) {
	if m == nil {
		return
	}
	m.conflictsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("command", commandName)))
}

// RecordPublished записывает результат публикации интеграционного события
func (m *Metrics) RecordPublished(ctx context.Context, eventType string, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))
	if success {
		m.publishedTotal.Add(ctx, 1, attrs)
	} else {
		m.publishFailures.Add(ctx, 1, attrs)
	}
}
