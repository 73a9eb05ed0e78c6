package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/messagebus"
	"github.com/mayorajesus182/vaultstream-banking/metrics"
)

// PublisherConfig конфигурация публикатора интеграционных событий
type PublisherConfig struct {
	Subject     string
	MaxAttempts int
	RetryDelay  time.Duration
}

// Validate проверяет корректность конфигурации
func (c *PublisherConfig) Validate() error {
	if c.Subject == "" {
		c.Subject = SubjectAccountEvents
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	return nil
}

// DefaultPublisherConfig возвращает конфигурацию по умолчанию
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Subject:     SubjectAccountEvents,
		MaxAttempts: 3,
		RetryDelay:  100 * time.Millisecond,
	}
}

// Publisher публикует события счета в message bus после коммита.
// Публикация best-effort: события уже записаны в event store,
// исчерпание повторов не откатывает команду.
type Publisher struct {
	bus     messagebus.Publisher
	config  PublisherConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher создает новый публикатор интеграционных событий
func NewPublisher(bus messagebus.Publisher, config PublisherConfig) (*Publisher, error) {
	if bus == nil {
		return nil, fmt.Errorf("message bus cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Publisher{
		bus:    bus,
		config: config,
		logger: slog.Default(),
	}, nil
}

// WithMetrics устанавливает сборщик метрик
func (p *Publisher) WithMetrics(m *metrics.Metrics) *Publisher {
	p.metrics = m
	return p
}

// WithLogger устанавливает логгер
func (p *Publisher) WithLogger(logger *slog.Logger) *Publisher {
	p.logger = logger
	return p
}

// PublishAccountEvent публикует одно событие счета с ограниченным числом повторов
func (p *Publisher) PublishAccountEvent(ctx context.Context, event domain.AccountEvent) error {
	envelope, err := NewIntegrationEvent(event)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal integration event: %w", err)
	}

	headers := map[string]string{
		"event_id":   envelope.EventID,
		"event_type": envelope.EventType,
	}

	var lastErr error
	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryDelay):
			}
		}
		if lastErr = p.bus.Publish(ctx, p.config.Subject, data, headers); lastErr == nil {
			p.metrics.RecordPublished(ctx, envelope.EventType, true)
			return nil
		}
		p.logger.Warn("failed to publish integration event",
			slog.String("event_type", envelope.EventType),
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))
	}

	p.metrics.RecordPublished(ctx, envelope.EventType, false)
	return fmt.Errorf("publish %s exhausted %d attempts: %w", envelope.EventType, p.config.MaxAttempts, lastErr)
}
