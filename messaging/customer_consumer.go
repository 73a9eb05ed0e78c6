package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mayorajesus182/vaultstream-banking/application"
	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/messagebus"
)

// Типы событий клиентского сервиса
const (
	EventTypeCustomerActivated = "CustomerActivated"
)

// CustomerActivatedPayload payload события активации клиента
type CustomerActivatedPayload struct {
	CustomerID string `json:"customer_id"`
}

// CustomerEventConsumerConfig конфигурация консьюмера клиентских событий
type CustomerEventConsumerConfig struct {
	Subject         string
	DefaultCurrency string
}

// Validate проверяет корректность конфигурации
func (c *CustomerEventConsumerConfig) Validate() error {
	if c.Subject == "" {
		c.Subject = SubjectCustomerEvents
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "USD"
	}
	return nil
}

// DefaultCustomerEventConsumerConfig возвращает конфигурацию по умолчанию
func DefaultCustomerEventConsumerConfig() CustomerEventConsumerConfig {
	return CustomerEventConsumerConfig{
		Subject:         SubjectCustomerEvents,
		DefaultCurrency: "USD",
	}
}

// CustomerEventConsumer слушает события клиентского сервиса и открывает
// сберегательный счет по умолчанию для каждого активированного клиента.
// Повторная доставка отфильтровывается хранилищем идемпотентности: каждое
// событие обрабатывается не более одного раза, ошибки обработки логируются
// и не возвращаются в шину.
type CustomerEventConsumer struct {
	commands    *application.CommandHandler
	idempotency IdempotencyStore
	config      CustomerEventConsumerConfig
	logger      *slog.Logger
}

// NewCustomerEventConsumer создает новый консьюмер клиентских событий
func NewCustomerEventConsumer(commands *application.CommandHandler, idempotency IdempotencyStore, config CustomerEventConsumerConfig) (*CustomerEventConsumer, error) {
	if commands == nil {
		return nil, fmt.Errorf("command handler cannot be nil")
	}
	if idempotency == nil {
		return nil, fmt.Errorf("idempotency store cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CustomerEventConsumer{
		commands:    commands,
		idempotency: idempotency,
		config:      config,
		logger:      slog.Default(),
	}, nil
}

// WithLogger устанавливает логгер
func (c *CustomerEventConsumer) WithLogger(logger *slog.Logger) *CustomerEventConsumer {
	c.logger = logger
	return c
}

// Start подписывает консьюмер на subject клиентских событий
func (c *CustomerEventConsumer) Start(ctx context.Context, subscriber messagebus.Subscriber) error {
	return subscriber.Subscribe(ctx, c.config.Subject, c.Handle)
}

// Handle обрабатывает одно сообщение клиентского сервиса
func (c *CustomerEventConsumer) Handle(ctx context.Context, msg *messagebus.Message) error {
	var envelope IntegrationEvent
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logger.Error("failed to decode customer event",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()))
		return nil
	}

	if envelope.EventType != EventTypeCustomerActivated {
		return nil
	}

	fresh, err := c.idempotency.MarkProcessed(ctx, envelope.EventID)
	if err != nil {
		return err
	}
	if !fresh {
		c.logger.Info("skipping duplicate customer event",
			slog.String("event_id", envelope.EventID))
		return nil
	}

	var payload CustomerActivatedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		c.logger.Error("failed to decode customer activated payload",
			slog.String("event_id", envelope.EventID),
			slog.String("error", err.Error()))
		return nil
	}
	if payload.CustomerID == "" {
		c.logger.Error("customer activated event without customer id",
			slog.String("event_id", envelope.EventID))
		return nil
	}

	view, err := c.commands.HandleCreateAccount(ctx, application.CreateAccountCommand{
		CustomerID:     payload.CustomerID,
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.Zero,
		Currency:       c.config.DefaultCurrency,
	})
	if err != nil {
		if domain.IsRuleViolation(err) {
			c.logger.Error("default account rejected",
				slog.String("customer_id", payload.CustomerID),
				slog.String("error", err.Error()))
			return nil
		}
		// Доставка уже помечена обработанной, возврат ошибки в шину
		// не приведет к повтору: семантика at-most-once
		c.logger.Error("failed to create default account",
			slog.String("customer_id", payload.CustomerID),
			slog.String("error", err.Error()))
		return nil
	}

	c.logger.Info("default account created for activated customer",
		slog.String("customer_id", payload.CustomerID),
		slog.String("account_id", view.AccountID),
		slog.String("account_number", view.AccountNumber))
	return nil
}
