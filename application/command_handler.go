package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
	"github.com/mayorajesus182/vaultstream-banking/metrics"
)

// EventPublisher публикует доменные события наружу после коммита
type EventPublisher interface {
	// PublishAccountEvent публикует одно событие счета
	PublishAccountEvent(ctx context.Context, event domain.AccountEvent) error
}

// CommandHandlerConfig конфигурация обработчика команд
type CommandHandlerConfig struct {
	// MaxRetries число повторов при конфликте версий
	MaxRetries int
	// MaxNumberAttempts число попыток выделить свободный номер счета
	MaxNumberAttempts int
}

// Validate проверяет корректность конфигурации
func (c *CommandHandlerConfig) Validate() error {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxNumberAttempts <= 0 {
		c.MaxNumberAttempts = 5
	}
	return nil
}

// DefaultCommandHandlerConfig возвращает конфигурацию по умолчанию
func DefaultCommandHandlerConfig() CommandHandlerConfig {
	return CommandHandlerConfig{
		MaxRetries:        3,
		MaxNumberAttempts: 5,
	}
}

// CommandHandler обрабатывает команды счета: загрузка агрегата из истории,
// выполнение операции, атомарная запись новых событий с проверкой версии.
// Конфликт версий разрешается перечитыванием и повтором; блокировок нет.
type CommandHandler struct {
	store     eventsourcing.IndexedEventStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	config    CommandHandlerConfig
}

// CommandHandlerBuilder построитель обработчика команд
type CommandHandlerBuilder struct {
	handler *CommandHandler
}

// NewCommandHandlerBuilder создает новый построитель обработчика команд
func NewCommandHandlerBuilder(store eventsourcing.IndexedEventStore) *CommandHandlerBuilder {
	return &CommandHandlerBuilder{
		handler: &CommandHandler{
			store:  store,
			logger: slog.Default(),
			config: DefaultCommandHandlerConfig(),
		},
	}
}

// WithPublisher устанавливает публикатор интеграционных событий
func (b *CommandHandlerBuilder) WithPublisher(publisher EventPublisher) *CommandHandlerBuilder {
	b.handler.publisher = publisher
	return b
}

// WithMetrics устанавливает сборщик метрик
func (b *CommandHandlerBuilder) WithMetrics(m *metrics.Metrics) *CommandHandlerBuilder {
	b.handler.metrics = m
	return b
}

// WithLogger устанавливает логгер
func (b *CommandHandlerBuilder) WithLogger(logger *slog.Logger) *CommandHandlerBuilder {
	b.handler.logger = logger
	return b
}

// WithConfig устанавливает конфигурацию
func (b *CommandHandlerBuilder) WithConfig(config CommandHandlerConfig) *CommandHandlerBuilder {
	b.handler.config = config
	return b
}

// Build создает обработчик команд
func (b *CommandHandlerBuilder) Build() (*CommandHandler, error) {
	if b.handler.store == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	if err := b.handler.config.Validate(); err != nil {
		return nil, err
	}
	return b.handler, nil
}

// NewCommandHandler создает обработчик команд с настройками по умолчанию
func NewCommandHandler(store eventsourcing.IndexedEventStore) *CommandHandler {
	handler, _ := NewCommandHandlerBuilder(store).Build()
	return handler
}

// HandleCreateAccount открывает новый счет. Счет создается в статусе PENDING;
// положительный начальный депозит сразу активирует его, и оба события
// записываются одним атомарным append.
func (h *CommandHandler) HandleCreateAccount(ctx context.Context, cmd CreateAccountCommand) (*AccountView, error) {
	start := time.Now()
	view, err := h.createAccount(ctx, cmd)
	h.record(ctx, CommandCreateAccount, start, err)
	return view, err
}

func (h *CommandHandler) createAccount(ctx context.Context, cmd CreateAccountCommand) (*AccountView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	initialDeposit, err := commandMoney(cmd.InitialDeposit, cmd.Currency)
	if err != nil {
		return nil, err
	}

	// Номер счета выделяется через уникальный индекс: коллизия кандидата
	// отклоняет append, и попытка повторяется с новым номером
	var lastErr error
	for attempt := 0; attempt < h.config.MaxNumberAttempts; attempt++ {
		number := GenerateAccountNumber(time.Now())

		account, err := domain.CreateAccount(number, cmd.CustomerID, cmd.AccountType, initialDeposit)
		if err != nil {
			return nil, err
		}
		if initialDeposit.IsPositive() {
			if err := account.Activate(); err != nil {
				return nil, err
			}
		}

		entries := []eventsourcing.IndexEntry{
			{Name: eventsourcing.IndexAccountNumber, Key: number, Unique: true},
			{Name: eventsourcing.IndexCustomerID, Key: cmd.CustomerID},
		}
		err = h.store.AppendEvents(ctx, account.ID(), 0, toStoreEvents(account.UncommittedEvents()), entries...)
		if errors.Is(err, eventsourcing.ErrDuplicateIndexKey) {
			lastErr = err
			h.logger.Warn("account number collision, retrying",
				slog.String("account_number", number),
				slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		h.metrics.RecordEventsAppended(ctx, len(account.UncommittedEvents()))
		h.publish(ctx, account.UncommittedEvents())
		account.MarkEventsAsCommitted()

		h.logger.Info("account created",
			slog.String("account_id", account.ID()),
			slog.String("account_number", number),
			slog.String("customer_id", cmd.CustomerID),
			slog.String("status", string(account.Status())))
		return NewAccountView(account), nil
	}
	return nil, fmt.Errorf("failed to allocate account number after %d attempts: %w", h.config.MaxNumberAttempts, lastErr)
}

// HandleActivateAccount активирует счет
func (h *CommandHandler) HandleActivateAccount(ctx context.Context, cmd ActivateAccountCommand) (*AccountView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.mutate(ctx, CommandActivate, cmd.AccountID, func(account *domain.Account) error {
		return account.Activate()
	})
}

// HandleDepositMoney пополняет счет
func (h *CommandHandler) HandleDepositMoney(ctx context.Context, cmd DepositMoneyCommand) (*AccountView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	amount, err := commandMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, err
	}
	return h.mutate(ctx, CommandDeposit, cmd.AccountID, func(account *domain.Account) error {
		return account.Deposit(amount, cmd.Description, cmd.TransactionReference)
	})
}

// HandleWithdrawMoney снимает средства со счета
func (h *CommandHandler) HandleWithdrawMoney(ctx context.Context, cmd WithdrawMoneyCommand) (*AccountView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	amount, err := commandMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, err
	}
	return h.mutate(ctx, CommandWithdraw, cmd.AccountID, func(account *domain.Account) error {
		return account.Withdraw(amount, cmd.Description, cmd.TransactionReference)
	})
}

// HandleFreezeAccount замораживает счет
func (h *CommandHandler) HandleFreezeAccount(ctx context.Context, cmd FreezeAccountCommand) (*AccountView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.mutate(ctx, CommandFreeze, cmd.AccountID, func(account *domain.Account) error {
		return account.Freeze(cmd.Reason)
	})
}

// HandleCloseAccount закрывает счет
func (h *CommandHandler) HandleCloseAccount(ctx context.Context, cmd CloseAccountCommand) (*AccountView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.mutate(ctx, CommandClose, cmd.AccountID, func(account *domain.Account) error {
		return account.Close(cmd.Reason)
	})
}

// mutate выполняет операцию над загруженным агрегатом и записывает новые
// события с ожидаемой версией; при конфликте версий перечитывает и повторяет
func (h *CommandHandler) mutate(ctx context.Context, commandName, accountID string, operation func(*domain.Account) error) (*AccountView, error) {
	start := time.Now()
	view, err := h.mutateWithRetry(ctx, commandName, accountID, operation)
	h.record(ctx, commandName, start, err)
	return view, err
}

func (h *CommandHandler) mutateWithRetry(ctx context.Context, commandName, accountID string, operation func(*domain.Account) error) (*AccountView, error) {
	var lastErr error
	for attempt := 0; attempt < h.config.MaxRetries; attempt++ {
		account, err := h.loadAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}

		if err := operation(account); err != nil {
			return nil, err
		}

		pending := account.UncommittedEvents()
		if len(pending) == 0 {
			return NewAccountView(account), nil
		}

		expectedVersion := account.Version() - int64(len(pending))
		err = h.store.AppendEvents(ctx, accountID, expectedVersion, toStoreEvents(pending))
		if errors.Is(err, eventsourcing.ErrConcurrencyConflict) {
			lastErr = err
			h.metrics.RecordConflict(ctx, commandName)
			h.logger.Warn("concurrency conflict, retrying",
				slog.String("command", commandName),
				slog.String("account_id", accountID),
				slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		h.metrics.RecordEventsAppended(ctx, len(pending))
		h.publish(ctx, pending)
		account.MarkEventsAsCommitted()

		h.logger.Info("command handled",
			slog.String("command", commandName),
			slog.String("account_id", accountID),
			slog.Int64("version", account.Version()))
		return NewAccountView(account), nil
	}
	return nil, fmt.Errorf("command %s exhausted %d retries: %w", commandName, h.config.MaxRetries, lastErr)
}

// loadAccount восстанавливает агрегат из истории событий
func (h *CommandHandler) loadAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	stored, err := h.store.GetEvents(ctx, accountID, 0)
	if errors.Is(err, eventsourcing.ErrStreamNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	history := make([]domain.AccountEvent, 0, len(stored))
	for _, record := range stored {
		event, ok := record.Event.(domain.AccountEvent)
		if !ok {
			return nil, fmt.Errorf("unexpected event %s at version %d in stream %s",
				record.EventType, record.Version, accountID)
		}
		history = append(history, event)
	}
	return domain.FromHistory(history)
}

// publish отправляет события наружу после коммита; сбой публикации
// не откатывает запись и только логируется
func (h *CommandHandler) publish(ctx context.Context, events []domain.AccountEvent) {
	if h.publisher == nil {
		return
	}
	for _, event := range events {
		if err := h.publisher.PublishAccountEvent(ctx, event); err != nil {
			h.logger.Error("failed to publish account event",
				slog.String("event_type", event.EventType()),
				slog.String("account_id", event.AggregateID()),
				slog.String("error", err.Error()))
		}
	}
}

func (h *CommandHandler) record(ctx context.Context, commandName string, start time.Time, err error) {
	h.metrics.RecordCommand(ctx, commandName, time.Since(start), err == nil)
}

// toStoreEvents преобразует доменные события к интерфейсу хранилища
func toStoreEvents(events []domain.AccountEvent) []eventsourcing.Event {
	result := make([]eventsourcing.Event, len(events))
	for i, event := range events {
		result[i] = event
	}
	return result
}
