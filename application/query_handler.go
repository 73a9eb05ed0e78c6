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

// Имена запросов для логирования и метрик
const (
	QueryAccountByID        = "GetAccountByID"
	QueryAccountByNumber    = "GetAccountByNumber"
	QueryAccountsByCustomer = "ListAccountsByCustomer"
	QueryAccountHistory     = "GetAccountHistory"
)

// QueryHandler отвечает на запросы чтения. Состояние счета восстанавливается
// replay'ем событий; поиск по номеру счета и клиенту идет через вторичный
// индекс, без сканирования payload.
type QueryHandler struct {
	store   eventsourcing.IndexedEventStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewQueryHandler создает новый обработчик запросов
func NewQueryHandler(store eventsourcing.IndexedEventStore) *QueryHandler {
	return &QueryHandler{
		store:  store,
		logger: slog.Default(),
	}
}

// WithMetrics устанавливает сборщик метрик
func (h *QueryHandler) WithMetrics(m *metrics.Metrics) *QueryHandler {
	h.metrics = m
	return h
}

// WithLogger устанавливает логгер
func (h *QueryHandler) WithLogger(logger *slog.Logger) *QueryHandler {
	h.logger = logger
	return h
}

// GetAccountByID возвращает проекцию счета по идентификатору
func (h *QueryHandler) GetAccountByID(ctx context.Context, accountID string) (*AccountView, error) {
	start := time.Now()
	view, err := h.loadView(ctx, accountID)
	h.record(ctx, QueryAccountByID, start, err)
	return view, err
}

// GetAccountByNumber возвращает проекцию счета по номеру счета
func (h *QueryHandler) GetAccountByNumber(ctx context.Context, accountNumber string) (*AccountView, error) {
	start := time.Now()
	view, err := h.byNumber(ctx, accountNumber)
	h.record(ctx, QueryAccountByNumber, start, err)
	return view, err
}

func (h *QueryHandler) byNumber(ctx context.Context, accountNumber string) (*AccountView, error) {
	accountID, err := h.store.Lookup(ctx, eventsourcing.IndexAccountNumber, accountNumber)
	if errors.Is(err, eventsourcing.ErrIndexEntryNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return h.loadView(ctx, accountID)
}

// ListAccountsByCustomer возвращает проекции всех счетов клиента
func (h *QueryHandler) ListAccountsByCustomer(ctx context.Context, customerID string) ([]*AccountView, error) {
	start := time.Now()
	views, err := h.byCustomer(ctx, customerID)
	h.record(ctx, QueryAccountsByCustomer, start, err)
	return views, err
}

func (h *QueryHandler) byCustomer(ctx context.Context, customerID string) ([]*AccountView, error) {
	accountIDs, err := h.store.LookupAll(ctx, eventsourcing.IndexCustomerID, customerID)
	if err != nil {
		return nil, err
	}

	views := make([]*AccountView, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		view, err := h.loadView(ctx, accountID)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// GetAccountHistory возвращает историю событий счета в порядке версий
func (h *QueryHandler) GetAccountHistory(ctx context.Context, accountID string) ([]domain.AccountEvent, error) {
	start := time.Now()
	history, err := h.history(ctx, accountID)
	h.record(ctx, QueryAccountHistory, start, err)
	return history, err
}

func (h *QueryHandler) history(ctx context.Context, accountID string) ([]domain.AccountEvent, error) {
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
	return history, nil
}

func (h *QueryHandler) loadView(ctx context.Context, accountID string) (*AccountView, error) {
	history, err := h.history(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account, err := domain.FromHistory(history)
	if err != nil {
		return nil, err
	}
	return NewAccountView(account), nil
}

func (h *QueryHandler) record(ctx context.Context, queryName string, start time.Time, err error) {
	h.metrics.RecordQuery(ctx, queryName, time.Since(start), err == nil)
}
