package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
)

type capturingPublisher struct {
	events []domain.AccountEvent
}

func (p *capturingPublisher) PublishAccountEvent(ctx context.Context, event domain.AccountEvent) error {
	p.events = append(p.events, event)
	return nil
}

func newTestHandler(t *testing.T) (*CommandHandler, *eventsourcing.InMemoryEventStore, *capturingPublisher) {
	t.Helper()
	store := eventsourcing.NewInMemoryEventStore(eventsourcing.DefaultInMemoryEventStoreConfig())
	publisher := &capturingPublisher{}
	handler, err := NewCommandHandlerBuilder(store).WithPublisher(publisher).Build()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return handler, store, publisher
}

func TestCommandHandler_CreateAccount_Pending(t *testing.T) {
	handler, store, _ := newTestHandler(t)
	ctx := context.Background()

	view, err := handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeChecking,
		InitialDeposit: decimal.Zero,
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if view.Status != domain.StatusPending {
		t.Errorf("Expected PENDING status, got %s", view.Status)
	}
	if view.Version != 1 {
		t.Errorf("Expected version 1, got %d", view.Version)
	}
	if !ValidAccountNumber(view.AccountNumber) {
		t.Errorf("Expected valid account number, got %s", view.AccountNumber)
	}

	stored, err := store.GetEvents(ctx, view.AccountID, 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("Expected 1 stored event, got %d", len(stored))
	}
}

func TestCommandHandler_CreateAccount_FundedActivatesImmediately(t *testing.T) {
	handler, store, publisher := newTestHandler(t)
	ctx := context.Background()

	view, err := handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(100),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if view.Status != domain.StatusActive {
		t.Errorf("Expected ACTIVE status, got %s", view.Status)
	}
	if !view.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance 100, got %s", view.Balance)
	}

	// Создание и активация записаны одним атомарным append
	stored, err := store.GetEvents(ctx, view.AccountID, 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 stored events, got %d", len(stored))
	}
	if stored[0].EventType != domain.EventTypeAccountCreated {
		t.Errorf("Expected AccountCreated first, got %s", stored[0].EventType)
	}
	if stored[1].EventType != domain.EventTypeAccountStatusChanged {
		t.Errorf("Expected AccountStatusChanged second, got %s", stored[1].EventType)
	}

	if len(publisher.events) != 2 {
		t.Errorf("Expected 2 published events, got %d", len(publisher.events))
	}
}

func TestCommandHandler_CreateAccount_IndexedByNumberAndCustomer(t *testing.T) {
	handler, store, _ := newTestHandler(t)
	ctx := context.Background()

	view, err := handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:  "customer-1",
		AccountType: domain.TypeChecking,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	byNumber, err := store.Lookup(ctx, eventsourcing.IndexAccountNumber, view.AccountNumber)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if byNumber != view.AccountID {
		t.Errorf("Expected %s, got %s", view.AccountID, byNumber)
	}

	byCustomer, err := store.LookupAll(ctx, eventsourcing.IndexCustomerID, "customer-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(byCustomer) != 1 || byCustomer[0] != view.AccountID {
		t.Errorf("Expected customer index to contain %s, got %v", view.AccountID, byCustomer)
	}
}

func TestCommandHandler_CreateAccount_InvalidCommand(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	ctx := context.Background()

	_, err := handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:  "",
		AccountType: domain.TypeSavings,
		Currency:    "USD",
	})
	if !domain.IsRuleViolation(err) {
		t.Errorf("Expected rule violation, got %v", err)
	}

	_, err = handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(-1),
		Currency:       "USD",
	})
	if !domain.IsRuleViolation(err) {
		t.Errorf("Expected rule violation for negative deposit, got %v", err)
	}
}

func TestCommandHandler_FullLifecycle(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	ctx := context.Background()

	created, err := handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:  "customer-1",
		AccountType: domain.TypeSavings,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	accountID := created.AccountID

	activated, err := handler.HandleActivateAccount(ctx, ActivateAccountCommand{AccountID: accountID})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if activated.Status != domain.StatusActive {
		t.Errorf("Expected ACTIVE, got %s", activated.Status)
	}

	deposited, err := handler.HandleDepositMoney(ctx, DepositMoneyCommand{
		AccountID: accountID,
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !deposited.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected balance 50, got %s", deposited.Balance)
	}

	_, err = handler.HandleWithdrawMoney(ctx, WithdrawMoneyCommand{
		AccountID: accountID,
		Amount:    decimal.NewFromInt(75),
		Currency:  "USD",
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds, got %v", err)
	}

	withdrawn, err := handler.HandleWithdrawMoney(ctx, WithdrawMoneyCommand{
		AccountID: accountID,
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !withdrawn.Balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", withdrawn.Balance)
	}

	closed, err := handler.HandleCloseAccount(ctx, CloseAccountCommand{AccountID: accountID, Reason: "customer request"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if closed.Status != domain.StatusClosed {
		t.Errorf("Expected CLOSED, got %s", closed.Status)
	}
	if closed.Version != 5 {
		t.Errorf("Expected version 5, got %d", closed.Version)
	}
}

func TestCommandHandler_RejectedCommandAppendsNothing(t *testing.T) {
	handler, store, _ := newTestHandler(t)
	ctx := context.Background()

	created, err := handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(30),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	before, err := store.CurrentVersion(ctx, created.AccountID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = handler.HandleWithdrawMoney(ctx, WithdrawMoneyCommand{
		AccountID: created.AccountID,
		Amount:    decimal.NewFromInt(100),
		Currency:  "USD",
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds, got %v", err)
	}

	after, err := store.CurrentVersion(ctx, created.AccountID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if before != after {
		t.Errorf("Expected version unchanged after rejected command, got %d -> %d", before, after)
	}
}

func TestCommandHandler_CurrencyMismatchRejected(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	ctx := context.Background()

	created, err := handler.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(10),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = handler.HandleDepositMoney(ctx, DepositMoneyCommand{
		AccountID: created.AccountID,
		Amount:    decimal.NewFromInt(5),
		Currency:  "EUR",
	})
	if !domain.IsRuleViolation(err) {
		t.Errorf("Expected rule violation for currency mismatch, got %v", err)
	}
}

func TestCommandHandler_AccountNotFound(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	ctx := context.Background()

	_, err := handler.HandleDepositMoney(ctx, DepositMoneyCommand{
		AccountID: "missing",
		Amount:    decimal.NewFromInt(5),
		Currency:  "USD",
	})
	if !domain.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

// conflictingStore единожды отклоняет append конфликтом версий
type conflictingStore struct {
	eventsourcing.IndexedEventStore
	conflicts int
}

func (s *conflictingStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []eventsourcing.Event, entries ...eventsourcing.IndexEntry) error {
	if s.conflicts > 0 {
		s.conflicts--
		return &eventsourcing.ConcurrencyError{AggregateID: aggregateID, Expected: expectedVersion, Actual: expectedVersion + 1}
	}
	return s.IndexedEventStore.AppendEvents(ctx, aggregateID, expectedVersion, events, entries...)
}

func TestCommandHandler_RetriesOnConcurrencyConflict(t *testing.T) {
	inner := eventsourcing.NewInMemoryEventStore(eventsourcing.DefaultInMemoryEventStoreConfig())
	ctx := context.Background()

	seed, err := NewCommandHandler(inner).HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(10),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	store := &conflictingStore{IndexedEventStore: inner, conflicts: 1}
	handler, err := NewCommandHandlerBuilder(store).Build()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	view, err := handler.HandleDepositMoney(ctx, DepositMoneyCommand{
		AccountID: seed.AccountID,
		Amount:    decimal.NewFromInt(5),
		Currency:  "USD",
	})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if !view.Balance.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected balance 15, got %s", view.Balance)
	}
}

func TestCommandHandler_RetriesExhausted(t *testing.T) {
	inner := eventsourcing.NewInMemoryEventStore(eventsourcing.DefaultInMemoryEventStoreConfig())
	ctx := context.Background()

	seed, err := NewCommandHandler(inner).HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(10),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	store := &conflictingStore{IndexedEventStore: inner, conflicts: 100}
	handler, err := NewCommandHandlerBuilder(store).Build()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = handler.HandleDepositMoney(ctx, DepositMoneyCommand{
		AccountID: seed.AccountID,
		Amount:    decimal.NewFromInt(5),
		Currency:  "USD",
	})
	if !errors.Is(err, eventsourcing.ErrConcurrencyConflict) {
		t.Errorf("Expected concurrency conflict after exhausted retries, got %v", err)
	}
}
