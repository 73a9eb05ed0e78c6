package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
)

func newQueryFixture(t *testing.T) (*CommandHandler, *QueryHandler) {
	t.Helper()
	store := eventsourcing.NewInMemoryEventStore(eventsourcing.DefaultInMemoryEventStoreConfig())
	return NewCommandHandler(store), NewQueryHandler(store)
}

func TestQueryHandler_GetAccountByID(t *testing.T) {
	commands, queries := newQueryFixture(t)
	ctx := context.Background()

	created, err := commands.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(42),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	view, err := queries.GetAccountByID(ctx, created.AccountID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !view.Balance.Equal(decimal.NewFromInt(42)) {
		t.Errorf("Expected balance 42, got %s", view.Balance)
	}
	if view.Status != domain.StatusActive {
		t.Errorf("Expected ACTIVE, got %s", view.Status)
	}
}

func TestQueryHandler_GetAccountByID_NotFound(t *testing.T) {
	_, queries := newQueryFixture(t)

	_, err := queries.GetAccountByID(context.Background(), "missing")
	if !domain.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestQueryHandler_GetAccountByNumber(t *testing.T) {
	commands, queries := newQueryFixture(t)
	ctx := context.Background()

	created, err := commands.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:  "customer-1",
		AccountType: domain.TypeChecking,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	view, err := queries.GetAccountByNumber(ctx, created.AccountNumber)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if view.AccountID != created.AccountID {
		t.Errorf("Expected %s, got %s", created.AccountID, view.AccountID)
	}

	if _, err := queries.GetAccountByNumber(ctx, "ACC-19700101-000000"); !domain.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestQueryHandler_ListAccountsByCustomer(t *testing.T) {
	commands, queries := newQueryFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := commands.HandleCreateAccount(ctx, CreateAccountCommand{
			CustomerID:  "customer-1",
			AccountType: domain.TypeSavings,
			Currency:    "USD",
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	_, err := commands.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:  "customer-2",
		AccountType: domain.TypeSavings,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	views, err := queries.ListAccountsByCustomer(ctx, "customer-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(views) != 2 {
		t.Errorf("Expected 2 accounts, got %d", len(views))
	}

	empty, err := queries.ListAccountsByCustomer(ctx, "customer-3")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no accounts, got %d", len(empty))
	}
}

func TestQueryHandler_GetAccountHistory(t *testing.T) {
	commands, queries := newQueryFixture(t)
	ctx := context.Background()

	created, err := commands.HandleCreateAccount(ctx, CreateAccountCommand{
		CustomerID:     "customer-1",
		AccountType:    domain.TypeSavings,
		InitialDeposit: decimal.NewFromInt(10),
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	_, err = commands.HandleDepositMoney(ctx, DepositMoneyCommand{
		AccountID: created.AccountID,
		Amount:    decimal.NewFromInt(5),
		Currency:  "USD",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	history, err := queries.GetAccountHistory(ctx, created.AccountID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(history))
	}
	if history[0].EventType() != domain.EventTypeAccountCreated {
		t.Errorf("Expected AccountCreated first, got %s", history[0].EventType())
	}
	if history[2].EventType() != domain.EventTypeMoneyDeposited {
		t.Errorf("Expected MoneyDeposited last, got %s", history[2].EventType())
	}
}
