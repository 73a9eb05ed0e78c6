package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mayorajesus182/vaultstream-banking/application"
	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
	"github.com/mayorajesus182/vaultstream-banking/messagebus"
)

func customerActivatedMessage(t *testing.T, eventID, customerID string) *messagebus.Message {
	t.Helper()
	payload, err := json.Marshal(CustomerActivatedPayload{CustomerID: customerID})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	data, err := json.Marshal(IntegrationEvent{
		EventID:       eventID,
		EventType:     EventTypeCustomerActivated,
		AggregateID:   customerID,
		OccurredAt:    time.Now().UTC(),
		SchemaVersion: 1,
		Payload:       payload,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return &messagebus.Message{Subject: SubjectCustomerEvents, Data: data}
}

func newConsumerFixture(t *testing.T) (*CustomerEventConsumer, *application.QueryHandler) {
	t.Helper()
	store := eventsourcing.NewInMemoryEventStore(eventsourcing.DefaultInMemoryEventStoreConfig())
	commands := application.NewCommandHandler(store)
	queries := application.NewQueryHandler(store)

	consumer, err := NewCustomerEventConsumer(commands, NewInMemoryIdempotencyStore(), DefaultCustomerEventConsumerConfig())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return consumer, queries
}

func TestCustomerEventConsumer_CreatesDefaultAccount(t *testing.T) {
	consumer, queries := newConsumerFixture(t)
	ctx := context.Background()

	msg := customerActivatedMessage(t, "evt-1", "customer-1")
	if err := consumer.Handle(ctx, msg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	views, err := queries.ListAccountsByCustomer(ctx, "customer-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("Expected 1 account, got %d", len(views))
	}
	if views[0].AccountType != domain.TypeSavings {
		t.Errorf("Expected SAVINGS, got %s", views[0].AccountType)
	}
	if views[0].Status != domain.StatusPending {
		t.Errorf("Expected PENDING for zero-balance account, got %s", views[0].Status)
	}
	if !views[0].Balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", views[0].Balance)
	}
	if views[0].Currency != "USD" {
		t.Errorf("Expected USD, got %s", views[0].Currency)
	}
}

func TestCustomerEventConsumer_DuplicateDeliveryIgnored(t *testing.T) {
	consumer, queries := newConsumerFixture(t)
	ctx := context.Background()

	msg := customerActivatedMessage(t, "evt-1", "customer-1")
	if err := consumer.Handle(ctx, msg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := consumer.Handle(ctx, msg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	views, err := queries.ListAccountsByCustomer(ctx, "customer-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(views) != 1 {
		t.Errorf("Expected 1 account after duplicate delivery, got %d", len(views))
	}
}

type brokenStore struct {
	eventsourcing.IndexedEventStore
}

func (s *brokenStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []eventsourcing.Event, entries ...eventsourcing.IndexEntry) error {
	return &eventsourcing.StorageError{Op: "append events", Err: errors.New("connection refused")}
}

func TestCustomerEventConsumer_TransientFailureNotReturnedToBus(t *testing.T) {
	store := &brokenStore{IndexedEventStore: eventsourcing.NewInMemoryEventStore(eventsourcing.DefaultInMemoryEventStoreConfig())}
	commands := application.NewCommandHandler(store)
	queries := application.NewQueryHandler(store)

	consumer, err := NewCustomerEventConsumer(commands, NewInMemoryIdempotencyStore(), DefaultCustomerEventConsumerConfig())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	ctx := context.Background()

	// Доставка помечена обработанной до команды, повтор бессмыслен
	msg := customerActivatedMessage(t, "evt-1", "customer-1")
	if err := consumer.Handle(ctx, msg); err != nil {
		t.Errorf("Expected storage failure to be swallowed, got %v", err)
	}

	views, err := queries.ListAccountsByCustomer(ctx, "customer-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(views) != 0 {
		t.Errorf("Expected no accounts after failed create, got %d", len(views))
	}
}

func TestCustomerEventConsumer_IgnoresOtherEventTypes(t *testing.T) {
	consumer, queries := newConsumerFixture(t)
	ctx := context.Background()

	data, err := json.Marshal(IntegrationEvent{
		EventID:   "evt-2",
		EventType: "CustomerSuspended",
		Payload:   json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := consumer.Handle(ctx, &messagebus.Message{Subject: SubjectCustomerEvents, Data: data}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	views, err := queries.ListAccountsByCustomer(ctx, "customer-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(views) != 0 {
		t.Errorf("Expected no accounts, got %d", len(views))
	}
}

func TestCustomerEventConsumer_MalformedMessageIgnored(t *testing.T) {
	consumer, _ := newConsumerFixture(t)

	err := consumer.Handle(context.Background(), &messagebus.Message{
		Subject: SubjectCustomerEvents,
		Data:    []byte("not json"),
	})
	if err != nil {
		t.Errorf("Expected malformed message to be dropped, got %v", err)
	}
}

func TestPublisher_PublishesEnvelope(t *testing.T) {
	bus := messagebus.NewInMemoryAdapter(messagebus.DefaultInMemoryConfig())
	ctx := context.Background()
	if err := bus.Start(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	publisher, err := NewPublisher(bus, DefaultPublisherConfig())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	event := &domain.AccountStatusChangedEvent{
		BaseEvent:      domain.NewBaseEvent("account-1"),
		PreviousStatus: domain.StatusPending,
		NewStatus:      domain.StatusActive,
	}
	if err := publisher.PublishAccountEvent(ctx, event); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	published := bus.Published()
	if len(published) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(published))
	}
	if published[0].Subject != SubjectAccountEvents {
		t.Errorf("Expected subject %s, got %s", SubjectAccountEvents, published[0].Subject)
	}

	var envelope IntegrationEvent
	if err := json.Unmarshal(published[0].Data, &envelope); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if envelope.EventType != domain.EventTypeAccountStatusChanged {
		t.Errorf("Expected AccountStatusChanged, got %s", envelope.EventType)
	}
	if envelope.AggregateID != "account-1" {
		t.Errorf("Expected account-1, got %s", envelope.AggregateID)
	}
}
