package eventsourcing

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func newMongoTestStore(t *testing.T) *MongoDBEventStore {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI is not set, skipping mongodb integration test")
	}

	config := DefaultMongoDBEventStoreConfig()
	config.URI = uri
	config.Database = "vaultstream_test"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewMongoDBEventStore(ctx, config, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.events.Drop(cleanupCtx)
		_ = store.index.Drop(cleanupCtx)
		_ = store.Close(cleanupCtx)
	})
	return store
}

func TestMongoDBEventStore_AppendEvents_IndexConflictLeavesNoEvents(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	entry := IndexEntry{Name: IndexAccountNumber, Key: "ACC-20260901-000001", Unique: true}
	if err := store.AppendEvents(ctx, "agg-1", 0, []Event{newMockEvent("test.event", "agg-1")}, entry); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err := store.AppendEvents(ctx, "agg-2", 0, []Event{newMockEvent("test.event", "agg-2")}, entry)
	if !errors.Is(err, ErrDuplicateIndexKey) {
		t.Fatalf("Expected ErrDuplicateIndexKey, got %v", err)
	}

	// Транзакция откатилась целиком: у проигравшего нет ни событий, ни индекса
	if _, err := store.GetEvents(ctx, "agg-2", 0); !errors.Is(err, ErrStreamNotFound) {
		t.Errorf("Expected ErrStreamNotFound for rejected stream, got %v", err)
	}
	version, err := store.CurrentVersion(ctx, "agg-2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if version != 0 {
		t.Errorf("Expected version 0 for rejected stream, got %d", version)
	}

	id, err := store.Lookup(ctx, IndexAccountNumber, "ACC-20260901-000001")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if id != "agg-1" {
		t.Errorf("Expected agg-1 to keep the number, got %s", id)
	}
}

func TestMongoDBEventStore_AppendEvents_StaleVersionRejected(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := context.Background()

	if err := store.AppendEvents(ctx, "agg-1", 0, []Event{newMockEvent("test.event", "agg-1")}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err := store.AppendEvents(ctx, "agg-1", 0, []Event{newMockEvent("test.event", "agg-1")})
	if !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("Expected concurrency conflict, got %v", err)
	}

	version, err := store.CurrentVersion(ctx, "agg-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1 after rejected append, got %d", version)
	}
}
