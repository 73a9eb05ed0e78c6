// Package eventsourcing предоставляет append-only хранилище событий
// с оптимистичной конкурентностью и восстановлением агрегатов через replay.
package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConcurrencyConflict возникает при конфликте версий при сохранении событий
	ErrConcurrencyConflict = errors.New("concurrency conflict: expected version does not match current version")
	// ErrStreamNotFound возникает когда поток событий агрегата не найден
	ErrStreamNotFound = errors.New("event stream not found")
	// ErrInvalidVersion возникает при некорректной ожидаемой версии
	ErrInvalidVersion = errors.New("invalid expected version")
	// ErrStorageFailure возникает при инфраструктурном сбое хранилища
	ErrStorageFailure = errors.New("event store storage failure")
	// ErrDuplicateIndexKey возникает при нарушении уникальности вторичного индекса
	ErrDuplicateIndexKey = errors.New("duplicate index key")
	// ErrIndexEntryNotFound возникает когда запись вторичного индекса не найдена
	ErrIndexEntryNotFound = errors.New("index entry not found")
)

// ConcurrencyError детализированный конфликт версий для reload-and-retry
type ConcurrencyError struct {
	AggregateID string
	Expected    int64
	Actual      int64
}

// Error реализует интерфейс error
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict for aggregate %s: expected version %d, actual %d",
		e.AggregateID, e.Expected, e.Actual)
}

// Is позволяет errors.Is(err, ErrConcurrencyConflict)
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// StorageError инфраструктурный сбой хранилища; фатален для запроса,
// автоматически не повторяется
type StorageError struct {
	Op  string
	Err error
}

// Error реализует интерфейс error
func (e *StorageError) Error() string {
	return fmt.Sprintf("event store: %s: %v", e.Op, e.Err)
}

// Unwrap возвращает причину ошибки
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is позволяет errors.Is(err, ErrStorageFailure)
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// Event доменное событие, пригодное для записи в хранилище
type Event interface {
	// EventID возвращает уникальный идентификатор события
	EventID() string
	// EventType возвращает имя типа события
	EventType() string
	// AggregateID возвращает идентификатор агрегата
	AggregateID() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
	// SchemaVersion возвращает версию схемы события
	SchemaVersion() int
}

// StoredEvent сохраненное событие с метаданными хранилища
type StoredEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	SchemaVersion int
	Version       int64
	Payload       []byte
	Event         Event
	OccurredAt    time.Time
	CreatedAt     time.Time
}

// IndexEntry запись вторичного индекса, записываемая в одной транзакции
// с добавляемыми событиями (например account_number -> aggregate id)
type IndexEntry struct {
	Name   string
	Key    string
	Unique bool
}

// Индексы счета
const (
	IndexAccountNumber = "account_number"
	IndexCustomerID    = "customer_id"
)

// EventStore интерфейс append-only хранилища событий.
// Для каждого агрегата множество сохраненных версий — ровно {1..N},
// без дубликатов и пропусков.
type EventStore interface {
	// AppendEvents атомарно добавляет события в поток агрегата, присваивая
	// версии expectedVersion+1..expectedVersion+len(events); при несовпадении
	// ожидаемой версии с текущей возвращает ConcurrencyError и не пишет ничего.
	// Записи индекса сохраняются в той же единице работы.
	AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []Event, entries ...IndexEntry) error

	// GetEvents возвращает события агрегата начиная с указанной версии,
	// упорядоченные по возрастанию версии
	GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error)

	// CurrentVersion возвращает наибольшую сохраненную версию агрегата, 0 если событий нет
	CurrentVersion(ctx context.Context, aggregateID string) (int64, error)
}

// AggregateIndex доступ на чтение к вторичному индексу
type AggregateIndex interface {
	// Lookup возвращает aggregate id по ключу уникального индекса
	Lookup(ctx context.Context, name, key string) (string, error)
	// LookupAll возвращает все aggregate id по ключу неуникального индекса
	LookupAll(ctx context.Context, name, key string) ([]string, error)
}

// IndexedEventStore хранилище с поддержкой вторичного индекса
type IndexedEventStore interface {
	EventStore
	AggregateIndex
}
