package eventsourcing

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryEventStoreConfig конфигурация для InMemory Event Store
type InMemoryEventStoreConfig struct {
	AggregateType      string
	MaxEventsPerStream int64
}

// DefaultInMemoryEventStoreConfig возвращает конфигурацию по умолчанию
func DefaultInMemoryEventStoreConfig() InMemoryEventStoreConfig {
	return InMemoryEventStoreConfig{
		AggregateType:      "Account",
		MaxEventsPerStream: 10000,
	}
}

// InMemoryEventStore реализация EventStore в памяти для тестов и разработки.
// Проверка версии и запись выполняются под одной блокировкой, поэтому
// append атомарен: конкурирующие писатели с одинаковой ожидаемой версией
// получают ровно один успех.
type InMemoryEventStore struct {
	mu      sync.RWMutex
	streams map[string][]StoredEvent
	indexes map[string]map[string][]string // name -> key -> aggregate ids
	config  InMemoryEventStoreConfig
}

// NewInMemoryEventStore создает новый InMemory Event Store
func NewInMemoryEventStore(config InMemoryEventStoreConfig) *InMemoryEventStore {
	return &InMemoryEventStore{
		streams: make(map[string][]StoredEvent),
		indexes: make(map[string]map[string][]string),
		config:  config,
	}
}

// AppendEvents добавляет события в поток агрегата
func (s *InMemoryEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []Event, entries ...IndexEntry) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	currentVersion := int64(len(stream))

	if expectedVersion != currentVersion {
		return &ConcurrencyError{AggregateID: aggregateID, Expected: expectedVersion, Actual: currentVersion}
	}

	if s.config.MaxEventsPerStream > 0 && currentVersion+int64(len(events)) > s.config.MaxEventsPerStream {
		return fmt.Errorf("max events per stream exceeded: %d (limit: %d)",
			currentVersion+int64(len(events)), s.config.MaxEventsPerStream)
	}

	// Проверяем уникальные индексы до записи: всё или ничего
	for _, entry := range entries {
		if !entry.Unique {
			continue
		}
		if ids := s.indexes[entry.Name][entry.Key]; len(ids) > 0 {
			return fmt.Errorf("%w: %s=%s", ErrDuplicateIndexKey, entry.Name, entry.Key)
		}
	}

	for i, event := range events {
		payload, err := Serialize(event)
		if err != nil {
			return err
		}
		stream = append(stream, StoredEvent{
			ID:            event.EventID(),
			AggregateID:   aggregateID,
			AggregateType: s.config.AggregateType,
			EventType:     event.EventType(),
			SchemaVersion: event.SchemaVersion(),
			Version:       expectedVersion + int64(i) + 1,
			Payload:       payload,
			Event:         event,
			OccurredAt:    event.OccurredAt(),
			CreatedAt:     time.Now().UTC(),
		})
	}
	s.streams[aggregateID] = stream

	for _, entry := range entries {
		byKey, ok := s.indexes[entry.Name]
		if !ok {
			byKey = make(map[string][]string)
			s.indexes[entry.Name] = byKey
		}
		byKey[entry.Key] = append(byKey[entry.Key], aggregateID)
	}

	return nil
}

// GetEvents возвращает события агрегата начиная с указанной версии
func (s *InMemoryEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, exists := s.streams[aggregateID]
	if !exists {
		return nil, ErrStreamNotFound
	}

	var result []StoredEvent
	for _, event := range stream {
		if event.Version >= fromVersion {
			result = append(result, event)
		}
	}
	return result, nil
}

// CurrentVersion возвращает наибольшую сохраненную версию агрегата
func (s *InMemoryEventStore) CurrentVersion(ctx context.Context, aggregateID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.streams[aggregateID])), nil
}

// Lookup возвращает aggregate id по ключу уникального индекса
func (s *InMemoryEventStore) Lookup(ctx context.Context, name, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.indexes[name][key]
	if len(ids) == 0 {
		return "", ErrIndexEntryNotFound
	}
	return ids[0], nil
}

// LookupAll возвращает все aggregate id по ключу индекса
func (s *InMemoryEventStore) LookupAll(ctx context.Context, name, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.indexes[name][key]
	result := make([]string, len(ids))
	copy(result, ids)
	return result, nil
}

// Clear очищает все события и индексы (для тестов)
func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]StoredEvent)
	s.indexes = make(map[string]map[string][]string)
}
