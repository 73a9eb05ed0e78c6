package eventsourcing

import (
	"encoding/json"
	"fmt"
	"sync"
)

// EventFactory создает пустой экземпляр конкретного типа события
type EventFactory func() Event

// EventRegistry реестр типов событий для десериализации из хранилища.
// Payload самоописывающийся (JSON с schema_version); неизвестные
// опциональные поля игнорируются при чтении, что допускает
// прямосовместимую эволюцию схемы.
type EventRegistry struct {
	mu        sync.RWMutex
	factories map[string]EventFactory
}

// NewEventRegistry создает новый реестр типов событий
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{
		factories: make(map[string]EventFactory),
	}
}

// Register регистрирует фабрику для типа события
func (r *EventRegistry) Register(eventType string, factory EventFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[eventType] = factory
}

// Deserialize восстанавливает событие из сериализованного payload
func (r *EventRegistry) Deserialize(eventType string, payload []byte) (Event, error) {
	r.mu.RLock()
	factory, ok := r.factories[eventType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to deserialize event %s: %w", eventType, err)
	}
	return event, nil
}

// Serialize сериализует событие в payload для хранения
func Serialize(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event %s: %w", event.EventType(), err)
	}
	return payload, nil
}
