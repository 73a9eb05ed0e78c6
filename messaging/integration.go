// Package messaging связывает сервис счетов с message bus: публикация
// интеграционных событий и потребление событий смежных сервисов.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mayorajesus182/vaultstream-banking/domain"
)

// Subjects интеграционных событий
const (
	// SubjectAccountEvents subject исходящих событий счета
	SubjectAccountEvents = "vaultstream.account.events"
	// SubjectCustomerEvents subject входящих событий клиентского сервиса
	SubjectCustomerEvents = "vaultstream.customer.events"
)

// IntegrationEvent конверт интеграционного события: метаданные плюс
// исходный payload доменного события
type IntegrationEvent struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// NewIntegrationEvent оборачивает доменное событие в интеграционный конверт
func NewIntegrationEvent(event domain.AccountEvent) (*IntegrationEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	return &IntegrationEvent{
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		SchemaVersion: event.SchemaVersion(),
		Payload:       payload,
	}, nil
}
