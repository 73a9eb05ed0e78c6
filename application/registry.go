package application

import (
	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
)

// NewAccountEventRegistry возвращает реестр с фабриками всех событий счета
func NewAccountEventRegistry() *eventsourcing.EventRegistry {
	registry := eventsourcing.NewEventRegistry()
	registry.Register(domain.EventTypeAccountCreated, func() eventsourcing.Event {
		return &domain.AccountCreatedEvent{}
	})
	registry.Register(domain.EventTypeMoneyDeposited, func() eventsourcing.Event {
		return &domain.MoneyDepositedEvent{}
	})
	registry.Register(domain.EventTypeMoneyWithdrawn, func() eventsourcing.Event {
		return &domain.MoneyWithdrawnEvent{}
	})
	registry.Register(domain.EventTypeAccountStatusChanged, func() eventsourcing.Event {
		return &domain.AccountStatusChangedEvent{}
	})
	return registry
}
