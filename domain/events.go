package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus статус банковского счета
type AccountStatus string

const (
	// StatusPending счет ожидает активации
	StatusPending AccountStatus = "PENDING"
	// StatusActive счет активен и доступен для операций
	StatusActive AccountStatus = "ACTIVE"
	// StatusFrozen счет временно заморожен
	StatusFrozen AccountStatus = "FROZEN"
	// StatusClosed счет закрыт навсегда
	StatusClosed AccountStatus = "CLOSED"
)

// IsValid проверяет корректность статуса
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusFrozen, StatusClosed:
		return true
	}
	return false
}

// AccountType тип банковского счета
type AccountType string

const (
	// TypeSavings сберегательный счет
	TypeSavings AccountType = "SAVINGS"
	// TypeChecking расчетный счет
	TypeChecking AccountType = "CHECKING"
	// TypeMoneyMarket счет денежного рынка
	TypeMoneyMarket AccountType = "MONEY_MARKET"
	// TypeCertificateOfDeposit депозитный сертификат
	TypeCertificateOfDeposit AccountType = "CERTIFICATE_OF_DEPOSIT"
)

// IsValid проверяет корректность типа счета
func (t AccountType) IsValid() bool {
	switch t {
	case TypeSavings, TypeChecking, TypeMoneyMarket, TypeCertificateOfDeposit:
		return true
	}
	return false
}

// Имена типов событий для сериализации
const (
	EventTypeAccountCreated       = "AccountCreated"
	EventTypeMoneyDeposited       = "MoneyDeposited"
	EventTypeMoneyWithdrawn       = "MoneyWithdrawn"
	EventTypeAccountStatusChanged = "AccountStatusChanged"
)

// AccountEvent закрытое множество доменных событий счета.
// События — неизменяемые факты; после записи они не обновляются и не удаляются.
type AccountEvent interface {
	// EventID возвращает уникальный идентификатор события
	EventID() string
	// EventType возвращает имя типа события
	EventType() string
	// AggregateID возвращает идентификатор счета
	AggregateID() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
	// SchemaVersion возвращает версию схемы события
	SchemaVersion() int

	isAccountEvent()
}

// BaseEvent общие поля всех событий счета
type BaseEvent struct {
	ID        string    `json:"event_id"`
	AccountID string    `json:"account_id"`
	Occurred  time.Time `json:"occurred_at"`
	Schema    int       `json:"schema_version"`
}

// NewBaseEvent создает базовое событие для счета
func NewBaseEvent(accountID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Occurred:  time.Now().UTC(),
		Schema:    1,
	}
}

// EventID возвращает уникальный идентификатор события
func (e BaseEvent) EventID() string { return e.ID }

// AggregateID возвращает идентификатор счета
func (e BaseEvent) AggregateID() string { return e.AccountID }

// OccurredAt возвращает время возникновения события
func (e BaseEvent) OccurredAt() time.Time { return e.Occurred }

// SchemaVersion возвращает версию схемы события
func (e BaseEvent) SchemaVersion() int { return e.Schema }

// AccountCreatedEvent событие создания счета
type AccountCreatedEvent struct {
	BaseEvent
	AccountNumber  string          `json:"account_number"`
	CustomerID     string          `json:"customer_id"`
	AccountType    AccountType     `json:"account_type"`
	Status         AccountStatus   `json:"status"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Currency       string          `json:"currency"`
}

// EventType возвращает имя типа события
func (e *AccountCreatedEvent) EventType() string { return EventTypeAccountCreated }

func (e *AccountCreatedEvent) isAccountEvent() {}

// MoneyDepositedEvent событие пополнения счета
type MoneyDepositedEvent struct {
	BaseEvent
	Amount               decimal.Decimal `json:"amount"`
	BalanceAfter         decimal.Decimal `json:"balance_after"`
	Description          string          `json:"description,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
}

// EventType возвращает имя типа события
func (e *MoneyDepositedEvent) EventType() string { return EventTypeMoneyDeposited }

func (e *MoneyDepositedEvent) isAccountEvent() {}

// MoneyWithdrawnEvent событие снятия средств
type MoneyWithdrawnEvent struct {
	BaseEvent
	Amount               decimal.Decimal `json:"amount"`
	BalanceAfter         decimal.Decimal `json:"balance_after"`
	Description          string          `json:"description,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
}

// EventType возвращает имя типа события
func (e *MoneyWithdrawnEvent) EventType() string { return EventTypeMoneyWithdrawn }

func (e *MoneyWithdrawnEvent) isAccountEvent() {}

// AccountStatusChangedEvent событие смены статуса счета
type AccountStatusChangedEvent struct {
	BaseEvent
	PreviousStatus AccountStatus `json:"previous_status"`
	NewStatus      AccountStatus `json:"new_status"`
	Reason         string        `json:"reason,omitempty"`
}

// EventType возвращает имя типа события
func (e *AccountStatusChangedEvent) EventType() string { return EventTypeAccountStatusChanged }

func (e *AccountStatusChangedEvent) isAccountEvent() {}
