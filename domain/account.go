package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Account Event Sourced агрегат банковского счета.
// Состояние выводится исключительно применением доменных событий;
// операции проверяют бизнес-правила и добавляют новые события
// в буфер несохраненных. Персистентность — забота command handler'а.
type Account struct {
	id            string
	accountNumber string
	customerID    string
	balance       Money
	accountType   AccountType
	status        AccountStatus
	createdAt     time.Time
	updatedAt     time.Time
	version       int64

	uncommitted []AccountEvent
}

// CreateAccount фабрика нового счета: единственное событие AccountCreated
// со статусом PENDING. Активация профинансированного счета — отдельная
// операция на стороне вызывающего.
func CreateAccount(accountNumber, customerID string, accountType AccountType, initialBalance Money) (*Account, error) {
	if accountNumber == "" {
		return nil, RuleViolation("account number cannot be empty")
	}
	if customerID == "" {
		return nil, RuleViolation("customer id cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, RuleViolation("unknown account type: %s", accountType)
	}
	if initialBalance.IsNegative() {
		return nil, RuleViolation("initial balance cannot be negative: %s", initialBalance)
	}

	account := &Account{}
	event := &AccountCreatedEvent{
		BaseEvent:      NewBaseEvent(uuid.NewString()),
		AccountNumber:  accountNumber,
		CustomerID:     customerID,
		AccountType:    accountType,
		Status:         StatusPending,
		InitialBalance: initialBalance.Amount,
		Currency:       initialBalance.Currency,
	}
	if err := account.raise(event); err != nil {
		return nil, err
	}
	return account, nil
}

// FromHistory восстанавливает счет из истории событий (чистый fold).
// События применяются в порядке возрастания версии; повторное применение
// той же последовательности к пустому состоянию детерминированно дает
// то же итоговое состояние.
func FromHistory(events []AccountEvent) (*Account, error) {
	if len(events) == 0 {
		return nil, ErrAccountNotFound
	}
	account := &Account{}
	for i, event := range events {
		if err := account.apply(event); err != nil {
			return nil, fmt.Errorf("failed to apply event at index %d: %w", i, err)
		}
		account.version++
	}
	return account, nil
}

// Activate активирует счет
func (a *Account) Activate() error {
	if err := a.validateStatusTransition(StatusActive); err != nil {
		return err
	}
	return a.raise(&AccountStatusChangedEvent{
		BaseEvent:      NewBaseEvent(a.id),
		PreviousStatus: a.status,
		NewStatus:      StatusActive,
		Reason:         "Account activated",
	})
}

// Deposit пополняет счет
func (a *Account) Deposit(amount Money, description, transactionRef string) error {
	if err := a.validateActive(); err != nil {
		return err
	}
	if err := a.validatePositive(amount); err != nil {
		return err
	}
	if err := a.validateCurrency(amount); err != nil {
		return err
	}

	newBalance := a.balance.Add(amount)
	return a.raise(&MoneyDepositedEvent{
		BaseEvent:            NewBaseEvent(a.id),
		Amount:               amount.Amount,
		BalanceAfter:         newBalance.Amount,
		Description:          description,
		TransactionReference: transactionRef,
	})
}

// Withdraw снимает средства со счета
func (a *Account) Withdraw(amount Money, description, transactionRef string) error {
	if err := a.validateActive(); err != nil {
		return err
	}
	if err := a.validatePositive(amount); err != nil {
		return err
	}
	if err := a.validateCurrency(amount); err != nil {
		return err
	}
	if !a.balance.GreaterThanOrEqual(amount) {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, a.balance, amount)
	}

	newBalance := a.balance.Subtract(amount)
	return a.raise(&MoneyWithdrawnEvent{
		BaseEvent:            NewBaseEvent(a.id),
		Amount:               amount.Amount,
		BalanceAfter:         newBalance.Amount,
		Description:          description,
		TransactionReference: transactionRef,
	})
}

// Freeze замораживает счет
func (a *Account) Freeze(reason string) error {
	if err := a.validateStatusTransition(StatusFrozen); err != nil {
		return err
	}
	return a.raise(&AccountStatusChangedEvent{
		BaseEvent:      NewBaseEvent(a.id),
		PreviousStatus: a.status,
		NewStatus:      StatusFrozen,
		Reason:         reason,
	})
}

// Close закрывает счет; статус CLOSED терминальный
func (a *Account) Close(reason string) error {
	if a.status == StatusClosed {
		return &StatusTransitionError{From: a.status, To: StatusClosed}
	}
	if !a.balance.IsZero() {
		return RuleViolation("cannot close account with non-zero balance: %s", a.balance)
	}
	return a.raise(&AccountStatusChangedEvent{
		BaseEvent:      NewBaseEvent(a.id),
		PreviousStatus: a.status,
		NewStatus:      StatusClosed,
		Reason:         reason,
	})
}

// UncommittedEvents возвращает несохраненные события
func (a *Account) UncommittedEvents() []AccountEvent {
	return a.uncommitted
}

// MarkEventsAsCommitted очищает буфер несохраненных событий после записи
func (a *Account) MarkEventsAsCommitted() {
	a.uncommitted = nil
}

// ID возвращает идентификатор счета
func (a *Account) ID() string { return a.id }

// AccountNumber возвращает номер счета
func (a *Account) AccountNumber() string { return a.accountNumber }

// CustomerID возвращает идентификатор клиента
func (a *Account) CustomerID() string { return a.customerID }

// Balance возвращает текущий баланс
func (a *Account) Balance() Money { return a.balance }

// Type возвращает тип счета
func (a *Account) Type() AccountType { return a.accountType }

// Status возвращает текущий статус счета
func (a *Account) Status() AccountStatus { return a.status }

// CreatedAt возвращает время создания счета
func (a *Account) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt возвращает время последнего изменения
func (a *Account) UpdatedAt() time.Time { return a.updatedAt }

// Version возвращает число примененных событий
func (a *Account) Version() int64 { return a.version }

// raise применяет событие и добавляет его в буфер несохраненных
func (a *Account) raise(event AccountEvent) error {
	if err := a.apply(event); err != nil {
		return err
	}
	a.version++
	a.uncommitted = append(a.uncommitted, event)
	return nil
}

// apply чистая функция (state, event) -> state; обязана обрабатывать
// каждый вариант закрытого множества событий
func (a *Account) apply(event AccountEvent) error {
	switch e := event.(type) {
	case *AccountCreatedEvent:
		a.id = e.AccountID
		a.accountNumber = e.AccountNumber
		a.customerID = e.CustomerID
		a.accountType = e.AccountType
		a.status = e.Status
		a.balance = Money{Amount: e.InitialBalance, Currency: e.Currency}
		a.createdAt = e.Occurred
	case *MoneyDepositedEvent:
		a.balance = Money{Amount: e.BalanceAfter, Currency: a.balance.Currency}
	case *MoneyWithdrawnEvent:
		a.balance = Money{Amount: e.BalanceAfter, Currency: a.balance.Currency}
	case *AccountStatusChangedEvent:
		a.status = e.NewStatus
	default:
		return fmt.Errorf("unknown event type: %T", event)
	}
	a.updatedAt = event.OccurredAt()
	return nil
}

func (a *Account) validateActive() error {
	if a.status != StatusActive {
		return RuleViolation("account is not active, current status: %s", a.status)
	}
	return nil
}

func (a *Account) validatePositive(amount Money) error {
	if !amount.IsPositive() {
		return RuleViolation("amount must be positive: %s", amount)
	}
	return nil
}

func (a *Account) validateCurrency(amount Money) error {
	if !amount.SameCurrency(a.balance) {
		return RuleViolation("currency mismatch: account %s, amount %s", a.balance.Currency, amount.Currency)
	}
	return nil
}

func (a *Account) validateStatusTransition(target AccountStatus) error {
	if a.status == StatusClosed || a.status == target {
		return &StatusTransitionError{From: a.status, To: target}
	}
	return nil
}
