// Package application реализует command и query обработчики сервиса счетов
// поверх event store.
package application

import (
	"github.com/shopspring/decimal"

	"github.com/mayorajesus182/vaultstream-banking/domain"
)

// Имена команд для логирования и метрик
const (
	CommandCreateAccount = "CreateAccount"
	CommandActivate      = "ActivateAccount"
	CommandDeposit       = "DepositMoney"
	CommandWithdraw      = "WithdrawMoney"
	CommandFreeze        = "FreezeAccount"
	CommandClose         = "CloseAccount"
)

// CreateAccountCommand команда открытия нового счета
type CreateAccountCommand struct {
	CustomerID     string             `json:"customer_id"`
	AccountType    domain.AccountType `json:"account_type"`
	InitialDeposit decimal.Decimal    `json:"initial_deposit"`
	Currency       string             `json:"currency"`
}

// Validate проверяет корректность команды
func (c CreateAccountCommand) Validate() error {
	if c.CustomerID == "" {
		return domain.RuleViolation("customer id cannot be empty")
	}
	if !c.AccountType.IsValid() {
		return domain.RuleViolation("unknown account type: %s", c.AccountType)
	}
	if c.Currency == "" {
		return domain.RuleViolation("currency cannot be empty")
	}
	if c.InitialDeposit.IsNegative() {
		return domain.RuleViolation("initial deposit cannot be negative: %s", c.InitialDeposit)
	}
	return nil
}

// DepositMoneyCommand команда пополнения счета
type DepositMoneyCommand struct {
	AccountID            string          `json:"account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Description          string          `json:"description,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
}

// Validate проверяет корректность команды
func (c DepositMoneyCommand) Validate() error {
	return validateMoneyCommand(c.AccountID, c.Currency)
}

// WithdrawMoneyCommand команда снятия средств
type WithdrawMoneyCommand struct {
	AccountID            string          `json:"account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Description          string          `json:"description,omitempty"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
}

// Validate проверяет корректность команды
func (c WithdrawMoneyCommand) Validate() error {
	return validateMoneyCommand(c.AccountID, c.Currency)
}

// ActivateAccountCommand команда активации счета
type ActivateAccountCommand struct {
	AccountID string `json:"account_id"`
}

// Validate проверяет корректность команды
func (c ActivateAccountCommand) Validate() error {
	if c.AccountID == "" {
		return domain.RuleViolation("account id cannot be empty")
	}
	return nil
}

// FreezeAccountCommand команда заморозки счета
type FreezeAccountCommand struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason,omitempty"`
}

// Validate проверяет корректность команды
func (c FreezeAccountCommand) Validate() error {
	if c.AccountID == "" {
		return domain.RuleViolation("account id cannot be empty")
	}
	return nil
}

// CloseAccountCommand команда закрытия счета
type CloseAccountCommand struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason,omitempty"`
}

// Validate проверяет корректность команды
func (c CloseAccountCommand) Validate() error {
	if c.AccountID == "" {
		return domain.RuleViolation("account id cannot be empty")
	}
	return nil
}

func validateMoneyCommand(accountID, currencyCode string) error {
	if accountID == "" {
		return domain.RuleViolation("account id cannot be empty")
	}
	if currencyCode == "" {
		return domain.RuleViolation("currency cannot be empty")
	}
	return nil
}

// commandMoney собирает Money из суммы и валюты команды
func commandMoney(amount decimal.Decimal, currencyCode string) (domain.Money, error) {
	money, err := domain.NewMoney(amount, currencyCode)
	if err != nil {
		return domain.Money{}, domain.RuleViolation("invalid amount: %v", err)
	}
	return money, nil
}
