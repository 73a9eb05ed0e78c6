package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mayorajesus182/vaultstream-banking/domain"
)

// AccountView плоская проекция состояния счета для чтения
type AccountView struct {
	AccountID     string               `json:"account_id"`
	AccountNumber string               `json:"account_number"`
	CustomerID    string               `json:"customer_id"`
	Balance       decimal.Decimal      `json:"balance"`
	Currency      string               `json:"currency"`
	AccountType   domain.AccountType   `json:"account_type"`
	Status        domain.AccountStatus `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Version       int64                `json:"version"`
}

// NewAccountView строит проекцию из агрегата
func NewAccountView(account *domain.Account) *AccountView {
	return &AccountView{
		AccountID:     account.ID(),
		AccountNumber: account.AccountNumber(),
		CustomerID:    account.CustomerID(),
		Balance:       account.Balance().Amount,
		Currency:      account.Balance().Currency,
		AccountType:   account.Type(),
		Status:        account.Status(),
		CreatedAt:     account.CreatedAt(),
		UpdatedAt:     account.UpdatedAt(),
		Version:       account.Version(),
	}
}
