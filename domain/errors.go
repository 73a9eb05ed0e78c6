package domain

import (
	"errors"
	"fmt"
)

// Коды доменных ошибок
const (
	CodeBusinessRuleViolation   = "BUSINESS_RULE_VIOLATION"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeInsufficientFunds       = "INSUFFICIENT_FUNDS"
	CodeNotFound                = "NOT_FOUND"
)

// DomainError доменная ошибка с машиночитаемым кодом
type DomainError struct {
	Code    string
	Message string
}

// Error реализует интерфейс error
func (e *DomainError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is проверяет соответствие ошибки по коду
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewDomainError создает новую доменную ошибку
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Сентинелы для errors.Is; конкретные ошибки несут тот же код
var (
	ErrRuleViolation     = NewDomainError(CodeBusinessRuleViolation, "business rule violation")
	ErrInsufficientFunds = NewDomainError(CodeInsufficientFunds, "insufficient funds")
	ErrAccountNotFound   = NewDomainError(CodeNotFound, "account not found")
)

// RuleViolation создает ошибку нарушения бизнес-правила
func RuleViolation(format string, args ...interface{}) *DomainError {
	return NewDomainError(CodeBusinessRuleViolation, fmt.Sprintf(format, args...))
}

// StatusTransitionError ошибка недопустимого перехода статуса счета
type StatusTransitionError struct {
	From AccountStatus
	To   AccountStatus
}

// Error реализует интерфейс error
func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("[%s] invalid status transition from %s to %s", CodeInvalidStatusTransition, e.From, e.To)
}

// Is проверяет соответствие ошибки по коду
func (e *StatusTransitionError) Is(target error) bool {
	if _, ok := target.(*StatusTransitionError); ok {
		return true
	}
	if t, ok := target.(*DomainError); ok {
		return t.Code == CodeInvalidStatusTransition
	}
	return false
}

// IsRuleViolation сообщает, является ли ошибка отказом доменного правила
// (в отличие от инфраструктурных сбоев и конфликтов версий)
func IsRuleViolation(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code != CodeNotFound
	}
	var ste *StatusTransitionError
	return errors.As(err, &ste)
}

// IsNotFound сообщает, что агрегат не найден
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}
