package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"

	Monthly Frequency = "monthly"
	Weekly  Frequency = "weekly"
)

// Categories is the fixed set a transaction or rule may carry.
var Categories = []Category{
	"Food", "Transport", "Bills", "Entertainment",
	"Shopping", "Health", "Salary", "Other",
}

type (
	TransactionType string
	Frequency       string
	Category        string

	// Transaction is an actual, persisted record. Amounts are always
	// positive; the expense/income sign is carried by Type.
	Transaction struct {
		ID          string
		UserID      string
		Amount      decimal.Decimal
		Description string
		Category    Category
		Type        TransactionType
		Notes       string
		Tags        []string
		ReceiptPath string
		CreatedAt   time.Time
	}

	// RecurringRule is a user-defined recurring payment/income template.
	// Exactly one of DayOfMonth/DayOfWeek is meaningful, matching Frequency.
	RecurringRule struct {
		ID          string
		UserID      string
		Amount      decimal.Decimal
		Description string
		Category    Category
		Type        TransactionType
		Frequency   Frequency
		DayOfMonth  *int // 1-31, monthly rules only
		DayOfWeek   *int // 0-6, 0 = Sunday, weekly rules only
		Active      bool
		StartDate   time.Time // zero when the rule has no start bound
		CreatedAt   time.Time
	}

	// Profile holds owner-scoped settings used by the dashboard.
	Profile struct {
		UserID         string
		MonthlySalary  decimal.Decimal
		TelegramChatID int64
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDay       = errors.New("invalid day")
)

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func validateCommon(amount decimal.Decimal, description string, category Category, typ TransactionType) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(description)) == 0 {
		return ErrEmptyDescription
	}
	if len(description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !ValidCategory(category) {
		return ErrInvalidCategory
	}
	if !typ.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	return validateCommon(t.Amount, t.Description, t.Category, t.Type)
}

// Validate enforces the frequency/day-field pairing at rule creation time.
// The aggregation engine assumes rules passed this check and silently skips
// any that did not.
func (r RecurringRule) Validate() error {
	if err := validateCommon(r.Amount, r.Description, r.Category, r.Type); err != nil {
		return err
	}
	switch r.Frequency {
	case Monthly:
		if r.DayOfMonth == nil || *r.DayOfMonth < 1 || *r.DayOfMonth > 31 {
			return ErrInvalidDay
		}
	case Weekly:
		if r.DayOfWeek == nil || *r.DayOfWeek < 0 || *r.DayOfWeek > 6 {
			return ErrInvalidDay
		}
	default:
		return ErrInvalidFrequency
	}
	return nil
}
