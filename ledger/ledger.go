package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitType is the closed set of algorithms for dividing an expense's
// amount among its participants. Anything outside this set is rejected
// by CalculateShares.
type SplitType string

const (
	SplitTypeEqual      SplitType = "equal"
	SplitTypePercentage SplitType = "percentage"
	SplitTypeExact      SplitType = "exact"
	SplitTypeShares     SplitType = "shares"
	SplitTypeAdjustment SplitType = "adjustment"
)

func (s SplitType) Valid() bool {
	switch s {
	case SplitTypeEqual, SplitTypePercentage, SplitTypeExact, SplitTypeShares, SplitTypeAdjustment:
		return true
	}
	return false
}

// Expense is an append-only fact: once persisted it is only ever
// soft-deleted, never mutated. Amount is a 2dp currency value that the
// Shares fully distribute.
type Expense struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     uuid.NullUUID   `json:"group_id,omitzero"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	PaidBy      uuid.UUID       `json:"paid_by"`
	SplitType   SplitType       `json:"split_type"`
	CreatedAt   time.Time       `json:"created_at"`
	DeletedAt   *time.Time      `json:"-"`
	Shares      []ExpenseShare  `json:"shares,omitempty"`
}

// ExpenseShare is one participant's portion of an expense. Percentage,
// ShareCount, ExactAmount and Adjustment are the raw split inputs kept
// for provenance; AmountOwed is the canonical value every consumer uses.
type ExpenseShare struct {
	ExpenseID   uuid.UUID           `json:"expense_id"`
	UserID      uuid.UUID           `json:"user_id"`
	SplitType   SplitType           `json:"split_type"`
	Percentage  decimal.NullDecimal `json:"percentage,omitzero"`
	ShareCount  sql.NullInt64       `json:"share_count,omitzero"`
	ExactAmount decimal.NullDecimal `json:"exact_amount,omitzero"`
	Adjustment  decimal.NullDecimal `json:"adjustment,omitzero"`
	AmountOwed  decimal.Decimal     `json:"amount_owed"`
	DeletedAt   *time.Time          `json:"-"`
}

// Settlement records "FromUser paid ToUser this amount". Amount is
// always positive; direction lives in the user ids, never in the sign.
type Settlement struct {
	ID          uuid.UUID       `json:"id"`
	FromUserID  uuid.UUID       `json:"from_user_id"`
	ToUserID    uuid.UUID       `json:"to_user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedBy   uuid.UUID       `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	DeletedAt   *time.Time      `json:"-"`
}

type Group struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// PairwiseBalance is the settlement-adjusted position against one
// counterparty, recomputed from the fact history on every call.
type PairwiseBalance struct {
	CounterpartyID   uuid.UUID       `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`
	YouOwe           decimal.Decimal `json:"you_owe"`
	YouAreOwed       decimal.Decimal `json:"you_are_owed"`
	NetBalance       decimal.Decimal `json:"net_balance"`
}

// AccountSummary aggregates expense shares only. Settlements are NOT
// applied here (see Summarize).
type AccountSummary struct {
	TotalBalance decimal.Decimal `json:"total_balance"`
	YouOwe       decimal.Decimal `json:"you_owe"`
	YouAreOwed   decimal.Decimal `json:"you_are_owed"`
}

// MonthlyBucket is one calendar month of expense activity for a user.
type MonthlyBucket struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	Label        string          `json:"label"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ExpenseCount int             `json:"expense_count"`
	YouOwe       decimal.Decimal `json:"you_owe"`
	YouAreOwed   decimal.Decimal `json:"you_are_owed"`
	NetBalance   decimal.Decimal `json:"net_balance"`
}

// ErrValidation is the base for every rejected-input error raised by
// the split allocator and the settlement recorder. Callers map the
// whole class to a bad-request response, never retry it.
var ErrValidation = errors.New("invalid input")

var (
	ErrEmptyDescription  = fmt.Errorf("%w: description can't be empty", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be a positive value with at most two decimal places", ErrValidation)
	ErrNoParticipants    = fmt.Errorf("%w: expense needs at least one participant", ErrValidation)
	ErrUnknownSplitType  = fmt.Errorf("%w: unknown split type", ErrValidation)
	ErrMissingSplitInput = fmt.Errorf("%w: participant is missing the input for this split type", ErrValidation)
	ErrPercentageSum     = fmt.Errorf("%w: percentages must sum to 100", ErrValidation)
	ErrExactAmountSum    = fmt.Errorf("%w: exact amounts must sum to the expense amount", ErrValidation)
	ErrZeroShareUnits    = fmt.Errorf("%w: share counts must sum to a positive number", ErrValidation)
	ErrShareCountTooBig  = fmt.Errorf("%w: share count is too large", ErrValidation)
	ErrNegativeShare     = fmt.Errorf("%w: a participant's share can't be negative", ErrValidation)
	ErrAdjustmentSum     = fmt.Errorf("%w: adjustments don't add up to the expense amount", ErrValidation)
	ErrSameParty         = fmt.Errorf("%w: payer and receiver must be different users", ErrValidation)
	ErrEmptyGroupName    = fmt.Errorf("%w: group name can't be empty", ErrValidation)
)

func NewGroup(name string, createdBy uuid.UUID) (Group, error) {
	if name == "" {
		return Group{}, ErrEmptyGroupName
	}

	return Group{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewExpense validates the raw inputs, allocates the amount across the
// participants and returns the expense with its shares attached. The
// expense and its shares are persisted together (FactSource.SaveExpense)
// and are read-only facts afterwards.
func NewExpense(description string, amount decimal.Decimal, date time.Time, paidBy uuid.UUID, groupID uuid.NullUUID, splitType SplitType, participants []SplitInput) (*Expense, error) {
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	expense := &Expense{
		ID:          uuid.New(),
		GroupID:     groupID,
		Description: description,
		Amount:      amount,
		Date:        date.UTC(),
		PaidBy:      paidBy,
		SplitType:   splitType,
		CreatedAt:   time.Now().UTC(),
	}

	shares, err := CalculateShares(expense.ID, amount, splitType, participants)
	if err != nil {
		return nil, err
	}
	expense.Shares = shares

	return expense, nil
}

// NewSettlement builds the fact for "from paid to amount". Any positive
// amount is accepted; nothing checks it against what is actually owed.
func NewSettlement(from, to, createdBy uuid.UUID, amount decimal.Decimal, description string) (*Settlement, error) {
	if from == to {
		return nil, ErrSameParty
	}
	if !amount.IsPositive() || !isCurrency(amount) {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Settlement{
		ID:          uuid.New(),
		FromUserID:  from,
		ToUserID:    to,
		Amount:      amount,
		Description: description,
		Date:        now,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}, nil
}

// isCurrency reports whether d is representable in whole cents.
func isCurrency(d decimal.Decimal) bool {
	return d.Mul(decimal.NewFromInt(100)).IsInteger()
}
