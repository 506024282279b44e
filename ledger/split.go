package ledger

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitInput is one participant's raw input to the allocator. Which
// field is required depends on the split type; the others are ignored.
type SplitInput struct {
	UserID      uuid.UUID           `json:"user_id"`
	Percentage  decimal.NullDecimal `json:"percentage,omitzero"`
	ShareCount  sql.NullInt64       `json:"share_count,omitzero"`
	ExactAmount decimal.NullDecimal `json:"exact_amount,omitzero"`
	Adjustment  decimal.NullDecimal `json:"adjustment,omitzero"`
}

// percentageEpsilon absorbs rounding noise when checking that
// percentages sum to 100.
var percentageEpsilon = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// CalculateShares turns a raw expense amount into per-participant owed
// amounts. The payer is a participant like any other and supplies its
// own input row, so the shares always sum to the full amount.
//
// Every branch either distributes the amount exactly to the cent or
// fails with a sentinel wrapping ErrValidation. Rounding remainders are
// handed out one cent at a time to the earliest participants in input
// order, which keeps the result deterministic.
func CalculateShares(expenseID uuid.UUID, amount decimal.Decimal, splitType SplitType, participants []SplitInput) ([]ExpenseShare, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	if !amount.IsPositive() || !isCurrency(amount) {
		return nil, ErrInvalidAmount
	}

	totalCents := amount.Mul(hundred).IntPart()

	var owedCents []int64
	var err error
	switch splitType {
	case SplitTypeEqual:
		owedCents = splitEqually(totalCents, len(participants))
	case SplitTypePercentage:
		owedCents, err = splitByPercentage(totalCents, amount, participants)
	case SplitTypeExact:
		owedCents, err = splitByExactAmounts(totalCents, participants)
	case SplitTypeShares:
		owedCents, err = splitByShareCounts(totalCents, participants)
	case SplitTypeAdjustment:
		owedCents, err = splitByAdjustments(totalCents, participants)
	default:
		return nil, ErrUnknownSplitType
	}
	if err != nil {
		return nil, err
	}

	shares := make([]ExpenseShare, 0, len(participants))
	for i, p := range participants {
		shares = append(shares, ExpenseShare{
			ExpenseID:   expenseID,
			UserID:      p.UserID,
			SplitType:   splitType,
			Percentage:  p.Percentage,
			ShareCount:  p.ShareCount,
			ExactAmount: p.ExactAmount,
			Adjustment:  p.Adjustment,
			AmountOwed:  centsToDecimal(owedCents[i]),
		})
	}
	return shares, nil
}

// splitEqually divides totalCents evenly, giving the leftover cents to
// the first members in order.
func splitEqually(totalCents int64, numMembers int) []int64 {
	n := int64(numMembers)
	base := totalCents / n
	remainder := totalCents % n

	owed := make([]int64, numMembers)
	for i := range owed {
		owed[i] = base
		if int64(i) < remainder {
			owed[i]++
		}
	}
	return owed
}

func splitByPercentage(totalCents int64, amount decimal.Decimal, participants []SplitInput) ([]int64, error) {
	sum := decimal.Zero
	for _, p := range participants {
		if !p.Percentage.Valid {
			return nil, ErrMissingSplitInput
		}
		if p.Percentage.Decimal.IsNegative() {
			return nil, ErrNegativeShare
		}
		sum = sum.Add(p.Percentage.Decimal)
	}
	if sum.Sub(hundred).Abs().GreaterThan(percentageEpsilon) {
		return nil, ErrPercentageSum
	}

	owed := make([]int64, len(participants))
	var allocated int64
	for i, p := range participants {
		c := amount.Mul(p.Percentage.Decimal).Div(hundred).Round(2).Mul(hundred).IntPart()
		owed[i] = c
		allocated += c
	}
	// Rounding drift lands on the first participant with a positive
	// percentage, never on a 0% participant. At least one exists since
	// the percentages sum to 100.
	drift := totalCents - allocated
	for i, p := range participants {
		if p.Percentage.Decimal.IsPositive() {
			owed[i] += drift
			if owed[i] < 0 {
				return nil, ErrNegativeShare
			}
			break
		}
	}
	return owed, nil
}

func splitByExactAmounts(totalCents int64, participants []SplitInput) ([]int64, error) {
	owed := make([]int64, len(participants))
	var allocated int64
	for i, p := range participants {
		if !p.ExactAmount.Valid {
			return nil, ErrMissingSplitInput
		}
		if p.ExactAmount.Decimal.IsNegative() || !isCurrency(p.ExactAmount.Decimal) {
			return nil, ErrNegativeShare
		}
		owed[i] = p.ExactAmount.Decimal.Mul(hundred).IntPart()
		allocated += owed[i]
	}
	if allocated != totalCents {
		return nil, ErrExactAmountSum
	}
	return owed, nil
}

// maxShareCount bounds a single participant's share count so that
// totalCents * count and the totalUnits sum stay well inside int64.
const maxShareCount = 1_000_000

func splitByShareCounts(totalCents int64, participants []SplitInput) ([]int64, error) {
	var totalUnits int64
	var weighted []int
	for i, p := range participants {
		if !p.ShareCount.Valid {
			return nil, ErrMissingSplitInput
		}
		if p.ShareCount.Int64 < 0 {
			return nil, ErrNegativeShare
		}
		if p.ShareCount.Int64 > maxShareCount {
			return nil, ErrShareCountTooBig
		}
		if p.ShareCount.Int64 > 0 {
			weighted = append(weighted, i)
		}
		totalUnits += p.ShareCount.Int64
	}
	if totalUnits == 0 {
		return nil, ErrZeroShareUnits
	}

	owed := make([]int64, len(participants))
	var allocated int64
	for i, p := range participants {
		owed[i] = totalCents * p.ShareCount.Int64 / totalUnits
		allocated += owed[i]
	}
	// Leftover cents from the floor division go to the earliest
	// weighted participants, one each. A zero-count participant never
	// receives a remainder cent.
	for i := 0; allocated < totalCents; i++ {
		owed[weighted[i%len(weighted)]]++
		allocated++
	}
	return owed, nil
}

// splitByAdjustments starts from an equal base, applies each adjusted
// participant's signed delta, then splits whatever is left equally
// among the participants that carry no adjustment.
func splitByAdjustments(totalCents int64, participants []SplitInput) ([]int64, error) {
	n := int64(len(participants))
	base := totalCents / n

	owed := make([]int64, len(participants))
	var plain []int
	var allocated int64
	for i, p := range participants {
		if !p.Adjustment.Valid {
			plain = append(plain, i)
			continue
		}
		if !isCurrency(p.Adjustment.Decimal) {
			return nil, ErrMissingSplitInput
		}
		owed[i] = base + p.Adjustment.Decimal.Mul(hundred).IntPart()
		if owed[i] < 0 {
			return nil, ErrNegativeShare
		}
		allocated += owed[i]
	}

	remaining := totalCents - allocated
	if len(plain) == 0 {
		if remaining != 0 {
			return nil, ErrAdjustmentSum
		}
		return owed, nil
	}
	if remaining < 0 {
		return nil, ErrAdjustmentSum
	}

	split := splitEqually(remaining, len(plain))
	for j, i := range plain {
		owed[i] = split[j]
	}
	return owed, nil
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
