package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// pairTotals accumulates both directions separately so that a
// settlement can offset the right side before the net is taken.
type pairTotals struct {
	youOwe     decimal.Decimal
	youAreOwed decimal.Decimal
}

// MemberBalances folds the user's expense and settlement facts into a
// per-counterparty position. Expenses credit the payer with every other
// participant's share and debit non-payers with their own share;
// settlements then offset what the counterparty owes, flipping direction
// once nothing is left to offset. Settlements must arrive in the order
// they are to be folded (the fact source pins date ASC, createdAt ASC).
//
// Counterparties whose net balance is exactly zero are dropped. The
// result is sorted by net balance descending, then counterparty first
// name ascending, then id for a stable total order. firstNames may be
// missing entries; those sort with an empty name.
func MemberBalances(userID uuid.UUID, expenses []Expense, settlements []Settlement, firstNames map[uuid.UUID]string) []PairwiseBalance {
	totals := make(map[uuid.UUID]*pairTotals)
	lookup := func(id uuid.UUID) *pairTotals {
		t, ok := totals[id]
		if !ok {
			t = &pairTotals{youOwe: decimal.Zero, youAreOwed: decimal.Zero}
			totals[id] = t
		}
		return t
	}

	for _, expense := range expenses {
		if expense.PaidBy == userID {
			for _, share := range expense.Shares {
				if share.UserID == userID || share.DeletedAt != nil {
					continue
				}
				t := lookup(share.UserID)
				t.youAreOwed = t.youAreOwed.Add(share.AmountOwed)
			}
			continue
		}
		for _, share := range expense.Shares {
			if share.UserID != userID || share.DeletedAt != nil {
				continue
			}
			t := lookup(expense.PaidBy)
			t.youOwe = t.youOwe.Add(share.AmountOwed)
		}
	}

	for _, s := range settlements {
		var counterparty uuid.UUID
		switch userID {
		case s.FromUserID:
			counterparty = s.ToUserID
		case s.ToUserID:
			counterparty = s.FromUserID
		default:
			continue
		}

		// A settlement first offsets what the counterparty owes,
		// partially or fully; anything beyond that flips the
		// direction. There is no upper-bound check on the amount.
		t := lookup(counterparty)
		if t.youAreOwed.IsPositive() {
			t.youAreOwed = t.youAreOwed.Sub(decimal.Min(s.Amount, t.youAreOwed))
		} else {
			t.youOwe = t.youOwe.Add(s.Amount)
		}
	}

	balances := make([]PairwiseBalance, 0, len(totals))
	for id, t := range totals {
		net := t.youAreOwed.Sub(t.youOwe)
		if net.IsZero() {
			continue
		}
		balances = append(balances, PairwiseBalance{
			CounterpartyID:   id,
			CounterpartyName: firstNames[id],
			YouOwe:           t.youOwe,
			YouAreOwed:       t.youAreOwed,
			NetBalance:       net,
		})
	}

	sort.Slice(balances, func(i, j int) bool {
		if !balances[i].NetBalance.Equal(balances[j].NetBalance) {
			return balances[i].NetBalance.GreaterThan(balances[j].NetBalance)
		}
		if balances[i].CounterpartyName != balances[j].CounterpartyName {
			return balances[i].CounterpartyName < balances[j].CounterpartyName
		}
		return balances[i].CounterpartyID.String() < balances[j].CounterpartyID.String()
	})

	return balances
}

// Summarize folds the user's expense facts into a single aggregate.
// Settlements are deliberately NOT consulted: this mirrors the pairwise
// view before any settling, so the summary can disagree with the sum of
// MemberBalances once payments have been recorded. Callers that need
// the settlement-adjusted position must use MemberBalances.
func Summarize(userID uuid.UUID, expenses []Expense) AccountSummary {
	youOwe, youAreOwed := foldExpense(userID, expenses, decimal.Zero, decimal.Zero)
	return AccountSummary{
		TotalBalance: youAreOwed.Sub(youOwe),
		YouOwe:       youOwe,
		YouAreOwed:   youAreOwed,
	}
}

func foldExpense(userID uuid.UUID, expenses []Expense, youOwe, youAreOwed decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	for _, expense := range expenses {
		for _, share := range expense.Shares {
			if share.DeletedAt != nil {
				continue
			}
			if expense.PaidBy == userID && share.UserID != userID {
				youAreOwed = youAreOwed.Add(share.AmountOwed)
			}
			if expense.PaidBy != userID && share.UserID == userID {
				youOwe = youOwe.Add(share.AmountOwed)
			}
		}
	}
	return youOwe, youAreOwed
}

// MonthlyTrend buckets the user's expenses by calendar month, ending at
// the month containing now and reaching monthsBack months into the past
// (monthsBack of 3 yields 3 buckets, the current month last). Months
// with no activity come back zeroed. Like Summarize, the per-bucket
// owe/owed figures ignore settlements.
func MonthlyTrend(userID uuid.UUID, expenses []Expense, monthsBack int, now time.Time) []MonthlyBucket {
	if monthsBack < 1 {
		monthsBack = 1
	}

	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(monthsBack - 1), 0)

	buckets := make([]MonthlyBucket, monthsBack)
	index := make(map[[2]int]int, monthsBack)
	for i := range buckets {
		m := start.AddDate(0, i, 0)
		buckets[i] = MonthlyBucket{
			Year:        m.Year(),
			Month:       int(m.Month()),
			Label:       m.Format("Jan 2006"),
			TotalAmount: decimal.Zero,
			YouOwe:      decimal.Zero,
			YouAreOwed:  decimal.Zero,
			NetBalance:  decimal.Zero,
		}
		index[[2]int{m.Year(), int(m.Month())}] = i
	}

	for _, expense := range expenses {
		date := expense.Date.UTC()
		i, ok := index[[2]int{date.Year(), int(date.Month())}]
		if !ok {
			continue
		}
		b := &buckets[i]
		b.TotalAmount = b.TotalAmount.Add(expense.Amount)
		b.ExpenseCount++
		b.YouOwe, b.YouAreOwed = foldExpense(userID, []Expense{expense}, b.YouOwe, b.YouAreOwed)
		b.NetBalance = b.YouAreOwed.Sub(b.YouOwe)
	}

	return buckets
}
