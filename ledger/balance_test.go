package ledger

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// expenseFact builds an already-allocated expense fact for tests. The
// owed map holds each participant's canonical AmountOwed, payer included.
func expenseFact(t *testing.T, payer uuid.UUID, amount string, date time.Time, owed map[uuid.UUID]string) Expense {
	t.Helper()
	expense := Expense{
		ID:        uuid.New(),
		Amount:    dec(t, amount),
		Date:      date,
		PaidBy:    payer,
		SplitType: SplitTypeEqual,
		CreatedAt: date,
	}
	for userID, share := range owed {
		expense.Shares = append(expense.Shares, ExpenseShare{
			ExpenseID:  expense.ID,
			UserID:     userID,
			SplitType:  SplitTypeEqual,
			AmountOwed: dec(t, share),
		})
	}
	return expense
}

func settlementFact(t *testing.T, from, to uuid.UUID, amount string, date time.Time) Settlement {
	t.Helper()
	return Settlement{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		Amount:     dec(t, amount),
		Date:       date,
		CreatedBy:  from,
		CreatedAt:  date,
	}
}

func TestMemberBalancesFromExpenses(t *testing.T) {
	payer := uuid.New()
	other := uuid.New()
	date := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	t.Run("PayerIsOwedOthersShares", func(t *testing.T) {
		expenses := []Expense{
			expenseFact(t, payer, "100.00", date, map[uuid.UUID]string{payer: "50.00", other: "50.00"}),
		}

		balances := MemberBalances(payer, expenses, nil, nil)
		assert.Equal(t, 1, len(balances))
		assert.Equal(t, other, balances[0].CounterpartyID)
		assert.Equal(t, "50.00", balances[0].YouAreOwed.StringFixed(2))
		assert.Equal(t, "0.00", balances[0].YouOwe.StringFixed(2))
		assert.Equal(t, "50.00", balances[0].NetBalance.StringFixed(2))
	})

	t.Run("ParticipantOwesOwnShareToPayer", func(t *testing.T) {
		expenses := []Expense{
			expenseFact(t, payer, "100.00", date, map[uuid.UUID]string{payer: "50.00", other: "50.00"}),
		}

		balances := MemberBalances(other, expenses, nil, nil)
		assert.Equal(t, 1, len(balances))
		assert.Equal(t, payer, balances[0].CounterpartyID)
		assert.Equal(t, "50.00", balances[0].YouOwe.StringFixed(2))
		assert.Equal(t, "-50.00", balances[0].NetBalance.StringFixed(2))
	})

	t.Run("DeletedShareIsExcluded", func(t *testing.T) {
		deleted := time.Now()
		expense := expenseFact(t, payer, "100.00", date, map[uuid.UUID]string{payer: "50.00", other: "50.00"})
		for i := range expense.Shares {
			if expense.Shares[i].UserID == other {
				expense.Shares[i].DeletedAt = &deleted
			}
		}

		balances := MemberBalances(payer, []Expense{expense}, nil, nil)
		assert.Equal(t, 0, len(balances))
	})
}

func TestMemberBalancesSettlementFolding(t *testing.T) {
	self := uuid.New()
	counterparty := uuid.New()
	date := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	owedExpense := func(amount, share string) []Expense {
		return []Expense{
			expenseFact(t, self, amount, date, map[uuid.UUID]string{self: share, counterparty: share}),
		}
	}

	t.Run("PartialOffset", func(t *testing.T) {
		expenses := owedExpense("200.00", "100.00")
		settlements := []Settlement{settlementFact(t, self, counterparty, "40.00", date.AddDate(0, 0, 1))}

		balances := MemberBalances(self, expenses, settlements, nil)
		assert.Equal(t, 1, len(balances))
		assert.Equal(t, "60.00", balances[0].YouAreOwed.StringFixed(2))
		assert.Equal(t, "0.00", balances[0].YouOwe.StringFixed(2))
	})

	t.Run("FullOffsetDropsCounterparty", func(t *testing.T) {
		expenses := owedExpense("100.00", "50.00")
		settlements := []Settlement{settlementFact(t, counterparty, self, "50.00", date.AddDate(0, 0, 1))}

		balances := MemberBalances(self, expenses, settlements, nil)
		assert.Equal(t, 0, len(balances))
	})

	t.Run("DirectionFlipWithoutPriorDebt", func(t *testing.T) {
		settlements := []Settlement{settlementFact(t, self, counterparty, "25.00", date)}

		balances := MemberBalances(self, nil, settlements, nil)
		assert.Equal(t, 1, len(balances))
		assert.Equal(t, "25.00", balances[0].YouOwe.StringFixed(2))
		assert.Equal(t, "-25.00", balances[0].NetBalance.StringFixed(2))
	})

	t.Run("OversizedSettlementOffsetsFully", func(t *testing.T) {
		expenses := owedExpense("200.00", "100.00")
		settlements := []Settlement{settlementFact(t, self, counterparty, "150.00", date.AddDate(0, 0, 1))}

		balances := MemberBalances(self, expenses, settlements, nil)
		assert.Equal(t, 0, len(balances))
	})

	t.Run("FoldOrderMatters", func(t *testing.T) {
		// Two settlements between the same pair: folding the 30
		// before the 80 leaves a different split between the owed
		// and owing columns than the reverse order would.
		expenses := owedExpense("100.00", "50.00")
		first := settlementFact(t, self, counterparty, "80.00", date.AddDate(0, 0, 1))
		second := settlementFact(t, counterparty, self, "30.00", date.AddDate(0, 0, 2))

		balances := MemberBalances(self, expenses, []Settlement{first, second}, nil)
		assert.Equal(t, 1, len(balances))
		// 50 owed - min(80,50) = 0, then 30 flips to youOwe.
		assert.Equal(t, "30.00", balances[0].YouOwe.StringFixed(2))
		assert.Equal(t, "0.00", balances[0].YouAreOwed.StringFixed(2))
	})
}

func TestMemberBalancesSorting(t *testing.T) {
	self := uuid.New()
	alice := uuid.New()
	bruno := uuid.New()
	carla := uuid.New()
	date := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	expenses := []Expense{
		expenseFact(t, self, "40.00", date, map[uuid.UUID]string{self: "20.00", alice: "20.00"}),
		expenseFact(t, self, "40.00", date, map[uuid.UUID]string{self: "20.00", bruno: "20.00"}),
		expenseFact(t, carla, "100.00", date, map[uuid.UUID]string{carla: "50.00", self: "50.00"}),
	}
	names := map[uuid.UUID]string{alice: "Alice", bruno: "Bruno", carla: "Carla"}

	balances := MemberBalances(self, expenses, nil, names)
	assert.Equal(t, 3, len(balances))

	// Equal positive nets tie-break on first name, negative net last.
	assert.Equal(t, "Alice", balances[0].CounterpartyName)
	assert.Equal(t, "Bruno", balances[1].CounterpartyName)
	assert.Equal(t, "Carla", balances[2].CounterpartyName)
	assert.Equal(t, "-50.00", balances[2].NetBalance.StringFixed(2))
}

func TestMemberBalancesDeterministic(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	date := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	expenses := []Expense{
		expenseFact(t, self, "100.00", date, map[uuid.UUID]string{self: "50.00", other: "50.00"}),
	}
	settlements := []Settlement{settlementFact(t, other, self, "20.00", date.AddDate(0, 0, 1))}

	first := MemberBalances(self, expenses, settlements, nil)
	second := MemberBalances(self, expenses, settlements, nil)
	assert.Equal(t, first, second)
}

func TestSummarize(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	date := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	t.Run("PayerSide", func(t *testing.T) {
		expenses := []Expense{
			expenseFact(t, self, "100.00", date, map[uuid.UUID]string{self: "50.00", other: "50.00"}),
		}

		summary := Summarize(self, expenses)
		assert.Equal(t, "50.00", summary.YouAreOwed.StringFixed(2))
		assert.Equal(t, "0.00", summary.YouOwe.StringFixed(2))
		assert.Equal(t, "50.00", summary.TotalBalance.StringFixed(2))
	})

	t.Run("IgnoresSettlements", func(t *testing.T) {
		// Settlements are not an input to Summarize at all: after the
		// counterparty settles in full, the pairwise view is empty but
		// the summary still reports the expense-only totals.
		expenses := []Expense{
			expenseFact(t, self, "100.00", date, map[uuid.UUID]string{self: "50.00", other: "50.00"}),
		}
		settlements := []Settlement{settlementFact(t, other, self, "50.00", date.AddDate(0, 0, 1))}

		assert.Equal(t, 0, len(MemberBalances(self, expenses, settlements, nil)))

		summary := Summarize(self, expenses)
		assert.Equal(t, "50.00", summary.YouAreOwed.StringFixed(2))
	})

	t.Run("EmptyHistory", func(t *testing.T) {
		summary := Summarize(self, nil)
		assert.True(t, summary.TotalBalance.Equal(decimal.Zero))
		assert.True(t, summary.YouOwe.Equal(decimal.Zero))
		assert.True(t, summary.YouAreOwed.Equal(decimal.Zero))
	})
}

func TestMonthlyTrend(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

	t.Run("ThreeBucketsMiddleActive", func(t *testing.T) {
		middle := time.Date(2025, time.February, 5, 9, 0, 0, 0, time.UTC)
		expenses := []Expense{
			expenseFact(t, self, "90.00", middle, map[uuid.UUID]string{self: "45.00", other: "45.00"}),
		}

		buckets := MonthlyTrend(self, expenses, 3, now)
		assert.Equal(t, 3, len(buckets))

		assert.Equal(t, 2025, buckets[0].Year)
		assert.Equal(t, int(time.January), buckets[0].Month)
		assert.Equal(t, "0.00", buckets[0].TotalAmount.StringFixed(2))
		assert.Equal(t, 0, buckets[0].ExpenseCount)

		assert.Equal(t, int(time.February), buckets[1].Month)
		assert.Equal(t, "Feb 2025", buckets[1].Label)
		assert.Equal(t, "90.00", buckets[1].TotalAmount.StringFixed(2))
		assert.Equal(t, 1, buckets[1].ExpenseCount)
		assert.Equal(t, "45.00", buckets[1].YouAreOwed.StringFixed(2))
		assert.Equal(t, "45.00", buckets[1].NetBalance.StringFixed(2))

		assert.Equal(t, int(time.March), buckets[2].Month)
		assert.Equal(t, "0.00", buckets[2].TotalAmount.StringFixed(2))
	})

	t.Run("ExpensesOutsideWindowIgnored", func(t *testing.T) {
		old := time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC)
		expenses := []Expense{
			expenseFact(t, self, "10.00", old, map[uuid.UUID]string{self: "5.00", other: "5.00"}),
		}

		buckets := MonthlyTrend(self, expenses, 3, now)
		for _, b := range buckets {
			assert.Equal(t, 0, b.ExpenseCount)
		}
	})

	t.Run("YearBoundary", func(t *testing.T) {
		buckets := MonthlyTrend(self, nil, 4, now)
		assert.Equal(t, 4, len(buckets))
		assert.Equal(t, 2024, buckets[0].Year)
		assert.Equal(t, int(time.December), buckets[0].Month)
		assert.Equal(t, "Dec 2024", buckets[0].Label)
	})
}
