package ledger

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"
)

func TestExpensesYouOwe(t *testing.T) {
	self := uuid.New()
	friend := uuid.New()
	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	paidByFriend := func(date time.Time) Expense {
		return expenseFact(t, friend, "30.00", date, map[uuid.UUID]string{friend: "15.00", self: "15.00"})
	}

	t.Run("OnlyExpensesWithOwnShare", func(t *testing.T) {
		notInvolved := expenseFact(t, friend, "30.00", base, map[uuid.UUID]string{friend: "30.00"})
		paidBySelf := expenseFact(t, self, "30.00", base, map[uuid.UUID]string{self: "15.00", friend: "15.00"})
		owed := paidByFriend(base)

		page := ExpensesYouOwe(self, []Expense{notInvolved, paidBySelf, owed}, Page{})
		assert.Equal(t, 1, page.TotalCount)
		assert.Equal(t, owed.ID, page.Expenses[0].ID)
	})

	t.Run("DeletedShareDoesNotCount", func(t *testing.T) {
		deleted := time.Now()
		expense := paidByFriend(base)
		for i := range expense.Shares {
			if expense.Shares[i].UserID == self {
				expense.Shares[i].DeletedAt = &deleted
			}
		}

		page := ExpensesYouOwe(self, []Expense{expense}, Page{})
		assert.Equal(t, 0, page.TotalCount)
	})

	t.Run("NewestFirst", func(t *testing.T) {
		older := paidByFriend(base)
		newer := paidByFriend(base.AddDate(0, 0, 5))

		page := ExpensesYouOwe(self, []Expense{older, newer}, Page{})
		assert.Equal(t, newer.ID, page.Expenses[0].ID)
		assert.Equal(t, older.ID, page.Expenses[1].ID)
	})

	t.Run("CreatedAtBreaksDateTies", func(t *testing.T) {
		first := paidByFriend(base)
		second := paidByFriend(base)
		second.CreatedAt = first.CreatedAt.Add(time.Hour)

		page := ExpensesYouOwe(self, []Expense{first, second}, Page{})
		assert.Equal(t, second.ID, page.Expenses[0].ID)
	})

	t.Run("PaginationKeepsTotalCount", func(t *testing.T) {
		var expenses []Expense
		for i := 0; i < 5; i++ {
			expenses = append(expenses, paidByFriend(base.AddDate(0, 0, i)))
		}

		page := ExpensesYouOwe(self, expenses, Page{Number: 2, Size: 2})
		assert.Equal(t, 5, page.TotalCount)
		assert.Equal(t, 2, len(page.Expenses))
		// Page 2 of size 2, newest first: days 2 and 1.
		assert.Equal(t, expenses[2].ID, page.Expenses[0].ID)
		assert.Equal(t, expenses[1].ID, page.Expenses[1].ID)
	})

	t.Run("PageBeyondEndIsEmpty", func(t *testing.T) {
		page := ExpensesYouOwe(self, []Expense{paidByFriend(base)}, Page{Number: 4, Size: 10})
		assert.Equal(t, 1, page.TotalCount)
		assert.Equal(t, 0, len(page.Expenses))
	})
}

func TestExpensesYouAreOwed(t *testing.T) {
	self := uuid.New()
	friend := uuid.New()
	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	t.Run("RequiresAnotherLiveShare", func(t *testing.T) {
		shared := expenseFact(t, self, "30.00", base, map[uuid.UUID]string{self: "15.00", friend: "15.00"})
		solo := expenseFact(t, self, "30.00", base, map[uuid.UUID]string{self: "30.00"})

		page := ExpensesYouAreOwed(self, []Expense{shared, solo}, Page{})
		assert.Equal(t, 1, page.TotalCount)
		assert.Equal(t, shared.ID, page.Expenses[0].ID)
	})

	t.Run("NotPayerExcluded", func(t *testing.T) {
		expense := expenseFact(t, friend, "30.00", base, map[uuid.UUID]string{friend: "15.00", self: "15.00"})

		page := ExpensesYouAreOwed(self, []Expense{expense}, Page{})
		assert.Equal(t, 0, page.TotalCount)
	})

	t.Run("OtherShareDeletedExcluded", func(t *testing.T) {
		deleted := time.Now()
		expense := expenseFact(t, self, "30.00", base, map[uuid.UUID]string{self: "15.00", friend: "15.00"})
		for i := range expense.Shares {
			if expense.Shares[i].UserID == friend {
				expense.Shares[i].DeletedAt = &deleted
			}
		}

		page := ExpensesYouAreOwed(self, []Expense{expense}, Page{})
		assert.Equal(t, 0, page.TotalCount)
	})
}
