package ledger

import (
	"sort"

	"github.com/google/uuid"
)

const DefaultPageSize = 20

// Page selects a slice of a sorted expense projection. Numbers start
// at 1; a zero or negative size falls back to DefaultPageSize.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	return p
}

// ExpensePage is one page of matching expenses plus the total number of
// matches regardless of paging.
type ExpensePage struct {
	Expenses   []Expense `json:"expenses"`
	TotalCount int       `json:"total_count"`
}

// ExpensesYouOwe projects the raw expense set down to the expenses the
// user participates in without having paid. No aggregation happens
// here; each row still carries its full share list.
func ExpensesYouOwe(userID uuid.UUID, expenses []Expense, page Page) ExpensePage {
	return paginate(filterExpenses(expenses, func(e Expense) bool {
		return e.PaidBy != userID && hasShareFor(e, userID)
	}), page)
}

// ExpensesYouAreOwed projects down to the expenses the user paid that
// at least one other participant still holds a share in.
func ExpensesYouAreOwed(userID uuid.UUID, expenses []Expense, page Page) ExpensePage {
	return paginate(filterExpenses(expenses, func(e Expense) bool {
		if e.PaidBy != userID {
			return false
		}
		for _, share := range e.Shares {
			if share.UserID != userID && share.DeletedAt == nil {
				return true
			}
		}
		return false
	}), page)
}

func hasShareFor(e Expense, userID uuid.UUID) bool {
	for _, share := range e.Shares {
		if share.UserID == userID && share.DeletedAt == nil {
			return true
		}
	}
	return false
}

func filterExpenses(expenses []Expense, keep func(Expense) bool) []Expense {
	matched := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if keep(e) {
			matched = append(matched, e)
		}
	}

	// Newest first; the id tie-break keeps the order total so paging
	// never shuffles rows between calls.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	return matched
}

func paginate(matched []Expense, page Page) ExpensePage {
	page = page.normalize()

	start := (page.Number - 1) * page.Size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}

	return ExpensePage{
		Expenses:   matched[start:end],
		TotalCount: len(matched),
	}
}
