package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FactSource is the boundary to whatever stores the append-only fact
// history. Implementations must exclude soft-deleted rows from every
// read, eager-load shares on expenses, and return settlements in the
// order they are to be folded (date ascending, then created_at).
type FactSource interface {
	// ExpensesForUser returns the non-deleted expenses where the user
	// is the payer or holds a non-deleted share, shares attached.
	ExpensesForUser(ctx context.Context, userID uuid.UUID) ([]Expense, error)
	// SettlementsForUser returns the non-deleted settlements where the
	// user is either party, ordered by date then created_at ascending.
	SettlementsForUser(ctx context.Context, userID uuid.UUID) ([]Settlement, error)
	// SaveExpense persists an expense and its shares in one atomic unit.
	SaveExpense(ctx context.Context, expense Expense) error
	// AppendSettlement persists one settlement in one atomic unit.
	AppendSettlement(ctx context.Context, settlement Settlement) error
	// DeleteExpense soft-deletes an expense and its shares. Only the
	// payer may delete.
	DeleteExpense(ctx context.Context, expenseID, requestedBy uuid.UUID) error
	CreateGroup(ctx context.Context, group Group) error
	GroupsForUser(ctx context.Context, userID uuid.UUID) ([]Group, error)
}

// UserDirectory resolves user ids to first names for display and for
// the pairwise sort tie-break.
type UserDirectory interface {
	FirstNamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service derives balances from the fact history on every call. It
// keeps no state of its own: two calls over an unchanged history return
// identical results, and an error from the fact source aborts the whole
// calculation rather than yielding a partial aggregate.
type Service struct {
	facts FactSource
	users UserDirectory
	now   func() time.Time
}

func NewService(facts FactSource, users UserDirectory) *Service {
	return &Service{
		facts: facts,
		users: users,
		now:   time.Now,
	}
}

// MemberBalances returns the user's settlement-adjusted position per
// counterparty, net-zero entries dropped, sorted by net descending.
func (s *Service) MemberBalances(ctx context.Context, userID uuid.UUID) ([]PairwiseBalance, error) {
	expenses, err := s.facts.ExpensesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.facts.SettlementsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	names, err := s.users.FirstNamesByID(ctx, counterpartyIDs(userID, expenses, settlements))
	if err != nil {
		return nil, err
	}

	return MemberBalances(userID, expenses, settlements, names), nil
}

// Summary returns the user's expense-only aggregate. Settlements are
// not applied; see Summarize.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (AccountSummary, error) {
	expenses, err := s.facts.ExpensesForUser(ctx, userID)
	if err != nil {
		return AccountSummary{}, err
	}
	return Summarize(userID, expenses), nil
}

func (s *Service) MonthlyTrend(ctx context.Context, userID uuid.UUID, monthsBack int) ([]MonthlyBucket, error) {
	expenses, err := s.facts.ExpensesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return MonthlyTrend(userID, expenses, monthsBack, s.now()), nil
}

func (s *Service) ExpensesYouOwe(ctx context.Context, userID uuid.UUID, page Page) (ExpensePage, error) {
	expenses, err := s.facts.ExpensesForUser(ctx, userID)
	if err != nil {
		return ExpensePage{}, err
	}
	return ExpensesYouOwe(userID, expenses, page), nil
}

func (s *Service) ExpensesYouAreOwed(ctx context.Context, userID uuid.UUID, page Page) (ExpensePage, error) {
	expenses, err := s.facts.ExpensesForUser(ctx, userID)
	if err != nil {
		return ExpensePage{}, err
	}
	return ExpensesYouAreOwed(userID, expenses, page), nil
}

// RecordExpense allocates the amount across the participants and
// appends the expense fact with its shares in one atomic write.
func (s *Service) RecordExpense(ctx context.Context, description string, amount decimal.Decimal, date time.Time, paidBy uuid.UUID, groupID uuid.NullUUID, splitType SplitType, participants []SplitInput) (*Expense, error) {
	expense, err := NewExpense(description, amount, date, paidBy, groupID, splitType, participants)
	if err != nil {
		return nil, err
	}
	if err := s.facts.SaveExpense(ctx, *expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// Settle appends one settlement fact. The amount is not checked against
// what is actually owed; any positive amount between distinct users is
// accepted and folded into future balance reads.
func (s *Service) Settle(ctx context.Context, from, to, createdBy uuid.UUID, amount decimal.Decimal, description string) (*Settlement, error) {
	settlement, err := NewSettlement(from, to, createdBy, amount, description)
	if err != nil {
		return nil, err
	}
	if err := s.facts.AppendSettlement(ctx, *settlement); err != nil {
		return nil, err
	}
	return settlement, nil
}

func (s *Service) DeleteExpense(ctx context.Context, expenseID, requestedBy uuid.UUID) error {
	return s.facts.DeleteExpense(ctx, expenseID, requestedBy)
}

func (s *Service) CreateGroup(ctx context.Context, name string, createdBy uuid.UUID) (Group, error) {
	group, err := NewGroup(name, createdBy)
	if err != nil {
		return Group{}, err
	}
	if err := s.facts.CreateGroup(ctx, group); err != nil {
		return Group{}, err
	}
	return group, nil
}

func (s *Service) Groups(ctx context.Context, userID uuid.UUID) ([]Group, error) {
	return s.facts.GroupsForUser(ctx, userID)
}

func counterpartyIDs(userID uuid.UUID, expenses []Expense, settlements []Settlement) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	for _, e := range expenses {
		seen[e.PaidBy] = struct{}{}
		for _, share := range e.Shares {
			seen[share.UserID] = struct{}{}
		}
	}
	for _, s := range settlements {
		seen[s.FromUserID] = struct{}{}
		seen[s.ToUserID] = struct{}{}
	}
	delete(seen, userID)

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}
