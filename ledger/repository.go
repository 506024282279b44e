package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrExpenseNotFound is returned when a delete targets an expense that
// doesn't exist, is already deleted, or isn't owned by the requester.
var ErrExpenseNotFound = errors.New("expense not found")

type repository struct {
	db *sql.DB
}

// NewRepository returns the Postgres-backed FactSource. Every query
// filters soft-deleted rows; a single leaked deleted row would corrupt
// every aggregate derived downstream.
func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) ExpensesForUser(ctx context.Context, userID uuid.UUID) ([]Expense, error) {
	query := `SELECT e.id, e.group_id, e.description, e.amount, e.date, e.paid_by, e.split_type, e.created_at
              FROM expenses e
              WHERE e.deleted_at IS NULL
                AND (e.paid_by = $1 OR EXISTS (
                    SELECT 1 FROM expense_shares s
                    WHERE s.expense_id = e.id AND s.user_id = $1 AND s.deleted_at IS NULL))
              ORDER BY e.date DESC, e.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []Expense
	var ids []string
	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		var expense Expense
		err := rows.Scan(
			&expense.ID,
			&expense.GroupID,
			&expense.Description,
			&expense.Amount,
			&expense.Date,
			&expense.PaidBy,
			&expense.SplitType,
			&expense.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		byID[expense.ID] = len(expenses)
		expenses = append(expenses, expense)
		ids = append(ids, expense.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	shareQuery := `SELECT expense_id, user_id, split_type, percentage, share_count, exact_amount, adjusted_amount, amount_owed
                   FROM expense_shares
                   WHERE expense_id = ANY($1) AND deleted_at IS NULL`

	shareRows, err := r.db.QueryContext(ctx, shareQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var share ExpenseShare
		err := shareRows.Scan(
			&share.ExpenseID,
			&share.UserID,
			&share.SplitType,
			&share.Percentage,
			&share.ShareCount,
			&share.ExactAmount,
			&share.Adjustment,
			&share.AmountOwed,
		)
		if err != nil {
			return nil, err
		}
		if i, ok := byID[share.ExpenseID]; ok {
			expenses[i].Shares = append(expenses[i].Shares, share)
		}
	}

	return expenses, shareRows.Err()
}

// SettlementsForUser returns settlements in folding order: the pairwise
// aggregator's outcome depends on it when a pair has settled in both
// directions, so the order is pinned here rather than left to the
// storage engine.
func (r *repository) SettlementsForUser(ctx context.Context, userID uuid.UUID) ([]Settlement, error) {
	query := `SELECT id, from_user_id, to_user_id, amount, COALESCE(description, ''), date, created_by, created_at
              FROM settlements
              WHERE deleted_at IS NULL AND (from_user_id = $1 OR to_user_id = $1)
              ORDER BY date ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []Settlement
	for rows.Next() {
		var s Settlement
		err := rows.Scan(
			&s.ID,
			&s.FromUserID,
			&s.ToUserID,
			&s.Amount,
			&s.Description,
			&s.Date,
			&s.CreatedBy,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}

	return settlements, rows.Err()
}

func (r *repository) SaveExpense(ctx context.Context, expense Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO expenses (id, group_id, description, amount, date, paid_by, split_type, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(
		ctx,
		query,
		expense.ID,
		expense.GroupID,
		expense.Description,
		expense.Amount,
		expense.Date,
		expense.PaidBy,
		expense.SplitType,
		expense.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, share := range expense.Shares {
		query = `INSERT INTO expense_shares (expense_id, user_id, split_type, percentage, share_count, exact_amount, adjusted_amount, amount_owed)
                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err = tx.ExecContext(
			ctx,
			query,
			share.ExpenseID,
			share.UserID,
			share.SplitType,
			share.Percentage,
			share.ShareCount,
			share.ExactAmount,
			share.Adjustment,
			share.AmountOwed,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) AppendSettlement(ctx context.Context, settlement Settlement) error {
	query := `INSERT INTO settlements (id, from_user_id, to_user_id, amount, description, date, created_by, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		settlement.ID,
		settlement.FromUserID,
		settlement.ToUserID,
		settlement.Amount,
		settlement.Description,
		settlement.Date,
		settlement.CreatedBy,
		settlement.CreatedAt,
	)
	return err
}

// DeleteExpense soft-deletes the expense and its shares. Facts are
// never removed physically.
func (r *repository) DeleteExpense(ctx context.Context, expenseID, requestedBy uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE expenses SET deleted_at = now() WHERE id = $1 AND paid_by = $2 AND deleted_at IS NULL`,
		expenseID,
		requestedBy,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExpenseNotFound
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE expense_shares SET deleted_at = now() WHERE expense_id = $1 AND deleted_at IS NULL`,
		expenseID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) CreateGroup(ctx context.Context, group Group) error {
	query := `INSERT INTO groups (id, name, created_by, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, group.ID, group.Name, group.CreatedBy, group.CreatedAt)
	return err
}

func (r *repository) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]Group, error) {
	query := `SELECT id, name, created_by, created_at
              FROM groups
              WHERE deleted_at IS NULL AND created_by = $1
              ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}
