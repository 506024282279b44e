package ledger

import "time"

// Audit payloads attached to eventlogger events when facts are appended.

type ExpenseRecordedEvent struct {
	ExpenseID   string    `json:"expense_id"`
	PaidBy      string    `json:"paid_by"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	SplitType   SplitType `json:"split_type"`
	Date        time.Time `json:"date"`
	ShareCount  int       `json:"share_count"`
}

type SettlementRecordedEvent struct {
	SettlementID string    `json:"settlement_id"`
	FromUserID   string    `json:"from_user_id"`
	ToUserID     string    `json:"to_user_id"`
	Amount       string    `json:"amount"`
	Date         time.Time `json:"date"`
}

type ExpenseDeletedEvent struct {
	ExpenseID string `json:"expense_id"`
	DeletedBy string `json:"deleted_by"`
}
