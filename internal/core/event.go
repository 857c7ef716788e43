package core

import "time"

// Ledger event types.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventCategoryCreated    = "category.created"
	EventCategoryUpdated    = "category.updated"
	EventCategoryDeleted    = "category.deleted"
	EventModeLocal          = "mode.local"
)

// LedgerEvent describes a completed write, or a mode transition.
type LedgerEvent struct {
	Type       string    `json:"type"`
	Resource   string    `json:"resource,omitempty"` // incomes, expenses, categories
	ResourceID string    `json:"resource_id,omitempty"`
	UserID     string    `json:"user_id"`
	Mode       Mode      `json:"mode"`
	Amount     *Money    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
