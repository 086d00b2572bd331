package model

import "time"

// PaymentStatus is shared by payment attempts and the enrollment's
// payment summary field.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether the payment attempt is finalized. A
// finalized payment is immutable.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// Payment is a single charge attempt against an enrollment. An
// enrollment accumulates one payment row per attempt; failed attempts
// are kept for audit.
type Payment struct {
	ID              string        `json:"id"`
	EnrollmentID    string        `json:"enrollment_id"`
	UserID          int64         `json:"user_id"`
	Method          string        `json:"method"`
	Status          PaymentStatus `json:"status"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	TransactionID   *string       `json:"transaction_id,omitempty"`
	GatewayResponse *string       `json:"gateway_response,omitempty"`
	ErrorCode       *string       `json:"error_code,omitempty"`
	ErrorMessage    *string       `json:"error_message,omitempty"`
	CardLastFour    *string       `json:"card_last_four,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// Transaction is an append-only audit record of a gateway exchange.
type Transaction struct {
	ID                   string    `json:"id"`
	PaymentID            string    `json:"payment_id"`
	Type                 string    `json:"type"`
	Success              bool      `json:"success"`
	GatewayTransactionID *string   `json:"gateway_transaction_id,omitempty"`
	RawResponse          *string   `json:"raw_response,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// TransactionTypeCharge is the only transaction type this service
// produces today. Refunds are an operator workflow.
const TransactionTypeCharge = "charge"
