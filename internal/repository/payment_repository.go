package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/pkg/database"
)

const paymentColumns = `id, enrollment_id, user_id, method, status, amount, currency,
	transaction_id, gateway_response, error_code, error_message, card_last_four,
	created_at, completed_at`

// PaymentRepository provides data access for payment attempts and the
// gateway transaction audit trail.
type PaymentRepository struct {
	pool PoolInterface
}

// NewPaymentRepository creates a new PaymentRepository with the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// NewPaymentRepositoryWithPool creates a repository with a custom pool
// interface. This is primarily used for testing.
func NewPaymentRepositoryWithPool(pool PoolInterface) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.EnrollmentID, &p.UserID, &p.Method, &p.Status, &p.Amount, &p.Currency,
		&p.TransactionID, &p.GatewayResponse, &p.ErrorCode, &p.ErrorMessage, &p.CardLastFour,
		&p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert inserts a new payment attempt within the given transaction.
func (r *PaymentRepository) Insert(ctx context.Context, tx database.TxQuerier, p *model.Payment) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.EnrollmentID, p.UserID, p.Method, p.Status, p.Amount, p.Currency,
		p.TransactionID, p.GatewayResponse, p.ErrorCode, p.ErrorMessage, p.CardLastFour,
		p.CreatedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Update writes the outcome fields of a payment attempt. A payment row
// is only updated once, when its pending attempt is finalized.
func (r *PaymentRepository) Update(ctx context.Context, tx database.TxQuerier, p *model.Payment) error {
	_, err := tx.Exec(ctx,
		`UPDATE payments
		 SET status = $2, transaction_id = $3, gateway_response = $4, error_code = $5,
		     error_message = $6, card_last_four = $7, completed_at = $8
		 WHERE id = $1`,
		p.ID, p.Status, p.TransactionID, p.GatewayResponse, p.ErrorCode,
		p.ErrorMessage, p.CardLastFour, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a payment by id. Returns nil, nil when not found.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	return p, nil
}

// GetByEnrollment returns all payment attempts for an enrollment,
// newest first.
func (r *PaymentRepository) GetByEnrollment(ctx context.Context, enrollmentID string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE enrollment_id = $1 ORDER BY created_at DESC`,
		enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("get payments for enrollment %s: %w", enrollmentID, err)
	}
	defer rows.Close()

	payments := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}

// CancelPending marks the enrollment's pending payment attempts as
// cancelled. Completed and failed attempts are immutable and untouched;
// a charge already submitted to the gateway is never voided here.
func (r *PaymentRepository) CancelPending(ctx context.Context, tx database.TxQuerier, enrollmentID string, now time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, completed_at = $3
		 WHERE enrollment_id = $1 AND status = $4`,
		enrollmentID, model.PaymentCancelled, now, model.PaymentPending)
	if err != nil {
		return fmt.Errorf("cancel pending payments for enrollment %s: %w", enrollmentID, err)
	}
	return nil
}

// InsertTransaction appends a gateway audit record.
func (r *PaymentRepository) InsertTransaction(ctx context.Context, tx database.TxQuerier, t *model.Transaction) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, payment_id, type, success, gateway_transaction_id, raw_response, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.PaymentID, t.Type, t.Success, t.GatewayTransactionID, t.RawResponse, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
