package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/internal/service"
	"github.com/coursehub/enrollment-service/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const enrollmentColumns = `id, user_id, course_id, full_name, email, payment_amount,
	discount_code, discount_applied, status, payment_status, access_granted,
	enrolled_at, activated_at, activation_attempts, max_retries, next_retry_at`

// EnrollmentRepository provides data access for enrollments using pgx.
type EnrollmentRepository struct {
	pool PoolInterface
}

// NewEnrollmentRepository creates a new EnrollmentRepository with the given pool.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// NewEnrollmentRepositoryWithPool creates a repository with a custom pool
// interface. This is primarily used for testing.
func NewEnrollmentRepositoryWithPool(pool PoolInterface) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	var e model.Enrollment
	err := row.Scan(
		&e.ID, &e.UserID, &e.CourseID, &e.FullName, &e.Email, &e.PaymentAmount,
		&e.DiscountCode, &e.DiscountApplied, &e.Status, &e.PaymentStatus, &e.AccessGranted,
		&e.EnrolledAt, &e.ActivatedAt, &e.ActivationAttempts, &e.MaxRetries, &e.NextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert inserts a new enrollment within the given transaction.
// The UNIQUE (user_id, course_id) constraint is the authoritative guard
// against concurrent duplicate registrations; a violation is returned
// as service.ErrDuplicateEnrollment, never as a raw constraint error.
func (r *EnrollmentRepository) Insert(ctx context.Context, tx database.TxQuerier, e *model.Enrollment) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO enrollments (`+enrollmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.UserID, e.CourseID, e.FullName, e.Email, e.PaymentAmount,
		e.DiscountCode, e.DiscountApplied, e.Status, e.PaymentStatus, e.AccessGranted,
		e.EnrolledAt, e.ActivatedAt, e.ActivationAttempts, e.MaxRetries, e.NextRetryAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrDuplicateEnrollment
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// GetByID retrieves an enrollment by its id.
// Returns nil, nil if the enrollment is not found (service layer handles this).
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.pool.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get enrollment %s: %w", id, err)
	}
	return e, nil
}

// GetByIDForUpdate retrieves an enrollment with a row lock (SELECT FOR UPDATE)
// so state transitions run as a single read-modify-write unit.
// Returns service.ErrEnrollmentNotFound if the enrollment doesn't exist.
func (r *EnrollmentRepository) GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id string) (*model.Enrollment, error) {
	e, err := scanEnrollment(tx.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment for update %s: %w", id, err)
	}
	return e, nil
}

// GetByUserAndCourse retrieves the enrollment for a (user, course) pair.
// Returns nil, nil when no enrollment exists.
func (r *EnrollmentRepository) GetByUserAndCourse(ctx context.Context, userID, courseID int64) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.pool.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2`,
		userID, courseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get enrollment for user %d course %d: %w", userID, courseID, err)
	}
	return e, nil
}

// Update writes the mutable state machine fields. The identity and
// registration fields are immutable and never updated.
func (r *EnrollmentRepository) Update(ctx context.Context, tx database.TxQuerier, e *model.Enrollment) error {
	tag, err := tx.Exec(ctx,
		`UPDATE enrollments
		 SET status = $2, payment_status = $3, access_granted = $4, activated_at = $5,
		     activation_attempts = $6, next_retry_at = $7
		 WHERE id = $1`,
		e.ID, e.Status, e.PaymentStatus, e.AccessGranted, e.ActivatedAt,
		e.ActivationAttempts, e.NextRetryAt)
	if err != nil {
		return fmt.Errorf("update enrollment %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrEnrollmentNotFound
	}
	return nil
}

// ListByUser returns one page of a user's enrollments, newest first,
// with the total count. An empty status means no filter.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID int64, status model.EnrollmentStatus, offset, limit int) ([]model.Enrollment, int, error) {
	var total int
	countQuery := `SELECT count(*) FROM enrollments WHERE user_id = $1`
	listQuery := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		countQuery += ` AND status = $2`
		listQuery += ` AND status = $2`
		args = append(args, status)
	}
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count enrollments for user %d: %w", userID, err)
	}

	listQuery += fmt.Sprintf(` ORDER BY enrolled_at DESC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list enrollments for user %d: %w", userID, err)
	}
	defer rows.Close()

	enrollments := []model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan enrollment row: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate enrollment rows: %w", err)
	}
	return enrollments, total, nil
}

// ClaimDueActivations claims up to limit enrollments whose activation
// retry is due and pushes their next_retry_at forward by the lease so a
// concurrent poller cannot pick them up again. SKIP LOCKED keeps
// concurrent claimers from blocking on each other.
func (r *EnrollmentRepository) ClaimDueActivations(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE enrollments
		 SET next_retry_at = $2
		 WHERE id IN (
		     SELECT id FROM enrollments
		     WHERE status = $3
		       AND activation_attempts < max_retries
		       AND (next_retry_at IS NULL OR next_retry_at <= $1)
		     ORDER BY next_retry_at NULLS FIRST
		     LIMIT $4
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id`,
		now, now.Add(lease), model.EnrollmentActivating, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due activations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed ids: %w", err)
	}
	return ids, nil
}
