package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/internal/service"
)

// mockRow implements pgx.Row for testing single-row queries.
type mockRow struct {
	scanFn func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.scanFn != nil {
		return m.scanFn(dest...)
	}
	return nil
}

// mockRows implements pgx.Rows over a fixed set of scan functions.
type mockRows struct {
	scans []func(dest ...any) error
	idx   int
	err   error
}

func (m *mockRows) Close()                                       {}
func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) Next() bool {
	if m.idx >= len(m.scans) {
		return false
	}
	m.idx++
	return true
}
func (m *mockRows) Scan(dest ...any) error { return m.scans[m.idx-1](dest...) }
func (m *mockRows) Values() ([]any, error) { return nil, nil }
func (m *mockRows) RawValues() [][]byte    { return nil }
func (m *mockRows) Conn() *pgx.Conn        { return nil }

// mockPool implements PoolInterface and database.TxQuerier for testing.
type mockPool struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if m.execFn != nil {
		return m.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFn != nil {
		return m.queryRowFn(ctx, sql, args...)
	}
	return &mockRow{}
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func testEnrollment() *model.Enrollment {
	return &model.Enrollment{
		ID:            "enr-1",
		UserID:        42,
		CourseID:      7,
		FullName:      "John Doe",
		Email:         "john@example.com",
		PaymentAmount: 500000,
		Status:        model.EnrollmentPaymentPending,
		PaymentStatus: model.PaymentPending,
		EnrolledAt:    time.Now(),
		MaxRetries:    3,
	}
}

func TestEnrollmentRepository_Insert_Success(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			capturedArgs = arguments
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	err := repo.Insert(context.Background(), mock, testEnrollment())

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "INSERT INTO enrollments")
	assert.Contains(t, capturedSQL, "$16", "all columns must be parameterized")
	assert.Equal(t, "enr-1", capturedArgs[0])
	assert.Equal(t, int64(42), capturedArgs[1])
	assert.Equal(t, int64(7), capturedArgs[2])
}

func TestEnrollmentRepository_Insert_DuplicateEnrollment(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			// PostgreSQL unique violation on (user_id, course_id)
			return pgconn.CommandTag{}, &pgconn.PgError{
				Code:    "23505",
				Message: "duplicate key value violates unique constraint",
			}
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	err := repo.Insert(context.Background(), mock, testEnrollment())

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrDuplicateEnrollment), "23505 must map to ErrDuplicateEnrollment")
}

func TestEnrollmentRepository_Insert_DatabaseError(t *testing.T) {
	dbErr := errors.New("connection refused")
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, dbErr
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	err := repo.Insert(context.Background(), mock, testEnrollment())

	require.Error(t, err)
	assert.False(t, errors.Is(err, service.ErrDuplicateEnrollment))
	assert.True(t, errors.Is(err, dbErr), "should wrap original error")
}

func TestEnrollmentRepository_GetByID_NotFound(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	e, err := repo.GetByID(context.Background(), "missing")

	require.NoError(t, err, "not found is not an error at this layer")
	assert.Nil(t, e)
}

func TestEnrollmentRepository_GetByIDForUpdate_LocksRow(t *testing.T) {
	var capturedSQL string
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	_, err := repo.GetByIDForUpdate(context.Background(), mock, "enr-1")

	assert.ErrorIs(t, err, service.ErrEnrollmentNotFound)
	assert.Contains(t, capturedSQL, "FOR UPDATE")
}

func TestEnrollmentRepository_Update_NotFound(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	err := repo.Update(context.Background(), mock, testEnrollment())

	assert.ErrorIs(t, err, service.ErrEnrollmentNotFound)
}

func TestEnrollmentRepository_Update_OnlyMutableFields(t *testing.T) {
	var capturedSQL string
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	err := repo.Update(context.Background(), mock, testEnrollment())

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "status")
	assert.Contains(t, capturedSQL, "next_retry_at")
	assert.NotContains(t, capturedSQL, "payment_amount", "registration fields are immutable")
	assert.NotContains(t, capturedSQL, "user_id =", "identity fields are immutable")
}

func TestEnrollmentRepository_ListByUser_StatusFilter(t *testing.T) {
	var queries []string
	var queryArgs []any
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			queries = append(queries, sql)
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*int)) = 1
				return nil
			}}
		},
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			queries = append(queries, sql)
			queryArgs = args
			return &mockRows{}, nil
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	_, total, err := repo.ListByUser(context.Background(), 42, model.EnrollmentActive, 10, 5)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "count(*)")
	assert.Contains(t, queries[0], "status = $2")
	assert.Contains(t, queries[1], "ORDER BY enrolled_at DESC")
	assert.Equal(t, []any{int64(42), model.EnrollmentActive, 10, 5}, queryArgs)
}

func TestEnrollmentRepository_ClaimDueActivations(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var capturedSQL string
	var capturedArgs []any
	mock := &mockPool{
		queryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			capturedSQL = sql
			capturedArgs = args
			return &mockRows{scans: []func(dest ...any) error{
				func(dest ...any) error { *(dest[0].(*string)) = "enr-1"; return nil },
				func(dest ...any) error { *(dest[0].(*string)) = "enr-2"; return nil },
			}}, nil
		},
	}

	repo := NewEnrollmentRepositoryWithPool(mock)
	ids, err := repo.ClaimDueActivations(context.Background(), now, time.Minute, 20)

	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1", "enr-2"}, ids)
	assert.Contains(t, capturedSQL, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, capturedSQL, "activation_attempts < max_retries")
	assert.Contains(t, capturedSQL, "RETURNING id")
	require.Len(t, capturedArgs, 4)
	assert.Equal(t, now, capturedArgs[0])
	assert.Equal(t, now.Add(time.Minute), capturedArgs[1], "the claim lease pushes next_retry_at forward")
	assert.Equal(t, model.EnrollmentActivating, capturedArgs[2])
	assert.Equal(t, 20, capturedArgs[3])
}
