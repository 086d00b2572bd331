package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRepository_GetCourse(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*int64)) = 7
				*(dest[1].(*string)) = "Go Basics"
				*(dest[2].(*string)) = "go-basics"
				*(dest[3].(*int64)) = 500000
				*(dest[4].(*int)) = 10
				return nil
			}}
		},
	}

	repo := NewCatalogRepositoryWithPool(mock)
	course, err := repo.GetCourse(context.Background(), 7)

	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, "Go Basics", course.Title)
	assert.Equal(t, int64(500000), course.Price)
	assert.Equal(t, 10, course.TotalLessons)
}

func TestCatalogRepository_GetCourse_NotFound(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewCatalogRepositoryWithPool(mock)
	course, err := repo.GetCourse(context.Background(), 999)

	require.NoError(t, err)
	assert.Nil(t, course)
}

func TestCatalogRepository_GetUser_NotFound(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewCatalogRepositoryWithPool(mock)
	user, err := repo.GetUser(context.Background(), 999)

	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCatalogRepository_GetProgress_NotRecorded(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewCatalogRepositoryWithPool(mock)
	progress, err := repo.GetProgress(context.Background(), 42, 7)

	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestCatalogRepository_GetCourse_DatabaseError(t *testing.T) {
	dbErr := errors.New("connection refused")
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return dbErr }}
		},
	}

	repo := NewCatalogRepositoryWithPool(mock)
	_, err := repo.GetCourse(context.Background(), 7)

	require.Error(t, err)
	assert.True(t, errors.Is(err, dbErr))
}
