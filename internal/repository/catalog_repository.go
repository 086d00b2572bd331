package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/enrollment-service/internal/model"
)

// CatalogRepository reads the course, user and progress collaborators.
// These are owned by other services; this core never mutates them.
type CatalogRepository struct {
	pool PoolInterface
}

// NewCatalogRepository creates a new CatalogRepository with the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// NewCatalogRepositoryWithPool creates a repository with a custom pool
// interface. This is primarily used for testing.
func NewCatalogRepositoryWithPool(pool PoolInterface) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetCourse returns the catalog projection of a course, or nil, nil when
// the course does not exist.
func (r *CatalogRepository) GetCourse(ctx context.Context, id int64) (*model.Course, error) {
	var c model.Course
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, slug, price, total_lessons FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &c.Slug, &c.Price, &c.TotalLessons)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course %d: %w", id, err)
	}
	return &c, nil
}

// GetUser returns the account projection of a user, or nil, nil when
// the user does not exist.
func (r *CatalogRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// GetProgress returns the user's lesson progress for a course, or
// nil, nil when no progress has been recorded yet.
func (r *CatalogRepository) GetProgress(ctx context.Context, userID, courseID int64) (*model.Progress, error) {
	var p model.Progress
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, course_id, completed_lessons FROM progress WHERE user_id = $1 AND course_id = $2`,
		userID, courseID).
		Scan(&p.UserID, &p.CourseID, &p.CompletedLessons)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get progress for user %d course %d: %w", userID, courseID, err)
	}
	return &p, nil
}
