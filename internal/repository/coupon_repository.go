package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/pkg/database"
)

const couponColumns = `id, code, name, type, value, minimum_order_amount,
	maximum_discount_amount, usage_limit, usage_limit_per_user, valid_from,
	valid_until, active, total_used, total_discount_given, created_at`

// CouponRepository provides data access for coupons and their usage
// audit trail using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a repository with a custom pool
// interface. This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.Type, &c.Value, &c.MinimumOrderAmount,
		&c.MaximumDiscountAmount, &c.UsageLimit, &c.UsageLimitPerUser, &c.ValidFrom,
		&c.ValidUntil, &c.Active, &c.TotalUsed, &c.TotalDiscountGiven, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// normalizeCode applies the canonical coupon code form: trimmed and
// upper-cased, matching how codes are stored.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetByCode retrieves a coupon by code, case-insensitively.
// Returns nil, nil when the code is unknown.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`, normalizeCode(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by code %s: %w", code, err)
	}
	return c, nil
}

// GetByCodeForUpdate retrieves a coupon with a row lock so usage
// counters cannot be raced past their limits by concurrent redemptions.
// Returns nil, nil when the code is unknown.
func (r *CouponRepository) GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Coupon, error) {
	c, err := scanCoupon(tx.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1 FOR UPDATE`, normalizeCode(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon for update %s: %w", code, err)
	}
	return c, nil
}

// CountUsageByUser returns how many times the user has redeemed the coupon.
func (r *CouponRepository) CountUsageByUser(ctx context.Context, q database.TxQuerier, couponID, userID int64) (int, error) {
	var count int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count coupon usage: %w", err)
	}
	return count, nil
}

// InsertUsage appends a redemption audit row within a transaction.
func (r *CouponRepository) InsertUsage(ctx context.Context, tx database.TxQuerier, u *model.CouponUsage) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO coupon_usages (coupon_id, user_id, order_amount, discount_amount, used_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.CouponID, u.UserID, u.OrderAmount, u.DiscountAmount, u.UsedAt)
	if err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	return nil
}

// IncrementUsage bumps the coupon's aggregate usage counters. Must be
// called within the transaction that locked the coupon row.
func (r *CouponRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, couponID int64, discount int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE coupons
		 SET total_used = total_used + 1, total_discount_given = total_discount_given + $2
		 WHERE id = $1`,
		couponID, discount)
	if err != nil {
		return fmt.Errorf("increment coupon usage %d: %w", couponID, err)
	}
	return nil
}
