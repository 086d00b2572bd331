package service

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/pkg/database"
)

// CouponRepositoryInterface defines the interface for coupon data access.
type CouponRepositoryInterface interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Coupon, error)
	CountUsageByUser(ctx context.Context, q database.TxQuerier, couponID, userID int64) (int, error)
	InsertUsage(ctx context.Context, tx database.TxQuerier, u *model.CouponUsage) error
	IncrementUsage(ctx context.Context, tx database.TxQuerier, couponID int64, discount int64) error
}

// CouponService is the discount engine: it validates codes against
// validity and usage-limit rules and applies discounts inside the
// caller's registration transaction.
type CouponService struct {
	coupons CouponRepositoryInterface
	now     func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(coupons CouponRepositoryInterface) *CouponService {
	return &CouponService{coupons: coupons, now: time.Now}
}

// Validate checks a discount code for a user and order amount. The
// coupon row is locked within tx so concurrent redemptions serialize on
// the usage counters. Returns (nil, reason, nil) for a rejected code;
// validation never mutates state. Checks run in order: code exists,
// active and within validity window, minimum order amount, per-user
// usage limit; the first failing reason is returned.
func (s *CouponService) Validate(ctx context.Context, tx database.TxQuerier, code string, userID, orderAmount int64) (*model.Coupon, string, error) {
	coupon, err := s.coupons.GetByCodeForUpdate(ctx, tx, code)
	if err != nil {
		return nil, "", fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, "Invalid discount code", nil
	}
	if !coupon.IsValid(s.now()) {
		return nil, "Discount code has expired or is not active", nil
	}
	if orderAmount < coupon.MinimumOrderAmount {
		return nil, fmt.Sprintf("Minimum order amount is %d", coupon.MinimumOrderAmount), nil
	}

	usage, err := s.coupons.CountUsageByUser(ctx, tx, coupon.ID, userID)
	if err != nil {
		return nil, "", fmt.Errorf("count coupon usage: %w", err)
	}
	if !coupon.CanBeUsedBy(usage) {
		return nil, "You have reached the usage limit for this coupon", nil
	}

	return coupon, "Valid discount code", nil
}

// Apply computes the discount for the order and records the redemption.
// A zero-effect application is not recorded: it writes no usage row and
// never consumes usage-limit budget.
func (s *CouponService) Apply(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon, userID, orderAmount int64) (int64, error) {
	now := s.now()
	discount := coupon.CalculateDiscount(orderAmount, now)
	if discount <= 0 {
		return 0, nil
	}

	err := s.coupons.InsertUsage(ctx, tx, &model.CouponUsage{
		CouponID:       coupon.ID,
		UserID:         userID,
		OrderAmount:    orderAmount,
		DiscountAmount: discount,
		UsedAt:         now,
	})
	if err != nil {
		return 0, fmt.Errorf("record coupon usage: %w", err)
	}
	if err := s.coupons.IncrementUsage(ctx, tx, coupon.ID, discount); err != nil {
		return 0, fmt.Errorf("increment coupon usage: %w", err)
	}
	return discount, nil
}
