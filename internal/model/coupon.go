package model

import "time"

// CouponType determines how a coupon's value is interpreted.
type CouponType string

const (
	// CouponPercentage treats Value as a percentage of the order amount.
	CouponPercentage CouponType = "percentage"
	// CouponFixedAmount treats Value as an absolute discount in minor units.
	CouponFixedAmount CouponType = "fixed_amount"
)

// Coupon is a discount code. Codes are stored upper-cased and matched
// case-insensitively.
type Coupon struct {
	Code                  string     `json:"code"`
	ID                    int64      `json:"id"`
	Name                  string     `json:"name"`
	Type                  CouponType `json:"type"`
	Value                 int64      `json:"value"`
	MinimumOrderAmount    int64      `json:"minimum_order_amount"`
	MaximumDiscountAmount *int64     `json:"maximum_discount_amount,omitempty"`
	UsageLimit            *int       `json:"usage_limit,omitempty"`
	UsageLimitPerUser     int        `json:"usage_limit_per_user"`
	ValidFrom             time.Time  `json:"valid_from"`
	ValidUntil            time.Time  `json:"valid_until"`
	Active                bool       `json:"active"`
	TotalUsed             int        `json:"total_used"`
	TotalDiscountGiven    int64      `json:"total_discount_given"`
	CreatedAt             time.Time  `json:"-"`
}

// IsValid reports whether the coupon can be redeemed at the given time:
// active, inside the validity window, and total usage not exhausted.
func (c *Coupon) IsValid(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.UsageLimit != nil && c.TotalUsed >= *c.UsageLimit {
		return false
	}
	return true
}

// CalculateDiscount computes the discount for an order, clamped to the
// coupon's maximum discount cap and to the order amount itself so the
// final amount can never go negative.
func (c *Coupon) CalculateDiscount(orderAmount int64, now time.Time) int64 {
	if !c.IsValid(now) || orderAmount < c.MinimumOrderAmount {
		return 0
	}

	var discount int64
	switch c.Type {
	case CouponPercentage:
		discount = orderAmount * c.Value / 100
		if c.MaximumDiscountAmount != nil && discount > *c.MaximumDiscountAmount {
			discount = *c.MaximumDiscountAmount
		}
	case CouponFixedAmount:
		discount = c.Value
	default:
		return 0
	}

	if discount > orderAmount {
		discount = orderAmount
	}
	return discount
}

// CanBeUsedBy reports whether a user with the given prior usage count
// is still under the per-user limit.
func (c *Coupon) CanBeUsedBy(currentUsage int) bool {
	return currentUsage < c.UsageLimitPerUser
}

// CouponUsage is an append-only audit row recording a redemption. It is
// written only when the applied discount is greater than zero.
type CouponUsage struct {
	ID             int64     `json:"id"`
	CouponID       int64     `json:"coupon_id"`
	UserID         int64     `json:"user_id"`
	OrderAmount    int64     `json:"order_amount"`
	DiscountAmount int64     `json:"discount_amount"`
	UsedAt         time.Time `json:"used_at"`
}
