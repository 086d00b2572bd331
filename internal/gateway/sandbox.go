package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sandbox is a deterministic gateway for development and staging. It
// approves every charge except well-known decline triggers, mirroring
// how hosted gateways expose test card numbers. No randomness: the same
// input always yields the same outcome.
type Sandbox struct {
	now func() time.Time
}

// NewSandbox creates a sandbox gateway.
func NewSandbox() *Sandbox {
	return &Sandbox{now: time.Now}
}

// Decline triggers recognized by the sandbox.
const (
	// SandboxDeclinedCardSuffix declines a card charge when the card
	// number ends with it (insufficient funds).
	SandboxDeclinedCardSuffix = "0002"
	// SandboxDeclinedPayPalDomain declines a PayPal charge for accounts
	// in this domain.
	SandboxDeclinedPayPalDomain = "@decline.test"
)

// Charge implements Gateway.
func (g *Sandbox) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}

	switch d := req.Details.(type) {
	case CreditCardDetails:
		if strings.HasSuffix(strings.TrimSpace(d.Number), SandboxDeclinedCardSuffix) {
			return ChargeResult{
				Success:      false,
				ErrorCode:    CodeCardDeclined,
				ErrorMessage: "Credit card declined",
				RawResponse:  "Insufficient funds",
			}, nil
		}
		return g.approved("txn", req), nil
	case PayPalDetails:
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(d.Email)), SandboxDeclinedPayPalDomain) {
			return ChargeResult{
				Success:      false,
				ErrorCode:    CodePayPalRejected,
				ErrorMessage: "PayPal payment rejected",
				RawResponse:  "Payer account restricted",
			}, nil
		}
		return g.approved("pp", req), nil
	case BankTransferDetails:
		return g.approved("bt", req), nil
	default:
		return ChargeResult{}, fmt.Errorf("%w: %T", ErrUnknownMethod, req.Details)
	}
}

func (g *Sandbox) approved(prefix string, req ChargeRequest) ChargeResult {
	return ChargeResult{
		Success:       true,
		TransactionID: fmt.Sprintf("%s_%s_%d", prefix, req.PaymentID, g.now().Unix()),
		RawResponse:   "Approved",
	}
}
