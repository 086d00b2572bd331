// Package gateway abstracts provider-specific charge attempts behind a
// uniform result type. Callers never branch on payment method beyond
// constructing the matching detail struct; the gateway presents one
// ChargeResult shape regardless of backend provider.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coursehub/enrollment-service/internal/model"
)

// Method identifies a supported payment method.
type Method string

const (
	MethodCreditCard   Method = "credit_card"
	MethodPayPal       Method = "paypal"
	MethodBankTransfer Method = "bank_transfer"
)

// ErrUnknownMethod is returned when a request names an unsupported method.
var ErrUnknownMethod = errors.New("invalid payment method")

// ErrMissingPaymentData is returned when a required method-specific
// field is absent. It is checked before any gateway call is attempted.
var ErrMissingPaymentData = errors.New("missing payment data")

// Well-known gateway error codes.
const (
	CodeMissingPaymentData = "MISSING_PAYMENT_DATA"
	CodeCardDeclined       = "CARD_DECLINED"
	CodePayPalRejected     = "PAYPAL_REJECTED"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	CodeGatewayError       = "GATEWAY_ERROR"
)

// MissingFieldError names the absent required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingPaymentData }

// ParseMethod parses a wire payment method string.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.TrimSpace(strings.ToLower(s))) {
	case MethodCreditCard:
		return MethodCreditCard, nil
	case MethodPayPal:
		return MethodPayPal, nil
	case MethodBankTransfer:
		return MethodBankTransfer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// MethodDetails is the tagged union over method-specific charge fields.
type MethodDetails interface {
	Method() Method
	// Validate checks the required fields for the method. A failure wraps
	// ErrMissingPaymentData.
	Validate() error
}

// CreditCardDetails carries the card fields required for a card charge.
// The full card number is forwarded to the gateway and never persisted.
type CreditCardDetails struct {
	Number     string
	Expiry     string
	CVV        string
	HolderName string
}

func (d CreditCardDetails) Method() Method { return MethodCreditCard }

func (d CreditCardDetails) Validate() error {
	switch {
	case strings.TrimSpace(d.Number) == "":
		return &MissingFieldError{Field: "card_number"}
	case strings.TrimSpace(d.Expiry) == "":
		return &MissingFieldError{Field: "card_expiry"}
	case strings.TrimSpace(d.CVV) == "":
		return &MissingFieldError{Field: "card_cvv"}
	case strings.TrimSpace(d.HolderName) == "":
		return &MissingFieldError{Field: "card_holder_name"}
	}
	return nil
}

// LastFour returns the last four digits of the card number, the only
// part of the card data the service stores.
func (d CreditCardDetails) LastFour() string {
	n := strings.TrimSpace(d.Number)
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// PayPalDetails carries the PayPal account for a charge.
type PayPalDetails struct {
	Email string
}

func (d PayPalDetails) Method() Method { return MethodPayPal }

func (d PayPalDetails) Validate() error {
	if strings.TrimSpace(d.Email) == "" {
		return &MissingFieldError{Field: "paypal_email"}
	}
	return nil
}

// BankTransferDetails carries the bank account for a transfer charge.
type BankTransferDetails struct {
	AccountName   string
	AccountNumber string
	BankCode      string
}

func (d BankTransferDetails) Method() Method { return MethodBankTransfer }

func (d BankTransferDetails) Validate() error {
	switch {
	case strings.TrimSpace(d.AccountName) == "":
		return &MissingFieldError{Field: "bank_account_name"}
	case strings.TrimSpace(d.AccountNumber) == "":
		return &MissingFieldError{Field: "bank_account_number"}
	}
	return nil
}

// BuildDetails converts the wire DTO into the detail struct for the
// requested method. Field presence is validated later, by Validate.
func BuildDetails(method string, req model.PaymentDetailsRequest) (MethodDetails, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	switch m {
	case MethodCreditCard:
		return CreditCardDetails{
			Number:     req.CardNumber,
			Expiry:     req.CardExpiry,
			CVV:        req.CardCVV,
			HolderName: req.CardHolderName,
		}, nil
	case MethodPayPal:
		return PayPalDetails{Email: req.PayPalEmail}, nil
	default:
		return BankTransferDetails{
			AccountName:   req.BankAccountName,
			AccountNumber: req.BankAccountNumber,
			BankCode:      req.BankCode,
		}, nil
	}
}

// ChargeRequest is a single charge attempt.
type ChargeRequest struct {
	PaymentID string
	Amount    int64
	Currency  string
	Details   MethodDetails
}

// ChargeResult is the uniform outcome shape for every method and
// provider. Exactly one of TransactionID / ErrorCode is meaningful
// depending on Success.
type ChargeResult struct {
	Success       bool
	TransactionID string
	ErrorCode     string
	ErrorMessage  string
	RawResponse   string
}

// Gateway is the injectable charge interface. Implementations must
// honor ctx cancellation; the caller applies the charge timeout.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}
