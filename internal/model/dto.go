package model

import "time"

// RegisterEnrollmentRequest is the DTO for POST /api/enrollments.
type RegisterEnrollmentRequest struct {
	UserID       int64  `json:"user_id" validate:"required,gt=0"`
	CourseID     int64  `json:"course_id" validate:"required,gt=0"`
	FullName     string `json:"full_name" validate:"required,notblank,fullname,max=100"`
	Email        string `json:"email" validate:"required,email,max=255"`
	DiscountCode string `json:"discount_code" validate:"omitempty,notblank,max=50"`
}

// RegistrationResult is the response body for a successful registration.
type RegistrationResult struct {
	Enrollment      *Enrollment `json:"enrollment"`
	FinalAmount     int64       `json:"final_amount"`
	PaymentRequired bool        `json:"payment_required"`
	PaymentURL      *string     `json:"payment_url,omitempty"`
	AccessImmediate bool        `json:"access_immediate"`
}

// PaymentDetailsRequest carries the method-specific fields of a charge
// request. Only the fields for the chosen method are expected; full card
// data is never persisted, only the last four digits.
type PaymentDetailsRequest struct {
	CardNumber     string `json:"card_number"`
	CardExpiry     string `json:"card_expiry"`
	CardCVV        string `json:"card_cvv"`
	CardHolderName string `json:"card_holder_name"`

	PayPalEmail string `json:"paypal_email"`

	BankAccountName   string `json:"bank_account_name"`
	BankAccountNumber string `json:"bank_account_number"`
	BankCode          string `json:"bank_code"`
}

// ProcessPaymentRequest is the DTO for POST /api/enrollments/:id/payments.
type ProcessPaymentRequest struct {
	PaymentMethod  string                `json:"payment_method" validate:"required,notblank"`
	PaymentDetails PaymentDetailsRequest `json:"payment_details"`
}

// ActivationResult is returned by the activate and retry endpoints.
type ActivationResult struct {
	Granted             bool       `json:"granted"`
	FirstLessonURL      *string    `json:"first_lesson_url,omitempty"`
	RetryAvailable      bool       `json:"retry_available"`
	ActivationAttempts  int        `json:"activation_attempts"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// CertificateInfo is a placeholder until certificate issuance ships.
type CertificateInfo struct {
	Issued         bool    `json:"issued"`
	IssueDate      *string `json:"issue_date"`
	CertificateURL *string `json:"certificate_url"`
}

// ProgressSummary is the completed/total lesson counter included in
// enrollment detail responses.
type ProgressSummary struct {
	CompletedLessons int `json:"completed_lessons"`
	TotalLessons     int `json:"total_lessons"`
	Percent          int `json:"percent"`
}

// EnrollmentDetail is the full status view for GET /api/enrollments/:id,
// joining the enrollment with its course and progress collaborators.
type EnrollmentDetail struct {
	Enrollment  *Enrollment      `json:"enrollment"`
	FinalAmount int64            `json:"final_amount"`
	CourseTitle string           `json:"course_title,omitempty"`
	CourseSlug  string           `json:"course_slug,omitempty"`
	Progress    *ProgressSummary `json:"progress,omitempty"`
	Certificate CertificateInfo  `json:"certificate"`
}

// Pagination is the page metadata for list endpoints.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int   `json:"total_items"`
	PerPage     int   `json:"per_page"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// EnrollmentPage is the response for GET /api/users/:id/enrollments.
type EnrollmentPage struct {
	Data       []EnrollmentDetail `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// Access check reason codes for GET /api/courses/:id/access.
const (
	ReasonNotEnrolled       = "NOT_ENROLLED"
	ReasonPaymentPending    = "PAYMENT_PENDING"
	ReasonEnrollmentExpired = "ENROLLMENT_EXPIRED"
)

// AccessCheckResult is the response for GET /api/courses/:id/access.
type AccessCheckResult struct {
	HasAccess        bool        `json:"has_access"`
	EnrollmentStatus *Enrollment `json:"enrollment_status,omitempty"`
	NextLessonURL    *string     `json:"next_lesson_url,omitempty"`
	ReasonCode       string      `json:"reason_code,omitempty"`
	Message          string      `json:"message,omitempty"`
}
