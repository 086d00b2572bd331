package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/enrollment-service/internal/gateway"
	"github.com/coursehub/enrollment-service/internal/model"
	"github.com/coursehub/enrollment-service/internal/validator"
	"github.com/coursehub/enrollment-service/pkg/database"
)

// EnrollmentRepositoryInterface defines the interface for enrollment data access.
type EnrollmentRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, e *model.Enrollment) error
	GetByID(ctx context.Context, id string) (*model.Enrollment, error)
	GetByIDForUpdate(ctx context.Context, tx database.TxQuerier, id string) (*model.Enrollment, error)
	GetByUserAndCourse(ctx context.Context, userID, courseID int64) (*model.Enrollment, error)
	Update(ctx context.Context, tx database.TxQuerier, e *model.Enrollment) error
	ListByUser(ctx context.Context, userID int64, status model.EnrollmentStatus, offset, limit int) ([]model.Enrollment, int, error)
}

// PaymentRepositoryInterface defines the interface for payment data access.
type PaymentRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, p *model.Payment) error
	Update(ctx context.Context, tx database.TxQuerier, p *model.Payment) error
	GetByEnrollment(ctx context.Context, enrollmentID string) ([]model.Payment, error)
	CancelPending(ctx context.Context, tx database.TxQuerier, enrollmentID string, now time.Time) error
	InsertTransaction(ctx context.Context, tx database.TxQuerier, t *model.Transaction) error
}

// CatalogRepositoryInterface defines the read-only course/user/progress
// collaborators consumed by this core.
type CatalogRepositoryInterface interface {
	GetCourse(ctx context.Context, id int64) (*model.Course, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetProgress(ctx context.Context, userID, courseID int64) (*model.Progress, error)
}

// CouponEngine is the discount engine consumed by registration.
type CouponEngine interface {
	Validate(ctx context.Context, tx database.TxQuerier, code string, userID, orderAmount int64) (*model.Coupon, string, error)
	Apply(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon, userID, orderAmount int64) (int64, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EnrollmentService owns the enrollment lifecycle: registration,
// payment processing, activation and the status/access queries.
type EnrollmentService struct {
	pool        TxBeginner
	enrollments EnrollmentRepositoryInterface
	payments    PaymentRepositoryInterface
	coupons     CouponEngine
	catalog     CatalogRepositoryInterface
	gateway     gateway.Gateway
	provisioner Provisioner

	policy        ActivationPolicy
	chargeTimeout time.Duration
	currency      string
	now           func() time.Time
}

// Options carries the tunables for NewEnrollmentService.
type Options struct {
	Policy        ActivationPolicy
	ChargeTimeout time.Duration
	Currency      string
}

// NewEnrollmentService creates a new EnrollmentService with the given
// pool, repositories and collaborators.
func NewEnrollmentService(
	pool *pgxpool.Pool,
	enrollments EnrollmentRepositoryInterface,
	payments PaymentRepositoryInterface,
	coupons CouponEngine,
	catalog CatalogRepositoryInterface,
	gw gateway.Gateway,
	provisioner Provisioner,
	opts Options,
) *EnrollmentService {
	return newEnrollmentService(pool, enrollments, payments, coupons, catalog, gw, provisioner, opts)
}

// NewEnrollmentServiceWithTxBeginner creates an EnrollmentService with a
// custom TxBeginner. Primarily used for testing.
func NewEnrollmentServiceWithTxBeginner(
	pool TxBeginner,
	enrollments EnrollmentRepositoryInterface,
	payments PaymentRepositoryInterface,
	coupons CouponEngine,
	catalog CatalogRepositoryInterface,
	gw gateway.Gateway,
	provisioner Provisioner,
	opts Options,
) *EnrollmentService {
	return newEnrollmentService(pool, enrollments, payments, coupons, catalog, gw, provisioner, opts)
}

func newEnrollmentService(
	pool TxBeginner,
	enrollments EnrollmentRepositoryInterface,
	payments PaymentRepositoryInterface,
	coupons CouponEngine,
	catalog CatalogRepositoryInterface,
	gw gateway.Gateway,
	provisioner Provisioner,
	opts Options,
) *EnrollmentService {
	if opts.Policy.MaxRetries == 0 {
		opts.Policy = DefaultActivationPolicy()
	}
	if opts.ChargeTimeout == 0 {
		opts.ChargeTimeout = 15 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &EnrollmentService{
		pool:          pool,
		enrollments:   enrollments,
		payments:      payments,
		coupons:       coupons,
		catalog:       catalog,
		gateway:       gw,
		provisioner:   provisioner,
		policy:        opts.Policy,
		chargeTimeout: opts.ChargeTimeout,
		currency:      opts.Currency,
		now:           time.Now,
	}
}

// transition applies one state machine edge, validating it against the
// edge table first.
func (s *EnrollmentService) transition(e *model.Enrollment, target model.EnrollmentStatus, paymentStatus *model.PaymentStatus) error {
	if !e.Status.CanTransitionTo(target) {
		return &TransitionError{From: e.Status, To: target}
	}
	e.ApplyStatus(target, s.now())
	if paymentStatus != nil {
		e.PaymentStatus = *paymentStatus
	}
	return nil
}

// validateRegistration re-checks the registration input. The handler
// validates the DTO already; the service repeats the checks so it is
// safe to call from other entry points.
func validateRegistration(req *model.RegisterEnrollmentRequest) error {
	if !validator.IsFullName(req.FullName) {
		return &ValidationError{Field: "full_name", Message: "must be 2-100 letters, spaces, hyphens or apostrophes"}
	}
	if len(req.Email) > 255 {
		return &ValidationError{Field: "email", Message: "must be less than 255 characters"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// Register initializes the course registration workflow: validates the
// input, resolves the course price, applies an optional discount code
// and creates the enrollment in its initial state. Free courses are
// created directly enrolled with access granted and no payment record.
//
// The coupon lock, usage recording and enrollment insert run in one
// transaction. The uniqueness constraint on (user, course) resolves the
// race between concurrent duplicate registrations: exactly one insert
// succeeds, the other surfaces ErrDuplicateEnrollment.
func (s *EnrollmentService) Register(ctx context.Context, req *model.RegisterEnrollmentRequest) (*model.RegistrationResult, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	course, err := s.catalog.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	user, err := s.catalog.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// Pre-check for a friendlier error; the insert below remains the
	// authoritative guard.
	existing, err := s.enrollments.GetByUserAndCourse(ctx, req.UserID, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check existing enrollment: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEnrollment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	amount := course.Price
	var discountApplied int64
	var discountCode *string

	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		coupon, message, err := s.coupons.Validate(ctx, tx, code, req.UserID, amount)
		if err != nil {
			return nil, fmt.Errorf("validate discount: %w", err)
		}
		if coupon == nil {
			// The registration is aborted: an enrollment is never created
			// with a rejected code.
			return nil, &DiscountError{Code: "INVALID_DISCOUNT", Message: message}
		}
		discountApplied, err = s.coupons.Apply(ctx, tx, coupon, req.UserID, amount)
		if err != nil {
			return nil, fmt.Errorf("apply discount: %w", err)
		}
		discountCode = &coupon.Code
	}

	now := s.now()
	enrollment := &model.Enrollment{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		CourseID:        req.CourseID,
		FullName:        strings.TrimSpace(req.FullName),
		Email:           req.Email,
		PaymentAmount:   amount,
		DiscountCode:    discountCode,
		DiscountApplied: discountApplied,
		EnrolledAt:      now,
		MaxRetries:      s.policy.MaxRetries,
	}
	if enrollment.FinalAmount() == 0 {
		// Free courses skip payment entirely.
		enrollment.Status = model.EnrollmentEnrolled
		enrollment.PaymentStatus = model.PaymentCompleted
		enrollment.AccessGranted = true
		enrollment.ActivatedAt = &now
	} else {
		enrollment.Status = model.EnrollmentPaymentPending
		enrollment.PaymentStatus = model.PaymentPending
	}

	if err := s.enrollments.Insert(ctx, tx, enrollment); err != nil {
		if errors.Is(err, ErrDuplicateEnrollment) {
			return nil, ErrDuplicateEnrollment
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &model.RegistrationResult{
		Enrollment:      enrollment,
		FinalAmount:     enrollment.FinalAmount(),
		PaymentRequired: enrollment.PaymentRequired(),
		AccessImmediate: !enrollment.PaymentRequired(),
	}
	if result.PaymentRequired {
		url := "/payment/process/" + enrollment.ID
		result.PaymentURL = &url
	}
	return result, nil
}

// ProcessPayment charges the enrollment's final amount through the
// payment gateway. On success the enrollment becomes enrolled with
// payment completed; on failure the enrollment stays payment_pending so
// the user may retry with a fresh payment attempt. There is no automatic
// retry at this layer.
func (s *EnrollmentService) ProcessPayment(ctx context.Context, enrollmentID string, details gateway.MethodDetails) (*model.Enrollment, error) {
	if details == nil {
		return nil, ErrInvalidRequest
	}
	// Required method fields are checked before any gateway call.
	if err := details.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	enrollment, err := s.enrollments.GetByIDForUpdate(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != model.EnrollmentPaymentPending {
		return nil, ErrPaymentNotPending
	}

	now := s.now()
	payment := &model.Payment{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		UserID:       enrollment.UserID,
		Method:       string(details.Method()),
		Status:       model.PaymentPending,
		Amount:       enrollment.FinalAmount(),
		Currency:     s.currency,
		CreatedAt:    now,
	}
	if card, ok := details.(gateway.CreditCardDetails); ok {
		lastFour := card.LastFour()
		payment.CardLastFour = &lastFour
	}
	if err := s.payments.Insert(ctx, tx, payment); err != nil {
		return nil, err
	}

	result := s.charge(ctx, gateway.ChargeRequest{
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Details:   details,
	})

	if err := s.recordChargeOutcome(ctx, tx, payment, result); err != nil {
		return nil, err
	}

	if result.Success {
		completed := model.PaymentCompleted
		if err := s.transition(enrollment, model.EnrollmentEnrolled, &completed); err != nil {
			return nil, err
		}
	} else {
		// Recoverable: a fresh payment attempt may follow.
		failed := model.PaymentFailed
		if err := s.transition(enrollment, model.EnrollmentPaymentPending, &failed); err != nil {
			return nil, err
		}
	}
	if err := s.enrollments.Update(ctx, tx, enrollment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if !result.Success {
		return nil, &PaymentError{
			Code:            result.ErrorCode,
			Message:         result.ErrorMessage,
			GatewayResponse: result.RawResponse,
		}
	}
	return enrollment, nil
}

// charge runs the gateway call under the configured timeout. A timeout
// or transport error is a failed charge, never a success.
func (s *EnrollmentService) charge(ctx context.Context, req gateway.ChargeRequest) gateway.ChargeResult {
	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	defer cancel()

	result, err := s.gateway.Charge(chargeCtx, req)
	if err == nil {
		return result
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gateway.ChargeResult{
			Success:      false,
			ErrorCode:    gateway.CodeGatewayTimeout,
			ErrorMessage: "payment gateway did not respond in time",
		}
	}
	return gateway.ChargeResult{
		Success:      false,
		ErrorCode:    gateway.CodeGatewayError,
		ErrorMessage: err.Error(),
	}
}

// recordChargeOutcome finalizes the payment row and appends the gateway
// audit transaction.
func (s *EnrollmentService) recordChargeOutcome(ctx context.Context, tx database.TxQuerier, payment *model.Payment, result gateway.ChargeResult) error {
	now := s.now()
	audit := &model.Transaction{
		ID:        uuid.NewString(),
		PaymentID: payment.ID,
		Type:      model.TransactionTypeCharge,
		Success:   result.Success,
		CreatedAt: now,
	}
	if result.TransactionID != "" {
		audit.GatewayTransactionID = &result.TransactionID
	}
	if result.RawResponse != "" {
		audit.RawResponse = &result.RawResponse
	}
	if err := s.payments.InsertTransaction(ctx, tx, audit); err != nil {
		return err
	}

	if result.Success {
		payment.Status = model.PaymentCompleted
		payment.TransactionID = &result.TransactionID
		payment.ErrorCode = nil
		payment.ErrorMessage = nil
		payment.CompletedAt = &now
	} else {
		payment.Status = model.PaymentFailed
		payment.ErrorCode = &result.ErrorCode
		payment.ErrorMessage = &result.ErrorMessage
		payment.CompletedAt = &now
	}
	if result.RawResponse != "" {
		payment.GatewayResponse = &result.RawResponse
	}
	return s.payments.Update(ctx, tx, payment)
}

// Cancel moves a non-terminal enrollment to cancelled and revokes
// access. Pending payment attempts are marked cancelled locally; a
// charge already submitted to the gateway is not voided here -
// reconciliation is an operator workflow over the transaction audit.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID string) (*model.Enrollment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	enrollment, err := s.enrollments.GetByIDForUpdate(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(enrollment, model.EnrollmentCancelled, nil); err != nil {
		return nil, err
	}
	if enrollment.PaymentStatus == model.PaymentPending {
		enrollment.PaymentStatus = model.PaymentCancelled
	}
	if err := s.payments.CancelPending(ctx, tx, enrollment.ID, s.now()); err != nil {
		return nil, err
	}
	if err := s.enrollments.Update(ctx, tx, enrollment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return enrollment, nil
}

// GetStatus returns the full enrollment view including the course and
// progress summaries from the external collaborators.
func (s *EnrollmentService) GetStatus(ctx context.Context, enrollmentID string) (*model.EnrollmentDetail, error) {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	return s.buildDetail(ctx, enrollment)
}

func (s *EnrollmentService) buildDetail(ctx context.Context, enrollment *model.Enrollment) (*model.EnrollmentDetail, error) {
	detail := &model.EnrollmentDetail{
		Enrollment:  enrollment,
		FinalAmount: enrollment.FinalAmount(),
	}

	course, err := s.catalog.GetCourse(ctx, enrollment.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course != nil {
		detail.CourseTitle = course.Title
		detail.CourseSlug = course.Slug

		progress, err := s.catalog.GetProgress(ctx, enrollment.UserID, enrollment.CourseID)
		if err != nil {
			return nil, fmt.Errorf("get progress: %w", err)
		}
		summary := &model.ProgressSummary{TotalLessons: course.TotalLessons}
		if progress != nil {
			summary.CompletedLessons = progress.CompletedLessons
		}
		if summary.TotalLessons > 0 {
			summary.Percent = summary.CompletedLessons * 100 / summary.TotalLessons
		}
		detail.Progress = summary
	}
	return detail, nil
}

// ListUserEnrollments returns one page of a user's enrollments. The
// limit is clamped to [1,100]; an unknown status filter yields an empty
// page rather than an error.
func (s *EnrollmentService) ListUserEnrollments(ctx context.Context, userID int64, statusFilter string, page, limit int) (*model.EnrollmentPage, error) {
	if userID <= 0 {
		return nil, &ValidationError{Field: "user_id", Message: "invalid user id"}
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	} else if limit > 100 {
		limit = 100
	}

	var status model.EnrollmentStatus
	if statusFilter != "" {
		status = model.EnrollmentStatus(strings.ToLower(strings.TrimSpace(statusFilter)))
		if !status.IsValid() {
			return &model.EnrollmentPage{
				Data: []model.EnrollmentDetail{},
				Pagination: model.Pagination{
					CurrentPage: page, TotalPages: 1, PerPage: limit,
				},
			}, nil
		}
	}

	enrollments, total, err := s.enrollments.ListByUser(ctx, userID, status, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	data := make([]model.EnrollmentDetail, 0, len(enrollments))
	for i := range enrollments {
		detail, err := s.buildDetail(ctx, &enrollments[i])
		if err != nil {
			return nil, err
		}
		data = append(data, *detail)
	}

	totalPages := 1
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &model.EnrollmentPage{
		Data: data,
		Pagination: model.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalItems:  total,
			PerPage:     limit,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	}, nil
}

// CheckAccess reports whether the user may consume the course content,
// with a machine-readable reason when not.
func (s *EnrollmentService) CheckAccess(ctx context.Context, userID, courseID int64) (*model.AccessCheckResult, error) {
	enrollment, err := s.enrollments.GetByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}

	if enrollment == nil {
		return &model.AccessCheckResult{
			HasAccess:  false,
			ReasonCode: model.ReasonNotEnrolled,
			Message:    "You need to enroll in this course to access the content",
		}, nil
	}

	hasAccess := enrollment.AccessGranted &&
		(enrollment.Status == model.EnrollmentEnrolled ||
			enrollment.Status == model.EnrollmentActive)
	if hasAccess {
		result := &model.AccessCheckResult{
			HasAccess:        true,
			EnrollmentStatus: enrollment,
		}
		url, err := s.nextLessonURL(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		result.NextLessonURL = url
		return result, nil
	}

	if enrollment.Status == model.EnrollmentPaymentPending {
		return &model.AccessCheckResult{
			HasAccess:        false,
			EnrollmentStatus: enrollment,
			ReasonCode:       model.ReasonPaymentPending,
			Message:          "Payment is required to access this course",
		}, nil
	}
	return &model.AccessCheckResult{
		HasAccess:        false,
		EnrollmentStatus: enrollment,
		ReasonCode:       model.ReasonEnrollmentExpired,
		Message:          "Your enrollment has expired or been cancelled",
	}, nil
}

// nextLessonURL points at the first lesson the user has not completed.
func (s *EnrollmentService) nextLessonURL(ctx context.Context, userID, courseID int64) (*string, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course == nil {
		return nil, nil
	}
	next := 1
	progress, err := s.catalog.GetProgress(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	if progress != nil {
		next = progress.CompletedLessons + 1
		if course.TotalLessons > 0 && next > course.TotalLessons {
			next = course.TotalLessons
		}
	}
	url := fmt.Sprintf("/courses/%d/lessons/%d", courseID, next)
	return &url, nil
}
