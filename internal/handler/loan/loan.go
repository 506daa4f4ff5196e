package loanhandler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/mitrakarya/lending/internal/dto"
	"github.com/mitrakarya/lending/internal/service"
	"github.com/mitrakarya/lending/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type LoanHandler struct {
	loanService service.LoanService
	validate    *validator.Validate

	meter  metric.Meter
	tracer trace.Tracer
	log    *zap.Logger

	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

func NewLoanHandler(
	loanService service.LoanService,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) *LoanHandler {
	requestCount, err := meter.Int64Counter(
		"api.request.count",
		metric.WithDescription("Number of API requests received"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create request count metric", zap.Error(err))
	}

	requestDuration, err := meter.Float64Histogram(
		"api.request.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create request duration metric", zap.Error(err))
	}

	errorCount, err := meter.Int64Counter(
		"api.error.count",
		metric.WithDescription("Number of API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		zap.L().Fatal("Failed to create error count metric", zap.Error(err))
	}

	return &LoanHandler{
		loanService: loanService,
		validate:    validator.New(validator.WithRequiredStructEnabled()),

		meter:  meter,
		tracer: tracer,
		log:    log,

		requestCount:    requestCount,
		requestDuration: requestDuration,
		errorCount:      errorCount,
	}
}

// begin sets up the span and request instruments for one endpoint.
func (h *LoanHandler) begin(c *fiber.Ctx, operation string) (context.Context, trace.Span, time.Time) {
	ctx := c.UserContext()
	ctx, span := h.tracer.Start(ctx, "handler."+operation)

	span.SetAttributes(
		attribute.String("http.method", c.Method()),
		attribute.String("http.route", c.Path()),
		attribute.String("http.client_ip", c.IP()),
	)

	h.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
	))

	return ctx, span, time.Now()
}

func (h *LoanHandler) recordError(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, err error, statusCode int, errorType, message string, fields ...zap.Field) error {
	h.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.String("error_type", errorType),
		attribute.Int("status_code", statusCode),
	))

	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	h.requestDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.Int("status_code", statusCode),
	))

	span.SetAttributes(
		attribute.String("error.type", errorType),
		attribute.String("error.message", err.Error()),
		attribute.Int("http.status_code", statusCode),
	)
	span.RecordError(err)

	logFields := append([]zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Int("status_code", statusCode),
		zap.String("error_type", errorType),
	}, fields...)
	h.log.Error(message, logFields...)

	return common.ErrorResponse(c, statusCode, message)
}

func (h *LoanHandler) recordSuccess(
	ctx context.Context, span trace.Span, c *fiber.Ctx,
	start time.Time, statusCode int, responseData any, fields ...zap.Field) error {
	duration := float64(time.Since(start).Nanoseconds()) / 1e6
	h.requestDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("endpoint", c.Path()),
		attribute.String("method", c.Method()),
		attribute.Int("status_code", statusCode),
	))

	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Float64("request.duration_ms", duration),
	)

	logFields := append([]zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Int("status_code", statusCode),
		zap.Float64("duration_ms", duration),
	}, fields...)
	h.log.Info("Request completed successfully", logFields...)

	return common.SuccessResponse(c, statusCode, responseData)
}

// serviceError maps domain sentinels onto HTTP statuses: missing entities to
// 404, state and input rejections to 400, uniqueness conflicts to 409,
// anything unrecognized to 500.
func (h *LoanHandler) serviceError(
	ctx context.Context, span trace.Span, c *fiber.Ctx, start time.Time, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, common.ErrLoanNotFound):
		return h.recordError(ctx, span, c, start, err, fiber.StatusNotFound, "loan_not_found", err.Error(), fields...)
	case errors.Is(err, common.ErrMemberNotFound):
		return h.recordError(ctx, span, c, start, err, fiber.StatusNotFound, "member_not_found", err.Error(), fields...)
	case errors.Is(err, common.ErrChargeNotFound):
		return h.recordError(ctx, span, c, start, err, fiber.StatusNotFound, "charge_not_found", err.Error(), fields...)
	case errors.Is(err, common.ErrMemberHasActiveLoan):
		return h.recordError(ctx, span, c, start, err, fiber.StatusConflict, "member_has_active_loan", err.Error(), fields...)
	case errors.Is(err, common.ErrDuplicateAccountNo):
		return h.recordError(ctx, span, c, start, err, fiber.StatusConflict, "duplicate_account_no", err.Error(), fields...)
	case errors.Is(err, common.ErrInvalidLoanState):
		return h.recordError(ctx, span, c, start, err, fiber.StatusBadRequest, "invalid_loan_state", err.Error(), fields...)
	case errors.Is(err, common.ErrOutstandingBalance):
		return h.recordError(ctx, span, c, start, err, fiber.StatusBadRequest, "outstanding_balance", err.Error(), fields...)
	case errors.Is(err, common.ErrMinTenureNotReached):
		return h.recordError(ctx, span, c, start, err, fiber.StatusBadRequest, "min_tenure_not_reached", err.Error(), fields...)
	case errors.Is(err, common.ErrTermsLocked):
		return h.recordError(ctx, span, c, start, err, fiber.StatusBadRequest, "terms_locked", err.Error(), fields...)
	case errors.Is(err, common.ErrChargeFullyCollected):
		return h.recordError(ctx, span, c, start, err, fiber.StatusBadRequest, "charge_fully_collected", err.Error(), fields...)
	case errors.Is(err, common.ErrChargeOverpayment):
		return h.recordError(ctx, span, c, start, err, fiber.StatusBadRequest, "charge_overpayment", err.Error(), fields...)
	case errors.Is(err, common.ErrInvalidAmount):
		return h.recordError(ctx, span, c, start, err, fiber.StatusBadRequest, "invalid_amount", err.Error(), fields...)
	default:
		return h.recordError(ctx, span, c, start, err, fiber.StatusInternalServerError, "service_error", "Internal server error", fields...)
	}
}

func parseID(c *fiber.Ctx, name string) (uint64, error) {
	return strconv.ParseUint(c.Params(name), 10, 64)
}

func (h *LoanHandler) Disburse(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "Disburse")
	defer span.End()

	var req dto.DisburseLoan
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int64("member.id", int64(req.MemberID)),
		attribute.String("loan.principal", req.PrincipalAmount.String()),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.Disburse(serviceCtx, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("member_id", req.MemberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, res,
		zap.Uint64("loan_id", res.LoanID),
		zap.String("loan_account_no", res.AccountNo),
	)
}

func (h *LoanHandler) RecordPayment(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "RecordPayment")
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}

	var req dto.RecordPayment
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	span.SetAttributes(
		attribute.Int64("loan.id", int64(loanID)),
		attribute.String("payment.amount", req.Amount.String()),
	)

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.RecordPayment(serviceCtx, loanID, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, res,
		zap.Uint64("loan_id", loanID),
		zap.Uint64("payment_id", res.PaymentID),
	)
}

func (h *LoanHandler) ApplyAdvance(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "ApplyAdvance")
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}

	var req dto.ApplyAdvance
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
		}
		if err := h.validate.Struct(req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
		}
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.ApplyAdvance(serviceCtx, loanID, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("loan_id", loanID),
		zap.String("applied_total", res.AppliedTotal.String()),
	)
}

func (h *LoanHandler) CollectCharge(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "CollectCharge")
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}
	chargeID, err := parseID(c, "chargeId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid charge id", zap.Error(err))
	}

	var req dto.CollectCharge
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.CollectCharge(serviceCtx, loanID, chargeID, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err,
			zap.Uint64("loan_id", loanID),
			zap.Uint64("charge_id", chargeID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusCreated, res,
		zap.Uint64("loan_id", loanID),
		zap.Uint64("charge_id", chargeID),
	)
}

func (h *LoanHandler) statusChange(
	c *fiber.Ctx,
	operation string,
	call func(ctx context.Context, loanID uint64, req dto.ChangeStatus) (*dto.StatusChangeResult, error),
) error {
	ctx, span, start := h.begin(c, operation)
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}

	var req dto.ChangeStatus
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
		}
		if err := h.validate.Struct(req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
		}
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := call(serviceCtx, loanID, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("loan_id", loanID),
		zap.String("status", res.Status),
	)
}

func (h *LoanHandler) Pause(c *fiber.Ctx) error {
	return h.statusChange(c, "Pause", h.loanService.Pause)
}

func (h *LoanHandler) Deactivate(c *fiber.Ctx) error {
	return h.statusChange(c, "Deactivate", h.loanService.Deactivate)
}

func (h *LoanHandler) Resume(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "Resume")
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}

	var req dto.ResumeLoan
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
		}
		if err := h.validate.Struct(req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
		}
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.Resume(serviceCtx, loanID, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("loan_id", loanID),
		zap.Int("replayed_payments", res.ReplayedPayments),
	)
}

func (h *LoanHandler) Close(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "Close")
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}

	var req dto.CloseLoan
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
		}
		if err := h.validate.Struct(req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
		}
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.Close(serviceCtx, loanID, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("loan_id", loanID),
	)
}

func (h *LoanHandler) UpdateTerms(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "UpdateTerms")
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}

	var req dto.UpdateTerms
	if err := c.BodyParser(&req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
	}
	if err := h.validate.Struct(req); err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.UpdateTerms(serviceCtx, loanID, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("loan_id", loanID),
	)
}

func (h *LoanHandler) MarkOverdue(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "MarkOverdue")
	defer span.End()

	var req dto.MarkOverdue
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "parse_error", "Cannot parse request body", zap.Error(err))
		}
		if err := h.validate.Struct(req); err != nil {
			return h.recordError(ctx, span, c, start, err,
				fiber.StatusBadRequest, "validation_error", "Validation failed", zap.Error(err))
		}
	}

	serviceCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := h.loanService.MarkOverdue(serviceCtx, req)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err)
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Int64("rows_marked", res.RowsMarked),
	)
}

func (h *LoanHandler) Get(c *fiber.Ctx) error {
	return h.read(c, "GetLoan", func(ctx context.Context, loanID uint64) (any, error) {
		return h.loanService.GetLoan(ctx, loanID)
	})
}

func (h *LoanHandler) GetSchedule(c *fiber.Ctx) error {
	return h.read(c, "GetSchedule", func(ctx context.Context, loanID uint64) (any, error) {
		return h.loanService.GetSchedule(ctx, loanID)
	})
}

func (h *LoanHandler) GetStatement(c *fiber.Ctx) error {
	return h.read(c, "GetStatement", func(ctx context.Context, loanID uint64) (any, error) {
		return h.loanService.GetStatement(ctx, loanID)
	})
}

func (h *LoanHandler) GetSummary(c *fiber.Ctx) error {
	return h.read(c, "GetSummary", func(ctx context.Context, loanID uint64) (any, error) {
		return h.loanService.GetSummary(ctx, loanID)
	})
}

func (h *LoanHandler) ListCharges(c *fiber.Ctx) error {
	return h.read(c, "ListCharges", func(ctx context.Context, loanID uint64) (any, error) {
		return h.loanService.ListCharges(ctx, loanID)
	})
}

func (h *LoanHandler) read(
	c *fiber.Ctx,
	operation string,
	call func(ctx context.Context, loanID uint64) (any, error),
) error {
	ctx, span, start := h.begin(c, operation)
	defer span.End()

	loanID, err := parseID(c, "loanId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid loan id", zap.Error(err))
	}

	span.SetAttributes(attribute.Int64("loan.id", int64(loanID)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := call(serviceCtx, loanID)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("loan_id", loanID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("loan_id", loanID),
	)
}

func (h *LoanHandler) ListByMember(c *fiber.Ctx) error {
	ctx, span, start := h.begin(c, "ListByMember")
	defer span.End()

	memberID, err := parseID(c, "memberId")
	if err != nil {
		return h.recordError(ctx, span, c, start, err,
			fiber.StatusBadRequest, "parse_error", "Invalid member id", zap.Error(err))
	}

	span.SetAttributes(attribute.Int64("member.id", int64(memberID)))

	serviceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := h.loanService.ListByMember(serviceCtx, memberID)
	if err != nil {
		return h.serviceError(ctx, span, c, start, err, zap.Uint64("member_id", memberID))
	}

	return h.recordSuccess(ctx, span, c, start, fiber.StatusOK, res,
		zap.Uint64("member_id", memberID),
	)
}
