package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
	"github.com/brightpath-edu/ms-go-billing/app/factory"
	"github.com/brightpath-edu/ms-go-billing/app/mapper"
	"github.com/brightpath-edu/ms-go-billing/app/repository"
	"github.com/brightpath-edu/ms-go-billing/app/service"
	"github.com/brightpath-edu/ms-go-billing/app/types"
)

type BillingController struct {
	billingService *service.BillingService
	logger         logrus.FieldLogger
}

func NewBillingController(billingService *service.BillingService) *BillingController {
	return &BillingController{
		billingService: billingService,
		logger:         factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *BillingController) CreatePayment(ctx echo.Context) error {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	input, err := createPaymentInputFromRequest(req)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.billingService.CreatePayment(ctx.Request().Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGuardianNotFound), errors.Is(err, service.ErrStudentNotFound):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, entity.ErrInvalidKind),
			errors.Is(err, entity.ErrInvalidAmount),
			errors.Is(err, entity.ErrInvalidMetadata),
			errors.Is(err, entity.ErrInvalidTrialMetadata):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			c.log(ctx).WithError(err).Error("Create payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *BillingController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.billingService.GetPayment(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		c.log(ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *BillingController) ListPayments(ctx echo.Context) error {
	req, err := types.NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.billingService.ListPayments(ctx.Request().Context(), repository.PaymentFilter{
		GuardianID: req.GuardianID,
		StudentID:  req.StudentID,
		HasStatus:  req.HasStatus,
		Status:     req.Status,
		Kind:       req.Kind,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		c.log(ctx).WithError(err).Error("List payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentsResponse{Payments: mapper.PaymentsToResponse(items)})
}

func (c *BillingController) CorrectPayment(ctx echo.Context) error {
	req, err := types.NewCorrectPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	input := service.CorrectPaymentInput{PaymentID: req.ID, Notes: req.Notes}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(*req.Amount))
		if err != nil {
			return c.writeError(ctx, http.StatusBadRequest, "amount must be a decimal number")
		}
		input.Amount = &amount
	}
	if req.Status != nil {
		status, ok := entity.ParseStatus(*req.Status)
		if !ok {
			return c.writeError(ctx, http.StatusBadRequest, "invalid status")
		}
		input.Status = &status
	}

	item, err := c.billingService.CorrectPayment(ctx.Request().Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, entity.ErrInvalidAmount):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrStatusConflict):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.log(ctx).WithError(err).Error("Correct payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *BillingController) GetStudentPaymentStatus(ctx echo.Context) error {
	req, err := types.NewPaymentStatusRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	status, err := c.billingService.GetPaymentStatus(ctx.Request().Context(), req.StudentID, req.AsOf)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "student not found")
		}
		c.log(ctx).WithError(err).Error("Get payment status failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.TermFeeStatusToResponse(req.StudentID, status))
}

func (c *BillingController) ReconcileTrials(ctx echo.Context) error {
	req, err := types.NewReconcileTrialsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.billingService.ReconcileTrials(ctx.Request().Context(), req.AsOf)
	if err != nil {
		if errors.Is(err, service.ErrGatewayNotConfigured) {
			return c.writeError(ctx, http.StatusServiceUnavailable, err.Error())
		}
		c.log(ctx).WithError(err).Error("Trial reconciliation failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.ReconcileResultToResponse(result))
}

func (c *BillingController) SyncCustomers(ctx echo.Context) error {
	req, err := types.NewSyncCustomersRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	result, err := c.billingService.SyncCustomers(ctx.Request().Context(), req.GuardianIDs)
	if err != nil {
		if errors.Is(err, service.ErrGatewayNotConfigured) {
			return c.writeError(ctx, http.StatusServiceUnavailable, err.Error())
		}
		c.log(ctx).WithError(err).Error("Customer sync failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.SyncResultToResponse(result))
}

func (c *BillingController) CreateBulkInvoices(ctx echo.Context) error {
	req, err := types.NewBulkInvoiceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	scope := service.InvoiceScope{All: req.Scope == "all"}
	for _, g := range req.Guardians {
		selection := service.GuardianSelection{
			GuardianID: g.GuardianID,
			StudentIDs: g.StudentIDs,
		}
		if len(g.Books) > 0 {
			selection.BookSelections = make(map[uint64][]uint64, len(g.Books))
			for _, b := range g.Books {
				selection.BookSelections[b.StudentID] = b.BookIDs
			}
		}
		scope.Guardians = append(scope.Guardians, selection)
	}

	result, err := c.billingService.CreateBulkInvoices(
		ctx.Request().Context(),
		scope,
		service.InvoiceItems{TermFees: req.InvoiceTermFees, Books: req.InvoiceBooks},
		req.DaysUntilDue,
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGatewayNotConfigured):
			return c.writeError(ctx, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			c.log(ctx).WithError(err).Error("Bulk invoicing failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.BulkInvoiceResultToResponse(result))
}

func (c *BillingController) log(ctx echo.Context) logrus.FieldLogger {
	return factory.LoggerWithContext(c.logger, ctx)
}

func (c *BillingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func createPaymentInputFromRequest(req *types.CreatePaymentRequest) (service.CreatePaymentInput, error) {
	amount, err := req.ParsedAmount()
	if err != nil {
		return service.CreatePaymentInput{}, err
	}

	input := service.CreatePaymentInput{
		GuardianID: req.GuardianID,
		StudentID:  req.StudentID,
		Amount:     amount,
		Currency:   req.Currency,
		Kind:       req.Kind,
	}

	if req.Trial != nil {
		trialEnd, err := req.Trial.ParsedTrialEndDate()
		if err != nil {
			return service.CreatePaymentInput{}, err
		}
		input.Trial = &entity.TrialMetadata{
			TrialEndDate:    trialEnd,
			PaymentMethodID: strings.TrimSpace(req.Trial.PaymentMethodID),
			ProductSelection: entity.ProductSelection{
				TermFees: req.Trial.SelectTermFees,
				Books:    req.Trial.SelectBooks,
			},
		}
	}
	if req.Manual != nil {
		input.Manual = &entity.ManualMetadata{
			Notes:      strings.TrimSpace(req.Manual.Notes),
			OperatorID: req.Manual.OperatorID,
		}
		if status, ok := entity.ParseStatus(req.Manual.Status); ok {
			input.ManualStatus = status
		}
	}

	return input, nil
}
