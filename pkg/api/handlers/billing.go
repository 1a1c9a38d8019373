package handlers

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/shippingcomps/backend/pkg/api/errors"
	"github.com/shippingcomps/backend/pkg/billing"
	"github.com/shippingcomps/backend/pkg/logger"
	"github.com/shippingcomps/backend/pkg/metrics"
	"github.com/shippingcomps/backend/pkg/models"
)

// BillingHandler handles token purchases and the Stripe webhook
type BillingHandler struct {
	billing  *billing.Service
	tokens   TokenLedger
	metrics  *metrics.Metrics
	validate *validator.Validate
	logger   logger.Logger
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(b *billing.Service, tokens TokenLedger, m *metrics.Metrics, log logger.Logger) *BillingHandler {
	if log == nil {
		log = logger.Default()
	}
	return &BillingHandler{
		billing:  b,
		tokens:   tokens,
		metrics:  m,
		validate: validator.New(),
		logger:   log,
	}
}

// ListPacks handles GET /api/v1/billing/packs
func (h *BillingHandler) ListPacks(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"packs": h.billing.Packs(),
	})
}

// GetBalance handles GET /api/v1/billing/balance?userId=...
func (h *BillingHandler) GetBalance(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return apierrors.ValidationError(c, echo.ErrBadRequest)
	}

	balance, err := h.tokens.Balance(c.Request().Context(), userID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"balance": balance,
	})
}

// CreateCheckout handles POST /api/v1/billing/checkout
func (h *BillingHandler) CreateCheckout(c echo.Context) error {
	var req models.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.billing.CreateCheckoutSession(c.Request().Context(), req.UserID, req.Pack)
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// StripeWebhook handles POST /api/v1/billing/webhook
func (h *BillingHandler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if err := h.billing.HandleWebhook(c.Request().Context(), payload, signature); err != nil {
		h.logger.Error("stripe webhook processing failed", "error", err)
		// non-2xx makes Stripe retry the delivery
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "webhook_failed"})
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
