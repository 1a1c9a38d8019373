package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/shippingcomps/backend/pkg/api/errors"
	"github.com/shippingcomps/backend/pkg/models"
	"github.com/shippingcomps/backend/pkg/store"
	"github.com/shippingcomps/backend/pkg/subscription"
)

// SubscriptionHandler manages recurring report subscriptions
type SubscriptionHandler struct {
	subs     *subscription.Service
	validate *validator.Validate
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subs *subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{
		subs:     subs,
		validate: validator.New(),
	}
}

// Create handles POST /api/v1/subscriptions
func (h *SubscriptionHandler) Create(c echo.Context) error {
	var req models.SubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	sub, err := h.subs.Subscribe(c.Request().Context(), req.UserID, req.Email, req.URL)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusCreated, sub)
}

// List handles GET /api/v1/subscriptions?userId=...
func (h *SubscriptionHandler) List(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return apierrors.ValidationError(c, errors.New("userId query parameter is required"))
	}

	subs, err := h.subs.List(c.Request().Context(), userID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	if subs == nil {
		subs = []*models.ReportSubscription{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"total":         len(subs),
	})
}

// Cancel handles DELETE /api/v1/subscriptions/:id?userId=...
func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return apierrors.ValidationError(c, errors.New("userId query parameter is required"))
	}

	err := h.subs.Cancel(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.NotFoundError(c, "subscription")
		}
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "subscription cancelled"})
}
