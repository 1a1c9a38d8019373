package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/shippingcomps/backend/pkg/api/errors"
	"github.com/shippingcomps/backend/pkg/export"
	"github.com/shippingcomps/backend/pkg/models"
	"github.com/shippingcomps/backend/pkg/store"
)

// ExportHandler serves analysis downloads
type ExportHandler struct {
	store  AnalysisStore
	export *export.Service
}

// NewExportHandler creates a new export handler
func NewExportHandler(st AnalysisStore, exp *export.Service) *ExportHandler {
	return &ExportHandler{store: st, export: exp}
}

// Download handles GET /api/v1/analyses/:id/export?format=csv|excel
func (h *ExportHandler) Download(c echo.Context) error {
	ctx := c.Request().Context()

	format := c.QueryParam("format")
	if format == "" {
		format = "excel"
	}
	if format != "csv" && format != "excel" {
		return apierrors.ValidationError(c, fmt.Errorf("invalid format %q: must be csv or excel", format))
	}

	rec, err := h.store.GetAnalysis(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.NotFoundError(c, "analysis")
		}
		return apierrors.DatabaseError(c, err)
	}
	if rec.Status != models.StatusCompleted {
		return apierrors.ValidationError(c, fmt.Errorf("analysis %s is %s, only completed analyses can be exported", rec.ID, rec.Status))
	}

	var data []byte
	var contentType string
	if format == "csv" {
		data, err = h.export.GenerateCSV(rec)
		contentType = "text/csv"
	} else {
		data, err = h.export.GenerateExcel(rec)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, export.Filename(rec.ID, format)))
	return c.Blob(http.StatusOK, contentType, data)
}
