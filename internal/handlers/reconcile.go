package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/tobiasagyasta/recon-api/internal/models"
	"github.com/tobiasagyasta/recon-api/internal/services"
	"github.com/tobiasagyasta/recon-api/internal/utils"
)

// ReconcileService runs the matcher engine.
type ReconcileService interface {
	Reconcile(ctx context.Context, params services.ReconcileParams) (*services.ReconcileReport, error)
}

// ReconcileHandler exposes the reconciliation boundary.
type ReconcileHandler struct {
	matcher ReconcileService
}

func NewReconcileHandler(matcher ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{matcher: matcher}
}

// Reconcile handles GET /v1/reconcile.
// Query params: platform (required), start, end (required, YYYY-MM-DD),
// platform_code (optional filter), page, page_size.
func (h *ReconcileHandler) Reconcile(c fiber.Ctx) error {
	platform, err := models.ParsePlatform(c.Query("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	start, end, apiErr := parseDateRange(c.Query("start"), c.Query("end"))
	if apiErr != nil {
		return utils.ErrorHandler(c, apiErr)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	report, err := h.matcher.Reconcile(c.Context(), services.ReconcileParams{
		Platform:     platform,
		Start:        start,
		End:          end,
		PlatformCode: c.Query("platform_code"),
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidDateRange) {
			return utils.ErrorHandler(c, utils.NewInvalidDateRangeError(err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "reconciliation failed",
			"details": err.Error(),
		})
	}

	return c.JSON(report)
}
