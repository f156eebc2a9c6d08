package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/tobiasagyasta/recon-api/internal/models"
	"github.com/tobiasagyasta/recon-api/internal/services"
	"github.com/tobiasagyasta/recon-api/internal/utils"
)

// ConsolidateService recomputes daily totals.
type ConsolidateService interface {
	Recompute(ctx context.Context, key models.TotalKey) (*models.DailyTotal, error)
	RecomputeRange(ctx context.Context, platform models.Platform, start, end time.Time) ([]models.DailyTotal, error)
}

// ConsolidateHandler exposes the consolidation boundary.
type ConsolidateHandler struct {
	consolidator ConsolidateService
}

func NewConsolidateHandler(consolidator ConsolidateService) *ConsolidateHandler {
	return &ConsolidateHandler{consolidator: consolidator}
}

// ConsolidateRequest triggers recomputation either for an explicit key set
// or for all outlets of one platform across a date range.
type ConsolidateRequest struct {
	Keys     []models.TotalKey `json:"keys"`
	Platform string            `json:"platform"`
	Start    string            `json:"start"`
	End      string            `json:"end"`
}

// Consolidate handles POST /v1/consolidate.
func (h *ConsolidateHandler) Consolidate(c fiber.Ctx) error {
	var req ConsolidateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if len(req.Keys) > 0 {
		return h.consolidateKeys(c, req.Keys)
	}
	return h.consolidateRange(c, req)
}

func (h *ConsolidateHandler) consolidateKeys(c fiber.Ctx, keys []models.TotalKey) error {
	totals := make([]models.DailyTotal, 0, len(keys))
	for _, key := range keys {
		total, err := h.consolidator.Recompute(c.Context(), key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   fmt.Sprintf("failed to consolidate %s/%s/%s", key.OutletCode, key.Date, key.ReportType),
				"details": err.Error(),
			})
		}
		totals = append(totals, *total)
	}
	return utils.SuccessResponse(c, totals)
}

func (h *ConsolidateHandler) consolidateRange(c fiber.Ctx, req ConsolidateRequest) error {
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	start, end, apiErr := parseDateRange(req.Start, req.End)
	if apiErr != nil {
		return utils.ErrorHandler(c, apiErr)
	}

	totals, err := h.consolidator.RecomputeRange(c.Context(), platform, start, end)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDateRange) {
			return utils.ErrorHandler(c, utils.NewInvalidDateRangeError(err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to consolidate range",
			"details": err.Error(),
		})
	}
	return utils.SuccessResponse(c, totals)
}

// parseDateRange validates a [start, end] request. Missing bounds and
// start after end are request-level errors.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, *utils.APIError) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, utils.NewInvalidDateRangeError("start and end are required")
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, utils.NewInvalidDateRangeError(fmt.Sprintf("invalid start date: %s", startStr))
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, utils.NewInvalidDateRangeError(fmt.Sprintf("invalid end date: %s", endStr))
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, utils.NewInvalidDateRangeError("start must not be after end")
	}
	return start, end, nil
}
