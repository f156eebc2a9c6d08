package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/tobiasagyasta/recon-api/internal/models"
	"github.com/tobiasagyasta/recon-api/internal/utils"
)

// DirectoryService is the outlet directory boundary.
type DirectoryService interface {
	ResolveByStoreID(ctx context.Context, platform models.Platform, storeID string) (*models.Outlet, error)
	ResolveByName(ctx context.Context, name string) (*models.Outlet, error)
	BackfillStoreID(ctx context.Context, outletCode string, platform models.Platform, storeID string) error
}

// OutletsHandler exposes directory lookups and the store-id backfill.
type OutletsHandler struct {
	directory DirectoryService
}

func NewOutletsHandler(directory DirectoryService) *OutletsHandler {
	return &OutletsHandler{directory: directory}
}

// Resolve handles GET /v1/outlets/resolve.
// Query params: platform, and one of store_id or name.
func (h *OutletsHandler) Resolve(c fiber.Ctx) error {
	storeID := c.Query("store_id")
	name := c.Query("name")
	if storeID == "" && name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "store_id or name is required",
		})
	}

	var outlet *models.Outlet
	var err error

	if storeID != "" {
		platform, perr := models.ParsePlatform(c.Query("platform"))
		if perr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": perr.Error(),
			})
		}
		outlet, err = h.directory.ResolveByStoreID(c.Context(), platform, storeID)
	} else {
		outlet, err = h.directory.ResolveByName(c.Context(), name)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "directory lookup failed",
			"details": err.Error(),
		})
	}
	if outlet == nil {
		return utils.ErrorHandler(c, utils.NewNotFoundError("outlet"))
	}

	return utils.SuccessResponse(c, outlet)
}

// BackfillRequest is the body for Backfill.
type BackfillRequest struct {
	OutletCode string `json:"outlet_code"`
	Platform   string `json:"platform"`
	StoreID    string `json:"store_id"`
}

// Backfill handles POST /v1/outlets/backfill. Idempotent: setting an id
// that is already on file is a no-op.
func (h *OutletsHandler) Backfill(c fiber.Ctx) error {
	var req BackfillRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.OutletCode == "" || req.StoreID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "outlet_code and store_id are required",
		})
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.directory.BackfillStoreID(c.Context(), req.OutletCode, platform, req.StoreID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "backfill failed",
			"details": err.Error(),
		})
	}

	return utils.SuccessResponse(c, fiber.Map{
		"outlet_code": req.OutletCode,
		"platform":    platform,
		"store_id":    req.StoreID,
	})
}
