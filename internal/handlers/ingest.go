package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/xuri/excelize/v2"

	"github.com/tobiasagyasta/recon-api/internal/models"
	"github.com/tobiasagyasta/recon-api/internal/services"
	"github.com/tobiasagyasta/recon-api/internal/utils"
)

// IngestService runs ingestion batches for report and statement uploads.
type IngestService interface {
	IngestReport(ctx context.Context, platform models.Platform, rows [][]string) (*services.BatchSummary, error)
	IngestMutations(ctx context.Context, rows [][]string, rekening string) (*services.BatchSummary, error)
	IngestConsolidated(ctx context.Context, blob string, rekening string, platform models.Platform) (*services.BatchSummary, error)
}

// FileValidator checks an upload before it is parsed.
type FileValidator interface {
	ValidateUpload(data []byte, filename string) *services.ValidationResult
}

// IngestHandler handles report and bank statement uploads.
type IngestHandler struct {
	ingestor  IngestService
	validator FileValidator
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(ingestor IngestService, validator FileValidator) *IngestHandler {
	return &IngestHandler{
		ingestor:  ingestor,
		validator: validator,
	}
}

// UploadReport ingests one platform report file.
// POST /v1/reports/:platform/upload (multipart, field "file")
func (h *IngestHandler) UploadReport(c fiber.Ctx) error {
	platform, err := models.ParsePlatform(c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	rows, apiErr := h.readUploadedRows(c)
	if apiErr != nil {
		return utils.ErrorHandler(c, apiErr)
	}

	summary, err := h.ingestor.IngestReport(c.Context(), platform, rows)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to ingest report",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"platform": platform,
		"summary":  summary,
		"status":   "success",
	})
}

// UploadMutations ingests a raw bank statement file.
// POST /v1/mutations/upload (multipart, fields "file" and "rekening")
func (h *IngestHandler) UploadMutations(c fiber.Ctx) error {
	rekening := c.FormValue("rekening")
	if rekening == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "rekening is required",
		})
	}

	rows, apiErr := h.readUploadedRows(c)
	if apiErr != nil {
		return utils.ErrorHandler(c, apiErr)
	}

	summary, err := h.ingestor.IngestMutations(c.Context(), rows, rekening)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to ingest mutations",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"rekening": rekening,
		"summary":  summary,
		"status":   "success",
	})
}

// ConsolidatedStatementRequest is the body for UploadConsolidated.
type ConsolidatedStatementRequest struct {
	Rekening string `json:"rekening"`
	Platform string `json:"platform"`
	Text     string `json:"text"`
}

// UploadConsolidated ingests a consolidated statement blob with many
// embedded transactions.
// POST /v1/mutations/consolidated
func (h *IngestHandler) UploadConsolidated(c fiber.Ctx) error {
	var req ConsolidatedStatementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Rekening == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "rekening and text are required",
		})
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	summary, err := h.ingestor.IngestConsolidated(c.Context(), req.Text, req.Rekening, platform)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to ingest consolidated statement",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"rekening": req.Rekening,
		"summary":  summary,
		"status":   "success",
	})
}

// readUploadedRows fetches the "file" form field, validates it, and decodes
// it into raw rows.
func (h *IngestHandler) readUploadedRows(c fiber.Ctx) ([][]string, *utils.APIError) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, utils.NewBadRequestError("file is required", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, utils.NewBadRequestError("failed to open uploaded file", nil)
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		return nil, utils.NewBadRequestError("failed to read uploaded file", nil)
	}
	data := buf.Bytes()

	result := h.validator.ValidateUpload(data, fileHeader.Filename)
	if !result.Valid {
		return nil, utils.NewBadRequestError("invalid file", result.Errors)
	}

	rows, err := decodeRows(data, result.DetectedType)
	if err != nil {
		return nil, utils.NewBadRequestError("failed to decode file", err.Error())
	}
	return rows, nil
}

// decodeRows turns raw file bytes into rows. XLSX files are read from their
// first sheet; everything else is treated as delimited text.
func decodeRows(data []byte, detectedType string) ([][]string, error) {
	if detectedType == "XLSX" {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		return f.GetRows(sheet)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}
