package services

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/tobiasagyasta/recon-api/internal/models"
)

// Field names one canonical column of a platform report.
type Field string

const (
	FieldNaturalKey Field = "natural_key"
	FieldDate       Field = "date"
	FieldGross      Field = "gross"
	FieldNet        Field = "net"
	FieldStatus     Field = "status"
	FieldStoreID    Field = "store_id"
	FieldStoreName  Field = "store_name"
)

// ColumnMap resolves canonical fields to column indexes for one file. It is
// built once per upload, before any row is parsed.
type ColumnMap map[Field]int

// PlatformSchema describes how one report type maps onto canonical fields:
// the header vocabulary per field, a fixed default index for headerless
// exports, the date layouts the source is known to emit, and the status
// value excluded from net totals.
type PlatformSchema struct {
	Platform       models.Platform
	Headers        map[Field][]string
	Defaults       map[Field]int
	MinColumns     int
	DateLayouts    []string
	ExcludedStatus string // empty when the platform has no exclusion
}

// OutletDirectory is the read-mostly lookup the normalizer uses to attribute
// rows to outlets. BackfillStoreID is its only write: recording a discovered
// store id for an outlet that matched by name but had none on file.
type OutletDirectory interface {
	ResolveByStoreID(ctx context.Context, platform models.Platform, storeID string) (*models.Outlet, error)
	ResolveByName(ctx context.Context, name string) (*models.Outlet, error)
	BackfillStoreID(ctx context.Context, outletCode string, platform models.Platform, storeID string) error
}

// Normalizer converts raw report rows into canonical PlatformTransactions.
type Normalizer struct {
	schemas   map[models.Platform]PlatformSchema
	directory OutletDirectory
}

// NewNormalizer creates a normalizer with the built-in platform schemas.
func NewNormalizer(directory OutletDirectory) *Normalizer {
	return &Normalizer{
		schemas: map[models.Platform]PlatformSchema{
			models.PlatformGojek: {
				Platform: models.PlatformGojek,
				Headers: map[Field][]string{
					FieldNaturalKey: {"order no", "order number", "nomor pesanan"},
					FieldDate:       {"transaction date", "waktu transaksi", "order date"},
					FieldGross:      {"amount", "gross amount", "gross sales"},
					FieldNet:        {"nett amount", "net amount", "net sales"},
					FieldStatus:     {"order status", "status"},
					FieldStoreID:    {"gobiz id", "merchant id"},
					FieldStoreName:  {"outlet name", "merchant name"},
				},
				Defaults: map[Field]int{
					FieldNaturalKey: 0, FieldDate: 1, FieldGross: 2, FieldNet: 3,
					FieldStatus: 4, FieldStoreID: 5, FieldStoreName: 6,
				},
				MinColumns:     7,
				DateLayouts:    []string{"2006-01-02 15:04:05", "2006-01-02", "02/01/2006", "2 Jan 2006"},
				ExcludedStatus: "Cancelled",
			},
			models.PlatformGrab: {
				Platform: models.PlatformGrab,
				Headers: map[Field][]string{
					FieldNaturalKey: {"order id", "long order id"},
					FieldDate:       {"created on", "tanggal dibuat", "order date"},
					FieldGross:      {"subtotal", "gross sales", "amount"},
					FieldNet:        {"net sales", "total", "nett"},
					FieldStatus:     {"status", "order status"},
					FieldStoreID:    {"store id", "merchant id"},
					FieldStoreName:  {"store name", "merchant name"},
				},
				Defaults: map[Field]int{
					FieldNaturalKey: 0, FieldDate: 1, FieldGross: 2, FieldNet: 3,
					FieldStatus: 4, FieldStoreID: 5, FieldStoreName: 6,
				},
				MinColumns:     7,
				DateLayouts:    []string{"02 Jan 2006 15:04", "02 Jan 2006", "2006-01-02", "02/01/2006"},
				ExcludedStatus: "Cancelled",
			},
			models.PlatformShopeeFood: {
				Platform: models.PlatformShopeeFood,
				Headers: map[Field][]string{
					FieldNaturalKey: {"order id", "transaction id"},
					FieldDate:       {"order create time", "transaction time", "order date"},
					FieldGross:      {"order amount", "gross amount"},
					FieldNet:        {"net income", "net amount"},
					FieldStatus:     {"order status", "status"},
					FieldStoreID:    {"store id"},
					FieldStoreName:  {"store name", "outlet name"},
				},
				Defaults: map[Field]int{
					FieldNaturalKey: 0, FieldDate: 1, FieldGross: 2, FieldNet: 3,
					FieldStatus: 4, FieldStoreID: 5, FieldStoreName: 6,
				},
				MinColumns:     7,
				DateLayouts:    []string{"2006-01-02 15:04", "2006-01-02", "02/01/2006 15:04", "02/01/2006"},
				ExcludedStatus: "Cancelled",
			},
			models.PlatformVoucher: {
				Platform: models.PlatformVoucher,
				Headers: map[Field][]string{
					FieldNaturalKey: {"billing id", "transaction id", "voucher code"},
					FieldDate:       {"payment date", "transaction date"},
					FieldGross:      {"voucher value", "gross amount"},
					FieldNet:        {"net value", "net amount"},
					FieldStatus:     {"type", "status"},
					FieldStoreName:  {"outlet", "outlet name"},
				},
				Defaults: map[Field]int{
					FieldNaturalKey: 0, FieldDate: 1, FieldGross: 2, FieldNet: 3,
					FieldStatus: 4, FieldStoreName: 5,
				},
				MinColumns:     6,
				DateLayouts:    []string{"2006-01-02", "02/01/2006", "02-01-2006"},
				ExcludedStatus: "Withdrawal",
			},
			models.PlatformWebshop: {
				Platform: models.PlatformWebshop,
				Headers: map[Field][]string{
					FieldNaturalKey: {"order number", "order id"},
					FieldDate:       {"order date", "paid at"},
					FieldGross:      {"total", "gross amount"},
					FieldNet:        {"total paid", "net amount"},
					FieldStatus:     {"status"},
					FieldStoreName:  {"outlet", "branch"},
				},
				Defaults: map[Field]int{
					FieldNaturalKey: 0, FieldDate: 1, FieldGross: 2, FieldNet: 3,
					FieldStatus: 4, FieldStoreName: 5,
				},
				MinColumns:  6,
				DateLayouts: []string{"2006-01-02 15:04:05", "2006-01-02", "02/01/2006"},
			},
		},
		directory: directory,
	}
}

// Schema returns the schema for a platform. The bool is false for report
// types the normalizer does not know.
func (n *Normalizer) Schema(platform models.Platform) (PlatformSchema, bool) {
	s, ok := n.schemas[platform]
	return s, ok
}

// ResolveColumns matches a header row against the platform's vocabulary and
// produces the typed column map used for every subsequent row. Fields absent
// from the headers fall back to the schema's fixed default index, which
// tolerates headerless or reordered exports.
func (n *Normalizer) ResolveColumns(platform models.Platform, headers []string) ColumnMap {
	schema := n.schemas[platform]

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[normalizeHeader(h)] = i
	}

	colmap := make(ColumnMap, len(schema.Defaults))
	for field, def := range schema.Defaults {
		colmap[field] = def
		for _, candidate := range schema.Headers[field] {
			if i, ok := index[candidate]; ok {
				colmap[field] = i
				break
			}
		}
	}
	return colmap
}

// LooksLikeHeader reports whether a first row matches any of the platform's
// known header vocabulary, so uploads with and without header rows both work.
func (n *Normalizer) LooksLikeHeader(platform models.Platform, row []string) bool {
	schema := n.schemas[platform]
	for _, cell := range row {
		normalized := normalizeHeader(cell)
		for _, candidates := range schema.Headers {
			for _, candidate := range candidates {
				if normalized == candidate {
					return true
				}
			}
		}
	}
	return false
}

// ParseRow converts one raw row into a PlatformTransaction. A non-empty
// reason means the row was rejected; the normalizer never returns an error
// for control flow.
func (n *Normalizer) ParseRow(ctx context.Context, platform models.Platform, row []string, colmap ColumnMap) (*models.PlatformTransaction, models.RejectReason) {
	schema := n.schemas[platform]

	if len(row) < schema.MinColumns {
		return nil, models.RejectTooFewColumns
	}

	naturalKey := strings.TrimSpace(cell(row, colmap[FieldNaturalKey]))
	if naturalKey == "" {
		return nil, models.RejectMissingKey
	}

	txnTime, err := ParseReportDate(cell(row, colmap[FieldDate]), schema.DateLayouts)
	if err != nil {
		return nil, models.RejectBadDate
	}

	txn := &models.PlatformTransaction{
		ID:              uuid.New(),
		Platform:        platform,
		NaturalKey:      naturalKey,
		TransactionTime: txnTime,
		GrossAmount:     NormalizeAmount(cell(row, colmap[FieldGross])),
		NetAmount:       NormalizeAmount(cell(row, colmap[FieldNet])),
		Status:          strings.TrimSpace(cell(row, colmap[FieldStatus])),
		RawRow:          strings.Join(row, ","),
	}

	if code := n.resolveOutlet(ctx, schema, row, colmap); code != "" {
		txn.OutletCode = &code
	}

	return txn, ""
}

// resolveOutlet attributes a row to an outlet: store id first, then name.
// A name hit for an outlet with no store id on file triggers the bounded
// backfill write. An unresolved row is still stored, just unattributed.
func (n *Normalizer) resolveOutlet(ctx context.Context, schema PlatformSchema, row []string, colmap ColumnMap) string {
	storeID := ""
	if idx, ok := colmap[FieldStoreID]; ok {
		storeID = strings.TrimSpace(cell(row, idx))
	}

	if storeID != "" {
		outlet, err := n.directory.ResolveByStoreID(ctx, schema.Platform, storeID)
		if err == nil && outlet != nil {
			return outlet.OutletCode
		}
	}

	name := ""
	if idx, ok := colmap[FieldStoreName]; ok {
		name = strings.TrimSpace(cell(row, idx))
	}
	if name == "" {
		return ""
	}

	outlet, err := n.directory.ResolveByName(ctx, name)
	if err != nil || outlet == nil {
		return ""
	}

	if storeID != "" && outlet.StoreID(schema.Platform) == "" {
		if err := n.directory.BackfillStoreID(ctx, outlet.OutletCode, schema.Platform, storeID); err != nil {
			log.Printf("Warning: store id backfill failed for outlet %s: %v", outlet.OutletCode, err)
		}
	}

	return outlet.OutletCode
}

func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(h))), " ")
}

// cell returns row[idx], tolerating short rows.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
