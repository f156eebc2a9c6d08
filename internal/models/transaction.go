package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlatformTransaction is a canonical sales/settlement record parsed from one
// report row. Rows are append-only: created once at ingestion, never mutated.
type PlatformTransaction struct {
	ID              uuid.UUID       `json:"id"`
	Platform        Platform        `json:"platform"`
	OutletCode      *string         `json:"outlet_code,omitempty"` // nil when the outlet directory had no match
	NaturalKey      string          `json:"natural_key"`           // platform's own order/transaction/billing id
	TransactionTime time.Time       `json:"transaction_time"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	Status          string          `json:"status"`
	RawRow          string          `json:"raw_row,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Date returns the transaction's calendar day, truncated to midnight UTC.
func (t *PlatformTransaction) Date() time.Time {
	y, m, d := t.TransactionTime.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RejectedRow describes one report row the normalizer refused, returned to
// the caller as part of the batch summary.
type RejectedRow struct {
	RowNumber int          `json:"row_number"`
	Reason    RejectReason `json:"reason"`
	RawRow    string       `json:"raw_row"`
}
