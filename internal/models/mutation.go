package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankMutation is one settlement credit parsed from a bank statement line.
// Immutable after ingestion. The dedup boundary is the triple
// (transaction_date, transaction_amount, platform_code).
type BankMutation struct {
	ID                uuid.UUID       `json:"id"`
	RekeningNumber    string          `json:"rekening_number"`
	TransactionDate   time.Time       `json:"transaction_date"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PlatformCode      string          `json:"platform_code"` // merchant code extracted from the line, may be empty
	PlatformName      Platform        `json:"platform_name"`
	RawText           string          `json:"raw_text"`
	CreatedAt         time.Time       `json:"created_at"`
}

// DedupKey returns the identity triple used to reject re-ingested lines.
// The amount is fixed to two decimals so "300" and "300.00" collide.
func (m *BankMutation) DedupKey() string {
	return m.TransactionDate.Format("2006-01-02") + "|" + m.TransactionAmount.StringFixed(2) + "|" + m.PlatformCode
}
