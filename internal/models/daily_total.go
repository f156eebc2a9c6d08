package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyTotal is the consolidated gross/net sum for one outlet, one calendar
// day, one platform. Exactly one row exists per key; its values are always a
// full recomputation from the underlying transactions, never an incremental
// add, so recomputing is safe to repeat.
type DailyTotal struct {
	OutletCode string          `json:"outlet_code"`
	Date       time.Time       `json:"date"`
	ReportType Platform        `json:"report_type"`
	TotalGross decimal.Decimal `json:"total_gross"`
	TotalNet   decimal.Decimal `json:"total_net"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TotalKey identifies one DailyTotal row. Ingestion collects the set of
// touched keys so consolidation cost stays proportional to the batch.
type TotalKey struct {
	OutletCode string   `json:"outlet_code"`
	Date       string   `json:"date"` // YYYY-MM-DD
	ReportType Platform `json:"report_type"`
}
