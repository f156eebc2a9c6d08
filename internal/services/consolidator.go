package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tobiasagyasta/recon-api/internal/models"
)

// Consolidator maintains the daily_totals table. Every recompute is an
// authoritative re-sum over the underlying transactions, never an
// incremental add, so it can be retried or re-triggered freely.
type Consolidator struct {
	txns       TransactionStore
	totals     TotalsStore
	normalizer *Normalizer
}

// NewConsolidator creates a consolidator.
func NewConsolidator(txns TransactionStore, totals TotalsStore, normalizer *Normalizer) *Consolidator {
	return &Consolidator{
		txns:       txns,
		totals:     totals,
		normalizer: normalizer,
	}
}

// Recompute re-sums one (outlet, date, platform) key and upserts the
// DailyTotal. The row is only written when the freshly computed values
// differ from the stored ones, so repeated recomputes do not churn
// timestamps.
func (c *Consolidator) Recompute(ctx context.Context, key models.TotalKey) (*models.DailyTotal, error) {
	schema, ok := c.normalizer.Schema(key.ReportType)
	if !ok {
		return nil, fmt.Errorf("unknown report type: %s", key.ReportType)
	}

	date, err := time.Parse("2006-01-02", key.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid total key date %q: %w", key.Date, err)
	}

	gross, net, err := c.txns.SumForKey(ctx, key.ReportType, key.OutletCode, date, schema.ExcludedStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s/%s/%s: %w", key.OutletCode, key.Date, key.ReportType, err)
	}

	return c.writeIfChanged(ctx, key, OutletTotals{
		OutletCode: key.OutletCode,
		Date:       date,
		Gross:      gross,
		Net:        net,
	})
}

// RecomputeRange recomputes totals for every outlet of one platform across
// a date range by grouping transactions directly. Used for backfills; its
// results are consistent with per-key Recompute for the same inputs.
func (c *Consolidator) RecomputeRange(ctx context.Context, platform models.Platform, start, end time.Time) ([]models.DailyTotal, error) {
	if start.IsZero() || end.IsZero() || start.After(end) {
		return nil, ErrInvalidDateRange
	}

	schema, ok := c.normalizer.Schema(platform)
	if !ok {
		return nil, fmt.Errorf("unknown report type: %s", platform)
	}

	grouped, err := c.txns.SumGroupedByOutletDate(ctx, platform, start, end, schema.ExcludedStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s range: %w", platform, err)
	}

	updated := make([]models.DailyTotal, 0, len(grouped))
	for _, row := range grouped {
		key := models.TotalKey{
			OutletCode: row.OutletCode,
			Date:       row.Date.Format("2006-01-02"),
			ReportType: platform,
		}
		total, err := c.writeIfChanged(ctx, key, row)
		if err != nil {
			return nil, err
		}
		updated = append(updated, *total)
	}
	return updated, nil
}

func (c *Consolidator) writeIfChanged(ctx context.Context, key models.TotalKey, computed OutletTotals) (*models.DailyTotal, error) {
	existing, err := c.totals.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily total: %w", err)
	}

	if existing != nil && existing.TotalGross.Equal(computed.Gross) && existing.TotalNet.Equal(computed.Net) {
		return existing, nil
	}

	total := &models.DailyTotal{
		OutletCode: key.OutletCode,
		Date:       computed.Date,
		ReportType: key.ReportType,
		TotalGross: computed.Gross,
		TotalNet:   computed.Net,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := c.totals.Upsert(ctx, total); err != nil {
		return nil, fmt.Errorf("failed to upsert daily total: %w", err)
	}
	return total, nil
}
