package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tobiasagyasta/recon-api/internal/models"
)

// TotalsStore is the pgx-backed implementation of services.TotalsStore.
type TotalsStore struct {
	pool *pgxpool.Pool
}

func NewTotalsStore(pool *pgxpool.Pool) *TotalsStore {
	return &TotalsStore{pool: pool}
}

func (s *TotalsStore) Get(ctx context.Context, key models.TotalKey) (*models.DailyTotal, error) {
	var t models.DailyTotal
	var grossText, netText, reportType string
	err := s.pool.QueryRow(ctx,
		`SELECT outlet_code, date, report_type, total_gross::text, total_net::text, updated_at
		 FROM daily_totals
		 WHERE outlet_code = $1 AND date = $2 AND report_type = $3`,
		key.OutletCode, key.Date, key.ReportType.String()).
		Scan(&t.OutletCode, &t.Date, &reportType, &grossText, &netText, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily total: %w", err)
	}

	t.ReportType = models.Platform(reportType)
	if t.TotalGross, err = decimal.NewFromString(grossText); err != nil {
		return nil, err
	}
	if t.TotalNet, err = decimal.NewFromString(netText); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TotalsStore) Upsert(ctx context.Context, total *models.DailyTotal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_totals (outlet_code, date, report_type, total_gross, total_net, updated_at)
		 VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
		 ON CONFLICT (outlet_code, date, report_type) DO UPDATE
		 SET total_gross = EXCLUDED.total_gross,
		     total_net   = EXCLUDED.total_net,
		     updated_at  = EXCLUDED.updated_at`,
		total.OutletCode, total.Date, total.ReportType.String(),
		total.TotalGross.String(), total.TotalNet.String(), total.UpdatedAt)
	return err
}

func (s *TotalsStore) ListRange(ctx context.Context, platform models.Platform, start, end time.Time) ([]models.DailyTotal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outlet_code, date, report_type, total_gross::text, total_net::text, updated_at
		 FROM daily_totals
		 WHERE report_type = $1 AND date >= $2 AND date <= $3
		 ORDER BY date, outlet_code`,
		platform.String(), start, end)
	if err != nil {
		return nil, fmt.Errorf("list daily totals: %w", err)
	}
	defer rows.Close()

	var totals []models.DailyTotal
	for rows.Next() {
		var t models.DailyTotal
		var grossText, netText, reportType string
		if err := rows.Scan(&t.OutletCode, &t.Date, &reportType, &grossText, &netText, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.ReportType = models.Platform(reportType)
		if t.TotalGross, err = decimal.NewFromString(grossText); err != nil {
			return nil, err
		}
		if t.TotalNet, err = decimal.NewFromString(netText); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
