package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tobiasagyasta/recon-api/internal/models"
	"github.com/tobiasagyasta/recon-api/internal/services"
)

// TransactionStore is the pgx-backed implementation of
// services.TransactionStore.
type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) ExistingNaturalKeys(ctx context.Context, platform models.Platform, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT natural_key FROM platform_transactions
		 WHERE platform = $1 AND natural_key = ANY($2)`,
		platform.String(), keys)
	if err != nil {
		return nil, fmt.Errorf("natural key lookup: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		existing[key] = true
	}
	return existing, rows.Err()
}

// BulkInsert stages the whole batch through COPY. One attempt is atomic: on
// failure the caller retries row by row.
func (s *TransactionStore) BulkInsert(ctx context.Context, txns []*models.PlatformTransaction) error {
	copyRows := make([][]interface{}, len(txns))
	for i, t := range txns {
		copyRows[i] = []interface{}{
			t.ID,
			t.Platform.String(),
			t.OutletCode,
			t.NaturalKey,
			t.TransactionTime,
			numericParam(t.GrossAmount),
			numericParam(t.NetAmount),
			t.Status,
			t.RawRow,
			t.CreatedAt,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"platform_transactions"},
		[]string{"id", "platform", "outlet_code", "natural_key", "transaction_time",
			"gross_amount", "net_amount", "status", "raw_row", "created_at"},
		pgx.CopyFromRows(copyRows),
	)
	return err
}

func (s *TransactionStore) Insert(ctx context.Context, t *models.PlatformTransaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO platform_transactions
		 (id, platform, outlet_code, natural_key, transaction_time,
		  gross_amount, net_amount, status, raw_row, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10)`,
		t.ID, t.Platform.String(), t.OutletCode, t.NaturalKey, t.TransactionTime,
		t.GrossAmount.String(), t.NetAmount.String(), t.Status, t.RawRow, t.CreatedAt)
	return err
}

func (s *TransactionStore) SumForKey(ctx context.Context, platform models.Platform, outletCode string, date time.Time, excludedStatus string) (decimal.Decimal, decimal.Decimal, error) {
	var grossText, netText string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(gross_amount), 0)::text,
		        COALESCE(SUM(net_amount) FILTER (WHERE $4 = '' OR lower(status) <> lower($4)), 0)::text
		 FROM platform_transactions
		 WHERE platform = $1 AND outlet_code = $2
		   AND transaction_time >= $3 AND transaction_time < $3 + interval '1 day'`,
		platform.String(), outletCode, date, excludedStatus).Scan(&grossText, &netText)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sum for key: %w", err)
	}

	gross, err := decimal.NewFromString(grossText)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	net, err := decimal.NewFromString(netText)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return gross, net, nil
}

func (s *TransactionStore) SumGroupedByOutletDate(ctx context.Context, platform models.Platform, start, end time.Time, excludedStatus string) ([]services.OutletTotals, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outlet_code, date_trunc('day', transaction_time)::date,
		        COALESCE(SUM(gross_amount), 0)::text,
		        COALESCE(SUM(net_amount) FILTER (WHERE $4 = '' OR lower(status) <> lower($4)), 0)::text
		 FROM platform_transactions
		 WHERE platform = $1 AND outlet_code IS NOT NULL
		   AND transaction_time >= $2 AND transaction_time < $3 + interval '1 day'
		 GROUP BY outlet_code, date_trunc('day', transaction_time)
		 ORDER BY 2, 1`,
		platform.String(), start, end, excludedStatus)
	if err != nil {
		return nil, fmt.Errorf("grouped sum: %w", err)
	}
	defer rows.Close()

	var totals []services.OutletTotals
	for rows.Next() {
		var row services.OutletTotals
		var grossText, netText string
		if err := rows.Scan(&row.OutletCode, &row.Date, &grossText, &netText); err != nil {
			return nil, err
		}
		if row.Gross, err = decimal.NewFromString(grossText); err != nil {
			return nil, err
		}
		if row.Net, err = decimal.NewFromString(netText); err != nil {
			return nil, err
		}
		totals = append(totals, row)
	}
	return totals, rows.Err()
}
