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

// MutationStore is the pgx-backed implementation of services.MutationStore.
type MutationStore struct {
	pool *pgxpool.Pool
}

func NewMutationStore(pool *pgxpool.Pool) *MutationStore {
	return &MutationStore{pool: pool}
}

// ExistingDedupKeys checks each mutation's (date, amount, platform_code)
// triple with a batched EXISTS probe. Comparing amounts inside Postgres
// avoids text-formatting mismatches between "300" and "300.00".
func (s *MutationStore) ExistingDedupKeys(ctx context.Context, muts []*models.BankMutation) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(muts) == 0 {
		return existing, nil
	}

	batch := &pgx.Batch{}
	for _, m := range muts {
		batch.Queue(
			`SELECT EXISTS (
			   SELECT 1 FROM bank_mutations
			   WHERE transaction_date = $1 AND transaction_amount = $2::numeric AND platform_code = $3
			 )`,
			m.TransactionDate, m.TransactionAmount.String(), m.PlatformCode)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, m := range muts {
		var found bool
		if err := results.QueryRow().Scan(&found); err != nil {
			return nil, fmt.Errorf("dedup probe: %w", err)
		}
		if found {
			existing[m.DedupKey()] = true
		}
	}
	return existing, nil
}

func (s *MutationStore) BulkInsert(ctx context.Context, muts []*models.BankMutation) error {
	copyRows := make([][]interface{}, len(muts))
	for i, m := range muts {
		copyRows[i] = []interface{}{
			m.ID,
			m.RekeningNumber,
			m.TransactionDate,
			numericParam(m.TransactionAmount),
			m.PlatformCode,
			m.PlatformName.String(),
			m.RawText,
			m.CreatedAt,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"bank_mutations"},
		[]string{"id", "rekening_number", "transaction_date", "transaction_amount",
			"platform_code", "platform_name", "raw_text", "created_at"},
		pgx.CopyFromRows(copyRows),
	)
	return err
}

func (s *MutationStore) Insert(ctx context.Context, m *models.BankMutation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bank_mutations
		 (id, rekening_number, transaction_date, transaction_amount,
		  platform_code, platform_name, raw_text, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		m.ID, m.RekeningNumber, m.TransactionDate, m.TransactionAmount.String(),
		m.PlatformCode, m.PlatformName.String(), m.RawText, m.CreatedAt)
	return err
}

func (s *MutationStore) ListRange(ctx context.Context, platform models.Platform, start, end time.Time) ([]models.BankMutation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, rekening_number, transaction_date, transaction_amount::text,
		        platform_code, platform_name, raw_text, created_at
		 FROM bank_mutations
		 WHERE platform_name = $1 AND transaction_date >= $2 AND transaction_date <= $3
		 ORDER BY transaction_date, created_at, id`,
		platform.String(), start, end)
	if err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	defer rows.Close()

	var muts []models.BankMutation
	for rows.Next() {
		var m models.BankMutation
		var amountText, platformName string
		if err := rows.Scan(&m.ID, &m.RekeningNumber, &m.TransactionDate, &amountText,
			&m.PlatformCode, &platformName, &m.RawText, &m.CreatedAt); err != nil {
			return nil, err
		}
		if m.TransactionAmount, err = decimal.NewFromString(amountText); err != nil {
			return nil, err
		}
		m.PlatformName = models.Platform(platformName)
		muts = append(muts, m)
	}
	return muts, rows.Err()
}
