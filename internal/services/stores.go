package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tobiasagyasta/recon-api/internal/models"
)

// The services consume storage through these interfaces; the pgx-backed
// implementations live in internal/store. Tests supply in-memory fakes.

// OutletTotals is one grouped aggregation row: the sum of gross/net over all
// of an outlet's transactions for one day.
type OutletTotals struct {
	OutletCode string
	Date       time.Time
	Gross      decimal.Decimal
	Net        decimal.Decimal
}

// TransactionStore persists canonical platform transactions and answers the
// aggregation queries the consolidator runs.
type TransactionStore interface {
	// ExistingNaturalKeys reports which of the given natural keys are already
	// persisted for the platform.
	ExistingNaturalKeys(ctx context.Context, platform models.Platform, keys []string) (map[string]bool, error)
	BulkInsert(ctx context.Context, txns []*models.PlatformTransaction) error
	Insert(ctx context.Context, txn *models.PlatformTransaction) error
	// SumForKey recomputes gross/net for one (outlet, date) pair. Rows whose
	// status equals excludedStatus are left out of net only.
	SumForKey(ctx context.Context, platform models.Platform, outletCode string, date time.Time, excludedStatus string) (gross, net decimal.Decimal, err error)
	// SumGroupedByOutletDate is the bulk variant used for backfills.
	SumGroupedByOutletDate(ctx context.Context, platform models.Platform, start, end time.Time, excludedStatus string) ([]OutletTotals, error)
}

// MutationStore persists bank mutations.
type MutationStore interface {
	// ExistingDedupKeys reports which of the given mutations' (date, amount,
	// platform_code) triples are already persisted, keyed by DedupKey.
	ExistingDedupKeys(ctx context.Context, muts []*models.BankMutation) (map[string]bool, error)
	BulkInsert(ctx context.Context, muts []*models.BankMutation) error
	Insert(ctx context.Context, mut *models.BankMutation) error
	ListRange(ctx context.Context, platform models.Platform, start, end time.Time) ([]models.BankMutation, error)
}

// TotalsStore persists consolidated daily totals.
type TotalsStore interface {
	// Get returns nil when no row exists for the key.
	Get(ctx context.Context, key models.TotalKey) (*models.DailyTotal, error)
	Upsert(ctx context.Context, total *models.DailyTotal) error
	ListRange(ctx context.Context, platform models.Platform, start, end time.Time) ([]models.DailyTotal, error)
}

// OutletStore is the persistence side of the outlet directory.
type OutletStore interface {
	ListAll(ctx context.Context) ([]models.Outlet, error)
	UpdateStoreID(ctx context.Context, outletCode string, platform models.Platform, storeID string) error
}
