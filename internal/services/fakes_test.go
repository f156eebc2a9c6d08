package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tobiasagyasta/recon-api/internal/models"
)

// In-memory store fakes shared by the service tests.

type fakeTransactionStore struct {
	txns        []*models.PlatformTransaction
	failBulk    bool
	failInserts map[string]bool // natural keys whose row insert fails
	bulkCalls   int
	rowInserts  int
}

func (f *fakeTransactionStore) ExistingNaturalKeys(_ context.Context, platform models.Platform, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	for _, key := range keys {
		for _, t := range f.txns {
			if t.Platform == platform && t.NaturalKey == key {
				existing[key] = true
			}
		}
	}
	return existing, nil
}

func (f *fakeTransactionStore) BulkInsert(_ context.Context, txns []*models.PlatformTransaction) error {
	f.bulkCalls++
	if f.failBulk {
		return fmt.Errorf("bulk insert failed")
	}
	f.txns = append(f.txns, txns...)
	return nil
}

func (f *fakeTransactionStore) Insert(_ context.Context, txn *models.PlatformTransaction) error {
	f.rowInserts++
	if f.failInserts[txn.NaturalKey] {
		return fmt.Errorf("insert failed for %s", txn.NaturalKey)
	}
	f.txns = append(f.txns, txn)
	return nil
}

func (f *fakeTransactionStore) SumForKey(_ context.Context, platform models.Platform, outletCode string, date time.Time, excludedStatus string) (decimal.Decimal, decimal.Decimal, error) {
	gross, net := decimal.Zero, decimal.Zero
	for _, t := range f.txns {
		if t.Platform != platform || t.OutletCode == nil || *t.OutletCode != outletCode || !t.Date().Equal(DateOnly(date)) {
			continue
		}
		gross = gross.Add(t.GrossAmount)
		if excludedStatus == "" || !strings.EqualFold(t.Status, excludedStatus) {
			net = net.Add(t.NetAmount)
		}
	}
	return gross, net, nil
}

func (f *fakeTransactionStore) SumGroupedByOutletDate(ctx context.Context, platform models.Platform, start, end time.Time, excludedStatus string) ([]OutletTotals, error) {
	type key struct {
		outlet string
		day    string
	}
	seen := make(map[key]bool)
	var totals []OutletTotals
	for _, t := range f.txns {
		if t.Platform != platform || t.OutletCode == nil {
			continue
		}
		day := t.Date()
		if day.Before(start) || day.After(end) {
			continue
		}
		k := key{outlet: *t.OutletCode, day: day.Format("2006-01-02")}
		if seen[k] {
			continue
		}
		seen[k] = true
		gross, net, _ := f.SumForKey(ctx, platform, k.outlet, day, excludedStatus)
		totals = append(totals, OutletTotals{OutletCode: k.outlet, Date: day, Gross: gross, Net: net})
	}
	return totals, nil
}

type fakeMutationStore struct {
	muts     []*models.BankMutation
	failBulk bool
}

func (f *fakeMutationStore) ExistingDedupKeys(_ context.Context, muts []*models.BankMutation) (map[string]bool, error) {
	existing := make(map[string]bool)
	for _, candidate := range muts {
		for _, m := range f.muts {
			if m.DedupKey() == candidate.DedupKey() {
				existing[candidate.DedupKey()] = true
			}
		}
	}
	return existing, nil
}

func (f *fakeMutationStore) BulkInsert(_ context.Context, muts []*models.BankMutation) error {
	if f.failBulk {
		return fmt.Errorf("bulk insert failed")
	}
	f.muts = append(f.muts, muts...)
	return nil
}

func (f *fakeMutationStore) Insert(_ context.Context, mut *models.BankMutation) error {
	f.muts = append(f.muts, mut)
	return nil
}

func (f *fakeMutationStore) ListRange(_ context.Context, platform models.Platform, start, end time.Time) ([]models.BankMutation, error) {
	var out []models.BankMutation
	for _, m := range f.muts {
		if m.PlatformName != platform {
			continue
		}
		d := DateOnly(m.TransactionDate)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

type fakeTotalsStore struct {
	totals  map[models.TotalKey]*models.DailyTotal
	upserts int
}

func newFakeTotalsStore() *fakeTotalsStore {
	return &fakeTotalsStore{totals: make(map[models.TotalKey]*models.DailyTotal)}
}

func (f *fakeTotalsStore) Get(_ context.Context, key models.TotalKey) (*models.DailyTotal, error) {
	return f.totals[key], nil
}

func (f *fakeTotalsStore) Upsert(_ context.Context, total *models.DailyTotal) error {
	f.upserts++
	key := models.TotalKey{
		OutletCode: total.OutletCode,
		Date:       total.Date.Format("2006-01-02"),
		ReportType: total.ReportType,
	}
	copied := *total
	f.totals[key] = &copied
	return nil
}

func (f *fakeTotalsStore) ListRange(_ context.Context, platform models.Platform, start, end time.Time) ([]models.DailyTotal, error) {
	var out []models.DailyTotal
	for _, t := range f.totals {
		if t.ReportType != platform || t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

type fakeOutletStore struct {
	outlets []models.Outlet
	updates int
}

func (f *fakeOutletStore) ListAll(_ context.Context) ([]models.Outlet, error) {
	out := make([]models.Outlet, len(f.outlets))
	copy(out, f.outlets)
	return out, nil
}

func (f *fakeOutletStore) UpdateStoreID(_ context.Context, outletCode string, platform models.Platform, storeID string) error {
	f.updates++
	for i := range f.outlets {
		if f.outlets[i].OutletCode != outletCode {
			continue
		}
		switch platform {
		case models.PlatformGojek:
			f.outlets[i].GobizID = storeID
		case models.PlatformGrab:
			f.outlets[i].GrabID = storeID
		case models.PlatformShopeeFood:
			f.outlets[i].ShopeeID = storeID
		}
	}
	return nil
}

// testDirectory builds a Directory over a fake outlet store.
func testDirectory(outlets ...models.Outlet) (*Directory, *fakeOutletStore) {
	store := &fakeOutletStore{outlets: outlets}
	return NewDirectory(store, 0), store
}

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func strptr(s string) *string {
	return &s
}
