package services

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasagyasta/recon-api/internal/models"
)

func testIngestor(txns *fakeTransactionStore, muts *fakeMutationStore, totals *fakeTotalsStore, outlets ...models.Outlet) *Ingestor {
	directory, _ := testDirectory(outlets...)
	normalizer := NewNormalizer(directory)
	consolidator := NewConsolidator(txns, totals, normalizer)
	return NewIngestor(normalizer, NewMutationParser(), txns, muts, consolidator)
}

func outletOne() models.Outlet {
	return models.Outlet{OutletCode: "O1", Name: "Outlet One", GobizID: "G123"}
}

func TestIngestReport_AcceptsDeduplicatesAndConsolidates(t *testing.T) {
	txns := &fakeTransactionStore{}
	totals := newFakeTotalsStore()
	ing := testIngestor(txns, &fakeMutationStore{}, totals, outletOne())

	rows := [][]string{
		{"ORD-1", "2024-01-15", "100", "100", "Completed", "G123", "Outlet One"},
		{"ORD-2", "2024-01-15", "200", "200", "Completed", "G123", "Outlet One"},
		{"ORD-1", "2024-01-15", "100", "100", "Completed", "G123", "Outlet One"},
	}

	summary, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 0, summary.Rejected)
	require.Len(t, txns.txns, 2)

	total := totals.totals[models.TotalKey{OutletCode: "O1", Date: "2024-01-15", ReportType: models.PlatformGojek}]
	require.NotNil(t, total)
	assert.Equal(t, "300", total.TotalGross.String())
	assert.Equal(t, "300", total.TotalNet.String())
}

func TestIngestReport_SkipsHeaderRow(t *testing.T) {
	txns := &fakeTransactionStore{}
	ing := testIngestor(txns, &fakeMutationStore{}, newFakeTotalsStore(), outletOne())

	rows := [][]string{
		{"Order No", "Transaction Date", "Amount", "Nett Amount", "Order Status", "Gobiz ID", "Outlet Name"},
		{"ORD-1", "2024-01-15", "100", "100", "Completed", "G123", "Outlet One"},
	}

	summary, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Accepted)
}

func TestIngestReport_MalformedRowDoesNotAbortBatch(t *testing.T) {
	txns := &fakeTransactionStore{}
	ing := testIngestor(txns, &fakeMutationStore{}, newFakeTotalsStore(), outletOne())

	rows := [][]string{
		{"ORD-1", "2024-01-15", "100", "100", "Completed", "G123", "Outlet One"},
		{"ORD-2", "garbage"},
		{"ORD-3", "2024-01-15", "200", "200", "Completed", "G123", "Outlet One"},
	}

	summary, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.RejectCounts[models.RejectTooFewColumns])
	require.Len(t, summary.Examples, 1)
	assert.Equal(t, 2, summary.Examples[0].RowNumber)
	assert.Equal(t, "Not enough columns", string(summary.Examples[0].Reason))
}

func TestIngestReport_DropsAlreadyPersistedKeys(t *testing.T) {
	txns := &fakeTransactionStore{}
	totals := newFakeTotalsStore()
	ing := testIngestor(txns, &fakeMutationStore{}, totals, outletOne())
	rows := [][]string{
		{"ORD-1", "2024-01-15", "100", "100", "Completed", "G123", "Outlet One"},
	}

	first, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Accepted)

	// Replaying the same file accepts nothing and leaves the total unchanged.
	second, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Accepted)
	assert.Equal(t, 1, second.Duplicates)
	require.Len(t, txns.txns, 1)

	total := totals.totals[models.TotalKey{OutletCode: "O1", Date: "2024-01-15", ReportType: models.PlatformGojek}]
	require.NotNil(t, total)
	assert.Equal(t, "100", total.TotalNet.String())
}

func TestIngestReport_BulkFailureFallsBackRowByRow(t *testing.T) {
	txns := &fakeTransactionStore{
		failBulk:    true,
		failInserts: map[string]bool{"ORD-2": true},
	}
	ing := testIngestor(txns, &fakeMutationStore{}, newFakeTotalsStore(), outletOne())

	rows := [][]string{
		{"ORD-1", "2024-01-15", "100", "100", "Completed", "G123", "Outlet One"},
		{"ORD-2", "2024-01-15", "200", "200", "Completed", "G123", "Outlet One"},
		{"ORD-3", "2024-01-15", "300", "300", "Completed", "G123", "Outlet One"},
	}

	summary, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)

	require.NoError(t, err)
	assert.Equal(t, 1, txns.bulkCalls)
	assert.Equal(t, 3, txns.rowInserts)
	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.RejectCounts[models.RejectWriteFailed])
}

func TestIngestReport_UnknownPlatform(t *testing.T) {
	ing := testIngestor(&fakeTransactionStore{}, &fakeMutationStore{}, newFakeTotalsStore())

	_, err := ing.IngestReport(context.Background(), models.Platform("doordash"), [][]string{{"x"}})

	var unknownErr *UnknownPlatformError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, models.Platform("doordash"), unknownErr.Platform)
}

func TestIngestReport_BlankRowsIgnored(t *testing.T) {
	ing := testIngestor(&fakeTransactionStore{}, &fakeMutationStore{}, newFakeTotalsStore(), outletOne())

	rows := [][]string{
		{"", "", ""},
		{"ORD-1", "2024-01-15", "100", "100", "Completed", "G123", "Outlet One"},
		{},
	}

	summary, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 0, summary.Rejected)
}

func TestIngestReport_FixtureFile(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "gojek_report.csv"))
	require.NoError(t, err)
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)

	txns := &fakeTransactionStore{}
	totals := newFakeTotalsStore()
	ing := testIngestor(txns, &fakeMutationStore{}, totals, outletOne())

	summary, err := ing.IngestReport(context.Background(), models.PlatformGojek, rows)

	require.NoError(t, err)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 3, summary.Accepted)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.RejectCounts[models.RejectBadDate])

	total := totals.totals[models.TotalKey{OutletCode: "O1", Date: "2024-01-15", ReportType: models.PlatformGojek}]
	require.NotNil(t, total)
	assert.Equal(t, "280000", total.TotalGross.String())
	assert.Equal(t, "207000", total.TotalNet.String(), "cancelled rows stay out of net")
}

func TestIngestMutations_ParsesAndDeduplicates(t *testing.T) {
	muts := &fakeMutationStore{}
	ing := testIngestor(&fakeTransactionStore{}, muts, newFakeTotalsStore())

	rows := [][]string{
		{"15/01/2024", "TRSF E-BANKING CR GOBIZ INDONESIA:G12345", "", "1.500.000,00", "CR"},
		{"15/01/2024", "TRSF E-BANKING CR GOBIZ INDONESIA:G12345", "", "1.500.000,00", "CR"},
		{"15/01/2024", "ATM WITHDRAWAL", "", "200.000,00", "DB"},
	}

	summary, err := ing.IngestMutations(context.Background(), rows, "1234567890")

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.RejectCounts[models.RejectUnknownChannel])
	require.Len(t, muts.muts, 1)
	assert.Equal(t, "G12345", muts.muts[0].PlatformCode)
}

func TestIngestMutations_ReplaySkipsPersisted(t *testing.T) {
	muts := &fakeMutationStore{}
	ing := testIngestor(&fakeTransactionStore{}, muts, newFakeTotalsStore())
	rows := [][]string{
		{"15/01/2024", "TRSF E-BANKING CR GOBIZ INDONESIA:G12345", "", "1.500.000,00", "CR"},
	}

	_, err := ing.IngestMutations(context.Background(), rows, "1234567890")
	require.NoError(t, err)

	second, err := ing.IngestMutations(context.Background(), rows, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Accepted)
	assert.Equal(t, 1, second.Duplicates)
	require.Len(t, muts.muts, 1)
}

func TestIngestConsolidated_PersistsMatchingEntries(t *testing.T) {
	muts := &fakeMutationStore{}
	ing := testIngestor(&fakeTransactionStore{}, muts, newFakeTotalsStore())

	blob := "15/01/2024 MPD-001 1.000.000,00\n" +
		"15/01/2024 no code here 2.000.000,00\n" +
		"16/01/2024 MPD-002 500.000,00\n"

	summary, err := ing.IngestConsolidated(context.Background(), blob, "1234567890", models.PlatformGojek)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Accepted)
	require.Len(t, muts.muts, 2)
	assert.Equal(t, models.PlatformGojek, muts.muts[0].PlatformName)
}
