package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasagyasta/recon-api/internal/models"
)

func testNormalizer(outlets ...models.Outlet) *Normalizer {
	directory, _ := testDirectory(outlets...)
	return NewNormalizer(directory)
}

func TestResolveColumns_HeadersMatched(t *testing.T) {
	n := testNormalizer()
	headers := []string{"Order No", "Transaction Date", "Amount", "Nett Amount", "Order Status", "Gobiz ID", "Outlet Name"}

	colmap := n.ResolveColumns(models.PlatformGojek, headers)

	assert.Equal(t, 0, colmap[FieldNaturalKey])
	assert.Equal(t, 1, colmap[FieldDate])
	assert.Equal(t, 3, colmap[FieldNet])
	assert.Equal(t, 5, colmap[FieldStoreID])
}

func TestResolveColumns_ReorderedHeaders(t *testing.T) {
	n := testNormalizer()
	headers := []string{"Outlet Name", "Gobiz ID", "Order Status", "Nett Amount", "Amount", "Transaction Date", "Order No"}

	colmap := n.ResolveColumns(models.PlatformGojek, headers)

	assert.Equal(t, 6, colmap[FieldNaturalKey])
	assert.Equal(t, 5, colmap[FieldDate])
	assert.Equal(t, 4, colmap[FieldGross])
	assert.Equal(t, 0, colmap[FieldStoreName])
}

func TestResolveColumns_FallbackToDefaults(t *testing.T) {
	n := testNormalizer()

	// Headerless export: every field falls back to its default index.
	colmap := n.ResolveColumns(models.PlatformGojek, nil)

	assert.Equal(t, 0, colmap[FieldNaturalKey])
	assert.Equal(t, 1, colmap[FieldDate])
	assert.Equal(t, 2, colmap[FieldGross])
	assert.Equal(t, 3, colmap[FieldNet])
}

func TestLooksLikeHeader(t *testing.T) {
	n := testNormalizer()

	assert.True(t, n.LooksLikeHeader(models.PlatformGojek, []string{"Order No", "Transaction Date"}))
	assert.False(t, n.LooksLikeHeader(models.PlatformGojek, []string{"GJ-001", "2024-01-15", "100", "90", "Completed", "G123", "Outlet One"}))
}

func TestParseRow_Valid(t *testing.T) {
	n := testNormalizer(models.Outlet{OutletCode: "O1", Name: "Outlet One", GobizID: "G123"})
	colmap := n.ResolveColumns(models.PlatformGojek, nil)
	row := []string{"GJ-001", "2024-01-15", "1.234,56", "1.100,00", "Completed", "G123", "Outlet One"}

	txn, reason := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)

	require.Empty(t, reason)
	assert.Equal(t, "GJ-001", txn.NaturalKey)
	assert.Equal(t, "1234.56", txn.GrossAmount.String())
	assert.Equal(t, "1100", txn.NetAmount.String())
	assert.Equal(t, 2024, txn.TransactionTime.Year())
	require.NotNil(t, txn.OutletCode)
	assert.Equal(t, "O1", *txn.OutletCode)
}

func TestParseRow_TooFewColumns(t *testing.T) {
	n := testNormalizer()
	colmap := n.ResolveColumns(models.PlatformGojek, nil)

	txn, reason := n.ParseRow(context.Background(), models.PlatformGojek, []string{"GJ-001", "2024-01-15", "100"}, colmap)

	assert.Nil(t, txn)
	assert.Equal(t, models.RejectTooFewColumns, reason)
	assert.Equal(t, "Not enough columns", string(reason))
}

func TestParseRow_BadDate(t *testing.T) {
	n := testNormalizer()
	colmap := n.ResolveColumns(models.PlatformGojek, nil)
	row := []string{"GJ-001", "not-a-date", "100", "90", "Completed", "", ""}

	txn, reason := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)

	assert.Nil(t, txn)
	assert.Equal(t, models.RejectBadDate, reason)
}

func TestParseRow_MissingNaturalKey(t *testing.T) {
	n := testNormalizer()
	colmap := n.ResolveColumns(models.PlatformGojek, nil)
	row := []string{"  ", "2024-01-15", "100", "90", "Completed", "", ""}

	txn, reason := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)

	assert.Nil(t, txn)
	assert.Equal(t, models.RejectMissingKey, reason)
}

func TestParseRow_UnresolvedOutletStillParses(t *testing.T) {
	n := testNormalizer() // empty directory
	colmap := n.ResolveColumns(models.PlatformGojek, nil)
	row := []string{"GJ-001", "2024-01-15", "100", "90", "Completed", "G999", "Nowhere"}

	txn, reason := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)

	require.Empty(t, reason)
	assert.Nil(t, txn.OutletCode)
}

func TestParseRow_OutletResolvedByName(t *testing.T) {
	n := testNormalizer(models.Outlet{OutletCode: "O2", Name: "Warung  Dua"})
	colmap := n.ResolveColumns(models.PlatformGojek, nil)
	row := []string{"GJ-002", "2024-01-15", "100", "90", "Completed", "", "warung dua"}

	txn, reason := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)

	require.Empty(t, reason)
	require.NotNil(t, txn.OutletCode)
	assert.Equal(t, "O2", *txn.OutletCode)
}

func TestParseRow_NameMatchBackfillsStoreID(t *testing.T) {
	directory, store := testDirectory(models.Outlet{OutletCode: "O3", Name: "Outlet Three"})
	n := NewNormalizer(directory)
	colmap := n.ResolveColumns(models.PlatformGojek, nil)
	row := []string{"GJ-003", "2024-01-15", "100", "90", "Completed", "G777", "Outlet Three"}

	txn, reason := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)

	require.Empty(t, reason)
	require.NotNil(t, txn.OutletCode)
	assert.Equal(t, "O3", *txn.OutletCode)
	assert.Equal(t, 1, store.updates)

	// Backfill is idempotent: the id is now on file, so a second row with
	// the same discovery writes nothing.
	_, reason = n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)
	require.Empty(t, reason)
	assert.Equal(t, 1, store.updates)
}

func TestParseRow_Deterministic(t *testing.T) {
	n := testNormalizer(models.Outlet{OutletCode: "O1", Name: "Outlet One", GobizID: "G123"})
	colmap := n.ResolveColumns(models.PlatformGojek, nil)
	row := []string{"GJ-001", "2024-01-15", "1.234,56", "1.100,00", "Completed", "G123", "Outlet One"}

	first, reason1 := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)
	second, reason2 := n.ParseRow(context.Background(), models.PlatformGojek, row, colmap)

	require.Empty(t, reason1)
	require.Empty(t, reason2)
	assert.Equal(t, first.NaturalKey, second.NaturalKey)
	assert.True(t, first.GrossAmount.Equal(second.GrossAmount))
	assert.True(t, first.NetAmount.Equal(second.NetAmount))
	assert.Equal(t, first.TransactionTime, second.TransactionTime)
	assert.Equal(t, first.Status, second.Status)
}

func TestSchemaExcludedStatus(t *testing.T) {
	n := testNormalizer()

	gojek, ok := n.Schema(models.PlatformGojek)
	require.True(t, ok)
	assert.Equal(t, "Cancelled", gojek.ExcludedStatus)

	voucher, ok := n.Schema(models.PlatformVoucher)
	require.True(t, ok)
	assert.Equal(t, "Withdrawal", voucher.ExcludedStatus)

	webshop, ok := n.Schema(models.PlatformWebshop)
	require.True(t, ok)
	assert.Empty(t, webshop.ExcludedStatus)
}

func TestParseReportDate_Formats(t *testing.T) {
	layouts := []string{"2006-01-02", "02/01/2006"}

	d, err := ParseReportDate("2024-01-15", layouts)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-15"), d)

	d, err = ParseReportDate(`"15/01/2024"`, layouts)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-15"), d)

	_, err = ParseReportDate("15 Januari 2024", layouts)
	assert.Error(t, err)
}
