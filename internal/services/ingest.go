package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/tobiasagyasta/recon-api/internal/models"
)

// maxRejectExamples bounds the example rows carried per reject reason in a
// batch summary; counts always cover the full batch.
const maxRejectExamples = 5

// BatchSummary is the structured outcome of one ingestion batch: totals plus
// a bounded, per-reason list of example rejects.
type BatchSummary struct {
	Processed    int                          `json:"processed"`
	Accepted     int                          `json:"accepted"`
	Duplicates   int                          `json:"duplicates"`
	Rejected     int                          `json:"rejected"`
	RejectCounts map[models.RejectReason]int  `json:"reject_counts,omitempty"`
	Examples     []models.RejectedRow         `json:"examples,omitempty"`
	TouchedKeys  []models.TotalKey            `json:"touched_keys,omitempty"`
}

func newBatchSummary() *BatchSummary {
	return &BatchSummary{RejectCounts: make(map[models.RejectReason]int)}
}

func (s *BatchSummary) reject(rowNumber int, reason models.RejectReason, raw []string) {
	s.Rejected++
	s.RejectCounts[reason]++
	if s.RejectCounts[reason] <= maxRejectExamples {
		s.Examples = append(s.Examples, models.RejectedRow{
			RowNumber: rowNumber,
			Reason:    reason,
			RawRow:    strings.Join(raw, ","),
		})
	}
}

// Ingestor runs request-scoped ingestion batches: rows are parsed one at a
// time, persisted bulk-first with a row-by-row fallback, and the touched
// (outlet, date) keys are consolidated afterwards.
type Ingestor struct {
	normalizer   *Normalizer
	parser       *MutationParser
	txns         TransactionStore
	muts         MutationStore
	consolidator *Consolidator
}

// NewIngestor creates an ingestor.
func NewIngestor(normalizer *Normalizer, parser *MutationParser, txns TransactionStore, muts MutationStore, consolidator *Consolidator) *Ingestor {
	return &Ingestor{
		normalizer:   normalizer,
		parser:       parser,
		txns:         txns,
		muts:         muts,
		consolidator: consolidator,
	}
}

// IngestReport normalizes and persists one uploaded report file's rows for a
// platform, then recomputes the daily totals for every touched key. Row
// failures degrade to skip-and-count; only a storage failure for the whole
// batch is returned as an error.
func (s *Ingestor) IngestReport(ctx context.Context, platform models.Platform, rows [][]string) (*BatchSummary, error) {
	summary := newBatchSummary()

	if _, ok := s.normalizer.Schema(platform); !ok {
		return nil, &UnknownPlatformError{Platform: platform}
	}
	if len(rows) == 0 {
		return summary, nil
	}

	// Column resolution happens once per file. Headerless exports fall back
	// to the schema's default indexes.
	var colmap ColumnMap
	rowOffset := 1
	if s.normalizer.LooksLikeHeader(platform, rows[0]) {
		colmap = s.normalizer.ResolveColumns(platform, rows[0])
		rows = rows[1:]
		rowOffset = 2
	} else {
		colmap = s.normalizer.ResolveColumns(platform, nil)
	}

	// The dedup set is scoped to this invocation, not shared process state.
	seen := make(map[string]bool)
	var accepted []*models.PlatformTransaction
	var acceptedRows []int

	for i, row := range rows {
		rowNumber := i + rowOffset
		summary.Processed++

		if isBlankRow(row) {
			summary.Processed--
			continue
		}

		txn, reason := s.normalizer.ParseRow(ctx, platform, row, colmap)
		if reason != "" {
			summary.reject(rowNumber, reason, row)
			continue
		}

		if seen[txn.NaturalKey] {
			summary.Duplicates++
			continue
		}
		seen[txn.NaturalKey] = true

		accepted = append(accepted, txn)
		acceptedRows = append(acceptedRows, rowNumber)
	}

	// Drop natural keys that earlier batches already persisted.
	accepted, acceptedRows = s.dropPersistedKeys(ctx, platform, accepted, acceptedRows, summary)

	s.persistTransactions(ctx, accepted, acceptedRows, summary)

	s.consolidateTouched(ctx, summary)
	return summary, nil
}

// IngestMutations parses raw bank statement rows for the given account and
// persists the recognized mutations. Rows with no channel sentinel are not
// mutations and are skipped.
func (s *Ingestor) IngestMutations(ctx context.Context, rows [][]string, rekening string) (*BatchSummary, error) {
	summary := newBatchSummary()

	seen := make(map[string]bool)
	var accepted []*models.BankMutation
	var acceptedRows []int

	for i, row := range rows {
		rowNumber := i + 1
		if isBlankRow(row) {
			continue
		}
		summary.Processed++

		mut, reason := s.parser.Parse(row, rekening)
		if reason != "" {
			summary.reject(rowNumber, reason, row)
			continue
		}

		if seen[mut.DedupKey()] {
			summary.Duplicates++
			continue
		}
		seen[mut.DedupKey()] = true

		accepted = append(accepted, mut)
		acceptedRows = append(acceptedRows, rowNumber)
	}

	accepted, acceptedRows = s.dropPersistedMutations(ctx, accepted, acceptedRows, summary)

	s.persistMutations(ctx, accepted, acceptedRows, summary)
	return summary, nil
}

// IngestConsolidated extracts mutations embedded in one consolidated
// statement blob and persists them under the same dedup policy.
func (s *Ingestor) IngestConsolidated(ctx context.Context, blob string, rekening string, platform models.Platform) (*BatchSummary, error) {
	summary := newBatchSummary()

	muts := s.parser.ParseConsolidated(blob, rekening, platform)
	summary.Processed = len(muts)

	seen := make(map[string]bool)
	var accepted []*models.BankMutation
	var acceptedRows []int
	for i := range muts {
		if seen[muts[i].DedupKey()] {
			summary.Duplicates++
			continue
		}
		seen[muts[i].DedupKey()] = true
		accepted = append(accepted, &muts[i])
		acceptedRows = append(acceptedRows, i+1)
	}

	accepted, acceptedRows = s.dropPersistedMutations(ctx, accepted, acceptedRows, summary)

	s.persistMutations(ctx, accepted, acceptedRows, summary)
	return summary, nil
}

func (s *Ingestor) dropPersistedKeys(ctx context.Context, platform models.Platform, txns []*models.PlatformTransaction, rowNumbers []int, summary *BatchSummary) ([]*models.PlatformTransaction, []int) {
	if len(txns) == 0 {
		return txns, rowNumbers
	}

	keys := make([]string, len(txns))
	for i, t := range txns {
		keys[i] = t.NaturalKey
	}
	existing, err := s.txns.ExistingNaturalKeys(ctx, platform, keys)
	if err != nil {
		// If the lookup fails the unique constraint still protects us; the
		// per-row fallback will count the collisions.
		log.Printf("Warning: natural key lookup failed: %v", err)
		return txns, rowNumbers
	}

	kept := txns[:0]
	keptRows := rowNumbers[:0]
	for i, t := range txns {
		if existing[t.NaturalKey] {
			summary.Duplicates++
			continue
		}
		kept = append(kept, t)
		keptRows = append(keptRows, rowNumbers[i])
	}
	return kept, keptRows
}

func (s *Ingestor) dropPersistedMutations(ctx context.Context, muts []*models.BankMutation, rowNumbers []int, summary *BatchSummary) ([]*models.BankMutation, []int) {
	if len(muts) == 0 {
		return muts, rowNumbers
	}

	existing, err := s.muts.ExistingDedupKeys(ctx, muts)
	if err != nil {
		log.Printf("Warning: mutation dedup lookup failed: %v", err)
		return muts, rowNumbers
	}

	kept := muts[:0]
	keptRows := rowNumbers[:0]
	for i, m := range muts {
		if existing[m.DedupKey()] {
			summary.Duplicates++
			continue
		}
		kept = append(kept, m)
		keptRows = append(keptRows, rowNumbers[i])
	}
	return kept, keptRows
}

// persistTransactions bulk-inserts the batch; when the bulk attempt fails it
// falls back to row-by-row insertion so one offending row does not lose the
// whole file.
func (s *Ingestor) persistTransactions(ctx context.Context, txns []*models.PlatformTransaction, rowNumbers []int, summary *BatchSummary) {
	if len(txns) == 0 {
		return
	}

	now := time.Now().UTC()
	for _, t := range txns {
		t.CreatedAt = now
	}

	if err := s.txns.BulkInsert(ctx, txns); err == nil {
		for _, t := range txns {
			summary.Accepted++
			s.touch(summary, t)
		}
		return
	} else {
		log.Printf("Warning: bulk insert failed, retrying row by row: %v", err)
	}

	for i, t := range txns {
		if err := s.txns.Insert(ctx, t); err != nil {
			summary.reject(rowNumbers[i], models.RejectWriteFailed, []string{t.RawRow})
			continue
		}
		summary.Accepted++
		s.touch(summary, t)
	}
}

func (s *Ingestor) persistMutations(ctx context.Context, muts []*models.BankMutation, rowNumbers []int, summary *BatchSummary) {
	if len(muts) == 0 {
		return
	}

	now := time.Now().UTC()
	for _, m := range muts {
		m.CreatedAt = now
	}

	if err := s.muts.BulkInsert(ctx, muts); err == nil {
		summary.Accepted += len(muts)
		return
	} else {
		log.Printf("Warning: mutation bulk insert failed, retrying row by row: %v", err)
	}

	for i, m := range muts {
		if err := s.muts.Insert(ctx, m); err != nil {
			summary.reject(rowNumbers[i], models.RejectWriteFailed, []string{m.RawText})
			continue
		}
		summary.Accepted++
	}
}

// touch records the (outlet, date) key of an accepted transaction. Rows with
// no outlet attribution are stored for audit but not consolidated.
func (s *Ingestor) touch(summary *BatchSummary, txn *models.PlatformTransaction) {
	if txn.OutletCode == nil {
		return
	}
	key := models.TotalKey{
		OutletCode: *txn.OutletCode,
		Date:       txn.Date().Format("2006-01-02"),
		ReportType: txn.Platform,
	}
	for _, existing := range summary.TouchedKeys {
		if existing == key {
			return
		}
	}
	summary.TouchedKeys = append(summary.TouchedKeys, key)
}

// consolidateTouched recomputes the daily total of every key the batch
// touched. Recompute is idempotent, so retried batches are safe.
func (s *Ingestor) consolidateTouched(ctx context.Context, summary *BatchSummary) {
	for _, key := range summary.TouchedKeys {
		if _, err := s.consolidator.Recompute(ctx, key); err != nil {
			log.Printf("Warning: failed to consolidate %s/%s/%s: %v", key.OutletCode, key.Date, key.ReportType, err)
		}
	}
}

func isBlankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// UnknownPlatformError is returned when an upload names a report type the
// normalizer has no schema for.
type UnknownPlatformError struct {
	Platform models.Platform
}

func (e *UnknownPlatformError) Error() string {
	return "unknown platform: " + string(e.Platform)
}
