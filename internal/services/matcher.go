package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tobiasagyasta/recon-api/internal/models"
)

// ErrInvalidDateRange is returned when a reconciliation or backfill request
// has a missing bound or start after end. It surfaces to the caller as a
// request-level error.
var ErrInvalidDateRange = errors.New("invalid date range: start and end are required and start must not be after end")

// PredicateKind selects how an aggregate is correlated to a mutation.
type PredicateKind int

const (
	// PredicateExactCode requires the mutation's platform code to equal the
	// outlet's store id.
	PredicateExactCode PredicateKind = iota
	// PredicateSuffixContains requires the last SuffixLen characters of the
	// store id to appear inside the mutation's platform code.
	PredicateSuffixContains
	// PredicateAmountTolerance ignores codes entirely and compares amounts
	// after rounding both to RoundUnit, within Threshold.
	PredicateAmountTolerance
)

// MatchProfile parameterizes the matcher for one platform.
type MatchProfile struct {
	Platform             models.Platform
	SettlementOffsetDays int
	Predicate            PredicateKind
	SuffixLen            int
	RoundUnit            int64
	Threshold            decimal.Decimal
}

// DefaultMatchProfiles returns the per-platform matching rules.
func DefaultMatchProfiles() map[models.Platform]MatchProfile {
	return map[models.Platform]MatchProfile{
		models.PlatformGojek: {
			Platform:             models.PlatformGojek,
			SettlementOffsetDays: 1,
			Predicate:            PredicateExactCode,
		},
		models.PlatformGrab: {
			Platform:             models.PlatformGrab,
			SettlementOffsetDays: 2,
			Predicate:            PredicateSuffixContains,
			SuffixLen:            6,
		},
		models.PlatformShopeeFood: {
			Platform:             models.PlatformShopeeFood,
			SettlementOffsetDays: 1,
			Predicate:            PredicateAmountTolerance,
			RoundUnit:            10,
			Threshold:            decimal.NewFromInt(10),
		},
	}
}

// Aggregate is one summed (outlet, date) total entering a reconciliation
// run, carrying the store id the predicate needs.
type Aggregate struct {
	OutletCode string          `json:"outlet_code"`
	StoreID    string          `json:"store_id,omitempty"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
}

// Match pairs one aggregate with the bank mutation that settled it.
type Match struct {
	Aggregate Aggregate           `json:"aggregate"`
	Mutation  models.BankMutation `json:"mutation"`
}

// ReconcileParams are the inputs of one reconciliation run.
type ReconcileParams struct {
	Platform     models.Platform
	Start        time.Time
	End          time.Time
	PlatformCode string // optional filter
	Page         int
	PageSize     int
}

// ReconcileSummary carries the full-range statistics, computed before
// pagination is applied.
type ReconcileSummary struct {
	TotalAggregates     int             `json:"total_aggregates"`
	MatchedCount        int             `json:"matched_count"`
	UnmatchedAggregates int             `json:"unmatched_aggregates"`
	UnmatchedMutations  int             `json:"unmatched_mutations"`
	MatchedAmount       decimal.Decimal `json:"matched_amount"`
	UnmatchedAmount     decimal.Decimal `json:"unmatched_amount"`
	MatchRatePercent    float64         `json:"match_rate_percent"`
}

// ReconcileReport is the outcome of one reconciliation run. The list fields
// hold the requested page; Summary always covers the whole range.
type ReconcileReport struct {
	Platform            models.Platform       `json:"platform"`
	Start               time.Time             `json:"start"`
	End                 time.Time             `json:"end"`
	Matches             []Match               `json:"matches"`
	UnmatchedAggregates []Aggregate           `json:"unmatched_aggregates"`
	UnmatchedMutations  []models.BankMutation `json:"unmatched_mutations"`
	Summary             ReconcileSummary      `json:"summary"`
	Page                int                   `json:"page"`
	PageSize            int                   `json:"page_size"`
}

// OutletLookup is the slice of the directory the matcher needs.
type OutletLookup interface {
	GetByCode(ctx context.Context, code string) (*models.Outlet, error)
}

// Matcher pairs consolidated daily totals against bank mutations using
// per-platform settlement offsets and predicates.
type Matcher struct {
	totals   TotalsStore
	muts     MutationStore
	outlets  OutletLookup
	profiles map[models.Platform]MatchProfile
}

// NewMatcher creates a matcher with the default per-platform profiles.
func NewMatcher(totals TotalsStore, muts MutationStore, outlets OutletLookup) *Matcher {
	return &Matcher{
		totals:   totals,
		muts:     muts,
		outlets:  outlets,
		profiles: DefaultMatchProfiles(),
	}
}

// Reconcile runs the matching algorithm for [start, end]:
//
//  1. fetch consolidated totals for the platform in range
//  2. fetch mutations in the offset window [start+offset, end+offset]
//  3. for each aggregate, consume the first unconsumed mutation dated
//     aggregate date + offset that satisfies the platform predicate
//  4. report never-consumed mutations as unmatched
//
// First-match-wins: no scoring among candidates, and no mutation is
// consumed twice. With the amount-tolerance predicate this is best-effort
// reconciliation, not exact.
func (m *Matcher) Reconcile(ctx context.Context, params ReconcileParams) (*ReconcileReport, error) {
	if params.Start.IsZero() || params.End.IsZero() || params.Start.After(params.End) {
		return nil, ErrInvalidDateRange
	}

	profile, ok := m.profiles[params.Platform]
	if !ok {
		return nil, fmt.Errorf("no match profile for platform: %s", params.Platform)
	}

	aggregates, err := m.loadAggregates(ctx, params)
	if err != nil {
		return nil, err
	}

	offset := profile.SettlementOffsetDays
	mutations, err := m.muts.ListRange(ctx, params.Platform,
		params.Start.AddDate(0, 0, offset), params.End.AddDate(0, 0, offset))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mutations: %w", err)
	}
	if params.PlatformCode != "" {
		filtered := mutations[:0]
		for _, mut := range mutations {
			if mut.PlatformCode == params.PlatformCode {
				filtered = append(filtered, mut)
			}
		}
		mutations = filtered
	}

	consumed := make([]bool, len(mutations))
	var matches []Match
	var unmatchedAggs []Aggregate

	for _, agg := range aggregates {
		settleDate := DateOnly(agg.Date).AddDate(0, 0, offset)
		found := -1
		for i := range mutations {
			if consumed[i] {
				continue
			}
			if !DateOnly(mutations[i].TransactionDate).Equal(settleDate) {
				continue
			}
			if matchPredicate(profile, agg, &mutations[i]) {
				found = i
				break
			}
		}
		if found >= 0 {
			consumed[found] = true
			matches = append(matches, Match{Aggregate: agg, Mutation: mutations[found]})
		} else {
			unmatchedAggs = append(unmatchedAggs, agg)
		}
	}

	var unmatchedMuts []models.BankMutation
	for i, mut := range mutations {
		if !consumed[i] {
			unmatchedMuts = append(unmatchedMuts, mut)
		}
	}

	report := &ReconcileReport{
		Platform: params.Platform,
		Start:    params.Start,
		End:      params.End,
		Summary:  buildSummary(len(aggregates), matches, unmatchedAggs, unmatchedMuts),
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	report.Matches = pageOf(matches, params.Page, params.PageSize)
	report.UnmatchedAggregates = pageOf(unmatchedAggs, params.Page, params.PageSize)
	report.UnmatchedMutations = pageOf(unmatchedMuts, params.Page, params.PageSize)
	return report, nil
}

// loadAggregates reads daily totals in range and attaches each outlet's
// store id. Iteration order is date then outlet code, so runs over the same
// snapshot are deterministic.
func (m *Matcher) loadAggregates(ctx context.Context, params ReconcileParams) ([]Aggregate, error) {
	totals, err := m.totals.ListRange(ctx, params.Platform, params.Start, params.End)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily totals: %w", err)
	}

	aggregates := make([]Aggregate, 0, len(totals))
	for _, total := range totals {
		storeID := total.OutletCode
		outlet, err := m.outlets.GetByCode(ctx, total.OutletCode)
		if err != nil {
			return nil, err
		}
		if outlet != nil {
			if id := outlet.StoreID(params.Platform); id != "" {
				storeID = id
			}
		}
		if params.PlatformCode != "" && storeID != params.PlatformCode {
			continue
		}
		aggregates = append(aggregates, Aggregate{
			OutletCode: total.OutletCode,
			StoreID:    storeID,
			Date:       total.Date,
			Amount:     total.TotalNet,
		})
	}

	sort.SliceStable(aggregates, func(i, j int) bool {
		if !aggregates[i].Date.Equal(aggregates[j].Date) {
			return aggregates[i].Date.Before(aggregates[j].Date)
		}
		return aggregates[i].OutletCode < aggregates[j].OutletCode
	})
	return aggregates, nil
}

func matchPredicate(profile MatchProfile, agg Aggregate, mut *models.BankMutation) bool {
	switch profile.Predicate {
	case PredicateExactCode:
		return agg.StoreID != "" && agg.StoreID == mut.PlatformCode
	case PredicateSuffixContains:
		suffix := agg.StoreID
		if len(suffix) > profile.SuffixLen {
			suffix = suffix[len(suffix)-profile.SuffixLen:]
		}
		return suffix != "" && strings.Contains(mut.PlatformCode, suffix)
	case PredicateAmountTolerance:
		a := RoundToUnit(agg.Amount, profile.RoundUnit)
		b := RoundToUnit(mut.TransactionAmount, profile.RoundUnit)
		return a.Sub(b).Abs().LessThan(profile.Threshold)
	default:
		return false
	}
}

func buildSummary(totalAggregates int, matches []Match, unmatchedAggs []Aggregate, unmatchedMuts []models.BankMutation) ReconcileSummary {
	matchedAmount := decimal.Zero
	for _, m := range matches {
		matchedAmount = matchedAmount.Add(m.Aggregate.Amount)
	}
	unmatchedAmount := decimal.Zero
	for _, a := range unmatchedAggs {
		unmatchedAmount = unmatchedAmount.Add(a.Amount)
	}

	rate := 0.0
	if totalAggregates > 0 {
		rate = float64(len(matches)) / float64(totalAggregates) * 100
		rate = math.Round(rate*100) / 100
	}

	return ReconcileSummary{
		TotalAggregates:     totalAggregates,
		MatchedCount:        len(matches),
		UnmatchedAggregates: len(unmatchedAggs),
		UnmatchedMutations:  len(unmatchedMuts),
		MatchedAmount:       matchedAmount,
		UnmatchedAmount:     unmatchedAmount,
		MatchRatePercent:    rate,
	}
}

// pageOf slices one result list for the requested page. Page 0 (or a
// non-positive page size) returns the full list.
func pageOf[T any](items []T, page, pageSize int) []T {
	if page <= 0 || pageSize <= 0 {
		return items
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
