package services

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tobiasagyasta/recon-api/internal/models"
)

type codeMode int

const (
	codeNone codeMode = iota
	codeMarkerScan
	codeFixedColumn
)

// ChannelSchema describes one settlement channel as it appears on a bank
// statement: the sentinel token that identifies it, where the fields live,
// and how the merchant code is cut out of the line.
type ChannelSchema struct {
	Platform     models.Platform
	Sentinel     string // compared case-insensitively inside the detect column
	DetectColumn int
	DateColumn   int
	DateLayouts  []string
	AmountColumn int
	CodeMode     codeMode
	CodeColumn   int    // for codeFixedColumn
	CodeMarkers  string // for codeMarkerScan: suffix starts after the first of these
}

// consolidatedCodePattern validates platform codes embedded in consolidated
// statement blobs. Entries without a conforming code are dropped, not
// defaulted.
var consolidatedCodePattern = regexp.MustCompile(`\b[A-Z]{3}-[0-9]{3}\b`)

// MutationParser format-detects and parses raw bank statement rows into
// canonical BankMutation records.
type MutationParser struct {
	channels []ChannelSchema
}

// NewMutationParser creates a parser with the known settlement channels.
// Detection order matters only for overlapping sentinels, so the most
// specific tokens come first.
func NewMutationParser() *MutationParser {
	bcaLayouts := []string{"02/01/2006", "2006-01-02"}
	return &MutationParser{
		channels: []ChannelSchema{
			{
				Platform:     models.PlatformGojek,
				Sentinel:     "GOBIZ",
				DetectColumn: 1,
				DateColumn:   0,
				DateLayouts:  bcaLayouts,
				AmountColumn: 3,
				CodeMode:     codeMarkerScan,
				CodeMarkers:  ":-",
			},
			{
				Platform:     models.PlatformGrab,
				Sentinel:     "GRAB",
				DetectColumn: 1,
				DateColumn:   0,
				DateLayouts:  bcaLayouts,
				AmountColumn: 3,
				CodeMode:     codeFixedColumn,
				CodeColumn:   2,
			},
			{
				Platform:     models.PlatformShopeeFood,
				Sentinel:     "AIRPAY",
				DetectColumn: 1,
				DateColumn:   0,
				DateLayouts:  bcaLayouts,
				AmountColumn: 3,
				CodeMode:     codeNone,
			},
		},
	}
}

// DetectChannel finds the settlement channel whose sentinel appears in its
// fixed detect column. Rows with no sentinel match are not mutations and are
// skipped by the caller.
func (p *MutationParser) DetectChannel(row []string) (ChannelSchema, bool) {
	for _, ch := range p.channels {
		col := strings.ToUpper(cell(row, ch.DetectColumn))
		if strings.Contains(col, ch.Sentinel) {
			return ch, true
		}
	}
	return ChannelSchema{}, false
}

// Parse converts one statement row into a BankMutation. A non-empty reason
// means the row was skipped. Any panic during field extraction is recovered
// and reported as an unparseable line, so one bad row never aborts a batch.
func (p *MutationParser) Parse(row []string, rekening string) (mut *models.BankMutation, reason models.RejectReason) {
	defer func() {
		if r := recover(); r != nil {
			mut, reason = nil, models.RejectBadMutation
		}
	}()

	ch, ok := p.DetectChannel(row)
	if !ok {
		return nil, models.RejectUnknownChannel
	}

	date, err := ParseReportDate(cell(row, ch.DateColumn), ch.DateLayouts)
	if err != nil {
		return nil, models.RejectBadMutation
	}

	// The amount is part of the mutation's identity triple, so a row whose
	// amount normalizes to zero cannot be deduplicated and is rejected.
	amount := NormalizeAmount(cell(row, ch.AmountColumn))
	if amount.IsZero() {
		return nil, models.RejectBadAmount
	}

	desc := strings.TrimSpace(cell(row, ch.DetectColumn))
	code := ""
	switch ch.CodeMode {
	case codeMarkerScan:
		// Scan only the text after the sentinel so markers in the bank's own
		// prefix (e.g. "TRSF E-BANKING CR") cannot shadow the merchant code.
		code = extractCodeAfterMarker(stripSentinelPrefix(desc, ch.Sentinel), ch.CodeMarkers)
	case codeFixedColumn:
		code = strings.TrimSpace(cell(row, ch.CodeColumn))
	}

	return &models.BankMutation{
		ID:                uuid.New(),
		RekeningNumber:    rekening,
		TransactionDate:   date,
		TransactionAmount: amount,
		PlatformCode:      code,
		PlatformName:      ch.Platform,
		RawText:           stripSentinelPrefix(desc, ch.Sentinel),
	}, ""
}

// ParseConsolidated extracts zero or more mutations from a consolidated
// statement blob where many transactions are embedded in one text block.
// Each entry must carry a platform code matching AAA-000; entries without
// one are dropped.
func (p *MutationParser) ParseConsolidated(blob string, rekening string, platform models.Platform) []models.BankMutation {
	layouts := []string{"02/01/2006", "2006-01-02"}

	var muts []models.BankMutation
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		code := consolidatedCodePattern.FindString(line)
		if code == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		date, err := ParseReportDate(fields[0], layouts)
		if err != nil {
			continue
		}

		amount := NormalizeAmount(fields[len(fields)-1])
		if amount.IsZero() {
			continue
		}

		muts = append(muts, models.BankMutation{
			ID:                uuid.New(),
			RekeningNumber:    rekening,
			TransactionDate:   date,
			TransactionAmount: amount,
			PlatformCode:      code,
			PlatformName:      platform,
			RawText:           line,
		})
	}
	return muts
}

// extractCodeAfterMarker scans for the first occurrence of any marker
// character and returns the trimmed suffix after it.
func extractCodeAfterMarker(s, markers string) string {
	idx := strings.IndexAny(s, markers)
	if idx < 0 || idx+1 >= len(s) {
		return ""
	}
	return strings.TrimSpace(s[idx+1:])
}

func stripSentinelPrefix(desc, sentinel string) string {
	upper := strings.ToUpper(desc)
	idx := strings.Index(upper, sentinel)
	if idx < 0 {
		return desc
	}
	return strings.TrimSpace(desc[idx+len(sentinel):])
}
