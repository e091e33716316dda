package models

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Period bounds accepted by the portal.
const (
	MinYear = 2000
	MaxYear = 2100
)

// Period is the (month, year) the ledger is filtered to.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Validate checks that the month is in [1,12] and the year in [MinYear,MaxYear].
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return NewExtractError(ErrCodeInvalidInput,
			fmt.Sprintf("month must be between 1 and 12, got %d", p.Month), nil)
	}
	if p.Year < MinYear || p.Year > MaxYear {
		return NewExtractError(ErrCodeInvalidInput,
			fmt.Sprintf("year must be between %d and %d, got %d", MinYear, MaxYear, p.Year), nil)
	}
	return nil
}

// String renders the period as MM/YYYY.
func (p Period) String() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// MonthValue is the zero-padded month as used by the portal's month <select>.
func (p Period) MonthValue() string {
	return fmt.Sprintf("%02d", p.Month)
}

// Key renders the period as YYYY-MM.
func (p Period) Key() string {
	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

// DefaultPeriodKey identifies results produced with the portal's default period.
const DefaultPeriodKey = "default"

// PeriodKey returns p.Key(), or DefaultPeriodKey for a nil period.
func PeriodKey(p *Period) string {
	if p == nil {
		return DefaultPeriodKey
	}
	return p.Key()
}

// ParsePeriodKey parses a YYYY-MM key. DefaultPeriodKey yields a nil period.
func ParsePeriodKey(s string) (*Period, error) {
	if s == DefaultPeriodKey {
		return nil, nil
	}
	var p Period
	if _, err := fmt.Sscanf(s, "%4d-%2d", &p.Year, &p.Month); err != nil {
		return nil, NewExtractError(ErrCodeInvalidInput, "period must be YYYY-MM", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Credentials is the portal login pair. Neither String nor slog renders the
// secret, and the identifier only shows its check digit.
type Credentials struct {
	identifier string
	secret     string
}

// NewCredentials builds an immutable credential pair.
func NewCredentials(identifier, secret string) Credentials {
	return Credentials{identifier: identifier, secret: secret}
}

func (c Credentials) Identifier() string { return c.identifier }
func (c Credentials) Secret() string     { return c.secret }

// Valid reports whether both halves are present.
func (c Credentials) Valid() bool {
	return c.identifier != "" && c.secret != ""
}

func (c Credentials) String() string {
	return maskIdentifier(c.identifier) + ":[REDACTED]"
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identifier", maskIdentifier(c.identifier)),
		slog.String("secret", "[REDACTED]"),
	)
}

// maskIdentifier hides every character of a RUT except its separators and
// the trailing check digit, so "76.123.456-7" becomes "**.***.***-7".
func maskIdentifier(id string) string {
	runes := []rune(id)
	for i, r := range runes {
		if i == len(runes)-1 || r == '.' || r == '-' {
			continue
		}
		runes[i] = '*'
	}
	return string(runes)
}

// ExtractionResult is the output of one pipeline run.
type ExtractionResult struct {
	// Timestamp is when the result was assembled.
	Timestamp time.Time `json:"timestamp"`

	// Period is the requested period; nil means the portal default applied.
	Period *Period `json:"period,omitempty"`

	// Categories lists the category codes that were processed, ascending.
	Categories []string `json:"categories_processed"`

	// Unavailable lists requested category codes with no data in the period.
	Unavailable []string `json:"categories_unavailable,omitempty"`

	// NoData is set when the period had no categories to extract.
	NoData bool `json:"no_data"`

	// Records are the deduplicated, normalized ledger rows.
	Records []*Record `json:"records"`
}

// NewExtractionResult returns a result with non-nil slices.
func NewExtractionResult(ts time.Time, period *Period) *ExtractionResult {
	return &ExtractionResult{
		Timestamp:  ts,
		Period:     period,
		Categories: []string{},
		Records:    []*Record{},
	}
}

// SortCategoryCodes sorts codes ascending: numerically when both codes are
// integers, lexically otherwise.
func SortCategoryCodes(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		a, errA := strconv.Atoi(codes[i])
		b, errB := strconv.Atoi(codes[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return codes[i] < codes[j]
	})
}

// NormalizeCategoryCodes trims, drops blanks, deduplicates and sorts codes.
func NormalizeCategoryCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	SortCategoryCodes(out)
	return out
}
