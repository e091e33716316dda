package models

import (
	"time"
)

// ExtractRequest is the payload for POST /api/v1/extract.
type ExtractRequest struct {
	// Month filters the ledger to a month (1-12). When only Year is given,
	// the current month is used.
	Month *int `json:"month,omitempty" binding:"omitempty,min=1,max=12"`

	// Year filters the ledger to a year (2000-2100). When only Month is
	// given, the current year is used.
	Year *int `json:"year,omitempty" binding:"omitempty,min=2000,max=2100"`

	// Categories restricts extraction to these document-type codes.
	// Default: every category with data in the period.
	Categories []string `json:"categories,omitempty"`
}

// Period resolves the requested period. Both fields absent means the
// portal's default period (nil).
func (r *ExtractRequest) Period(now time.Time) (*Period, error) {
	if r.Month == nil && r.Year == nil {
		return nil, nil
	}
	p := Period{Month: int(now.Month()), Year: now.Year()}
	if r.Month != nil {
		p.Month = *r.Month
	}
	if r.Year != nil {
		p.Year = *r.Year
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// CategoryFilter returns the normalized category filter, or nil when the
// request did not restrict categories.
func (r *ExtractRequest) CategoryFilter() []string {
	if r.Categories == nil {
		return nil
	}
	return NormalizeCategoryCodes(r.Categories)
}
