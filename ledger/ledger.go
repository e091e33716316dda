// Package ledger collapses the records gathered across category scans into
// the final, deduplicated record set.
package ledger

import (
	"log/slog"

	"github.com/use-agent/rcvscrap/models"
)

// Normalize returns a copy of rec without the fields whose value is empty,
// whitespace only, or the NaN sentinel.
func Normalize(rec *models.Record) *models.Record {
	out := models.NewRecord()
	rec.Each(func(k, v string) {
		if models.IsEmptyValue(v) {
			return
		}
		out.Set(k, v)
	})
	return out
}

// Dedupe keeps the first record seen for each folio, normalized, in
// first-seen order. Records without a folio, and records that normalize to
// no fields, are dropped.
func Dedupe(records []*models.Record) []*models.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]*models.Record, 0, len(records))
	missingKey := 0

	for _, rec := range records {
		folio, ok := rec.Folio()
		if !ok {
			missingKey++
			continue
		}
		if _, dup := seen[folio]; dup {
			continue
		}
		clean := Normalize(rec)
		if clean.Len() == 0 {
			continue
		}
		seen[folio] = struct{}{}
		out = append(out, clean)
	}

	if dropped := len(records) - len(out); dropped > 0 {
		slog.Info("records deduplicated",
			"input", len(records),
			"unique", len(out),
			"dropped", dropped,
			"without_folio", missingKey,
		)
	}
	return out
}
