package portal

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/models"
)

// counterpartyPatterns are tried in order against the detail dialog text.
var counterpartyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Raz[oó]n Social[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Emisor[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)Nombre[:\s]+([^\n]+)`),
}

var counterpartyLabel = regexp.MustCompile(`(?i)^(Emisor|Raz[oó]n Social|Nombre)\s*[:：\t]+\s*`)

// CounterpartyFromText finds the counterparty legal name in a detail dialog's
// text. It returns false when no labelled name is present.
func CounterpartyFromText(text string) (string, bool) {
	for _, re := range counterpartyPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(counterpartyLabel.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if name == "" {
			continue
		}
		return name, true
	}
	return "", false
}

// CategoryStats summarises one category extraction.
type CategoryStats struct {
	Tables        int
	SkippedTables int
	Rows          int
	Enriched      int
	NotEnriched   int
}

// Extractor parses a category's detail view into records.
type Extractor struct {
	cfg config.PortalConfig
}

// NewExtractor creates an Extractor for the configured portal.
func NewExtractor(cfg config.PortalConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// ExtractCategory parses every table on the current page, enriches each row
// that carries a folio, and tags all rows with the category code and label.
// A page without tables yields no records. Table and row level failures are
// logged and skipped; a failure to query the page or the end of ctx is
// returned.
func (x *Extractor) ExtractCategory(ctx context.Context, d Driver, code, label string) ([]*models.Record, CategoryStats, error) {
	var stats CategoryStats
	log := slog.With("category", code)

	settle(ctx, d, x.cfg.IdleTimeout)

	tbls, err := d.Query(ctx, tables)
	if err != nil {
		return nil, stats, err
	}
	stats.Tables = len(tbls)
	if len(tbls) == 0 {
		log.Warn("no tables on category page")
		return []*models.Record{}, stats, nil
	}

	records := []*models.Record{}
	for i, tbl := range tbls {
		markup, err := tbl.HTML()
		if err != nil {
			log.Warn("table markup unavailable, skipping", "table", i+1, "error", err)
			stats.SkippedTables++
			continue
		}
		rows, err := ParseTable(markup)
		if err != nil {
			log.Warn("table could not be parsed, skipping", "table", i+1, "error", err)
			stats.SkippedTables++
			continue
		}
		if len(rows) == 0 {
			log.Debug("table has no data rows", "table", i+1)
			continue
		}
		log.Info("table parsed", "table", i+1, "rows", len(rows))

		for _, row := range rows {
			if _, hasFolio := row.Folio(); hasFolio {
				row = x.Enrich(ctx, d, row)
				if err := Interrupted(ctx, "enrichment of category "+code); err != nil {
					return nil, stats, err
				}
				if _, ok := row.Get(models.FieldCounterparty); ok {
					stats.Enriched++
				} else {
					stats.NotEnriched++
				}
			}
			row.Set(models.FieldCategoryCode, code)
			row.Set(models.FieldCategoryLabel, label)
			records = append(records, row)
		}
		stats.Rows += len(rows)
	}
	if err := Interrupted(ctx, "extraction of category "+code); err != nil {
		return nil, stats, err
	}

	log.Info("category extracted",
		"records", len(records),
		"tables", stats.Tables,
		"enriched", stats.Enriched,
	)
	return records, stats, nil
}

// Enrich returns rec with the counterparty legal name taken from the row's
// detail dialog. The row comes back unchanged when it has no folio, no
// clickable folio element exists, or the dialog yields no name. Any failure
// while the dialog is open forces it closed with Escape.
func (x *Extractor) Enrich(ctx context.Context, d Driver, rec *models.Record) *models.Record {
	folio, ok := rec.Folio()
	if !ok {
		return rec
	}
	log := slog.With("folio", folio)

	name, err := x.counterpartyName(ctx, d, folio)
	if err != nil {
		log.Warn("enrichment failed", "error", err)
		if escErr := d.PressEscape(ctx); escErr != nil {
			log.Debug("escape after failed enrichment also failed", "error", escErr)
		}
		return rec
	}
	if name == "" {
		return rec
	}

	out := rec.Clone()
	out.Set(models.FieldCounterparty, name)
	log.Debug("counterparty found", "name", name)
	return out
}

// counterpartyName opens the folio's dialog, reads the name and closes it.
// An empty name with a nil error means there was nothing to click or the
// dialog had no labelled name.
func (x *Extractor) counterpartyName(ctx context.Context, d Driver, folio string) (string, error) {
	links, err := d.Query(ctx, folioLink(folio))
	if err != nil {
		return "", models.NewExtractError(models.ErrCodeEnrichment, "folio lookup failed", err)
	}
	if len(links) == 0 {
		slog.Debug("no clickable element for folio", "folio", folio)
		return "", nil
	}

	if err := links[0].Click(); err != nil {
		return "", models.NewExtractError(models.ErrCodeEnrichment, "folio click failed", err)
	}

	text, err := x.dialogText(ctx, d)
	if err != nil {
		return "", models.NewExtractError(models.ErrCodeEnrichment, "detail dialog unreadable", err)
	}

	name, _ := CounterpartyFromText(text)
	x.closeDialog(ctx, d)
	return name, nil
}

// dialogText waits for the detail dialog and returns its text. The page body
// is never scanned: table headers like "Razón Social" would match the name
// patterns.
func (x *Extractor) dialogText(ctx context.Context, d Driver) (string, error) {
	dialog, err := d.Find(ctx, detailDialog, x.cfg.DialogTimeout)
	if err != nil {
		return "", err
	}
	return dialog.Text()
}

// closeDialog clicks the first available close control, or presses Escape.
func (x *Extractor) closeDialog(ctx context.Context, d Driver) {
	if _, ok := clickFirstPresent(ctx, d, closeCandidates, 0); ok {
		settle(ctx, d, x.cfg.IdleTimeout)
		return
	}
	if err := d.PressEscape(ctx); err != nil {
		slog.Debug("escape to close dialog failed", "error", err)
	}
	settle(ctx, d, x.cfg.IdleTimeout)
}
