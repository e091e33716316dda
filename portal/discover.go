package portal

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/use-agent/rcvscrap/models"
	"golang.org/x/net/html"
)

const detailMarker = "#detalle/"

var detailFragment = regexp.MustCompile(`#detalle/(\d+)`)

// codeFromHref extracts the numeric category code from a detail link.
func codeFromHref(href string) (string, bool) {
	_, rest, found := strings.Cut(href, detailMarker)
	if !found {
		return "", false
	}
	if i := strings.IndexAny(rest, "?&/#"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return rest, true
}

// codesFromElements collects category codes from anchor hrefs.
func codesFromElements(els []Element) []string {
	var codes []string
	for _, el := range els {
		href, ok, err := el.Attribute("href")
		if err != nil || !ok {
			continue
		}
		if code, ok := codeFromHref(href); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// DiscoverCategories lists the category codes with data in the current
// period. Strategies run in order until one yields codes:
//  1. detail links anywhere on the page;
//  2. detail links inside each table;
//  3. a regex scan of the raw page markup.
//
// The result is deduplicated and sorted ascending. An empty result means the
// period has no data; discovery never fails.
func (n *Navigator) DiscoverCategories(ctx context.Context, d Driver) []string {
	settle(ctx, d, n.cfg.IdleTimeout)

	strategies := []struct {
		name string
		run  func() []string
	}{
		{"page links", func() []string { return discoverFromLinks(ctx, d) }},
		{"table links", func() []string { return discoverFromTables(ctx, d) }},
		{"markup scan", func() []string { return discoverFromMarkup(ctx, d) }},
	}

	for _, s := range strategies {
		codes := models.NormalizeCategoryCodes(s.run())
		if len(codes) > 0 {
			slog.Info("categories discovered", "strategy", s.name, "categories", codes)
			return codes
		}
		slog.Debug("discovery strategy found nothing", "strategy", s.name)
	}

	slog.Info("no categories found for period")
	return []string{}
}

func discoverFromLinks(ctx context.Context, d Driver) []string {
	els, err := d.Query(ctx, detailAnchors)
	if err != nil {
		slog.Debug("detail link query failed", "error", err)
		return nil
	}
	return codesFromElements(els)
}

func discoverFromTables(ctx context.Context, d Driver) []string {
	tbls, err := d.Query(ctx, tables)
	if err != nil {
		slog.Debug("table query failed", "error", err)
		return nil
	}
	var codes []string
	for i, tbl := range tbls {
		links, err := tbl.Elements(detailAnchors.CSS)
		if err != nil {
			slog.Debug("table link query failed", "table", i, "error", err)
			continue
		}
		codes = append(codes, codesFromElements(links)...)
	}
	return codes
}

func discoverFromMarkup(ctx context.Context, d Driver) []string {
	markup, err := d.HTML(ctx)
	if err != nil {
		slog.Debug("page markup unavailable", "error", err)
		return nil
	}
	return scanMarkup(markup)
}

// scanMarkup finds every #detalle/<code> fragment in raw markup.
func scanMarkup(markup string) []string {
	var codes []string
	for _, m := range detailFragment.FindAllStringSubmatch(html.UnescapeString(markup), -1) {
		codes = append(codes, m[1])
	}
	return codes
}
