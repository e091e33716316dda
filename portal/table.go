package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/rcvscrap/models"
)

// ParseTable converts the outer HTML of one <table> into records.
//
// The first row supplies the headers (th or td cells). A table without any
// non-empty header yields nothing. Each data cell maps to the header at the
// same column index; cells beyond the header count and columns with an empty
// header are dropped, as are rows whose cells are all empty. Rows of nested
// tables are ignored.
func ParseTable(markup string) ([]*models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeParse, "invalid table markup", err)
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, nil
	}

	rows := tbl.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(tbl)
	})
	if rows.Length() == 0 {
		return nil, nil
	}

	headers := cellTexts(rows.First().Children().Filter("th, td"))
	if !anyNonEmpty(headers) {
		return nil, nil
	}

	var records []*models.Record
	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr.Children().Filter("td"))
		rec := models.NewRecord()
		hasValue := false
		for i, value := range cells {
			if i >= len(headers) {
				break
			}
			if headers[i] == "" {
				continue
			}
			rec.Set(headers[i], value)
			if value != "" {
				hasValue = true
			}
		}
		if hasValue {
			records = append(records, rec)
		}
	})
	return records, nil
}

func cellTexts(cells *goquery.Selection) []string {
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, collapseSpace(c.Text()))
	})
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func anyNonEmpty(values []string) bool {
	for _, v := range values {
		if v != "" {
			return true
		}
	}
	return false
}
