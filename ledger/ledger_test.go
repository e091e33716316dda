package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rcvscrap/models"
)

func folios(records []*models.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		f, _ := r.Folio()
		out = append(out, f)
	}
	return out
}

func TestNormalize(t *testing.T) {
	rec := models.RecordOf(
		"Folio", "10",
		"Monto", "",
		"IVA", "NaN",
		"Glosa", "   ",
		"Fecha", "01/02/2024",
	)

	got := Normalize(rec)

	assert.Equal(t, []string{"Folio", "Fecha"}, got.Keys())
	assert.Equal(t, 5, rec.Len(), "input must not be modified")
}

func TestDedupe_FirstOccurrenceWins(t *testing.T) {
	records := []*models.Record{
		models.RecordOf("Folio", "1", "Monto", "100"),
		models.RecordOf("Folio", "2", "Monto", "200"),
		models.RecordOf("Folio", "1", "Monto", "999"),
		models.RecordOf("Folio", "3", "Monto", "300"),
		models.RecordOf("Folio", "2", "Monto", "888"),
	}

	got := Dedupe(records)

	require.Equal(t, []string{"1", "2", "3"}, folios(got))
	m, _ := got[0].Get("Monto")
	assert.Equal(t, "100", m)
	m, _ = got[1].Get("Monto")
	assert.Equal(t, "200", m)
}

func TestDedupe_DropsRecordsWithoutFolio(t *testing.T) {
	records := []*models.Record{
		models.RecordOf("Monto", "1"),
		models.RecordOf("Folio", "", "Monto", "2"),
		models.RecordOf("Folio", "NaN", "Monto", "3"),
		models.RecordOf("Folio", "  ", "Monto", "4"),
		models.RecordOf("Folio", "7", "Monto", "5"),
	}

	got := Dedupe(records)

	assert.Equal(t, []string{"7"}, folios(got))
}

func TestDedupe_TrimsFolioForComparison(t *testing.T) {
	got := Dedupe([]*models.Record{
		models.RecordOf("Folio", "42"),
		models.RecordOf("Folio", " 42 "),
	})

	assert.Len(t, got, 1)
}

func TestDedupe_Idempotent(t *testing.T) {
	records := []*models.Record{
		models.RecordOf("Folio", "1", "Monto", "", "IVA", "19"),
		models.RecordOf("Folio", "1", "Monto", "5"),
		models.RecordOf("Folio", "2", "IVA", "NaN"),
	}

	once := Dedupe(records)
	twice := Dedupe(once)

	if diff := cmp.Diff(snapshot(once), snapshot(twice)); diff != "" {
		t.Errorf("second pass changed the records (-once +twice):\n%s", diff)
	}
}

type recordView struct {
	Keys   []string
	Fields map[string]string
}

func snapshot(records []*models.Record) []recordView {
	out := make([]recordView, len(records))
	for i, r := range records {
		out[i] = recordView{Keys: r.Keys(), Fields: r.Map()}
	}
	return out
}

func TestDedupe_OutputIsNormalized(t *testing.T) {
	got := Dedupe([]*models.Record{
		models.RecordOf("Folio", "1", "Monto", "", "IVA", "NaN", "Total", "119"),
	})

	require.Len(t, got, 1)
	got[0].Each(func(k, v string) {
		assert.False(t, models.IsEmptyValue(v), "field %s should have been dropped", k)
	})
	assert.Equal(t, []string{"Folio", "Total"}, got[0].Keys())
}

func TestDedupe_Empty(t *testing.T) {
	got := Dedupe(nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}
