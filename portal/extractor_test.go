package portal_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/portal"
	"github.com/use-agent/rcvscrap/portal/portaltest"
)

func TestCounterpartyFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"razon social", "Detalle\nRazón Social: ACME SpA\nMonto: 100", "ACME SpA", true},
		{"without accent", "Razon Social   Comercial Sur Ltda.", "Comercial Sur Ltda.", true},
		{"emisor", "Emisor: Servicios XYZ", "Servicios XYZ", true},
		{"nombre", "Nombre:\tJuan Pérez", "Juan Pérez", true},
		{"razon social wins", "Nombre: Otro\nRazón Social: Primero", "Primero", true},
		{"case insensitive", "RAZÓN SOCIAL: MAYUS SA", "MAYUS SA", true},
		{"no label", "Folio 100\nMonto 5000", "", false},
		{"empty value", "Razón Social: \n", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := portal.CounterpartyFromText(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func detailPortal(t *testing.T, f portaltest.Fixture, code string) *portaltest.Portal {
	t.Helper()
	p := f.Build()
	require.NoError(t, p.Navigate(context.Background(), f.DetailURL(code)))
	return p
}

func TestEnrich_AddsCounterparty(t *testing.T) {
	f := portaltest.Fixture{
		Categories:     map[string][]portaltest.Table{"33": {{Headers: []string{"Folio", "Monto"}, Rows: [][]string{{"100", "5000"}}}}},
		Counterparties: map[string]string{"100": "ACME SpA"},
	}
	p := detailPortal(t, f, "33")
	rec := models.RecordOf("Folio", "100", "Monto", "5000")

	got := portal.NewExtractor(testPortalConfig()).Enrich(context.Background(), p, rec)

	name, ok := got.Get(models.FieldCounterparty)
	assert.True(t, ok)
	assert.Equal(t, "ACME SpA", name)
	assert.Equal(t, []string{"Folio", "Monto", models.FieldCounterparty}, got.Keys())
	assert.False(t, p.HasDialog(), "dialog must be closed after enrichment")
	_, mutated := rec.Get(models.FieldCounterparty)
	assert.False(t, mutated, "input record must not be modified")
}

func TestEnrich_NoClickableFolio(t *testing.T) {
	f := portaltest.Fixture{
		Categories: map[string][]portaltest.Table{"33": {{Headers: []string{"Folio"}, Rows: [][]string{{"100"}}}}},
	}
	p := detailPortal(t, f, "33")
	rec := models.RecordOf("Folio", "100")

	got := portal.NewExtractor(testPortalConfig()).Enrich(context.Background(), p, rec)

	assert.Equal(t, rec.Map(), got.Map())
	assert.Zero(t, p.Escapes())
}

func TestEnrich_DialogWithoutName(t *testing.T) {
	f := portaltest.Fixture{
		Categories:     map[string][]portaltest.Table{"33": {{Headers: []string{"Folio"}, Rows: [][]string{{"100"}}}}},
		Counterparties: map[string]string{"100": "unused"},
		DialogText:     map[string]string{"100": "<p>Sin información</p>"},
	}
	p := detailPortal(t, f, "33")
	rec := models.RecordOf("Folio", "100")

	got := portal.NewExtractor(testPortalConfig()).Enrich(context.Background(), p, rec)

	_, ok := got.Get(models.FieldCounterparty)
	assert.False(t, ok)
	assert.False(t, p.HasDialog())
}

func TestEnrich_FailureForcesEscape(t *testing.T) {
	f := portaltest.Fixture{
		Categories:     map[string][]portaltest.Table{"33": {{Headers: []string{"Folio"}, Rows: [][]string{{"100"}}}}},
		Counterparties: map[string]string{"100": "ACME SpA"},
		BrokenDialogs:  map[string]bool{"100": true},
	}
	p := detailPortal(t, f, "33")
	rec := models.RecordOf("Folio", "100")

	got := portal.NewExtractor(testPortalConfig()).Enrich(context.Background(), p, rec)

	assert.Equal(t, rec.Map(), got.Map())
	assert.Equal(t, 1, p.Escapes())
}

func TestEnrich_RecordWithoutFolio(t *testing.T) {
	p := portaltest.New()
	rec := models.RecordOf("Monto", "10")

	got := portal.NewExtractor(testPortalConfig()).Enrich(context.Background(), p, rec)

	assert.Same(t, rec, got)
	assert.Empty(t, p.Actions())
}

func TestExtractCategory(t *testing.T) {
	f := portaltest.Fixture{
		Categories: map[string][]portaltest.Table{"33": {
			{Headers: []string{"Folio", "Monto"}, Rows: [][]string{{"1", "10"}, {"2", "20"}}},
			{Headers: []string{"Resumen"}, Rows: [][]string{{"Total 30"}}},
		}},
		Counterparties: map[string]string{"1": "Uno SpA"},
	}
	p := detailPortal(t, f, "33")

	records, stats, err := portal.NewExtractor(testPortalConfig()).
		ExtractCategory(context.Background(), p, "33", models.CategoryLabel("33"))

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 2, stats.Tables)
	assert.Equal(t, 1, stats.Enriched)
	assert.Equal(t, 1, stats.NotEnriched)

	assert.Equal(t, map[string]string{
		"Folio":                   "1",
		"Monto":                   "10",
		models.FieldCounterparty:  "Uno SpA",
		models.FieldCategoryCode:  "33",
		models.FieldCategoryLabel: models.CategoryLabel("33"),
	}, records[0].Map())

	_, enriched := records[1].Get(models.FieldCounterparty)
	assert.False(t, enriched)

	code, _ := records[2].Get(models.FieldCategoryCode)
	assert.Equal(t, "33", code)
	_, hasFolio := records[2].Folio()
	assert.False(t, hasFolio)
}

func TestExtractCategory_NoTables(t *testing.T) {
	f := portaltest.Fixture{Categories: map[string][]portaltest.Table{"33": nil}}
	p := detailPortal(t, f, "33")

	records, stats, err := portal.NewExtractor(testPortalConfig()).
		ExtractCategory(context.Background(), p, "33", "Factura Electrónica")

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, stats.Tables)
}

// cancelOnQuery cancels the run the first time a locator whose name starts
// with prefix is queried.
type cancelOnQuery struct {
	*portaltest.Portal
	prefix string
	cancel context.CancelFunc
}

func (c *cancelOnQuery) Query(ctx context.Context, loc portal.Locator) ([]portal.Element, error) {
	if strings.HasPrefix(loc.Name, c.prefix) {
		c.cancel()
	}
	return c.Portal.Query(ctx, loc)
}

func TestExtractCategory_CancelledDuringEnrichment(t *testing.T) {
	f := portaltest.Fixture{
		Categories: map[string][]portaltest.Table{"33": {
			{Headers: []string{"Folio", "Monto"}, Rows: [][]string{{"1", "10"}, {"2", "20"}}},
		}},
		Counterparties: map[string]string{"1": "Uno SpA", "2": "Dos SpA"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &cancelOnQuery{Portal: detailPortal(t, f, "33"), prefix: "folio ", cancel: cancel}

	records, _, err := portal.NewExtractor(testPortalConfig()).
		ExtractCategory(ctx, d, "33", models.CategoryLabel("33"))

	assert.Nil(t, records)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}
