package portal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/rcvscrap/portal"
	"github.com/use-agent/rcvscrap/portal/portaltest"
)

func discover(t *testing.T, f portaltest.Fixture) []string {
	t.Helper()
	p := openModule(t, f)
	return portal.NewNavigator(testPortalConfig()).DiscoverCategories(context.Background(), p)
}

func categories(codes ...string) map[string][]portaltest.Table {
	m := make(map[string][]portaltest.Table, len(codes))
	for _, c := range codes {
		m[c] = nil
	}
	return m
}

func TestDiscoverCategories_PageLinks(t *testing.T) {
	got := discover(t, portaltest.Fixture{Categories: categories("61", "33", "110", "46")})

	assert.Equal(t, []string{"33", "46", "61", "110"}, got)
}

func TestDiscoverCategories_TableLinks(t *testing.T) {
	got := discover(t, portaltest.Fixture{
		Categories:   categories("39", "33"),
		SummaryLinks: "table",
	})

	assert.Equal(t, []string{"33", "39"}, got)
}

func TestDiscoverCategories_MarkupScan(t *testing.T) {
	got := discover(t, portaltest.Fixture{
		Categories:   categories("56", "34"),
		SummaryLinks: "markup",
	})

	assert.Equal(t, []string{"34", "56"}, got)
}

func TestDiscoverCategories_Deduplicates(t *testing.T) {
	p := portaltest.New().AddPage(portaltest.ModuleURL, `<html><body>
		<a href="#detalle/33">Facturas</a>
		<a href="#detalle/33?x=1">Facturas otra vez</a>
		<a href="#detalle/abc">Invalida</a>
		<a href="#detalle/61">Notas</a>
	</body></html>`)
	_ = p.Navigate(context.Background(), portaltest.ModuleURL)

	got := portal.NewNavigator(testPortalConfig()).DiscoverCategories(context.Background(), p)

	assert.Equal(t, []string{"33", "61"}, got)
}

func TestDiscoverCategories_NothingFound(t *testing.T) {
	got := discover(t, portaltest.Fixture{})

	assert.NotNil(t, got)
	assert.Empty(t, got)
}
