package portaltest

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Default URLs used by Fixture when none are set.
const (
	LoginURL  = "https://login.test/AUT2000/InicioAutenticacion/IngresoRutClave.html"
	ModuleURL = "https://ledger.test/consdcvinternetui"
)

// Table is one HTML table on a category detail page.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Fixture describes a portal for one taxpayer and period.
type Fixture struct {
	LoginURL  string
	ModuleURL string

	// RejectLogin renders an error banner after submit.
	RejectLogin bool

	// HiddenAlert renders a hidden error template on the page reached after
	// a successful login.
	HiddenAlert bool

	// StickyLogin leaves the login form on screen after submit without any
	// banner, as when a rejection message renders late.
	StickyLogin bool

	// FormOnLanding renders the credential form directly, without the
	// "Ingresar a Mi SII" step.
	FormOnLanding bool

	// Interstitial shows the notice button on the module entry page.
	Interstitial bool

	// NoPeriodSelectors removes the month and year selectors.
	NoPeriodSelectors bool

	// YearSelectID is the id of the year selector; defaults to periodoAnho.
	YearSelectID string

	// YearSelectModel, when set, adds an ng-model attribute to the year
	// selector.
	YearSelectModel string

	// Years and months offered by the selectors; default to 2020..2030.
	Years []int

	// Categories maps a category code to the tables on its detail page.
	Categories map[string][]Table

	// SummaryLinks controls where category links appear on the summary:
	// "page" (default, a list outside any table), "table", or "markup"
	// (only as a data attribute, never as a link).
	SummaryLinks string

	// Counterparties maps a folio to the name shown in its detail dialog.
	// Folios listed here are rendered as links.
	Counterparties map[string]string

	// DialogText overrides the dialog body for a folio.
	DialogText map[string]string

	// BrokenDialogs lists folios whose link opens nothing.
	BrokenDialogs map[string]bool

	// NoBackButton removes the "Volver" button from detail pages.
	NoBackButton bool
}

// Build renders the fixture into a Portal.
func (f Fixture) Build() *Portal {
	if f.LoginURL == "" {
		f.LoginURL = LoginURL
	}
	if f.ModuleURL == "" {
		f.ModuleURL = ModuleURL
	}
	if f.YearSelectID == "" {
		f.YearSelectID = "periodoAnho"
	}
	if len(f.Years) == 0 {
		for y := 2020; y <= 2030; y++ {
			f.Years = append(f.Years, y)
		}
	}

	p := New()
	f.addLogin(p)
	f.addModule(p)
	for code, tables := range f.Categories {
		p.AddPage(f.DetailURL(code), f.detailPage(code, tables))
	}
	for folio, name := range f.Counterparties {
		if f.BrokenDialogs[folio] {
			continue
		}
		body := "<p>Razón Social: " + html.EscapeString(name) + "</p>"
		if text, ok := f.DialogText[folio]; ok {
			body = text
		}
		p.AddDialog(dialogID(folio), dialogMarkup(body))
	}
	return p
}

// DetailURL is where the detail page of code is registered.
func (f Fixture) DetailURL(code string) string {
	base := f.ModuleURL
	if base == "" {
		base = ModuleURL
	}
	return strings.TrimRight(base, "/") + "/#detalle/" + code
}

func (f Fixture) addLogin(p *Portal) {
	formURL := f.LoginURL + "#form"
	afterURL := f.LoginURL + "#home"
	switch {
	case f.RejectLogin:
		afterURL = f.LoginURL + "#rejected"
	case f.StickyLogin:
		afterURL = f.LoginURL + "#sticky"
	}

	form := fmt.Sprintf(`<form>
  <input type="text" name="rutcntr">
  <input type="password" name="clave">
  <button type="button" id="bt_ingresar" data-goto="%s">Ingresar</button>
</form>`, afterURL)

	if f.FormOnLanding {
		p.AddPage(f.LoginURL, page(form))
	} else {
		p.AddPage(f.LoginURL, page(fmt.Sprintf(
			`<a class="btn" data-goto="%s">Ingresar a Mi SII</a>`, formURL)))
	}
	p.AddPage(formURL, page(form))
	p.AddPage(f.LoginURL+"#rejected", page(form+
		`<div class="alert alert-danger">La Clave Tributaria ingresada es incorrecta.</div>`))
	p.AddPage(f.LoginURL+"#sticky", page(form))
	home := `<h1>Bienvenido a Mi SII</h1>`
	if f.HiddenAlert {
		home = `<div class="app">` +
			`<div class="alert alert-danger" style="display: none">Error: la clave ingresada es incorrecta</div>` +
			`<p hidden>Se produjo un error</p>` + home + `</div>`
	}
	p.AddPage(afterURL, page(home))
}

func (f Fixture) addModule(p *Portal) {
	var b strings.Builder
	if f.Interstitial {
		b.WriteString(`<div class="aviso"><p>Aviso importante</p>` +
			`<button class="btn btn-default btn-xs-block btn-block">Cerrar aviso</button></div>`)
	}
	if !f.NoPeriodSelectors {
		b.WriteString(`<form><select id="periodoMes">`)
		for m := 1; m <= 12; m++ {
			fmt.Fprintf(&b, `<option value="%02d">%02d</option>`, m, m)
		}
		fmt.Fprintf(&b, `</select><select id="%s"`, f.YearSelectID)
		if f.YearSelectModel != "" {
			fmt.Fprintf(&b, ` ng-model="%s"`, f.YearSelectModel)
		}
		b.WriteString(`>`)
		for _, y := range f.Years {
			fmt.Fprintf(&b, `<option value="%d">%d</option>`, y, y)
		}
		b.WriteString(`</select><button type="button">Consultar</button></form>`)
	}

	codes := make([]string, 0, len(f.Categories))
	for code := range f.Categories {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	switch f.SummaryLinks {
	case "table":
		b.WriteString(`<table><tr><th>Tipo</th><th>Detalle</th></tr>`)
		for _, code := range codes {
			fmt.Fprintf(&b, `<tr><td>%s</td><td><a href="#detalle/%s">Ver</a></td></tr>`, code, code)
		}
		b.WriteString(`</table>`)
	case "markup":
		for _, code := range codes {
			fmt.Fprintf(&b, `<div data-route="#detalle/%s">%s</div>`, code, code)
		}
	default:
		b.WriteString(`<ul class="resumen">`)
		for _, code := range codes {
			fmt.Fprintf(&b, `<li><a href="#detalle/%s">%s</a></li>`, code, code)
		}
		b.WriteString(`</ul>`)
	}

	p.AddPage(f.ModuleURL, page(b.String()))
}

func (f Fixture) detailPage(code string, tables []Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<h2>Detalle %s</h2>`, code)
	if !f.NoBackButton {
		fmt.Fprintf(&b, `<button type="button" data-goto="%s">Volver</button>`, f.ModuleURL)
	}
	// A hidden template that must never be mistaken for an open dialog.
	b.WriteString(`<div class="modal fade" id="tpl"><button class="close">×</button></div>`)

	for _, t := range tables {
		b.WriteString(`<table><tr>`)
		for _, h := range t.Headers {
			fmt.Fprintf(&b, `<th>%s</th>`, html.EscapeString(h))
		}
		b.WriteString(`</tr>`)
		folioCol := indexOf(t.Headers, "Folio")
		for _, row := range t.Rows {
			b.WriteString(`<tr>`)
			for i, cell := range row {
				text := html.EscapeString(cell)
				if i == folioCol {
					if _, ok := f.Counterparties[cell]; ok {
						text = fmt.Sprintf(`<a data-dialog="%s">%s</a>`, dialogID(cell), text)
					}
				}
				fmt.Fprintf(&b, `<td>%s</td>`, text)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</table>`)
	}
	return page(b.String())
}

func dialogID(folio string) string { return "folio-" + folio }

func dialogMarkup(body string) string {
	return `<div class="modal show" role="dialog">` +
		`<div class="modal-header"><button class="close" aria-label="Close">×</button></div>` +
		`<div class="modal-body">` + body + `</div>` +
		`<div class="modal-footer"><button type="button">Cerrar</button></div>` +
		`</div>`
}

func page(body string) string {
	return "<html><head><title>SII</title></head><body>" + body + "</body></html>"
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
