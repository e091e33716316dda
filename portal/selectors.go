package portal

import (
	"regexp"
	"strings"
)

// Login page.
var (
	enterPortalButton = WithText("enter portal", "a, button", `/Ingresar a Mi SII/i`)
	identifierField   = CSS("identifier field", `input[name="rutcntr"]`)
	secretField       = CSS("secret field", `input[name="clave"]`)
	loginSubmit       = CSS("login submit", `button#bt_ingresar`)

	// loginErrorBanner matches the message the portal renders for a wrong
	// RUT or password.
	loginErrorBanner = WithText("login error banner",
		`.alert, .error, [role="alert"], span, p, strong`,
		`/contraseña.*incorrecta|clave.*incorrecta|rut.*inv[aá]lido|error/i`)
)

// Ledger module summary view.
var (
	interstitialButton = CSS("interstitial", `button.btn.btn-default.btn-xs-block.btn-block`)
	monthSelect        = CSS("month selector", `select#periodoMes`)

	// yearSelectCandidates are tried in order; the portal has shipped each
	// of these ids.
	yearSelectCandidates = []Locator{
		CSS("year selector (periodoAnho)", `select#periodoAnho`),
		CSS("year selector (periodoAnio)", `select#periodoAnio`),
		CSS("year selector (periodoAno)", `select#periodoAno`),
		CSS("year selector (ng-model)", `select[ng-model*="periodo"][ng-model*="an" i]`),
	}

	querySubmitCandidates = []Locator{
		WithText("consultar button", "button", `/Consultar/`),
		WithText("buscar button", "button", `/Buscar/`),
		CSS("submit input", `input[type="submit"]`),
		CSS("submit button", `button[type="submit"]`),
	}

	detailAnchors = CSS("category detail links", `a[href*="#detalle/"]`)
	tables        = CSS("tables", "table")
)

// Category detail view.
var backCandidates = []Locator{
	WithText("volver button", "button", `/volver/i`),
	WithText("volver link", "a", `/volver/i`),
	CSS("volver handler", `[onclick*="volver"]`),
	CSS("back handler", `[onclick*="back"]`),
}

// Record detail dialog.
const dialogCSS = `.modal.in, .modal.show, .modal[style*="display: block"], [role="dialog"]`

var (
	detailDialog = CSS("detail dialog", dialogCSS)

	// closeCandidates are scoped to the open dialog so hidden modal
	// templates elsewhere on the page are never clicked.
	closeCandidates = []Locator{
		WithText("cerrar button", scoped("button"), `/Cerrar/i`),
		WithText("x button", scoped("button"), `/×/`),
		CSS("close class", scoped("button.close")),
		CSS("close label", scoped(`[aria-label="Close"]`)),
		CSS("header button", scoped(".modal-header button")),
		CSS("dismiss button", scoped(`button[data-dismiss="modal"]`)),
	}
)

// scoped prefixes inner with each dialog container selector.
func scoped(inner string) string {
	containers := strings.Split(dialogCSS, ",")
	parts := make([]string, len(containers))
	for i, c := range containers {
		parts[i] = strings.TrimSpace(c) + " " + inner
	}
	return strings.Join(parts, ", ")
}

// detailAnchorFor matches the summary link of one category.
func detailAnchorFor(code string) Locator {
	return CSS("detail link "+code, `a[href="#detalle/`+code+`"]`)
}

// folioLink matches a clickable element whose whole text is folio.
func folioLink(folio string) Locator {
	return WithText("folio "+folio, "a", `/^\s*`+regexp.QuoteMeta(folio)+`\s*$/`)
}
