// Package portaltest provides an in-memory fake of the tax portal that
// implements portal.Driver. Pages are plain HTML strings; clicks follow a few
// data attributes so tests can script navigation and dialogs:
//
//	data-goto="<url>"     load the page registered under url
//	data-dialog="<id>"    append the dialog registered under id to <body>
//	href="#..."           load <current url without fragment>/#...
//
// Buttons inside a .modal that look like close controls remove the dialog,
// as does PressEscape.
package portaltest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/portal"
	"golang.org/x/net/html"
)

const blankPage = "<html><head></head><body></body></html>"

// Portal is a fake browser session over registered HTML pages.
type Portal struct {
	mu       sync.Mutex
	pages    map[string]string
	dialogs  map[string]string
	navErrs  map[string]error
	url      string
	doc      *goquery.Document
	actions  []string
	values   map[string]string
	closed   bool
	escapes  int
	idles    int
	CloseErr error
}

// New returns an empty fake portal showing a blank page.
func New() *Portal {
	p := &Portal{
		pages:   make(map[string]string),
		dialogs: make(map[string]string),
		navErrs: make(map[string]error),
		values:  make(map[string]string),
	}
	p.load("about:blank", blankPage)
	return p
}

// AddPage registers markup under url.
func (p *Portal) AddPage(url, markup string) *Portal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[url] = markup
	return p
}

// AddDialog registers dialog markup under id.
func (p *Portal) AddDialog(id, markup string) *Portal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialogs[id] = markup
	return p
}

// FailNavigation makes Navigate(url) return err.
func (p *Portal) FailNavigation(url string, err error) *Portal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErrs[url] = err
	return p
}

// URL returns the current page URL.
func (p *Portal) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Actions returns the log of performed actions ("navigate <url>",
// "click <element>", "fill <css>", "select <css>=<value>", "escape").
func (p *Portal) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Value returns what was last filled into or selected on css.
func (p *Portal) Value(css string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[css]
}

// Closed reports whether Close was called.
func (p *Portal) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Escapes returns how many Escape keypresses were sent.
func (p *Portal) Escapes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.escapes
}

// HasDialog reports whether an open dialog is currently in the page.
func (p *Portal) HasDialog() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(`.modal.show, [role="dialog"]`).Length() > 0
}

func (p *Portal) record(format string, args ...any) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

// load replaces the current document. Callers hold p.mu, except New.
func (p *Portal) load(url, markup string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(blankPage))
	}
	p.url = url
	p.doc = doc
}

// --- portal.Driver ---

func (p *Portal) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return models.NewExtractError(models.ErrCodeTimeout, "navigation aborted", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return models.NewExtractError(models.ErrCodeNavigation, "session closed", nil)
	}
	p.record("navigate %s", url)
	if err := p.navErrs[url]; err != nil {
		return err
	}
	markup, ok := p.pages[url]
	if !ok {
		markup = blankPage
	}
	p.load(url, markup)
	return nil
}

func (p *Portal) Click(ctx context.Context, loc portal.Locator) error {
	el, err := p.Find(ctx, loc, 0)
	if err != nil {
		return err
	}
	return el.Click()
}

func (p *Portal) Fill(ctx context.Context, loc portal.Locator, value string) error {
	el, err := p.Find(ctx, loc, 0)
	if err != nil {
		return err
	}
	fe := el.(*element)
	if goquery.NodeName(fe.sel) != "input" && goquery.NodeName(fe.sel) != "textarea" {
		return models.NewExtractError(models.ErrCodeElementNotFound, loc.Name+" is not an input", nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[loc.CSS] = value
	p.record("fill %s", loc.CSS)
	return nil
}

func (p *Portal) Select(ctx context.Context, loc portal.Locator, value string) error {
	el, err := p.Find(ctx, loc, 0)
	if err != nil {
		return err
	}
	fe := el.(*element)
	if goquery.NodeName(fe.sel) != "select" {
		return models.NewExtractError(models.ErrCodeElementNotFound, loc.Name+" is not a select", nil)
	}
	found := false
	fe.sel.Find("option").Each(func(_ int, o *goquery.Selection) {
		if v, _ := o.Attr("value"); v == value {
			found = true
		}
	})
	if !found {
		return models.NewExtractError(models.ErrCodeElementNotFound,
			fmt.Sprintf("option %q not found in %s", value, loc.Name), nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[loc.CSS] = value
	p.record("select %s=%s", loc.CSS, value)
	return nil
}

// Find returns the first match immediately; the fake DOM never changes on
// its own, so waiting would not help. Text locators only match rendered
// elements, as in a real browser.
func (p *Portal) Find(ctx context.Context, loc portal.Locator, _ time.Duration) (portal.Element, error) {
	els, err := p.query(ctx, loc, loc.Text != "")
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, models.NewExtractError(models.ErrCodeElementNotFound,
			fmt.Sprintf("%s not found", loc.Name), nil)
	}
	return els[0], nil
}

func (p *Portal) Query(ctx context.Context, loc portal.Locator) ([]portal.Element, error) {
	return p.query(ctx, loc, false)
}

func (p *Portal) query(ctx context.Context, loc portal.Locator, visibleOnly bool) ([]portal.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewExtractError(models.ErrCodeTimeout, "query aborted", err)
	}
	matcher, err := cascadia.Compile(loc.CSS)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeElementNotFound, "invalid selector "+loc.CSS, err)
	}
	textRe, err := loc.TextPattern()
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeElementNotFound, "invalid text pattern "+loc.Text, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, models.NewExtractError(models.ErrCodeNavigation, "session closed", nil)
	}

	var out []portal.Element
	p.doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		if visibleOnly && hidden(s) {
			return
		}
		if textRe != nil && !textRe.MatchString(innerText(s)) {
			return
		}
		out = append(out, &element{p: p, sel: s})
	})
	return out, nil
}

func (p *Portal) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", models.NewExtractError(models.ErrCodeTimeout, "html aborted", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

func (p *Portal) WaitIdle(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return models.NewExtractError(models.ErrCodeTimeout, "wait aborted", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idles++
	return nil
}

func (p *Portal) PressEscape(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escapes++
	p.record("escape")
	p.doc.Find(".modal").Remove()
	return nil
}

func (p *Portal) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.record("close")
	return p.CloseErr
}

// click applies the scripted behaviour of an element. Callers hold p.mu.
func (p *Portal) click(s *goquery.Selection) {
	p.record("click %s", describe(s))

	if target, ok := s.Attr("data-goto"); ok {
		p.load(target, p.pageOrBlank(target))
		return
	}
	if id, ok := s.Attr("data-dialog"); ok {
		if markup, found := p.dialogs[id]; found {
			p.doc.Find("body").AppendHtml(markup)
		}
		return
	}
	if href, ok := s.Attr("href"); ok && strings.HasPrefix(href, "#") {
		target := baseURL(p.url) + "/" + href
		if markup, found := p.pages[target]; found {
			p.load(target, markup)
		}
		return
	}
	if s.Closest(".modal").Length() > 0 && isCloseControl(s) {
		s.Closest(".modal").Remove()
	}
}

func (p *Portal) pageOrBlank(url string) string {
	if markup, ok := p.pages[url]; ok {
		return markup
	}
	return blankPage
}

func isCloseControl(s *goquery.Selection) bool {
	if s.Is(`button.close, [data-dismiss="modal"], [aria-label="Close"]`) {
		return true
	}
	text := strings.TrimSpace(s.Text())
	return strings.EqualFold(text, "cerrar") || text == "×"
}

// baseURL strips the fragment route from url.
func baseURL(url string) string {
	if i := strings.Index(url, "/#"); i >= 0 {
		return url[:i]
	}
	if i := strings.Index(url, "#"); i >= 0 {
		return strings.TrimRight(url[:i], "/")
	}
	return strings.TrimRight(url, "/")
}

func describe(s *goquery.Selection) string {
	name := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok {
		name += "#" + id
	}
	text := strings.Join(strings.Fields(s.Text()), " ")
	if len(text) > 40 {
		text = text[:40]
	}
	if text != "" {
		name += " " + text
	}
	return name
}

var blockTags = map[string]bool{
	"address": true, "article": true, "br": true, "dd": true, "div": true,
	"dl": true, "dt": true, "footer": true, "form": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "li": true, "ol": true, "p": true, "section": true,
	"table": true, "tr": true, "ul": true,
}

// innerText approximates the browser's innerText: block elements start on
// their own line and script/style content is skipped.
func innerText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || hiddenNode(n) {
				return
			}
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteString("\n")
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// hidden reports whether s or one of its ancestors is not rendered.
func hidden(s *goquery.Selection) bool {
	for _, n := range s.Nodes {
		for ; n != nil; n = n.Parent {
			if hiddenNode(n) {
				return true
			}
		}
	}
	return false
}

// hiddenNode models the two ways the portal hides markup: the hidden
// attribute and an inline display or visibility rule.
func hiddenNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

// element is a handle into the fake DOM.
type element struct {
	p   *Portal
	sel *goquery.Selection
}

func (e *element) Attribute(name string) (string, bool, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *element) Text() (string, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return innerText(e.sel), nil
}

func (e *element) HTML() (string, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return goquery.OuterHtml(e.sel)
}

func (e *element) Click() error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.closed {
		return models.NewExtractError(models.ErrCodeNavigation, "session closed", nil)
	}
	e.p.click(e.sel)
	return nil
}

func (e *element) Elements(selector string) ([]portal.Element, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeElementNotFound, "invalid selector "+selector, err)
	}
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	var out []portal.Element
	e.sel.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{p: e.p, sel: s})
	})
	return out, nil
}

// Launcher hands out a freshly built Portal per Open call.
type Launcher struct {
	// Build creates the session for each Open.
	Build func() *Portal

	// Err, when set, is returned by Open instead of a session.
	Err error

	mu       sync.Mutex
	sessions []*Portal
}

func (l *Launcher) Open(ctx context.Context) (portal.Driver, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	p := l.Build()
	l.mu.Lock()
	l.sessions = append(l.sessions, p)
	l.mu.Unlock()
	return p, nil
}

// Sessions returns every session opened so far.
func (l *Launcher) Sessions() []*Portal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Portal(nil), l.sessions...)
}
