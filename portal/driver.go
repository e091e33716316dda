// Package portal drives the tax portal's ledger module: login, period and
// category navigation, table extraction and per-row detail enrichment.
//
// Every component talks to the browser through Driver, so the same flows run
// against the rod-backed session in package scraper and against the
// in-memory fake in portal/portaltest.
package portal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Locator identifies elements on the page: every element matching CSS whose
// visible text matches Text. Text is a JavaScript regex literal such as
// `/Consultar/i`; empty means no text filter.
type Locator struct {
	// Name is a human label used in logs.
	Name string
	CSS  string
	Text string
}

// CSS returns a Locator matching a plain CSS selector.
func CSS(name, selector string) Locator {
	return Locator{Name: name, CSS: selector}
}

// WithText returns a Locator matching selector filtered by the jsRegex text pattern.
func WithText(name, selector, jsRegex string) Locator {
	return Locator{Name: name, CSS: selector, Text: jsRegex}
}

// TextPattern compiles the Text filter into a Go regexp. The i and s flags
// of the JavaScript literal are honoured; a value without slashes is used as
// the pattern itself. A Locator without Text yields nil.
func (l Locator) TextPattern() (*regexp.Regexp, error) {
	if l.Text == "" {
		return nil, nil
	}
	pattern, flags := l.TextSource()
	var prefix string
	if strings.Contains(flags, "i") {
		prefix += "(?i)"
	}
	if strings.Contains(flags, "s") {
		prefix += "(?s)"
	}
	return regexp.Compile(prefix + pattern)
}

// TextSource splits the Text filter into the source and flags of a
// JavaScript RegExp. Only the i and s flags are kept.
func (l Locator) TextSource() (pattern, flags string) {
	pattern = l.Text
	if strings.HasPrefix(l.Text, "/") {
		if end := strings.LastIndex(l.Text, "/"); end > 0 {
			pattern = l.Text[1:end]
			for _, f := range l.Text[end+1:] {
				if f == 'i' || f == 's' {
					flags += string(f)
				}
			}
		}
	}
	return pattern, flags
}

func (l Locator) String() string {
	if l.Text == "" {
		return l.CSS
	}
	return fmt.Sprintf("%s %s", l.CSS, l.Text)
}

// Element is a handle to one DOM element.
type Element interface {
	// Attribute returns the attribute value and whether it exists.
	Attribute(name string) (string, bool, error)

	// Text returns the element's rendered text.
	Text() (string, error)

	// HTML returns the element's outer HTML.
	HTML() (string, error)

	// Click clicks the element.
	Click() error

	// Elements returns the descendants matching a CSS selector.
	Elements(selector string) ([]Element, error)
}

// Driver is the browser session contract. Operations block until the action
// completes or its time budget runs out. Implementations report failures as
// *models.ExtractError with ErrCodeElementNotFound, ErrCodeTimeout or
// ErrCodeNavigation, and never retry on their own.
type Driver interface {
	// Navigate loads url in the session's page.
	Navigate(ctx context.Context, url string) error

	// Click waits for the first element matching loc and clicks it.
	Click(ctx context.Context, loc Locator) error

	// Fill waits for the input matching loc, clears it and types value.
	Fill(ctx context.Context, loc Locator, value string) error

	// Select waits for the <select> matching loc and selects the option
	// whose value attribute equals value.
	Select(ctx context.Context, loc Locator, value string) error

	// Find waits up to timeout for the first element matching loc.
	Find(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)

	// Query returns every element currently matching loc without waiting.
	Query(ctx context.Context, loc Locator) ([]Element, error)

	// HTML returns the current page markup.
	HTML(ctx context.Context) (string, error)

	// WaitIdle waits up to timeout for the page to stop changing.
	WaitIdle(ctx context.Context, timeout time.Duration) error

	// PressEscape sends an Escape keypress to the page.
	PressEscape(ctx context.Context) error

	// Close releases the session. The driver must not be used afterwards.
	Close() error
}

// Launcher opens a fresh browser session for one pipeline run.
type Launcher interface {
	Open(ctx context.Context) (Driver, error)
}
