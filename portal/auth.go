package portal

import (
	"context"
	"log/slog"

	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/models"
)

// Authenticator drives the portal login sequence.
type Authenticator struct {
	cfg config.PortalConfig
}

// NewAuthenticator creates an Authenticator for the configured portal.
func NewAuthenticator(cfg config.PortalConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Login signs in with creds. It returns false when the portal rejects the
// credentials and an error when the portal could not be driven at all.
//
// Rejection is detected two ways:
//  1. an error banner surfaces within cfg.ProbeTimeout after submitting;
//  2. once the page settles, the secret field is still on the page.
//
// The second check covers banners that render after the probe window closes.
func (a *Authenticator) Login(ctx context.Context, d Driver, creds models.Credentials) (bool, error) {
	slog.Info("opening login page", "url", a.cfg.LoginURL, "credentials", creds)
	if err := d.Navigate(ctx, a.cfg.LoginURL); err != nil {
		return false, err
	}

	// The landing page hides the form behind an "enter" action; some entry
	// URLs render the form directly.
	if _, present := probe(ctx, d, identifierField, 0); !present {
		if err := d.Click(ctx, enterPortalButton); err != nil {
			return false, err
		}
	}

	if err := d.Fill(ctx, identifierField, creds.Identifier()); err != nil {
		return false, err
	}
	if err := d.Fill(ctx, secretField, creds.Secret()); err != nil {
		return false, err
	}
	if err := d.Click(ctx, loginSubmit); err != nil {
		return false, err
	}

	if banner, err := d.Find(ctx, loginErrorBanner, a.cfg.ProbeTimeout); err == nil {
		text, _ := banner.Text()
		slog.Warn("login rejected by portal", "message", text)
		return false, nil
	} else if ctx.Err() != nil {
		return false, models.NewExtractError(models.ErrCodeTimeout, "login aborted", ctx.Err())
	}

	settle(ctx, d, a.cfg.IdleTimeout)

	if _, present := probe(ctx, d, secretField, 0); present {
		slog.Warn("login form still present after submit")
		return false, nil
	}

	slog.Info("login succeeded")
	return true, nil
}
