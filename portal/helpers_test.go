package portal_test

import (
	"time"

	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/portal/portaltest"
)

func testPortalConfig() config.PortalConfig {
	return config.PortalConfig{
		Identifier:       "76.123.456-7",
		Secret:           "s3cret",
		LoginURL:         portaltest.LoginURL,
		ModuleURL:        portaltest.ModuleURL,
		DefaultTimeout:   time.Second,
		ProbeTimeout:     10 * time.Millisecond,
		CandidateTimeout: 10 * time.Millisecond,
		PeriodTimeout:    10 * time.Millisecond,
		IdleTimeout:      10 * time.Millisecond,
		DialogTimeout:    10 * time.Millisecond,
	}
}

func testCreds() models.Credentials {
	return models.NewCredentials("76.123.456-7", "s3cret")
}

func containsAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
