package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rcvscrap/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AMBIENTE", "")
	t.Setenv("RCV_HEADLESS", "")
	t.Setenv("RCV_PORT", "")
	t.Setenv("PORT", "")

	cfg := Load()

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Portal.DefaultTimeout)
	assert.Equal(t, 3*time.Second, cfg.Portal.ProbeTimeout)
	assert.Equal(t, []string{"Image", "Font", "Media"}, cfg.Browser.BlockedResourceTypes)
	assert.Equal(t, "datos_rcv.json", cfg.Output.JSONPath)
}

func TestLoad_DevEnvironmentShowsBrowser(t *testing.T) {
	t.Setenv("AMBIENTE", "DEV")
	t.Setenv("RCV_HEADLESS", "")

	assert.False(t, Load().Browser.Headless)
}

func TestLoad_ExplicitHeadlessWins(t *testing.T) {
	t.Setenv("AMBIENTE", "DEV")
	t.Setenv("RCV_HEADLESS", "true")

	assert.True(t, Load().Browser.Headless)
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("RCV_PORT", "")
	t.Setenv("PORT", "9090")

	assert.Equal(t, 9090, Load().Server.Port)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RCV_PROBE_TIMEOUT", "1500ms")
	t.Setenv("RCV_API_KEYS", "a, b ,,c")
	t.Setenv("RCV_RATE_RPS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 1500*time.Millisecond, cfg.Portal.ProbeTimeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.APIKeys)
	assert.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 2.0, cfg.RateLimit.ExtractPerMinute)
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("SII_RUT", "")
	t.Setenv("SII_CLAVE", "")

	err := Load().Validate()
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestValidate_OK(t *testing.T) {
	t.Setenv("SII_RUT", "11111111-1")
	t.Setenv("SII_CLAVE", "secret")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "11111111-1", cfg.Portal.Credentials().Identifier())
}
