package portal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rcvscrap/portal"
)

func TestLocator_TextPattern(t *testing.T) {
	re, err := portal.WithText("x", "button", `/volver/i`).TextPattern()
	require.NoError(t, err)
	assert.True(t, re.MatchString("VOLVER al resumen"))

	re, err = portal.WithText("x", "button", `/Consultar/`).TextPattern()
	require.NoError(t, err)
	assert.False(t, re.MatchString("consultar"))

	re, err = portal.WithText("x", "a", `^\s*42\s*$`).TextPattern()
	require.NoError(t, err)
	assert.True(t, re.MatchString(" 42 "))

	re, err = portal.CSS("x", "table").TextPattern()
	require.NoError(t, err)
	assert.Nil(t, re)

	_, err = portal.WithText("x", "a", `/(/`).TextPattern()
	assert.Error(t, err)
}

func TestLocator_TextSource(t *testing.T) {
	pattern, flags := portal.WithText("x", "a", `/^\s*42\s*$/gi`).TextSource()
	assert.Equal(t, `^\s*42\s*$`, pattern)
	assert.Equal(t, "i", flags)

	pattern, flags = portal.WithText("x", "a", `Consultar`).TextSource()
	assert.Equal(t, "Consultar", pattern)
	assert.Empty(t, flags)
}

func TestLocator_String(t *testing.T) {
	assert.Equal(t, "table", portal.CSS("tables", "table").String())
	assert.Equal(t, "button /Cerrar/i", portal.WithText("close", "button", "/Cerrar/i").String())
}
