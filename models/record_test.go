package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_PreservesInsertionOrder(t *testing.T) {
	r := RecordOf("Folio", "1", "Monto", "10", "Fecha", "01/01/2024")
	r.Set("Monto", "20")

	assert.Equal(t, []string{"Folio", "Monto", "Fecha"}, r.Keys())
	v, _ := r.Get("Monto")
	assert.Equal(t, "20", v)
}

func TestRecord_JSONKeepsFieldOrder(t *testing.T) {
	r := RecordOf("Folio", "1", "Tipo Documento", "33", "Monto", "10")

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"Folio":"1","Tipo Documento":"33","Monto":"10"}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Keys(), back.Keys())
}

func TestRecord_ZeroValue(t *testing.T) {
	var r Record
	assert.Zero(t, r.Len())
	_, ok := r.Get("Folio")
	assert.False(t, ok)

	r.Set("Folio", "5")
	assert.Equal(t, 1, r.Len())
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r := RecordOf("Folio", "1")
	c := r.Clone()
	c.Set("Extra", "x")

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 2, c.Len())
}

func TestRecord_Folio(t *testing.T) {
	tests := []struct {
		value string
		want  string
		ok    bool
	}{
		{"100", "100", true},
		{"  100 ", "100", true},
		{"", "", false},
		{"   ", "", false},
		{"NaN", "", false},
	}
	for _, tt := range tests {
		got, ok := RecordOf(FieldFolio, tt.value).Folio()
		assert.Equal(t, tt.ok, ok, "value %q", tt.value)
		assert.Equal(t, tt.want, got, "value %q", tt.value)
	}

	_, ok := RecordOf("Monto", "1").Folio()
	assert.False(t, ok)
}
