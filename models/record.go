package models

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Well-known record field names. Column names coming from the portal are
// kept verbatim; these are the ones the pipeline reads or adds.
const (
	FieldFolio         = "Folio"
	FieldCategoryCode  = "Tipo Documento"
	FieldCategoryLabel = "Nombre Tipo Documento"
	FieldCounterparty  = "Razon Social Emisor"
)

// NaNSentinel is the literal cell value the portal (and spreadsheet tooling)
// uses for a missing number. It is treated as an empty field.
const NaNSentinel = "NaN"

// Record is an ordered mapping from column header to cell text.
//
// A freshly parsed table row is a Record with only portal columns; the
// extractor then tags it with the category fields and, when available, the
// counterparty legal name. Field order is the order in which keys were first
// set, and it is preserved in JSON output.
type Record struct {
	fields *orderedmap.OrderedMap[string, string]
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, string]()}
}

// RecordOf builds a record from alternating key/value pairs. A trailing key
// without a value is ignored.
func RecordOf(kv ...string) *Record {
	r := NewRecord()
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

func (r *Record) ensure() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, string]()
	}
}

// Set stores value under key, keeping the key's original position if it
// already exists.
func (r *Record) Set(key, value string) {
	r.ensure()
	r.fields.Set(key, value)
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (string, bool) {
	if r == nil || r.fields == nil {
		return "", false
	}
	return r.fields.Get(key)
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	if r == nil || r.fields == nil {
		return
	}
	r.fields.Delete(key)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	r.Each(func(k, _ string) {
		keys = append(keys, k)
	})
	return keys
}

// Each calls fn for every field in insertion order.
func (r *Record) Each(fn func(key, value string)) {
	if r == nil || r.fields == nil {
		return
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	c := NewRecord()
	r.Each(func(k, v string) {
		c.Set(k, v)
	})
	return c
}

// Map returns the fields as a plain map. Order is lost.
func (r *Record) Map() map[string]string {
	m := make(map[string]string, r.Len())
	r.Each(func(k, v string) {
		m[k] = v
	})
	return m
}

// Folio returns the record's business key. A missing key or one holding only
// whitespace or the NaN sentinel reports false.
func (r *Record) Folio() (string, bool) {
	v, ok := r.Get(FieldFolio)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if IsEmptyValue(v) {
		return "", false
	}
	return v, true
}

// IsEmptyValue reports whether a cell value counts as absent.
func IsEmptyValue(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == NaNSentinel
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.fields == nil {
		return []byte("{}"), nil
	}
	return r.fields.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	r.ensure()
	return r.fields.UnmarshalJSON(data)
}
