package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
)

// Decode normalizes a stored document into a Record carrying every declared
// field. It tolerates any historical representation and never fails.
func Decode(schema types.Schema, doc ports.Document) types.Record {
	fields := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		fields[f.Name] = coerce(f, doc.Fields[f.Name])
	}
	return types.Record{ID: doc.ID, Fields: fields, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}
}

func coerce(f types.Field, v any) any {
	if f.Kind == types.KindNumber {
		return coerceNumber(v)
	}
	return coerceString(v)
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case json.Number:
		return t.String()
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}

func formatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return ""
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func coerceNumber(v any) float64 {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		n, _ = t.Float64()
	case bool:
		if t {
			n = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			n = parsed
		}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// Encode normalizes an inbound payload into the stored shape. With full
// set, missing declared fields are filled with their zero value. System
// fields are dropped; undeclared fields are returned separately.
func Encode(schema types.Schema, input map[string]any, full bool) (map[string]any, []string) {
	out := make(map[string]any, len(schema.Fields))
	var unknown []string
	for k, v := range input {
		if types.IsSystemField(k) {
			continue
		}
		f, ok := schema.Field(k)
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		out[k] = coerce(f, v)
	}
	if full {
		for _, f := range schema.Fields {
			if _, ok := out[f.Name]; !ok {
				out[f.Name] = coerce(f, nil)
			}
		}
	}
	sort.Strings(unknown)
	return out, unknown
}

// FromSheetRow maps spreadsheet columns onto declared fields. Headers match
// either the field name or its display header, ignoring case, spacing and
// punctuation. Unmatched columns are dropped.
func FromSheetRow(schema types.Schema, row map[string]string) map[string]any {
	index := headerIndex(schema)
	input := make(map[string]any, len(row))
	for header, value := range row {
		if name, ok := index[normalizeHeader(header)]; ok {
			input[name] = strings.TrimSpace(value)
		}
	}
	out, _ := Encode(schema, input, true)
	return out
}

// ToSheetRow renders a record in schema header order.
func ToSheetRow(schema types.Schema, r types.Record) []string {
	row := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		row = append(row, coerceString(r.Fields[f.Name]))
	}
	return row
}

func headerIndex(schema types.Schema) map[string]string {
	idx := make(map[string]string, 2*len(schema.Fields))
	for _, f := range schema.Fields {
		idx[normalizeHeader(f.Name)] = f.Name
		if f.Header != "" {
			idx[normalizeHeader(f.Header)] = f.Name
		}
	}
	return idx
}

var accentFold = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n")

func normalizeHeader(h string) string {
	h = accentFold.Replace(strings.ToLower(strings.TrimSpace(h)))
	var b strings.Builder
	for _, r := range h {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
