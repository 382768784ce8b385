package types

import (
	"strings"
	"testing"
	"time"
)

func TestBuiltinSchemas(t *testing.T) {
	schemas, err := BuiltinSchemas()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(schemas) != 3 {
		t.Fatalf("len=%d", len(schemas))
	}
	byName := map[string]Schema{}
	for _, s := range schemas {
		byName[s.Name] = s
	}
	if byName["cancer"].CountTTL != 5*time.Minute || byName["arthritis"].CountTTL != 10*time.Minute || byName["ips"].CountTTL != 30*time.Minute {
		t.Fatalf("ttl mismatch: %+v", byName)
	}
	ips := byName["ips"]
	if ips.PrefixField != "nomIps" || !ips.PersistMirror {
		t.Fatalf("ips=%+v", ips)
	}
	if !ips.IsFilterable("nomIps") || ips.IsFilterable("telefono") {
		t.Fatal("filterable mismatch")
	}
	if f, ok := byName["cancer"].Field("edad"); !ok || f.Kind != KindNumber {
		t.Fatalf("edad=%+v ok=%v", f, ok)
	}
	if got := byName["cancer"].Headers()[0]; got != "RADICADO" {
		t.Fatalf("header=%q", got)
	}
}

func TestParseSchema_Errors(t *testing.T) {
	base := "name: x\ncollection: xs\ncount_ttl: 1m\nall_ttl: 1m\n"
	cases := map[string]string{
		"bad yaml":        "name: [",
		"bad name":        "name: X1\ncollection: xs\ncount_ttl: 1m\nall_ttl: 1m\nfields: [{name: a, kind: string}]\n",
		"no collection":   "name: x\ncount_ttl: 1m\nall_ttl: 1m\nfields: [{name: a, kind: string}]\n",
		"no fields":       base,
		"reserved":        base + "fields: [{name: id, kind: string}]\n",
		"duplicate":       base + "fields: [{name: a, kind: string}, {name: a, kind: string}]\n",
		"kind":            base + "fields: [{name: a, kind: bool}]\n",
		"filterable":      base + "fields: [{name: a, kind: string}]\nfilterable: [b]\n",
		"filterable kind": base + "fields: [{name: a, kind: number}]\nfilterable: [a]\n",
		"prefix kind":     base + "fields: [{name: a, kind: number}]\nprefix_field: a\n",
		"prefix missing":  base + "fields: [{name: a, kind: string}]\nprefix_field: b\n",
		"ttl":             "name: x\ncollection: xs\nfields: [{name: a, kind: string}]\n",
		"rule incomplete": base + "fields: [{name: a, kind: string}]\nrules: [{name: r}]\n",
		"empty field":     base + "fields: [{name: '', kind: string}]\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSchema([]byte(raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseSchema_OK(t *testing.T) {
	raw := strings.Join([]string{
		"name: demo",
		"collection: demos",
		"count_ttl: 90s",
		"all_ttl: 2m",
		"fields: [{name: a, header: A, kind: string}, {name: n, header: N, kind: number}]",
		"filterable: [a]",
	}, "\n")
	s, err := ParseSchema([]byte(raw))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if s.CountTTL != 90*time.Second || len(s.FieldNames()) != 2 {
		t.Fatalf("s=%+v", s)
	}
}

func TestRecordAccessors(t *testing.T) {
	r := Record{Fields: map[string]any{"a": "x", "n": float64(3)}}
	if r.String("a") != "x" || r.Number("n") != 3 || r.String("n") != "" || r.Number("a") != 0 {
		t.Fatalf("r=%+v", r)
	}
}
