package routing

import "testing"

func TestParsePathPattern(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"/plain", "x/{a}", "/a//{b}", "/{}", "/{a}b{c}", "/a{b}"} {
		if _, ok := parsePathPattern(bad); ok {
			t.Fatalf("%q accepted", bad)
		}
	}
	if _, ok := parsePathPattern("/registry/api/{registry}/records:get"); !ok {
		t.Fatal("expected pattern")
	}
}

func TestPathPattern_Extract(t *testing.T) {
	t.Parallel()

	p, _ := parsePathPattern("/registry/api/{registry}/records:get")
	params, ok := p.Extract("/registry/api/cancer/records:get")
	if !ok || params["registry"] != "cancer" {
		t.Fatalf("params=%v ok=%v", params, ok)
	}
	for _, miss := range []string{"/registry/api/cancer/records", "/registry/api//records:get", "/registry/api/cancer/records:get/x"} {
		if p.Match(miss) {
			t.Fatalf("%q matched", miss)
		}
	}

	suffix, _ := parsePathPattern("/files/{name}.xlsx")
	params, ok = suffix.Extract("/files/cancer.xlsx")
	if !ok || params["name"] != "cancer" {
		t.Fatalf("params=%v ok=%v", params, ok)
	}
	if suffix.Match("/files/.xlsx") || suffix.Match("/files/cancer.csv") {
		t.Fatal("suffix mismatch matched")
	}
	if (PathPattern{}).Match("/x") {
		t.Fatal("zero pattern matched")
	}
}
