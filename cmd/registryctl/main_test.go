package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jacksonlee411/registry-console/modules/registry/infrastructure/spreadsheet"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSeedAccess(t *testing.T) {
	out, err := execute(t, "seed-access")
	if err != nil {
		t.Fatalf("err=%v out=%s", err, out)
	}
	if !strings.Contains(out, "created 4 roles") {
		t.Fatalf("out=%s", out)
	}
}

func TestImport_PrintsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancer.xlsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := spreadsheet.WriteRows(f, "Hoja1", []string{"RADICADO", "NUMERO DOCUMENTO", "EDAD"}, [][]string{
		{"1234567", "CC1", "30"},
		{"1234568", "CC2", "31"},
	}); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	out, err := execute(t, "import", "--registry", "cancer", "--file", path)
	if err != nil {
		t.Fatalf("err=%v out=%s", err, out)
	}
	if !strings.Contains(out, "imported 2/2") || !strings.Contains(out, "cancer: 2 records imported") {
		t.Fatalf("out=%s", out)
	}
}

func TestImport_UnknownRegistry(t *testing.T) {
	if _, err := execute(t, "import", "--registry", "flu", "--file", "x.xlsx"); err == nil || !strings.Contains(err.Error(), "unknown registry") {
		t.Fatalf("err=%v", err)
	}
}

func TestExport_EmptyRegistryWritesHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ips.xlsx")
	out, err := execute(t, "export", "--registry", "ips", "--out", path, "--filter", "municipio=PASTO")
	if err != nil {
		t.Fatalf("err=%v out=%s", err, out)
	}
	if !strings.Contains(out, "ips: 0 records written") {
		t.Fatalf("out=%s", out)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := spreadsheet.ReadRows(f)
	if err != nil || len(rows) != 0 {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}

func TestExport_BadFilter(t *testing.T) {
	if _, err := execute(t, "export", "--registry", "ips", "--out", filepath.Join(t.TempDir(), "x.xlsx"), "--filter", "novalue"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteAll_NeedsBothConfirmations(t *testing.T) {
	if _, err := execute(t, "delete-all", "--registry", "cancer", "--yes"); err == nil {
		t.Fatal("expected error")
	}
	out, err := execute(t, "delete-all", "--registry", "cancer", "--yes", "--yes-really")
	if err != nil {
		t.Fatalf("err=%v out=%s", err, out)
	}
	if !strings.Contains(out, "cancer: 0 records deleted") {
		t.Fatalf("out=%s", out)
	}
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters([]string{"eps=EPS1", " municipio =PASTO"})
	if err != nil || f["eps"] != "EPS1" || f["municipio"] != "PASTO" {
		t.Fatalf("f=%v err=%v", f, err)
	}
	if _, err := parseFilters([]string{"=x"}); err == nil {
		t.Fatal("expected error")
	}
}
