package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cbmock/cbmock-go/internal/testharness/loader"
)

const basicScenario = `
id: TC-OPFAIL-001
name: Bounded failure
description: Two operations fail, the third succeeds
tags: [opfail, smoke]
steps:
  - action: control
    params:
      command: OPFAIL
      payload: {code: 134, count: 2}
    expect:
      status: ok
  - action: send
    params:
      opcode: NOOP
    expect:
      response_status: ETMPFAIL
`

func TestLoaderParseBasic(t *testing.T) {
	sc, err := loader.ParseScenario([]byte(basicScenario))
	if err != nil {
		t.Fatalf("Failed to parse scenario: %v", err)
	}

	if sc.ID != "TC-OPFAIL-001" {
		t.Errorf("ID mismatch: got %s", sc.ID)
	}
	if len(sc.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(sc.Steps))
	}
	if sc.Steps[0].Action != "control" {
		t.Errorf("Step action mismatch: got %s", sc.Steps[0].Action)
	}
	payload, ok := sc.Steps[0].Params["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload has type %T", sc.Steps[0].Params["payload"])
	}
	if payload["code"] != 134 {
		t.Errorf("code = %v", payload["code"])
	}
	if sc.Steps[1].Expect["response_status"] != "ETMPFAIL" {
		t.Errorf("expect mismatch: %v", sc.Steps[1].Expect)
	}
}

func TestLoaderValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "name: x\nsteps:\n  - action: a\n", "ID is required"},
		{"no steps", "id: X\n", "at least one step"},
		{"empty action", "id: X\nsteps:\n  - params: {a: 1}\n", "step 1 has no action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.ParseScenario([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoaderSyntaxErrorLine(t *testing.T) {
	_, err := loader.ParseScenario([]byte("id: X\nsteps:\n  - action: [unclosed\n"))
	var le *loader.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if le.Line == 0 {
		t.Errorf("expected a line number in %v", le)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.yaml", basicScenario)
	write("b.yml", "id: TC-AUTH-001\nsteps:\n  - action: connect\n")
	write("notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "c.yaml"), []byte("id: TC-SUB-001\nsteps:\n  - action: wait\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	flat, err := loader.LoadDirectory(dir)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if len(flat) != 2 {
		t.Errorf("expected 2 scenarios, got %d", len(flat))
	}

	all, err := loader.LoadDirectoryRecursive(dir)
	if err != nil {
		t.Fatalf("LoadDirectoryRecursive: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 scenarios, got %d", len(all))
	}
}

func TestLoadScenarioErrorCarriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("name: no id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := loader.LoadScenario(path)
	var le *loader.LoadError
	if !errors.As(err, &le) || le.File != path {
		t.Fatalf("expected LoadError for %s, got %v", path, err)
	}

	_, err = loader.LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	scenarios := []*loader.Scenario{
		{ID: "TC-OPFAIL-001", Tags: []string{"opfail", "smoke"}},
		{ID: "TC-OPFAIL-002", Tags: []string{"opfail"}},
		{ID: "TC-AUTH-001", Tags: []string{"auth", "smoke"}},
	}

	if got := loader.Filter(scenarios, "*", nil); len(got) != 3 {
		t.Errorf("all: got %d", len(got))
	}
	if got := loader.Filter(scenarios, "TC-OPFAIL*", nil); len(got) != 2 {
		t.Errorf("prefix: got %d", len(got))
	}
	if got := loader.Filter(scenarios, "", []string{"smoke"}); len(got) != 2 {
		t.Errorf("tag: got %d", len(got))
	}
	if got := loader.Filter(scenarios, "TC-OPFAIL", []string{"smoke"}); len(got) != 1 || got[0].ID != "TC-OPFAIL-001" {
		t.Errorf("prefix+tag: got %v", got)
	}
}
