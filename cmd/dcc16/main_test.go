package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocompilers/dcc16/internal/types"
)

func TestParseConv(t *testing.T) {
	cases := map[string]types.CallConv{
		"":          types.StackCall,
		"stackcall": types.StackCall,
		"StackCall": types.StackCall,
		"regcall":   types.RegCall,
		"REGCALL":   types.RegCall,
	}
	for in, want := range cases {
		got, err := parseConv(in)
		if err != nil {
			t.Fatalf("parseConv(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseConv(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseConv("bogus"); err == nil {
		t.Fatal("want an error for an unrecognized --conv value")
	}
}

func TestCompileOne_RoutesByExtension(t *testing.T) {
	dir := t.TempDir()

	cPath := filepath.Join(dir, "prog.c")
	if err := os.WriteFile(cPath, []byte("int main() { return 0; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := compileOne(cPath, types.StackCall); err != nil {
		t.Fatalf("compileOne(.c): %v", err)
	}

	asmPath := filepath.Join(dir, "prog.dasm")
	if err := os.WriteFile(asmPath, []byte(".global start\nstart:\nSET PC, POP\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := compileOne(asmPath, types.StackCall); err != nil {
		t.Fatalf("compileOne(.dasm): %v", err)
	}

	badPath := filepath.Join(dir, "prog.txt")
	if err := os.WriteFile(badPath, []byte("whatever"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := compileOne(badPath, types.StackCall); err == nil {
		t.Fatal("want an error for an unrecognized extension")
	}
}

func TestCompileOne_MissingFileErrors(t *testing.T) {
	if _, err := compileOne(filepath.Join(t.TempDir(), "missing.c"), types.StackCall); err == nil {
		t.Fatal("want an error for a missing file")
	}
}
