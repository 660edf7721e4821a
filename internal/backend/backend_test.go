package backend

import (
	"strings"
	"testing"

	"github.com/gocompilers/dcc16/internal/ast"
	"github.com/gocompilers/dcc16/internal/astopt"
	"github.com/gocompilers/dcc16/internal/ir"
	"github.com/gocompilers/dcc16/internal/iropt"
)

func compile(t *testing.T, src string) *Listing {
	t.Helper()
	u, _, err := ast.Parse(src, "<test>")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	astopt.Optimize(u)
	prog, err := ir.Lower(u)
	if err != nil {
		t.Fatalf("lower error: %v", err)
	}
	for _, f := range prog.Funcs {
		iropt.Optimize(f)
	}
	l, err := Generate(prog)
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	return l
}

func TestGenerate_StackCallAddEmitsPrologueAndCall(t *testing.T) {
	l := compile(t, `
		int add(int a, int b) { return a + b; }
		int main() { return add(1, 2); }
	`)
	text := l.String()
	for _, want := range []string{"add:", "main:", "PUSH J", "JSR add", "SET PC, POP"} {
		if !strings.Contains(text, want) {
			t.Fatalf("want listing to contain %q, got:\n%s", want, text)
		}
	}
}

func TestGenerate_ComparisonSynthesizesBoolean(t *testing.T) {
	l := compile(t, `int f(int a, int b) { return a < b; }`)
	text := l.String()
	if !strings.Contains(text, "IFL") {
		t.Fatalf("want an IFL for a < b, got:\n%s", text)
	}
}

func TestGenerate_ArrayLocalUsesFramePointerArithmetic(t *testing.T) {
	l := compile(t, `int f() { int a[4]; a[0] = 7; return a[0]; }`)
	text := l.String()
	if !strings.Contains(text, "SET A, J") || !strings.Contains(text, "SUB A,") {
		t.Fatalf("want Alloca materialized via J-relative arithmetic, got:\n%s", text)
	}
}

func TestGenerate_GlobalsGetDataAndLabel(t *testing.T) {
	l := compile(t, `
		int counter;
		int bump() { counter = counter + 1; return counter; }
	`)
	text := l.String()
	if !strings.Contains(text, "counter:") || !strings.Contains(text, ".dw") {
		t.Fatalf("want a data label for the global, got:\n%s", text)
	}
}
