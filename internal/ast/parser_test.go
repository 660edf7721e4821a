package ast

import (
	"testing"

	"github.com/gocompilers/dcc16/internal/types"
)

func mustParse(t *testing.T, src string) *Unit {
	t.Helper()
	u, _, err := Parse(src, "<test>")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return u
}

func TestParse_SimpleFunction(t *testing.T) {
	u := mustParse(t, `int add(int a, int b) { return a + b; }`)
	if len(u.Funcs) != 1 {
		t.Fatalf("want 1 function, got %d", len(u.Funcs))
	}
	fn := u.Funcs[0]
	if fn.Name != "add" || len(fn.Type.Params) != 2 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
	ret, ok := fn.Body.(*Return)
	if !ok {
		t.Fatalf("want *Return body, got %T", fn.Body)
	}
	bin, ok := ret.Inner.(*Binary)
	if !ok || bin.Op != Add {
		t.Fatalf("want Binary(Add), got %#v", ret.Inner)
	}
}

func TestParse_RegCallConvention(t *testing.T) {
	u := mustParse(t, `__regcall int add3(int a, int b, int c) { return a + b + c; }`)
	if u.Funcs[0].Type.CallConv != types.RegCall {
		t.Fatalf("want RegCall, got %v", u.Funcs[0].Type.CallConv)
	}
}

func TestParse_WhileLoopDesugarsToSingleLoop(t *testing.T) {
	u := mustParse(t, `int main() {
		int a = 10;
		int n = 0;
		while (a) { a = a - 1; n = n + 1; }
		return n;
	}`)
	fn := u.Funcs[0]
	body, ok := fn.Body.(*Comma)
	if !ok {
		t.Fatalf("want *Comma body, got %T", fn.Body)
	}
	loops := countLoops(body)
	if loops != 1 {
		t.Fatalf("want exactly one Loop, got %d", loops)
	}
}

func countLoops(e Expr) int {
	switch n := e.(type) {
	case *Loop:
		return 1 + countLoops(n.Body)
	case *Comma:
		total := 0
		for _, s := range n.Subs {
			total += countLoops(s)
		}
		return total
	case *Binary:
		return countLoops(n.Left) + countLoops(n.Right)
	case *Copy:
		return countLoops(n.Source) + countLoops(n.Destination)
	default:
		return 0
	}
}

func TestParse_IfElseDesugarsToShortCircuit(t *testing.T) {
	u := mustParse(t, `int f(int x) { if (x) return 1; else return 0; }`)
	bin, ok := u.Funcs[0].Body.(*Binary)
	if !ok || bin.Op != LOr {
		t.Fatalf("want top-level Binary(LOr), got %#v", u.Funcs[0].Body)
	}
	land, ok := bin.Left.(*Binary)
	if !ok || land.Op != LAnd {
		t.Fatalf("want Binary(LAnd) on the left, got %#v", bin.Left)
	}
}

func TestParse_TernaryPreservesValue(t *testing.T) {
	u := mustParse(t, `int f(int x) { return x ? 1 : 2; }`)
	ret := u.Funcs[0].Body.(*Return)
	comma, ok := ret.Inner.(*Comma)
	if !ok || len(comma.Subs) != 2 {
		t.Fatalf("want 2-element Comma, got %#v", ret.Inner)
	}
	if _, ok := comma.Subs[1].(*Ident); !ok {
		t.Fatalf("want final element to yield the temp, got %T", comma.Subs[1])
	}
}

func TestParse_ArraySubscriptDesugarsToDeref(t *testing.T) {
	u := mustParse(t, `int f(int arr[]) { return arr[1]; }`)
	ret := u.Funcs[0].Body.(*Return)
	if _, ok := ret.Inner.(*Deref); !ok {
		t.Fatalf("want *Deref, got %#v", ret.Inner)
	}
	// Array parameters decay to pointers.
	if _, ok := u.Funcs[0].Type.Params[0].(types.Ptr); !ok {
		t.Fatalf("want array param to decay to Ptr, got %v", u.Funcs[0].Type.Params[0])
	}
}

func TestParse_PointerCast(t *testing.T) {
	u := mustParse(t, `int f(int x) { return *(int*)x; }`)
	ret := u.Funcs[0].Body.(*Return)
	deref, ok := ret.Inner.(*Deref)
	if !ok {
		t.Fatalf("want *Deref, got %#v", ret.Inner)
	}
	if _, ok := deref.Inner.(*castWrap); !ok {
		t.Fatalf("want cast wrapper, got %#v", deref.Inner)
	}
}

func TestParse_BreakContinueInLoop(t *testing.T) {
	u := mustParse(t, `int f() {
		int i = 0;
		int sum = 0;
		while (1) {
			i = i + 1;
			if (i == 5) break;
			if (i == 2) continue;
			sum = sum + i;
		}
		return sum;
	}`)
	if len(u.Funcs) != 1 {
		t.Fatalf("parse failed to produce function")
	}
}

func TestParse_CompoundAssignAndIncrement(t *testing.T) {
	u := mustParse(t, `int f(int *p) {
		int x = 0;
		x += 1;
		*p += 2;
		x++;
		++x;
		return x;
	}`)
	if len(u.Funcs) != 1 {
		t.Fatalf("parse failed")
	}
}

func TestParse_RedefinitionIsFatal(t *testing.T) {
	_, _, err := Parse(`int f() { return 0; } int f() { return 1; }`, "<test>")
	if err == nil {
		t.Fatal("want redefinition error")
	}
}

func TestParse_ExternDeclaration(t *testing.T) {
	u := mustParse(t, `extern int puts(int *s); int main() { return puts(0); }`)
	decl := u.FuncByName("puts")
	if decl == nil || !decl.Extern || decl.Body != nil {
		t.Fatalf("want extern prototype with no body, got %#v", decl)
	}
}

func TestParse_GlobalVariable(t *testing.T) {
	u := mustParse(t, `int counter; int f() { return counter; }`)
	if len(u.Globals) != 1 || u.Globals[0].Name != "counter" {
		t.Fatalf("want one global `counter`, got %#v", u.Globals)
	}
}
