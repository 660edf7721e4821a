package obj

import (
	"testing"

	"github.com/gocompilers/dcc16/internal/backend"
)

func TestAssemble_LocalLabelBecomesLocalReloc(t *testing.T) {
	l := &backend.Listing{}
	l.Items = append(l.Items,
		backend.Instr{Mnem: "SET", B: backend.Reg("A"), A: backend.Sym("target"), HasB: true},
		backend.Instr{Mnem: "SET", B: backend.Reg("PC"), A: backend.Sym("target"), HasB: true},
		backend.LabelDef{Name: "target"},
		backend.Instr{Mnem: "SET", B: backend.Reg("B"), A: backend.Lit(1), HasB: true},
	)
	o, err := Assemble(l)
	if err != nil {
		t.Fatalf("assemble error: %v", err)
	}
	if len(o.LocalRelocs) != 2 {
		t.Fatalf("want 2 local relocations for the two uses of `target`, got %d", len(o.LocalRelocs))
	}
	if len(o.GlobalRelocs) != 0 {
		t.Fatalf("want no global relocations, got %d", len(o.GlobalRelocs))
	}
	if _, ok := o.Symbols["target"]; !ok {
		t.Fatal("want `target` in the symbol table")
	}
}

func TestAssemble_UndefinedSymbolBecomesGlobalReloc(t *testing.T) {
	l := &backend.Listing{}
	l.Items = append(l.Items,
		backend.Extern{Name: "puts"},
		backend.Instr{Mnem: "JSR", A: backend.Sym("puts")},
	)
	o, err := Assemble(l)
	if err != nil {
		t.Fatalf("assemble error: %v", err)
	}
	if len(o.GlobalRelocs) != 1 || o.GlobalRelocs[0].Name != "puts" {
		t.Fatalf("want one global relocation for puts, got %+v", o.GlobalRelocs)
	}
}

func TestAssemble_SmallLiteralInlinedNoExtraWord(t *testing.T) {
	l := &backend.Listing{}
	l.Items = append(l.Items,
		backend.Instr{Mnem: "SET", B: backend.Reg("A"), A: backend.Lit(5), HasB: true},
	)
	o, err := Assemble(l)
	if err != nil {
		t.Fatalf("assemble error: %v", err)
	}
	if len(o.Words) != 1 {
		t.Fatalf("want a small literal inlined into the single instruction word, got %d words", len(o.Words))
	}
}

func TestAssemble_LargeLiteralGetsExtraWord(t *testing.T) {
	l := &backend.Listing{}
	l.Items = append(l.Items,
		backend.Instr{Mnem: "SET", B: backend.Reg("A"), A: backend.Lit(1000), HasB: true},
	)
	o, err := Assemble(l)
	if err != nil {
		t.Fatalf("assemble error: %v", err)
	}
	if len(o.Words) != 2 || o.Words[1] != 1000 {
		t.Fatalf("want a second word holding the literal 1000, got %v", o.Words)
	}
}
