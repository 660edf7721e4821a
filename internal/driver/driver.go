// Package driver sequences the whole pipeline — lex/parse, AST
// optimization, IR lowering, IR optimization, code generation, assembly —
// for one translation unit (spec.md §5: "one compilation unit is
// processed end-to-end per invocation; phases run sequentially"). It
// imports the package of each stage from ast through obj; linking is not
// part of it.
package driver

import (
	"fmt"

	"github.com/gocompilers/dcc16/internal/ast"
	"github.com/gocompilers/dcc16/internal/astopt"
	"github.com/gocompilers/dcc16/internal/backend"
	"github.com/gocompilers/dcc16/internal/ir"
	"github.com/gocompilers/dcc16/internal/iropt"
	"github.com/gocompilers/dcc16/internal/obj"
	"github.com/gocompilers/dcc16/internal/types"
)

// Result is everything a caller might want out of compiling one source
// file: the generated assembly text (for `-S`) and its assembled object
// (for linking into a final image).
type Result struct {
	Listing *backend.Listing
	Object  *obj.Object
}

// CompileC runs the full `.c` pipeline (spec.md §6: "`.c` inputs enter the
// full pipeline"): parse, optimize the AST to a fixed point, lower to IR,
// optimize the IR to a fixed point, generate assembly, and assemble it.
func CompileC(src, filename string) (*Result, error) {
	return CompileCWithConv(src, filename, types.StackCall)
}

// CompileCWithConv is CompileC with a caller-chosen default calling
// convention (SPEC_FULL.md §1.1's `--conv` flag) for functions that name
// neither __regcall nor __stackcall.
func CompileCWithConv(src, filename string, defaultConv types.CallConv) (*Result, error) {
	unit, _, err := ast.ParseWithConv(src, filename, defaultConv)
	if err != nil {
		return nil, err
	}

	astopt.Optimize(unit)

	prog, err := ir.Lower(unit)
	if err != nil {
		return nil, err
	}
	for _, fn := range prog.Funcs {
		iropt.Optimize(fn)
	}

	listing, err := backend.Generate(prog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	object, err := obj.Assemble(listing)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	return &Result{Listing: listing, Object: object}, nil
}

// AssembleText runs just the assembler stage over a pre-written listing
// (spec.md §6: "`.dasm` (or `.asm`) inputs go straight to the assembler").
// The listing is parsed from text by ParseListing in listing_text.go.
func AssembleText(src, filename string) (*Result, error) {
	listing, err := ParseListing(src, filename)
	if err != nil {
		return nil, err
	}
	object, err := obj.Assemble(listing)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &Result{Listing: listing, Object: object}, nil
}
