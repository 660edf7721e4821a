package ast

import "github.com/gocompilers/dcc16/internal/types"

// scope is one lexical block's name table. Blocks nest; a name not found in
// the innermost scope is looked up in its parent, and finally in the
// function's parameters and the unit's functions/globals.
type scope struct {
	parent *scope
	names  map[string]Identifier
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: map[string]Identifier{}}
}

func (s *scope) declare(name string, id Identifier) bool {
	if _, exists := s.names[name]; exists {
		return false
	}
	s.names[name] = id
	return true
}

func (s *scope) lookup(name string) (Identifier, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if id, ok := cur.names[name]; ok {
			return id, true
		}
	}
	return Identifier{}, false
}

// builder accumulates the local variables of the function currently being
// parsed, including parser-synthesized temporaries needed to desugar
// increment/decrement, compound assignment and the ternary operator
// (spec.md §3: "desugared using Copy, temporary variables, AddrOf, Deref").
// Grounded on the original FunctionDeclaration's add_var bookkeeping
// (compiler/parser.py, compiler/ast.py Function).
type builder struct {
	fn    *Function
	scope *scope
}

func newBuilder(fn *Function) *builder {
	return &builder{fn: fn, scope: newScope(nil)}
}

func (b *builder) push() { b.scope = newScope(b.scope) }
func (b *builder) pop()  { b.scope = b.scope.parent }

// declareVar adds a named local variable and returns its Identifier.
func (b *builder) declareVar(name string, t types.Type) (Identifier, bool) {
	idx := len(b.fn.Vars)
	b.fn.Vars = append(b.fn.Vars, t)
	b.fn.VarNames = append(b.fn.VarNames, name)
	id := Identifier{Role: RoleVariable, Name: name, Index: idx}
	return id, b.scope.declare(name, id)
}

// temp allocates an unnamed local variable for desugaring use, always
// successfully declared since its synthesized name cannot collide with a
// source identifier.
func (b *builder) temp(t types.Type) Identifier {
	idx := len(b.fn.Vars)
	name := syntheticName(idx)
	b.fn.Vars = append(b.fn.Vars, t)
	b.fn.VarNames = append(b.fn.VarNames, name)
	return Identifier{Role: RoleVariable, Name: name, Index: idx}
}

func syntheticName(idx int) string {
	digits := "0123456789"
	if idx == 0 {
		return "_t0"
	}
	buf := []byte{}
	for idx > 0 {
		buf = append([]byte{digits[idx%10]}, buf...)
		idx /= 10
	}
	return "_t" + string(buf)
}

func (b *builder) lookup(name string) (Identifier, bool) {
	return b.scope.lookup(name)
}
