package ast

import (
	"fmt"

	"github.com/gocompilers/dcc16/internal/diag"
	"github.com/gocompilers/dcc16/internal/token"
	"github.com/gocompilers/dcc16/internal/types"
)

// Parser turns a token stream into a Unit, desugaring every structured
// control-flow construct into the normalized expression kernel as it goes
// (spec.md §4.2). Grounded on Parser(Tokenizer) (compiler/parser.py): same
// push/pop speculative-lookahead style for distinguishing a cast from a
// parenthesized expression and for declaration-vs-statement lookahead,
// same report_error shape (now routed through internal/diag).
type Parser struct {
	lex         *token.Lexer
	unit        *Unit
	fn          *Function
	b           *builder
	loop        []*loopCtx
	defaultConv types.CallConv
}

type loopCtx struct {
	live, brk Identifier
}

// Parse lexes and parses src as one translation unit, with functions lacking
// an explicit __regcall/__stackcall qualifier defaulting to StackCall. Lex/
// syntax errors are fatal (spec.md §7): the returned error is non-nil and
// *is* a *diag.FatalError in that case. Non-fatal diagnostics (currently
// none are raised by this package) would be available via warns.
func Parse(src, filename string) (unit *Unit, warns *diag.Collector, err error) {
	return ParseWithConv(src, filename, types.StackCall)
}

// ParseWithConv is Parse with a caller-chosen default calling convention for
// functions that name neither __regcall nor __stackcall (SPEC_FULL.md §1.1's
// `--conv` CLI flag: a compiler default, not a per-function override).
func ParseWithConv(src, filename string, defaultConv types.CallConv) (unit *Unit, warns *diag.Collector, err error) {
	defer diag.Recover(&err)

	warns = &diag.Collector{}
	lex := token.New(src, filename, warns)
	p := &Parser{lex: lex, unit: &Unit{}, defaultConv: defaultConv}
	p.unit = p.parseUnit()
	return p.unit, warns, nil
}

// ---- token helpers -------------------------------------------------------

func (p *Parser) cur() token.Token { return p.lex.Current() }

func (p *Parser) isSym(s string) bool {
	t := p.cur()
	return t.Kind == token.Symbol && t.SVal == s
}

func (p *Parser) isKeyword(k string) bool {
	t := p.cur()
	return t.Kind == token.Keyword && t.SVal == k
}

func (p *Parser) matchSym(s string) bool {
	if p.isSym(s) {
		p.lex.Next()
		return true
	}
	return false
}

func (p *Parser) matchKeyword(k string) bool {
	if p.isKeyword(k) {
		p.lex.Next()
		return true
	}
	return false
}

func (p *Parser) fatal(pos token.Position, format string, args ...any) {
	diag.Fatal(diag.Diagnostic{
		Kind: diag.Syntax,
		Pos: diag.Position{
			File: p.lex.Filename(), StartLine: pos.StartLine, StartCol: pos.StartCol,
			EndLine: pos.EndLine, EndCol: pos.EndCol,
		},
		Line:    p.lex.Line(pos.StartLine),
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) expectSym(s string) token.Position {
	if !p.isSym(s) {
		p.fatal(p.cur().Pos, "expected `%s`, got %s", s, p.cur())
	}
	pos := p.cur().Pos
	p.lex.Next()
	return pos
}

func (p *Parser) expectIdent() (string, token.Position) {
	if p.cur().Kind != token.Ident {
		p.fatal(p.cur().Pos, "expected identifier, got %s", p.cur())
	}
	name, pos := p.cur().SVal, p.cur().Pos
	p.lex.Next()
	return name, pos
}

func expandPos(a, b token.Position) token.Position {
	return token.Position{StartLine: a.StartLine, StartCol: a.StartCol, EndLine: b.EndLine, EndCol: b.EndCol}
}

// ---- type parsing ---------------------------------------------------------

// parseBaseType parses a type specifier with no declarator (pointer/array
// suffixes). raiseError controls whether a non-type token is a fatal error
// or a signal to the caller (used for declaration-vs-statement and
// cast-vs-parenthesized-expression lookahead), mirroring _parse_type's
// raise_error flag.
func (p *Parser) parseBaseType(raiseError bool) (types.Type, bool) {
	switch {
	case p.matchKeyword("unsigned"):
		if p.isKeyword("int") || p.isKeyword("char") || p.isKeyword("short") || p.isKeyword("long") {
			p.lex.Next()
		}
		return types.U16, true

	case p.matchKeyword("signed"):
		if p.isKeyword("int") || p.isKeyword("char") || p.isKeyword("short") || p.isKeyword("long") {
			p.lex.Next()
		}
		return types.I16, true

	case p.matchKeyword("int"), p.matchKeyword("short"), p.matchKeyword("long"):
		return types.I16, true

	case p.matchKeyword("char"):
		return types.U16, true

	case p.matchKeyword("void"):
		return types.Void{}, true

	default:
		if raiseError {
			p.fatal(p.cur().Pos, "expected a type, got %s", p.cur())
		}
		return nil, false
	}
}

// parseType parses a full type: base type plus any `*` pointer suffixes.
// Array suffixes are parsed by the declarator (they bind to the declared
// name, as in C: `int a[4]`, not to the base type).
func (p *Parser) parseType(raiseError bool) (types.Type, bool) {
	t, ok := p.parseBaseType(raiseError)
	if !ok {
		return nil, false
	}
	for p.matchSym("*") {
		t = types.Ptr{Elem: t}
	}
	return t, true
}

// parseCallConv consumes an optional __regcall/__stackcall qualifier
// (keywords carved out alongside the rest of the storage-class set, spec.md
// §4.1) and returns the convention to use, defaulting to p.defaultConv.
func (p *Parser) parseCallConv() types.CallConv {
	if p.matchKeyword("__regcall") {
		return types.RegCall
	}
	if p.matchKeyword("__stackcall") {
		return types.StackCall
	}
	return p.defaultConv
}

// skipQualifiers consumes the `volatile`, `register`, `const` and `inline`
// keywords, which this dialect accepts syntactically but gives no
// semantics to (spec.md §4.1's keyword set). `static` is not among them:
// callers match it separately.
func (p *Parser) skipQualifiers() {
	for p.isKeyword("volatile") || p.isKeyword("register") || p.isKeyword("const") || p.isKeyword("inline") {
		p.lex.Next()
	}
}

// ---- unit / declarations ---------------------------------------------------

func (p *Parser) parseUnit() *Unit {
	u := &Unit{}
	p.unit = u
	for p.cur().Kind != token.Eof {
		if p.matchSym(";") {
			continue
		}
		p.parseExternalDecl()
	}
	return u
}

func (p *Parser) parseExternalDecl() {
	isExtern := p.matchKeyword("extern")
	p.matchKeyword("static")
	p.skipQualifiers()
	conv := p.parseCallConv()

	retType, _ := p.parseType(true)
	name, namePos := p.expectIdent()

	if !p.isSym("(") {
		// Global variable declaration (supplemented feature, SPEC_FULL.md §3).
		t := p.parseArraySuffix(retType)
		p.expectSym(";")
		if p.unit.FuncByName(name) != nil {
			p.fatal(namePos, "redefinition of `%s`", name)
		}
		for _, g := range p.unit.Globals {
			if g.Name == name {
				p.fatal(namePos, "redefinition of `%s`", name)
			}
		}
		p.unit.Globals = append(p.unit.Globals, &GlobalVar{Name: name, Type: t})
		return
	}

	p.expectSym("(")
	paramNames, paramTypes := p.parseParamList()
	p.expectSym(")")

	ft := types.Func{Ret: retType, Params: paramTypes, CallConv: conv}

	if isExtern || p.isSym(";") {
		p.expectSym(";")
		if existing := p.unit.FuncByName(name); existing != nil {
			if existing.Body != nil {
				p.fatal(namePos, "redefinition of `%s`", name)
			}
			return
		}
		p.unit.Funcs = append(p.unit.Funcs, &Function{Name: name, Type: ft, Params: paramNames, Extern: true})
		return
	}

	if existing := p.unit.FuncByName(name); existing != nil && existing.Body != nil {
		p.fatal(namePos, "redefinition of `%s`", name)
	}

	fn := &Function{Name: name, Type: ft, Params: paramNames}
	p.fn = fn
	p.b = newBuilder(fn)
	fn.Body = p.parseFunctionBody()
	p.fn, p.b = nil, nil

	// Replace a prior prototype with the definition, else append.
	for i, f := range p.unit.Funcs {
		if f.Name == name {
			p.unit.Funcs[i] = fn
			return
		}
	}
	p.unit.Funcs = append(p.unit.Funcs, fn)
}

func (p *Parser) parseParamList() ([]string, []types.Type) {
	var names []string
	var typs []types.Type
	if p.isSym(")") {
		return names, typs
	}
	for {
		p.skipQualifiers()
		t, _ := p.parseType(true)
		name := ""
		if p.cur().Kind == token.Ident {
			name, _ = p.expectIdent()
		}
		t = p.parseArraySuffix(t)
		if arr, ok := t.(types.Array); ok {
			t = types.Ptr{Elem: arr.Elem} // array parameter decays to pointer
		}
		names = append(names, name)
		typs = append(typs, t)
		if !p.matchSym(",") {
			break
		}
	}
	return names, typs
}

// parseArraySuffix parses zero or more `[N]` suffixes following a
// declarator name, producing nested Array types (outermost dimension
// first, as in C).
func (p *Parser) parseArraySuffix(elem types.Type) types.Type {
	if !p.isSym("[") {
		return elem
	}
	p.lex.Next()
	n := -1
	if p.cur().Kind == token.Int {
		n = int(p.cur().IVal)
		p.lex.Next()
	}
	p.expectSym("]")
	inner := p.parseArraySuffix(elem)
	return types.Array{Elem: inner, Len: n}
}

// ---- function body / statements -------------------------------------------

func (p *Parser) parseFunctionBody() Expr {
	pos := p.expectSym("{")
	p.b.push()
	body := p.parseBlockStmts()
	p.b.pop()
	_ = pos
	return body
}

// parseBlockStmts parses statements up to the closing `}` (already
// positioned after the opening `{`) and folds them into one Comma (a lone
// statement is returned as is, an empty block as a Nop), gating
// each statement on the innermost loop's `live` flag (if any) so that a
// break/continue anywhere earlier in the same iteration — at any nesting
// depth — stops the rest of the block from running.
func (p *Parser) parseBlockStmts() Expr {
	c := &Comma{}
	for !p.matchSym("}") {
		if s := p.parseBlockItem(); s != nil {
			c.Add(p.gateLive(s))
		}
	}
	if len(c.Subs) == 0 {
		return &Nop{}
	}
	if len(c.Subs) == 1 {
		return c.Subs[0]
	}
	return c
}

// gateLive wraps s so it only runs while the innermost enclosing loop's
// `live` flag is still set; outside any loop it returns s unchanged. Used
// at every block nesting level so a break/continue's effect reaches every
// statement textually after it in the same iteration, not just the ones
// left at the loop body's own top level.
func (p *Parser) gateLive(s Expr) Expr {
	if len(p.loop) == 0 {
		return s
	}
	ctx := p.loop[len(p.loop)-1]
	return &Binary{Op: LAnd, Left: &Ident{Id: ctx.live}, Right: (&Comma{}).Add(s).Add(&Number{Value: 1})}
}

// parseBlockItem parses either a local declaration or a statement.
func (p *Parser) parseBlockItem() Expr {
	p.lex.Push()
	p.matchKeyword("static")
	p.skipQualifiers()
	if t, ok := p.parseType(false); ok {
		p.lex.Discard()
		return p.parseLocalDecls(t)
	}
	p.lex.Pop()
	return p.parseStmt()
}

func (p *Parser) parseLocalDecls(base types.Type) Expr {
	c := &Comma{}
	for {
		name, pos := p.expectIdent()
		t := p.parseArraySuffix(base)
		if _, ok := p.b.lookup(name); ok {
			p.fatal(pos, "redefinition of `%s`", name)
		}
		id, _ := p.b.declareVar(name, t)
		if p.matchSym("=") {
			init := p.parseAssignment()
			c.Add(&Copy{Source: init, Destination: &Ident{Id: id}})
		}
		if !p.matchSym(",") {
			break
		}
	}
	p.expectSym(";")
	if len(c.Subs) == 0 {
		return &Nop{}
	}
	return c
}

func (p *Parser) parseStmt() Expr {
	switch {
	case p.matchSym("{"):
		p.b.push()
		s := p.parseBlockStmts()
		p.b.pop()
		return s

	case p.matchSym(";"):
		return &Nop{}

	case p.matchKeyword("if"):
		return p.parseIf()

	case p.matchKeyword("while"):
		return p.parseWhile()

	case p.matchKeyword("do"):
		return p.parseDoWhile()

	case p.matchKeyword("for"):
		return p.parseFor()

	case p.matchKeyword("return"):
		return p.parseReturn()

	case p.matchKeyword("break"):
		return p.parseBreak()

	case p.matchKeyword("continue"):
		return p.parseContinue()

	default:
		e := p.parseExpr()
		p.expectSym(";")
		return e
	}
}

// parseIf desugars `if (c) t [else f]` into `(c && (t, 1)) || f` (spec.md
// §4.2's literal encoding), discarding the overall value.
func (p *Parser) parseIf() Expr {
	p.expectSym("(")
	cond := p.parseExpr()
	p.expectSym(")")
	thenE := p.parseStmt()
	var elseE Expr = &Nop{}
	if p.matchKeyword("else") {
		elseE = p.parseStmt()
	}
	return desugarIfElse(cond, thenE, elseE)
}

func desugarIfElse(cond, thenE, elseE Expr) Expr {
	truthy := (&Comma{}).Add(thenE).Add(&Number{Value: 1})
	return &Binary{Op: LOr, Left: &Binary{Op: LAnd, Left: cond, Right: truthy}, Right: elseE}
}

func (p *Parser) parseWhile() Expr {
	p.expectSym("(")
	cond := p.parseExpr()
	p.expectSym(")")
	ctx := p.pushLoop()
	body := p.parseLoopBody(p.parseStmt)
	p.popLoop()
	return (&Comma{}).Add(p.initBrk(ctx)).Add(p.gatedLoop(ctx, cond, body))
}

// parseDoWhile desugars `do s while (c)` into `Comma(s, Loop(c, s))`
// (spec.md §4.2), sharing the same parsed Expr value for both occurrences
// of s rather than re-parsing it. IR lowering still walks s at both
// occurrences, so the body appears twice in the lowered graph: once for the
// unconditional first pass and once as the Loop's body. `brk` is armed before the
// first (unconditional) execution of s, so a `break` inside that first
// pass still prevents the Loop from ever running.
func (p *Parser) parseDoWhile() Expr {
	ctx := p.pushLoop()
	body := p.parseLoopBody(p.parseStmt)
	p.popLoop()
	p.matchKeyword("while")
	p.expectSym("(")
	cond := p.parseExpr()
	p.expectSym(")")
	p.expectSym(";")
	return (&Comma{}).Add(p.initBrk(ctx)).Add(body).Add(p.gatedLoop(ctx, cond, body))
}

// parseFor desugars `for (init; cond; incr) body` into
// `init; brk=1; Loop(brk && cond, (live=1, guardedBody, brk && (incr,1)))`.
func (p *Parser) parseFor() Expr {
	p.expectSym("(")
	p.b.push()

	var init Expr = &Nop{}
	if !p.isSym(";") {
		p.lex.Push()
		p.matchKeyword("static")
		if t, ok := p.parseType(false); ok {
			p.lex.Discard()
			init = p.parseLocalDeclsNoSemi(t)
		} else {
			p.lex.Pop()
			init = p.parseExpr()
		}
	}
	p.expectSym(";")

	var cond Expr = &Number{Value: 1}
	if !p.isSym(";") {
		cond = p.parseExpr()
	}
	p.expectSym(";")

	var incr Expr = &Nop{}
	if !p.isSym(")") {
		incr = p.parseExpr()
	}
	p.expectSym(")")

	ctx := p.pushLoop()
	body := p.parseLoopBody(p.parseStmt)
	guardedIncr := &Binary{Op: LAnd, Left: &Ident{Id: ctx.brk}, Right: (&Comma{}).Add(incr).Add(&Number{Value: 1})}
	full := (&Comma{}).Add(body).Add(guardedIncr)
	loop := (&Comma{}).Add(p.initBrk(ctx)).Add(p.gatedLoop(ctx, cond, full))
	p.popLoop()
	p.b.pop()
	return (&Comma{}).Add(init).Add(loop)
}

func (p *Parser) parseLocalDeclsNoSemi(base types.Type) Expr {
	c := &Comma{}
	for {
		name, pos := p.expectIdent()
		t := p.parseArraySuffix(base)
		if _, ok := p.b.lookup(name); ok {
			p.fatal(pos, "redefinition of `%s`", name)
		}
		id, _ := p.b.declareVar(name, t)
		if p.matchSym("=") {
			init := p.parseAssignment()
			c.Add(&Copy{Source: init, Destination: &Ident{Id: id}})
		}
		if !p.matchSym(",") {
			break
		}
	}
	if len(c.Subs) == 0 {
		return &Nop{}
	}
	return c
}

// pushLoop allocates the live/brk flags for a new innermost loop and pushes
// its context; the body must be parsed with it active so nested
// break/continue statements reach it.
func (p *Parser) pushLoop() *loopCtx {
	ctx := &loopCtx{live: p.b.temp(types.U16), brk: p.b.temp(types.U16)}
	p.loop = append(p.loop, ctx)
	return ctx
}

func (p *Parser) popLoop() { p.loop = p.loop[:len(p.loop)-1] }

// parseLoopBody parses the body statement and resets `live` to 1 at the top
// of every iteration. The per-statement gating that makes break/continue
// actually skip the rest of the iteration happens in parseBlockStmts, which
// applies to every block nested inside the body as well as the body's own
// top level (SPEC_FULL.md §3: break/continue desugaring).
func (p *Parser) parseLoopBody(parse func() Expr) Expr {
	ctx := p.loop[len(p.loop)-1]
	raw := parse()
	return (&Comma{}).Add(&Copy{Source: &Number{Value: 1}, Destination: &Ident{Id: ctx.live}}).Add(raw)
}

func (p *Parser) initBrk(ctx *loopCtx) Expr {
	return &Copy{Source: &Number{Value: 1}, Destination: &Ident{Id: ctx.brk}}
}

func (p *Parser) gatedLoop(ctx *loopCtx, cond, body Expr) Expr {
	gatedCond := &Binary{Op: LAnd, Left: &Ident{Id: ctx.brk}, Right: cond}
	return &Loop{Cond: gatedCond, Body: body}
}

func (p *Parser) parseBreak() Expr {
	pos := p.cur().Pos
	p.expectSym(";")
	if len(p.loop) == 0 {
		p.fatal(pos, "`break` statement not within a loop")
	}
	ctx := p.loop[len(p.loop)-1]
	return (&Comma{}).
		Add(&Copy{Source: &Number{Value: 0}, Destination: &Ident{Id: ctx.live}}).
		Add(&Copy{Source: &Number{Value: 0}, Destination: &Ident{Id: ctx.brk}})
}

func (p *Parser) parseContinue() Expr {
	pos := p.cur().Pos
	p.expectSym(";")
	if len(p.loop) == 0 {
		p.fatal(pos, "`continue` statement not within a loop")
	}
	ctx := p.loop[len(p.loop)-1]
	return &Copy{Source: &Number{Value: 0}, Destination: &Ident{Id: ctx.live}}
}

func (p *Parser) parseReturn() Expr {
	var e Expr = &Nop{}
	if !p.isSym(";") {
		e = p.parseExpr()
	}
	p.expectSym(";")
	return &Return{Inner: e}
}

// ---- expressions: precedence climbing --------------------------------------
//
// comma > assignment (right-assoc) > ternary > || > && > | > ^ > & >
// equality > relational > shift > additive > multiplicative > prefix >
// postfix > primary (spec.md §4.2).

func (p *Parser) parseExpr() Expr { return p.parseComma() }

func (p *Parser) parseComma() Expr {
	e := p.parseAssignment()
	for p.matchSym(",") {
		e2 := p.parseAssignment()
		e = (&Comma{}).Add(e).Add(e2)
	}
	return e
}

var compoundOps = map[string]BinOp{
	"+=": Add, "-=": Sub, "*=": Mul, "/=": Div, "%=": Mod,
	"&=": And, "|=": Or, "^=": Xor, "<<=": Shl, ">>=": Shr,
}

func (p *Parser) parseAssignment() Expr {
	e := p.parseTernary()
	t := p.cur()
	if t.Kind == token.Symbol && t.SVal == "=" {
		if !IsLvalue(e) {
			p.fatal(t.Pos, "lvalue required as left operand of assignment")
		}
		p.lex.Next()
		rhs := p.parseAssignment()
		return &Copy{Source: rhs, Destination: e}
	}
	if op, ok := compoundOps[t.SVal]; ok && t.Kind == token.Symbol {
		if !IsLvalue(e) {
			p.fatal(t.Pos, "lvalue required as left operand of assignment")
		}
		p.lex.Next()
		rhs := p.parseAssignment()
		addr, deref := p.addressOnce(e)
		return (&Comma{}).Add(addr).Add(&Copy{
			Source:      p.scaledBinary(op, deref, rhs),
			Destination: deref,
		})
	}
	return e
}

// addressOnce takes the address of lvalue e into a fresh pointer temp, so a
// compound-assignment or increment/decrement evaluates e's address exactly
// once even if e has side effects (e.g. `a[i++] += 1`). Returns the Copy
// that stores the address and a Deref of the temp standing in for e from
// then on. A plain identifier has nothing to evaluate twice and is not
// addressed: its setup is a Nop and e itself stands for it.
func (p *Parser) addressOnce(e Expr) (setup Expr, derefed Expr) {
	if _, ok := e.(*Ident); ok {
		return &Nop{}, e
	}
	elemType := ResolveType(e, p.fn, p.unit)
	ptrTemp := p.b.temp(types.Ptr{Elem: elemType})
	addr := &AddrOf{Inner: e}
	setup = &Copy{Source: addr, Destination: &Ident{Id: ptrTemp}}
	derefed = &Deref{Inner: &Ident{Id: ptrTemp}}
	return setup, derefed
}

// scaledBinary builds e1 `op` e2, scaling an integer operand by the
// pointee size when op is pointer arithmetic (spec.md §4.2's pointer/int
// operand matrix), matching ordinary C pointer-arithmetic semantics.
func (p *Parser) scaledBinary(op BinOp, e1, e2 Expr) Expr {
	e1, t1 := decayArray(e1, ResolveType(e1, p.fn, p.unit))
	e2, t2 := decayArray(e2, ResolveType(e2, p.fn, p.unit))
	if !CheckBinaryOperands(op, t1, t2) {
		p.fatal(e1.Pos(), "invalid operands to binary `%s` (have `%s` and `%s`)", op, t1, t2)
	}
	if op == Add || op == Sub {
		if p1, ok := t1.(types.Ptr); ok {
			if p2, ok := t2.(types.Ptr); ok {
				// pointer - pointer: element distance.
				diff := &Binary{Op: Sub, Left: e1, Right: e2}
				return &Binary{Op: Div, Left: diff, Right: &Number{Value: int64(p2.Elem.Sizeof())}}
			}
			if p1.Elem.Sizeof() > 1 {
				e2 = &Binary{Op: Mul, Left: e2, Right: &Number{Value: int64(p1.Elem.Sizeof())}}
			}
		} else if p2, ok := t2.(types.Ptr); ok && op == Add {
			if p2.Elem.Sizeof() > 1 {
				e1 = &Binary{Op: Mul, Left: e1, Right: &Number{Value: int64(p2.Elem.Sizeof())}}
			}
		}
	}
	return &Binary{Op: op, Left: e1, Right: e2}
}

// decayArray converts an array-typed expression into a pointer to its
// first element, the way it is used everywhere outside of `sizeof`/`&`
// (spec.md §4.2 pointer/int operand matrix; array parameters already
// decay at declaration time in parseParamList).
func decayArray(e Expr, t types.Type) (Expr, types.Type) {
	if arr, ok := t.(types.Array); ok {
		return &AddrOf{Inner: e}, types.Ptr{Elem: arr.Elem}
	}
	return e, t
}

// parseTernary desugars `c ? y : z` into an if/else assigning into a fresh
// temporary, then yields it — preserving y/z's actual value, unlike the
// statement-level if/else encoding which discards it (spec.md §4.2).
func (p *Parser) parseTernary() Expr {
	cond := p.parseLogicalOr()
	if !p.matchSym("?") {
		return cond
	}
	thenE := p.parseExpr()
	p.expectSym(":")
	elseE := p.parseAssignment()

	rt := ResolveType(thenE, p.fn, p.unit)
	tmp := p.b.temp(rt)
	assignThen := &Copy{Source: thenE, Destination: &Ident{Id: tmp}}
	assignElse := &Copy{Source: elseE, Destination: &Ident{Id: tmp}}
	ifExpr := desugarIfElse(cond, assignThen, assignElse)
	return (&Comma{}).Add(ifExpr).Add(&Ident{Id: tmp})
}

func (p *Parser) parseLogicalOr() Expr {
	e := p.parseLogicalAnd()
	for p.matchSym("||") {
		e2 := p.parseLogicalAnd()
		e = &Binary{Op: LOr, Left: e, Right: e2}
	}
	return e
}

func (p *Parser) parseLogicalAnd() Expr {
	e := p.parseBitOr()
	for p.matchSym("&&") {
		e2 := p.parseBitOr()
		e = &Binary{Op: LAnd, Left: e, Right: e2}
	}
	return e
}

func (p *Parser) parseBitOr() Expr {
	e := p.parseBitXor()
	for p.isSym("|") {
		p.lex.Next()
		e2 := p.parseBitXor()
		e = p.scaledBinary(Or, e, e2)
	}
	return e
}

func (p *Parser) parseBitXor() Expr {
	e := p.parseBitAnd()
	for p.isSym("^") {
		p.lex.Next()
		e2 := p.parseBitAnd()
		e = p.scaledBinary(Xor, e, e2)
	}
	return e
}

func (p *Parser) parseBitAnd() Expr {
	e := p.parseEquality()
	for p.isSym("&") {
		p.lex.Next()
		e2 := p.parseEquality()
		e = p.scaledBinary(And, e, e2)
	}
	return e
}

func (p *Parser) parseEquality() Expr {
	e := p.parseRelational()
	for {
		switch {
		case p.matchSym("=="):
			e = &Binary{Op: Eq, Left: e, Right: p.parseRelational()}
		case p.matchSym("!="):
			e = &Binary{Op: Ne, Left: e, Right: p.parseRelational()}
		default:
			return e
		}
	}
}

func (p *Parser) parseRelational() Expr {
	e := p.parseShift()
	for {
		switch {
		case p.matchSym("<="):
			e = &Binary{Op: Le, Left: e, Right: p.parseShift()}
		case p.matchSym(">="):
			e = &Binary{Op: Ge, Left: e, Right: p.parseShift()}
		case p.isSym("<"):
			p.lex.Next()
			e = &Binary{Op: Lt, Left: e, Right: p.parseShift()}
		case p.isSym(">"):
			p.lex.Next()
			e = &Binary{Op: Gt, Left: e, Right: p.parseShift()}
		default:
			return e
		}
	}
}

func (p *Parser) parseShift() Expr {
	e := p.parseAdditive()
	for {
		switch {
		case p.matchSym("<<"):
			e = p.scaledBinary(Shl, e, p.parseAdditive())
		case p.matchSym(">>"):
			e = p.scaledBinary(Shr, e, p.parseAdditive())
		default:
			return e
		}
	}
}

func (p *Parser) parseAdditive() Expr {
	e := p.parseMultiplicative()
	for {
		switch {
		case p.isSym("+"):
			p.lex.Next()
			e = p.scaledBinary(Add, e, p.parseMultiplicative())
		case p.isSym("-"):
			p.lex.Next()
			e = p.scaledBinary(Sub, e, p.parseMultiplicative())
		default:
			return e
		}
	}
}

func (p *Parser) parseMultiplicative() Expr {
	e := p.parsePrefix()
	for {
		switch {
		case p.isSym("*"):
			p.lex.Next()
			e = p.scaledBinary(Mul, e, p.parsePrefix())
		case p.isSym("/"):
			p.lex.Next()
			e = p.scaledBinary(Div, e, p.parsePrefix())
		case p.isSym("%"):
			p.lex.Next()
			e = p.scaledBinary(Mod, e, p.parsePrefix())
		default:
			return e
		}
	}
}

func (p *Parser) parsePrefix() Expr {
	pos := p.cur().Pos

	switch {
	case p.isSym("&"):
		p.lex.Next()
		e := p.parsePrefix()
		if !IsLvalue(e) {
			p.fatal(pos, "lvalue required as unary `&` operand")
		}
		return &AddrOf{base: base{P: expandPos(pos, e.Pos())}, Inner: e}

	case p.isSym("*"):
		p.lex.Next()
		e := p.parsePrefix()
		if _, ok := ResolveType(e, p.fn, p.unit).(types.Ptr); !ok {
			p.fatal(pos, "invalid type argument of unary `*`")
		}
		return &Deref{base: base{P: expandPos(pos, e.Pos())}, Inner: e}

	case p.isSym("!"):
		p.lex.Next()
		e := p.parsePrefix()
		return &Binary{Op: Eq, Left: e, Right: &Number{Value: 0}}

	case p.isSym("~"):
		p.lex.Next()
		e := p.parsePrefix()
		return &Binary{Op: Xor, Left: e, Right: &Number{Value: -1}}

	case p.isSym("-"):
		p.lex.Next()
		e := p.parsePrefix()
		return &Binary{Op: Sub, Left: &Number{Value: 0}, Right: e}

	case p.isSym("++"), p.isSym("--"):
		isInc := p.isSym("++")
		p.lex.Next()
		e := p.parsePrefix()
		if !IsLvalue(e) {
			p.fatal(pos, "lvalue required as increment/decrement operand")
		}
		op := Sub
		if isInc {
			op = Add
		}
		setup, deref := p.addressOnce(e)
		upd := &Copy{Source: p.scaledBinary(op, deref, &Number{Value: 1}), Destination: deref}
		return (&Comma{}).Add(setup).Add(upd)

	case p.matchKeyword("sizeof"):
		return p.parseSizeof()
	}

	// Cast: `(type) expr`, distinguished from a parenthesized expression by
	// speculative lookahead (compiler/parser.py's push/discard/pop dance).
	if p.isSym("(") {
		p.lex.Push()
		p.lex.Next()
		if t, ok := p.parseType(false); ok {
			p.lex.Discard()
			p.expectSym(")")
			inner := p.parsePrefix()
			return &castWrap{base: base{P: expandPos(pos, inner.Pos())}, to: t, Inner: inner}
		}
		p.lex.Pop()
	}

	return p.parsePostfix()
}

// castWrap implements a C-style cast. It is not part of the orthogonal AST
// kernel: ResolveType and the optimizer both see straight through it to
// Inner, since this ISA's only scalar representation is one 16-bit word and
// every cast among Int/Ptr variants is a pure reinterpretation with no
// instructions to emit (spec.md §4.2, cast handling).
type castWrap struct {
	base
	to    types.Type
	Inner Expr
}

func (c *castWrap) exprNode()    {}
func (c *castWrap) Unwrap() Expr { return c.Inner }

func (p *Parser) parseSizeof() Expr {
	pos := p.cur().Pos
	if p.isSym("(") {
		p.lex.Push()
		p.lex.Next()
		if t, ok := p.parseType(false); ok {
			p.lex.Discard()
			p.expectSym(")")
			return &Number{base: base{P: pos}, Value: int64(t.Sizeof())}
		}
		p.lex.Pop()
	}
	e := p.parsePrefix()
	t := ResolveType(e, p.fn, p.unit)
	return &Number{base: base{P: expandPos(pos, e.Pos())}, Value: int64(t.Sizeof())}
}

func (p *Parser) parsePostfix() Expr {
	e := p.parsePrimary()
	for {
		switch {
		case p.isSym("["):
			p.lex.Next()
			idx := p.parseExpr()
			end := p.expectSym("]")
			addr := p.scaledBinary(Add, e, idx)
			e = &Deref{base: base{P: expandPos(e.Pos(), end)}, Inner: addr}

		case p.isSym("("):
			p.lex.Next()
			var args []Expr
			if !p.isSym(")") {
				for {
					args = append(args, p.parseAssignment())
					if !p.matchSym(",") {
						break
					}
				}
			}
			end := p.expectSym(")")
			e = &Call{base: base{P: expandPos(e.Pos(), end)}, Callee: e, Args: args}

		case p.isSym("++"), p.isSym("--"):
			isInc := p.isSym("++")
			if !IsLvalue(e) {
				p.fatal(p.cur().Pos, "lvalue required as increment/decrement operand")
			}
			p.lex.Next()
			op := Sub
			if isInc {
				op = Add
			}
			t := ResolveType(e, p.fn, p.unit)
			old := p.b.temp(t)
			setup, deref := p.addressOnce(e)
			saveOld := &Copy{Source: deref, Destination: &Ident{Id: old}}
			upd := &Copy{Source: p.scaledBinary(op, &Ident{Id: old}, &Number{Value: 1}), Destination: deref}
			e = (&Comma{}).Add(setup).Add(saveOld).Add(upd).Add(&Ident{Id: old})

		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() Expr {
	t := p.cur()
	switch t.Kind {
	case token.Int:
		p.lex.Next()
		return &Number{base: base{P: t.Pos}, Value: t.IVal}

	case token.Ident:
		p.lex.Next()
		id, ok := p.resolveIdent(t.SVal)
		if !ok {
			p.fatal(t.Pos, "use of undeclared identifier `%s`", t.SVal)
		}
		return &Ident{base: base{P: t.Pos}, Id: id}

	case token.Str:
		p.lex.Next()
		return &String{base: base{P: t.Pos}, Value: t.SVal}

	case token.Symbol:
		if t.SVal == "(" {
			p.lex.Next()
			e := p.parseExpr()
			p.expectSym(")")
			return e
		}
	}
	p.fatal(t.Pos, "expected expression, got %s", t)
	return nil
}

// resolveIdent looks up name as a local/parameter first, then as a
// function, matching the original's single flat symbol table but split
// across the two scopes this package actually has.
func (p *Parser) resolveIdent(name string) (Identifier, bool) {
	if p.b != nil {
		if id, ok := p.b.lookup(name); ok {
			return id, true
		}
		for i, pn := range p.fn.Params {
			if pn == name {
				return Identifier{Role: RoleParameter, Name: name, Index: i}, true
			}
		}
	}
	for i, f := range p.unit.Funcs {
		if f.Name == name {
			return Identifier{Role: RoleFunction, Name: name, Index: i}, true
		}
	}
	for i, g := range p.unit.Globals {
		if g.Name == name {
			return Identifier{Role: RoleGlobal, Name: name, Index: i}, true
		}
	}
	return Identifier{}, false
}
