package token

import (
	"fmt"
	"strings"

	"github.com/gocompilers/dcc16/internal/diag"
)

// Lexer turns a source string into a Token stream, with a checkpoint/
// restore rewind contract the parser uses for speculative lookahead
// (spec.md §4.1). Grounded on the original tokenizer's push/pop/discard
// trio, reshaped from "queue of already-read tokens plus a stack of
// per-push recordings" into the equivalent Go slices.
type Lexer struct {
	src      string
	filename string
	lines    []string
	line     int
	col      int

	tok Token

	// before holds tokens already produced but not yet re-delivered,
	// queued by a prior pop(). next() drains this before scanning fresh.
	before []Token
	// pushes is a stack of savepoints; each entry records, in order, every
	// token handed out since that push (starting with the token current
	// at push time), so pop() can requeue them onto before.
	pushes [][]Token

	diags *diag.Collector
}

// New creates a Lexer over src and immediately scans the first token, so
// Current() is valid right away (mirroring the original tokenizer's
// constructor behavior of calling next_token() once up front).
func New(src, filename string, diags *diag.Collector) *Lexer {
	l := &Lexer{
		src:      src,
		filename: filename,
		lines:    strings.Split(src, "\n"),
		diags:    diags,
	}
	l.Next()
	return l
}

// Current returns the most recently scanned token.
func (l *Lexer) Current() Token { return l.tok }

func (l *Lexer) sourceLine(n int) string {
	if n < 0 || n >= len(l.lines) {
		return ""
	}
	return l.lines[n]
}

func (l *Lexer) fatal(pos Position, format string, args ...any) {
	diag.Fatal(diag.Diagnostic{
		Kind: diag.Syntax,
		Pos: diag.Position{
			File: l.filename, StartLine: pos.StartLine, StartCol: pos.StartCol,
			EndLine: pos.EndLine, EndCol: pos.EndCol,
		},
		Line:    l.sourceLine(pos.StartLine),
		Message: fmt.Sprintf(format, args...),
	})
}

// Push records a savepoint. Tokens consumed after Push (via Next) are
// queued so a later Pop can replay them.
func (l *Lexer) Push() {
	l.pushes = append(l.pushes, []Token{l.tok})
}

// Pop rewinds consumption back to the last Push: the tokens read since then
// are requeued to be replayed by subsequent Next calls.
func (l *Lexer) Pop() {
	n := len(l.pushes) - 1
	items := l.pushes[n]
	l.pushes = l.pushes[:n]
	l.tok = items[0]
	l.before = append(append([]Token{}, items[1:]...), l.before...)
}

// Discard commits the last Push: the tokens read since then are not
// replayed.
func (l *Lexer) Discard() {
	l.pushes = l.pushes[:len(l.pushes)-1]
}

// Next scans (or replays) the next token, stores it as Current, and returns
// it.
func (l *Lexer) Next() Token {
	if len(l.before) != 0 {
		l.tok = l.before[0]
		l.before = l.before[1:]
	} else {
		l.tok = l.scan()
	}
	if len(l.pushes) != 0 {
		top := len(l.pushes) - 1
		l.pushes[top] = append(l.pushes[top], l.tok)
	}
	return l.tok
}

func (l *Lexer) peekByte(off int) byte {
	if off >= len(l.src) {
		return 0
	}
	return l.src[off]
}

func (l *Lexer) advance(n int) {
	for n > 0 && len(l.src) > 0 {
		if l.src[0] == '\n' {
			l.line++
			l.col = 0
		} else {
			l.col++
		}
		l.src = l.src[1:]
		n--
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\v' || b == '\f'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlpha(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '_'
}

func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }

func (l *Lexer) scan() Token {
	for {
		if len(l.src) > 0 && isSpace(l.src[0]) {
			l.advance(1)
			continue
		}
		if len(l.src) > 1 && l.src[0] == '/' && l.src[1] == '*' {
			l.advance(2)
			for len(l.src) > 0 {
				if len(l.src) > 1 && l.src[0] == '*' && l.src[1] == '/' {
					l.advance(2)
					break
				}
				l.advance(1)
			}
			continue
		}
		if len(l.src) > 1 && l.src[0] == '/' && l.src[1] == '/' {
			l.advance(2)
			for len(l.src) > 0 && l.src[0] != '\n' {
				l.advance(1)
			}
			if len(l.src) > 0 {
				l.advance(1)
			}
			continue
		}
		break
	}

	pos := Position{StartLine: l.line, StartCol: l.col, EndLine: l.line, EndCol: l.col}

	var tok Token
	switch {
	case len(l.src) == 0:
		tok = Token{Kind: Eof, Pos: pos}

	case l.src[0] == '"':
		tok = l.scanString(pos)

	case l.src[0] == '\'':
		l.advance(1)
		if len(l.src) == 0 {
			l.fatal(pos, "unterminated character literal")
		}
		ch := l.src[0]
		l.advance(1)
		if len(l.src) == 0 || l.src[0] != '\'' {
			l.fatal(pos, "expected `'`, got `%c`", l.peekByte(0))
		}
		l.advance(1)
		tok = Token{Kind: Int, Pos: pos, IVal: int64(ch)}

	case isDigit(l.src[0]):
		tok = l.scanNumber(pos)

	case isAlpha(l.src[0]):
		start := l.src
		n := 0
		for n < len(start) && isAlnum(start[n]) {
			n++
		}
		word := start[:n]
		l.advance(n)
		if keywords[word] {
			tok = Token{Kind: Keyword, Pos: pos, SVal: word}
		} else {
			tok = Token{Kind: Ident, Pos: pos, SVal: word}
		}

	case strings.IndexByte(symbolChars, l.src[0]) >= 0:
		tok = l.scanSymbol(pos)

	default:
		l.fatal(pos, "unknown character `%c`", l.src[0])
		return Token{}
	}

	tok.Pos.EndLine = l.line
	tok.Pos.EndCol = l.col
	return tok
}

func (l *Lexer) scanNumber(pos Position) Token {
	base := 10
	digits := "0123456789"
	if l.src[0] == '0' && len(l.src) > 1 {
		switch {
		case l.src[1] == 'x' || l.src[1] == 'X':
			base, digits = 16, "0123456789abcdefABCDEF"
			l.advance(2)
		case l.src[1] == 'b' || l.src[1] == 'B':
			base, digits = 2, "01"
			l.advance(2)
		default:
			base, digits = 8, "01234567"
		}
	}

	var value int64
	for len(l.src) > 0 && strings.IndexByte(digits, l.src[0]) >= 0 {
		value = value*int64(base) + int64(hexVal(l.src[0]))
		l.advance(1)
	}

	// A base-10 integer directly followed by `.` and more digits is a float
	// literal. Floating point is a Non-goal for the elaborator (spec.md §1),
	// but the tokenizer still recognizes the lexeme per spec.md §4.1 so the
	// parser can reject it with a proper diagnostic instead of a lex error.
	if base == 10 && len(l.src) > 1 && l.src[0] == '.' && isDigit(l.src[1]) {
		whole := value
		l.advance(1)
		frac := 0.0
		scale := 0.1
		for len(l.src) > 0 && isDigit(l.src[0]) {
			frac += float64(l.src[0]-'0') * scale
			scale /= 10
			l.advance(1)
		}
		return Token{Kind: Float, Pos: pos, FVal: float64(whole) + frac}
	}

	return Token{Kind: Int, Pos: pos, IVal: value}
}

// scanString scans a double-quoted string literal, processing the same
// backslash escapes the tokenizer accepts in character literals plus the
// common `\n \t \\ \" \0` set.
func (l *Lexer) scanString(pos Position) Token {
	l.advance(1)
	var sb strings.Builder
	for {
		if len(l.src) == 0 {
			l.fatal(pos, "unterminated string literal")
		}
		if l.src[0] == '"' {
			l.advance(1)
			break
		}
		if l.src[0] == '\\' && len(l.src) > 1 {
			esc := l.src[1]
			l.advance(2)
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '\\', '"', '\'':
				sb.WriteByte(esc)
			default:
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(l.src[0])
		l.advance(1)
	}
	return Token{Kind: Str, Pos: pos, SVal: sb.String()}
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	default:
		return 0
	}
}

func (l *Lexer) scanSymbol(pos Position) Token {
	if len(l.src) >= 3 && threeCharSymbols[l.src[:3]] {
		s := l.src[:3]
		l.advance(3)
		return Token{Kind: Symbol, Pos: pos, SVal: s}
	}
	if len(l.src) >= 2 && twoCharSymbols[l.src[:2]] {
		s := l.src[:2]
		l.advance(2)
		return Token{Kind: Symbol, Pos: pos, SVal: s}
	}
	s := l.src[:1]
	l.advance(1)
	return Token{Kind: Symbol, Pos: pos, SVal: s}
}

// Filename returns the name the lexer was constructed with.
func (l *Lexer) Filename() string { return l.filename }

// Line returns the raw text of source line n (0-based), or "" if out of
// range — used by the parser to build diagnostics.
func (l *Lexer) Line(n int) string { return l.sourceLine(n) }
