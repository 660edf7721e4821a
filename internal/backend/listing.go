package backend

import (
	"strings"

	"github.com/klauspost/asmfmt"
)

// Item is one line of the assembly listing the backend produces (spec.md
// §4.7): a directive, a label, or an instruction.
type Item interface {
	itemLine() string
}

type Global struct{ Name string }

func (g Global) itemLine() string { return ".global " + g.Name }

type Extern struct{ Name string }

func (e Extern) itemLine() string { return ".extern " + e.Name }

type LabelDef struct{ Name string }

func (l LabelDef) itemLine() string { return l.Name + ":" }

// Data emits a `.dw` word list (spec.md §4.7).
type Data struct{ Words []uint16 }

func (d Data) itemLine() string {
	var sb strings.Builder
	sb.WriteString(".dw ")
	for i, w := range d.Words {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("0x" + hex4(w))
	}
	return sb.String()
}

// Ascii emits a zero-terminated string literal directive (spec.md §6:
// "`.ascii z'…'`, quoted via the language-neutral string-repr convention").
type Ascii struct{ Value string }

func (a Ascii) itemLine() string { return ".ascii z" + quoteZ(a.Value) }

// Instr is one `MNEM b, a` or `MNEM a` instruction line. B is the zero
// value (nil-equivalent) for one-operand instructions (JSR, IFN's implicit
// skip has two operands, so this only matters for a bare `JSR`-style op).
type Instr struct {
	Mnem    string
	B, A    Operand
	HasB    bool
}

func (i Instr) itemLine() string {
	if i.HasB {
		return i.Mnem + " " + i.B.String() + ", " + i.A.String()
	}
	return i.Mnem + " " + i.A.String()
}

// Listing is the full textual output for one translation unit.
type Listing struct {
	Items []Item
}

func (l *Listing) add(it Item) { l.Items = append(l.Items, it) }

func (l *Listing) global(name string) { l.add(Global{name}) }
func (l *Listing) extern(name string) { l.add(Extern{name}) }
func (l *Listing) label(name string)  { l.add(LabelDef{name}) }
func (l *Listing) data(words []uint16) { l.add(Data{words}) }
func (l *Listing) ascii(s string)      { l.add(Ascii{s}) }

func (l *Listing) op2(mnem string, b, a Operand) { l.add(Instr{Mnem: mnem, B: b, A: a, HasB: true}) }
func (l *Listing) op1(mnem string, a Operand)    { l.add(Instr{Mnem: mnem, A: a}) }

// String renders the listing as one directive/label/instruction per line,
// the dialect spec.md §6 describes (no comments, one directive per line).
func (l *Listing) String() string {
	var sb strings.Builder
	for _, it := range l.Items {
		sb.WriteString(it.itemLine())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Format runs the listing through asmfmt for column alignment (grounded on
// the teacher's own `asmfmt.Format(strings.NewReader(...))` write path).
// asmfmt targets Go's plan9 assembly dialect, not this one, so a formatting
// error just means the input doesn't tokenize the way asmfmt expects;
// callers fall back to the unformatted String() rather than treat it fatal.
func (l *Listing) Format() (string, error) {
	out, err := asmfmt.Format(strings.NewReader(l.String()))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hex4(w uint16) string {
	const digits = "0123456789abcdef"
	return string([]byte{
		digits[(w>>12)&0xF],
		digits[(w>>8)&0xF],
		digits[(w>>4)&0xF],
		digits[w&0xF],
	})
}

// quoteZ renders s using the same escaping the front end's lexer accepts
// in reverse, so the assembler can round-trip it (spec.md §6's
// "language-neutral string-repr convention").
func quoteZ(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
