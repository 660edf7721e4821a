package driver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gocompilers/dcc16/internal/backend"
)

// ParseListing reads back the textual dialect backend.Listing.String()
// emits (spec.md §6: "one directive per line ... labels have a trailing
// `:`"), for the `.dasm`/`.asm` direct-to-assembler entry point. It only
// needs to understand this compiler's own output dialect, not a
// general-purpose assembly syntax (DESIGN.md).
func ParseListing(src, filename string) (*backend.Listing, error) {
	l := &backend.Listing{}
	for n, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		item, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, n+1, err)
		}
		l.Items = append(l.Items, item)
	}
	return l, nil
}

func parseLine(line string) (backend.Item, error) {
	switch {
	case strings.HasPrefix(line, ".global "):
		return backend.Global{Name: strings.TrimSpace(line[len(".global "):])}, nil
	case strings.HasPrefix(line, ".extern "):
		return backend.Extern{Name: strings.TrimSpace(line[len(".extern "):])}, nil
	case strings.HasPrefix(line, ".dw "):
		return parseData(line[len(".dw "):])
	case strings.HasPrefix(line, ".ascii z"):
		return parseAscii(line[len(".ascii z"):])
	case strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " \t,[]"):
		return backend.LabelDef{Name: strings.TrimSuffix(line, ":")}, nil
	default:
		return parseInstr(line)
	}
}

func parseData(rest string) (backend.Item, error) {
	var words []uint16
	for _, f := range strings.Split(rest, ",") {
		f = strings.TrimSpace(f)
		n, err := strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf(".dw operand %q: %w", f, err)
		}
		words = append(words, uint16(n))
	}
	return backend.Data{Words: words}, nil
}

func parseAscii(rest string) (backend.Item, error) {
	if len(rest) < 2 || rest[0] != '\'' || rest[len(rest)-1] != '\'' {
		return nil, fmt.Errorf(".ascii operand %q is not a quoted string", rest)
	}
	body := rest[1 : len(rest)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] != '\\' || i+1 >= len(body) {
			sb.WriteByte(body[i])
			continue
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\', '\'':
			sb.WriteByte(body[i])
		default:
			sb.WriteByte(body[i])
		}
	}
	return backend.Ascii{Value: sb.String()}, nil
}

func parseInstr(line string) (backend.Item, error) {
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return nil, fmt.Errorf("malformed instruction line %q", line)
	}
	mnem := line[:sp]
	operands := strings.Split(strings.TrimSpace(line[sp+1:]), ",")
	for i := range operands {
		operands[i] = strings.TrimSpace(operands[i])
	}
	switch len(operands) {
	case 1:
		a, err := parseOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return backend.Instr{Mnem: mnem, A: a}, nil
	case 2:
		b, err := parseOperand(operands[0])
		if err != nil {
			return nil, err
		}
		a, err := parseOperand(operands[1])
		if err != nil {
			return nil, err
		}
		return backend.Instr{Mnem: mnem, B: b, A: a, HasB: true}, nil
	default:
		return nil, fmt.Errorf("instruction %q has %d operands, want 1 or 2", line, len(operands))
	}
}

var bareRegs = map[string]bool{
	"A": true, "B": true, "C": true, "X": true, "Y": true, "Z": true, "I": true, "J": true,
	"SP": true, "PC": true, "EX": true, "PUSH": true, "POP": true,
}

func parseOperand(s string) (backend.Operand, error) {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := s[1 : len(s)-1]
		op, err := parseOperandBody(inner)
		if err != nil {
			return backend.Operand{}, err
		}
		op.Indirect = true
		return op, nil
	}
	return parseOperandBody(s)
}

func parseOperandBody(inner string) (backend.Operand, error) {
	if bareRegs[inner] {
		return backend.Operand{Reg: inner}, nil
	}
	if n, err := parseIntLiteral(inner); err == nil {
		return backend.Operand{Imm: n, HasImm: true}, nil
	}
	if head, delta, ok := splitHeadDelta(inner); ok {
		if bareRegs[head] {
			return backend.Operand{Reg: head, Delta: delta}, nil
		}
		return backend.Operand{Symbol: head, Delta: delta}, nil
	}
	return backend.Operand{Symbol: inner}, nil
}

// splitHeadDelta splits "J-3" into ("J", -3) or "label+1" into ("label", 1).
// The sign is kept attached to delta's digits so strconv.Atoi parses it
// directly.
func splitHeadDelta(s string) (head string, delta int, ok bool) {
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			n, err := strconv.Atoi(s[i:])
			if err != nil {
				return "", 0, false
			}
			return s[:i], n, true
		}
	}
	return "", 0, false
}

func parseIntLiteral(s string) (int64, error) {
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
