package token

import "testing"

func TestLexer_Basic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Kind
	}{
		{"empty", "", []Kind{Eof}},
		{"ident", "foo_bar", []Kind{Ident, Eof}},
		{"keyword", "while", []Kind{Keyword, Eof}},
		{"int dec", "123", []Kind{Int, Eof}},
		{"int hex", "0x1F", []Kind{Int, Eof}},
		{"int bin", "0b101", []Kind{Int, Eof}},
		{"int oct", "0755", []Kind{Int, Eof}},
		{"char", "'a'", []Kind{Int, Eof}},
		{"symbols", "+= << >>=", []Kind{Symbol, Symbol, Symbol, Eof}},
		{"comment line", "1 // comment\n2", []Kind{Int, Int, Eof}},
		{"comment block", "1 /* c\nomment */ 2", []Kind{Int, Int, Eof}},
		{"float", "3.5", []Kind{Float, Eof}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.src, "<test>", nil)
			for i, want := range tt.want {
				if l.Current().Kind != want {
					t.Fatalf("token %d: got %v, want %v", i, l.Current().Kind, want)
				}
				if want != Eof {
					l.Next()
				}
			}
		})
	}
}

func TestLexer_IntValues(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"0", 0},
		{"42", 42},
		{"0x2A", 42},
		{"0b101010", 42},
		{"052", 42},
		{"'*'", 42},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			l := New(tt.src, "<test>", nil)
			if l.Current().IVal != tt.want {
				t.Errorf("got %d, want %d", l.Current().IVal, tt.want)
			}
		})
	}
}

// TestLexer_RoundTrip verifies that reconstructing the source region from
// each token's position yields exactly the token's lexeme (spec.md §8 #1).
func TestLexer_RoundTrip(t *testing.T) {
	src := "int add(int a, int b) { return a + b; }"
	l := New(src, "<test>", nil)
	lines := []string{src}
	for l.Current().Kind != Eof {
		pos := l.Current().Pos
		if pos.StartLine != 0 || pos.EndLine != 0 {
			t.Fatalf("single-line source produced multi-line token position: %+v", pos)
		}
		lexeme := lines[pos.StartLine][pos.StartCol:pos.EndCol]
		switch l.Current().Kind {
		case Ident, Keyword, Symbol:
			if lexeme != l.Current().SVal {
				t.Errorf("lexeme %q != token text %q", lexeme, l.Current().SVal)
			}
		}
		l.Next()
	}
}

func TestLexer_PushPopReplays(t *testing.T) {
	l := New("a b c", "<test>", nil)
	if l.Current().SVal != "a" {
		t.Fatalf("want a, got %v", l.Current())
	}
	l.Push()
	l.Next() // b
	l.Next() // c
	if l.Current().SVal != "c" {
		t.Fatalf("want c, got %v", l.Current())
	}
	l.Pop()
	if l.Current().SVal != "a" {
		t.Fatalf("pop should restore to a, got %v", l.Current())
	}
	if got := l.Next().SVal; got != "b" {
		t.Fatalf("replay should give b, got %v", got)
	}
	if got := l.Next().SVal; got != "c" {
		t.Fatalf("replay should give c, got %v", got)
	}
}

func TestLexer_Discard(t *testing.T) {
	l := New("a b", "<test>", nil)
	l.Push()
	l.Next()
	l.Discard()
	if l.Current().SVal != "b" {
		t.Fatalf("discard should keep current position, got %v", l.Current())
	}
}

func TestLexer_NestedPushPop(t *testing.T) {
	l := New("a b c d", "<test>", nil)
	l.Push()
	l.Next() // b
	l.Push()
	l.Next() // c
	l.Next() // d
	l.Pop()  // back to b
	if l.Current().SVal != "b" {
		t.Fatalf("inner pop should restore to b, got %v", l.Current())
	}
	l.Pop() // back to a
	if l.Current().SVal != "a" {
		t.Fatalf("outer pop should restore to a, got %v", l.Current())
	}
}
