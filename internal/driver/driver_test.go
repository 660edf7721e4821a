package driver

import (
	"strings"
	"testing"
)

func TestCompileC_ProducesListingAndAssembledObject(t *testing.T) {
	res, err := CompileC(`
		int add(int a, int b) { return a + b; }
		int main() { return add(1, 2); }
	`, "<test>")
	if err != nil {
		t.Fatalf("CompileC error: %v", err)
	}
	text := res.Listing.String()
	for _, want := range []string{"add:", "main:", "JSR add"} {
		if !strings.Contains(text, want) {
			t.Fatalf("want listing to contain %q, got:\n%s", want, text)
		}
	}
	if res.Object == nil || len(res.Object.Words) == 0 {
		t.Fatal("want a non-empty assembled object")
	}
	if _, ok := res.Object.Symbols["main"]; !ok {
		t.Fatalf("want `main` defined in the object's symbol table, got %v", res.Object.Symbols)
	}
}

func TestCompileC_ParseErrorIsReported(t *testing.T) {
	if _, err := CompileC(`int main( { return 0; }`, "<test>"); err == nil {
		t.Fatal("want a parse error for malformed source")
	}
}

func TestAssembleText_RoundTripsCompiledListing(t *testing.T) {
	compiled, err := CompileC(`int main() { return 1 + 2; }`, "<test>")
	if err != nil {
		t.Fatalf("CompileC error: %v", err)
	}
	text := compiled.Listing.String()

	res, err := AssembleText(text, "<test.dasm>")
	if err != nil {
		t.Fatalf("AssembleText error: %v\nlisting:\n%s", err, text)
	}
	if len(res.Object.Words) != len(compiled.Object.Words) {
		t.Fatalf("want %d re-assembled words, got %d", len(compiled.Object.Words), len(res.Object.Words))
	}
	for i := range res.Object.Words {
		if res.Object.Words[i] != compiled.Object.Words[i] {
			t.Fatalf("word %d: want %#x, got %#x", i, compiled.Object.Words[i], res.Object.Words[i])
		}
	}
}

func TestAssembleText_HandwrittenListingAssembles(t *testing.T) {
	src := strings.Join([]string{
		".global start",
		"start:",
		"SET A, 5",
		"SET B, [start+1]",
		"ADD A, B",
		"SET PC, POP",
		".dw 0x0001, 0x0002",
		".ascii z'hi\\n'",
	}, "\n")
	res, err := AssembleText(src, "<hand.dasm>")
	if err != nil {
		t.Fatalf("AssembleText error: %v", err)
	}
	if _, ok := res.Object.Symbols["start"]; !ok {
		t.Fatalf("want `start` defined, got %v", res.Object.Symbols)
	}
}

func TestAssembleText_UnknownDirectiveErrors(t *testing.T) {
	if _, err := AssembleText(".bogus 1, 2\n", "<bad.dasm>"); err == nil {
		t.Fatal("want an error for an unrecognized instruction/directive line")
	}
}
