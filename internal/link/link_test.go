package link

import (
	"testing"

	"github.com/gocompilers/dcc16/internal/obj"
)

func TestLink_RebasesLocalRelocsBySize(t *testing.T) {
	a := &obj.Object{
		Words:       []uint16{1, 0}, // word 0 already resolved to a_entry's in-object offset (1)
		LocalRelocs: []int{0},
		Symbols:     map[string]int{"a_entry": 1},
	}
	b := &obj.Object{
		Words:   []uint16{0xBEEF},
		Symbols: map[string]int{"b_entry": 0},
	}
	words, err := Link([]Unit{NewUnit("a.o", a), NewUnit("b.o", b)}, 0)
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if words[0] != 1 {
		t.Fatalf("want local reloc unchanged (still within a.o, base 0), got %d", words[0])
	}
	if words[2] != 0xBEEF {
		t.Fatalf("want b.o's word shifted to index 2, got %v", words)
	}
}

func TestLink_GlobalRelocResolvesAcrossObjects(t *testing.T) {
	a := &obj.Object{
		Words:        []uint16{0},
		GlobalRelocs: []obj.GlobalReloc{{Name: "helper", WordIndex: 0}},
	}
	b := &obj.Object{
		Words:   []uint16{0x1111},
		Symbols: map[string]int{"helper": 0},
	}
	words, err := Link([]Unit{NewUnit("a.o", a), NewUnit("b.o", b)}, 0)
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if words[0] != 1 { // helper's address within the combined image
		t.Fatalf("want a.o's reloc patched to helper's combined address 1, got %d", words[0])
	}
}

func TestLink_DuplicateSymbolErrors(t *testing.T) {
	a := &obj.Object{Words: []uint16{0}, Symbols: map[string]int{"main": 0}}
	b := &obj.Object{Words: []uint16{0}, Symbols: map[string]int{"main": 0}}
	if _, err := Link([]Unit{NewUnit("a.o", a), NewUnit("b.o", b)}, 0); err == nil {
		t.Fatal("want an error for the duplicate `main` symbol")
	}
}

func TestLink_UndefinedSymbolErrors(t *testing.T) {
	a := &obj.Object{
		Words:        []uint16{0},
		GlobalRelocs: []obj.GlobalReloc{{Name: "missing", WordIndex: 0}},
	}
	if _, err := Link([]Unit{NewUnit("a.o", a)}, 0); err == nil {
		t.Fatal("want an error for the undefined `missing` symbol")
	}
}

func TestLink_NonzeroBaseShiftsOnlyAddresses(t *testing.T) {
	a := &obj.Object{
		Words:       []uint16{0, 42},
		LocalRelocs: []int{0},
		Symbols:     map[string]int{"entry": 0},
	}
	words, err := Link([]Unit{NewUnit("a.o", a)}, 0x1000)
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if words[0] != 0x1000 {
		t.Fatalf("want the reloc rebased to 0x1000, got %#x", words[0])
	}
	if words[1] != 42 {
		t.Fatalf("want plain data word untouched by the base rebase, got %d", words[1])
	}
}
