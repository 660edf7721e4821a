// Package link implements the linker half of spec.md §4.7: it concatenates
// a set of obj.Objects, shifts each one's local relocations by the size of
// everything placed before it, binds every global relocation against the
// combined symbol table, and reports unresolved or duplicate symbols as
// fatal errors (spec.md §7's "internal"/"semantic" error handling: a
// missing or doubly-defined symbol is a linking error, not a crash).
//
// Objects are tagged with a generated UUID (github.com/google/uuid) purely
// for diagnostics: a duplicate-symbol error cites both colliding objects'
// ids, which stay unique even when two units share the same source name
// (e.g. two translation units both named from stdin, or a unit relinked
// after the caller reused a Name string).
package link

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gocompilers/dcc16/internal/obj"
)

// Unit pairs one assembled Object with a human-readable name (typically
// the source file it came from) for error messages.
type Unit struct {
	Name   string
	Object *obj.Object
	id     uuid.UUID
}

// NewUnit tags obj with a fresh diagnostic id.
func NewUnit(name string, o *obj.Object) Unit {
	return Unit{Name: name, Object: o, id: uuid.New()}
}

// Link concatenates every unit's words in order, rebases local relocations,
// binds global relocations against the merged symbol table, and — if base
// is nonzero — rebases every relocation (local and newly-bound global) by
// base, e.g. when the caller wants the image to run starting at a nonzero
// origin address.
func Link(units []Unit, base int) ([]uint16, error) {
	symbols := make(map[string]int, len(units)*4)
	owner := make(map[string]Unit, len(units)*4)
	offsets := make([]int, len(units))

	offset := 0
	for i, u := range units {
		offsets[i] = offset
		for name, addr := range u.Object.Symbols {
			abs := addr + offset
			if prev, dup := symbols[name]; dup {
				first := owner[name]
				return nil, fmt.Errorf("link: duplicate symbol %q defined in %q (id %s, at %d) and %q (id %s, at %d)",
					name, first.Name, first.id, prev, u.Name, u.id, abs)
			}
			symbols[name] = abs
			owner[name] = u
		}
		offset += len(u.Object.Words)
	}

	words := make([]uint16, 0, offset)
	var addrIndices []int // every word index holding a resolved address, for the optional base rebase below
	for i, u := range units {
		start := offsets[i]
		local := make(map[int]bool, len(u.Object.LocalRelocs))
		for _, idx := range u.Object.LocalRelocs {
			local[idx] = true
		}
		for wi, w := range u.Object.Words {
			if local[wi] {
				w = uint16(int(w) + start)
				addrIndices = append(addrIndices, start+wi)
			}
			words = append(words, w)
		}
		for _, gr := range u.Object.GlobalRelocs {
			addr, ok := symbols[gr.Name]
			if !ok {
				return nil, fmt.Errorf("link: undefined symbol %q referenced in %q", gr.Name, u.Name)
			}
			words[start+gr.WordIndex] = uint16(addr)
			addrIndices = append(addrIndices, start+gr.WordIndex)
		}
	}

	if base != 0 {
		for _, idx := range addrIndices {
			words[idx] = uint16(int(words[idx]) + base)
		}
	}

	return words, nil
}
