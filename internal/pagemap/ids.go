package pagemap

import (
	"fmt"
	"hash/fnv"
)

// ElementID derives the short deterministic identifier for an element from
// its role, accessible name and input type. Two structurally identical
// controls collide on purpose; the id is stable across repeated extraction
// of the same unchanged element.
func ElementID(role, label, inputType string) string {
	h := fnv.New32a()
	h.Write([]byte(role))
	h.Write([]byte{'|'})
	h.Write([]byte(label))
	h.Write([]byte{'|'})
	h.Write([]byte(inputType))
	return fmt.Sprintf("el-%08x", h.Sum32())
}
