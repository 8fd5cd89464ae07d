package tlb

import (
	"github.com/sarchlab/pagewalk/mem/vm/tlb/internal"
)

// A Builder can build TLBs
type Builder struct {
	numEntries int
}

// MakeBuilder returns a Builder
func MakeBuilder() Builder {
	return Builder{
		numEntries: 32,
	}
}

// WithNumEntries sets the number of entries in the TLB. A TLB with 0 entries
// misses on every lookup.
func (b Builder) WithNumEntries(n int) Builder {
	b.numEntries = n
	return b
}

// Build creates a new TLB
func (b Builder) Build(name string) *TLB {
	if b.numEntries < 0 {
		panic("number of TLB entries must not be negative")
	}

	return &TLB{
		name:       name,
		numEntries: b.numEntries,
		set:        internal.NewSet(b.numEntries),
	}
}
