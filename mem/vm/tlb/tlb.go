// Package tlb provides a fully associative translation lookaside buffer.
package tlb

import (
	"github.com/sarchlab/pagewalk/mem/vm/tlb/internal"
)

// A TLB caches recently used VPN to frame mappings. Entries are evicted in
// least recently used order. The page table keeps the authoritative copy of
// every mapping, so an evicted entry is simply dropped.
type TLB struct {
	name       string
	numEntries int
	set        internal.Set

	evictions uint64
}

// Name returns the name of the TLB.
func (t *TLB) Name() string {
	return t.name
}

// Capacity returns the maximum number of entries the TLB can hold.
func (t *TLB) Capacity() int {
	return t.numEntries
}

// Len returns the number of entries currently held.
func (t *TLB) Len() int {
	return t.set.Len()
}

// Evictions returns the number of entries dropped to make room for others.
func (t *TLB) Evictions() uint64 {
	return t.evictions
}

// Lookup returns the frame cached for the VPN. A hit makes the entry the most
// recently used one.
func (t *TLB) Lookup(vpn uint32) (frame uint32, found bool) {
	return t.set.Lookup(vpn)
}

// Insert caches the mapping. An entry that is already present is replaced
// rather than duplicated.
func (t *TLB) Insert(vpn uint32, frame uint32) {
	if t.set.Update(vpn, frame) {
		t.evictions++
	}
}

// Entries returns the cached VPNs from the least to the most recently used.
func (t *TLB) Entries() []uint32 {
	return t.set.Keys()
}
