// Package internal provides the storage behind a TLB.
package internal

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// A Set holds up to a fixed number of VPN to frame mappings and evicts the
// least recently used one when full.
type Set interface {
	// Lookup returns the frame of the VPN and marks the entry as the most
	// recently used one.
	Lookup(vpn uint32) (frame uint32, found bool)

	// Update inserts or replaces the mapping of the VPN and marks it as the
	// most recently used one. It reports if another entry had to be evicted.
	Update(vpn uint32, frame uint32) (evicted bool)

	// Len returns the number of entries held.
	Len() int

	// Keys returns the VPNs held, from the least to the most recently used.
	Keys() []uint32
}

// NewSet creates a new LRU set with numWays entries. A set with 0 ways never
// holds anything.
func NewSet(numWays int) Set {
	if numWays < 0 {
		panic("number of ways must not be negative")
	}

	if numWays == 0 {
		return emptySet{}
	}

	l, err := simplelru.NewLRU[uint32, uint32](numWays, nil)
	if err != nil {
		panic(err)
	}

	return &lruSet{lru: l}
}

type lruSet struct {
	lru *simplelru.LRU[uint32, uint32]
}

func (s *lruSet) Lookup(vpn uint32) (uint32, bool) {
	return s.lru.Get(vpn)
}

func (s *lruSet) Update(vpn uint32, frame uint32) bool {
	return s.lru.Add(vpn, frame)
}

func (s *lruSet) Len() int {
	return s.lru.Len()
}

func (s *lruSet) Keys() []uint32 {
	return s.lru.Keys()
}

type emptySet struct{}

func (emptySet) Lookup(uint32) (uint32, bool) {
	return 0, false
}

func (emptySet) Update(uint32, uint32) bool {
	return false
}

func (emptySet) Len() int {
	return 0
}

func (emptySet) Keys() []uint32 {
	return nil
}
