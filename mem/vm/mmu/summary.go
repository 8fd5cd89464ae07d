package mmu

// Summary holds the statistics of a run.
type Summary struct {
	PageSize           uint64
	CacheHits          uint64
	PageTableHits      uint64
	AddressesProcessed uint64
	FramesAllocated    uint64
	PageTableEntries   uint64
	PageTableNodes     uint64
}

// Hits returns the number of translations that did not allocate a frame.
func (s Summary) Hits() uint64 {
	return s.CacheHits + s.PageTableHits
}

// Misses returns the number of translations that allocated a frame.
func (s Summary) Misses() uint64 {
	return s.AddressesProcessed - s.Hits()
}

// HitPercent returns the share of hits in percent. It returns false if no
// address has been processed.
func (s Summary) HitPercent() (float64, bool) {
	if s.AddressesProcessed == 0 {
		return 0, false
	}

	return float64(s.Hits()) / float64(s.AddressesProcessed) * 100, true
}

// MissPercent returns the share of misses in percent. It returns false if no
// address has been processed.
func (s Summary) MissPercent() (float64, bool) {
	hit, ok := s.HitPercent()
	if !ok {
		return 0, false
	}

	return 100 - hit, true
}
