package report

import (
	"fmt"
	"io"

	"github.com/sarchlab/pagewalk/mem/vm"
	"github.com/sarchlab/pagewalk/mem/vm/mmu"
)

// Bitmasks prints the mask of every level.
func Bitmasks(w io.Writer, masks []vm.LevelMask) error {
	for _, m := range masks {
		_, err := fmt.Fprintf(w, "level %d mask %08X\n", m.Level, m.Mask)
		if err != nil {
			return err
		}
	}

	return nil
}

// Offset prints the page offset of an address.
func Offset(w io.Writer, offset uint32) error {
	_, err := fmt.Fprintf(w, "%08X\n", offset)
	return err
}

// PageMapping prints the index of each level followed by the frame.
func PageMapping(w io.Writer, indices []uint32, frame uint32) error {
	for _, idx := range indices {
		if _, err := fmt.Fprintf(w, "%X ", idx); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "-> %X\n", frame)

	return err
}

// VirtualToPhysical prints an address translation.
func VirtualToPhysical(w io.Writer, vAddr, pAddr uint32) error {
	_, err := fmt.Fprintf(w, "%08X -> %08X\n", vAddr, pAddr)
	return err
}

// TranslationWithWalk prints an address translation along with where it was
// resolved.
func TranslationWithWalk(w io.Writer, t mmu.Translation) error {
	var where string

	switch {
	case t.TLBHit:
		where = "tlb hit"
	case t.PageTableHit:
		where = "tlb miss, pagetable hit"
	default:
		where = "tlb miss, pagetable miss"
	}

	_, err := fmt.Fprintf(w, "%08X -> %08X, %s\n", t.VAddr, t.PAddr, where)

	return err
}

// Summary prints the statistics of a run.
func Summary(w io.Writer, s mmu.Summary) error {
	hitPercent := "n/a"
	missPercent := "n/a"

	if hit, ok := s.HitPercent(); ok {
		miss, _ := s.MissPercent()
		hitPercent = fmt.Sprintf("%.2f%%", hit)
		missPercent = fmt.Sprintf("%.2f%%", miss)
	}

	_, err := fmt.Fprintf(w,
		"Page size: %d bytes\n"+
			"Addresses processed: %d\n"+
			"Cache hits: %d, Page hits: %d, Total hits: %d, Misses: %d\n"+
			"Total hit percentage: %s, miss percentage: %s\n"+
			"Frames allocated: %d\n"+
			"Number of page table entries: %d\n",
		s.PageSize,
		s.AddressesProcessed,
		s.CacheHits, s.PageTableHits, s.Hits(), s.Misses(),
		hitPercent, missPercent,
		s.FramesAllocated,
		s.PageTableEntries)

	return err
}
