// Package mmu translates virtual addresses with a TLB in front of a
// multi-level page table.
package mmu

import (
	"github.com/sarchlab/pagewalk/mem/vm"
	"github.com/sarchlab/pagewalk/sim/hooking"
	"go.uber.org/zap"
)

// HookPosTranslation marks a finished translation. The item is a Translation.
var HookPosTranslation = &hooking.HookPos{Name: "Translation"}

// HookPosFrameCounterWrap marks the first time the frame counter passes 2^32
// frames. The item is the number of frames allocated.
var HookPosFrameCounterWrap = &hooking.HookPos{Name: "FrameCounterWrap"}

// A Translation describes how one virtual address was translated.
type Translation struct {
	VAddr        uint32
	PAddr        uint32
	VPN          uint32
	Frame        uint32
	TLBHit       bool
	PageTableHit bool
}

// Comp is the MMU. It is not safe for concurrent use.
type Comp struct {
	hooking.HookableBase

	name       string
	levels     vm.LevelConfig
	offsetBits uint
	offsetMask uint32
	tlbShift   uint

	tlb       TranslationCache
	pageTable vm.PageTable
	frames    *vm.FrameAllocator
	logger    *zap.Logger

	cacheHits     uint64
	pageTableHits uint64
	wrapReported  bool
}

// Name returns the name of the MMU.
func (c *Comp) Name() string {
	return c.name
}

// Levels returns the page table layout.
func (c *Comp) Levels() vm.LevelConfig {
	return c.levels
}

// RecordPageAccess translates the address and returns its frame. The TLB is
// consulted first, then the page table. If neither knows the page, a new
// frame is allocated and mapped. When detailed is set, the translation is
// delivered to the hooks at HookPosTranslation.
func (c *Comp) RecordPageAccess(vAddr uint32, detailed bool) uint32 {
	vpn := uint32(uint64(vAddr) >> c.tlbShift)

	frame, tlbHit := c.tlb.Lookup(vpn)
	pageTableHit := false

	if tlbHit {
		c.cacheHits++
	} else {
		frame, pageTableHit = c.pageTable.Find(vAddr)
		if pageTableHit {
			c.pageTableHits++
		} else {
			frame = c.allocateFrame()
			c.pageTable.Insert(vAddr, frame)
		}

		c.tlb.Insert(vpn, frame)
	}

	if detailed {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosTranslation,
			Item: Translation{
				VAddr:        vAddr,
				PAddr:        c.PhysicalAddress(vAddr, frame),
				VPN:          vpn,
				Frame:        frame,
				TLBHit:       tlbHit,
				PageTableHit: pageTableHit,
			},
		})
	}

	return frame
}

func (c *Comp) allocateFrame() uint32 {
	frame := c.frames.Allocate()

	if c.frames.Wrapped() && !c.wrapReported {
		c.wrapReported = true

		c.logger.Warn("frame counter wrapped, frame numbers repeat",
			zap.Uint64("frames_allocated", c.frames.Allocated()))

		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosFrameCounterWrap,
			Item:   c.frames.Allocated(),
		})
	}

	return frame
}

// PhysicalAddress combines the frame with the page offset of the address.
func (c *Comp) PhysicalAddress(vAddr uint32, frame uint32) uint32 {
	return uint32(uint64(frame)<<c.offsetBits) | (vAddr & c.offsetMask)
}

// CacheHits returns the number of translations served by the TLB.
func (c *Comp) CacheHits() uint64 {
	return c.cacheHits
}

// PageTableHits returns the number of translations that missed in the TLB
// but were found in the page table.
func (c *Comp) PageTableHits() uint64 {
	return c.pageTableHits
}

// FramesAllocated returns the number of frames allocated so far.
func (c *Comp) FramesAllocated() uint64 {
	return c.frames.Allocated()
}

// CountValidEntries returns the number of pages mapped in the page table.
func (c *Comp) CountValidEntries() uint64 {
	return c.pageTable.CountValidEntries()
}

// PageSize returns the number of bytes in a page.
func (c *Comp) PageSize() uint64 {
	return c.levels.PageSize()
}

// Summary collects the statistics after addressesProcessed translations.
func (c *Comp) Summary(addressesProcessed uint64) Summary {
	return Summary{
		PageSize:           c.PageSize(),
		CacheHits:          c.cacheHits,
		PageTableHits:      c.pageTableHits,
		AddressesProcessed: addressesProcessed,
		FramesAllocated:    c.frames.Allocated(),
		PageTableEntries:   c.pageTable.CountValidEntries(),
		PageTableNodes:     c.pageTable.NumNodes(),
	}
}
