package mmu

import (
	"github.com/sarchlab/pagewalk/mem/vm"
	"github.com/sarchlab/pagewalk/mem/vm/tlb"
	"go.uber.org/zap"
)

// A Builder can build MMU component
type Builder struct {
	levels       vm.LevelConfig
	tlbCapacity  int
	tlbPageShift int
	pageTable    vm.PageTable
	tlb          TranslationCache
	frames       *vm.FrameAllocator
	logger       *zap.Logger
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		levels:       vm.LevelConfig{8, 12},
		tlbPageShift: -1,
		logger:       zap.NewNop(),
	}
}

// WithLevels sets the number of index bits of each page table level.
func (b Builder) WithLevels(levels ...uint) Builder {
	b.levels = append(vm.LevelConfig(nil), levels...)
	return b
}

// WithTLBCapacity sets the number of entries in the TLB. Use 0 to disable the
// TLB.
func (b Builder) WithTLBCapacity(n int) Builder {
	b.tlbCapacity = n
	return b
}

// WithTLBPageShift sets how far an address is shifted right to form the key
// of the TLB. By default the key is the VPN derived from the levels. A fixed
// shift of 12 reproduces simulators that assume 4 KiB pages for the TLB no
// matter how the levels are configured.
func (b Builder) WithTLBPageShift(shift int) Builder {
	b.tlbPageShift = shift
	return b
}

// WithPageTable sets the page table that the MMU uses.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithTLB sets the translation cache that the MMU uses. It overrides the TLB
// capacity.
func (b Builder) WithTLB(t TranslationCache) Builder {
	b.tlb = t
	return b
}

// WithFrameAllocator sets the allocator that hands out frames.
func (b Builder) WithFrameAllocator(frames *vm.FrameAllocator) Builder {
	b.frames = frames
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// Build returns a newly created MMU component
func (b Builder) Build(name string) *Comp {
	if err := b.levels.Validate(); err != nil {
		panic(err)
	}

	if b.tlbCapacity < 0 {
		panic("TLB capacity must not be negative")
	}

	mmu := &Comp{
		name:       name,
		levels:     b.levels,
		offsetBits: b.levels.OffsetBits(),
		offsetMask: b.levels.OffsetMask(),
		frames:     b.frames,
		logger:     b.logger.With(zap.String("component", name)),
	}

	if mmu.frames == nil {
		mmu.frames = vm.NewFrameAllocator()
	}

	b.createPageTable(mmu)
	b.createTLB(name, mmu)
	b.configureTLBKey(mmu)

	mmu.logger.Debug("MMU created",
		zap.Uints("levels", b.levels),
		zap.Uint64("page_size", b.levels.PageSize()),
		zap.Int("tlb_capacity", b.tlbCapacity))

	return mmu
}

func (b Builder) createPageTable(mmu *Comp) {
	if b.pageTable != nil {
		mmu.pageTable = b.pageTable
		return
	}

	mmu.pageTable = vm.NewPageTable(b.levels)
}

func (b Builder) createTLB(name string, mmu *Comp) {
	if b.tlb != nil {
		mmu.tlb = b.tlb
		return
	}

	mmu.tlb = tlb.MakeBuilder().
		WithNumEntries(b.tlbCapacity).
		Build(name + ".TLB")
}

func (b Builder) configureTLBKey(mmu *Comp) {
	mmu.tlbShift = mmu.offsetBits
	if b.tlbPageShift < 0 {
		return
	}

	if b.tlbPageShift >= vm.AddressBits {
		panic("TLB page shift must be smaller than the address width")
	}

	mmu.tlbShift = uint(b.tlbPageShift)
	if mmu.tlbShift != mmu.offsetBits {
		mmu.logger.Warn(
			"TLB key and page table disagree on the page size; "+
				"TLB and page table hits may refer to different pages",
			zap.Uint("tlb_page_shift", mmu.tlbShift),
			zap.Uint("offset_bits", mmu.offsetBits))
	}
}
