package mmu

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/pagewalk/mem/vm"
	"github.com/sarchlab/pagewalk/sim/hooking"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("MMU", func() {
	var (
		mockCtrl     *gomock.Controller
		pageTable    *MockPageTable
		tlb          *MockTranslationCache
		mmu          *Comp
		translations []Translation
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		pageTable = NewMockPageTable(mockCtrl)
		tlb = NewMockTranslationCache(mockCtrl)

		mmu = MakeBuilder().
			WithLevels(4, 8, 8).
			WithPageTable(pageTable).
			WithTLB(tlb).
			Build("MMU")

		translations = nil
		mmu.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosTranslation {
				translations = append(translations, ctx.Item.(Translation))
			}
		}))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should use the TLB on a hit", func() {
		tlb.EXPECT().Lookup(uint32(0x12345)).Return(uint32(7), true)

		frame := mmu.RecordPageAccess(0x12345678, true)

		Expect(frame).To(Equal(uint32(7)))
		Expect(mmu.CacheHits()).To(Equal(uint64(1)))
		Expect(mmu.PageTableHits()).To(BeZero())
		Expect(translations).To(ConsistOf(Translation{
			VAddr:  0x12345678,
			PAddr:  0x00007678,
			VPN:    0x12345,
			Frame:  7,
			TLBHit: true,
		}))
	})

	It("should walk the page table on a TLB miss", func() {
		tlb.EXPECT().Lookup(uint32(0x12345)).Return(uint32(0), false)
		pageTable.EXPECT().Find(uint32(0x12345678)).Return(uint32(3), true)
		tlb.EXPECT().Insert(uint32(0x12345), uint32(3))

		frame := mmu.RecordPageAccess(0x12345678, true)

		Expect(frame).To(Equal(uint32(3)))
		Expect(mmu.PageTableHits()).To(Equal(uint64(1)))
		Expect(mmu.FramesAllocated()).To(BeZero())
		Expect(translations[0].PageTableHit).To(BeTrue())
		Expect(translations[0].TLBHit).To(BeFalse())
	})

	It("should allocate a frame when the page is not mapped", func() {
		tlb.EXPECT().Lookup(uint32(0x12345)).Return(uint32(0), false)
		pageTable.EXPECT().Find(uint32(0x12345678)).Return(uint32(0), false)
		pageTable.EXPECT().Insert(uint32(0x12345678), uint32(0))
		tlb.EXPECT().Insert(uint32(0x12345), uint32(0))

		frame := mmu.RecordPageAccess(0x12345678, false)

		Expect(frame).To(Equal(uint32(0)))
		Expect(mmu.FramesAllocated()).To(Equal(uint64(1)))
		Expect(translations).To(BeEmpty())
	})

	It("should report the summary", func() {
		pageTable.EXPECT().CountValidEntries().Return(uint64(5))
		pageTable.EXPECT().NumNodes().Return(uint64(3))

		summary := mmu.Summary(10)

		Expect(summary.PageSize).To(Equal(uint64(4096)))
		Expect(summary.AddressesProcessed).To(Equal(uint64(10)))
		Expect(summary.PageTableEntries).To(Equal(uint64(5)))
		Expect(summary.PageTableNodes).To(Equal(uint64(3)))
	})

	It("should panic on invalid levels", func() {
		Expect(func() {
			MakeBuilder().WithLevels(20, 9).Build("MMU")
		}).To(Panic())
	})
})

var _ = Describe("MMU with page table and TLB", func() {
	var (
		mmu          *Comp
		translations []Translation
	)

	record := func(ctx hooking.HookCtx) {
		translations = append(translations, ctx.Item.(Translation))
	}

	BeforeEach(func() {
		translations = nil
	})

	Context("two 2-bit levels and a single TLB entry", func() {
		BeforeEach(func() {
			mmu = MakeBuilder().
				WithLevels(2, 2).
				WithTLBCapacity(1).
				Build("MMU")
			mmu.AcceptHook(hooking.HookFunc(record))
		})

		It("should translate the access sequence", func() {
			Expect(mmu.RecordPageAccess(0x00000000, true)).To(Equal(uint32(0)))
			Expect(mmu.RecordPageAccess(0x40000000, true)).To(Equal(uint32(1)))
			Expect(mmu.RecordPageAccess(0x00000000, true)).To(Equal(uint32(0)))

			Expect(translations[0].TLBHit).To(BeFalse())
			Expect(translations[0].PageTableHit).To(BeFalse())
			Expect(translations[1].TLBHit).To(BeFalse())
			Expect(translations[1].PageTableHit).To(BeFalse())
			Expect(translations[2].TLBHit).To(BeFalse())
			Expect(translations[2].PageTableHit).To(BeTrue())

			Expect(mmu.CountValidEntries()).To(Equal(uint64(2)))
			Expect(mmu.FramesAllocated()).To(Equal(uint64(2)))
			Expect(mmu.PageTableHits()).To(Equal(uint64(1)))
			Expect(mmu.CacheHits()).To(BeZero())
		})

		It("should build physical addresses from the configured offset", func() {
			mmu.RecordPageAccess(0x00000000, false)
			mmu.RecordPageAccess(0x4ABCDEF1, true)

			Expect(translations[0].PAddr).To(Equal(uint32(0x1ABCDEF1)))
		})
	})

	Context("4 KiB pages", func() {
		BeforeEach(func() {
			mmu = MakeBuilder().
				WithLevels(4, 8, 8).
				WithTLBCapacity(2).
				Build("MMU")
			mmu.AcceptHook(hooking.HookFunc(record))
		})

		It("should hit the TLB right after a page is mapped", func() {
			mmu.RecordPageAccess(0x12345678, false)
			frame := mmu.RecordPageAccess(0x12345FFF, true)

			Expect(frame).To(Equal(uint32(0)))
			Expect(translations[0].TLBHit).To(BeTrue())
			Expect(mmu.CacheHits()).To(Equal(uint64(1)))
		})

		It("should resolve evicted entries through the page table", func() {
			mmu.RecordPageAccess(0x00001000, false)
			mmu.RecordPageAccess(0x00002000, false)
			mmu.RecordPageAccess(0x00003000, false)

			frame := mmu.RecordPageAccess(0x00001000, true)

			Expect(frame).To(Equal(uint32(0)))
			Expect(translations[0].PageTableHit).To(BeTrue())
			Expect(mmu.FramesAllocated()).To(Equal(uint64(3)))
		})

		It("should keep a re-touched entry resident", func() {
			mmu.RecordPageAccess(0x00001000, false)
			mmu.RecordPageAccess(0x00002000, false)
			mmu.RecordPageAccess(0x00001000, false)
			mmu.RecordPageAccess(0x00003000, false)

			mmu.RecordPageAccess(0x00001000, true)
			mmu.RecordPageAccess(0x00002000, true)

			Expect(translations[0].TLBHit).To(BeTrue())
			Expect(translations[1].TLBHit).To(BeFalse())
			Expect(translations[1].PageTableHit).To(BeTrue())
		})

		It("should allocate frames in first-touch order", func() {
			addrs := []uint32{
				0x00005000, 0xF0000000, 0x00005004, 0x12345000,
				0xF0000FFF, 0x80000000, 0x00006000,
			}

			firstFrame := map[uint32]uint32{}
			var frames []uint32
			for _, a := range addrs {
				frame := mmu.RecordPageAccess(a, false)

				vpn := a >> 12
				if f, seen := firstFrame[vpn]; seen {
					Expect(frame).To(Equal(f))
					continue
				}

				firstFrame[vpn] = frame
				frames = append(frames, frame)
			}

			Expect(frames).To(Equal([]uint32{0, 1, 2, 3, 4}))
			Expect(mmu.CountValidEntries()).To(Equal(uint64(len(frames))))
			Expect(mmu.FramesAllocated()).To(Equal(uint64(len(frames))))
		})

		It("should summarize hits and misses", func() {
			mmu.RecordPageAccess(0x00001000, false)
			mmu.RecordPageAccess(0x00001000, false)
			mmu.RecordPageAccess(0x00002000, false)
			mmu.RecordPageAccess(0x00003000, false)
			mmu.RecordPageAccess(0x00001000, false)

			s := mmu.Summary(5)

			Expect(s.CacheHits).To(Equal(uint64(1)))
			Expect(s.PageTableHits).To(Equal(uint64(1)))
			Expect(s.Misses()).To(Equal(uint64(3)))
			Expect(s.FramesAllocated).To(Equal(uint64(3)))
			Expect(s.PageTableEntries).To(Equal(uint64(3)))
		})
	})

	Context("TLB without entries", func() {
		It("should never hit the TLB", func() {
			mmu = MakeBuilder().WithLevels(10, 10).Build("MMU")

			mmu.RecordPageAccess(0x00001000, false)
			mmu.RecordPageAccess(0x00001000, false)

			Expect(mmu.CacheHits()).To(BeZero())
			Expect(mmu.PageTableHits()).To(Equal(uint64(1)))
		})
	})

	Context("fixed 12-bit TLB key", func() {
		var logs *observer.ObservedLogs

		BeforeEach(func() {
			var core zapcore.Core
			core, logs = observer.New(zapcore.WarnLevel)

			mmu = MakeBuilder().
				WithLevels(2, 2).
				WithTLBCapacity(4).
				WithTLBPageShift(12).
				WithLogger(zap.New(core)).
				Build("MMU")
			mmu.AcceptHook(hooking.HookFunc(record))
		})

		It("should warn about the mismatch", func() {
			Expect(logs.Len()).To(Equal(1))
		})

		It("should key the TLB on 4 KiB pages", func() {
			mmu.RecordPageAccess(0x00000000, false)
			mmu.RecordPageAccess(0x00001000, true)

			Expect(translations[0].VPN).To(Equal(uint32(1)))
			Expect(translations[0].TLBHit).To(BeFalse())
			Expect(translations[0].PageTableHit).To(BeTrue())
		})
	})

	Context("frame counter close to 2^32", func() {
		var (
			logs  *observer.ObservedLogs
			wraps []uint64
		)

		BeforeEach(func() {
			var core zapcore.Core
			core, logs = observer.New(zapcore.WarnLevel)
			wraps = nil

			mmu = MakeBuilder().
				WithLevels(4, 8, 8).
				WithTLBCapacity(4).
				WithFrameAllocator(vm.NewFrameAllocatorFrom(math.MaxUint32)).
				WithLogger(zap.New(core)).
				Build("MMU")
			mmu.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosFrameCounterWrap {
					wraps = append(wraps, ctx.Item.(uint64))
				}
			}))
		})

		It("should report the first wrap once", func() {
			Expect(mmu.RecordPageAccess(0x00001000, false)).
				To(Equal(uint32(math.MaxUint32)))
			Expect(wraps).To(BeEmpty())

			Expect(mmu.RecordPageAccess(0x00002000, false)).To(Equal(uint32(0)))
			Expect(mmu.RecordPageAccess(0x00003000, false)).To(Equal(uint32(1)))

			Expect(wraps).To(Equal([]uint64{1<<32 + 1}))
			Expect(logs.FilterMessage(
				"frame counter wrapped, frame numbers repeat").Len()).To(Equal(1))
			Expect(mmu.FramesAllocated()).To(Equal(uint64(1<<32 + 2)))
		})
	})
})
