package vm

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FrameAllocator", func() {
	It("should allocate increasing frames from 0", func() {
		a := NewFrameAllocator()

		for i := uint32(0); i < 10; i++ {
			Expect(a.Allocate()).To(Equal(i))
		}

		Expect(a.Allocated()).To(Equal(uint64(10)))
		Expect(a.Wrapped()).To(BeFalse())
	})

	It("should report when frame numbers wrap", func() {
		a := NewFrameAllocatorFrom(math.MaxUint32)

		Expect(a.Allocate()).To(Equal(uint32(math.MaxUint32)))
		Expect(a.Wrapped()).To(BeFalse())

		Expect(a.Allocate()).To(Equal(uint32(0)))
		Expect(a.Wrapped()).To(BeTrue())
	})

	It("should start from a given count", func() {
		a := NewFrameAllocatorFrom(5)

		Expect(a.Allocated()).To(Equal(uint64(5)))
		Expect(a.Allocate()).To(Equal(uint32(5)))
	})
})
