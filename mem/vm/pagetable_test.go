package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PageTable", func() {
	var (
		pageTable PageTable
	)

	BeforeEach(func() {
		pageTable = NewPageTable(LevelConfig{4, 8, 8})
	})

	It("should miss on an empty table", func() {
		_, found := pageTable.Find(0x12345678)

		Expect(found).To(BeFalse())
		Expect(pageTable.CountValidEntries()).To(BeZero())
		Expect(pageTable.NumNodes()).To(Equal(uint64(1)))
	})

	It("should find an inserted page", func() {
		pageTable.Insert(0x12345678, 7)

		frame, found := pageTable.Find(0x12345000)

		Expect(found).To(BeTrue())
		Expect(frame).To(Equal(uint32(7)))
	})

	It("should only materialize the touched path", func() {
		pageTable.Insert(0x12345678, 1)
		Expect(pageTable.NumNodes()).To(Equal(uint64(3)))

		pageTable.Insert(0x12346678, 2)
		Expect(pageTable.NumNodes()).To(Equal(uint64(3)))

		pageTable.Insert(0x92345678, 3)
		Expect(pageTable.NumNodes()).To(Equal(uint64(5)))
	})

	It("should not allocate while finding", func() {
		_, found := pageTable.Find(0xFFFFFFFF)

		Expect(found).To(BeFalse())
		Expect(pageTable.NumNodes()).To(Equal(uint64(1)))
	})

	It("should miss on a sibling of a mapped page", func() {
		pageTable.Insert(0x12345678, 1)

		_, found := pageTable.Find(0x12346678)

		Expect(found).To(BeFalse())
	})

	It("should count distinct pages", func() {
		pageTable.Insert(0x00001000, 0)
		pageTable.Insert(0x00002000, 1)
		pageTable.Insert(0x00001FFF, 0)
		pageTable.Insert(0xF0000000, 2)

		Expect(pageTable.CountValidEntries()).To(Equal(uint64(3)))
	})

	It("should remap a page", func() {
		pageTable.Insert(0x00001000, 0)
		pageTable.Insert(0x00001000, 9)

		frame, _ := pageTable.Find(0x00001000)

		Expect(frame).To(Equal(uint32(9)))
		Expect(pageTable.CountValidEntries()).To(Equal(uint64(1)))
	})

	It("should support a single level table", func() {
		pageTable = NewPageTable(LevelConfig{20})

		pageTable.Insert(0xABCDE123, 5)
		frame, found := pageTable.Find(0xABCDE000)

		Expect(found).To(BeTrue())
		Expect(frame).To(Equal(uint32(5)))
		Expect(pageTable.NumNodes()).To(Equal(uint64(1)))
		Expect(pageTable.CountValidEntries()).To(Equal(uint64(1)))
	})
})
