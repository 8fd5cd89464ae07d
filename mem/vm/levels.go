// Package vm provides the models for multi-level address translation.
package vm

import (
	"errors"
	"fmt"
)

// AddressBits is the width of every virtual and physical address.
const AddressBits = 32

// MaxLevelBits is the largest number of bits the levels may consume
// together. At least 4 bits are always left for the page offset.
const MaxLevelBits = 28

// Errors reported by LevelConfig.Validate.
var (
	ErrNoLevels    = errors.New("at least one page table level is required")
	ErrZeroWidth   = errors.New("level width must be greater than 0")
	ErrTooManyBits = errors.New("too many bits used in page tables")
)

// A LevelConfig lists the number of index bits consumed by each page table
// level, starting from the most significant bit of the address.
type LevelConfig []uint

// A LevelMask pairs a level with the bitmask that selects its index bits.
type LevelMask struct {
	Level int
	Mask  uint32
}

// Validate checks that the configuration can be used to build a page table.
func (c LevelConfig) Validate() error {
	if len(c) == 0 {
		return ErrNoLevels
	}

	for i, w := range c {
		if w == 0 {
			return fmt.Errorf("level %d: %w", i, ErrZeroWidth)
		}
	}

	if total := c.TotalBits(); total > MaxLevelBits {
		return fmt.Errorf("%d bits requested, at most %d allowed: %w",
			total, MaxLevelBits, ErrTooManyBits)
	}

	return nil
}

// NumLevels returns the depth of the page table.
func (c LevelConfig) NumLevels() int {
	return len(c)
}

// TotalBits returns the number of bits used by all levels together.
func (c LevelConfig) TotalBits() uint {
	var total uint
	for _, w := range c {
		total += w
	}

	return total
}

// OffsetBits returns the number of low-order bits that form the page offset.
func (c LevelConfig) OffsetBits() uint {
	return AddressBits - c.TotalBits()
}

// OffsetMask selects the page offset of an address.
func (c LevelConfig) OffsetMask() uint32 {
	return uint32((uint64(1) << c.OffsetBits()) - 1)
}

// PageSize returns the number of bytes in a page.
func (c LevelConfig) PageSize() uint64 {
	return uint64(1) << c.OffsetBits()
}

// Masks computes the bitmask of each level. Level i covers the c[i] bits
// right after the bits consumed by levels 0 to i-1, counting down from the
// most significant bit.
func (c LevelConfig) Masks() []uint32 {
	masks := make([]uint32, 0, len(c))

	shift := uint(AddressBits)
	for _, w := range c {
		shift -= w
		masks = append(masks, uint32(((uint64(1)<<w)-1)<<shift))
	}

	return masks
}

// LevelMasks returns the masks paired with their level number.
func (c LevelConfig) LevelMasks() []LevelMask {
	masks := c.Masks()

	listing := make([]LevelMask, len(masks))
	for i, m := range masks {
		listing[i] = LevelMask{Level: i, Mask: m}
	}

	return listing
}

// Shift returns how far an address has to be shifted right so that the index
// bits of the given level become the lowest bits.
func (c LevelConfig) Shift(level int) uint {
	var consumed uint
	for _, w := range c[:level+1] {
		consumed += w
	}

	return AddressBits - consumed
}

// Index extracts the index of the given level from an address.
func (c LevelConfig) Index(vAddr uint32, level int) uint32 {
	w := c[level]
	return (vAddr >> c.Shift(level)) & uint32((uint64(1)<<w)-1)
}

// PageIndices returns the index of every level for the address.
func (c LevelConfig) PageIndices(vAddr uint32) []uint32 {
	indices := make([]uint32, len(c))
	for i := range c {
		indices[i] = c.Index(vAddr, i)
	}

	return indices
}

// VPN strips the page offset from an address.
func (c LevelConfig) VPN(vAddr uint32) uint32 {
	return uint32(uint64(vAddr) >> c.OffsetBits())
}

// Offset returns the page offset of an address.
func (c LevelConfig) Offset(vAddr uint32) uint32 {
	return vAddr & c.OffsetMask()
}
