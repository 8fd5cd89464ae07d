package vm

import "math"

// A FrameAllocator hands out physical frame numbers in increasing order.
// Frames are never freed.
type FrameAllocator struct {
	next    uint64
	wrapped bool
}

// NewFrameAllocator creates an allocator whose first frame is 0.
func NewFrameAllocator() *FrameAllocator {
	return &FrameAllocator{}
}

// NewFrameAllocatorFrom creates an allocator that behaves as if next frames
// had already been handed out.
func NewFrameAllocatorFrom(next uint64) *FrameAllocator {
	return &FrameAllocator{next: next, wrapped: next > math.MaxUint32}
}

// Allocate returns the next frame number.
func (a *FrameAllocator) Allocate() uint32 {
	frame := uint32(a.next)

	if a.next > math.MaxUint32 {
		a.wrapped = true
	}

	a.next++

	return frame
}

// Allocated returns the number of frames handed out so far.
func (a *FrameAllocator) Allocated() uint64 {
	return a.next
}

// Wrapped tells if frame numbers have started to repeat because more than
// 2^32 frames were allocated.
func (a *FrameAllocator) Wrapped() bool {
	return a.wrapped
}
