package types

import (
	"fmt"
	"sync"
	"unsafe"
)

// SegmentID names a region of pre-registered, symmetrically addressable
// memory. The same SegmentID must be valid on every rank participating in
// a collective; the registry only governs the local rank's half of that
// symmetry, the transport is responsible for the rest.
type SegmentID uint32

// SegmentBuffer is an (segment, byte offset) pair naming a contiguous
// region inside a registered segment. Engines never allocate or free the
// underlying memory, they only read and write through this reference.
type SegmentBuffer struct {
	Segment SegmentID
	Offset  int
}

// WithOffset returns a copy of b advanced by delta bytes, for addressing a
// sub-range of a caller buffer. The engines compute their own byte offsets
// and do not call it.
func (b SegmentBuffer) WithOffset(delta int) SegmentBuffer {
	return SegmentBuffer{Segment: b.Segment, Offset: b.Offset + delta}
}

// Registry owns the byte arenas backing every SegmentID registered by the
// local rank and hands out bounds-checked typed views over them. This is
// the "safer restatement" of raw pointer arithmetic on opaque segments:
// engines never see a raw pointer, only a length-checked slice.
type Registry struct {
	mu       sync.RWMutex
	segments map[SegmentID][]byte
}

// NewRegistry returns an empty segment registry.
func NewRegistry() *Registry {
	return &Registry{segments: make(map[SegmentID][]byte)}
}

// Register associates id with the caller-owned backing array buf. The
// caller retains ownership; the registry never copies, allocates, or frees
// it.
func (r *Registry) Register(id SegmentID, buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[id] = buf
}

// Bytes returns the raw backing array for id, or an error if it was never
// registered.
func (r *Registry) Bytes(id SegmentID) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	buf, ok := r.segments[id]
	if !ok {
		return nil, fmt.Errorf("collective: segment %d not registered", id)
	}
	return buf, nil
}

// View returns a bounds-checked, aliased typed slice of count elements of T
// starting at byteOffset inside segment id. Writes through the returned
// slice are writes to the registered backing array: the engine and the
// caller observe the same memory.
func View[T Element](r *Registry, id SegmentID, byteOffset int, count int) ([]T, error) {
	buf, err := r.Bytes(id)
	if err != nil {
		return nil, err
	}
	var zero T
	width := int(unsafe.Sizeof(zero))
	need := byteOffset + count*width
	if byteOffset < 0 || count < 0 || need > len(buf) {
		return nil, fmt.Errorf("%w: segment %d has %d bytes, need [%d,%d)", ErrBufferTooSmall, id, len(buf), byteOffset, need)
	}
	if count == 0 {
		return nil, nil
	}
	ptr := unsafe.Pointer(&buf[byteOffset])
	return unsafe.Slice((*T)(ptr), count), nil
}

// ByteWidth returns sizeof(T) for one of the four supported element types.
func ByteWidth[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
