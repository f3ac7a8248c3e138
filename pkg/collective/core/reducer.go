package core

import (
	"fmt"

	"github.com/jabolina/go-collective/pkg/collective/types"
)

// Reduce applies op elementwise over the first n elements of in and inout,
// writing inout[i] = op(inout[i], in[i]) for i in [0,n). This is the one
// local reducer every engine is built on top of: the engine body is
// parameterised only by this function and an element byte-width (see
// SPEC_FULL.md §9, "template instantiation bloat"), never duplicated per
// type.
//
// MIN and MAX use the type's total numeric order with ties resolved to
// either argument (they agree when equal). SUM is ordinary addition; for
// integer element types wrap-around follows Go's two's-complement
// semantics, matching the spec's "no overflow check" requirement.
func Reduce[T types.Element](op types.Operation, n int, in, inout []T) error {
	if !op.Valid() {
		return fmt.Errorf("%w: %v", types.ErrUnknownOperation, op)
	}
	if n > len(in) || n > len(inout) {
		return fmt.Errorf("%w: reduce needs %d elements, got in=%d inout=%d", types.ErrBufferTooSmall, n, len(in), len(inout))
	}

	switch op {
	case types.Min:
		for i := 0; i < n; i++ {
			if in[i] < inout[i] {
				inout[i] = in[i]
			}
		}
	case types.Max:
		for i := 0; i < n; i++ {
			if in[i] > inout[i] {
				inout[i] = in[i]
			}
		}
	case types.Sum:
		for i := 0; i < n; i++ {
			inout[i] += in[i]
		}
	default:
		return fmt.Errorf("%w: %v", types.ErrUnknownOperation, op)
	}
	return nil
}

// Copy copies the first n elements of src into dst, the identity operator
// used by all-gather (no reduction, just placement) and by leaves seeding
// their outgoing payload.
func Copy[T types.Element](n int, src, dst []T) error {
	if n > len(src) || n > len(dst) {
		return fmt.Errorf("%w: copy needs %d elements, got src=%d dst=%d", types.ErrBufferTooSmall, n, len(src), len(dst))
	}
	copy(dst[:n], src[:n])
	return nil
}
