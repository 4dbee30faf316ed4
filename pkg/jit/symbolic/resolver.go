// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"slices"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrShapeMismatch is returned (wrapped) by Resolver.Resolve whenever the runtime operands
// contradict the function signature. Use errors.Is to test for it.
var ErrShapeMismatch = errors.New("shape mismatch")

// Resolver computes the symbolic shapes of the operands of a function, based on the function
// signature and on the concrete shapes of the operands at runtime.
//
// A Resolver is immutable after construction, and Resolve can be called concurrently.
type Resolver struct {
	signature   Signature
	constraints []Constraint

	// staticSizes holds the statically known sizes of each operand. It is only valid
	// where hasStaticSizes is true (unranked operands have none).
	staticSizes    [][]int64
	hasStaticSizes []bool

	// seenStaticSizes holds all statically known dimensions found anywhere in the signature.
	seenStaticSizes map[int64]struct{}

	// iterationOrder visits the more constrained operands first.
	iterationOrder []int
}

// NewResolver creates a Resolver for the given function signature and one constraint per operand.
func NewResolver(signature Signature, constraints []Constraint) (*Resolver, error) {
	if len(signature) != len(constraints) {
		return nil, errors.Errorf("signature has %d operands, but %d constraints were given",
			len(signature), len(constraints))
	}
	r := &Resolver{
		signature:       slices.Clone(signature),
		constraints:     slices.Clone(constraints),
		staticSizes:     make([][]int64, len(signature)),
		hasStaticSizes:  make([]bool, len(signature)),
		seenStaticSizes: make(map[int64]struct{}),
		iterationOrder:  make([]int, len(signature)),
	}
	for operandIdx, operandType := range signature {
		if !constraints[operandIdx].IsAConstraint() {
			return nil, errors.Errorf("invalid constraint %s for operand #%d", constraints[operandIdx], operandIdx)
		}
		if operandType.Unranked {
			continue
		}
		for axis, dim := range operandType.Sizes {
			if dim < DimDynamic {
				return nil, errors.Errorf("operand #%d of signature %s has invalid size %d for axis %d",
					operandIdx, signature, dim, axis)
			}
			if dim != DimDynamic {
				r.seenStaticSizes[dim] = struct{}{}
			}
		}
		r.staticSizes[operandIdx] = slices.Clone(operandType.Sizes)
		r.hasStaticSizes[operandIdx] = true
	}

	// Stable sort, so the numbering of the symbolic dimensions is deterministic.
	for ii := range r.iterationOrder {
		r.iterationOrder[ii] = ii
	}
	slices.SortStableFunc(r.iterationOrder, func(a, b int) int {
		return int(r.constraints[b]) - int(r.constraints[a])
	})
	if klog.V(2).Enabled() {
		klog.Infof("symbolic.NewResolver(%s, %v): %d static sizes, iteration order %v",
			signature, constraints, len(r.seenStaticSizes), r.iterationOrder)
	}
	return r, nil
}

// MustNewResolver creates a Resolver with NewResolver, and panics if it fails.
func MustNewResolver(signature Signature, constraints []Constraint) *Resolver {
	return must.M1(NewResolver(signature, constraints))
}

// Signature returns the function signature the Resolver was built for.
func (r *Resolver) Signature() Signature { return r.signature }

// Constraints returns the operand constraints the Resolver was built for.
func (r *Resolver) Constraints() []Constraint { return r.constraints }

// NumOperands of the function signature.
func (r *Resolver) NumOperands() int { return len(r.signature) }

// Resolve returns the symbolic shapes of the operands, one per operand.
//
// It fails with an error wrapping ErrShapeMismatch if the runtime operands do not match the
// signature: wrong number of operands, wrong rank, negative sizes, or a runtime size different
// from a statically known one. There are no partial results.
//
// Operands constrained with ConstraintShape resolve to their exact runtime shape. Their runtime
// sizes don't affect the symbolic dimensions of the other operands.
func (r *Resolver) Resolve(operands []Operand) ([]Shape, error) {
	if len(operands) != len(r.signature) {
		return nil, errors.Wrapf(ErrShapeMismatch, "got %d operands for signature %s with %d operands",
			len(operands), r.signature, len(r.signature))
	}

	// Validate everything first: there are no partial results.
	for operandIdx, operand := range operands {
		if err := r.validate(operandIdx, operand); err != nil {
			return nil, err
		}
	}

	// Mapping from the runtime dimension to its symbolic dimension: local to this call.
	symbolicDims := make(map[int64]int64)
	nextSymbolicDim := DimDynamic - 1

	shapes := make([]Shape, len(operands))
	for _, operandIdx := range r.iterationOrder {
		runtimeSizes := operands[operandIdx].Sizes()
		if r.constraints[operandIdx] == ConstraintShape {
			shapes[operandIdx] = slices.Clone(runtimeSizes)
			continue
		}

		shape := make(Shape, len(runtimeSizes))
		for axis, runtimeDim := range runtimeSizes {
			if r.hasStaticSizes[operandIdx] {
				if staticDim := r.staticSizes[operandIdx][axis]; staticDim != DimDynamic {
					shape[axis] = staticDim
					continue
				}
			}
			if runtimeDim == 1 {
				shape[axis] = 1
				continue
			}
			if _, found := r.seenStaticSizes[runtimeDim]; found {
				shape[axis] = runtimeDim
				continue
			}
			symbolicDim, found := symbolicDims[runtimeDim]
			if !found {
				symbolicDim = nextSymbolicDim
				symbolicDims[runtimeDim] = symbolicDim
				nextSymbolicDim--
			}
			shape[axis] = symbolicDim
		}
		shapes[operandIdx] = shape
	}
	return shapes, nil
}

// validate checks the runtime operand against its statically known shape, if any.
func (r *Resolver) validate(operandIdx int, operand Operand) error {
	if operand == nil {
		return errors.Wrapf(ErrShapeMismatch, "operand #%d is nil", operandIdx)
	}
	runtimeSizes := operand.Sizes()
	for axis, dim := range runtimeSizes {
		if dim < 0 {
			return errors.Wrapf(ErrShapeMismatch, "operand #%d has invalid runtime size %d for axis %d",
				operandIdx, dim, axis)
		}
	}
	if !r.hasStaticSizes[operandIdx] {
		return nil
	}
	staticSizes := r.staticSizes[operandIdx]
	if len(staticSizes) != len(runtimeSizes) {
		return errors.Wrapf(ErrShapeMismatch, "operand #%d has rank %d, but signature %s requires rank %d",
			operandIdx, len(runtimeSizes), r.signature, len(staticSizes))
	}
	for axis, staticDim := range staticSizes {
		if staticDim != DimDynamic && staticDim != runtimeSizes[axis] {
			return errors.Wrapf(ErrShapeMismatch, "operand #%d has runtime shape %s, but signature %s requires %d for axis %d",
				operandIdx, Shape(runtimeSizes), r.signature, staticDim, axis)
		}
	}
	return nil
}
