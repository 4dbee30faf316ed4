// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package symbolic computes the symbolic shapes of the operands of a JIT-compiled function.
//
// A function is compiled once per distinct symbolic shape of its operands, and the compiled
// executable is reused whenever a later call presents operands with an equal symbolic shape.
//
// The symbolic shape of an operand is a Shape: one int64 per axis, where:
//
//   - A value >= 0 is a concrete, statically known dimension.
//   - DimDynamic (-1) is a fully dynamic, unconstrained dimension.
//   - A value <= -2 is a symbolic dimension: within one call to Resolver.Resolve, two axes
//     (possibly on different operands) carry the same symbolic dimension iff they are dynamic
//     in the signature and have the same size at runtime.
//
// Example: dimensions that have the same size at runtime.
//
//	signature:       (?, ?)
//	operands:        [123], [123]
//	symbolic shapes: [#2], [#2]
//
// If a dynamic dimension at runtime is equal to some statically known dimension of the
// signature (of any operand), it is resolved to that statically known value:
//
//	signature:       (?, 32)
//	operands:        [32], [32]
//	symbolic shapes: [32], [32]
//
// Dynamic dimensions that are 1 at runtime are always materialized as a static 1.
//
// ## Glossary
//
//   - Signature: the ordered operand types of a function, each with static or dynamic axes.
//   - Constraint: how strictly an operand's shape must match for specialization purposes.
//   - Symbolic dimension: a negative marker (<= -2) denoting a class of equal-valued dynamic
//     runtime dimensions within one call.
package symbolic

import (
	"slices"
	"strconv"
	"strings"
)

// DimDynamic marks a dimension whose size is unknown and unconstrained.
const DimDynamic int64 = -1

// Shape is the symbolic shape of one operand. See package documentation for its encoding.
type Shape []int64

// Rank of the shape.
func (s Shape) Rank() int { return len(s) }

// IsSymbolic returns whether the dimension value is a symbolic dimension (<= -2).
func IsSymbolic(dim int64) bool { return dim < DimDynamic }

// IsSymbolic returns whether any of the axes holds a symbolic dimension.
func (s Shape) IsSymbolic() bool {
	return slices.ContainsFunc(s, IsSymbolic)
}

// IsStatic returns whether all axes are concrete.
func (s Shape) IsStatic() bool {
	for _, dim := range s {
		if dim < 0 {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape { return slices.Clone(s) }

// Equal compares two shapes axis by axis. Symbolic dimensions are compared by value.
func (s Shape) Equal(s2 Shape) bool { return slices.Equal(s, s2) }

// String pretty-prints the shape, e.g. "?x8x#2". A rank-0 shape is printed as "scalar".
// The format is accepted by ParseShape.
func (s Shape) String() string {
	if len(s) == 0 {
		return scalarName
	}
	parts := make([]string, len(s))
	for axis, dim := range s {
		parts[axis] = dimString(dim)
	}
	return strings.Join(parts, dimSeparator)
}

func dimString(dim int64) string {
	switch {
	case dim == DimDynamic:
		return dynamicName
	case IsSymbolic(dim):
		return symbolicPrefix + strconv.FormatInt(-dim, 10)
	default:
		return strconv.FormatInt(dim, 10)
	}
}

// Normalize returns a copy of the shape where every symbolic dimension is replaced by DimDynamic.
//
// It is used to export a symbolic shape outside the call that produced it. It is idempotent:
// Normalize(Normalize(s)) is equal to Normalize(s).
func Normalize(shape Shape) Shape {
	normalized := make(Shape, len(shape))
	for axis, dim := range shape {
		if IsSymbolic(dim) {
			dim = DimDynamic
		}
		normalized[axis] = dim
	}
	return normalized
}

// NormalizeAll applies Normalize to each of the shapes.
func NormalizeAll(shapes []Shape) []Shape {
	normalized := make([]Shape, len(shapes))
	for ii, shape := range shapes {
		normalized[ii] = Normalize(shape)
	}
	return normalized
}

// Key returns a canonical string representation of a list of symbolic shapes, for map keying.
//
// Two lists of shapes have the same key iff they are equal. Empty or nil lists return "".
func Key(shapes []Shape) string {
	if len(shapes) == 0 {
		return ""
	}
	parts := make([]string, len(shapes))
	for ii, shape := range shapes {
		parts[ii] = shape.String()
	}
	return strings.Join(parts, operandSeparator)
}
