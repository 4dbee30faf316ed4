// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"fmt"
	"slices"
	"strings"
)

// OperandType describes one operand of a function signature.
type OperandType struct {
	// Sizes per axis, with DimDynamic for the axes whose size is only known at runtime.
	Sizes []int64

	// Unranked operands carry no static shape information at all, not even the rank.
	Unranked bool
}

// Ranked returns an OperandType with the given sizes. Use DimDynamic for dynamic axes.
func Ranked(sizes ...int64) OperandType {
	return OperandType{Sizes: slices.Clone(sizes)}
}

// UnrankedType returns an OperandType with no static shape information.
func UnrankedType() OperandType {
	return OperandType{Unranked: true}
}

// ScalarType returns the OperandType of a scalar (or any non-shaped value): a rank-0 shape.
func ScalarType() OperandType {
	return OperandType{Sizes: []int64{}}
}

// Rank of the operand type, or -1 if it is unranked.
func (t OperandType) Rank() int {
	if t.Unranked {
		return -1
	}
	return len(t.Sizes)
}

// String implements fmt.Stringer, using the format accepted by ParseSignature.
func (t OperandType) String() string {
	if t.Unranked {
		return unrankedName
	}
	return Shape(t.Sizes).String()
}

// Signature is the ordered list of the operand types of a function.
type Signature []OperandType

// String implements fmt.Stringer, using the format accepted by ParseSignature.
func (s Signature) String() string {
	parts := make([]string, len(s))
	for ii, t := range s {
		parts[ii] = t.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, operandSeparator))
}

// Constraint on an operand of a function, declaring how strictly its shape must match
// for specialization purposes.
//
// The values are ordered by strength: a larger value is a stronger constraint.
type Constraint int

const (
	// ConstraintResolved means there is no constraint on the operand: its symbolic shape is
	// resolved from the runtime shape and the signature.
	ConstraintResolved Constraint = iota

	// ConstraintRank means the operand must be specialized to its runtime rank.
	ConstraintRank

	// ConstraintShape means the operand must be specialized to its exact runtime shape.
	ConstraintShape

	// ConstraintValue means the value of the operand must be known at trace time.
	ConstraintValue
)

//go:generate go tool enumer -type=Constraint -trimprefix=Constraint -transform=snake -output=gen_constraint_enumer.go signature.go

// Operand is the runtime descriptor of one operand: its actual rank and per-axis sizes.
type Operand interface {
	Sizes() []int64
}

// Dims is the simplest Operand: a list of runtime dimensions.
type Dims []int64

// Sizes implements Operand.
func (d Dims) Sizes() []int64 { return d }

// String implements fmt.Stringer.
func (d Dims) String() string { return Shape(d).String() }
