// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	scalarName       = "scalar"
	dynamicName      = "?"
	unrankedName     = "*"
	symbolicPrefix   = "#"
	dimSeparator     = "x"
	operandSeparator = ","
)

// ParseShape parses a shape in the format generated by Shape.String: axes separated by "x",
// where "?" is DimDynamic and "#<n>" is the symbolic dimension -n (n >= 2).
// "scalar" or an empty string is a rank-0 shape.
//
// Example: ParseShape("?x8x#2") returns Shape{-1, 8, -2}.
func ParseShape(text string) (Shape, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == scalarName {
		return Shape{}, nil
	}
	parts := strings.Split(text, dimSeparator)
	shape := make(Shape, len(parts))
	for axis, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == dynamicName:
			shape[axis] = DimDynamic
		case strings.HasPrefix(part, symbolicPrefix):
			id, err := strconv.ParseInt(part[len(symbolicPrefix):], 10, 64)
			if err != nil || id < 2 {
				return nil, errors.Errorf("invalid symbolic dimension %q for axis %d in shape %q", part, axis, text)
			}
			shape[axis] = -id
		default:
			dim, err := strconv.ParseInt(part, 10, 64)
			if err != nil || dim < 0 {
				return nil, errors.Errorf("invalid dimension %q for axis %d in shape %q", part, axis, text)
			}
			shape[axis] = dim
		}
	}
	return shape, nil
}

// ParseDims parses the runtime dimensions of an operand, e.g. "4x8". Only concrete dimensions are accepted.
func ParseDims(text string) (Dims, error) {
	shape, err := ParseShape(text)
	if err != nil {
		return nil, err
	}
	if !shape.IsStatic() {
		return nil, errors.Errorf("runtime dimensions %q must all be concrete", text)
	}
	return Dims(shape), nil
}

// ParseSignature parses a comma-separated list of operand types, optionally enclosed in parenthesis.
// Each operand type is either "*" (unranked) or a shape with static and "?" (dynamic) axes.
//
// Example: ParseSignature("(?x8, *, scalar)").
func ParseSignature(text string) (Signature, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "("), ")")
	if strings.TrimSpace(text) == "" {
		return Signature{}, nil
	}
	parts := strings.Split(text, operandSeparator)
	signature := make(Signature, len(parts))
	for operandIdx, part := range parts {
		part = strings.TrimSpace(part)
		if part == unrankedName {
			signature[operandIdx] = UnrankedType()
			continue
		}
		shape, err := ParseShape(part)
		if err != nil {
			return nil, errors.WithMessagef(err, "operand #%d of signature %q", operandIdx, text)
		}
		if shape.IsSymbolic() {
			return nil, errors.Errorf("operand #%d of signature %q: symbolic dimensions are not allowed in a signature",
				operandIdx, text)
		}
		signature[operandIdx] = Ranked(shape...)
	}
	return signature, nil
}

// ParseConstraints parses a comma-separated list of constraints, e.g. "resolved,shape".
func ParseConstraints(text string) ([]Constraint, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Constraint{}, nil
	}
	parts := strings.Split(text, operandSeparator)
	constraints := make([]Constraint, len(parts))
	for ii, part := range parts {
		c, err := ConstraintString(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "constraint #%d", ii)
		}
		constraints[ii] = c
	}
	return constraints, nil
}
