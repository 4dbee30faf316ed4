// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		shape Shape
		want  Shape
	}{
		{Shape{}, Shape{}},
		{Shape{3, 1, 0}, Shape{3, 1, 0}},
		{Shape{-1, 8}, Shape{-1, 8}},
		{Shape{-2, 8, -3}, Shape{-1, 8, -1}},
		{Shape{-1000, -2}, Shape{-1, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			got := Normalize(tt.shape)
			require.Equal(t, tt.want, got)
			require.Equal(t, got, Normalize(got), "Normalize must be idempotent")
			require.False(t, got.IsSymbolic())
		})
	}

	// Normalize returns a copy.
	shape := Shape{-2, 4}
	_ = Normalize(shape)
	require.Equal(t, Shape{-2, 4}, shape)

	require.Equal(t, []Shape{{-1}, {5}}, NormalizeAll([]Shape{{-2}, {5}}))
}

func TestShapeString(t *testing.T) {
	tests := []struct {
		shape Shape
		text  string
	}{
		{Shape{}, "scalar"},
		{Shape{4}, "4"},
		{Shape{-1, 8}, "?x8"},
		{Shape{-2, 8, -13}, "#2x8x#13"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.shape.String())
			parsed, err := ParseShape(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, parsed)
		})
	}

	assert.Equal(t, "", Key(nil))
	assert.Equal(t, "#2x8,scalar", Key([]Shape{{-2, 8}, {}}))
}

func TestParse(t *testing.T) {
	for _, bad := range []string{"4x", "#1", "#x", "-3", "fourx4"} {
		_, err := ParseShape(bad)
		assert.Errorf(t, err, "ParseShape(%q) should have failed", bad)
	}

	_, err := ParseDims("?x4")
	require.Error(t, err)
	dims, err := ParseDims(" 2x3 ")
	require.NoError(t, err)
	require.Equal(t, Dims{2, 3}, dims)

	signature, err := ParseSignature("(?x8, *, scalar)")
	require.NoError(t, err)
	require.Equal(t, Signature{Ranked(DimDynamic, 8), UnrankedType(), ScalarType()}, signature)
	require.Equal(t, "(?x8,*,scalar)", signature.String())
	require.Equal(t, -1, signature[1].Rank())
	require.Equal(t, 0, signature[2].Rank())

	_, err = ParseSignature("?x#2")
	require.Error(t, err)

	constraints, err := ParseConstraints("resolved, Rank,shape,value")
	require.NoError(t, err)
	require.Equal(t, ConstraintValues(), constraints)
	_, err = ParseConstraints("exact")
	require.Error(t, err)
}
