// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package memmapper

import (
	"testing"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectionString(t *testing.T) {
	assert.Equal(t, "---", ProtNone.String())
	assert.Equal(t, "r--", ProtRead.String())
	assert.Equal(t, "rw-", (ProtRead | ProtWrite).String())
	assert.Equal(t, "r-x", (ProtRead | ProtExec).String())
	assert.Equal(t, "rwx", (ProtRead | ProtWrite | ProtExec).String())
}

func TestPurpose(t *testing.T) {
	assert.Equal(t, []string{"code", "ro_data", "rw_data"}, PurposeStrings())
	purpose, err := PurposeString("RO_DATA")
	require.NoError(t, err)
	assert.Equal(t, PurposeROData, purpose)
	_, err = PurposeString("stack")
	require.Error(t, err)
	assert.False(t, Purpose(7).IsAPurpose())
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, 4096, roundUp(1, 4096))
	assert.Equal(t, 4096, roundUp(4096, 4096))
	assert.Equal(t, 8192, roundUp(4097, 4096))
	assert.Equal(t, 0, roundUp(0, 4096))
}

func TestBlockSlice(t *testing.T) {
	var empty Block
	require.True(t, empty.IsEmpty())
	require.Nil(t, empty.Bytes())
	require.Equal(t, "Block(empty)", empty.String())

	buf := make([]byte, 64)
	block := Block{base: unsafe.Pointer(&buf[0]), size: len(buf), protection: ProtRead | ProtWrite}
	sub := block.Slice(10, 20)
	assert.Equal(t, block.Address()+10, sub.Address())
	assert.Equal(t, 20, sub.Size())
	assert.Equal(t, block.Protection(), sub.Protection())
	sub.Bytes()[0] = 3
	assert.Equal(t, byte(3), buf[10])

	for _, bounds := range [][2]int{{-1, 2}, {0, 65}, {60, 5}, {3, -1}} {
		exception := exceptions.Try(func() { _ = block.Slice(bounds[0], bounds[1]) })
		require.NotNilf(t, exception, "Slice(%d, %d) should have panicked", bounds[0], bounds[1])
	}
}
