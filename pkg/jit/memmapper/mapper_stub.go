// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build !linux

package memmapper

import "github.com/gomlx/exceptions"

// Mapper is not available on this platform: Create always returns (nil, false).
type Mapper struct{}

var _ Strategy = (*Mapper)(nil)

// Create returns (nil, false): named anonymous memory objects are not supported on this platform.
// Use New or Anonymous instead.
func Create(label string) (*Mapper, bool) {
	return nil, false
}

// Label is not implemented on this platform.
func (m *Mapper) Label() string {
	exceptions.Panicf("memmapper.Mapper is not implemented on this platform, check memmapper.Create before using it")
	return ""
}

// AllocateMappedMemory is not implemented on this platform.
func (m *Mapper) AllocateMappedMemory(purpose Purpose, length int, protection Protection) (Block, error) {
	exceptions.Panicf("memmapper.Mapper is not implemented on this platform, check memmapper.Create before using it")
	return Block{}, nil
}

// ProtectMappedMemory is not implemented on this platform.
func (m *Mapper) ProtectMappedMemory(block *Block, protection Protection) error {
	exceptions.Panicf("memmapper.Mapper is not implemented on this platform, check memmapper.Create before using it")
	return nil
}

// ReleaseMappedMemory is not implemented on this platform.
func (m *Mapper) ReleaseMappedMemory(block *Block) error {
	exceptions.Panicf("memmapper.Mapper is not implemented on this platform, check memmapper.Create before using it")
	return nil
}
