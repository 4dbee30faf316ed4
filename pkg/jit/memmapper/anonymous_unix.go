// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build unix

package memmapper

// anonymousMapper maps every region with plain private anonymous mappings: the code is not
// attributed to any label.
type anonymousMapper struct{}

// Anonymous returns the Strategy that uses unlabeled anonymous mappings for code and data.
// It is the fallback when Create is not available.
func Anonymous() Strategy { return anonymousMapper{} }

func (anonymousMapper) AllocateMappedMemory(_ Purpose, length int, protection Protection) (Block, error) {
	return allocate(length, protection, nil)
}

func (anonymousMapper) ProtectMappedMemory(block *Block, protection Protection) error {
	return protectBlock(block, protection)
}

func (anonymousMapper) ReleaseMappedMemory(block *Block) error {
	return releaseBlock(block)
}
