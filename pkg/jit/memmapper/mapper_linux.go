// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build linux

package memmapper

import (
	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

var memfdCreate = unix.MemfdCreate

// Mapper allocates JIT code in memory backed by a memfd, named after its label, so
// profilers can attribute the code to the JIT engine. Data allocations use plain
// anonymous mappings.
//
// It implements Strategy.
type Mapper struct {
	label string
}

var _ Strategy = (*Mapper)(nil)

// Create returns a Mapper whose code regions are labeled with label.
//
// It returns (nil, false) if the platform doesn't support named anonymous memory objects.
// That is not an error: the caller should fall back to a different Strategy (see New).
func Create(label string) (*Mapper, bool) {
	return &Mapper{label: label}, true
}

// Label used to name the memory objects backing the code regions.
func (m *Mapper) Label() string { return m.label }

// AllocateMappedMemory implements Strategy.
//
// For PurposeCode it tries to back the region with a memfd sized to the rounded length;
// if that fails it silently falls back to an anonymous mapping.
func (m *Mapper) AllocateMappedMemory(purpose Purpose, length int, protection Protection) (Block, error) {
	var createObject func(length int) int
	if purpose == PurposeCode {
		createObject = m.createMemfd
	}
	return allocate(length, protection, createObject)
}

// createMemfd returns a memfd of the given size, or -1 if it fails.
func (m *Mapper) createMemfd(length int) int {
	fd, err := retryOnEINTR(func() (int, error) { return memfdCreate(m.label, unix.MFD_CLOEXEC) })
	if err != nil {
		klog.V(2).Infof("memmapper: memfd_create(%q) failed, using an anonymous mapping: %v", m.label, err)
		return -1
	}
	err = retryOnEINTRErr(func() error { return sys.ftruncate(fd, int64(length)) })
	if err != nil {
		klog.V(2).Infof("memmapper: ftruncate(%q, %s) failed, using an anonymous mapping: %v",
			m.label, humanize.IBytes(uint64(length)), err)
		closeFd(fd)
		return -1
	}
	return fd
}

// ProtectMappedMemory implements Strategy.
//
// The block base doesn't need to be page aligned: the protection of every page that
// contains part of the block is changed.
func (m *Mapper) ProtectMappedMemory(block *Block, protection Protection) error {
	return protectBlock(block, protection)
}

// ReleaseMappedMemory implements Strategy.
func (m *Mapper) ReleaseMappedMemory(block *Block) error {
	return releaseBlock(block)
}
