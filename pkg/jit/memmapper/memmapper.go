// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package memmapper allocates, re-protects and releases the memory that holds JIT-compiled code and data.
//
// On Linux the code regions are backed by a named anonymous memory object (memfd_create(2)),
// so profilers and other external tools inspecting the process (e.g. /proc/<pid>/maps) can
// attribute them to the JIT engine that created them, by its label.
//
// Create returns the Mapper only where the platform offers named anonymous memory objects.
// Elsewhere it returns (nil, false) and the caller must pick a different Strategy, typically
// Anonymous. New does exactly that:
//
//	strategy := memmapper.New("my_engine")
//	block, err := strategy.AllocateMappedMemory(memmapper.PurposeCode, len(code), memmapper.ProtRead|memmapper.ProtWrite)
//	if err != nil { ... }
//	copy(block.Bytes(), code)
//	err = strategy.ProtectMappedMemory(&block, memmapper.ProtRead|memmapper.ProtExec)
//	...
//	err = strategy.ReleaseMappedMemory(&block)
//
// Every system call is transparently retried if it is interrupted by a signal (EINTR).
//
// None of the strategies serializes anything: allocations are independent, but the owner of
// a Block must not protect or release it concurrently with any other use of the same Block.
package memmapper

import (
	"fmt"
	"unsafe"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Protection is a bitset of the access allowed to a mapped memory region.
type Protection uint8

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExec

	// ProtNone disallows any access.
	ProtNone Protection = 0
)

// String returns the protection in the same format as /proc/<pid>/maps, e.g. "r-x".
func (p Protection) String() string {
	flags := []byte("---")
	if p&ProtRead != 0 {
		flags[0] = 'r'
	}
	if p&ProtWrite != 0 {
		flags[1] = 'w'
	}
	if p&ProtExec != 0 {
		flags[2] = 'x'
	}
	return string(flags)
}

// Purpose of a memory allocation.
type Purpose int

const (
	// PurposeCode is memory that will hold executable machine code.
	PurposeCode Purpose = iota

	// PurposeROData is memory for read-only data.
	PurposeROData

	// PurposeRWData is memory for read-write data.
	PurposeRWData
)

//go:generate go tool enumer -type=Purpose -trimprefix=Purpose -transform=snake -output=gen_purpose_enumer.go memmapper.go

// Block is a mapped memory region: its base address, its size (rounded up to the page size when
// allocated) and its current protection.
//
// The zero value is an empty block.
type Block struct {
	base       unsafe.Pointer
	size       int
	protection Protection
}

// IsEmpty returns whether the block points to no memory.
func (b Block) IsEmpty() bool { return b.base == nil }

// Base address of the block.
func (b Block) Base() unsafe.Pointer { return b.base }

// Address of the block, as an integer.
func (b Block) Address() uintptr { return uintptr(b.base) }

// Size of the block in bytes.
func (b Block) Size() int { return b.size }

// Protection last set for the block.
func (b Block) Protection() Protection { return b.protection }

// Bytes returns a view of the block's memory. Accessing it in ways not allowed by the current
// protection crashes the program.
func (b Block) Bytes() []byte {
	if b.IsEmpty() {
		return nil
	}
	return unsafe.Slice((*byte)(b.base), b.size)
}

// Slice carves a sub-block out of b, starting at offset and with the given length.
// The sub-block base is not necessarily page aligned.
//
// It panics if the range is not contained in b.
func (b Block) Slice(offset, length int) Block {
	if offset < 0 || length < 0 || offset+length > b.size {
		exceptions.Panicf("memmapper.Block.Slice(%d, %d) out of bounds for block of size %d", offset, length, b.size)
	}
	return Block{
		base:       unsafe.Add(b.base, offset),
		size:       length,
		protection: b.protection,
	}
}

// String implements fmt.Stringer.
func (b Block) String() string {
	if b.IsEmpty() {
		return "Block(empty)"
	}
	return fmt.Sprintf("Block(0x%x, %d bytes, %s)", b.Address(), b.size, b.protection)
}

// Strategy is the memory mapping strategy used by the JIT code emitter to allocate the
// sections of a compiled function.
type Strategy interface {
	// AllocateMappedMemory maps a new region of at least length bytes (rounded up to the
	// page size) with the given protection.
	AllocateMappedMemory(purpose Purpose, length int, protection Protection) (Block, error)

	// ProtectMappedMemory changes the protection of all the pages containing the block, and
	// records the new protection in the block.
	ProtectMappedMemory(block *Block, protection Protection) error

	// ReleaseMappedMemory unmaps the block, and resets it to empty.
	ReleaseMappedMemory(block *Block) error
}

// New returns the Mapper created with the given label if the platform supports it, or
// otherwise the Anonymous strategy.
func New(label string) Strategy {
	if mapper, ok := Create(label); ok {
		return mapper
	}
	klog.V(1).Infof("memmapper: named memory objects not available on this platform, using anonymous mappings for %q", label)
	return Anonymous()
}

func roundUp(size, align int) int {
	return (size + align - 1) &^ (align - 1)
}
