// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build unix

package memmapper

import (
	"os"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

// osCalls are the operating system primitives used by the strategies. Tests replace them to
// inject failures and interruptions.
type osCalls struct {
	pageSize  func() (int, error)
	ftruncate func(fd int, length int64) error
	close     func(fd int) error
	mmap      func(fd int, length int, prot int, flags int) (unsafe.Pointer, error)
	mprotect  func(region []byte, prot int) error
	munmap    func(addr unsafe.Pointer, length int) error
}

var sys = osCalls{
	pageSize:  func() (int, error) { return unix.Getpagesize(), nil },
	ftruncate: unix.Ftruncate,
	close:     unix.Close,
	mmap: func(fd int, length int, prot int, flags int) (unsafe.Pointer, error) {
		return unix.MmapPtr(fd, 0, nil, uintptr(length), prot, flags)
	},
	mprotect: unix.Mprotect,
	munmap: func(addr unsafe.Pointer, length int) error {
		return unix.MunmapPtr(addr, uintptr(length))
	},
}

// retryOnEINTR calls op until it either succeeds or fails with an error other than EINTR.
func retryOnEINTR[T any](op func() (T, error)) (T, error) {
	for {
		value, err := op()
		if err == nil || !errors.Is(err, unix.EINTR) {
			return value, err
		}
	}
}

// retryOnEINTRErr is retryOnEINTR for operations that only return an error.
func retryOnEINTRErr(op func() error) error {
	_, err := retryOnEINTR(func() (struct{}, error) { return struct{}{}, op() })
	return err
}

func pageSize() (int, error) {
	size, err := retryOnEINTR(sys.pageSize)
	return size, errors.WithStack(os.NewSyscallError("getpagesize", err))
}

func closeFd(fd int) {
	err := retryOnEINTRErr(func() error { return sys.close(fd) })
	if err != nil {
		klog.Warningf("memmapper: failed to close memory object file descriptor %d: %v", fd, err)
	}
}

func toPOSIX(protection Protection) int {
	var prot int
	if protection&ProtRead != 0 {
		prot |= unix.PROT_READ
	}
	if protection&ProtWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if protection&ProtExec != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

// mapRegion maps length bytes (already rounded to the page size) with the given protection.
// If fd is -1 an anonymous mapping is created, otherwise the mapping is backed by fd.
func mapRegion(fd, length int, protection Protection) (Block, error) {
	flags := unix.MAP_PRIVATE
	if fd == -1 {
		flags |= unix.MAP_ANONYMOUS
	}
	prot := toPOSIX(protection)
	base, err := retryOnEINTR(func() (unsafe.Pointer, error) {
		return sys.mmap(fd, length, prot, flags)
	})
	if err != nil {
		return Block{}, errors.WithStack(os.NewSyscallError("mmap", err))
	}
	if klog.V(3).Enabled() {
		klog.Infof("memmapper: mapped %s at %p (%s, fd=%d)", humanize.IBytes(uint64(length)), base, protection, fd)
	}
	return Block{base: base, size: length, protection: protection}, nil
}

// protectBlock changes the protection of the smallest page aligned range containing the block.
func protectBlock(block *Block, protection Protection) error {
	if block.IsEmpty() {
		return errors.Errorf("memmapper: cannot protect an empty block")
	}
	size, err := pageSize()
	if err != nil {
		return err
	}
	offset := int(block.Address() & uintptr(size-1))
	region := unsafe.Slice((*byte)(unsafe.Add(block.base, -offset)), block.size+offset)
	prot := toPOSIX(protection)
	err = retryOnEINTRErr(func() error { return sys.mprotect(region, prot) })
	if err != nil {
		return errors.WithStack(os.NewSyscallError("mprotect", err))
	}
	block.protection = protection
	return nil
}

// releaseBlock unmaps the block and resets it.
func releaseBlock(block *Block) error {
	if block.IsEmpty() {
		return errors.Errorf("memmapper: cannot release an empty block")
	}
	err := retryOnEINTRErr(func() error { return sys.munmap(block.base, block.size) })
	if err != nil {
		return errors.WithStack(os.NewSyscallError("munmap", err))
	}
	*block = Block{}
	return nil
}

// allocate implements Strategy.AllocateMappedMemory, with an optional function to create a
// backing memory object. createObject returns -1 if no object could be created.
func allocate(length int, protection Protection, createObject func(length int) int) (Block, error) {
	if length <= 0 {
		return Block{}, errors.WithStack(os.NewSyscallError("mmap", unix.EINVAL))
	}
	size, err := pageSize()
	if err != nil {
		return Block{}, err
	}
	length = roundUp(length, size)
	fd := -1
	if createObject != nil {
		fd = createObject(length)
	}
	block, err := mapRegion(fd, length, protection)
	// The mapping keeps its own reference to the memory object: the descriptor is not needed anymore.
	if fd != -1 {
		closeFd(fd)
	}
	return block, err
}
