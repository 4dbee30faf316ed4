// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build !unix

package memmapper

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

type anonymousMapper struct{}

// Anonymous returns the Strategy that uses unlabeled anonymous mappings for code and data.
// Memory mapping is not supported on this platform: all its methods return errors.ErrUnsupported.
func Anonymous() Strategy { return anonymousMapper{} }

func (anonymousMapper) AllocateMappedMemory(Purpose, int, Protection) (Block, error) {
	return Block{}, errors.WithMessage(stderrors.ErrUnsupported, "memmapper: memory mapping")
}

func (anonymousMapper) ProtectMappedMemory(*Block, Protection) error {
	return errors.WithMessage(stderrors.ErrUnsupported, "memmapper: memory mapping")
}

func (anonymousMapper) ReleaseMappedMemory(*Block) error {
	return errors.WithMessage(stderrors.ErrUnsupported, "memmapper: memory mapping")
}
