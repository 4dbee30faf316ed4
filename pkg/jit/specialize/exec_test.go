// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build unix

package specialize

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gomlx/jitrt/pkg/jit/memmapper"
	"github.com/gomlx/jitrt/pkg/jit/symbolic"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// countingStrategy wraps a memmapper.Strategy, counting calls and optionally failing protection or release.
type countingStrategy struct {
	memmapper.Strategy
	allocs, protects, releases atomic.Int32
	failProtect, failRelease   bool
}

func (s *countingStrategy) AllocateMappedMemory(purpose memmapper.Purpose, length int, protection memmapper.Protection) (memmapper.Block, error) {
	s.allocs.Add(1)
	return s.Strategy.AllocateMappedMemory(purpose, length, protection)
}

func (s *countingStrategy) ProtectMappedMemory(block *memmapper.Block, protection memmapper.Protection) error {
	s.protects.Add(1)
	if s.failProtect {
		return errors.New("protection refused")
	}
	return s.Strategy.ProtectMappedMemory(block, protection)
}

func (s *countingStrategy) ReleaseMappedMemory(block *memmapper.Block) error {
	s.releases.Add(1)
	if s.failRelease {
		return errors.New("release refused")
	}
	return s.Strategy.ReleaseMappedMemory(block)
}

// retCompiler returns one "ret" instruction per operand axis, and counts compilations.
type retCompiler struct {
	compilations atomic.Int32
	err          error
}

func (c *retCompiler) compile(shapes []symbolic.Shape) ([]byte, error) {
	c.compilations.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	code := []byte{0xC3}
	for _, shape := range shapes {
		for range shape {
			code = append(code, 0xC3)
		}
	}
	return code, nil
}

func newTestExec(t *testing.T, signature string) (*Exec, *retCompiler, *countingStrategy) {
	sig := must.M1(symbolic.ParseSignature(signature))
	constraints := make([]symbolic.Constraint, len(sig))
	compiler := &retCompiler{}
	strategy := &countingStrategy{Strategy: memmapper.New(t.Name())}
	exec := MustNewExec("", sig, constraints, compiler.compile).WithStrategy(strategy)
	t.Cleanup(exec.Finalize)
	return exec, compiler, strategy
}

func TestCall(t *testing.T) {
	exec, compiler, strategy := newTestExec(t, "?,?")
	require.True(t, strings.HasPrefix(exec.Name(), "jit_"))

	entry, err := exec.Call(symbolic.Dims{4}, symbolic.Dims{4})
	require.NoError(t, err)
	require.Equal(t, []symbolic.Shape{{-2}, {-2}}, entry.Shapes)
	require.Equal(t, []symbolic.Shape{{-1}, {-1}}, entry.Normalized)
	require.Equal(t, "#2,#2", entry.Key)
	require.Equal(t, memmapper.ProtRead|memmapper.ProtExec, entry.Code.Protection())
	require.Equal(t, []byte{0xC3, 0xC3, 0xC3}, entry.Code.Bytes()[:3])

	// Same symbolic shape: cached, even with different runtime values.
	entry2, err := exec.Call(symbolic.Dims{5}, symbolic.Dims{5})
	require.NoError(t, err)
	require.Same(t, entry, entry2)
	require.Equal(t, int64(2), entry.Calls())

	// Different symbolic shape.
	entry3, err := exec.Call(symbolic.Dims{4}, symbolic.Dims{5})
	require.NoError(t, err)
	require.NotSame(t, entry, entry3)
	entry4, err := exec.Call(symbolic.Dims{1}, symbolic.Dims{5})
	require.NoError(t, err)
	require.Equal(t, []symbolic.Shape{{1}, {-2}}, entry4.Shapes)

	require.Equal(t, int32(3), compiler.compilations.Load())
	require.Equal(t, Stats{Entries: 3, Hits: 1, Misses: 3}, exec.Stats())
	require.Equal(t, int32(3), strategy.allocs.Load())
	require.Equal(t, int32(3), strategy.protects.Load())

	exec.Finalize()
	require.Equal(t, 0, exec.Len())
	require.Equal(t, int32(3), strategy.releases.Load())
}

func TestCallErrors(t *testing.T) {
	exec, compiler, _ := newTestExec(t, "8x?")

	_, err := exec.Call(symbolic.Dims{9, 3})
	require.ErrorIs(t, err, symbolic.ErrShapeMismatch)
	_, err = exec.Call(symbolic.Dims{8, 3}, symbolic.Dims{1})
	require.ErrorIs(t, err, symbolic.ErrShapeMismatch)
	require.Zero(t, compiler.compilations.Load())

	compiler.err = errors.New("unsupported op")
	_, err = exec.Call(symbolic.Dims{8, 3})
	require.ErrorContains(t, err, "unsupported op")
	require.Equal(t, 0, exec.Len())

	compiler.err = nil
	_, err = exec.Call(symbolic.Dims{8, 3})
	require.NoError(t, err)
	require.Equal(t, 1, exec.Len())
}

func TestMaxCacheAndEvict(t *testing.T) {
	exec, compiler, strategy := newTestExec(t, "?")
	exec.SetMaxCache(1)

	entry, err := exec.Call(symbolic.Dims{3})
	require.NoError(t, err)
	_, err = exec.Call(symbolic.Dims{1})
	require.ErrorContains(t, err, "maximum cache size")

	require.NoError(t, exec.Evict(entry.Key))
	require.True(t, entry.Code.IsEmpty())
	require.Equal(t, int32(1), strategy.releases.Load())
	require.Error(t, exec.Evict(entry.Key))

	_, err = exec.Call(symbolic.Dims{1})
	require.NoError(t, err)
	require.Equal(t, int32(2), compiler.compilations.Load())

	exec.SetMaxCache(-1)
	for dim := range int64(10) {
		_, err = exec.Call(symbolic.Dims{dim + 2})
		require.NoError(t, err)
	}
	require.Equal(t, 2, exec.Len())
}

func TestEvictReleaseFailureKeepsEntry(t *testing.T) {
	exec, _, strategy := newTestExec(t, "?")
	entry, err := exec.Call(symbolic.Dims{3})
	require.NoError(t, err)

	strategy.failRelease = true
	require.ErrorContains(t, exec.Evict(entry.Key), "release refused")
	require.Equal(t, 1, exec.Len())
	require.False(t, entry.Code.IsEmpty())

	// The entry is still cached, so the release can be retried.
	strategy.failRelease = false
	require.NoError(t, exec.Evict(entry.Key))
	require.Equal(t, 0, exec.Len())
	require.True(t, entry.Code.IsEmpty())
	require.Equal(t, int32(2), strategy.releases.Load())
}

func TestProtectFailureReleasesCode(t *testing.T) {
	exec, _, strategy := newTestExec(t, "?")
	strategy.failProtect = true
	_, err := exec.Call(symbolic.Dims{3})
	require.ErrorContains(t, err, "protection refused")
	require.Equal(t, int32(1), strategy.allocs.Load())
	require.Equal(t, int32(1), strategy.releases.Load())
	require.Equal(t, 0, exec.Len())
}

func TestConcurrentCalls(t *testing.T) {
	exec, compiler, _ := newTestExec(t, "?x?,?")
	const numGoroutines = 16
	var wg sync.WaitGroup
	entries := make([]*Entry, numGoroutines)
	errs := make([]error, numGoroutines)
	for ii := range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dim := int64(ii + 10)
			entries[ii], errs[ii] = exec.Call(symbolic.Dims{dim, 3}, symbolic.Dims{dim})
		}()
	}
	wg.Wait()
	for ii := range numGoroutines {
		require.NoError(t, errs[ii])
		require.Same(t, entries[0], entries[ii])
	}
	require.Equal(t, int32(1), compiler.compilations.Load())
	require.Equal(t, int64(numGoroutines), entries[0].Calls())
}
