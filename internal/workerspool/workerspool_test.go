// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolLimitsParallelism(t *testing.T) {
	const maxParallelism = 3
	pool := New().SetMaxParallelism(maxParallelism)
	var running, peak, count atomic.Int32
	for range 20 {
		pool.Go(func() error {
			current := running.Add(1)
			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			count.Add(1)
			return nil
		})
	}
	require.NoError(t, pool.Wait())
	assert.Equal(t, int32(20), count.Load())
	assert.LessOrEqual(t, peak.Load(), int32(maxParallelism))
}

func TestPoolFirstError(t *testing.T) {
	pool := New().SetMaxParallelism(0)
	var count int
	for ii := range 5 {
		pool.Go(func() error {
			count++
			if ii >= 2 {
				return errors.Errorf("task #%d", ii)
			}
			return nil
		})
	}
	err := pool.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task #2")
	assert.Equal(t, 5, count)

	pool = New().SetMaxParallelism(-1)
	for range 10 {
		pool.Go(func() error { return nil })
	}
	require.NoError(t, pool.Wait())
}
