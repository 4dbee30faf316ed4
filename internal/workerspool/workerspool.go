// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs batches of fallible tasks with bounded parallelism.
// It is used to stress the JIT memory mapper from many goroutines at once.
package workerspool

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// Pool runs tasks in goroutines, at most maxParallelism at a time, and collects the first error.
type Pool struct {
	maxParallelism int

	mu       sync.Mutex
	cond     sync.Cond // Signaled whenever numRunning is decreased.
	running  int
	wg       sync.WaitGroup
	firstErr error
}

// New returns a new Pool with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	p := &Pool{maxParallelism: runtime.NumCPU()}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// MaxParallelism returns the limit of tasks running at the same time.
// If 0, tasks run inline. If -1, parallelism is unlimited.
func (p *Pool) MaxParallelism() int {
	return p.maxParallelism
}

// SetMaxParallelism sets the limit of tasks running at the same time.
// It should only be changed before any task is started.
// It returns a reference to itself, so calls can be cascaded.
func (p *Pool) SetMaxParallelism(maxParallelism int) *Pool {
	p.maxParallelism = maxParallelism
	return p
}

// lockedIsFull returns whether all workers are in use. It must be called with mu locked.
func (p *Pool) lockedIsFull() bool {
	return p.maxParallelism >= 0 && p.running >= p.maxParallelism
}

// Go waits until there is a worker available and runs task in it.
// If parallelism is disabled (MaxParallelism() == 0), task runs inline.
func (p *Pool) Go(task func() error) {
	if p.maxParallelism == 0 {
		p.record(task())
		return
	}
	p.mu.Lock()
	for p.lockedIsFull() {
		p.cond.Wait()
	}
	p.running++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := task()
		p.mu.Lock()
		p.running--
		p.lockedRecord(err)
		p.cond.Signal()
		p.mu.Unlock()
	}()
}

func (p *Pool) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lockedRecord(err)
}

func (p *Pool) lockedRecord(err error) {
	if err != nil && p.firstErr == nil {
		p.firstErr = err
	}
}

// Wait for all started tasks to finish, and returns the first error returned by any of them.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.WithMessage(p.firstErr, "task failed")
}
