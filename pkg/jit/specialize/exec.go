// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package specialize implements the dispatch of a JIT-compiled function: one executable is compiled
// per distinct symbolic shape of the operands, and cached for later calls with an equal symbolic shape.
//
// It glues together the symbolic.Resolver (which shape class a call belongs to) and a
// memmapper.Strategy (where the compiled code lives).
//
// Example:
//
//	exec := specialize.MustNewExec("matmul", signature, constraints, compileFn)
//	defer exec.Finalize()
//	entry, err := exec.Call(symbolic.Dims{4, 8}, symbolic.Dims{8, 16})
//	if err != nil { ... }
//	code := entry.Code.Base() // Entry point of the executable.
package specialize

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/jitrt/pkg/jit/memmapper"
	"github.com/gomlx/jitrt/pkg/jit/symbolic"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CompileFn compiles the function for the given symbolic shapes of its operands, and returns
// the machine code.
type CompileFn func(shapes []symbolic.Shape) ([]byte, error)

// Entry is one compiled specialization of the function.
type Entry struct {
	// Key of the entry in the cache, see symbolic.Key.
	Key string

	// Shapes are the symbolic shapes the entry was compiled for.
	Shapes []symbolic.Shape

	// Normalized holds the Shapes with all symbolic dimensions replaced by symbolic.DimDynamic,
	// to be exported outside the engine.
	Normalized []symbolic.Shape

	// Code holds the compiled code, read-only and executable.
	Code memmapper.Block

	calls atomic.Int64
}

// Calls returns the number of times the entry was returned by Exec.Call.
func (e *Entry) Calls() int64 { return e.calls.Load() }

// Stats of the cache of an Exec.
type Stats struct {
	Entries, Hits, Misses int
}

// Exec compiles and caches a function for each different symbolic shape of its operands.
//
// For safety there is a maximum number of different specializations of the function. It can be
// set or disabled with SetMaxCache.
//
// It is safe for concurrent use.
type Exec struct {
	name      string
	resolver  *symbolic.Resolver
	compileFn CompileFn

	// Protects the fields below.
	cacheMu      sync.Mutex
	strategy     memmapper.Strategy
	maxCacheSize int
	cache        map[string]*Entry
	hits, misses int
}

// DefaultMaxCacheSize is the default maximum number of specializations kept by an Exec.
const DefaultMaxCacheSize = 32

// NewExec creates an Exec for a function with the given signature and operand constraints.
// If name is empty, a unique one is generated.
//
// The code is placed in memory allocated with memmapper.New(name), see WithStrategy to change it.
func NewExec(name string, signature symbolic.Signature, constraints []symbolic.Constraint, compileFn CompileFn) (*Exec, error) {
	if compileFn == nil {
		return nil, errors.New("specialize.NewExec requires a non-nil compileFn")
	}
	resolver, err := symbolic.NewResolver(signature, constraints)
	if err != nil {
		return nil, errors.WithMessagef(err, "specialize.NewExec(%q)", name)
	}
	if name == "" {
		name = "jit_" + uuid.NewString()
	}
	return &Exec{
		name:         name,
		resolver:     resolver,
		compileFn:    compileFn,
		strategy:     memmapper.New(name),
		maxCacheSize: DefaultMaxCacheSize,
		cache:        make(map[string]*Entry),
	}, nil
}

// MustNewExec creates an Exec with NewExec, and panics if it fails.
func MustNewExec(name string, signature symbolic.Signature, constraints []symbolic.Constraint, compileFn CompileFn) *Exec {
	return must.M1(NewExec(name, signature, constraints, compileFn))
}

// Name of the Exec, also used as the label of its code memory.
func (e *Exec) Name() string { return e.name }

// Resolver used to compute the symbolic shapes of the operands.
func (e *Exec) Resolver() *symbolic.Resolver { return e.resolver }

// WithStrategy sets the memory mapping strategy used to allocate the compiled code.
// It should be set before the first call.
func (e *Exec) WithStrategy(strategy memmapper.Strategy) *Exec {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.strategy = strategy
	return e
}

// SetMaxCache sets the maximum size of the cache.
// Set it to -1 to have unlimited cache size.
// It returns a reference to itself, so calls can be cascaded.
func (e *Exec) SetMaxCache(maxCacheSize int) *Exec {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.maxCacheSize = maxCacheSize
	return e
}

// Call returns the compiled entry for the operands: if there is no compiled entry for their
// symbolic shapes yet, one is compiled and cached.
//
// It returns an error wrapping symbolic.ErrShapeMismatch if the operands don't match the signature.
func (e *Exec) Call(operands ...symbolic.Operand) (*Entry, error) {
	shapes, err := e.resolver.Resolve(operands)
	if err != nil {
		return nil, errors.WithMessagef(err, "%q called with invalid operands", e.name)
	}
	key := symbolic.Key(shapes)

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if entry, found := e.cache[key]; found {
		e.hits++
		entry.calls.Add(1)
		return entry, nil
	}
	if e.maxCacheSize >= 0 && len(e.cache) >= e.maxCacheSize {
		return nil, errors.Errorf(
			"maximum cache size (%d) reached for %q, cannot compile another specialization for shapes %s -- "+
				"a new executable needs to be compiled for each different symbolic shape of the operands, "+
				"consider evicting entries, or change the cache size with Exec.SetMaxCache()",
			e.maxCacheSize, e.name, key)
	}
	e.misses++
	entry, err := e.lockedCompile(key, shapes)
	if err != nil {
		return nil, err
	}
	entry.calls.Add(1)
	e.cache[key] = entry
	return entry, nil
}

// lockedCompile compiles the function for the shapes and places the code in executable memory.
// It must be called with cacheMu locked.
func (e *Exec) lockedCompile(key string, shapes []symbolic.Shape) (*Entry, error) {
	code, err := e.compileFn(shapes)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to compile %q for shapes %s", e.name, key)
	}
	if len(code) == 0 {
		return nil, errors.Errorf("compiling %q for shapes %s returned no code", e.name, key)
	}
	block, err := e.strategy.AllocateMappedMemory(memmapper.PurposeCode, len(code), memmapper.ProtRead|memmapper.ProtWrite)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to allocate %s for the code of %q", humanize.Bytes(uint64(len(code))), e.name)
	}
	copy(block.Bytes(), code)
	if err = e.strategy.ProtectMappedMemory(&block, memmapper.ProtRead|memmapper.ProtExec); err != nil {
		if releaseErr := e.strategy.ReleaseMappedMemory(&block); releaseErr != nil {
			klog.Warningf("%q: failed to release code memory: %v", e.name, releaseErr)
		}
		return nil, errors.WithMessagef(err, "failed to make the code of %q executable", e.name)
	}
	klog.V(1).Infof("%q: compiled specialization #%d for shapes %s (%s of code)",
		e.name, len(e.cache), key, humanize.Bytes(uint64(len(code))))
	return &Entry{
		Key:        key,
		Shapes:     shapes,
		Normalized: symbolic.NormalizeAll(shapes),
		Code:       block,
	}, nil
}

// Evict releases the code memory of the entry with the given key, and removes it from the cache.
// If the release fails the entry is kept, so Evict can be retried.
// The entry's code must not be executing anymore.
func (e *Exec) Evict(key string) error {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	entry, found := e.cache[key]
	if !found {
		return errors.Errorf("%q has no entry for shapes %s", e.name, key)
	}
	if err := e.strategy.ReleaseMappedMemory(&entry.Code); err != nil {
		return errors.WithMessagef(err, "failed to release code of %q for shapes %s, entry kept", e.name, key)
	}
	delete(e.cache, key)
	return nil
}

// Len returns the number of cached entries.
func (e *Exec) Len() int {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	return len(e.cache)
}

// Stats returns the number of entries, hits and misses of the cache.
func (e *Exec) Stats() Stats {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	return Stats{Entries: len(e.cache), Hits: e.hits, Misses: e.misses}
}

// String implements fmt.Stringer.
func (e *Exec) String() string {
	stats := e.Stats()
	return fmt.Sprintf("Exec(%q, %s, %d entries, %d hits, %d misses)",
		e.name, e.resolver.Signature(), stats.Entries, stats.Hits, stats.Misses)
}

// Finalize clears the cache, releasing the memory of all compiled code. The Exec object
// shouldn't be used after that.
func (e *Exec) Finalize() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	for key, entry := range e.cache {
		if err := e.strategy.ReleaseMappedMemory(&entry.Code); err != nil {
			klog.Warningf("%q: failed to release code for shapes %s: %v", e.name, key, err)
		}
	}
	clear(e.cache)
}
