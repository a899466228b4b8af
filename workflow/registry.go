package workflow

import (
	"context"
	"sync"
)

// GenericExecutor runs a Generic node whose behavior is not one of the
// built-in kinds. Registered against an executorType string via
// Engine.RegisterGenericExecutor.
type GenericExecutor interface {
	Execute(ctx context.Context, node GenericNode, execContext map[string]any) (NodeResult, error)
}

// GenericExecutorFunc adapts a function to GenericExecutor.
type GenericExecutorFunc func(ctx context.Context, node GenericNode, execContext map[string]any) (NodeResult, error)

// Execute implements GenericExecutor.
func (f GenericExecutorFunc) Execute(ctx context.Context, node GenericNode, execContext map[string]any) (NodeResult, error) {
	return f(ctx, node, execContext)
}

// Merger reconciles per-target Join outputs for MergeCustom, registered
// by name.
type Merger interface {
	Merge(outputs map[string]any, targets []string) (any, error)
}

// MergerFunc adapts a function to Merger.
type MergerFunc func(outputs map[string]any, targets []string) (any, error)

// Merge implements Merger.
func (f MergerFunc) Merge(outputs map[string]any, targets []string) (any, error) {
	return f(outputs, targets)
}

// registry hosts the user-extensible handler maps: Generic node
// executors and Join CUSTOM mergers. Built-in node kinds (Standard,
// Action, Loop, Parallel, Fork, Join, SubWorkflow, End) dispatch through
// a direct switch in Engine.dispatch instead, since their behavior is
// fixed and performance-sensitive; only genuinely user-defined variants
// need the indirection of a runtime-mutable map.
type registry struct {
	mu       sync.RWMutex
	generics map[string]GenericExecutor
	mergers  map[string]Merger
}

func newRegistry() *registry {
	return &registry{
		generics: make(map[string]GenericExecutor),
		mergers:  make(map[string]Merger),
	}
}

func (r *registry) registerGeneric(executorType string, e GenericExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generics[executorType] = e
}

func (r *registry) generic(executorType string) (GenericExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.generics[executorType]
	return e, ok
}

func (r *registry) registerMerger(name string, m Merger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergers[name] = m
}

func (r *registry) merger(name string) (Merger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mergers[name]
	return m, ok
}
