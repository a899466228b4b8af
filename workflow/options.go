package workflow

import (
	"time"

	"github.com/hensuflow/hensu/action"
	"github.com/hensuflow/hensu/agent"
	"github.com/hensuflow/hensu/emit"
)

// Option configures an Engine. Functional options keep construction
// self-documenting and let callers specify only what they need.
type Option func(*engineConfig) error

type engineConfig struct {
	agents              *agent.Registry
	actions             action.Executor
	templates           TemplateResolver
	rubrics             RubricEngine
	reviews             ReviewHandler
	planner             Planner
	stepHandlers        *StepHandlerRegistry
	listeners           *emit.Manager
	metrics             *emit.Metrics

	maxSteps             int
	defaultNodeTimeout   time.Duration
	parallelBranchTimeout time.Duration
	outputByteLimit      int
	threadPoolSize       int
	useVirtualThreads    bool
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		templates:             NewSimpleTemplateResolver(),
		listeners:             emit.NewManager(),
		maxSteps:              0,
		defaultNodeTimeout:    30 * time.Second,
		parallelBranchTimeout: 300 * time.Second,
		outputByteLimit:       1 << 20,
		threadPoolSize:        8,
	}
}

// WithAgentRegistry supplies the AgentRegistry Standard and Parallel
// nodes resolve agent ids against.
func WithAgentRegistry(r *agent.Registry) Option {
	return func(c *engineConfig) error { c.agents = r; return nil }
}

// WithActionExecutor supplies the ActionExecutor Action nodes and the
// ToolCallStepHandler dispatch through.
func WithActionExecutor(e action.Executor) Option {
	return func(c *engineConfig) error { c.actions = e; return nil }
}

// WithTemplateResolver overrides the default {var}-substitution resolver.
func WithTemplateResolver(t TemplateResolver) Option {
	return func(c *engineConfig) error { c.templates = t; return nil }
}

// WithRubricEngine supplies the evaluator RubricPostProcessor calls.
func WithRubricEngine(r RubricEngine) Option {
	return func(c *engineConfig) error { c.rubrics = r; return nil }
}

// WithReviewHandler supplies the blocking human-decision collaborator
// used by ReviewPostProcessor and the planning pipeline's review gates.
func WithReviewHandler(h ReviewHandler) Option {
	return func(c *engineConfig) error { c.reviews = h; return nil }
}

// WithPlanner supplies the Planner used by planning-enabled Standard
// nodes. Defaults to a StaticPlanner with no predefined plans if unset.
func WithPlanner(p Planner) Option {
	return func(c *engineConfig) error { c.planner = p; return nil }
}

// WithStepHandlerRegistry overrides the default ToolCall/Synthesize step
// handler registry.
func WithStepHandlerRegistry(r *StepHandlerRegistry) Option {
	return func(c *engineConfig) error { c.stepHandlers = r; return nil }
}

// WithListener subscribes a Listener to lifecycle events.
func WithListener(l emit.Listener) Option {
	return func(c *engineConfig) error { c.listeners.Subscribe(l); return nil }
}

// WithMetrics attaches a Prometheus-backed Listener in addition to any
// others registered with WithListener.
func WithMetrics(m *emit.Metrics) Option {
	return func(c *engineConfig) error {
		c.metrics = m
		c.listeners.Subscribe(m)
		return nil
	}
}

// WithMaxSteps caps Workflow Loop iterations to guard against
// misconfigured infinite loops. Default 0 means unlimited.
func WithMaxSteps(n int) Option {
	return func(c *engineConfig) error { c.maxSteps = n; return nil }
}

// WithDefaultNodeTimeout sets the default per-node execution timeout
// stored on the engine configuration. Default 30s. The Workflow Loop does
// not apply it: node dispatch is bounded only by the caller's ctx.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(c *engineConfig) error { c.defaultNodeTimeout = d; return nil }
}

// WithParallelBranchTimeout sets the per-branch timeout for Parallel
// nodes. Default 300s.
func WithParallelBranchTimeout(d time.Duration) Option {
	return func(c *engineConfig) error { c.parallelBranchTimeout = d; return nil }
}

// WithOutputByteLimit sets the UTF-8 byte limit OutputExtractionPostProcessor
// enforces on node output before storing it in context. Default 1 MiB.
func WithOutputByteLimit(n int) Option {
	return func(c *engineConfig) error { c.outputByteLimit = n; return nil }
}

// WithThreadPoolSize sets the worker pool size used for Parallel/Fork
// task dispatch when not using a lightweight-task scheduler. Default 8.
func WithThreadPoolSize(n int) Option {
	return func(c *engineConfig) error { c.threadPoolSize = n; return nil }
}

// WithVirtualThreads selects a goroutine-per-task scheduler instead of a
// fixed worker pool for Parallel/Fork dispatch.
func WithVirtualThreads(enabled bool) Option {
	return func(c *engineConfig) error { c.useVirtualThreads = enabled; return nil }
}
