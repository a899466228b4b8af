package workflow

import (
	"context"
	"sync"

	"github.com/hensuflow/hensu/action"
	"github.com/hensuflow/hensu/agent"
	"github.com/hensuflow/hensu/emit"
)

// Engine is the workflow loop interpreter: it resolves the current node,
// wraps executor dispatch in the pre/post processor pipelines, and
// repeats until the execution reaches a terminal node or short-circuits.
type Engine struct {
	cfg *engineConfig
	reg *registry

	// workflows holds every workflow the engine knows about, keyed by
	// id, so SubWorkflowNodeExecutor can look up children by name.
	workflows map[string]*Workflow

	// forkJoins holds in-flight fork target goroutines keyed by
	// forkJoinKey(executionID, forkNodeID), so a later Join node can
	// await their completion without re-dispatching them.
	forkJoins sync.Map

	// slots bounds concurrent Parallel branch / Fork target goroutines.
	slots *taskSlot
}

// New constructs an Engine over workflow, applying opts in order. Sibling
// workflows invokable as SubWorkflow children are added afterwards with
// RegisterSubWorkflow.
func New(workflow *Workflow, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.agents == nil {
		cfg.agents = agent.NewRegistry()
	}
	if cfg.actions == nil {
		cfg.actions = &action.Mock{}
	}
	if cfg.rubrics == nil {
		cfg.rubrics = AlwaysPassRubricEngine{}
	}
	if cfg.reviews == nil {
		cfg.reviews = AutoApproveReviewHandler{}
	}
	if cfg.planner == nil {
		cfg.planner = NewStaticPlanner(nil)
	}
	if cfg.stepHandlers == nil {
		cfg.stepHandlers = NewStepHandlerRegistry(cfg.actions, cfg.agents)
	}

	e := &Engine{
		cfg:       cfg,
		reg:       newRegistry(),
		workflows: map[string]*Workflow{workflow.ID: workflow},
		slots:     newTaskSlot(cfg.threadPoolSize, cfg.useVirtualThreads),
	}
	return e, nil
}

// RegisterSubWorkflow makes child available to SubWorkflow nodes by id.
func (e *Engine) RegisterSubWorkflow(child *Workflow) {
	e.workflows[child.ID] = child
}

// RegisterGenericExecutor wires a GenericExecutor for Generic nodes whose
// ExecutorType matches executorType.
func (e *Engine) RegisterGenericExecutor(executorType string, ex GenericExecutor) {
	e.reg.registerGeneric(executorType, ex)
}

// RegisterMerger wires a Merger for Join nodes whose MergeStrategy is
// MergeCustom and MergerName matches name.
func (e *Engine) RegisterMerger(name string, m Merger) {
	e.reg.registerMerger(name, m)
}

// Execute runs workflow to completion or the first short-circuit,
// allocating fresh HensuState at workflow.StartNodeID.
func (e *Engine) Execute(ctx context.Context, workflow *Workflow, executionID string, initialContext map[string]any) *ExecutionResult {
	state := NewHensuState(executionID, workflow.ID, workflow.StartNodeID, initialContext)
	return e.run(ctx, workflow, state)
}

// Resume continues an execution from a previously persisted snapshot,
// e.g. after a PENDING short-circuit or a crash-recovered lease claim.
func (e *Engine) Resume(ctx context.Context, workflow *Workflow, snapshot HensuSnapshot) *ExecutionResult {
	return e.run(ctx, workflow, snapshot.ToState())
}

func (e *Engine) run(ctx context.Context, workflow *Workflow, state *HensuState) *ExecutionResult {
	steps := 0
	for {
		if ctx.Err() != nil {
			state.AppendStep(state.CurrentNodeID, NodeResult{Status: StatusCancelled}, "cancelled")
			return &ExecutionResult{Exit: ExitCancelled, State: state, Err: ctx.Err()}
		}

		if state.IsTerminal() {
			return &ExecutionResult{Exit: ExitSuccess, State: state}
		}

		if e.cfg.maxSteps > 0 && steps >= e.cfg.maxSteps {
			return &ExecutionResult{State: state, Err: &FatalError{Message: "workflow exceeded max steps"}}
		}
		steps++

		node, ok := workflow.Nodes[state.CurrentNodeID]
		if !ok {
			return &ExecutionResult{State: state, Err: &FatalError{NodeID: state.CurrentNodeID, Message: "current node not found in workflow"}}
		}

		pc := &ProcessorContext{State: state, Workflow: workflow, Node: node}

		if outcome, err := runPreProcessors(e.prePipeline(), pc); err != nil {
			return &ExecutionResult{State: state, Err: err}
		} else if outcome != nil {
			return outcome
		}

		result, err := e.dispatch(ctx, workflow, node, state)
		if err != nil {
			var fatal *FatalError
			if asFatal(err, &fatal) {
				return &ExecutionResult{State: state, Err: fatal}
			}
			result = NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": err.Error()}}
		}
		pc.Result = &result

		outcome, err := runPostProcessors(e.postPipeline(), pc)
		if err != nil {
			return &ExecutionResult{State: state, Err: err}
		}
		if outcome != nil {
			return outcome
		}

		if node.Kind == KindEnd {
			return &ExecutionResult{Exit: node.End.Status, State: state}
		}
	}
}

func asFatal(err error, target **FatalError) bool {
	if f, ok := err.(*FatalError); ok {
		*target = f
		return true
	}
	return false
}

func (e *Engine) prePipeline() []preProcessor {
	return []preProcessor{
		&checkpointProcessor{listeners: e.cfg.listeners},
		&nodeStartProcessor{listeners: e.cfg.listeners},
	}
}

func (e *Engine) postPipeline() []postProcessor {
	return []postProcessor{
		&outputExtractionProcessor{byteLimit: e.cfg.outputByteLimit},
		&nodeCompleteProcessor{listeners: e.cfg.listeners},
		&historyProcessor{},
		&reviewProcessor{handler: e.cfg.reviews},
		&rubricProcessor{engine: e.cfg.rubrics, listeners: e.cfg.listeners},
		&transitionProcessor{},
	}
}

// dispatch is the node executor registry: a direct switch over the
// fixed, performance-sensitive set of built-in node kinds, falling back
// to the generics registry only for Generic nodes.
func (e *Engine) dispatch(ctx context.Context, workflow *Workflow, node Node, state *HensuState) (NodeResult, error) {
	switch node.Kind {
	case KindStandard:
		return e.executeStandard(ctx, workflow, node, state)
	case KindAction:
		return e.executeAction(ctx, node, state)
	case KindLoop:
		return e.executeLoop(ctx, workflow, node, state)
	case KindParallel:
		return e.executeParallel(ctx, node, state)
	case KindFork:
		return e.executeFork(ctx, workflow, node, state)
	case KindJoin:
		return e.executeJoin(ctx, node, state)
	case KindSubWorkflow:
		return e.executeSubWorkflow(ctx, node, state)
	case KindEnd:
		return NodeResult{Status: StatusSuccess}, nil
	case KindGeneric:
		return e.executeGeneric(ctx, node, state)
	default:
		return NodeResult{}, &FatalError{NodeID: node.ID, Message: "unknown node kind", Cause: ErrNoExecutor}
	}
}

func (e *Engine) emit(kind emit.Kind, executionID, workflowID, nodeID, msg string, meta map[string]any) {
	e.cfg.listeners.Notify(emit.Event{
		Kind:        kind,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		NodeID:      nodeID,
		Msg:         msg,
		Meta:        meta,
	})
}
