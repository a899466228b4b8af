// Package workflow implements the execution kernel: the graph interpreter,
// the per-node pre/post processor pipelines, the planning sub-system, and
// the fork/join and parallel-consensus concurrency primitives.
package workflow

import "fmt"

// Workflow is an immutable directed graph of Nodes plus the agents,
// rubrics, and config referenced by them. Construct with NewWorkflow,
// which validates structural invariants once up front so they never need
// rechecking at runtime.
type Workflow struct {
	ID            string
	Version       int
	Nodes         map[string]Node
	StartNodeID   string
	Agents        map[string]AgentConfig
	Rubrics       map[string]string
	Metadata      map[string]any
	Config        map[string]any
}

// AgentConfig names the provider-level configuration for an agent id
// referenced by Standard and Parallel-branch nodes. The actual Agent
// instance lives in an agent.Registry keyed by the same id.
type AgentConfig struct {
	Provider     string
	Model        string
	SystemPrompt string
}

// NewWorkflow constructs and validates a Workflow. Configuration errors
// (invalid structure, missing start node, dangling references) are
// rejected here so they never surface at runtime.
func NewWorkflow(id string, version int, nodes map[string]Node, startNodeID string, agents map[string]AgentConfig, rubrics map[string]string) (*Workflow, error) {
	w := &Workflow{
		ID:          id,
		Version:     version,
		Nodes:       nodes,
		StartNodeID: startNodeID,
		Agents:      agents,
		Rubrics:     rubrics,
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workflow) validate() error {
	if _, ok := w.Nodes[w.StartNodeID]; !ok {
		return &ConfigError{Message: fmt.Sprintf("start node %q is not in nodes", w.StartNodeID)}
	}
	for id, n := range w.Nodes {
		if n.ID != id {
			return &ConfigError{Message: fmt.Sprintf("node map key %q does not match node.ID %q", id, n.ID)}
		}
		if n.Kind == KindStandard && n.Standard != nil && n.Standard.RubricID != "" {
			if _, ok := w.Rubrics[n.Standard.RubricID]; !ok {
				return &ConfigError{Message: fmt.Sprintf("node %q references unknown rubric %q", id, n.Standard.RubricID)}
			}
		}
		for _, tr := range n.TransitionRules {
			target := tr.Target
			if target != "" {
				if _, ok := w.Nodes[target]; !ok {
					return &ConfigError{Message: fmt.Sprintf("node %q transition targets unknown node %q", id, target)}
				}
			}
		}
		if n.Kind == KindStandard && n.Standard != nil && n.Standard.PlanFailureTarget != "" {
			if _, ok := w.Nodes[n.Standard.PlanFailureTarget]; !ok {
				return &ConfigError{Message: fmt.Sprintf("node %q planFailureTarget targets unknown node %q", id, n.Standard.PlanFailureTarget)}
			}
		}
	}
	return nil
}

// NodeKind tags which variant a Node holds.
type NodeKind string

const (
	KindStandard    NodeKind = "standard"
	KindAction      NodeKind = "action"
	KindLoop        NodeKind = "loop"
	KindParallel    NodeKind = "parallel"
	KindFork        NodeKind = "fork"
	KindJoin        NodeKind = "join"
	KindSubWorkflow NodeKind = "sub_workflow"
	KindEnd         NodeKind = "end"
	KindGeneric     NodeKind = "generic"
)

// Node is the tagged-variant unit of work in a Workflow graph. Exactly the
// field matching Kind is populated; every Node carries an ID and
// TransitionRules regardless of kind.
type Node struct {
	ID              string
	Kind            NodeKind
	TransitionRules []TransitionRule

	Standard    *StandardNode
	Action      *ActionNode
	Loop        *LoopNode
	Parallel    *ParallelNode
	Fork        *ForkNode
	Join        *JoinNode
	SubWorkflow *SubWorkflowNode
	End         *EndNode
	Generic     *GenericNode
}

// StandardNode invokes an agent with a templated prompt, optionally
// extracting named output parameters, gating on review/rubric, and
// optionally delegating to the planning pipeline.
type StandardNode struct {
	AgentID           string
	Prompt            string
	OutputParams      []string
	RubricID          string
	ReviewConfig      *ReviewConfig
	PlanningConfig    *PlanningConfig
	PlanFailureTarget string
}

// ReviewMode controls whether ReviewPostProcessor requests a human decision.
type ReviewMode string

const (
	ReviewDisabled ReviewMode = "DISABLED"
	ReviewOptional ReviewMode = "OPTIONAL"
	ReviewRequired ReviewMode = "REQUIRED"
)

// ReviewConfig governs ReviewPostProcessor behavior for a node.
type ReviewConfig struct {
	Mode            ReviewMode
	AllowBacktrack  bool
	AllowStateEdit  bool
}

// PlanningConfig enables the planning pipeline on a Standard node.
type PlanningConfig struct {
	Enabled     bool
	Review      bool
	Constraints PlanConstraints
}

// ActionNode dispatches a sequence of Actions to the ActionExecutor.
type ActionNode struct {
	Actions []ActionSpec
}

// ActionSpec names an action.Action to dispatch; the kernel stays
// decoupled from the action package's concrete type by mirroring its
// tagged-variant fields here.
type ActionSpec struct {
	Kind      string // "send" | "execute" | "http_call" | "notify"
	HandlerID string
	Payload   map[string]any
	CommandID string
	Endpoint  string
	Method    string
	Headers   map[string]string
	Body      string
	Channel   string
	Message   string
}

// LoopNode repeatedly dispatches BodyNode while Condition holds and
// MaxIterations has not been reached.
type LoopNode struct {
	BodyNode      string
	MaxIterations int
	Condition     LoopCondition
	BreakRules    []BreakRule
}

// LoopCondition gates whether another loop iteration runs.
type LoopCondition struct {
	Always     bool
	Expression string
}

// BreakRule is evaluated after each loop iteration; the first rule whose
// Condition matches sets loopBreakTarget.
type BreakRule struct {
	Condition LoopCondition
	Target    string
}

// ParallelNode runs Branches concurrently and optionally reconciles them
// through a ConsensusConfig.
type ParallelNode struct {
	Branches       []Branch
	ConsensusConfig *ConsensusConfig
}

// Branch is one concurrent agent invocation inside a ParallelNode.
type Branch struct {
	ID       string
	AgentID  string
	Prompt   string
	RubricID string
	Weight   float64
}

// ConsensusStrategy names how ParallelNode branch results are reconciled.
type ConsensusStrategy string

const (
	MajorityVote  ConsensusStrategy = "MAJORITY_VOTE"
	UnanimousVote ConsensusStrategy = "UNANIMOUS"
	WeightedVote  ConsensusStrategy = "WEIGHTED_VOTE"
	JudgeDecides  ConsensusStrategy = "JUDGE_DECIDES"
)

// ConsensusConfig parameterizes the consensus evaluator for a ParallelNode.
type ConsensusConfig struct {
	Strategy  ConsensusStrategy
	Threshold float64 // WEIGHTED_VOTE
	JudgeID   string  // JUDGE_DECIDES
}

// ForkNode submits each of Targets as an independent task through the
// registry and records its result into a shared ForkJoinContext.
type ForkNode struct {
	Targets      []string
	TargetConfigs map[string]map[string]any
	WaitForAll   bool
}

// MergeStrategy names how Join reconciles per-target outputs.
type MergeStrategy string

const (
	MergeCollectAll      MergeStrategy = "COLLECT_ALL"
	MergeFirstCompleted  MergeStrategy = "FIRST_COMPLETED"
	MergeConcatenate     MergeStrategy = "CONCATENATE"
	MergeMaps            MergeStrategy = "MERGE_MAPS"
	MergeCustom          MergeStrategy = "CUSTOM"
)

// JoinNode waits on one or more ForkJoinContexts named by AwaitTargets and
// merges their per-target outputs into OutputField.
type JoinNode struct {
	AwaitTargets   []string
	MergeStrategy  MergeStrategy
	MergerName     string // used when MergeStrategy == MergeCustom
	OutputField    string
	TimeoutMs      int
	FailOnAnyError bool
}

// SubWorkflowNode recursively executes ChildWorkflowID through the same
// Workflow Loop, projecting context in and out via the mappings.
// InputMapping keys are parent context keys, values are the child context
// keys they populate. OutputMapping keys are child context keys, values
// are the parent context keys they are copied back into.
type SubWorkflowNode struct {
	ChildWorkflowID string
	InputMapping    map[string]string
	OutputMapping   map[string]string
}

// ExitStatus is the terminal status reported by an End node.
type ExitStatus string

const (
	ExitSuccess   ExitStatus = "SUCCESS"
	ExitFailure   ExitStatus = "FAILURE"
	ExitCancelled ExitStatus = "CANCELLED"
	ExitPending   ExitStatus = "PENDING"
)

// EndNode is a terminal node reporting ExitStatus.
type EndNode struct {
	Status ExitStatus
}

// GenericNode delegates to a user-registered executor named by
// ExecutorType, resolved through the engine's generic-executor registry
// rather than handled in-kernel.
type GenericNode struct {
	ExecutorType string
	Config       map[string]any
}

// TransitionKind tags which TransitionRule variant applies.
type TransitionKind string

const (
	TransitionSuccess     TransitionKind = "success"
	TransitionFailure     TransitionKind = "failure"
	TransitionConditional TransitionKind = "conditional"
	TransitionRubricFail  TransitionKind = "rubric_fail"
)

// TransitionRule is evaluated by TransitionPostProcessor in declaration
// order; the first match sets the next currentNodeId.
type TransitionRule struct {
	Kind      TransitionKind
	Target    string
	Predicate string // TransitionConditional: expression evaluated against context
}
