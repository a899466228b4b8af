package workflow

import (
	"encoding/json"
	"strings"

	"github.com/hensuflow/hensu/emit"
)

// outputExtractionProcessor stores a non-nil node result output into
// state.Context under the node id, after validating it is free of
// control characters, Unicode bidi/zero-width override characters, and
// does not exceed byteLimit. For Standard nodes with declared
// OutputParams, the output is additionally parsed as JSON and the named
// parameters extracted into context.
type outputExtractionProcessor struct {
	byteLimit int
}

func (p *outputExtractionProcessor) name() string { return "OutputExtraction" }

func (p *outputExtractionProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	if pc.Result == nil || pc.Result.Output == nil {
		return nil, nil
	}

	text, isText := pc.Result.Output.(string)
	if isText {
		if err := validateOutputText(text, p.byteLimit); err != nil {
			pc.Result.Status = StatusFailure
			pc.Result.Metadata = mergeMeta(pc.Result.Metadata, map[string]any{"error": err.Error()})
			return nil, nil
		}
	}

	pc.State.Context.Set(pc.Node.ID, pc.Result.Output)

	if pc.Node.Kind == KindStandard && pc.Node.Standard != nil && len(pc.Node.Standard.OutputParams) > 0 && isText {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(text), &parsed); err == nil {
			for _, param := range pc.Node.Standard.OutputParams {
				if v, ok := parsed[param]; ok {
					pc.State.Context.Set(param, v)
				}
			}
		}
	}
	return nil, nil
}

func mergeMeta(existing map[string]any, add map[string]any) map[string]any {
	if existing == nil {
		existing = make(map[string]any, len(add))
	}
	for k, v := range add {
		existing[k] = v
	}
	return existing
}

// validateOutputText rejects control characters, Unicode directional
// override / zero-width / BOM characters, and outputs exceeding
// byteLimit UTF-8 bytes.
func validateOutputText(s string, byteLimit int) error {
	if byteLimit > 0 && len(s) > byteLimit {
		return &ConfigError{Message: "output exceeds configured byte limit"}
	}
	for _, r := range s {
		if isForbiddenControl(r) || isForbiddenBidi(r) {
			return &ConfigError{Message: "output contains forbidden control or bidi-override character"}
		}
	}
	return nil
}

func isForbiddenControl(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r >= 0x0000 && r <= 0x0008:
		return true
	case r == 0x000B || r == 0x000C:
		return true
	case r >= 0x000E && r <= 0x001F:
		return true
	case r == 0x007F:
		return true
	}
	return false
}

func isForbiddenBidi(r rune) bool {
	switch {
	case r >= 0x202A && r <= 0x202E:
		return true
	case r >= 0x2066 && r <= 0x2069:
		return true
	case r >= 0x200B && r <= 0x200D:
		return true
	case r == 0xFEFF:
		return true
	}
	return false
}

// nodeCompleteProcessor fires a KindNodeComplete event carrying the
// result status for metrics/logging listeners.
type nodeCompleteProcessor struct {
	listeners *emit.Manager
}

func (p *nodeCompleteProcessor) name() string { return "NodeComplete" }

func (p *nodeCompleteProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	meta := map[string]any{"status": strings.ToLower(string(pc.Result.Status))}
	p.listeners.Notify(emit.Event{
		Kind:        emit.KindNodeComplete,
		ExecutionID: pc.State.ExecutionID,
		WorkflowID:  pc.Workflow.ID,
		NodeID:      pc.Node.ID,
		Meta:        meta,
	})
	return nil, nil
}

// historyProcessor appends an ExecutionStep recording this node's result.
type historyProcessor struct{}

func (p *historyProcessor) name() string { return "History" }

func (p *historyProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	if pc.Result.Status == StatusPending {
		// The pre-PENDING attempt is not a finished step; transitionProcessor
		// short-circuits the loop when the result carries
		// _plan_review_required.
		return nil, nil
	}
	pc.State.AppendStep(pc.Node.ID, *pc.Result, "checkpoint")
	return nil, nil
}

// reviewProcessor gates on the node's ReviewConfig, interpreting the
// ReviewHandler's decision.
type reviewProcessor struct {
	handler ReviewHandler
}

func (p *reviewProcessor) name() string { return "Review" }

func (p *reviewProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	cfg := reviewConfigFor(pc.Node)
	if cfg == nil || cfg.Mode == ReviewDisabled {
		return nil, nil
	}
	if cfg.Mode == ReviewOptional && pc.Result.Status == StatusSuccess {
		return nil, nil
	}

	decision, err := p.handler.RequestReview(ReviewRequest{Node: pc.Node, State: pc.State, Result: *pc.Result})
	if err != nil {
		return nil, err
	}

	switch decision.Kind {
	case DecisionApprove:
		if decision.EditedState != nil && cfg.AllowStateEdit {
			pc.State.Context.Replace(decision.EditedState)
		}
		return nil, nil
	case DecisionBacktrack:
		if !cfg.AllowBacktrack {
			return nil, nil
		}
		from := pc.State.CurrentNodeID
		pc.State.CurrentNodeID = decision.TargetNode
		if decision.EditedContext != nil && cfg.AllowStateEdit {
			pc.State.Context.Replace(decision.EditedContext)
		}
		pc.State.BacktrackLog = append(pc.State.BacktrackLog, BacktrackEvent{
			Kind:   BacktrackManual,
			From:   from,
			To:     decision.TargetNode,
			Reason: decision.Reason,
		})
		if decision.EditedPrompt != "" {
			pc.State.Context.Set("_prompt_override_"+decision.TargetNode, decision.EditedPrompt)
		}
		return nil, nil
	case DecisionReject:
		return &ExecutionResult{ShortCircuit: ShortCircuitRejected, Reason: decision.Reason, State: pc.State}, nil
	default:
		return nil, nil
	}
}

func reviewConfigFor(n Node) *ReviewConfig {
	if n.Kind == KindStandard && n.Standard != nil {
		return n.Standard.ReviewConfig
	}
	return nil
}

// rubricProcessor scores the node output via the RubricEngine, storing
// the evaluation and auto-backtracking on failure when a rubric-fail
// transition rule is declared.
type rubricProcessor struct {
	engine    RubricEngine
	listeners *emit.Manager
}

func (p *rubricProcessor) name() string { return "Rubric" }

func (p *rubricProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	if pc.Node.Kind != KindStandard || pc.Node.Standard == nil || pc.Node.Standard.RubricID == "" {
		return nil, nil
	}

	evaluation, err := p.engine.Evaluate(pc.Node.Standard.RubricID, pc.Result.Output, pc.State.Context.Snapshot())
	if err != nil {
		return nil, err
	}
	pc.State.RubricEvaluation = &evaluation

	if evaluation.Passed {
		return nil, nil
	}

	for _, tr := range pc.Node.TransitionRules {
		if tr.Kind == TransitionRubricFail {
			from := pc.State.CurrentNodeID
			pc.State.CurrentNodeID = tr.Target
			pc.State.BacktrackLog = append(pc.State.BacktrackLog, BacktrackEvent{
				Kind:        BacktrackAutomatic,
				From:        from,
				To:          tr.Target,
				RubricScore: evaluation.Score,
			})
			p.listeners.Notify(emit.Event{
				Kind:        emit.KindBacktrack,
				ExecutionID: pc.State.ExecutionID,
				WorkflowID:  pc.Workflow.ID,
				NodeID:      pc.Node.ID,
				Meta: map[string]any{
					"type":      "automatic",
					"rubric_id": evaluation.RubricID,
				},
			})
			break
		}
	}
	return nil, nil
}

// transitionProcessor resolves the next currentNodeId: loopBreakTarget
// wins unconditionally if set, otherwise the first matching
// TransitionRule in declaration order, otherwise terminal.
//
// If a prior stage (Review or Rubric) already redirected currentNodeId,
// this stage is skipped — those stages own the transition in that case.
type transitionProcessor struct{}

func (p *transitionProcessor) name() string { return "Transition" }

func (p *transitionProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	if pc.State.LoopBreakTarget != "" {
		pc.State.CurrentNodeID = pc.State.LoopBreakTarget
		pc.State.LoopBreakTarget = ""
		return nil, nil
	}

	if pc.State.CurrentNodeID != pc.Node.ID {
		// Review or Rubric already redirected; honor that redirect.
		return nil, nil
	}

	if pending, ok := pc.Result.Metadata["_plan_review_required"]; ok && pending == true {
		return &ExecutionResult{ShortCircuit: ShortCircuitPending, Metadata: pc.Result.Metadata, State: pc.State}, nil
	}

	if target, ok := pc.Result.Metadata["_plan_failure_target"].(string); ok && target != "" {
		pc.State.CurrentNodeID = target
		return nil, nil
	}

	for _, tr := range pc.Node.TransitionRules {
		switch tr.Kind {
		case TransitionSuccess:
			if pc.Result.Status == StatusSuccess {
				pc.State.CurrentNodeID = tr.Target
				return nil, nil
			}
		case TransitionFailure:
			if pc.Result.Status == StatusFailure {
				pc.State.CurrentNodeID = tr.Target
				return nil, nil
			}
		case TransitionConditional:
			matched, err := EvaluateCondition(tr.Predicate, pc.State.Context.Snapshot())
			if err == nil && matched {
				pc.State.CurrentNodeID = tr.Target
				return nil, nil
			}
		case TransitionRubricFail:
			// handled by rubricProcessor
		}
	}

	pc.State.CurrentNodeID = ""
	return nil, nil
}
