package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hensuflow/hensu/action"
	"github.com/hensuflow/hensu/agent"
)

// StepHandlerRegistry dispatches PlannedSteps by ActionKind: ToolCall
// steps go through the injected ActionExecutor, Synthesize steps go
// through the injected AgentRegistry. Unregistered kinds fail the step
// rather than panicking, the same contract action.Executor uses for
// unsupported Action kinds.
type StepHandlerRegistry struct {
	actions action.Executor
	agents  *agent.Registry
	tools   []ToolDescriptor
}

// NewStepHandlerRegistry wires the two collaborators plan steps dispatch
// through.
func NewStepHandlerRegistry(actions action.Executor, agents *agent.Registry) *StepHandlerRegistry {
	return &StepHandlerRegistry{actions: actions, agents: agents}
}

// RegisterTool advertises a tool to LLM planners via ToolDescriptors.
// Registering a tool here does not by itself make it dispatchable — the
// ActionExecutor must recognize the same name as a HandlerID.
func (r *StepHandlerRegistry) RegisterTool(desc ToolDescriptor) {
	r.tools = append(r.tools, desc)
}

// ToolDescriptors returns a defensive copy of the registered tool list.
func (r *StepHandlerRegistry) ToolDescriptors() []ToolDescriptor {
	return append([]ToolDescriptor(nil), r.tools...)
}

func (r *StepHandlerRegistry) dispatch(ctx context.Context, step PlannedStep, execContext map[string]any) StepResult {
	start := time.Now()
	switch step.ActionKind {
	case ActionToolCall:
		return r.handleToolCall(ctx, step, execContext, start)
	case ActionSynthesize:
		return r.handleSynthesize(ctx, step, execContext, start)
	default:
		return StepResult{
			StepIndex: step.Index,
			ToolName:  step.ToolName,
			Success:   false,
			Duration:  time.Since(start),
			Err:       fmt.Errorf("workflow: no step handler registered for action kind %q", step.ActionKind),
		}
	}
}

func (r *StepHandlerRegistry) handleToolCall(ctx context.Context, step PlannedStep, execContext map[string]any, start time.Time) StepResult {
	act := action.Action{Kind: action.KindSend, HandlerID: step.ToolName, Payload: step.Arguments}
	result, err := r.actions.Execute(ctx, act, execContext)
	if err != nil {
		return StepResult{StepIndex: step.Index, ToolName: step.ToolName, Success: false, Duration: time.Since(start), Err: err}
	}
	out := StepResult{
		StepIndex: step.Index,
		ToolName:  step.ToolName,
		Success:   result.Success,
		Duration:  time.Since(start),
		Metadata:  map[string]any{"message": result.Message},
	}
	if result.Output != nil {
		out.Output = result.Output
	}
	if !result.Success && result.Err != nil {
		out.Err = result.Err
	}
	return out
}

func (r *StepHandlerRegistry) handleSynthesize(ctx context.Context, step PlannedStep, execContext map[string]any, start time.Time) StepResult {
	if strings.TrimSpace(step.AgentID) == "" {
		return StepResult{
			StepIndex: step.Index,
			Success:   false,
			Duration:  time.Since(start),
			Err:       fmt.Errorf("workflow: synthesize step %d has no agentId", step.Index),
		}
	}
	ag, ok := r.agents.GetAgent(step.AgentID)
	if !ok {
		return StepResult{StepIndex: step.Index, Success: false, Duration: time.Since(start), Err: ErrUnresolvedAgent}
	}
	prompt := buildSynthesisPrompt(step, execContext)
	resp, err := ag.Execute(ctx, prompt, execContext)
	if err != nil {
		return StepResult{StepIndex: step.Index, Success: false, Duration: time.Since(start), Err: err}
	}
	if resp.Kind == agent.KindError {
		return StepResult{StepIndex: step.Index, Success: false, Duration: time.Since(start), Err: fmt.Errorf("%s", resp.ErrorMessage)}
	}
	return StepResult{StepIndex: step.Index, Success: true, Output: resp.Text, Duration: time.Since(start)}
}

func buildSynthesisPrompt(step PlannedStep, execContext map[string]any) string {
	var sb strings.Builder
	sb.WriteString(step.Prompt)
	sb.WriteString("\n\n## Collected Tool Results\n")
	for k, v := range execContext {
		if strings.HasPrefix(k, "_step_") && strings.HasSuffix(k, "_output") {
			fmt.Fprintf(&sb, "%s: %v\n", k, v)
		}
	}
	return sb.String()
}
