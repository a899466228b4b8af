package workflow

import (
	"context"

	"github.com/hensuflow/hensu/agent"
	"github.com/hensuflow/hensu/emit"
)

// executeStandard invokes a single agent with a templated prompt. Nodes
// with PlanningConfig.Enabled delegate to the agentic planning pipeline
// instead.
func (e *Engine) executeStandard(ctx context.Context, workflow *Workflow, node Node, state *HensuState) (NodeResult, error) {
	sn := node.Standard
	if sn.PlanningConfig != nil && sn.PlanningConfig.Enabled {
		return e.executeAgenticStandard(ctx, workflow, node, state)
	}

	ag, ok := e.cfg.agents.GetAgent(sn.AgentID)
	if !ok {
		return NodeResult{}, &FatalError{NodeID: node.ID, Message: "unresolved agent " + sn.AgentID, Cause: ErrUnresolvedAgent}
	}

	prompt := sn.Prompt
	overrideKey := "_prompt_override_" + node.ID
	if override, ok := state.Context.Get(overrideKey); ok {
		if s, ok := override.(string); ok && s != "" {
			prompt = s
		}
		state.Context.Delete(overrideKey)
	}
	resolved := e.cfg.templates.Resolve(prompt, state.Context.Snapshot())

	e.emit(emit.KindAgentStart, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{"agent_id": sn.AgentID})
	resp, err := ag.Execute(ctx, resolved, state.Context.Snapshot())
	if err != nil {
		return NodeResult{}, err
	}
	e.emit(emit.KindAgentComplete, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{"kind": string(resp.Kind)})

	switch resp.Kind {
	case agent.KindText:
		return NodeResult{Status: StatusSuccess, Output: resp.Text, Metadata: resp.Metadata}, nil
	case agent.KindError:
		return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": resp.ErrorMessage}}, nil
	case agent.KindToolRequest:
		return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": "agent requested a tool call outside the planning pipeline"}}, nil
	default:
		return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": "unexpected agent response kind " + string(resp.Kind)}}, nil
	}
}
