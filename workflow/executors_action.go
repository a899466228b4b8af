package workflow

import (
	"context"

	"github.com/hensuflow/hensu/action"
)

// executeAction dispatches an ActionNode's Actions in order through the
// injected ActionExecutor, translating each ActionSpec into the
// action package's concrete tagged type. The first failing action stops
// the sequence.
func (e *Engine) executeAction(ctx context.Context, node Node, state *HensuState) (NodeResult, error) {
	an := node.Action
	outputs := make([]map[string]any, 0, len(an.Actions))

	for _, spec := range an.Actions {
		act := action.Action{
			Kind:      action.Kind(spec.Kind),
			HandlerID: spec.HandlerID,
			Payload:   spec.Payload,
			CommandID: spec.CommandID,
			Endpoint:  spec.Endpoint,
			Method:    spec.Method,
			Headers:   spec.Headers,
			Body:      spec.Body,
			Channel:   spec.Channel,
			Message:   spec.Message,
		}
		result, err := e.cfg.actions.Execute(ctx, act, state.Context.Snapshot())
		if err != nil {
			return NodeResult{Status: StatusFailure, Output: outputs, Metadata: map[string]any{"error": err.Error()}}, nil
		}
		if !result.Success {
			return NodeResult{Status: StatusFailure, Output: outputs, Metadata: map[string]any{"message": result.Message}}, nil
		}
		outputs = append(outputs, result.Output)
	}

	return NodeResult{Status: StatusSuccess, Output: outputs}, nil
}
