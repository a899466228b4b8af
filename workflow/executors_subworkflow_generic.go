package workflow

import "context"

// executeSubWorkflow recursively runs ChildWorkflowID to completion
// through a fresh Execute call, projecting context in via InputMapping
// and back out via OutputMapping.
func (e *Engine) executeSubWorkflow(ctx context.Context, node Node, state *HensuState) (NodeResult, error) {
	sw := node.SubWorkflow
	child, ok := e.workflows[sw.ChildWorkflowID]
	if !ok {
		return NodeResult{}, &FatalError{NodeID: node.ID, Message: "unknown sub-workflow " + sw.ChildWorkflowID}
	}

	parentSnapshot := state.Context.Snapshot()
	childContext := make(map[string]any, len(sw.InputMapping))
	for parentKey, childKey := range sw.InputMapping {
		if v, ok := parentSnapshot[parentKey]; ok {
			childContext[childKey] = v
		}
	}

	childExecutionID := state.ExecutionID + "/" + node.ID
	result := e.Execute(ctx, child, childExecutionID, childContext)
	if result.Err != nil {
		return NodeResult{}, result.Err
	}

	childSnapshot := result.State.Context.Snapshot()
	for childKey, parentKey := range sw.OutputMapping {
		if v, ok := childSnapshot[childKey]; ok {
			state.Context.Set(parentKey, v)
		}
	}

	status := StatusSuccess
	if result.Exit == ExitFailure || result.Exit == ExitCancelled || result.Err != nil {
		status = StatusFailure
	}
	return NodeResult{
		Status: status,
		Output: childSnapshot,
		Metadata: map[string]any{
			"child_execution_id": childExecutionID,
			"child_exit":         string(result.Exit),
		},
	}, nil
}

// executeGeneric delegates to the registered GenericExecutor for the
// node's ExecutorType.
func (e *Engine) executeGeneric(ctx context.Context, node Node, state *HensuState) (NodeResult, error) {
	gn := node.Generic
	ex, ok := e.reg.generic(gn.ExecutorType)
	if !ok {
		return NodeResult{}, &FatalError{NodeID: node.ID, Message: "no generic executor registered for " + gn.ExecutorType, Cause: ErrNoExecutor}
	}
	return ex.Execute(ctx, *gn, state.Context.Snapshot())
}
