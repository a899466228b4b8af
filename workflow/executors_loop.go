package workflow

import "context"

// runSubNode dispatches node and runs just enough of the post-pipeline
// (output extraction, completion event, history append) to make its
// result visible in context and History, without running
// review/rubric/transition — those stages apply to the enclosing Loop,
// Fork, or Join node, not to the sub-node it delegates to.
func (e *Engine) runSubNode(ctx context.Context, workflow *Workflow, node Node, state *HensuState) (NodeResult, error) {
	result, err := e.dispatch(ctx, workflow, node, state)
	if err != nil {
		var fatal *FatalError
		if asFatal(err, &fatal) {
			return NodeResult{}, fatal
		}
		result = NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": err.Error()}}
	}

	pc := &ProcessorContext{State: state, Workflow: workflow, Node: node, Result: &result}
	if _, err := (&outputExtractionProcessor{byteLimit: e.cfg.outputByteLimit}).run(pc); err != nil {
		return NodeResult{}, err
	}
	_, _ = (&nodeCompleteProcessor{listeners: e.cfg.listeners}).run(pc)
	state.AppendStep(node.ID, *pc.Result, "sub_node")

	return *pc.Result, nil
}

// executeLoop repeatedly runs BodyNode while Condition holds and
// MaxIterations has not been reached, evaluating BreakRules after each
// iteration. The first matching BreakRule sets state.LoopBreakTarget,
// which transitionProcessor honors unconditionally on the Loop node's own
// post-pipeline pass.
func (e *Engine) executeLoop(ctx context.Context, workflow *Workflow, node Node, state *HensuState) (NodeResult, error) {
	ln := node.Loop
	bodyNode, ok := workflow.Nodes[ln.BodyNode]
	if !ok {
		return NodeResult{}, &FatalError{NodeID: node.ID, Message: "loop body node not found: " + ln.BodyNode}
	}

	var last NodeResult
	iterations := 0

	for {
		if ln.MaxIterations > 0 && iterations >= ln.MaxIterations {
			break
		}
		if !ln.Condition.Always {
			matched, err := EvaluateCondition(ln.Condition.Expression, state.Context.Snapshot())
			if err != nil {
				return NodeResult{}, &FatalError{NodeID: node.ID, Message: "loop condition evaluation failed", Cause: err}
			}
			if !matched {
				break
			}
		}

		result, err := e.runSubNode(ctx, workflow, bodyNode, state)
		if err != nil {
			return NodeResult{}, err
		}
		last = result
		iterations++

		broke := false
		for _, br := range ln.BreakRules {
			matched := br.Condition.Always
			if !matched {
				m, err := EvaluateCondition(br.Condition.Expression, state.Context.Snapshot())
				if err != nil {
					continue
				}
				matched = m
			}
			if matched {
				state.LoopBreakTarget = br.Target
				broke = true
				break
			}
		}
		if broke {
			break
		}
	}

	state.Context.Set("_loop_iterations_"+node.ID, iterations)
	if iterations == 0 {
		return NodeResult{Status: StatusSuccess, Metadata: map[string]any{"iterations": 0}}, nil
	}
	return last, nil
}
