package workflow

import "github.com/hensuflow/hensu/emit"

// checkpointProcessor fires listener.onCheckpoint equivalent (a
// KindCheckpoint event) before executor dispatch. The state observed
// here is consistent with the prior node's committed mutations, so it is
// always safe to persist for crash recovery.
type checkpointProcessor struct {
	listeners *emit.Manager
}

func (p *checkpointProcessor) name() string { return "Checkpoint" }

func (p *checkpointProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	p.listeners.Notify(emit.Event{
		Kind:        emit.KindCheckpoint,
		ExecutionID: pc.State.ExecutionID,
		WorkflowID:  pc.Workflow.ID,
		NodeID:      pc.Node.ID,
		Meta:        map[string]any{"reason": "checkpoint"},
	})
	return nil, nil
}

// nodeStartProcessor fires a KindNodeStart event immediately before
// dispatch.
type nodeStartProcessor struct {
	listeners *emit.Manager
}

func (p *nodeStartProcessor) name() string { return "NodeStart" }

func (p *nodeStartProcessor) run(pc *ProcessorContext) (processorOutcome, error) {
	p.listeners.Notify(emit.Event{
		Kind:        emit.KindNodeStart,
		ExecutionID: pc.State.ExecutionID,
		WorkflowID:  pc.Workflow.ID,
		NodeID:      pc.Node.ID,
	})
	return nil, nil
}
