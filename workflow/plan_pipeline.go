package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hensuflow/hensu/emit"
)

// executeAgenticStandard is the AgenticNodeExecutor: it owns plan
// creation (with an optional review gate before any step runs) and
// single-pass plan execution (with an optional review gate after), for a
// Standard node whose PlanningConfig is enabled.
func (e *Engine) executeAgenticStandard(ctx context.Context, workflow *Workflow, node Node, state *HensuState) (NodeResult, error) {
	sn := node.Standard
	plan := state.ActivePlan

	if plan == nil {
		req := PlanRequest{
			Goal:           e.cfg.templates.Resolve(sn.Prompt, state.Context.Snapshot()),
			AvailableTools: e.cfg.stepHandlers.ToolDescriptors(),
			Context:        state.Context.Snapshot(),
			Constraints:    sn.PlanningConfig.Constraints,
		}
		created, err := e.cfg.planner.CreatePlan(ctx, req)
		if err != nil {
			return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": "plan creation failed: " + err.Error()}}, nil
		}
		created.NodeID = node.ID
		plan = created
		state.ActivePlan = plan
		e.emit(emit.KindPlanCreated, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{
			"plan_id": plan.ID, "steps": len(plan.Steps), "source": string(plan.Source),
		})

		if sn.PlanningConfig.Review {
			decision, err := e.cfg.reviews.RequestReview(ReviewRequest{
				Node:  node,
				State: state,
				Result: NodeResult{
					Status:   StatusPending,
					Output:   plan.Snapshot(),
					Metadata: map[string]any{"phase": "plan_created"},
				},
			})
			if err != nil {
				return NodeResult{}, err
			}
			switch decision.Kind {
			case DecisionReject:
				state.ActivePlan = nil
				return NodeResult{Status: StatusFailure, Metadata: map[string]any{"reason": decision.Reason}}, nil
			case DecisionBacktrack:
				state.ActivePlan = nil
				state.CurrentNodeID = decision.TargetNode
				return NodeResult{Status: StatusSuccess, Metadata: map[string]any{"plan_backtrack": true}}, nil
			}
		}
	}

	result := e.runPlanExecutor(ctx, workflow, node, state, plan)
	e.emit(emit.KindPlanCompleted, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{
		"plan_id": plan.ID, "status": string(result.Status),
	})

	if !result.Success() {
		state.ActivePlan = nil
		meta := map[string]any{"plan_id": plan.ID, "failed_at_step": result.FailedAtStep}
		if result.Err != nil {
			meta["error"] = result.Err.Error()
		}
		if sn.PlanFailureTarget != "" {
			meta["_plan_failure_target"] = sn.PlanFailureTarget
		}
		return NodeResult{Status: StatusFailure, Output: result.Output, Metadata: meta}, nil
	}

	if sn.PlanningConfig.Review {
		decision, err := e.cfg.reviews.RequestReview(ReviewRequest{
			Node:  node,
			State: state,
			Result: NodeResult{
				Status:   StatusSuccess,
				Output:   result.Output,
				Metadata: map[string]any{"phase": "plan_executed"},
			},
		})
		if err != nil {
			return NodeResult{}, err
		}
		if decision.Kind == DecisionReject {
			state.ActivePlan = nil
			return NodeResult{Status: StatusFailure, Metadata: map[string]any{"reason": decision.Reason}}, nil
		}
		if decision.Kind == DecisionBacktrack {
			state.ActivePlan = nil
			state.CurrentNodeID = decision.TargetNode
			return NodeResult{Status: StatusSuccess, Metadata: map[string]any{"plan_backtrack": true}}, nil
		}
	}

	state.ActivePlan = nil
	return NodeResult{Status: StatusSuccess, Output: result.Output, Metadata: map[string]any{"plan_id": plan.ID}}, nil
}

// runPlanExecutor is the single-pass plan execution algorithm: dispatch
// each step through StepHandlerRegistry in order, merging every result
// into context as it lands. A failed step triggers one RevisePlan call
// when the plan's constraints allow it; the revised plan restarts from
// its own step 0 and consumes one replan from the budget. A RevisePlan
// call that errors ends the run as FAILED at the failed step.
func (e *Engine) runPlanExecutor(ctx context.Context, workflow *Workflow, node Node, state *HensuState, plan *Plan) PlanResult {
	start := time.Now()
	stepResults := make([]StepResult, 0, len(plan.Steps))
	replans := 0

	for i := 0; i < len(plan.Steps); i++ {
		if plan.Constraints.MaxDuration > 0 && time.Since(start) > plan.Constraints.MaxDuration {
			return PlanResult{Status: PlanTimeoutStatus, StepResults: stepResults, FailedAtStep: i, TotalDuration: time.Since(start), Err: ErrPlanTimeout}
		}
		if ctx.Err() != nil {
			return PlanResult{Status: PlanCancelledStatus, StepResults: stepResults, FailedAtStep: i, TotalDuration: time.Since(start), Err: ctx.Err()}
		}

		step := &plan.Steps[i]
		if step.Status == StepCompleted {
			// Already ran in a prior process lifetime before a checkpoint;
			// resumed plans retain step status but not completed output.
			continue
		}
		step.Status = StepExecuting
		e.emit(emit.KindStepStarted, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{"step_index": i, "plan_id": plan.ID})

		result := e.cfg.stepHandlers.dispatch(ctx, *step, state.Context.Snapshot())
		stepResults = append(stepResults, result)
		e.emit(emit.KindStepCompleted, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{
			"step_index": i, "success": result.Success, "plan_id": plan.ID,
		})

		state.Context.Set(fmt.Sprintf("_step_%d_output", i), result.Output)
		state.Context.Set("_last_output", result.Output)

		if result.Success {
			step.Status = StepCompleted
			continue
		}
		step.Status = StepFailed

		if !plan.Constraints.AllowReplan || replans >= plan.Constraints.MaxReplans {
			return PlanResult{
				Status: PlanFailedStatus, StepResults: stepResults, FailedAtStep: i,
				TotalDuration: time.Since(start), Output: lastStepOutput(stepResults), Err: result.Err,
			}
		}

		revisionPrompt := fmt.Sprintf("Step %d (%s) failed.", i, step.Description)
		rc := RevisionContextFromFailure(plan, PlanResult{StepResults: stepResults, FailedAtStep: i}, revisionPrompt, e.cfg.stepHandlers.ToolDescriptors())
		revised, err := e.cfg.planner.RevisePlan(ctx, rc)
		if err != nil || revised == nil {
			return PlanResult{
				Status: PlanFailedStatus, StepResults: stepResults, FailedAtStep: i,
				TotalDuration: time.Since(start), Output: lastStepOutput(stepResults), Err: result.Err,
			}
		}
		replans++
		revised.ID = plan.ID
		revised.NodeID = plan.NodeID
		revised.Constraints = plan.Constraints
		*plan = *revised
		e.emit(emit.KindPlanRevised, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{
			"plan_id": plan.ID, "replan_count": replans,
		})
		e.emit(emit.KindPlanCreated, state.ExecutionID, workflow.ID, node.ID, "", map[string]any{
			"plan_id": plan.ID, "steps": len(plan.Steps), "source": string(plan.Source),
		})
		i = -1 // restart from the revised plan's first step
	}

	return PlanResult{
		Status: PlanCompletedStatus, StepResults: stepResults,
		FailedAtStep: -1, TotalDuration: time.Since(start), Output: lastStepOutput(stepResults),
	}
}

func lastStepOutput(results []StepResult) any {
	if len(results) == 0 {
		return nil
	}
	return results[len(results)-1].Output
}
