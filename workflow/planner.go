package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hensuflow/hensu/agent"
)

// Planner produces and revises Plans for planning-enabled Standard nodes.
type Planner interface {
	CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error)
	RevisePlan(ctx context.Context, rc RevisionContext) (*Plan, error)
}

// StaticPlanner resolves a fixed template of PlannedSteps against a
// request's context on every CreatePlan call. It never revises — a
// static plan that fails has no fallback short of human review.
type StaticPlanner struct {
	template []PlannedStep
}

// NewStaticPlanner wraps a fixed step template. A nil or empty template
// means no static plan has been configured; CreatePlan then fails,
// matching the engine's zero-value default for workflows that never
// enable planning.
func NewStaticPlanner(template []PlannedStep) *StaticPlanner {
	return &StaticPlanner{template: template}
}

func (p *StaticPlanner) CreatePlan(_ context.Context, req PlanRequest) (*Plan, error) {
	if len(p.template) == 0 {
		return nil, errors.New("workflow: static planner has no configured steps")
	}
	steps := make([]PlannedStep, len(p.template))
	for i, s := range p.template {
		steps[i] = s
		steps[i].Index = i
		steps[i].Status = StepPending
		steps[i].Prompt = ResolveTemplate(s.Prompt, req.Context)
		steps[i].Arguments = resolveArgTemplates(s.Arguments, req.Context)
	}
	return &Plan{
		ID:          uuid.NewString(),
		Source:      PlanStatic,
		Steps:       steps,
		Constraints: req.Constraints,
	}, nil
}

func (p *StaticPlanner) RevisePlan(context.Context, RevisionContext) (*Plan, error) {
	return nil, errors.New("workflow: static planner does not support revision")
}

func resolveArgTemplates(args map[string]any, context map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	resolved := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			resolved[k] = ResolveTemplate(s, context)
			continue
		}
		resolved[k] = v
	}
	return resolved
}

// LlmPlanner delegates plan creation and revision to a planning agent,
// expecting a KindPlanProposal response.
type LlmPlanner struct {
	agentID string
	agents  *agent.Registry
}

// NewLlmPlanner wires a planning agent id against agents.
func NewLlmPlanner(agentID string, agents *agent.Registry) *LlmPlanner {
	return &LlmPlanner{agentID: agentID, agents: agents}
}

func (p *LlmPlanner) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	ag, ok := p.agents.GetAgent(p.agentID)
	if !ok {
		return nil, ErrUnresolvedAgent
	}
	resp, err := ag.Execute(ctx, buildPlanningPrompt(req), req.Context)
	if err != nil {
		return nil, err
	}
	return planFromResponse(resp, req.Constraints)
}

func (p *LlmPlanner) RevisePlan(ctx context.Context, rc RevisionContext) (*Plan, error) {
	ag, ok := p.agents.GetAgent(p.agentID)
	if !ok {
		return nil, ErrUnresolvedAgent
	}
	resp, err := ag.Execute(ctx, buildRevisionPrompt(rc), nil)
	if err != nil {
		return nil, err
	}
	return planFromResponse(resp, PlanConstraints{})
}

func buildPlanningPrompt(req PlanRequest) string {
	var sb strings.Builder
	sb.WriteString("Goal: ")
	sb.WriteString(req.Goal)
	sb.WriteString("\n\nAvailable tools:\n")
	for _, t := range req.AvailableTools {
		sb.WriteString("- ")
		sb.WriteString(t.Name)
		sb.WriteString(": ")
		sb.WriteString(t.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\nPropose a plan as an ordered sequence of tool-call or synthesize steps.")
	return sb.String()
}

func buildRevisionPrompt(rc RevisionContext) string {
	var sb strings.Builder
	sb.WriteString(rc.Prompt)
	sb.WriteString("\n\nFailed step: ")
	sb.WriteString(rc.FailedStep.Description)
	if rc.FailedResult.Err != nil {
		sb.WriteString("\nError: ")
		sb.WriteString(rc.FailedResult.Err.Error())
	}
	sb.WriteString("\n\nAvailable tools:\n")
	for _, t := range rc.AvailableTools {
		sb.WriteString("- ")
		sb.WriteString(t.Name)
		sb.WriteString(": ")
		sb.WriteString(t.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\nPropose a revised plan for the remaining work.")
	return sb.String()
}

func planFromResponse(resp agent.Response, constraints PlanConstraints) (*Plan, error) {
	if resp.Kind != agent.KindPlanProposal {
		if resp.Kind == agent.KindError {
			return nil, errors.New("workflow: planner agent returned an error response: " + resp.ErrorMessage)
		}
		return nil, errors.New("workflow: planner agent response was not a plan proposal")
	}
	proposed := resp.PlanSteps
	if constraints.MaxSteps > 0 && len(proposed) > constraints.MaxSteps {
		proposed = proposed[:constraints.MaxSteps]
	}
	steps := make([]PlannedStep, len(proposed))
	for i, ps := range proposed {
		kind := ActionSynthesize
		if ps.IsToolCall {
			kind = ActionToolCall
		}
		steps[i] = PlannedStep{
			Index:       i,
			ActionKind:  kind,
			ToolName:    ps.ToolName,
			Arguments:   ps.Arguments,
			Prompt:      ps.Prompt,
			Description: ps.Description,
			Status:      StepPending,
		}
	}
	return &Plan{
		ID:          uuid.NewString(),
		Source:      PlanLlmGenerated,
		Steps:       steps,
		Constraints: constraints,
	}, nil
}
