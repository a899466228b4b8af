// Package agent defines the Agent invocation interface consumed by the
// workflow kernel, plus reference adapters over common LLM providers.
//
// The kernel treats agent invocation as an external collaborator: this
// package specifies the interface and ships thin reference adapters so
// the kernel can be exercised end-to-end, but prompt formatting, retries,
// and provider-specific request shaping are each adapter's own concern,
// not the kernel's.
package agent

import "context"

// Agent executes a single prompt against an LLM (or an equivalent
// deterministic stand-in) and returns a tagged Response.
type Agent interface {
	// Execute sends prompt, with context available for template
	// substitution performed upstream by the caller, and returns the
	// model's response.
	Execute(ctx context.Context, prompt string, context map[string]any) (Response, error)
}

// Kind tags which variant a Response holds.
type Kind string

const (
	// KindText is a direct textual answer.
	KindText Kind = "text"
	// KindError is a provider-reported failure surfaced as a response
	// rather than a Go error, e.g. a content-safety refusal.
	KindError Kind = "error"
	// KindToolRequest asks the caller to invoke a tool before continuing.
	KindToolRequest Kind = "tool_request"
	// KindPlanProposal proposes a sequence of steps (planning pipeline only).
	KindPlanProposal Kind = "plan_proposal"
)

// Response is the tagged union of everything an Agent can return.
// Exactly one of the Kind-specific fields is populated, matching Kind.
type Response struct {
	Kind Kind

	// Text holds the response body when Kind == KindText.
	Text string
	// Metadata carries provider-specific extras (token counts, model id).
	Metadata map[string]any

	// ErrorMessage holds the failure description when Kind == KindError.
	ErrorMessage string

	// ToolName/ToolArguments are populated when Kind == KindToolRequest.
	ToolName      string
	ToolArguments map[string]any

	// PlanSteps/PlanReasoning are populated when Kind == KindPlanProposal.
	PlanSteps     []ProposedStep
	PlanReasoning string
}

// ProposedStep is one step of a PlanProposal response, shaped to convert
// directly into a workflow.PlannedStep by the planning pipeline.
type ProposedStep struct {
	Description string
	// IsToolCall distinguishes a tool-call step from a synthesize step.
	IsToolCall bool
	ToolName   string
	Arguments  map[string]any
	Prompt     string
}
