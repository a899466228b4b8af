package workflow

// ReviewDecisionKind tags which ReviewDecision variant a ReviewHandler
// returned.
type ReviewDecisionKind string

const (
	DecisionApprove   ReviewDecisionKind = "approve"
	DecisionBacktrack ReviewDecisionKind = "backtrack"
	DecisionReject    ReviewDecisionKind = "reject"
)

// ReviewDecision is the tagged union a ReviewHandler returns.
type ReviewDecision struct {
	Kind ReviewDecisionKind

	// Approve fields.
	EditedState map[string]any // nil means no edit

	// Backtrack fields.
	TargetNode    string
	EditedContext map[string]any
	EditedPrompt  string
	Reason        string

	// Reject fields share Reason above.
}

// ReviewRequest carries everything a ReviewHandler needs to render a
// decision to a human.
type ReviewRequest struct {
	Node   Node
	State  *HensuState
	Result NodeResult
}

// ReviewHandler is the blocking human-in-the-loop collaborator consulted
// by ReviewPostProcessor and the planning pipeline's review gates.
type ReviewHandler interface {
	RequestReview(req ReviewRequest) (ReviewDecision, error)
}

// AutoApproveReviewHandler always approves without edits. Useful as the
// default in tests and for REQUIRED-mode nodes that have no real human
// reviewer wired up yet.
type AutoApproveReviewHandler struct{}

// RequestReview implements ReviewHandler.
func (AutoApproveReviewHandler) RequestReview(ReviewRequest) (ReviewDecision, error) {
	return ReviewDecision{Kind: DecisionApprove}, nil
}

// ChannelReviewHandler blocks on a channel of externally-supplied
// decisions, suited to a real human-in-the-loop deployment: the caller
// feeds ReviewDecision values in as they arrive (e.g. from an HTTP
// approval endpoint), and RequestReview blocks until one appears.
type ChannelReviewHandler struct {
	Decisions chan ReviewDecision
}

// NewChannelReviewHandler creates a ChannelReviewHandler with the given
// buffer size for pending decisions.
func NewChannelReviewHandler(buffer int) *ChannelReviewHandler {
	return &ChannelReviewHandler{Decisions: make(chan ReviewDecision, buffer)}
}

// RequestReview implements ReviewHandler.
func (h *ChannelReviewHandler) RequestReview(_ ReviewRequest) (ReviewDecision, error) {
	return <-h.Decisions, nil
}
