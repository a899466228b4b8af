// Package action defines the ActionExecutor interface consumed by Action
// nodes and the ToolCallStepHandler, plus reference adapters.
package action

import "context"

// Kind tags which variant an Action holds.
type Kind string

const (
	// KindSend dispatches a payload to a named handler, e.g. a queue or
	// webhook registered out of band with the executor.
	KindSend Kind = "send"
	// KindExecute runs a named command understood by the executor.
	KindExecute Kind = "execute"
	// KindHttpCall issues an HTTP request.
	KindHttpCall Kind = "http_call"
	// KindNotify publishes a message to a named channel.
	KindNotify Kind = "notify"
)

// Action is the tagged union dispatched to an ActionExecutor. Exactly the
// fields matching Kind are populated.
type Action struct {
	Kind Kind

	// Send fields.
	HandlerID string
	Payload   map[string]any

	// Execute fields.
	CommandID string

	// HttpCall fields.
	Endpoint string
	Method   string
	Headers  map[string]string
	Body     string

	// Notify fields.
	Channel string
	Message string
}

// Result is returned by Executor.Execute.
type Result struct {
	Success bool
	Message string
	Output  map[string]any
	Err     error
}

// Executor dispatches an Action and reports the outcome. Implementations
// must respect ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, act Action, execContext map[string]any) (Result, error)
}
