package emit

import "context"

// NullListener discards every event. Useful as a default so callers never
// need to nil-check the listener before notifying it.
type NullListener struct{}

// OnEvent implements Listener by doing nothing.
func (NullListener) OnEvent(Event) {}

// Flush implements Listener by doing nothing.
func (NullListener) Flush(context.Context) error { return nil }
