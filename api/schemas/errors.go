// api/schemas/errors.go
package schemas

import "fmt"

// -- Recoverable action errors --
//
// These surface back to the model as error tool results instead of ending
// the run. Anything else that escapes an action handler ends the loop.

// InvalidArgumentError reports a malformed or incomplete action request.
type InvalidArgumentError struct {
	Action ActionKind
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument for action %q: %s", e.Action, e.Reason)
}

// UnsupportedInVersionError reports an action the advertised tool version
// does not carry.
type UnsupportedInVersionError struct {
	Action  ActionKind
	Version string
}

func (e *UnsupportedInVersionError) Error() string {
	return fmt.Sprintf("action %q is not supported by tool version %s", e.Action, e.Version)
}

// -- Fatal errors --

// SafetyRejectedError ends the run when the acknowledger declines a pending
// safety check raised by the model.
type SafetyRejectedError struct {
	CheckID string
	Message string
}

func (e *SafetyRejectedError) Error() string {
	return fmt.Sprintf("safety check %s rejected: %s", e.CheckID, e.Message)
}

// ModelTransportError wraps a failure to obtain a model response after the
// client has exhausted its own transport policy.
type ModelTransportError struct {
	Err error
}

func (e *ModelTransportError) Error() string {
	return fmt.Sprintf("model transport failure: %v", e.Err)
}

func (e *ModelTransportError) Unwrap() error { return e.Err }

// UnknownToolVersionError is returned at construction time for a tool
// version the catalog does not know.
type UnknownToolVersionError struct {
	Version string
}

func (e *UnknownToolVersionError) Error() string {
	return fmt.Sprintf("unknown tool version %q", e.Version)
}
