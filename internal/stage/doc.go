// Package stage defines the handler contract for job kinds and the registry
// the scheduler dispatches through.
//
// Every job kind must have a handler registered before the worker starts;
// Registry.Validate enforces that at boot and Dispatch reports
// ErrUnknownKind if a kind slips through at runtime. Dispatch also turns a
// handler panic into an ordinary error so one bad asset cannot take the
// worker down.
package stage
