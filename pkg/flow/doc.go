// Package flow defines the value types of the error propagation engine:
// Outcome[T], the immutable success/failure/cancel result of an operation,
// and Error, the classified failure it carries.
//
// Raising is explicit. Throw unwinds to the nearest Catch or Guard, and every
// other layer of the engine (operation, chain, sink, engine) threads Outcome
// values instead of relying on hidden control flow.
//
// Kinds split into recoverable ones (ValidationError, OperationFailure,
// Cancelled) that catch handlers may observe, and programmer errors
// (ModeMismatch, AlreadyAttached, AlreadySet, InvalidState) that are always
// surfaced.
package flow
