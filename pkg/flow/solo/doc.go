// Package solo contains single-value, synchronous primitives over
// flow.Outcome[T]. Operation bodies compose them to build fallible work
// without branching on every step.
//
// Highlights:
// - Succeed/Fail/Cancel: construct Outcome[T]
// - Validate/AndValidate: apply validation producing a ValidationError
// - Switch: move from Outcome[In] to Outcome[Out]
// - Map: transform successful values
// - Try: call a function (Out, error) and convert error to failure
// - Recover: turn a failure back into a value (catch as a combinator)
// - Tee/DoubleTee: side-effect helpers
// - Finally: reduce to a concrete value via success/error/cancel handlers
package solo
