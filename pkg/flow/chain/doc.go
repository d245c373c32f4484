// Package chain provides the handler chain attached to an operation: an
// ordered list of layers, each with an optional Then, Catch and Finally, that
// is applied to the operation's settled outcome by Dispatch.
//
// The same dispatch serves every execution mode: try/catch/finally around a
// sync body, .then().catch().finally() on a promise, and try/catch inside an
// async body are all layers over an Outcome.
//
// Key operations:
// - New/Attach: build a chain, optionally binding it 1:1 to an operation
// - Append: add a layer until the operation starts (then the chain is frozen)
// - Dispatch: apply the layers innermost first
// - Promise: fluent Then/Catch/Finally builder producing layers
package chain
