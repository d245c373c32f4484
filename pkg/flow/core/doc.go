// Package core contains the plumbing the engine runs on: a single-baton
// cooperative scheduler and context options that mark nested execution. It
// does not define error semantics; packages operation and engine build those
// on top of it.
package core
