// Package operation models one fallible unit of work. An Operation runs
// either synchronously (RunSync, no suspension) or on a core.Scheduler
// (RunAsync), where its body may suspend only inside Await.
//
// The lifecycle is pending -> running (<-> suspended) -> settled ->
// finalized, validated against a transition table; finalized is terminal.
//
// An Operation accepts exactly one Dispatcher (the handler chain) through
// Attach. A sync body that raises is turned into a failure only when a
// chain is attached; without one the panic keeps unwinding to the caller.
package operation
