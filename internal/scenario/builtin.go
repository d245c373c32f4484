package scenario

import "time"

// Builtin returns one scenario per error-handling mechanism plus the
// divide(10, 0) case.
func Builtin() []Scenario {
	return []Scenario{
		{
			Name:        "try-catch",
			Description: "synchronous failure recovered by a catch handler",
			Mode:        ModeSync,
			Action:      Action{Kind: ActionDivide, A: 10, B: 0},
			Catch:       CatchRecover,
		},
		{
			Name:        "throw",
			Description: "explicit raise from a validator, caught and rethrown",
			Mode:        ModeSync,
			Action:      Action{Kind: ActionValidate, Input: ""},
			Catch:       CatchRethrow,
		},
		{
			Name:         "finally",
			Description:  "cleanup runs on success and its failure is recorded as secondary",
			Mode:         ModeSync,
			Action:       Action{Kind: ActionValidate, Input: "hello"},
			Finally:      true,
			FinallyFails: true,
		},
		{
			Name:        "promise-catch",
			Description: "async rejection handled by a catch handler",
			Mode:        ModeAsync,
			Action:      Action{Kind: ActionFetch, Fail: true, Delay: 5 * time.Millisecond},
			Catch:       CatchRecover,
		},
		{
			Name:        "async-await",
			Description: "async success awaited through a suspension point",
			Mode:        ModeAsync,
			Action:      Action{Kind: ActionFetch, Delay: time.Millisecond},
			Catch:       CatchRecover,
			Finally:     true,
		},
		{
			Name:        "onerror",
			Description: "synchronous failure with no handler reaches the global sink",
			Mode:        ModeSync,
			Action:      Action{Kind: ActionDivide, A: 1, B: 0},
		},
		{
			Name:        "promise-finally",
			Description: "finally runs once after an async operation resolves",
			Mode:        ModeAsync,
			Action:      Action{Kind: ActionFetch},
			Finally:     true,
		},
		{
			Name:        "unhandled-rejection",
			Description: "async failure with no handler reaches the global sink",
			Mode:        ModeAsync,
			Action:      Action{Kind: ActionFetch, Fail: true},
		},
		{
			Name:        "cancel-before-start",
			Description: "async operation cancelled before it starts",
			Mode:        ModeAsync,
			Action:      Action{Kind: ActionFetch, Delay: time.Second},
			Catch:       CatchRecover,
			Cancel:      true,
		},
		{
			Name:        "divide",
			Description: "divide(10, 0) with a logging catch and a finally",
			Mode:        ModeSync,
			Action:      Action{Kind: ActionDivide, A: 10, B: 0},
			Catch:       CatchObserve,
			Finally:     true,
		},
	}
}
