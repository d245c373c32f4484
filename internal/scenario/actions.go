package scenario

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ib-77/errflow/pkg/flow"
	"github.com/ib-77/errflow/pkg/flow/operation"
	"github.com/ib-77/errflow/pkg/flow/solo"
)

func divide(a, b int) int {
	if b == 0 {
		flow.Throw(flow.New(flow.OperationFailure, "Cannot divide by zero"))
	}
	return a / b
}

func validateInput(input string) string {
	flow.Validate(input != "", "Input cannot be empty")
	return input
}

type payload struct {
	Data int `json:"data"`
}

// fetch stands in for a network call.
func fetch(ctx context.Context, fail bool, delay time.Duration) (string, error) {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", flow.New(flow.OperationFailure, "Network response was not ok")
	}
	body, err := json.Marshal(payload{Data: 1})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s Scenario) syncBody() operation.Body[string] {
	return func(ctx context.Context) flow.Outcome[string] {
		switch s.Action.Kind {
		case ActionDivide:
			return flow.Success(strconv.Itoa(divide(s.Action.A, s.Action.B)))
		default:
			return flow.Success(validateInput(s.Action.Input))
		}
	}
}

func (s Scenario) asyncBody() operation.AsyncBody[string] {
	return func(ctx context.Context, susp *operation.Suspension) flow.Outcome[string] {
		if s.Action.Kind != ActionFetch {
			return s.syncBody()(ctx)
		}
		body, err := operation.Await(susp, func(ctx context.Context) (string, error) {
			return fetch(ctx, s.Action.Fail, s.Action.Delay)
		})
		return solo.Try(ctx, flow.Success(body), func(context.Context, string) (string, error) {
			return body, err
		})
	}
}
