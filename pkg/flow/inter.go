package flow

import (
	"time"

	"github.com/google/uuid"
)

// Settled is the type-erased view of an Outcome used by code that routes
// failures without caring about the value type.
type Settled interface {
	// Id of the outcome
	Id() uuid.UUID
	// CreatedAt time creation (UTC)
	CreatedAt() time.Time
	// Err returns the error if the operation failed
	Err() error
	// IsSuccess returns true if the operation was successful
	IsSuccess() bool
	// IsFailure returns true for failures and cancellations
	IsFailure() bool
	// IsCancel returns true if the operation was cancelled
	IsCancel() bool
	// Handled returns true for a failure a catch handler has seen
	Handled() bool
	// Suppressed lists secondary cleanup failures
	Suppressed() []error
}

var _ Settled = Outcome[int]{}
