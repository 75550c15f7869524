// Package chain defines the contracts shared between the blockchain core
// services, the data access layer, the rules engine and the block generator.
package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyProcessed rejects a duplicate (number, hash) on the
	// canonical chain.
	ErrAlreadyProcessed = errors.New("block already processed")
	// ErrBlockNotFound reports a lookup for an unknown block number.
	ErrBlockNotFound = errors.New("block not found")
	// ErrOutOfForkWindow rejects a side block deeper than the fork window.
	ErrOutOfForkWindow = errors.New("block out of fork window")
	// ErrForkRejected rejects a non-extending block when forks are not
	// allowed.
	ErrForkRejected = errors.New("block does not follow current block and forks are not allowed")
	// ErrRangeTooLarge rejects a blocks-between query over the bound.
	ErrRangeTooLarge = errors.New("range is too large")
)

// InvalidBlockError is a rules engine rejection.
type InvalidBlockError struct {
	Reason string
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("invalid block: %s", e.Reason)
}

// NewInvalidBlock builds an InvalidBlockError with a formatted reason.
func NewInvalidBlock(format string, args ...any) error {
	return &InvalidBlockError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidBlock reports whether err is a rules engine rejection.
func IsInvalidBlock(err error) bool {
	var ibe *InvalidBlockError
	return errors.As(err, &ibe)
}
