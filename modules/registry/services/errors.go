package services

import (
	"errors"
	"fmt"
)

// PartialError reports a bulk operation that stopped after Done items were
// committed. Committed chunks stay committed.
type PartialError struct {
	Op   string
	Done int
	Err  error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s stopped after %d records: %v", e.Op, e.Done, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// AsPartial extracts a PartialError from err.
func AsPartial(err error) (*PartialError, bool) {
	return errors.AsType[*PartialError](err)
}
