package history

import (
	"errors"
	"fmt"
)

// ErrUnbound returned by relation accessors of a job not backed by storage
var ErrUnbound = fmt.Errorf("job is not bound to storage: %w", errors.ErrUnsupported)

// ConfigurationError reports malformed job configuration. Index is the position of the
// offending configuration, -1 if the whole document is malformed.
type ConfigurationError struct {
	Index  int
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("invalid configs: %s", e.Reason)
	case e.Key == "":
		return fmt.Sprintf("invalid config #%d: %s", e.Index, e.Reason)
	default:
		return fmt.Sprintf("invalid config #%d, key %q: %s", e.Index, e.Key, e.Reason)
	}
}

// RecordError reports record which can't be converted to a typed value
type RecordError struct {
	Key    string
	Reason string
}

func (e *RecordError) Error() string {
	if e.Key == "" {
		return "bad record: " + e.Reason
	}
	return fmt.Sprintf("bad record field %q: %s", e.Key, e.Reason)
}
