package extract

import (
	"errors"
	"fmt"
)

// ErrInvalidName is returned for subset names that cannot be used as a cache
// file name.
var ErrInvalidName = errors.New("invalid subset name")

// MalformedInputError reports a peak file whose content could not be parsed.
type MalformedInputError struct {
	Path string
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s: %v", e.Path, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}
