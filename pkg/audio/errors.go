// ABOUTME: Error types surfaced by a play request
// ABOUTME: Unsupported format and resource I/O failures
package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat matches every UnsupportedFormatError via errors.Is
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// UnsupportedFormatError reports a resource that cannot be decoded or
// whose format has no matching output line on this host
type UnsupportedFormatError struct {
	Format Format
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == (Format{}) {
		return fmt.Sprintf("cannot play an unsupported audio format: %s", e.Reason)
	}
	return fmt.Sprintf("cannot play an unsupported audio format (%s): %s", e.Format, e.Reason)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// IOError reports a resource that could not be opened, fetched or read
type IOError struct {
	Resource string
	Op       string // "open", "fetch" or "read"
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
