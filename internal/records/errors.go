package records

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the decoding and access layers. Callers match
// them with errors.Is; wrapping adds the entry or channel that failed.
var (
	ErrMalformedContainer   = errors.New("malformed container")
	ErrMalformedIndexEntry  = errors.New("malformed index entry")
	ErrUnsupportedKind      = errors.New("unsupported record kind")
	ErrMissingField         = errors.New("missing field")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrTransferNotAvailable = errors.New("transfer function not available")
	ErrMetadataMismatch     = errors.New("metadata mismatch")
	ErrNoChannelsFound      = errors.New("no channels found")
)

// MissingFieldError names the node and the required parameter it lacks
type MissingFieldError struct {
	Node  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing required parameter %q", e.Node, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// MetadataMismatchError names the first metadata field found to differ
type MetadataMismatchError struct {
	Field string
	A, B  any
}

func (e *MetadataMismatchError) Error() string {
	return fmt.Sprintf("metadata mismatch in %s: %v vs %v", e.Field, e.A, e.B)
}

func (e *MetadataMismatchError) Is(target error) bool {
	return target == ErrMetadataMismatch
}
