package asterix

import (
	"errors"
	"fmt"
)

// DecodeError is the tiered error surface described for the block/record/
// item/field decoder. Callers can type-assert to the concrete variant, or
// use errors.Is/As against the sentinel Err* values.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("asterix: %s: %v", e.Op, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

var (
	// ErrUnsupportedCategory is returned when a block's category has no
	// registered schema.
	ErrUnsupportedCategory = errors.New("unsupported category")
	// ErrMalformedFSPEC is returned when a record's FSPEC exceeds the
	// 16-byte cap or the block ends mid-FSPEC.
	ErrMalformedFSPEC = errors.New("malformed FSPEC")
	// ErrUnknownItem is returned when a UAP slot names an item absent from
	// the category's catalogue.
	ErrUnknownItem = errors.New("unknown item")
	// ErrInvalidFieldValue is returned when a field cannot be decoded from
	// the bytes available to it.
	ErrInvalidFieldValue = errors.New("invalid field value")
	// ErrRecordLengthMismatch is returned in strict mode when the sum of
	// record lengths plus the header does not equal the declared length.
	ErrRecordLengthMismatch = errors.New("record length mismatch")
	// ErrRecordLimitExceeded is returned when a block would require more
	// than the bounded record ceiling to fully decode.
	ErrRecordLimitExceeded = errors.New("record limit exceeded")
)

// MaxRecordsPerBlock bounds the record loop so a corrupt or adversarial
// block cannot force unbounded iteration.
const MaxRecordsPerBlock = 1024

// MaxFSPECBytes bounds a single record's FSPEC.
const MaxFSPECBytes = 16
