package report

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput rejects a generation with no entries and no event context.
	ErrNoInput = errors.New("add at least one entry or event context before generating")

	// ErrInvalidResponse matches every *InvalidResponseError.
	ErrInvalidResponse = errors.New("AI returned an invalid response")

	// ErrUnknownMode is returned for a generation mode outside creative, zh_to_en and en_to_zh.
	ErrUnknownMode = errors.New("unknown generation mode")
)

// InvalidResponseError reports model output that could not be decoded into a
// report. Raw keeps the model text for debugging; it must not be shown to users.
type InvalidResponseError struct {
	Raw string
	Err error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("AI returned an invalid response: %v", e.Err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInvalidResponse) hold.
func (e *InvalidResponseError) Is(target error) bool {
	return target == ErrInvalidResponse
}

func invalid(raw string, format string, args ...any) error {
	return &InvalidResponseError{Raw: raw, Err: fmt.Errorf(format, args...)}
}
