package booking

import (
	"errors"
	"fmt"
)

var (
	ErrValidationFailed      = errors.New("validation failed")
	ErrInvalidInterval       = errors.New("invalid interval")
	ErrOutsideOperatingHours = errors.New("outside operating hours")
	ErrBlockedByOverride     = errors.New("blocked by availability override")
	ErrDoubleBooked          = errors.New("room already booked for this interval")
	ErrRoomInactive          = errors.New("room is not active")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNotFound              = errors.New("not found")
	ErrPolicyMissing         = errors.New("no cancellation policy configured")
	ErrInvalidSchedule       = errors.New("invalid operating hours schedule")
	ErrInvalidPriceRule      = errors.New("invalid special price")
	ErrNegativeRate          = errors.New("negative rate")
	ErrUnknownActor          = errors.New("unknown actor")
)

// ValidationError is returned by CreateReservation. It matches both
// ErrValidationFailed and its Reason under errors.Is.
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrValidationFailed, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidationFailed, e.Reason, e.Detail)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func validationFailed(reason error, detail string) error {
	return &ValidationError{Reason: reason, Detail: detail}
}

// asValidation wraps the taxonomy reasons that belong to a failed create and
// passes everything else (storage faults, config errors) through untouched.
func asValidation(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	for _, reason := range []error{ErrInvalidInterval, ErrOutsideOperatingHours, ErrBlockedByOverride, ErrDoubleBooked, ErrRoomInactive} {
		if errors.Is(err, reason) {
			return &ValidationError{Reason: reason, Detail: detailOf(err, reason)}
		}
	}
	return err
}

func detailOf(err, reason error) string {
	if err == reason {
		return ""
	}
	return err.Error()
}
