package booking

import (
	"fmt"

	"slapp/internal/domain"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionExpire  Action = "expire"
)

// Transition is the reservation state machine. It is total over every
// (status, action) pair: the result is either the next status or
// ErrInvalidTransition. changed is false only for expiring an already
// expired reservation.
func Transition(from domain.ReservationStatus, action Action) (to domain.ReservationStatus, changed bool, err error) {
	switch from {
	case domain.ReservationPending:
		switch action {
		case ActionApprove:
			return domain.ReservationConfirmed, true, nil
		case ActionReject:
			return domain.ReservationRejected, true, nil
		case ActionCancel:
			return domain.ReservationCancelled, true, nil
		case ActionExpire:
			return domain.ReservationExpired, true, nil
		}
	case domain.ReservationConfirmed:
		if action == ActionCancel {
			return domain.ReservationCancelled, true, nil
		}
	case domain.ReservationExpired:
		if action == ActionExpire {
			return domain.ReservationExpired, false, nil
		}
	case domain.ReservationRejected, domain.ReservationCancelled:
	default:
		return from, false, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	return from, false, fmt.Errorf("%w: cannot %s a %s reservation", ErrInvalidTransition, action, from)
}
