package bookings

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusActive    Status = "active"
	StatusReturned  Status = "returned"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusActive, StatusReturned, StatusOverdue, StatusCancelled}

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) Terminal() bool {
	return s == StatusReturned || s == StatusCancelled
}

// blockingStatuses hold the product for their interval.
var blockingStatuses = []Status{StatusConfirmed, StatusActive}

type Event string

const (
	EventConfirm     Event = "confirm"
	EventActivate    Event = "activate"
	EventReturn      Event = "return"
	EventCancel      Event = "cancel"
	EventMarkOverdue Event = "mark_overdue"
)

// transitions is the whole lifecycle. Anything missing here is illegal.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventConfirm: StatusConfirmed,
		EventCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		EventActivate: StatusActive,
		EventCancel:   StatusCancelled,
	},
	StatusActive: {
		EventReturn:      StatusReturned,
		EventMarkOverdue: StatusOverdue,
	},
	StatusOverdue: {
		EventReturn: StatusReturned,
	},
}

// Next returns the status reached from `from` on `ev`, or an
// INVALID_TRANSITION error naming both.
func Next(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, ErrInvalidTransition(from, ev)
}
