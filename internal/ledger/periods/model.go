package periods

import (
	"errors"
	"time"
)

// Status enumerates period lifecycle values.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
	StatusLocked Status = "LOCKED"
)

// Period is a calendar-month bookkeeping window, coded YYYY-MM.
type Period struct {
	ID        int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	ClosedAt  *time.Time
	ClosedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CodeFor derives the YYYY-MM period code from a posting date.
func CodeFor(date time.Time) string {
	return date.Format("2006-01")
}

// BoundsFor returns the first and last day of the month containing date.
func BoundsFor(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

// ErrInvalidTransition indicates a status change not allowed by policy.
var ErrInvalidTransition = errors.New("periods: transition invalid")

// ValidateTransition checks status changes according to policy. Locked
// periods only reopen with an explicit override.
func ValidateTransition(current, target Status, hasOverride bool) error {
	if current == target {
		return nil
	}
	switch current {
	case StatusOpen:
		if target == StatusClosed || target == StatusLocked {
			return nil
		}
	case StatusClosed:
		if target == StatusOpen || target == StatusLocked {
			return nil
		}
	case StatusLocked:
		if target == StatusClosed && hasOverride {
			return nil
		}
	}
	return ErrInvalidTransition
}
