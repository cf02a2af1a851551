package domain

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a transaction attempt.
// The numeric values are stable: they are stored in the status_id column.
type Status int

const (
	StatusPending    Status = 1
	StatusProcessing Status = 2
	StatusRetrying   Status = 3
	StatusSucceeded  Status = 4
	StatusFailed     Status = 5
	StatusCancelled  Status = 6
)

var statusNames = map[Status]string{
	StatusPending:    "Pending",
	StatusProcessing: "Processing",
	StatusRetrying:   "Retrying",
	StatusSucceeded:  "Succeeded",
	StatusFailed:     "Failed",
	StatusCancelled:  "Cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(s))
}

func (s Status) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether no further processing is expected for this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for status, name := range statusNames {
		if strings.ToLower(name) == normalized {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: invalid status %q", ErrValidation, s)
}
