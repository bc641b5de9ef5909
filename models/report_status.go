package models

import "fmt"

// ReportStatus is the lifecycle state of a violation report. The client
// only ever proposes Pending at creation; forward transitions are
// applied when a backend acknowledgement reflects them.
type ReportStatus string

const (
	StatusPending       ReportStatus = "pending"
	StatusVerified      ReportStatus = "verified"
	StatusResolved      ReportStatus = "resolved"
	StatusFalsePositive ReportStatus = "false_positive"
)

var validTransitions = map[ReportStatus][]ReportStatus{
	StatusPending:  {StatusVerified, StatusFalsePositive},
	StatusVerified: {StatusResolved, StatusFalsePositive},
}

// InvalidTransitionError reports a rejected lifecycle transition. The
// local report is left untouched when it occurs.
type InvalidTransitionError struct {
	From ReportStatus
	To   ReportStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid report status transition %s -> %s", e.From, e.To)
}

// Terminal reports whether no further transitions are allowed.
func (s ReportStatus) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// ApplyTransition validates a lifecycle transition and returns an
// InvalidTransitionError when the move is not allowed.
func ApplyTransition(from, to ReportStatus) error {
	for _, next := range validTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}
