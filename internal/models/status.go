package models

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool { return s == StatusCompleted }

// Event triggers a status transition.
type Event string

const (
	EventRespond  Event = "respond"  // a recipient submits a response
	EventStart    Event = "start"    // the sender advances manually
	EventComplete Event = "complete" // the sender marks the alert done
	EventReopen   Event = "reopen"   // the sender moves in_progress back to pending
)

type InvalidTransitionError struct {
	From  Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("alert is %s: no further changes allowed", e.From)
	}
	return fmt.Sprintf("cannot %s an alert that is %s", e.Event, e.From)
}

type transitionKey struct {
	from  Status
	event Event
}

var transitions = map[transitionKey]Status{
	{StatusPending, EventRespond}:     StatusInProgress,
	{StatusInProgress, EventRespond}:  StatusInProgress,
	{StatusPending, EventStart}:       StatusInProgress,
	{StatusPending, EventComplete}:    StatusCompleted,
	{StatusInProgress, EventComplete}: StatusCompleted,
	{StatusInProgress, EventReopen}:   StatusPending,
}

// Transition returns the status reached from current by ev.
func Transition(current Status, ev Event) (Status, error) {
	next, ok := transitions[transitionKey{current, ev}]
	if !ok {
		return current, &InvalidTransitionError{From: current, Event: ev}
	}
	return next, nil
}

// EventFor maps a direct status selection to the event that reaches it.
// An empty event with a nil error means target equals current.
func EventFor(current, target Status) (Event, error) {
	if current.Terminal() {
		return "", &InvalidTransitionError{From: current, Event: eventTowards(target)}
	}
	if current == target {
		return "", nil
	}
	ev := eventTowards(target)
	if _, err := Transition(current, ev); err != nil {
		return "", err
	}
	return ev, nil
}

func eventTowards(target Status) Event {
	switch target {
	case StatusInProgress:
		return EventStart
	case StatusCompleted:
		return EventComplete
	default:
		return EventReopen
	}
}
