// Package pipeline implements the stage orchestration shared by the
// analysis, crf-search and encoding pipelines: a pure state machine, a
// demand-driven dispatcher, a size-or-timeout batch accumulator, and
// the batch processor that drives items through metadata resolution,
// preparation, persistence and state transitions.
package pipeline

import "fmt"

// State is the lifecycle state of one pipeline instance.
type State string

const (
	// StatePaused is the initial state; nothing is dispatched.
	StatePaused State = "paused"
	// StateRunning means the pipeline accepts dispatch but has no
	// batch in flight.
	StateRunning State = "running"
	// StateProcessing means a batch is in flight.
	StateProcessing State = "processing"
	// StatePausing means a pause was requested while processing; the
	// current batch finishes, then the pipeline parks in paused.
	StatePausing State = "pausing"
	// StateIdle means the pipeline is running but the store had no
	// eligible work on the last check.
	StateIdle State = "idle"
)

// Event is a state machine input.
type Event struct {
	kind     eventKind
	moreWork bool
}

type eventKind int

const (
	eventResume eventKind = iota
	eventStartProcessing
	eventPauseRequest
	eventWorkCompleted
	eventNoWork
)

// Resume requests paused -> running.
func Resume() Event { return Event{kind: eventResume} }

// StartProcessing marks a batch as dispatched.
func StartProcessing() Event { return Event{kind: eventStartProcessing} }

// PauseRequest asks the pipeline to stop after any in-flight batch.
func PauseRequest() Event { return Event{kind: eventPauseRequest} }

// WorkCompleted marks the in-flight batch as finished; moreWork reports
// whether the store still has eligible items.
func WorkCompleted(moreWork bool) Event {
	return Event{kind: eventWorkCompleted, moreWork: moreWork}
}

// NoEligibleWork reports an eligibility check that found nothing.
func NoEligibleWork() Event { return Event{kind: eventNoWork} }

// Transition is a pure function from (state, event) to the next state.
// Unexpected combinations leave the state unchanged and return an error
// so callers can log them; the machine never enters an undefined state.
func Transition(s State, e Event) (State, error) {
	switch e.kind {
	case eventResume:
		if s == StatePaused {
			return StateRunning, nil
		}
		return s, fmt.Errorf("resume ignored in state %q", s)

	case eventStartProcessing:
		switch s {
		case StateRunning, StateIdle:
			return StateProcessing, nil
		}
		return s, fmt.Errorf("start_processing ignored in state %q", s)

	case eventPauseRequest:
		switch s {
		case StateProcessing:
			return StatePausing, nil
		case StatePausing:
			// Idempotent: a second pause request changes nothing.
			return StatePausing, nil
		default:
			return StatePaused, nil
		}

	case eventWorkCompleted:
		switch s {
		case StateProcessing:
			if e.moreWork {
				return StateRunning, nil
			}
			return StateIdle, nil
		case StatePausing:
			// Pause takes priority over pending work once requested.
			return StatePaused, nil
		}
		return s, fmt.Errorf("work_completed ignored in state %q", s)

	case eventNoWork:
		switch s {
		case StateRunning, StateIdle:
			return StateIdle, nil
		}
		return s, fmt.Errorf("no_work ignored in state %q", s)
	}

	return s, fmt.Errorf("unknown event %d in state %q", e.kind, s)
}

// Accepting reports whether a pipeline in state s may dispatch new work.
func Accepting(s State) bool {
	return s == StateRunning || s == StateIdle
}
