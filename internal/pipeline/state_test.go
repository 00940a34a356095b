package pipeline

import "testing"

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{"resume from paused", StatePaused, Resume(), StateRunning, false},
		{"resume from running is rejected", StateRunning, Resume(), StateRunning, true},
		{"resume from processing is rejected", StateProcessing, Resume(), StateProcessing, true},

		{"start from running", StateRunning, StartProcessing(), StateProcessing, false},
		{"start from idle", StateIdle, StartProcessing(), StateProcessing, false},
		{"start from paused is rejected", StatePaused, StartProcessing(), StatePaused, true},
		{"start from pausing is rejected", StatePausing, StartProcessing(), StatePausing, true},

		{"pause while processing defers", StateProcessing, PauseRequest(), StatePausing, false},
		{"pause while pausing is idempotent", StatePausing, PauseRequest(), StatePausing, false},
		{"pause while running is immediate", StateRunning, PauseRequest(), StatePaused, false},
		{"pause while idle is immediate", StateIdle, PauseRequest(), StatePaused, false},
		{"pause while paused is a no-op", StatePaused, PauseRequest(), StatePaused, false},

		{"completed with more work", StateProcessing, WorkCompleted(true), StateRunning, false},
		{"completed without more work", StateProcessing, WorkCompleted(false), StateIdle, false},
		{"completed while pausing parks, ignoring more work", StatePausing, WorkCompleted(true), StatePaused, false},
		{"completed while pausing parks", StatePausing, WorkCompleted(false), StatePaused, false},
		{"completed while idle is rejected", StateIdle, WorkCompleted(true), StateIdle, true},

		{"no work while running idles", StateRunning, NoEligibleWork(), StateIdle, false},
		{"no work while idle stays idle", StateIdle, NoEligibleWork(), StateIdle, false},
		{"no work while paused is rejected", StatePaused, NoEligibleWork(), StatePaused, true},
		{"no work while processing is rejected", StateProcessing, NoEligibleWork(), StateProcessing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			if got != tt.want {
				t.Errorf("Transition(%q) = %q, want %q", tt.from, got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Transition(%q) error = %v, wantErr %v", tt.from, err, tt.wantErr)
			}
		})
	}
}

// A pause requested during processing must win over any amount of
// pending work, for every event order that can follow it.
func TestPauseDuringProcessingAlwaysParks(t *testing.T) {
	for _, moreWork := range []bool{true, false} {
		s := StatePaused
		s, _ = Transition(s, Resume())
		s, _ = Transition(s, StartProcessing())
		s, _ = Transition(s, PauseRequest())
		if s != StatePausing {
			t.Fatalf("expected pausing, got %q", s)
		}
		// Repeated pause requests must not disturb the pending pause.
		s, _ = Transition(s, PauseRequest())
		s, _ = Transition(s, WorkCompleted(moreWork))
		if s != StatePaused {
			t.Errorf("moreWork=%v: expected paused after completion, got %q", moreWork, s)
		}
	}
}

// Feed every event to every state and check the machine only ever
// yields known states.
func TestTransitionNeverLeavesDefinedStates(t *testing.T) {
	states := []State{StatePaused, StateRunning, StateProcessing, StatePausing, StateIdle}
	events := []Event{Resume(), StartProcessing(), PauseRequest(), WorkCompleted(true), WorkCompleted(false), NoEligibleWork()}
	defined := map[State]bool{}
	for _, s := range states {
		defined[s] = true
	}

	for _, s := range states {
		for _, e := range events {
			got, _ := Transition(s, e)
			if !defined[got] {
				t.Errorf("Transition(%q, %v) produced undefined state %q", s, e, got)
			}
		}
	}
}

func TestAccepting(t *testing.T) {
	if Accepting(StatePaused) || Accepting(StatePausing) || Accepting(StateProcessing) {
		t.Error("paused/pausing/processing must not accept dispatch")
	}
	if !Accepting(StateRunning) || !Accepting(StateIdle) {
		t.Error("running and idle must accept dispatch")
	}
}
