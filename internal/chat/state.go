package chat

import "github.com/zulandar/huebot/internal/api"

// Phase is the session lifecycle stage.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseStarting
	PhaseActive
	PhaseEnding
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	case PhaseEnded:
		return "ended"
	default:
		return "uninitialized"
	}
}

// CycleState is where the current counting cycle stands with respect to the
// automatic diagnosis.
type CycleState int

const (
	// CycleIdle counts exchanges toward the next diagnosis.
	CycleIdle CycleState = iota
	// CycleGenerating means the diagnosis save is in flight.
	CycleGenerating
	// CycleGenerated means the summary has been appended; the cycle is about
	// to restart at zero.
	CycleGenerated
)

func (s CycleState) String() string {
	switch s {
	case CycleGenerating:
		return "generating"
	case CycleGenerated:
		return "generated"
	default:
		return "idle"
	}
}

// cycle couples the turn counter with the diagnosis state so the two always
// change together.
type cycle struct {
	state CycleState
	turns int
}

func idle(turns int) cycle { return cycle{state: CycleIdle, turns: turns} }

// exchanged records one successful exchange. It reports whether the cycle
// has reached the diagnosis threshold, in which case the cycle moves to
// CycleGenerating.
func (c cycle) exchanged(threshold int) (cycle, bool) {
	if c.state != CycleIdle {
		return cycle{state: c.state, turns: c.turns + 1}, false
	}
	next := idle(c.turns + 1)
	if next.turns >= threshold {
		return cycle{state: CycleGenerating, turns: next.turns}, true
	}
	return next, false
}

// initState is a one-shot initializer that re-arms on failure.
type initState int

const (
	initIdle initState = iota
	initPending
	initDone
)

// Choice is the user's answer to the leave prompt.
type Choice int

const (
	// ChoiceSkip closes the prompt without feedback.
	ChoiceSkip Choice = iota
	ChoicePositive
	ChoiceNegative
)

// Feedback returns the verdict to submit, if any.
func (c Choice) Feedback() (api.Feedback, bool) {
	switch c {
	case ChoicePositive:
		return api.FeedbackPositive, true
	case ChoiceNegative:
		return api.FeedbackNegative, true
	}
	return "", false
}

func (c Choice) String() string {
	switch c {
	case ChoicePositive:
		return "positive"
	case ChoiceNegative:
		return "negative"
	default:
		return "skip"
	}
}
