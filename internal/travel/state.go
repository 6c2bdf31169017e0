package travel

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/talgya/hexrun/internal/encounter"
	"github.com/talgya/hexrun/internal/salvage"
)

var (
	ErrJourneyActive   = errors.New("journey already in progress")
	ErrNotTraveling    = errors.New("no journey in progress")
	ErrNoWaypoints     = errors.New("waypoint queue is empty")
	ErrRunFailed       = errors.New("run has failed")
	ErrNoEscapeRoute   = errors.New("no extractable gate reachable")
	ErrNoSuspension    = errors.New("travel is not suspended")
	ErrAlreadyResolved = errors.New("suspension already resolved")
	ErrInvalidDecision = errors.New("decision not valid for this suspension")
)

// State is the orchestrator's state machine position.
type State uint8

const (
	StateIdle State = iota
	StateTraveling
	StateAwaitingEncounter
	StateAwaitingGuardianDecision
	StateAwaitingSalvageResolution
	StateCompleted
	StateCancelled
	StateHalted // Detection reached the cap
	StateDefeated
	StateExtracted
)

var stateNames = [...]string{
	StateIdle:                      "idle",
	StateTraveling:                 "traveling",
	StateAwaitingEncounter:         "awaiting_encounter",
	StateAwaitingGuardianDecision:  "awaiting_guardian_decision",
	StateAwaitingSalvageResolution: "awaiting_salvage_resolution",
	StateCompleted:                 "completed",
	StateCancelled:                 "cancelled",
	StateHalted:                    "halted",
	StateDefeated:                  "defeated",
	StateExtracted:                 "extracted",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Suspended reports whether s waits on a player decision.
func (s State) Suspended() bool {
	return s == StateAwaitingEncounter || s == StateAwaitingGuardianDecision || s == StateAwaitingSalvageResolution
}

// Terminal reports whether s ends a journey.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// EndsRun reports whether s closes the run itself, not just the journey.
func (s State) EndsRun() bool {
	return s == StateHalted || s == StateDefeated || s == StateExtracted
}

// Action is a player decision at a suspension point.
type Action uint8

const (
	ActionEngage Action = iota
	ActionDecline
	ActionSubstitute
	ActionSalvage
	ActionLeave
)

var actionNames = [...]string{
	ActionEngage:     "engage",
	ActionDecline:    "decline",
	ActionSubstitute: "substitute",
	ActionSalvage:    "salvage",
	ActionLeave:      "leave",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseAction parses an action name.
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// Decision resolves a suspension. AIID names the replacement opponent for
// ActionSubstitute.
type Decision struct {
	Action Action
	AIID   string
}

// Suspension is the one-shot handle published while travel waits on the
// player. Resolve fulfills it exactly once.
type Suspension struct {
	ID          int                    `json:"id"`
	Kind        State                  `json:"kind"`
	Encounter   *encounter.Result      `json:"encounter,omitempty"`
	Salvage     *salvage.State         `json:"salvage,omitempty"`
	LastAttempt *salvage.AttemptResult `json:"last_attempt,omitempty"`

	resume   chan Decision
	resolved atomic.Bool
}

func newSuspension(kind State) *Suspension {
	return &Suspension{Kind: kind, resume: make(chan Decision, 1)}
}

// Allows reports whether action may resolve this suspension.
func (s *Suspension) Allows(a Action) bool {
	switch s.Kind {
	case StateAwaitingEncounter:
		return a == ActionEngage
	case StateAwaitingGuardianDecision:
		return a == ActionEngage || a == ActionDecline || a == ActionSubstitute
	case StateAwaitingSalvageResolution:
		return a == ActionSalvage || a == ActionLeave
	}
	return false
}

// Resolve hands the decision to the waiting journey. Invalid decisions are
// rejected without consuming the handle.
func (s *Suspension) Resolve(d Decision) error {
	if !s.Allows(d.Action) {
		return fmt.Errorf("%w: %s while %s", ErrInvalidDecision, d.Action, s.Kind)
	}
	if d.Action == ActionSubstitute && d.AIID == "" {
		return fmt.Errorf("%w: substitute needs an ai id", ErrInvalidDecision)
	}
	if !s.resolved.CompareAndSwap(false, true) {
		return ErrAlreadyResolved
	}
	s.resume <- d
	return nil
}

// Resolved reports whether the handle has been used.
func (s *Suspension) Resolved() bool {
	return s.resolved.Load()
}
