// Package travel drives a journey along the waypoint queue: one hex at a
// time, with pause and cancel, suspending at encounters, guardian
// objectives and salvage until the player decides.
package travel

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/hexrun/internal/alert"
	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/encounter"
	"github.com/talgya/hexrun/internal/escape"
	"github.com/talgya/hexrun/internal/movement"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/world"
)

// CombatOutcome is what the combat collaborator reports back.
type CombatOutcome struct {
	Victory bool `json:"victory"`
}

// Combat resolves a fight against aiID. snapshot is a copy of the run
// state at combat start.
type Combat interface {
	Initiate(ctx context.Context, aiID string, snapshot run.State) (CombatOutcome, error)
}

// Config holds journey pacing.
type Config struct {
	ScanDelay    time.Duration `mapstructure:"scan_delay"`
	MoveDelay    time.Duration `mapstructure:"move_delay"`
	PollInterval time.Duration `mapstructure:"poll_interval"` // Pause and cancel are checked at this rate
}

// DefaultConfig returns the stock pacing.
func DefaultConfig() Config {
	return Config{
		ScanDelay:    300 * time.Millisecond,
		MoveDelay:    400 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
	}
}

const defaultPoll = 10 * time.Millisecond

// Deps are the collaborators a journey runs against.
type Deps struct {
	Map        *world.Map
	Store      run.Store
	Planner    *movement.Planner
	Routes     *escape.Calculator
	Detection  *detection.Service
	Encounters *encounter.Engine
	Salvage    *salvage.Engine
	Alerts     *alert.Tracker
	Combat     Combat
}

// Result summarizes a finished journey.
type Result struct {
	State      State          `json:"state"`
	Moves      int            `json:"moves"`
	Encounters int            `json:"encounters"`
	Position   world.HexCoord `json:"position"`
	Detection  float64        `json:"detection"`
	Run        *run.State     `json:"run,omitempty"` // Final state, set when the outcome ended the run
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State    State       `json:"state"`
	Active   bool        `json:"active"`
	Scanning bool        `json:"scanning"`
	Paused   bool        `json:"paused"`
	Pending  *Suspension `json:"pending,omitempty"`
	Last     *Result     `json:"last,omitempty"`
}

// transition marks work that must survive the end of a journey.
type transition uint8

const (
	transitionNone transition = iota
	transitionCombat
	transitionEscape
	transitionLootResume
)

// journey carries the cancel flag for one Travel call.
type journey struct {
	cancelled atomic.Bool
	wake      chan struct{}
	once      sync.Once
}

func newJourney() *journey {
	return &journey{wake: make(chan struct{})}
}

func (j *journey) cancel() {
	j.cancelled.Store(true)
	j.once.Do(func() { close(j.wake) })
}

// Orchestrator runs journeys. At most one is active at a time.
type Orchestrator struct {
	m          *world.Map
	store      run.Store
	planner    *movement.Planner
	routes     *escape.Calculator
	detect     *detection.Service
	encounters *encounter.Engine
	salvager   *salvage.Engine
	alerts     *alert.Tracker
	combat     Combat
	cfg        Config
	log        *slog.Logger

	// OnSuspend is called on the travel goroutine each time a suspension
	// is published. It may resolve the handle directly.
	OnSuspend func(*Suspension)

	mu       sync.Mutex
	state    State
	active   bool
	scanning bool
	paused   bool
	pending  *Suspension
	journey  *journey
	seq      int
	last     *Result

	// Owned by the travel goroutine while a journey is active.
	deferRemoval bool
	savedQueue   []run.Waypoint
	transition   transition
	escaping     bool
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(d Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		m:          d.Map,
		store:      d.Store,
		planner:    d.Planner,
		routes:     d.Routes,
		detect:     d.Detection,
		encounters: d.Encounters,
		salvager:   d.Salvage,
		alerts:     d.Alerts,
		combat:     d.Combat,
		cfg:        cfg,
		log:        logger,
	}
}

// Status returns the current state and any pending suspension.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:    o.state,
		Active:   o.active,
		Scanning: o.scanning,
		Paused:   o.paused,
		Pending:  o.pending,
		Last:     o.last,
	}
}

// Active reports whether a journey is running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Pending returns the outstanding suspension, or nil.
func (o *Orchestrator) Pending() *Suspension {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

// Resolve fulfills the outstanding suspension.
func (o *Orchestrator) Resolve(d Decision) error {
	s := o.Pending()
	if s == nil {
		return ErrNoSuspension
	}
	return s.Resolve(d)
}

// EditQueue applies fn to the run state while no journey is running. It
// holds the orchestrator lock across the update so a journey cannot start
// part way through an edit. fn's error is returned as is.
func (o *Orchestrator) EditQueue(fn func(*run.State) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return ErrJourneyActive
	}
	var fnErr error
	if err := o.store.Update(func(s *run.State) { fnErr = fn(s) }); err != nil {
		return err
	}
	return fnErr
}

// Pause holds the journey at its next delay tick.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return ErrNotTraveling
	}
	o.paused = true
	return nil
}

// Resume releases a paused journey.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return ErrNotTraveling
	}
	o.paused = false
	return nil
}

// Cancel stops the journey at its next tick or suspension exit.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	j := o.journey
	o.mu.Unlock()
	if j == nil {
		return ErrNotTraveling
	}
	j.cancel()
	return nil
}

// Travel walks the waypoint queue and blocks until the journey ends.
func (o *Orchestrator) Travel(ctx context.Context) (Result, error) {
	return o.start(ctx, false)
}

// Escape replaces the queue with the threat-minimizing route to the
// nearest extractable gate and travels it. Arrival ends the journey with
// StateExtracted.
func (o *Orchestrator) Escape(ctx context.Context) (Result, error) {
	return o.start(ctx, true)
}

// Launch starts a journey on its own goroutine and returns once it is
// running. The result is delivered on the returned channel.
func (o *Orchestrator) Launch(ctx context.Context, escaping bool) (<-chan Result, error) {
	j, err := o.begin(escaping)
	if err != nil {
		return nil, err
	}
	done := make(chan Result, 1)
	go func() {
		done <- o.finish(o.loop(ctx, j))
	}()
	return done, nil
}

func (o *Orchestrator) start(ctx context.Context, escaping bool) (Result, error) {
	j, err := o.begin(escaping)
	if err != nil {
		return Result{}, err
	}
	return o.finish(o.loop(ctx, j)), nil
}

// begin validates the run and claims the orchestrator for a new journey.
func (o *Orchestrator) begin(escaping bool) (*journey, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return nil, ErrJourneyActive
	}
	st, ok := o.store.Get()
	if !ok {
		return nil, run.ErrNoActiveRun
	}
	if st.Failed {
		return nil, ErrRunFailed
	}
	tr := transitionNone
	queued := len(st.Waypoints)
	if escaping {
		route, ok := o.routes.FindNearestExtractableGate(st.Position, st.EntryGate)
		if !ok {
			return nil, ErrNoEscapeRoute
		}
		if err := o.store.Update(func(s *run.State) {
			o.planner.SetRoute(s, route.Gate, route.Path)
		}); err != nil {
			return nil, err
		}
		tr = transitionEscape
		queued = 1
		o.log.Info("escape route set", "gate", route.GateID, "hexes", len(route.Path), "cost", route.Cost)
	} else if len(st.Waypoints) == 0 {
		return nil, ErrNoWaypoints
	}

	j := newJourney()
	o.journey = j
	o.active = true
	o.state = StateTraveling
	o.scanning, o.paused = false, false
	o.escaping = escaping
	o.transition = tr
	o.deferRemoval = false
	o.savedQueue = nil

	o.log.Info("journey started", "waypoints", queued, "escape", escaping)
	return j, nil
}

func (o *Orchestrator) loop(ctx context.Context, j *journey) Result {
	var res Result
	for {
		if j.cancelled.Load() || ctx.Err() != nil {
			res.State = StateCancelled
			return res
		}
		st, ok := o.store.Get()
		if !ok {
			res.State = StateCancelled
			return res
		}
		if len(st.Waypoints) == 0 {
			res.State = StateCompleted
			return res
		}

		head := st.Waypoints[0]
		if len(head.Path) == 0 {
			if next := o.arrive(ctx, j, head.Target, &res); next != StateTraveling {
				res.State = next
				return res
			}
			o.popWaypoint()
			continue
		}
		if next := o.step(ctx, j, &res); next != StateTraveling {
			res.State = next
			return res
		}
	}
}

// step scans, moves one hex and runs the per-hex checks. Failure is
// checked before the encounter roll so a halted run never shows an
// encounter prompt.
func (o *Orchestrator) step(ctx context.Context, j *journey, res *Result) State {
	o.setScanning(true)
	if o.wait(ctx, j, o.cfg.ScanDelay) {
		return StateCancelled
	}
	o.setScanning(false)
	if o.wait(ctx, j, o.cfg.MoveDelay) {
		return StateCancelled
	}

	var (
		hex     world.HexCoord
		moved   bool
		failed  bool
		moveIdx int
		snap    run.State
	)
	err := o.store.Update(func(s *run.State) {
		hex, _, moved = o.planner.Advance(s)
		if !moved {
			return
		}
		moveIdx = s.MoveCount - 1
		o.encounters.RaiseSignalLock(s, moveIdx)
		failed = detection.Failed(s.Detection)
		snap = s.Clone()
	})
	if err != nil {
		o.log.Error("travel step failed", "error", err)
		return StateCancelled
	}
	if !moved {
		return StateTraveling
	}
	res.Moves++
	if failed {
		return o.halt()
	}

	enc := o.encounters.MovementEncounter(&snap, o.planner.HexEncounterChance(hex), o.band(snap.Detection), moveIdx)
	if enc == nil {
		return StateTraveling
	}
	res.Encounters++
	next, _ := o.confront(ctx, j, enc, false, nil)
	return next
}

func (o *Orchestrator) halt() State {
	if err := o.detect.TriggerFailure(); err != nil {
		o.log.Error("trigger failure", "error", err)
	}
	return StateHalted
}

// failed reports whether detection hit the cap, e.g. while suspended.
func (o *Orchestrator) failed() bool {
	st, ok := o.store.Get()
	return ok && detection.Failed(st.Detection)
}

func (o *Orchestrator) band(det float64) threat.Band {
	return o.detect.Thresholds.BandFor(det)
}

// suspend publishes s and blocks until it is resolved or the journey is
// cancelled. ok is false on cancellation.
func (o *Orchestrator) suspend(ctx context.Context, j *journey, s *Suspension) (Decision, bool) {
	o.mu.Lock()
	o.seq++
	s.ID = o.seq
	o.pending = s
	o.state = s.Kind
	hook := o.OnSuspend
	o.mu.Unlock()

	o.log.Info("travel suspended", "kind", s.Kind, "id", s.ID)
	if hook != nil {
		hook(s)
	}

	var (
		d  Decision
		ok = true
	)
	select {
	case d = <-s.resume:
	case <-j.wake:
		ok = false
	case <-ctx.Done():
		ok = false
	}

	o.mu.Lock()
	o.pending = nil
	if o.state == s.Kind {
		o.state = StateTraveling
	}
	o.mu.Unlock()
	if j.cancelled.Load() {
		ok = false
	}
	return d, ok
}

// confront suspends on an encounter and fights it once engaged.
func (o *Orchestrator) confront(ctx context.Context, j *journey, enc *encounter.Result, atArrival bool, sv *salvage.State) (State, bool) {
	s := newSuspension(StateAwaitingEncounter)
	s.Encounter = enc
	s.Salvage = sv
	if _, ok := o.suspend(ctx, j, s); !ok {
		return StateCancelled, false
	}
	if o.failed() {
		return o.halt(), false
	}
	return o.fight(ctx, j, enc.AIID, enc, atArrival)
}

// fight runs combat through the collaborator. The remaining queue is saved
// first and restored on victory; at a waypoint arrival the completed
// waypoint is left out of the saved queue and the normal pop is deferred
// so the two never both remove it.
func (o *Orchestrator) fight(ctx context.Context, j *journey, aiID string, enc *encounter.Result, atArrival bool) (State, bool) {
	st, ok := o.store.Get()
	if !ok {
		return StateCancelled, false
	}
	o.transition = transitionCombat
	o.savedQueue = st.Waypoints
	if atArrival && !o.deferRemoval && len(o.savedQueue) > 0 {
		o.savedQueue = o.savedQueue[1:]
		o.deferRemoval = true
	}

	o.log.Info("combat started", "ai", aiID, "ambush", enc.IsAmbush, "guardian", enc.IsGuardian())
	out, err := o.combat.Initiate(ctx, aiID, st)
	if err != nil || j.cancelled.Load() {
		if err != nil {
			o.log.Warn("combat aborted", "ai", aiID, "error", err)
		}
		return StateCancelled, false
	}

	if !out.Victory {
		o.transition = transitionNone
		o.savedQueue = nil
		if err := o.store.Update(func(s *run.State) { s.Failed = true }); err != nil {
			o.log.Error("record defeat", "error", err)
		}
		o.log.Warn("combat lost", "ai", aiID)
		return StateDefeated, false
	}

	saved := o.savedQueue
	err = o.store.Update(func(s *run.State) {
		encounter.ApplyVictory(s, enc)
		s.Waypoints = saved
	})
	o.savedQueue = nil
	o.transition = transitionNone
	if err != nil {
		o.log.Error("apply victory", "error", err)
		return StateCancelled, false
	}
	o.log.Info("combat won", "ai", aiID)
	return StateTraveling, true
}

func (o *Orchestrator) popWaypoint() {
	if o.deferRemoval {
		o.deferRemoval = false
		return
	}
	err := o.store.Update(func(s *run.State) {
		if len(s.Waypoints) > 0 {
			s.Waypoints = s.Waypoints[1:]
		}
	})
	if err != nil {
		o.log.Error("pop waypoint", "error", err)
	}
}

// finish records the outcome. The queue is cleared unless a combat,
// escape or loot-resume transition is still in flight. Halted, defeated
// and extracted outcomes end the run in the store.
func (o *Orchestrator) finish(res Result) Result {
	if res.State == StateExtracted || res.State == StateCompleted {
		o.transition = transitionNone
	}
	if o.transition == transitionNone {
		if err := o.store.Update(func(s *run.State) {
			movement.ClearWaypoints(s)
			settleSalvage(s)
		}); err != nil {
			o.log.Debug("clear waypoints", "error", err)
		}
	}
	if st, ok := o.store.Get(); ok {
		res.Position = st.Position
		res.Detection = st.Detection
		if res.State.EndsRun() {
			res.Run = &st
			if err := o.store.End(); err != nil {
				o.log.Error("end run", "run", st.ID, "error", err)
			}
		}
	}

	o.mu.Lock()
	o.state = res.State
	o.active = false
	o.scanning, o.paused = false, false
	o.pending = nil
	o.journey = nil
	o.last = &res
	o.transition = transitionNone
	o.escaping = false
	o.deferRemoval = false
	o.savedQueue = nil
	o.mu.Unlock()

	o.log.Info("journey finished",
		"state", res.State,
		"moves", res.Moves,
		"encounters", res.Encounters,
		"detection", res.Detection,
	)
	return res
}

func (o *Orchestrator) setScanning(v bool) {
	o.mu.Lock()
	o.scanning = v
	o.mu.Unlock()
}

func (o *Orchestrator) isPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}
