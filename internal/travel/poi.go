package travel

import (
	"context"
	"errors"

	"github.com/talgya/hexrun/internal/alert"
	"github.com/talgya/hexrun/internal/encounter"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/world"
)

// arrive handles reaching a waypoint target: extraction when escaping,
// otherwise the POI there if it is still unresolved.
func (o *Orchestrator) arrive(ctx context.Context, j *journey, target world.HexCoord, res *Result) State {
	st, ok := o.store.Get()
	if !ok {
		return StateCancelled
	}
	if o.escaping {
		if g, ok := o.m.GateAt(target); ok && g.ID != st.EntryGate {
			o.log.Info("extracted", "gate", g.ID, "detection", st.Detection)
			return StateExtracted
		}
		return StateTraveling
	}

	poi := o.m.POIAt(target)
	if poi == nil || st.IsLooted(target) {
		return StateTraveling
	}
	zone := o.m.ZoneOf(target)
	band := o.band(st.Detection)
	if st.Salvage != nil && st.Salvage.POI.Coord == target {
		return o.salvageLoop(ctx, j, *poi, zone, band)
	}

	enc := o.encounters.EvaluatePOI(&st, *poi, zone, band)
	switch {
	case enc == nil:
		return o.salvageLoop(ctx, j, *poi, zone, band)
	case enc.Outcome == encounter.OutcomePendingConfirmation:
		return o.guardian(ctx, j, enc)
	case enc.Outcome == encounter.OutcomeLoot:
		o.collect(target, *enc.Reward)
		return StateTraveling
	}

	// Ambush: fight first, then the POI is open.
	res.Encounters++
	next, won := o.confront(ctx, j, enc, true, nil)
	if !won {
		return next
	}
	if poi.DisallowSalvage {
		st, _ := o.store.Get()
		o.collect(target, o.encounters.POIReward(&st, *poi, zone))
		return StateTraveling
	}
	return o.salvageLoop(ctx, j, *poi, zone, band)
}

// guardian waits for the player to engage, decline or substitute. A
// declined guardian stays unresolved and can be revisited.
func (o *Orchestrator) guardian(ctx context.Context, j *journey, enc *encounter.Result) State {
	s := newSuspension(StateAwaitingGuardianDecision)
	s.Encounter = enc
	d, ok := o.suspend(ctx, j, s)
	if !ok {
		return StateCancelled
	}
	if o.failed() {
		return o.halt()
	}

	aiID := enc.AIID
	switch d.Action {
	case ActionDecline:
		o.log.Info("guardian declined", "poi", enc.POI.Name)
		return StateTraveling
	case ActionSubstitute:
		aiID = d.AIID
	}

	next, won := o.fight(ctx, j, aiID, enc, true)
	if !won {
		return next
	}
	if err := o.store.Update(func(s *run.State) { s.MarkLooted(enc.POI.Coord) }); err != nil {
		o.log.Error("mark guardian looted", "error", err)
	}
	return StateTraveling
}

// salvageLoop re-publishes the salvage suspension after every attempt
// until the player leaves, the POI runs dry or combat is lost. A salvage
// already in progress at poi is resumed instead of restarted.
func (o *Orchestrator) salvageLoop(ctx context.Context, j *journey, poi world.POI, zone world.Zone, band threat.Band) State {
	st, _ := o.store.Get()
	if st.Salvage == nil || st.Salvage.POI.Coord != poi.Coord {
		sv := o.salvager.Initialize(st.Seed, poi, zone, st.Tier, band)
		if sv == nil {
			o.leavePOI(poi.Coord)
			return StateTraveling
		}
		if err := o.store.Update(func(s *run.State) {
			settleSalvage(s)
			s.Salvage = sv
		}); err != nil {
			return StateCancelled
		}
	}

	var last *salvage.AttemptResult
	for {
		cur, ok := o.store.Get()
		if !ok || cur.Salvage == nil {
			return StateCancelled
		}
		if cur.Salvage.EncounterTriggered {
			if next := o.salvageCombat(ctx, j, poi, band, cur); next != StateTraveling {
				return next
			}
			continue
		}
		if salvage.IsFullyLooted(cur.Salvage) {
			o.leavePOI(poi.Coord)
			return StateTraveling
		}

		s := newSuspension(StateAwaitingSalvageResolution)
		s.Salvage = cur.Salvage
		s.LastAttempt = last
		d, ok := o.suspend(ctx, j, s)
		if !ok {
			return StateCancelled
		}
		if o.failed() {
			return o.halt()
		}
		if d.Action == ActionLeave {
			o.leavePOI(poi.Coord)
			return StateTraveling
		}

		var (
			attempt salvage.AttemptResult
			err     error
		)
		if uerr := o.store.Update(func(s *run.State) {
			attempt, err = o.salvager.AttemptSlot(s.Salvage, alert.AlertBonus(s, poi.Coord))
		}); uerr != nil {
			return StateCancelled
		}
		if err != nil {
			if !errors.Is(err, salvage.ErrFullyLooted) {
				o.log.Warn("salvage attempt rejected", "poi", poi.Name, "error", err)
			}
			o.leavePOI(poi.Coord)
			return StateTraveling
		}
		last = &attempt
	}
}

// salvageCombat fights the encounter a salvage roll triggered. Victory
// puts the POI on High Alert and re-enables salvage past the triggering
// slot.
func (o *Orchestrator) salvageCombat(ctx context.Context, j *journey, poi world.POI, band threat.Band, cur run.State) State {
	p := poi
	enc := &encounter.Result{
		POI:     &p,
		Outcome: encounter.OutcomeCombat,
		AIID:    o.encounters.SelectAI(cur.Seed, band, poi.Coord.Q, poi.Coord.R, cur.Salvage.CurrentSlotIndex),
	}
	next, won := o.confront(ctx, j, enc, true, cur.Salvage)
	if !won {
		return next
	}

	o.transition = transitionLootResume
	if err := o.store.Update(func(s *run.State) {
		bonus := o.alerts.AddAlert(s, poi.Coord)
		o.salvager.ResetAfterCombat(s.Salvage, bonus)
	}); err != nil {
		return StateCancelled
	}
	o.transition = transitionNone
	return StateTraveling
}

// collect banks a one-shot reward and resolves the POI.
func (o *Orchestrator) collect(coord world.HexCoord, item salvage.Item) {
	err := o.store.Update(func(s *run.State) {
		s.Loot = append(s.Loot, item)
		s.MarkLooted(coord)
	})
	if err != nil {
		o.log.Error("collect reward", "error", err)
	}
}

// leavePOI banks revealed salvage and resolves the POI.
func (o *Orchestrator) leavePOI(coord world.HexCoord) {
	err := o.store.Update(func(s *run.State) {
		settleSalvage(s)
		s.MarkLooted(coord)
	})
	if err != nil {
		o.log.Error("leave poi", "error", err)
	}
}

// settleSalvage moves revealed slot contents into the run loot and drops
// the salvage state.
func settleSalvage(s *run.State) {
	if s.Salvage == nil {
		return
	}
	s.Loot = append(s.Loot, salvage.RevealedLoot(s.Salvage)...)
	s.MarkLooted(s.Salvage.POI.Coord)
	s.Salvage = nil
}
