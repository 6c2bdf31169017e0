// Package alert tracks High-Alert POIs: locations whose salvage was
// interrupted by combat and now carry a persistent encounter bonus.
package alert

import (
	"github.com/talgya/hexrun/internal/entropy"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/world"
)

// DefaultBonus is the stock High-Alert bonus range, in percent.
var DefaultBonus = threat.Range{Min: 5, Max: 15}

// Tracker applies High-Alert bonuses drawn from a fixed range.
type Tracker struct {
	Bonus threat.Range
}

// NewTracker creates a tracker with the given bonus range.
func NewTracker(bonus threat.Range) *Tracker {
	return &Tracker{Bonus: bonus}
}

// AddAlert flags the POI at coord and returns its bonus. A POI already
// flagged keeps its original bonus. The bonus is keyed by the POI's
// coordinates so replays draw the same value.
func (t *Tracker) AddAlert(s *run.State, coord world.HexCoord) float64 {
	if b, ok := lookup(s, coord); ok {
		return b
	}
	bonus := run.Clamp(t.Bonus.Draw(entropy.Stream(s.Seed, "high-alert", coord.Q, coord.R)))
	s.HighAlertPOIs = append(s.HighAlertPOIs, run.Alert{Q: coord.Q, R: coord.R, Bonus: bonus})
	return bonus
}

// AlertBonus returns the bonus for coord, 0 when not alerted.
func AlertBonus(s *run.State, coord world.HexCoord) float64 {
	b, _ := lookup(s, coord)
	return b
}

// IsAlerted reports whether coord is on High Alert.
func IsAlerted(s *run.State, coord world.HexCoord) bool {
	_, ok := lookup(s, coord)
	return ok
}

func lookup(s *run.State, coord world.HexCoord) (float64, bool) {
	for _, a := range s.HighAlertPOIs {
		if a.Coord() == coord {
			return a.Bonus, true
		}
	}
	return 0, false
}
