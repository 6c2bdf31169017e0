package run

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/hexrun/internal/entropy"
	"github.com/talgya/hexrun/internal/world"
)

// Config is what a new run is started from.
type Config struct {
	Seed      int64  // 0 = random
	Tier      int
	MapTypeID string
	EntryGate int
}

// NewState builds the initial state for a run on m, standing on the entry
// gate with the map's base detection.
func NewState(cfg Config, m *world.Map) (State, error) {
	gate, ok := m.Gate(cfg.EntryGate)
	if !ok {
		return State{}, fmt.Errorf("entry gate %d not on map", cfg.EntryGate)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.NewSeed()
	}
	return State{
		ID:        uuid.NewString(),
		Seed:      seed,
		Tier:      m.Tier,
		MapTypeID: m.TypeID,
		Detection: Clamp(m.BaseDetection),
		Position:  gate.Coord,
		EntryGate: gate.ID,
	}, nil
}
