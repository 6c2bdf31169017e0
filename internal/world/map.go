package world

import (
	"fmt"
	"sync"
)

// HexKind classifies what occupies a hex.
type HexKind uint8

const (
	KindEmpty HexKind = iota
	KindPOI
	KindGate
)

func (k HexKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindPOI:
		return "poi"
	case KindGate:
		return "gate"
	default:
		return "unknown"
	}
}

// Zone is the perimeter/mid/core banding of the map.
type Zone uint8

const (
	ZonePerimeter Zone = iota
	ZoneMid
	ZoneCore
)

func (z Zone) String() string {
	switch z {
	case ZonePerimeter:
		return "perimeter"
	case ZoneMid:
		return "mid"
	case ZoneCore:
		return "core"
	default:
		return "unknown"
	}
}

// ZoneTable holds one value per zone.
type ZoneTable struct {
	Perimeter float64 `json:"perimeter" mapstructure:"perimeter"`
	Mid       float64 `json:"mid" mapstructure:"mid"`
	Core      float64 `json:"core" mapstructure:"core"`
}

// For returns the value for the given zone.
func (t ZoneTable) For(z Zone) float64 {
	switch z {
	case ZoneMid:
		return t.Mid
	case ZoneCore:
		return t.Core
	default:
		return t.Perimeter
	}
}

// POI is a point of interest. Guardian POIs are objectives held by a fixed
// AI and never offer salvage.
type POI struct {
	Coord           HexCoord `json:"coord"`
	TypeID          string   `json:"type_id"`
	Name            string   `json:"name"`
	RewardType      string   `json:"reward_type"`
	BaseSecurity    float64  `json:"base_security"`
	Guardian        bool     `json:"guardian,omitempty"`
	GuardianAI      string   `json:"guardian_ai,omitempty"`
	DisallowSalvage bool     `json:"disallow_salvage,omitempty"`
	SlotCount       int      `json:"slot_count"`
	Twin            bool     `json:"twin,omitempty"`
}

// Gate is an entry/extraction point on the perimeter.
type Gate struct {
	ID    int      `json:"id"`
	Coord HexCoord `json:"coord"`
}

// Hex represents a single tile on the expedition map.
type Hex struct {
	Coord   HexCoord `json:"coord"`
	Kind    HexKind  `json:"kind"`
	Zone    Zone     `json:"zone"`
	POI     *POI     `json:"poi,omitempty"`
	GateID  *int     `json:"gate_id,omitempty"`
	Blocked bool     `json:"blocked,omitempty"` // Debris field, cannot be entered
}

// Map holds a generated expedition map. It is read-only once Generate
// returns; visited and alert bookkeeping lives in the run state.
type Map struct {
	Tier            int       `json:"tier"`
	Seed            int64     `json:"seed"`
	TypeID          string    `json:"type_id"`
	Radius          int       `json:"radius"`
	Hexes           []Hex     `json:"hexes"` // Spiral order from the center
	Gates           []Gate    `json:"gates"`
	POIs            []POI     `json:"pois"`
	BaseDetection   float64   `json:"base_detection"`
	EncounterByZone ZoneTable `json:"encounter_by_zone"`
	Attempts        int       `json:"attempts"`

	indexOnce sync.Once
	index     map[HexCoord]int
}

// NewMap creates an empty map covering every hex within radius, all
// perimeter-zoned and empty. A hex grid of radius R contains hexes where
// max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	coords := Spiral(HexCoord{}, radius)
	m := &Map{
		Radius: radius,
		Hexes:  make([]Hex, len(coords)),
	}
	for i, c := range coords {
		m.Hexes[i] = Hex{Coord: c}
	}
	return m
}

func (m *Map) buildIndex() {
	m.index = make(map[HexCoord]int, len(m.Hexes))
	for i := range m.Hexes {
		m.index[m.Hexes[i].Coord] = i
	}
}

// Get returns the hex at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Hex {
	m.indexOnce.Do(m.buildIndex)
	i, ok := m.index[coord]
	if !ok {
		return nil
	}
	return &m.Hexes[i]
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return Distance(HexCoord{}, coord) <= m.Radius
}

// Passable reports whether the coordinate exists and can be entered.
func (m *Map) Passable(coord HexCoord) bool {
	h := m.Get(coord)
	return h != nil && !h.Blocked
}

// POIAt returns the POI at coord, or nil.
func (m *Map) POIAt(coord HexCoord) *POI {
	h := m.Get(coord)
	if h == nil || h.Kind != KindPOI {
		return nil
	}
	return h.POI
}

// GateAt returns the gate at coord, if any.
func (m *Map) GateAt(coord HexCoord) (Gate, bool) {
	for _, g := range m.Gates {
		if g.Coord == coord {
			return g, true
		}
	}
	return Gate{}, false
}

// Gate returns the gate with the given ID.
func (m *Map) Gate(id int) (Gate, bool) {
	for _, g := range m.Gates {
		if g.ID == id {
			return g, true
		}
	}
	return Gate{}, false
}

// ZoneOf returns the zone of coord. Out-of-bounds coordinates report perimeter.
func (m *Map) ZoneOf(coord HexCoord) Zone {
	if h := m.Get(coord); h != nil {
		return h.Zone
	}
	return ZonePerimeter
}

// HexCount returns the total number of hexes in the map.
func (m *Map) HexCount() int {
	return len(m.Hexes)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(type=%s, tier=%d, radius=%d, hexes=%d, gates=%d, pois=%d)",
		m.TypeID, m.Tier, m.Radius, m.HexCount(), len(m.Gates), len(m.POIs))
}
