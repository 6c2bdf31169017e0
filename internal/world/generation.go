// Map generation: seeded, retry-until-valid construction of an expedition
// map (zones, debris, gates, POIs, guardians).
package world

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hexrun/internal/entropy"
)

var (
	// ErrGenerationExhausted is returned when no attempt produced a valid map.
	ErrGenerationExhausted = errors.New("map generation exhausted all attempts")
	// ErrUnknownMapType is returned for a type ID missing from the config.
	ErrUnknownMapType = errors.New("unknown map type")
	// ErrUnknownTier is returned for a tier missing from the config.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrInvalidConfig is returned when generation parameters cannot work.
	ErrInvalidConfig = errors.New("invalid generation config")
)

// MapType describes the shape and population of one kind of map.
type MapType struct {
	ID              string    `mapstructure:"id"`
	Radius          int       `mapstructure:"radius"`
	GateCount       int       `mapstructure:"gate_count"`
	POICount        int       `mapstructure:"poi_count"`
	ZoneRatios      ZoneTable `mapstructure:"zone_ratios"`       // Share of POIs per zone
	MinPOISpacing   int       `mapstructure:"min_poi_spacing"`   // Minimum hex distance between POIs
	GateBuffer      int       `mapstructure:"gate_buffer"`       // No POI within this distance of a gate
	TwinChance      float64   `mapstructure:"twin_chance"`       // 0.0–1.0 chance to ignore spacing
	GuardianCount   int       `mapstructure:"guardian_count"`    // Core POIs turned into guarded objectives
	DebrisThreshold float64   `mapstructure:"debris_threshold"`  // Noise level above which a hex is blocked (0 = none)
	CoreFraction    float64   `mapstructure:"core_fraction"`     // Ring distance / radius at or below which a hex is core
	MidFraction     float64   `mapstructure:"mid_fraction"`      // Ring distance / radius at or below which a hex is mid
}

// TierConfig holds the per-tier risk tables.
type TierConfig struct {
	Tier            int       `mapstructure:"tier"`
	BaseDetection   float64   `mapstructure:"base_detection"`
	EncounterByZone ZoneTable `mapstructure:"encounter_by_zone"` // Percent chance per hex
	Guardians       []string  `mapstructure:"guardians"`         // Guardian AI identities, assigned in order
}

// POIType is an entry in the POI table.
type POIType struct {
	ID              string    `mapstructure:"id"`
	Name            string    `mapstructure:"name"`
	RewardType      string    `mapstructure:"reward_type"`
	ZoneWeights     ZoneTable `mapstructure:"zone_weights"`
	BaseSecurity    float64   `mapstructure:"base_security"`
	MinSlots        int       `mapstructure:"min_slots"`
	MaxSlots        int       `mapstructure:"max_slots"`
	DisallowSalvage bool      `mapstructure:"disallow_salvage"`
}

// ValidationConfig bounds what the validator accepts.
type ValidationConfig struct {
	PerHexCost  float64 `mapstructure:"per_hex_cost"`
	CostCeiling float64 `mapstructure:"cost_ceiling"`
}

// GenConfig holds map generation parameters.
type GenConfig struct {
	MaxAttempts int              `mapstructure:"max_attempts"`
	MapTypes    []MapType        `mapstructure:"map_types"`
	Tiers       []TierConfig     `mapstructure:"tiers"`
	POITypes    []POIType        `mapstructure:"poi_types"`
	Validation  ValidationConfig `mapstructure:"validation"`
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		MaxAttempts: 10,
		MapTypes: []MapType{
			{
				ID: "standard", Radius: 6, GateCount: 3, POICount: 10,
				ZoneRatios:    ZoneTable{Perimeter: 0.4, Mid: 0.4, Core: 0.2},
				MinPOISpacing: 2, GateBuffer: 2, TwinChance: 0.05, GuardianCount: 1,
				DebrisThreshold: 0.72, CoreFraction: 0.34, MidFraction: 0.67,
			},
			{
				ID: "expanse", Radius: 8, GateCount: 4, POICount: 16,
				ZoneRatios:    ZoneTable{Perimeter: 0.35, Mid: 0.4, Core: 0.25},
				MinPOISpacing: 2, GateBuffer: 2, TwinChance: 0.05, GuardianCount: 2,
				DebrisThreshold: 0.7, CoreFraction: 0.3, MidFraction: 0.65,
			},
		},
		Tiers: []TierConfig{
			{Tier: 1, BaseDetection: 0, EncounterByZone: ZoneTable{Perimeter: 5, Mid: 10, Core: 15}, Guardians: []string{"sentinel-warden", "sentinel-lancer"}},
			{Tier: 2, BaseDetection: 10, EncounterByZone: ZoneTable{Perimeter: 8, Mid: 14, Core: 20}, Guardians: []string{"bastion-prime", "bastion-reaver"}},
			{Tier: 3, BaseDetection: 20, EncounterByZone: ZoneTable{Perimeter: 12, Mid: 18, Core: 25}, Guardians: []string{"dreadnought-omega"}},
		},
		POITypes: []POIType{
			{ID: "wreck", Name: "Derelict Wreck", RewardType: "salvage", ZoneWeights: ZoneTable{Perimeter: 3, Mid: 2, Core: 1}, BaseSecurity: 10, MinSlots: 3, MaxSlots: 5},
			{ID: "depot", Name: "Supply Depot", RewardType: "supplies", ZoneWeights: ZoneTable{Perimeter: 2, Mid: 3, Core: 2}, BaseSecurity: 20, MinSlots: 2, MaxSlots: 4},
			{ID: "vault", Name: "Sealed Vault", RewardType: "tech", ZoneWeights: ZoneTable{Perimeter: 0, Mid: 1, Core: 3}, BaseSecurity: 35, MinSlots: 4, MaxSlots: 6},
			{ID: "cache", Name: "Hidden Cache", RewardType: "credits", ZoneWeights: ZoneTable{Perimeter: 1, Mid: 1, Core: 1}, BaseSecurity: 5, DisallowSalvage: true},
		},
		Validation: ValidationConfig{PerHexCost: 2.5, CostCeiling: 60},
	}
}

// MapType returns the map type with the given ID.
func (c GenConfig) MapType(id string) (MapType, bool) {
	for _, mt := range c.MapTypes {
		if mt.ID == id {
			return mt, true
		}
	}
	return MapType{}, false
}

// Tier returns the config for the given tier.
func (c GenConfig) Tier(tier int) (TierConfig, bool) {
	for _, tc := range c.Tiers {
		if tc.Tier == tier {
			return tc, true
		}
	}
	return TierConfig{}, false
}

func (mt MapType) check() error {
	switch {
	case mt.Radius < 2:
		return fmt.Errorf("%w: radius %d too small", ErrInvalidConfig, mt.Radius)
	case mt.GateCount < 1 || mt.GateCount > 6*mt.Radius:
		return fmt.Errorf("%w: gate count %d", ErrInvalidConfig, mt.GateCount)
	case mt.POICount < 1:
		return fmt.Errorf("%w: poi count %d", ErrInvalidConfig, mt.POICount)
	case mt.MidFraction >= 1 || mt.CoreFraction > mt.MidFraction:
		return fmt.Errorf("%w: zone fractions core=%.2f mid=%.2f", ErrInvalidConfig, mt.CoreFraction, mt.MidFraction)
	}
	return nil
}

// Generate builds a map for (seed, tier, typeID). It is deterministic in all
// three inputs: each attempt reseeds with seed+attempt and is validated
// before being accepted. Exhausting MaxAttempts returns
// ErrGenerationExhausted rather than a degraded map.
func Generate(cfg GenConfig, seed int64, tier int, typeID string) (*Map, error) {
	mt, ok := cfg.MapType(typeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMapType, typeID)
	}
	tc, ok := cfg.Tier(tier)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	if err := mt.check(); err != nil {
		return nil, err
	}
	if mt.GuardianCount > 0 && len(tc.Guardians) == 0 {
		return nil, fmt.Errorf("%w: tier %d has no guardian table", ErrInvalidConfig, tier)
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		m, err := generateAttempt(cfg, mt, tc, seed+int64(attempt))
		if err == nil {
			err = Validate(m, cfg.Validation)
		}
		if err != nil {
			lastErr = err
			slog.Warn("map attempt rejected",
				"attempt", humanize.Ordinal(attempt+1),
				"seed", seed+int64(attempt),
				"error", err,
			)
			continue
		}
		m.Seed = seed
		m.Attempts = attempt + 1
		slog.Info("map generated",
			"type", typeID,
			"tier", tier,
			"seed", seed,
			"attempts", m.Attempts,
			"hexes", humanize.Comma(int64(m.HexCount())),
			"gates", len(m.Gates),
			"pois", len(m.POIs),
		)
		return m, nil
	}
	return nil, fmt.Errorf("%w (%d attempts, type=%s tier=%d seed=%d): %v",
		ErrGenerationExhausted, attempts, typeID, tier, seed, lastErr)
}

// generateAttempt builds one candidate map from a single attempt seed.
func generateAttempt(cfg GenConfig, mt MapType, tc TierConfig, attemptSeed int64) (*Map, error) {
	m := NewMap(mt.Radius)
	m.Tier = tc.Tier
	m.TypeID = mt.ID
	m.BaseDetection = tc.BaseDetection
	m.EncounterByZone = tc.EncounterByZone

	assignZones(m, mt)
	placeDebris(m, mt, attemptSeed)

	if err := placeGates(m, mt, attemptSeed); err != nil {
		return nil, err
	}
	placePOIs(m, cfg.POITypes, mt, attemptSeed)
	assignGuardians(m, mt, tc)
	linkPOIs(m)
	return m, nil
}

// assignZones bands hexes by ring distance relative to the radius.
func assignZones(m *Map, mt MapType) {
	center := HexCoord{}
	for i := range m.Hexes {
		frac := float64(Distance(center, m.Hexes[i].Coord)) / float64(mt.Radius)
		switch {
		case frac <= mt.CoreFraction:
			m.Hexes[i].Zone = ZoneCore
		case frac <= mt.MidFraction:
			m.Hexes[i].Zone = ZoneMid
		default:
			m.Hexes[i].Zone = ZonePerimeter
		}
	}
}

// placeDebris blocks hexes where layered noise exceeds the threshold. The
// center hex always stays open.
func placeDebris(m *Map, mt MapType, attemptSeed int64) {
	if mt.DebrisThreshold <= 0 {
		return
	}
	noise := opensimplex.NewNormalized(entropy.Key(attemptSeed, "debris"))
	for i := range m.Hexes {
		c := m.Hexes[i].Coord
		if c == (HexCoord{}) {
			continue
		}
		x, y := c.ToCartesian()
		if octaveNoise(noise, x, y, 3, 0.18, 0.5) > mt.DebrisThreshold {
			m.Hexes[i].Blocked = true
		}
	}
}

// placeGates spaces gates equidistantly around the perimeter starting at a
// seeded random angle, snapping each to the nearest free outer-ring hex.
func placeGates(m *Map, mt MapType, attemptSeed int64) error {
	rng := entropy.Stream(attemptSeed, "gates")
	start := rng.Float64() * 2 * math.Pi
	ring := Ring(HexCoord{}, mt.Radius)
	outer := float64(mt.Radius)

	for i := 0; i < mt.GateCount; i++ {
		angle := start + float64(i)*2*math.Pi/float64(mt.GateCount)
		tx, ty := outer*math.Cos(angle), outer*math.Sin(angle)

		bestIdx := -1
		bestDist := math.Inf(1)
		for idx, c := range ring {
			h := m.Get(c)
			if h == nil || h.Blocked || h.Kind != KindEmpty {
				continue
			}
			x, y := c.ToCartesian()
			d := math.Hypot(x-tx, y-ty)
			if d < bestDist {
				bestDist = d
				bestIdx = idx
			}
		}
		if bestIdx < 0 {
			return fmt.Errorf("no free perimeter hex for gate %d", i)
		}

		h := m.Get(ring[bestIdx])
		id := i
		h.Kind = KindGate
		h.GateID = &id
		m.Gates = append(m.Gates, Gate{ID: id, Coord: h.Coord})
	}
	return nil
}

// assignGuardians turns the first GuardianCount core POIs into guarded
// objectives. Identity comes from the tier's table in order, so the same map
// always carries the same guardians.
func assignGuardians(m *Map, mt MapType, tc TierConfig) {
	assigned := 0
	for i := range m.POIs {
		if assigned >= mt.GuardianCount {
			break
		}
		p := &m.POIs[i]
		if m.ZoneOf(p.Coord) != ZoneCore {
			continue
		}
		p.Guardian = true
		p.GuardianAI = tc.Guardians[assigned%len(tc.Guardians)]
		p.DisallowSalvage = true
		p.SlotCount = 0
		assigned++
	}
	if assigned < mt.GuardianCount {
		slog.Debug("fewer core POIs than guardian slots", "wanted", mt.GuardianCount, "assigned", assigned)
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
