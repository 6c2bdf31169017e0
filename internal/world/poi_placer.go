// POI placement: scores candidate hexes per zone and seeds points of interest
// with minimum spacing, a gate exclusion buffer and occasional twins.
package world

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hexrun/internal/entropy"
)

// placementOrder places core first so guardian objectives get the pick of
// the center.
var placementOrder = [3]Zone{ZoneCore, ZoneMid, ZonePerimeter}

// placePOIs distributes POIs per zone using the map type's ratios.
func placePOIs(m *Map, types []POIType, mt MapType, attemptSeed int64) {
	rng := entropy.Stream(attemptSeed, "pois")
	noise := opensimplex.NewNormalized(entropy.Key(attemptSeed, "poi-desirability"))

	type scored struct {
		coord HexCoord
		score float64
	}

	for _, zone := range placementOrder {
		want := int(math.Round(float64(mt.POICount) * mt.ZoneRatios.For(zone)))
		if want <= 0 {
			continue
		}

		var candidates []scored
		for _, hex := range m.Hexes {
			if hex.Zone != zone || hex.Kind != KindEmpty || hex.Blocked {
				continue
			}
			if nearGate(m, hex.Coord, mt.GateBuffer) {
				continue
			}
			candidates = append(candidates, scored{hex.Coord, poiScore(m, noise, hex.Coord) + rng.Float64()*0.3})
		}

		// Sort by score descending; coordinate order breaks ties.
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			if candidates[i].coord.Q != candidates[j].coord.Q {
				return candidates[i].coord.Q < candidates[j].coord.Q
			}
			return candidates[i].coord.R < candidates[j].coord.R
		})

		placed := 0
		for _, c := range candidates {
			if placed >= want {
				break
			}
			twin := false
			if tooClose(c.coord, m.POIs, mt.MinPOISpacing) {
				// Rare override: let two POIs sit closer than the spacing rule.
				if rng.Float64() >= mt.TwinChance {
					continue
				}
				twin = true
			}
			typ, ok := pickPOIType(rng, types, zone)
			if !ok {
				break
			}
			m.POIs = append(m.POIs, newPOI(rng, typ, c.coord, twin, len(m.POIs)))
			m.Get(c.coord).Kind = KindPOI
			placed++
		}
	}
}

// poiScore evaluates how desirable a hex is for a POI: noise-driven
// "richness" plus a bonus for sheltered hexes next to debris.
func poiScore(m *Map, noise opensimplex.Noise, coord HexCoord) float64 {
	x, y := coord.ToCartesian()
	score := octaveNoise(noise, x, y, 2, 0.25, 0.5)

	for _, nc := range coord.Neighbors() {
		if nh := m.Get(nc); nh != nil && nh.Blocked {
			score += 0.1
			break
		}
	}
	return score
}

func newPOI(rng *rand.Rand, typ POIType, coord HexCoord, twin bool, n int) POI {
	slots := typ.MinSlots
	if typ.MaxSlots > typ.MinSlots {
		slots += rng.Intn(typ.MaxSlots - typ.MinSlots + 1)
	}
	if typ.DisallowSalvage {
		slots = 0
	}
	return POI{
		Coord:           coord,
		TypeID:          typ.ID,
		Name:            fmt.Sprintf("%s %d", typ.Name, n+1),
		RewardType:      typ.RewardType,
		BaseSecurity:    typ.BaseSecurity,
		DisallowSalvage: typ.DisallowSalvage,
		SlotCount:       slots,
		Twin:            twin,
	}
}

// pickPOIType draws a type weighted by its affinity for the zone.
func pickPOIType(rng *rand.Rand, types []POIType, zone Zone) (POIType, bool) {
	weights := make([]float64, len(types))
	for i, t := range types {
		weights[i] = t.ZoneWeights.For(zone)
	}
	idx := entropy.Weighted(rng, weights)
	if idx < 0 {
		return POIType{}, false
	}
	return types[idx], true
}

func nearGate(m *Map, coord HexCoord, buffer int) bool {
	for _, g := range m.Gates {
		if Distance(coord, g.Coord) <= buffer {
			return true
		}
	}
	return false
}

func tooClose(coord HexCoord, existing []POI, minDist int) bool {
	for _, p := range existing {
		if Distance(coord, p.Coord) < minDist {
			return true
		}
	}
	return false
}

// linkPOIs points each POI hex at a copy of its final POI record.
func linkPOIs(m *Map) {
	for i := range m.POIs {
		h := m.Get(m.POIs[i].Coord)
		h.Kind = KindPOI
		poi := m.POIs[i]
		h.POI = &poi
	}
}
