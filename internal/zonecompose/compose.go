// Package zonecompose implements the zone-partial overlay algorithm: given a
// base zone and a set of partials, produce a composed, reference-pruned
// clone, per spec section 4.D.
package zonecompose

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/duskforge/channelcore/internal/servermodel"
)

// proximityThreshold is the "within 10.0 units in both X and Y" spot-less
// removal rule from spec step 4.
const proximityThreshold = 10.0

// ZoneSource resolves base zones and registered partials; internal/serverdata.ServerData
// satisfies this structurally.
type ZoneSource interface {
	Zone(id uint32) (*servermodel.Zone, bool)
	Partial(id uint32) (*servermodel.ZonePartial, bool)
	AutoApplyPartialIDs(dynamicMapID uint32) []uint32
}

// Compose resolves (zoneID, dynamicMapID) into a composed zone instance per
// spec section 4.D's six-step algorithm. applyPartials=false returns the
// base zone pointer directly without cloning. extraPartialIDs are
// non-auto-apply partials explicitly requested for this lookup (e.g. an
// instance-specific variant); an unknown id among them is fatal for the
// lookup.
func Compose(src ZoneSource, zoneID, dynamicMapID uint32, applyPartials bool, extraPartialIDs []uint32) (*servermodel.Zone, error) {
	base, ok := src.Zone(zoneID)
	if !ok {
		return nil, fmt.Errorf("zonecompose: unknown zone %d", zoneID)
	}
	if !applyPartials {
		return base, nil
	}

	ids, err := collectPartialIDs(src, dynamicMapID, extraPartialIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return base, nil
	}

	zone := base.Clone()
	for _, id := range ids {
		partial, ok := src.Partial(id)
		if !ok {
			return nil, fmt.Errorf("zonecompose: unknown partial %d", id)
		}
		applyPartial(zone, partial)
	}

	pruneDanglingReferences(zone)
	return zone, nil
}

// collectPartialIDs gathers auto-apply partials registered for
// dynamicMapID plus any extra ids that are non-auto and whose own
// dynamic-map restriction (if any) includes the target, then sorts the
// union ascending by id (step 2/tie-break rule).
func collectPartialIDs(src ZoneSource, dynamicMapID uint32, extraPartialIDs []uint32) ([]uint32, error) {
	seen := make(map[uint32]bool)
	var ids []uint32

	for _, id := range src.AutoApplyPartialIDs(dynamicMapID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, id := range extraPartialIDs {
		p, ok := src.Partial(id)
		if !ok {
			return nil, fmt.Errorf("zonecompose: unknown extra partial %d", id)
		}
		if p.AutoApply {
			continue
		}
		if !p.AppliesToDynamicMap(dynamicMapID) {
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func applyPartial(zone *servermodel.Zone, p *servermodel.ZonePartial) {
	zone.DropSetIDs = unionUint32(zone.DropSetIDs, p.DropSetIDs)

	zone.NPCs = applyEntityOverlay(zone.NPCs, p.NPCs)
	zone.Objects = applyObjectOverlay(zone.Objects, p.Objects)

	for id, s := range p.Spawns {
		zone.Spawns[id] = s
	}
	for id, g := range p.SpawnGroups {
		zone.SpawnGroups[id] = g
	}
	for id, l := range p.SpawnLocationGroups {
		zone.SpawnLocationGroups[id] = l
	}
	for id, s := range p.Spots {
		zone.Spots[id] = s
	}
	zone.Triggers = append(zone.Triggers, p.Triggers...)
}

func applyEntityOverlay(current []servermodel.NPC, overlay []servermodel.NPC) []servermodel.NPC {
	for _, ov := range overlay {
		current = removeMatchingEntities(current, ov.SpotID, ov.X, ov.Y)
		if ov.ID != 0 {
			current = append(current, ov)
		}
	}
	return current
}

func removeMatchingEntities(current []servermodel.NPC, spotID uint32, x, y float32) []servermodel.NPC {
	out := current[:0:0]
	for _, e := range current {
		remove := false
		if spotID != 0 {
			remove = e.SpotID == spotID
		} else {
			remove = e.SpotID == 0 && withinProximity(e.X, e.Y, x, y)
		}
		if !remove {
			out = append(out, e)
		}
	}
	return out
}

func applyObjectOverlay(current []servermodel.Object, overlay []servermodel.Object) []servermodel.Object {
	for _, ov := range overlay {
		out := current[:0:0]
		for _, e := range current {
			remove := false
			if ov.SpotID != 0 {
				remove = e.SpotID == ov.SpotID
			} else {
				remove = e.SpotID == 0 && withinProximity(e.X, e.Y, ov.X, ov.Y)
			}
			if !remove {
				out = append(out, e)
			}
		}
		current = out
		if ov.ID != 0 {
			current = append(current, ov)
		}
	}
	return current
}

func withinProximity(x1, y1, x2, y2 float32) bool {
	dx := x1 - x2
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y2
	if dy < 0 {
		dy = -dy
	}
	return dx < proximityThreshold && dy < proximityThreshold
}

func unionUint32(a, b []uint32) []uint32 {
	seen := make(map[uint32]bool, len(a))
	out := append([]uint32(nil), a...)
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// pruneDanglingReferences implements spec step 5: remove spawn-groups whose
// every referenced spawn is gone (else strip just the missing ones), then
// the same pass for spawn-location-groups against the updated group map.
func pruneDanglingReferences(zone *servermodel.Zone) {
	for id, g := range zone.SpawnGroups {
		var missing []uint32
		for _, spawnID := range g.SpawnIDs {
			if _, ok := zone.Spawns[spawnID]; !ok {
				missing = append(missing, spawnID)
			}
		}
		if len(missing) == 0 {
			continue
		}
		if len(missing) == len(g.SpawnIDs) {
			delete(zone.SpawnGroups, id)
			slog.Debug("removed spawn group with no surviving spawns", "zone", zone.ID, "group", id)
			continue
		}
		g.SpawnIDs = subtractUint32(g.SpawnIDs, missing)
		zone.SpawnGroups[id] = g
	}

	for id, l := range zone.SpawnLocationGroups {
		var missing []uint32
		for _, groupID := range l.SpawnGroupIDs {
			if _, ok := zone.SpawnGroups[groupID]; !ok {
				missing = append(missing, groupID)
			}
		}
		if len(missing) == 0 {
			continue
		}
		if len(missing) == len(l.SpawnGroupIDs) {
			delete(zone.SpawnLocationGroups, id)
			slog.Debug("removed spawn location group with no surviving spawn groups", "zone", zone.ID, "location_group", id)
			continue
		}
		l.SpawnGroupIDs = subtractUint32(l.SpawnGroupIDs, missing)
		zone.SpawnLocationGroups[id] = l
	}
}

func subtractUint32(ids, remove []uint32) []uint32 {
	skip := make(map[uint32]bool, len(remove))
	for _, id := range remove {
		skip[id] = true
	}
	out := ids[:0:0]
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
