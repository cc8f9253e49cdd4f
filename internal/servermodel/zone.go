// Package servermodel defines the server-data types loaded by
// internal/serverdata: zones, zone partials, and the spawn hierarchy they
// overlay, per spec section 3 and 4.C.
package servermodel

// NPC is a placed non-player-character instance within a zone.
type NPC struct {
	ID     uint32 // object instance id within the zone, 0 in an overlay means "delete"
	SpotID uint32
	X, Y   float32
	Type   uint32 // resolves in the definition catalog as a demon
}

// Object is a placed non-NPC object instance within a zone (doors, bonfires,
// relics, etc). Shares the same spot/proximity removal rule as NPCs.
type Object struct {
	ID     uint32
	SpotID uint32
	X, Y   float32
	Type   uint32
}

// Spawn describes one spawnable entity entry.
type Spawn struct {
	ID        uint32
	EnemyType uint32 // must resolve in the definition catalog
}

// SpawnGroup groups spawn ids that appear together.
type SpawnGroup struct {
	ID       uint32
	SpawnIDs []uint32
}

// SpawnLocationGroup places spawn groups at specific locations.
type SpawnLocationGroup struct {
	ID            uint32
	SpawnGroupIDs []uint32
}

// Spot is a named location marker within a zone (used for spot-relative NPC
// and object placement).
type Spot struct {
	ID   uint32
	X, Y float32
}

// Trigger is a scripted zone event trigger; opaque to the core beyond its
// id and the script it names.
type Trigger struct {
	ID     uint32
	Script string
}

// Zone is a fully composed (or base, un-composed) zone definition.
type Zone struct {
	ID            uint32
	DynamicMapID  uint32
	StartX, StartY float32

	NPCs    []NPC
	Objects []Object

	Spawns              map[uint32]Spawn
	SpawnGroups         map[uint32]SpawnGroup
	SpawnLocationGroups map[uint32]SpawnLocationGroup
	Spots               map[uint32]Spot
	Triggers            []Trigger

	DropSetIDs []uint32

	BazaarMarketCount int
	ValidTeamTypes    []uint32
}

// Clone returns a deep copy suitable for partial-overlay mutation; the
// composer never mutates a shared base zone in place.
func (z *Zone) Clone() *Zone {
	cp := &Zone{
		ID:                z.ID,
		DynamicMapID:      z.DynamicMapID,
		StartX:            z.StartX,
		StartY:            z.StartY,
		BazaarMarketCount: z.BazaarMarketCount,
	}
	cp.NPCs = append([]NPC(nil), z.NPCs...)
	cp.Objects = append([]Object(nil), z.Objects...)
	cp.Triggers = append([]Trigger(nil), z.Triggers...)
	cp.DropSetIDs = append([]uint32(nil), z.DropSetIDs...)
	cp.ValidTeamTypes = append([]uint32(nil), z.ValidTeamTypes...)

	cp.Spawns = make(map[uint32]Spawn, len(z.Spawns))
	for k, v := range z.Spawns {
		cp.Spawns[k] = v
	}
	cp.SpawnGroups = make(map[uint32]SpawnGroup, len(z.SpawnGroups))
	for k, v := range z.SpawnGroups {
		cp.SpawnGroups[k] = SpawnGroup{ID: v.ID, SpawnIDs: append([]uint32(nil), v.SpawnIDs...)}
	}
	cp.SpawnLocationGroups = make(map[uint32]SpawnLocationGroup, len(z.SpawnLocationGroups))
	for k, v := range z.SpawnLocationGroups {
		cp.SpawnLocationGroups[k] = SpawnLocationGroup{ID: v.ID, SpawnGroupIDs: append([]uint32(nil), v.SpawnGroupIDs...)}
	}
	cp.Spots = make(map[uint32]Spot, len(z.Spots))
	for k, v := range z.Spots {
		cp.Spots[k] = v
	}
	return cp
}

// ZonePartial is an overlay applied atop a base zone by the composer.
type ZonePartial struct {
	ID              uint32
	AutoApply       bool
	DynamicMapIDs   []uint32 // empty means "applies to any dynamic-map id it's registered under"

	NPCs    []NPC
	Objects []Object

	Spawns              map[uint32]Spawn
	SpawnGroups         map[uint32]SpawnGroup
	SpawnLocationGroups map[uint32]SpawnLocationGroup
	Spots               map[uint32]Spot
	Triggers            []Trigger
	DropSetIDs          []uint32
}

// AppliesToDynamicMap reports whether this partial's restriction (if any)
// includes id.
func (p *ZonePartial) AppliesToDynamicMap(id uint32) bool {
	if len(p.DynamicMapIDs) == 0 {
		return true
	}
	for _, d := range p.DynamicMapIDs {
		if d == id {
			return true
		}
	}
	return false
}
