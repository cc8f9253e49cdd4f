package zonecompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskforge/channelcore/internal/servermodel"
)

type fakeZoneSource struct {
	zones     map[uint32]*servermodel.Zone
	partials  map[uint32]*servermodel.ZonePartial
	autoApply map[uint32][]uint32
}

func (s *fakeZoneSource) Zone(id uint32) (*servermodel.Zone, bool) { z, ok := s.zones[id]; return z, ok }
func (s *fakeZoneSource) Partial(id uint32) (*servermodel.ZonePartial, bool) {
	p, ok := s.partials[id]
	return p, ok
}
func (s *fakeZoneSource) AutoApplyPartialIDs(dynamicMapID uint32) []uint32 {
	return s.autoApply[dynamicMapID]
}

func baseZone() *servermodel.Zone {
	return &servermodel.Zone{
		ID: 100, DynamicMapID: 100,
		Spawns: map[uint32]servermodel.Spawn{
			1: {ID: 1, EnemyType: 10},
			2: {ID: 2, EnemyType: 10},
			3: {ID: 3, EnemyType: 10},
		},
		SpawnGroups: map[uint32]servermodel.SpawnGroup{
			1: {ID: 1, SpawnIDs: []uint32{1, 2}}, // "G1"
		},
		SpawnLocationGroups: map[uint32]servermodel.SpawnLocationGroup{
			1: {ID: 1, SpawnGroupIDs: []uint32{1}}, // "L1"
		},
	}
}

// Scenario 3: partial removes spawn 2 from G1 → G1 survives with only {1}.
func TestComposePartialRemovesOneSpawnFromGroup(t *testing.T) {
	src := &fakeZoneSource{
		zones: map[uint32]*servermodel.Zone{100: baseZone()},
		partials: map[uint32]*servermodel.ZonePartial{
			500: {
				ID: 500, AutoApply: true, DynamicMapIDs: []uint32{100},
				Spawns: map[uint32]servermodel.Spawn{}, // adds or replaces no spawns; an
				// empty overlay map leaves the base spawns untouched.
			},
		},
		autoApply: map[uint32][]uint32{100: {500}},
	}
	// Spawn removal isn't expressed via the overlay map (overlay only
	// overwrites-by-id); model it by deleting spawn 2 from the base zone
	// itself, so the composed clone lacks it before pruning runs.
	base := src.zones[100]
	delete(base.Spawns, 2)
	src.zones[100] = base

	zone, err := Compose(src, 100, 100, true, nil)
	require.NoError(t, err)

	_, ok := zone.Spawns[2]
	assert.False(t, ok)

	g, ok := zone.SpawnGroups[1]
	require.True(t, ok)
	assert.Equal(t, []uint32{1}, g.SpawnIDs)

	_, ok = zone.SpawnLocationGroups[1]
	assert.True(t, ok)
}

// Scenario 4: partial replaces G1 with a group referencing only a spawn
// that doesn't exist → G1 removed, L1 removed (its only group is gone).
func TestComposePartialReplacesGroupWithDanglingSpawnRemovesGroupAndLocationGroup(t *testing.T) {
	src := &fakeZoneSource{
		zones: map[uint32]*servermodel.Zone{100: baseZone()},
		partials: map[uint32]*servermodel.ZonePartial{
			501: {
				ID: 501, AutoApply: true, DynamicMapIDs: []uint32{100},
				SpawnGroups: map[uint32]servermodel.SpawnGroup{
					1: {ID: 1, SpawnIDs: []uint32{99}},
				},
			},
		},
		autoApply: map[uint32][]uint32{100: {501}},
	}

	zone, err := Compose(src, 100, 100, true, nil)
	require.NoError(t, err)

	_, ok := zone.SpawnGroups[1]
	assert.False(t, ok)
	_, ok = zone.SpawnLocationGroups[1]
	assert.False(t, ok)
}

func TestComposeWithoutPartialsReturnsBaseDirectly(t *testing.T) {
	base := baseZone()
	src := &fakeZoneSource{zones: map[uint32]*servermodel.Zone{100: base}}

	zone, err := Compose(src, 100, 100, false, nil)
	require.NoError(t, err)
	assert.Same(t, base, zone)
}

func TestComposeWithNoApplicablePartialsReturnsBaseDirectly(t *testing.T) {
	base := baseZone()
	src := &fakeZoneSource{zones: map[uint32]*servermodel.Zone{100: base}}

	zone, err := Compose(src, 100, 100, true, nil)
	require.NoError(t, err)
	assert.Same(t, base, zone)
}

func TestComposeUnknownExtraPartialIsFatal(t *testing.T) {
	src := &fakeZoneSource{zones: map[uint32]*servermodel.Zone{100: baseZone()}}

	_, err := Compose(src, 100, 100, true, []uint32{9999})
	assert.Error(t, err)
}

func TestComposeUnknownZoneIsFatal(t *testing.T) {
	src := &fakeZoneSource{zones: map[uint32]*servermodel.Zone{}}

	_, err := Compose(src, 1, 1, true, nil)
	assert.Error(t, err)
}

func TestComposeAppliesPartialsInAscendingIDOrder(t *testing.T) {
	src := &fakeZoneSource{
		zones: map[uint32]*servermodel.Zone{100: baseZone()},
		partials: map[uint32]*servermodel.ZonePartial{
			10: {ID: 10, AutoApply: true, DynamicMapIDs: []uint32{100}, Spots: map[uint32]servermodel.Spot{1: {ID: 1, X: 1}}},
			5:  {ID: 5, AutoApply: true, DynamicMapIDs: []uint32{100}, Spots: map[uint32]servermodel.Spot{1: {ID: 1, X: 5}}},
		},
		autoApply: map[uint32][]uint32{100: {10, 5}},
	}

	zone, err := Compose(src, 100, 100, true, nil)
	require.NoError(t, err)
	// partial 10 applies after partial 5 (ascending order), so its value wins.
	assert.Equal(t, float32(1), zone.Spots[1].X)
}
