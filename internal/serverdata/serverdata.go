// Package serverdata loads the XML-defined server-data catalog (zones,
// partials, events, shops, drops, scripts, and catalog overlays) and
// validates it against the definition catalog, per spec section 4.C.
package serverdata

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"sort"

	"github.com/duskforge/channelcore/internal/catalog"
	"github.com/duskforge/channelcore/internal/catalogmodel"
	"github.com/duskforge/channelcore/internal/servermodel"
)

// FileSource is the subset of the data store serverdata needs: flat
// (non-recursive) directory listing (full paths) plus plain reads. internal/datastore.Store
// satisfies this structurally.
type FileSource interface {
	ReadFile(path string) ([]byte, error)
	ListFiles(dir string) ([]string, error)
}

// ServerData is the immutable, shared server-data catalog, built once at
// boot by Load.
type ServerData struct {
	zones        map[uint32]*servermodel.Zone
	partials     map[uint32]*servermodel.ZonePartial
	autoApply    map[uint32][]uint32 // dynamicMapID -> sorted partial ids registered auto-apply
	events       map[uint32]*servermodel.Event
	shops        map[uint32]*servermodel.Shop
	dropSets     map[uint32]*servermodel.DropSet
	instances    map[uint32]*servermodel.ZoneInstance
	variants     map[uint32]*servermodel.ZoneInstanceVariant
	scripts      map[string]*servermodel.Script // keyed by "<category>/<name>"
}

// Zone returns the base zone definition for id, if known.
func (sd *ServerData) Zone(id uint32) (*servermodel.Zone, bool) {
	z, ok := sd.zones[id]
	return z, ok
}

// Partial returns a zone partial by id.
func (sd *ServerData) Partial(id uint32) (*servermodel.ZonePartial, bool) {
	p, ok := sd.partials[id]
	return p, ok
}

// AutoApplyPartialIDs returns the ascending-sorted partial ids registered
// auto-apply for the given dynamic-map id.
func (sd *ServerData) AutoApplyPartialIDs(dynamicMapID uint32) []uint32 {
	return sd.autoApply[dynamicMapID]
}

// Script returns a loaded script by category ("ai", "cond", "trans",
// "action") and name.
func (sd *ServerData) Script(category, name string) (*servermodel.Script, bool) {
	s, ok := sd.scripts[category+"/"+name]
	return s, ok
}

// Event returns an event definition by id.
func (sd *ServerData) Event(id uint32) (*servermodel.Event, bool) {
	e, ok := sd.events[id]
	return e, ok
}

// Shop returns a shop definition by id.
func (sd *ServerData) Shop(id uint32) (*servermodel.Shop, bool) {
	s, ok := sd.shops[id]
	return s, ok
}

const (
	dirDemonPresent        = "/data/DemonPresent"
	dirDemonQuestReward    = "/data/DemonQuestReward"
	dirDropSet             = "/data/DropSet"
	dirEnchantSet          = "/data/EnchantSet"
	dirEnchantSpecial      = "/data/EnchantSpecial"
	dirSStatus             = "/data/SStatus"
	dirTokusei             = "/tokusei"
	dirZones               = "/zones"
	dirZonesPartial        = "/zones/partial"
	dirEvents              = "/events"
	dirZoneInstance        = "/data/ZoneInstance"
	dirZoneInstanceVariant = "/data/ZoneInstanceVariant"
	dirShops               = "/shops"
	dirScripts             = "/scripts"
)

// Load walks the well-known subtrees in the order spec section 4.C
// specifies, validating each category against defs and against server data
// already loaded earlier in the sequence.
func Load(src FileSource, defs *catalog.Catalog) (*ServerData, error) {
	sd := &ServerData{
		zones:     make(map[uint32]*servermodel.Zone),
		partials:  make(map[uint32]*servermodel.ZonePartial),
		autoApply: make(map[uint32][]uint32),
		events:    make(map[uint32]*servermodel.Event),
		shops:     make(map[uint32]*servermodel.Shop),
		dropSets:  make(map[uint32]*servermodel.DropSet),
		instances: make(map[uint32]*servermodel.ZoneInstance),
		variants:  make(map[uint32]*servermodel.ZoneInstanceVariant),
		scripts:   make(map[string]*servermodel.Script),
	}

	if err := loadSimpleOverlay(src, dirDemonPresent, func(v xmlIDOnly) error {
		return nil // demon-present content is opaque to the core beyond presence validation
	}); err != nil {
		return nil, err
	}
	if err := loadSimpleOverlay(src, dirDemonQuestReward, func(v xmlIDOnly) error { return nil }); err != nil {
		return nil, err
	}
	if err := sd.loadDropSets(src); err != nil {
		return nil, err
	}
	if err := sd.loadCatalogOverlay(src, dirEnchantSet, defs.RegisterEnchantSet, func(id uint32) catalogmodel.Record {
		return &catalogmodel.EnchantSetOverlay{ID: id}
	}); err != nil {
		return nil, err
	}
	if err := sd.loadEnchantSpecialOverlay(src, defs); err != nil {
		return nil, err
	}
	if err := sd.loadSStatusOverlay(src, defs); err != nil {
		return nil, err
	}
	if err := sd.loadTokuseiOverlay(src, defs); err != nil {
		return nil, err
	}
	if err := sd.loadZones(src, defs); err != nil {
		return nil, err
	}
	if err := sd.loadZonePartials(src); err != nil {
		return nil, err
	}
	if err := sd.loadEvents(src); err != nil {
		return nil, err
	}
	if err := sd.loadZoneInstances(src); err != nil {
		return nil, err
	}
	if err := sd.loadZoneInstanceVariants(src); err != nil {
		return nil, err
	}
	if err := sd.loadShops(src); err != nil {
		return nil, err
	}
	if err := sd.loadScripts(src); err != nil {
		return nil, err
	}

	for mapID, ids := range sd.autoApply {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		sd.autoApply[mapID] = ids
	}

	slog.Info("server-data catalog loaded", "zones", len(sd.zones), "partials", len(sd.partials),
		"events", len(sd.events), "shops", len(sd.shops), "scripts", len(sd.scripts))
	return sd, nil
}

func readXMLFiles(src FileSource, dir string, each func(raw []byte) error) error {
	files, err := src.ListFiles(dir)
	if err != nil {
		return fmt.Errorf("serverdata: listing %s: %w", dir, err)
	}
	for _, f := range files {
		data, err := src.ReadFile(f)
		if err != nil {
			return fmt.Errorf("serverdata: reading %s: %w", f, err)
		}
		if err := each(data); err != nil {
			return fmt.Errorf("serverdata: parsing %s: %w", f, err)
		}
	}
	return nil
}

// loadSimpleOverlay handles categories this core treats as opaque presence
// data — parsed and id-validated for duplicates, but not otherwise modeled.
func loadSimpleOverlay(src FileSource, dir string, validate func(xmlIDOnly) error) error {
	seen := make(map[uint32]bool)
	return readXMLFiles(src, dir, func(raw []byte) error {
		var v xmlIDOnly
		if err := xml.Unmarshal(raw, &v); err != nil {
			return err
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate id %d", v.ID)
		}
		seen[v.ID] = true
		return validate(v)
	})
}

func (sd *ServerData) loadDropSets(src FileSource) error {
	seen := make(map[uint32]bool)
	return readXMLFiles(src, dirDropSet, func(raw []byte) error {
		var v xmlIDOnly
		if err := xml.Unmarshal(raw, &v); err != nil {
			return err
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate drop-set id %d", v.ID)
		}
		seen[v.ID] = true
		sd.dropSets[v.ID] = &servermodel.DropSet{ID: v.ID}
		return nil
	})
}

// loadCatalogOverlay parses a plain id-keyed category and registers each
// entry into the definition catalog's overlay index via register; duplicate
// ids are rejected by the catalog's own register call, not checked here.
func (sd *ServerData) loadCatalogOverlay(src FileSource, dir string, register func(catalogmodel.Record) error, build func(id uint32) catalogmodel.Record) error {
	return readXMLFiles(src, dir, func(raw []byte) error {
		var v xmlIDOnly
		if err := xml.Unmarshal(raw, &v); err != nil {
			return err
		}
		return register(build(v.ID))
	})
}

func (sd *ServerData) loadEnchantSpecialOverlay(src FileSource, defs *catalog.Catalog) error {
	return readXMLFiles(src, dirEnchantSpecial, func(raw []byte) error {
		var v xmlIDOnly
		if err := xml.Unmarshal(raw, &v); err != nil {
			return err
		}
		return defs.RegisterEnchantSpecial(&catalogmodel.EnchantSpecialOverlay{ID: v.ID})
	})
}

func (sd *ServerData) loadSStatusOverlay(src FileSource, defs *catalog.Catalog) error {
	return readXMLFiles(src, dirSStatus, func(raw []byte) error {
		var v xmlIDOnly
		if err := xml.Unmarshal(raw, &v); err != nil {
			return err
		}
		return defs.RegisterSStatus(&catalogmodel.SStatus{ID: v.ID})
	})
}

func (sd *ServerData) loadTokuseiOverlay(src FileSource, defs *catalog.Catalog) error {
	return readXMLFiles(src, dirTokusei, func(raw []byte) error {
		var v xmlIDOnly
		if err := xml.Unmarshal(raw, &v); err != nil {
			return err
		}
		return defs.RegisterTokusei(&catalogmodel.Tokusei{ID: v.ID})
	})
}

func convertZone(x xmlZone) *servermodel.Zone {
	z := &servermodel.Zone{
		ID: x.ID, DynamicMapID: x.DynamicMapID, StartX: x.StartX, StartY: x.StartY,
		Spawns: make(map[uint32]servermodel.Spawn), SpawnGroups: make(map[uint32]servermodel.SpawnGroup),
		SpawnLocationGroups: make(map[uint32]servermodel.SpawnLocationGroup), Spots: make(map[uint32]servermodel.Spot),
		DropSetIDs: x.DropSetIDs, BazaarMarketCount: x.BazaarMarketCount, ValidTeamTypes: x.ValidTeamTypes,
	}
	for _, n := range x.NPCs {
		z.NPCs = append(z.NPCs, servermodel.NPC{ID: n.ID, SpotID: n.SpotID, X: n.X, Y: n.Y, Type: n.Type})
	}
	for _, o := range x.Objects {
		z.Objects = append(z.Objects, servermodel.Object{ID: o.ID, SpotID: o.SpotID, X: o.X, Y: o.Y, Type: o.Type})
	}
	for _, s := range x.Spawns {
		z.Spawns[s.ID] = servermodel.Spawn{ID: s.ID, EnemyType: s.EnemyType}
	}
	for _, g := range x.SpawnGroups {
		z.SpawnGroups[g.ID] = servermodel.SpawnGroup{ID: g.ID, SpawnIDs: g.SpawnIDs}
	}
	for _, l := range x.SpawnLocationGroups {
		z.SpawnLocationGroups[l.ID] = servermodel.SpawnLocationGroup{ID: l.ID, SpawnGroupIDs: l.SpawnGroupIDs}
	}
	for _, s := range x.Spots {
		z.Spots[s.ID] = servermodel.Spot{ID: s.ID, X: s.X, Y: s.Y}
	}
	for _, t := range x.Triggers {
		z.Triggers = append(z.Triggers, servermodel.Trigger{ID: t.ID, Script: t.Script})
	}
	return z
}

func (sd *ServerData) loadZones(src FileSource, defs *catalog.Catalog) error {
	return readXMLFiles(src, dirZones, func(raw []byte) error {
		var x xmlZone
		if err := xml.Unmarshal(raw, &x); err != nil {
			return err
		}
		if _, ok := defs.GetZoneStaticDef(x.ID); !ok {
			slog.Warn("zone id unknown to definition catalog, skipping", "zone", x.ID)
			return nil
		}
		if _, ok := sd.zones[x.ID]; ok {
			return fmt.Errorf("duplicate zone id %d", x.ID)
		}
		z := convertZone(x)
		for _, s := range z.Spawns {
			if _, ok := defs.GetDemon(s.EnemyType); !ok {
				slog.Warn("zone spawn references unknown demon, skipping zone", "zone", z.ID, "spawn", s.ID, "enemy_type", s.EnemyType)
				return nil
			}
		}
		sd.zones[z.ID] = z
		return nil
	})
}

func (sd *ServerData) loadZonePartials(src FileSource) error {
	return readXMLFiles(src, dirZonesPartial, func(raw []byte) error {
		var x xmlZonePartial
		if err := xml.Unmarshal(raw, &x); err != nil {
			return err
		}
		if x.ID == 0 {
			slog.Warn("zone partial id 0 is reserved for direct global partial, discarding content")
			return nil
		}
		if _, ok := sd.partials[x.ID]; ok {
			return fmt.Errorf("duplicate zone partial id %d", x.ID)
		}
		p := &servermodel.ZonePartial{
			ID: x.ID, AutoApply: x.AutoApply, DynamicMapIDs: x.DynamicMapIDs,
			Spawns: make(map[uint32]servermodel.Spawn), SpawnGroups: make(map[uint32]servermodel.SpawnGroup),
			SpawnLocationGroups: make(map[uint32]servermodel.SpawnLocationGroup), Spots: make(map[uint32]servermodel.Spot),
			DropSetIDs: x.DropSetIDs,
		}
		for _, n := range x.NPCs {
			p.NPCs = append(p.NPCs, servermodel.NPC{ID: n.ID, SpotID: n.SpotID, X: n.X, Y: n.Y, Type: n.Type})
		}
		for _, o := range x.Objects {
			p.Objects = append(p.Objects, servermodel.Object{ID: o.ID, SpotID: o.SpotID, X: o.X, Y: o.Y, Type: o.Type})
		}
		for _, s := range x.Spawns {
			p.Spawns[s.ID] = servermodel.Spawn{ID: s.ID, EnemyType: s.EnemyType}
		}
		for _, g := range x.SpawnGroups {
			p.SpawnGroups[g.ID] = servermodel.SpawnGroup{ID: g.ID, SpawnIDs: g.SpawnIDs}
		}
		for _, l := range x.SpawnLocationGroups {
			p.SpawnLocationGroups[l.ID] = servermodel.SpawnLocationGroup{ID: l.ID, SpawnGroupIDs: l.SpawnGroupIDs}
		}
		for _, s := range x.Spots {
			p.Spots[s.ID] = servermodel.Spot{ID: s.ID, X: s.X, Y: s.Y}
		}
		for _, t := range x.Triggers {
			p.Triggers = append(p.Triggers, servermodel.Trigger{ID: t.ID, Script: t.Script})
		}
		sd.partials[p.ID] = p

		if p.AutoApply {
			for _, mapID := range p.DynamicMapIDs {
				sd.autoApply[mapID] = append(sd.autoApply[mapID], p.ID)
			}
		}
		return nil
	})
}

func (sd *ServerData) loadEvents(src FileSource) error {
	return readXMLFiles(src, dirEvents, func(raw []byte) error {
		var x xmlEvent
		if err := xml.Unmarshal(raw, &x); err != nil {
			return err
		}
		if _, ok := sd.events[x.ID]; ok {
			return fmt.Errorf("duplicate event id %d", x.ID)
		}
		sd.events[x.ID] = &servermodel.Event{ID: x.ID, Script: x.Script}
		return nil
	})
}

func (sd *ServerData) loadZoneInstances(src FileSource) error {
	return readXMLFiles(src, dirZoneInstance, func(raw []byte) error {
		var x xmlZoneInstance
		if err := xml.Unmarshal(raw, &x); err != nil {
			return err
		}
		if _, ok := sd.instances[x.ID]; ok {
			return fmt.Errorf("duplicate zone instance id %d", x.ID)
		}
		if _, ok := sd.zones[x.ZoneID]; !ok {
			slog.Warn("zone instance references unknown zone, skipping", "instance", x.ID, "zone", x.ZoneID)
			return nil
		}
		sd.instances[x.ID] = &servermodel.ZoneInstance{ID: x.ID, ZoneID: x.ZoneID, DynamicMapID: x.DynamicMapID}
		return nil
	})
}

func parseSubtype(s string) servermodel.ZoneInstanceSubtype {
	switch s {
	case "time-trial":
		return servermodel.SubtypeTimeTrial
	case "pvp":
		return servermodel.SubtypePvP
	case "demon-only":
		return servermodel.SubtypeDemonOnly
	case "diaspora":
		return servermodel.SubtypeDiaspora
	case "mission":
		return servermodel.SubtypeMission
	case "pentalpha":
		return servermodel.SubtypePentalpha
	default:
		return servermodel.SubtypeNormal
	}
}

func (sd *ServerData) loadZoneInstanceVariants(src FileSource) error {
	return readXMLFiles(src, dirZoneInstanceVariant, func(raw []byte) error {
		var x xmlZoneInstanceVariant
		if err := xml.Unmarshal(raw, &x); err != nil {
			return err
		}
		if _, ok := sd.variants[x.ID]; ok {
			return fmt.Errorf("duplicate zone instance variant id %d", x.ID)
		}
		v := &servermodel.ZoneInstanceVariant{
			ID: x.ID, InstanceID: x.InstanceID, Subtype: parseSubtype(x.Subtype),
			SubID: x.SubID, TimePointCount: x.TimePoints,
		}
		if err := validateTimePointCount(v); err != nil {
			return err
		}
		sd.variants[v.ID] = v
		return nil
	})
}

func validateTimePointCount(v *servermodel.ZoneInstanceVariant) error {
	switch v.Subtype {
	case servermodel.SubtypeTimeTrial:
		if v.TimePointCount != 4 {
			return fmt.Errorf("zone instance variant %d: time-trial requires 4 time points, got %d", v.ID, v.TimePointCount)
		}
	case servermodel.SubtypePvP:
		if v.TimePointCount != 2 && v.TimePointCount != 3 {
			return fmt.Errorf("zone instance variant %d: pvp requires 2 or 3 time points, got %d", v.ID, v.TimePointCount)
		}
	case servermodel.SubtypeDemonOnly:
		if v.TimePointCount != 3 && v.TimePointCount != 4 {
			return fmt.Errorf("zone instance variant %d: demon-only requires 3 or 4 time points, got %d", v.ID, v.TimePointCount)
		}
	case servermodel.SubtypeDiaspora:
		if v.TimePointCount != 2 {
			return fmt.Errorf("zone instance variant %d: diaspora requires 2 time points, got %d", v.ID, v.TimePointCount)
		}
	case servermodel.SubtypeMission:
		if v.TimePointCount != 1 {
			return fmt.Errorf("zone instance variant %d: mission requires 1 time point, got %d", v.ID, v.TimePointCount)
		}
	case servermodel.SubtypePentalpha:
		if v.SubID >= 5 {
			return fmt.Errorf("zone instance variant %d: pentalpha sub-id must be < 5, got %d", v.ID, v.SubID)
		}
	}
	return nil
}

func (sd *ServerData) loadShops(src FileSource) error {
	return readXMLFiles(src, dirShops, func(raw []byte) error {
		var x xmlShop
		if err := xml.Unmarshal(raw, &x); err != nil {
			return err
		}
		if _, ok := sd.shops[x.ID]; ok {
			return fmt.Errorf("duplicate shop id %d", x.ID)
		}
		sd.shops[x.ID] = &servermodel.Shop{ID: x.ID}
		return nil
	})
}
