package catalog

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/duskforge/channelcore/internal/catalogmodel"
	"github.com/duskforge/channelcore/internal/codec"
)

// Catalog is the immutable, shared definition catalog. It is built once at
// boot by Load and never mutated afterward except for overlay registration,
// which happens once, synchronously, before the server starts accepting
// connections.
type Catalog struct {
	demons       map[uint32]*catalogmodel.Demon
	demonsByName map[string]*catalogmodel.Demon
	fusionByRace map[uint16][]catalogmodel.FusionRangeEntry

	items       map[uint32]*catalogmodel.Item
	itemsByName map[string]*catalogmodel.Item

	enchants        map[uint32]*catalogmodel.Enchant
	enchantsByDemon map[uint32][]*catalogmodel.Enchant
	enchantsByItem  map[uint32][]*catalogmodel.Enchant

	disassembly        map[uint32]*catalogmodel.Disassembly
	disassemblyByItem  map[uint32]*catalogmodel.Disassembly
	modification       map[uint32]*catalogmodel.Modification
	modificationByItem map[uint32]*catalogmodel.Modification

	equipmentSets       map[uint32]*catalogmodel.EquipmentSet
	equipmentSetsByItem map[uint32][]*catalogmodel.EquipmentSet

	skills          map[uint32]*catalogmodel.Skill
	skillsByFuncID  map[uint32][]*catalogmodel.Skill
	titleIDs        map[uint32]struct{}
	triUnion        map[uint32]*catalogmodel.TriUnionSpecial
	triUnionBySrc   map[uint32][]*catalogmodel.TriUnionSpecial
	devilBoostLots  map[uint32]*catalogmodel.DevilBoostLot
	devilBoostByCnt map[int][]*catalogmodel.DevilBoostLot

	dynamicMaps   map[uint32]*catalogmodel.DynamicMap
	spotDataCache map[string][]byte
	zoneDefs      map[uint32]*catalogmodel.ZoneStaticDef

	tokusei        map[uint32]*catalogmodel.Tokusei
	sStatus        map[uint32]*catalogmodel.SStatus
	enchantSet     map[uint32]*catalogmodel.EnchantSetOverlay
	enchantSpecial map[uint32]*catalogmodel.EnchantSpecialOverlay
}

func newCatalog() *Catalog {
	return &Catalog{
		demons:              make(map[uint32]*catalogmodel.Demon),
		demonsByName:        make(map[string]*catalogmodel.Demon),
		fusionByRace:        make(map[uint16][]catalogmodel.FusionRangeEntry),
		items:               make(map[uint32]*catalogmodel.Item),
		itemsByName:         make(map[string]*catalogmodel.Item),
		enchants:            make(map[uint32]*catalogmodel.Enchant),
		enchantsByDemon:     make(map[uint32][]*catalogmodel.Enchant),
		enchantsByItem:      make(map[uint32][]*catalogmodel.Enchant),
		disassembly:         make(map[uint32]*catalogmodel.Disassembly),
		disassemblyByItem:   make(map[uint32]*catalogmodel.Disassembly),
		modification:        make(map[uint32]*catalogmodel.Modification),
		modificationByItem:  make(map[uint32]*catalogmodel.Modification),
		equipmentSets:       make(map[uint32]*catalogmodel.EquipmentSet),
		equipmentSetsByItem: make(map[uint32][]*catalogmodel.EquipmentSet),
		skills:              make(map[uint32]*catalogmodel.Skill),
		skillsByFuncID:      make(map[uint32][]*catalogmodel.Skill),
		titleIDs:            make(map[uint32]struct{}),
		triUnion:            make(map[uint32]*catalogmodel.TriUnionSpecial),
		triUnionBySrc:       make(map[uint32][]*catalogmodel.TriUnionSpecial),
		devilBoostLots:      make(map[uint32]*catalogmodel.DevilBoostLot),
		devilBoostByCnt:     make(map[int][]*catalogmodel.DevilBoostLot),
		dynamicMaps:         make(map[uint32]*catalogmodel.DynamicMap),
		spotDataCache:       make(map[string][]byte),
		zoneDefs:            make(map[uint32]*catalogmodel.ZoneStaticDef),
		tokusei:             make(map[uint32]*catalogmodel.Tokusei),
		sStatus:             make(map[uint32]*catalogmodel.SStatus),
		enchantSet:          make(map[uint32]*catalogmodel.EnchantSetOverlay),
		enchantSpecial:      make(map[uint32]*catalogmodel.EnchantSpecialOverlay),
	}
}

// Load boots the full definition catalog from src. Any table failing to
// parse is a fatal boot error per spec section 4.B.
func Load(src FileSource) (*Catalog, error) {
	c := newCatalog()

	if err := c.loadDemons(src); err != nil {
		return nil, err
	}
	if err := c.loadItems(src); err != nil {
		return nil, err
	}
	if err := c.loadEnchants(src); err != nil {
		return nil, err
	}
	if err := c.loadDisassembly(src); err != nil {
		return nil, err
	}
	if err := c.loadModification(src); err != nil {
		return nil, err
	}
	if err := c.loadEquipmentSets(src); err != nil {
		return nil, err
	}
	if err := c.loadSkills(src); err != nil {
		return nil, err
	}
	if err := c.loadTriUnionSpecials(src); err != nil {
		return nil, err
	}
	if err := c.loadDevilBoostLots(src); err != nil {
		return nil, err
	}
	if err := c.loadDynamicMaps(src); err != nil {
		return nil, err
	}
	if err := c.loadZoneDefs(src); err != nil {
		return nil, err
	}

	for race, entries := range c.fusionByRace {
		sort.Slice(entries, func(i, j int) bool { return entries[i].BaseLevel < entries[j].BaseLevel })
		c.fusionByRace[race] = entries
	}

	slog.Info("definition catalog loaded",
		"demons", len(c.demons), "items", len(c.items), "enchants", len(c.enchants),
		"skills", len(c.skills), "dynamic_maps", len(c.dynamicMaps))
	return c, nil
}

func readString(r *codec.Reader) (string, error) {
	return r.ReadString(codec.UTF8, false)
}

func (c *Catalog) loadDemons(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path:      "/BinaryData/Client/Demon.bin",
		encrypted: false,
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			race, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			baseLevel, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			flags, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			return &catalogmodel.Demon{ID: id, Name: name, Race: race, BaseLevel: baseLevel, FusionFlags: flags}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		d := rec.(*catalogmodel.Demon)
		c.demons[d.ID] = d
		if _, exists := c.demonsByName[d.Name]; !exists {
			c.demonsByName[d.Name] = d
		}
		if d.FusionFlagEligible() {
			c.fusionByRace[d.Race] = append(c.fusionByRace[d.Race], catalogmodel.FusionRangeEntry{BaseLevel: d.BaseLevel, DemonID: d.ID})
		}
	}
	return nil
}

func (c *Catalog) loadItems(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path:      "/BinaryData/Client/Item.bin",
		encrypted: false,
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			return &catalogmodel.Item{ID: id, Name: name}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		it := rec.(*catalogmodel.Item)
		c.items[it.ID] = it
		if _, exists := c.itemsByName[it.Name]; !exists {
			c.itemsByName[it.Name] = it
		}
	}
	return nil
}

func (c *Catalog) loadEnchants(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path:      "/BinaryData/Shield/Enchant.sbin",
		encrypted: true,
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			demonID, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			itemID, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			return &catalogmodel.Enchant{ID: id, DemonID: demonID, ItemID: itemID}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		e := rec.(*catalogmodel.Enchant)
		if _, dup := c.enchants[e.ID]; dup {
			slog.Warn("duplicate enchant id", "id", e.ID)
			continue
		}
		c.enchants[e.ID] = e
		c.enchantsByDemon[e.DemonID] = append(c.enchantsByDemon[e.DemonID], e)
		c.enchantsByItem[e.ItemID] = append(c.enchantsByItem[e.ItemID], e)
	}
	return nil
}

func (c *Catalog) loadDisassembly(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/Disassembly.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			itemID, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			return &catalogmodel.Disassembly{ID: id, ItemID: itemID}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		d := rec.(*catalogmodel.Disassembly)
		c.disassembly[d.ID] = d
		c.disassemblyByItem[d.ItemID] = d
	}
	return nil
}

func (c *Catalog) loadModification(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/Modification.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			itemID, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			return &catalogmodel.Modification{ID: id, ItemID: itemID}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		m := rec.(*catalogmodel.Modification)
		c.modification[m.ID] = m
		c.modificationByItem[m.ItemID] = m
	}
	return nil
}

func (c *Catalog) loadEquipmentSets(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/EquipmentSet.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			count := len(hints)
			if count == 0 {
				count = 4
			}
			ids := make([]uint32, 0, count)
			for i := 0; i < count; i++ {
				v, err := r.ReadU32()
				if err != nil {
					return nil, err
				}
				ids = append(ids, v)
			}
			return &catalogmodel.EquipmentSet{ID: id, EquipmentItemIDs: ids}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		s := rec.(*catalogmodel.EquipmentSet)
		c.equipmentSets[s.ID] = s
		hasNonZero := false
		for _, id := range s.EquipmentItemIDs {
			if id != 0 {
				hasNonZero = true
				c.equipmentSetsByItem[id] = append(c.equipmentSetsByItem[id], s)
			}
		}
		if !hasNonZero {
			slog.Debug("equipment set has no non-zero equipment ids, not indexed", "id", s.ID)
		}
	}
	return nil
}

func (c *Catalog) loadSkills(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/Skill.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			funcID, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			title, err := readString(r)
			if err != nil {
				return nil, err
			}
			return &catalogmodel.Skill{ID: id, FunctionID: funcID, Title: title}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		s := rec.(*catalogmodel.Skill)
		c.skills[s.ID] = s
		c.skillsByFuncID[s.FunctionID] = append(c.skillsByFuncID[s.FunctionID], s)
		if s.ID >= 1024 && s.Title != "" {
			c.titleIDs[s.ID] = struct{}{}
		}
	}
	return nil
}

func (c *Catalog) loadTriUnionSpecials(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/TriUnionSpecial.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			var src [3]uint32
			for i := range src {
				v, err := r.ReadU32()
				if err != nil {
					return nil, err
				}
				src[i] = v
			}
			return &catalogmodel.TriUnionSpecial{ID: id, SourceDemonIDs: src}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		t := rec.(*catalogmodel.TriUnionSpecial)
		c.triUnion[t.ID] = t
		for _, demonID := range t.SourceDemonIDs {
			c.triUnionBySrc[demonID] = append(c.triUnionBySrc[demonID], t)
		}
	}
	return nil
}

func (c *Catalog) loadDevilBoostLots(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/DevilBoostLot.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			n, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			ids := make([]uint32, n)
			for i := range ids {
				v, err := r.ReadU32()
				if err != nil {
					return nil, err
				}
				ids[i] = v
			}
			return &catalogmodel.DevilBoostLot{ID: id, ItemIDs: ids}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		lot := rec.(*catalogmodel.DevilBoostLot)
		c.devilBoostLots[lot.ID] = lot
		c.devilBoostByCnt[len(lot.ItemIDs)] = append(c.devilBoostByCnt[len(lot.ItemIDs)], lot)
	}
	return nil
}

func (c *Catalog) loadDynamicMaps(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/DynamicMap.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			spotFile, err := readString(r)
			if err != nil {
				return nil, err
			}
			return &catalogmodel.DynamicMap{ID: id, SpotFile: spotFile}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		m := rec.(*catalogmodel.DynamicMap)
		c.dynamicMaps[m.ID] = m
		if _, loaded := c.spotDataCache[m.SpotFile]; !loaded {
			data, err := src.ReadFile(m.SpotFile)
			if err != nil {
				slog.Warn("dynamic map spot data missing", "file", m.SpotFile, "error", err)
				continue
			}
			c.spotDataCache[m.SpotFile] = data
		}
	}
	return nil
}

func (c *Catalog) loadZoneDefs(src FileSource) error {
	records, err := loadTable(src, tableSpec{
		path: "/BinaryData/Client/Zone.bin",
		parse: func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error) {
			id, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			qmp, err := readString(r)
			if err != nil {
				return nil, err
			}
			return &catalogmodel.ZoneStaticDef{ID: id, QMPFile: qmp}, nil
		},
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		z := rec.(*catalogmodel.ZoneStaticDef)
		c.zoneDefs[z.ID] = z
	}
	return nil
}

// Read API — get_X(id) for every record type.

func (c *Catalog) GetDemon(id uint32) (*catalogmodel.Demon, bool)     { d, ok := c.demons[id]; return d, ok }
func (c *Catalog) GetDemonByName(name string) (*catalogmodel.Demon, bool) {
	d, ok := c.demonsByName[name]
	return d, ok
}
func (c *Catalog) GetItem(id uint32) (*catalogmodel.Item, bool) { i, ok := c.items[id]; return i, ok }
func (c *Catalog) GetItemByName(name string) (*catalogmodel.Item, bool) {
	i, ok := c.itemsByName[name]
	return i, ok
}
func (c *Catalog) GetEnchant(id uint32) (*catalogmodel.Enchant, bool) {
	e, ok := c.enchants[id]
	return e, ok
}
func (c *Catalog) EnchantsByDemon(demonID uint32) []*catalogmodel.Enchant {
	return c.enchantsByDemon[demonID]
}
func (c *Catalog) EnchantsByItem(itemID uint32) []*catalogmodel.Enchant {
	return c.enchantsByItem[itemID]
}
func (c *Catalog) GetDisassembly(id uint32) (*catalogmodel.Disassembly, bool) {
	d, ok := c.disassembly[id]
	return d, ok
}
func (c *Catalog) DisassemblyByItem(itemID uint32) (*catalogmodel.Disassembly, bool) {
	d, ok := c.disassemblyByItem[itemID]
	return d, ok
}
func (c *Catalog) GetModification(id uint32) (*catalogmodel.Modification, bool) {
	m, ok := c.modification[id]
	return m, ok
}
func (c *Catalog) ModificationByItem(itemID uint32) (*catalogmodel.Modification, bool) {
	m, ok := c.modificationByItem[itemID]
	return m, ok
}
func (c *Catalog) GetEquipmentSet(id uint32) (*catalogmodel.EquipmentSet, bool) {
	s, ok := c.equipmentSets[id]
	return s, ok
}
func (c *Catalog) EquipmentSetsByItem(itemID uint32) []*catalogmodel.EquipmentSet {
	return c.equipmentSetsByItem[itemID]
}
func (c *Catalog) GetSkill(id uint32) (*catalogmodel.Skill, bool) { s, ok := c.skills[id]; return s, ok }
func (c *Catalog) SkillsByFunctionID(funcID uint32) []*catalogmodel.Skill {
	return c.skillsByFuncID[funcID]
}
func (c *Catalog) GetTriUnionSpecial(id uint32) (*catalogmodel.TriUnionSpecial, bool) {
	t, ok := c.triUnion[id]
	return t, ok
}
func (c *Catalog) TriUnionSpecialsBySource(demonID uint32) []*catalogmodel.TriUnionSpecial {
	return c.triUnionBySrc[demonID]
}
func (c *Catalog) GetDynamicMap(id uint32) (*catalogmodel.DynamicMap, bool) {
	m, ok := c.dynamicMaps[id]
	return m, ok
}

// GetZoneStaticDef looks up a zone's static binary-table identity. Used by
// internal/serverdata to decide whether a zone XML entry's id is known.
func (c *Catalog) GetZoneStaticDef(id uint32) (*catalogmodel.ZoneStaticDef, bool) {
	z, ok := c.zoneDefs[id]
	return z, ok
}

// Aggregate queries named in spec section 4.B's read API.

// FusionRangesByRace returns the sorted-by-level fusion candidates for race.
func (c *Catalog) FusionRangesByRace(race uint16) []catalogmodel.FusionRangeEntry {
	return c.fusionByRace[race]
}

// FusionSkillsByDemonID returns the skill set grouped under a demon's
// resulting function id, i.e. the skills a fusion result demon grants.
func (c *Catalog) FusionSkillsByDemonID(demonID uint32) []*catalogmodel.Skill {
	d, ok := c.demons[demonID]
	if !ok {
		return nil
	}
	return c.skillsByFuncID[uint32(d.Race)]
}

// TitleIDs returns the set of special-title ids (id >= 1024, non-empty
// title) collected at load time.
func (c *Catalog) TitleIDs() map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(c.titleIDs))
	for id := range c.titleIDs {
		out[id] = struct{}{}
	}
	return out
}

// DevilBoostLotIDsByCount returns the lot ids whose item list has exactly
// count entries.
func (c *Catalog) DevilBoostLotIDsByCount(count int) []uint32 {
	lots := c.devilBoostByCnt[count]
	ids := make([]uint32, len(lots))
	for i, l := range lots {
		ids[i] = l.ID
	}
	return ids
}

// Overlay registration — registered after the server-data catalog loads
// them; rejected if the id already exists.

func (c *Catalog) RegisterTokusei(t *catalogmodel.Tokusei) error {
	if _, exists := c.tokusei[t.ID]; exists {
		return fmt.Errorf("catalog: tokusei id %d already registered", t.ID)
	}
	c.tokusei[t.ID] = t
	return nil
}

func (c *Catalog) RegisterSStatus(s *catalogmodel.SStatus) error {
	if _, exists := c.sStatus[s.ID]; exists {
		return fmt.Errorf("catalog: s-status id %d already registered", s.ID)
	}
	c.sStatus[s.ID] = s
	return nil
}

func (c *Catalog) RegisterEnchantSet(e *catalogmodel.EnchantSetOverlay) error {
	if _, exists := c.enchantSet[e.ID]; exists {
		return fmt.Errorf("catalog: enchant-set id %d already registered", e.ID)
	}
	c.enchantSet[e.ID] = e
	return nil
}

func (c *Catalog) RegisterEnchantSpecial(e *catalogmodel.EnchantSpecialOverlay) error {
	if _, exists := c.enchantSpecial[e.ID]; exists {
		return fmt.Errorf("catalog: enchant-special id %d already registered", e.ID)
	}
	c.enchantSpecial[e.ID] = e
	return nil
}
