// Package catalogmodel defines the immutable record types loaded from the
// binary definition tables (spec section 4.B) and the server-side overlay
// records registered once the server-data catalog has finished loading.
package catalogmodel

// Record is satisfied by every binary-table row; its primary id is the
// catalog's map key.
type Record interface {
	RecordID() uint32
}

// Demon is a demon/monster base definition.
type Demon struct {
	ID          uint32
	Name        string
	Race        uint16
	BaseLevel   uint16
	FusionFlags uint16 // bit 1 set => eligible for fusion-range indexing
}

func (d *Demon) RecordID() uint32 { return d.ID }

// FusionFlagEligible reports whether bit 1 of FusionFlags is set.
func (d *Demon) FusionFlagEligible() bool { return d.FusionFlags&0x2 != 0 }

// Item is a client-facing item definition.
type Item struct {
	ID   uint32
	Name string
}

func (i *Item) RecordID() uint32 { return i.ID }

// Enchant describes an enchantment available to a demon/item pair.
type Enchant struct {
	ID      uint32
	DemonID uint32
	ItemID  uint32
}

func (e *Enchant) RecordID() uint32 { return e.ID }

// Disassembly maps an item to the materials obtained by breaking it down.
type Disassembly struct {
	ID     uint32
	ItemID uint32
}

func (d *Disassembly) RecordID() uint32 { return d.ID }

// Modification describes an item modification slot configuration.
type Modification struct {
	ID     uint32
	ItemID uint32
}

func (m *Modification) RecordID() uint32 { return m.ID }

// EquipmentSet is a bonus-granting set of equipment item ids.
type EquipmentSet struct {
	ID               uint32
	EquipmentItemIDs []uint32
}

func (s *EquipmentSet) RecordID() uint32 { return s.ID }

// Skill is a learnable/usable skill definition.
type Skill struct {
	ID         uint32
	FunctionID uint32
	Title      string
}

func (s *Skill) RecordID() uint32 { return s.ID }

// TriUnionSpecial is a three-demon special fusion result.
type TriUnionSpecial struct {
	ID             uint32
	SourceDemonIDs [3]uint32
}

func (t *TriUnionSpecial) RecordID() uint32 { return t.ID }

// DevilBoostLot is a lot of items awarded by a devil-boost draw, grouped for
// lookup by how many items the lot contains.
type DevilBoostLot struct {
	ID      uint32
	ItemIDs []uint32
}

func (l *DevilBoostLot) RecordID() uint32 { return l.ID }

// ZoneStaticDef is the binary-table definition of a zone's static identity
// (id and geometry file) that server-data zone XML entries must reference
// by id.
type ZoneStaticDef struct {
	ID      uint32
	QMPFile string
}

func (z *ZoneStaticDef) RecordID() uint32 { return z.ID }

// DynamicMap associates a dynamic-map id with the spot-data file backing it.
type DynamicMap struct {
	ID       uint32
	SpotFile string
}

func (d *DynamicMap) RecordID() uint32 { return d.ID }

// FusionRangeEntry is one (base level, demon id) pair in a per-race fusion
// range, kept sorted by BaseLevel after load.
type FusionRangeEntry struct {
	BaseLevel uint16
	DemonID   uint32
}

// Overlay record types, registered by internal/serverdata after its own
// load completes, and rejected if the id already exists.

type Tokusei struct {
	ID uint32
}

func (t *Tokusei) RecordID() uint32 { return t.ID }

type SStatus struct {
	ID uint32
}

func (s *SStatus) RecordID() uint32 { return s.ID }

type EnchantSetOverlay struct {
	ID uint32
}

func (e *EnchantSetOverlay) RecordID() uint32 { return e.ID }

type EnchantSpecialOverlay struct {
	ID uint32
}

func (e *EnchantSpecialOverlay) RecordID() uint32 { return e.ID }
