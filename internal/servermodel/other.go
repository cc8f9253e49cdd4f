package servermodel

// DropSet is a named table of possible item drops.
type DropSet struct {
	ID uint32
}

// Event is a scripted event definition referenced by zones/triggers.
type Event struct {
	ID     uint32
	Script string
}

// Shop is a vendor shop definition.
type Shop struct {
	ID uint32
}

// ZoneInstanceSubtype distinguishes the time-point-count validation rules a
// ZoneInstanceVariant must satisfy.
type ZoneInstanceSubtype int

const (
	SubtypeNormal ZoneInstanceSubtype = iota
	SubtypeTimeTrial
	SubtypePvP
	SubtypeDemonOnly
	SubtypeDiaspora
	SubtypeMission
	SubtypePentalpha
)

// ZoneInstance binds a zone/dynamic-map pair to an instance definition.
type ZoneInstance struct {
	ID           uint32
	ZoneID       uint32
	DynamicMapID uint32
}

// ZoneInstanceVariant is a variant ruleset layered on a ZoneInstance.
type ZoneInstanceVariant struct {
	ID             uint32
	InstanceID     uint32
	Subtype        ZoneInstanceSubtype
	SubID          int // used by pentalpha's sub-id < 5 rule
	TimePointCount int
}

// ScriptType classifies a loaded .nut script by the functions it is
// required to expose.
type ScriptType int

const (
	ScriptAI ScriptType = iota
	ScriptCondition
	ScriptTransform
	ScriptCustomAction
)

// Script is a loaded, validated .nut script's metadata — the script body
// itself is executed by the external scripting runtime, out of scope here.
type Script struct {
	Name   string
	Type   ScriptType
	Path   string
	Source string
}
