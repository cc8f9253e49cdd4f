package serverdata

// xmlZone mirrors the on-disk zone XML shape, translated directly from
// ServerDataManager's tinyxml2-based zone loader.
type xmlZone struct {
	ID           uint32  `xml:"id,attr"`
	DynamicMapID uint32  `xml:"dynamicMapID,attr"`
	StartX       float32 `xml:"startX,attr"`
	StartY       float32 `xml:"startY,attr"`

	NPCs                []xmlNPC                `xml:"NPC"`
	Objects             []xmlObject              `xml:"Object"`
	Spawns              []xmlSpawn               `xml:"Spawn"`
	SpawnGroups         []xmlSpawnGroup          `xml:"SpawnGroup"`
	SpawnLocationGroups []xmlSpawnLocationGroup  `xml:"SpawnLocationGroup"`
	Spots               []xmlSpot                `xml:"Spot"`
	Triggers            []xmlTrigger             `xml:"Trigger"`
	DropSetIDs          []uint32                 `xml:"DropSetID"`
	BazaarMarketCount   int                      `xml:"bazaarMarketCount,attr"`
	ValidTeamTypes      []uint32                 `xml:"ValidTeamType"`
}

type xmlNPC struct {
	ID     uint32  `xml:"id,attr"`
	SpotID uint32  `xml:"spotID,attr"`
	X      float32 `xml:"x,attr"`
	Y      float32 `xml:"y,attr"`
	Type   uint32  `xml:"type,attr"`
}

type xmlObject struct {
	ID     uint32  `xml:"id,attr"`
	SpotID uint32  `xml:"spotID,attr"`
	X      float32 `xml:"x,attr"`
	Y      float32 `xml:"y,attr"`
	Type   uint32  `xml:"type,attr"`
}

type xmlSpawn struct {
	ID        uint32 `xml:"id,attr"`
	EnemyType uint32 `xml:"enemyType,attr"`
}

type xmlSpawnGroup struct {
	ID       uint32   `xml:"id,attr"`
	SpawnIDs []uint32 `xml:"SpawnID"`
}

type xmlSpawnLocationGroup struct {
	ID            uint32   `xml:"id,attr"`
	SpawnGroupIDs []uint32 `xml:"SpawnGroupID"`
}

type xmlSpot struct {
	ID uint32  `xml:"id,attr"`
	X  float32 `xml:"x,attr"`
	Y  float32 `xml:"y,attr"`
}

type xmlTrigger struct {
	ID     uint32 `xml:"id,attr"`
	Script string `xml:"script,attr"`
}

// xmlZonePartial mirrors xmlZone but every field is an overlay delta.
type xmlZonePartial struct {
	ID            uint32   `xml:"id,attr"`
	AutoApply     bool     `xml:"autoApply,attr"`
	DynamicMapIDs []uint32 `xml:"DynamicMapID"`

	NPCs                []xmlNPC               `xml:"NPC"`
	Objects             []xmlObject             `xml:"Object"`
	Spawns              []xmlSpawn              `xml:"Spawn"`
	SpawnGroups         []xmlSpawnGroup         `xml:"SpawnGroup"`
	SpawnLocationGroups []xmlSpawnLocationGroup `xml:"SpawnLocationGroup"`
	Spots               []xmlSpot               `xml:"Spot"`
	Triggers            []xmlTrigger            `xml:"Trigger"`
	DropSetIDs          []uint32                `xml:"DropSetID"`
}

type xmlZoneInstance struct {
	ID           uint32 `xml:"id,attr"`
	ZoneID       uint32 `xml:"zoneID,attr"`
	DynamicMapID uint32 `xml:"dynamicMapID,attr"`
}

type xmlZoneInstanceVariant struct {
	ID         uint32 `xml:"id,attr"`
	InstanceID uint32 `xml:"instanceID,attr"`
	Subtype    string `xml:"subtype,attr"`
	SubID      int    `xml:"subID,attr"`
	TimePoints int    `xml:"timePointCount,attr"`
}

type xmlEvent struct {
	ID     uint32 `xml:"id,attr"`
	Script string `xml:"script,attr"`
}

type xmlShop struct {
	ID uint32 `xml:"id,attr"`
}

type xmlIDOnly struct {
	ID uint32 `xml:"id,attr"`
}
