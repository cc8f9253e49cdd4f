package serverdata

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskforge/channelcore/internal/catalog"
	"github.com/duskforge/channelcore/internal/codec"
)

// fakeSource is an in-memory FileSource keyed by exact path, with ListFiles
// returning every stored path whose directory prefix matches.
type fakeSource struct {
	files map[string][]byte
}

func newFakeSource() *fakeSource { return &fakeSource{files: make(map[string][]byte)} }

func (f *fakeSource) put(path, content string) { f.files[path] = []byte(content) }

func (f *fakeSource) ReadFile(path string) ([]byte, error) {
	b, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("fakeSource: no file %s", path)
	}
	return b, nil
}

func (f *fakeSource) ListFiles(dir string) ([]string, error) {
	var out []string
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for path := range f.files {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	return out, nil
}

// emptyDefCatalog builds a definition catalog containing one demon (id 5)
// and one static zone def (id 100), enough for serverdata validation tests.
func emptyDefCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	catSrc := &fakeCatalogSource{files: map[string][]byte{
		"/BinaryData/Client/Demon.bin":          demonTableWith(5),
		"/BinaryData/Client/Zone.bin":           zoneDefTableWith(100),
		"/BinaryData/Client/Item.bin":           emptyTableBytes(),
		"/BinaryData/Shield/Enchant.sbin":       emptyTableBytes(),
		"/BinaryData/Client/Disassembly.bin":    emptyTableBytes(),
		"/BinaryData/Client/Modification.bin":   emptyTableBytes(),
		"/BinaryData/Client/EquipmentSet.bin":   emptyTableBytes(),
		"/BinaryData/Client/Skill.bin":          emptyTableBytes(),
		"/BinaryData/Client/TriUnionSpecial.bin": emptyTableBytes(),
		"/BinaryData/Client/DevilBoostLot.bin":  emptyTableBytes(),
		"/BinaryData/Client/DynamicMap.bin":     emptyTableBytes(),
	}}
	cat, err := catalog.Load(catSrc)
	require.NoError(t, err)
	return cat
}

type fakeCatalogSource struct{ files map[string][]byte }

func (f *fakeCatalogSource) ReadFile(path string) ([]byte, error) {
	b, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no file %s", path)
	}
	return b, nil
}
func (f *fakeCatalogSource) DecryptFile(path string) ([]byte, error) { return f.ReadFile(path) }

func emptyTableBytes() []byte {
	w := codec.NewWriter()
	defer codec.Put(w)
	w.WriteU16(0)
	w.WriteU16(0)
	return append([]byte(nil), w.Bytes()...)
}

func demonTableWith(id uint32) []byte {
	w := codec.NewWriter()
	defer codec.Put(w)
	w.WriteU16(1)
	w.WriteU16(0)
	w.WriteU32(id)
	w.WriteU16(0)
	w.WriteU16(0)
	w.WriteU16(0)
	_ = w.WriteString("test demon", codec.UTF8, false)
	return append([]byte(nil), w.Bytes()...)
}

func zoneDefTableWith(id uint32) []byte {
	w := codec.NewWriter()
	defer codec.Put(w)
	w.WriteU16(1)
	w.WriteU16(0)
	w.WriteU32(id)
	_ = w.WriteString("zone.qmp", codec.UTF8, false)
	return append([]byte(nil), w.Bytes()...)
}

func TestLoadEmptyServerDataSucceeds(t *testing.T) {
	defs := emptyDefCatalog(t)
	sd, err := Load(newFakeSource(), defs)
	require.NoError(t, err)
	_, ok := sd.Zone(100)
	assert.False(t, ok)
}

func TestZoneWithUnknownIDIsSkippedNotFailed(t *testing.T) {
	defs := emptyDefCatalog(t)
	src := newFakeSource()
	src.put("/zones/unknown.xml", `<Zone id="999" dynamicMapID="1"/>`)

	sd, err := Load(src, defs)
	require.NoError(t, err)
	_, ok := sd.Zone(999)
	assert.False(t, ok)
}

func TestDuplicateZoneIDIsFatal(t *testing.T) {
	defs := emptyDefCatalog(t)
	src := newFakeSource()
	src.put("/zones/a.xml", `<Zone id="100" dynamicMapID="1"/>`)
	src.put("/zones/b.xml", `<Zone id="100" dynamicMapID="1"/>`)

	_, err := Load(src, defs)
	assert.Error(t, err)
}

func TestZonePartialIDZeroIsDiscardedWithWarning(t *testing.T) {
	defs := emptyDefCatalog(t)
	src := newFakeSource()
	src.put("/zones/partial/zero.xml", `<ZonePartial id="0" autoApply="true"/>`)

	sd, err := Load(src, defs)
	require.NoError(t, err)
	_, ok := sd.Partial(0)
	assert.False(t, ok)
}

func TestAutoApplyPartialsAreSortedByID(t *testing.T) {
	defs := emptyDefCatalog(t)
	src := newFakeSource()
	src.put("/zones/partial/p5.xml", `<ZonePartial id="5" autoApply="true"><DynamicMapID>1</DynamicMapID></ZonePartial>`)
	src.put("/zones/partial/p2.xml", `<ZonePartial id="2" autoApply="true"><DynamicMapID>1</DynamicMapID></ZonePartial>`)

	sd, err := Load(src, defs)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 5}, sd.AutoApplyPartialIDs(1))
}

func TestZoneInstanceVariantTimeTrialValidation(t *testing.T) {
	defs := emptyDefCatalog(t)
	src := newFakeSource()
	src.put("/data/ZoneInstanceVariant/bad.xml", `<ZoneInstanceVariant id="1" instanceID="1" subtype="time-trial" timePointCount="2"/>`)

	_, err := Load(src, defs)
	assert.Error(t, err)
}

func TestScriptMissingRequiredFunctionIsFatal(t *testing.T) {
	defs := emptyDefCatalog(t)
	src := newFakeSource()
	src.put("/scripts/ai/bogey.nut", "function define() {}\n")

	_, err := Load(src, defs)
	assert.Error(t, err)
}

func TestValidAIScriptLoads(t *testing.T) {
	defs := emptyDefCatalog(t)
	src := newFakeSource()
	src.put("/scripts/ai/bogey.nut", "function define() {}\nfunction prepare() {}\n")

	sd, err := Load(src, defs)
	require.NoError(t, err)
	s, ok := sd.Script("ai", "bogey")
	require.True(t, ok)
	assert.Equal(t, "bogey", s.Name)
}
