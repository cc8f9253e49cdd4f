// Package catalog implements the binary definition catalog: boot-time
// loading of fixed binary tables into primary and secondary indices, per
// spec section 4.B.
package catalog

import (
	"fmt"

	"github.com/duskforge/channelcore/internal/catalogmodel"
	"github.com/duskforge/channelcore/internal/codec"
)

// FileSource is the subset of the data store a catalog load needs: plain and
// decrypting reads. internal/datastore.Store satisfies this structurally.
type FileSource interface {
	ReadFile(path string) ([]byte, error)
	DecryptFile(path string) ([]byte, error)
}

// RowParser decodes one table record given its per-record dynamic-size
// hints. Translated from DefinitionManager's `LoadBinaryData<T>` C++
// template into a plain Go function value.
type RowParser func(r *codec.Reader, hints []uint16) (catalogmodel.Record, error)

// tableSpec describes one binary table file.
type tableSpec struct {
	path               string
	encrypted          bool
	expectedTableCount int // 0 means "don't assert"
	parse              RowParser
}

// loadTable reads path's header (`u16 entry_count, u16 table_count`, then
// `entry_count*table_count` u16 hints), then parses entry_count records.
// Any parse failure is fatal — the caller treats it as a boot error.
func loadTable(src FileSource, spec tableSpec) ([]catalogmodel.Record, error) {
	var raw []byte
	var err error
	if spec.encrypted {
		raw, err = src.DecryptFile(spec.path)
	} else {
		raw, err = src.ReadFile(spec.path)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: loading table %s: %w", spec.path, err)
	}

	r := codec.NewReader(raw)
	entryCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("catalog: table %s: reading entry_count: %w", spec.path, err)
	}
	tableCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("catalog: table %s: reading table_count: %w", spec.path, err)
	}
	if spec.expectedTableCount != 0 && int(tableCount) != spec.expectedTableCount {
		return nil, fmt.Errorf("catalog: table %s: expected table_count %d, got %d", spec.path, spec.expectedTableCount, tableCount)
	}

	hints := make([][]uint16, entryCount)
	for i := range hints {
		row := make([]uint16, tableCount)
		for j := range row {
			v, err := r.ReadU16()
			if err != nil {
				return nil, fmt.Errorf("catalog: table %s: reading size hint [%d][%d]: %w", spec.path, i, j, err)
			}
			row[j] = v
		}
		hints[i] = row
	}

	records := make([]catalogmodel.Record, entryCount)
	for i := range records {
		rec, err := spec.parse(r, hints[i])
		if err != nil {
			return nil, fmt.Errorf("catalog: table %s: parsing record %d: %w", spec.path, i, err)
		}
		records[i] = rec
	}
	return records, nil
}
