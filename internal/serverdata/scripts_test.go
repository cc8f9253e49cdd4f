package serverdata

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskforge/channelcore/internal/servermodel"
)

// missingDirSource mimics internal/datastore.Store's real contract: ListFiles
// on a directory no search path has wraps fs.ErrNotExist, rather than
// returning (nil, nil).
type missingDirSource struct {
	files map[string][]byte
}

func (f *missingDirSource) ReadFile(path string) ([]byte, error) {
	b, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("missingDirSource: no file %s", path)
	}
	return b, nil
}

func (f *missingDirSource) ListFiles(dir string) ([]string, error) {
	var out []string
	found := false
	for path := range f.files {
		if len(path) > len(dir)+1 && path[:len(dir)+1] == dir+"/" {
			out = append(out, path)
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("listing %s: %w", dir, fs.ErrNotExist)
	}
	return out, nil
}

func TestLoadScriptsTreatsMissingCategoryDirectoryAsEmpty(t *testing.T) {
	src := &missingDirSource{files: map[string][]byte{
		"/scripts/ai/boss.nut": []byte("function define(){}\nfunction prepare(){}"),
	}}

	sd := &ServerData{scripts: make(map[string]*servermodel.Script)}
	require.NoError(t, sd.loadScripts(src))

	assert.Len(t, sd.scripts, 1)
	assert.Contains(t, sd.scripts, "ai/boss")
}

func TestLoadScriptsPropagatesRealIOErrors(t *testing.T) {
	src := &erroringSource{err: fmt.Errorf("disk offline")}

	sd := &ServerData{scripts: make(map[string]*servermodel.Script)}
	err := sd.loadScripts(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk offline")
}

type erroringSource struct{ err error }

func (e *erroringSource) ReadFile(path string) ([]byte, error) { return nil, e.err }
func (e *erroringSource) ListFiles(dir string) ([]string, error) { return nil, e.err }
