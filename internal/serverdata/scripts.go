package serverdata

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/duskforge/channelcore/internal/servermodel"
)

// scriptDir maps a script subdirectory name to the ScriptType its contents
// must satisfy, mirroring ServerDataManager::LoadScripts' per-directory
// function requirements.
var scriptDir = map[string]servermodel.ScriptType{
	"ai":     servermodel.ScriptAI,
	"cond":   servermodel.ScriptCondition,
	"trans":  servermodel.ScriptTransform,
	"action": servermodel.ScriptCustomAction,
}

// validateScriptSource checks, per script category, the function names that
// must (or must not) appear in a script's source for it to be valid. The real
// `.nut` interpreter is an external collaborator; this validation only
// checks the textual contract the spec describes, not script semantics.
func validateScriptSource(category string, source string) error {
	has := func(fn string) bool { return strings.Contains(source, "function "+fn) }

	if !has("define") {
		return fmt.Errorf("script missing required define function")
	}
	switch category {
	case "ai":
		if !has("prepare") {
			return fmt.Errorf("ai script missing required prepare function")
		}
	case "cond":
		if !has("check") {
			return fmt.Errorf("condition/branch script missing required check function")
		}
	case "trans":
		if !has("transform") {
			return fmt.Errorf("transform script missing required transform function")
		}
		if has("prepare") {
			return fmt.Errorf("transform script must not define prepare")
		}
	case "action":
		if !has("run") {
			return fmt.Errorf("custom-action script missing required run function")
		}
	}
	return nil
}

func (sd *ServerData) loadScripts(src FileSource) error {
	for category, scriptType := range scriptDir {
		dir := dirScripts + "/" + category
		files, err := src.ListFiles(dir)
		if err != nil {
			// a category with no scripts directory at all is not an error,
			// mirroring ServerDataManager::LoadScripts discarding GetListing's
			// result and proceeding with whatever (possibly empty) list it got.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("serverdata: listing scripts %s: %w", dir, err)
		}
		for _, f := range files {
			if !strings.HasSuffix(f, ".nut") {
				continue
			}
			data, err := src.ReadFile(f)
			if err != nil {
				return fmt.Errorf("serverdata: reading script %s: %w", f, err)
			}
			source := string(data)
			if err := validateScriptSource(category, source); err != nil {
				return fmt.Errorf("serverdata: script %s: %w", f, err)
			}
			name := strings.TrimSuffix(f[strings.LastIndex(f, "/")+1:], ".nut")
			key := category + "/" + name
			if _, dup := sd.scripts[key]; dup {
				return fmt.Errorf("duplicate script %s in category %s", name, category)
			}
			sd.scripts[key] = &servermodel.Script{Name: name, Type: scriptType, Path: f, Source: source}
		}
	}
	return nil
}
