package zuul

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// InventoryFile is the Zuul inventory location relative to a job directory.
var InventoryFile = filepath.Join("zuul-info", "inventory.yaml")

// BuildsetKey identifies a buildset within a project.
type BuildsetKey struct {
	Project  string
	Buildset string
}

// Buildset returns all.vars.zuul.buildset from the job's inventory.
func Buildset(jobDir string) (string, bool) {
	doc, ok := readInventory(jobDir)
	if !ok {
		return "", false
	}
	return lookupString(doc, "all", "vars", "zuul", "buildset")
}

// ProjectCanonicalName returns all.vars.zuul.project.canonical_name from the job's inventory.
func ProjectCanonicalName(jobDir string) (string, bool) {
	doc, ok := readInventory(jobDir)
	if !ok {
		return "", false
	}
	return lookupString(doc, "all", "vars", "zuul", "project", "canonical_name")
}

// ReadBuildsetKey parses the inventory once and returns both project and buildset.
// It reports false when either is missing.
func ReadBuildsetKey(jobDir string) (BuildsetKey, bool) {
	doc, ok := readInventory(jobDir)
	if !ok {
		return BuildsetKey{}, false
	}
	buildset, ok := lookupString(doc, "all", "vars", "zuul", "buildset")
	if !ok {
		return BuildsetKey{}, false
	}
	project, ok := lookupString(doc, "all", "vars", "zuul", "project", "canonical_name")
	if !ok {
		return BuildsetKey{}, false
	}
	return BuildsetKey{Project: project, Buildset: buildset}, true
}

// readInventory loads the inventory document. Missing, unreadable and
// malformed files are all reported as absent.
func readInventory(jobDir string) (any, bool) {
	data, err := os.ReadFile(filepath.Join(jobDir, InventoryFile))
	if err != nil {
		return nil, false
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	return doc, doc != nil
}

// lookupString walks nested mappings along keys; every step may fail.
// Only a non-empty string leaf counts as present.
func lookupString(doc any, keys ...string) (string, bool) {
	node := doc
	for _, k := range keys {
		next, ok := child(node, k)
		if !ok {
			return "", false
		}
		node = next
	}
	s, ok := node.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func child(node any, key string) (any, bool) {
	switch m := node.(type) {
	case map[string]any:
		v, ok := m[key]
		return v, ok
	case map[any]any:
		v, ok := m[key]
		return v, ok
	default:
		return nil, false
	}
}
