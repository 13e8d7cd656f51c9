package theme

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ThemeFile is the on-disk schema of one theme definition. The file for
// theme "oceanic" lives at <dir>/oceanic.yaml.
type ThemeFile struct {
	// Name is the theme ID and must match the file name.
	Name string `yaml:"name" validate:"required"`

	// Variables are theme-wide values shared by every mode.
	Variables map[string]string `yaml:"variables,omitempty"`

	// Modes maps a color mode to its definition. At least one mode is
	// required.
	Modes map[ColorMode]ModeDef `yaml:"modes" validate:"required,min=1"`
}

// ModeDef is the per-color-mode section of a theme file.
type ModeDef struct {
	// Variables override or extend the theme-wide values for this mode.
	Variables map[string]string `yaml:"variables,omitempty"`

	// Contexts hold per-context overrides layered on top of the mode
	// variables. The "default" context is the mode itself.
	Contexts map[string]map[string]string `yaml:"contexts,omitempty"`
}

// DirResolver resolves descriptors from YAML theme files in a directory.
type DirResolver struct {
	dir      string
	validate *validator.Validate
}

// NewDirResolver creates a resolver rooted at dir.
func NewDirResolver(dir string) *DirResolver {
	return &DirResolver{
		dir:      dir,
		validate: validator.New(),
	}
}

// Dir returns the resolver's theme directory.
func (r *DirResolver) Dir() string {
	return r.dir
}

// ResolveVariables implements Resolver. Variable sets are layered: theme-wide
// values, then the mode's values, then the requested context's overrides.
func (r *DirResolver) ResolveVariables(_ context.Context, desc Descriptor) (VariableSet, error) {
	if desc.ThemeID == "" {
		return nil, fmt.Errorf("empty theme ID")
	}
	if strings.ContainsAny(desc.ThemeID, `/\`) || desc.ThemeID == ".." {
		return nil, fmt.Errorf("invalid theme ID %q", desc.ThemeID)
	}
	if err := desc.ColorMode.Validate(); err != nil {
		return nil, err
	}

	tf, err := r.loadFile(desc.ThemeID)
	if err != nil {
		return nil, err
	}

	mode, ok := tf.Modes[desc.ColorMode]
	if !ok {
		return nil, fmt.Errorf("theme %s does not define mode %s", desc.ThemeID, desc.ColorMode)
	}

	vars := make(VariableSet, len(tf.Variables)+len(mode.Variables))
	for k, v := range tf.Variables {
		vars[k] = v
	}
	for k, v := range mode.Variables {
		vars[k] = v
	}

	ctxName := desc.Context
	if ctxName == "" {
		ctxName = "default"
	}
	if overrides, ok := mode.Contexts[ctxName]; ok {
		for k, v := range overrides {
			vars[k] = v
		}
	} else if ctxName != "default" {
		return nil, fmt.Errorf("theme %s mode %s does not define context %s", desc.ThemeID, desc.ColorMode, ctxName)
	}

	return vars, nil
}

// ListThemes returns the theme IDs resolvable from the directory, sorted.
func (r *DirResolver) ListThemes() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read theme directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
			names = append(names, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load parses and validates a theme file without resolving a descriptor.
// Used by glaze validate and by the watcher.
func (r *DirResolver) Load(themeID string) (*ThemeFile, error) {
	return r.loadFile(themeID)
}

func (r *DirResolver) loadFile(themeID string) (*ThemeFile, error) {
	path := filepath.Join(r.dir, themeID+".yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		alt := filepath.Join(r.dir, themeID+".yml")
		data, err = os.ReadFile(alt)
	}
	if err != nil {
		return nil, fmt.Errorf("read theme %s: %w", themeID, err)
	}

	var tf ThemeFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse theme %s: %w", themeID, err)
	}
	if err := r.validate.Struct(&tf); err != nil {
		return nil, fmt.Errorf("invalid theme %s: %w", themeID, err)
	}
	if tf.Name != themeID {
		return nil, fmt.Errorf("theme file %s declares name %q", themeID, tf.Name)
	}
	for mode := range tf.Modes {
		if err := mode.Validate(); err != nil {
			return nil, fmt.Errorf("theme %s: %w", themeID, err)
		}
	}
	return &tf, nil
}
