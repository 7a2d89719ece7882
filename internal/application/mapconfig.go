package application

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/geo"
	"github.com/jobrunner/geoview/internal/view"
)

// MapConfig is the optional sidecar `<stem>.yaml` next to a boundary
// document.
type MapConfig struct {
	Name           string                        `yaml:"name"`
	NameProperty   string                        `yaml:"name_property"`
	CenterProperty string                        `yaml:"center_property"`
	Aliases        map[string]string             `yaml:"aliases"`
	SpecialAreas   map[string]domain.SpecialArea `yaml:"special_areas"`
	Presets        *[]string                     `yaml:"presets"`
	Corrections    []geo.CorrectionSpec          `yaml:"corrections"`
	Layer          string                        `yaml:"layer"`
	NameColumn     string                        `yaml:"name_column"`
	ZoomLimit      *ZoomLimitConfig              `yaml:"zoom_limit"`
	License        domain.License                `yaml:"license"`
}

// ZoomLimitConfig bounds the roam zoom of a map.
type ZoomLimitConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ParseMapConfig decodes a sidecar document. Unknown keys are rejected so
// that typos in correction specs surface at load time.
func ParseMapConfig(data []byte) (*MapConfig, error) {
	var cfg MapConfig
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &domain.ValidationError{Field: "sidecar", Message: err.Error()}
	}
	return &cfg, nil
}

// presetNames returns the presets to run. An explicit list in the sidecar
// wins, an empty list disables presets, and no list falls back to the
// presets registered for the map name.
func (c *MapConfig) presetNames(mapName string) []string {
	if c.Presets != nil {
		return *c.Presets
	}
	return geo.DefaultPresets(mapName)
}

// buildCorrections assembles the correction steps: presets first, then the
// sidecar's own corrections in file order.
func (c *MapConfig) buildCorrections(mapName string) ([]geo.Correction, error) {
	var steps []geo.Correction
	for _, name := range c.presetNames(mapName) {
		preset, ok := geo.Preset(name)
		if !ok {
			return nil, &domain.ValidationError{
				Field:   "presets",
				Message: fmt.Sprintf("unknown preset %q (known: %s)", name, strings.Join(geo.PresetNames(), ", ")),
			}
		}
		steps = append(steps, preset...)
	}

	for i, spec := range c.Corrections {
		step, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("corrections[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// coordSysOptions returns the constructor options for the map.
func (c *MapConfig) coordSysOptions(mapName string) ([]geo.Option, error) {
	steps, err := c.buildCorrections(mapName)
	if err != nil {
		return nil, err
	}

	opts := []geo.Option{geo.WithCorrections(steps...)}
	if c.ZoomLimit != nil {
		opts = append(opts, geo.WithZoomLimit(view.ZoomLimit{Min: c.ZoomLimit.Min, Max: c.ZoomLimit.Max}))
	}
	return opts, nil
}

// loadOptions returns the per-load inputs, falling back to defaultName for
// the name property.
func (c *MapConfig) loadOptions(defaultName string) geo.LoadOptions {
	nameProp := c.NameProperty
	if nameProp == "" {
		nameProp = defaultName
	}
	return geo.LoadOptions{
		Parse:        geo.ParseOptions{NameProperty: nameProp, CenterProperty: c.CenterProperty},
		Aliases:      c.Aliases,
		SpecialAreas: c.SpecialAreas,
	}
}

// sidecarKeys returns the candidate sidecar keys for a boundary key.
func sidecarKeys(key string) []string {
	stem := strings.TrimSuffix(key, path.Ext(key))
	return []string{stem + ".yaml", stem + ".yml"}
}
