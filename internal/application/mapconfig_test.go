package application

import (
	"errors"
	"testing"

	"github.com/jobrunner/geoview/internal/domain"
)

func TestParseMapConfig(t *testing.T) {
	cfg, err := ParseMapConfig([]byte(`
name: china
name_property: NAME_ZH
special_areas:
  Hainan: {left: 100, top: 15, width: 5}
corrections:
  - type: offset_coord
    region: Hainan
    delta: [0.5, -0.5]
zoom_limit: {min: 1, max: 8}
`))
	if err != nil {
		t.Fatalf("ParseMapConfig() error = %v", err)
	}

	if cfg.Name != "china" || cfg.NameProperty != "NAME_ZH" {
		t.Errorf("cfg = %+v", cfg)
	}
	if area := cfg.SpecialAreas["Hainan"]; area.Left != 100 || area.Width != 5 || area.Height != 0 {
		t.Errorf("SpecialAreas[Hainan] = %+v", area)
	}

	steps, err := cfg.buildCorrections(cfg.Name)
	if err != nil {
		t.Fatalf("buildCorrections() error = %v", err)
	}
	// the china preset runs first, the sidecar step last
	if last := steps[len(steps)-1].Name(); last != "offset-coord:Hainan" {
		t.Errorf("last step = %q, want offset-coord:Hainan", last)
	}
	if len(steps) < 2 {
		t.Errorf("len(steps) = %d, want preset steps before the sidecar step", len(steps))
	}

	opts := cfg.loadOptions("name")
	if opts.Parse.NameProperty != "NAME_ZH" {
		t.Errorf("NameProperty = %q, want NAME_ZH", opts.Parse.NameProperty)
	}
}

func TestMapConfigPresets(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		mapName string
		want    int
	}{
		{"default by name", "", "world", 1},
		{"no default preset", "", "usa", 0},
		{"explicit empty list", "presets: []", "world", 0},
		{"explicit list", "presets: [world]", "usa", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseMapConfig([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("ParseMapConfig() error = %v", err)
			}
			steps, err := cfg.buildCorrections(tt.mapName)
			if err != nil {
				t.Fatalf("buildCorrections() error = %v", err)
			}
			if len(steps) != tt.want {
				t.Errorf("len(steps) = %d, want %d", len(steps), tt.want)
			}
		})
	}
}

func TestMapConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "nmae: typo"},
		{"wrong type", "aliases: [a, b]"},
		{"unknown preset", "presets: [mars]"},
		{"bad correction", "corrections: [{type: relocate, region: x}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseMapConfig([]byte(tt.yaml))
			if err == nil {
				_, err = cfg.buildCorrections("m")
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSidecarKeys(t *testing.T) {
	got := sidecarKeys("maps/world.geojson")
	if len(got) != 2 || got[0] != "maps/world.yaml" || got[1] != "maps/world.yml" {
		t.Errorf("sidecarKeys() = %v", got)
	}
}
