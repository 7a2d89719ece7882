package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/geo"
	"github.com/jobrunner/geoview/internal/ports/output"
)

func TestMapRegistryLoadUnload(t *testing.T) {
	store := newMemStorage()
	store.put("maps/world.geojson", rectDoc(
		rectSpec{"France", 0, 40, 8, 10},
		rectSpec{"Spain", -9, 36, 12, 7},
	))
	metrics := newRecordingMetrics()
	registry := NewMapRegistry(store, nil, metrics, testLogger(), RegistryConfig{})
	ctx := context.Background()

	if err := registry.LoadMap(ctx, "maps/world.geojson"); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	m, err := registry.GetMap(ctx, "world")
	if err != nil {
		t.Fatalf("GetMap() error = %v", err)
	}
	if m.RegionCount != 2 {
		t.Errorf("RegionCount = %d, want 2", m.RegionCount)
	}
	if m.Format != domain.FormatGeoJSON {
		t.Errorf("Format = %q, want %q", m.Format, domain.FormatGeoJSON)
	}
	if want := domain.NewRect(-9, 36, 17, 14); !m.Bounds.Equal(want, 1e-9) {
		t.Errorf("Bounds = %v, want %v", m.Bounds, want)
	}
	// a map named world runs the world preset
	if len(m.Corrections) != 1 {
		t.Errorf("Corrections = %v, want the world preset", m.Corrections)
	}
	if !registry.IsReady("world") {
		t.Error("IsReady(world) = false, want true")
	}
	if metrics.loads[true] != 1 || metrics.ready != 1 {
		t.Errorf("metrics loads = %v ready = %d", metrics.loads, metrics.ready)
	}

	if err := registry.UnloadMap(ctx, "world"); err != nil {
		t.Fatalf("UnloadMap() error = %v", err)
	}
	maps, _ := registry.ListMaps(ctx)
	if len(maps) != 0 {
		t.Errorf("len(maps) = %d, want 0", len(maps))
	}
	if _, ok := registry.Locate(domain.Finder{GeoID: "world"}); ok {
		t.Error("Locate() found an unloaded map")
	}
}

func TestMapRegistrySidecar(t *testing.T) {
	store := newMemStorage()
	store.put("usa.json", `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "properties": {"NAME": "Alaska"},
		 "geometry": {"type": "Polygon", "coordinates": [[[-170, 52], [-130, 52], [-130, 72], [-170, 72], [-170, 52]]]}},
		{"type": "Feature", "properties": {"NAME": "Texas"},
		 "geometry": {"type": "Polygon", "coordinates": [[[-106, 26], [-94, 26], [-94, 36], [-106, 36], [-106, 26]]]}}
	]}`)
	store.put("usa.yaml", `
name: usa
name_property: NAME
aliases:
  Texas: TX
special_areas:
  Alaska:
    left: -131
    top: 25
    width: 15
corrections:
  - type: set_coord
    region: TX
    coord: [-99, 31]
license:
  name: Public Domain
`)
	registry := NewMapRegistry(store, nil, &output.NoOpMetrics{}, testLogger(), RegistryConfig{})
	ctx := context.Background()

	if err := registry.LoadMap(ctx, "usa.json"); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	m, _ := registry.GetMap(ctx, "usa")
	if m.License.Name != "Public Domain" {
		t.Errorf("License = %+v", m.License)
	}
	if len(m.Corrections) != 1 || m.Corrections[0] != "set-coord:TX" {
		t.Errorf("Corrections = %v, want [set-coord:TX]", m.Corrections)
	}

	err := registry.WithMap("usa", func(cs *geo.CoordSys) error {
		if _, ok := cs.Region("Texas"); ok {
			t.Error("raw name Texas still indexed")
		}
		if pt, ok := cs.GeoCoord("TX"); !ok || pt.X() != -99 || pt.Y() != 31 {
			t.Errorf("GeoCoord(TX) = %v, %v", pt, ok)
		}
		alaska, ok := cs.Region("Alaska")
		if !ok {
			t.Fatal("Alaska not indexed")
		}
		// 40x20 degrees scaled to width 15 keeps the aspect: height 7.5
		if want := domain.NewRect(-131, 25, 15, 7.5); !alaska.BoundingRect().Equal(want, 1e-9) {
			t.Errorf("Alaska rect = %v, want %v", alaska.BoundingRect(), want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithMap() error = %v", err)
	}
}

func TestMapRegistryLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		objects map[string]string
		key     string
		wantErr error
		stage   string
	}{
		{
			name:    "invalid document",
			objects: map[string]string{"bad.geojson": `{"type": "Feature"}`},
			key:     "bad.geojson",
			wantErr: domain.ErrInvalidFormat,
			stage:   "parse",
		},
		{
			name:    "missing object",
			objects: map[string]string{},
			key:     "gone.geojson",
			wantErr: domain.ErrNotFound,
			stage:   "read",
		},
		{
			name: "invalid sidecar",
			objects: map[string]string{
				"m.geojson": rectDoc(rectSpec{"a", 0, 0, 1, 1}),
				"m.yaml":    "presets: [atlantis]",
			},
			key:     "m.geojson",
			wantErr: domain.ErrInvalidInput,
			stage:   "sidecar",
		},
		{
			name: "unknown sidecar key",
			objects: map[string]string{
				"m.geojson": rectDoc(rectSpec{"a", 0, 0, 1, 1}),
				"m.yml":     "colour: red",
			},
			key:     "m.geojson",
			wantErr: domain.ErrInvalidInput,
			stage:   "sidecar",
		},
		{
			name:    "geopackage without exporter",
			objects: map[string]string{"m.gpkg": "SQLite format 3"},
			key:     "m.gpkg",
			wantErr: domain.ErrUnsupported,
			stage:   "read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStorage()
			for k, v := range tt.objects {
				store.put(k, v)
			}
			registry := NewMapRegistry(store, nil, &output.NoOpMetrics{}, testLogger(), RegistryConfig{CacheDir: t.TempDir()})

			err := registry.LoadMap(context.Background(), tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LoadMap() error = %v, want %v", err, tt.wantErr)
			}
			var loadErr *domain.LoadError
			if !errors.As(err, &loadErr) || loadErr.Stage != tt.stage {
				t.Errorf("LoadMap() error = %v, want stage %q", err, tt.stage)
			}

			id := deriveMapID(tt.key)
			status, _ := registry.GetMapStatus(context.Background(), id)
			if status != domain.StatusError {
				t.Errorf("status = %q, want %q", status, domain.StatusError)
			}
			if registry.MapError(id) == nil {
				t.Error("MapError() = nil after a failed load")
			}
		})
	}
}

func TestMapRegistryFailedReloadKeepsMap(t *testing.T) {
	store := newMemStorage()
	store.put("m.geojson", rectDoc(rectSpec{"a", 0, 0, 1, 1}))
	registry := NewMapRegistry(store, nil, &output.NoOpMetrics{}, testLogger(), RegistryConfig{})
	ctx := context.Background()

	if err := registry.LoadMap(ctx, "m.geojson"); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	before, _ := registry.Locate(domain.Finder{GeoID: "m"})

	store.put("m.geojson", "not json")
	if err := registry.LoadMap(ctx, "m.geojson"); err == nil {
		t.Fatal("LoadMap() error = nil for a broken document")
	}

	after, ok := registry.Locate(domain.Finder{GeoID: "m"})
	if !ok || after != before {
		t.Error("failed reload replaced the serving coordinate system")
	}
	if !registry.IsReady("m") {
		t.Error("IsReady(m) = false after failed reload")
	}
}

func TestMapRegistryGeoPackage(t *testing.T) {
	store := newMemStorage()
	store.put("admin/regions.gpkg", "SQLite format 3")
	// exported features carry their names under the configured column
	exporter := &mockExporter{doc: strings.ReplaceAll(rectDoc(rectSpec{"a", 0, 0, 2, 2}), `"name"`, `"nom"`)}
	cacheDir := t.TempDir()
	registry := NewMapRegistry(store, exporter, &output.NoOpMetrics{}, testLogger(), RegistryConfig{
		CacheDir:   cacheDir,
		Layer:      "boundaries",
		NameColumn: "nom",
	})

	if err := registry.LoadMap(context.Background(), "admin/regions.gpkg"); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	m, _ := registry.GetMap(context.Background(), "regions")
	if m.Format != domain.FormatGeoPackage {
		t.Errorf("Format = %q, want %q", m.Format, domain.FormatGeoPackage)
	}
	if exporter.lastOpts.Layer != "boundaries" || exporter.lastOpts.NameColumn != "nom" {
		t.Errorf("export options = %+v", exporter.lastOpts)
	}
	if exporter.lastPath == "" {
		t.Error("exporter was not given the downloaded file")
	}
	if m.RegionCount != 1 {
		t.Errorf("RegionCount = %d, want 1", m.RegionCount)
	}
	err := registry.WithMap("regions", func(cs *geo.CoordSys) error {
		if _, ok := cs.Region("a"); !ok {
			t.Error("region a not indexed under the name column")
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithMap() error = %v", err)
	}
}

func TestMapRegistryGeoPackageKeyOutsideCache(t *testing.T) {
	root := t.TempDir()
	cacheDir := filepath.Join(root, "cache")
	store := newMemStorage()
	store.put("../escape.gpkg", "SQLite format 3")
	exporter := &mockExporter{doc: rectDoc(rectSpec{"a", 0, 0, 1, 1})}
	registry := NewMapRegistry(store, exporter, &output.NoOpMetrics{}, testLogger(), RegistryConfig{CacheDir: cacheDir})

	err := registry.LoadMap(context.Background(), "../escape.gpkg")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("LoadMap() error = %v, want ErrInvalidInput", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "escape.gpkg")); !os.IsNotExist(statErr) {
		t.Errorf("file written outside the cache directory, stat error = %v", statErr)
	}
	if exporter.lastPath != "" {
		t.Errorf("exporter called with %q", exporter.lastPath)
	}
}

func TestWithinDir(t *testing.T) {
	dir := filepath.Join("var", "cache")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "a.gpkg"), true},
		{filepath.Join(dir, "nested", "a.gpkg"), true},
		{filepath.Join(dir, "..", "a.gpkg"), false},
		{filepath.Join("var", "cache2", "a.gpkg"), false},
		{dir, false},
		{filepath.Join(dir, "..a.gpkg"), true},
	}

	for _, tt := range tests {
		if got := withinDir(dir, tt.path); got != tt.want {
			t.Errorf("withinDir(%q, %q) = %v, want %v", dir, tt.path, got, tt.want)
		}
	}
	if withinDir("", "a.gpkg") {
		t.Error("withinDir with an empty dir = true, want false")
	}
}

func TestMapRegistryGetMapNotFound(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	if _, err := registry.GetMap(ctx, "nonexistent"); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("GetMap() error = %v, want %v", err, domain.ErrMapNotFound)
	}
	if _, err := registry.GetMapStatus(ctx, "nonexistent"); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("GetMapStatus() error = %v, want %v", err, domain.ErrMapNotFound)
	}
	if err := registry.UnloadMap(ctx, "nonexistent"); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("UnloadMap() error = %v, want %v", err, domain.ErrMapNotFound)
	}
	if err := registry.WithMap("nonexistent", func(*geo.CoordSys) error { return nil }); !errors.Is(err, domain.ErrMapNotFound) {
		t.Errorf("WithMap() error = %v, want %v", err, domain.ErrMapNotFound)
	}
}

func TestMapRegistryIsReady(t *testing.T) {
	registry := newTestRegistry()

	registry.mu.Lock()
	registry.maps["ready"] = &mapEntry{Map: &domain.Map{ID: "ready"}, Status: domain.StatusReady}
	registry.maps["loading"] = &mapEntry{Map: &domain.Map{ID: "loading"}, Status: domain.StatusLoading}
	registry.mu.Unlock()

	tests := []struct {
		mapID string
		want  bool
	}{
		{"ready", true},
		{"loading", false},
		{"nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.mapID, func(t *testing.T) {
			if got := registry.IsReady(tt.mapID); got != tt.want {
				t.Errorf("IsReady(%q) = %v, want %v", tt.mapID, got, tt.want)
			}
		})
	}

	if ids := registry.ReadyMapIDs(); len(ids) != 1 || ids[0] != "ready" {
		t.Errorf("ReadyMapIDs() = %v, want [ready]", ids)
	}
	if err := registry.WithMap("loading", func(*geo.CoordSys) error { return nil }); !errors.Is(err, domain.ErrMapNotReady) {
		t.Errorf("WithMap(loading) error = %v, want %v", err, domain.ErrMapNotReady)
	}
}

func TestMapRegistryLocate(t *testing.T) {
	store := newMemStorage()
	store.put("a.geojson", rectDoc(rectSpec{"x", 0, 0, 1, 1}))
	store.put("b.geojson", rectDoc(rectSpec{"y", 5, 5, 1, 1}))
	registry := NewMapRegistry(store, nil, &output.NoOpMetrics{}, testLogger(), RegistryConfig{
		Series: map[string]string{"sales": "b", "orphan": "missing"},
	})
	if err := registry.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	a, _ := registry.Locate(domain.Finder{GeoID: "a"})
	b, _ := registry.Locate(domain.Finder{GeoID: "b"})
	if a == nil || b == nil || a == b {
		t.Fatalf("Locate() returned a=%p b=%p", a, b)
	}

	tests := []struct {
		name   string
		finder domain.Finder
		want   *geo.CoordSys
	}{
		{"geo id", domain.Finder{GeoID: "a"}, a},
		{"series binding", domain.Finder{SeriesID: "sales"}, b},
		{"geo id wins over series", domain.Finder{GeoID: "a", SeriesID: "sales"}, a},
		{"unknown series", domain.Finder{SeriesID: "nope"}, nil},
		{"series bound to missing map", domain.Finder{SeriesID: "orphan"}, nil},
		{"unknown map", domain.Finder{GeoID: "c"}, nil},
		{"zero finder", domain.Finder{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := registry.Locate(tt.finder)
			if ok != (tt.want != nil) || got != tt.want {
				t.Errorf("Locate(%+v) = %p, %v, want %p", tt.finder, got, ok, tt.want)
			}
		})
	}

	if _, err := registry.ResolveFinder(domain.Finder{}); !errors.Is(err, domain.ErrInvalidFinder) {
		t.Errorf("ResolveFinder(zero) error = %v, want %v", err, domain.ErrInvalidFinder)
	}
	if _, err := registry.ResolveFinder(domain.Finder{SeriesID: "nope"}); !errors.Is(err, domain.ErrSeriesNotFound) {
		t.Errorf("ResolveFinder(nope) error = %v, want %v", err, domain.ErrSeriesNotFound)
	}
}

func TestMapRegistryConcurrentLoads(t *testing.T) {
	store := newMemStorage()
	store.put("m.geojson", rectDoc(rectSpec{"a", 0, 0, 1, 1}))
	registry := NewMapRegistry(store, nil, &output.NoOpMetrics{}, testLogger(), RegistryConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := registry.LoadMap(context.Background(), "m.geojson"); err != nil {
				t.Errorf("LoadMap() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if registry.MapCount() != 1 {
		t.Errorf("MapCount() = %d, want 1", registry.MapCount())
	}
	if !registry.IsReady("m") {
		t.Error("IsReady(m) = false after concurrent loads")
	}
}

func TestDeriveMapID(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"world.geojson", "world"},
		{"maps/china.json", "china"},
		{"nested/dir/admin.gpkg", "admin"},
		{"noext", "noext"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := deriveMapID(tt.key); got != tt.want {
				t.Errorf("deriveMapID(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
