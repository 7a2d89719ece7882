package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/ports/input"
	"github.com/jobrunner/geoview/internal/ports/output"
)

var (
	_ input.MapCatalog        = (*MapRegistry)(nil)
	_ input.ConversionService = (*ConversionService)(nil)
	_ input.HealthChecker     = (*HealthService)(nil)
)

// memStorage implements output.ObjectStorage over an in-memory key set.
type memStorage struct {
	mu          sync.Mutex
	objects     map[string][]byte
	modified    map[string]int64
	downloadErr error
	listErr     error
}

func newMemStorage() *memStorage {
	return &memStorage{
		objects:  make(map[string][]byte),
		modified: make(map[string]int64),
	}
}

func (m *memStorage) put(key, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(content)
	m.modified[key]++
}

func (m *memStorage) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.modified, key)
}

func (m *memStorage) List(_ context.Context) ([]output.StorageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	objects := make([]output.StorageObject, 0, len(m.objects))
	for key, data := range m.objects {
		objects = append(objects, output.StorageObject{
			Key:          key,
			Size:         int64(len(data)),
			LastModified: m.modified[key],
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *memStorage) Download(_ context.Context, key, dest string) error {
	m.mu.Lock()
	data, ok := m.objects[key]
	err := m.downloadErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func (m *memStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// mockExporter implements output.BoundaryExporter by returning a fixed
// document for every source.
type mockExporter struct {
	doc      string
	err      error
	lastPath string
	lastOpts output.ExportOptions
}

func (m *mockExporter) Layers(_ context.Context, _ string) ([]domain.Layer, error) {
	return []domain.Layer{{Name: "boundaries", GeometryType: "MULTIPOLYGON", SRID: domain.SRIDWGS84}}, nil
}

func (m *mockExporter) Export(_ context.Context, path string, opts output.ExportOptions) ([]byte, error) {
	m.lastPath = path
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.doc), nil
}

// recordingMetrics counts conversions and loads.
type recordingMetrics struct {
	output.NoOpMetrics
	mu          sync.Mutex
	conversions map[string]int
	loads       map[bool]int
	ready       int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{conversions: make(map[string]int), loads: make(map[bool]int)}
}

func (m *recordingMetrics) IncConversionCount(mapID, direction string, found bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversions[fmt.Sprintf("%s/%s/%v", mapID, direction, found)]++
}

func (m *recordingMetrics) IncMapLoads(_ string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[success]++
}

func (m *recordingMetrics) SetMapsReady(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = count
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRegistry() *MapRegistry {
	return NewMapRegistry(newMemStorage(), nil, &output.NoOpMetrics{}, testLogger(), RegistryConfig{})
}

// rectDoc returns a FeatureCollection with one rectangle feature per spec.
func rectDoc(rects ...rectSpec) string {
	var buf bytes.Buffer
	buf.WriteString(`{"type": "FeatureCollection", "features": [`)
	for i, r := range rects {
		if i > 0 {
			buf.WriteString(",")
		}
		x0, y0, x1, y1 := r.x, r.y, r.x+r.w, r.y+r.h
		fmt.Fprintf(&buf, `{"type": "Feature", "properties": {"name": %q}, "geometry": {"type": "Polygon", "coordinates": [[[%g, %g], [%g, %g], [%g, %g], [%g, %g], [%g, %g]]]}}`,
			r.name, x0, y0, x1, y0, x1, y1, x0, y1, x0, y0)
	}
	buf.WriteString("]}")
	return buf.String()
}

type rectSpec struct {
	name       string
	x, y, w, h float64
}
