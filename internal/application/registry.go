// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/geo"
	"github.com/jobrunner/geoview/internal/ports/output"
)

const tracerName = "github.com/jobrunner/geoview/internal/application"

// RegistryConfig holds the registry settings taken from configuration.
type RegistryConfig struct {
	CacheDir     string            // Local directory GeoPackage files are downloaded to
	NameProperty string            // Default feature name property
	Series       map[string]string // Series id -> map id
	Layer        string            // Default GeoPackage layer
	NameColumn   string            // Default GeoPackage name column
}

// MapRegistry manages loaded maps and their coordinate systems.
type MapRegistry struct {
	mu       sync.RWMutex
	maps     map[string]*mapEntry
	storage  output.ObjectStorage
	exporter output.BoundaryExporter
	metrics  output.MetricsCollector
	logger   *slog.Logger
	cfg      RegistryConfig
	loads    singleflight.Group
	tracer   trace.Tracer
}

type mapEntry struct {
	// mu serialises use of the coordinate system; cs itself is swapped
	// atomically so that Locate never needs mu.
	mu        sync.Mutex
	cs        atomic.Pointer[geo.CoordSys]
	Map       *domain.Map
	Status    domain.MapStatus
	Error     error
	localPath string
	version   string
}

// NewMapRegistry creates a new map registry. exporter may be nil, in which
// case GeoPackage sources are rejected.
func NewMapRegistry(
	storage output.ObjectStorage,
	exporter output.BoundaryExporter,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg RegistryConfig,
) *MapRegistry {
	if cfg.NameProperty == "" {
		cfg.NameProperty = geo.DefaultNameProperty
	}
	return &MapRegistry{
		maps:     make(map[string]*mapEntry),
		storage:  storage,
		exporter: exporter,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
	}
}

// LoadMap loads or reloads the map stored under key. Concurrent loads of
// the same map share one build.
func (r *MapRegistry) LoadMap(ctx context.Context, key string) error {
	id := deriveMapID(key)
	_, err, shared := r.loads.Do(id, func() (interface{}, error) {
		return nil, r.loadMap(ctx, id, key, "")
	})
	if shared {
		r.logger.Debug("joined in-flight map load", "map", id)
	}
	return err
}

func (r *MapRegistry) loadMap(ctx context.Context, id, key, version string) (err error) {
	ctx, span := r.tracer.Start(ctx, "registry.LoadMap",
		trace.WithAttributes(attribute.String("map.id", id), attribute.String("map.source", key)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	r.logger.Info("loading map", "map", id, "key", key)

	entry := r.ensureEntry(id, key)

	cs, m, localPath, err := r.build(ctx, id, key)
	duration := time.Since(start)
	r.metrics.ObserveLoadDuration(id, duration)
	r.metrics.IncMapLoads(id, err == nil)

	if err != nil {
		r.mu.Lock()
		entry.Error = err
		if entry.cs.Load() == nil {
			entry.Status = domain.StatusError
		}
		r.mu.Unlock()
		r.updateMetrics()
		r.logger.Error("failed to load map", "map", id, "key", key, "error", err)
		return err
	}

	entry.mu.Lock()
	entry.cs.Store(cs)
	entry.mu.Unlock()

	r.mu.Lock()
	entry.Map = m
	entry.Status = domain.StatusReady
	entry.Error = nil
	entry.localPath = localPath
	if version != "" {
		entry.version = version
	}
	r.mu.Unlock()

	r.metrics.SetRegions(id, m.RegionCount)
	r.updateMetrics()
	span.SetAttributes(attribute.Int("map.regions", m.RegionCount))
	r.logger.Info("map loaded", "map", id, "name", m.Name, "regions", m.RegionCount,
		"corrections", len(m.Corrections), "duration", duration)
	return nil
}

// ensureEntry registers a loading entry for id unless one exists already.
// An existing map keeps serving its previous coordinate system while it
// is rebuilt.
func (r *MapRegistry) ensureEntry(id, key string) *mapEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.maps[id]; ok {
		return entry
	}
	entry := &mapEntry{
		Map:    &domain.Map{ID: id, Name: id, Source: key, Format: formatOf(key)},
		Status: domain.StatusLoading,
	}
	r.maps[id] = entry
	r.updateMetricsLocked()
	return entry
}

// build reads the document and sidecar of a map and constructs its
// coordinate system.
func (r *MapRegistry) build(ctx context.Context, id, key string) (*geo.CoordSys, *domain.Map, string, error) {
	mc, err := r.readSidecar(ctx, key)
	if err != nil {
		return nil, nil, "", &domain.LoadError{MapID: id, Stage: "sidecar", Err: err}
	}

	doc, localPath, err := r.readDocument(ctx, key, mc)
	if err != nil {
		return nil, nil, "", &domain.LoadError{MapID: id, Stage: "read", Err: err}
	}

	name := mc.Name
	if name == "" {
		name = id
	}

	opts, err := mc.coordSysOptions(name)
	if err != nil {
		return nil, nil, "", &domain.LoadError{MapID: id, Stage: "sidecar", Err: err}
	}

	cs := geo.New(name, opts...)
	if err := cs.Load(doc, mc.loadOptions(r.cfg.NameProperty)); err != nil {
		var fe *domain.FormatError
		if errors.As(err, &fe) && fe.Source == "" {
			fe.Source = key
		}
		return nil, nil, "", &domain.LoadError{MapID: id, Stage: "parse", Err: err}
	}

	m := &domain.Map{
		ID:          id,
		Name:        name,
		Source:      key,
		Format:      formatOf(key),
		Size:        int64(len(doc)),
		RegionCount: cs.RegionCount(),
		Bounds:      cs.BoundingRect(),
		Corrections: cs.Corrections(),
		License:     mc.License,
		LoadedAt:    time.Now(),
	}
	return cs, m, localPath, nil
}

// readSidecar returns the sidecar of key, or an empty config when there is
// none.
func (r *MapRegistry) readSidecar(ctx context.Context, key string) (*MapConfig, error) {
	for _, candidate := range sidecarKeys(key) {
		exists, err := r.storage.Exists(ctx, candidate)
		if err != nil {
			return nil, &domain.StorageError{Operation: "exists", Key: candidate, Err: err}
		}
		if !exists {
			continue
		}

		data, err := r.readObject(ctx, candidate)
		if err != nil {
			return nil, err
		}
		return ParseMapConfig(data)
	}
	return &MapConfig{}, nil
}

// readDocument returns the GeoJSON document for key. GeoPackage sources
// are downloaded to the cache directory and exported first.
func (r *MapRegistry) readDocument(ctx context.Context, key string, mc *MapConfig) ([]byte, string, error) {
	if !output.IsGeoPackage(key) {
		data, err := r.readObject(ctx, key)
		return data, "", err
	}

	if r.exporter == nil {
		return nil, "", fmt.Errorf("%s: %w", key, domain.ErrUnsupportedSource)
	}

	localPath, ok := cacheFile(r.cfg.CacheDir, key)
	if !ok {
		return nil, "", &domain.ValidationError{
			Field:      "key",
			Value:      key,
			Constraint: "within_cache_dir",
			Message:    "storage key resolves outside the cache directory",
		}
	}
	start := time.Now()
	err := r.storage.Download(ctx, key, localPath)
	r.metrics.ObserveStorageDuration("download", time.Since(start))
	r.metrics.IncStorageOperations("download", err == nil)
	if err != nil {
		return nil, "", &domain.StorageError{Operation: "download", Key: key, Err: err}
	}

	opts := output.ExportOptions{Layer: mc.Layer, NameColumn: mc.NameColumn}
	if opts.Layer == "" {
		opts.Layer = r.cfg.Layer
	}
	if opts.NameColumn == "" {
		opts.NameColumn = r.cfg.NameColumn
	}
	if opts.NameColumn == "" {
		opts.NameColumn = r.cfg.NameProperty
	}

	doc, err := r.exporter.Export(ctx, localPath, opts)
	if err != nil {
		return nil, localPath, err
	}
	// the exporter writes names under the column name
	if mc.NameProperty == "" {
		mc.NameProperty = opts.NameColumn
	}
	return doc, localPath, nil
}

func (r *MapRegistry) readObject(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := func() ([]byte, error) {
		rc, err := r.storage.GetReader(ctx, key)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}()
	r.metrics.ObserveStorageDuration("read", time.Since(start))
	r.metrics.IncStorageOperations("read", err == nil)
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	return data, nil
}

// UnloadMap removes a map from the registry.
func (r *MapRegistry) UnloadMap(_ context.Context, id string) error {
	r.logger.Info("unloading map", "map", id)

	r.mu.Lock()
	entry, ok := r.maps[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrMapNotFound
	}
	entry.Status = domain.StatusUnloading
	delete(r.maps, id)
	r.mu.Unlock()

	entry.mu.Lock()
	entry.cs.Store(nil)
	entry.mu.Unlock()

	r.metrics.SetRegions(id, 0)
	r.updateMetrics()
	return nil
}

// ListMaps returns all registered maps ordered by ID.
func (r *MapRegistry) ListMaps(_ context.Context) ([]domain.Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	maps := make([]domain.Map, 0, len(r.maps))
	for _, entry := range r.maps {
		maps = append(maps, *entry.Map)
	}
	sort.Slice(maps, func(i, j int) bool { return maps[i].ID < maps[j].ID })
	return maps, nil
}

// GetMap returns a specific map by ID.
func (r *MapRegistry) GetMap(_ context.Context, id string) (*domain.Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.maps[id]
	if !ok {
		return nil, domain.ErrMapNotFound
	}
	m := *entry.Map
	return &m, nil
}

// GetMapStatus returns the status of a map.
func (r *MapRegistry) GetMapStatus(_ context.Context, id string) (domain.MapStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.maps[id]
	if !ok {
		return "", domain.ErrMapNotFound
	}
	return entry.Status, nil
}

// MapError returns the last load error of a map, if any.
func (r *MapRegistry) MapError(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.maps[id]; ok {
		return entry.Error
	}
	return nil
}

// IsReady returns true if a map is ready for conversions.
func (r *MapRegistry) IsReady(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.maps[id]
	return ok && entry.Status == domain.StatusReady
}

// ReadyMapIDs returns the IDs of all ready maps, sorted.
func (r *MapRegistry) ReadyMapIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.maps))
	for id, entry := range r.maps {
		if entry.Status == domain.StatusReady {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsLoaded returns true if a map with the given ID is registered.
func (r *MapRegistry) IsLoaded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.maps[id]
	return ok
}

// MapCount returns the number of registered maps.
func (r *MapRegistry) MapCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.maps)
}

// Locate implements geo.Locator. A GeoID addresses a map directly; a
// SeriesID is resolved through the configured series bindings.
func (r *MapRegistry) Locate(f domain.Finder) (*geo.CoordSys, bool) {
	id, ok := r.resolveFinder(f)
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	entry, ok := r.maps[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	cs := entry.cs.Load()
	return cs, cs != nil
}

// ResolveFinder returns the map ID a finder addresses.
func (r *MapRegistry) ResolveFinder(f domain.Finder) (string, error) {
	if f.IsZero() {
		return "", domain.ErrInvalidFinder
	}
	id, ok := r.resolveFinder(f)
	if !ok {
		return "", fmt.Errorf("%s: %w", f.SeriesID, domain.ErrSeriesNotFound)
	}
	return id, nil
}

func (r *MapRegistry) resolveFinder(f domain.Finder) (string, bool) {
	if f.GeoID != "" {
		return f.GeoID, true
	}
	if f.SeriesID != "" {
		id, ok := r.cfg.Series[f.SeriesID]
		return id, ok
	}
	return "", false
}

// WithMap runs fn with exclusive use of the map's coordinate system.
func (r *MapRegistry) WithMap(id string, fn func(cs *geo.CoordSys) error) error {
	r.mu.RLock()
	entry, ok := r.maps[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrMapNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	cs := entry.cs.Load()
	if cs == nil {
		return domain.ErrMapNotReady
	}
	return fn(cs)
}

// updateMetrics updates the metrics collector with current map counts.
func (r *MapRegistry) updateMetrics() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.updateMetricsLocked()
}

func (r *MapRegistry) updateMetricsLocked() {
	ready := 0
	for _, entry := range r.maps {
		if entry.Status == domain.StatusReady {
			ready++
		}
	}
	r.metrics.SetMapsLoaded(len(r.maps))
	r.metrics.SetMapsReady(ready)
}

// LoadAll loads all maps found in storage.
func (r *MapRegistry) LoadAll(ctx context.Context) error {
	r.logger.Info("loading all maps from storage")

	remote, err := r.listRemote(ctx)
	if err != nil {
		return err
	}

	for _, id := range sortedKeys(remote) {
		obj := remote[id]
		// failures are logged and recorded on the entry
		_ = r.loadMap(ctx, id, obj.key, obj.version)
	}
	return nil
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added    int
	Reloaded int
	Removed  int
}

// Sync synchronizes with storage: new maps are loaded, maps whose document
// or sidecar changed are reloaded, and maps no longer in storage are
// unloaded.
func (r *MapRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing maps from storage")

	remote, err := r.listRemote(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	stats := SyncStats{}
	for _, id := range sortedKeys(remote) {
		obj := remote[id]
		known, current := r.versionOf(id)
		if known && current == obj.version {
			r.logger.Debug("map unchanged, skipping", "map", id)
			continue
		}

		if err := r.loadMap(ctx, id, obj.key, obj.version); err != nil {
			continue
		}
		if known {
			stats.Reloaded++
			r.logger.Info("changed map reloaded", "map", id)
		} else {
			stats.Added++
			r.logger.Info("new map synced", "map", id)
		}
	}

	for _, id := range r.findMapsToRemove(remote) {
		r.logger.Info("removing map not in storage", "map", id)
		localPath := r.cachedPath(id)

		if err := r.UnloadMap(ctx, id); err != nil {
			r.logger.Error("failed to unload removed map", "map", id, "error", err)
			continue
		}

		if localPath != "" {
			if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
				r.logger.Warn("failed to delete local cache file", "path", localPath, "error", err)
			}
		}
		stats.Removed++
	}

	r.logger.Info("sync completed", "added", stats.Added, "reloaded", stats.Reloaded,
		"removed", stats.Removed, "total", r.MapCount())
	return stats, nil
}

type remoteMap struct {
	key     string
	version string
}

// listRemote groups the storage listing by map ID. The version combines
// the document and sidecar fingerprints.
func (r *MapRegistry) listRemote(ctx context.Context) (map[string]remoteMap, error) {
	start := time.Now()
	objects, err := r.storage.List(ctx)
	r.metrics.ObserveStorageDuration("list", time.Since(start))
	r.metrics.IncStorageOperations("list", err == nil)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}

	docs := make(map[string]remoteMap)
	sidecars := make(map[string]string)
	for _, obj := range objects {
		stem := stemOf(obj.Key)
		switch {
		case output.IsBoundaryFile(obj.Key):
			if prev, ok := docs[deriveMapID(obj.Key)]; ok {
				r.logger.Warn("duplicate map id, keeping first", "map", deriveMapID(obj.Key),
					"kept", prev.key, "ignored", obj.Key)
				continue
			}
			docs[deriveMapID(obj.Key)] = remoteMap{key: obj.Key, version: fingerprint(obj)}
		case output.IsSidecarFile(obj.Key):
			sidecars[stem] = fingerprint(obj)
		}
	}

	for id, doc := range docs {
		if sc, ok := sidecars[stemOf(doc.key)]; ok {
			doc.version += "+" + sc
			docs[id] = doc
		}
	}
	return docs, nil
}

func (r *MapRegistry) versionOf(id string) (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.maps[id]
	if !ok {
		return false, ""
	}
	return true, entry.version
}

// findMapsToRemove returns map IDs that are loaded but not in storage.
func (r *MapRegistry) findMapsToRemove(remote map[string]remoteMap) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for id := range r.maps {
		if _, exists := remote[id]; !exists {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toRemove)
	return toRemove
}

// cachedPath returns the local GeoPackage copy of a map, if any.
func (r *MapRegistry) cachedPath(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.maps[id]
	if !ok || entry.localPath == "" {
		return ""
	}
	// never remove files outside the cache directory
	if !withinDir(r.cfg.CacheDir, entry.localPath) {
		return ""
	}
	return entry.localPath
}

// cacheFile returns the cache location of a storage key and whether it
// stays inside dir.
func cacheFile(dir, key string) (string, bool) {
	p := filepath.Join(dir, filepath.FromSlash(key))
	return p, withinDir(dir, p)
}

// withinDir reports whether p lies strictly below dir.
func withinDir(dir, p string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func fingerprint(obj output.StorageObject) string {
	if obj.ETag != "" {
		return obj.ETag
	}
	return strconv.FormatInt(obj.LastModified, 10) + ":" + strconv.FormatInt(obj.Size, 10)
}

func sortedKeys(m map[string]remoteMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatOf(key string) domain.Format {
	if output.IsGeoPackage(key) {
		return domain.FormatGeoPackage
	}
	return domain.FormatGeoJSON
}

// stemOf strips the extension from a key, keeping directories.
func stemOf(key string) string {
	key = filepath.ToSlash(key)
	return key[:len(key)-len(path.Ext(key))]
}

// deriveMapID extracts a map ID from a file path or object key.
func deriveMapID(key string) string {
	base := path.Base(filepath.ToSlash(key))
	ext := path.Ext(base)
	return base[:len(base)-len(ext)]
}
