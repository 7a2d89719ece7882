package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jobrunner/geoview/internal/application"
	"github.com/jobrunner/geoview/internal/domain"
)

// maxBodyBytes bounds conversion request bodies.
const maxBodyBytes = 1 << 20

// ConvertRequest is the body of the conversion endpoints.
type ConvertRequest struct {
	GeoID    string       `json:"geo_id,omitempty"`
	SeriesID string       `json:"series_id,omitempty"`
	View     *domain.Rect `json:"view,omitempty"`
	Name     string       `json:"name,omitempty"`
	Coord    *[2]float64  `json:"coord,omitempty"` // lng, lat (to-pixel)
	Point    *[2]float64  `json:"point,omitempty"` // x, y (from-pixel)
	Roam     *RoamRequest `json:"roam,omitempty"`
	NoRoam   bool         `json:"no_roam,omitempty"`
}

// RoamRequest is the optional pan and zoom of a conversion.
type RoamRequest struct {
	Center *[2]float64 `json:"center,omitempty"`
	Zoom   float64     `json:"zoom,omitempty"`
}

func (c *ConvertRequest) toDomain() domain.ConversionRequest {
	req := domain.ConversionRequest{
		Finder: domain.Finder{GeoID: c.GeoID, SeriesID: c.SeriesID},
		Name:   c.Name,
		NoRoam: c.NoRoam,
	}
	if c.View != nil {
		req.View = *c.View
	}
	if c.Roam != nil {
		req.Roam = domain.Roam{Center: c.Roam.Center, Zoom: c.Roam.Zoom}
	}
	return req
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	maps := make([]map[string]interface{}, 0)
	for _, m := range s.health.GetMapHealth(r.Context()) {
		entry := map[string]interface{}{
			"id":     m.ID,
			"status": m.Status,
			"ready":  m.Ready,
		}
		if m.Error != "" {
			entry["error"] = m.Error
		}
		maps = append(maps, entry)
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":      boolToStatus(details.Healthy),
		"ready":       details.Ready,
		"maps_loaded": details.MapsLoaded,
		"maps_ready":  details.MapsReady,
		"components":  details.Components,
		"maps":        maps,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListMaps returns all registered maps.
func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.registry.ListMaps(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list maps")
		return
	}

	response := make([]map[string]interface{}, len(maps))
	for i := range maps {
		response[i] = s.formatMap(r.Context(), &maps[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"maps":  response,
		"count": len(maps),
	})
}

// handleGetMap returns a specific map.
func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	m, err := s.registry.GetMap(r.Context(), mux.Vars(r)["mapId"])
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.formatMap(r.Context(), m))
}

// handleListRegions returns the regions of a map in document order.
func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	mapID := mux.Vars(r)["mapId"]

	regions, err := s.conversion.Regions(r.Context(), mapID)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	response := make([]map[string]interface{}, len(regions))
	for i := range regions {
		response[i] = formatRegion(&regions[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"map_id":  mapID,
		"regions": response,
		"count":   len(regions),
	})
}

// handleGetRegion returns one region by name.
func (s *Server) handleGetRegion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	region, err := s.conversion.Region(r.Context(), vars["mapId"], vars["name"])
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatRegion(region))
}

// handleGeoCoord returns the label coordinate of a name.
func (s *Server) handleGeoCoord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	coord, err := s.conversion.GeoCoord(r.Context(), vars["mapId"], vars["name"])
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"map_id": vars["mapId"],
		"name":   vars["name"],
		"coord":  coord,
	})
}

// handleRegionAt returns the region containing lng/lat.
func (s *Server) handleRegionAt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lng, err := parseFloatParam(q.Get("lng"), "lng")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lat, err := parseFloatParam(q.Get("lat"), "lat")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	region, err := s.conversion.RegionAt(r.Context(), mux.Vars(r)["mapId"], lng, lat)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatRegion(region))
}

// handleToPixel converts a name or lng/lat to output space.
func (s *Server) handleToPixel(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeConvertRequest(w, r)
	if !ok {
		return
	}
	if body.Name == "" && body.Coord == nil {
		s.writeError(w, http.StatusBadRequest, "name or coord is required")
		return
	}

	req := body.toDomain()
	if body.Coord != nil {
		req.Coord = *body.Coord
	}

	result, err := s.conversion.ToPixel(r.Context(), req)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatResult(result, "point"))
}

// handleFromPixel converts an output point to lng/lat.
func (s *Server) handleFromPixel(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeConvertRequest(w, r)
	if !ok {
		return
	}
	if body.Point == nil {
		s.writeError(w, http.StatusBadRequest, "point is required")
		return
	}

	req := body.toDomain()
	req.Coord = *body.Point

	result, err := s.conversion.FromPixel(r.Context(), req)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatResult(result, "coord"))
}

func (s *Server) decodeConvertRequest(w http.ResponseWriter, r *http.Request) (*ConvertRequest, bool) {
	var body ConvertRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if body.GeoID == "" && body.SeriesID == "" {
		s.writeError(w, http.StatusBadRequest, "geo_id or series_id is required")
		return nil, false
	}
	return &body, true
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncService == nil {
		s.writeError(w, http.StatusNotFound, "Sync service not available")
		return
	}

	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(application.TriggerCooldown.Seconds())))
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := openAPIDocument()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// formatMap formats a map for JSON output.
func (s *Server) formatMap(ctx context.Context, m *domain.Map) map[string]interface{} {
	status, _ := s.registry.GetMapStatus(ctx, m.ID)
	out := map[string]interface{}{
		"id":           m.ID,
		"name":         m.Name,
		"source":       m.Source,
		"format":       m.Format,
		"size":         m.Size,
		"status":       status,
		"region_count": m.RegionCount,
		"bounds":       m.Bounds,
		"corrections":  m.Corrections,
		"loaded_at":    m.LoadedAt,
	}
	if !m.License.IsEmpty() {
		out["license"] = map[string]interface{}{
			"name":        m.License.Name,
			"url":         m.License.URL,
			"attribution": m.License.Attribution,
		}
	}
	if err := s.registry.MapError(m.ID); err != nil {
		out["error"] = err.Error()
	}
	return out
}

func formatRegion(r *domain.RegionInfo) map[string]interface{} {
	return map[string]interface{}{
		"name":          r.Name,
		"center":        r.Center,
		"bounding_rect": r.BoundingRect,
		"polygons":      r.Polygons,
	}
}

// formatResult formats a conversion result; key names the converted value.
func formatResult(res *domain.ConversionResult, key string) map[string]interface{} {
	out := map[string]interface{}{
		"map_id":             res.MapID,
		"found":              res.Found,
		"processing_time_ms": res.ProcessingTime.Milliseconds(),
	}
	if res.Found {
		out[key] = res.Point
	} else {
		out[key] = nil
	}
	return out
}

// handleServiceError maps service errors to HTTP status codes.
func (s *Server) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrMapNotFound):
		s.writeError(w, http.StatusNotFound, "Map not found")
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Request failed")
	}
}

func parseFloatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s parameter is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
