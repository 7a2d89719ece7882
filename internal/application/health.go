package application

import (
	"context"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry *MapRegistry
}

// NewHealthService creates a new health service.
func NewHealthService(registry *MapRegistry) *HealthService {
	return &HealthService{
		registry: registry,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true if no maps are configured or at least one map is
// ready for conversions.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.registry.MapCount() == 0 || len(s.registry.ReadyMapIDs()) > 0
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	components := map[string]string{
		"storage": "ok",
	}
	for _, m := range s.GetMapHealth(ctx) {
		if m.Status == domain.StatusError {
			components["maps"] = "degraded"
			break
		}
	}
	if _, ok := components["maps"]; !ok {
		components["maps"] = "ok"
	}

	return input.HealthDetails{
		Healthy:    s.IsHealthy(ctx),
		Ready:      s.IsReady(ctx),
		MapsLoaded: s.registry.MapCount(),
		MapsReady:  len(s.registry.ReadyMapIDs()),
		Components: components,
	}
}

// MapHealth contains health info for a single map.
type MapHealth struct {
	ID     string
	Status domain.MapStatus
	Ready  bool
	Error  string
}

// GetMapHealth returns health info for all maps.
func (s *HealthService) GetMapHealth(ctx context.Context) []MapHealth {
	maps, _ := s.registry.ListMaps(ctx)

	health := make([]MapHealth, 0, len(maps))
	for _, m := range maps {
		status, err := s.registry.GetMapStatus(ctx, m.ID)
		if err != nil {
			continue // unloaded in the meantime
		}
		h := MapHealth{
			ID:     m.ID,
			Status: status,
			Ready:  status == domain.StatusReady,
		}
		if loadErr := s.registry.MapError(m.ID); loadErr != nil {
			h.Error = loadErr.Error()
		}
		health = append(health, h)
	}
	return health
}
