package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/geo"
	"github.com/jobrunner/geoview/internal/ports/output"
)

// Conversion directions used in metrics and logs.
const (
	DirectionToPixel   = "to_pixel"
	DirectionFromPixel = "from_pixel"
)

// ConversionService converts between geographic and output space and
// answers region queries against the registered maps.
type ConversionService struct {
	registry    *MapRegistry
	metrics     output.MetricsCollector
	logger      *slog.Logger
	defaultView domain.Rect
	tracer      trace.Tracer
}

// NewConversionService creates a new conversion service. Requests without
// a view rect are fitted into defaultView.
func NewConversionService(
	registry *MapRegistry,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	defaultView domain.Rect,
) *ConversionService {
	return &ConversionService{
		registry:    registry,
		metrics:     metrics,
		logger:      logger,
		defaultView: defaultView,
		tracer:      otel.Tracer(tracerName),
	}
}

// ToPixel converts a named location or a longitude/latitude pair to output
// space. An unknown name yields Found=false rather than an error.
func (s *ConversionService) ToPixel(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	in := geo.Coord(req.Coord[0], req.Coord[1])
	if req.Name != "" {
		in = geo.Named(req.Name)
	}

	return s.convert(ctx, DirectionToPixel, req, func(cs *geo.CoordSys) (orb.Point, bool) {
		return cs.ConvertToPixel(s.registry, req.Finder, in)
	})
}

// FromPixel converts an output point to longitude/latitude.
func (s *ConversionService) FromPixel(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	pt := orb.Point{req.Coord[0], req.Coord[1]}

	return s.convert(ctx, DirectionFromPixel, req, func(cs *geo.CoordSys) (orb.Point, bool) {
		return cs.ConvertFromPixel(s.registry, req.Finder, pt)
	})
}

func (s *ConversionService) convert(
	ctx context.Context,
	direction string,
	req domain.ConversionRequest,
	fn func(cs *geo.CoordSys) (orb.Point, bool),
) (*domain.ConversionResult, error) {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "conversion."+direction)
	defer span.End()

	mapID, err := s.registry.ResolveFinder(req.Finder)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("map.id", mapID))

	viewRect, err := s.resolveView(req.View)
	if err != nil {
		return nil, err
	}
	if req.Roam.Zoom < 0 {
		return nil, &domain.ValidationError{
			Field:      "zoom",
			Value:      req.Roam.Zoom,
			Constraint: ">= 0",
			Message:    "zoom must not be negative",
		}
	}

	result := &domain.ConversionResult{MapID: mapID}
	err = s.registry.WithMap(mapID, func(cs *geo.CoordSys) error {
		roam := req.Roam
		if req.NoRoam {
			roam = domain.Roam{}
		}
		prepareView(cs, viewRect, roam)

		pt, ok := fn(cs)
		result.Found = ok
		result.Point = [2]float64{pt.X(), pt.Y()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.ProcessingTime = time.Since(start)
	span.SetAttributes(attribute.Bool("conversion.found", result.Found))
	s.metrics.IncConversionCount(mapID, direction, result.Found)
	s.metrics.ObserveConversionDuration(mapID, direction, result.ProcessingTime)

	s.logger.Debug("conversion completed",
		"map", mapID,
		"direction", direction,
		"found", result.Found,
		"duration", result.ProcessingTime,
	)
	return result, nil
}

// resolveView validates the requested view rect. A zero rect selects the
// configured default.
func (s *ConversionService) resolveView(r domain.Rect) (domain.Rect, error) {
	if r == (domain.Rect{}) {
		r = s.defaultView
	}
	if err := r.Validate(); err != nil {
		return domain.Rect{}, fmt.Errorf("%w: %v", domain.ErrInvalidViewRect, err)
	}
	return r, nil
}

// prepareView fits cs into viewRect when it changed since the last fit and
// applies the roam of this request.
func prepareView(cs *geo.CoordSys, viewRect domain.Rect, roam domain.Roam) {
	v := cs.View()
	if !v.ViewRect().Equal(viewRect, 0) || !v.BoundingRect().Equal(cs.BoundingRect(), 0) {
		cs.FitTo(viewRect.X, viewRect.Y, viewRect.Width, viewRect.Height)
	}

	if roam.Center != nil {
		v.SetCenter(roam.Center[0], roam.Center[1])
	} else {
		v.ResetCenter()
	}
	v.SetZoom(roam.Zoom)
}

// Regions lists the regions of a map in document order.
func (s *ConversionService) Regions(_ context.Context, mapID string) ([]domain.RegionInfo, error) {
	var infos []domain.RegionInfo
	err := s.registry.WithMap(mapID, func(cs *geo.CoordSys) error {
		regions := cs.Regions()
		infos = make([]domain.RegionInfo, 0, len(regions))
		for _, r := range regions {
			infos = append(infos, regionInfo(cs, r))
		}
		return nil
	})
	return infos, err
}

// Region returns one region by its resolved name.
func (s *ConversionService) Region(_ context.Context, mapID, name string) (*domain.RegionInfo, error) {
	var info *domain.RegionInfo
	err := s.registry.WithMap(mapID, func(cs *geo.CoordSys) error {
		r, ok := cs.Region(name)
		if !ok {
			return fmt.Errorf("%s: %w", name, domain.ErrRegionNotFound)
		}
		i := regionInfo(cs, r)
		info = &i
		return nil
	})
	return info, err
}

// RegionAt returns the first region in document order containing the
// coordinate.
func (s *ConversionService) RegionAt(_ context.Context, mapID string, lng, lat float64) (*domain.RegionInfo, error) {
	var info *domain.RegionInfo
	err := s.registry.WithMap(mapID, func(cs *geo.CoordSys) error {
		r, ok := cs.RegionAt(orb.Point{lng, lat})
		if !ok {
			return fmt.Errorf("no region at (%g, %g): %w", lng, lat, domain.ErrRegionNotFound)
		}
		i := regionInfo(cs, r)
		info = &i
		return nil
	})
	return info, err
}

// GeoCoord returns the label coordinate registered for a name.
func (s *ConversionService) GeoCoord(_ context.Context, mapID, name string) ([2]float64, error) {
	var coord [2]float64
	err := s.registry.WithMap(mapID, func(cs *geo.CoordSys) error {
		pt, ok := cs.GeoCoord(name)
		if !ok {
			return fmt.Errorf("%s: %w", name, domain.ErrRegionNotFound)
		}
		coord = [2]float64{pt.X(), pt.Y()}
		return nil
	})
	return coord, err
}

// Bounds returns the geographic bounding rect of a map.
func (s *ConversionService) Bounds(_ context.Context, mapID string) (domain.Rect, error) {
	var rect domain.Rect
	err := s.registry.WithMap(mapID, func(cs *geo.CoordSys) error {
		rect = cs.BoundingRect()
		return nil
	})
	return rect, err
}

// regionInfo snapshots r with the label coordinate registered for its
// name, which corrections may have moved away from the region center.
func regionInfo(cs *geo.CoordSys, r *geo.Region) domain.RegionInfo {
	info := r.Info()
	if indexed, ok := cs.Region(r.Name); ok && indexed == r {
		if pt, ok := cs.GeoCoord(r.Name); ok {
			info.Center = [2]float64{pt.X(), pt.Y()}
		}
	}
	return info
}
