package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jobrunner/geoview/internal/ports/output"
)

var _ output.MetricsCollector = (*Collector)(nil)

func TestCollectorConversions(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.IncConversionCount("world", "to_pixel", true)
	c.IncConversionCount("world", "to_pixel", true)
	c.IncConversionCount("world", "to_pixel", false)

	if got := testutil.ToFloat64(c.conversions.WithLabelValues("world", "to_pixel", "found")); got != 2 {
		t.Errorf("found conversions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.conversions.WithLabelValues("world", "to_pixel", "not_found")); got != 1 {
		t.Errorf("not_found conversions = %v, want 1", got)
	}
}

func TestCollectorMapGauges(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.SetMapsLoaded(3)
	c.SetMapsReady(2)
	c.SetRegions("usa", 52)
	c.IncMapLoads("usa", false)

	if got := testutil.ToFloat64(c.mapsLoaded); got != 3 {
		t.Errorf("maps_loaded = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.mapsReady); got != 2 {
		t.Errorf("maps_ready = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.regions.WithLabelValues("usa")); got != 52 {
		t.Errorf("map_regions = %v, want 52", got)
	}
	if got := testutil.ToFloat64(c.mapLoads.WithLabelValues("usa", "error")); got != 1 {
		t.Errorf("map_loads_total{error} = %v, want 1", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("geoview", reg)
	c.ObserveRequest(http.MethodPost, "/api/v1/convert/to-pixel", http.StatusOK, 0.002)
	c.ObserveConversionDuration("world", "to_pixel", time.Millisecond)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	for _, want := range []string{
		`geoview_http_requests_total{method="POST",route="/api/v1/convert/to-pixel",status="2xx"} 1`,
		"geoview_conversion_duration_seconds_count",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
		{700, "unknown"},
	}

	for _, tt := range tests {
		if got := statusClass(tt.code); got != tt.want {
			t.Errorf("statusClass(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
