package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jobrunner/geoview/internal/config"
)

func corsServer(origins ...string) *Server {
	return &Server{
		config: config.ServerConfig{CORS: config.CORSConfig{AllowedOrigins: origins}},
	}
}

func TestExtractHost(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"https://example.com", "example.com"},
		{"https://example.com:8080", "example.com"},
		{"http://example.com", "example.com"},
		{"https://example.com/path/to/resource", "example.com"},
		{"https://example.com:443/path", "example.com"},
		{"https://deep.sub.example.com", "deep.sub.example.com"},
		{"http://localhost:3000", "localhost"},
		{"http://192.168.1.1:8080", "192.168.1.1"},
		{"example.com", "example.com"},
	}

	for _, tt := range tests {
		if got := extractHost(tt.origin); got != tt.want {
			t.Errorf("extractHost(%q) = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		pattern string
		want    bool
	}{
		{"https://example.com", "https://example.com", true},
		{"https://example.com:8080", "https://example.com:8080", true},
		{"http://example.com", "https://example.com", false},
		{"https://example.com:8080", "https://example.com:9090", false},
		{"https://other.com", "https://example.com", false},
		{"https://app.example.com", "*.example.com", true},
		{"https://a.b.example.com", "*.example.com", true},
		{"https://app.example.com:8443", "*.example.com", true},
		{"https://example.com", "*.example.com", false},
		{"https://notexample.com", "*.example.com", false},
		{"https://example.com.evil.com", "*.example.com", false},
		{"https://example.com", "*example.com", false},
	}

	for _, tt := range tests {
		if got := matchOrigin(tt.origin, tt.pattern); got != tt.want {
			t.Errorf("matchOrigin(%q, %q) = %v, want %v", tt.origin, tt.pattern, got, tt.want)
		}
	}
}

func TestServer_isOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"listed", []string{"https://example.com", "*.maps.dev"}, "https://example.com", true},
		{"wildcard", []string{"https://example.com", "*.maps.dev"}, "https://tiles.maps.dev", true},
		{"not listed", []string{"https://example.com"}, "https://evil.com", false},
		{"empty list", []string{}, "https://example.com", false},
		{"nil list", nil, "https://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := corsServer(tt.origins...).isOriginAllowed(tt.origin); got != tt.want {
				t.Errorf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed GET", []string{"https://example.com"}, "https://example.com", http.MethodGet, http.StatusOK, "https://example.com"},
		{"allowed POST", []string{"https://example.com"}, "https://example.com", http.MethodPost, http.StatusOK, "https://example.com"},
		{"preflight", []string{"https://example.com"}, "https://example.com", http.MethodOptions, http.StatusNoContent, "https://example.com"},
		{"wildcard", []string{"*.example.com"}, "https://app.example.com", http.MethodGet, http.StatusOK, "https://app.example.com"},
		{"disallowed", []string{"https://example.com"}, "https://evil.com", http.MethodGet, http.StatusOK, ""},
		{"no origin", []string{"https://example.com"}, "", http.MethodGet, http.StatusOK, ""},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/convert/to-pixel", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			corsServer(tt.origins...).corsMiddleware(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			h := rr.Header()
			if got := h.Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantAllow == "" {
				return
			}
			if got := h.Get("Access-Control-Allow-Methods"); got != corsAllowMethods {
				t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, corsAllowMethods)
			}
			if got := h.Get("Access-Control-Allow-Headers"); got != corsAllowHeaders {
				t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, corsAllowHeaders)
			}
			if got := h.Get("Access-Control-Expose-Headers"); got != RequestIDHeader {
				t.Errorf("Access-Control-Expose-Headers = %q, want %q", got, RequestIDHeader)
			}
			if got := h.Get("Vary"); got != "Origin" {
				t.Errorf("Vary = %q, want %q", got, "Origin")
			}
		})
	}
}

func TestCORSMiddleware_PreflightDoesNotCallNext(t *testing.T) {
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/convert/from-pixel", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	corsServer("https://example.com").corsMiddleware(next).ServeHTTP(rr, req)

	if nextCalled {
		t.Error("preflight request reached the next handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestCORSConfig_Enabled(t *testing.T) {
	tests := []struct {
		origins []string
		want    bool
	}{
		{[]string{"https://example.com"}, true},
		{[]string{"https://example.com", "*.other.com"}, true},
		{[]string{}, false},
		{nil, false},
	}

	for _, tt := range tests {
		cfg := config.CORSConfig{AllowedOrigins: tt.origins}
		if got := cfg.Enabled(); got != tt.want {
			t.Errorf("Enabled() with %v = %v, want %v", tt.origins, got, tt.want)
		}
	}
}

func TestRouter_Preflight(t *testing.T) {
	srv := newTestServer(t)
	srv.config.CORS = config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	srv.router = srv.setupRoutes()

	tests := []struct {
		name      string
		target    string
		origin    string
		wantAllow string
	}{
		{"to-pixel", "/api/v1/convert/to-pixel", "https://app.example.com", "https://app.example.com"},
		{"from-pixel", "/api/v1/convert/from-pixel", "https://app.example.com", "https://app.example.com"},
		{"map", "/api/v1/maps/m", "https://app.example.com", "https://app.example.com"},
		{"disallowed origin", "/api/v1/convert/to-pixel", "https://evil.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, tt.target, nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rr := httptest.NewRecorder()
			srv.router.ServeHTTP(rr, req)

			if rr.Code != http.StatusNoContent {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}

	// the POST itself still reaches its handler
	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert/to-pixel",
		strings.NewReader(`{"geo_id": "m", "name": "A"}`))
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("POST status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("POST Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_NoPreflightRouteWithoutCORS(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/convert/to-pixel", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code == http.StatusNoContent {
		t.Errorf("status = %d without CORS, want no preflight answer", rr.Code)
	}
}
