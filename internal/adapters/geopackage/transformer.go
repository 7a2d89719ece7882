package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jobrunner/geoview/internal/domain"
)

// Reprojector transforms WKB geometries to WGS84. It runs in a private
// in-memory SpatiaLite database because GeoPackage files carry
// gpkg_spatial_ref_sys rather than the spatial_ref_sys table Transform
// needs.
type Reprojector struct {
	once sync.Once
	db   *sql.DB
	err  error
}

// NewReprojector creates a reprojector. The database is initialised on
// first use.
func NewReprojector() *Reprojector {
	return &Reprojector{}
}

func (r *Reprojector) init(ctx context.Context) error {
	r.once.Do(func() {
		db, err := openDB(ctx, ":memory:")
		if err != nil {
			r.err = err
			return
		}
		// a single connection keeps the in-memory metadata visible
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "SELECT InitSpatialMetaDataFull(1)"); err != nil {
			_ = db.Close()
			r.err = fmt.Errorf("initialising spatial metadata: %w", err)
			return
		}
		r.db = db
	})
	return r.err
}

// ToWGS84 reprojects a WKB geometry from srid to EPSG:4326.
func (r *Reprojector) ToWGS84(ctx context.Context, wkb []byte, srid int) ([]byte, error) {
	if srid == domain.SRIDWGS84 || srid <= 0 {
		return wkb, nil
	}
	if err := r.init(ctx); err != nil {
		return nil, err
	}

	var out []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT AsBinary(Transform(GeomFromWKB(?, ?), ?))",
		wkb, srid, domain.SRIDWGS84,
	).Scan(&out)
	if err != nil {
		return nil, fmt.Errorf("transforming from EPSG:%d: %w", srid, err)
	}
	if out == nil {
		return nil, fmt.Errorf("transforming from EPSG:%d: unsupported SRID", srid)
	}
	return out, nil
}

// Close closes the in-memory database.
func (r *Reprojector) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
