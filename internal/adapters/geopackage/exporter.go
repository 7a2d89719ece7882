package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/ports/output"
)

// Exporter implements output.BoundaryExporter for GeoPackage files.
type Exporter struct {
	reproject *Reprojector
}

var _ output.BoundaryExporter = (*Exporter)(nil)

// NewExporter creates a GeoPackage exporter.
func NewExporter() *Exporter {
	return &Exporter{reproject: NewReprojector()}
}

// Close releases the reprojection database.
func (e *Exporter) Close() error {
	return e.reproject.Close()
}

// Layers lists the feature layers of the GeoPackage at path.
func (e *Exporter) Layers(ctx context.Context, path string) ([]domain.Layer, error) {
	db, err := openReadOnly(ctx, path)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	defer func() { _ = db.Close() }()

	return readLayers(ctx, db)
}

// Export writes the features of one polygon layer as a GeoJSON
// FeatureCollection in WGS84. Attribute columns become feature properties;
// the name column, when given, is always a string.
func (e *Exporter) Export(ctx context.Context, path string, opts output.ExportOptions) ([]byte, error) {
	db, err := openReadOnly(ctx, path)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	defer func() { _ = db.Close() }()

	layers, err := readLayers(ctx, db)
	if err != nil {
		return nil, err
	}
	layer, err := selectLayer(layers, opts.Layer)
	if err != nil {
		return nil, err
	}

	columns, err := attributeColumns(ctx, db, layer)
	if err != nil {
		return nil, err
	}
	if opts.NameColumn != "" && !containsFold(columns, opts.NameColumn) {
		return nil, &domain.ValidationError{
			Field:      "name_column",
			Value:      opts.NameColumn,
			Constraint: "column of layer " + layer.Name,
			Message:    fmt.Sprintf("layer %s has no column %q", layer.Name, opts.NameColumn),
		}
	}

	fc, err := e.readFeatures(ctx, db, layer, columns, opts.NameColumn)
	if err != nil {
		return nil, err
	}
	return fc.MarshalJSON()
}

func (e *Exporter) readFeatures(
	ctx context.Context,
	db *sql.DB,
	layer *domain.Layer,
	columns []string,
	nameColumn string,
) (*geojson.FeatureCollection, error) {
	rows, err := db.QueryContext(ctx, selectFeaturesQuery(layer, columns))
	if err != nil {
		return nil, fmt.Errorf("reading layer %s: %w", layer.Name, err)
	}
	defer func() { _ = rows.Close() }()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		values := make([]interface{}, len(columns)+1)
		ptrs := make([]interface{}, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}

		raw, ok := values[len(columns)].([]byte)
		if !ok || len(raw) == 0 {
			continue
		}
		raw, err = e.reproject.ToWGS84(ctx, raw, layer.SRID)
		if err != nil {
			return nil, err
		}
		geom, err := wkb.Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding geometry of layer %s: %w", layer.Name, err)
		}

		fc.Append(newFeature(geom, columns, values[:len(columns)], nameColumn))
	}
	return fc, rows.Err()
}

// newFeature builds a feature from one row.
func newFeature(geom orb.Geometry, columns []string, values []interface{}, nameColumn string) *geojson.Feature {
	f := geojson.NewFeature(geom)
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if v == nil {
			continue
		}
		if nameColumn != "" && strings.EqualFold(col, nameColumn) {
			f.Properties[nameColumn] = fmt.Sprint(v)
			continue
		}
		f.Properties[col] = v
	}
	return f
}

// selectLayer returns the named layer, or the first polygon layer when
// name is empty.
func selectLayer(layers []domain.Layer, name string) (*domain.Layer, error) {
	for i := range layers {
		l := &layers[i]
		switch {
		case name == "" && l.IsPolygonLayer():
			return l, nil
		case name != "" && strings.EqualFold(l.Name, name):
			if !l.IsPolygonLayer() {
				return nil, &domain.ValidationError{
					Field:      "layer",
					Value:      name,
					Constraint: "polygon geometry",
					Message:    fmt.Sprintf("layer %s has %s geometries", l.Name, l.GeometryType),
				}
			}
			return l, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no polygon layer: %w", domain.ErrLayerNotFound)
	}
	return nil, fmt.Errorf("%s: %w", name, domain.ErrLayerNotFound)
}

// readLayers reads the feature layers from gpkg_contents.
func readLayers(ctx context.Context, db *sql.DB) ([]domain.Layer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.table_name, g.column_name, UPPER(g.geometry_type_name), g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON c.table_name = g.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name`)
	if err != nil {
		return nil, fmt.Errorf("reading layers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var layers []domain.Layer
	for rows.Next() {
		var l domain.Layer
		if err := rows.Scan(&l.Name, &l.GeometryColumn, &l.GeometryType, &l.SRID); err != nil {
			return nil, fmt.Errorf("scanning layer: %w", err)
		}
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range layers {
		q := "SELECT COUNT(*) FROM " + quoteIdent(layers[i].Name) //#nosec G202 -- identifier from gpkg_contents, quoted
		_ = db.QueryRowContext(ctx, q).Scan(&layers[i].FeatureCount)
	}
	return layers, nil
}

// attributeColumns returns the non-geometry columns of a layer in table
// order.
func attributeColumns(ctx context.Context, db *sql.DB, layer *domain.Layer) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", layer.Name)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", layer.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if !strings.EqualFold(name, layer.GeometryColumn) {
			columns = append(columns, name)
		}
	}
	return columns, rows.Err()
}

// selectFeaturesQuery selects the attribute columns followed by the
// geometry as WKB, in table order.
func selectFeaturesQuery(layer *domain.Layer, columns []string) string {
	parts := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		parts = append(parts, quoteIdent(c))
	}
	geom := quoteIdent(layer.GeometryColumn)
	parts = append(parts, "AsBinary(CastAutomagic("+geom+"))")

	return "SELECT " + strings.Join(parts, ", ") +
		" FROM " + quoteIdent(layer.Name) +
		" WHERE " + geom + " IS NOT NULL ORDER BY rowid"
}

// quoteIdent quotes an SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
