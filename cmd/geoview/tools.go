package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jobrunner/geoview/internal/adapters/geopackage"
	"github.com/jobrunner/geoview/internal/adapters/storage"
	"github.com/jobrunner/geoview/internal/application"
	"github.com/jobrunner/geoview/internal/domain"
	"github.com/jobrunner/geoview/internal/ports/output"
)

var toolOpts struct {
	nameProperty string
	layer        string
	nameColumn   string
	view         []float64
	name         string
	coord        []float64
	point        []float64
	zoom         float64
	center       []float64
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "List the regions of a boundary file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a location between geographic and pixel space",
	Example: `  geoview convert world.geojson --view 0,0,800,600 --name France
  geoview convert world.geojson --view 0,0,800,600 --coord 2.35,48.85
  geoview convert world.geojson --view 0,0,800,600 --point 400,300`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{inspectCmd, convertCmd} {
		c.Flags().StringVar(&toolOpts.nameProperty, "name-property", "", "feature property holding region names (default: name)")
		c.Flags().StringVar(&toolOpts.layer, "layer", "", "GeoPackage layer (default: first polygon layer)")
		c.Flags().StringVar(&toolOpts.nameColumn, "name-column", "", "GeoPackage column holding region names")
	}

	f := convertCmd.Flags()
	f.Float64SliceVar(&toolOpts.view, "view", []float64{0, 0, 800, 600}, "output rect x,y,width,height")
	f.StringVar(&toolOpts.name, "name", "", "region or named location to convert to pixel")
	f.Float64SliceVar(&toolOpts.coord, "coord", nil, "coordinate lng,lat to convert to pixel")
	f.Float64SliceVar(&toolOpts.point, "point", nil, "pixel x,y to convert to a coordinate")
	f.Float64Var(&toolOpts.zoom, "zoom", 0, "roam zoom factor")
	f.Float64SliceVar(&toolOpts.center, "center", nil, "roam center lng,lat")
	convertCmd.MarkFlagsMutuallyExclusive("name", "coord", "point")
	convertCmd.MarkFlagsOneRequired("name", "coord", "point")
}

// openFile loads a single boundary file through the registry, so sidecars
// and corrections apply exactly as in the server.
func openFile(ctx context.Context, file string) (*application.ConversionService, *application.MapRegistry, string, func(), error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, nil, "", nil, err
	}
	key := filepath.Base(abs)
	if !output.IsBoundaryFile(key) {
		return nil, nil, "", nil, fmt.Errorf("%s: %w", key, domain.ErrUnsupportedSource)
	}

	dir := filepath.Dir(abs)
	logger := slog.Default()
	exporter := geopackage.NewExporter()
	registry := application.NewMapRegistry(
		storage.NewLocalStorage(dir),
		exporter,
		&output.NoOpMetrics{},
		logger,
		application.RegistryConfig{
			// GeoPackage files are exported in place
			CacheDir:     dir,
			NameProperty: toolOpts.nameProperty,
			Layer:        toolOpts.layer,
			NameColumn:   toolOpts.nameColumn,
		},
	)
	cleanup := func() { _ = exporter.Close() }

	if err := registry.LoadMap(ctx, key); err != nil {
		cleanup()
		return nil, nil, "", nil, err
	}

	id := strings.TrimSuffix(key, filepath.Ext(key))
	conversion := application.NewConversionService(registry, &output.NoOpMetrics{}, logger, domain.NewRect(0, 0, 800, 600))
	return conversion, registry, id, cleanup, nil
}

func runInspect(ctx context.Context, out io.Writer, file string) error {
	conversion, registry, id, cleanup, err := openFile(ctx, file)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := registry.GetMap(ctx, id)
	if err != nil {
		return err
	}
	regions, err := conversion.Regions(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "map:         %s (%s)\n", m.ID, m.Name)
	fmt.Fprintf(out, "format:      %s\n", m.Format)
	fmt.Fprintf(out, "regions:     %d\n", m.RegionCount)
	fmt.Fprintf(out, "bounds:      %s\n", formatRect(m.Bounds))
	if len(m.Corrections) > 0 {
		fmt.Fprintf(out, "corrections: %s\n", strings.Join(m.Corrections, ", "))
	}
	if output.IsGeoPackage(file) {
		if err := printLayers(ctx, out, file); err != nil {
			return err
		}
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCENTER\tBOUNDS\tPOLYGONS")
	for _, r := range regions {
		fmt.Fprintf(tw, "%s\t%.4f,%.4f\t%s\t%d\n", r.Name, r.Center[0], r.Center[1], formatRect(r.BoundingRect), r.Polygons)
	}
	return tw.Flush()
}

func printLayers(ctx context.Context, out io.Writer, file string) error {
	exporter := geopackage.NewExporter()
	defer func() { _ = exporter.Close() }()

	layers, err := exporter.Layers(ctx, file)
	if err != nil {
		return err
	}
	for _, l := range layers {
		fmt.Fprintf(out, "layer:       %s (%s, EPSG:%d, %d features)\n", l.Name, l.GeometryType, l.SRID, l.FeatureCount)
	}
	return nil
}

type convertOutput struct {
	Map   string      `json:"map"`
	Found bool        `json:"found"`
	Input interface{} `json:"input"`
	Point *[2]float64 `json:"point"`
}

func runConvert(ctx context.Context, out io.Writer, file string) error {
	req, err := conversionRequest()
	if err != nil {
		return err
	}

	conversion, _, id, cleanup, err := openFile(ctx, file)
	if err != nil {
		return err
	}
	defer cleanup()
	req.Finder = domain.Finder{GeoID: id}

	var result *domain.ConversionResult
	var input interface{}
	switch {
	case toolOpts.point != nil:
		input = toolOpts.point
		result, err = conversion.FromPixel(ctx, req)
	case toolOpts.name != "":
		input = toolOpts.name
		result, err = conversion.ToPixel(ctx, req)
	default:
		input = toolOpts.coord
		result, err = conversion.ToPixel(ctx, req)
	}
	if err != nil {
		return err
	}

	res := convertOutput{Map: result.MapID, Found: result.Found, Input: input}
	if result.Found {
		res.Point = &result.Point
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// conversionRequest builds the request from the convert flags.
func conversionRequest() (domain.ConversionRequest, error) {
	var req domain.ConversionRequest
	if len(toolOpts.view) != 4 {
		return req, errors.New("--view needs x,y,width,height")
	}
	req.View = domain.NewRect(toolOpts.view[0], toolOpts.view[1], toolOpts.view[2], toolOpts.view[3])
	req.Roam.Zoom = toolOpts.zoom

	if toolOpts.center != nil {
		if len(toolOpts.center) != 2 {
			return req, errors.New("--center needs lng,lat")
		}
		req.Roam.Center = &[2]float64{toolOpts.center[0], toolOpts.center[1]}
	}

	switch {
	case toolOpts.point != nil:
		if len(toolOpts.point) != 2 {
			return req, errors.New("--point needs x,y")
		}
		req.Coord = [2]float64{toolOpts.point[0], toolOpts.point[1]}
	case toolOpts.coord != nil:
		if len(toolOpts.coord) != 2 {
			return req, errors.New("--coord needs lng,lat")
		}
		req.Coord = [2]float64{toolOpts.coord[0], toolOpts.coord[1]}
	default:
		req.Name = toolOpts.name
	}
	return req, nil
}

func formatRect(r domain.Rect) string {
	return fmt.Sprintf("[%.4f, %.4f, %.4f, %.4f]", r.X, r.Y, r.Width, r.Height)
}
