package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/pyramid"
	"github.com/pdok/tilepyramid/tms20"
)

const CRS string = `crs`
const TILEMATRIXSET string = `tilematrixset`
const LAT string = `lat`
const LNG string = `lng`
const X string = `x`
const Y string = `y`
const ZOOM string = `zoom`
const ZOOMS string = `zooms`
const WIDTH string = `width`
const HEIGHT string = `height`
const WORKERS string = `workers`
const TIMEOUT string = `timeout`
const WKT string = `wkt`
const WKTWIDTH string = `wktWidth`
const TARGET string = `targetGpkg`
const OVERWRITE string = `overwrite`
const PAGESIZE string = `pagesize`
const ANIMATE string = `animate`

func envVars(name string) []string {
	return []string{strcase.ToScreamingSnake(name)}
}

func crsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    CRS,
			Usage:   "Code of a built-in CRS. E.g.: EPSG:3857, EPSG:4326, Simple",
			Value:   "EPSG:3857",
			EnvVars: envVars(CRS),
		},
		&cli.StringFlag{
			Name:    TILEMATRIXSET,
			Aliases: []string{"tms"},
			Usage:   `ID of a (built-in) tile matrix set, overrides --crs. E.g.: WebMercatorQuad`,
			EnvVars: envVars(TILEMATRIXSET),
		},
	}
}

func viewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: LAT, Usage: "Latitude of the view center", EnvVars: envVars(LAT)},
		&cli.Float64Flag{Name: LNG, Usage: "Longitude of the view center", EnvVars: envVars(LNG)},
		&cli.IntFlag{Name: WIDTH, Usage: "View width in pixels", Value: 800, EnvVars: envVars(WIDTH)},
		&cli.IntFlag{Name: HEIGHT, Usage: "View height in pixels", Value: 600, EnvVars: envVars(HEIGHT)},
	}
}

//nolint:funlen
func main() {
	_ = godotenv.Load(".env")

	app := cli.NewApp()
	app.Name = "tilepyramid"
	app.Usage = "Coordinate conversion and tile pyramid planning for slippy maps"
	app.Version = versioninfo.Short()

	app.Commands = []*cli.Command{
		{
			Name:  "project",
			Usage: "Convert a lat/lng to a pixel point at a zoom",
			Flags: append(crsFlags(),
				&cli.Float64Flag{Name: LAT, Required: true, EnvVars: envVars(LAT)},
				&cli.Float64Flag{Name: LNG, Required: true, EnvVars: envVars(LNG)},
				&cli.Float64Flag{Name: ZOOM, Aliases: []string{"z"}, EnvVars: envVars(ZOOM)},
			),
			Action: func(c *cli.Context) error {
				cr, _, err := crsFromFlags(c)
				if err != nil {
					return err
				}
				ll, err := geo.NewLatLng(c.Float64(LAT), c.Float64(LNG))
				if err != nil {
					return err
				}
				fmt.Println(cr.LatLngToPoint(ll, c.Float64(ZOOM)))
				return nil
			},
		},
		{
			Name:  "unproject",
			Usage: "Convert a pixel point at a zoom to a lat/lng",
			Flags: append(crsFlags(),
				&cli.Float64Flag{Name: X, Required: true, EnvVars: envVars(X)},
				&cli.Float64Flag{Name: Y, Required: true, EnvVars: envVars(Y)},
				&cli.Float64Flag{Name: ZOOM, Aliases: []string{"z"}, EnvVars: envVars(ZOOM)},
			),
			Action: func(c *cli.Context) error {
				cr, _, err := crsFromFlags(c)
				if err != nil {
					return err
				}
				fmt.Println(cr.PointToLatLng(geometry.Pt(c.Float64(X), c.Float64(Y)), c.Float64(ZOOM)))
				return nil
			},
		},
		{
			Name:  "plan",
			Usage: "Load the tiles of a view with a worker pool and list them in load order",
			Flags: append(append(crsFlags(), viewFlags()...),
				&cli.Float64Flag{Name: ZOOM, Aliases: []string{"z"}, Required: true, EnvVars: envVars(ZOOM)},
				&cli.IntFlag{Name: WORKERS, Aliases: []string{"w"}, Value: 4, EnvVars: envVars(WORKERS)},
				&cli.DurationFlag{Name: TIMEOUT, Value: defaultPlanTimeout, EnvVars: envVars(TIMEOUT)},
				&cli.BoolFlag{Name: WKT, Usage: "Print the footprint of every tile as WKT", EnvVars: envVars(WKT)},
				&cli.UintFlag{Name: WKTWIDTH, Usage: "Truncate WKT to this many characters, 0 for no truncation", EnvVars: envVars(WKTWIDTH)},
				&cli.StringFlag{
					Name:    TARGET,
					Aliases: []string{"t"},
					Usage:   "Target GPKG (prefix). One GPKG per zoom level will be created and the filename will be suffixed. E.g. target_6.gpkg",
					EnvVars: envVars(TARGET),
				},
				&cli.BoolFlag{
					Name:    OVERWRITE,
					Aliases: []string{"o"},
					Usage:   "Overwrite a target GPKG if it exists",
					EnvVars: envVars(OVERWRITE),
				},
				&cli.IntFlag{
					Name:    PAGESIZE,
					Aliases: []string{"p"},
					Usage:   "Page Size, how many features are written per transaction to a target GPKG",
					Value:   1000,
					EnvVars: envVars(PAGESIZE),
				},
			),
			Action: planAction,
		},
		{
			Name:  "simulate",
			Usage: "Step a view through zoom levels on a manual clock and report what the tile cache does",
			Flags: append(append(crsFlags(), viewFlags()...),
				&cli.StringFlag{
					Name:     ZOOMS,
					Usage:    `Zoom levels to visit, in order. JSON array of numbers. E.g.: [10,11,10]`,
					Required: true,
					EnvVars:  envVars(ZOOMS),
				},
				&cli.BoolFlag{Name: ANIMATE, Usage: "Animate zoom changes", EnvVars: envVars(ANIMATE)},
			),
			Action: simulateAction,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// crsFromFlags returns the CRS and the layer options matching --tilematrixset, or the CRS named by
// --crs with default layer options.
func crsFromFlags(c *cli.Context) (*crs.CRS, pyramid.Options, error) {
	if id := c.String(TILEMATRIXSET); id != "" {
		tileMatrixSet, err := tms20.LoadEmbeddedTileMatrixSet(id)
		if err != nil {
			return nil, pyramid.Options{}, err
		}
		cr, grid, err := crs.FromTileMatrixSet(tileMatrixSet)
		if err != nil {
			return nil, pyramid.Options{}, err
		}
		return cr, pyramid.GridOptions(grid), nil
	}
	cr, err := crs.ForCode(c.String(CRS))
	if err != nil {
		return nil, pyramid.Options{}, err
	}
	return cr, pyramid.Options{TileSize: crs.DefaultTileSize}, nil
}

func centerFromFlags(c *cli.Context) (geo.LatLng, error) {
	return geo.NewLatLng(c.Float64(LAT), c.Float64(LNG))
}

func parseZooms(s string) ([]float64, error) {
	var zooms []float64
	if err := json.Unmarshal([]byte(s), &zooms); err != nil {
		return nil, fmt.Errorf("zooms %q: %w", s, err)
	}
	if len(zooms) == 0 {
		return nil, fmt.Errorf("zooms %q: no zoom levels", s)
	}
	return zooms, nil
}

func injectSuffixIntoPath(p string) string {
	dir, file := path.Split(p)
	ext := path.Ext(file)
	name := file[:len(file)-len(ext)]
	return path.Join(dir, name+"_%v"+ext)
}
