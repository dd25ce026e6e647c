package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/muesli/reflow/padding"
	"github.com/urfave/cli/v2"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/geometry"
	"github.com/pdok/tilepyramid/geomhelp"
	"github.com/pdok/tilepyramid/loop"
	"github.com/pdok/tilepyramid/pkg/gpkg"
	"github.com/pdok/tilepyramid/processing"
	"github.com/pdok/tilepyramid/pyramid"
	"github.com/pdok/tilepyramid/source"
	"github.com/pdok/tilepyramid/viewport"
)

const defaultPlanTimeout = 30 * time.Second

var errPlanTimeout = errors.New("tiles did not load in time")

type planRequest struct {
	crs     *crs.CRS
	opts    pyramid.Options
	center  geo.LatLng
	zoom    float64
	width   int
	height  int
	workers int
	timeout time.Duration
}

func planAction(c *cli.Context) error {
	cr, opts, err := crsFromFlags(c)
	if err != nil {
		return err
	}
	center, err := centerFromFlags(c)
	if err != nil {
		return err
	}
	req := planRequest{
		crs:     cr,
		opts:    opts,
		center:  center,
		zoom:    c.Float64(ZOOM),
		width:   c.Int(WIDTH),
		height:  c.Int(HEIGHT),
		workers: c.Int(WORKERS),
		timeout: c.Duration(TIMEOUT),
	}

	log.Println("=== start planning ===")
	tiles, err := plan(c.Context, req)
	if err != nil {
		return err
	}
	wktWidth := c.Uint(WKTWIDTH)
	if !c.Bool(WKT) {
		wktWidth = 0
	}
	printPlan(os.Stdout, tiles, c.Bool(WKT), wktWidth)
	log.Printf("  planned %d tiles", len(tiles))

	if target := c.String(TARGET); target != "" {
		fps := footprints(req.crs, req.opts)
		err = writeGeopackages(tiles, fps, target, c.Bool(OVERWRITE), c.Int(PAGESIZE))
		if err != nil {
			return err
		}
	}
	log.Println("=== done planning ===")
	return nil
}

func footprints(cr *crs.CRS, opts pyramid.Options) source.Footprints {
	size := float64(opts.TileSize)
	return source.Footprints{CRS: cr, TileSize: geometry.Pt(size, size)}
}

// plan runs a view and a layer on a live loop, with the tile footprints computed by a worker pool,
// and returns the tiles of the view once they have all loaded.
func plan(ctx context.Context, req planRequest) ([]pyramid.Tile, error) {
	fps := footprints(req.crs, req.opts)
	pool, err := source.NewPool(fps, source.Options{Workers: req.workers})
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	lp := loop.New()
	view, err := viewport.New(lp, viewport.Options{
		CRS:                  req.crs,
		Width:                req.width,
		Height:               req.height,
		DisableZoomAnimation: true,
	})
	if err != nil {
		return nil, err
	}
	opts := req.opts
	opts.DisableFade = true
	layer, err := pyramid.NewLayer(pool, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, req.timeout)
	defer cancel()

	result := make(chan []pyramid.Tile, 1)
	attached := make(chan error, 1)
	lp.Post(func() {
		layer.On(func(e pyramid.Event) {
			if e.Type != pyramid.Load {
				return
			}
			select {
			case result <- currentTiles(layer.Tiles()):
			default:
			}
		})
		if err := layer.Attach(view); err != nil {
			attached <- err
			return
		}
		view.SetView(req.center, req.zoom)
		if _, ok := layer.TileZoom(); !ok {
			attached <- fmt.Errorf("zoom %v is outside the layer zooms", req.zoom)
		}
	})

	stopped := make(chan error, 1)
	go func() {
		stopped <- lp.Run(ctx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	select {
	case tiles := <-result:
		return tiles, nil
	case err := <-attached:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", errPlanTimeout, ctx.Err())
	}
}

func currentTiles(tiles []pyramid.Tile) []pyramid.Tile {
	current := make([]pyramid.Tile, 0, len(tiles))
	for _, t := range tiles {
		if t.Current {
			current = append(current, t)
		}
	}
	return current
}

func printPlan(w io.Writer, tiles []pyramid.Tile, withWKT bool, wktWidth uint) {
	row := func(cols ...string) {
		line := ""
		for i, col := range cols {
			if i < len(cols)-1 {
				col = padding.String(col, 16)
			}
			line += col
		}
		fmt.Fprintln(w, line)
	}
	row("key", "wrapped", "position", "morton", "area")
	for _, t := range tiles {
		mortonCode := "-"
		if z, ok := t.Wrapped.Morton(); ok {
			mortonCode = fmt.Sprint(z)
		}
		area := "-"
		fp, isFootprint := t.Handle.(*source.Footprint)
		if isFootprint {
			area = fmt.Sprintf("%.0f", geomhelp.Area(fp.Polygon))
		}
		row(t.Coords.Key(), t.Wrapped.Key(), fmt.Sprintf("%v,%v", t.Pos.X, t.Pos.Y), mortonCode, area)
		if withWKT && isFootprint {
			fmt.Fprintln(w, "  "+geomhelp.WktMustEncode(fp.Polygon, wktWidth))
		}
	}
}

func writeGeopackages(tiles []pyramid.Tile, fps source.Footprints, target string, overwrite bool, pagesize int) error {
	targetPathFmt := injectSuffixIntoPath(target)
	gpkgTargets := make(map[int]*gpkg.TargetGeopackage)
	for _, t := range tiles {
		z := t.Coords.Z
		if _, ok := gpkgTargets[z]; ok {
			continue
		}
		gpkgTarget, err := initGPKGTarget(fmt.Sprintf(targetPathFmt, z), fps.CRS, overwrite, pagesize)
		if err != nil {
			return err
		}
		defer gpkgTarget.Close() // yes, supposed to go here, want to close all at end of func
		gpkgTargets[z] = gpkgTarget
	}

	// need a copied map because of type difference processing.Target vs gpkg.TargetGeopackage
	targets := make(map[int]processing.Target, len(gpkgTargets))
	for z, gpkgTarget := range gpkgTargets {
		targets[z] = gpkgTarget
	}
	written := processing.WriteTiles(processing.LayerTiles{Tiles: tiles, Footprints: fps}, targets)
	for z, gpkgTarget := range gpkgTargets {
		if err := gpkgTarget.Err(); err != nil {
			return fmt.Errorf("writing zoom %d: %w", z, err)
		}
		log.Printf("  wrote %d tiles to %s", written[z], fmt.Sprintf(targetPathFmt, z))
	}
	return nil
}

func initGPKGTarget(targetPath string, cr *crs.CRS, overwrite bool, pagesize int) (*gpkg.TargetGeopackage, error) {
	target := gpkg.TargetGeopackage{}
	if err := target.Init(targetPath, pagesize, overwrite); err != nil {
		return nil, err
	}
	if err := target.CreateTable(gpkg.TileTable("tiles", gpkg.SRS(cr.Code))); err != nil {
		_ = target.Close()
		return nil, fmt.Errorf("error initialization the target GeoPackage: %w", err)
	}
	return &target, nil
}
