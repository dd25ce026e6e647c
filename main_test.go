package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/tilepyramid/crs"
	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/pyramid"
	"github.com/pdok/tilepyramid/viewport"
)

func TestInjectSuffixIntoPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/tmp/target.gpkg", want: "/tmp/target_%v.gpkg"},
		{path: "target.gpkg", want: "target_%v.gpkg"},
		{path: "dir/target", want: "dir/target_%v"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, injectSuffixIntoPath(tt.path))
		})
	}
}

func TestParseZooms(t *testing.T) {
	zooms, err := parseZooms("[10, 11.5, 10]")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11.5, 10}, zooms)

	for _, s := range []string{"", "[]", "10,11", `["a"]`} {
		_, err = parseZooms(s)
		assert.Error(t, err, s)
	}
}

func TestPlan(t *testing.T) {
	tiles, err := plan(context.Background(), planRequest{
		crs:     crs.EPSG3857(),
		opts:    pyramid.Options{TileSize: crs.DefaultTileSize},
		center:  geo.MustLatLng(0, 0),
		zoom:    1,
		width:   800,
		height:  600,
		workers: 2,
		timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, tiles, 8)
	for _, tile := range tiles {
		assert.Equal(t, pyramid.Ready, tile.State)
		assert.Equal(t, 1, tile.Coords.Z)
	}

	var out bytes.Buffer
	printPlan(&out, tiles, true, 20)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// header plus a row and a WKT line per tile
	assert.Len(t, lines, 1+2*len(tiles))
	assert.True(t, strings.HasPrefix(lines[0], "key"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[2]), "POLYGON"))
}

func TestPlanOutsideLayerZooms(t *testing.T) {
	maxZoom := 5
	_, err := plan(context.Background(), planRequest{
		crs:     crs.EPSG3857(),
		opts:    pyramid.Options{TileSize: crs.DefaultTileSize, MaxZoom: &maxZoom},
		center:  geo.MustLatLng(0, 0),
		zoom:    8,
		width:   800,
		height:  600,
		workers: 1,
		timeout: 10 * time.Second,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, errPlanTimeout)
}

func TestSimulation(t *testing.T) {
	sim, err := newSimulation(
		viewport.Options{Width: 800, Height: 600, DisableZoomAnimation: true},
		pyramid.Options{},
		pyramid.SyncSource(func(coords pyramid.Coords) (pyramid.Handle, error) {
			return coords.Key(), nil
		}),
	)
	require.NoError(t, err)

	steps := sim.run(geo.MustLatLng(0, 0), []float64{10, 11, 10})
	require.Len(t, steps, 3)

	want := []step{
		{zoom: 10, tileZoom: 10, loadStart: 16, load: 16, unload: 0, cached: 16, settled: true},
		{zoom: 11, tileZoom: 11, loadStart: 16, load: 16, unload: 16, cached: 16, settled: true},
		{zoom: 10, tileZoom: 10, loadStart: 16, load: 16, unload: 16, cached: 16, settled: true},
	}
	assert.Equal(t, want, steps)

	var out bytes.Buffer
	printSteps(&out, steps)
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 4)
}
