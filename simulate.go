package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/muesli/reflow/padding"
	"github.com/rcrowley/go-metrics"
	"github.com/urfave/cli/v2"

	"github.com/pdok/tilepyramid/geo"
	"github.com/pdok/tilepyramid/loop"
	"github.com/pdok/tilepyramid/pyramid"
	"github.com/pdok/tilepyramid/viewport"
)

// settleLimit bounds how long a single simulation step may take on the manual clock.
const settleLimit = time.Minute

type simulation struct {
	view  *viewport.View
	layer *pyramid.Layer
	clock *loop.Manual
	reg   metrics.Registry
	last  map[string]int64
}

type step struct {
	zoom      float64
	tileZoom  int
	loadStart int64
	load      int64
	unload    int64
	cached    int64
	settled   bool
}

func simulateAction(c *cli.Context) error {
	cr, opts, err := crsFromFlags(c)
	if err != nil {
		return err
	}
	center, err := centerFromFlags(c)
	if err != nil {
		return err
	}
	zooms, err := parseZooms(c.String(ZOOMS))
	if err != nil {
		return err
	}

	fps := footprints(cr, opts)
	opts.Metrics = metrics.NewRegistry()
	sim, err := newSimulation(viewport.Options{
		CRS:                  cr,
		Width:                c.Int(WIDTH),
		Height:               c.Int(HEIGHT),
		DisableZoomAnimation: !c.Bool(ANIMATE),
	}, opts, pyramid.SyncSource(func(coords pyramid.Coords) (pyramid.Handle, error) {
		return fps.Footprint(coords), nil
	}))
	if err != nil {
		return err
	}

	log.Println("=== start simulating ===")
	steps := sim.run(center, zooms)
	printSteps(os.Stdout, steps)
	log.Println("=== done simulating ===")
	return nil
}

func newSimulation(viewOpts viewport.Options, opts pyramid.Options, src pyramid.Source) (*simulation, error) {
	clock := loop.NewManual(time.Unix(0, 0))
	view, err := viewport.New(clock.Loop, viewOpts)
	if err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	layer, err := pyramid.NewLayer(src, opts)
	if err != nil {
		return nil, err
	}
	if err = layer.Attach(view); err != nil {
		return nil, err
	}
	return &simulation{
		view:  view,
		layer: layer,
		clock: clock,
		reg:   opts.Metrics,
		last:  map[string]int64{},
	}, nil
}

// run visits the zooms in order, letting the layer settle after every change.
func (s *simulation) run(center geo.LatLng, zooms []float64) []step {
	steps := make([]step, 0, len(zooms))
	for i, zoom := range zooms {
		if i == 0 {
			s.view.SetView(center, zoom)
		} else {
			s.view.ZoomTo(s.view.Center(), zoom)
		}
		settled := s.clock.Settle(settleLimit)
		steps = append(steps, s.step(settled))
	}
	return steps
}

func (s *simulation) step(settled bool) step {
	tileZoom, ok := s.layer.TileZoom()
	if !ok {
		tileZoom = -1
	}
	return step{
		zoom:      s.view.Zoom(),
		tileZoom:  tileZoom,
		loadStart: s.delta("tile.loadstart"),
		load:      s.delta("tile.load"),
		unload:    s.delta("tile.unload"),
		cached:    metrics.GetOrRegisterGauge("tile.cached", s.reg).Value(),
		settled:   settled,
	}
}

// delta returns how much a counter went up since the previous step.
func (s *simulation) delta(name string) int64 {
	count := metrics.GetOrRegisterCounter(name, s.reg).Count()
	d := count - s.last[name]
	s.last[name] = count
	return d
}

func printSteps(w io.Writer, steps []step) {
	header := []string{"zoom", "tile zoom", "loadstart", "load", "unload", "cached"}
	line := ""
	for _, h := range header {
		line += padding.String(h, 12)
	}
	fmt.Fprintln(w, line)
	for _, st := range steps {
		cols := []string{
			fmt.Sprint(st.zoom), fmt.Sprint(st.tileZoom), fmt.Sprint(st.loadStart),
			fmt.Sprint(st.load), fmt.Sprint(st.unload), fmt.Sprint(st.cached),
		}
		line = ""
		for _, col := range cols {
			line += padding.String(col, 12)
		}
		if !st.settled {
			line += "(not settled)"
		}
		fmt.Fprintln(w, line)
	}
}
