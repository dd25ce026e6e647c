// Package source provides tile sources that do their work off the loop.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rcrowley/go-metrics"

	"github.com/pdok/tilepyramid/logger"
	"github.com/pdok/tilepyramid/pyramid"
)

var ErrClosed = errors.New("tile pool is closed")

// Fetcher produces the content of a single tile. It runs on a pool goroutine.
type Fetcher interface {
	Fetch(ctx context.Context, coords pyramid.Coords) (pyramid.Handle, error)
}

type FetcherFunc func(ctx context.Context, coords pyramid.Coords) (pyramid.Handle, error)

func (f FetcherFunc) Fetch(ctx context.Context, coords pyramid.Coords) (pyramid.Handle, error) {
	return f(ctx, coords)
}

type Options struct {
	Workers int `default:"4" validate:"gt=0"`
	// QueueSize is the number of requests waiting for a worker before requests are handed off
	QueueSize int `default:"64" validate:"gte=0"`

	Logger  *slog.Logger     `validate:"-"`
	Metrics metrics.Registry `validate:"-"`
}

type job struct {
	ctx    context.Context
	coords pyramid.Coords
	done   pyramid.DoneFunc
}

// Pool is a pyramid.Source running a Fetcher on a fixed number of goroutines.
// CreateTile never blocks: when the queue is full the request waits on its own goroutine.
type Pool struct {
	fetcher Fetcher
	log     *slog.Logger

	// mu guards closed; requests enqueue under the read lock so none lands after Close drains
	mu       sync.RWMutex
	closed   bool
	jobs     chan job
	ctx      context.Context
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	handoffs sync.WaitGroup

	fetchTimer metrics.Timer
	failed     metrics.Counter
	skipped    metrics.Counter
}

func NewPool(fetcher Fetcher, opts Options) (*Pool, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("pool options: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&opts); err != nil {
		return nil, fmt.Errorf("pool options: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		fetcher:    fetcher,
		log:        opts.Logger.With("component", "pool"),
		jobs:       make(chan job, opts.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
		fetchTimer: metrics.GetOrRegisterTimer("source.fetch", opts.Metrics),
		failed:     metrics.GetOrRegisterCounter("source.error", opts.Metrics),
		skipped:    metrics.GetOrRegisterCounter("source.skipped", opts.Metrics),
	}
	for i := 0; i < opts.Workers; i++ {
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			p.work()
		}()
	}
	return p, nil
}

func (p *Pool) CreateTile(ctx context.Context, coords pyramid.Coords, done pyramid.DoneFunc) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		done(nil, ErrClosed)
		return
	}
	defer p.mu.RUnlock()
	j := job{ctx: ctx, coords: coords, done: done}
	select {
	case p.jobs <- j:
		return
	default:
	}
	p.handoffs.Add(1)
	go func() {
		defer p.handoffs.Done()
		select {
		case p.jobs <- j:
		case <-p.ctx.Done():
			done(nil, ErrClosed)
		}
	}()
}

// ReleaseTile passes h on to the fetcher, when it releases handles.
func (p *Pool) ReleaseTile(h pyramid.Handle) {
	if r, ok := p.fetcher.(pyramid.Releaser); ok {
		r.ReleaseTile(h)
	}
}

func (p *Pool) work() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			p.run(j)
		}
	}
}

func (p *Pool) run(j job) {
	// the layer dropped the tile while it was queued
	if err := j.ctx.Err(); err != nil {
		p.skipped.Inc(1)
		j.done(nil, err)
		return
	}
	start := time.Now()
	h, err := p.fetcher.Fetch(j.ctx, j.coords)
	p.fetchTimer.UpdateSince(start)
	if err != nil {
		p.failed.Inc(1)
		p.log.Debug("fetch failed", "tile", j.coords.Key(), "error", err)
	}
	j.done(h, err)
}

// Close stops the workers after their current fetch. Requests still queued fail with ErrClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.handoffs.Wait()
	p.workers.Wait()
	for {
		select {
		case j := <-p.jobs:
			j.done(nil, ErrClosed)
		default:
			return
		}
	}
}
