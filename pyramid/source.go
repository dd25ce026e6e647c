package pyramid

import (
	"context"
)

// DoneFunc reports the result of a tile creation. It may be called from any goroutine, at most once.
type DoneFunc func(h Handle, err error)

// Source creates tiles for a layer.
//
// CreateTile may call done before returning or at any later time. The context is cancelled when the
// layer no longer wants the tile, after which calling done is allowed but pointless.
type Source interface {
	CreateTile(ctx context.Context, coords Coords, done DoneFunc)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context, coords Coords, done DoneFunc)

func (f SourceFunc) CreateTile(ctx context.Context, coords Coords, done DoneFunc) {
	f(ctx, coords, done)
}

// Releaser is implemented by sources whose handles hold resources. The layer releases every handle
// it drops, including those of completions that arrive too late.
type Releaser interface {
	ReleaseTile(h Handle)
}

// SyncSource creates tiles right away with fn.
func SyncSource(fn func(coords Coords) (Handle, error)) Source {
	return SourceFunc(func(_ context.Context, coords Coords, done DoneFunc) {
		done(fn(coords))
	})
}
