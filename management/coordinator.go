// Package management exposes the user-management screen's services: a
// paginated, filterable user directory and the per-user role
// assignments, both driven by listing pipelines, with mutations
// funnelled through a single coordinator.
package management

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-admin-console/listing"
)

// Sink is the slice of pipeline state a mutation touches.
type Sink interface {
	MarkLoading()
	Fail(msg string)
}

// Coordinator runs mutations with a uniform load→mutate→follow-up
// sequence and unified error capture. Mutations of the same kind are
// switch-to-latest: a newer one supersedes an older in-flight one's
// effects on state (the older network call itself is not cancelled).
type Coordinator struct {
	tokens listing.TokenFunc
	log    zerolog.Logger

	mu   sync.Mutex
	gens map[string]uint64
}

// NewCoordinator returns a Coordinator fetching tokens through tokens.
func NewCoordinator(tokens listing.TokenFunc, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		tokens: tokens,
		log:    log,
		gens:   map[string]uint64{},
	}
}

// Run marks the sink loading synchronously, then asynchronously fetches
// a token, applies mutate, and on success runs onSuccess (a reload
// request, or just clearing the loading flag). Failures land in the
// sink's error state; nothing is rolled back because nothing was
// applied optimistically.
func (c *Coordinator) Run(ctx context.Context, kind string, sink Sink, mutate func(ctx context.Context, token string) error, onSuccess func()) {
	gen := c.next(kind)
	sink.MarkLoading()

	go func() {
		token, err := c.tokens(ctx)
		if err != nil {
			c.finish(kind, gen, sink, err, nil)
			return
		}
		err = mutate(ctx, token)
		c.finish(kind, gen, sink, err, onSuccess)
	}()
}

func (c *Coordinator) next(kind string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[kind]++
	return c.gens[kind]
}

func (c *Coordinator) stale(kind string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[kind] != gen
}

func (c *Coordinator) finish(kind string, gen uint64, sink Sink, err error, onSuccess func()) {
	if c.stale(kind, gen) {
		// A newer mutation of this kind owns the state now.
		c.log.Debug().Str("kind", kind).Msg("superseded mutation result discarded")
		return
	}
	if err != nil {
		c.log.Warn().Str("kind", kind).Err(err).Msg("mutation failed")
		sink.Fail(err.Error())
		return
	}
	if onSuccess != nil {
		onSuccess()
	}
}
