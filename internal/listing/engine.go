package listing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"catalog/browser/internal/domain"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrStale is returned to a caller whose query was superseded by a newer one
// before its result arrived. The result is dropped and never cached.
var ErrStale = errors.New("listing result superseded by a newer query")

// ErrCanceled is returned to callers of a fetch aborted by Cancel.
var ErrCanceled = errors.New("listing fetch canceled")

var errInvalidated = errors.New("cache invalidated while fetching")

// Source fetches one page of categories for a canonical query.
type Source interface {
	List(ctx context.Context, q domain.Query) (*domain.ListResult, error)
}

type entry struct {
	state  State
	result *domain.ListResult
	err    error
}

// Engine caches listing pages by query key, collapses concurrent requests for
// the same key, and lets only the most recently issued key update the cache.
type Engine struct {
	source Source
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	current string
	epoch   uint64 // bumped by Invalidate
	gen     uint64 // bumped by Cancel
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewEngine(source Source) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		source:  source,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Fetch returns the page for q, from cache when READY, otherwise by joining or
// starting the single in-flight request for its key. Fetch marks q as the
// current query; if another query is issued before this one resolves, Fetch
// returns ErrStale.
func (e *Engine) Fetch(ctx context.Context, q domain.Query) (*domain.ListResult, error) {
	return e.fetch(ctx, q, false)
}

// Refresh is Fetch that bypasses a READY entry and goes to the source.
func (e *Engine) Refresh(ctx context.Context, q domain.Query) (*domain.ListResult, error) {
	return e.fetch(ctx, q, true)
}

func (e *Engine) fetch(ctx context.Context, q domain.Query, force bool) (*domain.ListResult, error) {
	key := q.Key()

	for {
		e.mu.Lock()
		e.current = key
		ent := e.entries[key]
		if ent != nil && ent.state == StateReady && !force {
			result := ent.result
			e.mu.Unlock()
			log.Debugf("📦 Cache hit for %s", key)
			return result, nil
		}
		if err := e.beginLocked(key, ent); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		epoch, gen := e.epoch, e.gen
		fetchCtx := e.ctx
		e.mu.Unlock()

		callKey := key + "#" + strconv.FormatUint(epoch, 10) + "#" + strconv.FormatUint(gen, 10)
		ch := e.group.DoChan(callKey, func() (interface{}, error) {
			return e.load(fetchCtx, q, key, epoch, gen)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}

		if errors.Is(res.Err, errInvalidated) {
			if e.isCurrent(key) {
				log.Debugf("🔄 Cache invalidated during fetch of %s, refetching", key)
				force = false
				continue
			}
			return nil, ErrStale
		}
		if !e.isCurrent(key) {
			return nil, ErrStale
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ListResult), nil
	}
}

func (e *Engine) beginLocked(key string, ent *entry) error {
	if ent == nil {
		ent = &entry{state: StateIdle}
		e.entries[key] = ent
	}
	if ent.state == StateFetching {
		return nil // joining the pending request
	}
	if err := transition(ent.state, StateFetching); err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	ent.state = StateFetching
	ent.err = nil
	return nil
}

func (e *Engine) load(ctx context.Context, q domain.Query, key string, epoch, gen uint64) (*domain.ListResult, error) {
	log.Debugf("🌐 Fetching %s", key)
	result, err := e.source.List(ctx, q)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen {
		return nil, ErrCanceled
	}
	if e.epoch != epoch {
		return nil, errInvalidated
	}

	ent := e.entries[key]
	if ent == nil || ent.state != StateFetching {
		return nil, ErrStale
	}

	if key != e.current {
		delete(e.entries, key)
		log.Debugf("🗑️ Discarding superseded result for %s", key)
		if err != nil {
			return nil, err
		}
		return nil, ErrStale
	}

	if err != nil {
		ent.state = StateError
		ent.err = err
		log.Warnf("❌ Fetch failed for %s: %v", key, err)
		return nil, err
	}

	ent.state = StateReady
	ent.result = result
	return result, nil
}

func (e *Engine) isCurrent(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current == key
}

// Invalidate drops every cached page so the next Fetch of any key goes to the
// source. Fetches already in flight are not allowed to repopulate the cache.
func (e *Engine) Invalidate() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.entries)
	e.entries = make(map[string]*entry)
	e.epoch++
	log.Debugf("🧹 Invalidated %d cached listing entries", n)
	return n
}

// Cancel aborts every in-flight fetch. Their results never reach the cache.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancel()
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.gen++
	for key, ent := range e.entries {
		if ent.state == StateFetching {
			delete(e.entries, key)
		}
	}
}

// State reports the lifecycle state of q's cache entry.
func (e *Engine) State(q domain.Query) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.entries[q.Key()]; ok {
		return ent.state
	}
	return StateIdle
}

// Cached returns the READY page for q without fetching.
func (e *Engine) Cached(q domain.Query) (*domain.ListResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[q.Key()]
	if !ok || ent.state != StateReady {
		return nil, false
	}
	return ent.result, true
}

// Close cancels in-flight fetches and releases the engine. Results of those
// fetches are dropped even when the source ignores cancellation.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancel()
	e.gen++
	for key, ent := range e.entries {
		if ent.state == StateFetching {
			delete(e.entries, key)
		}
	}
}
