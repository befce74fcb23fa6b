package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ultraviolet/uv/internal/circuitbreaker"
	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/plugin"
)

// BreakerConfig controls the per-prism load circuit breaker. Zero value
// disables breaking (matches circuitbreaker.Registry.Get's own convention).
type BreakerConfig = circuitbreaker.Config

// Options configures a Registry.
type Options struct {
	// WorkDir is where a loaded prism's Unix socket is created.
	WorkDir string
	// ReadyTimeout bounds how long Load waits for a freshly spawned prism
	// to open its socket.
	ReadyTimeout time.Duration
	// MaxLoaded bounds how many loaded prism handles the LRU tracks (every
	// Load refreshes an entry); going over it evicts the least recently used
	// entry and tears that handle down. An evicted handle still in use is
	// left running and drops out of the LRU until its next Load. Zero means
	// unbounded.
	MaxLoaded int
	Breaker   BreakerConfig
}

// Registry discovers declared prisms and loads/unloads them on demand.
// Reads (Resolve) use an RWMutex read lock so the common "is this prism
// already loaded" path never contends with loads of other prisms, the same
// split circuitbreaker.Registry uses between its Get and write paths.
type Registry struct {
	mu       sync.RWMutex
	handles  map[string]*Handle
	opts     Options
	breakers *circuitbreaker.Registry
	loadSF   singleflight.Group
	lru      *lru.Cache[string, struct{}]
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = plugin.DefaultReadyTimeout
	}
	r := &Registry{
		handles:  make(map[string]*Handle),
		opts:     opts,
		breakers: circuitbreaker.NewRegistry(),
	}
	if opts.MaxLoaded > 0 {
		c, _ := lru.NewWithEvict[string, struct{}](opts.MaxLoaded, func(key string, _ struct{}) {
			r.evict(key)
		})
		r.lru = c
	}
	return r
}

// Discover registers a spectrum and its launch command without starting
// the prism. The handle begins in the Discovered state.
func (r *Registry) Discover(spectrum *domain.Spectrum, command []string, env map[string]string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := newHandle(spectrum, command, env)
	r.handles[h.id.String()] = h
	return h
}

// BreakerState reports the load circuit breaker's state for id as
// "closed"/"open"/"half_open", or "" if the breaker has never been
// consulted for this prism (no load has failed or succeeded yet).
func (r *Registry) BreakerState(id domain.PrismId) string {
	return r.breakers.Snapshot()[id.String()]
}

// Resolve looks up a known prism by id without loading it.
func (r *Registry) Resolve(id domain.PrismId) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id.String()]
	return h, ok
}

// List returns every discovered handle.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// Load returns a Ready handle for id, spawning the prism if it is not
// already loaded. Concurrent Load calls for the same id share one spawn
// attempt via singleflight, so a burst of wavefronts for a cold prism
// starts it exactly once.
func (r *Registry) Load(ctx context.Context, id domain.PrismId) (*Handle, error) {
	h, ok := r.Resolve(id)
	if !ok {
		return nil, domain.NewError(domain.ErrPrismNotFound, fmt.Sprintf("prism %s not discovered", id))
	}

	if h.State() == domain.HandleReady {
		h.acquire()
		if r.lru != nil {
			r.lru.Add(id.String(), struct{}{})
		}
		return h, nil
	}

	breaker := r.breakers.Get(id.String(), r.opts.Breaker)
	if breaker != nil && !breaker.Allow() {
		return nil, domain.NewError(domain.ErrPrismLoadFailed, fmt.Sprintf("prism %s load circuit open", id))
	}

	_, err, _ := r.loadSF.Do(id.String(), func() (any, error) {
		return nil, r.spawnAndConnect(ctx, h)
	})
	if err != nil {
		if breaker != nil {
			breaker.RecordFailure()
		}
		return nil, err
	}
	if breaker != nil {
		breaker.RecordSuccess()
	}

	h.acquire()
	if r.lru != nil {
		r.lru.Add(id.String(), struct{}{})
	}
	return h, nil
}

func (r *Registry) spawnAndConnect(ctx context.Context, h *Handle) error {
	if h.State() == domain.HandleReady {
		return nil
	}
	h.setLoading()

	spawned, err := plugin.Spawn(ctx, h.command, h.env, r.opts.WorkDir, r.opts.ReadyTimeout)
	if err != nil {
		h.setFailed(err)
		return domain.NewError(domain.ErrPrismLoadFailed, err.Error())
	}

	client := plugin.NewClient(spawned.SocketPath)
	if err := client.Dial(ctx, r.opts.ReadyTimeout); err != nil {
		_ = spawned.Stop(plugin.DefaultStopGrace)
		h.setFailed(err)
		return domain.NewError(domain.ErrPrismLoadFailed, err.Error())
	}

	h.setReady(client, spawned)
	return nil
}

// Release returns a handle acquired by Load, signaling it is no longer in
// use by that Pulse and may be evicted.
func (r *Registry) Release(h *Handle) {
	h.release()
}

// Unload tears down a loaded prism, waiting for it to become unused first.
func (r *Registry) Unload(ctx context.Context, id domain.PrismId) error {
	h, ok := r.Resolve(id)
	if !ok {
		return domain.NewError(domain.ErrPrismNotFound, fmt.Sprintf("prism %s not discovered", id))
	}
	return r.unloadHandle(ctx, h)
}

func (r *Registry) unloadHandle(ctx context.Context, h *Handle) error {
	for h.inUse() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	h.teardown()
	if r.lru != nil {
		r.lru.Remove(h.id.String())
	}
	return nil
}

func (r *Registry) evict(key string) {
	r.mu.RLock()
	h, ok := r.handles[key]
	r.mu.RUnlock()
	if !ok || h.inUse() {
		return
	}
	h.teardown()
}

// Shutdown unloads every loaded handle, used during supervisor drain.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		if h.State() == domain.HandleReady {
			if err := r.unloadHandle(ctx, h); err != nil {
				return err
			}
		}
	}
	return nil
}
