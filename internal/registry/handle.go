// Package registry implements the prism registry: discovering declared
// prisms, loading them on demand as subprocesses speaking the native ABI,
// and tracking each loaded handle's lifecycle and health.
package registry

import (
	"sync"
	"time"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/plugin"
)

// Handle is one loaded prism: its compiled spectrum, the live connection to
// its subprocess, and the bookkeeping the registry needs to evict and
// reload it.
type Handle struct {
	mu sync.RWMutex

	id         domain.PrismId
	spectrum   *domain.Spectrum
	command    []string
	env        map[string]string
	state      domain.HandleState
	client     *plugin.Client
	spawned    *plugin.Spawned
	loadedAt   time.Time
	lastUsedAt time.Time
	lastError  error
	refCount   int
}

// newHandle creates a Handle in the Discovered state: known to the
// registry but not yet started.
func newHandle(spectrum *domain.Spectrum, command []string, env map[string]string) *Handle {
	return &Handle{
		id:       spectrum.ID(),
		spectrum: spectrum,
		command:  command,
		env:      env,
		state:    domain.HandleDiscovered,
	}
}

// ID returns the handle's prism identifier.
func (h *Handle) ID() domain.PrismId { return h.id }

// Spectrum returns the handle's compiled spectrum.
func (h *Handle) Spectrum() *domain.Spectrum { return h.spectrum }

// State returns the handle's current lifecycle state.
func (h *Handle) State() domain.HandleState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Touch records that a Pulse is about to use this handle. The registry's
// LRU eviction does not read this timestamp (its order is kept by the
// registry's own LRU cache), and there is no idle unload.
func (h *Handle) Touch() {
	h.mu.Lock()
	h.lastUsedAt = time.Now()
	h.mu.Unlock()
}

// LastUsedAt returns the last time a Pulse used this handle.
func (h *Handle) LastUsedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastUsedAt
}

// Client returns the connection to the loaded prism, or nil if it is not
// currently Ready.
func (h *Handle) Client() *plugin.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != domain.HandleReady {
		return nil
	}
	return h.client
}

// acquire marks the handle in use, preventing concurrent unload.
func (h *Handle) acquire() {
	h.mu.Lock()
	h.refCount++
	h.lastUsedAt = time.Now()
	h.mu.Unlock()
}

// release marks the handle no longer in use by one caller.
func (h *Handle) release() {
	h.mu.Lock()
	if h.refCount > 0 {
		h.refCount--
	}
	h.mu.Unlock()
}

func (h *Handle) inUse() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.refCount > 0
}

func (h *Handle) setReady(client *plugin.Client, spawned *plugin.Spawned) {
	h.mu.Lock()
	h.state = domain.HandleReady
	h.client = client
	h.spawned = spawned
	h.loadedAt = time.Now()
	h.lastUsedAt = h.loadedAt
	h.lastError = nil
	h.mu.Unlock()
}

func (h *Handle) setFailed(err error) {
	h.mu.Lock()
	h.state = domain.HandleFailed
	h.lastError = err
	h.mu.Unlock()
}

func (h *Handle) setLoading() {
	h.mu.Lock()
	h.state = domain.HandleLoading
	h.mu.Unlock()
}

func (h *Handle) teardown() {
	h.mu.Lock()
	client := h.client
	spawned := h.spawned
	h.state = domain.HandleUnloading
	h.client = nil
	h.spawned = nil
	h.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
	if spawned != nil {
		_ = spawned.Stop(plugin.DefaultStopGrace)
	}

	h.mu.Lock()
	h.state = domain.HandleReleased
	h.mu.Unlock()
}
