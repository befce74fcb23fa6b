package registry

import (
	"context"
	"testing"
	"time"

	"github.com/ultraviolet/uv/internal/domain"
)

func sampleSpectrum(name string) *domain.Spectrum {
	return &domain.Spectrum{
		Namespace: "demo",
		Name:      name,
		Wavelengths: []domain.Wavelength{
			{Frequency: "ping"},
		},
	}
}

func TestDiscoverAndResolve(t *testing.T) {
	r := New(Options{})
	h := r.Discover(sampleSpectrum("one"), []string{"./one"}, nil)
	if h.State() != domain.HandleDiscovered {
		t.Fatalf("expected Discovered state, got %s", h.State())
	}

	got, ok := r.Resolve(domain.PrismId{Namespace: "demo", Name: "one"})
	if !ok || got != h {
		t.Fatal("expected Resolve to find the discovered handle")
	}

	_, ok = r.Resolve(domain.PrismId{Namespace: "demo", Name: "missing"})
	if ok {
		t.Fatal("expected Resolve to miss an unknown prism")
	}
}

func TestLoadUnknownPrismFails(t *testing.T) {
	r := New(Options{})
	_, err := r.Load(context.Background(), domain.PrismId{Namespace: "demo", Name: "ghost"})
	if err == nil {
		t.Fatal("expected error loading undiscovered prism")
	}
	uverr, ok := err.(*domain.UVError)
	if !ok || uverr.Kind != domain.ErrPrismNotFound {
		t.Fatalf("expected ErrPrismNotFound, got %v", err)
	}
}

func TestLoadReturnsAlreadyReadyHandleWithoutReentering(t *testing.T) {
	r := New(Options{})
	h := r.Discover(sampleSpectrum("warm"), []string{"./warm"}, nil)
	h.setReady(nil, nil)

	got, err := r.Load(context.Background(), h.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != h {
		t.Fatal("expected the same handle back")
	}
	if !h.inUse() {
		t.Fatal("expected Load to acquire the handle")
	}
}

func TestUnloadWaitsForReleaseBeforeTeardown(t *testing.T) {
	r := New(Options{})
	h := r.Discover(sampleSpectrum("busy"), []string{"./busy"}, nil)
	h.setReady(nil, nil)
	h.acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Unload(ctx, h.ID()) }()

	time.Sleep(30 * time.Millisecond)
	if h.State() != domain.HandleReady {
		t.Fatal("expected teardown to wait while handle is in use")
	}
	r.Release(h)

	if err := <-done; err != nil {
		t.Fatalf("unexpected unload error: %v", err)
	}
	if h.State() != domain.HandleReleased {
		t.Fatalf("expected Released state, got %s", h.State())
	}
}

func TestLRUEvictsLeastRecentlyUsedWhenOverCapacity(t *testing.T) {
	r := New(Options{MaxLoaded: 1})
	a := r.Discover(sampleSpectrum("a"), []string{"./a"}, nil)
	b := r.Discover(sampleSpectrum("b"), []string{"./b"}, nil)
	a.setReady(nil, nil)
	b.setReady(nil, nil)

	if _, err := r.Load(context.Background(), a.ID()); err != nil {
		t.Fatalf("load a: %v", err)
	}
	r.Release(a)

	if _, err := r.Load(context.Background(), b.ID()); err != nil {
		t.Fatalf("load b: %v", err)
	}
	r.Release(b)

	if a.State() != domain.HandleReleased {
		t.Fatalf("expected a to be evicted after b pushed it out, got %s", a.State())
	}
	if b.State() != domain.HandleReady {
		t.Fatalf("expected b to remain ready, got %s", b.State())
	}
}
