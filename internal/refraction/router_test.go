package refraction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/registry"
)

func callerSpectrum(t *testing.T, transpose, reflection map[string]string) *domain.Spectrum {
	t.Helper()
	s := &domain.Spectrum{
		Namespace: "demo",
		Name:      "caller",
		Version:   "1.0.0",
		Refractions: []domain.Refraction{
			{
				Name:          "lookup",
				TargetPrismID: "demo:callee",
				TargetFreq:    "find",
				Transpose:     transpose,
				Reflection:    reflection,
			},
		},
	}
	if err := s.ValidateStructure(); err != nil {
		t.Fatalf("validate caller spectrum: %v", err)
	}
	return s
}

type fakeEngine struct {
	wavefront domain.Wavefront
	trap      domain.Trap
	photons   []domain.Photon
}

func (f *fakeEngine) Invoke(ctx context.Context, w domain.Wavefront, emit func(domain.Photon)) domain.Trap {
	f.wavefront = w
	for _, p := range f.photons {
		emit(p)
	}
	return f.trap
}

func TestRouterHandleAppliesTransposeAndReflection(t *testing.T) {
	s := callerSpectrum(t,
		map[string]string{"query": "search_term"},
		map[string]string{"match": "hit"})
	reg := registry.New(registry.Options{})
	reg.Discover(s, nil, nil)

	photonValue, _ := json.Marshal(map[string]any{"hit": "found it", "extra": "ignored"})
	fe := &fakeEngine{
		trap:    domain.NewOKTrap("call-1"),
		photons: []domain.Photon{{CorrelationID: "call-1", Sequence: 0, Value: photonValue}},
	}
	router := New(reg, fe)

	var reflected []domain.Photon
	trap := router.Handle(context.Background(),
		domain.PrismId{Namespace: "demo", Name: "caller"},
		map[string]any{"search_term": "widgets"},
		domain.RefractionCall{CorrelationID: "call-1", Name: "lookup"},
		func(p domain.Photon) { reflected = append(reflected, p) })

	if trap.Status != domain.TrapOK {
		t.Fatalf("expected ok trap, got %+v", trap)
	}
	if fe.wavefront.PrismID != "demo:callee" || fe.wavefront.Frequency != "find" {
		t.Fatalf("unexpected nested wavefront target: %+v", fe.wavefront)
	}
	var sentInput map[string]any
	if err := json.Unmarshal(fe.wavefront.Input, &sentInput); err != nil {
		t.Fatalf("unmarshal nested input: %v", err)
	}
	if sentInput["query"] != "widgets" {
		t.Fatalf("expected transpose to rename search_term -> query, got %v", sentInput)
	}
	if len(reflected) != 1 {
		t.Fatalf("expected 1 reflected photon, got %d", len(reflected))
	}
	var reflectedValue map[string]any
	_ = json.Unmarshal(reflected[0].Value, &reflectedValue)
	if reflectedValue["match"] != "found it" {
		t.Fatalf("expected reflection to rename hit -> match, got %v", reflectedValue)
	}
	if _, present := reflectedValue["extra"]; present {
		t.Fatalf("reflection should only carry mapped fields, got %v", reflectedValue)
	}
}

func TestRouterHandleMissingRequiredTransposeFieldIsTransposeMissing(t *testing.T) {
	s := callerSpectrum(t, map[string]string{"query": "search_term"}, nil)
	reg := registry.New(registry.Options{})
	reg.Discover(s, nil, nil)
	router := New(reg, &fakeEngine{trap: domain.NewOKTrap("call-2")})

	trap := router.Handle(context.Background(),
		domain.PrismId{Namespace: "demo", Name: "caller"},
		map[string]any{},
		domain.RefractionCall{CorrelationID: "call-2", Name: "lookup"},
		func(domain.Photon) {})

	if trap.Error == nil || trap.Error.Kind != domain.ErrTransposeMissing {
		t.Fatalf("expected TransposeMissing, got %+v", trap)
	}
}

func TestRouterHandleOptionalTransposeFieldMayBeAbsent(t *testing.T) {
	s := callerSpectrum(t, map[string]string{"query": "search_term?"}, nil)
	reg := registry.New(registry.Options{})
	reg.Discover(s, nil, nil)
	fe := &fakeEngine{trap: domain.NewOKTrap("call-3")}
	router := New(reg, fe)

	trap := router.Handle(context.Background(),
		domain.PrismId{Namespace: "demo", Name: "caller"},
		map[string]any{},
		domain.RefractionCall{CorrelationID: "call-3", Name: "lookup"},
		func(domain.Photon) {})

	if trap.Status != domain.TrapOK {
		t.Fatalf("expected ok trap with optional binding absent, got %+v", trap)
	}
	var sentInput map[string]any
	_ = json.Unmarshal(fe.wavefront.Input, &sentInput)
	if _, present := sentInput["query"]; present {
		t.Fatalf("expected query to be omitted when optional source is absent, got %v", sentInput)
	}
}

func TestRouterHandleUnknownRefractionIsRefractionFailed(t *testing.T) {
	s := callerSpectrum(t, nil, nil)
	reg := registry.New(registry.Options{})
	reg.Discover(s, nil, nil)
	router := New(reg, &fakeEngine{})

	trap := router.Handle(context.Background(),
		domain.PrismId{Namespace: "demo", Name: "caller"},
		map[string]any{},
		domain.RefractionCall{CorrelationID: "call-4", Name: "does-not-exist"},
		func(domain.Photon) {})

	if trap.Error == nil || trap.Error.Kind != domain.ErrRefractionFailed {
		t.Fatalf("expected RefractionFailed for unknown refraction, got %+v", trap)
	}
}

func TestRouterHandleDetectsSelfCycle(t *testing.T) {
	s := &domain.Spectrum{
		Namespace: "test",
		Name:      "a",
		Version:   "1.0.0",
		Refractions: []domain.Refraction{
			{Name: "recurse", TargetPrismID: "test:a", TargetFreq: "noop"},
		},
	}
	if err := s.ValidateStructure(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	reg := registry.New(registry.Options{})
	reg.Discover(s, nil, nil)
	router := New(reg, &fakeEngine{})

	trap := router.Handle(context.Background(),
		domain.PrismId{Namespace: "test", Name: "a"},
		map[string]any{},
		domain.RefractionCall{CorrelationID: "call-5", Name: "recurse"},
		func(domain.Photon) {})

	if trap.Error == nil || trap.Error.Kind != domain.ErrRefractionCycle {
		t.Fatalf("expected RefractionCycle, got %+v", trap)
	}
}

// chainEngine drives a second hop through the same Router the moment the
// first hop's nested wavefront would start running, the way a real
// Engine.Invoke driving a prism that itself issues a refraction call does.
// It threads whatever ctx it receives back into Router.Handle, so the cycle
// stack built by the first hop is exactly what the second hop sees.
type chainEngine struct {
	router *Router
	// onInvoke, keyed by prism id, lets a test script a second hop (or a
	// terminal OK) for whichever prism the chain reaches next.
	onInvoke map[string]func(ctx context.Context, w domain.Wavefront) domain.Trap
}

func (c *chainEngine) Invoke(ctx context.Context, w domain.Wavefront, emit func(domain.Photon)) domain.Trap {
	if fn, ok := c.onInvoke[w.PrismID]; ok {
		return fn(ctx, w)
	}
	return domain.NewOKTrap(w.CorrelationID)
}

func TestRouterHandleAllowsLegitimateMultiHopChain(t *testing.T) {
	a := &domain.Spectrum{
		Namespace: "demo", Name: "a", Version: "1.0.0",
		Refractions: []domain.Refraction{{Name: "toB", TargetPrismID: "demo:b", TargetFreq: "find"}},
	}
	b := &domain.Spectrum{
		Namespace: "demo", Name: "b", Version: "1.0.0",
		Refractions: []domain.Refraction{{Name: "toC", TargetPrismID: "demo:c", TargetFreq: "find"}},
	}
	if err := a.ValidateStructure(); err != nil {
		t.Fatalf("validate a: %v", err)
	}
	if err := b.ValidateStructure(); err != nil {
		t.Fatalf("validate b: %v", err)
	}

	reg := registry.New(registry.Options{})
	reg.Discover(a, nil, nil)
	reg.Discover(b, nil, nil)

	router := &Router{registry: reg}
	ce := &chainEngine{router: router}
	ce.onInvoke = map[string]func(context.Context, domain.Wavefront) domain.Trap{
		"demo:b": func(ctx context.Context, w domain.Wavefront) domain.Trap {
			return router.Handle(ctx,
				domain.PrismId{Namespace: "demo", Name: "b"},
				map[string]any{},
				domain.RefractionCall{CorrelationID: w.CorrelationID, Name: "toC"},
				func(domain.Photon) {})
		},
	}
	router.engine = ce

	trap := router.Handle(context.Background(),
		domain.PrismId{Namespace: "demo", Name: "a"},
		map[string]any{},
		domain.RefractionCall{CorrelationID: "chain-1", Name: "toB"},
		func(domain.Photon) {})

	if trap.Status != domain.TrapOK {
		t.Fatalf("expected a legitimate a->b->c chain to succeed, got %+v", trap)
	}
}

func TestRouterHandleDetectsCrossPrismCycle(t *testing.T) {
	a := &domain.Spectrum{
		Namespace: "demo", Name: "a", Version: "1.0.0",
		Refractions: []domain.Refraction{{Name: "toB", TargetPrismID: "demo:b", TargetFreq: "find"}},
	}
	b := &domain.Spectrum{
		Namespace: "demo", Name: "b", Version: "1.0.0",
		Refractions: []domain.Refraction{{Name: "toA", TargetPrismID: "demo:a", TargetFreq: "find"}},
	}
	if err := a.ValidateStructure(); err != nil {
		t.Fatalf("validate a: %v", err)
	}
	if err := b.ValidateStructure(); err != nil {
		t.Fatalf("validate b: %v", err)
	}

	reg := registry.New(registry.Options{})
	reg.Discover(a, nil, nil)
	reg.Discover(b, nil, nil)

	router := &Router{registry: reg}
	ce := &chainEngine{router: router}
	ce.onInvoke = map[string]func(context.Context, domain.Wavefront) domain.Trap{
		"demo:b": func(ctx context.Context, w domain.Wavefront) domain.Trap {
			return router.Handle(ctx,
				domain.PrismId{Namespace: "demo", Name: "b"},
				map[string]any{},
				domain.RefractionCall{CorrelationID: w.CorrelationID, Name: "toA"},
				func(domain.Photon) {})
		},
	}
	router.engine = ce

	trap := router.Handle(context.Background(),
		domain.PrismId{Namespace: "demo", Name: "a"},
		map[string]any{},
		domain.RefractionCall{CorrelationID: "cycle-1", Name: "toB"},
		func(domain.Photon) {})

	if trap.Error == nil || trap.Error.Kind != domain.ErrRefractionCycle {
		t.Fatalf("expected RefractionCycle for a->b->a, got %+v", trap)
	}
}
