package refraction

import (
	"context"

	"github.com/ultraviolet/uv/internal/domain"
)

type stackKey struct{}

// stack returns the chain of prism ids already in flight on this refraction
// path, root first.
func stack(ctx context.Context) []domain.PrismId {
	s, _ := ctx.Value(stackKey{}).([]domain.PrismId)
	return s
}

// push extends the dependency stack with id, reporting false without
// modifying ctx if id is already on it — the RefractionCycle case.
func push(ctx context.Context, id domain.PrismId) (context.Context, bool) {
	s := stack(ctx)
	for _, v := range s {
		if v == id {
			return ctx, false
		}
	}
	next := make([]domain.PrismId, len(s)+1)
	copy(next, s)
	next[len(s)] = id
	return context.WithValue(ctx, stackKey{}, next), true
}

// pushCaller seeds or extends the stack with the prism about to serve a
// refraction call. It is a no-op when id is already the most recent entry,
// which is the ordinary case for every hop past the first: the callee of
// the previous hop becomes this hop's caller, and was already pushed as
// that hop's target. Otherwise it pushes id as push does: onto an empty
// stack at a chain's first hop, or reporting a cycle when id is already on
// the stack below the most recent entry.
func pushCaller(ctx context.Context, id domain.PrismId) (context.Context, bool) {
	s := stack(ctx)
	if len(s) > 0 && s[len(s)-1] == id {
		return ctx, true
	}
	return push(ctx, id)
}
