package entitle

import "context"

// Actor identifies the caller of privileged operations. Regular quota
// and payment paths do not require one; operator paths (ResetUsage) do.
type Actor struct {
	ID    string
	Admin bool
}

type actorContextKey struct{}

// WithActor returns a context carrying the calling actor. Typically set
// by the transport layer after authenticating an operator.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// ActorFrom extracts the actor from the context, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}
