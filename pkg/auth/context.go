package auth

import "context"

type storeContextKey struct{}

// WithStore attaches s to ctx for the navigation layer.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, s)
}

// StoreFromContext returns the store attached with WithStore, or nil.
func StoreFromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(storeContextKey{}).(*Store)
	return s
}

// StateFromContext returns the current state of the attached store. The
// second value is false when no store is attached.
func StateFromContext(ctx context.Context) (State, bool) {
	s := StoreFromContext(ctx)
	if s == nil {
		return State{}, false
	}
	return s.State(), true
}
