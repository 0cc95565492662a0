// internal/page/lazy.go
package page

import "sync"

// Lazy is a compute-once cell. The first Get runs the computation, later
// calls (including concurrent ones racing the first) observe the same value
// or the same error without recomputing.
type Lazy[T any] struct {
	get func() (T, error)
}

// NewLazy wraps fn. A nil fn yields the zero value.
func NewLazy[T any](fn func() (T, error)) *Lazy[T] {
	if fn == nil {
		fn = func() (T, error) {
			var zero T
			return zero, nil
		}
	}
	return &Lazy[T]{get: sync.OnceValues(fn)}
}

func (l *Lazy[T]) Get() (T, error) {
	return l.get()
}
