package xmfile

// arena hands out sub-slices of big pre-allocated chunks.
//
// Patterns allocate a lot of tiny slices (a row is a slice
// of note IDs); keeping them inside a few chunks makes
// a parser re-use almost allocation-free.
type arena[T any] struct {
	chunks    [][]T
	used      int // Elements used in the current chunk
	current   int // Current chunk index
	chunkSize int
}

func newArena[T any](chunkSize int) arena[T] {
	return arena[T]{chunkSize: chunkSize}
}

// reset makes all chunks available again.
// The previously returned slices should not be used after that.
func (a *arena[T]) reset() {
	a.used = 0
	a.current = 0
}

// alloc returns a zeroed slice of n elements.
func (a *arena[T]) alloc(n int) []T {
	if n > a.chunkSize {
		return make([]T, n)
	}
	for a.current < len(a.chunks) {
		chunk := a.chunks[a.current]
		if len(chunk)-a.used >= n {
			s := chunk[a.used : a.used+n : a.used+n]
			a.used += n
			var zero T
			for i := range s {
				s[i] = zero
			}
			return s
		}
		a.current++
		a.used = 0
	}
	a.chunks = append(a.chunks, make([]T, a.chunkSize))
	a.used = n
	return a.chunks[a.current][:n:n]
}
