package dialogue

import "sync"

// Subscribers is a registry of advance handlers for TextRenderer
// implementations. The zero value is ready to use.
type Subscribers struct {
	mu   sync.Mutex
	fns  map[int]func()
	next int
}

// Subscribe registers fn and returns a function that removes it. The
// returned function may be called more than once.
func (s *Subscribers) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[int]func())
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// Notify calls every registered handler. Handlers run outside the lock so
// they may unsubscribe themselves.
func (s *Subscribers) Notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of registered handlers.
func (s *Subscribers) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
