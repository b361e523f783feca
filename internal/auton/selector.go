package auton

import (
	"fmt"
	"sync"
)

// Selector remembers which routine will run. The menu writes it and the
// autonomous period reads it.
type Selector struct {
	mu    sync.Mutex
	names []string
	idx   int
}

func NewSelector(names []string, selected string) (*Selector, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrUnknownRoutine)
	}
	s := &Selector{names: append([]string(nil), names...)}
	if err := s.Select(selected); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Selector) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[s.idx]
}

func (s *Selector) Select(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.names {
		if n == name {
			s.idx = i
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownRoutine, name)
}

// Next moves down the list, wrapping to the first entry.
func (s *Selector) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = (s.idx + 1) % len(s.names)
	return s.names[s.idx]
}

// Prev moves up the list, wrapping to the last entry.
func (s *Selector) Prev() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = (s.idx - 1 + len(s.names)) % len(s.names)
	return s.names[s.idx]
}
