package scene

import (
	"errors"
	"math/rand/v2"
	"sync"
)

// Selector draws one scene per call, uniformly and with replacement.
type Selector struct {
	scenes []string

	mu  sync.Mutex
	rng *rand.Rand
}

type Options struct {
	// Rand overrides the random source, mainly for tests.
	Rand *rand.Rand
}

func NewSelector(scenes []string, opts Options) (*Selector, error) {
	if len(scenes) == 0 {
		return nil, errors.New("scene catalog is empty")
	}

	out := make([]string, len(scenes))
	copy(out, scenes)

	return &Selector{
		scenes: out,
		rng:    opts.Rand,
	}, nil
}

func (s *Selector) Pick() string {
	if s.rng == nil {
		return s.scenes[rand.IntN(len(s.scenes))]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenes[s.rng.IntN(len(s.scenes))]
}

func (s *Selector) Len() int {
	return len(s.scenes)
}

func (s *Selector) Scenes() []string {
	out := make([]string, len(s.scenes))
	copy(out, s.scenes)
	return out
}
