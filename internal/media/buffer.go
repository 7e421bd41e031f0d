package media

import (
	"strings"
	"sync"
)

// safeBuffer is a strings.Builder guarded for concurrent writes from the
// two stream-reading goroutines.
type safeBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *safeBuffer) WriteString(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.WriteString(str)
}

func (s *safeBuffer) WriteByte(c byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.b.WriteByte(c)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
