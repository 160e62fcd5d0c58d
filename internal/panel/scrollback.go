package panel

import "sync"

// DefaultScrollback is how many log lines the admin viewer keeps.
const DefaultScrollback = 200

// Scrollback keeps the most recent lines in arrival order, evicting the oldest first.
type Scrollback struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func NewScrollback(limit int) *Scrollback {
	if limit <= 0 {
		limit = DefaultScrollback
	}
	return &Scrollback{limit: limit, lines: make([]string, 0, limit)}
}

func (s *Scrollback) Append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == s.limit {
		copy(s.lines, s.lines[1:])
		s.lines = s.lines[:s.limit-1]
	}
	s.lines = append(s.lines, line)
}

// Lines returns a copy, oldest first.
func (s *Scrollback) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *Scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}
