package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler lets through the first n of every d debug events.
// A zero ratio disables sampling so every event passes.
type ratioSampler struct {
	mu   sync.Mutex
	n, d int
	seen int
}

func newRatioSampler(n, d int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(n, d)
	return s
}

func (s *ratioSampler) Set(n, d int) {
	if n <= 0 || d <= 0 {
		n, d = 0, 0
	}
	s.mu.Lock()
	s.n, s.d, s.seen = min(n, d), d, 0
	s.mu.Unlock()
}

func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d == 0 {
		return true
	}
	pos := s.seen % s.d
	s.seen = pos + 1
	return pos < s.n
}

// parseRatio accepts "n/d" or a bare "d" meaning 1/d. Anything else disables sampling.
func parseRatio(raw string) (int, int) {
	num, den, found := strings.Cut(strings.TrimSpace(raw), "/")
	if !found {
		num, den = "1", num
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return 0, 0
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil || n <= 0 || d <= 0 {
		return 0, 0
	}
	return n, d
}
