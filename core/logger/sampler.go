package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets through the first keep events of every window of size
// events. A zero ratio disables sampling.
type ratioSampler struct {
	ratio atomic.Uint64 // keep<<32 | window
	seq   atomic.Uint64
}

func newRatioSampler(keep, window int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(keep, window)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(keep, window int) {
	if keep <= 0 || window <= 0 {
		keep, window = 0, 0
	}
	keep = min(keep, window)
	s.ratio.Store(uint64(keep)<<32 | uint64(uint32(window)))
	s.seq.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	keep, window := r>>32, r&0xffffffff
	if window == 0 {
		return true
	}
	return (s.seq.Add(1)-1)%window < keep
}

// parseRatio accepts "keep/window" or a bare "N" meaning 1/N.
// Anything else, including non-positive values, disables sampling.
func parseRatio(raw string) (keep, window int) {
	raw = strings.TrimSpace(raw)
	if a, b, ok := strings.Cut(raw, "/"); ok {
		k, err1 := strconv.Atoi(strings.TrimSpace(a))
		w, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return k, w
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, 0
	}
	return 1, n
}
