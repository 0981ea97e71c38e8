package engine

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

var rangeRe = regexp.MustCompile(`^\s*(\d+)\s*(?:(-|\+-|±)\s*(\d+))?\s*$`)

// RollRange supports: N, A-B (inclusive), A+-B / A±B (A plus or minus B).
// The result is clamped to 0..100. Unparseable expressions roll 0.
func RollRange(r *rand.Rand, expr string) int {
	lo, hi, ok := ParseRange(expr)
	if !ok {
		return 0
	}
	if hi == lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// ParseRange returns the clamped inclusive bounds of a range expression.
func ParseRange(expr string) (lo, hi int, ok bool) {
	m := rangeRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return 0, 0, false
	}
	a, _ := strconv.Atoi(m[1])
	if m[2] == "" {
		a = Clamp(0, 100, a)
		return a, a, true
	}
	b, _ := strconv.Atoi(m[3])
	switch m[2] {
	case "-":
		lo, hi = a, b
	default:
		lo, hi = a-b, a+b
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return Clamp(0, 100, lo), Clamp(0, 100, hi), true
}

// Clamp bounds v to [lo, hi].
func Clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewRNG returns a generator seeded for reproducible rolls within one session.
func NewRNG(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

// RoundRNG derives a per-round generator so re-rolling round n never depends on
// how many numbers earlier rounds consumed.
func RoundRNG(seed int64, round int) *rand.Rand {
	return NewRNG(seed*31 + int64(round)*7919)
}
