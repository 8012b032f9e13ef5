// Package observability tracks which fields and operators queries
// actually filter on, per entity. Operators use it to decide which
// warehouse columns deserve indexes in the next snapshot build.
package observability

import (
	"sort"
	"sync"
	"time"
)

// PredicateStats tracks filter predicate frequency per entity field.
type PredicateStats struct {
	mu     sync.RWMutex
	fields map[string]*FieldStats
	window time.Duration
}

// FieldStats holds usage statistics for one entity field.
type FieldStats struct {
	Entity    string         `json:"entity"`
	Field     string         `json:"field"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Operators map[string]int `json:"operators"`
}

// NewPredicateStats creates a tracker. Entries older than window are
// pruned on read; a zero window keeps everything.
func NewPredicateStats(window time.Duration) *PredicateStats {
	return &PredicateStats{
		fields: make(map[string]*FieldStats),
		window: window,
	}
}

// Record notes one predicate occurrence. O(1) and safe for concurrent use.
func (p *PredicateStats) Record(entity, field, operator string) {
	key := entity + "." + field

	p.mu.Lock()
	defer p.mu.Unlock()

	stats, ok := p.fields[key]
	if !ok {
		stats = &FieldStats{
			Entity:    entity,
			Field:     field,
			Operators: make(map[string]int),
		}
		p.fields[key] = stats
	}
	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

// Top returns the n most frequently filtered fields, most frequent
// first. The returned stats are copies.
func (p *PredicateStats) Top(n int) []FieldStats {
	cutoff := time.Time{}
	if p.window > 0 {
		cutoff = time.Now().Add(-p.window)
	}

	p.mu.RLock()
	out := make([]FieldStats, 0, len(p.fields))
	for _, s := range p.fields {
		if !cutoff.IsZero() && s.LastSeen.Before(cutoff) {
			continue
		}
		cp := *s
		cp.Operators = make(map[string]int, len(s.Operators))
		for op, c := range s.Operators {
			cp.Operators[op] = c
		}
		out = append(out, cp)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Entity+"."+out[i].Field < out[j].Entity+"."+out[j].Field
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
