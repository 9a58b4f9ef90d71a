// Package sampling spreads a fixed selection budget across weighted groups.
package sampling

import (
	"math"
	"sort"
)

// Group is a named population of Count items.
type Group struct {
	Key   string
	Count int
}

// CalculateWeight splits target picks across groups on a log scale so small
// groups stay represented. Every group gets at least one pick and never more
// than its own count. When the populations fit in target, counts are returned as is.
func CalculateWeight(groups []Group, target int) map[string]int {
	sorted := make([]Group, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count < sorted[j].Count })

	n := len(sorted)
	out := make(map[string]int, n)
	total := 0
	for _, g := range sorted {
		total += g.Count
	}
	if total <= target {
		for _, g := range sorted {
			out[g.Key] = g.Count
		}
		return out
	}

	in := make([]int, n)
	logs := make([]float64, n)
	var sumLog float64
	for i, g := range sorted {
		in[i] = g.Count
		logs[i] = math.Log(float64(g.Count))
		sumLog += logs[i]
	}
	scale := 0.0
	if sumLog > 0 {
		scale = float64(target) / sumLog
	}

	picks := make([]int, n)
	sum := 0
	for i := range logs {
		picks[i] = int(math.Ceil(logs[i] * scale))
		if picks[i] == 0 {
			picks[i] = 1
		}
		sum += picks[i]
	}
	diff := sum - target

	for i := 0; i < n; i++ {
		switch {
		case picks[i] > in[i]:
			diff += in[i] - picks[i]
			picks[i] = in[i]
		case diff < 0:
			remaining := n - i
			if diff < remaining && i != n-1 && picks[i] == picks[i+1] {
				continue
			}
			inc := ceilDiv(-diff, remaining)
			prev := picks[i]
			picks[i] = min(picks[i]+inc, in[i])
			diff += picks[i] - prev
		}
		if diff > 0 {
			remaining := n - i
			dec := ceilDiv(diff, remaining)
			prev := picks[i]
			picks[i] = max(1, picks[i]-dec)
			diff += picks[i] - prev
		}
	}

	for i, g := range sorted {
		out[g.Key] = picks[i]
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// RoundRobin takes one item from each group in turn, larger groups first,
// until limit items are taken. A negative limit takes everything.
func RoundRobin[T any](groups [][]T, limit int) []T {
	ordered := make([][]T, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	var out []T
	for j := 0; ; j++ {
		took := false
		for _, g := range ordered {
			if j >= len(g) {
				continue
			}
			if limit >= 0 && len(out) >= limit {
				return out
			}
			out = append(out, g[j])
			took = true
		}
		if !took {
			return out
		}
	}
}
