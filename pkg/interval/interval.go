// Package interval provides set operations over half-open [start, end) time intervals.
//
// Every function filters out invalid intervals (zero endpoints or end <= start)
// before doing any work, so callers may pass raw session data directly.
package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an interval from two timestamps. Inverted pairs are swapped.
// Returns false when either timestamp is missing or the pair is degenerate.
func New(a, b time.Time) (Interval, bool) {
	if a.IsZero() || b.IsZero() {
		return Interval{}, false
	}
	if b.Before(a) {
		a, b = b, a
	}
	iv := Interval{Start: a, End: b}
	return iv, iv.Valid()
}

// Valid reports whether both endpoints are set and End is after Start.
func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.End.After(iv.Start)
}

// Minutes returns the interval length in minutes.
func (iv Interval) Minutes() float64 {
	return iv.End.Sub(iv.Start).Minutes()
}

// valid returns a start-sorted copy of the valid intervals.
func valid(ivs []Interval) []Interval {
	out := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Valid() {
			out = append(out, iv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Merge coalesces overlapping or touching intervals into maximal disjoint runs.
// The result is sorted by start.
func Merge(ivs []Interval) []Interval {
	sorted := valid(ivs)
	if len(sorted) == 0 {
		return nil
	}

	merged := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if !iv.Start.After(cur.End) {
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = iv
	}
	merged = append(merged, cur)

	return merged
}

// TotalMinutes returns the minutes covered by the union of the intervals.
func TotalMinutes(ivs []Interval) float64 {
	total := 0.0
	for _, iv := range Merge(ivs) {
		total += iv.Minutes()
	}
	return total
}

// HasAnyOverlap reports whether two distinct input intervals share an open point.
// Touching intervals (one ends exactly where the next starts) do not overlap.
func HasAnyOverlap(ivs []Interval) bool {
	sorted := valid(ivs)
	if len(sorted) < 2 {
		return false
	}

	latestEnd := sorted[0].End
	for _, iv := range sorted[1:] {
		if iv.Start.Before(latestEnd) {
			return true
		}
		if iv.End.After(latestEnd) {
			latestEnd = iv.End
		}
	}
	return false
}

// OverlapsOrNear reports whether any merged interval of a overlaps, touches,
// or lies within maxGap of any merged interval of b.
func OverlapsOrNear(a, b []Interval, maxGap time.Duration) bool {
	ma, mb := Merge(a), Merge(b)
	if len(ma) == 0 || len(mb) == 0 {
		return false
	}

	i, j := 0, 0
	for i < len(ma) && j < len(mb) {
		x, y := ma[i], mb[j]

		if !x.End.Before(y.Start) && !y.End.Before(x.Start) {
			return true
		}

		switch {
		case x.End.Before(y.Start):
			if y.Start.Sub(x.End) <= maxGap {
				return true
			}
			i++
		case y.End.Before(x.Start):
			if x.Start.Sub(y.End) <= maxGap {
				return true
			}
			j++
		case x.End.Before(y.End):
			i++
		default:
			j++
		}
	}
	return false
}

// SubtractMinutes returns the minutes of a that are not covered by b.
func SubtractMinutes(a, b []Interval) float64 {
	ma, mb := Merge(a), Merge(b)
	if len(ma) == 0 {
		return 0
	}
	if len(mb) == 0 {
		return TotalMinutes(ma)
	}

	total := 0.0
	j := 0
	for _, x := range ma {
		cur := x.Start
		for cur.Before(x.End) && j < len(mb) {
			y := mb[j]
			if !y.End.After(cur) {
				j++
				continue
			}
			if !y.Start.Before(x.End) {
				break
			}
			if y.Start.After(cur) {
				total += y.Start.Sub(cur).Minutes()
			}
			if y.End.After(x.End) {
				// y also covers the start of the next interval of a.
				cur = x.End
				break
			}
			cur = y.End
			j++
		}
		if cur.Before(x.End) {
			total += x.End.Sub(cur).Minutes()
		}
	}
	return total
}
