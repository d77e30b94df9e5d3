// Package reconnect finds disconnect/reconnect events in a student's session timeline.
//
// Sessions are walked in start order while a single coverage window is
// maintained. A session that starts inside the window (within tolerance)
// only extends it; a session that starts after the window has closed is a
// reconnect. Simultaneous devices only extend the window; they are reported
// through interval overlap instead.
//
// The tolerance is applied after the window closes, so gaps up to the
// tolerance are absorbed and never produce an event.
package reconnect

import (
	"sort"
	"time"
)

// DefaultTolerance is the slack allowed between the end of the coverage
// window and the start of the next session before it counts as a reconnect.
const DefaultTolerance = 2 * time.Second

// Segment is one attendance session with provenance for reporting.
type Segment struct {
	// Start and End bound the session. Prepare fills a missing endpoint
	// from the other one.
	Start time.Time
	End   time.Time

	// RawName is the display name the session was recorded under.
	RawName string

	// JoinRaw and LeaveRaw are the original timestamp cells.
	JoinRaw  string
	LeaveRaw string
}

// Event is one disconnect followed by a reconnect.
type Event struct {
	// Index is the 1-based position of the event in the student's timeline.
	Index int

	// Disconnect is when coverage ended.
	Disconnect time.Time

	// Reconnect is when the next session started.
	Reconnect time.Time

	// Gap is Reconnect - Disconnect, never negative.
	Gap time.Duration

	// Before is the session that held the coverage window at disconnect.
	Before Segment

	// After is the session that started at reconnect.
	After Segment
}

// Detector classifies gaps between sequential sessions.
type Detector struct {
	tolerance time.Duration
}

// Option configures the Detector.
type Option func(*Detector)

// WithTolerance sets the overlap tolerance (default 2s).
func WithTolerance(d time.Duration) Option {
	return func(det *Detector) {
		if d >= 0 {
			det.tolerance = d
		}
	}
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Prepare repairs and orders segments for detection. A missing endpoint is
// copied from the other one, inverted pairs are swapped, and segments with
// no timestamps at all are dropped. The result is sorted by (start, end).
func Prepare(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Start.IsZero() && seg.End.IsZero() {
			continue
		}
		if seg.Start.IsZero() {
			seg.Start = seg.End
		}
		if seg.End.IsZero() {
			seg.End = seg.Start
		}
		if seg.End.Before(seg.Start) {
			seg.Start, seg.End = seg.End, seg.Start
		}
		out = append(out, seg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].End.Before(out[j].End)
	})
	return out
}

// Detect returns the reconnect events for one student's sessions.
func (d *Detector) Detect(segments []Segment) []Event {
	segs := Prepare(segments)
	if len(segs) == 0 {
		return nil
	}

	var events []Event
	coverage := segs[0]
	coverageEnd := coverage.End

	for _, seg := range segs[1:] {
		if !seg.Start.After(coverageEnd.Add(d.tolerance)) {
			if seg.End.After(coverageEnd) {
				coverage = seg
				coverageEnd = seg.End
			}
			continue
		}

		gap := seg.Start.Sub(coverageEnd)
		if gap < 0 {
			gap = 0
		}
		events = append(events, Event{
			Index:      len(events) + 1,
			Disconnect: coverageEnd,
			Reconnect:  seg.Start,
			Gap:        gap,
			Before:     coverage,
			After:      seg,
		})

		coverage = seg
		coverageEnd = seg.End
	}

	return events
}
