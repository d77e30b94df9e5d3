package reconnect

import (
	"testing"
	"time"
)

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func seg(start, end int) Segment {
	return Segment{Start: at(start), End: at(end)}
}

func TestDetect_TouchingSessions(t *testing.T) {
	events := New().Detect([]Segment{seg(0, 10), seg(10, 20)})
	if len(events) != 0 {
		t.Errorf("events = %d, want 0 for touching sessions", len(events))
	}
}

func TestDetect_SingleGap(t *testing.T) {
	events := New().Detect([]Segment{seg(20, 30), seg(0, 10)})
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	ev := events[0]
	if ev.Index != 1 {
		t.Errorf("Index = %d, want 1", ev.Index)
	}
	if !ev.Disconnect.Equal(at(10)) {
		t.Errorf("Disconnect = %v, want %v", ev.Disconnect, at(10))
	}
	if !ev.Reconnect.Equal(at(20)) {
		t.Errorf("Reconnect = %v, want %v", ev.Reconnect, at(20))
	}
	if ev.Gap != 10*time.Minute {
		t.Errorf("Gap = %v, want 10m", ev.Gap)
	}
}

func TestDetect_OverlapIsNotReconnect(t *testing.T) {
	// Two devices at once: 9:00-9:30 and 9:15-9:45.
	events := New().Detect([]Segment{seg(0, 30), seg(15, 45)})
	if len(events) != 0 {
		t.Errorf("events = %d, want 0 for overlapping sessions", len(events))
	}
}

func TestDetect_ContainedSessionKeepsWindow(t *testing.T) {
	// The short session inside the long one must not shrink coverage.
	events := New().Detect([]Segment{seg(0, 60), seg(10, 20), seg(70, 80)})
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if !events[0].Disconnect.Equal(at(60)) {
		t.Errorf("Disconnect = %v, want %v", events[0].Disconnect, at(60))
	}
}

func TestDetect_Tolerance(t *testing.T) {
	segs := []Segment{
		{Start: at(0), End: at(10)},
		{Start: at(10).Add(time.Second), End: at(20)},
	}

	if got := New().Detect(segs); len(got) != 0 {
		t.Errorf("events = %d, want 0 within default tolerance", len(got))
	}
	if got := New(WithTolerance(0)).Detect(segs); len(got) != 1 {
		t.Errorf("events = %d, want 1 with zero tolerance", len(got))
	}
}

func TestDetect_ToleranceBoundary(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  int
	}{
		{"one second overlap", at(10).Add(-time.Second), 0},
		{"gap equal to tolerance", at(10).Add(DefaultTolerance), 0},
		{"gap just over tolerance", at(10).Add(DefaultTolerance + time.Second), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := []Segment{seg(0, 10), {Start: tt.start, End: at(20)}}
			if got := New().Detect(segs); len(got) != tt.want {
				t.Errorf("events = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDetect_MultipleEventsNumbered(t *testing.T) {
	events := New().Detect([]Segment{seg(0, 10), seg(15, 20), seg(30, 40)})
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	for i, ev := range events {
		if ev.Index != i+1 {
			t.Errorf("events[%d].Index = %d, want %d", i, ev.Index, i+1)
		}
	}
	if events[1].Gap != 10*time.Minute {
		t.Errorf("events[1].Gap = %v, want 10m", events[1].Gap)
	}
}

func TestPrepare(t *testing.T) {
	segs := Prepare([]Segment{
		{},
		{Start: at(30)},
		{End: at(5)},
		{Start: at(20), End: at(15)},
	})

	if len(segs) != 3 {
		t.Fatalf("segments = %d, want 3 (empty dropped)", len(segs))
	}
	if !segs[0].Start.Equal(at(5)) || !segs[0].End.Equal(at(5)) {
		t.Errorf("missing start not repaired: %+v", segs[0])
	}
	if !segs[1].Start.Equal(at(15)) || !segs[1].End.Equal(at(20)) {
		t.Errorf("inverted pair not swapped: %+v", segs[1])
	}
	if !segs[2].End.Equal(at(30)) {
		t.Errorf("missing end not repaired: %+v", segs[2])
	}
}

func TestDetect_Empty(t *testing.T) {
	if got := New().Detect(nil); got != nil {
		t.Errorf("Detect(nil) = %v, want nil", got)
	}
}
