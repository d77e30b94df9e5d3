// Package resolver groups log sessions into one record per real student.
//
// Sessions are first keyed by identity.Key. Name-only keys are then merged
// into ID keys that share their canonical name: unconditionally when exactly
// one ID key carries that name, and only when the time windows are compatible
// when several do. Name keys that cannot be placed are marked ambiguous.
package resolver

import (
	"sort"
	"time"

	"github.com/ccollicutt/attendlog/pkg/identity"
	"github.com/ccollicutt/attendlog/pkg/interval"
	"github.com/ccollicutt/attendlog/pkg/reconnect"
)

// DefaultMergeGap is how far apart a name-only key's sessions may be from an
// ID key's sessions and still be merged into it.
const DefaultMergeGap = 7 * time.Minute

// MatchSource records how a student's identity was established.
type MatchSource string

const (
	SourceIDInName   MatchSource = "id_in_name"
	SourceNameOnly   MatchSource = "name_only"
	SourceAliasMerge MatchSource = "alias_merge"
	SourceRosterOnly MatchSource = "roster_only"
)

// Session is one raw attendance segment.
type Session struct {
	// Name is the parsed display name.
	Name identity.Name

	// Join and Leave are zero when absent.
	Join  time.Time
	Leave time.Time

	// JoinRaw and LeaveRaw keep the source cells for audit output.
	JoinRaw  string
	LeaveRaw string

	// Duration is the reported minutes, used only without timestamps.
	Duration float64

	Email string
}

// Interval returns the session's time window, if both endpoints are known
// and distinct.
func (s Session) Interval() (interval.Interval, bool) {
	if s.Join.IsZero() || s.Leave.IsZero() {
		return interval.Interval{}, false
	}
	return interval.New(s.Join, s.Leave)
}

// Segment converts the session for reconnect detection.
func (s Session) Segment() reconnect.Segment {
	return reconnect.Segment{
		Start:    s.Join,
		End:      s.Leave,
		RawName:  s.Name.Raw,
		JoinRaw:  s.JoinRaw,
		LeaveRaw: s.LeaveRaw,
	}
}

// Student aggregates every session resolved to one identity key.
type Student struct {
	Key       identity.Key
	Name      string
	Canonical string
	ID        string
	Source    MatchSource

	// RawNames holds every distinct display name seen for the student.
	RawNames map[string]struct{}

	Sessions []Session

	// Intervals holds every session window; Good and Flagged split them by
	// whether the display name carried an ID.
	Intervals []interval.Interval
	Good      []interval.Interval
	Flagged   []interval.Interval

	// GoodDurations and FlaggedDurations are the reported minutes, split
	// the same way.
	GoodDurations    []float64
	FlaggedDurations []float64

	// Ambiguous marks a key that could not be resolved to one person.
	Ambiguous bool

	// MergedFrom lists the name keys folded into this student, in merge order.
	MergedFrom []identity.Key
}

// RawNameList returns the distinct display names in sorted order.
func (s *Student) RawNameList() []string {
	names := make([]string, 0, len(s.RawNames))
	for n := range s.RawNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Segments returns the student's sessions prepared for reconnect detection.
func (s *Student) Segments() []reconnect.Segment {
	segs := make([]reconnect.Segment, 0, len(s.Sessions))
	for _, sess := range s.Sessions {
		segs = append(segs, sess.Segment())
	}
	return reconnect.Prepare(segs)
}

func newStudent(sess Session) *Student {
	st := &Student{
		Key:       sess.Name.Key(),
		Name:      sess.Name.Clean,
		Canonical: identity.Canonical(sess.Name.Clean),
		ID:        sess.Name.ID,
		Source:    SourceNameOnly,
		RawNames:  make(map[string]struct{}),
	}
	if st.ID != "" {
		st.Source = SourceIDInName
	}
	return st
}

func (s *Student) add(sess Session) {
	s.Sessions = append(s.Sessions, sess)
	s.RawNames[sess.Name.Raw] = struct{}{}

	iv, ok := sess.Interval()
	if sess.Name.Flagged() {
		s.FlaggedDurations = append(s.FlaggedDurations, sess.Duration)
		if ok {
			s.Flagged = append(s.Flagged, iv)
		}
	} else {
		s.GoodDurations = append(s.GoodDurations, sess.Duration)
		if ok {
			s.Good = append(s.Good, iv)
		}
	}
	if ok {
		s.Intervals = append(s.Intervals, iv)
	}
}

// absorb returns a copy of s holding the sessions and windows of src.
func (s *Student) absorb(src *Student) *Student {
	out := *s
	out.Sessions = append(append([]Session(nil), s.Sessions...), src.Sessions...)
	out.Intervals = append(append([]interval.Interval(nil), s.Intervals...), src.Intervals...)
	out.Good = append(append([]interval.Interval(nil), s.Good...), src.Good...)
	out.Flagged = append(append([]interval.Interval(nil), s.Flagged...), src.Flagged...)
	out.GoodDurations = append(append([]float64(nil), s.GoodDurations...), src.GoodDurations...)
	out.FlaggedDurations = append(append([]float64(nil), s.FlaggedDurations...), src.FlaggedDurations...)
	out.MergedFrom = append(append([]identity.Key(nil), s.MergedFrom...), src.Key)
	out.RawNames = make(map[string]struct{}, len(s.RawNames)+len(src.RawNames))
	for n := range s.RawNames {
		out.RawNames[n] = struct{}{}
	}
	for n := range src.RawNames {
		out.RawNames[n] = struct{}{}
	}
	out.Source = SourceAliasMerge
	return &out
}

// Merge is one audit record of a name key folded into an ID key.
type Merge struct {
	From identity.Key
	To   identity.Key
}

// Resolution is the owned result of one resolve pass: every key maps to
// exactly one student, iterated in first-seen order.
type Resolution struct {
	// Timed reports whether resolution used session windows.
	Timed bool

	// Merges lists every alias merge in the order performed.
	Merges []Merge

	order    []identity.Key
	students map[identity.Key]*Student
}

func newResolution(timed bool) *Resolution {
	return &Resolution{Timed: timed, students: make(map[identity.Key]*Student)}
}

// Len returns the number of resolved students.
func (r *Resolution) Len() int {
	return len(r.students)
}

// Get returns the student for a key.
func (r *Resolution) Get(k identity.Key) (*Student, bool) {
	st, ok := r.students[k]
	return st, ok
}

// Students returns every resolved student in first-seen key order.
func (r *Resolution) Students() []*Student {
	out := make([]*Student, 0, len(r.students))
	for _, k := range r.order {
		if st, ok := r.students[k]; ok {
			out = append(out, st)
		}
	}
	return out
}

func (r *Resolution) insert(st *Student) {
	if _, ok := r.students[st.Key]; !ok {
		r.order = append(r.order, st.Key)
	}
	r.students[st.Key] = st
}

func (r *Resolution) remove(k identity.Key) *Student {
	st, ok := r.students[k]
	if !ok {
		return nil
	}
	delete(r.students, k)
	for i, key := range r.order {
		if key == k {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return st
}

// merge removes from and reinserts to with from's contents folded in.
func (r *Resolution) merge(from, to identity.Key) {
	dst, ok := r.students[to]
	if !ok {
		return
	}
	src := r.remove(from)
	if src == nil {
		return
	}
	r.insert(dst.absorb(src))
	r.Merges = append(r.Merges, Merge{From: from, To: to})
}

// Resolver groups sessions into students.
type Resolver struct {
	mergeGap time.Duration
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithMergeGap sets the time-window tolerance for alias merges.
func WithMergeGap(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.mergeGap = d
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{mergeGap: DefaultMergeGap}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve groups sessions by key and merges aliases. When timed is false
// the sessions carry durations only and merges are decided by name alone.
func (r *Resolver) Resolve(sessions []Session, timed bool) *Resolution {
	res := newResolution(timed)
	for _, sess := range sessions {
		k := sess.Name.Key()
		st, ok := res.students[k]
		if !ok {
			st = newStudent(sess)
			res.insert(st)
		}
		st.add(sess)
	}

	idByCanon, nameByCanon, canons := r.canonicalGroups(res)
	for _, cn := range canons {
		idKeys := idByCanon[cn]
		nameKeys := nameByCanon[cn]
		if len(idKeys) == 0 || len(nameKeys) == 0 {
			continue
		}
		if timed {
			r.mergeTimed(res, idKeys, nameKeys)
		} else {
			r.mergeUntimed(res, idKeys, nameKeys)
		}
	}

	// Two sessions under the same name at the same time with no ID to
	// tell them apart cannot be attributed to one person.
	if timed {
		for _, st := range res.Students() {
			if st.Key.IsName() && interval.HasAnyOverlap(st.Intervals) {
				st.Ambiguous = true
			}
		}
	}

	return res
}

func (r *Resolver) mergeTimed(res *Resolution, idKeys, nameKeys []identity.Key) {
	for _, nk := range nameKeys {
		name, ok := res.Get(nk)
		if !ok {
			continue
		}

		var chosen identity.Key
		if len(idKeys) == 1 {
			chosen = idKeys[0]
		} else {
			for _, ik := range idKeys {
				cand, ok := res.Get(ik)
				if ok && interval.OverlapsOrNear(name.Intervals, cand.Intervals, r.mergeGap) {
					chosen = ik
					break
				}
			}
		}

		if chosen == "" {
			name.Ambiguous = true
			continue
		}
		res.merge(nk, chosen)
	}
}

func (r *Resolver) mergeUntimed(res *Resolution, idKeys, nameKeys []identity.Key) {
	if len(idKeys) > 1 {
		for _, nk := range nameKeys {
			if st, ok := res.Get(nk); ok {
				st.Ambiguous = true
			}
		}
		return
	}
	for _, nk := range nameKeys {
		res.merge(nk, idKeys[0])
	}
}

// canonicalGroups buckets keys by canonical name, returning the canonical
// names in first-seen order. Keys with an empty canonical name never merge.
func (r *Resolver) canonicalGroups(res *Resolution) (ids, names map[string][]identity.Key, order []string) {
	ids = make(map[string][]identity.Key)
	names = make(map[string][]identity.Key)
	seen := make(map[string]bool)
	for _, st := range res.Students() {
		cn := st.Canonical
		if cn == "" {
			continue
		}
		if !seen[cn] {
			seen[cn] = true
			order = append(order, cn)
		}
		if st.Key.IsID() {
			ids[cn] = append(ids[cn], st.Key)
		} else {
			names[cn] = append(names[cn], st.Key)
		}
	}
	return ids, names, order
}

// Keys returns every key that has not been merged away, in first-seen order.
func (r *Resolution) Keys() []identity.Key {
	keys := make([]identity.Key, 0, len(r.students))
	for _, st := range r.Students() {
		keys = append(keys, st.Key)
	}
	return keys
}
