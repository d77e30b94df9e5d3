// Package attendance computes per-student attendance verdicts from a meeting
// log and an optional roster.
//
// A run binds the log columns, drops excluded names, resolves sessions to
// students, and then decides each student independently: attended minutes
// against the threshold, naming penalty, dual-device and reconnect tags.
// Timestamped logs use interval unions. Logs with only per-row durations use
// sums and weaker heuristics, since no real gaps can be computed.
package attendance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/detector"
	"github.com/ccollicutt/attendlog/pkg/identity"
	"github.com/ccollicutt/attendlog/pkg/interval"
	"github.com/ccollicutt/attendlog/pkg/reconnect"
	"github.com/ccollicutt/attendlog/pkg/resolver"
	"github.com/ccollicutt/attendlog/pkg/roster"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// dualDurationSlack is how far the summed durations may exceed the class
// length before a duration-only student counts as dual device.
const dualDurationSlack = 0.1

// Input is one run's data.
type Input struct {
	// Log is the meeting participation table (required).
	Log *table.Table

	// Roster is the optional enrollment roster.
	Roster *roster.Roster
}

// Engine computes attendance. An Engine holds no per-run state and may be
// used for one run or many.
type Engine struct {
	cfg       *config.Config
	rounding  config.RoundingMode
	detector  *detector.Detector
	resolver  *resolver.Resolver
	reconnect *reconnect.Detector
	logger    *slog.Logger
	newRunID  func() string
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger for run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDetector replaces the column detector.
func WithDetector(d *detector.Detector) Option {
	return func(e *Engine) {
		if d != nil {
			e.detector = d
		}
	}
}

// New creates an engine for a configuration. A nil config uses the defaults.
// An unrecognized rounding mode falls back to none with a warning.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := *cfg
	c.Webhooks = append([]config.WebhookConfig(nil), cfg.Webhooks...)
	if err := config.Validate(&c); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	e := &Engine{
		cfg:      &c,
		detector: detector.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}

	mode, err := config.ParseRoundingMode(c.RoundingMode)
	if err != nil {
		e.logger.Warn("unknown rounding mode, using none", "error", err)
	}
	e.rounding = mode

	e.resolver = resolver.New(resolver.WithMergeGap(c.AliasMergeGap))
	e.reconnect = reconnect.New(reconnect.WithTolerance(c.ReconnectTolerance))

	return e, nil
}

// Config returns the validated configuration the engine runs with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// prepared is the bound, filtered, and resolved form of a log.
type prepared struct {
	binding  *detector.Binding
	timed    bool
	excluded int
	res      *resolver.Resolution
}

func (e *Engine) prepare(ctx context.Context, log *table.Table) (*prepared, error) {
	if log == nil {
		return nil, table.Errorf("no meeting log supplied")
	}

	b, err := e.detector.Bind(ctx, log)
	if err != nil {
		return nil, err
	}

	kept := make([]detector.Record, 0, len(b.Records))
	excluded := 0
	for _, rec := range b.Records {
		if rec.RawName == "" {
			continue
		}
		if e.excluded(rec.RawName) {
			excluded++
			continue
		}
		kept = append(kept, rec)
	}
	filtered := &detector.Binding{Columns: b.Columns, Timestamps: b.Timestamps, Records: kept}
	timed := filtered.HasTimes()

	if !timed && b.Columns.Duration == "" {
		if b.Columns.HasTimes() {
			return nil, table.Errorf("timestamps present but unparseable; check the log encoding and format")
		}
		return nil, table.Errorf("could not determine total class duration")
	}

	sessions := make([]resolver.Session, 0, len(kept))
	for _, rec := range kept {
		sess := resolver.Session{
			Name:     identity.Parse(rec.RawName),
			Duration: rec.Duration,
			Email:    rec.Email,
		}
		if timed {
			sess.Join, sess.Leave = rec.Join, rec.Leave
			sess.JoinRaw, sess.LeaveRaw = rec.JoinRaw, rec.LeaveRaw
		}
		sessions = append(sessions, sess)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &prepared{
		binding:  filtered,
		timed:    timed,
		excluded: excluded,
		res:      e.resolver.Resolve(sessions, timed),
	}, nil
}

func (e *Engine) excluded(name string) bool {
	for _, re := range e.cfg.CompiledExcludes() {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Run computes every verdict for one log. It either returns a complete
// result or an error; InputError marks unusable input.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	p, err := e.prepare(ctx, in.Log)
	if err != nil {
		return nil, err
	}

	meta := e.meta(p, in.Roster)

	result := &Result{
		Meta:       meta,
		Merges:     p.res.Merges,
		Log:        in.Log,
		Columns:    p.binding.Columns,
		Timestamps: p.binding.Timestamps,
	}

	for _, st := range p.res.Students() {
		result.Verdicts = append(result.Verdicts, e.decide(st, &meta, p.timed))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Verdicts = append(result.Verdicts, e.rosterOnly(p.res, result.Verdicts, in.Roster, &meta)...)
	result.IDs = ids(result.Verdicts, in.Roster)

	counts := result.Counts()
	e.logger.Info("attendance computed",
		"run_id", meta.RunID,
		"students", len(result.Verdicts),
		"present", counts[StatusPresent],
		"absent", counts[StatusAbsent],
		"needs_review", counts[StatusNeedsReview],
		"merges", len(result.Merges),
		"timed", meta.Timed,
		"duration", time.Since(start))

	return result, nil
}

// meta computes the class length and thresholds.
func (e *Engine) meta(p *prepared, r *roster.Roster) Meta {
	cfg := e.cfg
	m := Meta{
		RunID:                   e.newRunID(),
		TotalSource:             "auto",
		ThresholdRatio:          cfg.ThresholdRatio,
		RoundingMode:            e.rounding,
		PenaltyToleranceMinutes: cfg.PenaltyToleranceMinutes,
		RosterProvided:          !r.Empty(),
		Timed:                   p.timed,
		ExcludePatterns:         append([]string(nil), cfg.ExcludeNames...),
		ExcludedRows:            p.excluded,
	}

	switch {
	case cfg.OverrideTotalMinutes > 0:
		m.TotalSource = "override"
		m.TotalMinutes = cfg.OverrideTotalMinutes
	case p.timed:
		m.TotalMinutes = classSpan(p.binding.Records)
	default:
		for _, rec := range p.binding.Records {
			m.TotalMinutes = math.Max(m.TotalMinutes, rec.Duration)
		}
	}

	m.BreakMinutes = math.Max(0, cfg.BreakMinutes)
	m.AdjustedTotalMinutes = math.Max(m.TotalMinutes-m.BreakMinutes, 1)
	m.RawThresholdMinutes = cfg.ThresholdRatio * m.AdjustedTotalMinutes
	m.BufferMinutes = math.Max(0, cfg.BufferMinutes)
	m.EffectiveThresholdMinutes = math.Max(0, m.RawThresholdMinutes-m.BufferMinutes)
	m.DecisionThresholdMinutes = m.EffectiveThresholdMinutes
	if e.rounding == config.RoundingCeilBoth {
		m.DecisionThresholdMinutes = math.Ceil(m.EffectiveThresholdMinutes)
	}

	e.logger.Debug("class length",
		"source", m.TotalSource,
		"total_minutes", m.TotalMinutes,
		"adjusted_minutes", m.AdjustedTotalMinutes,
		"threshold_minutes", m.DecisionThresholdMinutes)

	return m
}

// classSpan is the minutes from the earliest join to the latest leave.
func classSpan(records []detector.Record) float64 {
	var first, last time.Time
	for _, rec := range records {
		if !rec.Join.IsZero() && (first.IsZero() || rec.Join.Before(first)) {
			first = rec.Join
		}
		if !rec.Leave.IsZero() && (last.IsZero() || rec.Leave.After(last)) {
			last = rec.Leave
		}
	}
	return last.Sub(first).Minutes()
}

// applyRounding returns the attended and threshold minutes used for the decision.
func applyRounding(mode config.RoundingMode, attended, threshold float64) (float64, float64) {
	switch mode {
	case config.RoundingCeilAttendance:
		return math.Ceil(attended), threshold
	case config.RoundingCeilBoth:
		return math.Ceil(attended), math.Ceil(threshold)
	default:
		return attended, threshold
	}
}

func (e *Engine) decide(st *resolver.Student, m *Meta, timed bool) Verdict {
	v := Verdict{
		Key:        st.Key,
		ID:         st.ID,
		Name:       st.Name,
		RawNames:   st.RawNameList(),
		Source:     st.Source,
		Ambiguous:  st.Ambiguous,
		MergedFrom: st.MergedFrom,
	}

	if timed {
		segs := st.Segments()
		v.Segments = len(segs)
		v.AttendedRaw = interval.TotalMinutes(st.Intervals)
		v.Events = e.reconnect.Detect(segs)
		v.ReconnectCount = len(v.Events)
		v.Reconnects = v.ReconnectCount > 0
		v.DualDevice = interval.HasAnyOverlap(st.Intervals)
		v.FlaggedMinutes = interval.SubtractMinutes(st.Flagged, st.Good)
	} else {
		good, bad := sum(st.GoodDurations), sum(st.FlaggedDurations)
		v.Segments = len(st.GoodDurations) + len(st.FlaggedDurations)
		v.AttendedRaw = math.Min(good+bad, m.AdjustedTotalMinutes)
		v.DualDevice = good+bad > m.AdjustedTotalMinutes+dualDurationSlack
		v.Reconnects = v.Segments > 1 && !v.DualDevice
		if v.Reconnects {
			v.ReconnectCount = v.Segments - 1
		}
		v.FlaggedMinutes = bad
	}

	v.ThresholdRaw = m.EffectiveThresholdMinutes
	v.AttendedDecision, v.ThresholdDecision = applyRounding(m.RoundingMode, v.AttendedRaw, m.EffectiveThresholdMinutes)
	meets := v.AttendedDecision >= v.ThresholdDecision

	switch {
	case v.Ambiguous:
		v.Status = StatusNeedsReview
	case meets:
		v.Status = StatusPresent
	default:
		v.Status = StatusAbsent
	}

	if v.AttendedRaw > 0 {
		v.FlaggedPercent = v.FlaggedMinutes / v.AttendedRaw * 100
	}

	ex := e.cfg.Exemptions.For(st.Key.String())
	if v.FlaggedMinutes > m.PenaltyToleranceMinutes && !ex.Naming {
		v.Penalty = -1
	}

	if v.DualDevice && !ex.Overlap {
		v.Issues = append(v.Issues, IssueDualDevice)
	}
	if v.Reconnects && !ex.Reconnect {
		v.Issues = append(v.Issues, fmt.Sprintf("Duplicate account - reconnects (non-overlapping x%d)", v.ReconnectCount))
	}
	if v.Ambiguous {
		v.Issues = append(v.Issues, IssueAmbiguous)
	}
	for _, src := range st.MergedFrom {
		v.Issues = append(v.Issues, fmt.Sprintf("Merged alias %s into %s", src, st.Key))
	}

	if !meets || v.Ambiguous {
		v.Shortfall = math.Max(0, v.ThresholdDecision-v.AttendedDecision)
		if v.Ambiguous {
			v.Reason = ReasonAmbiguous
		}
	}

	e.logger.Debug("verdict",
		"key", v.Key,
		"status", v.Status,
		"attended", v.AttendedDecision,
		"threshold", v.ThresholdDecision,
		"dual_device", v.DualDevice,
		"reconnects", v.ReconnectCount)

	return v
}

// rosterOnly returns an Absent verdict for each roster entry the log never
// mentions by ID, by key, or by canonical name.
func (e *Engine) rosterOnly(res *resolver.Resolution, verdicts []Verdict, r *roster.Roster, m *Meta) []Verdict {
	if r.Empty() {
		return nil
	}

	presentIDs := make(map[string]bool)
	for i := range verdicts {
		if verdicts[i].ID != "" {
			presentIDs[verdicts[i].ID] = true
		}
	}
	seenCanon := make(map[string]bool)
	for _, st := range res.Students() {
		for raw := range st.RawNames {
			seenCanon[identity.Canonical(raw)] = true
		}
	}

	var out []Verdict
	for _, entry := range r.Entries {
		key := identity.IDKey(entry.ID)
		if presentIDs[entry.ID] || seenCanon[entry.Canonical] {
			continue
		}
		if _, ok := res.Get(key); ok {
			continue
		}

		out = append(out, Verdict{
			Key:               key,
			ID:                entry.ID,
			Name:              entry.Name,
			RawNames:          []string{entry.Name},
			Source:            resolver.SourceRosterOnly,
			ThresholdRaw:      m.EffectiveThresholdMinutes,
			ThresholdDecision: m.DecisionThresholdMinutes,
			Status:            StatusAbsent,
			Issues:            []string{IssueNotInLog},
			Shortfall:         m.DecisionThresholdMinutes,
			Reason:            ReasonNotInLog,
		})
	}

	if len(out) > 0 {
		e.logger.Debug("roster students missing from log", "count", len(out))
	}
	return out
}

// ids lists roster IDs when a roster is present, else the IDs seen in the log.
func ids(verdicts []Verdict, r *roster.Roster) []string {
	if !r.Empty() {
		return r.IDs()
	}
	seen := make(map[string]bool)
	var out []string
	for i := range verdicts {
		if id := verdicts[i].ID; id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
