// Package output provides formatting and output generation for attendance results.
package output

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ccollicutt/attendlog/pkg/attendance"
	"github.com/ccollicutt/attendlog/pkg/resolver"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// Report is the complete attendance output, split into the record
// collections a renderer serializes.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	Attendance []AttendanceRow `json:"attendance"`
	Issues     []IssueRow      `json:"issues"`
	Reconnects []ReconnectRow  `json:"reconnects"`
	Absent     []AbsentRow     `json:"absent"`
	Penalties  []PenaltyRow    `json:"penalties"`
	Matches    []MatchRow      `json:"matches"`
	Meta       []MetaRow       `json:"meta"`

	// IDs lists the roster IDs, or the IDs seen in the log without a roster.
	IDs []string `json:"ids"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`

	// ThresholdRatio labels the attendance status column.
	ThresholdRatio float64 `json:"-"`

	raw *table.Table
}

// Summary provides aggregate statistics.
type Summary struct {
	Students     int `json:"students"`
	Present      int `json:"present"`
	Absent       int `json:"absent"`
	NeedsReview  int `json:"needs_review"`
	Penalized    int `json:"penalized"`
	DualDevice   int `json:"dual_device"`
	Reconnecting int `json:"reconnecting"`
	AliasMerges  int `json:"alias_merges"`
	RosterOnly   int `json:"roster_only"`
}

// Metadata provides context about the run.
type Metadata struct {
	RunID       string        `json:"run_id"`
	LogFile     string        `json:"log_file,omitempty"`
	RosterFile  string        `json:"roster_file,omitempty"`
	ConfigFile  string        `json:"config_file,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

// AttendanceRow is one decision per resolved identity.
type AttendanceRow struct {
	Key               string  `json:"key"`
	RawNames          string  `json:"raw_names"`
	AttendedRaw       float64 `json:"attended_raw"`
	ThresholdRaw      float64 `json:"threshold_raw"`
	AttendedDecision  float64 `json:"attended_decision"`
	ThresholdDecision float64 `json:"threshold_decision"`
	Status            string  `json:"status"`
	NamingPenalty     int     `json:"naming_penalty"`
	Issues            string  `json:"issues"`
}

// IssueRow is the diagnostic detail for one identity.
type IssueRow struct {
	Key            string  `json:"key"`
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	RawNames       string  `json:"raw_names"`
	MatchSource    string  `json:"match_source"`
	Detail         string  `json:"detail"`
	Segments       int     `json:"segments"`
	DualDevice     bool    `json:"dual_device"`
	Reconnects     bool    `json:"reconnects"`
	ReconnectCount int     `json:"reconnect_count"`
	Ambiguous      bool    `json:"ambiguous"`
	UnionMinutes   float64 `json:"union_minutes"`
}

// ReconnectRow is one disconnect/reconnect event.
type ReconnectRow struct {
	Key                string  `json:"key"`
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	RawNames           string  `json:"raw_names"`
	Event              int     `json:"event"`
	Disconnect         string  `json:"disconnect"`
	Reconnect          string  `json:"reconnect"`
	GapMinutes         float64 `json:"gap_minutes"`
	GapSeconds         int     `json:"gap_seconds"`
	GapHMS             string  `json:"gap_hms"`
	DisconnectRawName  string  `json:"disconnect_raw_name"`
	ReconnectRawName   string  `json:"reconnect_raw_name"`
	DisconnectJoinRaw  string  `json:"disconnect_join_raw"`
	DisconnectLeaveRaw string  `json:"disconnect_leave_raw"`
	ReconnectJoinRaw   string  `json:"reconnect_join_raw"`
	ReconnectLeaveRaw  string  `json:"reconnect_leave_raw"`
}

// AbsentRow is one identity that is not Present.
type AbsentRow struct {
	Key               string  `json:"key"`
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	RawNames          string  `json:"raw_names"`
	AttendedDecision  float64 `json:"attended_decision"`
	ThresholdDecision float64 `json:"threshold_decision"`
	Shortfall         float64 `json:"shortfall"`
	DualDevice        bool    `json:"dual_device"`
	Reconnects        bool    `json:"reconnects"`
	ReconnectCount    int     `json:"reconnect_count"`
	Ambiguous         bool    `json:"ambiguous"`
	Reason            string  `json:"reason"`
}

// PenaltyRow is the naming penalty detail for one identity.
type PenaltyRow struct {
	Key            string  `json:"key"`
	RawNames       string  `json:"raw_names"`
	FlaggedMinutes float64 `json:"flagged_minutes"`
	FlaggedPercent float64 `json:"flagged_percent"`
	Tolerance      float64 `json:"tolerance"`
	Applied        int     `json:"applied"`
}

// MatchRow records how an identity was matched.
type MatchRow struct {
	Key         string `json:"key"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	RawNames    string `json:"raw_names"`
	MatchSource string `json:"match_source"`
}

// MetaRow is one run-level constant.
type MetaRow struct {
	Metric string `json:"metric"`
	Value  any    `json:"value"`
}

// NewReport builds the record collections from an engine result.
func NewReport(result *attendance.Result, md Metadata) *Report {
	report := &Report{
		IDs:            append([]string{}, result.IDs...),
		Metadata:       md,
		ThresholdRatio: result.Meta.ThresholdRatio,
		raw:            result.Log,
	}
	report.Metadata.RunID = result.Meta.RunID

	tolerance := result.Meta.PenaltyToleranceMinutes
	for i := range result.Verdicts {
		v := &result.Verdicts[i]
		names := strings.Join(v.RawNames, "; ")
		key := v.Key.String()

		attNames := names
		if v.Source == resolver.SourceRosterOnly {
			attNames = names + " (roster)"
		}
		report.Attendance = append(report.Attendance, AttendanceRow{
			Key:               key,
			RawNames:          attNames,
			AttendedRaw:       round2(v.AttendedRaw),
			ThresholdRaw:      round2(v.ThresholdRaw),
			AttendedDecision:  round2(v.AttendedDecision),
			ThresholdDecision: round2(v.ThresholdDecision),
			Status:            string(v.Status),
			NamingPenalty:     v.Penalty,
			Issues:            strings.Join(v.Issues, "; "),
		})

		report.Issues = append(report.Issues, IssueRow{
			Key:            key,
			ID:             v.ID,
			Name:           v.Name,
			RawNames:       names,
			MatchSource:    string(v.Source),
			Detail:         strings.Join(v.Issues, "; "),
			Segments:       v.Segments,
			DualDevice:     v.DualDevice,
			Reconnects:     v.Reconnects,
			ReconnectCount: v.ReconnectCount,
			Ambiguous:      v.Ambiguous,
			UnionMinutes:   round2(v.AttendedRaw),
		})

		for _, ev := range v.Events {
			secs := int(ev.Gap / time.Second)
			report.Reconnects = append(report.Reconnects, ReconnectRow{
				Key:                key,
				ID:                 v.ID,
				Name:               v.Name,
				RawNames:           names,
				Event:              ev.Index,
				Disconnect:         formatTime(ev.Disconnect),
				Reconnect:          formatTime(ev.Reconnect),
				GapMinutes:         round2(float64(secs) / 60),
				GapSeconds:         secs,
				GapHMS:             formatHMS(secs),
				DisconnectRawName:  ev.Before.RawName,
				ReconnectRawName:   ev.After.RawName,
				DisconnectJoinRaw:  ev.Before.JoinRaw,
				DisconnectLeaveRaw: ev.Before.LeaveRaw,
				ReconnectJoinRaw:   ev.After.JoinRaw,
				ReconnectLeaveRaw:  ev.After.LeaveRaw,
			})
		}

		if !v.Present() {
			report.Absent = append(report.Absent, AbsentRow{
				Key:               key,
				ID:                v.ID,
				Name:              v.Name,
				RawNames:          names,
				AttendedDecision:  round2(v.AttendedDecision),
				ThresholdDecision: round2(v.ThresholdDecision),
				Shortfall:         round2(v.Shortfall),
				DualDevice:        v.DualDevice,
				Reconnects:        v.Reconnects,
				ReconnectCount:    v.ReconnectCount,
				Ambiguous:         v.Ambiguous,
				Reason:            v.Reason,
			})
		}

		report.Penalties = append(report.Penalties, PenaltyRow{
			Key:            key,
			RawNames:       names,
			FlaggedMinutes: round2(v.FlaggedMinutes),
			FlaggedPercent: round2(v.FlaggedPercent),
			Tolerance:      tolerance,
			Applied:        v.Penalty,
		})

		report.Matches = append(report.Matches, MatchRow{
			Key:         key,
			ID:          v.ID,
			Name:        v.Name,
			RawNames:    names,
			MatchSource: string(v.Source),
		})

		report.Summary.add(v)
	}

	sort.SliceStable(report.Reconnects, func(i, j int) bool {
		a, b := report.Reconnects[i], report.Reconnects[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Event != b.Event {
			return a.Event < b.Event
		}
		return a.Disconnect < b.Disconnect
	})

	report.Summary.AliasMerges = len(result.Merges)
	report.Meta = metaRows(&result.Meta)

	return report
}

func (s *Summary) add(v *attendance.Verdict) {
	s.Students++
	switch v.Status {
	case attendance.StatusPresent:
		s.Present++
	case attendance.StatusAbsent:
		s.Absent++
	case attendance.StatusNeedsReview:
		s.NeedsReview++
	}
	if v.Penalty != 0 {
		s.Penalized++
	}
	if v.DualDevice {
		s.DualDevice++
	}
	if v.Reconnects {
		s.Reconnecting++
	}
	if v.Source == resolver.SourceRosterOnly {
		s.RosterOnly++
	}
}

func metaRows(m *attendance.Meta) []MetaRow {
	roster := "No"
	if m.RosterProvided {
		roster = "Yes"
	}
	mode := "Durations"
	if m.Timed {
		mode = "Join/leave timestamps"
	}
	return []MetaRow{
		{"Run ID", m.RunID},
		{"Total class minutes (source)", m.TotalSource},
		{"Total class minutes (before break)", round2(m.TotalMinutes)},
		{"Break minutes deducted", round2(m.BreakMinutes)},
		{"Adjusted total class minutes", round2(m.AdjustedTotalMinutes)},
		{"Attendance threshold ratio", m.ThresholdRatio},
		{"Raw threshold minutes (ratio * adjusted total)", round2(m.RawThresholdMinutes)},
		{"Leniency buffer minutes", round2(m.BufferMinutes)},
		{"EFFECTIVE threshold minutes (raw - buffer)", round2(m.EffectiveThresholdMinutes)},
		{"Decision rule", "Present if DECISION Attended >= DECISION Threshold"},
		{"Rounding mode", m.RoundingMode.Label()},
		{"Naming penalty tolerance (minutes)", m.PenaltyToleranceMinutes},
		{"Attendance source", mode},
		{"Roster provided", roster},
		{"Excluded names patterns", strings.Join(m.ExcludePatterns, "; ")},
		{"Excluded rows", m.ExcludedRows},
	}
}

// HasIssues returns true if any student is not Present.
func (r *Report) HasIssues() bool {
	return r.Summary.Absent+r.Summary.NeedsReview > 0
}

// StatusHeader is the attendance status column title.
func (r *Report) StatusHeader() string {
	return fmt.Sprintf("Attendance (>=%d%%)", int(math.Round(r.ThresholdRatio*100)))
}

// Raw returns the input log table, or nil.
func (r *Report) Raw() *table.Table {
	return r.raw
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatHMS(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}
