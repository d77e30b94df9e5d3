package attendance

import (
	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/detector"
	"github.com/ccollicutt/attendlog/pkg/identity"
	"github.com/ccollicutt/attendlog/pkg/reconnect"
	"github.com/ccollicutt/attendlog/pkg/resolver"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// InputError reports input that cannot be processed at all.
type InputError = table.InputError

// Status is the attendance decision for one student.
type Status string

const (
	StatusPresent     Status = "Present"
	StatusAbsent      Status = "Absent"
	StatusNeedsReview Status = "Needs Review"
)

// Issue tags and reasons attached to verdicts.
const (
	IssueDualDevice = "Duplicate account - overlapping (two devices)"
	IssueAmbiguous  = "Ambiguous duplicate name (no ID / alias ambiguous)"
	IssueNotInLog   = "Not in log (roster)"

	ReasonAmbiguous = "Needs Review (ambiguous)"
	ReasonNotInLog  = "not in log"
)

// Verdict is the final decision for one resolved student.
type Verdict struct {
	Key      identity.Key         `json:"key"`
	ID       string               `json:"id,omitempty"`
	Name     string               `json:"name"`
	RawNames []string             `json:"raw_names"`
	Source   resolver.MatchSource `json:"match_source"`

	// Segments is the number of sessions (timestamped) or duration entries.
	Segments int `json:"segments"`

	AttendedRaw       float64 `json:"attended_raw"`
	ThresholdRaw      float64 `json:"threshold_raw"`
	AttendedDecision  float64 `json:"attended_decision"`
	ThresholdDecision float64 `json:"threshold_decision"`

	Status Status `json:"status"`

	// Penalty is -1 when the naming penalty applies, else 0.
	Penalty int `json:"penalty"`

	// FlaggedMinutes are minutes attended only under a name without an ID.
	FlaggedMinutes float64 `json:"flagged_minutes"`
	FlaggedPercent float64 `json:"flagged_percent"`

	DualDevice     bool `json:"dual_device"`
	Reconnects     bool `json:"reconnects"`
	ReconnectCount int  `json:"reconnect_count"`
	Ambiguous      bool `json:"ambiguous"`

	Issues []string `json:"issues,omitempty"`

	// Shortfall and Reason are set for students who are not present.
	Shortfall float64 `json:"shortfall,omitempty"`
	Reason    string  `json:"reason,omitempty"`

	Events     []reconnect.Event `json:"-"`
	MergedFrom []identity.Key    `json:"merged_from,omitempty"`
}

// Present reports whether the student met the threshold and is not ambiguous.
func (v *Verdict) Present() bool {
	return v.Status == StatusPresent
}

// Meta holds the run-level constants used for every decision.
type Meta struct {
	RunID string `json:"run_id"`

	// TotalSource is "override" or "auto".
	TotalSource string `json:"total_source"`

	TotalMinutes              float64             `json:"total_minutes"`
	BreakMinutes              float64             `json:"break_minutes"`
	AdjustedTotalMinutes      float64             `json:"adjusted_total_minutes"`
	ThresholdRatio            float64             `json:"threshold_ratio"`
	RawThresholdMinutes       float64             `json:"raw_threshold_minutes"`
	BufferMinutes             float64             `json:"buffer_minutes"`
	EffectiveThresholdMinutes float64             `json:"effective_threshold_minutes"`
	DecisionThresholdMinutes  float64             `json:"decision_threshold_minutes"`
	RoundingMode              config.RoundingMode `json:"rounding_mode"`
	PenaltyToleranceMinutes   float64             `json:"penalty_tolerance_minutes"`

	RosterProvided bool `json:"roster_provided"`

	// Timed reports whether per-session timestamps drove the decision.
	Timed bool `json:"timed"`

	ExcludePatterns []string `json:"exclude_patterns"`
	ExcludedRows    int      `json:"excluded_rows"`
}

// Result is the complete output of one engine run.
type Result struct {
	Meta     Meta
	Verdicts []Verdict

	// Merges is the alias merge audit trail.
	Merges []resolver.Merge

	// IDs lists roster IDs in order, or the IDs seen in the log without a roster.
	IDs []string

	// Log is the input table, kept for the raw sheet of the workbook.
	Log *table.Table

	Columns    detector.Columns
	Timestamps *detector.DetectionResult
}

// Counts returns the number of verdicts per status.
func (r *Result) Counts() map[Status]int {
	counts := map[Status]int{StatusPresent: 0, StatusAbsent: 0, StatusNeedsReview: 0}
	for i := range r.Verdicts {
		counts[r.Verdicts[i].Status]++
	}
	return counts
}

// AllPresent reports whether every verdict is Present.
func (r *Result) AllPresent() bool {
	for i := range r.Verdicts {
		if !r.Verdicts[i].Present() {
			return false
		}
	}
	return true
}
