package output

import "fmt"

// Sheet names in workbook order.
const (
	SheetRawLog     = "Raw Log"
	SheetAttendance = "Attendance"
	SheetIDs        = "IDs"
	SheetIssues     = "Issues"
	SheetReconnects = "Reconnects"
	SheetAbsent     = "Absent"
	SheetPenalties  = "Penalties"
	SheetMatches    = "Matches"
	SheetMeta       = "Meta"
	SheetSummary    = "Summary"
)

// Sheet is one collection laid out as a header row and positional cells.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Sheets lays out every collection of the report in workbook order. The
// raw log sheet is omitted when the report carries no input table.
func (r *Report) Sheets() []Sheet {
	var sheets []Sheet

	if recs := r.raw.Records(); len(recs) > 0 {
		raw := Sheet{Name: SheetRawLog, Headers: recs[0]}
		for _, rec := range recs[1:] {
			raw.Rows = append(raw.Rows, stringCells(rec))
		}
		sheets = append(sheets, raw)
	}

	att := Sheet{
		Name: SheetAttendance,
		Headers: []string{
			"Key", "Zoom Names (raw)", "Attended Minutes (RAW)", "Threshold Minutes (RAW)",
			"Attended Minutes (DECISION)", "Threshold Minutes (DECISION)",
			r.StatusHeader(), "Naming Penalty", "Issues",
		},
	}
	for _, a := range r.Attendance {
		att.Rows = append(att.Rows, []any{
			a.Key, a.RawNames, a.AttendedRaw, a.ThresholdRaw,
			a.AttendedDecision, a.ThresholdDecision, a.Status, a.NamingPenalty, a.Issues,
		})
	}
	sheets = append(sheets, att)

	ids := Sheet{Name: SheetIDs, Headers: []string{"ID"}}
	for _, id := range r.IDs {
		ids.Rows = append(ids.Rows, []any{id})
	}
	sheets = append(sheets, ids)

	issues := Sheet{
		Name: SheetIssues,
		Headers: []string{
			"Key", "ID", "Name", "Zoom Names (raw)", "Match Source", "Issue Detail",
			"Segments", "Dual Device", "Reconnects", "Reconnect Count", "Ambiguous", "Union Minutes",
		},
	}
	for _, i := range r.Issues {
		issues.Rows = append(issues.Rows, []any{
			i.Key, i.ID, i.Name, i.RawNames, i.MatchSource, i.Detail, i.Segments,
			yesNo(i.DualDevice), yesNo(i.Reconnects), i.ReconnectCount, yesNo(i.Ambiguous), i.UnionMinutes,
		})
	}
	sheets = append(sheets, issues)

	rec := Sheet{
		Name: SheetReconnects,
		Headers: []string{
			"Key", "ID", "Name", "Zoom Names (raw)", "Event #", "Disconnect", "Reconnect",
			"Gap (minutes)", "Gap (seconds)", "Gap (hh:mm:ss)",
			"Disconnect Raw Name", "Reconnect Raw Name",
			"Disconnect Join (raw)", "Disconnect Leave (raw)", "Reconnect Join (raw)", "Reconnect Leave (raw)",
		},
	}
	for _, e := range r.Reconnects {
		rec.Rows = append(rec.Rows, []any{
			e.Key, e.ID, e.Name, e.RawNames, e.Event, e.Disconnect, e.Reconnect,
			e.GapMinutes, e.GapSeconds, e.GapHMS,
			e.DisconnectRawName, e.ReconnectRawName,
			e.DisconnectJoinRaw, e.DisconnectLeaveRaw, e.ReconnectJoinRaw, e.ReconnectLeaveRaw,
		})
	}
	sheets = append(sheets, rec)

	absent := Sheet{
		Name: SheetAbsent,
		Headers: []string{
			"Key", "ID", "Name", "Zoom Names (raw)", "Attended Minutes (DECISION)",
			"Threshold Minutes (DECISION)", "Shortfall Minutes", "Dual Device", "Reconnects",
			"Reconnect Count", "Ambiguous", "Reason",
		},
	}
	for _, a := range r.Absent {
		absent.Rows = append(absent.Rows, []any{
			a.Key, a.ID, a.Name, a.RawNames, a.AttendedDecision, a.ThresholdDecision, a.Shortfall,
			yesNo(a.DualDevice), yesNo(a.Reconnects), a.ReconnectCount, yesNo(a.Ambiguous), a.Reason,
		})
	}
	sheets = append(sheets, absent)

	pen := Sheet{
		Name: SheetPenalties,
		Headers: []string{
			"Key", "Zoom Names (raw)", "Flagged Minutes", "Flagged Percent",
			"Tolerance Minutes", "Penalty Applied",
		},
	}
	for _, p := range r.Penalties {
		pen.Rows = append(pen.Rows, []any{
			p.Key, p.RawNames, p.FlaggedMinutes, p.FlaggedPercent, p.Tolerance, p.Applied,
		})
	}
	sheets = append(sheets, pen)

	matches := Sheet{
		Name:    SheetMatches,
		Headers: []string{"Key", "ID", "Name", "Zoom Names (raw)", "Match Source"},
	}
	for _, m := range r.Matches {
		matches.Rows = append(matches.Rows, []any{m.Key, m.ID, m.Name, m.RawNames, m.MatchSource})
	}
	sheets = append(sheets, matches)

	meta := Sheet{Name: SheetMeta, Headers: []string{"Metric", "Value"}}
	for _, m := range r.Meta {
		meta.Rows = append(meta.Rows, []any{m.Metric, m.Value})
	}
	sheets = append(sheets, meta)

	s := r.Summary
	sheets = append(sheets, Sheet{
		Name:    SheetSummary,
		Headers: []string{"Metric", "Value"},
		Rows: [][]any{
			{"Students", s.Students},
			{"Present", s.Present},
			{"Absent", s.Absent},
			{"Needs Review", s.NeedsReview},
			{"Naming penalties", s.Penalized},
			{"Dual device", s.DualDevice},
			{"Reconnecting", s.Reconnecting},
			{"Alias merges", s.AliasMerges},
			{"Roster only", s.RosterOnly},
		},
	})

	return sheets
}

// Sheet returns the named sheet, or false.
func (r *Report) Sheet(name string) (Sheet, bool) {
	for _, s := range r.Sheets() {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}

func stringCells(rec []string) []any {
	cells := make([]any, len(rec))
	for i, v := range rec {
		cells[i] = v
	}
	return cells
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.2f", x)
	default:
		return fmt.Sprint(x)
	}
}
