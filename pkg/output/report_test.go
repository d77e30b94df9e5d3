package output

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ccollicutt/attendlog/pkg/attendance"
	"github.com/ccollicutt/attendlog/pkg/table"
)

var classStart = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// createTestReport builds a report with one present student who
// reconnected once and one absent student.
func createTestReport(t *testing.T) *Report {
	t.Helper()

	rows := []struct {
		name        string
		join, leave int
	}{
		{"10001 - Jane Doe", 0, 30},
		{"10001 - Jane Doe", 40, 100},
		{"John Roe", 0, 20},
	}
	records := [][]string{{"Name (Original Name)", "Join Time", "Leave Time"}}
	for _, r := range rows {
		records = append(records, []string{
			r.name,
			classStart.Add(time.Duration(r.join) * time.Minute).Format("2006-01-02 15:04:05"),
			classStart.Add(time.Duration(r.leave) * time.Minute).Format("2006-01-02 15:04:05"),
		})
	}

	e, err := attendance.New(nil)
	if err != nil {
		t.Fatalf("attendance.New() error = %v", err)
	}
	result, err := e.Run(context.Background(), attendance.Input{Log: table.FromRecords(records)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return NewReport(result, Metadata{LogFile: "meeting.csv", Duration: 5 * time.Millisecond})
}

func TestNewReport(t *testing.T) {
	report := createTestReport(t)

	if got := report.Summary; got.Students != 2 || got.Present != 1 || got.Absent != 1 || got.Reconnecting != 1 {
		t.Errorf("Summary = %+v", got)
	}
	if !report.HasIssues() {
		t.Error("HasIssues() = false, want true")
	}
	if report.Metadata.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(report.Attendance) != 2 || len(report.Issues) != 2 || len(report.Penalties) != 2 || len(report.Matches) != 2 {
		t.Fatalf("collection sizes = %d/%d/%d/%d", len(report.Attendance), len(report.Issues), len(report.Penalties), len(report.Matches))
	}

	if len(report.Reconnects) != 1 {
		t.Fatalf("Reconnects = %d, want 1", len(report.Reconnects))
	}
	ev := report.Reconnects[0]
	if ev.Key != "ID:10001" || ev.Event != 1 || ev.GapSeconds != 600 || ev.GapHMS != "00:10:00" || ev.GapMinutes != 10 {
		t.Errorf("reconnect = %+v", ev)
	}
	if ev.Disconnect != "2024-03-04 09:30:00" || ev.Reconnect != "2024-03-04 09:40:00" {
		t.Errorf("event times = %s -> %s", ev.Disconnect, ev.Reconnect)
	}

	if len(report.Absent) != 1 {
		t.Fatalf("Absent = %d, want 1", len(report.Absent))
	}
	if a := report.Absent[0]; a.Key != "NAME:john roe" || a.Shortfall != 60 {
		t.Errorf("absent = %+v", a)
	}

	if report.StatusHeader() != "Attendance (>=80%)" {
		t.Errorf("StatusHeader() = %q", report.StatusHeader())
	}
}

func TestNewReport_AllPresent(t *testing.T) {
	report := &Report{Summary: Summary{Students: 3, Present: 3}}
	if report.HasIssues() {
		t.Error("HasIssues() = true, want false")
	}
}

func TestSheets(t *testing.T) {
	report := createTestReport(t)

	var names []string
	for _, s := range report.Sheets() {
		names = append(names, s.Name)
		for i, row := range s.Rows {
			if len(row) != len(s.Headers) {
				t.Errorf("sheet %s row %d has %d cells, want %d", s.Name, i, len(row), len(s.Headers))
			}
		}
	}
	want := []string{SheetRawLog, SheetAttendance, SheetIDs, SheetIssues, SheetReconnects,
		SheetAbsent, SheetPenalties, SheetMatches, SheetMeta, SheetSummary}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("sheets = %v, want %v", names, want)
	}

	raw, ok := report.Sheet(SheetRawLog)
	if !ok || len(raw.Rows) != 3 {
		t.Errorf("raw sheet = %+v", raw)
	}

	ids, _ := report.Sheet(SheetIDs)
	if len(ids.Rows) != 1 || ids.Rows[0][0] != "10001" {
		t.Errorf("IDs sheet rows = %v", ids.Rows)
	}
}

func TestSheets_NoRawLog(t *testing.T) {
	report := &Report{}
	if _, ok := report.Sheet(SheetRawLog); ok {
		t.Error("raw sheet present without an input table")
	}
}

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3725, "01:02:05"},
		{-5, "00:00:00"},
	}
	for _, tt := range tests {
		if got := formatHMS(tt.secs); got != tt.want {
			t.Errorf("formatHMS(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestRound2(t *testing.T) {
	if got := round2(79.99999); got != 80 {
		t.Errorf("round2(79.99999) = %v", got)
	}
	if got := round2(12.345); got != 12.35 && got != 12.34 {
		t.Errorf("round2(12.345) = %v", got)
	}
}
