package store

import (
	"strings"
	"testing"

	"github.com/ccollicutt/attendlog/pkg/output"
)

func TestVerdictRows(t *testing.T) {
	report := &output.Report{
		Metadata: output.Metadata{RunID: "run-1"},
		Attendance: []output.AttendanceRow{
			{Key: "ID:10001", RawNames: "10001 - Jane Doe", AttendedDecision: 90, ThresholdDecision: 80, Status: "Present"},
			{Key: "NAME:john roe", RawNames: "John Roe", AttendedDecision: 20, ThresholdDecision: 80, Status: "Absent", NamingPenalty: -1, Issues: "x"},
		},
	}

	rows := verdictRows(report)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if len(r) != 8 {
			t.Errorf("row has %d args, want 8", len(r))
		}
		if r[0] != "run-1" {
			t.Errorf("run id = %v", r[0])
		}
	}
	if rows[1][1] != "NAME:john roe" || rows[1][5] != "Absent" || rows[1][6] != -1 {
		t.Errorf("second row = %v", rows[1])
	}
}

func TestVerdictRows_Empty(t *testing.T) {
	if rows := verdictRows(&output.Report{}); len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"CREATE TABLE IF NOT EXISTS runs", "CREATE TABLE IF NOT EXISTS verdicts"} {
		if !strings.Contains(schemaSQL, table) {
			t.Errorf("schema missing %q", table)
		}
	}
}
