package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/attendlog/pkg/output"
)

// TestPostgresStore_Integration runs against a real database.
// Set ATTENDLOG_TEST_DB_URL to run it.
func TestPostgresStore_Integration(t *testing.T) {
	dsn := os.Getenv("ATTENDLOG_TEST_DB_URL")
	if dsn == "" {
		t.Skip("Skipping archive integration test. Set ATTENDLOG_TEST_DB_URL to run")
	}

	ctx := context.Background()
	st, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	report := &output.Report{
		Summary:  output.Summary{Students: 1, Present: 1},
		Metadata: output.Metadata{RunID: uuid.NewString(), LogFile: "meeting.csv", ProcessedAt: time.Now()},
		Attendance: []output.AttendanceRow{
			{Key: "ID:10001", RawNames: "10001 - Jane Doe", AttendedDecision: 90, ThresholdDecision: 80, Status: "Present"},
		},
	}

	saved, err := st.SaveRun(ctx, report)
	if err != nil || !saved {
		t.Fatalf("SaveRun() = %v, %v", saved, err)
	}
	saved, err = st.SaveRun(ctx, report)
	if err != nil || saved {
		t.Errorf("second SaveRun() = %v, %v, want false, nil", saved, err)
	}

	runs, err := st.RecentRuns(ctx, 50)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	found := false
	for _, r := range runs {
		if r.RunID == report.Metadata.RunID {
			found = r.Summary.Present == 1
		}
	}
	if !found {
		t.Errorf("run %s not listed", report.Metadata.RunID)
	}
}
