package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ccollicutt/attendlog/pkg/attendance"
	"github.com/ccollicutt/attendlog/pkg/config"
)

const meetingCSV = `Meeting ID,Topic,Start Time
123 456 7890,Algebra,2024-03-04 09:00:00

Name (Original Name),User Email,Join Time,Leave Time,Duration (Minutes)
10001 - Jane Doe,jane@example.com,2024-03-04 09:00:00,2024-03-04 10:40:00,100
John Roe,,2024-03-04 09:00:00,2024-03-04 09:20:00,20
`

const rosterCSV = `ID,Name
10001,Jane Doe
10003,Ann Lee
`

func newRunner(t *testing.T, cfg *config.Config) *Runner {
	t.Helper()
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestRunner_Process(t *testing.T) {
	r := newRunner(t, nil)

	report, result, err := r.Process(context.Background(), Request{
		LogName:    "meeting.csv",
		LogData:    []byte(meetingCSV),
		RosterName: "roster.csv",
		RosterData: []byte(rosterCSV),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !result.Meta.RosterProvided {
		t.Error("RosterProvided = false")
	}
	if got := report.Summary; got.Students != 3 || got.Present != 1 || got.RosterOnly != 1 {
		t.Errorf("Summary = %+v", got)
	}
	if report.Metadata.LogFile != "meeting.csv" || report.Metadata.RosterFile != "roster.csv" {
		t.Errorf("Metadata = %+v", report.Metadata)
	}
	if report.Metadata.RunID != result.Meta.RunID {
		t.Error("report run id differs from result run id")
	}
	if len(report.IDs) != 2 {
		t.Errorf("IDs = %v, want roster IDs", report.IDs)
	}
}

func TestRunner_Process_ParamsAndExemptions(t *testing.T) {
	r := newRunner(t, nil)

	ratio := 0.2
	report, result, err := r.Process(context.Background(), Request{
		LogData:    []byte(meetingCSV),
		Params:     config.Params{ThresholdRatio: &ratio},
		Exemptions: config.Exemptions{"NAME:john roe": {Naming: true}},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Meta.ThresholdRatio != 0.2 {
		t.Errorf("ThresholdRatio = %v, want 0.2", result.Meta.ThresholdRatio)
	}
	if report.Summary.Present != 2 {
		t.Errorf("Present = %d, want 2", report.Summary.Present)
	}
	if report.Summary.Penalized != 0 {
		t.Errorf("Penalized = %d, want 0 with naming exemption", report.Summary.Penalized)
	}

	if r.Config().ThresholdRatio != config.DefaultThresholdRatio {
		t.Error("base config was modified by params")
	}
}

func TestRunner_Process_InvalidParams(t *testing.T) {
	r := newRunner(t, nil)

	ratio := 1.5
	_, _, err := r.Process(context.Background(), Request{
		LogData: []byte(meetingCSV),
		Params:  config.Params{ThresholdRatio: &ratio},
	})
	if err == nil {
		t.Fatal("Process() expected error for ratio > 1")
	}
}

func TestRunner_Process_InputError(t *testing.T) {
	r := newRunner(t, nil)

	_, _, err := r.Process(context.Background(), Request{
		LogData: []byte("Name (Original Name),User Email\nJane,jane@example.com\n"),
	})
	var inputErr *attendance.InputError
	if !errors.As(err, &inputErr) {
		t.Errorf("Process() error = %v, want InputError", err)
	}
}

func TestRunner_Keys(t *testing.T) {
	r := newRunner(t, nil)

	keys, err := r.Keys(context.Background(), Request{LogData: []byte(meetingCSV)})
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0].Key != "ID:10001" || keys[1].Key != "NAME:john roe" {
		t.Errorf("keys = %+v", keys)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ThresholdRatio = 0
	if _, err := New(cfg); err == nil {
		t.Error("New() expected error for zero ratio")
	}
}
