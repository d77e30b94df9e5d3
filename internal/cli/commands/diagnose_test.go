package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ccollicutt/attendlog/pkg/config"
)

func TestRunDiagnose(t *testing.T) {
	tests := []struct {
		name     string
		log      string
		opts     DiagnoseOptions
		contains []string
	}{
		{
			name:     "clean log",
			log:      allPresentCSV,
			contains: []string{"[PASS] Config", "[PASS] Log File", "[PASS] Columns", "[PASS] Timestamps", "[PASS] Rows", "Inputs look good!"},
		},
		{
			name:     "excluded row is reported, not warned",
			log:      meetingCSV,
			opts:     DiagnoseOptions{Verbose: true},
			contains: []string{"1 excluded", `"Meeting Analytics from Read": excluded`, "No webhooks configured"},
		},
		{
			name: "bad rows",
			log: "Name (Original Name),Join Time,Leave Time\n" +
				",2024-03-04 09:00:00,2024-03-04 10:00:00\n" +
				"Jane,2024-03-04 10:00:00,2024-03-04 09:00:00\n" +
				"John,later,2024-03-04 09:00:00\n",
			contains: []string{"[WARN] Rows", "1 empty name", "1 leave before join", "[WARN] Timestamps", "unparseable time", "Inputs are usable but have warnings."},
		},
		{
			name:     "missing columns",
			log:      "Name (Original Name),User Email\nJane,j@x\n",
			contains: []string{"[FAIL] Columns", "Fix the errors above"},
		},
		{
			name:     "no header",
			log:      "hello,world\n",
			contains: []string{"[FAIL] Log File", "participants header"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logPath := writeTempFile(t, "meeting.csv", tt.log)
			var buf bytes.Buffer
			opts := tt.opts
			if err := runDiagnose(context.Background(), &buf, logPath, &opts); err != nil {
				t.Fatalf("runDiagnose() error = %v", err)
			}
			out := buf.String()
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestRunDiagnose_MissingLog(t *testing.T) {
	var buf bytes.Buffer
	if err := runDiagnose(context.Background(), &buf, "/nonexistent/meeting.csv", &DiagnoseOptions{}); err != nil {
		t.Fatalf("runDiagnose() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Log file not found") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestRunDiagnose_RosterAndConfig(t *testing.T) {
	logPath := writeTempFile(t, "meeting.csv", allPresentCSV)
	rosterPath := writeTempFile(t, "roster.csv", rosterCSV+"10001,Jane Again\n")
	configPath := writeTempFile(t, "config.yaml", "rounding_mode: banker\n")

	var buf bytes.Buffer
	err := runDiagnose(context.Background(), &buf, logPath, &DiagnoseOptions{Config: configPath, Roster: rosterPath})
	if err != nil {
		t.Fatalf("runDiagnose() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[WARN] Config", "unknown rounding mode", "[WARN] Roster", "2 student(s)", "1 row(s) skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDiagnose_BadConfig(t *testing.T) {
	logPath := writeTempFile(t, "meeting.csv", allPresentCSV)
	configPath := writeTempFile(t, "config.yaml", "threshold_ratio: 3\n")

	var buf bytes.Buffer
	if err := runDiagnose(context.Background(), &buf, logPath, &DiagnoseOptions{Config: configPath}); err != nil {
		t.Fatalf("runDiagnose() error = %v", err)
	}
	if !strings.Contains(buf.String(), "[FAIL] Config") || !strings.Contains(buf.String(), "[PASS] Log File") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestCheckWebhooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Webhooks = []config.WebhookConfig{
		{Name: "ok", URL: server.URL, Trigger: config.WebhookTriggerAlways},
		{Name: "envtoken", URL: server.URL, Token: "${MISSING}"},
	}

	results := checkWebhooks(cfg, &DiagnoseOptions{Verbose: true})
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	if results[0].Status != StatusOK || results[1].Status != StatusOK {
		t.Errorf("ok hook results = %+v, %+v", results[0], results[1])
	}
	if results[1].Message != "Reachable (status 200)" {
		t.Errorf("connectivity = %q", results[1].Message)
	}
	if results[2].Status != StatusWarning {
		t.Errorf("env token result = %+v", results[2])
	}
}
