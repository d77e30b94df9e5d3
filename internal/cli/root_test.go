package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ccollicutt/attendlog/internal/cli/commands"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()
	want := []string{"process", "keys", "detect", "diagnose", "validate", "serve", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	absent := filepath.Join(dir, "absent.csv")
	present := filepath.Join(dir, "present.csv")
	os.WriteFile(absent, []byte("Name (Original Name),Join Time,Leave Time\n"+
		"10001 - Jane Doe,2024-03-04 09:00:00,2024-03-04 10:40:00\n"+
		"John Roe,2024-03-04 09:00:00,2024-03-04 09:10:00\n"), 0644)
	os.WriteFile(present, []byte("Name (Original Name),Join Time,Leave Time\n"+
		"10001 - Jane Doe,2024-03-04 09:00:00,2024-03-04 10:40:00\n"), 0644)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"all present", []string{"process", "-o", "json", "-q", present}, commands.ExitAllPresent},
		{"someone absent", []string{"process", "-o", "json", "-q", absent}, commands.ExitNotPresent},
		{"error", []string{"process", filepath.Join(dir, "missing.csv")}, commands.ExitError},
		{"unknown command", []string{"frobnicate"}, commands.ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCommand()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			if got := run(root); got != tt.want {
				t.Errorf("run() = %d, want %d", got, tt.want)
			}
		})
	}
}
