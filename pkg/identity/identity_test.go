package identity

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		raw         string
		wantID      string
		wantClean   string
		wantFlagged bool
	}{
		{"10001 - Jane Doe", "10001", "Jane Doe", false},
		{"  10001_Jane Doe  ", "10001", "Jane Doe", false},
		{"10001 Jane", "10001", "Jane", false},
		{"10001-Jane-Doe", "10001", "Jane-Doe", false},
		{"Jane Doe", "", "Jane Doe", true},
		{"1000 - Jane", "", "1000 - Jane", true},
		{"Jane 10001", "", "Jane 10001", true},
		{"10001", "", "10001", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := Parse(tt.raw)
			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if got.Clean != tt.wantClean {
				t.Errorf("Clean = %q, want %q", got.Clean, tt.wantClean)
			}
			if got.Flagged() != tt.wantFlagged {
				t.Errorf("Flagged() = %v, want %v", got.Flagged(), tt.wantFlagged)
			}
			if got.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", got.Raw, tt.raw)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe", "jane doe"},
		{"  JANE   doe ", "jane doe"},
		{"Jane Doe (she/her)", "jane doe"},
		{"10001 - Jane Doe", "jane doe"},
		{"jane_doe", "jane doe"},
		{"Jane-Doe's iPhone", "jane doe s iphone"},
		{"José Núñez", "jose nunez"},
		{"123", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Canonical(tt.in); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSpaces(t *testing.T) {
	if got := NormalizeSpaces("  Jane \t  DOE "); got != "jane doe" {
		t.Errorf("NormalizeSpaces() = %q, want %q", got, "jane doe")
	}
}

func TestSameCandidate(t *testing.T) {
	if !SameCandidate("10002 - Jane Doe", "jane  doe (iPad)") {
		t.Error("SameCandidate() = false, want true")
	}
	if SameCandidate("Jane Doe", "John Doe") {
		t.Error("SameCandidate() = true, want false")
	}
	if SameCandidate("123", "456") {
		t.Error("SameCandidate() matched two empty canonical names")
	}
}

func TestKey(t *testing.T) {
	if got := Parse("10001 - Jane Doe").Key(); got != "ID:10001" {
		t.Errorf("Key() = %q, want ID:10001", got)
	}
	k := Parse("  Jane   Doe ").Key()
	if k != "NAME:jane doe" {
		t.Errorf("Key() = %q, want NAME:jane doe", k)
	}
	if !k.IsName() || k.IsID() {
		t.Errorf("Key %q kind detection wrong", k)
	}
	if IDKey("10001").ID() != "10001" {
		t.Errorf("ID() = %q, want 10001", IDKey("10001").ID())
	}
	if k.ID() != "" {
		t.Errorf("ID() on name key = %q, want empty", k.ID())
	}
}

func TestExtractID(t *testing.T) {
	if got := ExtractID("ERP 12345"); got != "12345" {
		t.Errorf("ExtractID() = %q, want 12345", got)
	}
	if got := ExtractID("n/a"); got != "" {
		t.Errorf("ExtractID() = %q, want empty", got)
	}
	if !IsID(" 12345 ") || IsID("123456") {
		t.Error("IsID() classification wrong")
	}
}
