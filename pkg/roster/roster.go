// Package roster loads the enrollment roster used to reconcile attendance.
package roster

import (
	"sort"
	"strings"

	"github.com/ccollicutt/attendlog/pkg/detector"
	"github.com/ccollicutt/attendlog/pkg/identity"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// Entry is one enrolled student.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
	Email     string `json:"email,omitempty"`
}

// Roster is an ordered list of entries with unique IDs.
type Roster struct {
	Entries []Entry
	Columns detector.RosterColumns

	byID map[string]int
}

// FromTable builds a roster from a parsed table. Rows without a five-digit
// ID or without a name are skipped; repeated IDs keep the first row.
func FromTable(t *table.Table, d *detector.Detector) (*Roster, error) {
	if d == nil {
		d = detector.New()
	}
	cols, err := d.DetectRosterColumns(t)
	if err != nil {
		return nil, err
	}

	r := &Roster{Columns: cols, byID: make(map[string]int)}
	for _, row := range t.Rows {
		id := identity.ExtractID(row[cols.ID])
		name := strings.TrimSpace(row[cols.Name])
		if id == "" || name == "" {
			continue
		}
		if _, dup := r.byID[id]; dup {
			continue
		}
		r.byID[id] = len(r.Entries)
		r.Entries = append(r.Entries, Entry{
			ID:        id,
			Name:      name,
			Canonical: identity.Canonical(name),
			Email:     strings.TrimSpace(row[cols.Email]),
		})
	}
	return r, nil
}

// Empty reports whether the roster has no entries. A nil roster is empty.
func (r *Roster) Empty() bool {
	return r == nil || len(r.Entries) == 0
}

// Len returns the number of entries.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

// Lookup returns the entry for a student ID.
func (r *Roster) Lookup(id string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return Entry{}, false
	}
	return r.Entries[i], true
}

// IDs returns every roster ID in ascending order.
func (r *Roster) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}
