// Package detector identifies the columns of a meeting log or roster and
// binds each row to a fixed-shape record.
//
// Header matching is case-insensitive and exact against ordered candidate
// lists. Timestamp formats are detected by sampling join/leave cells and
// scoring every known layout by the share of cells it parses.
package detector

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/attendlog/pkg/identity"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// Header candidates, most specific first.
var (
	NameHeaders = []string{
		"name (original name)", "name", "participant", "user name", "full name", "display name",
	}
	JoinHeaders = []string{
		"join time", "join time (timezone)", "join time (yyyy-mm-dd hh:mm:ss)", "join time (utc)",
		"first join time", "first join time (utc)",
	}
	LeaveHeaders = []string{
		"leave time", "leave time (timezone)", "leave time (yyyy-mm-dd hh:mm:ss)", "leave time (utc)",
		"last leave time", "last leave time (utc)",
	}
	DurationHeaders = []string{
		"duration (minutes)", "total duration (minutes)", "time in meeting (minutes)",
	}
	EmailHeaders = []string{
		"user email", "email", "attendee email",
	}
	ParticipantIDHeaders = []string{
		"participant id", "user id", "unique id", "id",
	}

	RosterNameHeaders  = []string{"name", "student name", "full name", "official name"}
	RosterEmailHeaders = []string{"email", "user email", "attendee email", "e-mail"}
)

// rosterIDSample caps how many non-empty cells per column are scored when
// looking for the roster ID column.
const rosterIDSample = 500

// Columns names the log columns that were found. Empty means absent.
type Columns struct {
	Name          string `json:"name"`
	Join          string `json:"join,omitempty"`
	Leave         string `json:"leave,omitempty"`
	Duration      string `json:"duration,omitempty"`
	Email         string `json:"email,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// HasTimes reports whether both join and leave columns exist.
func (c Columns) HasTimes() bool {
	return c.Join != "" && c.Leave != ""
}

// RosterColumns names the roster columns that were found.
type RosterColumns struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Record is one log row resolved to a fixed shape.
type Record struct {
	// RawName is the display name cell.
	RawName string

	// Join and Leave are parsed timestamps; zero when absent or unparseable.
	Join  time.Time
	Leave time.Time

	// JoinRaw and LeaveRaw are the original cells, kept for audit output.
	JoinRaw  string
	LeaveRaw string

	// Duration is the duration cell in minutes; 0 when absent or unparseable.
	Duration float64

	Email         string
	ParticipantID string
}

// Binding is the result of detecting a log table's layout.
type Binding struct {
	Columns Columns

	// Timestamps is the timestamp detection result, nil without join/leave columns.
	Timestamps *DetectionResult

	// Records holds one bound record per table row.
	Records []Record
}

// HasTimes reports whether at least one join and one leave timestamp parsed.
func (b *Binding) HasTimes() bool {
	if !b.Columns.HasTimes() {
		return false
	}
	var join, leave bool
	for _, r := range b.Records {
		join = join || !r.Join.IsZero()
		leave = leave || !r.Leave.IsZero()
		if join && leave {
			return true
		}
	}
	return false
}

// DetectionResult holds the result of scoring timestamp formats.
type DetectionResult struct {
	Matches       []FormatMatch // Formats that matched, sorted by confidence descending
	SampledValues int           // Number of values sampled
	ParsedValues  int           // Number of values the best format parsed
	AmbiguityNote string        // Warning about date ordering if applicable
}

// FormatMatch represents a format that matched with its confidence score.
type FormatMatch struct {
	Format      *TimestampFormat
	Confidence  float64   // 0.0 to 1.0 (share of sampled values parsed)
	MatchCount  int       // Number of values that parsed
	SampleValue string    // Example value that parsed
	ParsedTime  time.Time // Parsed timestamp from sample
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *FormatMatch {
	if r == nil || len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one format matched.
func (r *DetectionResult) HasMatch() bool {
	return r != nil && len(r.Matches) > 0
}

// Detector analyzes tables to identify columns and timestamp formats.
type Detector struct {
	formats    []*TimestampFormat
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of timestamp cells to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithFormats replaces the candidate timestamp formats.
func WithFormats(formats []*TimestampFormat) Option {
	return func(d *Detector) {
		if len(formats) > 0 {
			d.formats = formats
		}
	}
}

// New creates a new Detector with default formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:    DefaultFormats(),
		sampleSize: 100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectColumns finds the log columns. A name column is required, as is
// either a join/leave pair or a duration column.
func (d *Detector) DetectColumns(t *table.Table) (Columns, error) {
	lookup := headerLookup(t)
	cols := Columns{
		Name:          pick(lookup, NameHeaders),
		Join:          pick(lookup, JoinHeaders),
		Leave:         pick(lookup, LeaveHeaders),
		Duration:      pick(lookup, DurationHeaders),
		Email:         pick(lookup, EmailHeaders),
		ParticipantID: pick(lookup, ParticipantIDHeaders),
	}

	if cols.Name == "" {
		return cols, table.Errorf("could not detect participant name column (found: %s)",
			strings.Join(t.Headers, ", "))
	}
	if !cols.HasTimes() && cols.Duration == "" {
		return cols, table.Errorf("no join/leave or duration columns found")
	}
	return cols, nil
}

// DetectRosterColumns finds the roster columns. The ID column is the one
// with the most bare five-digit cells; the name column comes from the
// header candidates, else the first other column.
func (d *Detector) DetectRosterColumns(t *table.Table) (RosterColumns, error) {
	var cols RosterColumns

	bestHits := 0
	for _, h := range t.Headers {
		hits, seen := 0, 0
		for _, row := range t.Rows {
			v := row[h]
			if v == "" {
				continue
			}
			if seen++; seen > rosterIDSample {
				break
			}
			if identity.IsID(v) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			cols.ID = h
		}
	}

	lookup := headerLookup(t)
	cols.Name = pick(lookup, RosterNameHeaders)
	if cols.Name == "" {
		for _, h := range t.Headers {
			if h != cols.ID {
				cols.Name = h
				break
			}
		}
	}
	cols.Email = pick(lookup, RosterEmailHeaders)

	if cols.ID == "" || cols.Name == "" || cols.Name == cols.ID {
		return cols, table.Errorf("could not detect ID/name columns in roster; it needs a 5-digit ID column and a name column")
	}
	return cols, nil
}

// DetectTimestamps scores every candidate format against up to sampleSize
// non-empty values.
func (d *Detector) DetectTimestamps(values []string) *DetectionResult {
	sample := make([]string, 0, d.sampleSize)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		sample = append(sample, v)
		if len(sample) >= d.sampleSize {
			break
		}
	}

	result := &DetectionResult{SampledValues: len(sample)}
	if len(sample) == 0 {
		return result
	}

	for _, format := range d.formats {
		var match *FormatMatch
		for _, v := range sample {
			ts, err := time.Parse(format.Layout, v)
			if err != nil {
				continue
			}
			if match == nil {
				match = &FormatMatch{Format: format, SampleValue: v, ParsedTime: ts}
			}
			match.MatchCount++
		}
		if match != nil {
			match.Confidence = float64(match.MatchCount) / float64(len(sample))
			result.Matches = append(result.Matches, *match)
		}
	}

	// Stable so that list order breaks confidence ties.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Confidence > result.Matches[j].Confidence
	})

	if best := result.BestMatch(); best != nil {
		result.ParsedValues = best.MatchCount
		if best.Format.Ambiguous {
			result.AmbiguityNote = "This format has date ordering ambiguity (MM/DD vs DD/MM). " +
				"Verify the detected layout matches the export settings."
		}
	}

	return result
}

// Bind detects the log layout and converts every row to a Record.
// Per-row problems (an unparseable timestamp or duration) leave the field
// empty; they never fail the bind.
func (d *Detector) Bind(ctx context.Context, t *table.Table) (*Binding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols, err := d.DetectColumns(t)
	if err != nil {
		return nil, err
	}

	b := &Binding{Columns: cols, Records: make([]Record, 0, t.Len())}

	var parse func(string) time.Time
	if cols.HasTimes() {
		values := append(t.Column(cols.Join), t.Column(cols.Leave)...)
		b.Timestamps = d.DetectTimestamps(values)
		parse = d.timeParser(b.Timestamps)
	}

	for _, row := range t.Rows {
		rec := Record{
			RawName:       row[cols.Name],
			Email:         row[cols.Email],
			ParticipantID: row[cols.ParticipantID],
		}
		if parse != nil {
			rec.JoinRaw = row[cols.Join]
			rec.LeaveRaw = row[cols.Leave]
			rec.Join = parse(rec.JoinRaw)
			rec.Leave = parse(rec.LeaveRaw)
		}
		if cols.Duration != "" {
			rec.Duration = parseMinutes(row[cols.Duration])
		}
		b.Records = append(b.Records, rec)
	}

	return b, nil
}

// timeParser returns a parser that tries the detected layouts in confidence
// order, then every remaining format. Results are truncated to the second.
func (d *Detector) timeParser(result *DetectionResult) func(string) time.Time {
	layouts := make([]string, 0, len(d.formats))
	seen := make(map[string]bool)
	for _, m := range result.Matches {
		if !seen[m.Format.Layout] {
			seen[m.Format.Layout] = true
			layouts = append(layouts, m.Format.Layout)
		}
	}
	for _, f := range d.formats {
		if !seen[f.Layout] {
			seen[f.Layout] = true
			layouts = append(layouts, f.Layout)
		}
	}

	return func(s string) time.Time {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.Truncate(time.Second)
			}
		}
		return time.Time{}
	}
}

func parseMinutes(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v != v {
		return 0
	}
	return v
}

func headerLookup(t *table.Table) map[string]string {
	lookup := make(map[string]string, len(t.Headers))
	for _, h := range t.Headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := lookup[key]; !ok {
			lookup[key] = h
		}
	}
	return lookup
}

func pick(lookup map[string]string, candidates []string) string {
	for _, c := range candidates {
		if h, ok := lookup[c]; ok {
			return h
		}
	}
	return ""
}
