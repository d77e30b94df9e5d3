package detector

// TimestampFormat represents a known join/leave timestamp format.
type TimestampFormat struct {
	Name      string   // Human-readable name
	Layout    string   // Go time layout for parsing
	Examples  []string // Example timestamps
	Ambiguous bool     // True if format has date ordering ambiguity (MM/DD vs DD/MM)
}

// DefaultFormats returns the built-in timestamp formats to detect.
// Month-first formats come before day-first ones so that, with equal
// confidence, the meeting export's usual US ordering wins.
func DefaultFormats() []*TimestampFormat {
	return []*TimestampFormat{
		{
			Name:     "ISO 8601 with timezone",
			Layout:   "2006-01-02T15:04:05Z07:00",
			Examples: []string{"2024-03-04T09:00:00Z", "2024-03-04T09:00:00-05:00"},
		},
		{
			Name:     "ISO 8601",
			Layout:   "2006-01-02T15:04:05",
			Examples: []string{"2024-03-04T09:00:00"},
		},
		{
			Name:     "Datetime (space-separated)",
			Layout:   "2006-01-02 15:04:05",
			Examples: []string{"2024-03-04 09:00:00"},
		},
		{
			Name:     "Datetime without seconds",
			Layout:   "2006-01-02 15:04",
			Examples: []string{"2024-03-04 09:00"},
		},
		{
			Name:      "US 12-hour",
			Layout:    "1/2/2006 3:04:05 PM",
			Examples:  []string{"03/04/2024 09:00:00 AM", "3/4/2024 9:00:00 AM"},
			Ambiguous: true,
		},
		{
			Name:      "US 12-hour without seconds",
			Layout:    "1/2/2006 3:04 PM",
			Examples:  []string{"03/04/2024 09:00 AM"},
			Ambiguous: true,
		},
		{
			Name:      "US 24-hour",
			Layout:    "1/2/2006 15:04:05",
			Examples:  []string{"03/04/2024 13:00:00"},
			Ambiguous: true,
		},
		{
			Name:      "US 24-hour without seconds",
			Layout:    "1/2/2006 15:04",
			Examples:  []string{"03/04/2024 13:00"},
			Ambiguous: true,
		},
		{
			Name:      "Day-first 24-hour",
			Layout:    "2/1/2006 15:04:05",
			Examples:  []string{"25/03/2024 13:00:00"},
			Ambiguous: true,
		},
		{
			Name:      "Day-first 24-hour without seconds",
			Layout:    "2/1/2006 15:04",
			Examples:  []string{"25/03/2024 13:00"},
			Ambiguous: true,
		},
		{
			Name:     "Month name 12-hour",
			Layout:   "Jan 2, 2006 3:04:05 PM",
			Examples: []string{"Mar 4, 2024 09:00:00 AM"},
		},
		{
			Name:     "Month name 12-hour without seconds",
			Layout:   "Jan 2, 2006 3:04 PM",
			Examples: []string{"Mar 4, 2024 09:00 AM"},
		},
	}
}
