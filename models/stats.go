package models

// CategoryStats reconciles what the API advertised for a category (last_page)
// against what a run actually collected, so undercounting is visible instead
// of silent.
type CategoryStats struct {
	Category        Category `json:"category"`
	PagesExpected   int      `json:"pages_expected"`
	PagesFetched    int      `json:"pages_fetched"`
	PagesFailed     int      `json:"pages_failed"`
	ListingsSeen    int      `json:"listings_seen"`
	RecordsEmitted  int      `json:"records_emitted"`
	RecordsDropped  int      `json:"records_dropped"`
	PhonesMissing   int      `json:"phones_missing"`
	Failed          bool     `json:"failed"`
	FailureReason   string   `json:"failure_reason,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// Complete reports whether every advertised page and every listing made it
// into the output with a phone number.
func (s CategoryStats) Complete() bool {
	return !s.Failed &&
		s.PagesFailed == 0 &&
		s.PagesFetched == s.PagesExpected &&
		s.RecordsDropped == 0 &&
		s.PhonesMissing == 0
}

func (s CategoryStats) Errors() int {
	n := s.PagesFailed + s.RecordsDropped + s.PhonesMissing
	if s.Failed {
		n++
	}
	return n
}

// Summary holds the counts written to the export summary sheet.
type Summary struct {
	Total     int
	Sale      int
	Rent      int
	WithPhone int
}
