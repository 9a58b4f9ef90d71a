package domain

// TermCounts sums the record and summary tallies of accepted terms.
type TermCounts struct {
	Records   int64 `json:"records"`
	Summaries int64 `json:"summaries"`
}
