// Package rankings holds the canonical ranking record type and the HTML
// parser that extracts records from the scraped rankings page.
package rankings

// Record is one parsed row of the rankings table. Records are ephemeral:
// they exist between a parse and the store replace that consumes them.
type Record struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// MinRank and MaxRank bound the ranks the parser will accept. Rows outside
// the range are dropped during post-processing.
const (
	MinRank = 1
	MaxRank = 100
)

// skipReason explains why a candidate row produced no Record. Keeping the
// reason explicit makes the skip policy auditable instead of burying it in
// error control flow.
type skipReason string

const (
	skipNone        skipReason = ""
	skipNoRankCell  skipReason = "no_rank_cell"
	skipBadRank     skipReason = "rank_not_numeric"
	skipNoName      skipReason = "no_name_element"
	skipNoPoints    skipReason = "no_points_cell"
	skipBadPoints   skipReason = "points_not_numeric"
	skipEmptyPoints skipReason = "points_empty"
)

// rowResult is the per-row outcome of an extraction attempt: either a valid
// Record, or a skip reason.
type rowResult struct {
	rec  Record
	skip skipReason
}

func (r rowResult) ok() bool { return r.skip == skipNone }
