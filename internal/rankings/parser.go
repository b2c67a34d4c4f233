package rankings

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// nameSelectors is the ordered list of lookup paths for a player's display
// name inside a candidate row. The first selector producing non-empty text
// wins. The site has shuffled this markup before, hence the fallbacks.
var nameSelectors = []string{
	"li.name span.lastName",
	"li.name span",
	"li.name",
	".player-cell a",
	"td.player a",
}

// Parser extracts ranking records from raw page markup. It never fails on
// malformed input: it returns as many valid records as it can find,
// possibly none.
type Parser struct {
	logger *zap.Logger
}

// NewParser builds a Parser that reports diagnostics to the given logger,
// typically the scraping sink.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse runs the primary row strategy, falls back to the container strategy
// when the primary finds nothing, then deduplicates by rank (first
// occurrence wins) and drops records outside [MinRank, MaxRank].
func (p *Parser) Parse(markup string) []Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		p.logger.Warn("markup is not parseable as HTML", zap.Error(err))
		return nil
	}

	records, skips := p.parseRows(doc)
	strategy := "rows"
	if len(records) == 0 {
		records, skips = p.parseContainers(doc)
		strategy = "containers"
	}

	records = normalize(records)

	if len(records) == 0 {
		p.logStructure(doc, markup)
	} else {
		p.logger.Info("parsed ranking records",
			zap.String("strategy", strategy),
			zap.Int("records", len(records)),
			zap.Any("skipped", skips),
		)
	}
	return records
}

// parseRows is the primary strategy: table rows carrying a rank cell, a name
// element reachable through nameSelectors, and a points cell.
func (p *Parser) parseRows(doc *goquery.Document) ([]Record, map[skipReason]int) {
	var records []Record
	skips := map[skipReason]int{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		res := parseRow(row)
		if res.ok() {
			records = append(records, res.rec)
			return
		}
		if res.skip != skipNoRankCell {
			// Rows without a rank cell are headers or filler, not data loss.
			skips[res.skip]++
		}
	})
	return records, skips
}

func parseRow(row *goquery.Selection) rowResult {
	rankCell := firstWithClassSubstring(row.Find("td"), "rank")
	if rankCell == nil {
		return rowResult{skip: skipNoRankCell}
	}
	rank, ok := parseRank(text(rankCell))
	if !ok {
		return rowResult{skip: skipBadRank}
	}

	name := lookupName(row)
	if name == "" {
		return rowResult{skip: skipNoName}
	}

	pointsCell := firstWithClassSubstring(row.Find("td"), "point")
	if pointsCell == nil {
		return rowResult{skip: skipNoPoints}
	}
	return buildRecord(rank, name, text(pointsCell))
}

// parseContainers is the secondary strategy: generic elements whose class
// attribute hints at a rank role, with sibling name and points elements
// under the same parent.
func (p *Parser) parseContainers(doc *goquery.Document) ([]Record, map[skipReason]int) {
	var records []Record
	skips := map[skipReason]int{}
	doc.Find("div, span, li, p").Each(func(_ int, el *goquery.Selection) {
		if !classContains(el, "rank") {
			return
		}
		rank, ok := parseRank(text(el))
		if !ok {
			skips[skipBadRank]++
			return
		}
		parent := el.Parent()
		nameEl := firstWithClassSubstring(parent.Children(), "name")
		if nameEl == nil || text(nameEl) == "" {
			skips[skipNoName]++
			return
		}
		pointsEl := firstWithClassSubstring(parent.Children(), "point")
		if pointsEl == nil {
			skips[skipNoPoints]++
			return
		}
		res := buildRecord(rank, text(nameEl), text(pointsEl))
		if res.ok() {
			records = append(records, res.rec)
		} else {
			skips[res.skip]++
		}
	})
	return records, skips
}

func buildRecord(rank int, name, pointsText string) rowResult {
	if pointsText == "" {
		return rowResult{skip: skipEmptyPoints}
	}
	points, ok := parsePoints(pointsText)
	if !ok {
		return rowResult{skip: skipBadPoints}
	}
	return rowResult{rec: Record{Rank: rank, Name: name, Points: points}}
}

func lookupName(row *goquery.Selection) string {
	for _, selector := range nameSelectors {
		if name := text(row.Find(selector).First()); name != "" {
			return name
		}
	}
	return ""
}

// parseRank accepts only a plain string of digits. Ranks rendered with
// suffixes, commas, or other decorations are rejected, not cleaned.
func parseRank(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// parsePoints strips thousands and decimal-style separators before parsing.
func parsePoints(s string) (int, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, ".", "")
	return parseRank(s)
}

// normalize keeps the first occurrence of each rank and discards records
// outside the expected range.
func normalize(records []Record) []Record {
	seen := make(map[int]bool, len(records))
	out := records[:0]
	for _, r := range records {
		if r.Rank < MinRank || r.Rank > MaxRank || seen[r.Rank] {
			continue
		}
		seen[r.Rank] = true
		out = append(out, r)
	}
	return out
}

// logStructure records minimal facts about markup that yielded nothing, so a
// site redesign can be diagnosed from the scraping log alone.
func (p *Parser) logStructure(doc *goquery.Document, markup string) {
	lower := strings.ToLower(markup)
	p.logger.Warn("no ranking records extracted",
		zap.String("title", strings.TrimSpace(doc.Find("title").Text())),
		zap.Int("markup_bytes", len(markup)),
		zap.Int("table_rows", doc.Find("tr").Length()),
		zap.Bool("has_rank_marker", strings.Contains(lower, "rank")),
		zap.Bool("has_point_marker", strings.Contains(lower, "point")),
	)
}

func firstWithClassSubstring(sel *goquery.Selection, substr string) *goquery.Selection {
	var found *goquery.Selection
	sel.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if classContains(el, substr) {
			found = el
			return false
		}
		return true
	})
	return found
}

// classContains reports whether the element's class attribute contains the
// marker as a case-insensitive substring. The target site uses generated
// class names, so substring matching is deliberate.
func classContains(el *goquery.Selection, substr string) bool {
	class, ok := el.Attr("class")
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(class), substr)
}

func text(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}
