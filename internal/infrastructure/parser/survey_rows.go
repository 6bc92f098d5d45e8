package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/be-green/grab-cafe/internal/domain"
)

var (
	resultIDExpr   = regexp.MustCompile(`/result/(\d+)`)
	seasonExpr     = regexp.MustCompile(`(Fall|Spring|Summer|Winter)\s+\d{4}`)
	gpaExpr        = regexp.MustCompile(`GPA\s+([\d.]+)`)
	greLabeledExpr = regexp.MustCompile(`GRE\s+(V|AW|Q)\s+([\d.]+)`)
	greBareExpr    = regexp.MustCompile(`GRE\s+(\d+)`)
	greParenExpr   = regexp.MustCompile(`([\d.]+)\s*\(([QVA]+W?)\)`)
)

// statusLiterals is the fixed set of applicant-origin badges.
var statusLiterals = map[string]struct{}{
	"International": {},
	"American":      {},
	"Other":         {},
}

// ParseRows walks the listing table and reconstructs one candidate per
// result. Each result occupies a variable run of rows: a mandatory
// five-cell fact row, an optional styled badge row, an optional styled
// comment row. Malformed rows degrade field by field; the scan always
// advances, never errors.
func ParseRows(doc *goquery.Document) []domain.Candidate {
	rows := doc.Find("tr")
	total := rows.Length()

	var candidates []domain.Candidate

	i := 0
	for i < total {
		cand, ok := parseFactRow(rows.Eq(i))
		if !ok {
			i++
			continue
		}

		commentAt := i + 1
		if i+1 < total && applyDetailRow(rows.Eq(i+1), &cand) {
			commentAt = i + 2
		}
		if commentAt < total {
			cand.Comment = commentText(rows.Eq(commentAt))
		}

		candidates = append(candidates, cand)

		// The source interleaves exactly one styled row between fact
		// rows; the comment row, when present, falls out of the next
		// iteration's five-cell check.
		i += 2
	}

	return candidates
}

// parseFactRow extracts the five positional cells of a fact row.
// Rows without exactly five cells, or with no school or result id,
// are noise.
func parseFactRow(row *goquery.Selection) (domain.Candidate, bool) {
	cells := row.Find("td")
	if cells.Length() != 5 {
		return domain.Candidate{}, false
	}

	school := compactText(cells.Eq(0))
	id := extractResultID(cells.Eq(4))
	if school == "" || id == "" {
		return domain.Candidate{}, false
	}

	program, degree := splitProgram(compactText(cells.Eq(1)))

	return domain.Candidate{
		GradCafeID: id,
		School:     school,
		Program:    program,
		Degree:     degree,
		DateAdded:  compactText(cells.Eq(2)),
		Decision:   compactText(cells.Eq(3)),
	}, true
}

// extractResultID pulls the numeric identifier out of the result link.
func extractResultID(cell *goquery.Selection) string {
	var id string
	cell.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		if match := resultIDExpr.FindStringSubmatch(href); match != nil {
			id = match[1]
			return false
		}
		return true
	})
	return id
}

// degreeKeywords are matched at their leftmost occurrence; "Masters"
// precedes "Master" so the longer form wins at the same position.
var degreeKeywords = []string{
	domain.DegreePhD,
	domain.DegreeMasters,
	domain.DegreeMaster,
	domain.DegreeDoctorate,
}

// splitProgram divides the combined program string at the first
// degree-level keyword. The program is the text before the keyword;
// when the keyword leads the string ("PhD Economics") the trailing
// text serves instead. No keyword means the whole string is the
// program and the degree is unknown.
func splitProgram(combined string) (program, degree string) {
	at := -1
	for _, keyword := range degreeKeywords {
		idx := strings.Index(combined, keyword)
		if idx < 0 {
			continue
		}
		if at == -1 || idx < at || (idx == at && len(keyword) > len(degree)) {
			at, degree = idx, keyword
		}
	}

	if at == -1 {
		return strings.TrimSpace(combined), ""
	}

	program = strings.Trim(combined[:at], " ,")
	if program == "" {
		program = strings.Trim(combined[at+len(degree):], " ,")
	}
	return program, degree
}

// badgeRule classifies one badge fragment into a candidate field.
// Rules run in order and the first rule that consumes a fragment
// wins; within a rule, an already-populated field is never replaced.
type badgeRule struct {
	name  string
	apply func(c *domain.Candidate, text string) bool
}

var badgeRules = []badgeRule{
	{name: "season", apply: func(c *domain.Candidate, text string) bool {
		if c.Season != "" {
			return false
		}
		if match := seasonExpr.FindString(text); match != "" {
			c.Season = match
			return true
		}
		return false
	}},
	{name: "status", apply: func(c *domain.Candidate, text string) bool {
		if c.Status != "" {
			return false
		}
		if _, ok := statusLiterals[text]; ok {
			c.Status = text
			return true
		}
		return false
	}},
	{name: "gpa", apply: func(c *domain.Candidate, text string) bool {
		if c.GPA != "" {
			return false
		}
		if match := gpaExpr.FindStringSubmatch(text); match != nil {
			c.GPA = match[1]
			return true
		}
		return false
	}},
	{name: "gre-labeled", apply: func(c *domain.Candidate, text string) bool {
		if !strings.HasPrefix(text, "GRE") {
			return false
		}
		match := greLabeledExpr.FindStringSubmatch(text)
		if match == nil {
			return false
		}
		return setScore(c, match[1], match[2])
	}},
	// A bare "GRE 161" carries no component label; the source uses it
	// for the quantitative score.
	{name: "gre-bare", apply: func(c *domain.Candidate, text string) bool {
		if !strings.HasPrefix(text, "GRE") || c.GREQuant != "" {
			return false
		}
		if match := greBareExpr.FindStringSubmatch(text); match != nil {
			c.GREQuant = match[1]
			return true
		}
		return false
	}},
	{name: "gre-paren", apply: func(c *domain.Candidate, text string) bool {
		if !strings.Contains(text, "(Q)") && !strings.Contains(text, "(V)") && !strings.Contains(text, "(AW)") {
			return false
		}
		match := greParenExpr.FindStringSubmatch(text)
		if match == nil {
			return false
		}
		return setScore(c, match[2], match[1])
	}},
}

func setScore(c *domain.Candidate, component, score string) bool {
	switch component {
	case "Q":
		if c.GREQuant == "" {
			c.GREQuant = score
			return true
		}
	case "V":
		if c.GREVerbal == "" {
			c.GREVerbal = score
			return true
		}
	case "AW":
		if c.GREAW == "" {
			c.GREAW = score
			return true
		}
	}
	return false
}

// applyDetailRow classifies the badge fragments of a styled detail
// row into the candidate. Returns false when the row is not a detail
// row: either unstyled, or styled but badge-free (a comment row can
// sit directly after the fact row).
func applyDetailRow(row *goquery.Selection, cand *domain.Candidate) bool {
	if !row.HasClass(detailRowClass) {
		return false
	}

	badges := row.Find("div.tw-inline-flex")
	if badges.Length() == 0 {
		return false
	}

	badges.Each(func(_ int, badge *goquery.Selection) {
		text := compactText(badge)
		if text == "" {
			return
		}
		for _, rule := range badgeRules {
			if rule.apply(cand, text) {
				break
			}
		}
	})

	return true
}

// badgeRuleNames lists the extraction rules in evaluation order;
// exposed for tests so the cascade stays explicit.
func badgeRuleNames() []string {
	names := make([]string, 0, len(badgeRules))
	for _, rule := range badgeRules {
		names = append(names, rule.name)
	}
	return names
}

// commentText returns the free-text paragraph of a styled comment
// row, or "" when the row does not carry one.
func commentText(row *goquery.Selection) string {
	if !row.HasClass(detailRowClass) {
		return ""
	}
	return compactText(row.Find("p").First())
}

func compactText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
