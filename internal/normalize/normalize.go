package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/be-green/grab-cafe/internal/domain"
)

// dateFormats is the ordered list of layouts the listing has been
// observed to use; the first one that parses wins.
var dateFormats = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006",
	"2006-01-02",
}

// Posting shapes a raw candidate into a canonical posting. It is pure
// and total: unparseable dates or numbers become absent fields, the
// raw text stays untouched, and no input makes it fail.
func Posting(c domain.Candidate) domain.Posting {
	return domain.Posting{
		GradCafeID:   c.GradCafeID,
		School:       c.School,
		Program:      c.Program,
		Degree:       c.Degree,
		Decision:     c.Decision,
		DateAdded:    c.DateAdded,
		DecisionDate: Date(c.DateAdded),
		Season:       c.Season,
		Status:       c.Status,
		Comment:      c.Comment,
		GPA:          Number(c.GPA),
		GREQuant:     Number(c.GREQuant),
		GREVerbal:    Number(c.GREVerbal),
		GREAW:        Number(c.GREAW),
	}
}

// Date tries each recognized layout in order and returns the first
// calendar date that parses, or nil.
func Date(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range dateFormats {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}

	return nil
}

// Number coerces raw text to a float, returning nil for absent or
// non-numeric input rather than zero.
func Number(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}

	return &value
}
