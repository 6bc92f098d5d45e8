package domain

import "time"

// Degree level keywords as they appear in the listing's combined
// program string. The first keyword found splits program from degree.
const (
	DegreePhD       = "PhD"
	DegreeMasters   = "Masters"
	DegreeMaster    = "Master"
	DegreeDoctorate = "Doctorate"
)

// DoctoralDegrees and MastersDegrees partition the degree values used
// when projecting aggregate tables.
var (
	DoctoralDegrees = []string{DegreePhD, DegreeDoctorate}
	MastersDegrees  = []string{DegreeMasters, DegreeMaster}
)

// Candidate is a posting as reconstructed from the listing markup,
// before normalization. Every field is raw text; empty means the
// source row did not carry it.
type Candidate struct {
	GradCafeID string
	School     string
	Program    string
	Degree     string
	Decision   string
	DateAdded  string
	Season     string
	Status     string
	GPA        string
	GREQuant   string
	GREVerbal  string
	GREAW      string
	Comment    string
}

// Posting is a canonical admissions result. Optional fields use nil
// (pointers) or the empty string; a field that failed to parse is
// absent, never a zero threaded through arithmetic.
type Posting struct {
	ID         int64
	GradCafeID string
	School     string
	Program    string
	Degree     string
	Decision   string
	DateAdded  string

	// DecisionDate is DateAdded normalized to a calendar date; nil
	// when no recognized format matched.
	DecisionDate *time.Time

	Season  string
	Status  string
	Comment string

	GPA       *float64
	GREQuant  *float64
	GREVerbal *float64
	GREAW     *float64

	ScrapedAt time.Time
	Delivered bool
}
