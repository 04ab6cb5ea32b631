package models

import "errors"

var (
	// ErrInvalidArgument marks an absent required input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMalformedURI marks a URL that does not parse or is not absolute.
	ErrMalformedURI = errors.New("malformed uri")
)

// LinkSet maps a line index to the URLs found on it, in extraction order.
type LinkSet map[int][]string

// OutcomeSet is positionally aligned with the LinkSet it was built from.
type OutcomeSet map[int][]Outcome

type Outcome struct {
	URL        string   `json:"url"`
	StatusCode int      `json:"status_code"`
	Matches    []string `json:"matches"`
}

// Sheet is one sub-unit of a workbook: a rectangular grid of cell text.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Range addresses the input table of every sheet. Rows and columns are 1-based;
// a negative width or height means the extent is detected from the data.
type Range struct {
	Row    int
	Column int
	Width  int
	Height int
}

type Decision int

const (
	DecisionPending Decision = iota
	DecisionRetry
	DecisionAbandon
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionAbandon:
		return "abandon"
	default:
		return "pending"
	}
}

// ParseDecision accepts the host-facing names of a decision.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "retry":
		return DecisionRetry, true
	case "abandon":
		return DecisionAbandon, true
	}
	return DecisionPending, false
}

type LinkStatus struct {
	URL          string   `bson:"url" json:"url"`
	StatusCode   int      `bson:"status_code" json:"status_code"`
	Matches      []string `bson:"matches" json:"matches"`
	IsValid      bool     `bson:"is_valid" json:"is_valid"`
	FirstChecked int64    `bson:"first_checked" json:"first_checked"`
	LastChecked  int64    `bson:"last_checked" json:"last_checked"`
	CheckCount   int      `bson:"check_count" json:"check_count"`
}

type CheckRecord struct {
	ID         string   `bson:"_id" json:"id"`
	Unit       string   `bson:"unit" json:"unit"`
	Sheet      string   `bson:"sheet" json:"sheet"`
	Line       int      `bson:"line" json:"line"`
	URL        string   `bson:"url" json:"url"`
	StatusCode int      `bson:"status_code" json:"status_code"`
	Matches    []string `bson:"matches" json:"matches"`
	Status     string   `bson:"status" json:"status"` // good, doubtful, bad
	Timestamp  int64    `bson:"timestamp" json:"timestamp"`
}

// Verdict classifies an outcome the same way reports do.
func (o Outcome) Verdict() string {
	switch {
	case o.StatusCode != 200:
		return "bad"
	case len(o.Matches) > 0:
		return "doubtful"
	default:
		return "good"
	}
}
