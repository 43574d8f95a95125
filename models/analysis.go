package models

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// CaseReference points an argument back at a retrieved case
type CaseReference struct {
	CaseIdentifier string      `json:"caseIdentifier"`
	Title          string      `json:"title"`
	Date           *civil.Date `json:"Date"`
	MatchingDegree float64     `json:"matchingDegree"`
	SourceFile     string      `json:"sourcefile_raw_md"`

	// Extended case details, present when the source record could be loaded.
	// Lists keep their nil or empty form through the response store.
	CaseNumber         *string           `json:"caseNumber,omitempty"`
	Industries         []string          `json:"industries"`
	Status             *string           `json:"status,omitempty"`
	PartyNationalities []string          `json:"partyNationalities"`
	Institution        *string           `json:"institution,omitempty"`
	RulesOfArbitration []string          `json:"rulesOfArbitration"`
	ApplicableTreaties []string          `json:"applicableTreaties"`
	Decisions          []DecisionSummary `json:"decisions"`
}

// DecisionSummary is the content-free view of a decision attached to a reference
type DecisionSummary struct {
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
	Date  string `json:"date,omitempty"`
}

// Argument is one synthesized claim backed by at least one case reference
type Argument struct {
	Argument       string          `json:"argument"`
	CaseReferences []CaseReference `json:"case_references"`
}

// AnalysisResult is the persisted outcome of one analysis request
type AnalysisResult struct {
	CaseID     string     `json:"caseId"`
	Strengths  []Argument `json:"strengths"`
	Weaknesses []Argument `json:"weaknesses"`
}

// Draft is a generated legal submission built from a stored analysis
type Draft struct {
	CaseID         string `json:"case_id"`
	Claimants      string `json:"claimants"`
	Respondents    string `json:"respondents"`
	Title          string `json:"title"`
	IntroStatement string `json:"intro_statement"`
	Body           string `json:"body"`
	Date           string `json:"date"`
}

var decisionDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"02/01/2006",
	"2006/01/02",
}

// ParseDecisionDate parses the free-form decision dates found in case records.
// Unparseable or empty values return nil.
func ParseDecisionDate(value string) *civil.Date {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range decisionDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}
	return nil
}
