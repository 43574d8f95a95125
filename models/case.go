package models

// CaseDocument represents one arbitration case record as stored in the case-record source
type CaseDocument struct {
	Identifier         string     `json:"Identifier"`
	Title              string     `json:"Title"`
	CaseNumber         string     `json:"CaseNumber,omitempty"`
	Industries         []string   `json:"Industries,omitempty"`
	Status             string     `json:"Status,omitempty"`
	PartyNationalities []string   `json:"PartyNationalities,omitempty"`
	Institution        string     `json:"Institution,omitempty"`
	RulesOfArbitration []string   `json:"RulesOfArbitration,omitempty"`
	ApplicableTreaties []string   `json:"ApplicableTreaties,omitempty"`
	Summary            string     `json:"Summary,omitempty"`
	Decisions          []Decision `json:"Decisions"`
}

// Decision represents one decision issued in a case; its content is the source of chunks
type Decision struct {
	Title   string `json:"Title"`
	Type    string `json:"Type,omitempty"`
	Date    string `json:"Date,omitempty"`
	Content string `json:"Content,omitempty"`
}

// CaseDocumentFields lists the top-level keys a case record may carry.
// Anything else is flagged during ingestion.
var CaseDocumentFields = map[string]bool{
	"Identifier":         true,
	"Title":              true,
	"CaseNumber":         true,
	"Industries":         true,
	"Status":             true,
	"PartyNationalities": true,
	"Institution":        true,
	"RulesOfArbitration": true,
	"ApplicableTreaties": true,
	"Summary":            true,
	"Decisions":          true,
}
