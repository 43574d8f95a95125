package models

import (
	"strings"
)

// ListSeparator joins list-valued case fields into a single metadata string
const ListSeparator = ", "

// ChunkMetadata is the flat metadata record stored next to every indexed chunk.
// List-valued case fields are flattened with ListSeparator.
type ChunkMetadata struct {
	Identifier         string `json:"Identifier"`
	Title              string `json:"Title"`
	CaseNumber         string `json:"CaseNumber,omitempty"`
	Industries         string `json:"Industries,omitempty"`
	Status             string `json:"Status,omitempty"`
	PartyNationalities string `json:"PartyNationalities,omitempty"`
	Institution        string `json:"Institution,omitempty"`
	RulesOfArbitration string `json:"RulesOfArbitration,omitempty"`
	ApplicableTreaties string `json:"ApplicableTreaties,omitempty"`
	DecisionTitle      string `json:"DecisionTitle,omitempty"`
	DecisionType       string `json:"DecisionType,omitempty"`
	DecisionDate       string `json:"DecisionDate,omitempty"`
	ChunkIndex         int    `json:"chunk_index"`
	SourceFile         string `json:"source_file,omitempty"`
}

// NewChunkMetadata builds the metadata record for one chunk of a decision
func NewChunkMetadata(doc *CaseDocument, decision *Decision, chunkIndex int, sourceFile string) ChunkMetadata {
	return ChunkMetadata{
		Identifier:         doc.Identifier,
		Title:              doc.Title,
		CaseNumber:         doc.CaseNumber,
		Industries:         FlattenList(doc.Industries),
		Status:             doc.Status,
		PartyNationalities: FlattenList(doc.PartyNationalities),
		Institution:        doc.Institution,
		RulesOfArbitration: FlattenList(doc.RulesOfArbitration),
		ApplicableTreaties: FlattenList(doc.ApplicableTreaties),
		DecisionTitle:      decision.Title,
		DecisionType:       decision.Type,
		DecisionDate:       decision.Date,
		ChunkIndex:         chunkIndex,
		SourceFile:         sourceFile,
	}
}

// FlattenList joins a list field into one delimited string
func FlattenList(values []string) string {
	return strings.Join(values, ListSeparator)
}

// SplitList reverses FlattenList. Values that contained the separator themselves
// do not survive the round trip.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ListSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IndexedVector is one embedded chunk as written to a vector index
type IndexedVector struct {
	ID       string
	Vector   []float32
	Document string
	Metadata ChunkMetadata
}

// IndexHit is one nearest-neighbour result returned by a vector index
type IndexHit struct {
	ID       string        `json:"id"`
	Document string        `json:"document"`
	Metadata ChunkMetadata `json:"metadata"`
	Distance float64       `json:"distance"` // Cosine distance, smaller is closer
}

// RetrievalCandidate is a ranked chunk produced by one retrieval call
type RetrievalCandidate struct {
	Text      string        `json:"text"`
	Metadata  ChunkMetadata `json:"metadata"`
	Distance  float64       `json:"distance"`
	Score     float64       `json:"score"`
	Case      *CaseDocument `json:"case,omitempty"`
	CaseError string        `json:"case_error,omitempty"`
}

// SemanticSimilarity converts the index distance into a similarity
func (c RetrievalCandidate) SemanticSimilarity() float64 {
	return 1 - c.Distance
}
