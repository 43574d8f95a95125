package service

import (
	"unicode/utf8"

	"casebrief-backend/models"

	"golang.org/x/text/encoding/charmap"
)

// RepairText undoes UTF-8 text that was decoded as Latin-1 (or Windows-1252) and re-encoded
// ("BogotÃ¡" -> "Bogotá"). When the reversal does not yield valid UTF-8 the
// input is returned unchanged. The repair is applied until nothing changes,
// so RepairText(RepairText(s)) == RepairText(s).
func RepairText(s string) string {
	for {
		fixed, ok := unmangle(s)
		if !ok {
			return s
		}
		s = fixed
	}
}

// mangledAs lists the single-byte charsets UTF-8 text is commonly misread as
var mangledAs = []*charmap.Charmap{charmap.ISO8859_1, charmap.Windows1252}

// unmangle performs one round-trip reversal. It only reports success when the
// result is valid UTF-8 and strictly shorter, which guarantees the loop in
// RepairText terminates.
func unmangle(s string) (string, bool) {
	if s == "" || !hasHighRunes(s) {
		return s, false
	}

	for _, cm := range mangledAs {
		raw, err := cm.NewEncoder().String(s)
		if err != nil {
			// characters outside the charset: not mojibake of this kind
			continue
		}
		if utf8.ValidString(raw) && len(raw) < len(s) {
			return raw, true
		}
	}
	return s, false
}

func hasHighRunes(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

func repairMetadata(m *models.ChunkMetadata) {
	m.Identifier = RepairText(m.Identifier)
	m.Title = RepairText(m.Title)
	m.CaseNumber = RepairText(m.CaseNumber)
	m.Industries = RepairText(m.Industries)
	m.Status = RepairText(m.Status)
	m.PartyNationalities = RepairText(m.PartyNationalities)
	m.Institution = RepairText(m.Institution)
	m.RulesOfArbitration = RepairText(m.RulesOfArbitration)
	m.ApplicableTreaties = RepairText(m.ApplicableTreaties)
	m.DecisionTitle = RepairText(m.DecisionTitle)
	m.DecisionType = RepairText(m.DecisionType)
	m.DecisionDate = RepairText(m.DecisionDate)
	m.SourceFile = RepairText(m.SourceFile)
}
