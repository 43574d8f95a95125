package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casebrief-backend/llm"
	"casebrief-backend/models"
)

const (
	DefaultSynthesisTimeout = 60 * time.Second
	DefaultSummaryChars     = 500
	DefaultExcerptChars     = 1000
)

// SynthesisService turns retrieved candidates into evidence-backed arguments
type SynthesisService struct {
	generator    Generator
	timeout      time.Duration
	summaryChars int
	excerptChars int
	logger       *slog.Logger
}

// SynthesisServiceOption is a functional option for SynthesisService
type SynthesisServiceOption func(*SynthesisService)

// SynthesisWithGenerator sets the generative model
func SynthesisWithGenerator(g Generator) SynthesisServiceOption {
	return func(s *SynthesisService) {
		s.generator = g
	}
}

// SynthesisWithTimeout bounds a single generator call
func SynthesisWithTimeout(d time.Duration) SynthesisServiceOption {
	return func(s *SynthesisService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// SynthesisWithExcerptLimits sets the per-candidate character budgets in the prompt
func SynthesisWithExcerptLimits(summaryChars, excerptChars int) SynthesisServiceOption {
	return func(s *SynthesisService) {
		if summaryChars > 0 {
			s.summaryChars = summaryChars
		}
		if excerptChars > 0 {
			s.excerptChars = excerptChars
		}
	}
}

// SynthesisWithLogger sets the logger
func SynthesisWithLogger(l *slog.Logger) SynthesisServiceOption {
	return func(s *SynthesisService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSynthesisService creates a new synthesis service
func NewSynthesisService(opts ...SynthesisServiceOption) *SynthesisService {
	s := &SynthesisService{
		timeout:      DefaultSynthesisTimeout,
		summaryChars: DefaultSummaryChars,
		excerptChars: DefaultExcerptChars,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SynthesisResult holds the validated arguments. Both lists are always non-nil.
type SynthesisResult struct {
	Strengths  []models.Argument
	Weaknesses []models.Argument
}

func emptySynthesis() SynthesisResult {
	return SynthesisResult{Strengths: []models.Argument{}, Weaknesses: []models.Argument{}}
}

// rawArgument is the shape the model is asked to return
type rawArgument struct {
	Argument string   `json:"argument"`
	Sources  []string `json:"sources"`
}

type rawSynthesis struct {
	Strengths  []rawArgument `json:"strengths"`
	Weaknesses []rawArgument `json:"weaknesses"`
}

// Synthesize asks the generator for arguments grounded in candidates and keeps
// only those citing at least one real candidate. Any generator failure yields
// empty lists.
func (s *SynthesisService) Synthesize(ctx context.Context, query string, candidates []models.RetrievalCandidate) SynthesisResult {
	if len(candidates) == 0 {
		return emptySynthesis()
	}
	if s.generator == nil {
		s.logger.Warn("synthesis skipped: no generator configured")
		return emptySynthesis()
	}

	prompt := s.BuildPrompt(query, candidates)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.Complete(genCtx, prompt)
	if err != nil {
		s.logger.Error("argument generation failed", "error", err)
		return emptySynthesis()
	}

	parsed, err := parseSynthesis(raw)
	if err != nil {
		s.logger.Error("unparsable argument payload", "error", err)
		return emptySynthesis()
	}

	refs := referencesByIdentifier(candidates)
	return SynthesisResult{
		Strengths:  s.validate(parsed.Strengths, refs),
		Weaknesses: s.validate(parsed.Weaknesses, refs),
	}
}

func parseSynthesis(raw string) (*rawSynthesis, error) {
	payload, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out rawSynthesis
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}
	return &out, nil
}

// validate drops unknown sources and any argument left without a source
func (s *SynthesisService) validate(args []rawArgument, refs map[string]models.CaseReference) []models.Argument {
	out := make([]models.Argument, 0, len(args))
	for _, a := range args {
		text := strings.TrimSpace(a.Argument)
		if text == "" {
			continue
		}

		seen := make(map[string]bool)
		var valid []models.CaseReference
		for _, src := range a.Sources {
			src = strings.TrimSpace(src)
			if seen[src] {
				continue
			}
			seen[src] = true

			ref, ok := refs[src]
			if !ok {
				s.logger.Debug("discarded unknown citation", "source", src)
				continue
			}
			valid = append(valid, ref)
		}

		if len(valid) == 0 {
			s.logger.Debug("discarded argument without valid sources", "argument", text)
			continue
		}
		out = append(out, models.Argument{Argument: text, CaseReferences: valid})
	}
	return out
}

// referencesByIdentifier builds one reference per case from its closest candidate
func referencesByIdentifier(candidates []models.RetrievalCandidate) map[string]models.CaseReference {
	best := make(map[string]int)
	for i, c := range candidates {
		id := c.Metadata.Identifier
		if id == "" {
			continue
		}
		if j, ok := best[id]; !ok || c.Distance < candidates[j].Distance {
			best[id] = i
		}
	}

	refs := make(map[string]models.CaseReference, len(best))
	for id, i := range best {
		refs[id] = newCaseReference(candidates[i])
	}
	return refs
}

func newCaseReference(c models.RetrievalCandidate) models.CaseReference {
	m := c.Metadata
	ref := models.CaseReference{
		CaseIdentifier: m.Identifier,
		Title:          m.Title,
		Date:           models.ParseDecisionDate(m.DecisionDate),
		MatchingDegree: c.SemanticSimilarity(),
		SourceFile:     m.SourceFile,
	}

	if doc := c.Case; doc != nil {
		ref.CaseNumber = optional(doc.CaseNumber)
		ref.Industries = doc.Industries
		ref.Status = optional(doc.Status)
		ref.PartyNationalities = doc.PartyNationalities
		ref.Institution = optional(doc.Institution)
		ref.RulesOfArbitration = doc.RulesOfArbitration
		ref.ApplicableTreaties = doc.ApplicableTreaties
		for _, d := range doc.Decisions {
			ref.Decisions = append(ref.Decisions, models.DecisionSummary{Title: d.Title, Type: d.Type, Date: d.Date})
		}
		return ref
	}

	ref.CaseNumber = optional(m.CaseNumber)
	ref.Industries = models.SplitList(m.Industries)
	ref.Status = optional(m.Status)
	ref.PartyNationalities = models.SplitList(m.PartyNationalities)
	ref.Institution = optional(m.Institution)
	ref.RulesOfArbitration = models.SplitList(m.RulesOfArbitration)
	ref.ApplicableTreaties = models.SplitList(m.ApplicableTreaties)
	return ref
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// BuildPrompt renders the query and a bounded excerpt of every candidate
func (s *SynthesisService) BuildPrompt(query string, candidates []models.RetrievalCandidate) string {
	var b strings.Builder

	b.WriteString("You are an assistant for international arbitration counsel. ")
	b.WriteString("Using ONLY the case excerpts below, identify the strengths and weaknesses of the user's position.\n\n")
	b.WriteString("USER QUERY:\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nCASE EXCERPTS:\n")

	for i, c := range candidates {
		m := c.Metadata
		fmt.Fprintf(&b, "\n[%d] Source ID: %s\n", i+1, m.Identifier)
		fmt.Fprintf(&b, "Title: %s\n", m.Title)
		if m.Status != "" {
			fmt.Fprintf(&b, "Status: %s\n", m.Status)
		}
		if m.DecisionType != "" {
			fmt.Fprintf(&b, "Decision type: %s\n", m.DecisionType)
		}
		if m.Institution != "" {
			fmt.Fprintf(&b, "Institution: %s\n", m.Institution)
		}
		if c.Case != nil && strings.TrimSpace(c.Case.Summary) != "" {
			fmt.Fprintf(&b, "Summary: %s\n", truncate(c.Case.Summary, s.summaryChars))
		}
		fmt.Fprintf(&b, "Excerpt: %s\n", truncate(c.Text, s.excerptChars))
	}

	b.WriteString(`
Respond with a single JSON object of the form:
{"strengths":[{"argument":"...","sources":["<Source ID>"]}],"weaknesses":[{"argument":"...","sources":["<Source ID>"]}]}
Rules:
- every argument must list at least one Source ID
- use only Source IDs that appear above, copied exactly
- return JSON only, without commentary or code fences
`)
	return b.String()
}

// truncate shortens s to at most limit runes, marking the cut
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
