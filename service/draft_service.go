package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casebrief-backend/llm"
	"casebrief-backend/models"
)

// DraftDateLayout formats the date stamped on a draft, e.g. "05 March 2025"
const DraftDateLayout = "02 January 2006"

var ErrDraftNotConfigured = errors.New("draft service requires a response store")

// DraftService builds a legal submission from a stored analysis
type DraftService struct {
	store     ResponseStore
	generator Generator
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// DraftServiceOption is a functional option for DraftService
type DraftServiceOption func(*DraftService)

// DraftWithResponseStore sets where analyses are loaded from
func DraftWithResponseStore(store ResponseStore) DraftServiceOption {
	return func(s *DraftService) {
		s.store = store
	}
}

// DraftWithGenerator sets the generative model
func DraftWithGenerator(g Generator) DraftServiceOption {
	return func(s *DraftService) {
		s.generator = g
	}
}

// DraftWithTimeout bounds the generator call
func DraftWithTimeout(d time.Duration) DraftServiceOption {
	return func(s *DraftService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// DraftWithLogger sets the logger
func DraftWithLogger(l *slog.Logger) DraftServiceOption {
	return func(s *DraftService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewDraftService creates a new draft service
func NewDraftService(opts ...DraftServiceOption) *DraftService {
	s := &DraftService{
		timeout: DefaultSynthesisTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type draftPayload struct {
	Claimants      string `json:"claimants"`
	Respondents    string `json:"respondents"`
	Title          string `json:"title"`
	IntroStatement string `json:"intro_statement"`
	Body           string `json:"body"`
}

// Generate drafts a submission for caseID. An unknown id returns an error
// wrapping repository.ErrCaseNotFound; generator failures yield a fallback draft.
func (s *DraftService) Generate(ctx context.Context, caseID string) (*models.Draft, error) {
	if s.store == nil {
		return nil, ErrDraftNotConfigured
	}

	analysis, err := s.store.Get(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %s: %w", caseID, err)
	}

	draft := &models.Draft{
		CaseID:      caseID,
		Claimants:   fmt.Sprintf("Claimants (Case: %s)", caseID),
		Respondents: "Respondents",
		Title:       "Legal Submission",
		Date:        s.now().Format(DraftDateLayout),
	}

	if s.generator == nil {
		return s.fallback(draft, errors.New("no generator configured")), nil
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.Complete(genCtx, buildDraftPrompt(analysis))
	if err != nil {
		return s.fallback(draft, err), nil
	}

	payload, err := llm.ExtractJSON(raw)
	if err != nil {
		return s.fallback(draft, err), nil
	}
	var content draftPayload
	if err := json.Unmarshal([]byte(payload), &content); err != nil {
		return s.fallback(draft, err), nil
	}

	if v := strings.TrimSpace(content.Claimants); v != "" {
		draft.Claimants = v
	}
	if v := strings.TrimSpace(content.Respondents); v != "" {
		draft.Respondents = v
	}
	if v := strings.TrimSpace(content.Title); v != "" {
		draft.Title = v
	}
	draft.IntroStatement = strings.TrimSpace(content.IntroStatement)
	draft.Body = strings.TrimSpace(content.Body)

	return draft, nil
}

func (s *DraftService) fallback(draft *models.Draft, cause error) *models.Draft {
	s.logger.Error("draft generation failed", "case_id", draft.CaseID, "error", cause)
	draft.IntroStatement = "An error occurred while generating the document."
	draft.Body = "The document could not be generated. Please try again later."
	return draft
}

func buildDraftPrompt(analysis *models.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("You are a legal expert tasked with drafting a formal legal document. ")
	b.WriteString("Using the provided arguments and case references, write a well-structured submission ")
	b.WriteString("that presents the case in a professional and compelling manner.\n\n")

	b.WriteString("Strengths/Arguments:\n")
	writeArguments(&b, analysis.Strengths)
	b.WriteString("\nPotential Weaknesses/Counterarguments:\n")
	writeArguments(&b, analysis.Weaknesses)

	b.WriteString(`
Respond with a single JSON object with these string fields:
{"claimants":"...","respondents":"...","title":"...","intro_statement":"...","body":"..."}
The body must present the arguments in a logical order, cite the supporting cases,
address the counterarguments and use formal legal language.
`)
	return b.String()
}

func writeArguments(b *strings.Builder, args []models.Argument) {
	if len(args) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for i, a := range args {
		refs := make([]string, 0, len(a.CaseReferences))
		for _, r := range a.CaseReferences {
			refs = append(refs, fmt.Sprintf("%s (%s)", r.Title, r.CaseIdentifier))
		}
		fmt.Fprintf(b, "%d. Argument: %s\n", i+1, a.Argument)
		fmt.Fprintf(b, "   Supporting Cases: %s\n", strings.Join(refs, ", "))
	}
}
