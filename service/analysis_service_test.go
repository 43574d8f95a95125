package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"casebrief-backend/models"
	"casebrief-backend/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	candidates []models.RetrievalCandidate
	err        error
	got        RetrieveRequest
}

func (r *stubRetriever) Retrieve(_ context.Context, req RetrieveRequest) ([]models.RetrievalCandidate, error) {
	r.got = req
	return r.candidates, r.err
}

const supportedArgument = `{"strengths":[{"argument":"The decree was an expropriation.","sources":["fenoscadia-v-kronos"]}],"weaknesses":[]}`

func newTestAnalysis(r Retriever, g Generator, store ResponseStore) *AnalysisService {
	logger, _ := bufferLogger()
	return NewAnalysisService(
		AnalysisWithRetriever(r),
		AnalysisWithSynthesizer(newTestSynthesis(g)),
		AnalysisWithResponseStore(store),
		AnalysisWithTopK(3),
		AnalysisWithLogger(logger),
	)
}

func TestAnalyzeStoresRetrievableResult(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryCaseResponseStore()
	r := &stubRetriever{candidates: synthesisCandidates()}
	svc := newTestAnalysis(r, &scriptedGenerator{response: supportedArgument}, store)

	res, err := svc.Analyze(ctx, AnalyzeRequest{
		UserPrompt: "  Can Kronos rely on environmental grounds?  ",
		Claimant:   "Ticadia",
		CaseYear:   "2019",
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^CASE-[0-9A-F]{8}$`), res.CaseID)
	require.Len(t, res.Strengths, 1)
	assert.NotNil(t, res.Weaknesses)

	assert.Equal(t, "Can Kronos rely on environmental grounds?", r.got.Query)
	assert.Equal(t, 3, r.got.TopK)
	assert.Equal(t, "Ticadia", r.got.Claimant)
	assert.Equal(t, "2019", r.got.CaseYear)

	raw, err := svc.GetStored(ctx, res.CaseID)
	require.NoError(t, err)
	var stored models.AnalysisResult
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, res.CaseID, stored.CaseID)
	assert.Equal(t, "The decree was an expropriation.", stored.Strengths[0].Argument)
}

func TestAnalyzeRejectsInvalidPrompts(t *testing.T) {
	store := repository.NewMemoryCaseResponseStore()
	svc := newTestAnalysis(&stubRetriever{}, &scriptedGenerator{}, store)

	for _, prompt := range []string{"", "   \n\t", strings.Repeat("a", MaxPromptLength+1)} {
		_, err := svc.Analyze(context.Background(), AnalyzeRequest{UserPrompt: prompt})
		assert.ErrorIs(t, err, ErrInvalidPrompt)
	}

	assert.NoError(t, ValidatePrompt(strings.Repeat("é", MaxPromptLength)))
}

func TestAnalyzeRetrievalFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryCaseResponseStore()
	gen := &scriptedGenerator{response: supportedArgument}
	svc := newTestAnalysis(&stubRetriever{err: errors.New("index offline")}, gen, store)

	res, err := svc.Analyze(ctx, AnalyzeRequest{UserPrompt: "query"})
	require.NoError(t, err)
	assert.NotNil(t, res.Strengths)
	assert.Empty(t, res.Strengths)
	assert.Empty(t, res.Weaknesses)
	assert.Empty(t, gen.Prompts())

	raw, err := svc.GetStored(ctx, res.CaseID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"caseId":"`+res.CaseID+`","strengths":[],"weaknesses":[]}`, string(raw))
}

func TestAnalyzeStoreFailure(t *testing.T) {
	svc := newTestAnalysis(&stubRetriever{}, &scriptedGenerator{}, failingStore{})

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{UserPrompt: "query"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAnalyzeRequiresDependencies(t *testing.T) {
	_, err := NewAnalysisService().Analyze(context.Background(), AnalyzeRequest{UserPrompt: "q"})
	assert.ErrorIs(t, err, ErrAnalysisNotConfigured)
}

func TestGetStoredUnknownCase(t *testing.T) {
	svc := newTestAnalysis(&stubRetriever{}, &scriptedGenerator{}, repository.NewMemoryCaseResponseStore())
	_, err := svc.GetStored(context.Background(), "CASE-00000000")
	assert.ErrorIs(t, err, repository.ErrCaseNotFound)
}

func TestNewCaseIDsAreDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewCaseID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
