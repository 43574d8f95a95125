package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"casebrief-backend/models"
	"casebrief-backend/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addVector(t *testing.T, idx *repository.MemoryIndex, id string, vec []float32, meta models.ChunkMetadata) {
	t.Helper()
	meta.Identifier = id
	require.NoError(t, idx.Add(context.Background(), models.IndexedVector{
		ID:       id,
		Vector:   vec,
		Document: "document " + id,
		Metadata: meta,
	}))
}

func TestRetrieveEmptyIndex(t *testing.T) {
	emb := &hashEmbedder{}
	svc := NewRetrievalService(
		RetrievalWithEmbedder(emb),
		RetrievalWithIndex(repository.NewMemoryIndex()),
	)

	got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "anything", TopK: 5})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, emb.Calls())
}

func TestRetrieveRequiresDependencies(t *testing.T) {
	_, err := NewRetrievalService().Retrieve(context.Background(), RetrieveRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrRetrievalNotConfigured)
}

func TestRetrieveFanOutIsCappedByIndexSize(t *testing.T) {
	mem := repository.NewMemoryIndex()
	for i := 0; i < 30; i++ {
		addVector(t, mem, fmt.Sprintf("c%02d", i), []float32{1, float32(i)}, models.ChunkMetadata{})
	}
	idx := &countingIndex{VectorIndex: mem}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}, fallback: &hashEmbedder{}}
	svc := NewRetrievalService(RetrievalWithEmbedder(emb), RetrievalWithIndex(idx))

	got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: 5})
	require.NoError(t, err)

	assert.Equal(t, []int{20, 30}, idx.asked)
}

func TestRetrieveMonotonicInTopK(t *testing.T) {
	idx := repository.NewMemoryIndex()
	for i := 0; i < 12; i++ {
		addVector(t, idx, fmt.Sprintf("c%02d", i), []float32{1, float32(i) / 4, float32(i%3) / 5}, models.ChunkMetadata{})
	}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0.5, 0}}, fallback: &hashEmbedder{}}
	svc := NewRetrievalService(RetrievalWithEmbedder(emb), RetrievalWithIndex(idx), RetrievalWithFanOut(1))

	previous := []string{}
	for k := 1; k <= 12; k++ {
		got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: k})
		require.NoError(t, err)
		require.Len(t, got, k)

		ids := make([]string, len(got))
		for i, c := range got {
			ids[i] = c.Metadata.Identifier
		}
		assert.Equal(t, previous, ids[:len(previous)], "top_k=%d dropped an earlier result", k)
		previous = ids
	}
}

func rescoringFixture(t *testing.T) (*RetrievalService, *hashEmbedder) {
	t.Helper()
	idx := repository.NewMemoryIndex()
	// a is semantically closer, b matches the parties and year
	addVector(t, idx, "a", []float32{0.9, 0.1}, models.ChunkMetadata{PartyNationalities: "Ruritania, Freedonia", DecisionDate: "2012-03-01"})
	addVector(t, idx, "b", []float32{0.8, 0.2}, models.ChunkMetadata{PartyNationalities: "Ticadia, Kronos", DecisionDate: "2019-06-14"})
	addVector(t, idx, "c", []float32{0.1, 0.9}, models.ChunkMetadata{})

	fallback := &hashEmbedder{}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}, fallback: fallback}
	return NewRetrievalService(RetrievalWithEmbedder(emb), RetrievalWithIndex(idx)), fallback
}

func TestRetrieveWithoutMetadataKeepsSemanticOrder(t *testing.T) {
	svc, fallback := rescoringFixture(t)

	got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Metadata.Identifier)
	assert.Equal(t, "b", got[1].Metadata.Identifier)
	assert.InDelta(t, got[0].SemanticSimilarity(), got[0].Score, 1e-9)
	assert.Zero(t, fallback.Calls())
}

func TestRetrieveMetadataRescoring(t *testing.T) {
	svc, _ := rescoringFixture(t)
	req := RetrieveRequest{Query: "q", TopK: 2, Claimant: "Ticadia", Respondent: "Kronos", CaseYear: "2019"}

	got, err := svc.Retrieve(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Metadata.Identifier)
	assert.Equal(t, "a", got[1].Metadata.Identifier)

	// b's description is identical to the query's, so meta similarity is 1
	assert.InDelta(t, Blend(got[0].SemanticSimilarity(), 1, DefaultWeights), got[0].Score, 1e-6)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRetrieveRescoringIsIdempotent(t *testing.T) {
	svc, _ := rescoringFixture(t)
	req := RetrieveRequest{Query: "q", TopK: 3, Claimant: "Ticadia", CaseYear: "2019"}

	first, err := svc.Retrieve(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Retrieve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieveStableTies(t *testing.T) {
	idx := repository.NewMemoryIndex()
	meta := models.ChunkMetadata{PartyNationalities: "Ticadia, Kronos"}
	for _, id := range []string{"first", "second", "third"} {
		addVector(t, idx, id, []float32{1, 1}, meta)
	}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}, fallback: &hashEmbedder{}}
	svc := NewRetrievalService(RetrievalWithEmbedder(emb), RetrievalWithIndex(idx))

	got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: 3, Claimant: "Ticadia"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Metadata.Identifier)
	assert.Equal(t, "second", got[1].Metadata.Identifier)
	assert.Equal(t, "third", got[2].Metadata.Identifier)
}

func TestRetrieveCandidateMetadataEmbeddingFailure(t *testing.T) {
	idx := repository.NewMemoryIndex()
	addVector(t, idx, "a", []float32{1, 0}, models.ChunkMetadata{PartyNationalities: "Ruritania"})
	fallback := &hashEmbedder{fail: map[string]error{"Claimant: Ruritania.": errors.New("rate limited")}}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}, fallback: fallback}
	svc := NewRetrievalService(RetrievalWithEmbedder(emb), RetrievalWithIndex(idx))

	got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: 1, Claimant: "Ticadia"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, Blend(1, 0, DefaultWeights), got[0].Score, 1e-6)
}

func TestRetrieveAttachesCaseRecords(t *testing.T) {
	idx := repository.NewMemoryIndex()
	addVector(t, idx, "present", []float32{1, 0}, models.ChunkMetadata{SourceFile: "case_1.json"})
	addVector(t, idx, "missing", []float32{0.9, 0.1}, models.ChunkMetadata{SourceFile: "case_404.json"})
	addVector(t, idx, "corrupt", []float32{0.8, 0.2}, models.ChunkMetadata{SourceFile: "case_2.json"})
	addVector(t, idx, "unsourced", []float32{0.7, 0.3}, models.ChunkMetadata{})

	src := &memorySource{files: map[string]string{
		"case_1.json": caseJSON(t, fenoscadiaCase()),
		"case_2.json": "{broken",
	}}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}, fallback: &hashEmbedder{}}
	svc := NewRetrievalService(RetrievalWithEmbedder(emb), RetrievalWithIndex(idx), RetrievalWithCaseSource(src))

	got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: 4})
	require.NoError(t, err)
	require.Len(t, got, 4)

	byID := make(map[string]models.RetrievalCandidate)
	for _, c := range got {
		byID[c.Metadata.Identifier] = c
	}

	require.NotNil(t, byID["present"].Case)
	assert.Equal(t, "fenoscadia-v-kronos", byID["present"].Case.Identifier)
	assert.Empty(t, byID["present"].CaseError)

	assert.Nil(t, byID["missing"].Case)
	assert.Contains(t, byID["missing"].CaseError, "not found")
	assert.Equal(t, "document missing", byID["missing"].Text)

	assert.Nil(t, byID["corrupt"].Case)
	assert.NotEmpty(t, byID["corrupt"].CaseError)

	assert.Nil(t, byID["unsourced"].Case)
	assert.Empty(t, byID["unsourced"].CaseError)
}

func TestRetrieveRepairsText(t *testing.T) {
	idx := repository.NewMemoryIndex()
	require.NoError(t, idx.Add(context.Background(), models.IndexedVector{
		ID:       "x",
		Vector:   []float32{1, 0},
		Document: "Hearing held in BogotÃ¡",
		Metadata: models.ChunkMetadata{Identifier: "x", Title: "SociÃ©tÃ© GÃ©nÃ©rale v. Dominican Republic"},
	}))
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}, fallback: &hashEmbedder{}}
	svc := NewRetrievalService(RetrievalWithEmbedder(emb), RetrievalWithIndex(idx))

	got, err := svc.Retrieve(context.Background(), RetrieveRequest{Query: "q", TopK: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Hearing held in Bogotá", got[0].Text)
	assert.Equal(t, "Société Générale v. Dominican Republic", got[0].Metadata.Title)
}

func TestDescribeCandidate(t *testing.T) {
	fields := metadataFields{claimant: true, respondent: true, year: true}
	m := models.ChunkMetadata{PartyNationalities: "Ticadia, Kronos", DecisionDate: "14 June 2019"}
	assert.Equal(t, "Claimant: Ticadia. Respondent: Kronos. Year: 2019.", describeCandidate(fields, m))

	assert.Equal(t, "Claimant: Ticadia.", describeCandidate(metadataFields{claimant: true}, m))
	assert.Equal(t, "", describeCandidate(fields, models.ChunkMetadata{}))
}
