package rag

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"webrag/pkg/models"
	"webrag/pkg/utils"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// fakeEmbedder maps chunk texts to fixed vectors. Unknown texts embed to
// nil, which the index rejects.
type fakeEmbedder struct {
	vectors    map[string][]float32
	queryVec   []float32
	override   [][]float32 // when set, EmbedDocuments returns exactly this
	docErr     error
	queryErr   error
	docCalls   int
	queryCalls int
	batchSizes []int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.docCalls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.docErr != nil {
		return nil, f.docErr
	}
	if f.override != nil {
		return f.override, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectors[text]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryVec, nil
}

func chunkOf(text string) models.Chunk {
	return models.Chunk{Text: text}
}

func corpusEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float32{
			"alpha": {3, 0, 0}, // larger magnitude, same direction as the query
			"beta":  {0, 1, 0},
			"gamma": {0, 0, 1},
			"delta": {0.9, 0.1, 0},
		},
		queryVec: []float32{1, 0, 0},
	}
}

func texts(docs []schema.Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.PageContent
	}
	return out
}

func TestVectorIndex_BuildEmptyChunks(t *testing.T) {
	index := NewVectorIndex(corpusEmbedder(), 4, testLogger())

	err := index.Build(context.Background(), nil)
	if !errors.Is(err, utils.ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
}

func TestVectorIndex_BuildEmbedsOneBatch(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())

	err := index.Build(context.Background(), []models.Chunk{chunkOf("alpha"), chunkOf("beta"), chunkOf("gamma")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.docCalls != 1 || embedder.batchSizes[0] != 3 {
		t.Errorf("embedding calls = %d with batches %v, want one batch of 3", embedder.docCalls, embedder.batchSizes)
	}
	if index.Len() != 3 {
		t.Errorf("Len() = %d, want 3", index.Len())
	}
}

func TestVectorIndex_BuildFailureKeepsPreviousContents(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())

	if err := index.Build(context.Background(), []models.Chunk{chunkOf("alpha"), chunkOf("beta")}); err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	embedder.docErr = errors.New("embedding server down")
	err := index.Build(context.Background(), []models.Chunk{chunkOf("alpha"), chunkOf("beta"), chunkOf("gamma")})
	if !errors.Is(err, utils.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
	if index.Len() != 2 {
		t.Errorf("Len() = %d, want previous contents (2) preserved", index.Len())
	}
}

func TestVectorIndex_BuildCountMismatch(t *testing.T) {
	embedder := corpusEmbedder()
	embedder.override = [][]float32{{1, 0, 0}}
	index := NewVectorIndex(embedder, 4, testLogger())

	err := index.Build(context.Background(), []models.Chunk{chunkOf("alpha"), chunkOf("beta")})
	if !errors.Is(err, utils.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
}

func TestVectorIndex_BuildMissingEmbedding(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())

	err := index.Build(context.Background(), []models.Chunk{chunkOf("alpha"), chunkOf("unknown text")})
	if !errors.Is(err, utils.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
}

func TestVectorIndex_BuildKeepsProvenanceMetadata(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())
	chunk := models.Chunk{
		Text:         "alpha",
		HeaderPath:   []models.HeaderRef{{Level: 1, Title: "Intro"}, {Level: 2, Title: "Axes"}},
		SourceOffset: 42,
	}
	if err := index.Build(context.Background(), []models.Chunk{chunk}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	docs, err := index.SimilaritySearch(context.Background(), "alpha?", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(docs[0].Metadata["header_path"], chunk.HeaderPath) {
		t.Errorf("header_path metadata = %v, want %v", docs[0].Metadata["header_path"], chunk.HeaderPath)
	}
	if docs[0].Metadata["source_offset"] != 42 {
		t.Errorf("source_offset metadata = %v, want 42", docs[0].Metadata["source_offset"])
	}
}

func TestVectorIndex_AddDocumentsAppends(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())
	if err := index.Build(context.Background(), []models.Chunk{chunkOf("beta"), chunkOf("gamma")}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ids, err := index.AddDocuments(context.Background(), []schema.Document{
		{PageContent: "alpha"},
		{PageContent: "delta"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Errorf("ids = %v, want 2 distinct non-empty ids", ids)
	}
	if index.Len() != 4 {
		t.Errorf("Len() = %d, want 4", index.Len())
	}

	docs, err := index.SimilaritySearch(context.Background(), "alpha?", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs[0].PageContent != "alpha" {
		t.Errorf("nearest = %q, want the appended document", docs[0].PageContent)
	}
}

func TestVectorIndex_AddDocumentsEmpty(t *testing.T) {
	index := NewVectorIndex(corpusEmbedder(), 4, testLogger())

	_, err := index.AddDocuments(context.Background(), nil)
	if !errors.Is(err, utils.ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
}

func TestVectorIndex_SimilaritySearchEmptyIndex(t *testing.T) {
	index := NewVectorIndex(corpusEmbedder(), 4, testLogger())

	_, err := index.SimilaritySearch(context.Background(), "anything", 4)
	if !errors.Is(err, utils.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestVectorIndex_SimilaritySearchRanksByCosine(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())
	chunks := []models.Chunk{chunkOf("beta"), chunkOf("delta"), chunkOf("gamma"), chunkOf("alpha")}
	if err := index.Build(context.Background(), chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	got, err := index.SimilaritySearch(context.Background(), "which way is alpha?", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// alpha scores 1.0 despite its larger magnitude, delta close behind;
	// beta and gamma tie at zero and keep insertion order
	want := []string{"alpha", "delta", "beta", "gamma"}
	if !reflect.DeepEqual(texts(got), want) {
		t.Fatalf("ranking = %v, want %v", texts(got), want)
	}
	if got[0].Score != 1 {
		t.Errorf("top score = %v, want 1", got[0].Score)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("score at rank %d (%v) exceeds rank %d (%v)", i, got[i].Score, i-1, got[i-1].Score)
		}
	}
}

func TestVectorIndex_SimilaritySearchHonorsCount(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())
	chunks := []models.Chunk{chunkOf("alpha"), chunkOf("beta"), chunkOf("gamma"), chunkOf("delta")}
	if err := index.Build(context.Background(), chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	got, err := index.SimilaritySearch(context.Background(), "alpha?", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"alpha", "delta"}; !reflect.DeepEqual(texts(got), want) {
		t.Errorf("top 2 = %v, want %v", texts(got), want)
	}
}

func TestVectorIndex_SimilaritySearchFewerEntriesThanRequested(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())
	if err := index.Build(context.Background(), []models.Chunk{chunkOf("alpha"), chunkOf("beta")}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	got, err := index.SimilaritySearch(context.Background(), "alpha?", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("retrieved %d documents, want all 2", len(got))
	}
}

func TestVectorIndex_SimilaritySearchQueryError(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())
	if err := index.Build(context.Background(), []models.Chunk{chunkOf("alpha")}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	embedder.queryErr = errors.New("embedding server down")
	_, err := index.SimilaritySearch(context.Background(), "alpha?", 4)
	if !errors.Is(err, utils.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
}

func TestVectorIndex_RetrieverRoundTrip(t *testing.T) {
	embedder := corpusEmbedder()
	index := NewVectorIndex(embedder, 4, testLogger())
	chunks := []models.Chunk{chunkOf("alpha"), chunkOf("beta"), chunkOf("gamma"), chunkOf("delta")}
	if err := index.Build(context.Background(), chunks); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	retriever := vectorstores.ToRetriever(index, 2)
	got, err := retriever.GetRelevantDocuments(context.Background(), "alpha?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"alpha", "delta"}; !reflect.DeepEqual(texts(got), want) {
		t.Errorf("retrieved = %v, want %v", texts(got), want)
	}
}
