package rag

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"webrag/pkg/models"
	"webrag/pkg/utils"
)

// Embedder is the embedding surface the index consumes.
// *embeddings.EmbedderImpl satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Metadata keys carrying chunk provenance on each stored document
const (
	metaHeaderPath   = "header_path"
	metaSourceOffset = "source_offset"
)

type indexEntry struct {
	id     string
	doc    schema.Document
	vector []float32
	norm   float64
}

// VectorIndex is an in-memory cosine nearest-neighbor store over chunk
// documents. It satisfies vectorstores.VectorStore, so a retriever built
// with vectorstores.ToRetriever queries it directly. The index is not safe
// for concurrent use; the owning session serializes rebuilds and queries.
type VectorIndex struct {
	embedder Embedder
	topK     int
	log      *logrus.Entry
	entries  []indexEntry
}

// NewVectorIndex creates an empty index retrieving topK documents per query
func NewVectorIndex(embedder Embedder, topK int, log *logrus.Entry) *VectorIndex {
	if topK <= 0 {
		topK = 4
	}
	return &VectorIndex{
		embedder: embedder,
		topK:     topK,
		log:      log,
	}
}

// chunkDocument wraps a chunk as a document, keeping its provenance in the
// metadata
func chunkDocument(chunk models.Chunk) schema.Document {
	return schema.Document{
		PageContent: chunk.Text,
		Metadata: map[string]any{
			metaHeaderPath:   chunk.HeaderPath,
			metaSourceOffset: chunk.SourceOffset,
		},
	}
}

// Build embeds every chunk and replaces the index contents. The embeddings
// arrive as one batch, so any embedding failure fails the whole build and
// leaves the previous contents in place.
func (v *VectorIndex) Build(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return utils.ErrNoChunks
	}

	docs := make([]schema.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chunkDocument(chunk)
	}
	entries, err := v.embedEntries(ctx, docs)
	if err != nil {
		return err
	}

	v.entries = entries
	v.log.Infof("Built vector index with %d chunks", len(entries))
	return nil
}

// AddDocuments embeds docs in one batch and appends them to the index,
// returning the generated entry IDs. Search options are not supported and
// are ignored.
func (v *VectorIndex) AddDocuments(ctx context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, utils.ErrNoChunks
	}

	entries, err := v.embedEntries(ctx, docs)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.id
	}
	v.entries = append(v.entries, entries...)
	return ids, nil
}

func (v *VectorIndex) embedEntries(ctx context.Context, docs []schema.Document) ([]indexEntry, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	vectors, err := v.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", utils.ErrEmbeddingFailed, len(vectors), len(docs))
	}

	entries := make([]indexEntry, 0, len(docs))
	for i, vector := range vectors {
		if len(vector) == 0 {
			return nil, fmt.Errorf("%w: empty embedding for document %d", utils.ErrEmbeddingFailed, i)
		}
		entries = append(entries, indexEntry{
			id:     uuid.NewString(),
			doc:    docs[i],
			vector: vector,
			norm:   vectorNorm(vector),
		})
	}
	return entries, nil
}

// SimilaritySearch returns the numDocuments entries nearest to the query by
// cosine similarity, best first, with each document's Score set to its
// similarity. Ties keep insertion order.
func (v *VectorIndex) SimilaritySearch(ctx context.Context, query string, numDocuments int, _ ...vectorstores.Option) ([]schema.Document, error) {
	if len(v.entries) == 0 {
		return nil, utils.ErrEmptyIndex
	}

	queryVector, err := v.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrEmbeddingFailed, err)
	}
	queryNorm := vectorNorm(queryVector)

	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(v.entries))
	for i, entry := range v.entries {
		scores[i] = scored{index: i, score: cosine(queryVector, queryNorm, entry.vector, entry.norm)}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	k := numDocuments
	if k > len(scores) {
		k = len(scores)
	}
	if k < 0 {
		k = 0
	}
	docs := make([]schema.Document, k)
	for i := 0; i < k; i++ {
		doc := v.entries[scores[i].index].doc
		doc.Score = float32(scores[i].score)
		docs[i] = doc
	}
	return docs, nil
}

// Len returns the number of indexed documents
func (v *VectorIndex) Len() int {
	return len(v.entries)
}

func vectorNorm(vector []float32) float64 {
	var sum float64
	for _, x := range vector {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine computes cosine similarity from precomputed norms. Mismatched
// dimensions score over the shared prefix; zero vectors score zero.
func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
