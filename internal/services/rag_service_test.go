package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"knowledge-agent/internal/models"
	"knowledge-agent/internal/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryEmbedder returns a fixed vector for any input.
type queryEmbedder struct {
	vector []float32
	err    error
}

func (q *queryEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if q.err != nil {
		return nil, q.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = q.vector
	}
	return out, nil
}

// vectorStore ranks its stored chunks by real cosine distance, tie-broken by
// chunk id, mirroring the SQL ordering.
type vectorStore struct {
	chunks     []*models.Chunk
	embeddings [][]float32
	lastK      int
	lastModel  string
}

func (v *vectorStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error {
	return nil
}

func (v *vectorStore) TopKBySimilarity(ctx context.Context, queryEmbedding []float32, model string, k int) ([]*models.RankedChunk, error) {
	v.lastK = k
	v.lastModel = model

	ranked := make([]*models.RankedChunk, 0, len(v.chunks))
	for i, c := range v.chunks {
		if c.Model != model {
			continue
		}
		ranked = append(ranked, &models.RankedChunk{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Source:     c.Metadata["source"].(string),
			Title:      c.Metadata["title"].(string),
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Metadata:   c.Metadata,
			Distance:   cosineDistance(queryEmbedding, v.embeddings[i]),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

type fakeChat struct {
	reply    string
	err      error
	called   int
	lastMsgs []openai.Message
}

func (f *fakeChat) ChatCompletion(ctx context.Context, messages []openai.Message) (string, error) {
	f.called++
	f.lastMsgs = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

const testModel = "text-embedding-3-small"

func storeWith(vectors [][]float32) *vectorStore {
	store := &vectorStore{embeddings: vectors}
	for i := range vectors {
		store.chunks = append(store.chunks, &models.Chunk{
			ID:         string(rune('a' + i)),
			DocumentID: "doc-1",
			ChunkIndex: i,
			Content:    "chunk content " + string(rune('0'+i)),
			Model:      testModel,
			Metadata:   models.JSONMap{"source": "https://example.com/a", "title": "Example"},
		})
	}
	return store
}

func TestRetrieve_RanksExactMatchFirst(t *testing.T) {
	v1 := []float32{1, 0, 0}
	v2 := []float32{0, 1, 0}
	v3 := []float32{0, 0, 1}
	store := storeWith([][]float32{v1, v2, v3})

	svc := NewRAGService(&queryEmbedder{vector: v2}, &fakeChat{}, store, testModel)

	results, err := svc.Retrieve(context.Background(), "which chunk matches?", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
}

func TestRetrieve_OrderedByAscendingDistance(t *testing.T) {
	store := storeWith([][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	})
	svc := NewRAGService(&queryEmbedder{vector: []float32{1, 0, 0}}, &fakeChat{}, store, testModel)

	results, err := svc.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
	assert.Equal(t, 0, results[0].ChunkIndex)
}

func TestRetrieve_EmptyStoreReturnsEmpty(t *testing.T) {
	svc := NewRAGService(&queryEmbedder{vector: []float32{1, 0}}, &fakeChat{}, &vectorStore{}, testModel)

	results, err := svc.Retrieve(context.Background(), "anything", 6)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_DefaultsTopK(t *testing.T) {
	store := storeWith([][]float32{{1, 0, 0}})
	svc := NewRAGService(&queryEmbedder{vector: []float32{1, 0, 0}}, &fakeChat{}, store, testModel)

	_, err := svc.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, store.lastK)
}

func TestRetrieve_FiltersByEmbeddingModel(t *testing.T) {
	store := storeWith([][]float32{{1, 0, 0}, {1, 0, 0}})
	store.chunks[1].Model = "some-other-model"
	svc := NewRAGService(&queryEmbedder{vector: []float32{1, 0, 0}}, &fakeChat{}, store, testModel)

	results, err := svc.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, testModel, store.lastModel)
}

func TestRetrieve_PropagatesProviderError(t *testing.T) {
	provErr := &openai.ProviderError{Op: "embeddings", StatusCode: 429, Message: "rate limited"}
	svc := NewRAGService(&queryEmbedder{err: provErr}, &fakeChat{}, &vectorStore{}, testModel)

	_, err := svc.Retrieve(context.Background(), "q", 3)
	require.Error(t, err)
	var pe *openai.ProviderError
	assert.True(t, errors.As(err, &pe))
}

func TestAnswerQuestion_SourcesMapOneToOne(t *testing.T) {
	store := storeWith([][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	})
	chat := &fakeChat{reply: "Grounded answer citing [#1] and [#2]."}
	svc := NewRAGService(&queryEmbedder{vector: []float32{1, 0, 0}}, chat, store, testModel)

	answer, err := svc.AnswerQuestion(context.Background(), "what is this about?", 3)
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer citing [#1] and [#2].", answer.Answer)

	require.Len(t, answer.Sources, 3)
	for i, src := range answer.Sources {
		assert.Equal(t, i+1, src.Ref)
		assert.Equal(t, "https://example.com/a", src.Source)
		assert.Equal(t, "Example", src.Title)
		if i > 0 {
			assert.GreaterOrEqual(t, src.Distance, answer.Sources[i-1].Distance)
		}
	}

	// The prompt carries matching numbered reference tags and the question.
	require.Equal(t, 1, chat.called)
	require.Len(t, chat.lastMsgs, 2)
	assert.Equal(t, "system", chat.lastMsgs[0].Role)
	prompt := chat.lastMsgs[1].Content
	assert.Contains(t, prompt, "[#1]")
	assert.Contains(t, prompt, "[#3]")
	assert.Contains(t, prompt, "https://example.com/a")
	assert.Contains(t, prompt, "what is this about?")
}

func TestAnswerQuestion_EmptyStoreSkipsLLM(t *testing.T) {
	chat := &fakeChat{reply: "should not be used"}
	svc := NewRAGService(&queryEmbedder{vector: []float32{1, 0}}, chat, &vectorStore{}, testModel)

	answer, err := svc.AnswerQuestion(context.Background(), "anything?", 6)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.NotEmpty(t, answer.Answer)
	assert.Zero(t, chat.called)
}

func TestAnswerQuestion_ChatFailurePropagates(t *testing.T) {
	store := storeWith([][]float32{{1, 0, 0}})
	chat := &fakeChat{err: &openai.ProviderError{Op: "chat/completions", StatusCode: 500, Message: "boom"}}
	svc := NewRAGService(&queryEmbedder{vector: []float32{1, 0, 0}}, chat, store, testModel)

	_, err := svc.AnswerQuestion(context.Background(), "q", 1)
	require.Error(t, err)
	var pe *openai.ProviderError
	assert.True(t, errors.As(err, &pe))
}
