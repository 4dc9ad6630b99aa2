package services

import (
	"context"
	"fmt"
	"strings"

	"knowledge-agent/internal/middleware"
	"knowledge-agent/internal/models"
	"knowledge-agent/internal/openai"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultTopK is used when the caller doesn't specify how many chunks to
// retrieve.
const DefaultTopK = 6

const systemInstruction = "You are a knowledge-base assistant. Answer the question using ONLY the supplied context. " +
	"If the context does not contain enough information, say that you cannot answer from the knowledge base. " +
	"Cite the context references you used inline, e.g. [#1] or [#3]."

// SourceRef maps a citation tag in the answer back to the chunk it refers
// to. References are 1-based and ordered exactly as the chunks were given to
// the model.
type SourceRef struct {
	Ref        int     `json:"ref"`
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
}

// Answer is a grounded reply plus the references its citations resolve
// against.
type Answer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// RAGService retrieves stored chunks by similarity and synthesizes grounded
// answers from them.
type RAGService struct {
	embedder   Embedder
	chat       ChatClient
	chunkRepo  ChunkRepository
	embedModel string
}

func NewRAGService(embedder Embedder, chat ChatClient, chunkRepo ChunkRepository, embedModel string) *RAGService {
	return &RAGService{
		embedder:   embedder,
		chat:       chat,
		chunkRepo:  chunkRepo,
		embedModel: embedModel,
	}
}

// Retrieve embeds the question and returns the topK most similar stored
// chunks, ascending by distance. An empty store yields an empty slice, not
// an error.
func (s *RAGService) Retrieve(ctx context.Context, question string, topK int) ([]*models.RankedChunk, error) {
	ctx, span := middleware.StartSpan(ctx, "RAG.Retrieve",
		attribute.Int("top_k", topK),
	)
	defer span.End()

	if topK < 1 {
		topK = DefaultTopK
	}

	vectors, err := s.embedder.CreateEmbeddings(ctx, []string{question})
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := s.chunkRepo.TopKBySimilarity(ctx, vectors[0], s.embedModel, topK)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	return results, nil
}

// AnswerQuestion retrieves context for the question and asks the chat model
// for a cited answer. The returned sources map 1:1 and in order onto the
// [#n] tags in the context block, so the caller can resolve citations.
func (s *RAGService) AnswerQuestion(ctx context.Context, question string, topK int) (*Answer, error) {
	ctx, span := middleware.StartSpan(ctx, "RAG.AnswerQuestion",
		attribute.Int("top_k", topK),
	)
	defer span.End()

	results, err := s.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Answer{
			Answer:  "The knowledge base has no content to answer this question.",
			Sources: []SourceRef{},
		}, nil
	}

	var ctxBlock strings.Builder
	sources := make([]SourceRef, len(results))
	for i, r := range results {
		fmt.Fprintf(&ctxBlock, "[#%d] (%s)\n%s\n\n", i+1, r.Source, r.Content)
		sources[i] = SourceRef{
			Ref:        i + 1,
			Source:     r.Source,
			Title:      r.Title,
			ChunkIndex: r.ChunkIndex,
			Distance:   r.Distance,
		}
	}

	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s\n\nAnswer:", ctxBlock.String(), question)

	answer, err := s.chat.ChatCompletion(ctx, []openai.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}

	middleware.AddSpanEvent(ctx, "answer_synthesized",
		attribute.Int("context_chunks", len(results)),
		attribute.Int("answer_length", len(answer)),
	)

	return &Answer{Answer: answer, Sources: sources}, nil
}
