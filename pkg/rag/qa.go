package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"webrag/pkg/config"
	"webrag/pkg/utils"
)

// answerPrompt keeps the model on the retrieved context; slots are context
// then question
var answerPrompt = prompts.NewPromptTemplate(
	"Answer the question based only on the following context:\n{{.context}}\n\nQuestion: {{.question}}\n",
	[]string{"context", "question"},
)

// RetrievalQA answers questions with one grounded completion over the
// documents nearest to the question
type RetrievalQA struct {
	retriever schema.Retriever
	model     llms.Model
	cfg       config.LLMConfig
	log       *logrus.Entry
}

// NewRetrievalQA creates a RetrievalQA querying a built index at its
// configured depth
func NewRetrievalQA(index *VectorIndex, model llms.Model, cfg config.LLMConfig, log *logrus.Entry) *RetrievalQA {
	return &RetrievalQA{
		retriever: vectorstores.ToRetriever(index, index.topK),
		model:     model,
		cfg:       cfg,
		log:       log,
	}
}

// Answer retrieves the nearest documents and asks the model with their
// texts as the only context. The response text comes back verbatim;
// presentation filtering is the caller's concern.
func (qa *RetrievalQA) Answer(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", utils.ErrEmptyQuestion
	}

	docs, err := qa.retriever.GetRelevantDocuments(ctx, question)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	prompt, err := answerPrompt.Format(map[string]any{
		"context":  strings.Join(texts, "\n\n"),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("rendering answer prompt: %w", err)
	}

	qa.log.Debugf("Answering with %d retrieved documents", len(docs))
	answer, err := llms.GenerateFromSinglePrompt(ctx, qa.model, prompt,
		llms.WithTemperature(qa.cfg.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrCompletionFailed, err)
	}
	return answer, nil
}
