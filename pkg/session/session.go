// Package session owns the user-facing lifecycle: crawl a site into a
// corpus, prepare the chat pipeline over it, answer questions against it.
// A Session is caller-owned; every handle (crawl outcome, vector index,
// chat model) lives and dies with it.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"webrag/pkg/config"
	"webrag/pkg/crawler"
	"webrag/pkg/models"
	"webrag/pkg/rag"
	"webrag/pkg/utils"
)

// NotReadyMessage is the soft answer Ask gives before PrepareChat has run
const NotReadyMessage = "Please load documents first."

// ReadyMessage confirms a successful PrepareChat
const ReadyMessage = "Chat system is ready! You can now start interacting with the content."

// Crawler runs one crawl end to end. The orchestrator implements it.
type Crawler interface {
	Crawl(ctx context.Context, baseURL string, deepCrawl bool) *models.CrawlResult
	CrawlLLM(ctx context.Context, baseURL string) (models.CrawlOutcome, error)
}

// ChatModelFactory builds a chat model bound to the chosen model name.
// An empty choice means the configured default.
type ChatModelFactory func(modelChoice string) (llms.Model, error)

// Session holds one crawl corpus and the chat state built over it.
// Rebuilds and queries are serialized through a single mutex; a new
// StartCrawl discards the previous chat state.
type Session struct {
	id       string
	crawler  Crawler
	embedder rag.Embedder
	newModel ChatModelFactory
	cfg      *config.AppConfig
	log      *logrus.Entry

	mu           sync.Mutex
	outcome      *models.CrawlOutcome
	combinedMD   string
	combinedHTML string
	stats        *models.CrawlStats
	qa           *rag.RetrievalQA
}

// New creates an empty session
func New(crawl Crawler, embedder rag.Embedder, newModel ChatModelFactory, cfg *config.AppConfig, logger *logrus.Entry) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		crawler:  crawl,
		embedder: embedder,
		newModel: newModel,
		cfg:      cfg,
		log:      logger.WithField("session_id", id),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// StartCrawl validates the request, runs the crawl for the chosen mode and
// stores the outcome, the combined corpus and the crawl statistics.
// Validation failures have no side effects; a successful crawl replaces
// the previous corpus and discards any prepared chat state.
func (s *Session) StartCrawl(ctx context.Context, rawURL string, mode models.CrawlMode) (models.CrawlOutcome, error) {
	if !utils.IsValidHTTPURL(rawURL) {
		return models.CrawlOutcome{}, utils.ErrInvalidURL
	}
	if !mode.IsValid() {
		return models.CrawlOutcome{}, fmt.Errorf("unknown crawl mode %q", mode)
	}
	if mode == models.ModeLLM && s.cfg.LLM.ResolveAPIKey() == "" {
		return models.CrawlOutcome{}, utils.ErrMissingAPIKey
	}

	url := strings.TrimSpace(rawURL)
	s.log.WithFields(logrus.Fields{
		"url":  url,
		"mode": mode.String(),
	}).Info("Starting crawl")

	start := time.Now()
	var outcome models.CrawlOutcome
	if mode == models.ModeLLM {
		var err error
		outcome, err = s.crawler.CrawlLLM(ctx, url)
		if err != nil {
			return models.CrawlOutcome{}, err
		}
	} else {
		result := s.crawler.Crawl(ctx, url, mode.DeepCrawl())
		if result.TotalPages == 0 {
			return models.CrawlOutcome{}, utils.ErrNoPages
		}
		outcome = models.PageOutcome(result)
	}
	duration := time.Since(start)

	combinedMD, combinedHTML := buildCorpus(outcome)
	stats := crawler.BuildStats(outcome, duration)

	s.mu.Lock()
	s.outcome = &outcome
	s.combinedMD = combinedMD
	s.combinedHTML = combinedHTML
	s.stats = &stats
	s.qa = nil
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"kind":     outcome.Kind.String(),
		"duration": duration.Round(time.Millisecond).String(),
	}).Info("Crawl stored in session")
	return outcome, nil
}

// PrepareChat chunks the stored corpus, builds the vector index and binds
// the chat model. Callable again to switch models or rebuild; requires a
// prior crawl. Returns the ready message on success.
func (s *Session) PrepareChat(ctx context.Context, modelChoice string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome == nil {
		return "", utils.ErrNoCrawl
	}

	model, err := s.newModel(modelChoice)
	if err != nil {
		return "", err
	}

	chunks, err := rag.NewDocumentChunker(s.cfg.RAG).Chunk(s.combinedMD)
	if err != nil {
		return "", err
	}

	index := rag.NewVectorIndex(s.embedder, s.cfg.RAG.TopK, s.log)
	if err := index.Build(ctx, chunks); err != nil {
		return "", err
	}
	s.qa = rag.NewRetrievalQA(index, model, s.cfg.LLM, s.log)

	chosen := modelChoice
	if chosen == "" {
		chosen = s.cfg.LLM.Model
	}
	s.log.WithFields(logrus.Fields{
		"chunks": len(chunks),
		"model":  chosen,
	}).Info("Chat pipeline ready")
	return ReadyMessage, nil
}

// Ask answers a question over the prepared corpus. Before PrepareChat it
// returns the not-ready message as a normal answer rather than an error.
// Reasoning traces are stripped from the response before it is returned.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.qa == nil {
		return NotReadyMessage, nil
	}

	answer, err := s.qa.Answer(ctx, question)
	if err != nil {
		return "", err
	}
	return utils.StripThinkTags(answer), nil
}

// Ready reports whether the chat pipeline has been prepared
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qa != nil
}

// Stats returns the latest crawl's statistics, or nil before any crawl
func (s *Session) Stats() *models.CrawlStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// CombinedMarkdown returns the stored markdown corpus
func (s *Session) CombinedMarkdown() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combinedMD
}

// CombinedHTML returns the stored HTML corpus
func (s *Session) CombinedHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combinedHTML
}

// buildCorpus derives the two corpus renderings from a crawl outcome. In
// extraction mode the markdown comes from the tagged blocks and the HTML
// is the source page's raw markup.
func buildCorpus(outcome models.CrawlOutcome) (markdown, html string) {
	if outcome.IsPages() {
		return crawler.CombineMarkdown(outcome.Pages.Pages), crawler.CombineHTML(outcome.Pages.Pages)
	}
	markdown = crawler.CombineExtractions(outcome.Extractions)
	if outcome.SourcePage != nil {
		html = outcome.SourcePage.HTML
	}
	return markdown, html
}
