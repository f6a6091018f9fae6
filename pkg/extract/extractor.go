// Package extract runs structured LLM extraction over fetched pages. A
// page's markdown is sliced into overlapping token windows, each window is
// sent through one chat completion asking for tagged JSON blocks, and the
// provider's reported token usage is accumulated across requests.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"webrag/pkg/config"
	"webrag/pkg/models"
	"webrag/pkg/utils"
)

// DefaultInstruction is the extraction instruction sent with every window.
const DefaultInstruction = "Extract all the content in a clear and precise manner suitable for RAG chatbots."

// responseFormat tells the model the block shape the parser expects.
const responseFormat = `Return the result as a JSON array of blocks. Each block is an object with:
  "tag": a short label naming the section,
  "content": an array of extracted text lines,
  "error": true only when a section could not be extracted.
Return only the JSON array.`

// CompletionModel is the completion surface the extractor consumes.
// *openai.LLM satisfies it.
type CompletionModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Extractor turns one page's markdown into tagged content blocks via
// windowed chat completions
type Extractor struct {
	model       CompletionModel
	cfg         config.LLMConfig
	instruction string
	log         *logrus.Entry
}

// NewExtractor creates an Extractor and prepares the shared tokenizer used
// for window splitting
func NewExtractor(model CompletionModel, cfg config.LLMConfig, log *logrus.Entry) (*Extractor, error) {
	if err := InitTokenizer(""); err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}
	return &Extractor{
		model:       model,
		cfg:         cfg,
		instruction: DefaultInstruction,
		log:         log,
	}, nil
}

// Extract splits the page markdown into token windows and runs one
// completion per window. Any request or parse failure aborts the whole
// extraction; there is no partial result.
func (e *Extractor) Extract(ctx context.Context, page *models.PageRecord) ([]models.ExtractionRecord, *models.UsageStats, error) {
	if strings.TrimSpace(page.Content) == "" {
		return nil, nil, fmt.Errorf("%w: page has no markdown content", utils.ErrExtractionFailed)
	}

	windows, err := SplitTokenWindows(page.Content, e.cfg.ChunkTokenThreshold, e.cfg.OverlapRate)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", utils.ErrExtractionFailed, err)
	}

	pageLog := e.log.WithField("url", page.URL)
	pageLog.Infof("Starting LLM extraction over %d token windows", len(windows))

	usage := &models.UsageStats{}
	var records []models.ExtractionRecord
	for i, window := range windows {
		windowLog := pageLog.WithFields(logrus.Fields{
			"window":  i + 1,
			"windows": len(windows),
		})
		windowLog.Debugf("Requesting extraction (%d tokens)", CountTokens(window))

		resp, genErr := e.model.GenerateContent(ctx,
			[]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, e.buildPrompt(window))},
			llms.WithTemperature(e.cfg.Temperature),
			llms.WithMaxTokens(e.cfg.MaxTokens),
			llms.WithTopP(e.cfg.TopP),
		)
		if genErr != nil {
			return nil, nil, fmt.Errorf("%w: window %d/%d: %w", utils.ErrExtractionFailed, i+1, len(windows), genErr)
		}
		if len(resp.Choices) == 0 {
			return nil, nil, fmt.Errorf("%w: window %d/%d: empty completion response", utils.ErrExtractionFailed, i+1, len(windows))
		}

		choice := resp.Choices[0]
		completion, prompt, total := usageFromGenerationInfo(choice.GenerationInfo)
		usage.Record(completion, prompt, total)

		blocks, parseErr := parseRecords(choice.Content)
		if parseErr != nil {
			return nil, nil, fmt.Errorf("%w: %w", utils.ErrExtractionParse, parseErr)
		}
		records = append(records, blocks...)
	}

	pageLog.Infof("Extraction complete: %d blocks from %d requests (%d total tokens)",
		len(records), usage.Requests(), usage.TotalTokens)
	return records, usage, nil
}

func (e *Extractor) buildPrompt(window string) string {
	var b strings.Builder
	b.WriteString(e.instruction)
	b.WriteString("\n\n")
	b.WriteString(responseFormat)
	b.WriteString("\n\nContent:\n")
	b.WriteString(window)
	return b.String()
}

// fencedJSON matches a fenced code block, optionally labeled json
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseRecords locates the JSON payload inside a completion response and
// decodes it. Models wrap their output unpredictably, so the payload is
// searched tolerantly: a fenced code block first, then the outermost
// bracket pair. A bare object is accepted and wrapped into a single-element
// list.
func parseRecords(raw string) ([]models.ExtractionRecord, error) {
	segment := locateJSON(utils.StripThinkTags(raw))
	if segment == "" {
		return nil, errors.New("no JSON payload found in completion response")
	}

	var records []models.ExtractionRecord
	arrErr := json.Unmarshal([]byte(segment), &records)
	if arrErr == nil {
		return records, nil
	}

	var single models.ExtractionRecord
	if json.Unmarshal([]byte(segment), &single) == nil && (single.Tag != "" || len(single.Content) > 0) {
		return []models.ExtractionRecord{single}, nil
	}
	return nil, arrErr
}

func locateJSON(raw string) string {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	arrStart := strings.Index(raw, "[")
	objStart := strings.Index(raw, "{")
	// a bare object may hold arrays inside, so whichever opens first wins
	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if end := strings.LastIndex(raw, "}"); end > objStart {
			return raw[objStart : end+1]
		}
	}
	if end := strings.LastIndex(raw, "]"); arrStart >= 0 && end > arrStart {
		return raw[arrStart : end+1]
	}
	return strings.TrimSpace(raw)
}

func usageFromGenerationInfo(info map[string]any) (completion, prompt, total int) {
	completion = intFromInfo(info, "CompletionTokens")
	prompt = intFromInfo(info, "PromptTokens")
	total = intFromInfo(info, "TotalTokens")
	if total == 0 {
		total = completion + prompt
	}
	return completion, prompt, total
}

// intFromInfo reads a numeric generation-info value without assuming which
// numeric type the provider library used
func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
