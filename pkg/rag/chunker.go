// Package rag prepares crawled markdown for retrieval and answers
// questions over it: header-aware chunking, an embedded vector index, and
// grounded completion.
package rag

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"webrag/pkg/config"
	"webrag/pkg/models"
	"webrag/pkg/utils"
)

// maxHeaderLevel is the deepest ATX heading level that starts a new segment.
// Deeper headings stay inside their parent's segment.
const maxHeaderLevel = 3

// DocumentChunker splits combined markdown into retrieval-size chunks.
// Stage one cuts the text at headings and tracks each segment's header
// ancestry; stage two windows every segment into fixed-size rune spans with
// overlap between consecutive windows.
type DocumentChunker struct {
	chunkSize int // runes per window
	overlap   int // runes shared between consecutive windows
}

// NewDocumentChunker creates a chunker from the RAG settings. Out-of-range
// values are clamped so a window always advances.
func NewDocumentChunker(cfg config.RAGConfig) *DocumentChunker {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1500
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &DocumentChunker{chunkSize: size, overlap: overlap}
}

// Chunk splits markdown into chunks. Whitespace-only input is a user error;
// non-empty input that still yields nothing is reported rather than
// returned as an empty success.
func (c *DocumentChunker) Chunk(markdown string) ([]models.Chunk, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, utils.ErrEmptyInput
	}

	var chunks []models.Chunk
	for _, seg := range splitByHeaders(markdown) {
		chunks = c.windowSegment(seg, chunks)
	}
	if len(chunks) == 0 {
		return nil, utils.ErrNoChunks
	}
	return chunks, nil
}

// segment is one span of the input between heading boundaries
type segment struct {
	runeStart int
	text      string
	path      []models.HeaderRef
}

// windowSegment appends the segment's windows to chunks. Windows that are
// pure whitespace are dropped.
func (c *DocumentChunker) windowSegment(seg segment, chunks []models.Chunk) []models.Chunk {
	runes := []rune(seg.text)
	stride := c.chunkSize - c.overlap
	for start := 0; start < len(runes); start += stride {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, models.Chunk{
				Text:         window,
				HeaderPath:   append([]models.HeaderRef(nil), seg.path...),
				SourceOffset: seg.runeStart + start,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// headerMark records where a heading's line begins in the source
type headerMark struct {
	byteStart int
	level     int
	title     string
}

// splitByHeaders cuts markdown at level 1-3 headings. Each heading starts a
// new segment whose header path follows ancestry rules: a heading replaces
// every previous heading of the same or deeper level, so a new top-level
// heading resets the path entirely. The heading line itself stays in its
// segment's text. Headings inside fenced code blocks are not boundaries,
// which is why the scan walks the parsed AST instead of raw lines.
func splitByHeaders(markdown string) []segment {
	source := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var marks []headerMark
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level > maxHeaderLevel || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := heading.Lines().At(0)
		lineStart := bytes.LastIndexByte(source[:seg.Start], '\n') + 1
		marks = append(marks, headerMark{
			byteStart: lineStart,
			level:     heading.Level,
			title:     headingTitle(heading, source),
		})
		return ast.WalkContinue, nil
	})

	if len(marks) == 0 {
		return []segment{{runeStart: 0, text: markdown}}
	}

	var segments []segment
	if marks[0].byteStart > 0 {
		segments = append(segments, segment{runeStart: 0, text: markdown[:marks[0].byteStart]})
	}

	var stack []models.HeaderRef
	runeOffset := utf8.RuneCount(source[:marks[0].byteStart])
	for i, mark := range marks {
		for len(stack) > 0 && stack[len(stack)-1].Level >= mark.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, models.HeaderRef{Level: mark.level, Title: mark.title})

		end := len(markdown)
		if i+1 < len(marks) {
			end = marks[i+1].byteStart
		}
		segments = append(segments, segment{
			runeStart: runeOffset,
			text:      markdown[mark.byteStart:end],
			path:      append([]models.HeaderRef(nil), stack...),
		})
		runeOffset += utf8.RuneCount(source[mark.byteStart:end])
	}
	return segments
}

// headingTitle collects the heading's text content, including text nested
// inside inline markup
func headingTitle(heading *ast.Heading, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(heading, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if textNode, ok := n.(*ast.Text); ok {
			buf.Write(textNode.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
