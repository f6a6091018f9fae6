package extract

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecMu     sync.RWMutex
	activeCodec tokenizer.Codec
)

// InitTokenizer prepares the shared token codec used to slice page markdown
// into extraction windows. Supported encodings: "cl100k_base" (the default),
// "o200k_base", "p50k_base", "p50k_edit", "r50k_base"; unknown names fall
// back to cl100k_base.
func InitTokenizer(encoding string) error {
	codecMu.Lock()
	defer codecMu.Unlock()

	var enc tokenizer.Encoding
	switch encoding {
	case "", "cl100k_base":
		enc = tokenizer.Cl100kBase
	case "o200k_base":
		enc = tokenizer.O200kBase
	case "p50k_base":
		enc = tokenizer.P50kBase
	case "p50k_edit":
		enc = tokenizer.P50kEdit
	case "r50k_base":
		enc = tokenizer.R50kBase
	default:
		enc = tokenizer.Cl100kBase
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return err
	}
	activeCodec = codec
	return nil
}

// CountTokens returns the token count for the given text.
// Returns -1 if the tokenizer is not initialized or encoding fails,
// so callers can distinguish "not available" from a real zero count.
func CountTokens(text string) int {
	codecMu.RLock()
	defer codecMu.RUnlock()

	if activeCodec == nil {
		return -1
	}
	ids, _, err := activeCodec.Encode(text)
	if err != nil {
		return -1
	}
	return len(ids)
}

// SplitTokenWindows splits text into consecutive windows of at most
// windowSize tokens, with overlapRate of each window repeated at the start
// of the next so no extraction loses context at a boundary. Text at or
// under the window size comes back unchanged as a single window.
func SplitTokenWindows(text string, windowSize int, overlapRate float64) ([]string, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()

	if activeCodec == nil {
		return nil, errors.New("tokenizer is not initialized")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}

	ids, _, err := activeCodec.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("failed to encode text: %w", err)
	}
	if len(ids) <= windowSize {
		return []string{text}, nil
	}

	overlap := int(float64(windowSize) * overlapRate)
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= windowSize {
		overlap = windowSize - 1
	}
	stride := windowSize - overlap

	var windows []string
	for start := 0; start < len(ids); start += stride {
		end := start + windowSize
		if end > len(ids) {
			end = len(ids)
		}
		window, decodeErr := activeCodec.Decode(ids[start:end])
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode token window: %w", decodeErr)
		}
		windows = append(windows, window)
		if end == len(ids) {
			break
		}
	}
	return windows, nil
}
