package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetTokenizer() {
	codecMu.Lock()
	activeCodec = nil
	codecMu.Unlock()
}

func TestInitTokenizer(t *testing.T) {
	resetTokenizer()

	err := InitTokenizer("cl100k_base")
	require.NoError(t, err)
	assert.Positive(t, CountTokens("Hello, world!"))
}

func TestInitTokenizer_DefaultEncoding(t *testing.T) {
	resetTokenizer()

	err := InitTokenizer("")
	require.NoError(t, err)
	assert.Positive(t, CountTokens("token windows"))
}

func TestCountTokens_Uninitialized(t *testing.T) {
	resetTokenizer()

	assert.Equal(t, -1, CountTokens("Hello, world!"))
}

func TestCountTokens_Initialized(t *testing.T) {
	resetTokenizer()
	require.NoError(t, InitTokenizer("cl100k_base"))

	count := CountTokens("Hello, world!")
	assert.Positive(t, count)
	// "Hello, world!" should be about 3-4 tokens
	assert.LessOrEqual(t, count, 10)
}

func TestSplitTokenWindows_Uninitialized(t *testing.T) {
	resetTokenizer()

	_, err := SplitTokenWindows("some text", 64, 0.2)
	assert.Error(t, err)
}

func TestSplitTokenWindows_InvalidWindowSize(t *testing.T) {
	resetTokenizer()
	require.NoError(t, InitTokenizer(""))

	_, err := SplitTokenWindows("some text", 0, 0.2)
	assert.Error(t, err)
}

func TestSplitTokenWindows_ShortTextSingleWindow(t *testing.T) {
	resetTokenizer()
	require.NoError(t, InitTokenizer(""))

	text := "A short paragraph that fits comfortably in one window."
	windows, err := SplitTokenWindows(text, 128, 0.2)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, text, windows[0])
}

func TestSplitTokenWindows_LongTextOverlaps(t *testing.T) {
	resetTokenizer()
	require.NoError(t, InitTokenizer(""))

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 40)
	windows, err := SplitTokenWindows(text, 64, 0.25)
	require.NoError(t, err)
	require.Greater(t, len(windows), 1)

	totalWindowTokens := 0
	for _, w := range windows {
		count := CountTokens(w)
		assert.Positive(t, count)
		assert.LessOrEqual(t, count, 64)
		totalWindowTokens += count
		// every window is a contiguous slice of the original text
		assert.Contains(t, text, w)
	}

	assert.True(t, strings.HasPrefix(text, windows[0]), "first window should start the text")
	assert.True(t, strings.HasSuffix(text, windows[len(windows)-1]), "last window should end the text")
	// overlap means the windows together hold more tokens than the text
	assert.Greater(t, totalWindowTokens, CountTokens(text))
}

func TestSplitTokenWindows_ZeroOverlap(t *testing.T) {
	resetTokenizer()
	require.NoError(t, InitTokenizer(""))

	text := strings.Repeat("alpha beta gamma delta ", 30)
	windows, err := SplitTokenWindows(text, 32, 0)
	require.NoError(t, err)
	require.Greater(t, len(windows), 1)

	// without overlap the windows reassemble the text exactly
	assert.Equal(t, text, strings.Join(windows, ""))
}
