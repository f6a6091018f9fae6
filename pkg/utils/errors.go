package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed     = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status

	ErrRobotsDisallowed   = errors.New("disallowed by robots.txt")
	ErrParsing            = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON, XML)
	ErrDatabase           = errors.New("database error")   // Wraps badger errors
	ErrRequestCreation    = errors.New("failed to create HTTP request")
	ErrResponseBodyRead   = errors.New("failed to read response body")
	ErrMarkdownConversion = errors.New("failed to convert HTML to markdown")
	ErrConfigValidation   = errors.New("configuration validation error")

	// Collaborator failures translated at the orchestration boundary
	ErrFetchFailed      = errors.New("page fetch failed")     // Wraps fetcher errors per URL
	ErrExtractionParse  = errors.New("failed to parse extracted content as JSON")
	ErrExtractionFailed = errors.New("LLM extraction failed") // Wraps provider errors
	ErrEmbeddingFailed  = errors.New("embedding request failed")
	ErrCompletionFailed = errors.New("completion request failed")

	// Zero-result conditions, surfaced explicitly rather than as empty success
	ErrNoChunks   = errors.New("No splits created from markdown content")
	ErrEmptyInput = errors.New("No markdown content provided")
	ErrEmptyIndex = errors.New("vector index is empty")

	// User input and session state; the texts are surfaced verbatim
	ErrInvalidURL    = errors.New("Please enter a valid URL.")
	ErrMissingAPIKey = errors.New("Groq API key is required for LLM extraction.")
	ErrAPIKeyNotSet  = errors.New("Groq API key is not set. Please set it first.")
	ErrNoPages       = errors.New("No pages found for the given URL.")
	ErrNoCrawl       = errors.New("Please crawl a website first to load documents.")
	ErrEmptyQuestion = errors.New("question is empty")
)

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrRetryFailed):
		underlying := errors.Unwrap(err)
		if underlying != nil {
			if errors.Is(underlying, ErrServerHTTPError) {
				return "RetryFailed_HTTPServer"
			}
			if errors.Is(underlying, ErrClientHTTPError) {
				return "RetryFailed_HTTPClient"
			}

			// Check for common network error substrings if wrapped error isn't a known sentinel
			errMsg := underlying.Error()
			if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "Timeout") || strings.Contains(errMsg, "deadline exceeded") {
				return "RetryFailed_NetworkTimeout"
			}
			if strings.Contains(errMsg, "connection refused") {
				return "RetryFailed_ConnectionRefused"
			}
			if strings.Contains(errMsg, "no such host") {
				return "RetryFailed_DNSLookup"
			}
			var netErr net.Error
			if errors.As(underlying, &netErr) {
				if netErr.Timeout() {
					return "RetryFailed_NetworkTimeout"
				}
			}
			return "RetryFailed_NetworkOther" // Catch-all for other network errors after retry
		}
		return "RetryFailed_Unknown" // Retry failed, but couldn't identify underlying cause
	case errors.Is(err, ErrClientHTTPError):
		// Could try to extract exact 4xx code if needed, but category is often enough
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401 ") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx" // Generic 4xx
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		if strings.Contains(errMsg, "XML") {
			return "Content_ParsingXML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrMarkdownConversion):
		return "Content_Markdown"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrFetchFailed):
		return "Fetch_Failed"
	case errors.Is(err, ErrExtractionParse):
		return "Extraction_Parse"
	case errors.Is(err, ErrExtractionFailed):
		return "Extraction_Failed"
	case errors.Is(err, ErrEmbeddingFailed):
		return "Embedding_Failed"
	case errors.Is(err, ErrCompletionFailed):
		return "Completion_Failed"
	case errors.Is(err, ErrEmptyInput):
		return "Result_EmptyInput"
	case errors.Is(err, ErrNoChunks):
		return "Result_NoChunks"
	case errors.Is(err, ErrEmptyIndex):
		return "Result_EmptyIndex"
	case errors.Is(err, ErrNoPages):
		return "Result_NoPages"
	case errors.Is(err, ErrInvalidURL):
		return "Input_InvalidURL"
	case errors.Is(err, ErrMissingAPIKey):
		return "Input_MissingAPIKey"
	case errors.Is(err, ErrAPIKeyNotSet):
		return "Input_APIKeyNotSet"
	case errors.Is(err, ErrEmptyQuestion):
		return "Input_EmptyQuestion"
	case errors.Is(err, ErrNoCrawl):
		return "Session_NoCrawl"
	}

	// --- Fallback checks for common underlying error types/strings ---

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	// Network errors (if not wrapped by custom sentinels)
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Network_Timeout"
		}
	}
	errMsg := err.Error()
	// Use lowercase for reliable substring checks
	lowerErrMsg := strings.ToLower(errMsg)
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}
	if strings.Contains(lowerErrMsg, "broken pipe") {
		return "Network_BrokenPipe"
	}

	return "Unknown"
}
