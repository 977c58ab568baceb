package lesson

import "context"

// External collaborators the pipeline depends on. Concrete implementations
// live in the common package; tests substitute fakes.

// TextGenerator is an opaque text-completion service.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// LessonFetcher downloads a lesson document and returns its local path.
type LessonFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// TextExtractor converts a downloaded document to plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// SpeechSynthesizer converts one text chunk to audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ImageSearcher returns candidate image URLs for a query.
type ImageSearcher interface {
	Search(ctx context.Context, query string, count int) ([]string, error)
}

// ImageFetcher retrieves a single image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
