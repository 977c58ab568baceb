package lesson

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"lessonweaver/common"
)

// fakeGenerator records prompts and answers through fn.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []string
	fn    func(prompt string) (string, error)
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	if f.fn == nil {
		return "", fmt.Errorf("no fake response configured")
	}
	return f.fn(prompt)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFetcher struct {
	path string
	err  error
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.path, f.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type fakeSynthesizer struct {
	fn func(text string) ([]byte, error)
}

func (f fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if f.fn == nil {
		return []byte("RIFF" + text), nil
	}
	return f.fn(text)
}

type fakeSearcher struct {
	fn func(query string, count int) ([]string, error)
}

func (f fakeSearcher) Search(ctx context.Context, query string, count int) ([]string, error) {
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(query, count)
}

type fakeImageFetcher struct {
	fn func(url string) ([]byte, error)
}

func (f fakeImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.fn == nil {
		return []byte{0xFF, 0xD8, 0xFF}, nil
	}
	return f.fn(url)
}

// testDeps builds a Deps value backed by fakes and per-test temp dirs.
func testDeps(t *testing.T) Deps {
	t.Helper()
	dir := t.TempDir()
	return Deps{
		Log:         common.NewNopLogger(),
		Generator:   &fakeGenerator{},
		Fetcher:     fakeFetcher{path: dir + "/lesson.pdf"},
		Extractor:   fakeExtractor{text: "lesson text"},
		Synthesizer: fakeSynthesizer{},
		Searcher:    fakeSearcher{},
		Images:      fakeImageFetcher{},

		AudioDir:    dir + "/audio",
		ImageDir:    dir + "/images",
		FinalDir:    dir + "/final",
		JSONDir:     dir + "/json",
		MarkdownDir: dir + "/markdown",

		PublicBaseURL:  "http://localhost:8080",
		ConflictPolicy: "restrictive",
	}
}
