package lesson

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// supportedLessonFormats are the document extensions the extractor handles.
var supportedLessonFormats = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
}

// ingestStage downloads the lesson document and extracts its plain text.
// No retries: a failed fetch or an unsupported format is fatal for the
// invocation.
func (d Deps) ingestStage(ctx context.Context, st State) (State, error) {
	locator := strings.TrimSpace(st.LessonURL)
	if locator == "" {
		return State{}, fmt.Errorf("%w: lesson URL", ErrMissingInput)
	}

	path, err := d.Fetcher.Fetch(ctx, locator)
	if err != nil {
		return State{}, fmt.Errorf("fetch lesson: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !supportedLessonFormats[ext] {
		return State{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	text, err := d.Extractor.Extract(ctx, path)
	if err != nil {
		return State{}, fmt.Errorf("extract lesson text: %w", err)
	}

	d.Log.Info("lesson ingested", "path", path, "chars", len(text))
	st.LessonPath = path
	st.LessonText = text
	return st, nil
}
