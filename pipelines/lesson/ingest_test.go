package lesson

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestStage(t *testing.T) {
	t.Run("missing lesson URL", func(t *testing.T) {
		deps := testDeps(t)
		_, err := deps.ingestStage(context.Background(), State{})
		assert.ErrorIs(t, err, ErrMissingInput)
	})

	t.Run("unsupported format", func(t *testing.T) {
		deps := testDeps(t)
		deps.Fetcher = fakeFetcher{path: "/tmp/lesson.csv"}
		_, err := deps.ingestStage(context.Background(), State{LessonURL: "http://example.com/lesson.csv"})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("fetch failure is fatal", func(t *testing.T) {
		deps := testDeps(t)
		deps.Fetcher = fakeFetcher{err: errors.New("connection refused")}
		_, err := deps.ingestStage(context.Background(), State{LessonURL: "http://example.com/lesson.pdf"})
		assert.Error(t, err)
	})

	t.Run("extraction failure is fatal", func(t *testing.T) {
		deps := testDeps(t)
		deps.Extractor = fakeExtractor{err: errors.New("corrupt file")}
		_, err := deps.ingestStage(context.Background(), State{LessonURL: "http://example.com/lesson.pdf"})
		assert.Error(t, err)
	})

	t.Run("success fills path and text", func(t *testing.T) {
		deps := testDeps(t)
		deps.Fetcher = fakeFetcher{path: "/tmp/abc.pdf"}
		deps.Extractor = fakeExtractor{text: "photosynthesis basics"}

		st, err := deps.ingestStage(context.Background(), State{LessonURL: "http://example.com/lesson.pdf"})
		require.NoError(t, err)
		assert.Equal(t, "/tmp/abc.pdf", st.LessonPath)
		assert.Equal(t, "photosynthesis basics", st.LessonText)
	})
}
