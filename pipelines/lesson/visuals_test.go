package lesson

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveImagePlaceholders(t *testing.T) {
	t.Run("intent placeholders consumed in document order", func(t *testing.T) {
		text := "Intro\n[Insert Image: a cell]\nMiddle\n[Insert Image: a leaf]\nEnd"
		got := resolveImagePlaceholders(text, []string{"/img/first.jpg", "/img/second.jpg"})
		assert.Equal(t, "Intro\n[IMAGE:first.jpg]\nMiddle\n[IMAGE:second.jpg]\nEnd", got)
	})

	t.Run("leftover assets appended once", func(t *testing.T) {
		got := resolveImagePlaceholders("No placeholders here.", []string{"/img/extra.jpg"})
		assert.Equal(t, "No placeholders here.\n\n[IMAGE:extra.jpg]", got)
	})

	t.Run("append is idempotent per asset", func(t *testing.T) {
		text := "Body\n\n[IMAGE:extra.jpg]"
		got := resolveImagePlaceholders(text, []string{"/img/extra.jpg"})
		assert.Equal(t, 1, strings.Count(got, "[IMAGE:extra.jpg]"))
	})

	t.Run("leftover intent placeholders stay verbatim", func(t *testing.T) {
		text := "[Insert Image: a cell]\n[Insert Image: a leaf]"
		got := resolveImagePlaceholders(text, []string{"/img/only.jpg"})
		assert.Equal(t, "[IMAGE:only.jpg]\n[Insert Image: a leaf]", got)
	})

	t.Run("no assets leaves text untouched", func(t *testing.T) {
		text := "[Insert Image: a cell]"
		assert.Equal(t, text, resolveImagePlaceholders(text, nil))
	})
}

func TestEnrichStage(t *testing.T) {
	visualRules := []string{"include visuals"}

	searchOne := fakeSearcher{fn: func(query string, count int) ([]string, error) {
		return []string{"http://images.example.com/" + strings.ReplaceAll(query, " ", "_")}, nil
	}}

	t.Run("no visual rule is an exact no-op", func(t *testing.T) {
		deps := testDeps(t)
		st, err := deps.enrichStage(context.Background(), State{
			Rules:       []string{"keep text simple"},
			AdaptedText: "Body",
		})
		require.NoError(t, err)
		assert.NotNil(t, st.ImagePaths)
		assert.Empty(t, st.ImagePaths)
		assert.Equal(t, "Body", st.AdaptedText)
	})

	t.Run("negated visual rule is a no-op", func(t *testing.T) {
		deps := testDeps(t)
		st, err := deps.enrichStage(context.Background(), State{
			Rules:       []string{"don't include visuals"},
			AdaptedText: "Body",
		})
		require.NoError(t, err)
		assert.Empty(t, st.ImagePaths)
	})

	t.Run("replaces intent placeholder with downloaded asset", func(t *testing.T) {
		deps := testDeps(t)
		deps.Generator = &fakeGenerator{fn: func(string) (string, error) {
			return `["plant cell diagram"]`, nil
		}}
		deps.Searcher = searchOne

		st, err := deps.enrichStage(context.Background(), State{
			Rules:       visualRules,
			AdaptedText: "Look at this:\n[Insert Image: a plant cell]\nDone.",
		})
		require.NoError(t, err)
		require.Len(t, st.ImagePaths, 1)
		marker := "[IMAGE:" + filepath.Base(st.ImagePaths[0]) + "]"
		assert.Contains(t, st.AdaptedText, marker)
		assert.NotContains(t, st.AdaptedText, "[Insert Image:")
	})

	t.Run("unparseable topic response degrades to no-op", func(t *testing.T) {
		deps := testDeps(t)
		deps.Generator = &fakeGenerator{fn: func(string) (string, error) {
			return "I think diagrams would be nice.", nil
		}}

		st, err := deps.enrichStage(context.Background(), State{
			Rules:       visualRules,
			AdaptedText: "Body",
		})
		require.NoError(t, err)
		assert.Empty(t, st.ImagePaths)
		assert.Equal(t, "Body", st.AdaptedText)
	})

	t.Run("generation service error is fatal", func(t *testing.T) {
		deps := testDeps(t)
		deps.Generator = &fakeGenerator{fn: func(string) (string, error) {
			return "", errors.New("upstream down")
		}}

		_, err := deps.enrichStage(context.Background(), State{
			Rules:       visualRules,
			AdaptedText: "Body",
		})
		assert.ErrorIs(t, err, ErrGenerationService)
	})

	t.Run("failed query is skipped, others proceed", func(t *testing.T) {
		deps := testDeps(t)
		deps.Generator = &fakeGenerator{fn: func(string) (string, error) {
			return `["bad query", "good query"]`, nil
		}}
		deps.Searcher = fakeSearcher{fn: func(query string, count int) ([]string, error) {
			if query == "bad query" {
				return nil, errors.New("quota exceeded")
			}
			return []string{"http://images.example.com/good"}, nil
		}}

		st, err := deps.enrichStage(context.Background(), State{
			Rules:       visualRules,
			AdaptedText: "Body",
		})
		require.NoError(t, err)
		assert.Len(t, st.ImagePaths, 1)
	})

	t.Run("query cap respected", func(t *testing.T) {
		deps := testDeps(t)
		deps.MaxImageQueries = 2
		deps.Generator = &fakeGenerator{fn: func(string) (string, error) {
			return `["a", "b", "c", "d"]`, nil
		}}
		deps.Searcher = searchOne

		st, err := deps.enrichStage(context.Background(), State{
			Rules:       visualRules,
			AdaptedText: "Body",
		})
		require.NoError(t, err)
		assert.Len(t, st.ImagePaths, 2)
	})
}
