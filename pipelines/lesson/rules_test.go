package lesson

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRules(t *testing.T) {
	kb := KnowledgeBase{
		"learning_style": {
			"visual":   {"include visuals", "use diagrams"},
			"auditory": {"include audio narration"},
		},
		"language": {
			"spanish": {"embed Spanish translations"},
		},
	}

	tests := []struct {
		name    string
		profile StudentProfile
		want    []string
	}{
		{
			name:    "scalar value",
			profile: StudentProfile{"learning_style": {"visual"}},
			want:    []string{"include visuals", "use diagrams"},
		},
		{
			name:    "list value concatenates hits in order",
			profile: StudentProfile{"learning_style": {"visual", "auditory"}},
			want:    []string{"include visuals", "use diagrams", "include audio narration"},
		},
		{
			name:    "duplicates preserved",
			profile: StudentProfile{"learning_style": {"visual", "visual"}},
			want:    []string{"include visuals", "use diagrams", "include visuals", "use diagrams"},
		},
		{
			name:    "unmatched attribute skipped",
			profile: StudentProfile{"favorite_color": {"blue"}},
			want:    nil,
		},
		{
			name:    "unmatched value skipped",
			profile: StudentProfile{"learning_style": {"kinesthetic"}},
			want:    nil,
		},
		{
			name:    "empty profile",
			profile: StudentProfile{},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractRules(tt.profile, kb)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Soundness and completeness over a multi-attribute profile. Attribute
// iteration order is not fixed, so assert set equality.
func TestExtractRulesMultiAttribute(t *testing.T) {
	kb := KnowledgeBase{
		"learning_style": {"visual": {"include visuals"}},
		"language":       {"spanish": {"embed Spanish translations"}},
	}
	profile := StudentProfile{
		"learning_style": {"visual"},
		"language":       {"spanish"},
		"unknown":        {"x"},
	}

	got := ExtractRules(profile, kb)
	assert.ElementsMatch(t, []string{"include visuals", "embed Spanish translations"}, got)
}

func TestLoadKnowledgeBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	content := `{"learning_style": {"visual": ["include visuals"]}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	kb, err := LoadKnowledgeBase(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"include visuals"}, kb["learning_style"]["visual"])

	_, err = LoadKnowledgeBase(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRulesStage(t *testing.T) {
	kb := KnowledgeBase{"learning_style": {"visual": {"include visuals", "include visuals"}}}

	t.Run("missing profile", func(t *testing.T) {
		deps := testDeps(t)
		deps.KB = kb
		_, err := deps.rulesStage(context.Background(), State{})
		assert.ErrorIs(t, err, ErrMissingInput)
	})

	t.Run("consolidation strips fences and parses", func(t *testing.T) {
		deps := testDeps(t)
		deps.KB = kb
		gen := &fakeGenerator{fn: func(prompt string) (string, error) {
			return "```json\n[\"include visuals\"]\n```", nil
		}}
		deps.Generator = gen

		st, err := deps.rulesStage(context.Background(), State{
			Profile: StudentProfile{"learning_style": {"visual"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"include visuals"}, st.Rules)
		assert.Equal(t, 1, gen.callCount())
	})

	t.Run("non-list response fails with parse error", func(t *testing.T) {
		deps := testDeps(t)
		deps.KB = kb
		deps.Generator = &fakeGenerator{fn: func(string) (string, error) {
			return "not a list", nil
		}}

		_, err := deps.rulesStage(context.Background(), State{
			Profile: StudentProfile{"learning_style": {"visual"}},
		})
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("service error propagates", func(t *testing.T) {
		deps := testDeps(t)
		deps.KB = kb
		deps.Generator = &fakeGenerator{fn: func(string) (string, error) {
			return "", errors.New("upstream timeout")
		}}

		_, err := deps.rulesStage(context.Background(), State{
			Profile: StudentProfile{"learning_style": {"visual"}},
		})
		assert.ErrorIs(t, err, ErrGenerationService)
	})

	t.Run("no matching rules skips the service call", func(t *testing.T) {
		deps := testDeps(t)
		deps.KB = kb
		gen := &fakeGenerator{}
		deps.Generator = gen

		st, err := deps.rulesStage(context.Background(), State{
			Profile: StudentProfile{"favorite_color": {"blue"}},
		})
		require.NoError(t, err)
		assert.NotNil(t, st.Rules)
		assert.Empty(t, st.Rules)
		assert.Equal(t, 0, gen.callCount())
	})
}

func TestConsolidatePolicyPrompt(t *testing.T) {
	deps := testDeps(t)
	deps.ConflictPolicy = "drop"

	var captured string
	deps.Generator = &fakeGenerator{fn: func(prompt string) (string, error) {
		captured = prompt
		return `["a"]`, nil
	}}

	_, err := deps.consolidateRules(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Contains(t, captured, "remove BOTH")
}
