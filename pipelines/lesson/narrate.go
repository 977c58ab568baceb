package lesson

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// negationTokens mark a rule as excluding a feature rather than requesting
// it ("no audio", "don't include visuals").
var negationTokens = []string{"no ", "not ", "don't", "do not", "without", "avoid", "skip"}

// mentionsFeature reports whether any rule requests the given feature.
// A rule that mentions the keyword but carries a negation counts as an
// exclusion, not a request.
func mentionsFeature(rules []string, keyword string) bool {
	for _, rule := range rules {
		lower := strings.ToLower(rule)
		if !strings.Contains(lower, keyword) {
			continue
		}
		negated := false
		for _, tok := range negationTokens {
			if strings.Contains(lower, tok) {
				negated = true
				break
			}
		}
		if !negated {
			return true
		}
	}
	return false
}

// splitForNarration partitions text into at most maxChunks pieces of roughly
// equal word count. Boundaries fall between words, not sentences, so a chunk
// may end mid-sentence; that is an accepted approximation. Every chunk is an
// exact substring of the input, which the marker splice below relies on.
func splitForNarration(text string, maxChunks int) []string {
	type span struct{ start, end int }
	var words []span

	inWord := false
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				words = append(words, span{start, i})
				inWord = false
			}
		} else if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		words = append(words, span{start, len(text)})
	}

	if len(words) == 0 {
		return nil
	}

	perChunk := (len(words) + maxChunks - 1) / maxChunks
	var chunks []string
	for i := 0; i < len(words); i += perChunk {
		last := i + perChunk
		if last > len(words) {
			last = len(words)
		}
		chunks = append(chunks, text[words[i].start:words[last-1].end])
	}
	return chunks
}

// narrateStage synthesizes narration audio for the adapted lesson and
// splices resolved audio markers into the text. It is content-gated: without
// an audio rule it is an exact no-op apart from setting AudioPaths to an
// empty list.
//
// A single chunk's synthesis failure is logged and skipped; the stage still
// succeeds with the chunks that worked.
func (d Deps) narrateStage(ctx context.Context, st State) (State, error) {
	if !mentionsFeature(st.Rules, "audio") || strings.TrimSpace(st.AdaptedText) == "" {
		d.Log.Info("narration skipped", "reason", "no audio rule or empty text")
		st.AudioPaths = []string{}
		return st, nil
	}

	if err := os.MkdirAll(d.AudioDir, 0755); err != nil {
		return State{}, fmt.Errorf("create audio dir: %w", err)
	}

	chunks := splitForNarration(st.AdaptedText, d.maxAudioChunks())

	type synthesized struct {
		path  string
		chunk string
	}
	var results []synthesized

	for i, chunk := range chunks {
		data, err := d.Synthesizer.Synthesize(ctx, chunk)
		if err != nil {
			d.Log.Warn("audio chunk skipped", "chunk", i,
				"error", fmt.Errorf("%w: %v", ErrAssetFetch, err))
			continue
		}
		path := filepath.Join(d.AudioDir, "audio_"+uuid.New().String()+".wav")
		if err := os.WriteFile(path, data, 0644); err != nil {
			d.Log.Warn("audio chunk skipped", "chunk", i, "error", err)
			continue
		}
		results = append(results, synthesized{path: path, chunk: chunk})
	}

	// Splice markers in a single left-to-right scan. The cursor only moves
	// forward, so when identical chunk text recurs, each asset binds to the
	// first occurrence at or after the previous insertion and never to an
	// earlier one. Each marker goes on a line of its own, which the emitter's
	// line-level renderings depend on.
	text := st.AdaptedText
	cursor := 0
	paths := make([]string, 0, len(results))

	for _, r := range results {
		paths = append(paths, r.path)
		marker := "[AUDIO:" + filepath.Base(r.path) + "]"

		idx := strings.Index(text[cursor:], r.chunk)
		if idx < 0 {
			text += "\n\n" + marker
			cursor = len(text)
			continue
		}
		insertAt := cursor + idx + len(r.chunk)
		after := insertAt
		for after < len(text) && unicode.IsSpace(rune(text[after])) {
			after++
		}
		if after >= len(text) {
			text = text[:insertAt] + "\n\n" + marker
			cursor = len(text)
			continue
		}
		inserted := "\n\n" + marker + "\n\n"
		text = text[:insertAt] + inserted + text[after:]
		cursor = insertAt + len(inserted)
	}

	d.Log.Info("narration synthesized", "chunks", len(chunks), "audio_files", len(paths))
	st.AdaptedText = text
	st.AudioPaths = paths
	return st, nil
}
