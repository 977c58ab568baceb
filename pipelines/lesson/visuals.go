package lesson

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"lessonweaver/common"
)

const visualTopicsPrompt = `You are an assistant that helps make lesson plans more visual and engaging.

Lesson:
%s

Rules:
%s

Extract a list of 3-5 visual elements that should be added to this lesson. Return them as a JSON list of short search-query strings.

Visual Suggestions:
`

var intentImageRe = regexp.MustCompile(`\[Insert Image:[^\]]*\]`)

// suggestVisualTopics asks the generation service for image search queries.
// A service failure is fatal for the stage; an unparseable response only
// degrades enrichment to a no-op for this run.
func (d Deps) suggestVisualTopics(ctx context.Context, text string, rules []string) ([]string, error) {
	var listing strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&listing, "- %s\n", r)
	}
	prompt := fmt.Sprintf(visualTopicsPrompt, text, listing.String())

	ctx, cancel := context.WithTimeout(ctx, d.genTimeout())
	defer cancel()

	raw, err := d.Generator.Complete(ctx, prompt, 0.5)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest visual topics: %v", ErrGenerationService, err)
	}

	queries, err := common.ParseStringList(raw)
	if err != nil {
		d.Log.Warn("visual topic response unparseable, skipping enrichment", "error", err)
		return nil, nil
	}
	if len(queries) > d.maxImageQueries() {
		queries = queries[:d.maxImageQueries()]
	}
	return queries, nil
}

// fetchImages searches and downloads one candidate image per query. Failures
// are per-item: a dead query or an image that will not download is logged
// and skipped.
func (d Deps) fetchImages(ctx context.Context, queries []string) []string {
	var paths []string
	for _, query := range queries {
		urls, err := d.Searcher.Search(ctx, query, 1)
		if err != nil {
			d.Log.Warn("image search failed", "query", query,
				"error", fmt.Errorf("%w: %v", ErrAssetFetch, err))
			continue
		}
		for _, u := range urls {
			data, err := d.Images.Fetch(ctx, u)
			if err != nil {
				d.Log.Warn("image download failed", "url", u,
					"error", fmt.Errorf("%w: %v", ErrAssetFetch, err))
				continue
			}
			path := filepath.Join(d.ImageDir, "image_"+uuid.New().String()+".jpg")
			if err := os.WriteFile(path, data, 0644); err != nil {
				d.Log.Warn("image write failed", "path", path, "error", err)
				continue
			}
			paths = append(paths, path)
		}
	}
	return paths
}

// resolveImagePlaceholders binds downloaded assets to the text. Intent
// placeholders are replaced one-for-one in document order; assets left over
// once the placeholders run out are appended as resolved markers, unless the
// marker is already present (running enrichment twice must not duplicate
// markers). Intent placeholders left over once the assets run out stay
// verbatim.
func resolveImagePlaceholders(text string, assetPaths []string) string {
	available := append([]string(nil), assetPaths...)

	text = intentImageRe.ReplaceAllStringFunc(text, func(match string) string {
		if len(available) == 0 {
			return match
		}
		asset := available[0]
		available = available[1:]
		return "[IMAGE:" + filepath.Base(asset) + "]"
	})

	for _, asset := range available {
		marker := "[IMAGE:" + filepath.Base(asset) + "]"
		if strings.Contains(text, marker) {
			continue
		}
		text += "\n\n" + marker
	}
	return text
}

// enrichStage adds illustrative images to the adapted lesson. Content-gated
// like narration: no visual rule, or nothing to work on, means an exact
// no-op apart from setting ImagePaths to an empty list.
func (d Deps) enrichStage(ctx context.Context, st State) (State, error) {
	if len(st.Rules) == 0 || strings.TrimSpace(st.AdaptedText) == "" ||
		!mentionsFeature(st.Rules, "visual") {
		d.Log.Info("visual enrichment skipped", "reason", "no visual rule or empty text")
		st.ImagePaths = []string{}
		return st, nil
	}

	if err := os.MkdirAll(d.ImageDir, 0755); err != nil {
		return State{}, fmt.Errorf("create image dir: %w", err)
	}

	queries, err := d.suggestVisualTopics(ctx, st.AdaptedText, st.Rules)
	if err != nil {
		return State{}, err
	}
	if len(queries) == 0 {
		st.ImagePaths = []string{}
		return st, nil
	}

	paths := d.fetchImages(ctx, queries)
	st.AdaptedText = resolveImagePlaceholders(st.AdaptedText, paths)
	st.ImagePaths = paths

	d.Log.Info("visual enrichment done", "queries", len(queries), "images", len(paths))
	return st, nil
}
