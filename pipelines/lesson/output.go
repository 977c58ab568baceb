package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	audioMarkerRe = regexp.MustCompile(`\[AUDIO:([^\]]+)\]`)
	imageMarkerRe = regexp.MustCompile(`\[IMAGE:([^\]]+)\]`)

	audioLineRe    = regexp.MustCompile(`^\[AUDIO:([^\]]+)\]$`)
	imageLineRe    = regexp.MustCompile(`^\[IMAGE:([^\]]+)\]$`)
	numberedLineRe = regexp.MustCompile(`^\d+\.\s`)
)

// Block is one element of the JSON rendering: an ordered, typed view of the
// same lines the text and Markdown renderings are built from.
type Block struct {
	Type    string `json:"type"`
	Src     string `json:"src,omitempty"`
	Content string `json:"content,omitempty"`
}

// basenameSet builds the valid-asset allow-list for one media kind.
func basenameSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[filepath.Base(p)] = true
	}
	return set
}

// renderText replaces resolved markers with human-readable bracketed
// annotations. Only markers bound to a provided asset are decorated; all
// other text passes through unchanged, line for line.
func renderText(text string, audioSet, imageSet map[string]bool) string {
	text = imageMarkerRe.ReplaceAllStringFunc(text, func(match string) string {
		name := imageMarkerRe.FindStringSubmatch(match)[1]
		if !imageSet[name] {
			return match
		}
		return "\n🔍 [Insert Image: " + name + "]\n"
	})
	text = audioMarkerRe.ReplaceAllStringFunc(text, func(match string) string {
		name := audioMarkerRe.FindStringSubmatch(match)[1]
		if !audioSet[name] {
			return match
		}
		return "\n🔊 [Insert Audio: " + name + "]\n"
	})
	return text
}

// renderMarkdown promotes structural lines to headings and embeds valid
// media references. A marker whose basename is not in the allow-list becomes
// an inert comment, never a broken link.
func renderMarkdown(text string, audioSet, imageSet map[string]bool, baseURL string) string {
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			sb.WriteString("\n")
		case audioLineRe.MatchString(trimmed):
			name := audioLineRe.FindStringSubmatch(trimmed)[1]
			if audioSet[name] {
				fmt.Fprintf(&sb, "<audio controls src=%q></audio>\n", baseURL+"/audio/"+name)
			} else {
				fmt.Fprintf(&sb, "<!-- invalid media reference: %s -->\n", name)
			}
		case imageLineRe.MatchString(trimmed):
			name := imageLineRe.FindStringSubmatch(trimmed)[1]
			if imageSet[name] {
				fmt.Fprintf(&sb, "![Visual](%s)\n", baseURL+"/images/"+name)
			} else {
				fmt.Fprintf(&sb, "<!-- invalid media reference: %s -->\n", name)
			}
		case strings.HasPrefix(trimmed, "Title:"):
			fmt.Fprintf(&sb, "# %s\n", strings.TrimSpace(strings.TrimPrefix(trimmed, "Title:")))
		case strings.Contains(trimmed, "Instructions"):
			fmt.Fprintf(&sb, "## %s\n", trimmed)
		case numberedLineRe.MatchString(trimmed):
			fmt.Fprintf(&sb, "### %s\n", trimmed)
		case strings.HasSuffix(trimmed, ":"):
			fmt.Fprintf(&sb, "**%s**\n", trimmed)
		default:
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderBlocks segments the same lines into ordered typed blocks. Invalid
// media references are dropped here; the Markdown rendering comments them
// out instead, but both agree on which references are valid.
func renderBlocks(text string, audioSet, imageSet map[string]bool, baseURL string) []Block {
	blocks := []Block{}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case audioLineRe.MatchString(trimmed):
			name := audioLineRe.FindStringSubmatch(trimmed)[1]
			if audioSet[name] {
				blocks = append(blocks, Block{Type: "audio", Src: baseURL + "/audio/" + name})
			}
		case imageLineRe.MatchString(trimmed):
			name := imageLineRe.FindStringSubmatch(trimmed)[1]
			if imageSet[name] {
				blocks = append(blocks, Block{Type: "image", Src: baseURL + "/images/" + name})
			}
		default:
			blocks = append(blocks, Block{Type: "text", Content: trimmed})
		}
	}
	return blocks
}

// emitStage serializes the final lesson into three representations: plain
// text, a block-structured JSON document, and Markdown with media embeds.
func (d Deps) emitStage(ctx context.Context, st State) (State, error) {
	if strings.TrimSpace(st.AdaptedText) == "" {
		return State{}, fmt.Errorf("%w: adapted lesson text", ErrMissingInput)
	}

	for _, dir := range []string{d.FinalDir, d.JSONDir, d.MarkdownDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return State{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	audioSet := basenameSet(st.AudioPaths)
	imageSet := basenameSet(st.ImagePaths)

	id := uuid.New().String()

	textPath := filepath.Join(d.FinalDir, "final_lesson_"+id+".txt")
	if err := os.WriteFile(textPath, []byte(renderText(st.AdaptedText, audioSet, imageSet)), 0644); err != nil {
		return State{}, fmt.Errorf("write text output: %w", err)
	}

	mdPath := filepath.Join(d.MarkdownDir, "final_lesson_"+id+".md")
	md := renderMarkdown(st.AdaptedText, audioSet, imageSet, d.PublicBaseURL)
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		return State{}, fmt.Errorf("write markdown output: %w", err)
	}

	jsonPath := filepath.Join(d.JSONDir, "final_lesson_"+id+".json")
	blocks := renderBlocks(st.AdaptedText, audioSet, imageSet, d.PublicBaseURL)
	data, err := json.MarshalIndent(map[string][]Block{"blocks": blocks}, "", "  ")
	if err != nil {
		return State{}, fmt.Errorf("marshal json output: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return State{}, fmt.Errorf("write json output: %w", err)
	}

	d.Log.Info("final outputs written", "text", textPath, "markdown", mdPath, "json", jsonPath)
	st.FinalTextPath = textPath
	st.FinalMarkdownPath = mdPath
	st.FinalJSONPath = jsonPath
	return st, nil
}
