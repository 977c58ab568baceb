package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"lessonweaver/common"
)

// LoadKnowledgeBase reads the static attribute -> value -> rules table.
func LoadKnowledgeBase(path string) (KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", path, err)
	}
	var kb KnowledgeBase
	if err := json.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("parse knowledge base %s: %w", path, err)
	}
	return kb, nil
}

// ExtractRules collects every rule the knowledge base associates with the
// profile's attribute values. Encounter order and duplicates are preserved;
// unmatched attributes or values are silently skipped. This is a best-effort
// filter, not a validating one.
func ExtractRules(profile StudentProfile, kb KnowledgeBase) []string {
	var extracted []string
	for attr, values := range profile {
		perValue, ok := kb[attr]
		if !ok {
			continue
		}
		for _, v := range values {
			extracted = append(extracted, perValue[v]...)
		}
	}
	return extracted
}

const consolidatePromptRestrictive = `You are a rule optimization assistant for lesson planning.
Here is a list of adaptation rules extracted based on a student's profile:

%s

Your task:
- Remove duplicate or nearly identical rules.
- If there is a direct conflict (e.g. 'include visuals' and 'don't include visuals'), keep the more restrictive/explicit one (e.g. 'don't include visuals').
- Ensure the final list contains only meaningful, non-conflicting rules.
- Return only a valid JSON list of strings.

Optimized Rule List:
`

const consolidatePromptDrop = `You are a rule optimization assistant for lesson planning.
Here is a list of adaptation rules extracted based on a student's profile:

%s

Your task:
- Remove duplicate or nearly identical rules.
- If two rules directly conflict (e.g. 'include visuals' and 'don't include visuals'), remove BOTH of them.
- Ensure the final list contains only meaningful, non-conflicting rules.
- Return only a valid JSON list of strings.

Optimized Rule List:
`

// consolidateRules asks the generation service to deduplicate and
// conflict-resolve the raw rule list. The result must parse as a flat list
// of strings; any other shape fails the stage.
func (d Deps) consolidateRules(ctx context.Context, rules []string) ([]string, error) {
	tmpl := consolidatePromptRestrictive
	if strings.EqualFold(d.ConflictPolicy, "drop") {
		tmpl = consolidatePromptDrop
	}

	var listing strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&listing, "- %s\n", r)
	}
	prompt := fmt.Sprintf(tmpl, listing.String())

	ctx, cancel := context.WithTimeout(ctx, d.genTimeout())
	defer cancel()

	raw, err := d.Generator.Complete(ctx, prompt, 0.2)
	if err != nil {
		return nil, fmt.Errorf("%w: consolidate rules: %v", ErrGenerationService, err)
	}

	cleaned, err := common.ParseStringList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return cleaned, nil
}

// rulesStage derives the consolidated rule list from the student profile.
func (d Deps) rulesStage(ctx context.Context, st State) (State, error) {
	if len(st.Profile) == 0 {
		return State{}, fmt.Errorf("%w: student profile", ErrMissingInput)
	}

	extracted := ExtractRules(st.Profile, d.KB)
	d.Log.Info("rules extracted", "count", len(extracted))
	if len(extracted) == 0 {
		st.Rules = []string{}
		return st, nil
	}

	cleaned, err := d.consolidateRules(ctx, extracted)
	if err != nil {
		return State{}, err
	}

	d.Log.Info("rules consolidated", "before", len(extracted), "after", len(cleaned))
	st.Rules = cleaned
	return st, nil
}
