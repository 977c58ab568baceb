package lesson

import (
	"context"
	"fmt"
	"strings"
)

const adaptPrompt = `You are an expert inclusive education assistant helping teachers adapt lesson plans for diverse learners.

Your task is to rewrite the lesson using the adaptation rules below. Do not copy these rules into the output.

== Adaptation Rules ==
%s

== Structure the modified lesson into four clearly labeled sections ==

1. **Engager**: A warm-up to spark curiosity. Could be a question, relatable prompt, or quick writing exercise.
2. **I Do**: The teacher explains the key concepts, vocabulary, or skills. Modify this based on the adaptation rules. Use images or audio *only if required by the rules*.
3. **We Do**: A collaborative activity between teacher and student. Can be a game, shared discussion, or practice task. Adapt as needed for the student.
4. **You Do**: An independent task or mini project the student does alone. Make it achievable and reflective of the skills taught.

== Placeholder Rules ==
- Only use placeholders if required by the adaptation rules.
- Use ` + "`[Insert Image: short description]`" + ` for important visuals that enhance understanding.
- Use ` + "`[Insert Audio: sentence to narrate]`" + ` for audio narration or instructions where necessary.
- Do NOT include actual media, just the placeholders.

== Guidelines ==
- DO NOT repeat or list the rules in your output.
- Retell the full lesson content; do not summarize it away.
- If the rules specify a dominant language other than English, embed translations of key phrases inline in parentheses.
- Personalize the content to meet the student's needs based on the rules.
- Maintain structure and clarity.

Original Lesson Content:
"""
%s
"""

Now generate the modified lesson with the four sections clearly labeled.
`

// adaptStage rewrites the lesson text under the consolidated rules. The
// output is free text; the only structure downstream stages may rely on is
// the placeholder syntax, which can appear zero or many times.
func (d Deps) adaptStage(ctx context.Context, st State) (State, error) {
	if st.Rules == nil {
		return State{}, fmt.Errorf("%w: rules", ErrMissingInput)
	}
	if strings.TrimSpace(st.LessonText) == "" {
		return State{}, fmt.Errorf("%w: lesson text", ErrMissingInput)
	}

	var listing strings.Builder
	for _, r := range st.Rules {
		fmt.Fprintf(&listing, "- %s\n", r)
	}
	prompt := fmt.Sprintf(adaptPrompt, listing.String(), st.LessonText)

	ctx, cancel := context.WithTimeout(ctx, d.genTimeout())
	defer cancel()

	out, err := d.Generator.Complete(ctx, prompt, 0.4)
	if err != nil {
		return State{}, fmt.Errorf("%w: adapt lesson: %v", ErrGenerationService, err)
	}

	adapted := strings.TrimSpace(out)
	if adapted == "" {
		return State{}, fmt.Errorf("%w: adapt lesson: empty completion", ErrGenerationService)
	}

	d.Log.Info("lesson adapted", "chars", len(adapted))
	st.AdaptedText = adapted
	return st, nil
}
