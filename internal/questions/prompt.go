package questions

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an assessment designer for Publicis Knowledge Arena.
Generate exactly 1 multiple-choice question for the category and level given by the user.

Constraints:
- 1 question stem, 4 plausible options, exactly 1 correct answer.
- No trick wording, no vague absolutes.
- Difficulty calibrated to the level.
- Include a "topic_cluster" such as "Bidding Strategy", "Attribution" or "Keyword Research".
- Provide a brief one-sentence rationale explaining why the correct option is right.
- Provide a "hash_hint": a short string unique to this question.
- Do not produce a question whose hash appears in the avoid list.
- Respond with strict JSON only.`

// buildUserMessage renders the per-call prompt. At most max avoid hashes
// are included, keeping the most recent.
func buildUserMessage(input GenerateInput, max int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", input.Category)
	fmt.Fprintf(&b, "Level: %s\n", input.Level)

	avoid := input.AvoidHashes
	if max > 0 && len(avoid) > max {
		avoid = avoid[len(avoid)-max:]
	}
	b.WriteString("\nAvoid these hashes: ")
	if len(avoid) == 0 {
		b.WriteString("None")
	} else {
		b.WriteString(strings.Join(avoid, ","))
	}
	return b.String()
}
