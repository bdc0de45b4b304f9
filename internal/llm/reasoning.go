package llm

import (
	"regexp"
	"strings"
)

// Reasoning-capable models interleave a thinking trace with the final
// answer using one of several wire conventions. Each pattern captures the
// trace; stripping the whole match leaves the answer.
var reasoningPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<think>(.*?)</think>`),
	regexp.MustCompile(`(?s)Thinking\.\.\.\n(.*?)\n\.\.\.done thinking\.\n?`),
	regexp.MustCompile(`(?s)\Aanalysis(.*?)assistantfinal`),
}

// SplitReasoning separates a model reply into its reasoning trace and the
// final answer. Content without a recognized trace comes back unchanged
// with an empty trace.
func SplitReasoning(content string) (reasoning, answer string) {
	for _, re := range reasoningPatterns {
		m := re.FindStringSubmatchIndex(content)
		if m == nil {
			continue
		}
		reasoning = strings.TrimSpace(content[m[2]:m[3]])
		answer = strings.TrimSpace(content[:m[0]] + content[m[1]:])
		return reasoning, answer
	}
	return "", strings.TrimSpace(content)
}
