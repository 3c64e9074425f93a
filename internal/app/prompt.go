package app

import (
	"sort"
	"strings"
	"unicode"
)

// buildSuggestionPrompt turns the answer survey into a single career-counselor
// instruction. Every answer is included under a readable label, and the
// closing instruction steers the model away from anchoring on the
// preferred-role answer alone.
func buildSuggestionPrompt(answers map[string]string) string {
	keys := make([]string, 0, len(answers))
	for key := range answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var prompt strings.Builder
	prompt.WriteString("You are an expert career counselor. Analyze ALL of the user's survey responses below and produce personalized job suggestions.\n\n")
	prompt.WriteString("IMPORTANT: You must consider ALL of the following information when making suggestions:\n")
	prompt.WriteString("- Work History: Their past experience\n")
	prompt.WriteString("- Skills: Their technical and soft skills\n")
	prompt.WriteString("- Personality Traits: Their personality and work style\n")
	prompt.WriteString("- Location Preference: Where they want to work\n")
	prompt.WriteString("- Role Preference: Their desired role (but don't limit yourself to just this)\n\n")
	prompt.WriteString("User's complete survey responses:\n")
	for _, key := range keys {
		prompt.WriteString("- ")
		prompt.WriteString(readableLabel(key))
		prompt.WriteString(": ")
		prompt.WriteString(answers[key])
		prompt.WriteString("\n")
	}
	prompt.WriteString("\nBased on ALL of the above information (work history, skills, personality, location, AND role preference), provide 5 diverse and personalized job role suggestions.\n")
	prompt.WriteString("For each suggestion, include:\n")
	prompt.WriteString("1. Job Title\n")
	prompt.WriteString("2. Why this role matches their skills, experience, and personality\n")
	prompt.WriteString("3. 2 practical next steps to pursue this role\n\n")
	prompt.WriteString("Make the suggestions diverse and consider different career paths, not just variations of their role preference.")
	return prompt.String()
}

// readableLabel breaks a compact identifier like "workHistory" into the
// phrase "work History" by inserting a space before each upper-case letter.
func readableLabel(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	label := strings.TrimSpace(b.String())
	if label == "" {
		return key
	}
	return label
}
