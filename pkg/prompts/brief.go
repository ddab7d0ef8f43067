// Package prompts builds the provider prompts used while authoring a brief.
package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// SuggestionSystemMessage frames a single-question suggestion.
const SuggestionSystemMessage = "You help business owners write clear project briefs for freelance service providers. " +
	"Answer with the suggested text only, with no preamble, headings, or quotation marks."

// SummarySystemMessage frames the whole-brief synthesis.
const SummarySystemMessage = "You turn a client's answers into a project brief description that a service provider " +
	"can read in under two minutes. Write plain third-person prose and never invent facts the client did not give."

// BuildSuggestionPrompt asks for a candidate answer to one authoring question.
func BuildSuggestionPrompt(questionID, promptText string) string {
	var prompt strings.Builder

	prompt.WriteString("# Brief Authoring Suggestion\n\n")
	prompt.WriteString(fmt.Sprintf("Question (%s): %s\n\n", questionID, strings.TrimSpace(promptText)))
	prompt.WriteString("Suggest a concise, concrete answer a typical small business client could adapt. ")
	prompt.WriteString("Keep it under 80 words.\n")

	return prompt.String()
}

// BuildSummaryPrompt lists every answered question, grouped by category in
// the order given, and asks for a single description.
func BuildSummaryPrompt(answers []models.AnsweredQuestion) string {
	var prompt strings.Builder

	prompt.WriteString("# Project Brief Summary\n\n")
	prompt.WriteString("The client answered the following questions.\n\n")

	var current models.QuestionCategory
	for _, a := range answers {
		response := strings.TrimSpace(a.Response)
		if response == "" {
			continue
		}
		if a.Category != current {
			current = a.Category
			prompt.WriteString(fmt.Sprintf("## %s\n\n", titleCase(string(current))))
		}
		prompt.WriteString(fmt.Sprintf("Q: %s\nA: %s\n\n", strings.TrimSpace(a.Prompt), response))
	}

	prompt.WriteString("## Task\n\n")
	prompt.WriteString("Write the project description for this brief. Cover the goal, the audience, ")
	prompt.WriteString("the timeline and budget constraints, and what must be delivered. ")
	prompt.WriteString("Leave out anything the client left blank.\n")

	return prompt.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
