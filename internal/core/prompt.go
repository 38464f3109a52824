package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaopang/profilebot/internal/model"
)

// BuildPrompt composes the grounding prompt: the whole personal-info
// document, the behavioural rules, then the user's question.
func BuildPrompt(botName string, info *model.PersonalInfo, question string, messageNumber int) string {
	subject := "the subject"
	if info != nil && info.Name != "" {
		subject = info.Name
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		data = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a professional AI assistant for %s.\n\n", botName, subject)
	fmt.Fprintf(&b, "%s's Information:\n%s\n\n", subject, data)
	b.WriteString("STRICT INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "- ONLY answer questions about %s\n", subject)
	b.WriteString("- If asked about ANYTHING else (math, weather, general knowledge, other people, etc.), respond with:\n")
	fmt.Fprintf(&b, "  \"%s\"\n", OffTopicReply(botName, subject))
	fmt.Fprintf(&b, "- Do NOT answer questions about:\n")
	b.WriteString("  • Mathematics or calculations\n")
	b.WriteString("  • Weather or current events\n")
	b.WriteString("  • General knowledge questions\n")
	b.WriteString("  • Other people or celebrities\n")
	fmt.Fprintf(&b, "  • Technical problems unrelated to %s\n", subject)
	fmt.Fprintf(&b, "  • Any topic not directly about %s\n", subject)
	fmt.Fprintf(&b, "- When mentioning %s's projects, use proper formatting:\n", subject)
	b.WriteString("  • Use bullet points (•) for lists\n")
	b.WriteString("  • Use Telegram bold formatting with <b> tags for project names\n")
	b.WriteString("  • Include project links when available using HTML anchor tags\n")
	b.WriteString("  • Format: \"• <b>Project Name</b>: description (<a href='link'>View Project</a>)\"\n")
	b.WriteString("  • Never use markdown ** or * symbols\n")
	b.WriteString("  • Always include the actual project links from the data when available\n")
	fmt.Fprintf(&b, "- This is message #%d from this user\n\n", messageNumber)
	fmt.Fprintf(&b, "User Question: %s", question)
	return b.String()
}

// OffTopicReply is the canned answer for questions outside the subject.
func OffTopicReply(botName, subject string) string {
	return fmt.Sprintf("I'm %s, designed specifically to help you learn about %s. "+
		"I can tell you about their background, experience, projects, skills, awards, and more. "+
		"What would you like to know about %s?", botName, subject, subject)
}
