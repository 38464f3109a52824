package bot

import (
	"fmt"
	"strings"

	"github.com/xiaopang/profilebot/internal/model"
)

// WelcomeText is the /start reply.
func WelcomeText(botName string, info *model.PersonalInfo, perMinute, perHour int) string {
	short := info.DisplayName()
	var b strings.Builder
	fmt.Fprintf(&b, "👋 Welcome to %s!\n\n", botName)
	fmt.Fprintf(&b, "I'm your AI assistant for everything about %s.\n\n", info.Name)
	b.WriteString("🔍 I can help you learn about:\n")
	fmt.Fprintf(&b, "• %s's background & education\n", short)
	b.WriteString("• Work experience & projects\n")
	b.WriteString("• Skills & technologies\n")
	b.WriteString("• Awards & competitions\n")
	b.WriteString("• Volunteer work\n")
	b.WriteString("• Contact information\n\n")
	fmt.Fprintf(&b, "💡 Just send me any message and I'll help you discover more about %s!\n\n", short)
	fmt.Fprintf(&b, "📊 Rate limits: %d/min, %d/hour", perMinute, perHour)
	return b.String()
}

// HelpText is the /help reply.
func HelpText(botName string, info *model.PersonalInfo, perMinute, perHour int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 %s Help\n\n", botName)
	fmt.Fprintf(&b, "I'm here to answer questions about %s.\n\n", info.Name)
	b.WriteString("📋 What I can tell you about:\n")
	b.WriteString("• Background & Education\n")
	b.WriteString("• Work Experience & Projects\n")
	b.WriteString("• Skills & Technologies\n")
	b.WriteString("• Awards & Competitions\n")
	b.WriteString("• Volunteer Work\n")
	b.WriteString("• Contact Information\n\n")
	b.WriteString("💬 Usage: Simply send me any message!\n\n")
	fmt.Fprintf(&b, "⚡ Rate Limits: %d requests/minute, %d/hour\n\n", perMinute, perHour)
	b.WriteString("🔄 If I'm slow, try a shorter question or wait a moment.")
	if info.Contact.Email != "" {
		fmt.Fprintf(&b, "\n\nNeed help? Contact: %s", info.Contact.Email)
	}
	return b.String()
}

// RateLimitText is sent when a user exceeds either window.
func RateLimitText(perMinute, perHour int) string {
	return fmt.Sprintf("⏰ Rate limit exceeded!\n\n"+
		"You've used all your requests for this period.\n"+
		"• Minute limit: %d/min\n"+
		"• Hour limit: %d/hour\n\n"+
		"Please wait a moment before trying again.", perMinute, perHour)
}

// ThinkingText is the loading placeholder.
func ThinkingText(botName string) string {
	return fmt.Sprintf("🤔 <b>%s is thinking...</b>", botName)
}
