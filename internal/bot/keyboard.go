package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/xiaopang/profilebot/internal/model"
)

// MainKeyboard 主菜单内联键盘
func MainKeyboard() model.Keyboard {
	return model.Keyboard{
		{{Text: "📋 Projects", Data: "projects"}, {Text: "🎓 Education", Data: "education"}},
		{{Text: "🏆 Awards", Data: "awards"}, {Text: "💼 Experience", Data: "experience"}},
		{{Text: "🛠️ Skills", Data: "skills"}, {Text: "📞 Contact", Data: "contact"}},
		{{Text: "🤝 Volunteer", Data: "volunteer"}, {Text: "❓ Help", Data: "help"}},
	}
}

// skillGroups buckets known skill names; skills not listed are not shown.
var skillGroups = []struct {
	name   string
	skills []string
}{
	{"Frontend", []string{"JavaScript", "HTML", "CSS", "ReactJS", "Next.js", "Tailwind CSS"}},
	{"Backend", []string{"Nest.js", "Express.js", "Python", "Flask", "RESTful APIs"}},
	{"Database", []string{"SQL", "Postgres", "MongoDB", "Firebase"}},
	{"DevOps", []string{"Docker", "AWS", "Google Cloud", "Git"}},
	{"AI/ML", []string{"AI Integration"}},
}

// RenderCallback answers a keyboard button locally from the profile, without
// a completion call. The result is Telegram HTML.
func RenderCallback(data, botName string, info *model.PersonalInfo) string {
	name := html.EscapeString(info.DisplayName())
	switch data {
	case "projects":
		return formatProjects(name, info.Projects)
	case "education":
		return formatEducation(name, info.Education)
	case "awards":
		return formatAwards(name, info.AwardsCompetitions)
	case "experience":
		return formatExperience(name, info.Experience)
	case "skills":
		return formatSkills(name, info.Skills)
	case "contact":
		return formatContact(name, info.Contact)
	case "volunteer":
		return formatVolunteer(name, info.Volunteer)
	case "help":
		return usageText(botName, name)
	default:
		return fmt.Sprintf("I'm not sure what you're looking for. Try asking me about %s's projects, experience, or skills!", name)
	}
}

func formatProjects(name string, projects []model.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🚀 %s's Projects:</b>\n\n", name)
	for _, p := range projects {
		fmt.Fprintf(&b, "• <b>%s</b>", esc(p.Name))
		if p.Status != "" {
			fmt.Fprintf(&b, " [%s]", esc(p.Status))
		}
		fmt.Fprintf(&b, ": %s", esc(p.Description))
		if p.Link != "" {
			fmt.Fprintf(&b, " (<a href='%s'>View Project</a>)", esc(p.Link))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func formatEducation(name string, education []model.Education) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🎓 %s's Education:</b>\n\n", name)
	for _, e := range education {
		fmt.Fprintf(&b, "• <b>%s</b>\n  %s\n\n", esc(e.Degree), esc(e.Institution))
	}
	return b.String()
}

func formatAwards(name string, awards []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🏆 %s's Awards & Competitions:</b>\n\n", name)
	for _, a := range awards {
		fmt.Fprintf(&b, "• %s\n", esc(a))
	}
	return b.String()
}

func formatExperience(name string, experience []model.Experience) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>💼 %s's Experience:</b>\n\n", name)
	for _, e := range experience {
		location := e.Location
		if location == "" {
			location = "Remote"
		}
		fmt.Fprintf(&b, "• <b>%s</b> at %s\n", esc(e.Title), esc(e.Organization))
		fmt.Fprintf(&b, "  📍 %s\n", esc(location))
		fmt.Fprintf(&b, "  📅 %s\n", esc(e.Date))
		for _, d := range e.Description {
			fmt.Fprintf(&b, "  - %s\n", esc(d))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatSkills(name string, skills []string) string {
	have := make(map[string]bool, len(skills))
	for _, s := range skills {
		have[s] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>🛠️ %s's Skills:</b>\n\n", name)
	for _, g := range skillGroups {
		var matched []string
		for _, s := range g.skills {
			if have[s] {
				matched = append(matched, esc(s))
			}
		}
		if len(matched) > 0 {
			fmt.Fprintf(&b, "<b>%s:</b> %s\n\n", g.name, strings.Join(matched, ", "))
		}
	}
	return b.String()
}

func formatContact(name string, c model.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📞 Contact %s:</b>\n\n", name)
	fmt.Fprintf(&b, "📧 Email: %s\n", esc(c.Email))
	fmt.Fprintf(&b, "📱 Phone: %s\n", esc(c.Phone))
	fmt.Fprintf(&b, "📍 Location: %s\n", esc(c.Location))
	fmt.Fprintf(&b, "🔗 Profiles: %s\n", esc(strings.Join(c.Profiles, ", ")))
	return b.String()
}

func formatVolunteer(name string, volunteer []model.Volunteer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🤝 %s's Volunteer Work:</b>\n\n", name)
	for _, v := range volunteer {
		fmt.Fprintf(&b, "• <b>%s</b> - %s\n", esc(v.Title), esc(v.Event))
		fmt.Fprintf(&b, "  📍 %s\n", esc(v.Location))
		fmt.Fprintf(&b, "  📅 %s\n", esc(v.Date))
		for _, d := range v.Description {
			fmt.Fprintf(&b, "  - %s\n", esc(d))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func usageText(botName, name string) string {
	return fmt.Sprintf(`<b>❓ How to use %[1]s:</b>

You can ask me anything about %[2]s! Here are some examples:

<b>About Projects:</b>
• "Tell me about %[2]s's projects"
• "What has %[2]s built?"

<b>About Experience:</b>
• "Where does %[2]s work?"
• "What's %[2]s's experience?"

<b>About Skills:</b>
• "What are %[2]s's skills?"
• "What technologies does %[2]s know?"

<b>About Education:</b>
• "Where did %[2]s study?"

<b>About Awards:</b>
• "What awards has %[2]s won?"

Just type your question and I'll help you learn about %[2]s! 🚀`, html.EscapeString(botName), name)
}

func esc(s string) string {
	return html.EscapeString(s)
}
