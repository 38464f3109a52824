package core

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xiaopang/profilebot/internal/model"
)

// MaxMessageLength is the longest accepted message, in code points.
const MaxMessageLength = 1000

var (
	maliciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b.*?</script>`),
		regexp.MustCompile(`(?i)<script\b`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)data:text/html`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)<iframe`),
		regexp.MustCompile(`(?i)<object`),
		regexp.MustCompile(`(?i)<embed`),
	}

	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

type categoryRule struct {
	category model.Category
	keywords []string
}

// Evaluated in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{model.CategoryProjects, []string{"project", "work", "build", "built"}},
	{model.CategorySkills, []string{"skill", "technology", "tech"}},
	{model.CategoryEducation, []string{"education", "study", "degree"}},
	{model.CategoryAwards, []string{"award", "competition", "win"}},
	{model.CategoryExperience, []string{"experience", "job", "work"}},
	{model.CategoryContact, []string{"contact", "email", "phone", "reach"}},
	{model.CategoryVolunteer, []string{"volunteer", "help", "event"}},
}

// Validator 输入校验、清洗与分类。无状态，可并发使用。
type Validator struct{}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns nil for acceptable input, otherwise a *ValidationError.
func (v *Validator) Validate(message string) error {
	if strings.TrimSpace(message) == "" {
		return &ValidationError{Code: EmptyMessage, Message: "Message cannot be empty"}
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return &ValidationError{Code: MessageTooLong, Message: "Message too long (max 1000 characters)"}
	}
	for _, p := range maliciousPatterns {
		if p.MatchString(message) {
			return &ValidationError{Code: MaliciousContent, Message: "Message contains invalid content"}
		}
	}
	return nil
}

// Sanitize strips tags and any leftover angle brackets, then trims.
// Sanitize(Sanitize(x)) == Sanitize(x).
func (v *Validator) Sanitize(message string) string {
	if message == "" {
		return ""
	}
	s := tagPattern.ReplaceAllString(message, "")
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	return strings.TrimSpace(s)
}

// Categorize maps a question to a topic bucket by keyword.
func (v *Validator) Categorize(message string) model.Category {
	lower := strings.ToLower(message)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryGeneral
}

// ValidateUserID accepts short alphanumeric ids (dash and underscore allowed).
func (v *Validator) ValidateUserID(userID string) bool {
	if userID == "" || len(userID) > 50 {
		return false
	}
	return userIDPattern.MatchString(userID)
}
