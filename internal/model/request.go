package model

// Category 问题分类
type Category string

const (
	CategoryProjects   Category = "projects"
	CategorySkills     Category = "skills"
	CategoryEducation  Category = "education"
	CategoryAwards     Category = "awards"
	CategoryExperience Category = "experience"
	CategoryContact    Category = "contact"
	CategoryVolunteer  Category = "volunteer"
	CategoryGeneral    Category = "general"
)

// RateLimitInfo 剩余请求数
type RateLimitInfo struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Button 内联键盘按钮
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Keyboard 内联键盘（按行排列）
type Keyboard [][]Button
