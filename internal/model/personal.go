package model

import "strings"

// PersonalInfo 个人资料文档（启动时加载，进程生命周期内只读）
type PersonalInfo struct {
	Name               string       `json:"name" yaml:"name"`
	Nickname           string       `json:"nickname,omitempty" yaml:"nickname,omitempty"`
	Contact            Contact      `json:"contact" yaml:"contact"`
	Experience         []Experience `json:"experience" yaml:"experience"`
	Volunteer          []Volunteer  `json:"volunteer" yaml:"volunteer"`
	Projects           []Project    `json:"projects" yaml:"projects"`
	Education          []Education  `json:"education" yaml:"education"`
	Skills             []string     `json:"skills" yaml:"skills"`
	AwardsCompetitions []string     `json:"awards_competitions" yaml:"awards_competitions"`
}

// DisplayName is the short name used in replies: the nickname when set,
// otherwise the first word of the full name.
func (p *PersonalInfo) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Nickname != "" {
		return p.Nickname
	}
	if fields := strings.Fields(p.Name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// Contact 联系方式
type Contact struct {
	Email    string   `json:"email" yaml:"email"`
	Phone    string   `json:"phone" yaml:"phone"`
	Location string   `json:"location" yaml:"location"`
	Profiles []string `json:"profiles" yaml:"profiles"`
}

// Experience 工作经历
type Experience struct {
	Title        string   `json:"title" yaml:"title"`
	Organization string   `json:"organization" yaml:"organization"`
	Location     string   `json:"location,omitempty" yaml:"location,omitempty"`
	Date         string   `json:"date" yaml:"date"`
	Description  []string `json:"description" yaml:"description"`
}

// Volunteer 志愿经历
type Volunteer struct {
	Title       string   `json:"title" yaml:"title"`
	Event       string   `json:"event" yaml:"event"`
	Location    string   `json:"location" yaml:"location"`
	Date        string   `json:"date" yaml:"date"`
	Description []string `json:"description" yaml:"description"`
}

// Project 项目
type Project struct {
	Name        string `json:"name" yaml:"name"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	Description string `json:"description" yaml:"description"`
	Link        string `json:"link" yaml:"link"`
}

// Education 教育经历
type Education struct {
	Degree      string `json:"degree" yaml:"degree"`
	Institution string `json:"institution" yaml:"institution"`
}
