package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// SectionConfig 某个题型分区的抽题数量、限时和分值
type SectionConfig struct {
	Count            int  `json:"count"`
	TimeLimitMinutes int  `json:"timeLimitMinutes"`
	ScorePerQuestion *int `json:"scorePerQuestion,omitempty"`
}

func (c SectionConfig) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitMinutes) * time.Minute
}

// Points 未配置分值时每题 1 分
func (c SectionConfig) Points() int {
	if c.ScorePerQuestion == nil || *c.ScorePerQuestion <= 0 {
		return 1
	}
	return *c.ScorePerQuestion
}

// QuestionTypes 题型 -> 配置，值为 nil 表示该分区未启用
type QuestionTypes map[SectionKind]*SectionConfig

// swagger:model Quiz
type Quiz struct {
	UUIDBase

	OwnerID       string                            `gorm:"size:64;index" json:"ownerId"`
	Title         string                            `gorm:"size:255;not null" json:"title"`
	Description   string                            `gorm:"type:text" json:"description"`
	Class         string                            `gorm:"size:50" json:"class"`
	Visibility    string                            `gorm:"size:20;not null" json:"visibility"`
	SecretHash    string                            `gorm:"size:100" json:"-"`
	Active        bool                              `gorm:"not null" json:"active"`
	Tags          datatypes.JSONType[[]string]      `gorm:"type:json" json:"tags"`
	QuestionTypes datatypes.JSONType[QuestionTypes] `gorm:"type:json" json:"questionTypes"`
	CoverURL      string                            `gorm:"size:255" json:"coverUrl"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

func (q *Quiz) IsPrivate() bool {
	return q.Visibility == VisibilityPrivate
}

// HasSecret 私有测验但没有配置口令时按公开处理
func (q *Quiz) HasSecret() bool {
	return q.IsPrivate() && q.SecretHash != ""
}

// Section 返回已启用分区的配置
func (q *Quiz) Section(kind SectionKind) (*SectionConfig, bool) {
	cfg, ok := q.QuestionTypes.Data()[kind]
	if !ok || cfg == nil {
		return nil, false
	}
	return cfg, true
}

// EnabledSections 按固定顺序列出启用的分区
func (q *Quiz) EnabledSections() []SectionKind {
	kinds := make([]SectionKind, 0, len(SectionKinds))
	for _, k := range SectionKinds {
		if _, ok := q.Section(k); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
