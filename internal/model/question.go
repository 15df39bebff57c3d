package model

import "gorm.io/datatypes"

// Option 选择题选项
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// swagger:model Question
type Question struct {
	UUIDBase

	QuizID          string                       `gorm:"size:36;index:idx_questions_quiz_kind;not null" json:"quizId"`
	Kind            SectionKind                  `gorm:"size:20;index:idx_questions_quiz_kind;not null" json:"kind"`
	Text            string                       `gorm:"type:text;not null" json:"text"`
	Options         datatypes.JSONType[[]Option] `gorm:"type:json" json:"options,omitempty"`
	Answer          *bool                        `json:"answer,omitempty"`
	ReferenceAnswer string                       `gorm:"type:text" json:"referenceAnswer,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
