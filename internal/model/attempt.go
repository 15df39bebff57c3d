package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SnapshotQuestion 分区开始时冻结下来的题目（含打乱后的选项顺序和判分数据）
type SnapshotQuestion struct {
	QuestionID      string   `json:"questionId"`
	Text            string   `json:"text"`
	Options         []Option `json:"options,omitempty"`
	Answer          *bool    `json:"answer,omitempty"`
	ReferenceAnswer string   `json:"referenceAnswer,omitempty"`
}

// Answers 题目下标 -> 作答内容
type Answers map[int]string

func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SectionRecord 一个题型分区在答题记录中的全部字段。
// Questions 为空表示该分区还没开始。
type SectionRecord struct {
	Questions   datatypes.JSON `gorm:"type:json" json:"questions,omitempty"`
	Answers     datatypes.JSON `gorm:"type:json" json:"answers,omitempty"`
	CurrentIdx  int            `gorm:"not null;default:0" json:"currentIdx"`
	Submitted   bool           `gorm:"not null;default:false" json:"submitted"`
	Score       int            `gorm:"not null;default:0" json:"score"`
	Total       *int           `json:"total"`
	Warnings    int            `gorm:"not null;default:0" json:"warnings"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
}

// NewSectionRecord 构造一个刚开始的分区
func NewSectionRecord(questions []SnapshotQuestion, total *int, startedAt time.Time) (SectionRecord, error) {
	qs, err := json.Marshal(questions)
	if err != nil {
		return SectionRecord{}, err
	}
	ans, err := encodeAnswers(Answers{})
	if err != nil {
		return SectionRecord{}, err
	}
	return SectionRecord{
		Questions: datatypes.JSON(qs),
		Answers:   ans,
		Total:     total,
		StartedAt: &startedAt,
	}, nil
}

func (s *SectionRecord) Started() bool {
	return len(s.Questions) > 0 && string(s.Questions) != "null"
}

func (s *SectionRecord) Snapshot() ([]SnapshotQuestion, error) {
	if !s.Started() {
		return nil, nil
	}
	var qs []SnapshotQuestion
	if err := json.Unmarshal(s.Questions, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (s *SectionRecord) AnswerMap() (Answers, error) {
	out := Answers{}
	if len(s.Answers) == 0 || string(s.Answers) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(s.Answers, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeAnswers(a Answers) (datatypes.JSON, error) {
	if a == nil {
		a = Answers{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// swagger:model Attempt
type Attempt struct {
	UUIDBase

	UserID     string `gorm:"size:64;not null;uniqueIndex:idx_attempt_user_quiz" json:"userId"`
	QuizID     string `gorm:"size:36;not null;uniqueIndex:idx_attempt_user_quiz" json:"quizId"`
	Username   string `gorm:"size:100" json:"username"`
	OwnerID    string `gorm:"size:64;index" json:"ownerId"`
	Title      string `gorm:"size:255" json:"title"`
	Class      string `gorm:"size:50" json:"class"`
	RollNumber string `gorm:"size:50" json:"rollNumber"`

	StartTime    time.Time `gorm:"autoCreateTime" json:"startTime"`
	WarningCount int       `gorm:"not null;default:0" json:"warningCount"`
	HasSubmitted bool      `gorm:"not null;default:false" json:"hasSubmitted"`
	Percentage   float64   `gorm:"not null;default:0" json:"percentage"`
	OverallScore int       `gorm:"not null;default:0" json:"overallScore"`
	OverallTotal int       `gorm:"not null;default:0" json:"overallTotal"`
	Version      int       `gorm:"not null;default:0" json:"version"`

	MCQ       SectionRecord `gorm:"embedded;embeddedPrefix:mcqs_" json:"mcqs"`
	TrueFalse SectionRecord `gorm:"embedded;embeddedPrefix:true_false_" json:"trueFalse"`
	Short     SectionRecord `gorm:"embedded;embeddedPrefix:short_" json:"short"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Section 返回分区字段的指针，未知题型返回 nil
func (a *Attempt) Section(kind SectionKind) *SectionRecord {
	switch kind {
	case SectionMCQ:
		return &a.MCQ
	case SectionTrueFalse:
		return &a.TrueFalse
	case SectionShort:
		return &a.Short
	}
	return nil
}

// SectionDeadline 分区开始时间 + 限时。
// 按分区各自计时，而不是从整份答题记录的开始时间算起：后开始的分区拿到完整的限时。
// 旧数据没有分区开始时间时退回到答题记录的开始时间
func (a *Attempt) SectionDeadline(kind SectionKind, cfg SectionConfig) time.Time {
	start := a.StartTime
	if sec := a.Section(kind); sec != nil && sec.StartedAt != nil {
		start = *sec.StartedAt
	}
	return start.Add(cfg.TimeLimit())
}
