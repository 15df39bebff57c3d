package service

import (
	"context"
	"quiz_platform_backend/internal/model"
	"time"
)

// 答题核心依赖的存储接口，由 repository 包的 gorm 实现满足，测试中用内存实现替换

type QuizStore interface {
	FindByID(ctx context.Context, id string) (*model.Quiz, error)
}

type QuestionStore interface {
	ListByQuizAndKind(ctx context.Context, quizID string, kind model.SectionKind) ([]model.Question, error)
}

type AttemptStore interface {
	FindByID(ctx context.Context, id string) (*model.Attempt, error)
	FindByUserAndQuiz(ctx context.Context, userID, quizID string) (*model.Attempt, error)
	Create(ctx context.Context, attempt *model.Attempt) error
	InitSection(ctx context.Context, id string, kind model.SectionKind, rec model.SectionRecord) error
	ApplyPatch(ctx context.Context, id string, patch model.AttemptPatch) error
	CompareAndPatch(ctx context.Context, id string, version int, patch model.AttemptPatch) error
}

type RelationStore interface {
	FindRollNumber(ctx context.Context, studentID, ownerID string) (string, error)
}

// InProgressLister 超时清扫用
type InProgressLister interface {
	ListInProgress(ctx context.Context, startedBefore time.Time, limit int) ([]model.Attempt, error)
}

// QuizAttemptLister 教师查看成绩用
type QuizAttemptLister interface {
	ListByQuiz(ctx context.Context, quizID string, page, size int) ([]model.Attempt, int64, error)
}
