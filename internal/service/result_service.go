package service

import (
	"context"
	"errors"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
)

type ResultSummary struct {
	AttemptID      string          `json:"attemptId"`
	QuizID         string          `json:"quizId"`
	Title          string          `json:"title"`
	Username       string          `json:"username"`
	RollNumber     string          `json:"rollNumber"`
	Sections       []SectionResult `json:"sections"`
	Overall        Aggregate       `json:"overall"`
	Complete       bool            `json:"complete"`
	PendingGrading bool            `json:"pendingGrading"`
}

// Summarize 只统计满分大于 0 的分区，公式与提交时的合并一致。
// quiz 为空时无法判断是否全部完成。
func Summarize(a *model.Attempt, quiz *model.Quiz) ResultSummary {
	sum := ResultSummary{
		AttemptID:  a.ID,
		QuizID:     a.QuizID,
		Title:      a.Title,
		Username:   a.Username,
		RollNumber: a.RollNumber,
		Sections:   []SectionResult{},
	}
	for _, r := range SectionResults(a) {
		if r.Total > 0 {
			sum.Sections = append(sum.Sections, r)
		}
	}
	sum.Overall = Combine(sum.Sections)

	if quiz != nil {
		sum.Complete = true
		for _, kind := range quiz.EnabledSections() {
			sec := a.Section(kind)
			if !sec.Submitted {
				sum.Complete = false
			}
			if sec.Submitted && !kind.AutoScored() {
				sum.PendingGrading = true
			}
		}
	}
	return sum
}

type ResultService struct {
	Quizzes  QuizStore
	Attempts AttemptStore
	Roster   QuizAttemptLister
}

func NewResultService(quizzes QuizStore, attempts AttemptStore) *ResultService {
	return &ResultService{Quizzes: quizzes, Attempts: attempts}
}

func (s *ResultService) Result(ctx context.Context, userID, quizID string) (*ResultSummary, error) {
	attempt, err := s.Attempts.FindByUserAndQuiz(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.Quizzes.FindByID(ctx, quizID)
	if err != nil && !errors.Is(err, util.ErrQuizNotFound) {
		return nil, err
	}
	sum := Summarize(attempt, quiz)
	return &sum, nil
}

// QuizResults 测验所有者查看全部学生的汇总，按开始时间倒序分页
func (s *ResultService) QuizResults(ctx context.Context, caller Caller, quizID string, page, size int) ([]ResultSummary, int64, error) {
	quiz, err := s.Quizzes.FindByID(ctx, quizID)
	if err != nil {
		return nil, 0, err
	}
	if caller.Role != model.Admin && quiz.OwnerID != caller.UserID {
		return nil, 0, util.ErrPermissionDenied
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	attempts, total, err := s.Roster.ListByQuiz(ctx, quizID, page, size)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ResultSummary, 0, len(attempts))
	for i := range attempts {
		out = append(out, Summarize(&attempts[i], quiz))
	}
	return out, total, nil
}
