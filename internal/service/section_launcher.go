package service

import (
	"context"
	"errors"
	"math"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"time"
)

type SectionStatus string

const (
	StatusNotStarted SectionStatus = "not-started"
	StatusInProgress SectionStatus = "in-progress"
	StatusSubmitted  SectionStatus = "submitted"
)

type SectionAction string

const (
	ActionStart  SectionAction = "start"
	ActionResume SectionAction = "resume"
	ActionLocked SectionAction = "locked"
)

type SectionSummary struct {
	Kind             model.SectionKind `json:"kind"`
	Status           SectionStatus     `json:"status"`
	Action           SectionAction     `json:"action"`
	Count            int               `json:"count"`
	TimeLimitMinutes int               `json:"timeLimitMinutes"`
	RemainingSeconds *int              `json:"remainingSeconds,omitempty"`
	Route            string            `json:"route"`
}

type LauncherView struct {
	QuizID         string           `json:"quizId"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	RequiresSecret bool             `json:"requiresSecret"`
	HasSubmitted   bool             `json:"hasSubmitted"`
	Sections       []SectionSummary `json:"sections"`
}

// SectionLauncher 分区选择页：按测验配置和答题进度给出每个分区能否进入
type SectionLauncher struct {
	Quizzes  QuizStore
	Attempts AttemptStore
	Sessions *SessionManager
	Now      func() time.Time
}

func NewSectionLauncher(quizzes QuizStore, attempts AttemptStore, sessions *SessionManager) *SectionLauncher {
	return &SectionLauncher{Quizzes: quizzes, Attempts: attempts, Sessions: sessions, Now: time.Now}
}

func (l *SectionLauncher) Sections(ctx context.Context, userID, quizID string) (*LauncherView, error) {
	quiz, err := l.Quizzes.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.Active {
		return nil, util.ErrQuizInactive
	}
	attempt, err := l.Attempts.FindByUserAndQuiz(ctx, userID, quizID)
	if err != nil && !errors.Is(err, util.ErrAttemptNotFound) {
		return nil, err
	}
	return Classify(quiz, attempt, l.Now()), nil
}

// Classify 纯函数，attempt 为空表示还没有答题记录
func Classify(quiz *model.Quiz, attempt *model.Attempt, now time.Time) *LauncherView {
	view := &LauncherView{
		QuizID:         quiz.ID,
		Title:          quiz.Title,
		Description:    quiz.Description,
		RequiresSecret: quiz.HasSecret(),
		Sections:       []SectionSummary{},
	}
	if attempt != nil {
		view.HasSubmitted = attempt.HasSubmitted
	}

	for _, kind := range quiz.EnabledSections() {
		cfg, _ := quiz.Section(kind)
		sum := SectionSummary{
			Kind:             kind,
			Status:           StatusNotStarted,
			Action:           ActionStart,
			Count:            cfg.Count,
			TimeLimitMinutes: cfg.TimeLimitMinutes,
			Route:            kind.Route(quiz.ID),
		}
		if attempt != nil {
			sec := attempt.Section(kind)
			switch {
			case sec.Submitted:
				sum.Status = StatusSubmitted
				sum.Action = ActionLocked
			case sec.Started():
				sum.Status = StatusInProgress
				sum.Action = ActionResume
				left := int(math.Max(0, math.Ceil(attempt.SectionDeadline(kind, *cfg).Sub(now).Seconds())))
				sum.RemainingSeconds = &left
			}
		}
		view.Sections = append(view.Sections, sum)
	}
	return view
}

// Enter 进入分区。口令只随这一次请求的请求体传入，不落库也不放进 URL
func (l *SectionLauncher) Enter(ctx context.Context, identity Identity, quizID string, kind model.SectionKind, secretCode string) (SessionView, error) {
	if !kind.Valid() {
		return SessionView{}, util.ErrInvalidKind
	}
	sess, err := l.Sessions.Open(ctx, SessionKey{UserID: identity.UserID, QuizID: quizID, Kind: kind}, identity, secretCode)
	if sess == nil {
		return SessionView{}, err
	}
	return sess.View(), err
}
