package service

import (
	"context"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/pkg/logger"
	"quiz_platform_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

const sweepBatchSize = 200

// OverdueSweeper 定时收掉超时且无人在答的分区，使结果不依赖学生回到页面
type OverdueSweeper struct {
	Attempts AttemptStore
	Lister   InProgressLister
	Quizzes  QuizStore
	Sessions *SessionManager
	Feed     AttemptFeed
	Events   SubmissionPublisher
	Retries  int
	Now      func() time.Time
}

func NewOverdueSweeper(attempts AttemptStore, lister InProgressLister, quizzes QuizStore, sessions *SessionManager) *OverdueSweeper {
	return &OverdueSweeper{
		Attempts: attempts,
		Lister:   lister,
		Quizzes:  quizzes,
		Sessions: sessions,
		Retries:  1,
		Now:      time.Now,
	}
}

// Sweep 返回本次收卷的分区数
func (w *OverdueSweeper) Sweep(ctx context.Context) (int, error) {
	now := w.Now()
	attempts, err := w.Lister.ListInProgress(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	agg := NewScoreAggregator(w.Attempts, w.Retries)
	quizzes := make(map[string]*model.Quiz)
	finalized := 0

	for i := range attempts {
		a := &attempts[i]
		quiz, ok := quizzes[a.QuizID]
		if !ok {
			quiz, err = w.Quizzes.FindByID(ctx, a.QuizID)
			if err != nil {
				logger.Log.Warn("Sweeper could not load quiz", zap.String("quizId", a.QuizID), zap.Error(err))
				quiz = nil
			}
			quizzes[a.QuizID] = quiz
		}
		if quiz == nil {
			continue
		}

		for _, kind := range model.SectionKinds {
			sec := a.Section(kind)
			if !sec.Started() || sec.Submitted {
				continue
			}
			cfg, ok := quiz.Section(kind)
			if !ok || now.Before(a.SectionDeadline(kind, *cfg)) {
				continue
			}
			if w.Sessions != nil && w.Sessions.Owns(a.UserID, a.QuizID, kind) {
				continue
			}
			strategy, err := StrategyFor(kind)
			if err != nil {
				continue
			}

			updated, already, err := agg.FinalizeSection(ctx, a.ID, Finalization{
				Kind:     kind,
				Strategy: strategy,
				Points:   cfg.Points(),
				At:       now,
			})
			if err != nil {
				monitoring.PersistFailures.WithLabelValues("sweep").Inc()
				logger.Log.Error("Sweeper finalize failed",
					zap.String("attemptId", a.ID), zap.String("kind", string(kind)), zap.Error(err))
				continue
			}
			if already {
				continue
			}
			*a = *updated
			finalized++
			monitoring.SectionSubmissions.WithLabelValues(string(kind), string(TriggerTimeout)).Inc()
			w.notify(ctx, updated, kind)
		}
	}

	if finalized > 0 {
		logger.Log.Info("Overdue sections finalized", zap.Int("count", finalized))
	}
	return finalized, nil
}

func (w *OverdueSweeper) notify(ctx context.Context, a *model.Attempt, kind model.SectionKind) {
	if w.Feed != nil {
		if err := w.Feed.Publish(ctx, eventFromAttempt(EventSubmitted, a, kind, w.Now())); err != nil {
			logger.Log.Warn("Attempt event publish failed", zap.String("attemptId", a.ID), zap.Error(err))
		}
	}
	if w.Events != nil {
		if err := w.Events.PublishSubmission(ctx, SubmissionEventFor(a, kind, string(TriggerTimeout))); err != nil {
			logger.Log.Warn("Submission event publish failed", zap.String("attemptId", a.ID), zap.Error(err))
		}
	}
}
