package service

import (
	"context"
	"testing"
	"time"

	"quiz_platform_backend/internal/model"
)

func TestOverdueSweeperFinalizesAbandonedSections(t *testing.T) {
	h := newHarness(t, allSections())
	ctx := context.Background()
	events := &recordingPublisher{}

	mcq := h.open(t, model.SectionMCQ, "")
	mcq.Answer(ctx, "4")
	mcq.Close()
	h.clock.Advance(30 * time.Second)
	tf := h.open(t, model.SectionTrueFalse, "")
	tf.Close()

	sweeper := NewOverdueSweeper(h.attempts, h.attempts, h.quizzes, nil)
	sweeper.Now = h.clock.Now
	sweeper.Events = events
	sweeper.Feed = h.feed

	// 都还没到期
	if n, err := sweeper.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}

	// true/false 限时 5 分钟先到期，mcq 限时 10 分钟
	h.clock.Advance(5 * time.Minute)
	if n, _ := sweeper.Sweep(ctx); n != 1 {
		t.Fatalf("expected the true/false section to be finalized, got %d", n)
	}
	a := h.attempts.only(t)
	if !a.TrueFalse.Submitted || a.MCQ.Submitted {
		t.Fatalf("tf=%v mcq=%v", a.TrueFalse.Submitted, a.MCQ.Submitted)
	}

	h.clock.Advance(5 * time.Minute)
	if n, _ := sweeper.Sweep(ctx); n != 1 {
		t.Fatalf("expected the mcq section to be finalized, got %d", n)
	}
	a = h.attempts.only(t)
	if !a.MCQ.Submitted || a.MCQ.Score != 1 || a.OverallTotal != 4 {
		t.Fatalf("unexpected attempt mcq=%+v total=%d", a.MCQ, a.OverallTotal)
	}
	if events.count() != 2 {
		t.Fatalf("expected two submission events, got %d", events.count())
	}
	if n, _ := sweeper.Sweep(ctx); n != 0 {
		t.Fatal("nothing left to sweep")
	}
}

func TestOverdueSweeperSkipsLiveSessions(t *testing.T) {
	h := newHarness(t, mcqOnly())
	ctx := context.Background()
	manager := NewSessionManager(h.deps, h.settings)
	t.Cleanup(manager.CloseAll)

	key := SessionKey{UserID: h.identity.UserID, QuizID: testQuizID, Kind: model.SectionMCQ}
	if _, err := manager.Open(ctx, key, h.identity, ""); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(2 * time.Minute)

	sweeper := NewOverdueSweeper(h.attempts, h.attempts, h.quizzes, manager)
	sweeper.Now = h.clock.Now
	if n, _ := sweeper.Sweep(ctx); n != 0 {
		t.Fatal("sweeper finalized a section owned by a live session")
	}

	manager.Close(key)
	if n, _ := sweeper.Sweep(ctx); n != 1 {
		t.Fatal("closed session should be swept")
	}
}
