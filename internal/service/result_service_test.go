package service

import (
	"context"
	"errors"
	"testing"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
)

func TestSummarizeMatchesAggregation(t *testing.T) {
	a := &model.Attempt{}
	a.MCQ.Score, a.MCQ.Total, a.MCQ.Submitted = 8, intPtr(10), true
	a.TrueFalse.Score, a.TrueFalse.Total, a.TrueFalse.Submitted = 4, intPtr(5), true
	a.Short.Total, a.Short.Submitted = intPtr(0), true

	quiz := &model.Quiz{}
	sum := Summarize(a, quiz)
	if len(sum.Sections) != 2 {
		t.Fatalf("zero-total sections must be skipped: %+v", sum.Sections)
	}
	if sum.Overall.Score != 12 || sum.Overall.Total != 15 || sum.Overall.Percentage != 80.00 {
		t.Fatalf("unexpected overall %+v", sum.Overall)
	}
	if want := Combine(SectionResults(a)); want != sum.Overall {
		t.Fatalf("summary %+v differs from aggregator %+v", sum.Overall, want)
	}
}

func TestResultServiceCompleteness(t *testing.T) {
	h := newHarness(t, allSections())
	ctx := context.Background()
	svc := NewResultService(h.quizzes, h.attempts)

	mcq := h.open(t, model.SectionMCQ, "")
	mcq.Answer(ctx, "4")
	mcq.Submit(ctx, TriggerManual)

	sum, err := svc.Result(ctx, h.identity.UserID, testQuizID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Complete || sum.Overall.Percentage != 50 {
		t.Fatalf("unexpected partial summary %+v", sum)
	}

	for _, kind := range []model.SectionKind{model.SectionTrueFalse, model.SectionShort} {
		s := h.open(t, kind, "")
		s.Submit(ctx, TriggerManual)
	}
	sum, _ = svc.Result(ctx, h.identity.UserID, testQuizID)
	if !sum.Complete || !sum.PendingGrading {
		t.Fatalf("expected complete summary pending grading, got %+v", sum)
	}
	if sum.Overall.Score != 1 || sum.Overall.Total != 4 || sum.Overall.Percentage != 25 {
		t.Fatalf("unexpected overall %+v", sum.Overall)
	}
}

func TestQuizResultsRequiresOwner(t *testing.T) {
	h := newHarness(t, mcqOnly())
	ctx := context.Background()
	svc := NewResultService(h.quizzes, h.attempts)
	svc.Roster = h.attempts

	sess := h.open(t, model.SectionMCQ, "")
	sess.Answer(ctx, "4")
	sess.Submit(ctx, TriggerManual)

	if _, _, err := svc.QuizResults(ctx, Caller{UserID: "teacher-2", Role: model.Teacher}, testQuizID, 1, 20); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	rows, total, err := svc.QuizResults(ctx, Caller{UserID: "teacher-1", Role: model.Teacher}, testQuizID, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected one row, got %d/%d", len(rows), total)
	}
	if rows[0].Username != "Ana" || rows[0].RollNumber != "R-42" || rows[0].Overall.Percentage != 50 {
		t.Fatalf("unexpected row %+v", rows[0])
	}

	if _, _, err := svc.QuizResults(ctx, Caller{UserID: "root", Role: model.Admin}, testQuizID, 0, 0); err != nil {
		t.Fatalf("admin should see results: %v", err)
	}
}
