package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "quiz.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Quiz{}, &model.Question{}, &model.Attempt{}, &model.Relation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedAttempt(t *testing.T, repo *AttemptRepository) *model.Attempt {
	t.Helper()
	total := 2
	rec, err := model.NewSectionRecord([]model.SnapshotQuestion{
		{QuestionID: "q1", Text: "2+2?"},
		{QuestionID: "q2", Text: "3+3?"},
	}, &total, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	a := &model.Attempt{UserID: "u1", QuizID: "quiz1", Username: "alice", MCQ: rec}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestAttemptRepository_CreateAssignsIdentity(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	a := seedAttempt(t, repo)

	if a.ID == "" {
		t.Fatal("expected generated id")
	}
	if a.StartTime.IsZero() {
		t.Fatal("expected start time assigned on insert")
	}

	dup := &model.Attempt{UserID: "u1", QuizID: "quiz1"}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, util.ErrAttemptExists) {
		t.Fatalf("expected ErrAttemptExists, got %v", err)
	}

	got, err := repo.FindByUserAndQuiz(context.Background(), "u1", "quiz1")
	if err != nil {
		t.Fatal(err)
	}
	qs, err := got.MCQ.Snapshot()
	if err != nil || len(qs) != 2 || qs[1].QuestionID != "q2" {
		t.Fatalf("snapshot not round-tripped: %+v %v", qs, err)
	}
	if got.TrueFalse.Started() {
		t.Fatal("untouched section should not be started")
	}
}

func TestAttemptRepository_FindMissing(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	if _, err := repo.FindByUserAndQuiz(context.Background(), "nobody", "quiz1"); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
	if _, err := repo.FindByID(context.Background(), "missing"); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestAttemptRepository_InitSectionOnlyOnce(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	a := seedAttempt(t, repo)
	ctx := context.Background()

	total := 1
	first, _ := model.NewSectionRecord([]model.SnapshotQuestion{{QuestionID: "tf1"}}, &total, time.Now())
	if err := repo.InitSection(ctx, a.ID, model.SectionTrueFalse, first); err != nil {
		t.Fatalf("init: %v", err)
	}
	second, _ := model.NewSectionRecord([]model.SnapshotQuestion{{QuestionID: "tf2"}}, &total, time.Now())
	if err := repo.InitSection(ctx, a.ID, model.SectionTrueFalse, second); !errors.Is(err, util.ErrSectionAlreadyStarted) {
		t.Fatalf("expected ErrSectionAlreadyStarted, got %v", err)
	}

	got, _ := repo.FindByID(ctx, a.ID)
	qs, _ := got.TrueFalse.Snapshot()
	if len(qs) != 1 || qs[0].QuestionID != "tf1" {
		t.Fatalf("snapshot replaced: %+v", qs)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}

	short, _ := model.NewSectionRecord([]model.SnapshotQuestion{{QuestionID: "s1"}}, nil, time.Now())
	if err := repo.InitSection(ctx, a.ID, model.SectionShort, short); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.FindByID(ctx, a.ID)
	if got.Short.Total != nil {
		t.Fatalf("short total should stay unknown, got %d", *got.Short.Total)
	}
}

func TestAttemptRepository_ApplyPatchGuardsSubmitted(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	a := seedAttempt(t, repo)
	ctx := context.Background()

	var p model.AttemptPatch
	idx := 1
	p.Section(model.SectionMCQ).CurrentIdx = &idx
	p.Section(model.SectionMCQ).Answers = model.Answers{0: "4"}
	if err := repo.ApplyPatch(ctx, a.ID, p); err != nil {
		t.Fatalf("patch: %v", err)
	}

	var fin model.AttemptPatch
	yes := true
	fin.Section(model.SectionMCQ).Submitted = &yes
	if err := repo.ApplyPatch(ctx, a.ID, fin); err != nil {
		t.Fatal(err)
	}

	// 提交之后的进度写入被拒绝
	idx = 0
	var late model.AttemptPatch
	late.Section(model.SectionMCQ).CurrentIdx = &idx
	if err := repo.ApplyPatch(ctx, a.ID, late); !errors.Is(err, util.ErrSectionSubmitted) {
		t.Fatalf("expected ErrSectionSubmitted, got %v", err)
	}

	got, _ := repo.FindByID(ctx, a.ID)
	ans, _ := got.MCQ.AnswerMap()
	if got.MCQ.CurrentIdx != 1 || ans[0] != "4" || !got.MCQ.Submitted {
		t.Fatalf("unexpected row: idx=%d answers=%v submitted=%v", got.MCQ.CurrentIdx, ans, got.MCQ.Submitted)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}

	if err := repo.ApplyPatch(ctx, "missing", p); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestAttemptRepository_CompareAndPatch(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	a := seedAttempt(t, repo)
	ctx := context.Background()

	warn := 2
	if err := repo.CompareAndPatch(ctx, a.ID, 0, model.AttemptPatch{WarningCount: &warn}); err != nil {
		t.Fatal(err)
	}
	// 旧版本号写入冲突
	if err := repo.CompareAndPatch(ctx, a.ID, 0, model.AttemptPatch{WarningCount: &warn}); !errors.Is(err, util.ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}
	got, _ := repo.FindByID(ctx, a.ID)
	if got.WarningCount != 2 || got.Version != 1 {
		t.Fatalf("unexpected row: warnings=%d version=%d", got.WarningCount, got.Version)
	}
}

func TestAttemptRepository_ListInProgress(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()
	open := seedAttempt(t, repo)

	done := &model.Attempt{UserID: "u2", QuizID: "quiz1"}
	total := 1
	done.MCQ, _ = model.NewSectionRecord([]model.SnapshotQuestion{{QuestionID: "q1"}}, &total, time.Now())
	done.MCQ.Submitted = true
	if err := repo.Create(ctx, done); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &model.Attempt{UserID: "u3", QuizID: "quiz1"}); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListInProgress(ctx, time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != open.ID {
		t.Fatalf("expected only the open attempt, got %d rows", len(list))
	}
}
