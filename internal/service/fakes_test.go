package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/messaging"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeQuizStore struct {
	quizzes map[string]*model.Quiz
}

func (s *fakeQuizStore) FindByID(ctx context.Context, id string) (*model.Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return nil, util.ErrQuizNotFound
	}
	cp := *q
	return &cp, nil
}

type fakeQuestionStore struct {
	questions []model.Question
}

func (s *fakeQuestionStore) ListByQuizAndKind(ctx context.Context, quizID string, kind model.SectionKind) ([]model.Question, error) {
	var out []model.Question
	for _, q := range s.questions {
		if q.QuizID == quizID && q.Kind == kind {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeRelationStore struct {
	rolls map[string]string
}

func (s *fakeRelationStore) FindRollNumber(ctx context.Context, studentID, ownerID string) (string, error) {
	return s.rolls[studentID+"/"+ownerID], nil
}

// fakeAttemptStore 与 gorm 实现保持同样的条件写语义
type fakeAttemptStore struct {
	mu       sync.Mutex
	clock    *fakeClock
	attempts map[string]*model.Attempt

	applyErr  error
	beforeCAS func(id string)
	writes    int
}

func newFakeAttemptStore(clock *fakeClock) *fakeAttemptStore {
	return &fakeAttemptStore{clock: clock, attempts: make(map[string]*model.Attempt)}
}

func (s *fakeAttemptStore) get(id string) *model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *fakeAttemptStore) only(t *testing.T) *model.Attempt {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.attempts) != 1 {
		t.Fatalf("expected one attempt, have %d", len(s.attempts))
	}
	for _, a := range s.attempts {
		cp := *a
		return &cp
	}
	return nil
}

func (s *fakeAttemptStore) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	if a := s.get(id); a != nil {
		return a, nil
	}
	return nil, util.ErrAttemptNotFound
}

func (s *fakeAttemptStore) FindByUserAndQuiz(ctx context.Context, userID, quizID string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, util.ErrAttemptNotFound
}

func (s *fakeAttemptStore) Create(ctx context.Context, attempt *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.UserID == attempt.UserID && a.QuizID == attempt.QuizID {
			return util.ErrAttemptExists
		}
	}
	if attempt.ID == "" {
		attempt.ID = model.GenerateUUID()
	}
	if attempt.StartTime.IsZero() {
		attempt.StartTime = s.clock.Now()
	}
	cp := *attempt
	s.attempts[attempt.ID] = &cp
	s.writes++
	return nil
}

func (s *fakeAttemptStore) InitSection(ctx context.Context, id string, kind model.SectionKind, rec model.SectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return util.ErrAttemptNotFound
	}
	if a.Section(kind).Started() {
		return util.ErrSectionAlreadyStarted
	}
	*a.Section(kind) = rec
	a.Version++
	s.writes++
	return nil
}

func (s *fakeAttemptStore) ApplyPatch(ctx context.Context, id string, patch model.AttemptPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	a, ok := s.attempts[id]
	if !ok {
		return util.ErrAttemptNotFound
	}
	for _, kind := range patch.GuardedSections() {
		if a.Section(kind).Submitted {
			return util.ErrSectionSubmitted
		}
	}
	if err := patch.Apply(a); err != nil {
		return err
	}
	a.Version++
	s.writes++
	return nil
}

func (s *fakeAttemptStore) CompareAndPatch(ctx context.Context, id string, version int, patch model.AttemptPatch) error {
	if s.beforeCAS != nil {
		s.beforeCAS(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return util.ErrAttemptNotFound
	}
	if a.Version != version {
		return util.ErrWriteConflict
	}
	if err := patch.Apply(a); err != nil {
		return err
	}
	a.Version++
	s.writes++
	return nil
}

func (s *fakeAttemptStore) ListInProgress(ctx context.Context, startedBefore time.Time, limit int) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Attempt
	for _, a := range s.attempts {
		if !a.StartTime.Before(startedBefore) {
			continue
		}
		for _, kind := range model.SectionKinds {
			sec := a.Section(kind)
			if sec.Started() && !sec.Submitted {
				out = append(out, *a)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeAttemptStore) ListByQuiz(ctx context.Context, quizID string, page, size int) ([]model.Attempt, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Attempt
	for _, a := range s.attempts {
		if a.QuizID == quizID {
			all = append(all, *a)
		}
	}
	total := int64(len(all))
	start := (page - 1) * size
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// bump 模拟其它分区的并发写入
func (s *fakeAttemptStore) bump(id string) {
	s.mu.Lock()
	s.attempts[id].Version++
	s.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishSubmission(ctx context.Context, evt messaging.SubmissionEvent) error {
	p.record(evt.Kind + ":" + evt.Trigger)
	return nil
}

func (p *recordingPublisher) record(kind string) {
	p.mu.Lock()
	p.events = append(p.events, kind)
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type errGate struct{}

func (errGate) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

// noShuffle 保持原顺序，便于断言
func noShuffle(n int, swap func(i, j int)) {}

// reverseShuffle 每次都把顺序反过来
func reverseShuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

const testQuizID = "quiz-1"

type harness struct {
	clock     *fakeClock
	quizzes   *fakeQuizStore
	questions *fakeQuestionStore
	attempts  *fakeAttemptStore
	feed      *MemoryAttemptFeed
	deps      SessionDeps
	settings  SessionSettings
	identity  Identity
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func newHarness(t *testing.T, types model.QuestionTypes) *harness {
	t.Helper()
	clock := newFakeClock()
	h := &harness{
		clock: clock,
		quizzes: &fakeQuizStore{quizzes: map[string]*model.Quiz{
			testQuizID: {
				UUIDBase:      model.UUIDBase{ID: testQuizID},
				OwnerID:       "teacher-1",
				Title:         "Arithmetic",
				Class:         "7B",
				Visibility:    model.VisibilityPublic,
				Active:        true,
				QuestionTypes: datatypes.NewJSONType(types),
			},
		}},
		questions: &fakeQuestionStore{questions: []model.Question{
			{UUIDBase: model.UUIDBase{ID: "m1"}, QuizID: testQuizID, Kind: model.SectionMCQ, Text: "2+2?",
				Options: datatypes.NewJSONType([]model.Option{{Text: "4", IsCorrect: true}, {Text: "5"}})},
			{UUIDBase: model.UUIDBase{ID: "m2"}, QuizID: testQuizID, Kind: model.SectionMCQ, Text: "3+3?",
				Options: datatypes.NewJSONType([]model.Option{{Text: "7"}, {Text: "6", IsCorrect: true}})},
			{UUIDBase: model.UUIDBase{ID: "t1"}, QuizID: testQuizID, Kind: model.SectionTrueFalse, Text: "1 is odd", Answer: boolPtr(true)},
			{UUIDBase: model.UUIDBase{ID: "t2"}, QuizID: testQuizID, Kind: model.SectionTrueFalse, Text: "2 is odd", Answer: boolPtr(false)},
			{UUIDBase: model.UUIDBase{ID: "s1"}, QuizID: testQuizID, Kind: model.SectionShort, Text: "Define a prime", ReferenceAnswer: "Divisible only by 1 and itself"},
		}},
		attempts: newFakeAttemptStore(clock),
		feed:     NewMemoryAttemptFeed(),
		settings: SessionSettings{
			TickInterval:      time.Hour,
			ViolationDebounce: 2 * time.Second,
			WarningThreshold:  3,
			WarningScope:      WarningScopeAttempt,
			MergeRetries:      1,
		},
		identity: Identity{UserID: "student-1", Name: "Ana"},
	}
	h.deps = SessionDeps{
		Quizzes:   h.quizzes,
		Questions: h.questions,
		Attempts:  h.attempts,
		Relations: &fakeRelationStore{rolls: map[string]string{"student-1/teacher-1": "R-42"}},
		Gate:      NewMemoryDebounceGate(clock.Now),
		Feed:      h.feed,
		Shuffle:   noShuffle,
		Now:       clock.Now,
	}
	return h
}

func mcqOnly() model.QuestionTypes {
	return model.QuestionTypes{
		model.SectionMCQ:       {Count: 2, TimeLimitMinutes: 1},
		model.SectionTrueFalse: nil,
		model.SectionShort:     nil,
	}
}

func allSections() model.QuestionTypes {
	return model.QuestionTypes{
		model.SectionMCQ:       {Count: 2, TimeLimitMinutes: 10},
		model.SectionTrueFalse: {Count: 2, TimeLimitMinutes: 5},
		model.SectionShort:     {Count: 1, TimeLimitMinutes: 5},
	}
}

func (h *harness) open(t *testing.T, kind model.SectionKind, secret string) *AttemptSession {
	t.Helper()
	sess, err := NewAttemptSession(SessionKey{UserID: h.identity.UserID, QuizID: testQuizID, Kind: kind}, h.identity, h.deps, h.settings)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Open(context.Background(), secret); err != nil {
		t.Fatalf("open %s: %v", kind, err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func (h *harness) makePrivate(t *testing.T, secret string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	q := h.quizzes.quizzes[testQuizID]
	q.Visibility = model.VisibilityPrivate
	q.SecretHash = string(hash)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
