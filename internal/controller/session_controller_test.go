package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"quiz_platform_backend/internal/middleware"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "controller-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	quizID  string
	token   string
	answers map[string]string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "quiz.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&model.Quiz{}, &model.Question{}, &model.Attempt{}, &model.Relation{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	ctx := context.Background()

	quizRepo := repository.NewQuizRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	relationRepo := repository.NewRelationRepository(db)

	quiz := &model.Quiz{
		OwnerID:    "teacher-1",
		Title:      "Arithmetic",
		Visibility: model.VisibilityPublic,
		Active:     true,
		QuestionTypes: datatypes.NewJSONType(model.QuestionTypes{
			model.SectionMCQ:       {Count: 2, TimeLimitMinutes: 5},
			model.SectionTrueFalse: nil,
			model.SectionShort:     nil,
		}),
	}
	if err := quizRepo.Create(ctx, quiz); err != nil {
		t.Fatal(err)
	}
	questions := []model.Question{
		{QuizID: quiz.ID, Kind: model.SectionMCQ, Text: "2+2?",
			Options: datatypes.NewJSONType([]model.Option{{Text: "4", IsCorrect: true}, {Text: "5"}})},
		{QuizID: quiz.ID, Kind: model.SectionMCQ, Text: "3+3?",
			Options: datatypes.NewJSONType([]model.Option{{Text: "7"}, {Text: "6", IsCorrect: true}})},
	}
	if err := questionRepo.CreateBatch(ctx, questions); err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&model.Relation{StudentID: "student-1", OwnerID: "teacher-1", RollNumber: "R-42"}).Error; err != nil {
		t.Fatal(err)
	}

	deps := service.SessionDeps{
		Quizzes:   quizRepo,
		Questions: questionRepo,
		Attempts:  attemptRepo,
		Relations: relationRepo,
		Gate:      service.NewMemoryDebounceGate(time.Now),
		Feed:      service.NewMemoryAttemptFeed(),
		Shuffle:   func(n int, swap func(i, j int)) {},
	}
	sessions := service.NewSessionManager(deps, service.SessionSettings{
		TickInterval:      time.Second,
		ViolationDebounce: time.Minute,
		WarningThreshold:  3,
		WarningScope:      service.WarningScopeAttempt,
		MergeRetries:      1,
	})
	t.Cleanup(sessions.CloseAll)

	launcher := service.NewSectionLauncher(quizRepo, attemptRepo, sessions)
	sessionCtl := NewSessionController(launcher, sessions)
	launcherCtl := NewLauncherController(launcher)
	resultCtl := NewResultController(service.NewResultService(quizRepo, attemptRepo))

	r := gin.New()
	api := r.Group("/api", middleware.AuthMiddleware(testSecret))
	api.GET("/quizzes/:quizId/sections", launcherCtl.Sections)
	api.GET("/quizzes/:quizId/result", resultCtl.MyResult)
	sec := api.Group("/quizzes/:quizId/sections/:kind/session")
	sec.POST("", sessionCtl.Enter)
	sec.GET("", sessionCtl.Get)
	sec.DELETE("", sessionCtl.Leave)
	sec.PUT("/answer", sessionCtl.Answer)
	sec.POST("/next", sessionCtl.Next)
	sec.POST("/previous", sessionCtl.Previous)
	sec.POST("/submit", sessionCtl.Submit)
	sec.POST("/violations", sessionCtl.ReportViolation)

	token, err := util.GenerateJWT("student-1", "Ana", "ana@example.com", model.Student, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{
		router:  r,
		db:      db,
		quizID:  quiz.ID,
		token:   token,
		answers: map[string]string{"2+2?": "4", "3+3?": "6"},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad body %q", method, path, w.Body.String())
	}
	return w.Code, env
}

func decodeView(t *testing.T, env envelope) service.SessionView {
	t.Helper()
	var v service.SessionView
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, env.Data)
	}
	return v
}

func (s *testServer) sessionPath(kind string) string {
	return "/api/quizzes/" + s.quizID + "/sections/" + kind + "/session"
}

func TestSessionFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	base := s.sessionPath("mcq")

	code, env := s.do(t, http.MethodGet, "/api/quizzes/"+s.quizID+"/sections", nil)
	if code != http.StatusOK {
		t.Fatalf("sections: %d %s", code, env.Message)
	}
	var launcher service.LauncherView
	if err := json.Unmarshal(env.Data, &launcher); err != nil {
		t.Fatal(err)
	}
	if len(launcher.Sections) != 1 || launcher.Sections[0].Status != service.StatusNotStarted {
		t.Fatalf("unexpected launcher view %+v", launcher)
	}

	code, env = s.do(t, http.MethodPost, base, nil)
	if code != http.StatusOK {
		t.Fatalf("enter: %d %s", code, env.Message)
	}
	view := decodeView(t, env)
	if view.State != service.StateReady || view.Count != 2 || view.Question == nil {
		t.Fatalf("unexpected view after enter %+v", view)
	}

	code, _ = s.do(t, http.MethodPut, base+"/answer", AnswerRequest{Answer: "not an option"})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid answer should be rejected, got %d", code)
	}

	for i := 0; i < 2; i++ {
		code, env = s.do(t, http.MethodGet, base, nil)
		if code != http.StatusOK {
			t.Fatalf("get: %d", code)
		}
		cur := decodeView(t, env)
		code, env = s.do(t, http.MethodPut, base+"/answer", AnswerRequest{Answer: s.answers[cur.Question.Text]})
		if code != http.StatusOK {
			t.Fatalf("answer: %d %s", code, env.Message)
		}
		if i == 0 {
			code, env = s.do(t, http.MethodPost, base+"/next", nil)
			if decodeView(t, env).CurrentIdx != 1 {
				t.Fatalf("next did not advance: %s", env.Data)
			}
		}
	}

	code, env = s.do(t, http.MethodPost, base+"/submit", nil)
	if code != http.StatusOK {
		t.Fatalf("submit: %d %s", code, env.Message)
	}
	view = decodeView(t, env)
	if view.State != service.StateSubmitted || view.Score == nil || *view.Score != 2 || view.Total == nil || *view.Total != 2 {
		t.Fatalf("unexpected view after submit %+v", view)
	}
	if view.Redirect != model.LauncherRoute(s.quizID) {
		t.Fatalf("redirect = %q", view.Redirect)
	}

	code, _ = s.do(t, http.MethodGet, base, nil)
	if code != http.StatusNotFound {
		t.Fatalf("finished session should be released, got %d", code)
	}

	code, env = s.do(t, http.MethodGet, "/api/quizzes/"+s.quizID+"/result", nil)
	if code != http.StatusOK {
		t.Fatalf("result: %d %s", code, env.Message)
	}
	var sum service.ResultSummary
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Overall.Percentage != 100 || !sum.Complete || sum.RollNumber != "R-42" {
		t.Fatalf("unexpected result %+v", sum)
	}
}

func TestSessionErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, s.sessionPath("essay"), nil)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown kind: got %d", code)
	}

	code, env := s.do(t, http.MethodPost, s.sessionPath("short"), nil)
	if code != http.StatusForbidden {
		t.Fatalf("disabled section: got %d", code)
	}
	if v := decodeView(t, env); v.State != service.StateError || v.Message == nil {
		t.Fatalf("disabled section should carry an error message: %+v", v)
	}

	code, _ = s.do(t, http.MethodGet, s.sessionPath("mcq"), nil)
	if code != http.StatusNotFound {
		t.Fatalf("no session yet: got %d", code)
	}

	code, _ = s.do(t, http.MethodPost, "/api/quizzes/missing/sections/mcq/session", nil)
	if code != http.StatusNotFound {
		t.Fatalf("missing quiz: got %d", code)
	}

	s.do(t, http.MethodPost, s.sessionPath("mcq"), nil)
	code, _ = s.do(t, http.MethodPost, s.sessionPath("mcq")+"/violations", ViolationRequest{Signal: "screenshot"})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown signal: got %d", code)
	}
	code, env = s.do(t, http.MethodPost, s.sessionPath("mcq")+"/violations", ViolationRequest{Signal: "window_blur"})
	if code != http.StatusOK {
		t.Fatalf("violation: %d %s", code, env.Message)
	}
	var out service.ViolationOutcome
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Reported || out.View.Warnings != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}

	code, _ = s.do(t, http.MethodDelete, s.sessionPath("mcq"), nil)
	if code != http.StatusOK {
		t.Fatalf("leave: got %d", code)
	}

	s.token = ""
	code, _ = s.do(t, http.MethodGet, "/api/quizzes/"+s.quizID+"/sections", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", code)
	}
}
