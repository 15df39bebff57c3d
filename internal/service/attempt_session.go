package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"quiz_platform_backend/internal/config"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"
	"quiz_platform_backend/pkg/messaging"
	"quiz_platform_backend/pkg/monitoring"
	"quiz_platform_backend/pkg/tracing"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type SessionState string

const (
	StateUninitialized SessionState = "uninitialized"
	StateLoading       SessionState = "loading"
	StateReady         SessionState = "ready"
	StateSubmitting    SessionState = "submitting"
	StateSubmitted     SessionState = "submitted"
	StateError         SessionState = "error"
)

type SubmitTrigger string

const (
	TriggerManual    SubmitTrigger = "manual"
	TriggerTimeout   SubmitTrigger = "timeout"
	TriggerViolation SubmitTrigger = "violation"
)

type MessageKind string

const (
	MessageError     MessageKind = "error"
	MessageWarning   MessageKind = "warning"
	MessageTransient MessageKind = "transient"
)

// SessionMessage 会话唯一的提示位：配置错误、违规警告、保存失败共用
type SessionMessage struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}

type WarningScope string

const (
	WarningScopeAttempt WarningScope = "attempt"
	WarningScopeSection WarningScope = "section"
)

const (
	finalizeTimeout        = 15 * time.Second
	defaultRetryDelay      = 2 * time.Second
	defaultFinalizeRetries = 3
	saveFailedText         = "Your last change could not be saved. It will be retried with your next action."
	submitPendingText      = "Time is up. Your answers are being submitted."
	violationPendingText   = "Warning limit reached. Your answers are being submitted."
)

type SessionSettings struct {
	TickInterval      time.Duration
	ViolationDebounce time.Duration
	WarningThreshold  int
	WarningScope      WarningScope
	MergeRetries      int
	// 超时或违规收卷失败后的重试间隔（逐次翻倍）和次数，用尽后交给清扫任务
	FinalizeRetryDelay time.Duration
	FinalizeRetries    int
}

func SettingsFromConfig(cfg config.ExamConfig) SessionSettings {
	return SessionSettings{
		TickInterval:       cfg.TickInterval(),
		ViolationDebounce:  cfg.ViolationDebounce(),
		WarningThreshold:   cfg.WarningThreshold,
		WarningScope:       WarningScope(cfg.WarningScope),
		MergeRetries:       cfg.MergeRetries,
		FinalizeRetryDelay: cfg.FinalizeRetryDelay(),
		FinalizeRetries:    cfg.FinalizeRetries,
	}
}

// SubmissionPublisher 分区提交后的下游通知，可为空
type SubmissionPublisher interface {
	PublishSubmission(ctx context.Context, evt messaging.SubmissionEvent) error
}

type SessionDeps struct {
	Quizzes   QuizStore
	Questions QuestionStore
	Attempts  AttemptStore
	Relations RelationStore
	Gate      DebounceGate
	Feed      AttemptFeed
	Events    SubmissionPublisher
	Shuffle   Shuffler
	Now       func() time.Time
}

func (d SessionDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Identity 当前登录用户，只用到 id 和显示名
type Identity struct {
	UserID string
	Name   string
}

type SessionKey struct {
	UserID string
	QuizID string
	Kind   model.SectionKind
}

func (k SessionKey) String() string {
	return k.UserID + ":" + k.QuizID + ":" + string(k.Kind)
}

// QuestionView 当前题目，不包含正确答案
type QuestionView struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

type SessionView struct {
	State          SessionState      `json:"state"`
	Kind           model.SectionKind `json:"kind"`
	QuizID         string            `json:"quizId"`
	AttemptID      string            `json:"attemptId,omitempty"`
	Title          string            `json:"title,omitempty"`
	Count          int               `json:"count"`
	CurrentIdx     int               `json:"currentIdx"`
	Question       *QuestionView     `json:"question,omitempty"`
	Answered       []int             `json:"answered,omitempty"`
	Remaining      int               `json:"remaining"`
	Warnings       int               `json:"warnings"`
	Threshold      int               `json:"threshold"`
	Message        *SessionMessage   `json:"message,omitempty"`
	Redirect       string            `json:"redirect,omitempty"`
	ReleaseHistory bool              `json:"releaseHistory,omitempty"`
	Score          *int              `json:"score,omitempty"`
	Total          *int              `json:"total,omitempty"`
}

// AttemptSession 一个分区的答题状态机，三种题型共用，差异由 SectionStrategy 提供
type AttemptSession struct {
	key      SessionKey
	identity Identity
	deps     SessionDeps
	settings SessionSettings
	strategy SectionStrategy
	agg      *ScoreAggregator
	onFinish func(*AttemptSession)

	mu             sync.Mutex
	state          SessionState
	closed         bool
	live           bool
	message        *SessionMessage
	quiz           *model.Quiz
	cfg            model.SectionConfig
	attempt        *model.Attempt
	snapshot       []model.SnapshotQuestion
	answers        model.Answers
	cursor         int
	warnings       int
	redirect       string
	releaseHistory bool
	timer          *Countdown
	monitor        *ViolationMonitor
	deadline       time.Time
	// unsaved 上一次作答没写进库，之后的每次写入都带上完整作答
	unsaved  bool
	retry    *time.Timer
	failures int
}

func NewAttemptSession(key SessionKey, identity Identity, deps SessionDeps, settings SessionSettings) (*AttemptSession, error) {
	strategy, err := StrategyFor(key.Kind)
	if err != nil {
		return nil, err
	}
	if settings.WarningThreshold <= 0 {
		settings.WarningThreshold = 3
	}
	if settings.FinalizeRetryDelay <= 0 {
		settings.FinalizeRetryDelay = defaultRetryDelay
	}
	if settings.FinalizeRetries <= 0 {
		settings.FinalizeRetries = defaultFinalizeRetries
	}
	return &AttemptSession{
		key:      key,
		identity: identity,
		deps:     deps,
		settings: settings,
		strategy: strategy,
		agg:      NewScoreAggregator(deps.Attempts, settings.MergeRetries),
		state:    StateUninitialized,
		answers:  model.Answers{},
	}, nil
}

func (s *AttemptSession) Key() SessionKey {
	return s.key
}

func (s *AttemptSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open 校验测验配置，恢复或创建答题记录并开始计时。
// 配置错误会让会话进入 error 状态并原样返回错误。
func (s *AttemptSession) Open(ctx context.Context, secretCode string) error {
	ctx, span := tracing.StartSpan(ctx, "AttemptSession.Open")
	defer span.End()
	span.SetAttributes(
		attribute.String("quiz.id", s.key.QuizID),
		attribute.String("section.kind", string(s.key.Kind)),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return util.ErrSessionNotReady
	}
	s.state = StateLoading

	if err := s.bootstrapLocked(ctx, secretCode); err != nil {
		span.RecordError(err)
		s.state = StateError
		kind := MessageTransient
		if util.IsConfigError(err) {
			kind = MessageError
		}
		s.message = &SessionMessage{Kind: kind, Text: configErrorText(err)}
		logger.Log.Info("Section session failed to open",
			zap.String("session", s.key.String()), zap.Error(err))
		return err
	}
	return nil
}

func configErrorText(err error) string {
	switch {
	case errors.Is(err, util.ErrQuizNotFound):
		return "Quiz not found."
	case errors.Is(err, util.ErrQuizInactive):
		return "This quiz is not active."
	case errors.Is(err, util.ErrSecretMismatch):
		return "The secret code is incorrect."
	case errors.Is(err, util.ErrSectionDisabled):
		return "This section is not part of the quiz."
	case errors.Is(err, util.ErrNoQuestions):
		return "This section has no questions yet."
	}
	return "Could not load the quiz. Please try again."
}

func (s *AttemptSession) bootstrapLocked(ctx context.Context, secretCode string) error {
	quiz, err := s.deps.Quizzes.FindByID(ctx, s.key.QuizID)
	if err != nil {
		return err
	}
	if !quiz.Active {
		return util.ErrQuizInactive
	}
	if quiz.HasSecret() {
		if bcrypt.CompareHashAndPassword([]byte(quiz.SecretHash), []byte(secretCode)) != nil {
			return util.ErrSecretMismatch
		}
	}
	cfg, ok := quiz.Section(s.key.Kind)
	if !ok {
		return util.ErrSectionDisabled
	}
	s.quiz = quiz
	s.cfg = *cfg

	attempt, err := s.deps.Attempts.FindByUserAndQuiz(ctx, s.key.UserID, s.key.QuizID)
	switch {
	case errors.Is(err, util.ErrAttemptNotFound):
		attempt, err = s.createAttemptLocked(ctx)
		if errors.Is(err, util.ErrAttemptExists) {
			// 另一个分区同时创建了记录，以它为准
			attempt, err = s.deps.Attempts.FindByUserAndQuiz(ctx, s.key.UserID, s.key.QuizID)
		}
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}

	sec := attempt.Section(s.key.Kind)
	if sec.Submitted {
		s.adoptSubmittedLocked(attempt)
		return nil
	}
	if !sec.Started() {
		attempt, err = s.startSectionLocked(ctx, attempt)
		if err != nil {
			return err
		}
	}
	return s.resumeLocked(ctx, attempt)
}

func (s *AttemptSession) preparePoolLocked(ctx context.Context) (model.SectionRecord, error) {
	questions, err := s.deps.Questions.ListByQuizAndKind(ctx, s.key.QuizID, s.key.Kind)
	if err != nil {
		return model.SectionRecord{}, err
	}
	snapshot, err := SelectPool(questions, s.cfg.Count, s.strategy, s.deps.Shuffle)
	if err != nil {
		return model.SectionRecord{}, err
	}
	return model.NewSectionRecord(snapshot, InitialTotal(s.strategy, len(snapshot), s.cfg.Points()), s.deps.now())
}

func (s *AttemptSession) createAttemptLocked(ctx context.Context) (*model.Attempt, error) {
	rec, err := s.preparePoolLocked(ctx)
	if err != nil {
		return nil, err
	}
	attempt := &model.Attempt{
		UserID:   s.key.UserID,
		QuizID:   s.key.QuizID,
		Username: s.identity.Name,
		OwnerID:  s.quiz.OwnerID,
		Title:    s.quiz.Title,
		Class:    s.quiz.Class,
	}
	if s.deps.Relations != nil && s.quiz.OwnerID != "" {
		roll, err := s.deps.Relations.FindRollNumber(ctx, s.key.UserID, s.quiz.OwnerID)
		if err != nil {
			logger.Log.Warn("Roll number lookup failed", zap.String("userId", s.key.UserID), zap.Error(err))
		}
		attempt.RollNumber = roll
	}
	*attempt.Section(s.key.Kind) = rec

	if err := s.deps.Attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}
	logger.Log.Info("Attempt created",
		zap.String("attemptId", attempt.ID), zap.String("session", s.key.String()))
	s.publishLocked(ctx, EventStarted, attempt)
	return attempt, nil
}

// startSectionLocked 记录已存在但本分区还没开始：写入快照。并发写入时以先写入的为准
func (s *AttemptSession) startSectionLocked(ctx context.Context, attempt *model.Attempt) (*model.Attempt, error) {
	rec, err := s.preparePoolLocked(ctx)
	if err != nil {
		return nil, err
	}
	err = s.deps.Attempts.InitSection(ctx, attempt.ID, s.key.Kind, rec)
	if errors.Is(err, util.ErrSectionAlreadyStarted) {
		return s.deps.Attempts.FindByID(ctx, attempt.ID)
	}
	if err != nil {
		return nil, err
	}
	*attempt.Section(s.key.Kind) = rec
	attempt.Version++
	s.publishLocked(ctx, EventStarted, attempt)
	return attempt, nil
}

func (s *AttemptSession) resumeLocked(ctx context.Context, attempt *model.Attempt) error {
	sec := attempt.Section(s.key.Kind)
	if sec.Submitted {
		s.adoptSubmittedLocked(attempt)
		return nil
	}
	snapshot, err := sec.Snapshot()
	if err != nil {
		return err
	}
	answers, err := sec.AnswerMap()
	if err != nil {
		return err
	}
	s.attempt = attempt
	s.snapshot = snapshot
	s.answers = answers
	s.cursor = clamp(sec.CurrentIdx, 0, len(snapshot)-1)
	s.warnings = attempt.WarningCount
	if s.settings.WarningScope == WarningScopeSection {
		s.warnings = sec.Warnings
	}

	s.deadline = attempt.SectionDeadline(s.key.Kind, s.cfg)
	remaining := s.deadline.Sub(s.deps.now())
	if remaining <= 0 {
		// 超时未归的分区：用已保存的作答直接收卷
		s.state = StateReady
		return s.finalizeLocked(ctx, TriggerTimeout)
	}

	s.state = StateReady
	s.timer = NewCountdown(s.settings.TickInterval, s.onExpire)
	s.timer.Start(int(math.Ceil(remaining.Seconds())))
	s.monitor = NewViolationMonitor(s.key.String(), s.settings.ViolationDebounce, s.deps.Gate, s.onViolation)
	s.live = true
	monitoring.ActiveSessions.Inc()
	return nil
}

// View 当前状态的只读快照
func (s *AttemptSession) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *AttemptSession) viewLocked() SessionView {
	v := SessionView{
		State:          s.state,
		Kind:           s.key.Kind,
		QuizID:         s.key.QuizID,
		Count:          len(s.snapshot),
		CurrentIdx:     s.cursor,
		Warnings:       s.warnings,
		Threshold:      s.settings.WarningThreshold,
		Message:        s.message,
		Redirect:       s.redirect,
		ReleaseHistory: s.releaseHistory,
	}
	if s.quiz != nil {
		v.Title = s.quiz.Title
	}
	if s.attempt != nil {
		v.AttemptID = s.attempt.ID
		if s.state == StateSubmitted {
			sec := s.attempt.Section(s.key.Kind)
			score := sec.Score
			v.Score = &score
			v.Total = sec.Total
		}
	}
	if s.timer != nil {
		v.Remaining = s.timer.Remaining()
	}
	if s.state == StateReady && s.cursor < len(s.snapshot) {
		q := s.snapshot[s.cursor]
		qv := &QuestionView{Index: s.cursor, Text: q.Text, Answer: s.answers[s.cursor]}
		for _, o := range q.Options {
			qv.Options = append(qv.Options, o.Text)
		}
		v.Question = qv
		for i := range s.snapshot {
			if _, ok := s.answers[i]; ok {
				v.Answered = append(v.Answered, i)
			}
		}
	}
	return v
}

func (s *AttemptSession) readyLocked() error {
	if s.closed || s.state != StateReady || len(s.snapshot) == 0 {
		return util.ErrSessionNotReady
	}
	return nil
}

// writableLocked 在 readyLocked 基础上拒绝截止之后的写入，并顺带收卷
func (s *AttemptSession) writableLocked(ctx context.Context) error {
	if err := s.readyLocked(); err != nil {
		return err
	}
	if !s.deadline.IsZero() && !s.deps.now().Before(s.deadline) {
		s.finalizeLocked(ctx, TriggerTimeout)
		return util.ErrSessionNotReady
	}
	return nil
}

// carryAnswersLocked 把完整作答和自动判分的当前得分放进补丁
func (s *AttemptSession) carryAnswersLocked(patch *model.AttemptPatch) {
	sp := patch.Section(s.key.Kind)
	sp.Answers = s.answers.Clone()
	if s.key.Kind.AutoScored() {
		score, _ := ScoreSection(s.strategy, s.snapshot, s.answers, s.cfg.Points())
		sp.Score = &score
	}
}

// Answer 记录当前题目的作答并立即写库，自动判分的题型同时写入当前得分
func (s *AttemptSession) Answer(ctx context.Context, value string) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(ctx); err != nil {
		return s.viewLocked(), err
	}
	if err := s.strategy.ValidateAnswer(s.snapshot[s.cursor], value); err != nil {
		return s.viewLocked(), err
	}
	s.answers[s.cursor] = value

	var patch model.AttemptPatch
	s.carryAnswersLocked(&patch)
	s.persistLocked(ctx, "answer", EventProgress, patch)
	return s.viewLocked(), nil
}

func (s *AttemptSession) Next(ctx context.Context) (SessionView, error) {
	return s.move(ctx, 1)
}

func (s *AttemptSession) Previous(ctx context.Context) (SessionView, error) {
	return s.move(ctx, -1)
}

func (s *AttemptSession) move(ctx context.Context, delta int) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(ctx); err != nil {
		return s.viewLocked(), err
	}
	next := clamp(s.cursor+delta, 0, len(s.snapshot)-1)
	if next == s.cursor {
		return s.viewLocked(), nil
	}
	s.cursor = next

	var patch model.AttemptPatch
	patch.Section(s.key.Kind).CurrentIdx = &next
	s.persistLocked(ctx, "navigate", EventProgress, patch)
	return s.viewLocked(), nil
}

// Submit 交卷。已经提交过的会话直接返回当前视图
func (s *AttemptSession) Submit(ctx context.Context, trigger SubmitTrigger) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitted {
		return s.viewLocked(), nil
	}
	if err := s.readyLocked(); err != nil {
		return s.viewLocked(), err
	}
	if trigger == TriggerManual && !s.deadline.IsZero() && !s.deps.now().Before(s.deadline) {
		trigger = TriggerTimeout
	}
	err := s.finalizeLocked(ctx, trigger)
	return s.viewLocked(), err
}

// ViolationOutcome 违规上报的结果：监控层的处理 + 会话最新视图
type ViolationOutcome struct {
	Observation
	View SessionView `json:"view"`
}

// ReportViolation 转交给监控做防抖，通过防抖的违规由 onViolation 计数
func (s *AttemptSession) ReportViolation(ctx context.Context, signal ViolationSignal) (ViolationOutcome, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return ViolationOutcome{View: v}, err
	}
	mon := s.monitor
	s.mu.Unlock()

	obs := mon.Observe(ctx, signal)
	return ViolationOutcome{Observation: obs, View: s.View()}, nil
}

func (s *AttemptSession) onViolation(ctx context.Context, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writableLocked(ctx) != nil {
		return
	}
	s.warnings++
	s.message = &SessionMessage{
		Kind: MessageWarning,
		Text: fmt.Sprintf("Don't %s! Warning %d/%d", reason, s.warnings, s.settings.WarningThreshold),
	}

	var patch model.AttemptPatch
	count := s.warnings
	if s.settings.WarningScope == WarningScopeSection {
		patch.Section(s.key.Kind).Warnings = &count
	} else {
		patch.WarningCount = &count
	}
	s.persistLocked(ctx, "violation", EventWarning, patch)

	logger.Log.Info("Violation counted",
		zap.String("session", s.key.String()), zap.String("reason", reason), zap.Int("warnings", s.warnings))

	if s.state == StateReady && s.warnings >= s.settings.WarningThreshold {
		if err := s.finalizeLocked(ctx, TriggerViolation); err != nil {
			logger.Log.Error("Violation submit failed", zap.String("session", s.key.String()), zap.Error(err))
		}
	}
}

func (s *AttemptSession) onExpire() {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readyLocked() != nil {
		return
	}
	if err := s.finalizeLocked(ctx, TriggerTimeout); err != nil {
		logger.Log.Error("Timeout submit failed", zap.String("session", s.key.String()), zap.Error(err))
	}
}

// persistLocked 进度写入失败不影响本地状态，只给出提示，下一次操作会带上完整数据重写
func (s *AttemptSession) persistLocked(ctx context.Context, op, eventType string, patch model.AttemptPatch) {
	if s.unsaved {
		s.carryAnswersLocked(&patch)
	}
	err := s.deps.Attempts.ApplyPatch(ctx, s.attempt.ID, patch)
	if errors.Is(err, util.ErrSectionSubmitted) {
		// 分区已在别处收卷（超时清扫或另一个页面），以库中结果为准
		if fresh, ferr := s.deps.Attempts.FindByID(ctx, s.attempt.ID); ferr == nil {
			s.adoptSubmittedLocked(fresh)
			return
		}
	}
	if err != nil {
		monitoring.PersistFailures.WithLabelValues(op).Inc()
		logger.Log.Warn("Attempt write failed",
			zap.String("attemptId", s.attempt.ID), zap.String("op", op), zap.Error(err))
		if sp, ok := patch.Sections[s.key.Kind]; ok && sp.Answers != nil {
			s.unsaved = true
		}
		if s.message == nil || s.message.Kind != MessageWarning {
			s.message = &SessionMessage{Kind: MessageTransient, Text: saveFailedText}
		}
		return
	}

	s.unsaved = false
	if s.message != nil && s.message.Kind == MessageTransient {
		s.message = nil
	}
	if err := patch.Apply(s.attempt); err == nil {
		s.attempt.Version++
	}
	s.publishLocked(ctx, eventType, s.attempt)
}

// finalizeLocked 判分并合并进答题记录。手动交卷失败时回到 ready；
// 超时和违规收卷失败时停在 submitting，不再接受作答，由 retryFinalize 重试
func (s *AttemptSession) finalizeLocked(ctx context.Context, trigger SubmitTrigger) error {
	s.state = StateSubmitting
	attempt, already, err := s.agg.FinalizeSection(ctx, s.attempt.ID, Finalization{
		Kind:     s.key.Kind,
		Strategy: s.strategy,
		Points:   s.cfg.Points(),
		Answers:  s.answers,
		At:       s.deps.now(),
	})
	if err != nil {
		monitoring.PersistFailures.WithLabelValues("finalize").Inc()
		logger.Log.Error("Section finalize failed",
			zap.String("attemptId", s.attempt.ID), zap.String("trigger", string(trigger)), zap.Error(err))
		if trigger == TriggerManual {
			s.state = StateReady
			s.message = &SessionMessage{Kind: MessageTransient, Text: "Submission failed. Please try again."}
			return err
		}
		s.scheduleRetryLocked(trigger)
		return err
	}

	s.adoptSubmittedLocked(attempt)
	s.message = nil
	if already {
		return nil
	}

	monitoring.SectionSubmissions.WithLabelValues(string(s.key.Kind), string(trigger)).Inc()
	logger.Log.Info("Section submitted",
		zap.String("attemptId", attempt.ID),
		zap.String("kind", string(s.key.Kind)),
		zap.String("trigger", string(trigger)),
		zap.Float64("percentage", attempt.Percentage))
	s.publishLocked(ctx, EventSubmitted, attempt)
	s.notifySubmissionLocked(ctx, attempt, trigger)
	return nil
}

// scheduleRetryLocked 按翻倍间隔重试收卷，次数用尽后从登记表移除，由清扫任务用已保存的作答收卷
func (s *AttemptSession) scheduleRetryLocked(trigger SubmitTrigger) {
	s.stopLocked()
	text := submitPendingText
	if trigger == TriggerViolation {
		text = violationPendingText
	}
	s.message = &SessionMessage{Kind: MessageTransient, Text: text}
	s.failures++
	if s.closed || s.failures > s.settings.FinalizeRetries {
		logger.Log.Warn("Handing section over to the overdue sweeper",
			zap.String("session", s.key.String()), zap.Int("failures", s.failures))
		if s.onFinish != nil {
			s.onFinish(s)
		}
		return
	}
	delay := s.settings.FinalizeRetryDelay << (s.failures - 1)
	s.retry = time.AfterFunc(delay, func() { s.retryFinalize(trigger) })
}

func (s *AttemptSession) retryFinalize(trigger SubmitTrigger) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateSubmitting {
		return
	}
	s.finalizeLocked(ctx, trigger)
}

// adoptSubmittedLocked 进入终态：停表、卸下监控、指向分区选择页
func (s *AttemptSession) adoptSubmittedLocked(attempt *model.Attempt) {
	s.stopLocked()
	s.attempt = attempt
	s.state = StateSubmitted
	s.redirect = model.LauncherRoute(s.key.QuizID)
	if snapshot, err := attempt.Section(s.key.Kind).Snapshot(); err == nil {
		s.snapshot = snapshot
	}
	if s.onFinish != nil {
		s.onFinish(s)
	}
}

func (s *AttemptSession) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.monitor != nil && s.monitor.Detach() {
		s.releaseHistory = true
	}
	if s.live {
		s.live = false
		monitoring.ActiveSessions.Dec()
	}
}

// Close 页面卸载：停表并卸下监控，答题记录保持可恢复
func (s *AttemptSession) Close() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.closed = true
	return s.viewLocked()
}

func (s *AttemptSession) publishLocked(ctx context.Context, eventType string, attempt *model.Attempt) {
	if s.deps.Feed == nil {
		return
	}
	evt := eventFromAttempt(eventType, attempt, s.key.Kind, s.deps.now())
	if err := s.deps.Feed.Publish(ctx, evt); err != nil {
		logger.Log.Warn("Attempt event publish failed", zap.String("attemptId", attempt.ID), zap.Error(err))
	}
}

func (s *AttemptSession) notifySubmissionLocked(ctx context.Context, attempt *model.Attempt, trigger SubmitTrigger) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.PublishSubmission(ctx, SubmissionEventFor(attempt, s.key.Kind, string(trigger))); err != nil {
		logger.Log.Warn("Submission event publish failed", zap.String("attemptId", attempt.ID), zap.Error(err))
	}
}

// SubmissionEventFor 也被超时清扫复用
func SubmissionEventFor(attempt *model.Attempt, kind model.SectionKind, trigger string) messaging.SubmissionEvent {
	sec := attempt.Section(kind)
	evt := messaging.SubmissionEvent{
		AttemptID:    attempt.ID,
		UserID:       attempt.UserID,
		QuizID:       attempt.QuizID,
		OwnerID:      attempt.OwnerID,
		Kind:         string(kind),
		Trigger:      trigger,
		Score:        sec.Score,
		Percentage:   attempt.Percentage,
		NeedsGrading: !kind.AutoScored(),
	}
	if sec.Total != nil {
		evt.Total = *sec.Total
	}
	if sec.SubmittedAt != nil {
		evt.SubmittedAt = *sec.SubmittedAt
	}
	return evt
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
