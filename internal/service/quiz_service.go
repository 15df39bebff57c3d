package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// Caller 发起编辑操作的教师或管理员
type Caller struct {
	UserID string
	Role   model.UserRole
}

type CreateQuizRequest struct {
	Title         string                                     `json:"title" binding:"required,max=255"`
	Description   string                                     `json:"description"`
	Class         string                                     `json:"class" binding:"max=50"`
	Visibility    string                                     `json:"visibility" binding:"required,visibility"`
	SecretCode    string                                     `json:"secretCode" binding:"max=72"`
	Active        *bool                                      `json:"active"`
	Tags          []string                                   `json:"tags"`
	QuestionTypes map[model.SectionKind]*model.SectionConfig `json:"questionTypes" binding:"required"`
}

type QuestionInput struct {
	Kind            string         `json:"kind" binding:"required,sectionkind"`
	Text            string         `json:"text" binding:"required"`
	Options         []model.Option `json:"options"`
	Answer          *bool          `json:"answer"`
	ReferenceAnswer string         `json:"referenceAnswer"`
}

// QuizService 测验与题目的录入，只提供让答题流程能跑起来的最小集合
type QuizService struct {
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
	Storage      *StorageService
}

func NewQuizService(quizRepo *repository.QuizRepository, questionRepo *repository.QuestionRepository, storage *StorageService) *QuizService {
	return &QuizService{QuizRepo: quizRepo, QuestionRepo: questionRepo, Storage: storage}
}

func (s *QuizService) CreateQuiz(ctx context.Context, caller Caller, req CreateQuizRequest) (*model.Quiz, error) {
	types := model.QuestionTypes{}
	for k, cfg := range req.QuestionTypes {
		kind, ok := model.ParseSectionKind(string(k))
		if !ok {
			return nil, fmt.Errorf("%w: %q", util.ErrInvalidKind, k)
		}
		if cfg != nil && (cfg.Count <= 0 || cfg.TimeLimitMinutes <= 0) {
			return nil, fmt.Errorf("%w: section %s needs a positive count and time limit", util.ErrInvalidInput, kind)
		}
		types[kind] = cfg
	}

	quiz := &model.Quiz{
		OwnerID:       caller.UserID,
		Title:         req.Title,
		Description:   req.Description,
		Class:         req.Class,
		Visibility:    req.Visibility,
		Active:        req.Active == nil || *req.Active,
		Tags:          datatypes.NewJSONType(req.Tags),
		QuestionTypes: datatypes.NewJSONType(types),
	}
	if req.SecretCode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.SecretCode), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		quiz.SecretHash = string(hash)
	}
	if err := s.QuizRepo.Create(ctx, quiz); err != nil {
		return nil, err
	}
	logger.Log.Info("Quiz created", zap.String("quizId", quiz.ID), zap.String("ownerId", caller.UserID))
	return quiz, nil
}

func (s *QuizService) ownedQuiz(ctx context.Context, caller Caller, quizID string) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.Admin && quiz.OwnerID != caller.UserID {
		return nil, util.ErrPermissionDenied
	}
	return quiz, nil
}

func (s *QuizService) AddQuestions(ctx context.Context, caller Caller, quizID string, inputs []QuestionInput) (int, error) {
	if _, err := s.ownedQuiz(ctx, caller, quizID); err != nil {
		return 0, err
	}
	questions := make([]model.Question, 0, len(inputs))
	for i, in := range inputs {
		q, err := buildQuestion(quizID, in)
		if err != nil {
			return 0, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	if err := s.QuestionRepo.CreateBatch(ctx, questions); err != nil {
		return 0, err
	}
	return len(questions), nil
}

func buildQuestion(quizID string, in QuestionInput) (model.Question, error) {
	kind, ok := model.ParseSectionKind(in.Kind)
	if !ok {
		return model.Question{}, util.ErrInvalidKind
	}
	if strings.TrimSpace(in.Text) == "" {
		return model.Question{}, fmt.Errorf("%w: text is required", util.ErrInvalidInput)
	}
	q := model.Question{QuizID: quizID, Kind: kind, Text: in.Text}
	switch kind {
	case model.SectionMCQ:
		correct := 0
		for _, o := range in.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if len(in.Options) < 2 || correct != 1 {
			return model.Question{}, fmt.Errorf("%w: multiple choice needs at least two options and exactly one correct option", util.ErrInvalidInput)
		}
		q.Options = datatypes.NewJSONType(in.Options)
	case model.SectionTrueFalse:
		if in.Answer == nil {
			return model.Question{}, fmt.Errorf("%w: true/false question needs an answer", util.ErrInvalidInput)
		}
		answer := *in.Answer
		q.Answer = &answer
	case model.SectionShort:
		q.ReferenceAnswer = in.ReferenceAnswer
	}
	return q, nil
}

// ImportQuestionsCSV 每行 kind,text,options,answer。
// 选择题的 options 用 | 分隔，answer 为正确选项的文本；判断题 answer 为 true/false；
// 简答题 answer 为参考答案。首行为表头时跳过。
func (s *QuizService) ImportQuestionsCSV(ctx context.Context, caller Caller, quizID string, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	var inputs []QuestionInput
	line := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("%w: line %d: %v", util.ErrInvalidInput, line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "kind") {
			continue
		}
		in, err := parseCSVRecord(rec)
		if err == nil {
			_, err = buildQuestion(quizID, in)
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: no questions found in file", util.ErrInvalidInput)
	}
	return s.AddQuestions(ctx, caller, quizID, inputs)
}

func parseCSVRecord(rec []string) (QuestionInput, error) {
	in := QuestionInput{Kind: strings.TrimSpace(rec[0]), Text: strings.TrimSpace(rec[1])}
	kind, ok := model.ParseSectionKind(in.Kind)
	if !ok {
		return in, util.ErrInvalidKind
	}
	answer := strings.TrimSpace(rec[3])
	switch kind {
	case model.SectionMCQ:
		for _, opt := range strings.Split(rec[2], "|") {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				continue
			}
			in.Options = append(in.Options, model.Option{Text: opt, IsCorrect: opt == answer})
		}
	case model.SectionTrueFalse:
		v, ok := util.ParseBoolLoose(answer)
		if !ok {
			return in, fmt.Errorf("%w: invalid true/false answer %q", util.ErrInvalidInput, answer)
		}
		in.Answer = &v
	case model.SectionShort:
		in.ReferenceAnswer = answer
	}
	return in, nil
}

// UploadCover 校验扩展名和文件头后上传，返回封面地址
func (s *QuizService) UploadCover(ctx context.Context, caller Caller, quizID, filename string, file io.ReadSeeker, size int64) (string, error) {
	if _, err := s.ownedQuiz(ctx, caller, quizID); err != nil {
		return "", err
	}
	if size > util.MaxCoverBytes {
		return "", fmt.Errorf("%w: cover exceeds %d bytes", util.ErrInvalidInput, util.MaxCoverBytes)
	}
	if !util.HasAllowedExtension(filename, util.AllowedImageExtensions) {
		return "", fmt.Errorf("%w: unsupported file extension %q", util.ErrInvalidInput, filepath.Ext(filename))
	}
	mimeType, err := util.ValidateMimeType(file, []string{util.MimeImage})
	if err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	key := fmt.Sprintf("covers/%s/%s%s", quizID, model.GenerateUUID(), strings.ToLower(filepath.Ext(filename)))
	url, err := s.Storage.Upload(ctx, key, file, size, mimeType)
	if err != nil {
		return "", err
	}
	if err := s.QuizRepo.UpdateCover(ctx, quizID, url); err != nil {
		return "", err
	}
	return url, nil
}
