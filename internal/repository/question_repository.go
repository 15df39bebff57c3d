package repository

import (
	"context"
	"quiz_platform_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).CreateInBatches(&questions, 100).Error
}

// ListByQuizAndKind 某个测验某个题型的全部题目，顺序无意义（抽题时会打乱）
func (r *QuestionRepository) ListByQuizAndKind(ctx context.Context, quizID string, kind model.SectionKind) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ? AND kind = ?", quizID, kind).
		Order("created_at asc").
		Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) CountByQuiz(ctx context.Context, quizID string) (map[model.SectionKind]int64, error) {
	var rows []struct {
		Kind  model.SectionKind
		Count int64
	}
	err := r.DB.WithContext(ctx).Model(&model.Question{}).
		Select("kind, COUNT(*) as count").
		Where("quiz_id = ?", quizID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.SectionKind]int64, len(rows))
	for _, row := range rows {
		out[row.Kind] = row.Count
	}
	return out, nil
}
