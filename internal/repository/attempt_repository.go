package repository

import (
	"context"
	"errors"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.WithContext(ctx).First(&attempt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindByUserAndQuiz(ctx context.Context, userID, quizID string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Create 插入新的答题记录，start_time 由数据库写入时生成
func (r *AttemptRepository) Create(ctx context.Context, attempt *model.Attempt) error {
	err := r.DB.WithContext(ctx).Create(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrAttemptExists
	}
	return err
}

// InitSection 写入分区的题目快照，只在快照为空时生效
func (r *AttemptRepository) InitSection(ctx context.Context, id string, kind model.SectionKind, rec model.SectionRecord) error {
	prefix := kind.ColumnPrefix()
	cols := map[string]interface{}{
		prefix + "questions":   rec.Questions,
		prefix + "answers":     rec.Answers,
		prefix + "current_idx": 0,
		prefix + "submitted":   false,
		prefix + "score":       0,
		prefix + "total":       rec.Total,
		prefix + "warnings":    0,
		prefix + "started_at":  rec.StartedAt,
		"version":              gorm.Expr("version + ?", 1),
	}
	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ?", id).
		Where(prefix + "questions IS NULL").
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return util.ErrSectionAlreadyStarted
	}
	return nil
}

// ApplyPatch 只更新补丁里的列。补丁涉及但未修改提交标记的分区必须仍未提交
func (r *AttemptRepository) ApplyPatch(ctx context.Context, id string, patch model.AttemptPatch) error {
	cols, err := patch.Columns()
	if err != nil {
		return err
	}
	cols["version"] = gorm.Expr("version + ?", 1)

	q := r.DB.WithContext(ctx).Model(&model.Attempt{}).Where("id = ?", id)
	for _, kind := range patch.GuardedSections() {
		q = q.Where(kind.ColumnPrefix()+"submitted = ?", false)
	}
	res := q.Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return util.ErrSectionSubmitted
	}
	return nil
}

// CompareAndPatch 版本号一致时才写入，否则返回 ErrWriteConflict
func (r *AttemptRepository) CompareAndPatch(ctx context.Context, id string, version int, patch model.AttemptPatch) error {
	cols, err := patch.Columns()
	if err != nil {
		return err
	}
	cols["version"] = gorm.Expr("version + ?", 1)

	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND version = ?", id, version).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return util.ErrWriteConflict
	}
	return nil
}

// ListInProgress 存在已开始但未提交分区的记录，按开始时间排序
func (r *AttemptRepository) ListInProgress(ctx context.Context, startedBefore time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	q := r.DB.WithContext(ctx).Where("start_time < ?", startedBefore)
	cond := r.DB.Session(&gorm.Session{NewDB: true})
	for i, kind := range model.SectionKinds {
		prefix := kind.ColumnPrefix()
		clause := prefix + "questions IS NOT NULL AND " + prefix + "submitted = ?"
		if i == 0 {
			cond = cond.Where(clause, false)
		} else {
			cond = cond.Or(clause, false)
		}
	}
	err := q.Where(cond).Order("start_time asc").Limit(limit).Find(&attempts).Error
	return attempts, err
}

// ListByQuiz 教师查看某个测验的全部答题记录
func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID string, page, size int) ([]model.Attempt, int64, error) {
	var (
		attempts []model.Attempt
		total    int64
	)
	q := r.DB.WithContext(ctx).Model(&model.Attempt{}).Where("quiz_id = ?", quizID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("start_time desc").Offset((page - 1) * size).Limit(size).Find(&attempts).Error
	return attempts, total, err
}
