package repository

import (
	"context"
	"quiz_platform_backend/internal/model"

	"gorm.io/gorm"
)

type RelationRepository struct {
	DB *gorm.DB
}

func NewRelationRepository(db *gorm.DB) *RelationRepository {
	return &RelationRepository{DB: db}
}

// FindRollNumber 查不到时返回空串
func (r *RelationRepository) FindRollNumber(ctx context.Context, studentID, ownerID string) (string, error) {
	var rel model.Relation
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND owner_id = ?", studentID, ownerID).
		Limit(1).
		Find(&rel).Error
	if err != nil {
		return "", err
	}
	return rel.RollNumber, nil
}
