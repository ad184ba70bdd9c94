package repository

import (
	"errors"

	"gorm.io/gorm"

	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

type EvaluationRepository struct {
	DB *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{DB: db}
}

func (r *EvaluationRepository) Create(record *model.EvaluationRecord) error {
	return r.DB.Create(record).Error
}

func (r *EvaluationRepository) FindBySubmission(submissionID string) (*model.EvaluationRecord, error) {
	var rec model.EvaluationRecord
	err := r.DB.First(&rec, "submission_id = ?", submissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEvaluationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
