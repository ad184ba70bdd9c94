package repository

import (
	"errors"

	"gorm.io/gorm"

	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Create(submission *model.Submission) error {
	return r.DB.Create(submission).Error
}

func (r *SubmissionRepository) FindByID(id string) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.Preload("Answers").First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) ListByStudent(studentID uint, page, limit int) ([]model.Submission, int64, error) {
	var subs []model.Submission
	var total int64
	query := r.DB.Model(&model.Submission{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&subs).Error
	return subs, total, err
}

// IsEvaluated 幂等守卫：在任何远程调用前检查
func (r *SubmissionRepository) IsEvaluated(id string) (bool, error) {
	var s model.Submission
	err := r.DB.Select("evaluated").First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, util.ErrSubmissionNotFound
	}
	if err != nil {
		return false, err
	}
	return s.Evaluated, nil
}

// MarkEvaluated 唯一一次显式置位，之后的评估请求会被调用层拒绝
func (r *SubmissionRepository) MarkEvaluated(id string) error {
	return r.DB.Model(&model.Submission{}).Where("id = ?", id).Update("evaluated", true).Error
}
