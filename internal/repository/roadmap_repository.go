package repository

import (
	"errors"

	"gorm.io/gorm"

	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

type RoadmapRepository struct {
	DB *gorm.DB
}

func NewRoadmapRepository(db *gorm.DB) *RoadmapRepository {
	return &RoadmapRepository{DB: db}
}

func (r *RoadmapRepository) Create(record *model.RoadmapRecord) error {
	return r.DB.Create(record).Error
}

func (r *RoadmapRepository) FindByID(id string) (*model.RoadmapRecord, error) {
	var rec model.RoadmapRecord
	err := r.DB.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrRoadmapNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RoadmapRepository) FindLatestByStudent(studentID uint) (*model.RoadmapRecord, error) {
	var rec model.RoadmapRecord
	err := r.DB.Where("student_id = ?", studentID).Order("generated_at desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrRoadmapNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RoadmapRepository) ListByStudent(studentID uint) ([]model.RoadmapRecord, error) {
	var recs []model.RoadmapRecord
	err := r.DB.Where("student_id = ?", studentID).Order("generated_at desc").Find(&recs).Error
	return recs, err
}

// Update 仅用于回写服务端确认后的进度汇总
func (r *RoadmapRepository) Update(record *model.RoadmapRecord) error {
	return r.DB.Save(record).Error
}
