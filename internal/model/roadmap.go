package model

import (
	"encoding/json"
	"time"
)

// TaskType 路线图任务类型
type TaskType string

const (
	TaskLearn    TaskType = "learn"
	TaskPractice TaskType = "practice"
	TaskReview   TaskType = "review"
	TaskAssess   TaskType = "assess"
)

// PracticeQuestion 任务附带的练习题
type PracticeQuestion struct {
	QuestionID string   `json:"question_id"`
	Question   string   `json:"question"`
	Options    []string `json:"options,omitempty"`
	Answer     string   `json:"answer,omitempty"`
}

// LearningContent 任务附带的学习材料
type LearningContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RoadmapTask 路线图内的单个任务，完成状态是唯一可变字段
type RoadmapTask struct {
	ID                string             `json:"task_id"`
	Type              TaskType           `json:"type"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	PracticeQuestions []PracticeQuestion `json:"practice_questions,omitempty"`
	LearningContent   *LearningContent   `json:"learning_content,omitempty"`
	Completed         bool               `json:"completed"`
}

type RoadmapDay struct {
	Day   int           `json:"day"`
	Tasks []RoadmapTask `json:"tasks"`
}

type RoadmapPhase struct {
	Name     string       `json:"phase_name"`
	Priority string       `json:"priority"`
	Duration string       `json:"duration"`
	Days     []RoadmapDay `json:"days"`
}

// ProgressTracking 路线图完成度汇总
type ProgressTracking struct {
	CompletionPercent float64 `json:"completion_percent"`
	CompletedPhases   int     `json:"completed_phases"`
	TotalPhases       int     `json:"total_phases"`
}

// Roadmap 远程生成的个性化学习路线图
type Roadmap struct {
	Subject                 string           `json:"subject"`
	OverallGoal             string           `json:"overall_goal"`
	EstimatedCompletionDays int              `json:"estimated_completion_days"`
	Phases                  []RoadmapPhase   `json:"phases"`
	MotivationalTips        []string         `json:"motivational_tips,omitempty"`
	AdaptiveHints           []string         `json:"adaptive_hints,omitempty"`
	ProgressTracking        ProgressTracking `json:"progress_tracking"`
}

// swagger:model RoadmapRecord
type RoadmapRecord struct {
	UUIDBase
	StudentID        uint            `gorm:"index;type:bigint unsigned" json:"studentId"`
	SubmissionID     string          `gorm:"index;type:varchar(36)" json:"submissionId"`
	Subject          string          `gorm:"size:100" json:"subject"`
	DetailedAnalysis json.RawMessage `gorm:"type:json" json:"detailedAnalysis"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}

func (RoadmapRecord) TableName() string {
	return "roadmap_records"
}

// Decode 解析已存储的路线图 JSON
func (r *RoadmapRecord) Decode() (*Roadmap, error) {
	var rm Roadmap
	if err := json.Unmarshal(r.DetailedAnalysis, &rm); err != nil {
		return nil, err
	}
	return &rm, nil
}
