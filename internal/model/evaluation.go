package model

import "encoding/json"

// swagger:model EvaluationRecord
type EvaluationRecord struct {
	UUIDBase
	SubmissionID string          `gorm:"uniqueIndex;type:varchar(36)" json:"submissionId"`
	StudentID    uint            `gorm:"index;type:bigint unsigned" json:"studentId"`
	Subject      string          `gorm:"size:100" json:"subject"`
	Result       json.RawMessage `gorm:"type:json" json:"result"`
	Summary      string          `gorm:"type:text" json:"summary"`
	NextAction   string          `gorm:"type:text" json:"nextAction"`
}

func (EvaluationRecord) TableName() string {
	return "evaluation_records"
}

// TopicComparison 单个主题的前后对比
type TopicComparison struct {
	Topic            string  `json:"topic"`
	PreviousAccuracy float64 `json:"previous_accuracy"`
	NewAccuracy      float64 `json:"new_accuracy"`
	Improvement      float64 `json:"improvement"`
	Status           string  `json:"status"`
}

// OverallImprovement 全科整体进步情况
type OverallImprovement struct {
	PreviousAverage float64 `json:"previous_average"`
	NewAverage      float64 `json:"new_average"`
	Improvement     float64 `json:"improvement"`
	Direction       string  `json:"direction"`
}

// ImprovementEvaluation 远程进步评估阶段的结构化结果，生成后不可变
type ImprovementEvaluation struct {
	Subject            string             `json:"subject"`
	Topics             []TopicComparison  `json:"topics"`
	OverallImprovement OverallImprovement `json:"overall_improvement"`
	Summary            string             `json:"summary"`
	NextAction         string             `json:"next_action"`
}
