package model

import "encoding/json"

// PerformanceLevel 成绩等级
type PerformanceLevel string

const (
	PerformanceExcellent        PerformanceLevel = "EXCELLENT"
	PerformanceGood             PerformanceLevel = "GOOD"
	PerformanceAverage          PerformanceLevel = "AVERAGE"
	PerformanceNeedsImprovement PerformanceLevel = "NEEDS_IMPROVEMENT"
	PerformancePoor             PerformanceLevel = "POOR"
)

// PerformanceLevelFor 按正确率划分成绩等级
func PerformanceLevelFor(correctCount, totalQuestions int) PerformanceLevel {
	if totalQuestions <= 0 {
		return PerformancePoor
	}
	ratio := float64(correctCount) / float64(totalQuestions)
	switch {
	case ratio >= 0.9:
		return PerformanceExcellent
	case ratio >= 0.75:
		return PerformanceGood
	case ratio >= 0.6:
		return PerformanceAverage
	case ratio >= 0.4:
		return PerformanceNeedsImprovement
	default:
		return PerformancePoor
	}
}

// swagger:model Submission
type Submission struct {
	UUIDBase
	StudentID        uint             `gorm:"index;type:bigint unsigned" json:"studentId"`
	AssessmentID     string           `gorm:"index;type:varchar(36)" json:"assessmentId"`
	Subject          string           `gorm:"size:100;not null" json:"subject"`
	Answers          []Answer         `gorm:"foreignKey:SubmissionID" json:"answers,omitempty"`
	TimeTakenSeconds int              `gorm:"default:0" json:"timeTakenSeconds"`
	Score            int              `gorm:"default:0" json:"score"`
	CorrectCount     int              `gorm:"default:0" json:"correctCount"`
	TotalQuestions   int              `gorm:"default:0" json:"totalQuestions"`
	Performance      PerformanceLevel `gorm:"size:20" json:"performance"`
	Evaluated        bool             `gorm:"default:false" json:"evaluated"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Answer 提交内的单题作答记录，归属唯一一次提交
type Answer struct {
	BaseModel
	SubmissionID string          `gorm:"index;type:varchar(36)" json:"submissionId"`
	QuestionID   string          `gorm:"size:64" json:"questionId"`
	Topic        string          `gorm:"size:100" json:"topic"`
	Question     string          `gorm:"type:text" json:"question"`
	Options      json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	ChosenIndex  int             `gorm:"default:-1" json:"chosenIndex"`
	CorrectIndex int             `gorm:"default:-1" json:"correctIndex"`
	IsCorrect    bool            `gorm:"default:false" json:"isCorrect"`
	Difficulty   string          `gorm:"size:20" json:"difficulty"`
}

func (Answer) TableName() string {
	return "submission_answers"
}

// TopicStat 单次提交内某知识主题的正确率统计（派生数据，不入库）
type TopicStat struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// TopicResult 远程分析接口使用的主题-正确率记录
type TopicResult struct {
	Topic    string  `json:"topic"`
	Accuracy float64 `json:"accuracy"`
}
