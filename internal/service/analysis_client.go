package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"school_edu_backend/internal/config"
	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

// AnalysisService 封装远程多阶段分析服务的 REST 调用。
// 所有响应都是 {success, data} 信封，字段校验收敛在这一层，
// 上层组件拿到的是结构化结果，不再做字段存在性判断。
type AnalysisService struct {
	config config.AnalysisConfig
	client *http.Client
}

func NewAnalysisService(cfg config.AnalysisConfig) *AnalysisService {
	return &AnalysisService{
		config: cfg,
		client: &http.Client{},
	}
}

type analysisEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// FeedbackQuestion 第一层反馈请求中的题目记录
type FeedbackQuestion struct {
	QuestionID         string   `json:"question_id"`
	Topic              string   `json:"topic"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
	StudentAnswerIndex int      `json:"student_answer_index"`
}

type FeedbackRequest struct {
	SubmissionID string             `json:"submission_id"`
	AssessmentID string             `json:"assessment_id"`
	StudentName  string             `json:"student_name"`
	Subject      string             `json:"subject"`
	Questions    []FeedbackQuestion `json:"questions"`
}

type FeedbackItem struct {
	QuestionID      string `json:"question_id"`
	Topic           string `json:"topic"`
	Subtopic        string `json:"subtopic,omitempty"`
	IsCorrect       bool   `json:"is_correct"`
	StudentAnswer   string `json:"student_answer"`
	CorrectAnswer   string `json:"correct_answer"`
	Explanation     string `json:"explanation"`
	DifficultyLevel string `json:"difficulty_level"`
}

type FeedbackSummary struct {
	TotalQuestions     int     `json:"total_questions"`
	CorrectCount       int     `json:"correct_count"`
	AccuracyPercentage float64 `json:"accuracy_percentage"`
}

type FeedbackData struct {
	Feedback []FeedbackItem  `json:"feedback"`
	Summary  FeedbackSummary `json:"summary"`
}

type RecommendationRequest struct {
	SubmissionID string        `json:"submission_id"`
	FeedbackData *FeedbackData `json:"feedback_data"`
}

type TopicRecommendation struct {
	StudyFocus         string `json:"study_focus"`
	PracticeSuggestion string `json:"practice_suggestion"`
	ResourceHint       string `json:"resource_hint"`
}

type WeakTopic struct {
	Topic          string              `json:"topic"`
	Percentage     float64             `json:"percentage"`
	Recommendation TopicRecommendation `json:"recommendation"`
}

type RecommendationData struct {
	OverallAdvice string      `json:"overall_advice"`
	WeakTopics    []WeakTopic `json:"weak_topics"`
	LearningPath  []string    `json:"learning_path,omitempty"`
	StudyTips     []string    `json:"study_tips,omitempty"`
}

type ImprovementRequest struct {
	SubmissionID    string              `json:"submission_id"`
	StudentID       uint                `json:"student_id"`
	Subject         string              `json:"subject"`
	PreviousResults []model.TopicResult `json:"previous_results"`
	NewResults      []model.TopicResult `json:"new_results"`
}

type RoadmapRequest struct {
	SubmissionID        string                       `json:"submission_id"`
	StudentID           uint                         `json:"student_id"`
	Subject             string                       `json:"subject"`
	EvaluationData      *model.ImprovementEvaluation `json:"evaluation_data"`
	IncorrectQuestions  []IncorrectQuestion          `json:"incorrect_questions"`
	LearningStyle       string                       `json:"learning_style"`
	AvailableTimePerDay int                          `json:"available_time_per_day"`
}

type TaskCompletionRequest struct {
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"`
}

type TaskCompletionData struct {
	ProgressTracking model.ProgressTracking `json:"progress_tracking"`
}

// Feedback 第一层：逐题反馈
func (s *AnalysisService) Feedback(ctx context.Context, req FeedbackRequest) (*FeedbackData, error) {
	var data FeedbackData
	if err := s.post(ctx, "/analysis/feedback", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Recommendation 第二层：基于反馈的学习建议，请求体内嵌第一层输出
func (s *AnalysisService) Recommendation(ctx context.Context, req RecommendationRequest) (*RecommendationData, error) {
	var data RecommendationData
	if err := s.post(ctx, "/analysis/recommendation", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// EvaluateImprovement 第四层：前后两组主题正确率的进步评估
func (s *AnalysisService) EvaluateImprovement(ctx context.Context, req ImprovementRequest) (*model.ImprovementEvaluation, error) {
	var data model.ImprovementEvaluation
	if err := s.post(ctx, "/analysis/improvement", req, &data); err != nil {
		return nil, err
	}

	// 远端方向值口径不稳定，在边界处规整，内层组件不再做取值判断
	data.OverallImprovement.Direction = util.NormalizeDirection(
		data.OverallImprovement.Direction,
		data.OverallImprovement.Improvement,
	)
	return &data, nil
}

// GenerateRoadmap 第五层：个性化学习路线图
func (s *AnalysisService) GenerateRoadmap(ctx context.Context, req RoadmapRequest) (*model.Roadmap, error) {
	var data model.Roadmap
	if err := s.post(ctx, "/analysis/roadmap", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// MarkEvaluated 通知远端该提交已完成进步评估
func (s *AnalysisService) MarkEvaluated(ctx context.Context, submissionID string) error {
	path := fmt.Sprintf("/submissions/%s/evaluated", url.PathEscape(submissionID))
	return s.do(ctx, http.MethodPut, path, nil, nil)
}

// MarkTaskComplete 持久化任务完成状态，返回服务端的进度汇总
func (s *AnalysisService) MarkTaskComplete(ctx context.Context, resultID, taskID string, req TaskCompletionRequest) (*TaskCompletionData, error) {
	path := fmt.Sprintf("/roadmaps/%s/tasks/%s/complete", url.PathEscape(resultID), url.PathEscape(taskID))
	var data TaskCompletionData
	if err := s.do(ctx, http.MethodPut, path, req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// TopicStatistics 学生全部历史活动的主题正确率
func (s *AnalysisService) TopicStatistics(ctx context.Context, studentID uint) ([]model.TopicResult, error) {
	path := fmt.Sprintf("/students/%d/topic-statistics", studentID)
	var data []model.TopicResult
	if err := s.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *AnalysisService) post(ctx context.Context, path string, body, out interface{}) error {
	return s.do(ctx, http.MethodPost, path, body, out)
}

func (s *AnalysisService) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analysis API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var envelope analysisEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return err
	}

	if !envelope.Success {
		if envelope.Message != "" {
			return fmt.Errorf("analysis API returned failure: %s", envelope.Message)
		}
		return fmt.Errorf("analysis API returned failure")
	}

	if out != nil {
		if len(envelope.Data) == 0 {
			return fmt.Errorf("analysis API returned empty data")
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return err
		}
	}

	return nil
}
