package service

import (
	"encoding/json"
	"math"

	"school_edu_backend/internal/model"
	"school_edu_backend/internal/repository"
	"school_edu_backend/internal/util"
)

type SubmissionService struct {
	Repo *repository.SubmissionRepository
}

func NewSubmissionService(repo *repository.SubmissionRepository) *SubmissionService {
	return &SubmissionService{Repo: repo}
}

type SubmissionAnswerRequest struct {
	QuestionID   string   `json:"questionId" binding:"required"`
	Topic        string   `json:"topic"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	ChosenIndex  int      `json:"chosenIndex"`
	CorrectIndex int      `json:"correctIndex"`
	Difficulty   string   `json:"difficulty"`
}

type SubmissionRequest struct {
	AssessmentID     string                    `json:"assessmentId"`
	Subject          string                    `json:"subject" binding:"required"`
	TimeTakenSeconds int                       `json:"timeTakenSeconds"`
	Answers          []SubmissionAnswerRequest `json:"answers" binding:"required,min=1"`
}

// CreateSubmission 落库一次测验提交并计算基础分数与成绩等级。
// 提交创建后不可变，唯一的后续变更是评估完成标志。
func (s *SubmissionService) CreateSubmission(claims *util.Claims, req SubmissionRequest) (*model.Submission, error) {
	answers := make([]model.Answer, len(req.Answers))
	correctCount := 0

	for i, a := range req.Answers {
		isCorrect := a.CorrectIndex >= 0 && a.ChosenIndex == a.CorrectIndex
		if isCorrect {
			correctCount++
		}

		var optionsJSON json.RawMessage
		if len(a.Options) > 0 {
			optionsJSON, _ = json.Marshal(a.Options)
		}

		answers[i] = model.Answer{
			QuestionID:   a.QuestionID,
			Topic:        a.Topic,
			Question:     a.Question,
			Options:      optionsJSON,
			ChosenIndex:  a.ChosenIndex,
			CorrectIndex: a.CorrectIndex,
			IsCorrect:    isCorrect,
			Difficulty:   a.Difficulty,
		}
	}

	total := len(req.Answers)
	score := int(math.Round(float64(correctCount) / float64(total) * 100))

	submission := &model.Submission{
		StudentID:        claims.UserID,
		AssessmentID:     req.AssessmentID,
		Subject:          req.Subject,
		Answers:          answers,
		TimeTakenSeconds: req.TimeTakenSeconds,
		Score:            score,
		CorrectCount:     correctCount,
		TotalQuestions:   total,
		Performance:      model.PerformanceLevelFor(correctCount, total),
	}

	if err := s.Repo.Create(submission); err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *SubmissionService) GetSubmission(claims *util.Claims, id string) (*model.Submission, error) {
	sub, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(claims, sub.StudentID); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubmissionService) ListSubmissions(claims *util.Claims, page, limit int) ([]model.Submission, int64, error) {
	return s.Repo.ListByStudent(claims.UserID, page, limit)
}

// ListStudentSubmissions 教师/管理员查看指定学生的提交列表，路由层做角色校验
func (s *SubmissionService) ListStudentSubmissions(studentID uint, page, limit int) ([]model.Submission, int64, error) {
	return s.Repo.ListByStudent(studentID, page, limit)
}
