package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"school_edu_backend/internal/config"
	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
	"school_edu_backend/pkg/logger"
	"school_edu_backend/pkg/monitoring"
	"school_edu_backend/pkg/tracing"
)

// StageState 单个远程分析阶段的状态机取值
type StageState string

const (
	StagePending StageState = "PENDING"
	StageOK      StageState = "OK"
	StageSkipped StageState = "SKIPPED"
)

// ChainState 反馈链（第一层→第二层）的状态
type ChainState struct {
	Feedback       StageState `json:"feedback"`
	Recommendation StageState `json:"recommendation"`
}

// FeedbackOutcome 反馈链的交付结果。
// 基础分数始终有效：即便所有 AI 阶段失败也必须可交付。
type FeedbackOutcome struct {
	SubmissionID   string                 `json:"submissionId"`
	Subject        string                 `json:"subject"`
	Score          int                    `json:"score"`
	CorrectCount   int                    `json:"correctCount"`
	TotalQuestions int                    `json:"totalQuestions"`
	Performance    model.PerformanceLevel `json:"performance"`
	State          ChainState             `json:"state"`
	Feedback       *FeedbackData          `json:"feedback,omitempty"`
	Recommendation *RecommendationData    `json:"recommendation,omitempty"`
}

// RoadmapResult 路线图生成结果，ResultID 用于后续的完成度调用
type RoadmapResult struct {
	ResultID    string         `json:"resultId"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Roadmap     *model.Roadmap `json:"detailedAnalysis"`
}

type analysisAPI interface {
	Feedback(ctx context.Context, req FeedbackRequest) (*FeedbackData, error)
	Recommendation(ctx context.Context, req RecommendationRequest) (*RecommendationData, error)
	EvaluateImprovement(ctx context.Context, req ImprovementRequest) (*model.ImprovementEvaluation, error)
	GenerateRoadmap(ctx context.Context, req RoadmapRequest) (*model.Roadmap, error)
	MarkEvaluated(ctx context.Context, submissionID string) error
}

type submissionStore interface {
	FindByID(id string) (*model.Submission, error)
	IsEvaluated(id string) (bool, error)
	MarkEvaluated(id string) error
}

type evaluationStore interface {
	Create(record *model.EvaluationRecord) error
	FindBySubmission(submissionID string) (*model.EvaluationRecord, error)
}

type roadmapStore interface {
	Create(record *model.RoadmapRecord) error
}

// EvaluationService 驱动有依赖顺序的远程分析链。
// 链 A：反馈 → 建议（每次提交）；链 B：进步评估 → 路线图生成（按需）。
type EvaluationService struct {
	submissions submissionStore
	evaluations evaluationStore
	roadmaps    roadmapStore
	stats       *StatisticsService
	api         analysisAPI
	cache       StageCache
	cfg         config.AnalysisConfig
}

func NewEvaluationService(
	submissions submissionStore,
	evaluations evaluationStore,
	roadmaps roadmapStore,
	stats *StatisticsService,
	api analysisAPI,
	cache StageCache,
	cfg config.AnalysisConfig,
) *EvaluationService {
	return &EvaluationService{
		submissions: submissions,
		evaluations: evaluations,
		roadmaps:    roadmaps,
		stats:       stats,
		api:         api,
		cache:       cache,
		cfg:         cfg,
	}
}

// RunFeedbackChain 执行链 A。第二层请求体内嵌第一层输出，因此第一层失败或超时
// 后第二层不再尝试；两层都失败时返回的结果对象仅缺少增强字段，不抛错。
func (s *EvaluationService) RunFeedbackChain(ctx context.Context, claims *util.Claims, submissionID string) (*FeedbackOutcome, error) {
	sub, err := s.submissions.FindByID(submissionID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(claims, sub.StudentID); err != nil {
		return nil, err
	}

	outcome := &FeedbackOutcome{
		SubmissionID:   sub.ID,
		Subject:        sub.Subject,
		Score:          sub.Score,
		CorrectCount:   sub.CorrectCount,
		TotalQuestions: sub.TotalQuestions,
		Performance:    sub.Performance,
		State: ChainState{
			Feedback:       StagePending,
			Recommendation: StagePending,
		},
	}

	// 第一层：先查迟到结果缓存，避免重复调用远端
	if cached := s.cache.GetFeedback(ctx, sub.ID); cached != nil {
		outcome.Feedback = cached
		outcome.State.Feedback = StageOK
	} else {
		outcome.Feedback = s.runFeedbackStage(ctx, claims, sub)
		if outcome.Feedback != nil {
			outcome.State.Feedback = StageOK
		} else {
			outcome.State.Feedback = StageSkipped
		}
	}

	// 第二层：依赖第一层输出，第一层未成功则显式跳过
	if outcome.State.Feedback != StageOK {
		outcome.State.Recommendation = StageSkipped
		return outcome, nil
	}

	if cached := s.cache.GetRecommendation(ctx, sub.ID); cached != nil {
		outcome.Recommendation = cached
		outcome.State.Recommendation = StageOK
		return outcome, nil
	}

	outcome.Recommendation = s.runRecommendationStage(ctx, sub.ID, outcome.Feedback)
	if outcome.Recommendation != nil {
		outcome.State.Recommendation = StageOK
	} else {
		outcome.State.Recommendation = StageSkipped
	}

	return outcome, nil
}

// runFeedbackStage 在宽限期内等待第一层结果。超时不中断底层请求：
// 请求在后台继续，迟到的成功写入缓存供下一次读取。
func (s *EvaluationService) runFeedbackStage(ctx context.Context, claims *util.Claims, sub *model.Submission) *FeedbackData {
	ctx, span := tracing.StartStage(ctx, "feedback")
	defer span.End()

	req := FeedbackRequest{
		SubmissionID: sub.ID,
		AssessmentID: sub.AssessmentID,
		StudentName:  claims.Name,
		Subject:      sub.Subject,
		Questions:    feedbackQuestions(sub.Answers),
	}

	type result struct {
		data *FeedbackData
		err  error
	}
	resCh := make(chan result, 1)
	start := time.Now()

	// 与请求生命周期解耦：宽限期只释放调用方，不取消底层请求
	bgCtx, cancel := context.WithTimeout(context.Background(), 3*s.cfg.StageTimeout)

	go func() {
		defer cancel()
		data, err := s.api.Feedback(bgCtx, req)
		if err == nil {
			s.cache.PutFeedback(bgCtx, sub.ID, data)
		}
		resCh <- result{data: data, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			monitoring.ObserveStage("feedback", "failed", time.Since(start))
			logger.Log.Warn("feedback stage failed",
				zap.String("submissionId", sub.ID),
				zap.Error(res.err))
			return nil
		}
		monitoring.ObserveStage("feedback", "ok", time.Since(start))
		return res.data
	case <-time.After(s.cfg.StageTimeout):
		monitoring.ObserveStage("feedback", "skipped", time.Since(start))
		logger.Log.Warn("feedback stage exceeded grace window, proceeding without it",
			zap.String("submissionId", sub.ID))
		return nil
	case <-ctx.Done():
		monitoring.ObserveStage("feedback", "skipped", time.Since(start))
		return nil
	}
}

func (s *EvaluationService) runRecommendationStage(ctx context.Context, submissionID string, feedback *FeedbackData) *RecommendationData {
	ctx, span := tracing.StartStage(ctx, "recommendation")
	defer span.End()

	req := RecommendationRequest{
		SubmissionID: submissionID,
		FeedbackData: feedback,
	}

	type result struct {
		data *RecommendationData
		err  error
	}
	resCh := make(chan result, 1)
	start := time.Now()

	bgCtx, cancel := context.WithTimeout(context.Background(), 3*s.cfg.StageTimeout)

	go func() {
		defer cancel()
		data, err := s.api.Recommendation(bgCtx, req)
		if err == nil {
			s.cache.PutRecommendation(bgCtx, submissionID, data)
		}
		resCh <- result{data: data, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			monitoring.ObserveStage("recommendation", "failed", time.Since(start))
			logger.Log.Warn("recommendation stage failed",
				zap.String("submissionId", submissionID),
				zap.Error(res.err))
			return nil
		}
		monitoring.ObserveStage("recommendation", "ok", time.Since(start))
		return res.data
	case <-time.After(s.cfg.StageTimeout):
		monitoring.ObserveStage("recommendation", "skipped", time.Since(start))
		logger.Log.Warn("recommendation stage exceeded grace window, proceeding without it",
			zap.String("submissionId", submissionID))
		return nil
	case <-ctx.Done():
		monitoring.ObserveStage("recommendation", "skipped", time.Since(start))
		return nil
	}
}

// EvaluateSubmission 执行链 B 第一段：进步评估。
// 已评估过的提交在任何远程调用之前就被拒绝；远程失败时提交保持未评估状态，
// 调用方收到可重试的 ErrEvaluationUnavailable。
func (s *EvaluationService) EvaluateSubmission(ctx context.Context, claims *util.Claims, submissionID string) (*model.ImprovementEvaluation, error) {
	sub, err := s.submissions.FindByID(submissionID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(claims, sub.StudentID); err != nil {
		return nil, err
	}

	evaluated, err := s.submissions.IsEvaluated(submissionID)
	if err != nil {
		return nil, err
	}
	if evaluated {
		return nil, util.ErrAlreadyEvaluated
	}

	stats := AggregateTopics(sub.Answers)
	if len(stats) == 0 {
		return nil, util.ErrNoTopics
	}

	newResults := NewResults(stats)
	previousResults := s.stats.Resolve(ctx, sub.StudentID, newResults)

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()
	stageCtx, span := tracing.StartStage(stageCtx, "improvement")
	defer span.End()

	start := time.Now()
	evaluation, err := s.api.EvaluateImprovement(stageCtx, ImprovementRequest{
		SubmissionID:    sub.ID,
		StudentID:       sub.StudentID,
		Subject:         sub.Subject,
		PreviousResults: previousResults,
		NewResults:      newResults,
	})
	if err != nil {
		monitoring.ObserveStage("improvement", "failed", time.Since(start))
		logger.Log.Error("improvement evaluation failed",
			zap.String("submissionId", sub.ID),
			zap.Error(err))
		return nil, util.ErrEvaluationUnavailable
	}
	monitoring.ObserveStage("improvement", "ok", time.Since(start))

	resultJSON, err := json.Marshal(evaluation)
	if err != nil {
		return nil, err
	}

	record := &model.EvaluationRecord{
		SubmissionID: sub.ID,
		StudentID:    sub.StudentID,
		Subject:      sub.Subject,
		Result:       resultJSON,
		Summary:      evaluation.Summary,
		NextAction:   evaluation.NextAction,
	}
	if err := s.evaluations.Create(record); err != nil {
		return nil, err
	}

	if err := s.submissions.MarkEvaluated(sub.ID); err != nil {
		return nil, err
	}

	// 本地 Evaluated 标志是幂等判定的依据，远端确认失败只记日志
	if err := s.api.MarkEvaluated(ctx, sub.ID); err != nil {
		logger.Log.Warn("remote mark-evaluated failed, local state already persisted",
			zap.String("submissionId", sub.ID),
			zap.Error(err))
	}

	return evaluation, nil
}

// GetEvaluation 读取已生成的进步评估
func (s *EvaluationService) GetEvaluation(ctx context.Context, claims *util.Claims, submissionID string) (*model.ImprovementEvaluation, error) {
	record, err := s.evaluations.FindBySubmission(submissionID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(claims, record.StudentID); err != nil {
		return nil, err
	}

	var evaluation model.ImprovementEvaluation
	if err := json.Unmarshal(record.Result, &evaluation); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// RoadmapOptions 路线图生成的个性化参数，零值回退到配置默认
type RoadmapOptions struct {
	LearningStyle       string `json:"learningStyle"`
	AvailableTimePerDay int    `json:"availableTimePerDay"`
}

// GenerateRoadmap 执行链 B 第二段：路线图生成。
// 依赖已完成的进步评估；零错题时跳过远程调用并告知无需补救，
// 绝不发送空错题列表。失败时不存任何半成品。
func (s *EvaluationService) GenerateRoadmap(ctx context.Context, claims *util.Claims, submissionID string, opts RoadmapOptions) (*RoadmapResult, error) {
	sub, err := s.submissions.FindByID(submissionID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(claims, sub.StudentID); err != nil {
		return nil, err
	}

	record, err := s.evaluations.FindBySubmission(submissionID)
	if err != nil {
		return nil, util.ErrEvaluationRequired
	}

	incorrect := IncorrectQuestions(sub.Answers)
	if len(incorrect) == 0 {
		return nil, util.ErrNothingToRemediate
	}

	// 反馈阶段成功过时，用其逐题结果补全错题记录（子主题、答案文本、难度）
	if fb := s.cache.GetFeedback(ctx, sub.ID); fb != nil {
		enrichIncorrectQuestions(incorrect, fb)
	}

	var evaluation model.ImprovementEvaluation
	if err := json.Unmarshal(record.Result, &evaluation); err != nil {
		return nil, err
	}

	learningStyle := opts.LearningStyle
	if learningStyle == "" {
		learningStyle = s.cfg.LearningStyle
	}
	timePerDay := opts.AvailableTimePerDay
	if timePerDay <= 0 {
		timePerDay = s.cfg.AvailableTimePerDay
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()
	stageCtx, span := tracing.StartStage(stageCtx, "roadmap")
	defer span.End()

	start := time.Now()
	roadmap, err := s.api.GenerateRoadmap(stageCtx, RoadmapRequest{
		SubmissionID:        sub.ID,
		StudentID:           sub.StudentID,
		Subject:             sub.Subject,
		EvaluationData:      &evaluation,
		IncorrectQuestions:  incorrect,
		LearningStyle:       learningStyle,
		AvailableTimePerDay: timePerDay,
	})
	if err != nil {
		monitoring.ObserveStage("roadmap", "failed", time.Since(start))
		logger.Log.Error("roadmap generation failed",
			zap.String("submissionId", sub.ID),
			zap.Error(err))
		return nil, util.ErrRoadmapUnavailable
	}
	monitoring.ObserveStage("roadmap", "ok", time.Since(start))

	analysisJSON, err := json.Marshal(roadmap)
	if err != nil {
		return nil, err
	}

	roadmapRecord := &model.RoadmapRecord{
		StudentID:        sub.StudentID,
		SubmissionID:     sub.ID,
		Subject:          sub.Subject,
		DetailedAnalysis: analysisJSON,
		GeneratedAt:      time.Now(),
	}
	if err := s.roadmaps.Create(roadmapRecord); err != nil {
		return nil, err
	}

	return &RoadmapResult{
		ResultID:    roadmapRecord.ID,
		GeneratedAt: roadmapRecord.GeneratedAt,
		Roadmap:     roadmap,
	}, nil
}

// enrichIncorrectQuestions 把反馈阶段的逐题结果叠加到错题记录上。
// 作答记录里只有选项下标，反馈结果里有子主题和答案原文，优先使用后者。
func enrichIncorrectQuestions(incorrect []IncorrectQuestion, fb *FeedbackData) {
	items := make(map[string]FeedbackItem, len(fb.Feedback))
	for _, item := range fb.Feedback {
		items[item.QuestionID] = item
	}

	for i := range incorrect {
		item, ok := items[incorrect[i].QuestionID]
		if !ok {
			continue
		}
		incorrect[i].Subtopic = item.Subtopic
		if item.StudentAnswer != "" {
			incorrect[i].StudentAnswer = item.StudentAnswer
		}
		if item.CorrectAnswer != "" {
			incorrect[i].CorrectAnswer = item.CorrectAnswer
		}
		if item.DifficultyLevel != "" {
			incorrect[i].Difficulty = item.DifficultyLevel
		}
	}
}

// feedbackQuestions 把作答记录映射为第一层反馈请求的题目结构
func feedbackQuestions(answers []model.Answer) []FeedbackQuestion {
	questions := make([]FeedbackQuestion, len(answers))
	for i, a := range answers {
		var options []string
		if len(a.Options) > 0 {
			_ = json.Unmarshal(a.Options, &options)
		}
		topic := a.Topic
		if topic == "" {
			topic = util.UnknownTopic
		}
		questions[i] = FeedbackQuestion{
			QuestionID:         a.QuestionID,
			Topic:              topic,
			Question:           a.Question,
			Options:            options,
			CorrectAnswerIndex: a.CorrectIndex,
			StudentAnswerIndex: a.ChosenIndex,
		}
	}
	return questions
}

// checkOwnership 学生只能访问自己的提交，教师和管理员放行
func checkOwnership(claims *util.Claims, studentID uint) error {
	if claims == nil {
		return util.ErrPermissionDenied
	}
	if claims.Role == model.Teacher || claims.Role == model.Admin {
		return nil
	}
	if claims.UserID != studentID {
		return util.ErrPermissionDenied
	}
	return nil
}
