package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"school_edu_backend/internal/config"
	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

type fakeSubmissionStore struct {
	subs map[string]*model.Submission
}

func (f *fakeSubmissionStore) FindByID(id string) (*model.Submission, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, util.ErrSubmissionNotFound
	}
	return s, nil
}

func (f *fakeSubmissionStore) IsEvaluated(id string) (bool, error) {
	s, ok := f.subs[id]
	if !ok {
		return false, util.ErrSubmissionNotFound
	}
	return s.Evaluated, nil
}

func (f *fakeSubmissionStore) MarkEvaluated(id string) error {
	s, ok := f.subs[id]
	if !ok {
		return util.ErrSubmissionNotFound
	}
	s.Evaluated = true
	return nil
}

type fakeEvaluationStore struct {
	records map[string]*model.EvaluationRecord
}

func (f *fakeEvaluationStore) Create(record *model.EvaluationRecord) error {
	if record.ID == "" {
		record.ID = model.GenerateUUID()
	}
	f.records[record.SubmissionID] = record
	return nil
}

func (f *fakeEvaluationStore) FindBySubmission(submissionID string) (*model.EvaluationRecord, error) {
	rec, ok := f.records[submissionID]
	if !ok {
		return nil, util.ErrEvaluationNotFound
	}
	return rec, nil
}

type fakeRoadmapStore struct {
	created []*model.RoadmapRecord
}

func (f *fakeRoadmapStore) Create(record *model.RoadmapRecord) error {
	if record.ID == "" {
		record.ID = model.GenerateUUID()
	}
	f.created = append(f.created, record)
	return nil
}

type fakeAnalysisAPI struct {
	mu sync.Mutex

	feedbackData *FeedbackData
	feedbackErr  error
	feedbackWait time.Duration

	recommendationData *RecommendationData
	recommendationErr  error

	improvement    *model.ImprovementEvaluation
	improvementErr error

	roadmap    *model.Roadmap
	roadmapErr error
	roadmapReq RoadmapRequest

	feedbackCalls       int
	recommendationCalls int
	improvementCalls    int
	roadmapCalls        int
	markEvaluatedCalls  int
}

func (f *fakeAnalysisAPI) Feedback(ctx context.Context, req FeedbackRequest) (*FeedbackData, error) {
	f.mu.Lock()
	f.feedbackCalls++
	wait := f.feedbackWait
	f.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
	return f.feedbackData, f.feedbackErr
}

func (f *fakeAnalysisAPI) Recommendation(ctx context.Context, req RecommendationRequest) (*RecommendationData, error) {
	f.mu.Lock()
	f.recommendationCalls++
	f.mu.Unlock()
	return f.recommendationData, f.recommendationErr
}

func (f *fakeAnalysisAPI) EvaluateImprovement(ctx context.Context, req ImprovementRequest) (*model.ImprovementEvaluation, error) {
	f.mu.Lock()
	f.improvementCalls++
	f.mu.Unlock()
	return f.improvement, f.improvementErr
}

func (f *fakeAnalysisAPI) GenerateRoadmap(ctx context.Context, req RoadmapRequest) (*model.Roadmap, error) {
	f.mu.Lock()
	f.roadmapCalls++
	f.roadmapReq = req
	f.mu.Unlock()
	return f.roadmap, f.roadmapErr
}

func (f *fakeAnalysisAPI) MarkEvaluated(ctx context.Context, submissionID string) error {
	f.mu.Lock()
	f.markEvaluatedCalls++
	f.mu.Unlock()
	return nil
}

type fakeStageCache struct {
	mu              sync.Mutex
	feedback        map[string]*FeedbackData
	recommendations map[string]*RecommendationData
}

func newFakeStageCache() *fakeStageCache {
	return &fakeStageCache{
		feedback:        map[string]*FeedbackData{},
		recommendations: map[string]*RecommendationData{},
	}
}

func (f *fakeStageCache) PutFeedback(ctx context.Context, submissionID string, data *FeedbackData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback[submissionID] = data
}

func (f *fakeStageCache) GetFeedback(ctx context.Context, submissionID string) *FeedbackData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback[submissionID]
}

func (f *fakeStageCache) PutRecommendation(ctx context.Context, submissionID string, data *RecommendationData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommendations[submissionID] = data
}

func (f *fakeStageCache) GetRecommendation(ctx context.Context, submissionID string) *RecommendationData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recommendations[submissionID]
}

func studentClaims(userID uint) *util.Claims {
	return &util.Claims{UserID: userID, Name: "Ada", Role: model.Student}
}

func testSubmission(id string, answers []model.Answer) *model.Submission {
	sub := &model.Submission{
		StudentID:      7,
		Subject:        "Math",
		Answers:        answers,
		Score:          70,
		CorrectCount:   7,
		TotalQuestions: 10,
		Performance:    model.PerformanceGood,
	}
	sub.ID = id
	return sub
}

func newTestEvaluationService(sub *model.Submission, api *fakeAnalysisAPI) (*EvaluationService, *fakeSubmissionStore, *fakeEvaluationStore, *fakeRoadmapStore, *fakeStageCache) {
	subs := &fakeSubmissionStore{subs: map[string]*model.Submission{}}
	if sub != nil {
		subs.subs[sub.ID] = sub
	}
	evals := &fakeEvaluationStore{records: map[string]*model.EvaluationRecord{}}
	roadmaps := &fakeRoadmapStore{}
	cache := newFakeStageCache()

	svc := NewEvaluationService(
		subs,
		evals,
		roadmaps,
		NewStatisticsService(&fakeStatisticsAPI{}),
		api,
		cache,
		config.AnalysisConfig{
			StageTimeout:        100 * time.Millisecond,
			LearningStyle:       "balanced",
			AvailableTimePerDay: 60,
		},
	)
	return svc, subs, evals, roadmaps, cache
}

func TestRunFeedbackChain_BothStagesSucceed(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	api := &fakeAnalysisAPI{
		feedbackData:       &FeedbackData{Summary: FeedbackSummary{TotalQuestions: 10, CorrectCount: 7, AccuracyPercentage: 70}},
		recommendationData: &RecommendationData{OverallAdvice: "practice more"},
	}
	svc, _, _, _, _ := newTestEvaluationService(sub, api)

	outcome, err := svc.RunFeedbackChain(context.Background(), studentClaims(7), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.State.Feedback != StageOK || outcome.State.Recommendation != StageOK {
		t.Errorf("unexpected chain state: %+v", outcome.State)
	}
	if outcome.Feedback == nil || outcome.Recommendation == nil {
		t.Error("expected both stage payloads present")
	}
	if outcome.Score != 70 || outcome.CorrectCount != 7 {
		t.Errorf("base score must be carried: %+v", outcome)
	}
}

func TestRunFeedbackChain_Stage1FailureSkipsStage2(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	api := &fakeAnalysisAPI{feedbackErr: errors.New("boom")}
	svc, _, _, _, _ := newTestEvaluationService(sub, api)

	outcome, err := svc.RunFeedbackChain(context.Background(), studentClaims(7), "s1")
	if err != nil {
		t.Fatalf("chain must not hard-fail: %v", err)
	}

	if outcome.State.Feedback != StageSkipped {
		t.Errorf("feedback state = %s, want SKIPPED", outcome.State.Feedback)
	}
	if outcome.State.Recommendation != StageSkipped {
		t.Errorf("recommendation state = %s, want SKIPPED", outcome.State.Recommendation)
	}
	if api.recommendationCalls != 0 {
		t.Errorf("stage 2 must not be attempted after stage 1 failure, got %d calls", api.recommendationCalls)
	}

	// 基础分数即便所有 AI 阶段失败也必须可交付
	if outcome.Score != 70 || outcome.Performance != model.PerformanceGood {
		t.Errorf("base result missing: %+v", outcome)
	}
}

func TestRunFeedbackChain_GraceWindowReleasesCaller(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	api := &fakeAnalysisAPI{
		feedbackData: &FeedbackData{Summary: FeedbackSummary{TotalQuestions: 10}},
		feedbackWait: 300 * time.Millisecond, // 超出 100ms 宽限期
	}
	svc, _, _, _, cache := newTestEvaluationService(sub, api)

	start := time.Now()
	outcome, err := svc.RunFeedbackChain(context.Background(), studentClaims(7), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("caller blocked for %v, grace window not honored", elapsed)
	}

	if outcome.State.Feedback != StageSkipped {
		t.Errorf("feedback state = %s, want SKIPPED after timeout", outcome.State.Feedback)
	}

	// 迟到的成功仍会写入缓存，供下一次读取使用
	deadline := time.Now().Add(time.Second)
	for cache.GetFeedback(context.Background(), "s1") == nil {
		if time.Now().After(deadline) {
			t.Fatal("late feedback result never cached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	outcome2, err := svc.RunFeedbackChain(context.Background(), studentClaims(7), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome2.State.Feedback != StageOK || outcome2.Feedback == nil {
		t.Errorf("cached late result not applied: %+v", outcome2.State)
	}
}

func TestEvaluateSubmission_Success(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{
		answer("Algebra", true),
		answer("Algebra", false),
		answer("Geometry", true),
	})
	api := &fakeAnalysisAPI{
		improvement: &model.ImprovementEvaluation{
			Subject:    "Math",
			Summary:    "steady progress",
			NextAction: "keep practicing",
		},
	}
	svc, subs, evals, _, _ := newTestEvaluationService(sub, api)

	evaluation, err := svc.EvaluateSubmission(context.Background(), studentClaims(7), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evaluation.Summary != "steady progress" {
		t.Errorf("unexpected evaluation: %+v", evaluation)
	}

	if !subs.subs["s1"].Evaluated {
		t.Error("submission must be marked evaluated after success")
	}
	if _, err := evals.FindBySubmission("s1"); err != nil {
		t.Error("evaluation record must be persisted")
	}
	if api.markEvaluatedCalls != 1 {
		t.Errorf("remote mark-evaluated calls = %d, want 1", api.markEvaluatedCalls)
	}
}

func TestEvaluateSubmission_AlreadyEvaluatedRejectedBeforeRemoteCall(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	sub.Evaluated = true
	api := &fakeAnalysisAPI{improvement: &model.ImprovementEvaluation{}}
	svc, _, _, _, _ := newTestEvaluationService(sub, api)

	_, err := svc.EvaluateSubmission(context.Background(), studentClaims(7), "s1")
	if !errors.Is(err, util.ErrAlreadyEvaluated) {
		t.Fatalf("err = %v, want ErrAlreadyEvaluated", err)
	}
	if api.improvementCalls != 0 {
		t.Errorf("remote call made despite guard: %d", api.improvementCalls)
	}
}

func TestEvaluateSubmission_RemoteFailureIsRetryable(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	api := &fakeAnalysisAPI{improvementErr: errors.New("analysis API returned failure")}
	svc, subs, evals, _, _ := newTestEvaluationService(sub, api)

	_, err := svc.EvaluateSubmission(context.Background(), studentClaims(7), "s1")
	if !errors.Is(err, util.ErrEvaluationUnavailable) {
		t.Fatalf("err = %v, want ErrEvaluationUnavailable", err)
	}

	if subs.subs["s1"].Evaluated {
		t.Error("submission must stay unevaluated after remote failure")
	}
	if len(evals.records) != 0 {
		t.Error("no evaluation record may be stored on failure")
	}

	// 失败可重试：第二次调用会再次走到远端
	_, err = svc.EvaluateSubmission(context.Background(), studentClaims(7), "s1")
	if !errors.Is(err, util.ErrEvaluationUnavailable) {
		t.Fatalf("retry err = %v, want ErrEvaluationUnavailable", err)
	}
	if api.improvementCalls != 2 {
		t.Errorf("improvement calls = %d, want 2", api.improvementCalls)
	}
}

func TestEvaluateSubmission_NoTopicsGuard(t *testing.T) {
	sub := testSubmission("s1", nil)
	api := &fakeAnalysisAPI{}
	svc, _, _, _, _ := newTestEvaluationService(sub, api)

	_, err := svc.EvaluateSubmission(context.Background(), studentClaims(7), "s1")
	if !errors.Is(err, util.ErrNoTopics) {
		t.Fatalf("err = %v, want ErrNoTopics", err)
	}
	if api.improvementCalls != 0 {
		t.Error("guarded no-op must not reach the remote service")
	}
}

func TestEvaluateSubmission_OwnershipEnforced(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	svc, _, _, _, _ := newTestEvaluationService(sub, &fakeAnalysisAPI{})

	_, err := svc.EvaluateSubmission(context.Background(), studentClaims(99), "s1")
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func evaluationRecordFor(t *testing.T, evals *fakeEvaluationStore, sub *model.Submission) {
	t.Helper()
	result, err := json.Marshal(&model.ImprovementEvaluation{Subject: sub.Subject})
	if err != nil {
		t.Fatal(err)
	}
	record := &model.EvaluationRecord{
		SubmissionID: sub.ID,
		StudentID:    sub.StudentID,
		Subject:      sub.Subject,
		Result:       result,
	}
	if err := evals.Create(record); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateRoadmap_RequiresEvaluation(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	api := &fakeAnalysisAPI{roadmap: &model.Roadmap{}}
	svc, _, _, _, _ := newTestEvaluationService(sub, api)

	_, err := svc.GenerateRoadmap(context.Background(), studentClaims(7), "s1", RoadmapOptions{})
	if !errors.Is(err, util.ErrEvaluationRequired) {
		t.Fatalf("err = %v, want ErrEvaluationRequired", err)
	}
	if api.roadmapCalls != 0 {
		t.Error("roadmap stage must not run without prior evaluation")
	}
}

func TestGenerateRoadmap_NothingToRemediate(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{
		answer("Algebra", true),
		answer("Geometry", true),
	})
	api := &fakeAnalysisAPI{roadmap: &model.Roadmap{}}
	svc, _, evals, _, _ := newTestEvaluationService(sub, api)
	evaluationRecordFor(t, evals, sub)

	_, err := svc.GenerateRoadmap(context.Background(), studentClaims(7), "s1", RoadmapOptions{})
	if !errors.Is(err, util.ErrNothingToRemediate) {
		t.Fatalf("err = %v, want ErrNothingToRemediate", err)
	}
	if api.roadmapCalls != 0 {
		t.Error("remote must never be invoked with an empty incorrect-question payload")
	}
}

func TestGenerateRoadmap_Success(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{
		answer("Algebra", false),
		answer("Geometry", true),
	})
	api := &fakeAnalysisAPI{
		roadmap: &model.Roadmap{
			Subject:     "Math",
			OverallGoal: "master algebra basics",
			Phases: []model.RoadmapPhase{
				{Name: "Foundations", Days: []model.RoadmapDay{{Day: 1, Tasks: []model.RoadmapTask{{ID: "t1", Type: model.TaskLearn}}}}},
			},
		},
	}
	svc, _, evals, roadmaps, _ := newTestEvaluationService(sub, api)
	evaluationRecordFor(t, evals, sub)

	result, err := svc.GenerateRoadmap(context.Background(), studentClaims(7), "s1", RoadmapOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(roadmaps.created) != 1 {
		t.Fatalf("roadmap records created = %d, want 1", len(roadmaps.created))
	}
	if result.ResultID == "" || result.ResultID != roadmaps.created[0].ID {
		t.Errorf("result id %q does not match stored record %q", result.ResultID, roadmaps.created[0].ID)
	}
	if result.Roadmap.OverallGoal != "master algebra basics" {
		t.Errorf("unexpected roadmap: %+v", result.Roadmap)
	}
}

func TestGenerateRoadmap_EnrichesIncorrectQuestionsFromFeedback(t *testing.T) {
	wrong := model.Answer{
		QuestionID:   "q1",
		Topic:        "Algebra",
		ChosenIndex:  0,
		CorrectIndex: 1,
		IsCorrect:    false,
	}
	sub := testSubmission("s1", []model.Answer{wrong, answer("Geometry", true)})
	api := &fakeAnalysisAPI{roadmap: &model.Roadmap{Subject: "Math"}}
	svc, _, evals, _, cache := newTestEvaluationService(sub, api)
	evaluationRecordFor(t, evals, sub)

	cache.PutFeedback(context.Background(), "s1", &FeedbackData{
		Feedback: []FeedbackItem{{
			QuestionID:      "q1",
			Topic:           "Algebra",
			Subtopic:        "Linear Equations",
			IsCorrect:       false,
			StudentAnswer:   "x = 2",
			CorrectAnswer:   "x = 3",
			DifficultyLevel: "medium",
		}},
	})

	if _, err := svc.GenerateRoadmap(context.Background(), studentClaims(7), "s1", RoadmapOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(api.roadmapReq.IncorrectQuestions) != 1 {
		t.Fatalf("incorrect questions sent = %d, want 1", len(api.roadmapReq.IncorrectQuestions))
	}
	q := api.roadmapReq.IncorrectQuestions[0]
	if q.Subtopic != "Linear Equations" {
		t.Errorf("subtopic = %q, want enrichment from feedback", q.Subtopic)
	}
	if q.StudentAnswer != "x = 2" || q.CorrectAnswer != "x = 3" {
		t.Errorf("answer texts not enriched: %+v", q)
	}
	if q.Difficulty != "medium" {
		t.Errorf("difficulty = %q, want medium", q.Difficulty)
	}
	if q.ErrorType != "incorrect" {
		t.Errorf("error type = %q, want incorrect", q.ErrorType)
	}
}

func TestGenerateRoadmap_RemoteFailureStoresNothing(t *testing.T) {
	sub := testSubmission("s1", []model.Answer{answer("Algebra", false)})
	api := &fakeAnalysisAPI{roadmapErr: errors.New("boom")}
	svc, _, evals, roadmaps, _ := newTestEvaluationService(sub, api)
	evaluationRecordFor(t, evals, sub)

	_, err := svc.GenerateRoadmap(context.Background(), studentClaims(7), "s1", RoadmapOptions{})
	if !errors.Is(err, util.ErrRoadmapUnavailable) {
		t.Fatalf("err = %v, want ErrRoadmapUnavailable", err)
	}
	if len(roadmaps.created) != 0 {
		t.Error("no partial roadmap may be stored on failure")
	}
}
