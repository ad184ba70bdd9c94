package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"school_edu_backend/internal/config"
	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

func newTestAnalysisService(baseURL string) *AnalysisService {
	return NewAnalysisService(config.AnalysisConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
	})
}

func TestFeedback_DecodesEnvelope(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq FeedbackRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"feedback": [{"question_id": "q1", "topic": "Algebra", "is_correct": false, "explanation": "sign error"}],
				"summary": {"total_questions": 10, "correct_count": 7, "accuracy_percentage": 70}
			}
		}`))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	data, err := svc.Feedback(context.Background(), FeedbackRequest{
		SubmissionID: "s1",
		Subject:      "Math",
		Questions:    []FeedbackQuestion{{QuestionID: "q1", Topic: "Algebra"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/analysis/feedback" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotReq.SubmissionID != "s1" || len(gotReq.Questions) != 1 {
		t.Errorf("request body not forwarded: %+v", gotReq)
	}

	if len(data.Feedback) != 1 || data.Feedback[0].Explanation != "sign error" {
		t.Errorf("unexpected feedback: %+v", data.Feedback)
	}
	if data.Summary.AccuracyPercentage != 70 {
		t.Errorf("summary = %+v", data.Summary)
	}
}

func TestDo_FailureEnvelopeIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "message": "model overloaded"}`))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	_, err := svc.Recommendation(context.Background(), RecommendationRequest{SubmissionID: "s1"})
	if err == nil {
		t.Fatal("success:false must surface as an error")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error must carry the remote message, got %v", err)
	}
}

func TestDo_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	_, err := svc.EvaluateImprovement(context.Background(), ImprovementRequest{SubmissionID: "s1"})
	if err == nil {
		t.Fatal("non-200 must surface as an error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error must carry the status code, got %v", err)
	}
}

func TestEvaluateImprovement_NormalizesDirection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"subject": "Math",
				"overall_improvement": {"previous_average": 0.5, "new_average": 0.7, "improvement": 0.2, "direction": "IMPROVED"},
				"topics": [],
				"summary": "better",
				"next_action": "keep going"
			}
		}`))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	data, err := svc.EvaluateImprovement(context.Background(), ImprovementRequest{SubmissionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.OverallImprovement.Direction != util.DirectionImproved {
		t.Errorf("direction = %q, want %q", data.OverallImprovement.Direction, util.DirectionImproved)
	}
}

func TestDo_EmptyDataIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	_, err := svc.GenerateRoadmap(context.Background(), RoadmapRequest{SubmissionID: "s1"})
	if err == nil {
		t.Fatal("success without data must surface as an error")
	}
}

func TestMarkEvaluated_PutsWithoutBody(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	if err := svc.MarkEvaluated(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/submissions/s1/evaluated" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestMarkTaskComplete_ReturnsServerProgress(t *testing.T) {
	var gotPath string
	var gotReq TaskCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {"progress_tracking": {"completion_percent": 42, "completed_phases": 1, "total_phases": 3}}
		}`))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	data, err := svc.MarkTaskComplete(context.Background(), "r1", "t1", TaskCompletionRequest{Completed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/roadmaps/r1/tasks/t1/complete" {
		t.Errorf("path = %q", gotPath)
	}
	if !gotReq.Completed {
		t.Error("completed flag not forwarded")
	}
	if data.ProgressTracking.CompletionPercent != 42 || data.ProgressTracking.TotalPhases != 3 {
		t.Errorf("unexpected progress: %+v", data.ProgressTracking)
	}
}

func TestTopicStatistics_DecodesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/students/7/topic-statistics" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": [{"topic": "Algebra", "accuracy": 0.5}, {"topic": "Geometry", "accuracy": 0.8}]
		}`))
	}))
	defer srv.Close()

	svc := newTestAnalysisService(srv.URL)
	stats, err := svc.TopicStatistics(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.TopicResult{
		{Topic: "Algebra", Accuracy: 0.5},
		{Topic: "Geometry", Accuracy: 0.8},
	}
	if len(stats) != 2 || stats[0] != want[0] || stats[1] != want[1] {
		t.Errorf("stats = %+v", stats)
	}
}
