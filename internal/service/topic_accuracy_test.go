package service

import (
	"math"
	"testing"

	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

func answer(topic string, correct bool) model.Answer {
	chosen := 1
	correctIdx := 1
	if !correct {
		chosen = 0
	}
	return model.Answer{
		Topic:        topic,
		ChosenIndex:  chosen,
		CorrectIndex: correctIdx,
		IsCorrect:    correct,
	}
}

func TestAggregateTopics_TotalsMatchAnswerCount(t *testing.T) {
	// 10 答案：代数 7 题 6 对，几何 3 题 2 对
	var answers []model.Answer
	for i := 0; i < 6; i++ {
		answers = append(answers, answer("Algebra", true))
	}
	answers = append(answers, answer("Algebra", false))
	answers = append(answers, answer("Geometry", true), answer("Geometry", true), answer("Geometry", false))

	stats := AggregateTopics(answers)

	sum := 0
	for _, s := range stats {
		sum += s.Total
	}
	if sum != len(answers) {
		t.Fatalf("sum of totals = %d, want %d", sum, len(answers))
	}

	if got := stats["Algebra"].Accuracy; math.Abs(got-6.0/7.0) > 1e-9 {
		t.Errorf("Algebra accuracy = %f, want %f", got, 6.0/7.0)
	}
	if got := stats["Geometry"].Accuracy; math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("Geometry accuracy = %f, want %f", got, 2.0/3.0)
	}
}

func TestAggregateTopics_AccuracyBounds(t *testing.T) {
	answers := []model.Answer{
		answer("A", true),
		answer("A", false),
		answer("B", false),
		answer("C", true),
	}

	for topic, s := range AggregateTopics(answers) {
		if s.Accuracy < 0 || s.Accuracy > 1 {
			t.Errorf("topic %s accuracy %f out of [0,1]", topic, s.Accuracy)
		}
		if got := float64(s.Correct) / float64(s.Total); s.Accuracy != got {
			t.Errorf("topic %s accuracy %f != correct/total %f", topic, s.Accuracy, got)
		}
	}
}

func TestAggregateTopics_BlankTopicGoesToUnknown(t *testing.T) {
	answers := []model.Answer{
		answer("", true),
		answer("", false),
		answer("Algebra", true),
	}

	stats := AggregateTopics(answers)

	unknown, ok := stats[util.UnknownTopic]
	if !ok {
		t.Fatalf("expected %q topic to exist", util.UnknownTopic)
	}
	if unknown.Total != 2 || unknown.Correct != 1 {
		t.Errorf("unknown topic = %+v, want total=2 correct=1", unknown)
	}

	sum := 0
	for _, s := range stats {
		sum += s.Total
	}
	if sum != 3 {
		t.Errorf("no answer may be dropped: sum = %d, want 3", sum)
	}
}

func TestAggregateTopics_Empty(t *testing.T) {
	if stats := AggregateTopics(nil); len(stats) != 0 {
		t.Errorf("expected empty stats, got %v", stats)
	}
}

func TestNewResults_SortedAndComplete(t *testing.T) {
	stats := map[string]model.TopicStat{
		"Geometry": {Correct: 2, Total: 3, Accuracy: 2.0 / 3.0},
		"Algebra":  {Correct: 6, Total: 7, Accuracy: 6.0 / 7.0},
	}

	results := NewResults(stats)

	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if results[0].Topic != "Algebra" || results[1].Topic != "Geometry" {
		t.Errorf("results not sorted by topic: %v", results)
	}
}

func TestIncorrectQuestions_FiltersAndMaps(t *testing.T) {
	answers := []model.Answer{
		{QuestionID: "q1", Topic: "Algebra", IsCorrect: true, ChosenIndex: 0, CorrectIndex: 0},
		{QuestionID: "q2", Topic: "Algebra", IsCorrect: false, ChosenIndex: 2, CorrectIndex: 0, Question: "2+2?", Difficulty: "easy"},
		{QuestionID: "q3", Topic: "", IsCorrect: false, ChosenIndex: -1, CorrectIndex: 1},
	}

	incorrect := IncorrectQuestions(answers)

	if len(incorrect) != 2 {
		t.Fatalf("len = %d, want 2", len(incorrect))
	}

	q2 := incorrect[0]
	if q2.QuestionID != "q2" || q2.StudentAnswer != "C" || q2.CorrectAnswer != "A" || q2.ErrorType != "incorrect" {
		t.Errorf("unexpected mapping for q2: %+v", q2)
	}

	q3 := incorrect[1]
	if q3.Topic != util.UnknownTopic {
		t.Errorf("blank topic should map to %q, got %q", util.UnknownTopic, q3.Topic)
	}
	if q3.StudentAnswer != "" || q3.ErrorType != "unanswered" {
		t.Errorf("unanswered question mapped wrong: %+v", q3)
	}
}

func TestIncorrectQuestions_AllCorrect(t *testing.T) {
	answers := []model.Answer{
		answer("Algebra", true),
		answer("Geometry", true),
	}
	if got := IncorrectQuestions(answers); len(got) != 0 {
		t.Errorf("expected no incorrect questions, got %v", got)
	}
}
