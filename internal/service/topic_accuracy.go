package service

import (
	"sort"

	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
)

// AggregateTopics 将一次提交的作答按主题归并为正确率统计。
// 主题为空的答案归入 util.UnknownTopic，保证 sum(total) == len(answers)。
func AggregateTopics(answers []model.Answer) map[string]model.TopicStat {
	stats := make(map[string]model.TopicStat)

	for _, a := range answers {
		topic := a.Topic
		if topic == "" {
			topic = util.UnknownTopic
		}

		s := stats[topic]
		s.Total++
		if a.IsCorrect {
			s.Correct++
		}
		stats[topic] = s
	}

	for topic, s := range stats {
		if s.Total == 0 {
			// 防御：total 为 0 的主题直接丢弃，避免除零
			delete(stats, topic)
			continue
		}
		s.Accuracy = float64(s.Correct) / float64(s.Total)
		stats[topic] = s
	}

	return stats
}

// NewResults 将主题统计转成远程接口所需的有序列表。
// 按主题名排序，保证同一份作答生成的请求体字节级可复现。
func NewResults(stats map[string]model.TopicStat) []model.TopicResult {
	results := make([]model.TopicResult, 0, len(stats))
	for topic, s := range stats {
		results = append(results, model.TopicResult{
			Topic:    topic,
			Accuracy: s.Accuracy,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Topic < results[j].Topic
	})
	return results
}

// IncorrectQuestion 路线图生成所需的错题记录
type IncorrectQuestion struct {
	QuestionID    string `json:"question_id"`
	Topic         string `json:"topic"`
	Subtopic      string `json:"subtopic,omitempty"`
	Difficulty    string `json:"difficulty"`
	QuestionText  string `json:"question_text"`
	StudentAnswer string `json:"student_answer"`
	CorrectAnswer string `json:"correct_answer"`
	ErrorType     string `json:"error_type"`
}

// IncorrectQuestions 从作答中筛出错题并映射为固定的题目记录结构
func IncorrectQuestions(answers []model.Answer) []IncorrectQuestion {
	var out []IncorrectQuestion
	for _, a := range answers {
		if a.IsCorrect {
			continue
		}

		topic := a.Topic
		if topic == "" {
			topic = util.UnknownTopic
		}

		errorType := "incorrect"
		if a.ChosenIndex < 0 {
			errorType = "unanswered"
		}

		out = append(out, IncorrectQuestion{
			QuestionID:    a.QuestionID,
			Topic:         topic,
			Difficulty:    a.Difficulty,
			QuestionText:  a.Question,
			StudentAnswer: optionLabel(a.ChosenIndex),
			CorrectAnswer: optionLabel(a.CorrectIndex),
			ErrorType:     errorType,
		})
	}
	return out
}

// optionLabel 将选项下标转成 A/B/C… 标签，未作答返回空串
func optionLabel(index int) string {
	if index < 0 || index > 25 {
		return ""
	}
	return string(rune('A' + index))
}
