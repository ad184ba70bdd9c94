package service

import (
	"context"

	"go.uber.org/zap"

	"school_edu_backend/internal/model"
	"school_edu_backend/pkg/logger"
)

type topicStatisticsAPI interface {
	TopicStatistics(ctx context.Context, studentID uint) ([]model.TopicResult, error)
}

// StatisticsService 拉取学生历史主题正确率，并与本次结果按主题对齐
type StatisticsService struct {
	api topicStatisticsAPI
}

func NewStatisticsService(api topicStatisticsAPI) *StatisticsService {
	return &StatisticsService{api: api}
}

// Resolve 返回与 newResults 逐项对齐的历史正确率列表。
// 无历史记录的主题取 0（"从未测过"，不是错误）；远程整体失败时同样全部取 0，
// 评估流程绝不因为历史数据不可用而中断。
func (s *StatisticsService) Resolve(ctx context.Context, studentID uint, newResults []model.TopicResult) []model.TopicResult {
	history := make(map[string]float64)

	stats, err := s.api.TopicStatistics(ctx, studentID)
	if err != nil {
		// 服务不可用与尚无数据此处同样处理，仅在日志中留痕区分
		logger.Log.Warn("topic statistics unavailable, defaulting history to zero",
			zap.Uint("studentId", studentID),
			zap.Error(err))
	} else {
		for _, st := range stats {
			history[st.Topic] = st.Accuracy
		}
	}

	previous := make([]model.TopicResult, len(newResults))
	for i, r := range newResults {
		previous[i] = model.TopicResult{
			Topic:    r.Topic,
			Accuracy: history[r.Topic],
		}
	}
	return previous
}
