package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// StageCache 暂存宽限期后才返回的阶段结果。
// 消费者已离开时写入只是无人读取的缓存项，不构成错误。
type StageCache interface {
	PutFeedback(ctx context.Context, submissionID string, data *FeedbackData)
	GetFeedback(ctx context.Context, submissionID string) *FeedbackData
	PutRecommendation(ctx context.Context, submissionID string, data *RecommendationData)
	GetRecommendation(ctx context.Context, submissionID string) *RecommendationData
}

const stageCacheTTL = 24 * time.Hour

type redisStageCache struct {
	rdb *redis.Client
}

func NewRedisStageCache(rdb *redis.Client) StageCache {
	return &redisStageCache{rdb: rdb}
}

func (c *redisStageCache) PutFeedback(ctx context.Context, submissionID string, data *FeedbackData) {
	c.put(ctx, "stage:feedback:"+submissionID, data)
}

func (c *redisStageCache) GetFeedback(ctx context.Context, submissionID string) *FeedbackData {
	var data FeedbackData
	if !c.get(ctx, "stage:feedback:"+submissionID, &data) {
		return nil
	}
	return &data
}

func (c *redisStageCache) PutRecommendation(ctx context.Context, submissionID string, data *RecommendationData) {
	c.put(ctx, "stage:recommendation:"+submissionID, data)
}

func (c *redisStageCache) GetRecommendation(ctx context.Context, submissionID string) *RecommendationData {
	var data RecommendationData
	if !c.get(ctx, "stage:recommendation:"+submissionID, &data) {
		return nil
	}
	return &data
}

func (c *redisStageCache) put(ctx context.Context, key string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, payload, stageCacheTTL)
}

func (c *redisStageCache) get(ctx context.Context, key string, v interface{}) bool {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(payload, v) == nil
}
