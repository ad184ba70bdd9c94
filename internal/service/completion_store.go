package service

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// CompletionStore 乐观完成状态缓存：某学生在某路线图下已完成的任务 id 集合。
// 服务端返回权威进度时本地值被覆盖，缓存只是先行的展示状态。
type CompletionStore interface {
	Toggle(ctx context.Context, studentID uint, resultID, taskID string) (bool, error)
	Completed(ctx context.Context, studentID uint, resultID string) (map[string]bool, error)
}

type redisCompletionStore struct {
	rdb *redis.Client
}

func NewRedisCompletionStore(rdb *redis.Client) CompletionStore {
	return &redisCompletionStore{rdb: rdb}
}

func completionKey(studentID uint, resultID string) string {
	if resultID == "" {
		// 无服务端关联的路线图走本地作用域
		resultID = "local"
	}
	return fmt.Sprintf("completion:%d:%s", studentID, resultID)
}

// Toggle 翻转任务完成状态，返回新状态。单写者（当前用户会话），无需加锁。
func (s *redisCompletionStore) Toggle(ctx context.Context, studentID uint, resultID, taskID string) (bool, error) {
	key := completionKey(studentID, resultID)

	isMember, err := s.rdb.SIsMember(ctx, key, taskID).Result()
	if err != nil {
		return false, err
	}

	if isMember {
		if err := s.rdb.SRem(ctx, key, taskID).Err(); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.rdb.SAdd(ctx, key, taskID).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *redisCompletionStore) Completed(ctx context.Context, studentID uint, resultID string) (map[string]bool, error) {
	members, err := s.rdb.SMembers(ctx, completionKey(studentID, resultID)).Result()
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool, len(members))
	for _, m := range members {
		done[m] = true
	}
	return done, nil
}
