package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"school_edu_backend/internal/model"
	"school_edu_backend/internal/util"
	"school_edu_backend/pkg/logger"
)

type taskCompletionAPI interface {
	MarkTaskComplete(ctx context.Context, resultID, taskID string, req TaskCompletionRequest) (*TaskCompletionData, error)
}

type roadmapProgressStore interface {
	FindByID(id string) (*model.RoadmapRecord, error)
	FindLatestByStudent(studentID uint) (*model.RoadmapRecord, error)
	ListByStudent(studentID uint) ([]model.RoadmapRecord, error)
	Update(record *model.RoadmapRecord) error
}

// ProgressService 维护路线图任务的完成状态：
// 先落本地乐观缓存，再尝试远端持久化，服务端返回的权威进度覆盖本地推算值。
type ProgressService struct {
	roadmaps    roadmapProgressStore
	completions CompletionStore
	api         taskCompletionAPI
}

func NewProgressService(roadmaps roadmapProgressStore, completions CompletionStore, api taskCompletionAPI) *ProgressService {
	return &ProgressService{
		roadmaps:    roadmaps,
		completions: completions,
		api:         api,
	}
}

// ToggleResult 一次任务翻转的交付结果。
// Saved=false 表示远端未确认，本地状态保留，由用户下次操作时自然重试。
type ToggleResult struct {
	TaskID    string                  `json:"taskId"`
	Completed bool                    `json:"completed"`
	Saved     bool                    `json:"saved"`
	LocalOnly bool                    `json:"localOnly"`
	Progress  *model.ProgressTracking `json:"progress,omitempty"`
}

// ToggleTask 翻转任务完成状态。resultID 为空时是纯本地模式：
// 只改乐观缓存，绝不发起远程调用。
func (s *ProgressService) ToggleTask(ctx context.Context, claims *util.Claims, resultID, taskID string) (*ToggleResult, error) {
	completed, err := s.completions.Toggle(ctx, claims.UserID, resultID, taskID)
	if err != nil {
		return nil, err
	}

	result := &ToggleResult{
		TaskID:    taskID,
		Completed: completed,
	}

	if resultID == "" {
		result.LocalOnly = true
		return result, nil
	}

	record, err := s.roadmaps.FindByID(resultID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(claims, record.StudentID); err != nil {
		return nil, err
	}

	roadmap, err := record.Decode()
	if err != nil {
		return nil, err
	}

	done, err := s.completions.Completed(ctx, claims.UserID, resultID)
	if err != nil {
		done = map[string]bool{}
	}
	local := ComputeProgress(roadmap, done)

	remote, err := s.api.MarkTaskComplete(ctx, resultID, taskID, TaskCompletionRequest{
		Completed:   completed,
		CompletedAt: time.Now(),
	})
	if err != nil {
		// 持久化冲突：保留乐观状态，告知可能未保存，不自动重试
		logger.Log.Warn("task completion not persisted remotely, keeping optimistic state",
			zap.String("resultId", resultID),
			zap.String("taskId", taskID),
			zap.Error(err))
		result.Progress = &local
		return result, nil
	}

	authoritative := MergeProgress(local, remote.ProgressTracking)
	result.Saved = true
	result.Progress = &authoritative

	// 回写服务端确认的进度，后续读取无需再推算
	roadmap.ProgressTracking = authoritative
	if analysisJSON, err := json.Marshal(roadmap); err == nil {
		record.DetailedAnalysis = analysisJSON
		if err := s.roadmaps.Update(record); err != nil {
			logger.Log.Warn("failed to persist reconciled progress",
				zap.String("resultId", resultID),
				zap.Error(err))
		}
	}

	return result, nil
}

// RoadmapView 面向展示层的路线图记录
type RoadmapView struct {
	ResultID         string         `json:"resultId"`
	GeneratedAt      time.Time      `json:"generatedAt"`
	DetailedAnalysis *model.Roadmap `json:"detailedAnalysis"`
}

// LatestRoadmap 学生最近一次生成的路线图，叠加乐观完成状态
func (s *ProgressService) LatestRoadmap(ctx context.Context, claims *util.Claims) (*RoadmapView, error) {
	record, err := s.roadmaps.FindLatestByStudent(claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, claims, record)
}

// AllRoadmaps 学生的全部路线图，新的在前
func (s *ProgressService) AllRoadmaps(ctx context.Context, claims *util.Claims) ([]RoadmapView, error) {
	records, err := s.roadmaps.ListByStudent(claims.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]RoadmapView, 0, len(records))
	for i := range records {
		view, err := s.buildView(ctx, claims, &records[i])
		if err != nil {
			logger.Log.Warn("skipping undecodable roadmap record",
				zap.String("resultId", records[i].ID),
				zap.Error(err))
			continue
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *ProgressService) buildView(ctx context.Context, claims *util.Claims, record *model.RoadmapRecord) (*RoadmapView, error) {
	roadmap, err := record.Decode()
	if err != nil {
		return nil, err
	}

	done, err := s.completions.Completed(ctx, claims.UserID, record.ID)
	if err != nil {
		done = map[string]bool{}
	}

	applyCompletion(roadmap, done)
	local := ComputeProgress(roadmap, nil)
	roadmap.ProgressTracking = MergeProgress(local, roadmap.ProgressTracking)

	return &RoadmapView{
		ResultID:         record.ID,
		GeneratedAt:      record.GeneratedAt,
		DetailedAnalysis: roadmap,
	}, nil
}

// applyCompletion 把乐观完成集合落到任务上
func applyCompletion(roadmap *model.Roadmap, done map[string]bool) {
	for pi := range roadmap.Phases {
		for di := range roadmap.Phases[pi].Days {
			for ti := range roadmap.Phases[pi].Days[di].Tasks {
				task := &roadmap.Phases[pi].Days[di].Tasks[ti]
				if done[task.ID] {
					task.Completed = true
				}
			}
		}
	}
}

// ComputeProgress 本地推算完成度，仅作为服务端无权威值时的回退展示。
// 阶段只有在其全部天的全部任务完成时才计为完成。
func ComputeProgress(roadmap *model.Roadmap, done map[string]bool) model.ProgressTracking {
	var completedTasks, totalTasks, completedPhases int

	for _, phase := range roadmap.Phases {
		phaseComplete := true
		phaseHasTasks := false
		for _, day := range phase.Days {
			for _, task := range day.Tasks {
				phaseHasTasks = true
				totalTasks++
				if task.Completed || done[task.ID] {
					completedTasks++
				} else {
					phaseComplete = false
				}
			}
		}
		if phaseComplete && phaseHasTasks {
			completedPhases++
		}
	}

	pt := model.ProgressTracking{
		CompletedPhases: completedPhases,
		TotalPhases:     len(roadmap.Phases),
	}
	if totalTasks > 0 {
		pt.CompletionPercent = float64(completedTasks) / float64(totalTasks) * 100
	}
	return pt
}

// MergeProgress 本地乐观值与服务端权威值的对账：服务端非零即胜出
func MergeProgress(local, remote model.ProgressTracking) model.ProgressTracking {
	if remote.CompletionPercent > 0 || remote.CompletedPhases > 0 {
		return remote
	}
	return local
}
