package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"school_edu_backend/internal/service"
	"school_edu_backend/internal/util"
)

type RoadmapController struct {
	Evaluation *service.EvaluationService
	Progress   *service.ProgressService
}

func NewRoadmapController(eval *service.EvaluationService, progress *service.ProgressService) *RoadmapController {
	return &RoadmapController{Evaluation: eval, Progress: progress}
}

// @Summary 生成个性化学习路线图
// @Description 需要已完成的进步评估；没有错题时返回"无需补救"而不调用远端
// @Tags 学习路线图
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Param body body service.RoadmapOptions false "个性化参数"
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response "路线图服务不可用，可重试"
// @Router /api/submissions/{id}/roadmap [post]
func (c *RoadmapController) GenerateRoadmap(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var opts service.RoadmapOptions
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&opts); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	result, err := c.Evaluation.GenerateRoadmap(ctx.Request.Context(), user, ctx.Param("id"), opts)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSubmissionNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrEvaluationRequired):
			util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, util.ErrNothingToRemediate):
			util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, util.ErrRoadmapUnavailable):
			util.ServiceUnavailable(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

// @Summary 获取最新学习路线图
// @Tags 学习路线图
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/roadmaps/latest [get]
func (c *RoadmapController) GetLatestRoadmap(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Progress.LatestRoadmap(ctx.Request.Context(), user)
	if err != nil {
		if errors.Is(err, util.ErrRoadmapNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

// @Summary 获取全部学习路线图
// @Tags 学习路线图
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/roadmaps [get]
func (c *RoadmapController) GetAllRoadmaps(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	views, err := c.Progress.AllRoadmaps(ctx.Request.Context(), user)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, views)
}

// @Summary 翻转任务完成状态
// @Description 先更新本地乐观状态再尝试远端持久化；远端失败时保留本地状态并提示可能未保存
// @Tags 学习路线图
// @Produce json
// @Security BearerAuth
// @Param resultId path string true "路线图ID"
// @Param taskId path string true "任务ID"
// @Success 200 {object} util.Response
// @Router /api/roadmaps/{resultId}/tasks/{taskId}/complete [put]
func (c *RoadmapController) ToggleTaskCompletion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Progress.ToggleTask(ctx.Request.Context(), user, ctx.Param("resultId"), ctx.Param("taskId"))
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
			return
		}
		if errors.Is(err, util.ErrRoadmapNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	if !result.Saved && !result.LocalOnly {
		// 乐观状态已生效，但远端未确认
		ctx.JSON(http.StatusOK, util.Response{
			Code:    http.StatusOK,
			Message: util.ErrProgressNotSaved.Error(),
			Data:    result,
		})
		return
	}

	util.Success(ctx, result)
}
