package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"school_edu_backend/internal/service"
	"school_edu_backend/internal/util"
)

type EvaluationController struct {
	Service *service.EvaluationService
}

func NewEvaluationController(svc *service.EvaluationService) *EvaluationController {
	return &EvaluationController{Service: svc}
}

// @Summary 发起进步评估
// @Description 将本次各主题正确率与历史正确率对比；已评估过的提交会被直接拒绝
// @Tags 进步评估
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "该提交已评估"
// @Failure 503 {object} util.Response "评估服务不可用，可重试"
// @Router /api/submissions/{id}/evaluate [post]
func (c *EvaluationController) EvaluateSubmission(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	evaluation, err := c.Service.EvaluateSubmission(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSubmissionNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrAlreadyEvaluated):
			util.Conflict(ctx, err.Error())
		case errors.Is(err, util.ErrNoTopics):
			util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, util.ErrEvaluationUnavailable):
			util.ServiceUnavailable(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, evaluation)
}

// @Summary 获取进步评估结果
// @Tags 进步评估
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id}/evaluation [get]
func (c *EvaluationController) GetEvaluation(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	evaluation, err := c.Service.GetEvaluation(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
			return
		}
		if errors.Is(err, util.ErrEvaluationNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, evaluation)
}
