package controller

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"school_edu_backend/internal/service"
	"school_edu_backend/internal/util"
)

type SubmissionController struct {
	Service    *service.SubmissionService
	Evaluation *service.EvaluationService
}

func NewSubmissionController(svc *service.SubmissionService, eval *service.EvaluationService) *SubmissionController {
	return &SubmissionController{Service: svc, Evaluation: eval}
}

// @Summary 提交测验答卷
// @Tags 测验提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.SubmissionRequest true "答卷信息"
// @Success 201 {object} util.Response
// @Router /api/submissions [post]
func (c *SubmissionController) CreateSubmission(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	submission, err := c.Service.CreateSubmission(user, req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, submission)
}

// @Summary 获取提交详情
// @Tags 测验提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	submission, err := c.Service.GetSubmission(user, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
			return
		}
		util.NotFound(ctx)
		return
	}

	util.Success(ctx, submission)
}

// @Summary 获取提交列表
// @Tags 测验提交
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response
// @Router /api/submissions [get]
func (c *SubmissionController) ListSubmissions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	subs, total, err := c.Service.ListSubmissions(user, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  subs,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 获取指定学生的提交列表
// @Description 仅教师和管理员可访问
// @Tags 测验提交
// @Produce json
// @Security BearerAuth
// @Param studentId path int true "学生ID"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response
// @Router /api/students/{studentId}/submissions [get]
func (c *SubmissionController) ListStudentSubmissions(ctx *gin.Context) {
	studentID, err := strconv.ParseUint(ctx.Param("studentId"), 10, 64)
	if err != nil || studentID == 0 {
		util.BadRequest(ctx, "invalid student id")
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	subs, total, err := c.Service.ListStudentSubmissions(uint(studentID), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  subs,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 获取提交的评估结果（反馈链）
// @Description 基础分数始终返回；反馈与建议字段在对应阶段失败或超时时缺省
// @Tags 测验提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id}/result [get]
func (c *SubmissionController) GetSubmissionResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	outcome, err := c.Evaluation.RunFeedbackChain(ctx.Request.Context(), user, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
			return
		}
		if errors.Is(err, util.ErrSubmissionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, outcome)
}
