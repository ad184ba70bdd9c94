package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"school_edu_backend/docs"
	"school_edu_backend/internal/config"
	"school_edu_backend/internal/middleware"
	"school_edu_backend/internal/model"
	"school_edu_backend/pkg/monitoring"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 测验提交与反馈链
		authGroup.POST("/submissions", c.submission.CreateSubmission)
		authGroup.GET("/submissions", c.submission.ListSubmissions)
		authGroup.GET("/submissions/:id", c.submission.GetSubmission)
		authGroup.GET("/submissions/:id/result", c.submission.GetSubmissionResult)

		// 教师端：查看指定学生的提交
		authGroup.GET("/students/:studentId/submissions",
			middleware.RoleMiddleware(model.Teacher),
			c.submission.ListStudentSubmissions)

		// 进步评估链
		authGroup.POST("/submissions/:id/evaluate", c.evaluation.EvaluateSubmission)
		authGroup.GET("/submissions/:id/evaluation", c.evaluation.GetEvaluation)

		// 学习路线图与进度
		authGroup.POST("/submissions/:id/roadmap", c.roadmap.GenerateRoadmap)
		authGroup.GET("/roadmaps", c.roadmap.GetAllRoadmaps)
		authGroup.GET("/roadmaps/latest", c.roadmap.GetLatestRoadmap)
		authGroup.PUT("/roadmaps/:resultId/tasks/:taskId/complete", c.roadmap.ToggleTaskCompletion)
	}
}
