package app

import (
	"quiz_platform_backend/docs"
	"quiz_platform_backend/internal/config"
	"quiz_platform_backend/internal/middleware"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/monitoring"
	"quiz_platform_backend/pkg/security"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// userKey 登录后的接口按用户限流，同一教室共用出口 IP 时互不影响
func userKey(c *gin.Context) string {
	if user := util.GetUserFromContext(c); user != nil {
		return "user:" + user.UserID
	}
	return security.ClientIPKey(c)
}

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret),
		security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, userKey),
	)
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/quizzes/:quizId/sections", c.launcher.Sections)
	rg.GET("/quizzes/:quizId/result", c.result.MyResult)
	rg.GET("/quizzes/:quizId/attempt/live", c.live.HandleWS)

	session := rg.Group("/quizzes/:quizId/sections/:kind/session")
	{
		session.POST("", c.session.Enter)
		session.GET("", c.session.Get)
		session.DELETE("", c.session.Leave)
		session.PUT("/answer", c.session.Answer)
		session.POST("/next", c.session.Next)
		session.POST("/previous", c.session.Previous)
		session.POST("/submit", c.session.Submit)
		session.POST("/violations", c.session.ReportViolation)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/quizzes", c.quiz.CreateQuiz)
		teacher.POST("/quizzes/:id/questions", c.quiz.AddQuestions)
		teacher.POST("/quizzes/:id/questions/import", c.quiz.ImportQuestions)
		teacher.POST("/quizzes/:id/cover", c.quiz.UploadCover)
		teacher.GET("/quizzes/:id/attempts", c.result.QuizResults)
	}
}
