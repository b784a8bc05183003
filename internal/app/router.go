package app

import (
	"quiz_mentor_backend/docs"
	"quiz_mentor_backend/internal/config"
	"quiz_mentor_backend/internal/middleware"
	"quiz_mentor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.Check)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}

	// 需要授权的路由
	auth := router.Group("/api")
	auth.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(s.user))
	{
		auth.GET("/auth/me", c.auth.Me)
		auth.GET("/users/profile", c.user.GetProfile)
		auth.PUT("/users/profile", c.user.UpdateProfile)

		auth.POST("/courses", c.course.Create)
		auth.GET("/courses", c.course.List)
		auth.GET("/courses/:id", c.course.Get)
		auth.PUT("/courses/:id", c.course.Update)
		auth.DELETE("/courses/:id", c.course.Delete)

		auth.POST("/courses/:id/documents", c.doc.Upload)
		auth.GET("/courses/:id/documents", c.doc.List)
		auth.GET("/documents/:id", c.doc.Get)
		auth.POST("/documents/:id/reingest", c.doc.Reingest)
		auth.DELETE("/documents/:id", c.doc.Delete)

		auth.GET("/courses/:id/targets", c.target.List)
		auth.GET("/courses/:id/targets/stats", c.target.Stats)

		auth.POST("/quizzes", c.quiz.Generate)
		auth.GET("/quizzes", c.quiz.List)
		auth.GET("/quizzes/:id", c.quiz.Get)
		auth.POST("/quizzes/:id/start", c.quiz.Start)
		auth.POST("/quizzes/:id/submit", c.quiz.Submit)
		auth.POST("/quizzes/:id/abandon", c.quiz.Abandon)
		auth.GET("/quizzes/:id/analysis", c.quiz.Analysis)
	}
}
