package controller

import (
	"net/http"

	"quiz_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb}
}

// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	status := gin.H{"database": "up", "redis": "up"}
	healthy := true

	if sqlDB, err := c.DB.DB(); err != nil || sqlDB.PingContext(ctx.Request.Context()) != nil {
		status["database"] = "down"
		healthy = false
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
			status["redis"] = "down"
			healthy = false
		}
	}

	if !healthy {
		util.Error(ctx, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	util.Success(ctx, status)
}
