package controller

import (
	"strings"

	"quiz_mentor_backend/internal/model"
	"quiz_mentor_backend/internal/service"
	"quiz_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningTargetController struct {
	Targets *service.LearningTargetService
}

func NewLearningTargetController(targets *service.LearningTargetService) *LearningTargetController {
	return &LearningTargetController{Targets: targets}
}

// @Summary 学习目标列表
// @Description 列出用户在课程下的全部子主题及掌握度状态，可按状态过滤
// @Tags 学习目标
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param status query string false "逗号分隔的状态过滤：pending,failed,medium,mastered"
// @Success 200 {object} util.Response{data=[]model.LearningTarget}
// @Router /api/courses/{id}/targets [get]
func (c *LearningTargetController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("id"))
	statuses := parseStatusFilter(ctx.Query("status"))

	targets, err := c.Targets.ListByCourse(courseID, user.UserID, statuses)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, targets)
}

// @Summary 掌握度统计
// @Description 各状态的学习目标数量，前端据此决定可用的出题模式
// @Tags 学习目标
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.TargetStats}
// @Router /api/courses/{id}/targets/stats [get]
func (c *LearningTargetController) Stats(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	stats, err := c.Targets.Stats(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

var validStatuses = map[string]model.TargetStatus{
	string(model.TargetPending):  model.TargetPending,
	string(model.TargetFailed):   model.TargetFailed,
	string(model.TargetMedium):   model.TargetMedium,
	string(model.TargetMastered): model.TargetMastered,
}

func parseStatusFilter(raw string) []model.TargetStatus {
	if raw == "" {
		return nil
	}
	var statuses []model.TargetStatus
	for _, part := range strings.Split(raw, ",") {
		if s, ok := validStatuses[strings.TrimSpace(part)]; ok {
			statuses = append(statuses, s)
		}
	}
	return statuses
}
