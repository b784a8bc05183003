package controller

import (
	"errors"
	"net/http"
	"strconv"

	"quiz_mentor_backend/internal/service"
	"quiz_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Generator *service.QuizGeneratorService
	Grader    *service.QuizGraderService
	Quizzes   *service.QuizService
}

func NewQuizController(generator *service.QuizGeneratorService, grader *service.QuizGraderService, quizzes *service.QuizService) *QuizController {
	return &QuizController{Generator: generator, Grader: grader, Quizzes: quizzes}
}

// @Summary 生成测验
// @Description 按掌握度状态生成个性化测验，或按选定主题生成快速测验
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.QuizGenerationRequest true "生成参数"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 422 {object} util.Response "无可用主题"
// @Failure 502 {object} util.Response "重试耗尽，附最后一次违规详情"
// @Router /api/quizzes [post]
func (c *QuizController) Generate(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuizGenerationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Generator.Generate(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		var exhausted *service.GenerationExhaustedError
		switch {
		case errors.Is(err, service.ErrNoTopicsAvailable):
			util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &exhausted):
			ctx.JSON(http.StatusBadGateway, util.Response{
				Code:    http.StatusBadGateway,
				Message: "未能生成合格的测验，请稍后重试",
				Data:    gin.H{"attempts": exhausted.Attempts, "violations": exhausted.Violations},
			})
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, service.SanitizeForLearner(quiz))
}

// @Summary 测验详情
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id} [get]
func (c *QuizController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	quiz, err := c.Quizzes.Get(user.UserID, ctx.Param("id"))
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, service.SanitizeForLearner(quiz))
}

// @Summary 测验列表
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param courseId query int false "按课程过滤"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/quizzes [get]
func (c *QuizController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	var courseID *uint
	if raw := ctx.Query("courseId"); raw != "" {
		id := util.MustParseUint(raw)
		courseID = &id
	}

	quizzes, total, err := c.Quizzes.List(user.UserID, courseID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: quizzes, Total: total, Page: page, Limit: limit})
}

// @Summary 开始作答
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /api/quizzes/{id}/start [post]
func (c *QuizController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	quiz, err := c.Quizzes.Start(user.UserID, ctx.Param("id"))
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, service.SanitizeForLearner(quiz))
}

type submitRequest struct {
	Answers        map[string][]string `json:"answers" binding:"required"`
	ElapsedSeconds int                 `json:"elapsedSeconds"`
}

// @Summary 提交并判分
// @Description 判分、完成测验；个性化测验同时结算各子主题的掌握度
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param request body submitRequest true "作答"
// @Success 200 {object} util.Response{data=service.GradingResult}
// @Failure 409 {object} util.Response "测验已完成"
// @Router /api/quizzes/{id}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Grader.Grade(ctx.Request.Context(), user.UserID, ctx.Param("id"), req.Answers, req.ElapsedSeconds)
	if err != nil {
		if errors.Is(err, service.ErrUnknownQuestion) {
			util.BadRequest(ctx, err.Error())
			return
		}
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 放弃测验
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/abandon [post]
func (c *QuizController) Abandon(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Quizzes.Abandon(user.UserID, ctx.Param("id")); err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 测验分析
// @Description 已完成测验的得分与按主题/难度的聚合表现
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=service.GradingResult}
// @Router /api/quizzes/{id}/analysis [get]
func (c *QuizController) Analysis(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Grader.GetAnalysis(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func respondQuizError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		util.NotFound(ctx)
	case errors.Is(err, service.ErrQuizAlreadyCompleted):
		util.Error(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
