package controller

import (
	"errors"
	"strconv"

	"quiz_mentor_backend/internal/service"
	"quiz_mentor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DocumentController struct {
	Documents *service.DocumentService
}

func NewDocumentController(documents *service.DocumentService) *DocumentController {
	return &DocumentController{Documents: documents}
}

// @Summary 上传课程资料
// @Description 上传文本类资料并自动提取子主题、建档学习目标
// @Tags 课程资料
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param file formData file true "资料文件（txt/md/csv/html）"
// @Success 201 {object} util.Response{data=model.Document}
// @Failure 415 {object} util.Response "不支持的内容类型"
// @Router /api/courses/{id}/documents [post]
func (c *DocumentController) Upload(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少上传文件")
		return
	}

	doc, err := c.Documents.Upload(ctx.Request.Context(), user.UserID, util.MustParseUint(ctx.Param("id")), fileHeader)
	if err != nil {
		respondDocumentError(ctx, err)
		return
	}
	util.Created(ctx, doc)
}

// @Summary 资料列表
// @Tags 课程资料
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/courses/{id}/documents [get]
func (c *DocumentController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	docs, total, err := c.Documents.List(user.UserID, util.MustParseUint(ctx.Param("id")), page, limit)
	if err != nil {
		respondDocumentError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: docs, Total: total, Page: page, Limit: limit})
}

// @Summary 资料详情
// @Tags 课程资料
// @Produce json
// @Security BearerAuth
// @Param id path string true "资料ID"
// @Success 200 {object} util.Response{data=model.Document}
// @Router /api/documents/{id} [get]
func (c *DocumentController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	doc, err := c.Documents.Get(user.UserID, ctx.Param("id"))
	if err != nil {
		respondDocumentError(ctx, err)
		return
	}
	util.Success(ctx, doc)
}

// @Summary 重新摄入资料
// @Description 对提取失败或未识别出主题的资料重跑摄入流水线
// @Tags 课程资料
// @Produce json
// @Security BearerAuth
// @Param id path string true "资料ID"
// @Success 200 {object} util.Response{data=model.Document}
// @Router /api/documents/{id}/reingest [post]
func (c *DocumentController) Reingest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	doc, err := c.Documents.Reingest(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		respondDocumentError(ctx, err)
		return
	}
	util.Success(ctx, doc)
}

// @Summary 删除资料
// @Tags 课程资料
// @Produce json
// @Security BearerAuth
// @Param id path string true "资料ID"
// @Success 200 {object} util.Response
// @Router /api/documents/{id} [delete]
func (c *DocumentController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Documents.Delete(ctx.Request.Context(), user.UserID, ctx.Param("id")); err != nil {
		respondDocumentError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func respondDocumentError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrDocumentNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrUnsupportedContent):
		util.Error(ctx, 415, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
