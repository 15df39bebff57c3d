package controller

import (
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	Results *service.ResultService
}

func NewResultController(results *service.ResultService) *ResultController {
	return &ResultController{Results: results}
}

// @Summary 我的成绩
// @Description 各分区得分与总百分比，简答题待人工批改时 pendingGrading 为 true
// @Tags 成绩
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response{data=service.ResultSummary}
// @Failure 404 {object} util.Response
// @Router /quizzes/{quizId}/result [get]
func (c *ResultController) MyResult(ctx *gin.Context) {
	identity, ok := currentIdentity(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	sum, err := c.Results.Result(ctx.Request.Context(), identity.UserID, ctx.Param("quizId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, sum)
}

// @Summary 测验成绩列表
// @Tags 成绩
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Failure 403 {object} util.Response
// @Router /teacher/quizzes/{id}/attempts [get]
func (c *ResultController) QuizResults(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.Results.QuizResults(ctx.Request.Context(), caller, ctx.Param("id"), page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}
