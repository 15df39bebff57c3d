package controller

import (
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LauncherController struct {
	Launcher *service.SectionLauncher
}

func NewLauncherController(launcher *service.SectionLauncher) *LauncherController {
	return &LauncherController{Launcher: launcher}
}

// @Summary 分区选择页
// @Description 列出测验启用的分区及其状态：未开始、进行中（含剩余秒数）、已提交
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response{data=service.LauncherView}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /quizzes/{quizId}/sections [get]
func (c *LauncherController) Sections(ctx *gin.Context) {
	identity, ok := currentIdentity(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	view, err := c.Launcher.Sections(ctx.Request.Context(), identity.UserID, ctx.Param("quizId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
