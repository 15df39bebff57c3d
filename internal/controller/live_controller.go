package controller

import (
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LiveController struct {
	Feed     service.AttemptFeed
	Sessions *service.SessionManager
}

func NewLiveController(feed service.AttemptFeed, sessions *service.SessionManager) *LiveController {
	return &LiveController{Feed: feed, Sessions: sessions}
}

// HandleWS godoc
// @Summary 答题记录实时推送
// @Description 建立 WebSocket 连接，推送当前用户在该测验上的答题记录变更；客户端可发送 {"type":"VIOLATION","kind":"mcq","signal":"window_blur"} 上报违规
// @Tags 答题
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param token query string false "令牌，浏览器 WebSocket 无法设置请求头时使用"
// @Router /quizzes/{quizId}/attempt/live [get]
func (c *LiveController) HandleWS(ctx *gin.Context) {
	identity, ok := currentIdentity(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	service.ServeAttemptLive(c.Feed, c.Sessions, ctx.Writer, ctx.Request, identity, ctx.Param("quizId"))
}
