package controller

import (
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	Launcher *service.SectionLauncher
	Sessions *service.SessionManager
}

func NewSessionController(launcher *service.SectionLauncher, sessions *service.SessionManager) *SessionController {
	return &SessionController{Launcher: launcher, Sessions: sessions}
}

type EnterSectionRequest struct {
	SecretCode string `json:"secretCode" binding:"max=72"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type ViolationRequest struct {
	Signal string `json:"signal" binding:"required"`
}

// sessionKey 从路径和令牌中取出会话键，失败时已经写好响应
func (c *SessionController) sessionKey(ctx *gin.Context) (service.SessionKey, service.Identity, bool) {
	identity, ok := currentIdentity(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return service.SessionKey{}, identity, false
	}
	kind, ok := model.ParseSectionKind(ctx.Param("kind"))
	if !ok {
		util.BadRequest(ctx, util.ErrInvalidKind.Error())
		return service.SessionKey{}, identity, false
	}
	return service.SessionKey{UserID: identity.UserID, QuizID: ctx.Param("quizId"), Kind: kind}, identity, true
}

func (c *SessionController) session(ctx *gin.Context) (*service.AttemptSession, bool) {
	key, _, ok := c.sessionKey(ctx)
	if !ok {
		return nil, false
	}
	sess, err := c.Sessions.Get(key)
	if err != nil {
		respondError(ctx, err)
		return nil, false
	}
	return sess, true
}

// @Summary 进入分区
// @Description 校验测验配置和口令，恢复或创建答题记录并开始计时。刷新页面等同于再次进入。
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型 mcq|truefalse|short"
// @Param body body EnterSectionRequest false "私有测验的口令"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /quizzes/{quizId}/sections/{kind}/session [post]
func (c *SessionController) Enter(ctx *gin.Context) {
	key, identity, ok := c.sessionKey(ctx)
	if !ok {
		return
	}
	var req EnterSectionRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	view, err := c.Launcher.Enter(ctx.Request.Context(), identity, key.QuizID, key.Kind, req.SecretCode)
	respondSession(ctx, view, err)
}

// @Summary 获取当前会话
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Failure 404 {object} util.Response
// @Router /quizzes/{quizId}/sections/{kind}/session [get]
func (c *SessionController) Get(ctx *gin.Context) {
	sess, ok := c.session(ctx)
	if !ok {
		return
	}
	util.Success(ctx, sess.View())
}

// @Summary 作答当前题目
// @Description 立即保存，保存失败只在 message 中提示，不影响本次请求
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型"
// @Param body body AnswerRequest true "作答内容"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /quizzes/{quizId}/sections/{kind}/session/answer [put]
func (c *SessionController) Answer(ctx *gin.Context) {
	sess, ok := c.session(ctx)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	view, err := sess.Answer(ctx.Request.Context(), req.Answer)
	respondSession(ctx, view, err)
}

// @Summary 下一题
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Router /quizzes/{quizId}/sections/{kind}/session/next [post]
func (c *SessionController) Next(ctx *gin.Context) {
	sess, ok := c.session(ctx)
	if !ok {
		return
	}
	view, err := sess.Next(ctx.Request.Context())
	respondSession(ctx, view, err)
}

// @Summary 上一题
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Router /quizzes/{quizId}/sections/{kind}/session/previous [post]
func (c *SessionController) Previous(ctx *gin.Context) {
	sess, ok := c.session(ctx)
	if !ok {
		return
	}
	view, err := sess.Previous(ctx.Request.Context())
	respondSession(ctx, view, err)
}

// @Summary 提交分区
// @Description 判分并合并到总成绩，提交后跳回分区选择页
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Failure 409 {object} util.Response
// @Router /quizzes/{quizId}/sections/{kind}/session/submit [post]
func (c *SessionController) Submit(ctx *gin.Context) {
	sess, ok := c.session(ctx)
	if !ok {
		return
	}
	view, err := sess.Submit(ctx.Request.Context(), service.TriggerManual)
	respondSession(ctx, view, err)
}

// @Summary 上报违规
// @Description 页面隐藏、窗口失焦、后退导航。短时间内的重复信号只计一次
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型"
// @Param body body ViolationRequest true "visibility_hidden|window_blur|back_navigation"
// @Success 200 {object} util.Response{data=service.ViolationOutcome}
// @Failure 400 {object} util.Response
// @Router /quizzes/{quizId}/sections/{kind}/session/violations [post]
func (c *SessionController) ReportViolation(ctx *gin.Context) {
	sess, ok := c.session(ctx)
	if !ok {
		return
	}
	var req ViolationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	signal, err := service.ParseViolationSignal(req.Signal)
	if err != nil {
		respondError(ctx, err)
		return
	}
	out, err := sess.ReportViolation(ctx.Request.Context(), signal)
	if err != nil {
		respondSession(ctx, out.View, err)
		return
	}
	util.Success(ctx, out)
}

// @Summary 离开分区
// @Description 停止计时和监控，已保存的作答保留，可以再次进入继续
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param kind path string true "题型"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Failure 404 {object} util.Response
// @Router /quizzes/{quizId}/sections/{kind}/session [delete]
func (c *SessionController) Leave(ctx *gin.Context) {
	key, _, ok := c.sessionKey(ctx)
	if !ok {
		return
	}
	view, err := c.Sessions.Close(key)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
