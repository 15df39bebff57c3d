package controller

import (
	"errors"
	"net/http"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// statusFor 领域错误到 HTTP 状态码，未识别的错误返回 false
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrSessionNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, util.ErrQuizInactive),
		errors.Is(err, util.ErrSecretMismatch),
		errors.Is(err, util.ErrSectionDisabled),
		errors.Is(err, util.ErrPermissionDenied):
		return http.StatusForbidden, true
	case errors.Is(err, util.ErrNoQuestions),
		errors.Is(err, util.ErrSessionNotReady),
		errors.Is(err, util.ErrSectionSubmitted),
		errors.Is(err, util.ErrAttemptExists),
		errors.Is(err, util.ErrWriteConflict):
		return http.StatusConflict, true
	case errors.Is(err, util.ErrInvalidAnswer),
		errors.Is(err, util.ErrInvalidSignal),
		errors.Is(err, util.ErrInvalidKind),
		errors.Is(err, util.ErrInvalidInput):
		return http.StatusBadRequest, true
	}
	return 0, false
}

func respondError(ctx *gin.Context, err error) {
	if status, ok := statusFor(err); ok {
		util.Error(ctx, status, err.Error())
		return
	}
	util.LogInternalError(ctx, err)
}

// respondSession 会话接口出错时也返回当前视图，前端据此展示提示或跳转
func respondSession(ctx *gin.Context, view service.SessionView, err error) {
	if err == nil {
		util.Success(ctx, view)
		return
	}
	if status, ok := statusFor(err); ok {
		util.ErrorWithData(ctx, status, err.Error(), view)
		return
	}
	util.LogInternalError(ctx, err)
}

func currentIdentity(ctx *gin.Context) (service.Identity, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		return service.Identity{}, false
	}
	name := user.Name
	if name == "" {
		name = user.Email
	}
	return service.Identity{UserID: user.UserID, Name: name}, true
}

func currentCaller(ctx *gin.Context) (service.Caller, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		return service.Caller{}, false
	}
	return service.Caller{UserID: user.UserID, Role: user.Role}, true
}
