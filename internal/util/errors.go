package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")

	// 进入分区时的配置类错误，前端直接展示，不可重试
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrQuizInactive    = errors.New("quiz is not active")
	ErrSecretMismatch  = errors.New("secret code does not match")
	ErrSectionDisabled = errors.New("section is not enabled for this quiz")
	ErrNoQuestions     = errors.New("no questions available for this section")

	ErrAttemptNotFound       = errors.New("attempt not found")
	ErrAttemptExists         = errors.New("attempt already exists")
	ErrSectionSubmitted      = errors.New("section already submitted")
	ErrSectionAlreadyStarted = errors.New("section already started")
	ErrWriteConflict         = errors.New("attempt was modified concurrently")

	ErrSessionNotFound = errors.New("no active session for this section")
	ErrSessionNotReady = errors.New("session is not accepting input")
	ErrInvalidSignal   = errors.New("unknown violation signal")
	ErrInvalidAnswer   = errors.New("answer is not valid for this question")
	ErrInvalidKind     = errors.New("unknown section kind")
)

// IsConfigError 测验配置导致无法进入分区的错误
func IsConfigError(err error) bool {
	return errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuizInactive) ||
		errors.Is(err, ErrSecretMismatch) ||
		errors.Is(err, ErrSectionDisabled) ||
		errors.Is(err, ErrNoQuestions)
}
