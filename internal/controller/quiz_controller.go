package controller

import (
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

type AddQuestionsRequest struct {
	Questions []service.QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// @Summary 创建测验
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateQuizRequest true "测验信息"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Router /teacher/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.CreateQuiz(ctx.Request.Context(), caller, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Created(ctx, quiz)
}

// @Summary 添加题目
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param body body AddQuestionsRequest true "题目列表"
// @Success 201 {object} util.Response
// @Router /teacher/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestions(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req AddQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	n, err := c.Service.AddQuestions(ctx.Request.Context(), caller, ctx.Param("id"), req.Questions)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"created": n})
}

// @Summary 从 CSV 导入题目
// @Description 每行 kind,text,options,answer；选择题 options 用 | 分隔，answer 为正确选项文本
// @Tags 测验管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param file formData file true "CSV 文件"
// @Success 201 {object} util.Response
// @Router /teacher/quizzes/{id}/questions/import [post]
func (c *QuizController) ImportQuestions(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "请选择要上传的文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	n, err := c.Service.ImportQuestionsCSV(ctx.Request.Context(), caller, ctx.Param("id"), file)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"created": n})
}

// @Summary 上传测验封面
// @Tags 测验管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param file formData file true "封面图片"
// @Success 200 {object} util.Response
// @Router /teacher/quizzes/{id}/cover [post]
func (c *QuizController) UploadCover(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "请选择要上传的文件")
		return
	}
	if fileHeader.Size > util.MaxCoverBytes {
		util.BadRequest(ctx, "文件大小不能超过 5MB")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	url, err := c.Service.UploadCover(ctx.Request.Context(), caller, ctx.Param("id"), fileHeader.Filename, file, fileHeader.Size)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"url": url})
}
