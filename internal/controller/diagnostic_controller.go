package controller

import (
	"edumentor_backend/internal/service"
	"edumentor_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type DiagnosticController struct {
	DiagnosticService *service.DiagnosticService
}

func NewDiagnosticController(diagnosticService *service.DiagnosticService) *DiagnosticController {
	return &DiagnosticController{DiagnosticService: diagnosticService}
}

// NextQuestion serves the next adaptive question for the subject, or a
// completion marker once the session is done.
func (c *DiagnosticController) NextQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	subject := ctx.Param("subject")
	result, err := c.DiagnosticService.NextQuestion(ctx.Request.Context(), user.UserID, subject, user.GradeLevel)
	if err != nil {
		respondDiagnosticError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

type SubmitAnswerRequest struct {
	AssessmentID uint   `json:"assessmentId" binding:"required"`
	QuestionID   uint   `json:"questionId" binding:"required"`
	Answer       string `json:"answer"`
}

func (c *DiagnosticController) SubmitAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.DiagnosticService.SubmitAnswer(ctx.Request.Context(), user.UserID, req.AssessmentID, req.QuestionID, req.Answer)
	if err != nil {
		respondDiagnosticError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

func (c *DiagnosticController) Status(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	studentID := user.UserID
	// Parents may query a child's progress by id.
	if raw := ctx.Query("studentId"); raw != "" && user.Role != "student" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			util.BadRequest(ctx, "invalid studentId")
			return
		}
		studentID = uint(parsed)
	}

	status, err := c.DiagnosticService.Status(ctx.Request.Context(), studentID)
	if err != nil {
		respondDiagnosticError(ctx, err)
		return
	}

	util.Success(ctx, status)
}

func respondDiagnosticError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrValidation):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrConflict):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrNotFound):
		util.NotFound(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
