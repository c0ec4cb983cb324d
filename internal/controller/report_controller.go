package controller

import (
	"edumentor_backend/internal/service"
	"edumentor_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ReportController struct {
	ReportService    *service.ReportService
	StudyPlanService *service.StudyPlanService
}

func NewReportController(reportService *service.ReportService, studyPlanService *service.StudyPlanService) *ReportController {
	return &ReportController{
		ReportService:    reportService,
		StudyPlanService: studyPlanService,
	}
}

func (c *ReportController) Profile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	profiles, err := c.ReportService.ProfileFor(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"profiles": profiles})
}

func (c *ReportController) Report(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	assessmentID, err := strconv.ParseUint(ctx.Param("assessmentId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid assessment id")
		return
	}

	report, err := c.ReportService.ReportFor(user.UserID, uint(assessmentID))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, report)
}

func (c *ReportController) StudyPlan(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	plan, err := c.StudyPlanService.LatestPlan(user.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, plan)
}
