package handler

import (
	"errors"
	"net/http"
	"strconv"
	"summary-fusion/app/model"
	"summary-fusion/app/service"

	"github.com/gin-gonic/gin"
)

// JobHandler 摘要任务处理器
type JobHandler struct {
	jobs *service.JobService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// 创建成功响应
func (h *JobHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// 创建错误响应
func (h *JobHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	})
}

// SubmitRequest 提交任务请求结构
type SubmitRequest struct {
	SourceType string `json:"source_type" binding:"required"`
	SourceRef  string `json:"source_ref" binding:"required"`
	Provider   string `json:"provider"`
}

// Submit 提交摘要任务（允许匿名）
func (h *JobHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	// 可选认证：有登录态就记录所属用户
	var userID *uint
	if v, exists := c.Get("user_id"); exists {
		id := v.(uint)
		userID = &id
	}

	job, err := h.jobs.Submit(req.SourceType, req.SourceRef, req.Provider, userID)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	h.success(c, gin.H{"job_id": job.JobID}, "任务已提交")
}

// StatusResponse 任务状态响应结构
type StatusResponse struct {
	JobID        string                `json:"job_id"`
	Status       model.JobStatus       `json:"status"`
	Progress     int                   `json:"progress"`
	Stage        string                `json:"stage"`
	ErrorKind    string                `json:"error_kind,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Results      []model.SummaryResult `json:"results"`
}

// GetStatus 查询任务状态和结果
func (h *JobHandler) GetStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.Get(jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			h.error(c, http.StatusNotFound, 404, "任务不存在")
			return
		}
		h.error(c, http.StatusInternalServerError, 500, "查询任务失败")
		return
	}

	h.success(c, StatusResponse{
		JobID:        job.JobID,
		Status:       job.Status,
		Progress:     job.Progress,
		Stage:        job.Stage,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		Results:      job.Results,
	}, "查询成功")
}

// Cancel 取消任务
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID := c.Param("job_id")

	err := h.jobs.Cancel(jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			h.error(c, http.StatusNotFound, 404, "任务不存在")
		case errors.Is(err, service.ErrAlreadyTerminal):
			h.error(c, http.StatusConflict, 409, "任务已处于终态，无法取消")
		default:
			h.error(c, http.StatusInternalServerError, 500, "取消任务失败")
		}
		return
	}

	h.success(c, nil, "任务已取消")
}

// List 查询任务列表
func (h *JobHandler) List(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		h.error(c, http.StatusUnauthorized, 401, "用户未认证")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	status := c.Query("status")

	uid := userID.(uint)
	jobs, total, err := h.jobs.List(&uid, status, page, pageSize)
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "获取任务列表失败")
		return
	}

	h.success(c, gin.H{
		"list":     jobs,
		"total":    total,
		"current":  page,
		"pageSize": pageSize,
	}, "获取任务列表成功")
}
