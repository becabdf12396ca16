package handler

import (
	"errors"
	"net/http"
	"strconv"

	"auto-tube/app/database"
	"auto-tube/app/model"
	"auto-tube/app/pipeline"

	"github.com/gin-gonic/gin"
)

// JobHandler 任务处理器
type JobHandler struct {
	orch *pipeline.Orchestrator
	pool *pipeline.WorkerPool
}

// NewJobHandler 创建任务处理器
func NewJobHandler(orch *pipeline.Orchestrator, pool *pipeline.WorkerPool) *JobHandler {
	return &JobHandler{
		orch: orch,
		pool: pool,
	}
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

type submitJobRequest struct {
	Category string `json:"category" binding:"required"`
}

// SubmitJob 手动提交一个临时任务
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	job, err := h.orch.SubmitJob(c.Request.Context(), req.Category)
	if err != nil {
		// 选题评分或判重失败阻止任务创建，直接返回给调用方
		var sigErr *pipeline.InvalidSignalRangeError
		if errors.Is(err, pipeline.ErrNoSuitableTopic) || errors.As(err, &sigErr) {
			h.error(c, http.StatusUnprocessableEntity, 422, err.Error())
			return
		}
		h.error(c, http.StatusInternalServerError, 500, err.Error())
		return
	}

	h.success(c, gin.H{"job_id": job.ID, "state": job.State, "topic": job.Topic.Title}, "任务已创建")
}

// GetJob 返回任务状态、完整执行历史和质量报告
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.orch.GetJob(c.Param("id"))
	if err != nil {
		if pipeline.IsNotFound(err) {
			h.error(c, http.StatusNotFound, 404, "任务不存在")
			return
		}
		h.error(c, http.StatusInternalServerError, 500, "查询任务失败")
		return
	}
	h.success(c, job, "ok")
}

// ListJobs 任务列表，支持按状态和分类过滤
func (h *JobHandler) ListJobs(c *gin.Context) {
	query := database.DB.Model(&model.Job{}).Order("created_at DESC")

	if state := c.Query("state"); state != "" {
		query = query.Where("state = ?", state)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	limit := 50
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	var jobs []model.Job
	if err := query.Limit(limit).Find(&jobs).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询任务列表失败")
		return
	}
	h.success(c, jobs, "ok")
}

// CancelJob 请求取消任务。取消是协作式的，处理中的任务等当前阶段结束后落地。
func (h *JobHandler) CancelJob(c *gin.Context) {
	if err := h.orch.CancelJob(c.Param("id")); err != nil {
		if pipeline.IsNotFound(err) {
			h.error(c, http.StatusNotFound, 404, "任务不存在")
			return
		}
		h.error(c, http.StatusConflict, 409, err.Error())
		return
	}
	h.success(c, nil, "取消请求已受理")
}

// QueueStatus 按状态统计任务数量
func (h *JobHandler) QueueStatus(c *gin.Context) {
	status, err := h.pool.QueueStatus()
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询队列状态失败")
		return
	}
	h.success(c, status, "ok")
}
