package handler

import (
	"net/http"

	"auto-tube/app/database"
	"auto-tube/app/model"
	"auto-tube/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ScheduleHandler 调度表处理器。调度表运行时只读，所有变更经由这里并触发重载。
type ScheduleHandler struct {
	scheduler *service.SchedulerService
}

// NewScheduleHandler 创建调度表处理器
func NewScheduleHandler(scheduler *service.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler}
}

// 创建成功响应
func (h *ScheduleHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// 创建错误响应
func (h *ScheduleHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	})
}

// ListSchedules 列出全部调度项
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	var entries []model.ScheduleEntry
	if err := database.DB.Order("id ASC").Find(&entries).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询调度表失败")
		return
	}
	h.success(c, entries, "ok")
}

type scheduleRequest struct {
	Name     string `json:"name" binding:"required"`
	CronExpr string `json:"cron_expr" binding:"required"`
	Category string `json:"category" binding:"required"`
	Enabled  *bool  `json:"enabled"`
}

// CreateSchedule 新增调度项
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, err.Error())
		return
	}
	if err := service.ValidateCronExpr(req.CronExpr); err != nil {
		h.error(c, http.StatusBadRequest, 400, "cron 表达式无效: "+err.Error())
		return
	}

	entry := model.ScheduleEntry{
		Name:     req.Name,
		CronExpr: req.CronExpr,
		Category: req.Category,
		Enabled:  req.Enabled == nil || *req.Enabled,
	}
	if err := database.DB.Create(&entry).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "创建调度项失败")
		return
	}

	h.reload(c, entry, "调度项已创建")
}

// UpdateSchedule 更新调度项
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	var entry model.ScheduleEntry
	if err := database.DB.First(&entry, c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			h.error(c, http.StatusNotFound, 404, "调度项不存在")
			return
		}
		h.error(c, http.StatusInternalServerError, 500, "查询调度项失败")
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, err.Error())
		return
	}
	if err := service.ValidateCronExpr(req.CronExpr); err != nil {
		h.error(c, http.StatusBadRequest, 400, "cron 表达式无效: "+err.Error())
		return
	}

	entry.Name = req.Name
	entry.CronExpr = req.CronExpr
	entry.Category = req.Category
	if req.Enabled != nil {
		entry.Enabled = *req.Enabled
	}
	if err := database.DB.Save(&entry).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "更新调度项失败")
		return
	}

	h.reload(c, entry, "调度项已更新")
}

// DeleteSchedule 删除调度项
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	result := database.DB.Delete(&model.ScheduleEntry{}, c.Param("id"))
	if result.Error != nil {
		h.error(c, http.StatusInternalServerError, 500, "删除调度项失败")
		return
	}
	if result.RowsAffected == 0 {
		h.error(c, http.StatusNotFound, 404, "调度项不存在")
		return
	}

	h.reload(c, nil, "调度项已删除")
}

// reload 变更落库后重载调度器
func (h *ScheduleHandler) reload(c *gin.Context, data any, message string) {
	if err := h.scheduler.Reload(); err != nil {
		h.error(c, http.StatusInternalServerError, 500, "调度表重载失败: "+err.Error())
		return
	}
	h.success(c, data, message)
}
