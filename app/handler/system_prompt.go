package handler

import (
	"net/http"
	"strconv"
	"summary-fusion/app/database"
	"summary-fusion/app/model"
	"summary-fusion/app/service"

	"github.com/gin-gonic/gin"
)

// SystemPromptHandler 提示词处理器
type SystemPromptHandler struct {
	catalog *service.PromptCatalog
}

// NewSystemPromptHandler 创建提示词处理器
func NewSystemPromptHandler(catalog *service.PromptCatalog) *SystemPromptHandler {
	return &SystemPromptHandler{catalog: catalog}
}

// 创建成功响应
func (h *SystemPromptHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// 创建错误响应
func (h *SystemPromptHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	})
}

// PromptRequest 提示词创建/更新请求结构
type PromptRequest struct {
	Name      string `json:"name" binding:"required"`
	Template  string `json:"template" binding:"required"`
	SortOrder int    `json:"sort_order"`
	IsActive  *bool  `json:"is_active"`
	Category  string `json:"category"`
}

// CreatePrompt 创建提示词
func (h *SystemPromptHandler) CreatePrompt(c *gin.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		h.error(c, http.StatusUnauthorized, 401, "用户未认证")
		return
	}
	uid := userID.(uint)

	prompt := model.SystemPrompt{
		Name:      req.Name,
		Template:  req.Template,
		SortOrder: req.SortOrder,
		IsActive:  true,
		Category:  req.Category,
		CreatedBy: &uid,
	}
	if req.IsActive != nil {
		prompt.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&prompt).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "创建提示词失败")
		return
	}

	h.catalog.Invalidate()
	h.success(c, prompt, "创建提示词成功")
}

// GetPrompts 获取提示词列表
func (h *SystemPromptHandler) GetPrompts(c *gin.Context) {
	var prompts []model.SystemPrompt
	query := database.DB.Model(&model.SystemPrompt{})

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Order("sort_order ASC, id ASC").Find(&prompts).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "获取提示词列表失败")
		return
	}

	h.success(c, prompts, "获取提示词列表成功")
}

// GetActivePrompts 获取启用中的提示词（即新任务会执行的扇出集合）
func (h *SystemPromptHandler) GetActivePrompts(c *gin.Context) {
	prompts, err := h.catalog.ActivePrompts()
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "获取提示词列表失败")
		return
	}

	h.success(c, prompts, "获取提示词列表成功")
}

// UpdatePrompt 更新提示词
func (h *SystemPromptHandler) UpdatePrompt(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "无效的ID")
		return
	}

	var prompt model.SystemPrompt
	if err := database.DB.First(&prompt, id).Error; err != nil {
		h.error(c, http.StatusNotFound, 404, "提示词不存在")
		return
	}

	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	prompt.Name = req.Name
	prompt.Template = req.Template
	prompt.SortOrder = req.SortOrder
	prompt.Category = req.Category
	if req.IsActive != nil {
		prompt.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&prompt).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "更新提示词失败")
		return
	}

	h.catalog.Invalidate()
	h.success(c, prompt, "更新提示词成功")
}

// DeletePrompt 删除提示词（软删除，已有的摘要结果不受影响）
func (h *SystemPromptHandler) DeletePrompt(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "无效的ID")
		return
	}

	if err := database.DB.Delete(&model.SystemPrompt{}, id).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "删除提示词失败")
		return
	}

	h.catalog.Invalidate()
	h.success(c, nil, "删除提示词成功")
}
