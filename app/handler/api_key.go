package handler

import (
	"net/http"
	"strconv"
	"summary-fusion/app/database"
	"summary-fusion/app/model"

	"github.com/gin-gonic/gin"
)

// ApiKeyHandler API密钥处理器
type ApiKeyHandler struct{}

// NewApiKeyHandler 创建API密钥处理器
func NewApiKeyHandler() *ApiKeyHandler {
	return &ApiKeyHandler{}
}

// 创建成功响应
func (h *ApiKeyHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// 创建错误响应
func (h *ApiKeyHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	})
}

// ApiKeyRequest 密钥创建请求结构
type ApiKeyRequest struct {
	Provider    string `json:"provider" binding:"required"`
	Name        string `json:"name" binding:"required"`
	SecretValue string `json:"secret_value" binding:"required"`
}

// keyView 脱敏后的密钥视图
type keyView struct {
	model.ApiKey
	MaskedSecret string `json:"masked_secret"`
}

// CreateKey 创建密钥
func (h *ApiKeyHandler) CreateKey(c *gin.Context) {
	var req ApiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	switch req.Provider {
	case model.ProviderGemini, model.ProviderOpenAI:
	default:
		h.error(c, http.StatusBadRequest, 400, "不支持的AI提供商: "+req.Provider)
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		h.error(c, http.StatusUnauthorized, 401, "用户未认证")
		return
	}

	key := model.ApiKey{
		Provider:    req.Provider,
		Name:        req.Name,
		SecretValue: req.SecretValue,
		IsActive:    true,
		UserID:      userID.(uint),
	}

	if err := database.DB.Create(&key).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "创建密钥失败")
		return
	}

	h.success(c, keyView{ApiKey: key, MaskedSecret: key.MaskedSecret()}, "创建密钥成功")
}

// GetKeys 获取密钥列表（密钥内容脱敏）
func (h *ApiKeyHandler) GetKeys(c *gin.Context) {
	var keys []model.ApiKey
	query := database.DB.Model(&model.ApiKey{})

	if provider := c.Query("provider"); provider != "" {
		query = query.Where("provider = ?", provider)
	}

	if err := query.Order("created_at DESC").Find(&keys).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "获取密钥列表失败")
		return
	}

	views := make([]keyView, 0, len(keys))
	for _, key := range keys {
		views = append(views, keyView{ApiKey: key, MaskedSecret: key.MaskedSecret()})
	}

	h.success(c, views, "获取密钥列表成功")
}

// UpdateKey 启用/停用密钥
func (h *ApiKeyHandler) UpdateKey(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "无效的ID")
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	var key model.ApiKey
	if err := database.DB.First(&key, id).Error; err != nil {
		h.error(c, http.StatusNotFound, 404, "密钥不存在")
		return
	}

	updates := map[string]interface{}{"is_active": *req.IsActive}
	if *req.IsActive {
		// 重新启用时清零连续错误计数，给密钥一个干净的开始
		updates["error_count"] = 0
	}

	if err := database.DB.Model(&key).Updates(updates).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "更新密钥失败")
		return
	}

	h.success(c, nil, "更新密钥成功")
}

// DeleteKey 删除密钥（软删除）
func (h *ApiKeyHandler) DeleteKey(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "无效的ID")
		return
	}

	if err := database.DB.Delete(&model.ApiKey{}, id).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "删除密钥失败")
		return
	}

	h.success(c, nil, "删除密钥成功")
}

// GetUsageRecords 查询调用审计记录
func (h *ApiKeyHandler) GetUsageRecords(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	offset := (page - 1) * pageSize

	query := database.DB.Model(&model.ApiUsageRecord{})
	if keyID := c.Query("api_key_id"); keyID != "" {
		query = query.Where("api_key_id = ?", keyID)
	}

	var total int64
	query.Count(&total)

	var records []model.ApiUsageRecord
	if err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "获取审计记录失败")
		return
	}

	h.success(c, gin.H{
		"list":     records,
		"total":    total,
		"current":  page,
		"pageSize": pageSize,
	}, "获取审计记录成功")
}
