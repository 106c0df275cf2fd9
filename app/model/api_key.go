package model

import (
	"time"

	"gorm.io/gorm"
)

// Provider AI提供商常量
const (
	ProviderGemini = "gemini" // Google Gemini
	ProviderOpenAI = "openai" // OpenAI 及兼容接口
)

// ApiKey AI提供商凭证模型
// 计数器只由密钥池管理器修改，避免并发扇出时丢失更新
type ApiKey struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	Provider    string         `json:"provider" gorm:"size:20;not null;index;comment:AI提供商(gemini,openai)"`
	Name        string         `json:"name" gorm:"size:100;not null;comment:密钥名称"`
	SecretValue string         `json:"-" gorm:"type:text;not null;comment:密钥内容"`
	IsActive    bool           `json:"is_active" gorm:"default:true;index;comment:是否启用"`
	UsageCount  int64          `json:"usage_count" gorm:"default:0;comment:成功调用次数"`
	ErrorCount  int            `json:"error_count" gorm:"default:0;comment:连续错误次数"`
	LastUsedAt  *time.Time     `json:"last_used_at" gorm:"comment:最后使用时间"`
	LastErrorAt *time.Time     `json:"last_error_at" gorm:"comment:最后错误时间"`
	UserID      uint           `json:"user_id" gorm:"comment:所属管理员用户ID"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 指定表名
func (ApiKey) TableName() string {
	return "api_keys"
}

// MarkSuccess 记录一次成功调用，成功会清零连续错误计数
func (k *ApiKey) MarkSuccess() {
	k.UsageCount++
	k.ErrorCount = 0
	now := time.Now()
	k.LastUsedAt = &now
}

// MarkError 记录一次失败调用，连续错误达到阈值后自动停用。
// 计数是"连续"语义：任何一次成功都会清零（见 MarkSuccess），
// 所以偶发限流不会让健康密钥被累积判死
func (k *ApiKey) MarkError(threshold int) {
	k.ErrorCount++
	now := time.Now()
	k.LastErrorAt = &now
	if threshold > 0 && k.ErrorCount >= threshold {
		k.IsActive = false
	}
}

// Deactivate 立即停用密钥（认证失败时使用）
func (k *ApiKey) Deactivate() {
	k.IsActive = false
	now := time.Now()
	k.LastErrorAt = &now
}

// MaskedSecret 返回脱敏后的密钥，用于接口展示
func (k *ApiKey) MaskedSecret() string {
	if len(k.SecretValue) <= 8 {
		return "****"
	}
	return k.SecretValue[:4] + "****" + k.SecretValue[len(k.SecretValue)-4:]
}
