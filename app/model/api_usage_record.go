package model

import (
	"time"
)

// ApiUsageRecord AI调用审计记录模型（只追加，不修改）
type ApiUsageRecord struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	ApiKeyID      uint      `json:"api_key_id" gorm:"not null;index;comment:使用的密钥ID"`
	JobID         uint      `json:"job_id" gorm:"index;comment:关联任务ID"`
	Provider      string    `json:"provider" gorm:"size:20;comment:AI提供商"`
	Model         string    `json:"model" gorm:"size:50;comment:模型"`
	TokensUsed    int       `json:"tokens_used" gorm:"default:0;comment:消耗的token数"`
	EstimatedCost float64   `json:"estimated_cost" gorm:"default:0;comment:预估费用(美元)"`
	Succeeded     bool      `json:"succeeded" gorm:"comment:调用是否成功"`
	ErrorMessage  string    `json:"error_message" gorm:"type:text;comment:错误信息"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (ApiUsageRecord) TableName() string {
	return "api_usage_records"
}
