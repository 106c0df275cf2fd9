package model

import (
	"time"
)

// ResultStatus 摘要结果状态
type ResultStatus string

const (
	ResultStatusSucceeded ResultStatus = "succeeded" // 成功
	ResultStatusFailed    ResultStatus = "failed"    // 失败
)

// SummaryResult 摘要结果模型
// 每个(任务,提示词)组合至多一条记录；单个提示词失败不影响其他提示词的结果
type SummaryResult struct {
	ID             uint         `json:"id" gorm:"primarykey"`
	JobID          uint         `json:"job_id" gorm:"not null;uniqueIndex:idx_job_prompt;comment:所属任务ID"`
	SystemPromptID uint         `json:"system_prompt_id" gorm:"not null;uniqueIndex:idx_job_prompt;comment:所用提示词ID"`
	ResultText     string       `json:"result_text" gorm:"type:text;comment:摘要文本"`
	Provider       string       `json:"provider" gorm:"size:20;comment:使用的AI提供商"`
	Model          string       `json:"model" gorm:"size:50;comment:使用的模型"`
	TokensUsed     int          `json:"tokens_used" gorm:"default:0;comment:消耗的token数"`
	ProcessingMs   int64        `json:"processing_ms" gorm:"default:0;comment:处理耗时(毫秒)"`
	Status         ResultStatus `json:"status" gorm:"size:20;not null;comment:状态(succeeded,failed)"`
	ErrorKind      string       `json:"error_kind" gorm:"size:30;comment:错误类型"`
	ErrorMessage   string       `json:"error_message" gorm:"type:text;comment:错误信息"`
	CreatedAt      time.Time    `json:"created_at"`

	// 关联关系
	SystemPrompt *SystemPrompt `gorm:"foreignKey:SystemPromptID" json:"system_prompt,omitempty"`
}

// TableName 指定表名
func (SummaryResult) TableName() string {
	return "summary_results"
}
