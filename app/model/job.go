package model

import (
	"time"

	"gorm.io/gorm"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"    // 等待处理
	JobStatusProcessing JobStatus = "processing" // 处理中
	JobStatusCompleted  JobStatus = "completed"  // 已完成
	JobStatusFailed     JobStatus = "failed"     // 失败
	JobStatusCancelled  JobStatus = "cancelled"  // 已取消
)

// SourceType 内容来源类型常量
const (
	SourceTypeLink = "link" // 链接（YouTube等）
	SourceTypeFile = "file" // 本地文件
	SourceTypeText = "text" // 纯文本
)

// ErrorKind 任务级错误类型常量
const (
	ErrorKindExtraction      = "extraction_error"  // 内容提取失败
	ErrorKindNoActivePrompts = "no_active_prompts" // 没有启用的提示词
	ErrorKindProvider        = "provider_error"    // AI提供商错误
	ErrorKindInternal        = "internal_error"    // 内部错误
	ErrorKindTimeout         = "timeout"           // 超时（僵死任务回收）
	ErrorKindNoKeyAvailable  = "no_key_available"  // 没有可用的API密钥
)

// Job 摘要任务模型
type Job struct {
	ID           uint           `json:"id" gorm:"primarykey"`
	JobID        string         `json:"job_id" gorm:"size:36;uniqueIndex;not null;comment:对外任务ID"`
	SourceType   string         `json:"source_type" gorm:"size:10;not null;comment:来源类型(link,file,text)"`
	SourceRef    string         `json:"source_ref" gorm:"type:text;not null;comment:来源引用(URL,路径或文本)"`
	Status       JobStatus      `json:"status" gorm:"size:20;default:pending;index;comment:状态"`
	Progress     int            `json:"progress" gorm:"default:0;comment:进度(0-100)"`
	Stage        string         `json:"stage" gorm:"size:100;comment:当前阶段描述"`
	AttemptCount int            `json:"attempt_count" gorm:"default:0;comment:已尝试次数"`
	MaxAttempts  int            `json:"max_attempts" gorm:"default:3;comment:最大尝试次数"`
	Provider     string         `json:"provider" gorm:"size:20;comment:指定AI提供商(可选)"`
	ErrorKind    string         `json:"error_kind" gorm:"size:30;comment:错误类型"`
	ErrorMessage string         `json:"error_message" gorm:"type:text;comment:错误信息"`
	UserID       *uint          `json:"user_id" gorm:"index;comment:所属用户ID(匿名提交为空)"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartedAt    *time.Time     `json:"started_at" gorm:"comment:开始处理时间"`
	CompletedAt  *time.Time     `json:"completed_at" gorm:"comment:完成时间"`
	ProgressAt   *time.Time     `json:"progress_at" gorm:"index;comment:最后一次进度更新时间"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// 关联关系
	User    *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Results []SummaryResult `gorm:"foreignKey:JobID" json:"results,omitempty"`
}

// TableName 指定表名
func (Job) TableName() string {
	return "jobs"
}

// IsTerminal 检查任务是否处于终态
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// CanRetry 检查任务是否还有剩余尝试次数
func (j *Job) CanRetry() bool {
	return j.AttemptCount < j.MaxAttempts
}

// IsStale 检查处理中的任务是否超过僵死窗口未更新进度
func (j *Job) IsStale(window time.Duration) bool {
	if j.Status != JobStatusProcessing {
		return false
	}
	last := j.ProgressAt
	if last == nil {
		last = j.StartedAt
	}
	if last == nil {
		return false
	}
	return time.Since(*last) > window
}
