package model

import (
	"time"

	"gorm.io/gorm"
)

// SystemPrompt 系统提示词模型
// 每个任务会对所有启用的提示词各生成一份摘要；排序决定展示和执行顺序
type SystemPrompt struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	Name      string         `json:"name" gorm:"size:100;uniqueIndex;not null;comment:提示词名称"`
	Template  string         `json:"template" gorm:"type:text;not null;comment:提示词模板"`
	SortOrder int            `json:"sort_order" gorm:"default:0;comment:排序"`
	IsActive  bool           `json:"is_active" gorm:"default:true;index;comment:是否启用"`
	Category  string         `json:"category" gorm:"size:50;comment:分类"`
	CreatedBy *uint          `json:"created_by" gorm:"comment:创建者用户ID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 指定表名
func (SystemPrompt) TableName() string {
	return "system_prompts"
}
