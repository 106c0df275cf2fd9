package model

import (
	"time"
)

// SourceContent 提取出的原始内容模型
// 提取成功后创建，之后不再修改；一个任务可能有多次提取，但至多一条为活跃
type SourceContent struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	JobID     uint      `json:"job_id" gorm:"not null;index;comment:所属任务ID"`
	RawText   string    `json:"raw_text" gorm:"type:text;not null;comment:提取的原始文本"`
	Language  string    `json:"language" gorm:"size:20;comment:语言标签(BCP-47)"`
	WordCount int       `json:"word_count" gorm:"default:0;comment:词数"`
	Active    bool      `json:"active" gorm:"default:true;comment:是否为活跃提取结果"`
	CreatedAt time.Time `json:"created_at"`

	// 关联关系
	Job *Job `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

// TableName 指定表名
func (SourceContent) TableName() string {
	return "source_contents"
}
