package database

import (
	"summary-fusion/app/logger"
	"summary-fusion/app/model"
)

// defaultPrompts 首次启动时写入的默认提示词集合
var defaultPrompts = []model.SystemPrompt{
	{
		Name:      "核心摘要",
		Template:  "请用不超过300字概括以下内容的核心观点：\n\n{{content}}",
		SortOrder: 1,
		IsActive:  true,
		Category:  "summary",
	},
	{
		Name:      "要点列表",
		Template:  "请从以下内容中提炼5到10条关键要点，使用无序列表输出：\n\n{{content}}",
		SortOrder: 2,
		IsActive:  true,
		Category:  "summary",
	},
	{
		Name:      "问答提炼",
		Template:  "请根据以下内容生成3个最有价值的问题及其答案：\n\n{{content}}",
		SortOrder: 3,
		IsActive:  false,
		Category:  "qa",
	},
}

// InitDefaultPrompts 初始化默认提示词（仅在表为空时写入）
func InitDefaultPrompts(log *logger.Logger) error {
	var count int64
	if err := DB.Model(&model.SystemPrompt{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	if err := DB.Create(&defaultPrompts).Error; err != nil {
		return err
	}

	log.Infof("写入 %d 条默认提示词", len(defaultPrompts))
	return nil
}
