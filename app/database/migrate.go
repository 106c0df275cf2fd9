package database

import "summary-fusion/app/model"

func AutoMigrate() error {
	// 自动迁移表结构
	return DB.AutoMigrate(
		&model.User{},
		&model.Job{},
		&model.SourceContent{},
		&model.SystemPrompt{},
		&model.SummaryResult{},
		&model.ApiKey{},
		&model.ApiUsageRecord{},
	)
}
