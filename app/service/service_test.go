package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"summary-fusion/app/config"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

// newTestDB 创建独立的内存数据库，每个测试互不干扰
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// sqlite单写入者，测试里的并发统一走同一个连接排队
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.User{},
		&model.Job{},
		&model.SourceContent{},
		&model.SystemPrompt{},
		&model.SummaryResult{},
		&model.ApiKey{},
		&model.ApiUsageRecord{},
	)
	require.NoError(t, err)

	return db
}

// newTestLogger 创建只输出错误的日志记录器，保持测试输出干净
func newTestLogger() *logger.Logger {
	return logger.New(config.LogConfig{Level: "error", Format: "text", Output: "stdout"})
}

// newTestConfig 返回测试用的流水线配置
func newTestConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			WorkerCount:       2,
			FanoutWidth:       4,
			MaxAttempts:       3,
			PollIntervalSec:   1,
			StalenessWindow:   5,
			KeyErrorThreshold: 3,
		},
		Provider: config.ProviderConfig{
			Default:    model.ProviderGemini,
			TimeoutSec: 5,
		},
	}
}

// createJob 插入一条测试任务
func createJob(t *testing.T, db *gorm.DB, status model.JobStatus) *model.Job {
	t.Helper()
	job := &model.Job{
		JobID:       uuid.NewString(),
		SourceType:  model.SourceTypeText,
		SourceRef:   "这是一段待摘要的测试文本。",
		Status:      status,
		MaxAttempts: 3,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

// createPrompt 插入一条测试提示词
func createPrompt(t *testing.T, db *gorm.DB, name string, sortOrder int, active bool) *model.SystemPrompt {
	t.Helper()
	prompt := &model.SystemPrompt{
		Name:      name,
		Template:  "请总结以下内容：\n\n{{content}}",
		SortOrder: sortOrder,
		IsActive:  active,
	}
	require.NoError(t, db.Create(prompt).Error)
	return prompt
}

// createKey 插入一条测试密钥
func createKey(t *testing.T, db *gorm.DB, provider, name string, errorCount int, active bool) *model.ApiKey {
	t.Helper()
	key := &model.ApiKey{
		Provider:    provider,
		Name:        name,
		SecretValue: "sk-test-" + name + "-0123456789abcdef",
		IsActive:    active,
		ErrorCount:  errorCount,
		UserID:      1,
	}
	require.NoError(t, db.Create(key).Error)
	return key
}
