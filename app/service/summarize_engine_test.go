package service

import (
	"context"
	"testing"

	"summary-fusion/app/model"
	"summary-fusion/app/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeClient 测试用的AI客户端，按预设脚本返回结果
type fakeClient struct {
	name    string
	model   string
	calls   int
	usedKey []string
	script  func(call int) (*provider.Completion, error)
}

func (f *fakeClient) Name() string  { return f.name }
func (f *fakeClient) Model() string { return f.model }

func (f *fakeClient) Complete(_ context.Context, _ string, apiKey string) (*provider.Completion, error) {
	f.calls++
	f.usedKey = append(f.usedKey, apiKey)
	return f.script(f.calls)
}

func newEngine(t *testing.T, db *gorm.DB, client *fakeClient) *SummarizeEngine {
	t.Helper()
	registry := provider.Registry{model.ProviderGemini: client}
	pool := NewKeyPoolService(db, newTestLogger(), 3)
	return NewSummarizeEngine(newTestConfig(), newTestLogger(), pool, registry)
}

func TestSummarizeSuccess(t *testing.T) {
	db := newTestDB(t)
	client := &fakeClient{
		name:  model.ProviderGemini,
		model: "gemini-1.5-flash",
		script: func(int) (*provider.Completion, error) {
			return &provider.Completion{Text: "这是摘要。", TokensUsed: 64}, nil
		},
	}
	engine := newEngine(t, db, client)

	key := createKey(t, db, model.ProviderGemini, "k", 0, true)
	job := createJob(t, db, model.JobStatusProcessing)
	prompt := createPrompt(t, db, "核心摘要", 1, true)

	result := engine.Summarize(context.Background(), job, "测试内容", prompt)

	assert.Equal(t, model.ResultStatusSucceeded, result.Status)
	assert.Equal(t, "这是摘要。", result.ResultText)
	assert.Equal(t, 64, result.TokensUsed)
	assert.Equal(t, job.ID, result.JobID)
	assert.Equal(t, prompt.ID, result.SystemPromptID)

	// 成功调用记入密钥用量和审计
	var reloaded model.ApiKey
	require.NoError(t, db.First(&reloaded, key.ID).Error)
	assert.Equal(t, int64(1), reloaded.UsageCount)

	var records int64
	require.NoError(t, db.Model(&model.ApiUsageRecord{}).Count(&records).Error)
	assert.Equal(t, int64(1), records)
}

func TestSummarizeRetriesWithDifferentKey(t *testing.T) {
	db := newTestDB(t)
	client := &fakeClient{
		name:  model.ProviderGemini,
		model: "gemini-1.5-flash",
		script: func(call int) (*provider.Completion, error) {
			if call == 1 {
				return nil, provider.NewError(provider.ErrRateLimited, "状态码 429")
			}
			return &provider.Completion{Text: "重试成功", TokensUsed: 32}, nil
		},
	}
	engine := newEngine(t, db, client)

	createKey(t, db, model.ProviderGemini, "first", 0, true)
	createKey(t, db, model.ProviderGemini, "second", 0, true)
	job := createJob(t, db, model.JobStatusProcessing)
	prompt := createPrompt(t, db, "核心摘要", 1, true)

	result := engine.Summarize(context.Background(), job, "测试内容", prompt)

	assert.Equal(t, model.ResultStatusSucceeded, result.Status)
	require.Len(t, client.usedKey, 2)
	assert.NotEqual(t, client.usedKey[0], client.usedKey[1], "限流后应换一把密钥重试")
}

func TestSummarizeNonRetryableFailsOnce(t *testing.T) {
	db := newTestDB(t)
	client := &fakeClient{
		name:  model.ProviderGemini,
		model: "gemini-1.5-flash",
		script: func(int) (*provider.Completion, error) {
			return nil, provider.NewError(provider.ErrInvalidResponse, "响应为空")
		},
	}
	engine := newEngine(t, db, client)

	createKey(t, db, model.ProviderGemini, "k", 0, true)
	job := createJob(t, db, model.JobStatusProcessing)
	prompt := createPrompt(t, db, "核心摘要", 1, true)

	result := engine.Summarize(context.Background(), job, "测试内容", prompt)

	assert.Equal(t, model.ResultStatusFailed, result.Status)
	assert.Equal(t, string(provider.ErrInvalidResponse), result.ErrorKind)
	assert.Equal(t, 1, client.calls, "不可重试的错误不应重试")
}

func TestSummarizeAuthFailureDeactivatesKey(t *testing.T) {
	db := newTestDB(t)
	client := &fakeClient{
		name:  model.ProviderGemini,
		model: "gemini-1.5-flash",
		script: func(int) (*provider.Completion, error) {
			return nil, provider.NewError(provider.ErrAuth, "状态码 401")
		},
	}
	engine := newEngine(t, db, client)

	key := createKey(t, db, model.ProviderGemini, "k", 0, true)
	job := createJob(t, db, model.JobStatusProcessing)
	prompt := createPrompt(t, db, "核心摘要", 1, true)

	result := engine.Summarize(context.Background(), job, "测试内容", prompt)

	assert.Equal(t, model.ResultStatusFailed, result.Status)

	var reloaded model.ApiKey
	require.NoError(t, db.First(&reloaded, key.ID).Error)
	assert.False(t, reloaded.IsActive, "认证失败应立即停用密钥")
}

func TestSummarizeCancellationDoesNotChargeKey(t *testing.T) {
	db := newTestDB(t)
	client := &fakeClient{
		name:  model.ProviderGemini,
		model: "gemini-1.5-flash",
		script: func(int) (*provider.Completion, error) {
			return nil, context.Canceled
		},
	}
	engine := newEngine(t, db, client)

	key := createKey(t, db, model.ProviderGemini, "k", 0, true)
	job := createJob(t, db, model.JobStatusProcessing)
	prompt := createPrompt(t, db, "核心摘要", 1, true)

	result := engine.Summarize(context.Background(), job, "测试内容", prompt)

	assert.Equal(t, model.ResultStatusFailed, result.Status)
	assert.Equal(t, string(provider.ErrCanceled), result.ErrorKind)
	assert.Equal(t, 1, client.calls, "取消不重试")

	// 取消不是密钥的错：不计错误、不停用、不记审计
	var reloaded model.ApiKey
	require.NoError(t, db.First(&reloaded, key.ID).Error)
	assert.Equal(t, 0, reloaded.ErrorCount)
	assert.True(t, reloaded.IsActive)

	var records int64
	require.NoError(t, db.Model(&model.ApiUsageRecord{}).Count(&records).Error)
	assert.Equal(t, int64(0), records)
}

func TestSummarizeNoKeyAvailable(t *testing.T) {
	db := newTestDB(t)
	client := &fakeClient{
		name:  model.ProviderGemini,
		model: "gemini-1.5-flash",
		script: func(int) (*provider.Completion, error) {
			t.Fatal("没有密钥时不应发起调用")
			return nil, nil
		},
	}
	engine := newEngine(t, db, client)

	job := createJob(t, db, model.JobStatusProcessing)
	prompt := createPrompt(t, db, "核心摘要", 1, true)

	result := engine.Summarize(context.Background(), job, "测试内容", prompt)

	assert.Equal(t, model.ResultStatusFailed, result.Status)
	assert.Equal(t, model.ErrorKindNoKeyAvailable, result.ErrorKind)
	assert.Equal(t, 0, client.calls)
}

func TestSummarizeUnknownProvider(t *testing.T) {
	db := newTestDB(t)
	engine := NewSummarizeEngine(newTestConfig(), newTestLogger(),
		NewKeyPoolService(db, newTestLogger(), 3), provider.Registry{})

	job := createJob(t, db, model.JobStatusProcessing)
	job.Provider = "unknown"
	prompt := createPrompt(t, db, "核心摘要", 1, true)

	result := engine.Summarize(context.Background(), job, "测试内容", prompt)

	assert.Equal(t, model.ResultStatusFailed, result.Status)
	assert.Equal(t, string(provider.ErrProvider), result.ErrorKind)
}

func TestRenderTemplate(t *testing.T) {
	rendered := RenderTemplate("总结：{{content}}，谢谢", "正文")
	assert.Equal(t, "总结：正文，谢谢", rendered)

	// 没有占位符时内容追加在模板后
	appended := RenderTemplate("请总结以下内容", "正文")
	assert.Equal(t, "请总结以下内容\n\n正文", appended)
}
