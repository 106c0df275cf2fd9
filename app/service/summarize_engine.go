package service

import (
	"context"
	"errors"
	"strings"
	"summary-fusion/app/config"
	"summary-fusion/app/logger"
	"summary-fusion/app/model"
	"summary-fusion/app/provider"
	"time"
)

// maxSummarizeAttempts 单个提示词最多尝试的次数
// 第一次失败且错误可重试时，换一把密钥再试一次
const maxSummarizeAttempts = 2

// SummarizeEngine 摘要引擎
// 负责单个提示词的完整执行：取密钥、渲染模板、调用AI、分类结果
type SummarizeEngine struct {
	cfg       *config.Config
	log       *logger.Logger
	keys      *KeyPoolService
	providers provider.Registry
}

// NewSummarizeEngine 创建摘要引擎
func NewSummarizeEngine(cfg *config.Config, log *logger.Logger, keys *KeyPoolService, providers provider.Registry) *SummarizeEngine {
	return &SummarizeEngine{
		cfg:       cfg,
		log:       log,
		keys:      keys,
		providers: providers,
	}
}

// Summarize 对一段内容执行一个提示词，返回结果记录（未入库）
// 单个提示词的失败被完整记录在返回值里，不向上抛错，
// 保证一个提示词失败不影响同任务的其他提示词
func (e *SummarizeEngine) Summarize(ctx context.Context, job *model.Job, content string, prompt *model.SystemPrompt) *model.SummaryResult {
	providerName := job.Provider
	if providerName == "" {
		providerName = e.cfg.Provider.Default
	}

	result := &model.SummaryResult{
		JobID:          job.ID,
		SystemPromptID: prompt.ID,
		Provider:       providerName,
		Status:         model.ResultStatusFailed,
	}

	client, ok := e.providers.Get(providerName)
	if !ok {
		result.ErrorKind = string(provider.ErrProvider)
		result.ErrorMessage = "不支持的AI提供商: " + providerName
		return result
	}
	result.Model = client.Model()

	rendered := RenderTemplate(prompt.Template, content)

	var lastErr *provider.Error
	var excludeKey uint

	for attempt := 1; attempt <= maxSummarizeAttempts; attempt++ {
		key, err := e.keys.Acquire(providerName, excludeKey)
		if err != nil {
			if errors.Is(err, ErrNoKeyAvailable) {
				result.ErrorKind = model.ErrorKindNoKeyAvailable
				result.ErrorMessage = "提供商 " + providerName + " 没有可用的API密钥"
				return result
			}
			result.ErrorKind = model.ErrorKindInternal
			result.ErrorMessage = err.Error()
			return result
		}

		callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Provider.TimeoutSec)*time.Second)
		start := time.Now()
		completion, callErr := client.Complete(callCtx, rendered, key.SecretValue)
		cancel()
		elapsed := time.Since(start)

		if callErr != nil {
			pe := provider.AsError(callErr)
			lastErr = pe

			// 调用方取消（任务取消或服务停止）不是密钥的错：
			// 不计错误、不记审计，直接带取消标记返回
			if pe.Kind == provider.ErrCanceled {
				result.ErrorKind = string(pe.Kind)
				result.ErrorMessage = pe.Message
				return result
			}

			if err := e.keys.Release(key, false, pe.Kind == provider.ErrAuth); err != nil {
				e.log.Errorf("归还密钥失败: KeyID=%d, %v", key.ID, err)
			}
			e.keys.RecordUsage(&model.ApiUsageRecord{
				ApiKeyID:     key.ID,
				JobID:        job.ID,
				Provider:     providerName,
				Model:        client.Model(),
				Succeeded:    false,
				ErrorMessage: pe.Message,
			})

			e.log.Warnf("AI调用失败: JobID=%s, Prompt=%s, KeyID=%d, 第%d次, 错误: %v",
				job.JobID, prompt.Name, key.ID, attempt, pe)

			if !pe.Retryable() {
				break
			}
			// 可重试错误换一把密钥再试
			excludeKey = key.ID
			continue
		}

		// 调用成功
		if err := e.keys.Release(key, true, false); err != nil {
			e.log.Errorf("归还密钥失败: KeyID=%d, %v", key.ID, err)
		}
		e.keys.RecordUsage(&model.ApiUsageRecord{
			ApiKeyID:   key.ID,
			JobID:      job.ID,
			Provider:   providerName,
			Model:      client.Model(),
			TokensUsed: completion.TokensUsed,
			Succeeded:  true,
		})

		result.Status = model.ResultStatusSucceeded
		result.ResultText = completion.Text
		result.TokensUsed = completion.TokensUsed
		result.ProcessingMs = elapsed.Milliseconds()
		return result
	}

	if lastErr != nil {
		result.ErrorKind = string(lastErr.Kind)
		result.ErrorMessage = lastErr.Message
	}
	return result
}

// RenderTemplate 把内容填进提示词模板
// 模板用 {{content}} 作为占位符；没有占位符时把内容追加在模板后
func RenderTemplate(template, content string) string {
	if strings.Contains(template, "{{content}}") {
		return strings.ReplaceAll(template, "{{content}}", content)
	}
	return template + "\n\n" + content
}
