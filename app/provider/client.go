package provider

import (
	"context"
	"summary-fusion/app/config"
	"summary-fusion/app/model"
)

// Completion 一次AI调用的结果
type Completion struct {
	Text       string // 生成的文本
	TokensUsed int    // 消耗的token数
}

// Client AI提供商客户端接口，每个提供商一个实现
type Client interface {
	// Name 返回提供商标识
	Name() string
	// Model 返回该提供商使用的模型名
	Model() string
	// Complete 使用给定密钥调用补全接口
	Complete(ctx context.Context, prompt, apiKey string) (*Completion, error)
}

// Registry 按提供商名索引的客户端集合
type Registry map[string]Client

// NewRegistry 根据配置创建所有支持的提供商客户端
func NewRegistry(cfg *config.Config) Registry {
	return Registry{
		model.ProviderGemini: NewGeminiClient(cfg.Provider.GeminiModel),
		model.ProviderOpenAI: NewOpenAIClient(cfg.Provider.OpenAIBaseURL, cfg.Provider.OpenAIModel),
	}
}

// Get 查找指定提供商的客户端
func (r Registry) Get(name string) (Client, bool) {
	c, ok := r[name]
	return c, ok
}
