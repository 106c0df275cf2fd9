package provider

import (
	"context"
	"errors"
	"strings"
	"summary-fusion/app/model"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient Google Gemini 客户端
type GeminiClient struct {
	model string
}

// NewGeminiClient 创建Gemini客户端
func NewGeminiClient(modelName string) *GeminiClient {
	return &GeminiClient{model: modelName}
}

// Name 返回提供商标识
func (c *GeminiClient) Name() string {
	return model.ProviderGemini
}

// Model 返回使用的模型名
func (c *GeminiClient) Model() string {
	return c.model
}

// Complete 调用Gemini生成接口
// 密钥随每次调用传入，因此客户端在调用内创建并关闭
func (c *GeminiClient) Complete(ctx context.Context, prompt, apiKey string) (*Completion, error) {
	if apiKey == "" {
		return nil, NewError(ErrAuth, "API密钥为空")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	defer client.Close()

	gm := client.GenerativeModel(c.model)
	gm.SetTemperature(0.2) // 低温度保证摘要稳定

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &Completion{Text: text, TokensUsed: tokens}, nil
}

// extractText 从Gemini响应中提取文本
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", NewError(ErrInvalidResponse, "响应中没有候选结果")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", NewError(ErrInvalidResponse, "响应中没有内容")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", NewError(ErrInvalidResponse, "响应中没有文本内容")
	}

	return strings.Join(parts, ""), nil
}

// classifyGeminiError 把Gemini SDK错误映射到统一分类
func classifyGeminiError(err error) *Error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return FromStatusCode(apiErr.Code, apiErr.Message)
	}
	return AsError(err)
}
