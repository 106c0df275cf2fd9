package provider

import (
	"context"
	"summary-fusion/app/model"

	"resty.dev/v3"
)

// OpenAIClient OpenAI 及兼容接口客户端
type OpenAIClient struct {
	baseURL string
	model   string
	client  *resty.Client
}

// chatRequest OpenAI chat completions 请求体
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse OpenAI chat completions 响应体
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient 创建OpenAI兼容客户端
func NewOpenAIClient(baseURL, modelName string) *OpenAIClient {
	client := resty.New()
	client.SetBaseURL(baseURL)

	return &OpenAIClient{
		baseURL: baseURL,
		model:   modelName,
		client:  client,
	}
}

// Name 返回提供商标识
func (c *OpenAIClient) Name() string {
	return model.ProviderOpenAI
}

// Model 返回使用的模型名
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete 调用 chat completions 接口
func (c *OpenAIClient) Complete(ctx context.Context, prompt, apiKey string) (*Completion, error) {
	if apiKey == "" {
		return nil, NewError(ErrAuth, "API密钥为空")
	}

	var result chatResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "user", Content: prompt},
			},
		}).
		SetResult(&result).
		Post("/chat/completions")

	if err != nil {
		return nil, AsError(err)
	}

	if resp.StatusCode() != 200 {
		return nil, FromStatusCode(resp.StatusCode(), resp.String())
	}

	if len(result.Choices) == 0 {
		return nil, NewError(ErrInvalidResponse, "响应中没有候选结果")
	}

	text := result.Choices[0].Message.Content
	if text == "" {
		return nil, NewError(ErrInvalidResponse, "响应内容为空")
	}

	return &Completion{Text: text, TokensUsed: result.Usage.TotalTokens}, nil
}
