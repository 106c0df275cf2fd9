package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"resty.dev/v3"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	langRe   = regexp.MustCompile(`(?is)<html[^>]*\slang="([^"]+)"`)
)

// LinkExtractor 链接内容提取器
// 抓取页面并剥离标记，取正文文本；YouTube链接取其字幕/描述页面同样走这条路径
type LinkExtractor struct {
	client  *resty.Client
	timeout time.Duration
}

// NewLinkExtractor 创建链接提取器
func NewLinkExtractor(timeoutSec int) *LinkExtractor {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	client := resty.New()
	client.SetTimeout(time.Duration(timeoutSec) * time.Second)
	client.SetHeader("User-Agent", "summary-fusion/1.0")

	return &LinkExtractor{
		client:  client,
		timeout: time.Duration(timeoutSec) * time.Second,
	}
}

// Extract 抓取链接并提取正文文本
func (e *LinkExtractor) Extract(ctx context.Context, sourceRef string) (*Extraction, error) {
	if !strings.HasPrefix(sourceRef, "http://") && !strings.HasPrefix(sourceRef, "https://") {
		return nil, fmt.Errorf("无效的链接: %s", sourceRef)
	}

	resp, err := e.client.R().SetContext(ctx).Get(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("抓取链接失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("抓取链接失败，状态码: %d", resp.StatusCode())
	}

	body := resp.String()
	text := StripHTML(body)
	if text == "" {
		return nil, fmt.Errorf("页面没有可提取的文本: %s", sourceRef)
	}

	// 语言优先取响应头，其次取html标签的lang属性
	lang := resp.Header().Get("Content-Language")
	if lang == "" {
		if m := langRe.FindStringSubmatch(body); m != nil {
			lang = m[1]
		}
	}

	metadata := map[string]string{
		"source": "link",
		"url":    sourceRef,
	}
	if m := titleRe.FindStringSubmatch(body); m != nil {
		metadata["title"] = strings.TrimSpace(m[1])
	}

	return &Extraction{
		RawText:   text,
		Language:  NormalizeLanguage(lang),
		WordCount: CountWords(text),
		Metadata:  metadata,
	}, nil
}

// StripHTML 剥离HTML标记，保留正文文本
func StripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = spaceRe.ReplaceAllString(text, " ")

	// 去掉每行首尾空白，压缩连续空行
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
