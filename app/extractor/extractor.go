package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Extraction 一次内容提取的结果
type Extraction struct {
	RawText   string            // 提取出的原始文本
	Language  string            // 语言标签(BCP-47)
	WordCount int               // 词数
	Metadata  map[string]string // 来源相关的附加信息
}

// Extractor 内容提取接口，按来源类型分发
type Extractor interface {
	Extract(ctx context.Context, sourceType, sourceRef string) (*Extraction, error)
}

// Service 默认提取服务，组合各来源类型的提取实现
type Service struct {
	link *LinkExtractor
	file *FileExtractor
	text *TextExtractor
}

// NewService 创建提取服务
func NewService(linkTimeoutSec int) *Service {
	return &Service{
		link: NewLinkExtractor(linkTimeoutSec),
		file: &FileExtractor{},
		text: &TextExtractor{},
	}
}

// Extract 根据来源类型提取内容
func (s *Service) Extract(ctx context.Context, sourceType, sourceRef string) (*Extraction, error) {
	switch sourceType {
	case "link":
		return s.link.Extract(ctx, sourceRef)
	case "file":
		return s.file.Extract(ctx, sourceRef)
	case "text":
		return s.text.Extract(ctx, sourceRef)
	default:
		return nil, fmt.Errorf("不支持的来源类型: %s", sourceType)
	}
}

// NormalizeLanguage 把语言标签规整为标准BCP-47格式，无法识别时返回 und
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "und"
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "und"
	}
	return parsed.String()
}

// CountWords 统计词数
// 空格分隔的文字按词计数，中日韩文字按字符计数
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
