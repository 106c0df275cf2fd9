package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextExtractor 纯文本提取器，原样透传
type TextExtractor struct{}

// Extract 直接把提交的文本作为内容
func (e *TextExtractor) Extract(ctx context.Context, sourceRef string) (*Extraction, error) {
	text := strings.TrimSpace(sourceRef)
	if text == "" {
		return nil, fmt.Errorf("提交的文本为空")
	}

	return &Extraction{
		RawText:   text,
		Language:  "und",
		WordCount: CountWords(text),
		Metadata:  map[string]string{"source": "text"},
	}, nil
}

// FileExtractor 本地文件提取器，读取文本类文件
type FileExtractor struct{}

// Extract 读取文件内容作为原始文本
func (e *FileExtractor) Extract(ctx context.Context, sourceRef string) (*Extraction, error) {
	info, err := os.Stat(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("来源是目录而不是文件: %s", sourceRef)
	}

	data, err := os.ReadFile(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("文件内容为空: %s", sourceRef)
	}

	return &Extraction{
		RawText:   text,
		Language:  "und",
		WordCount: CountWords(text),
		Metadata: map[string]string{
			"source":    "file",
			"file_name": filepath.Base(sourceRef),
		},
	}, nil
}
