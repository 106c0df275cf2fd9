package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"空文本", "", 0},
		{"英文按空格分词", "hello world foo", 3},
		{"多余空白不影响计数", "  hello   world  ", 2},
		{"中文按字符计数", "今天天气好", 5},
		{"中英混排", "Go 语言很好用", 6},
		{"日文假名按字符计数", "こんにちは", 5},
		{"标点归入相邻词", "hello, world!", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.text))
		})
	}
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "zh-CN", NormalizeLanguage("zh-cn"))
	assert.Equal(t, "en", NormalizeLanguage("en"))
	assert.Equal(t, "en-US", NormalizeLanguage(" en_US "))
	assert.Equal(t, "und", NormalizeLanguage(""))
	assert.Equal(t, "und", NormalizeLanguage("not-a-language-!!"))
}

func TestTextExtractor(t *testing.T) {
	e := &TextExtractor{}

	ext, err := e.Extract(context.Background(), "  这是一段文本  ")
	require.NoError(t, err)
	assert.Equal(t, "这是一段文本", ext.RawText)
	assert.Equal(t, 6, ext.WordCount)

	_, err = e.Extract(context.Background(), "   ")
	assert.Error(t, err, "空文本应报错")
}

func TestFileExtractor(t *testing.T) {
	e := &FileExtractor{}
	dir := t.TempDir()

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("file content here\n"), 0644))

	ext, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "file content here", ext.RawText)
	assert.Equal(t, "notes.txt", ext.Metadata["file_name"])

	_, err = e.Extract(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err, "不存在的文件应报错")

	_, err = e.Extract(context.Background(), dir)
	assert.Error(t, err, "目录应报错")

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("   \n"), 0644))
	_, err = e.Extract(context.Background(), empty)
	assert.Error(t, err, "空文件应报错")
}

func TestServiceDispatch(t *testing.T) {
	svc := NewService(5)

	ext, err := svc.Extract(context.Background(), "text", "一段文本")
	require.NoError(t, err)
	assert.Equal(t, "一段文本", ext.RawText)

	_, err = svc.Extract(context.Background(), "carrier-pigeon", "ref")
	assert.Error(t, err, "未知来源类型应报错")
}

func TestLinkExtractorRejectsNonHTTP(t *testing.T) {
	e := NewLinkExtractor(5)

	_, err := e.Extract(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)

	_, err = e.Extract(context.Background(), "example.com")
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	html := `<html lang="zh">
<head><title>测试页面</title><style>body { color: red; }</style></head>
<body>
<script>console.log("ignored")</script>
<h1>标题</h1>
<p>第一段 &amp; 内容</p>


<p>第二段</p>
</body></html>`

	text := StripHTML(html)

	assert.Contains(t, text, "标题")
	assert.Contains(t, text, "第一段 & 内容")
	assert.Contains(t, text, "第二段")
	assert.NotContains(t, text, "console.log")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "<p>")
}
