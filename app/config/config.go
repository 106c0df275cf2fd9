package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

type PipelineConfig struct {
	WorkerCount       int `mapstructure:"worker_count"`        // 同时处理的任务数
	FanoutWidth       int `mapstructure:"fanout_width"`        // 单任务内并发调用AI的提示词数
	MaxAttempts       int `mapstructure:"max_attempts"`        // 任务最大尝试次数
	PollIntervalSec   int `mapstructure:"poll_interval_sec"`   // 轮询待处理任务的间隔（秒）
	StalenessWindow   int `mapstructure:"staleness_window_min"` // 处理中任务无进度多久视为僵死（分钟）
	KeyErrorThreshold int `mapstructure:"key_error_threshold"` // API密钥连续错误多少次后自动停用
}

type ProviderConfig struct {
	Default       string `mapstructure:"default"`         // 默认AI提供商：gemini 或 openai
	TimeoutSec    int    `mapstructure:"timeout_sec"`     // 单次AI调用超时（秒）
	GeminiModel   string `mapstructure:"gemini_model"`    // Gemini 模型名
	OpenAIModel   string `mapstructure:"openai_model"`    // OpenAI 模型名
	OpenAIBaseURL string `mapstructure:"openai_base_url"` // OpenAI 兼容接口地址
}

type ExtractorConfig struct {
	InboxDir       string `mapstructure:"inbox_dir"`        // 文件投递目录
	LinkTimeoutSec int    `mapstructure:"link_timeout_sec"` // 链接抓取超时（秒）
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "summary-fusion")

	// 流水线默认配置
	viper.SetDefault("pipeline.worker_count", 4)
	viper.SetDefault("pipeline.fanout_width", 4)
	viper.SetDefault("pipeline.max_attempts", 3)
	viper.SetDefault("pipeline.poll_interval_sec", 5)
	viper.SetDefault("pipeline.staleness_window_min", 5)
	viper.SetDefault("pipeline.key_error_threshold", 5)

	// AI提供商默认配置
	viper.SetDefault("provider.default", "gemini")
	viper.SetDefault("provider.timeout_sec", 60)
	viper.SetDefault("provider.gemini_model", "gemini-1.5-flash")
	viper.SetDefault("provider.openai_model", "gpt-4o-mini")
	viper.SetDefault("provider.openai_base_url", "https://api.openai.com/v1")

	// 内容提取默认配置
	viper.SetDefault("extractor.inbox_dir", "data/inbox")
	viper.SetDefault("extractor.link_timeout_sec", 30)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	if config.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("pipeline.worker_count 必须大于 0")
	}
	if config.Pipeline.FanoutWidth <= 0 {
		return fmt.Errorf("pipeline.fanout_width 必须大于 0")
	}
	switch config.Provider.Default {
	case "gemini", "openai":
	default:
		return fmt.Errorf("不支持的默认AI提供商: %s", config.Provider.Default)
	}
	return nil
}
