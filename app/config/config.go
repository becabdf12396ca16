package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Content       ContentConfig       `mapstructure:"content"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
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

// TrendWeights 趋势评分各子信号的权重
type TrendWeights struct {
	SearchVolume float64 `mapstructure:"search_volume"`
	Recency      float64 `mapstructure:"recency"`
	Engagement   float64 `mapstructure:"engagement"`
	Relevance    float64 `mapstructure:"relevance"`
	Competition  float64 `mapstructure:"competition"`
}

// DurationRange 视频时长的允许区间（秒，闭区间）
type DurationRange struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type ContentConfig struct {
	TrendWeights       TrendWeights             `mapstructure:"trend_weights"`
	MinTrendScore      float64                  `mapstructure:"min_trend_score"`      // 低于该分数的话题不生产
	DuplicateThreshold float64                  `mapstructure:"duplicate_threshold"`  // Jaccard 相似度判重阈值
	RecentTitleWindow  int                      `mapstructure:"recent_title_window"`  // 判重窗口大小（最近发布的标题数）
	StopWords          []string                 `mapstructure:"stop_words"`           // 判重分词时剔除的停用词
	ForbiddenWordsFile string                   `mapstructure:"forbidden_words_file"` // 违禁词列表文件，支持热更新
	TitleMinLength     int                      `mapstructure:"title_min_length"`     // 标题理想长度下限
	TitleMaxLength     int                      `mapstructure:"title_max_length"`     // 标题理想长度上限
	MinTitleScore      float64                  `mapstructure:"min_title_score"`      // 低于该分数记录软规则告警
	DurationRanges     map[string]DurationRange `mapstructure:"duration_ranges"`      // 按分类配置时长区间
	DefaultDuration    DurationRange            `mapstructure:"default_duration"`
}

type PipelineConfig struct {
	Workers          int            `mapstructure:"workers"`           // 工作协程数
	MaxRetries       int            `mapstructure:"max_retries"`       // 单阶段最大重试次数
	BackoffBase      int            `mapstructure:"backoff_base"`      // 退避基数（秒）
	BackoffMax       int            `mapstructure:"backoff_max"`       // 退避上限（秒）
	StageTimeout     int            `mapstructure:"stage_timeout"`     // 默认单阶段超时（秒）
	StageTimeouts    map[string]int `mapstructure:"stage_timeouts"`    // 按阶段覆盖超时（秒）
	PollInterval     int            `mapstructure:"poll_interval"`     // 工作协程轮询间隔（秒）
	RateBudgets      map[string]int `mapstructure:"rate_budgets"`      // 各协作方的令牌预算
	RateInterval     int            `mapstructure:"rate_interval"`     // 令牌补充间隔（秒）
	CleanupInterval  int            `mapstructure:"cleanup_interval"`  // 清理任务执行间隔（小时）
	JobRetentionDays int            `mapstructure:"job_retention_days"` // 成功任务保留天数
	FailedRetention  int            `mapstructure:"failed_retention_days"` // 失败/拒绝任务保留天数
}

type CollaboratorConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type CollaboratorsConfig struct {
	News         CollaboratorConfig `mapstructure:"news"`
	NewsCacheTTL int                `mapstructure:"news_cache_ttl"` // 话题采集缓存时间（秒）
	Script       CollaboratorConfig `mapstructure:"script"`
	ScriptModel  string             `mapstructure:"script_model"`
	Voice        CollaboratorConfig `mapstructure:"voice"`
	VoiceID      string             `mapstructure:"voice_id"`
	Visuals      CollaboratorConfig `mapstructure:"visuals"`
	Render       CollaboratorConfig `mapstructure:"render"`
	Publish      CollaboratorConfig `mapstructure:"publish"`
	PrivacyState string             `mapstructure:"privacy_state"`
	OutputDir    string             `mapstructure:"output_dir"`    // 渲染产物目录
	ThumbnailDir string             `mapstructure:"thumbnail_dir"` // 封面图输出目录
	FontFile     string             `mapstructure:"font_file"`     // 封面图标题字体
}

func Load() *Config {
	setDefaults()

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
	viper.SetDefault("jwt.issuer", "auto-tube")

	// 内容选题与质量默认配置
	viper.SetDefault("content.trend_weights.search_volume", 0.30)
	viper.SetDefault("content.trend_weights.recency", 0.25)
	viper.SetDefault("content.trend_weights.engagement", 0.25)
	viper.SetDefault("content.trend_weights.relevance", 0.10)
	viper.SetDefault("content.trend_weights.competition", 0.10)
	viper.SetDefault("content.min_trend_score", 0.6)
	viper.SetDefault("content.duplicate_threshold", 0.6)
	viper.SetDefault("content.recent_title_window", 50)
	viper.SetDefault("content.stop_words", []string{"the", "a", "an", "of", "in", "on", "to", "and"})
	viper.SetDefault("content.forbidden_words_file", "data/forbidden_words.txt")
	viper.SetDefault("content.title_min_length", 40)
	viper.SetDefault("content.title_max_length", 60)
	viper.SetDefault("content.min_title_score", 0.5)
	viper.SetDefault("content.default_duration.min", 240)
	viper.SetDefault("content.default_duration.max", 360)

	// 流水线默认配置
	viper.SetDefault("pipeline.workers", 2)
	viper.SetDefault("pipeline.max_retries", 3)
	viper.SetDefault("pipeline.backoff_base", 5)
	viper.SetDefault("pipeline.backoff_max", 300)
	viper.SetDefault("pipeline.stage_timeout", 600)
	viper.SetDefault("pipeline.poll_interval", 1)
	viper.SetDefault("pipeline.rate_interval", 60)
	viper.SetDefault("pipeline.cleanup_interval", 1)
	viper.SetDefault("pipeline.job_retention_days", 7)
	viper.SetDefault("pipeline.failed_retention_days", 30)

	// 协作方默认配置
	viper.SetDefault("collaborators.news_cache_ttl", 300)
	viper.SetDefault("collaborators.privacy_state", "public")
	viper.SetDefault("collaborators.output_dir", "data/videos")
	viper.SetDefault("collaborators.thumbnail_dir", "data/thumbnails")
	viper.SetDefault("collaborators.font_file", "data/fonts/NotoSansJP-Bold.ttf")
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("工作协程数必须大于0")
	}
	if config.Content.DuplicateThreshold <= 0 || config.Content.DuplicateThreshold > 1 {
		return fmt.Errorf("判重阈值必须在 (0, 1] 区间内")
	}
	w := config.Content.TrendWeights
	if w.SearchVolume < 0 || w.Recency < 0 || w.Engagement < 0 || w.Relevance < 0 || w.Competition < 0 {
		return fmt.Errorf("趋势评分权重不能为负数")
	}
	return nil
}

// StageTimeoutFor 返回指定阶段的超时时间（秒）
func (c *PipelineConfig) StageTimeoutFor(stage string) int {
	if t, ok := c.StageTimeouts[stage]; ok && t > 0 {
		return t
	}
	return c.StageTimeout
}

// DurationRangeFor 返回指定分类的时长区间
func (c *ContentConfig) DurationRangeFor(category string) DurationRange {
	if r, ok := c.DurationRanges[category]; ok && r.Max > 0 {
		return r
	}
	return c.DefaultDuration
}
