package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
)

// DefaultUserAgent 抓取说明书时使用的浏览器标识
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15"

// FetchFailurePolicy 抓取超时后的处理策略
type FetchFailurePolicy string

const (
	// PolicyAbort 超时直接中止整个批次
	PolicyAbort FetchFailurePolicy = "abort"
	// PolicyDegrade 超时的行降级为无说明书数据的 INACTIVE 草稿
	PolicyDegrade FetchFailurePolicy = "degrade"
)

// Config 项目配置结构体
type Config struct {
	Log                logger.Config      `yaml:"log"`
	DB                 DBConfig           `yaml:"db"`
	Kafka              KafkaConfig        `yaml:"kafka"`
	Files              FilesConfig        `yaml:"files"`
	Fetch              FetchConfig        `yaml:"fetch"`
	Pacing             PacingConfig       `yaml:"pacing"`
	Schedule           ScheduleConfig     `yaml:"schedule"`
	Server             ServerConfig       `yaml:"server"`
	RulesFile          string             `yaml:"rules_file"`
	FetchFailurePolicy FetchFailurePolicy `yaml:"fetch_failure_policy"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Driver   string `yaml:"driver"` // postgres 或 sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite 文件路径
}

// KafkaConfig 消息队列配置，brokers 为空时只写日志
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  TopicConfig `yaml:"topics"`
}

// TopicConfig 各类通知的 topic
type TopicConfig struct {
	NewTicker        string `yaml:"new_ticker"`
	CorrectionReport string `yaml:"correction_report"`
	NewIssuer        string `yaml:"new_issuer"`
}

// FilesConfig 输入文件配置
type FilesConfig struct {
	WorkbookPath        string        `yaml:"workbook_path"`
	FilingIndexPath     string        `yaml:"filing_index_path"`
	WorkbookURL         string        `yaml:"workbook_url"`
	FilingIndexURL      string        `yaml:"filing_index_url"`
	FilingIndexCacheTTL time.Duration `yaml:"filing_index_cache_ttl"`
}

// FetchConfig 说明书抓取配置
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Attempts  int           `yaml:"attempts"`
	UserAgent string        `yaml:"user_agent"`
	QPS       int           `yaml:"qps"`
	RPM       int           `yaml:"rpm"`
}

// PacingConfig 每处理 Every 行暂停 Pause
type PacingConfig struct {
	Every int           `yaml:"every"`
	Pause time.Duration `yaml:"pause"`
}

// ScheduleConfig 定时任务 cron 表达式
type ScheduleConfig struct {
	Download string `yaml:"download"`
	Parse    string `yaml:"parse"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoadConfig 从指定路径加载配置
func LoadConfig(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse 解析 YAML 配置并补全默认值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ELS_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("ELS_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ELS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "postgres"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 10 * time.Second
	}
	if c.Fetch.Attempts == 0 {
		c.Fetch.Attempts = 3
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Pacing.Every == 0 {
		c.Pacing.Every = 10
	}
	if c.Pacing.Pause == 0 {
		c.Pacing.Pause = 5 * time.Second
	}
	if c.Files.FilingIndexCacheTTL == 0 {
		c.Files.FilingIndexCacheTTL = 10 * time.Minute
	}
	if c.FetchFailurePolicy == "" {
		c.FetchFailurePolicy = PolicyAbort
	}
	if c.Kafka.Topics.NewTicker == "" {
		c.Kafka.Topics.NewTicker = "new-ticker-alert"
	}
	if c.Kafka.Topics.CorrectionReport == "" {
		c.Kafka.Topics.CorrectionReport = "prospectus-correction-report-alert"
	}
	if c.Kafka.Topics.NewIssuer == "" {
		c.Kafka.Topics.NewIssuer = "new-issuer-alert"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.FetchFailurePolicy {
	case PolicyAbort, PolicyDegrade:
	default:
		return fmt.Errorf("unknown fetch_failure_policy: %s", c.FetchFailurePolicy)
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown db driver: %s", c.DB.Driver)
	}
	if c.Fetch.Attempts < 1 {
		return fmt.Errorf("fetch.attempts must be >= 1")
	}
	return nil
}
