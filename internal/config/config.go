package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Search field selectors. Which note field the image query is derived from.
const (
	SearchFieldQuestion = "question"
	SearchFieldAnswer   = "answer"
)

type Config struct {
	Deck   DeckConfig   `mapstructure:"deck"`
	Output OutputConfig `mapstructure:"output"`
	Search SearchConfig `mapstructure:"search"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Backup BackupConfig `mapstructure:"backup"`
	Log    LogConfig    `mapstructure:"log"`
}

// DeckConfig maps the logical note fields onto the deck's actual field names.
type DeckConfig struct {
	QuestionField string `mapstructure:"question_field"`
	AnswerField   string `mapstructure:"answer_field"`
	ImageField    string `mapstructure:"image_field"`
	SearchField   string `mapstructure:"search_field"`
}

type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	ImagesDir string `mapstructure:"images_dir"`
	DeckName  string `mapstructure:"deck_name"`
}

type SearchConfig struct {
	UserAgent            string        `mapstructure:"user_agent"`
	DelayBetweenSearches float64       `mapstructure:"delay_between_searches"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxCandidates        int           `mapstructure:"max_candidates"`
}

type FetchConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxDownloadBytes int64         `mapstructure:"max_download_bytes"`
	MaxWidth         int           `mapstructure:"max_width"`
	MaxHeight        int           `mapstructure:"max_height"`
	JPEGQuality      int           `mapstructure:"jpeg_quality"`
}

// BackupConfig controls the optional post-run mirror of the output package
// and images to an S3-compatible bucket. Disabled by default.
type BackupConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Delay returns the configured inter-search delay as a time.Duration.
func (c *SearchConfig) Delay() time.Duration {
	return time.Duration(c.DelayBetweenSearches * float64(time.Second))
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("deck.question_field", "Question")
	v.SetDefault("deck.answer_field", "Answer")
	v.SetDefault("deck.image_field", "Image")
	v.SetDefault("deck.search_field", SearchFieldAnswer)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.images_dir", "images")
	v.SetDefault("output.deck_name", "Updated Deck")
	v.SetDefault("search.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("search.delay_between_searches", 1.0)
	v.SetDefault("search.timeout", "15s")
	v.SetDefault("search.max_candidates", 5)
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.max_download_bytes", 10*1024*1024)
	v.SetDefault("fetch.max_width", 800)
	v.SetDefault("fetch.max_height", 600)
	v.SetDefault("fetch.jpeg_quality", 85)
	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.use_ssl", true)
	v.SetDefault("backup.region", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "anki_image_updater.log")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("backup.endpoint", "BACKUP_ENDPOINT")
	v.BindEnv("backup.access_key", "BACKUP_ACCESS_KEY")
	v.BindEnv("backup.secret_key", "BACKUP_SECRET_KEY")
	v.BindEnv("backup.bucket", "BACKUP_BUCKET")
	v.BindEnv("search.user_agent", "SEARCH_USER_AGENT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration has all required fields and that
// every numeric knob is in range. Returns an error describing the first
// validation failure, or nil if valid.
func (c *Config) Validate() error {
	if c.Deck.QuestionField == "" {
		return fmt.Errorf("deck: question_field is required")
	}
	if c.Deck.AnswerField == "" {
		return fmt.Errorf("deck: answer_field is required")
	}
	if c.Deck.ImageField == "" {
		return fmt.Errorf("deck: image_field is required")
	}
	switch c.Deck.SearchField {
	case SearchFieldQuestion, SearchFieldAnswer:
	default:
		return fmt.Errorf("deck: search_field must be %q or %q, got %q",
			SearchFieldQuestion, SearchFieldAnswer, c.Deck.SearchField)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output: dir is required")
	}
	if c.Output.ImagesDir == "" {
		return fmt.Errorf("output: images_dir is required")
	}
	if c.Search.DelayBetweenSearches < 0 {
		return fmt.Errorf("search: delay_between_searches must be >= 0")
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search: timeout must be positive")
	}
	if c.Search.MaxCandidates <= 0 {
		return fmt.Errorf("search: max_candidates must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch: timeout must be positive")
	}
	if c.Fetch.MaxDownloadBytes <= 0 {
		return fmt.Errorf("fetch: max_download_bytes must be positive")
	}
	if c.Fetch.MaxWidth <= 0 || c.Fetch.MaxHeight <= 0 {
		return fmt.Errorf("fetch: max_width and max_height must be positive")
	}
	if c.Fetch.JPEGQuality < 1 || c.Fetch.JPEGQuality > 100 {
		return fmt.Errorf("fetch: jpeg_quality must be between 1 and 100")
	}
	if c.Backup.Enabled {
		if c.Backup.Endpoint == "" {
			return fmt.Errorf("backup: endpoint is required when backup is enabled")
		}
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup: bucket is required when backup is enabled")
		}
	}
	return nil
}
