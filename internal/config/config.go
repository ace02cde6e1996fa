package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Download  DownloadConfig  `mapstructure:"download"`
	YtDlp     YtDlpConfig     `mapstructure:"ytdlp"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DownloadConfig struct {
	// TmpDir is the root under which per-job workspaces are created.
	TmpDir string `mapstructure:"tmp_dir"`
	// RetentionMinutes is how long completed downloads stay on disk.
	RetentionMinutes int `mapstructure:"retention_minutes"`
	// TimeoutMinutes is the supervision ceiling for one job's wall-clock runtime.
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
	// LowSpaceThresholdBytes triggers eviction when free space drops below it.
	LowSpaceThresholdBytes int64 `mapstructure:"low_space_threshold_bytes"`
	// SweepIntervalMinutes is the janitor period for retrying cleanup and
	// garbage-collecting expired job records.
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
}

type YtDlpConfig struct {
	Binary      string `mapstructure:"binary"`
	CookiesFile string `mapstructure:"cookies_file"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// Retention returns the post-completion retention window.
func (c DownloadConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

// Timeout returns the supervision ceiling.
func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// SweepInterval returns the janitor period.
func (c DownloadConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 3020)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("download.tmp_dir", "./tmp")
	v.SetDefault("download.retention_minutes", 10)
	v.SetDefault("download.timeout_minutes", 30)
	v.SetDefault("download.low_space_threshold_bytes", 100*1024*1024)
	v.SetDefault("download.sweep_interval_minutes", 1)
	v.SetDefault("ytdlp.binary", "yt-dlp")
	v.SetDefault("ytdlp.cookies_file", "")
	v.SetDefault("ratelimit.per_minute", 60)
	v.SetDefault("ratelimit.burst", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for deployment-sensitive values
	v.BindEnv("server.port", "PORT")
	v.BindEnv("download.tmp_dir", "DOWNLOAD_TMP_DIR")
	v.BindEnv("ytdlp.binary", "YTDLP_BINARY")
	v.BindEnv("ytdlp.cookies_file", "YTDLP_COOKIES_FILE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Download.RetentionMinutes <= 0 {
		return fmt.Errorf("retention_minutes must be positive, got %d", c.Download.RetentionMinutes)
	}
	if c.Download.TimeoutMinutes <= 0 {
		return fmt.Errorf("timeout_minutes must be positive, got %d", c.Download.TimeoutMinutes)
	}
	if c.Download.LowSpaceThresholdBytes < 0 {
		return fmt.Errorf("low_space_threshold_bytes must not be negative")
	}
	if c.YtDlp.Binary == "" {
		return fmt.Errorf("ytdlp.binary must not be empty")
	}
	return nil
}
