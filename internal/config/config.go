package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/imgtag/internal/logger"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 検証ポリシーのうちポリシーファイルに由来する部分はPolicyStoreで差し替える。
type Config struct {
	// Policy
	Whitelist      []string
	Blacklist      []string
	PolicyFile     string
	FixSelfClosing bool
	WatchPolicy    bool
	PolicyDebounce time.Duration

	// Server
	ServerPort        string
	CORSAllowedOrigin string
	ShutdownTimeout   time.Duration

	// Rate Limit
	RateLimitPerMinute int

	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled bool
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Whitelist = getEnvList("IMGTAG_WHITELIST")
	cfg.Blacklist = getEnvList("IMGTAG_BLACKLIST")
	cfg.PolicyFile = strings.TrimSpace(os.Getenv("IMGTAG_POLICY_FILE"))
	cfg.FixSelfClosing = getEnvBool("IMGTAG_FIX_SELF_CLOSING", false)
	cfg.WatchPolicy = cfg.PolicyFile != "" && getEnvBool("IMGTAG_WATCH_POLICY", true)
	cfg.PolicyDebounce = getEnvDuration("IMGTAG_POLICY_DEBOUNCE", 200*time.Millisecond)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 600)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	var invalid []string
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		invalid = append(invalid, "LOG_LEVEL")
	}
	if cfg.RateLimitPerMinute <= 0 {
		invalid = append(invalid, "RATE_LIMIT_PER_MINUTE")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	return cfg, nil
}

// SetPolicyFile はポリシーファイルのパスを差し替える。
// コマンドラインフラグで環境変数を上書きする場合に使う。
func (c *Config) SetPolicyFile(path string) {
	c.PolicyFile = strings.TrimSpace(path)
	c.WatchPolicy = c.PolicyFile != "" && getEnvBool("IMGTAG_WATCH_POLICY", true)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値をリストとして読み込む。空の要素は除く。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
